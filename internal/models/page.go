package models

// Page is one server page of a paginated list endpoint.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Limit int `json:"limit"`
}

// MutationResult mirrors the write acknowledgements returned by the backend.
type MutationResult struct {
	Acknowledged  bool   `json:"acknowledged"`
	InsertedID    string `json:"insertedId,omitempty"`
	ModifiedCount int    `json:"modifiedCount"`
	DeletedCount  int    `json:"deletedCount"`
}

type ChatRequest struct {
	Question string `json:"question" validate:"required,max=500"`
}

type ChatResponse struct {
	Response string `json:"response"`
}

type ContactMessage struct {
	Name    string `json:"name" validate:"required,max=80"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,max=120"`
	Message string `json:"message" validate:"required,max=4000"`
}
