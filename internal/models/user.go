package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type User struct {
	ID          primitive.ObjectID `json:"_id,omitzero"`
	DisplayName string             `json:"displayName"`
	Email       string             `json:"email"`
	PhotoURL    string             `json:"photoURL"`
	Role        Role               `json:"role"`
	CreatedAt   string             `json:"createdAt,omitempty"`
	LastLogin   string             `json:"lastLogin,omitempty"`
}

// RoleResponse is the body of GET /users/{email}/role.
type RoleResponse struct {
	Role string `json:"role"`
}

type RoleUpdate struct {
	Role Role `json:"role" validate:"required,oneof=user admin"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=60"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	PhotoURL string `json:"photoURL" validate:"omitempty,url"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ProfileUpdate struct {
	DisplayName string `json:"displayName" validate:"required,min=2,max=60"`
	PhotoURL    string `json:"photoURL" validate:"omitempty,url"`
}
