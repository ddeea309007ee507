package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/session"
)

const maxChatBody = 4 << 10

// PageHandler serves the informational pages, the contact form and the
// chatbot proxy.
type PageHandler struct {
	render *Renderer
	mail   *services.MailService
	logger zerolog.Logger
}

func NewPageHandler(render *Renderer, mail *services.MailService, logger zerolog.Logger) *PageHandler {
	return &PageHandler{
		render: render,
		mail:   mail,
		logger: logger,
	}
}

func (h *PageHandler) About(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "about.html", viewData{"Title": "About"})
}

func (h *PageHandler) Forbidden(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusForbidden, "forbidden.html", viewData{"Title": "Access denied"})
}

func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render.Error(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

func (h *PageHandler) ContactPage(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "contact.html", viewData{
		"Title":   "Contact",
		"Enabled": h.mail.Enabled(),
	})
}

func (h *PageHandler) Contact(w http.ResponseWriter, r *http.Request) {
	msg := models.ContactMessage{
		Name:    strings.TrimSpace(r.PostFormValue("name")),
		Email:   strings.TrimSpace(r.PostFormValue("email")),
		Subject: strings.TrimSpace(r.PostFormValue("subject")),
		Message: strings.TrimSpace(r.PostFormValue("message")),
	}

	err := h.mail.Contact(msg)
	var fe models.FieldErrors
	switch {
	case err == nil:
		h.render.Flash(w, r, session.FlashSuccess, "Thanks for reaching out! We will get back to you soon.")
		http.Redirect(w, r, "/contact", http.StatusSeeOther)
	case errors.As(err, &fe):
		h.render.Page(w, r, http.StatusUnprocessableEntity, "contact.html", viewData{
			"Title":   "Contact",
			"Enabled": h.mail.Enabled(),
			"Form":    msg,
			"Errors":  fe,
		})
	default:
		h.logger.Error().Err(err).Str("email", msg.Email).Msg("Error sending contact message")
		h.render.Page(w, r, http.StatusBadGateway, "contact.html", viewData{
			"Title":   "Contact",
			"Enabled": h.mail.Enabled(),
			"Form":    msg,
			"Error":   "Your message could not be sent right now. Please try again later.",
		})
	}
}

// Chatbot forwards a visitor question to the backend assistant.
func (h *PageHandler) Chatbot(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if err := models.Validate(req); err != nil {
		respondWithError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	resp, err := middleware.VisitorFrom(r).API.Chat(r.Context(), req.Question)
	if err != nil {
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r)).Msg("Chatbot request failed")
		respondWithError(w, http.StatusBadGateway, "chat_unavailable", "The assistant is unavailable right now")
		return
	}
	respondWithJSON(w, http.StatusOK, resp)
}

func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PageHandler) CSRFFailed(w http.ResponseWriter, r *http.Request) {
	h.logger.Warn().Str("path", r.URL.Path).Str("reason", csrf.FailureReason(r).Error()).Msg("CSRF check failed")
	h.render.Error(w, r, http.StatusForbidden, "Your form expired. Please go back, reload the page and try again.")
}
