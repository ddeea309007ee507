package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"storefront/internal/guard"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
	"storefront/internal/session"
)

const maxAvatarBytes = 5 << 20

type AuthHandler struct {
	render  *Renderer
	manager *session.Manager
	uploads *services.UploadService
	logger  zerolog.Logger
}

func NewAuthHandler(render *Renderer, manager *session.Manager, uploads *services.UploadService, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		render:  render,
		manager: manager,
		uploads: uploads,
		logger:  logger,
	}
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "login.html", viewData{
		"Title": "Sign in",
		"Email": "",
		"From":  guard.SafeReturn(r.URL.Query().Get("from")),
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req := models.LoginRequest{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	from := guard.SafeReturn(r.PostFormValue("from"))

	if err := models.Validate(req); err != nil {
		h.loginFailed(w, r, req.Email, from, err)
		return
	}

	v := middleware.VisitorFrom(r)
	if v != nil {
		v.Resolution.Supersede()
	}
	user, err := h.manager.Login(w, r, req.Email, req.Password)
	if err != nil {
		h.loginFailed(w, r, req.Email, from, err)
		return
	}

	h.logger.Info().Str("email", user.Email).Msg("User signed in")
	h.render.Flash(w, r, session.FlashSuccess, "Welcome back, "+displayName(user)+"!")
	http.Redirect(w, r, from, http.StatusSeeOther)
}

func (h *AuthHandler) loginFailed(w http.ResponseWriter, r *http.Request, email, from string, err error) {
	data := viewData{"Title": "Sign in", "Email": email, "From": from}
	var fe models.FieldErrors
	switch {
	case errors.As(err, &fe):
		data["Errors"] = fe
	case errors.Is(err, session.ErrInvalidCredentials):
		data["Error"] = "Invalid email or password."
	default:
		h.logger.Error().Err(err).Str("email", email).Msg("Sign in failed")
		data["Error"] = "We could not sign you in right now. Please try again."
	}
	h.render.Page(w, r, http.StatusUnprocessableEntity, "login.html", data)
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.render.Page(w, r, http.StatusOK, "register.html", viewData{
		"Title":   "Create account",
		"Uploads": h.uploads.Enabled(),
	})
}

// Register creates the identity account, records the user with the
// default role and signs the visitor in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.render.Error(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	req := models.RegisterRequest{
		Name:     strings.TrimSpace(r.PostFormValue("name")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
		PhotoURL: strings.TrimSpace(r.PostFormValue("photoURL")),
	}
	data := viewData{"Title": "Create account", "Form": req, "Uploads": h.uploads.Enabled()}

	if err := models.Validate(req); err != nil {
		data["Errors"] = err
		h.render.Page(w, r, http.StatusUnprocessableEntity, "register.html", data)
		return
	}

	if file, header, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		url, err := h.uploads.Image(r.Context(), "avatars", header.Filename, file)
		if err != nil && !errors.Is(err, services.ErrUploadsDisabled) {
			data["Errors"] = models.FieldErrors{"photo": "could not be uploaded: " + err.Error()}
			h.render.Page(w, r, http.StatusUnprocessableEntity, "register.html", data)
			return
		}
		if url != "" {
			req.PhotoURL = url
		}
	}

	v := middleware.VisitorFrom(r)
	if v != nil {
		v.Resolution.Supersede()
	}
	user, err := h.manager.Register(w, r, req.Email, req.Password, session.Profile{
		DisplayName: req.Name,
		PhotoURL:    req.PhotoURL,
	})
	if err != nil {
		if errors.Is(err, session.ErrEmailTaken) {
			data["Errors"] = models.FieldErrors{"email": "is already registered"}
		} else {
			h.logger.Error().Err(err).Str("email", req.Email).Msg("Registration failed")
			data["Error"] = "We could not create your account right now. Please try again."
		}
		h.render.Page(w, r, http.StatusUnprocessableEntity, "register.html", data)
		return
	}

	now := time.Now().UTC().Format(time.RFC3339)
	if v != nil {
		if _, err := v.API.CreateUser(r.Context(), models.User{
			DisplayName: displayName(user),
			Email:       user.Email,
			PhotoURL:    user.PhotoURL,
			Role:        models.RoleUser,
			CreatedAt:   now,
			LastLogin:   now,
		}); err != nil {
			h.logger.Error().Err(err).Str("email", user.Email).Msg("Error recording new user")
		}
	}

	h.logger.Info().Str("email", user.Email).Msg("User registered")
	h.render.Flash(w, r, session.FlashSuccess, "Your account is ready. Welcome, "+displayName(user)+"!")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if v := middleware.VisitorFrom(r); v != nil {
		h.manager.Logout(w, r, v.Store)
	}
	h.render.Flash(w, r, session.FlashInfo, "You have been signed out.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func displayName(u session.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Email
}
