package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"

	"storefront/internal/apiclient"
	"storefront/internal/guard"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/session"
)

// Renderer executes page templates with the data every page shares: the
// CSRF field, pending flashes and the signed-in viewer.
type Renderer struct {
	templates *TemplateCache
	manager   *session.Manager
	wait      time.Duration
	logger    zerolog.Logger
}

func NewRenderer(templates *TemplateCache, manager *session.Manager, wait time.Duration, logger zerolog.Logger) *Renderer {
	return &Renderer{
		templates: templates,
		manager:   manager,
		wait:      wait,
		logger:    logger,
	}
}

type viewData map[string]interface{}

func (rd *Renderer) Page(w http.ResponseWriter, r *http.Request, status int, name string, data viewData) {
	tmpl := rd.templates.Get(name)
	if tmpl == nil {
		rd.logger.Error().Str("template", name).Msg("Template not found")
		http.Error(w, "Template not found", http.StatusInternalServerError)
		return
	}
	if data == nil {
		data = viewData{}
	}
	if _, ok := data["SessionLoading"]; !ok {
		viewer, loading := rd.viewer(r)
		data["Viewer"] = viewer
		data["SessionLoading"] = loading
	}
	data["CsrfField"] = csrf.TemplateField(r)
	data["Flashes"] = rd.manager.Flashes(w, r)
	if _, ok := data["Role"]; !ok {
		data["Role"] = string(middleware.RoleFrom(r))
	}
	data["Path"] = r.URL.Path

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "base", data); err != nil {
		rd.logger.Error().Err(err).Str("template", name).Msg("Failed to render template")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// viewer waits briefly for the session so the navigation can show who is
// signed in. While it is still loading the page renders neutrally.
func (rd *Renderer) viewer(r *http.Request) (*session.User, bool) {
	v := middleware.VisitorFrom(r)
	if v == nil {
		return nil, false
	}
	ctx, cancel := context.WithTimeout(r.Context(), rd.wait)
	defer cancel()
	st, err := v.Store.Wait(ctx)
	if err != nil {
		return nil, true
	}
	return st.User, false
}

// RenderLoading draws the neutral page shown while a guard is pending.
func (rd *Renderer) RenderLoading(w http.ResponseWriter, r *http.Request) {
	rd.Page(w, r, http.StatusOK, "loading.html", viewData{
		"Title":          "Loading",
		"SessionLoading": true,
	})
}

func (rd *Renderer) Error(w http.ResponseWriter, r *http.Request, status int, message string) {
	rd.Page(w, r, status, "error.html", viewData{
		"Title":   http.StatusText(status),
		"Status":  status,
		"Message": message,
	})
}

// APIError renders a backend failure. When the failure signed the visitor
// out it sends them to the login page instead.
func (rd *Renderer) APIError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, apiclient.ErrUnauthorized), errors.Is(err, apiclient.ErrForbidden):
		if v := middleware.VisitorFrom(r); v != nil && !v.Store.Snapshot().SignedIn() {
			rd.Flash(w, r, session.FlashInfo, "Your session has ended. Please sign in again.")
			http.Redirect(w, r, guard.LoginRedirect(r.URL.RequestURI()), http.StatusSeeOther)
			return
		}
		rd.Error(w, r, http.StatusForbidden, "You are not allowed to do that.")
	case errors.Is(err, apiclient.ErrNotFound):
		rd.Error(w, r, http.StatusNotFound, "We could not find what you were looking for.")
	default:
		rd.logger.Error().Err(err).Str("path", r.URL.Path).Str("request_id", middleware.GetRequestID(r)).Msg("Backend request failed")
		rd.Error(w, r, http.StatusBadGateway, "The store is unavailable right now. Please try again later.")
	}
}

// account returns the signed-in visitor or sends them to the login page.
func (rd *Renderer) account(w http.ResponseWriter, r *http.Request) (session.User, bool) {
	if v := middleware.VisitorFrom(r); v != nil {
		if st := v.Store.Snapshot(); st.User != nil {
			return *st.User, true
		}
	}
	http.Redirect(w, r, guard.LoginRedirect(r.URL.RequestURI()), http.StatusSeeOther)
	return session.User{}, false
}

func (rd *Renderer) Flash(w http.ResponseWriter, r *http.Request, kind session.FlashKind, message string) {
	rd.manager.AddFlash(w, r, kind, message)
}

// Confirm renders the confirmation step of a mutation unless the form
// already carries it, and reports whether the caller may proceed.
func (rd *Renderer) Confirm(w http.ResponseWriter, r *http.Request, title, message string) bool {
	if r.PostFormValue("confirmed") == "yes" {
		return true
	}
	rd.Page(w, r, http.StatusOK, "confirm.html", viewData{
		"Title":   title,
		"Message": message,
		"Action":  r.URL.RequestURI(),
		"Fields":  r.PostForm,
	})
	return false
}

// flashResult reports a mutation outcome and sends the visitor back to the
// page it was made from.
func (rd *Renderer) flashResult(w http.ResponseWriter, r *http.Request, err error, success, back string) {
	switch {
	case err == nil:
		rd.Flash(w, r, session.FlashSuccess, success)
	default:
		rd.Flash(w, r, session.FlashError, mutationMessage(err))
	}
	http.Redirect(w, r, guard.SafeReturn(back), http.StatusSeeOther)
}

func mutationMessage(err error) string {
	var fe models.FieldErrors
	var apiErr *apiclient.Error
	switch {
	case errors.As(err, &fe):
		return fe.Error()
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, apiclient.ErrUnauthorized), errors.Is(err, apiclient.ErrForbidden):
		return "You are not allowed to do that."
	}
	if unwrapped := errors.Unwrap(err); unwrapped == nil {
		return err.Error()
	}
	return "Something went wrong. Please try again."
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func respondWithError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	respondWithJSON(w, statusCode, middleware.ErrorResponse{
		Error:   errorCode,
		Message: message,
	})
}
