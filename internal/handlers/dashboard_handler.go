package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"storefront/internal/guard"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/pagination"
	"storefront/internal/services"
	"storefront/internal/session"
)

const myOrdersPath = "/dashboard/myOrders"

// DashboardHandler serves the signed-in visitor's own pages.
type DashboardHandler struct {
	render  *Renderer
	guards  *middleware.Guards
	manager *session.Manager
	orders  *services.OrderService
	reviews *services.ReviewService
	uploads *services.UploadService
	logger  zerolog.Logger
}

func NewDashboardHandler(
	render *Renderer,
	guards *middleware.Guards,
	manager *session.Manager,
	orders *services.OrderService,
	reviews *services.ReviewService,
	uploads *services.UploadService,
	logger zerolog.Logger,
) *DashboardHandler {
	return &DashboardHandler{
		render:  render,
		guards:  guards,
		manager: manager,
		orders:  orders,
		reviews: reviews,
		uploads: uploads,
		logger:  logger,
	}
}

// Home renders the admin or the user overview depending on the role.
func (h *DashboardHandler) Home(w http.ResponseWriter, r *http.Request) {
	role := h.guards.AwaitRole(r)
	if role.Loading {
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Refresh", "1")
		h.render.RenderLoading(w, r)
		return
	}

	v := middleware.VisitorFrom(r)
	if role.Role == models.RoleAdmin {
		agg, err := v.API.AdminAggregate(r.Context())
		if err != nil {
			h.render.APIError(w, r, err)
			return
		}
		h.render.Page(w, r, http.StatusOK, "dashboard_admin.html", viewData{
			"Title":     "Dashboard",
			"Aggregate": agg,
			"Role":      string(role.Role),
		})
		return
	}

	agg, err := v.API.UserAggregate(r.Context(), v.Store.Snapshot().Email())
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "dashboard_user.html", viewData{
		"Title":     "Dashboard",
		"Aggregate": agg,
		"Role":      string(role.Role),
	})
}

func (h *DashboardHandler) ProfilePage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.render.account(w, r)
	if !ok {
		return
	}
	h.render.Page(w, r, http.StatusOK, "profile.html", viewData{
		"Title":   "Profile",
		"Form":    models.ProfileUpdate{DisplayName: user.DisplayName, PhotoURL: user.PhotoURL},
		"Account": user,
		"Uploads": h.uploads.Enabled(),
		"Role":    string(h.guards.AwaitRole(r).Role),
	})
}

func (h *DashboardHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.render.Error(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}
	user, ok := h.render.account(w, r)
	if !ok {
		return
	}
	v := middleware.VisitorFrom(r)
	form := models.ProfileUpdate{
		DisplayName: strings.TrimSpace(r.PostFormValue("displayName")),
		PhotoURL:    strings.TrimSpace(r.PostFormValue("photoURL")),
	}
	data := viewData{
		"Title":   "Profile",
		"Form":    form,
		"Account": user,
		"Uploads": h.uploads.Enabled(),
		"Role":    string(h.guards.AwaitRole(r).Role),
	}

	if file, header, err := r.FormFile("photo"); err == nil {
		defer file.Close()
		url, err := h.uploads.Image(r.Context(), "avatars", header.Filename, file)
		if err != nil {
			data["Errors"] = models.FieldErrors{"photo": "could not be uploaded: " + err.Error()}
			h.render.Page(w, r, http.StatusUnprocessableEntity, "profile.html", data)
			return
		}
		form.PhotoURL = url
	}
	if err := models.Validate(form); err != nil {
		data["Errors"] = err
		h.render.Page(w, r, http.StatusUnprocessableEntity, "profile.html", data)
		return
	}

	err := h.manager.UpdateProfile(r.Context(), v.Store, session.Profile{
		DisplayName: form.DisplayName,
		PhotoURL:    form.PhotoURL,
	})
	if err != nil {
		h.logger.Error().Err(err).Str("email", user.Email).Msg("Error updating profile")
	}
	h.render.flashResult(w, r, err, "Profile updated.", "/dashboard/profile")
}

func (h *DashboardHandler) MyOrders(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r)
	page := pagination.ParsePage(r.URL.Query())

	rows, p, err := h.orders.UserOrders(r.Context(), v.API, v.Store.Snapshot().Email(), page)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "my_orders.html", viewData{
		"Title":  "My orders",
		"Orders": rows,
		"Pager":  pagination.New(p.Total, p.Limit, page),
	})
}

// DeleteOrder removes one of the visitor's orders after confirmation.
func (h *DashboardHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if !h.render.Confirm(w, r, "Delete order", "Delete this order? This cannot be undone.") {
		return
	}
	v := middleware.VisitorFrom(r)
	err := h.orders.DeleteOwn(r.Context(), v.API, v.Store.Snapshot().Email(), mux.Vars(r)["id"])
	h.render.flashResult(w, r, err, "Order deleted.", backTo(r, myOrdersPath))
}

func (h *DashboardHandler) PaymentHistory(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r)
	agg, err := v.API.UserAggregate(r.Context(), v.Store.Snapshot().Email())
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "my_payments.html", viewData{
		"Title":    "Payment history",
		"Payments": agg.RecentPayments,
		"Total":    agg.TotalPayments,
	})
}

func (h *DashboardHandler) ReviewPage(w http.ResponseWriter, r *http.Request) {
	user, ok := h.render.account(w, r)
	if !ok {
		return
	}
	v := middleware.VisitorFrom(r)
	order, err := h.reviews.Reviewable(r.Context(), v.API, user, mux.Vars(r)["id"])
	if err != nil {
		h.reviewRejected(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "review.html", viewData{
		"Title":  "Review " + order.ProductName,
		"Order":  order,
		"Rating": 5,
		"Text":   "",
	})
}

func (h *DashboardHandler) SubmitReview(w http.ResponseWriter, r *http.Request) {
	user, ok := h.render.account(w, r)
	if !ok {
		return
	}
	v := middleware.VisitorFrom(r)
	id := mux.Vars(r)["id"]
	rating, _ := strconv.Atoi(r.PostFormValue("rating"))
	text := r.PostFormValue("review")

	err := h.reviews.Submit(r.Context(), v.API, user, id, rating, text)
	var fe models.FieldErrors
	switch {
	case err == nil:
		h.render.Flash(w, r, session.FlashSuccess, "Thanks for your review!")
		http.Redirect(w, r, myOrdersPath, http.StatusSeeOther)
	case errors.As(err, &fe):
		order, lerr := h.reviews.Reviewable(r.Context(), v.API, user, id)
		if lerr != nil {
			h.reviewRejected(w, r, lerr)
			return
		}
		h.render.Page(w, r, http.StatusUnprocessableEntity, "review.html", viewData{
			"Title":  "Review " + order.ProductName,
			"Order":  order,
			"Rating": rating,
			"Text":   text,
			"Errors": fe,
		})
	default:
		h.reviewRejected(w, r, err)
	}
}

func (h *DashboardHandler) reviewRejected(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrReviewNotAllowed), errors.Is(err, services.ErrNotOrderOwner),
		errors.Is(err, services.ErrAlreadyReviewed):
		h.render.Flash(w, r, session.FlashError, capitalize(err.Error()))
		http.Redirect(w, r, myOrdersPath, http.StatusSeeOther)
	default:
		h.render.APIError(w, r, err)
	}
}

// backTo returns the page a mutation form came from, keeping its page
// number, or fallback.
func backTo(r *http.Request, fallback string) string {
	if back := r.PostFormValue("back"); back != "" {
		return guard.SafeReturn(back)
	}
	if page, err := strconv.Atoi(r.PostFormValue("page")); err == nil && page > 0 {
		return fmt.Sprintf("%s?page=%d", fallback, page)
	}
	return fallback
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
