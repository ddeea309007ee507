package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"
)

type CheckoutHandler struct {
	render    *Renderer
	checkout  *services.CheckoutService
	reconcile *services.ReconcileService
	logger    zerolog.Logger
}

func NewCheckoutHandler(render *Renderer, checkout *services.CheckoutService, reconcile *services.ReconcileService, logger zerolog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		render:    render,
		checkout:  checkout,
		reconcile: reconcile,
		logger:    logger,
	}
}

// Confirm shows the order summary and subtotal. Nothing is sent to the
// payment gateway until the visitor confirms.
func (h *CheckoutHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r)
	product, err := v.API.Product(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}

	quantity, _ := strconv.Atoi(r.URL.Query().Get("quantity"))
	if quantity == 0 {
		quantity = 1
	}
	color := r.URL.Query().Get("color")
	if color == "" && len(product.Colors) > 0 {
		color = product.Colors[0]
	}

	intent, err := h.checkout.Intent(product, buyer(v), quantity, color)
	if err != nil {
		h.renderConfirm(w, r, http.StatusUnprocessableEntity, product, quantity, color, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "checkout_confirm.html", viewData{
		"Title":   "Confirm purchase",
		"Product": product,
		"Intent":  intent,
	})
}

// Pay opens a gateway session and redirects the visitor to it. Failures
// end on an error page without retrying.
func (h *CheckoutHandler) Pay(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r)
	product, err := v.API.Product(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}

	quantity, _ := strconv.Atoi(r.PostFormValue("quantity"))
	color := r.PostFormValue("color")

	intent, err := h.checkout.Intent(product, buyer(v), quantity, color)
	if err != nil {
		h.renderConfirm(w, r, http.StatusUnprocessableEntity, product, quantity, color, err)
		return
	}

	gatewayURL, err := h.checkout.Initiate(r.Context(), v.API, intent)
	switch {
	case err == nil:
		http.Redirect(w, r, gatewayURL, http.StatusSeeOther)
	case errors.Is(err, services.ErrNoGatewayURL):
		h.render.Error(w, r, http.StatusBadGateway, "The payment gateway did not respond with a checkout page. You have not been charged.")
	default:
		h.render.APIError(w, r, err)
	}
}

func (h *CheckoutHandler) renderConfirm(w http.ResponseWriter, r *http.Request, status int, product models.Product, quantity int, color string, err error) {
	data := viewData{
		"Title":    "Confirm purchase",
		"Product":  product,
		"Quantity": quantity,
		"Color":    color,
	}
	var fe models.FieldErrors
	if errors.As(err, &fe) {
		data["Errors"] = fe
	} else {
		data["Error"] = err.Error()
	}
	h.render.Page(w, r, status, "checkout_confirm.html", data)
}

// PaymentSuccess is where the gateway returns the buyer. It turns the
// completed transaction into an order exactly once.
func (h *CheckoutHandler) PaymentSuccess(w http.ResponseWriter, r *http.Request) {
	v := middleware.VisitorFrom(r)
	email := v.Store.Snapshot().Email()

	settlement, err := h.reconcile.Reconcile(r.Context(), v.API, email, r.URL.Query().Get("trxid"))
	switch {
	case errors.Is(err, services.ErrMissingTransaction):
		h.render.Error(w, r, http.StatusBadRequest, "Error loading payment details: no transaction was given.")
		return
	case errors.Is(err, services.ErrForeignTransaction):
		h.render.Error(w, r, http.StatusForbidden, "This payment belongs to another account.")
		return
	case err != nil:
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(r)).Msg("Payment reconciliation failed")
		h.render.Error(w, r, http.StatusBadGateway, "Error loading payment details.")
		return
	}

	h.render.Page(w, r, http.StatusOK, "payment_success.html", viewData{
		"Title":      "Payment successful",
		"Settlement": settlement,
		"Pending":    settlement.Outcome == services.SettlementInProgress,
		"Created":    settlement.Outcome == services.OrderCreated,
	})
}

func buyer(v *middleware.Visitor) services.Buyer {
	st := v.Store.Snapshot()
	if st.User == nil {
		return services.Buyer{}
	}
	name := st.User.DisplayName
	if name == "" {
		name = st.User.Email
	}
	return services.Buyer{Name: name, Email: st.User.Email}
}
