package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/pagination"
	"storefront/internal/services"
	"storefront/internal/session"
)

const (
	adminUsersPath    = "/dashboard/allUsers"
	adminProductsPath = "/dashboard/allProducts"
	adminOrdersPath   = "/dashboard/allOrders"
	maxProductUpload  = 10 << 20
)

type AdminHandler struct {
	render  *Renderer
	admin   *services.AdminService
	orders  *services.OrderService
	uploads *services.UploadService
	logger  zerolog.Logger
}

func NewAdminHandler(render *Renderer, admin *services.AdminService, orders *services.OrderService, uploads *services.UploadService, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		render:  render,
		admin:   admin,
		orders:  orders,
		uploads: uploads,
		logger:  logger,
	}
}

func (h *AdminHandler) Users(w http.ResponseWriter, r *http.Request) {
	page := pagination.ParsePage(r.URL.Query())
	p, err := middleware.VisitorFrom(r).API.Users(r.Context(), page)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "admin_users.html", viewData{
		"Title": "All users",
		"Users": p.Data,
		"Pager": pagination.New(p.Total, p.Limit, page),
		"Page":  page,
	})
}

func (h *AdminHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	role := models.Role(r.PostFormValue("role"))
	if !h.render.Confirm(w, r, "Change role", "Make "+email+" "+string(role)+"?") {
		return
	}
	v := middleware.VisitorFrom(r)
	err := h.admin.ChangeRole(r.Context(), v.API, v.Store.Snapshot().Email(), email, role)
	h.render.flashResult(w, r, err, "Role updated for "+email+".", backTo(r, adminUsersPath))
}

func (h *AdminHandler) Products(w http.ResponseWriter, r *http.Request) {
	page := pagination.ParsePage(r.URL.Query())
	p, err := middleware.VisitorFrom(r).API.ProductsPage(r.Context(), page)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "admin_products.html", viewData{
		"Title":    "All products",
		"Products": p.Data,
		"Pager":    pagination.New(p.Total, p.Limit, page),
		"Page":     page,
	})
}

func (h *AdminHandler) NewProduct(w http.ResponseWriter, r *http.Request) {
	h.renderProductForm(w, r, http.StatusOK, "", productForm{Quantity: "1", Rating: "0"}, nil)
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	form, in, err := h.parseProductForm(r)
	if err == nil {
		_, err = h.admin.CreateProduct(r.Context(), middleware.VisitorFrom(r).API, in)
	}
	if h.productFormFailed(w, r, "", form, err) {
		return
	}
	h.render.Flash(w, r, session.FlashSuccess, "Product "+in.Name+" added.")
	http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
}

func (h *AdminHandler) EditProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	p, err := middleware.VisitorFrom(r).API.Product(r.Context(), id)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.renderProductForm(w, r, http.StatusOK, id, newProductForm(models.NewProductInput(p)), nil)
}

func (h *AdminHandler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	form, in, err := h.parseProductForm(r)
	if err == nil {
		err = h.admin.UpdateProduct(r.Context(), middleware.VisitorFrom(r).API, id, in)
	}
	if h.productFormFailed(w, r, id, form, err) {
		return
	}
	h.render.Flash(w, r, session.FlashSuccess, "Product "+in.Name+" updated.")
	http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
}

func (h *AdminHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if !h.render.Confirm(w, r, "Delete product", "Delete this product? Existing orders keep their copy of it.") {
		return
	}
	err := h.admin.DeleteProduct(r.Context(), middleware.VisitorFrom(r).API, mux.Vars(r)["id"])
	h.render.flashResult(w, r, err, "Product deleted.", backTo(r, adminProductsPath))
}

func (h *AdminHandler) Orders(w http.ResponseWriter, r *http.Request) {
	page := pagination.ParsePage(r.URL.Query())
	p, err := middleware.VisitorFrom(r).API.OrdersPage(r.Context(), page)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "admin_orders.html", viewData{
		"Title":  "All orders",
		"Orders": p.Data,
		"Pager":  pagination.New(p.Total, p.Limit, page),
		"Page":   page,
	})
}

func (h *AdminHandler) DeliverOrder(w http.ResponseWriter, r *http.Request) {
	if !h.render.Confirm(w, r, "Mark delivered", "Mark this order as delivered?") {
		return
	}
	err := h.orders.MarkDelivered(r.Context(), middleware.VisitorFrom(r).API, mux.Vars(r)["id"])
	h.render.flashResult(w, r, err, "Order marked as delivered.", backTo(r, adminOrdersPath))
}

func (h *AdminHandler) Payments(w http.ResponseWriter, r *http.Request) {
	page := pagination.ParsePage(r.URL.Query())
	p, err := middleware.VisitorFrom(r).API.PaymentsPage(r.Context(), page)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	h.render.Page(w, r, http.StatusOK, "admin_payments.html", viewData{
		"Title":    "All payments",
		"Payments": p.Data,
		"Pager":    pagination.New(p.Total, p.Limit, page),
	})
}

// productForm holds the raw admin form values for re-rendering.
type productForm struct {
	Name             string
	Category         string
	Price            string
	DiscountedPrice  string
	Quantity         string
	Rating           string
	ShortDescription string
	Description      string
	Colors           string
	Images           string
	Specifications   string
}

func newProductForm(in models.ProductInput) productForm {
	f := productForm{
		Name:             in.Name,
		Category:         in.Category,
		Price:            in.Price.String(),
		Quantity:         strconv.Itoa(in.Quantity),
		Rating:           strconv.FormatFloat(in.Rating, 'f', -1, 64),
		ShortDescription: in.ShortDescription,
		Description:      in.Description,
		Colors:           strings.Join(in.Colors, ", "),
		Images:           strings.Join(in.Images, "\n"),
	}
	if in.DiscountedPrice.Valid {
		f.DiscountedPrice = in.DiscountedPrice.Decimal.String()
	}
	specs := make([]string, len(in.Specifications))
	for i, s := range in.Specifications {
		specs[i] = s.Label + ": " + s.Value
	}
	f.Specifications = strings.Join(specs, "\n")
	return f
}

// input converts the form into a product payload, reporting every field
// that could not be parsed.
func (f productForm) input() (models.ProductInput, error) {
	fe := models.FieldErrors{}
	in := models.ProductInput{
		Name:             strings.TrimSpace(f.Name),
		Category:         strings.TrimSpace(f.Category),
		ShortDescription: strings.TrimSpace(f.ShortDescription),
		Description:      strings.TrimSpace(f.Description),
		Colors:           splitFields(f.Colors, ","),
		Images:           splitFields(f.Images, "\n"),
	}

	price, err := decimal.NewFromString(strings.TrimSpace(f.Price))
	if err != nil {
		fe["price"] = "must be a number"
	}
	in.Price = price
	if raw := strings.TrimSpace(f.DiscountedPrice); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			fe["discountedPrice"] = "must be a number"
		}
		in.DiscountedPrice = decimal.NewNullDecimal(d)
	}
	if in.Quantity, err = strconv.Atoi(strings.TrimSpace(f.Quantity)); err != nil {
		fe["quantity"] = "must be a whole number"
	}
	if raw := strings.TrimSpace(f.Rating); raw != "" {
		if in.Rating, err = strconv.ParseFloat(raw, 64); err != nil {
			fe["rating"] = "must be a number"
		}
	}
	for _, line := range splitFields(f.Specifications, "\n") {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			fe["specifications"] = "use one \"Label: Value\" pair per line"
			break
		}
		in.Specifications = append(in.Specifications, models.Specification{
			Label: strings.TrimSpace(label),
			Value: strings.TrimSpace(value),
		})
	}

	if len(fe) > 0 {
		return in, fe
	}
	return in, nil
}

func (h *AdminHandler) parseProductForm(r *http.Request) (productForm, models.ProductInput, error) {
	if err := r.ParseMultipartForm(maxProductUpload); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return productForm{}, models.ProductInput{}, err
	}
	form := productForm{
		Name:             r.PostFormValue("name"),
		Category:         r.PostFormValue("category"),
		Price:            r.PostFormValue("price"),
		DiscountedPrice:  r.PostFormValue("discountedPrice"),
		Quantity:         r.PostFormValue("quantity"),
		Rating:           r.PostFormValue("rating"),
		ShortDescription: r.PostFormValue("shortDescription"),
		Description:      r.PostFormValue("description"),
		Colors:           r.PostFormValue("colors"),
		Images:           r.PostFormValue("images"),
		Specifications:   r.PostFormValue("specifications"),
	}

	if file, header, err := r.FormFile("image"); err == nil {
		defer file.Close()
		url, err := h.uploads.Image(r.Context(), "products", header.Filename, file)
		if err != nil {
			return form, models.ProductInput{}, models.FieldErrors{"image": "could not be uploaded: " + err.Error()}
		}
		form.Images = strings.TrimSpace(form.Images + "\n" + url)
	}

	in, err := form.input()
	return form, in, err
}

// productFormFailed re-renders the form for validation failures and
// reports whether the request was answered.
func (h *AdminHandler) productFormFailed(w http.ResponseWriter, r *http.Request, id string, form productForm, err error) bool {
	if err == nil {
		return false
	}
	var fe models.FieldErrors
	switch {
	case errors.As(err, &fe):
		h.renderProductForm(w, r, http.StatusUnprocessableEntity, id, form, fe)
	case errors.Is(err, services.ErrNothingChanged):
		h.render.Flash(w, r, session.FlashInfo, "No changes were made.")
		http.Redirect(w, r, adminProductsPath, http.StatusSeeOther)
	default:
		h.renderProductForm(w, r, http.StatusBadGateway, id, form, models.FieldErrors{"form": mutationMessage(err)})
	}
	return true
}

func (h *AdminHandler) renderProductForm(w http.ResponseWriter, r *http.Request, status int, id string, form productForm, errs models.FieldErrors) {
	title := "Add product"
	action := "/dashboard/addProducts"
	if id != "" {
		title = "Edit product"
		action = "/dashboard/editProduct/" + id
	}
	h.render.Page(w, r, status, "admin_product_form.html", viewData{
		"Title":   title,
		"Action":  action,
		"Form":    form,
		"Errors":  errs,
		"Uploads": h.uploads.Enabled(),
	})
}

func splitFields(raw, sep string) []string {
	var out []string
	for _, part := range strings.Split(raw, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
