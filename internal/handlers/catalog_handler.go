package handlers

import (
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/pagination"
	"storefront/internal/services"
)

const (
	featuredCount = 8
	relatedCount  = 4
)

type CatalogHandler struct {
	render  *Renderer
	catalog *services.CatalogService
	logger  zerolog.Logger
}

func NewCatalogHandler(render *Renderer, catalog *services.CatalogService, logger zerolog.Logger) *CatalogHandler {
	return &CatalogHandler{
		render:  render,
		catalog: catalog,
		logger:  logger,
	}
}

func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	api := middleware.VisitorFrom(r).API

	products, err := api.AllProducts(r.Context())
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}
	reviews, err := api.Reviews(r.Context())
	if err != nil {
		h.logger.Warn().Err(err).Msg("Error loading reviews")
		reviews = nil
	}

	h.render.Page(w, r, http.StatusOK, "home.html", viewData{
		"Title":    "Home",
		"Featured": h.catalog.Featured(products, featuredCount),
		"Reviews":  reviews,
	})
}

// Products lists one backend page, filtered and sorted in place.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	page := pagination.ParsePage(r.URL.Query())
	query := services.ParseCatalogQuery(r.URL.Query())

	p, err := middleware.VisitorFrom(r).API.ProductsPage(r.Context(), page)
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}

	view := h.catalog.Apply(p.Data, query)
	h.render.Page(w, r, http.StatusOK, "products.html", viewData{
		"Title":   "Products",
		"View":    view,
		"Pager":   pagination.New(p.Total, p.Limit, page),
		"Filters": template.URL(query.Values().Encode()),
		"Sorts":   []string{services.SortFeatured, services.SortPriceLow, services.SortPriceHigh, services.SortRating},
	})
}

func (h *CatalogHandler) Product(w http.ResponseWriter, r *http.Request) {
	api := middleware.VisitorFrom(r).API

	product, err := api.Product(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		h.render.APIError(w, r, err)
		return
	}

	var related []models.Product
	if all, err := api.AllProducts(r.Context()); err != nil {
		h.logger.Warn().Err(err).Str("product_id", product.ID.Hex()).Msg("Error loading related products")
	} else {
		related = h.catalog.Related(all, product, relatedCount)
	}

	quantities := make([]int, 0, product.Quantity)
	for i := 1; i <= product.Quantity && i <= 10; i++ {
		quantities = append(quantities, i)
	}

	h.render.Page(w, r, http.StatusOK, "product.html", viewData{
		"Title":      product.Name,
		"Product":    product,
		"Related":    related,
		"Quantities": quantities,
	})
}
