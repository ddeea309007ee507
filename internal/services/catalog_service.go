package services

import (
	"net/url"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"storefront/internal/models"
)

const (
	SortFeatured  = "featured"
	SortPriceLow  = "price-low"
	SortPriceHigh = "price-high"
	SortRating    = "rating"

	AllCategories = "All"
)

var (
	defaultMinPrice = decimal.Zero
	defaultMaxPrice = decimal.NewFromInt(500)
)

type CatalogQuery struct {
	Category    string
	MinPrice    decimal.Decimal
	MaxPrice    decimal.Decimal
	InStockOnly bool
	Sort        string
}

// ParseCatalogQuery reads the listing filters, falling back to the defaults
// for anything missing or malformed.
func ParseCatalogQuery(q url.Values) CatalogQuery {
	cq := CatalogQuery{
		Category:    strings.TrimSpace(q.Get("category")),
		MinPrice:    defaultMinPrice,
		MaxPrice:    defaultMaxPrice,
		InStockOnly: q.Get("inStock") == "on" || q.Get("inStock") == "true",
		Sort:        q.Get("sort"),
	}
	if cq.Category == "" {
		cq.Category = AllCategories
	}
	if v, err := decimal.NewFromString(q.Get("min")); err == nil && !v.IsNegative() {
		cq.MinPrice = v
	}
	if v, err := decimal.NewFromString(q.Get("max")); err == nil && v.IsPositive() {
		cq.MaxPrice = v
	}
	if cq.MaxPrice.LessThan(cq.MinPrice) {
		cq.MinPrice, cq.MaxPrice = cq.MaxPrice, cq.MinPrice
	}
	switch cq.Sort {
	case SortPriceLow, SortPriceHigh, SortRating:
	default:
		cq.Sort = SortFeatured
	}
	return cq
}

// Values encodes the non-default filters so page links keep them.
func (q CatalogQuery) Values() url.Values {
	v := url.Values{}
	if q.Category != AllCategories {
		v.Set("category", q.Category)
	}
	if !q.MinPrice.Equal(defaultMinPrice) {
		v.Set("min", q.MinPrice.String())
	}
	if !q.MaxPrice.Equal(defaultMaxPrice) {
		v.Set("max", q.MaxPrice.String())
	}
	if q.InStockOnly {
		v.Set("inStock", "on")
	}
	if q.Sort != SortFeatured {
		v.Set("sort", q.Sort)
	}
	return v
}

type CategoryCount struct {
	Name     string
	Count    int
	Selected bool
}

type CatalogView struct {
	Query      CatalogQuery
	Products   []models.Product
	Categories []CategoryCount
	Fetched    int
}

type CatalogService struct {
	logger zerolog.Logger
}

func NewCatalogService(logger zerolog.Logger) *CatalogService {
	return &CatalogService{logger: logger}
}

// Apply filters and sorts one fetched page of products.
func (s *CatalogService) Apply(products []models.Product, q CatalogQuery) CatalogView {
	view := CatalogView{Query: q, Fetched: len(products)}

	counts := map[string]int{}
	var order []string
	for _, p := range products {
		if _, seen := counts[p.Category]; !seen {
			order = append(order, p.Category)
		}
		counts[p.Category]++
	}
	view.Categories = append(view.Categories, CategoryCount{Name: AllCategories, Count: len(products), Selected: q.Category == AllCategories})
	for _, name := range order {
		view.Categories = append(view.Categories, CategoryCount{Name: name, Count: counts[name], Selected: q.Category == name})
	}

	for _, p := range products {
		if p.Price.LessThan(q.MinPrice) || p.Price.GreaterThan(q.MaxPrice) {
			continue
		}
		if q.Category != AllCategories && p.Category != q.Category {
			continue
		}
		if q.InStockOnly && !p.InStock() {
			continue
		}
		view.Products = append(view.Products, p)
	}

	switch q.Sort {
	case SortPriceLow:
		sort.SliceStable(view.Products, func(i, j int) bool {
			return view.Products[i].Price.LessThan(view.Products[j].Price)
		})
	case SortPriceHigh:
		sort.SliceStable(view.Products, func(i, j int) bool {
			return view.Products[i].Price.GreaterThan(view.Products[j].Price)
		})
	case SortRating:
		sort.SliceStable(view.Products, func(i, j int) bool {
			return view.Products[i].Rating > view.Products[j].Rating
		})
	}
	return view
}

// Featured returns up to n in-stock products, best rated first.
func (s *CatalogService) Featured(products []models.Product, n int) []models.Product {
	var out []models.Product
	for _, p := range products {
		if p.InStock() {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating > out[j].Rating
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Related returns up to n other products from the same category.
func (s *CatalogService) Related(all []models.Product, p models.Product, n int) []models.Product {
	var out []models.Product
	for _, other := range all {
		if other.ID == p.ID || other.Category != p.Category {
			continue
		}
		out = append(out, other)
		if len(out) == n {
			break
		}
	}
	return out
}
