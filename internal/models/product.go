package models

import (
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Specification struct {
	Label string `json:"label" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type Product struct {
	ID               primitive.ObjectID  `json:"_id,omitzero"`
	Name             string              `json:"name"`
	Category         string              `json:"category"`
	Images           []string            `json:"images"`
	Price            decimal.Decimal     `json:"price"`
	DiscountedPrice  decimal.NullDecimal `json:"discountedPrice"`
	Quantity         int                 `json:"quantity"`
	Rating           float64             `json:"rating"`
	ShortDescription string              `json:"shortDescription"`
	Description      string              `json:"description"`
	Specifications   []Specification     `json:"specifications"`
	Colors           []string            `json:"colors"`
}

// UnitPrice is the discounted price when one is set, the list price otherwise.
func (p Product) UnitPrice() decimal.Decimal {
	if p.DiscountedPrice.Valid && p.DiscountedPrice.Decimal.IsPositive() {
		return p.DiscountedPrice.Decimal
	}
	return p.Price
}

// DiscountPercent rounds (price - discounted) / price to a whole percent.
func (p Product) DiscountPercent() int {
	if !p.DiscountedPrice.Valid || !p.Price.IsPositive() || p.DiscountedPrice.Decimal.GreaterThanOrEqual(p.Price) {
		return 0
	}
	pct := p.Price.Sub(p.DiscountedPrice.Decimal).Div(p.Price).Mul(decimal.NewFromInt(100)).Round(0)
	return int(pct.IntPart())
}

func (p Product) InStock() bool {
	return p.Quantity > 0
}

func (p Product) Cover() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

// ProductInput is the payload shared by the admin product form and the
// create/update endpoints.
type ProductInput struct {
	Name             string              `json:"name" validate:"required,min=2,max=120"`
	Category         string              `json:"category" validate:"required"`
	Images           []string            `json:"images" validate:"required,min=1,dive,url"`
	Price            decimal.Decimal     `json:"price" validate:"gt=0"`
	DiscountedPrice  decimal.NullDecimal `json:"discountedPrice"`
	Quantity         int                 `json:"quantity" validate:"gte=0"`
	Rating           float64             `json:"rating" validate:"gte=0,lte=5"`
	ShortDescription string              `json:"shortDescription" validate:"required,max=200"`
	Description      string              `json:"description" validate:"required"`
	Specifications   []Specification     `json:"specifications" validate:"dive"`
	Colors           []string            `json:"colors" validate:"required,min=1,dive,required"`
}

// NewProductInput pre-fills the admin edit form from an existing product.
func NewProductInput(p Product) ProductInput {
	return ProductInput{
		Name:             p.Name,
		Category:         p.Category,
		Images:           p.Images,
		Price:            p.Price,
		DiscountedPrice:  p.DiscountedPrice,
		Quantity:         p.Quantity,
		Rating:           p.Rating,
		ShortDescription: p.ShortDescription,
		Description:      p.Description,
		Specifications:   p.Specifications,
		Colors:           p.Colors,
	}
}
