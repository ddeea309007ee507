package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Payment struct {
	ID              primitive.ObjectID `json:"_id,omitzero"`
	TransactionID   string             `json:"transactionID"`
	UserName        string             `json:"userName"`
	Email           string             `json:"email"`
	ProductID       string             `json:"productId"`
	ProductName     string             `json:"productName"`
	ProductCategory string             `json:"productCategory"`
	Quantity        int                `json:"quantity"`
	Color           string             `json:"color"`
	UnitPrice       decimal.Decimal    `json:"unitPrice"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	Status          string             `json:"status"`
	Date            time.Time          `json:"date"`
}

// PaymentIntent is posted to /ssl-payment to open a gateway session.
type PaymentIntent struct {
	UserName        string          `json:"userName" validate:"required"`
	Email           string          `json:"email" validate:"required,email"`
	ProductID       string          `json:"productId" validate:"required"`
	ProductName     string          `json:"productName" validate:"required"`
	ProductCategory string          `json:"productCategory"`
	UnitPrice       decimal.Decimal `json:"unitPrice" validate:"gt=0"`
	Quantity        int             `json:"quantity" validate:"gte=1"`
	TotalAmount     decimal.Decimal `json:"totalAmount" validate:"gt=0"`
	Color           string          `json:"color"`
	Date            time.Time       `json:"date"`
	TransactionID   string          `json:"transactionID"`
	Status          string          `json:"status" validate:"eq=pending"`
}

type GatewayResponse struct {
	GatewayURL string `json:"gatewayUrl"`
}

// TransactionLookup is the body of GET /products/transaction/{trxid}.
type TransactionLookup struct {
	PaymentInfo Payment `json:"paymentInfo"`
	ProductInfo Product `json:"productInfo"`
}
