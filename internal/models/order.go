package models

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusSuccess   OrderStatus = "success"
	OrderStatusDelivered OrderStatus = "delivered"
)

type Order struct {
	ID              primitive.ObjectID `json:"_id,omitzero"`
	ProductID       string             `json:"productId"`
	ProductName     string             `json:"productName"`
	ProductImage    string             `json:"productImage"`
	ProductCategory string             `json:"productCategory"`
	Name            string             `json:"name"`
	Email           string             `json:"email"`
	Quantity        int                `json:"quantity"`
	Color           string             `json:"color"`
	UnitPrice       decimal.Decimal    `json:"unitPrice"`
	TotalAmount     decimal.Decimal    `json:"totalAmount"`
	TransactionID   string             `json:"transactionID"`
	Status          OrderStatus        `json:"status"`
	Date            time.Time          `json:"date"`
}

// CanTransition reports whether status may move from s to next.
// Orders only move forward: pending -> success -> delivered.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	rank := map[OrderStatus]int{
		OrderStatusPending:   0,
		OrderStatusSuccess:   1,
		OrderStatusDelivered: 2,
	}
	from, ok := rank[s]
	if !ok {
		return false
	}
	to, ok := rank[next]
	return ok && to > from
}

type OrderStatusUpdate struct {
	Status OrderStatus `json:"status" validate:"required,oneof=pending success delivered"`
}
