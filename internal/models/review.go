package models

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID      primitive.ObjectID `json:"_id,omitzero"`
	OrderID string             `json:"orderId" validate:"required"`
	Name    string             `json:"name"`
	Email   string             `json:"email" validate:"omitempty,email"`
	Photo   string             `json:"photo"`
	Rating  int                `json:"rating" validate:"required,min=1,max=5"`
	Review  string             `json:"review" validate:"required,min=3,max=1000"`
	Date    string             `json:"date"`
}
