package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

var OrderStatuses = []string{
	OrderStatusPending,
	OrderStatusConfirmed,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func IsValidOrderStatus(status string) bool {
	for _, s := range OrderStatuses {
		if s == status {
			return true
		}
	}
	return false
}

// OrderItem is a snapshot of the product at checkout time.
type OrderItem struct {
	ProductID   primitive.ObjectID `bson:"productId" json:"productId"`
	ProductCode string             `bson:"productCode" json:"productCode"`
	Name        string             `bson:"name" json:"name"`
	Image       string             `bson:"image,omitempty" json:"image,omitempty"`
	UnitPrice   float64            `bson:"unitPrice" json:"unitPrice"`
	Quantity    int                `bson:"quantity" json:"quantity"`
	LineTotal   float64            `bson:"lineTotal" json:"lineTotal"`
}

type ShippingDetails struct {
	FullName    string `bson:"fullName" json:"fullName"`
	Phone       string `bson:"phone" json:"phone"`
	Email       string `bson:"email,omitempty" json:"email,omitempty"`
	AddressLine string `bson:"addressLine" json:"addressLine"`
	City        string `bson:"city" json:"city"`
	PostalCode  string `bson:"postalCode" json:"postalCode"`
}

type StatusChange struct {
	Status    string             `bson:"status" json:"status"`
	ChangedBy primitive.ObjectID `bson:"changedBy" json:"changedBy"`
	Role      string             `bson:"role" json:"role"`
	ChangedAt time.Time          `bson:"changedAt" json:"changedAt"`
}

// Order is the persisted user order document.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber   string             `bson:"orderNumber" json:"orderNumber"`
	UserID        primitive.ObjectID `bson:"userId" json:"userId"`
	Items         []OrderItem        `bson:"items" json:"items"`
	Shipping      ShippingDetails    `bson:"shipping" json:"shipping"`
	Billing       ShippingDetails    `bson:"billing" json:"billing"`
	PaymentMethod string             `bson:"paymentMethod" json:"paymentMethod"`
	Subtotal      float64            `bson:"subtotal" json:"subtotal"`
	ShippingFee   float64            `bson:"shippingFee" json:"shippingFee"`
	Total         float64            `bson:"total" json:"total"`
	Status        string             `bson:"status" json:"status"`
	StatusHistory []StatusChange     `bson:"statusHistory" json:"statusHistory"`
	StockRestored bool               `bson:"stockRestored,omitempty" json:"stockRestored,omitempty"`
	Note          string             `bson:"note,omitempty" json:"note,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}
