// models.go
package model

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses. in_cart is the only non-terminal state: it is the one
// status the cart reconciler may overwrite or delete.
const (
	StatusInCart        = "in_cart"
	StatusPaid          = "paid"
	StatusFailed        = "failed"
	StatusAbandoned     = "abandoned"
	StatusFullRefund    = "full_refund"
	StatusPartialRefund = "partial_refund"
)

// Delivery statuses, meaningful only once the order is paid.
const (
	DeliveryReceived  = "received"
	DeliveryPacking   = "packing"
	DeliveryReady     = "ready"
	DeliveryShipped   = "shipped"
	DeliveryInTransit = "in_transit"
	DeliveryDelivered = "delivered"
	DeliveryReturned  = "returned"
)

var validStatuses = map[string]bool{
	StatusInCart:        true,
	StatusPaid:          true,
	StatusFailed:        true,
	StatusAbandoned:     true,
	StatusFullRefund:    true,
	StatusPartialRefund: true,
}

var validDeliveryStatuses = map[string]bool{
	DeliveryReceived:  true,
	DeliveryPacking:   true,
	DeliveryReady:     true,
	DeliveryShipped:   true,
	DeliveryInTransit: true,
	DeliveryDelivered: true,
	DeliveryReturned:  true,
}

func IsValidStatus(s string) bool {
	return validStatuses[s]
}

func IsValidDeliveryStatus(s string) bool {
	return validDeliveryStatuses[s]
}

// PaidDerived reports whether the status descends from a successful payment.
// Delivery updates are only allowed on these.
func PaidDerived(s string) bool {
	return s == StatusPaid || s == StatusFullRefund || s == StatusPartialRefund
}

type OrderItem struct {
	ProductID string  `bson:"product_id" json:"productId"`
	Name      string  `bson:"name" json:"name"`
	UnitPrice float64 `bson:"unit_price" json:"unitPrice"`
	Image     string  `bson:"image" json:"image"`
	Quantity  int     `bson:"quantity" json:"quantity"`
}

// PaymentDetails is present only once the order is paid.
type PaymentDetails struct {
	Channel   string    `bson:"channel" json:"channel"`
	PaymentID string    `bson:"payment_id" json:"paymentId"`
	PaidAt    time.Time `bson:"paid_at" json:"paidAt"`
}

type StatusRecord struct {
	Status    string    `bson:"status" json:"status"`
	Reason    string    `bson:"reason" json:"reason"`
	ActorID   string    `bson:"actor" json:"actorId"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

type Order struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Code           string             `bson:"code,omitempty" json:"code,omitempty"`
	UserID         string             `bson:"user_id" json:"userId"`
	Status         string             `bson:"status" json:"status"`
	DeliveryStatus string             `bson:"delivery_status,omitempty" json:"deliveryStatus,omitempty"`

	Items []OrderItem `bson:"items" json:"items"`

	// Monetary breakdown, recomputed on every reconciliation.
	Subtotal      float64 `bson:"subtotal" json:"subtotal"`
	Discount      float64 `bson:"discount" json:"discount"`
	CoinsUsed     int64   `bson:"coins_used" json:"coinsUsed"`
	CoinsDiscount float64 `bson:"coins_discount" json:"coinsDiscount"`
	Tax           float64 `bson:"tax" json:"tax"`
	Shipping      float64 `bson:"shipping" json:"shipping"`
	Total         float64 `bson:"total" json:"total"`

	RequiresInvoice bool `bson:"requires_invoice" json:"requiresInvoice"`

	Payment *PaymentDetails `bson:"payment,omitempty" json:"payment,omitempty"`
	History []StatusRecord  `bson:"history,omitempty" json:"history,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}
