package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type User struct {
	ID        uuid.UUID
	Name      string
	Phone     string
	Address   string
	Password  string
	IsAdmin   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusInactive ProductStatus = "inactive"
)

func (s ProductStatus) Valid() bool {
	return s == ProductStatusActive || s == ProductStatusInactive
}

type Product struct {
	ID            uuid.UUID
	Name          string
	Description   string
	Price         decimal.Decimal
	ImageURL      string
	Category      string
	StockQuantity int
	Status        ProductStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Cart is stored as a single document per user; Items keeps insertion order.
type Cart struct {
	UserID    uuid.UUID
	Items     []CartItem
	UpdatedAt time.Time
}

type CartItem struct {
	ProductID    uuid.UUID        `json:"product_id"`
	Quantity     int              `json:"quantity"`
	SelectedSize string           `json:"selected_size,omitempty"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit,omitempty"`
	Unit         string           `json:"unit,omitempty"`
}

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// orderTransitions lists the statuses reachable from each order status.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Active reports whether the order still moves through fulfilment.
func (s OrderStatus) Active() bool {
	_, ok := orderTransitions[s]
	return ok
}

// CanTransitionTo reports whether an admin may move an order from s to next.
// Re-applying the current status is allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	for _, to := range orderTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:  {PaymentStatusPending, PaymentStatusPaid},
	PaymentStatusPaid:    {PaymentStatusRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	for _, to := range paymentTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Order struct {
	ID              uuid.UUID
	UserID          uuid.UUID
	OrderDate       time.Time
	DeliveryAddress string
	ReceiverPhone   string
	Items           []OrderItem
	TotalAmount     decimal.Decimal
	OrderStatus     OrderStatus
	PaymentStatus   PaymentStatus
	UpdatedAt       time.Time
}

type OrderItem struct {
	ProductID       uuid.UUID
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// OrderTotal sums price_at_purchase × quantity over items.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.PriceAtPurchase.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// OrderFilter narrows admin order listings. Zero values mean "no constraint".
type OrderFilter struct {
	Statuses  []OrderStatus
	UserID    *uuid.UUID
	From      *time.Time
	To        *time.Time
	Ascending bool
}

type ProductFilter struct {
	Category string
	Status   ProductStatus
	Search   string
	Sort     string
	Order    string
	Limit    int
	Offset   int
}

type OrderEventType string

const (
	OrderEventCreated  OrderEventType = "order.created"
	OrderEventRepeated OrderEventType = "order.repeated"
	OrderEventUpdated  OrderEventType = "order.updated"
	OrderEventDeleted  OrderEventType = "order.deleted"
)

type OrderEvent struct {
	ID         string         `json:"id"`
	Type       OrderEventType `json:"type"`
	OrderID    uuid.UUID      `json:"order_id"`
	UserID     uuid.UUID      `json:"user_id"`
	ProductIDs []uuid.UUID    `json:"product_ids"`
	OccurredAt time.Time      `json:"occurred_at"`
}
