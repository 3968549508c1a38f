package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/model"
)

// --- Auth ---

type SignupRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required,len=10,numeric"`
	Address  string `json:"address"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	User        UserResponse `json:"user"`
}

// --- Users ---

type UserResponse struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone"`
	Address string    `json:"address"`
	IsAdmin bool      `json:"is_admin"`
}

type UpdateUserRequest struct {
	Name    *string `json:"name" binding:"omitempty,min=1"`
	Phone   *string `json:"phone" binding:"omitempty,len=10,numeric"`
	Address *string `json:"address"`
	IsAdmin *bool   `json:"is_admin"`
}

// --- Product ---

type CreateProductRequest struct {
	Name          string              `json:"name" binding:"required"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	ImageURL      string              `json:"image_url" binding:"omitempty,url"`
	Category      string              `json:"category"`
	StockQuantity int                 `json:"stock_quantity" binding:"min=0"`
	Status        model.ProductStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}

type UpdateProductRequest struct {
	Name          *string              `json:"name" binding:"omitempty,min=1"`
	Description   *string              `json:"description"`
	Price         *decimal.Decimal     `json:"price"`
	ImageURL      *string              `json:"image_url" binding:"omitempty,url"`
	Category      *string              `json:"category"`
	StockQuantity *int                 `json:"stock_quantity" binding:"omitempty,min=0"`
	Status        *model.ProductStatus `json:"status" binding:"omitempty,oneof=active inactive"`
}

type ListProductsRequest struct {
	Page     int    `form:"page,default=1" binding:"min=1"`
	Limit    int    `form:"limit,default=20" binding:"min=1,max=100"`
	Search   string `form:"search"`
	Category string `form:"category"`
	Status   string `form:"status" binding:"omitempty,oneof=active inactive"`
	Sort     string `form:"sort,default=created_at" binding:"oneof=name price created_at stock_quantity"`
	Order    string `form:"order,default=desc" binding:"oneof=asc desc"`
}

type ProductResponse struct {
	ID            uuid.UUID           `json:"id"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	ImageURL      string              `json:"image_url"`
	Category      string              `json:"category"`
	StockQuantity int                 `json:"stock_quantity"`
	Status        model.ProductStatus `json:"status"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID    uuid.UUID        `json:"product_id" binding:"required"`
	Quantity     int              `json:"quantity" binding:"required,min=1"`
	SelectedSize string           `json:"selected_size"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit"`
	Unit         string           `json:"unit"`
}

// UpdateCartItemRequest removes the matching lines when Quantity <= 0.
type UpdateCartItemRequest struct {
	Quantity     int              `json:"quantity"`
	SelectedSize string           `json:"selected_size"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit"`
	Unit         string           `json:"unit"`
}

type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
}

type CartItemResponse struct {
	ProductID    uuid.UUID       `json:"product_id"`
	Product      ProductResponse `json:"product"`
	Quantity     int             `json:"quantity"`
	SelectedSize string          `json:"selected_size,omitempty"`
	PricePerUnit decimal.Decimal `json:"price_per_unit"`
	Unit         string          `json:"unit"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// --- Order ---

type OrderItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  int       `json:"quantity" binding:"required,min=1"`
}

// CreateOrderRequest checks out Items, or the caller's cart when Items is empty.
type CreateOrderRequest struct {
	DeliveryAddress string             `json:"delivery_address" binding:"required"`
	ReceiverPhone   string             `json:"receiver_phone" binding:"required,len=10,numeric"`
	Items           []OrderItemRequest `json:"items" binding:"omitempty,dive"`
}

type PricedOrderItemRequest struct {
	ProductID       uuid.UUID       `json:"product_id" binding:"required"`
	Quantity        int             `json:"quantity" binding:"required,min=1"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type AdminCreateOrderRequest struct {
	UserID          uuid.UUID                `json:"user_id" binding:"required"`
	DeliveryAddress string                   `json:"delivery_address" binding:"required"`
	ReceiverPhone   string                   `json:"receiver_phone" binding:"required,len=10,numeric"`
	Items           []PricedOrderItemRequest `json:"items" binding:"required,min=1,dive"`
	OrderStatus     model.OrderStatus        `json:"order_status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
	PaymentStatus   model.PaymentStatus      `json:"payment_status" binding:"omitempty,oneof=pending paid failed refunded"`
	TotalAmount     *decimal.Decimal         `json:"total_amount"`
}

// UpdateOrderRequest is a partial update; nil fields are left untouched.
type UpdateOrderRequest struct {
	OrderStatus     *model.OrderStatus       `json:"order_status" binding:"omitempty,oneof=pending processing shipped delivered cancelled"`
	PaymentStatus   *model.PaymentStatus     `json:"payment_status" binding:"omitempty,oneof=pending paid failed refunded"`
	DeliveryAddress *string                  `json:"delivery_address" binding:"omitempty,min=1"`
	ReceiverPhone   *string                  `json:"receiver_phone" binding:"omitempty,len=10,numeric"`
	Items           []PricedOrderItemRequest `json:"items" binding:"omitempty,dive"`
}

type ListOrdersRequest struct {
	Status string `form:"status"`
	UserID string `form:"user_id" binding:"omitempty,uuid"`
	From   string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To     string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Sort   string `form:"sort,default=desc" binding:"oneof=asc desc"`
}

type OrderResponse struct {
	ID              uuid.UUID           `json:"id"`
	UserID          uuid.UUID           `json:"user_id"`
	OrderDate       time.Time           `json:"order_date"`
	DeliveryAddress string              `json:"delivery_address"`
	ReceiverPhone   string              `json:"receiver_phone"`
	Items           []OrderItemResponse `json:"items"`
	TotalAmount     decimal.Decimal     `json:"total_amount"`
	OrderStatus     model.OrderStatus   `json:"order_status"`
	PaymentStatus   model.PaymentStatus `json:"payment_status"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID       uuid.UUID       `json:"product_id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}
