package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingState состояние расчета заказа
type PricingState string

const (
	PricingStateUnpriced          PricingState = "UNPRICED"
	PricingStateZoneResolved      PricingState = "ZONE_RESOLVED"
	PricingStatePromotionResolved PricingState = "PROMOTION_RESOLVED"
	PricingStateFinalized         PricingState = "FINALIZED"
)

// DeliveryAddress адрес доставки; координаты могут быть не определены
type DeliveryAddress struct {
	Street string   `json:"street" db:"delivery_street"`
	City   string   `json:"city" db:"delivery_city"`
	Lat    *float64 `json:"lat,omitempty" db:"delivery_lat"`
	Lon    *float64 `json:"lon,omitempty" db:"delivery_lon"`
}

// Order представляет заказ в системе
type Order struct {
	ID                 uuid.UUID       `json:"id" db:"id"`
	CustomerName       string          `json:"customer_name" db:"customer_name"`
	CustomerPhone      string          `json:"customer_phone" db:"customer_phone"`
	Address            DeliveryAddress `json:"delivery_address"`
	Items              []OrderLineItem `json:"items"`
	PromotionID        *uuid.UUID      `json:"promotion_id,omitempty" db:"promotion_id"`
	ZoneID             *uuid.UUID      `json:"zone_id,omitempty" db:"zone_id"`
	Subtotal           decimal.Decimal `json:"subtotal" db:"subtotal"`
	DeliveryFee        decimal.Decimal `json:"delivery_fee" db:"delivery_fee"`
	DiscountAmount     decimal.Decimal `json:"discount_amount" db:"discount_amount"`
	DiscountedTotal    decimal.Decimal `json:"discounted_total" db:"discounted_total"`
	AppliedPromotionID *uuid.UUID      `json:"applied_promotion_id,omitempty" db:"applied_promotion_id"`
	PricingState       PricingState    `json:"pricing_state" db:"pricing_state"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
	FinalizedAt        *time.Time      `json:"finalized_at,omitempty" db:"finalized_at"`
}

// OrderLineItem позиция заказа. У бесплатной добавки MenuItemID пустой.
type OrderLineItem struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	OrderID      uuid.UUID   `json:"order_id" db:"order_id"`
	MenuItemID   *uuid.UUID  `json:"menu_item_id,omitempty" db:"menu_item_id"`
	SizeOptionID *uuid.UUID  `json:"size_option_id,omitempty" db:"size_option_id"`
	Quantity     int         `json:"quantity" db:"quantity"`
	AddOnIDs     []uuid.UUID `json:"add_on_ids" db:"add_on_ids"`
	IsFree       bool        `json:"is_free" db:"is_free"`
	PromotionID  *uuid.UUID  `json:"promotion_id,omitempty" db:"promotion_id"`
	FreeAddOnID  *uuid.UUID  `json:"free_add_on_id,omitempty" db:"free_add_on_id"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// CreateOrderRequest представляет запрос на создание заказа
type CreateOrderRequest struct {
	CustomerName  string     `json:"customer_name" validate:"required,max=200"`
	CustomerPhone string     `json:"customer_phone" validate:"required,max=32"`
	Street        string     `json:"street" validate:"required"`
	City          string     `json:"city" validate:"required,max=100"`
	Lat           *float64   `json:"lat,omitempty" validate:"omitempty,latitude"`
	Lon           *float64   `json:"lon,omitempty" validate:"omitempty,longitude"`
	PromotionID   *uuid.UUID `json:"promotion_id,omitempty"`
}

// AddLineItemRequest представляет запрос на добавление позиции в заказ
type AddLineItemRequest struct {
	MenuItemID   uuid.UUID   `json:"menu_item_id" validate:"required"`
	SizeOptionID *uuid.UUID  `json:"size_option_id,omitempty"`
	Quantity     int         `json:"quantity"`
	AddOnIDs     []uuid.UUID `json:"add_on_ids,omitempty"`
}

// PriceResult итог расчета заказа
type PriceResult struct {
	OrderID            uuid.UUID       `json:"order_id"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DeliveryFee        decimal.Decimal `json:"delivery_fee"`
	Discount           decimal.Decimal `json:"discount"`
	DiscountedTotal    decimal.Decimal `json:"discounted_total"`
	AppliedPromotionID *uuid.UUID      `json:"applied_promotion_id"`
	ZoneID             *uuid.UUID      `json:"zone_id,omitempty"`
	ZoneName           string          `json:"zone_name,omitempty"`
	State              PricingState    `json:"state"`
	FreeLine           *OrderLineItem  `json:"free_line,omitempty"`
}
