package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DiscountType описывает тип акции
type DiscountType string

const (
	DiscountTypePercent      DiscountType = "PERCENT"
	DiscountTypeFixedAmount  DiscountType = "FIXED_AMOUNT"
	DiscountTypeFreeItem     DiscountType = "FREE_ITEM"
	DiscountTypeFreeDelivery DiscountType = "FREE_DELIVERY"
)

// Promotion представляет акцию
type Promotion struct {
	ID                uuid.UUID        `json:"id" db:"id"`
	Name              string           `json:"name" db:"name"`
	DiscountType      DiscountType     `json:"discount_type" db:"discount_type"`
	Value             decimal.Decimal  `json:"value" db:"value"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty" db:"min_order_amount"`
	MaxDiscount       *decimal.Decimal `json:"max_discount,omitempty" db:"max_discount"`
	UsageCount        int              `json:"usage_count" db:"usage_count"`
	MaxUses           *int             `json:"max_uses,omitempty" db:"max_uses"`
	ValidFrom         time.Time        `json:"valid_from" db:"valid_from"`
	ValidTo           time.Time        `json:"valid_to" db:"valid_to"`
	Active            bool             `json:"active" db:"is_active"`
	FreeItemID        *uuid.UUID       `json:"free_item_id,omitempty" db:"free_item_id"`
	FreeAddOnID       *uuid.UUID       `json:"free_add_on_id,omitempty" db:"free_add_on_id"`
	ApplicableItemIDs []uuid.UUID      `json:"applicable_item_ids" db:"applicable_item_ids"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at" db:"updated_at"`
}

// PromotionRequest описывает запрос на создание или обновление акции
type PromotionRequest struct {
	Name              string           `json:"name" validate:"required,max=200"`
	DiscountType      DiscountType     `json:"discount_type" validate:"required,oneof=PERCENT FIXED_AMOUNT FREE_ITEM FREE_DELIVERY"`
	Value             decimal.Decimal  `json:"value"`
	MinOrderAmount    *decimal.Decimal `json:"min_order_amount,omitempty"`
	MaxDiscount       *decimal.Decimal `json:"max_discount,omitempty"`
	MaxUses           *int             `json:"max_uses,omitempty" validate:"omitempty,gte=0"`
	ValidFrom         time.Time        `json:"valid_from" validate:"required"`
	ValidTo           time.Time        `json:"valid_to" validate:"required"`
	Active            *bool            `json:"active,omitempty"`
	FreeItemID        *uuid.UUID       `json:"free_item_id,omitempty"`
	FreeAddOnID       *uuid.UUID       `json:"free_add_on_id,omitempty"`
	ApplicableItemIDs []uuid.UUID      `json:"applicable_item_ids,omitempty"`
}
