package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType тип события Kafka
type EventType string

const (
	EventTypeOrderFinalized EventType = "order.finalized"
	EventTypeZoneUpdated    EventType = "zone.updated"
)

// Event конверт события Kafka
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// OrderFinalizedData данные события order.finalized
type OrderFinalizedData struct {
	OrderID            uuid.UUID       `json:"order_id"`
	ZoneID             *uuid.UUID      `json:"zone_id,omitempty"`
	Subtotal           decimal.Decimal `json:"subtotal"`
	DeliveryFee        decimal.Decimal `json:"delivery_fee"`
	Discount           decimal.Decimal `json:"discount"`
	DiscountedTotal    decimal.Decimal `json:"discounted_total"`
	AppliedPromotionID *uuid.UUID      `json:"applied_promotion_id,omitempty"`
}

// ZoneUpdatedData данные события zone.updated
type ZoneUpdatedData struct {
	ZoneID uuid.UUID `json:"zone_id"`
	City   string    `json:"city"`
}
