package handlers

import (
	"context"
	"time"

	"delivery-pricing/internal/models"

	"github.com/google/uuid"
)

// ----- Orders -----

type OrderService interface {
	CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	AddLineItem(ctx context.Context, orderID uuid.UUID, req *models.AddLineItemRequest) (*models.OrderLineItem, error)
	QuoteOrder(ctx context.Context, orderID uuid.UUID) (*models.PriceResult, error)
	FinalizeOrder(ctx context.Context, orderID uuid.UUID) (*models.PriceResult, error)
}

type EventProducer interface {
	PublishOrderFinalized(result *models.PriceResult) error
	PublishZoneUpdated(zoneID uuid.UUID, city string) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
}

// ----- Zones -----

type ZoneService interface {
	CreateZone(ctx context.Context, req *models.ZoneRequest) (*models.DeliveryZone, error)
	UpdateZone(ctx context.Context, id uuid.UUID, req *models.ZoneRequest) (*models.DeliveryZone, error)
	GetZone(ctx context.Context, id uuid.UUID) (*models.DeliveryZone, error)
	ListZones(ctx context.Context, city string) ([]models.DeliveryZone, error)
	CheckAddressInZone(ctx context.Context, lat, lon float64, city string) (*models.ZoneCheck, error)
}

// ----- Promotions -----

type PromoService interface {
	CreatePromotion(ctx context.Context, req *models.PromotionRequest) (*models.Promotion, error)
	GetPromotion(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	UpdatePromotion(ctx context.Context, id uuid.UUID, req *models.PromotionRequest) (*models.Promotion, error)
	DeletePromotion(ctx context.Context, id uuid.UUID) error
	ListPromotions(ctx context.Context, limit, offset int) ([]models.Promotion, error)
}

// ----- Health -----

type DBHealth interface {
	Health() error
}

type RedisHealth interface {
	Health(ctx context.Context) error
}
