package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/database"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/metrics"
	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	orderColumns = `id, customer_name, customer_phone, delivery_street, delivery_city, delivery_lat, delivery_lon,
		promotion_id, zone_id, subtotal, delivery_fee, discount_amount, discounted_total, applied_promotion_id,
		pricing_state, created_at, updated_at, finalized_at`
	orderItemColumns = `id, order_id, menu_item_id, size_option_id, quantity, add_on_ids, is_free, promotion_id,
		free_add_on_id, created_at`
)

// AddressGeocoder определяет координаты адреса доставки.
type AddressGeocoder interface {
	GeocodeAddress(ctx context.Context, addr models.DeliveryAddress) (*Coordinates, error)
}

// OrderService представляет сервис для работы с заказами
type OrderService struct {
	db       *database.DB
	log      *logger.Logger
	pricing  *PricingService
	promo    *PromoService
	catalog  *CatalogService
	zones    *ZoneService
	geocoder AddressGeocoder
	metrics  *metrics.PricingMetrics
	now      func() time.Time
}

// NewOrderService создает новый экземпляр сервиса заказов. geocoder и metrics могут быть nil.
func NewOrderService(db *database.DB, log *logger.Logger, pricing *PricingService, promo *PromoService, catalog *CatalogService, zones *ZoneService, geocoder AddressGeocoder, m *metrics.PricingMetrics) *OrderService {
	return &OrderService{
		db:       db,
		log:      log,
		pricing:  pricing,
		promo:    promo,
		catalog:  catalog,
		zones:    zones,
		geocoder: geocoder,
		metrics:  m,
		now:      time.Now,
	}
}

// CreateOrder создает пустой заказ в состоянии UNPRICED.
// Без координат адрес геокодируется; неудача оставляет координаты пустыми.
func (s *OrderService) CreateOrder(ctx context.Context, req *models.CreateOrderRequest) (*models.Order, error) {
	if (req.Lat == nil) != (req.Lon == nil) {
		return nil, apperror.Validation("lat and lon must be provided together", nil)
	}

	now := s.now()
	order := &models.Order{
		ID:            uuid.New(),
		CustomerName:  strings.TrimSpace(req.CustomerName),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		Address: models.DeliveryAddress{
			Street: strings.TrimSpace(req.Street),
			City:   strings.TrimSpace(req.City),
			Lat:    req.Lat,
			Lon:    req.Lon,
		},
		Items:           []models.OrderLineItem{},
		PromotionID:     req.PromotionID,
		Subtotal:        decimal.Zero,
		DeliveryFee:     decimal.Zero,
		DiscountAmount:  decimal.Zero,
		DiscountedTotal: decimal.Zero,
		PricingState:    models.PricingStateUnpriced,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if order.Address.Lat == nil && s.geocoder != nil {
		coords, err := s.geocoder.GeocodeAddress(ctx, order.Address)
		if err != nil {
			if !errors.Is(err, ErrGeocoderDisabled) {
				s.log.WithError(err).WithFields(logrus.Fields{
					"city":   order.Address.City,
					"street": order.Address.Street,
				}).Warn("Geocoding failed, address stays unresolved")
			}
		} else {
			order.Address.Lat = &coords.Lat
			order.Address.Lon = &coords.Lon
		}
	}

	query := `
		INSERT INTO orders (id, customer_name, customer_phone, delivery_street, delivery_city, delivery_lat, delivery_lon,
			promotion_id, subtotal, delivery_fee, discount_amount, discounted_total, pricing_state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, 0, 0, 0, $9, $10, $11)
	`
	_, err := s.db.ExecContext(ctx, query, order.ID, order.CustomerName, order.CustomerPhone,
		order.Address.Street, order.Address.City, order.Address.Lat, order.Address.Lon, order.PromotionID,
		order.PricingState, order.CreatedAt, order.UpdatedAt)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return nil, apperror.Validation("promotion does not exist", err)
		}
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id": order.ID,
		"city":     order.Address.City,
		"resolved": order.Address.Lat != nil,
	}).Info("Order created")
	return order, nil
}

// AddLineItem добавляет позицию, проверенную по каталогу. Финализированный заказ менять нельзя.
func (s *OrderService) AddLineItem(ctx context.Context, orderID uuid.UUID, req *models.AddLineItemRequest) (*models.OrderLineItem, error) {
	catalog, err := s.catalog.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	menuItemID := req.MenuItemID
	addOnIDs := req.AddOnIDs
	if addOnIDs == nil {
		addOnIDs = []uuid.UUID{}
	}
	line := &models.OrderLineItem{
		ID:           uuid.New(),
		OrderID:      orderID,
		MenuItemID:   &menuItemID,
		SizeOptionID: req.SizeOptionID,
		Quantity:     req.Quantity,
		AddOnIDs:     addOnIDs,
		CreatedAt:    s.now(),
	}
	if _, err := PriceOrderLine(line, catalog); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var state models.PricingState
	if err := tx.QueryRowContext(ctx, `SELECT pricing_state FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("order not found", err)
		}
		return nil, fmt.Errorf("failed to lock order: %w", err)
	}
	if state == models.PricingStateFinalized {
		return nil, apperror.ConcurrencyConflict("order is already finalized", nil)
	}

	if err := insertLineItem(ctx, tx, line); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE orders SET updated_at = $1 WHERE id = $2`, line.CreatedAt, orderID); err != nil {
		return nil, fmt.Errorf("failed to touch order: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"order_id":     orderID,
		"menu_item_id": menuItemID,
		"quantity":     line.Quantity,
	}).Debug("Line item added")
	return line, nil
}

// GetOrder получает заказ по ID вместе с позициями
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.loadOrder(ctx, s.db, id, false)
}

// QuoteOrder рассчитывает заказ без блокировок и записи.
// Для финализированного заказа возвращает сохранённый итог.
func (s *OrderService) QuoteOrder(ctx context.Context, id uuid.UUID) (*models.PriceResult, error) {
	order, err := s.loadOrder(ctx, s.db, id, false)
	if err != nil {
		return nil, err
	}
	if order.PricingState == models.PricingStateFinalized {
		return resultFromOrder(order), nil
	}

	now := s.now()
	in := &PricingInput{Order: order, Now: now}
	if order.PromotionID != nil {
		explicit, err := s.promo.GetPromotion(ctx, *order.PromotionID)
		if err != nil && !apperror.Is(err, apperror.KindNotFound) {
			return nil, err
		}
		in.Explicit = explicit
	} else if in.Candidates, err = s.promo.listActivePromotions(ctx, s.db, now); err != nil {
		return nil, err
	}

	if in.Catalog, err = s.catalog.Catalog(ctx); err != nil {
		return nil, err
	}
	if in.Zones, err = s.zones.ZonesForCity(ctx, order.Address.City); err != nil {
		return nil, err
	}

	outcome, err := s.pricing.CalculateOrderPricing(in)
	if err != nil {
		return nil, err
	}
	return resultFromOutcome(order.ID, outcome), nil
}

// FinalizeOrder рассчитывает и фиксирует заказ в одной транзакции:
// бесплатная позиция, счётчик акции и итог заказа пишутся вместе или не пишутся вовсе.
func (s *OrderService) FinalizeOrder(ctx context.Context, id uuid.UUID) (result *models.PriceResult, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveFinalize(finalizeResult(err), started) }()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	order, err := s.loadOrder(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}
	if order.PricingState == models.PricingStateFinalized {
		return nil, apperror.ConcurrencyConflict("order is already finalized", nil)
	}

	now := s.now()
	in := &PricingInput{Order: order, Now: now}
	if order.PromotionID != nil {
		if in.Explicit, err = s.promo.lockPromotion(ctx, tx, *order.PromotionID); err != nil {
			return nil, err
		}
	} else if in.Candidates, err = s.promo.listActivePromotions(ctx, tx, now); err != nil {
		return nil, err
	}
	if in.Catalog, err = s.catalog.loadCatalog(ctx, tx); err != nil {
		return nil, err
	}
	if in.Zones, err = s.zones.zonesForCity(ctx, tx, order.Address.City); err != nil {
		return nil, err
	}

	outcome, err := s.pricing.CalculateOrderPricing(in)
	if err != nil {
		return nil, err
	}

	if outcome.FreeLine != nil {
		if err := s.insertFreeLine(ctx, tx, outcome.FreeLine, now); err != nil {
			return nil, err
		}
	}
	if outcome.Promotion != nil {
		if err := s.promo.incrementUsage(ctx, tx, outcome.Promotion.ID); err != nil {
			return nil, err
		}
	}

	result = resultFromOutcome(order.ID, outcome)
	result.State = models.PricingStateFinalized

	query := `
		UPDATE orders
		SET zone_id = $1, subtotal = $2, delivery_fee = $3, discount_amount = $4, discounted_total = $5,
			applied_promotion_id = $6, pricing_state = $7, finalized_at = $8, updated_at = $8
		WHERE id = $9 AND pricing_state <> 'FINALIZED'
	`
	res, err := tx.ExecContext(ctx, query, result.ZoneID, result.Subtotal, result.DeliveryFee, result.Discount,
		result.DiscountedTotal, result.AppliedPromotionID, result.State, now, order.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to save order pricing: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.ConcurrencyConflict("order was finalized concurrently", nil)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	fields := logrus.Fields{
		"order_id": order.ID,
		"zone":     result.ZoneName,
		"subtotal": result.Subtotal.String(),
		"total":    result.DiscountedTotal.String(),
	}
	if outcome.Promotion != nil {
		fields["promotion_id"] = outcome.Promotion.ID
		s.metrics.PromotionApplied(string(outcome.Promotion.DiscountType))
	}
	s.log.WithFields(fields).Info("Order finalized")

	return result, nil
}

// insertFreeLine вставляет бесплатную позицию, только если такой ещё нет.
func (s *OrderService) insertFreeLine(ctx context.Context, tx *sql.Tx, line *models.OrderLineItem, now time.Time) error {
	var exists bool
	query := `
		SELECT EXISTS (
			SELECT 1 FROM order_items
			WHERE order_id = $1 AND promotion_id = $2 AND is_free
				AND menu_item_id IS NOT DISTINCT FROM $3 AND free_add_on_id IS NOT DISTINCT FROM $4
		)
	`
	if err := tx.QueryRowContext(ctx, query, line.OrderID, line.PromotionID, line.MenuItemID, line.FreeAddOnID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check free line item: %w", err)
	}
	if exists {
		return nil
	}

	line.ID = uuid.New()
	line.CreatedAt = now
	return insertLineItem(ctx, tx, line)
}

func insertLineItem(ctx context.Context, tx *sql.Tx, line *models.OrderLineItem) error {
	query := `
		INSERT INTO order_items (id, order_id, menu_item_id, size_option_id, quantity, add_on_ids, is_free,
			promotion_id, free_add_on_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.ExecContext(ctx, query, line.ID, line.OrderID, line.MenuItemID, line.SizeOptionID, line.Quantity,
		uuidArray(line.AddOnIDs), line.IsFree, line.PromotionID, line.FreeAddOnID, line.CreatedAt)
	if err != nil {
		if pqCode(err) == pqUniqueViolation {
			return apperror.ConcurrencyConflict("free line item already exists", err)
		}
		return fmt.Errorf("failed to insert order item: %w", err)
	}
	return nil
}

// loadOrder читает заказ и его позиции; forUpdate блокирует строку заказа.
func (s *OrderService) loadOrder(ctx context.Context, q queryer, id uuid.UUID, forUpdate bool) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	order, err := scanOrder(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("order not found", err)
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	items, err := s.loadOrderItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

func (s *OrderService) loadOrderItems(ctx context.Context, q queryer, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	query := `SELECT ` + orderItemColumns + ` FROM order_items WHERE order_id = $1 ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	defer rows.Close()

	items := make([]models.OrderLineItem, 0)
	for rows.Next() {
		var (
			item         models.OrderLineItem
			menuItemID   uuid.NullUUID
			sizeOptionID uuid.NullUUID
			promotionID  uuid.NullUUID
			freeAddOnID  uuid.NullUUID
		)
		if err := rows.Scan(&item.ID, &item.OrderID, &menuItemID, &sizeOptionID, &item.Quantity,
			pq.Array(&item.AddOnIDs), &item.IsFree, &promotionID, &freeAddOnID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		item.MenuItemID = uuidPtr(menuItemID)
		item.SizeOptionID = uuidPtr(sizeOptionID)
		item.PromotionID = uuidPtr(promotionID)
		item.FreeAddOnID = uuidPtr(freeAddOnID)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate order items: %w", err)
	}
	return items, nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var (
		order       models.Order
		lat         sql.NullFloat64
		lon         sql.NullFloat64
		promotionID uuid.NullUUID
		zoneID      uuid.NullUUID
		appliedID   uuid.NullUUID
		finalizedAt sql.NullTime
	)
	if err := row.Scan(&order.ID, &order.CustomerName, &order.CustomerPhone, &order.Address.Street,
		&order.Address.City, &lat, &lon, &promotionID, &zoneID, &order.Subtotal, &order.DeliveryFee,
		&order.DiscountAmount, &order.DiscountedTotal, &appliedID, &order.PricingState, &order.CreatedAt,
		&order.UpdatedAt, &finalizedAt); err != nil {
		return nil, err
	}
	order.Address.Lat = floatPtr(lat)
	order.Address.Lon = floatPtr(lon)
	order.PromotionID = uuidPtr(promotionID)
	order.ZoneID = uuidPtr(zoneID)
	order.AppliedPromotionID = uuidPtr(appliedID)
	order.FinalizedAt = timePtr(finalizedAt)
	return &order, nil
}

func resultFromOutcome(orderID uuid.UUID, outcome *PricingOutcome) *models.PriceResult {
	result := &models.PriceResult{
		OrderID:         orderID,
		Subtotal:        outcome.Subtotal,
		DeliveryFee:     outcome.DeliveryFee,
		Discount:        outcome.Discount,
		DiscountedTotal: outcome.Total,
		State:           outcome.State,
		FreeLine:        outcome.FreeLine,
	}
	if outcome.Zone != nil {
		zoneID := outcome.Zone.ID
		result.ZoneID = &zoneID
		result.ZoneName = outcome.Zone.Name
	}
	if outcome.Promotion != nil {
		promoID := outcome.Promotion.ID
		result.AppliedPromotionID = &promoID
	}
	return result
}

func resultFromOrder(order *models.Order) *models.PriceResult {
	return &models.PriceResult{
		OrderID:            order.ID,
		Subtotal:           order.Subtotal,
		DeliveryFee:        order.DeliveryFee,
		Discount:           order.DiscountAmount,
		DiscountedTotal:    order.DiscountedTotal,
		AppliedPromotionID: order.AppliedPromotionID,
		ZoneID:             order.ZoneID,
		State:              order.PricingState,
	}
}

func finalizeResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultOK
	case apperror.Is(err, apperror.KindConflict):
		return metrics.ResultConflict
	case apperror.Is(err, apperror.KindValidation), apperror.Is(err, apperror.KindUnprocessable), apperror.Is(err, apperror.KindNotFound):
		return metrics.ResultRejected
	default:
		return metrics.ResultError
	}
}
