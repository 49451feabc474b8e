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
	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const promotionColumns = `id, name, discount_type, value, min_order_amount, max_discount, usage_count, max_uses,
		valid_from, valid_to, is_active, free_item_id, free_add_on_id, applicable_item_ids, created_at, updated_at`

// PromoService управляет акциями и учётом их использования.
type PromoService struct {
	db  *database.DB
	log *logger.Logger
}

// NewPromoService создаёт сервис акций.
func NewPromoService(db *database.DB, log *logger.Logger) *PromoService {
	return &PromoService{
		db:  db,
		log: log,
	}
}

// CreatePromotion создаёт новую акцию.
func (s *PromoService) CreatePromotion(ctx context.Context, req *models.PromotionRequest) (*models.Promotion, error) {
	if err := validatePromotionPayload(req); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	now := time.Now()
	promo := promotionFromRequest(req)
	promo.ID = uuid.New()
	promo.CreatedAt = now
	promo.UpdatedAt = now

	query := `
		INSERT INTO promotions (id, name, discount_type, value, min_order_amount, max_discount, usage_count, max_uses,
			valid_from, valid_to, is_active, free_item_id, free_add_on_id, applicable_item_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := s.db.ExecContext(ctx, query, promo.ID, promo.Name, promo.DiscountType, promo.Value,
		promo.MinOrderAmount, promo.MaxDiscount, promo.MaxUses, promo.ValidFrom, promo.ValidTo, promo.Active,
		promo.FreeItemID, promo.FreeAddOnID, uuidArray(promo.ApplicableItemIDs), promo.CreatedAt, promo.UpdatedAt)
	if err != nil {
		if mapped := mapPromotionWriteError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to create promotion: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"promotion_id":  promo.ID,
		"discount_type": promo.DiscountType,
	}).Info("Promotion created")
	return promo, nil
}

// UpdatePromotion обновляет параметры акции; счётчик использований не меняется.
func (s *PromoService) UpdatePromotion(ctx context.Context, id uuid.UUID, req *models.PromotionRequest) (*models.Promotion, error) {
	if err := validatePromotionPayload(req); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}
	promo := promotionFromRequest(req)

	query := `
		UPDATE promotions
		SET name = $1, discount_type = $2, value = $3, min_order_amount = $4, max_discount = $5, max_uses = $6,
			valid_from = $7, valid_to = $8, is_active = $9, free_item_id = $10, free_add_on_id = $11,
			applicable_item_ids = $12, updated_at = $13
		WHERE id = $14
	`
	result, err := s.db.ExecContext(ctx, query, promo.Name, promo.DiscountType, promo.Value, promo.MinOrderAmount,
		promo.MaxDiscount, promo.MaxUses, promo.ValidFrom, promo.ValidTo, promo.Active, promo.FreeItemID,
		promo.FreeAddOnID, uuidArray(promo.ApplicableItemIDs), time.Now(), id)
	if err != nil {
		if mapped := mapPromotionWriteError(err); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("failed to update promotion: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("promotion not found", nil)
	}

	return s.GetPromotion(ctx, id)
}

// DeletePromotion удаляет акцию, если на неё не ссылаются заказы.
func (s *PromoService) DeletePromotion(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM promotions WHERE id = $1", id)
	if err != nil {
		if pqCode(err) == pqForeignKeyViolation {
			return apperror.Conflict("promotion is referenced by orders", err)
		}
		return fmt.Errorf("failed to delete promotion: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.NotFound("promotion not found", nil)
	}
	return nil
}

// GetPromotion возвращает акцию по ID.
func (s *PromoService) GetPromotion(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1`
	promo, err := scanPromotion(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("promotion not found", err)
		}
		return nil, fmt.Errorf("failed to get promotion: %w", err)
	}
	return promo, nil
}

// ListPromotions возвращает список акций.
func (s *PromoService) ListPromotions(ctx context.Context, limit, offset int) ([]models.Promotion, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + promotionColumns + `
		FROM promotions
		ORDER BY created_at DESC, id
		LIMIT $1 OFFSET $2`
	return s.queryPromotions(ctx, s.db, query, limit, offset)
}

// listActivePromotions возвращает кандидатов для автоподбора в порядке создания.
func (s *PromoService) listActivePromotions(ctx context.Context, q queryer, now time.Time) ([]models.Promotion, error) {
	query := `SELECT ` + promotionColumns + `
		FROM promotions
		WHERE is_active AND valid_from <= $1 AND valid_to >= $1
			AND (max_uses IS NULL OR usage_count < max_uses)
		ORDER BY created_at, id`
	return s.queryPromotions(ctx, q, query, now)
}

// lockPromotion блокирует строку акции до конца транзакции. Отсутствующая акция дает nil.
func (s *PromoService) lockPromotion(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*models.Promotion, error) {
	query := `SELECT ` + promotionColumns + ` FROM promotions WHERE id = $1 FOR UPDATE`
	promo, err := scanPromotion(tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to lock promotion: %w", err)
	}
	return promo, nil
}

// incrementUsage атомарно увеличивает счётчик, не превышая max_uses.
func (s *PromoService) incrementUsage(ctx context.Context, tx *sql.Tx, id uuid.UUID) error {
	query := `
		UPDATE promotions
		SET usage_count = usage_count + 1, updated_at = $1
		WHERE id = $2 AND (max_uses IS NULL OR usage_count < max_uses)
	`
	result, err := tx.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update promotion usage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return apperror.ConcurrencyConflict("promotion usage limit reached concurrently", nil)
	}
	return nil
}

func (s *PromoService) queryPromotions(ctx context.Context, q queryer, query string, args ...interface{}) ([]models.Promotion, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list promotions: %w", err)
	}
	defer rows.Close()

	promos := make([]models.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan promotion: %w", err)
		}
		promos = append(promos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate promotions: %w", err)
	}
	return promos, nil
}

func scanPromotion(row rowScanner) (*models.Promotion, error) {
	var (
		p           models.Promotion
		minOrder    decimal.NullDecimal
		maxDiscount decimal.NullDecimal
		maxUses     sql.NullInt64
		freeItemID  uuid.NullUUID
		freeAddOnID uuid.NullUUID
	)
	if err := row.Scan(&p.ID, &p.Name, &p.DiscountType, &p.Value, &minOrder, &maxDiscount, &p.UsageCount, &maxUses,
		&p.ValidFrom, &p.ValidTo, &p.Active, &freeItemID, &freeAddOnID, pq.Array(&p.ApplicableItemIDs),
		&p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.MinOrderAmount = decimalPtr(minOrder)
	p.MaxDiscount = decimalPtr(maxDiscount)
	p.MaxUses = intPtr(maxUses)
	p.FreeItemID = uuidPtr(freeItemID)
	p.FreeAddOnID = uuidPtr(freeAddOnID)
	return &p, nil
}

func promotionFromRequest(req *models.PromotionRequest) *models.Promotion {
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	promo := &models.Promotion{
		Name:              strings.TrimSpace(req.Name),
		DiscountType:      req.DiscountType,
		Value:             round2(req.Value),
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscount:       req.MaxDiscount,
		MaxUses:           req.MaxUses,
		ValidFrom:         req.ValidFrom,
		ValidTo:           req.ValidTo,
		Active:            active,
		FreeItemID:        req.FreeItemID,
		FreeAddOnID:       req.FreeAddOnID,
		ApplicableItemIDs: req.ApplicableItemIDs,
	}
	if promo.ApplicableItemIDs == nil {
		promo.ApplicableItemIDs = []uuid.UUID{}
	}
	return promo
}

func mapPromotionWriteError(err error) error {
	switch pqCode(err) {
	case pqUniqueViolation:
		return apperror.Conflict("promotion already exists", err)
	case pqForeignKeyViolation:
		return apperror.Validation("free item or add-on does not exist", err)
	case pqCheckViolation:
		return apperror.Validation("promotion violates usage or validity constraints", err)
	}
	return nil
}

func validatePromotionPayload(req *models.PromotionRequest) error {
	switch req.DiscountType {
	case models.DiscountTypePercent:
		if !req.Value.IsPositive() || req.Value.GreaterThan(hundred) {
			return fmt.Errorf("percent value must be in (0, 100]")
		}
	case models.DiscountTypeFixedAmount:
		if req.Value.IsNegative() {
			return fmt.Errorf("value must be non-negative for fixed discount")
		}
	case models.DiscountTypeFreeItem:
		if (req.FreeItemID == nil) == (req.FreeAddOnID == nil) {
			return fmt.Errorf("free item promotion needs exactly one of free_item_id or free_add_on_id")
		}
	case models.DiscountTypeFreeDelivery:
		// value не используется
	default:
		return fmt.Errorf("invalid discount_type")
	}

	if req.DiscountType != models.DiscountTypeFreeItem && (req.FreeItemID != nil || req.FreeAddOnID != nil) {
		return fmt.Errorf("free_item_id and free_add_on_id are only allowed for FREE_ITEM")
	}
	if req.MinOrderAmount != nil && req.MinOrderAmount.IsNegative() {
		return fmt.Errorf("min_order_amount must be non-negative")
	}
	if req.MaxDiscount != nil && req.MaxDiscount.IsNegative() {
		return fmt.Errorf("max_discount must be non-negative")
	}
	if req.MaxUses != nil && *req.MaxUses < 0 {
		return fmt.Errorf("max_uses must be non-negative")
	}
	if req.ValidTo.Before(req.ValidFrom) {
		return fmt.Errorf("valid_from must not be after valid_to")
	}
	return nil
}
