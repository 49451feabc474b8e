package services

import (
	"time"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricingInput неизменяемый снимок всего, что нужно для расчета заказа.
type PricingInput struct {
	Order      *models.Order
	Catalog    *models.Catalog
	Zones      []models.DeliveryZone
	Candidates []models.Promotion
	// Explicit акция, выбранная клиентом; nil при автоподборе.
	Explicit *models.Promotion
	Now      time.Time
}

// PricingOutcome результат расчета. Ничего не записано: FreeLine ещё без ID и ждёт вставки.
type PricingOutcome struct {
	State       models.PricingState
	Zone        *models.DeliveryZone
	Basket      *Basket
	Promotion   *models.Promotion
	Effect      Effect
	Subtotal    decimal.Decimal
	DeliveryFee decimal.Decimal
	Discount    decimal.Decimal
	Total       decimal.Decimal
	FreeLine    *models.OrderLineItem
}

// PricingService рассчитывает итог заказа: зона, подытог, акция, доставка.
type PricingService struct {
	resolver *GeoZoneResolver
}

// NewPricingService создаёт сервис расчета.
func NewPricingService(resolver *GeoZoneResolver) *PricingService {
	return &PricingService{resolver: resolver}
}

// CalculateOrderPricing проводит заказ через UNPRICED → ZONE_RESOLVED → PROMOTION_RESOLVED.
// Функция чистая: одинаковый вход дает одинаковый результат.
func (s *PricingService) CalculateOrderPricing(in *PricingInput) (*PricingOutcome, error) {
	order := in.Order
	if order.PricingState == models.PricingStateFinalized {
		return nil, apperror.ConcurrencyConflict("order is already finalized", nil)
	}

	out := &PricingOutcome{State: models.PricingStateUnpriced}

	resolution, err := s.resolver.ResolveZone(in.Zones, order.Address)
	if err != nil {
		return nil, err
	}
	out.Zone = resolution.Zone
	out.State = models.PricingStateZoneResolved
	baseFee := resolution.Zone.DeliveryFee

	basket, err := OrderSubtotal(order.Items, in.Catalog)
	if err != nil {
		return nil, err
	}
	out.Basket = basket
	out.Subtotal = basket.Subtotal

	promo, err := s.resolvePromotion(in, basket, baseFee)
	if err != nil {
		return nil, err
	}
	out.State = models.PricingStatePromotionResolved

	effect := Effect{Discount: decimal.Zero, DeliveryFee: baseFee, FreeItemValue: decimal.Zero}
	if promo != nil {
		effect = ComputeOrderEffect(promo, basket, baseFee, in.Now, in.Catalog)
		if effect.Applied {
			out.Promotion = promo
		}
	}
	out.Effect = effect

	fee := effect.DeliveryFee
	if threshold := resolution.Zone.FreeDeliveryThreshold; threshold != nil && basket.Subtotal.GreaterThanOrEqual(*threshold) {
		fee = decimal.Zero
	}
	out.DeliveryFee = round2(fee)
	out.Discount = round2(effect.Discount)

	total := basket.Subtotal.Sub(out.Discount).Add(out.DeliveryFee)
	if total.IsNegative() {
		total = decimal.Zero
	}
	out.Total = round2(total)

	if out.Promotion != nil && out.Promotion.DiscountType == models.DiscountTypeFreeItem {
		out.FreeLine = freeLineFor(order, out.Promotion)
	}
	return out, nil
}

// resolvePromotion возвращает выбранную клиентом акцию (она обязана быть валидной)
// либо лучшую из кандидатов.
func (s *PricingService) resolvePromotion(in *PricingInput, basket *Basket, baseFee decimal.Decimal) (*models.Promotion, error) {
	if in.Order.PromotionID != nil {
		if in.Explicit == nil || in.Explicit.ID != *in.Order.PromotionID {
			return nil, apperror.PromotionUnavailable("requested promotion does not exist")
		}
		if !IsValid(in.Explicit, in.Now, in.Catalog) {
			return nil, apperror.PromotionUnavailable("requested promotion is expired or exhausted")
		}
		return in.Explicit, nil
	}
	return SelectBestPromotion(basket, in.Candidates, baseFee, in.Now, in.Catalog), nil
}

// freeLineFor строит бесплатную позицию акции, если в заказе её ещё нет.
func freeLineFor(order *models.Order, promo *models.Promotion) *models.OrderLineItem {
	if promo.FreeItemID == nil && promo.FreeAddOnID == nil {
		return nil
	}
	for _, line := range order.Items {
		if line.IsFree && line.PromotionID != nil && *line.PromotionID == promo.ID &&
			sameID(line.MenuItemID, promo.FreeItemID) && sameID(line.FreeAddOnID, promo.FreeAddOnID) {
			return nil
		}
	}

	promoID := promo.ID
	line := &models.OrderLineItem{
		OrderID:     order.ID,
		Quantity:    1,
		AddOnIDs:    []uuid.UUID{},
		IsFree:      true,
		PromotionID: &promoID,
	}
	if promo.FreeItemID != nil {
		itemID := *promo.FreeItemID
		line.MenuItemID = &itemID
	} else {
		addOnID := *promo.FreeAddOnID
		line.FreeAddOnID = &addOnID
	}
	return line
}

func sameID(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
