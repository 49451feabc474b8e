package services

import (
	"bytes"
	"time"

	"delivery-pricing/internal/models"

	"github.com/shopspring/decimal"
)

// SelectBestPromotion выбирает акцию с максимальной выгодой.
// При равной выгоде побеждает созданная раньше, затем меньший ID.
// Возвращает nil, если ни одна акция не дает выгоды.
func SelectBestPromotion(basket *Basket, candidates []models.Promotion, baseFee decimal.Decimal, now time.Time, catalog *models.Catalog) *models.Promotion {
	var best *models.Promotion
	bestSavings := decimal.Zero

	for i := range candidates {
		candidate := &candidates[i]
		effect := ComputeOrderEffect(candidate, basket, baseFee, now, catalog)
		if !effect.Applied {
			continue
		}
		savings := effect.Savings(baseFee)
		if !savings.IsPositive() {
			continue
		}
		if best == nil || savings.GreaterThan(bestSavings) || (savings.Equal(bestSavings) && createdEarlier(candidate, best)) {
			best = candidate
			bestSavings = savings
		}
	}
	return best
}

func createdEarlier(a, b *models.Promotion) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) < 0
}
