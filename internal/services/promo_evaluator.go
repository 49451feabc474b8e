package services

import (
	"time"

	"delivery-pricing/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Effect результат применения акции к заказу
type Effect struct {
	Applied       bool            `json:"applied"`
	Discount      decimal.Decimal `json:"discount"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	FreeItemValue decimal.Decimal `json:"free_item_value"`
}

// Savings выгода клиента: скидка, сэкономленная доставка и стоимость подарка.
func (e Effect) Savings(baseFee decimal.Decimal) decimal.Decimal {
	return e.Discount.Add(baseFee.Sub(e.DeliveryFee)).Add(e.FreeItemValue)
}

// IsValid проверяет активность, окно действия, лимит использований
// и доступность подарка для FREE_ITEM.
func IsValid(p *models.Promotion, now time.Time, catalog *models.Catalog) bool {
	if p == nil || !p.Active {
		return false
	}
	if now.Before(p.ValidFrom) || now.After(p.ValidTo) {
		return false
	}
	if p.MaxUses != nil && p.UsageCount >= *p.MaxUses {
		return false
	}
	if p.DiscountType == models.DiscountTypeFreeItem {
		if _, active, referenced := freeGoods(p, catalog); referenced && !active {
			return false
		}
	}
	return true
}

// ComputeEffect считает эффект акции для подытога без учета списка применимых позиций.
func ComputeEffect(p *models.Promotion, subtotal, baseFee decimal.Decimal, now time.Time, catalog *models.Catalog) Effect {
	return computeEffect(p, subtotal, subtotal, baseFee, now, catalog)
}

// ComputeOrderEffect считает эффект акции для корзины; PERCENT и FIXED_AMOUNT
// ограничены суммой применимых позиций, минимальный заказ сравнивается с полным подытогом.
func ComputeOrderEffect(p *models.Promotion, basket *Basket, baseFee decimal.Decimal, now time.Time, catalog *models.Catalog) Effect {
	return computeEffect(p, basket.Subtotal, EligibleSubtotal(p, basket), baseFee, now, catalog)
}

// EligibleSubtotal сумма платных позиций, на которые распространяется акция.
func EligibleSubtotal(p *models.Promotion, basket *Basket) decimal.Decimal {
	if p == nil || len(p.ApplicableItemIDs) == 0 {
		return basket.Subtotal
	}
	total := decimal.Zero
	for _, line := range basket.Lines {
		if line.Line.IsFree || line.Line.MenuItemID == nil {
			continue
		}
		if containsID(p.ApplicableItemIDs, *line.Line.MenuItemID) {
			total = total.Add(line.Amount)
		}
	}
	return total
}

func computeEffect(p *models.Promotion, subtotal, eligible, baseFee decimal.Decimal, now time.Time, catalog *models.Catalog) Effect {
	effect := Effect{Discount: decimal.Zero, DeliveryFee: baseFee, FreeItemValue: decimal.Zero}
	if !IsValid(p, now, catalog) {
		return effect
	}
	if p.MinOrderAmount != nil && subtotal.LessThan(*p.MinOrderAmount) {
		return effect
	}

	effect.Applied = true
	switch p.DiscountType {
	case models.DiscountTypePercent:
		effect.Discount = capAt(capAtMax(round2(eligible.Mul(p.Value).Div(hundred)), p.MaxDiscount), eligible)
	case models.DiscountTypeFixedAmount:
		effect.Discount = capAt(capAtMax(p.Value, p.MaxDiscount), eligible)
	case models.DiscountTypeFreeDelivery:
		effect.DeliveryFee = decimal.Zero
	case models.DiscountTypeFreeItem:
		if price, _, referenced := freeGoods(p, catalog); referenced {
			effect.FreeItemValue = price
		}
	}
	return effect
}

// freeGoods возвращает цену и активность подарка акции; позиция меню имеет приоритет над добавкой.
func freeGoods(p *models.Promotion, catalog *models.Catalog) (decimal.Decimal, bool, bool) {
	if p.FreeItemID != nil {
		item := catalog.Item(*p.FreeItemID)
		if item == nil {
			return decimal.Zero, false, true
		}
		return item.BasePrice, item.Active, true
	}
	if p.FreeAddOnID != nil {
		addOn := catalog.AddOn(*p.FreeAddOnID)
		if addOn == nil {
			return decimal.Zero, false, true
		}
		return addOn.Price, addOn.Active, true
	}
	return decimal.Zero, false, false
}

// capAtMax применяет необязательный потолок скидки max_discount.
func capAtMax(v decimal.Decimal, maxDiscount *decimal.Decimal) decimal.Decimal {
	if maxDiscount != nil && v.GreaterThan(*maxDiscount) {
		return *maxDiscount
	}
	return v
}

func capAt(v, limit decimal.Decimal) decimal.Decimal {
	if v.GreaterThan(limit) {
		v = limit
	}
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
