package services

import (
	"fmt"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PricedLine позиция заказа с рассчитанной суммой
type PricedLine struct {
	Line   models.OrderLineItem
	Amount decimal.Decimal
}

// Basket корзина заказа: подытог и суммы по позициям
type Basket struct {
	Subtotal decimal.Decimal
	Lines    []PricedLine
}

// PriceLineItem считает (база + модификатор размера + добавки) × количество.
func PriceLineItem(item *models.MenuItem, quantity int, size *models.SizeOption, addOns []*models.AddOn) (decimal.Decimal, error) {
	if item == nil {
		return decimal.Zero, apperror.InvalidLineItem("menu item not found")
	}
	if !item.Active {
		return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("menu item %s is not available", item.Name))
	}
	if quantity < 1 {
		return decimal.Zero, apperror.InvalidLineItem("quantity must be at least 1")
	}

	unit := item.BasePrice
	if size != nil {
		if size.MenuItemID != item.ID {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("size %s is not offered for %s", size.Name, item.Name))
		}
		if !size.Active {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("size %s is not available", size.Name))
		}
		unit = unit.Add(size.PriceModifier)
	}

	for _, addOn := range addOns {
		if addOn == nil {
			return decimal.Zero, apperror.InvalidLineItem("add-on not found")
		}
		if !containsID(item.AddOnIDs, addOn.ID) {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("add-on %s is not allowed for %s", addOn.Name, item.Name))
		}
		if !addOn.Active {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("add-on %s is not available", addOn.Name))
		}
		if len(addOn.CategoryIDs) > 0 && !containsID(addOn.CategoryIDs, item.CategoryID) {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("add-on %s is not allowed for the category of %s", addOn.Name, item.Name))
		}
		unit = unit.Add(addOn.Price)
	}

	return round2(unit.Mul(decimal.NewFromInt(int64(quantity)))), nil
}

// PriceOrderLine находит ссылки позиции в каталоге и считает её сумму.
// Бесплатные позиции стоят 0.
func PriceOrderLine(line *models.OrderLineItem, catalog *models.Catalog) (decimal.Decimal, error) {
	if line.IsFree {
		return decimal.Zero, nil
	}
	if line.MenuItemID == nil {
		return decimal.Zero, apperror.InvalidLineItem("line item has no menu item")
	}
	item := catalog.Item(*line.MenuItemID)
	if item == nil {
		return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("menu item %s not found", line.MenuItemID))
	}

	var size *models.SizeOption
	if line.SizeOptionID != nil {
		size = catalog.Size(*line.SizeOptionID)
		if size == nil {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("size option %s not found", line.SizeOptionID))
		}
	}

	addOns := make([]*models.AddOn, 0, len(line.AddOnIDs))
	for _, id := range line.AddOnIDs {
		addOn := catalog.AddOn(id)
		if addOn == nil {
			return decimal.Zero, apperror.InvalidLineItem(fmt.Sprintf("add-on %s not found", id))
		}
		addOns = append(addOns, addOn)
	}

	return PriceLineItem(item, line.Quantity, size, addOns)
}

// OrderSubtotal суммирует платные позиции заказа.
func OrderSubtotal(lines []models.OrderLineItem, catalog *models.Catalog) (*Basket, error) {
	basket := &Basket{Subtotal: decimal.Zero, Lines: make([]PricedLine, 0, len(lines))}
	for i := range lines {
		amount, err := PriceOrderLine(&lines[i], catalog)
		if err != nil {
			return nil, err
		}
		basket.Lines = append(basket.Lines, PricedLine{Line: lines[i], Amount: amount})
		basket.Subtotal = basket.Subtotal.Add(amount)
	}
	basket.Subtotal = round2(basket.Subtotal)
	return basket, nil
}

func containsID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// round2 округляет денежную сумму до 2 знаков (половина от нуля)
func round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}
