package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Category категория меню
type Category struct {
	ID   uuid.UUID `json:"id" db:"id"`
	Name string    `json:"name" db:"name"`
}

// MenuItem позиция меню
type MenuItem struct {
	ID         uuid.UUID       `json:"id" db:"id"`
	Name       string          `json:"name" db:"name"`
	CategoryID uuid.UUID       `json:"category_id" db:"category_id"`
	BasePrice  decimal.Decimal `json:"base_price" db:"base_price"`
	Active     bool            `json:"active" db:"is_active"`
	Sizes      []SizeOption    `json:"sizes"`
	AddOnIDs   []uuid.UUID     `json:"add_on_ids" db:"add_on_ids"`
}

// SizeOption вариант размера, принадлежит ровно одной позиции
type SizeOption struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	MenuItemID    uuid.UUID       `json:"menu_item_id" db:"menu_item_id"`
	Name          string          `json:"name" db:"name"`
	PriceModifier decimal.Decimal `json:"price_modifier" db:"price_modifier"`
	Active        bool            `json:"active" db:"is_active"`
}

// AddOn добавка; CategoryIDs ограничивает категории, к которым она применима
type AddOn struct {
	ID          uuid.UUID       `json:"id" db:"id"`
	Name        string          `json:"name" db:"name"`
	Price       decimal.Decimal `json:"price" db:"price"`
	Active      bool            `json:"active" db:"is_active"`
	CategoryIDs []uuid.UUID     `json:"category_ids" db:"category_ids"`
}

// Catalog неизменяемый снимок каталога, загруженный для расчета заказа
type Catalog struct {
	Items  map[uuid.UUID]*MenuItem
	Sizes  map[uuid.UUID]*SizeOption
	AddOns map[uuid.UUID]*AddOn
}

// NewCatalog индексирует позиции, размеры и добавки по ID
func NewCatalog(items []MenuItem, addOns []AddOn) *Catalog {
	c := &Catalog{
		Items:  make(map[uuid.UUID]*MenuItem, len(items)),
		Sizes:  make(map[uuid.UUID]*SizeOption),
		AddOns: make(map[uuid.UUID]*AddOn, len(addOns)),
	}
	for i := range items {
		item := &items[i]
		c.Items[item.ID] = item
		for j := range item.Sizes {
			c.Sizes[item.Sizes[j].ID] = &item.Sizes[j]
		}
	}
	for i := range addOns {
		c.AddOns[addOns[i].ID] = &addOns[i]
	}
	return c
}

// Item возвращает позицию меню или nil
func (c *Catalog) Item(id uuid.UUID) *MenuItem {
	if c == nil {
		return nil
	}
	return c.Items[id]
}

// Size возвращает вариант размера или nil
func (c *Catalog) Size(id uuid.UUID) *SizeOption {
	if c == nil {
		return nil
	}
	return c.Sizes[id]
}

// AddOn возвращает добавку или nil
func (c *Catalog) AddOn(id uuid.UUID) *AddOn {
	if c == nil {
		return nil
	}
	return c.AddOns[id]
}
