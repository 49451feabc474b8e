package services

import (
	"testing"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type testMenu struct {
	catalog     *models.Catalog
	pizzaCat    uuid.UUID
	drinksCat   uuid.UUID
	pizza       uuid.UUID
	cola        uuid.UUID
	dessert     uuid.UUID
	retired     uuid.UUID
	large       uuid.UUID
	smallOff    uuid.UUID
	colaLarge   uuid.UUID
	cheese      uuid.UUID
	sauceOff    uuid.UUID
	ice         uuid.UUID
	unlistedAdd uuid.UUID
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

// newTestMenu собирает каталог: пицца 50000, кола 10000, десерт 12000.
func newTestMenu() testMenu {
	m := testMenu{
		pizzaCat:    uuid.New(),
		drinksCat:   uuid.New(),
		pizza:       uuid.New(),
		cola:        uuid.New(),
		dessert:     uuid.New(),
		retired:     uuid.New(),
		large:       uuid.New(),
		smallOff:    uuid.New(),
		colaLarge:   uuid.New(),
		cheese:      uuid.New(),
		sauceOff:    uuid.New(),
		ice:         uuid.New(),
		unlistedAdd: uuid.New(),
	}

	items := []models.MenuItem{
		{
			ID: m.pizza, Name: "Pizza", CategoryID: m.pizzaCat, BasePrice: dec("50000"), Active: true,
			AddOnIDs: []uuid.UUID{m.cheese, m.sauceOff, m.ice},
			Sizes: []models.SizeOption{
				{ID: m.large, MenuItemID: m.pizza, Name: "Large", PriceModifier: dec("10000"), Active: true},
				{ID: m.smallOff, MenuItemID: m.pizza, Name: "Small", PriceModifier: dec("-5000"), Active: false},
			},
		},
		{
			ID: m.cola, Name: "Cola", CategoryID: m.drinksCat, BasePrice: dec("10000"), Active: true,
			AddOnIDs: []uuid.UUID{m.ice},
			Sizes: []models.SizeOption{
				{ID: m.colaLarge, MenuItemID: m.cola, Name: "1L", PriceModifier: dec("2000"), Active: true},
			},
		},
		{ID: m.dessert, Name: "Dessert", CategoryID: m.pizzaCat, BasePrice: dec("12000"), Active: true},
		{ID: m.retired, Name: "Retired", CategoryID: m.pizzaCat, BasePrice: dec("9000"), Active: false},
	}
	addOns := []models.AddOn{
		{ID: m.cheese, Name: "Cheese", Price: dec("3000"), Active: true, CategoryIDs: []uuid.UUID{m.pizzaCat}},
		{ID: m.sauceOff, Name: "Sauce", Price: dec("1000"), Active: false},
		{ID: m.ice, Name: "Ice", Price: dec("500"), Active: true, CategoryIDs: []uuid.UUID{m.drinksCat}},
		{ID: m.unlistedAdd, Name: "Bacon", Price: dec("4000"), Active: true},
	}
	m.catalog = models.NewCatalog(items, addOns)
	return m
}

func orderLine(menuItemID uuid.UUID, qty int, size *uuid.UUID, addOns ...uuid.UUID) models.OrderLineItem {
	id := menuItemID
	if addOns == nil {
		addOns = []uuid.UUID{}
	}
	return models.OrderLineItem{ID: uuid.New(), MenuItemID: &id, SizeOptionID: size, Quantity: qty, AddOnIDs: addOns}
}

func TestPriceLineItem_Success(t *testing.T) {
	m := newTestMenu()
	c := m.catalog

	amount, err := PriceLineItem(c.Item(m.pizza), 2, c.Size(m.large), []*models.AddOn{c.AddOn(m.cheese)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(dec("126000")) {
		t.Fatalf("expected 126000, got %s", amount)
	}

	amount, err = PriceLineItem(c.Item(m.cola), 3, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !amount.Equal(dec("30000")) {
		t.Fatalf("expected 30000, got %s", amount)
	}
}

func TestPriceLineItem_Rejections(t *testing.T) {
	m := newTestMenu()
	c := m.catalog

	cases := []struct {
		name   string
		item   *models.MenuItem
		qty    int
		size   *models.SizeOption
		addOns []*models.AddOn
	}{
		{"missing item", nil, 1, nil, nil},
		{"inactive item", c.Item(m.retired), 1, nil, nil},
		{"zero quantity", c.Item(m.pizza), 0, nil, nil},
		{"negative quantity", c.Item(m.pizza), -2, nil, nil},
		{"foreign size", c.Item(m.pizza), 1, c.Size(m.colaLarge), nil},
		{"inactive size", c.Item(m.pizza), 1, c.Size(m.smallOff), nil},
		{"add-on not offered", c.Item(m.pizza), 1, nil, []*models.AddOn{c.AddOn(m.unlistedAdd)}},
		{"inactive add-on", c.Item(m.pizza), 1, nil, []*models.AddOn{c.AddOn(m.sauceOff)}},
		{"add-on of another category", c.Item(m.pizza), 1, nil, []*models.AddOn{c.AddOn(m.ice)}},
		{"missing add-on", c.Item(m.pizza), 1, nil, []*models.AddOn{nil}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PriceLineItem(tc.item, tc.qty, tc.size, tc.addOns)
			if !apperror.HasCode(err, apperror.CodeInvalidLineItem) {
				t.Fatalf("expected invalid line item, got %v", err)
			}
		})
	}
}

func TestPriceOrderLine_UnknownReferences(t *testing.T) {
	m := newTestMenu()
	unknown := uuid.New()

	cases := map[string]models.OrderLineItem{
		"unknown item":   orderLine(unknown, 1, nil),
		"unknown size":   orderLine(m.pizza, 1, &unknown),
		"unknown add-on": orderLine(m.pizza, 1, nil, unknown),
		"no item":        {Quantity: 1},
	}
	for name, l := range cases {
		l := l
		if _, err := PriceOrderLine(&l, m.catalog); !apperror.HasCode(err, apperror.CodeInvalidLineItem) {
			t.Fatalf("%s: expected invalid line item, got %v", name, err)
		}
	}
}

func TestOrderSubtotal_FreeLinesCostNothing(t *testing.T) {
	m := newTestMenu()
	large := m.large

	free := orderLine(m.dessert, 1, nil)
	free.IsFree = true
	lines := []models.OrderLineItem{
		orderLine(m.pizza, 1, &large, m.cheese),
		orderLine(m.cola, 2, nil, m.ice),
		free,
	}

	basket, err := OrderSubtotal(lines, m.catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 63000 + 21000 + 0
	if !basket.Subtotal.Equal(dec("84000")) {
		t.Fatalf("expected 84000, got %s", basket.Subtotal)
	}
	if len(basket.Lines) != 3 || !basket.Lines[2].Amount.IsZero() {
		t.Fatalf("unexpected priced lines: %+v", basket.Lines)
	}
}

func TestOrderSubtotal_EmptyOrder(t *testing.T) {
	basket, err := OrderSubtotal(nil, newTestMenu().catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !basket.Subtotal.IsZero() {
		t.Fatalf("expected zero subtotal, got %s", basket.Subtotal)
	}
}
