package services

import (
	"math/rand"
	"reflect"
	"testing"
	"time"

	"delivery-pricing/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func newPromotion(discountType models.DiscountType, value string) models.Promotion {
	return models.Promotion{
		ID:                uuid.New(),
		Name:              string(discountType),
		DiscountType:      discountType,
		Value:             dec(value),
		ValidFrom:         testNow.Add(-24 * time.Hour),
		ValidTo:           testNow.Add(24 * time.Hour),
		Active:            true,
		ApplicableItemIDs: []uuid.UUID{},
		CreatedAt:         testNow.Add(-48 * time.Hour),
		UpdatedAt:         testNow.Add(-48 * time.Hour),
	}
}

func intRef(v int) *int {
	return &v
}

func TestIsValid(t *testing.T) {
	m := newTestMenu()

	valid := newPromotion(models.DiscountTypePercent, "10")
	if !IsValid(&valid, testNow, m.catalog) {
		t.Fatalf("expected promotion to be valid")
	}

	edges := newPromotion(models.DiscountTypePercent, "10")
	edges.ValidFrom = testNow
	edges.ValidTo = testNow
	if !IsValid(&edges, testNow, m.catalog) {
		t.Fatalf("window bounds are inclusive")
	}

	inactive := newPromotion(models.DiscountTypePercent, "10")
	inactive.Active = false

	notStarted := newPromotion(models.DiscountTypePercent, "10")
	notStarted.ValidFrom = testNow.Add(time.Minute)

	expired := newPromotion(models.DiscountTypePercent, "10")
	expired.ValidTo = testNow.Add(-time.Minute)

	exhausted := newPromotion(models.DiscountTypePercent, "10")
	exhausted.MaxUses = intRef(5)
	exhausted.UsageCount = 5

	freeRetired := newPromotion(models.DiscountTypeFreeItem, "0")
	freeRetired.FreeItemID = &m.retired

	freeMissing := newPromotion(models.DiscountTypeFreeItem, "0")
	missing := uuid.New()
	freeMissing.FreeItemID = &missing

	for name, p := range map[string]models.Promotion{
		"inactive":          inactive,
		"not started":       notStarted,
		"expired":           expired,
		"exhausted":         exhausted,
		"retired free item": freeRetired,
		"missing free item": freeMissing,
	} {
		p := p
		if IsValid(&p, testNow, m.catalog) {
			t.Fatalf("%s: expected promotion to be invalid", name)
		}
	}

	almost := newPromotion(models.DiscountTypePercent, "10")
	almost.MaxUses = intRef(5)
	almost.UsageCount = 4
	if !IsValid(&almost, testNow, m.catalog) {
		t.Fatalf("expected promotion with one use left to be valid")
	}

	if IsValid(nil, testNow, m.catalog) {
		t.Fatalf("nil promotion is never valid")
	}
}

func TestComputeEffect_PercentDiscount(t *testing.T) {
	p := newPromotion(models.DiscountTypePercent, "15")
	effect := ComputeEffect(&p, dec("100000"), dec("5000"), testNow, nil)

	if !effect.Applied {
		t.Fatalf("expected effect to be applied")
	}
	if !effect.Discount.Equal(dec("15000")) {
		t.Fatalf("expected 15000 discount, got %s", effect.Discount)
	}
	if !effect.DeliveryFee.Equal(dec("5000")) {
		t.Fatalf("delivery fee must stay untouched, got %s", effect.DeliveryFee)
	}
}

func TestComputeEffect_Types(t *testing.T) {
	m := newTestMenu()
	subtotal := dec("15000")
	fee := dec("5000")

	fixed := newPromotion(models.DiscountTypeFixedAmount, "20000")
	if e := ComputeEffect(&fixed, subtotal, fee, testNow, m.catalog); !e.Discount.Equal(subtotal) {
		t.Fatalf("fixed discount must be capped at subtotal, got %s", e.Discount)
	}

	freeDelivery := newPromotion(models.DiscountTypeFreeDelivery, "0")
	e := ComputeEffect(&freeDelivery, subtotal, fee, testNow, m.catalog)
	if !e.DeliveryFee.IsZero() || !e.Discount.IsZero() {
		t.Fatalf("unexpected free delivery effect: %+v", e)
	}
	if !e.Savings(fee).Equal(fee) {
		t.Fatalf("expected savings equal to fee, got %s", e.Savings(fee))
	}

	freeItem := newPromotion(models.DiscountTypeFreeItem, "0")
	freeItem.FreeItemID = &m.dessert
	e = ComputeEffect(&freeItem, subtotal, fee, testNow, m.catalog)
	if !e.FreeItemValue.Equal(dec("12000")) || !e.Discount.IsZero() {
		t.Fatalf("unexpected free item effect: %+v", e)
	}

	freeAddOn := newPromotion(models.DiscountTypeFreeItem, "0")
	freeAddOn.FreeAddOnID = &m.cheese
	e = ComputeEffect(&freeAddOn, subtotal, fee, testNow, m.catalog)
	if !e.FreeItemValue.Equal(dec("3000")) {
		t.Fatalf("expected add-on value 3000, got %s", e.FreeItemValue)
	}
}

func TestComputeEffect_NotApplied(t *testing.T) {
	fee := dec("5000")

	minOrder := newPromotion(models.DiscountTypePercent, "10")
	minOrder.MinOrderAmount = decPtr("50000")
	e := ComputeEffect(&minOrder, dec("49999.99"), fee, testNow, nil)
	if e.Applied || !e.Discount.IsZero() || !e.DeliveryFee.Equal(fee) {
		t.Fatalf("expected no effect below min order, got %+v", e)
	}
	if e = ComputeEffect(&minOrder, dec("50000"), fee, testNow, nil); !e.Applied {
		t.Fatalf("expected effect at exactly min order")
	}

	exhausted := newPromotion(models.DiscountTypePercent, "50")
	exhausted.MaxUses = intRef(5)
	exhausted.UsageCount = 5
	if e = ComputeEffect(&exhausted, dec("100000"), fee, testNow, nil); e.Applied || !e.Discount.IsZero() {
		t.Fatalf("exhausted promotion must have no effect, got %+v", e)
	}
}

func TestComputeEffect_DiscountBounds(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	fee := dec("5000")

	for i := 0; i < 1000; i++ {
		subtotal := decimal.New(rng.Int63n(50000000), -2)
		p := newPromotion(models.DiscountTypePercent, decimal.New(rng.Int63n(10000)+1, -2).String())
		if rng.Intn(2) == 0 {
			p.MaxDiscount = decPtr(decimal.New(rng.Int63n(5000000), -2).String())
		}

		e := ComputeEffect(&p, subtotal, fee, testNow, nil)
		if e.Discount.IsNegative() || e.Discount.GreaterThan(subtotal) {
			t.Fatalf("discount %s out of [0, %s] for %s%%", e.Discount, subtotal, p.Value)
		}
		if p.MaxDiscount != nil && e.Discount.GreaterThan(*p.MaxDiscount) {
			t.Fatalf("discount %s exceeds max %s", e.Discount, p.MaxDiscount)
		}

		fixed := newPromotion(models.DiscountTypeFixedAmount, decimal.New(rng.Int63n(50000000), -2).String())
		if rng.Intn(2) == 0 {
			fixed.MaxDiscount = decPtr(decimal.New(rng.Int63n(5000000), -2).String())
		}
		e = ComputeEffect(&fixed, subtotal, fee, testNow, nil)
		if e.Discount.IsNegative() || e.Discount.GreaterThan(subtotal) {
			t.Fatalf("fixed discount %s out of [0, %s]", e.Discount, subtotal)
		}
		if fixed.MaxDiscount != nil && e.Discount.GreaterThan(*fixed.MaxDiscount) {
			t.Fatalf("fixed discount %s exceeds max %s", e.Discount, fixed.MaxDiscount)
		}
	}
}

func TestComputeEffect_PercentMonotoneThenFlat(t *testing.T) {
	p := newPromotion(models.DiscountTypePercent, "10")
	p.MaxDiscount = decPtr("5000")
	fee := dec("5000")

	prev := decimal.Zero
	for step := int64(0); step <= 100; step++ {
		subtotal := decimal.NewFromInt(step * 1000)
		e := ComputeEffect(&p, subtotal, fee, testNow, nil)
		if e.Discount.LessThan(prev) {
			t.Fatalf("discount decreased at subtotal %s: %s < %s", subtotal, e.Discount, prev)
		}
		if subtotal.GreaterThanOrEqual(dec("50000")) && !e.Discount.Equal(dec("5000")) {
			t.Fatalf("expected plateau at 5000 for subtotal %s, got %s", subtotal, e.Discount)
		}
		prev = e.Discount
	}
}

func TestComputeEffect_Pure(t *testing.T) {
	m := newTestMenu()
	p := newPromotion(models.DiscountTypeFreeItem, "0")
	p.FreeItemID = &m.dessert
	p.MaxUses = intRef(10)
	p.UsageCount = 3
	before := p

	first := ComputeEffect(&p, dec("40000"), dec("5000"), testNow, m.catalog)
	second := ComputeEffect(&p, dec("40000"), dec("5000"), testNow, m.catalog)

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical effects, got %+v and %+v", first, second)
	}
	if !reflect.DeepEqual(before, p) {
		t.Fatalf("promotion was mutated: %+v", p)
	}
}

func TestComputeOrderEffect_ApplicableItems(t *testing.T) {
	m := newTestMenu()
	basket, err := OrderSubtotal([]models.OrderLineItem{
		orderLine(m.pizza, 1, nil),
		orderLine(m.cola, 1, nil),
	}, m.catalog)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := newPromotion(models.DiscountTypePercent, "50")
	p.ApplicableItemIDs = []uuid.UUID{m.cola}
	p.MinOrderAmount = decPtr("55000")

	if eligible := EligibleSubtotal(&p, basket); !eligible.Equal(dec("10000")) {
		t.Fatalf("expected eligible 10000, got %s", eligible)
	}

	e := ComputeOrderEffect(&p, basket, dec("5000"), testNow, m.catalog)
	if !e.Applied {
		t.Fatalf("min order is checked against the full subtotal")
	}
	if !e.Discount.Equal(dec("5000")) {
		t.Fatalf("expected 5000 discount on cola only, got %s", e.Discount)
	}

	fixed := newPromotion(models.DiscountTypeFixedAmount, "30000")
	fixed.ApplicableItemIDs = []uuid.UUID{m.cola}
	if e = ComputeOrderEffect(&fixed, basket, dec("5000"), testNow, m.catalog); !e.Discount.Equal(dec("10000")) {
		t.Fatalf("fixed discount must be capped at eligible subtotal, got %s", e.Discount)
	}
}

func TestComputeEffect_FixedAmountRespectsMaxDiscount(t *testing.T) {
	p := newPromotion(models.DiscountTypeFixedAmount, "10000")
	p.MaxDiscount = decPtr("3000")

	e := ComputeEffect(&p, dec("50000"), dec("5000"), testNow, nil)
	if !e.Applied || !e.Discount.Equal(dec("3000")) {
		t.Fatalf("expected discount capped at 3000, got applied=%v discount=%s", e.Applied, e.Discount)
	}

	e = ComputeEffect(&p, dec("2000"), dec("5000"), testNow, nil)
	if !e.Discount.Equal(dec("2000")) {
		t.Fatalf("expected discount capped at subtotal 2000, got %s", e.Discount)
	}
}
