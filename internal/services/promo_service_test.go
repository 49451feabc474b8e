package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

func validPromotionRequest() *models.PromotionRequest {
	return &models.PromotionRequest{
		Name:         "Spring 15",
		DiscountType: models.DiscountTypePercent,
		Value:        dec("15"),
		ValidFrom:    testNow.Add(-time.Hour),
		ValidTo:      testNow.Add(240 * time.Hour),
	}
}

func TestPromoService_CreateUpdateDeleteAndList(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewPromoService(db, newTestLogger())
	ctx := context.Background()

	mock.ExpectExec("INSERT INTO promotions").WillReturnResult(sqlmock.NewResult(1, 1))
	promo, err := service.CreatePromotion(ctx, validPromotionRequest())
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if promo.UsageCount != 0 || !promo.Active || promo.ApplicableItemIDs == nil {
		t.Fatalf("unexpected promotion: %+v", promo)
	}

	updated := *promo
	updated.Name = "Spring 20"
	updated.Value = dec("20")
	mock.ExpectExec("UPDATE promotions SET name").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM promotions WHERE id = \$1`).WithArgs(promo.ID).WillReturnRows(promotionRows(updated))

	req := validPromotionRequest()
	req.Name = "Spring 20"
	req.Value = dec("20")
	got, err := service.UpdatePromotion(ctx, promo.ID, req)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if got.Name != "Spring 20" || !got.Value.Equal(dec("20")) {
		t.Fatalf("unexpected updated promotion: %+v", got)
	}

	mock.ExpectQuery("FROM promotions ORDER BY created_at DESC").WithArgs(50, 0).WillReturnRows(promotionRows(updated))
	list, err := service.ListPromotions(ctx, 0, 0)
	if err != nil || len(list) != 1 {
		t.Fatalf("list failed: %v (%d)", err, len(list))
	}

	mock.ExpectExec("DELETE FROM promotions").WithArgs(promo.ID).WillReturnResult(sqlmock.NewResult(0, 1))
	if err := service.DeletePromotion(ctx, promo.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPromoService_CreatePromotion_InvalidPayload(t *testing.T) {
	service := NewPromoService(nil, newTestLogger())
	itemID := uuid.New()

	cases := map[string]func(*models.PromotionRequest){
		"zero percent":      func(r *models.PromotionRequest) { r.Value = dec("0") },
		"percent above 100": func(r *models.PromotionRequest) { r.Value = dec("100.01") },
		"negative fixed": func(r *models.PromotionRequest) {
			r.DiscountType = models.DiscountTypeFixedAmount
			r.Value = dec("-1")
		},
		"free item without reference": func(r *models.PromotionRequest) { r.DiscountType = models.DiscountTypeFreeItem },
		"free item with both references": func(r *models.PromotionRequest) {
			r.DiscountType = models.DiscountTypeFreeItem
			r.FreeItemID = &itemID
			r.FreeAddOnID = &itemID
		},
		"reference on percent": func(r *models.PromotionRequest) { r.FreeItemID = &itemID },
		"negative min order":   func(r *models.PromotionRequest) { r.MinOrderAmount = decPtr("-5") },
		"negative max uses":    func(r *models.PromotionRequest) { r.MaxUses = intRef(-1) },
		"inverted window":      func(r *models.PromotionRequest) { r.ValidTo = r.ValidFrom.Add(-time.Second) },
		"unknown type":         func(r *models.PromotionRequest) { r.DiscountType = "BOGO" },
	}

	for name, mutate := range cases {
		req := validPromotionRequest()
		mutate(req)
		if _, err := service.CreatePromotion(context.Background(), req); !apperror.Is(err, apperror.KindValidation) {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestPromoService_CreatePromotion_UnknownFreeItem(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewPromoService(db, newTestLogger())

	itemID := uuid.New()
	req := validPromotionRequest()
	req.DiscountType = models.DiscountTypeFreeItem
	req.Value = dec("0")
	req.FreeItemID = &itemID

	mock.ExpectExec("INSERT INTO promotions").WillReturnError(&pq.Error{Code: "23503"})

	if _, err := service.CreatePromotion(context.Background(), req); !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPromoService_UpdatePromotion_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewPromoService(db, newTestLogger())

	mock.ExpectExec("UPDATE promotions").WillReturnResult(sqlmock.NewResult(0, 0))

	if _, err := service.UpdatePromotion(context.Background(), uuid.New(), validPromotionRequest()); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPromoService_UpdatePromotion_RowsAffectedError(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewPromoService(db, newTestLogger())

	mock.ExpectExec("UPDATE promotions").WillReturnResult(sqlmock.NewErrorResult(errors.New("rows")))

	if _, err := service.UpdatePromotion(context.Background(), uuid.New(), validPromotionRequest()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPromoService_DeletePromotion_Errors(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewPromoService(db, newTestLogger())

	mock.ExpectExec("DELETE FROM promotions").WillReturnResult(sqlmock.NewResult(0, 0))
	if err := service.DeletePromotion(context.Background(), uuid.New()); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	mock.ExpectExec("DELETE FROM promotions").WillReturnError(&pq.Error{Code: "23503"})
	if err := service.DeletePromotion(context.Background(), uuid.New()); !apperror.Is(err, apperror.KindConflict) {
		t.Fatalf("expected conflict for referenced promotion, got %v", err)
	}
}

func TestPromoService_GetPromotion(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()
	service := NewPromoService(db, newTestLogger())

	p := newPromotion(models.DiscountTypePercent, "10")
	p.MaxUses = intRef(5)
	p.UsageCount = 5
	p.MinOrderAmount = decPtr("30000")

	mock.ExpectQuery("FROM promotions WHERE id").WillReturnRows(promotionRows(p))
	got, err := service.GetPromotion(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if got.MaxUses == nil || *got.MaxUses != 5 || got.UsageCount != 5 || !got.MinOrderAmount.Equal(dec("30000")) {
		t.Fatalf("unexpected promotion: %+v", got)
	}
	if IsValid(got, testNow, nil) {
		t.Fatalf("promotion at its usage cap must be invalid")
	}

	mock.ExpectQuery("FROM promotions WHERE id").WillReturnRows(sqlmock.NewRows(promotionCols))
	if _, err := service.GetPromotion(context.Background(), uuid.New()); !apperror.Is(err, apperror.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
