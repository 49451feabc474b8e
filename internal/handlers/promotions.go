package handlers

import (
	"net/http"

	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"
)

// PromoHandler обрабатывает акции.
type PromoHandler struct {
	promoService PromoService
	log          *logger.Logger
}

// NewPromoHandler создаёт новый обработчик акций.
func NewPromoHandler(promoService PromoService, log *logger.Logger) *PromoHandler {
	return &PromoHandler{
		promoService: promoService,
		log:          log,
	}
}

// CreatePromotion создаёт акцию.
func (h *PromoHandler) CreatePromotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.PromotionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promo, err := h.promoService.CreatePromotion(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create promotion")
		return
	}

	writeJSONResponse(w, http.StatusCreated, promo)
}

// ListPromotions возвращает список акций.
func (h *PromoHandler) ListPromotions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := parsePagination(r)
	promos, err := h.promoService.ListPromotions(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list promotions")
		return
	}

	writeJSONResponse(w, http.StatusOK, promos)
}

// GetPromotion возвращает акцию по ID.
func (h *PromoHandler) GetPromotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/promotions/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid promotion ID")
		return
	}

	promo, err := h.promoService.GetPromotion(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get promotion")
		return
	}

	writeJSONResponse(w, http.StatusOK, promo)
}

// UpdatePromotion обновляет акцию.
func (h *PromoHandler) UpdatePromotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/promotions/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid promotion ID")
		return
	}

	var req models.PromotionRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	promo, err := h.promoService.UpdatePromotion(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update promotion")
		return
	}

	writeJSONResponse(w, http.StatusOK, promo)
}

// DeletePromotion удаляет акцию.
func (h *PromoHandler) DeletePromotion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/promotions/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid promotion ID")
		return
	}

	if err := h.promoService.DeletePromotion(r.Context(), id); err != nil {
		writeServiceError(w, h.log, err, "Failed to delete promotion")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"message": "Promotion deleted"})
}
