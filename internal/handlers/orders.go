package handlers

import (
	"net/http"

	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"
	"delivery-pricing/internal/redis"

	"github.com/sirupsen/logrus"
)

// OrderHandler представляет обработчик заказов
type OrderHandler struct {
	orderService OrderService
	producer     EventProducer
	redisClient  RedisClient
	log          *logger.Logger
}

// NewOrderHandler создает новый обработчик заказов
func NewOrderHandler(orderService OrderService, producer EventProducer, redisClient RedisClient, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		producer:     producer,
		redisClient:  redisClient,
		log:          log,
	}
}

// CreateOrder создает новый заказ без позиций
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateOrderRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	order, err := h.orderService.CreateOrder(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create order")
		return
	}

	h.log.WithField("order_id", order.ID).Info("Order created successfully")
	writeJSONResponse(w, http.StatusCreated, order)
}

// GetOrder получает заказ по ID
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	// Финализированный заказ неизменен, поэтому его можно отдавать из кеша
	cacheKey := redis.GenerateKey(redis.KeyPrefixOrder, orderID.String())
	var cached models.Order
	if h.redisClient != nil {
		if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
			h.log.WithField("order_id", orderID).Debug("Order retrieved from cache")
			writeJSONResponse(w, http.StatusOK, &cached)
			return
		}
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get order")
		return
	}

	if order.PricingState == models.PricingStateFinalized {
		h.cacheOrder(r, cacheKey, order)
	}

	writeJSONResponse(w, http.StatusOK, order)
}

// AddLineItem добавляет позицию в нефинализированный заказ
func (h *OrderHandler) AddLineItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req models.AddLineItemRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	line, err := h.orderService.AddLineItem(r.Context(), orderID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to add line item")
		return
	}

	writeJSONResponse(w, http.StatusCreated, line)
}

// QuoteOrder считает цену заказа без сохранения
func (h *OrderHandler) QuoteOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	result, err := h.orderService.QuoteOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to quote order")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// FinalizeOrder фиксирует цену заказа и публикует order.finalized
func (h *OrderHandler) FinalizeOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	orderID, err := extractUUIDFromPath(r.URL.Path, "/api/orders/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid order ID")
		return
	}

	result, err := h.orderService.FinalizeOrder(r.Context(), orderID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to finalize order")
		return
	}

	// Заказ уже зафиксирован в БД, ошибку публикации клиенту не возвращаем
	if h.producer != nil {
		if err := h.producer.PublishOrderFinalized(result); err != nil {
			h.log.WithError(err).WithField("order_id", orderID).Error("Failed to publish order finalized event")
		}
	}

	h.log.WithFields(logrus.Fields{
		"order_id": orderID,
		"total":    result.DiscountedTotal.String(),
	}).Info("Order finalized")
	writeJSONResponse(w, http.StatusOK, result)
}

func (h *OrderHandler) cacheOrder(r *http.Request, key string, order *models.Order) {
	if h.redisClient == nil {
		return
	}
	if err := h.redisClient.Set(r.Context(), key, order, finalizedOrderCacheTTL); err != nil {
		h.log.WithError(err).Warn("Failed to cache order")
	}
}
