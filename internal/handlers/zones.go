package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/models"

	"github.com/sirupsen/logrus"
)

// ZoneHandler обрабатывает зоны доставки и проверку адреса.
type ZoneHandler struct {
	zoneService ZoneService
	producer    EventProducer
	log         *logger.Logger
}

// NewZoneHandler создаёт обработчик зон.
func NewZoneHandler(zoneService ZoneService, producer EventProducer, log *logger.Logger) *ZoneHandler {
	return &ZoneHandler{
		zoneService: zoneService,
		producer:    producer,
		log:         log,
	}
}

// CreateZone создаёт зону доставки.
func (h *ZoneHandler) CreateZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.ZoneRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	zone, err := h.zoneService.CreateZone(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create zone")
		return
	}

	h.publishZoneUpdated(zone)
	writeJSONResponse(w, http.StatusCreated, zone)
}

// ListZones возвращает зоны, опционально по городу (?city=).
func (h *ZoneHandler) ListZones(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	zones, err := h.zoneService.ListZones(r.Context(), r.URL.Query().Get("city"))
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list zones")
		return
	}

	writeJSONResponse(w, http.StatusOK, zones)
}

// GetZone возвращает зону по ID.
func (h *ZoneHandler) GetZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/zones/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid zone ID")
		return
	}

	zone, err := h.zoneService.GetZone(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get zone")
		return
	}

	writeJSONResponse(w, http.StatusOK, zone)
}

// UpdateZone заменяет описание зоны.
func (h *ZoneHandler) UpdateZone(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	id, err := extractUUIDFromPath(r.URL.Path, "/api/zones/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid zone ID")
		return
	}

	var req models.ZoneRequest
	if err := decodeRequest(r, &req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	zone, err := h.zoneService.UpdateZone(r.Context(), id, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update zone")
		return
	}

	h.publishZoneUpdated(zone)
	writeJSONResponse(w, http.StatusOK, zone)
}

// CheckAddress отвечает, доставляем ли по координатам.
// GET принимает lat, lon и city в query, POST принимает ZoneCheckRequest.
func (h *ZoneHandler) CheckAddress(w http.ResponseWriter, r *http.Request) {
	var req models.ZoneCheckRequest
	switch r.Method {
	case http.MethodGet:
		parsed, err := zoneCheckFromQuery(r)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		req = *parsed
	case http.MethodPost:
		if err := decodeRequest(r, &req); err != nil {
			writeErrorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
	default:
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	check, err := h.zoneService.CheckAddressInZone(r.Context(), *req.Lat, *req.Lon, req.City)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to check address")
		return
	}

	writeJSONResponse(w, http.StatusOK, check)
}

func zoneCheckFromQuery(r *http.Request) (*models.ZoneCheckRequest, error) {
	query := r.URL.Query()
	req := &models.ZoneCheckRequest{City: strings.TrimSpace(query.Get("city"))}
	if v := query.Get("lat"); v != "" {
		lat, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("lat must be a number")
		}
		req.Lat = &lat
	}
	if v := query.Get("lon"); v != "" {
		lon, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("lon must be a number")
		}
		req.Lon = &lon
	}
	if err := validate.Struct(req); err != nil {
		return nil, describeValidationError(err)
	}
	return req, nil
}

func (h *ZoneHandler) publishZoneUpdated(zone *models.DeliveryZone) {
	if h.producer == nil || zone == nil {
		return
	}
	if err := h.producer.PublishZoneUpdated(zone.ID, zone.City); err != nil {
		h.log.WithError(err).WithFields(logrus.Fields{
			"zone_id": zone.ID,
			"city":    zone.City,
		}).Error("Failed to publish zone updated event")
	}
}
