package handlers

import (
	"errors"
	"net/http"

	"delivery-pricing/internal/apperror"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/services"
)

// outOfZoneDetails уточняет ответ OutOfZone ближайшей зоной
type outOfZoneDetails struct {
	City        string  `json:"city"`
	NearestZone string  `json:"nearest_zone,omitempty"`
	DistanceKm  float64 `json:"distance_km"`
}

func writeServiceError(w http.ResponseWriter, log *logger.Logger, err error, internalMessage string) {
	status := http.StatusInternalServerError
	switch {
	case apperror.Is(err, apperror.KindNotFound):
		status = http.StatusNotFound
	case apperror.Is(err, apperror.KindValidation):
		status = http.StatusBadRequest
	case apperror.Is(err, apperror.KindConflict):
		status = http.StatusConflict
	case apperror.Is(err, apperror.KindUnprocessable):
		status = http.StatusUnprocessableEntity
	default:
		if log != nil {
			log.WithError(err).Error(internalMessage)
		}
		writeErrorResponse(w, status, internalMessage)
		return
	}

	response := ErrorResponse{
		Error:   http.StatusText(status),
		Code:    string(apperror.CodeOf(err)),
		Message: err.Error(),
	}
	var outErr *services.OutOfZoneError
	if errors.As(err, &outErr) && outErr.NearestZone != "" {
		response.Details = outOfZoneDetails{
			City:        outErr.City,
			NearestZone: outErr.NearestZone,
			DistanceKm:  outErr.DistanceKm,
		}
	}
	writeJSONResponse(w, status, response)
}
