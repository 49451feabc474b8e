package handlers

import (
	"context"
	"net/http"
	"strconv"

	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/services"
)

// Области лимита публичных запросов расчета
const (
	RateScopeZoneCheck = "check"
	RateScopeQuote     = "quote"
)

// MiddlewareLimiter описывает контракт для rate limiter.
type MiddlewareLimiter interface {
	Allow(ctx context.Context, scope, client string) (services.RateDecision, error)
	Enabled() bool
}

// RateLimitMiddleware применяет rate limiting к хендлеру в области scope.
// Ошибка хранилища лимита не блокирует расчет.
func RateLimitMiddleware(limiter MiddlewareLimiter, scope string, log *logger.Logger, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter == nil || !limiter.Enabled() || r.Method == http.MethodOptions {
			next(w, r)
			return
		}

		key := services.ExtractClientIP(r)
		decision, err := limiter.Allow(r.Context(), scope, key)
		if err != nil {
			log.WithError(err).WithField("scope", scope).Warn("Rate limiter failed, request allowed")
			next(w, r)
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(decision.Limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(decision.Remaining, 10))
		if !decision.ResetAt.IsZero() {
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(decision.ResetAt.Unix(), 10))
		}

		if !decision.Allowed {
			writeErrorResponse(w, http.StatusTooManyRequests, "Rate limit exceeded")
			return
		}

		next(w, r)
	}
}
