package services

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"delivery-pricing/internal/config"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/redis"
)

// RateLimiter ограничивает число публичных запросов расчета в фиксированном окне.
// Ключ окна складывается из области (check, quote) и IP клиента.
type RateLimiter struct {
	counter windowCounter
	log     *logger.Logger
	enabled bool
	limit   int64
	window  time.Duration
	prefix  string
}

type windowCounter interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateDecision результат проверки лимита
type RateDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   time.Time
}

// NewRateLimiter создаёт rate limiter. Без Redis или при выключенном конфиге пропускает всё.
func NewRateLimiter(redisClient *redis.Client, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	if redisClient == nil || cfg == nil || !cfg.Enabled || cfg.Requests <= 0 || cfg.WindowSeconds <= 0 {
		return &RateLimiter{enabled: false}
	}
	return newRateLimiter(redisClient, log, cfg)
}

func newRateLimiter(counter windowCounter, log *logger.Logger, cfg *config.RateLimitConfig) *RateLimiter {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = redis.KeyPrefixRateLimit
	}
	return &RateLimiter{
		counter: counter,
		log:     log,
		enabled: true,
		limit:   int64(cfg.Requests),
		window:  time.Duration(cfg.WindowSeconds) * time.Second,
		prefix:  prefix,
	}
}

// Allow учитывает запрос клиента в области scope.
func (r *RateLimiter) Allow(ctx context.Context, scope, client string) (RateDecision, error) {
	if r == nil || !r.enabled {
		return RateDecision{Allowed: true}, nil
	}

	key := r.makeKey(scope, client)
	count, ttl, err := r.counter.IncrWindow(ctx, key, r.window)
	if err != nil {
		if count == 0 {
			return RateDecision{}, fmt.Errorf("rate limiter incr failed: %w", err)
		}
		r.log.WithError(err).WithField("key", key).Warn("Failed to maintain rate limit window")
		ttl = r.window
	}

	remaining := r.limit - count
	if remaining < 0 {
		remaining = 0
	}
	return RateDecision{
		Allowed:   count <= r.limit,
		Limit:     r.limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}, nil
}

// Enabled сообщает, включён ли rate limiting.
func (r *RateLimiter) Enabled() bool {
	return r != nil && r.enabled
}

func (r *RateLimiter) makeKey(scope, client string) string {
	safeClient := strings.ReplaceAll(client, ":", "_")
	return fmt.Sprintf("%s:%s:%s", r.prefix, scope, safeClient)
}

// ExtractClientIP получает IP из заголовков/RemoteAddr.
func ExtractClientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); ip != "" {
		parts := strings.Split(ip, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}
