package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"delivery-pricing/internal/config"
	"delivery-pricing/internal/database"
	"delivery-pricing/internal/handlers"
	"delivery-pricing/internal/kafka"
	"delivery-pricing/internal/logger"
	"delivery-pricing/internal/metrics"
	"delivery-pricing/internal/models"
	"delivery-pricing/internal/redis"
	"delivery-pricing/internal/services"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const metricsNamespace = "delivery_pricing"

// Фабричные функции для подключения внешних сервисов (подменяемые в тестах).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application агрегирует собранные зависимости.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

// routeHandlers набор HTTP обработчиков для setupRoutes
type routeHandlers struct {
	orders  *handlers.OrderHandler
	zones   *handlers.ZoneHandler
	promos  *handlers.PromoHandler
	health  *handlers.HealthHandler
	limiter handlers.MiddlewareLimiter
	metrics http.Handler
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting delivery pricing server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication создает все зависимости (подменяемые в тестах).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	pricingMetrics := metrics.New(metricsNamespace, nil)
	resolver := services.NewGeoZoneResolver(cfg.Geo.HonorRadiusZones)
	zoneCacheTTL := time.Duration(cfg.Geo.ZoneCacheTTLMinutes) * time.Minute

	pricingService := services.NewPricingService(resolver)
	promoService := services.NewPromoService(db, log)
	catalogService := services.NewCatalogService(db, log)
	zoneService := services.NewZoneService(db, redisClient, log, resolver, pricingMetrics, zoneCacheTTL)
	geocodingService := services.NewGeocodingService(redisClient, log, &cfg.Geocoding)
	orderService := services.NewOrderService(db, log, pricingService, promoService, catalogService, zoneService, geocodingService, pricingMetrics)

	routes := routeHandlers{
		orders:  handlers.NewOrderHandler(orderService, producer, redisClient, log),
		zones:   handlers.NewZoneHandler(zoneService, producer, log),
		promos:  handlers.NewPromoHandler(promoService, log),
		health:  handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck),
		limiter: services.NewRateLimiter(redisClient, log, &cfg.RateLimit),
	}
	if cfg.Metrics.Enabled {
		routes.metrics = promhttp.Handler()
	}

	registerEventHandlers(consumer, zoneService, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(routes, cfg.Metrics.Path, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes настраивает маршруты HTTP сервера
func setupRoutes(h routeHandlers, metricsPath string, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	limited := func(scope string, next http.HandlerFunc) http.HandlerFunc {
		return handlers.RateLimitMiddleware(h.limiter, scope, log, next)
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(h.health.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(h.health.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(h.health.Liveness))

	// Order endpoints
	mux.HandleFunc("/api/orders", corsMiddleware(h.orders.CreateOrder))
	mux.HandleFunc("/api/orders/", corsMiddleware(handleOrderRoute(h.orders, limited(handlers.RateScopeQuote, h.orders.QuoteOrder))))

	// Zone endpoints
	mux.HandleFunc("/api/zones", corsMiddleware(handleZonesRoute(h.zones)))
	mux.HandleFunc("/api/zones/check", corsMiddleware(limited(handlers.RateScopeZoneCheck, h.zones.CheckAddress)))
	mux.HandleFunc("/api/zones/", corsMiddleware(handleZoneRoute(h.zones)))

	// Promotion endpoints
	mux.HandleFunc("/api/promotions", corsMiddleware(handlePromotionsRoute(h.promos)))
	mux.HandleFunc("/api/promotions/", corsMiddleware(handlePromotionRoute(h.promos)))

	if h.metrics != nil && metricsPath != "" {
		mux.Handle(metricsPath, h.metrics)
	}

	return mux
}

// handleOrderRoute обрабатывает /api/orders/{id}[/items|/quote|/finalize]
func handleOrderRoute(handler *handlers.OrderHandler, quote http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/orders/"), "/")
		parts := strings.Split(rest, "/")
		switch {
		case len(parts) == 1:
			handler.GetOrder(w, r)
		case len(parts) == 2 && parts[1] == "items":
			handler.AddLineItem(w, r)
		case len(parts) == 2 && parts[1] == "quote":
			quote(w, r)
		case len(parts) == 2 && parts[1] == "finalize":
			handler.FinalizeOrder(w, r)
		default:
			writeErrorResponse(w, http.StatusNotFound, "Not found")
		}
	}
}

// handleZonesRoute обрабатывает коллекцию зон
func handleZonesRoute(handler *handlers.ZoneHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListZones(w, r)
		case http.MethodPost:
			handler.CreateZone(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleZoneRoute обрабатывает отдельную зону
func handleZoneRoute(handler *handlers.ZoneHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetZone(w, r)
		case http.MethodPut:
			handler.UpdateZone(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePromotionsRoute обрабатывает коллекцию акций
func handlePromotionsRoute(handler *handlers.PromoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListPromotions(w, r)
		case http.MethodPost:
			handler.CreatePromotion(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePromotionRoute обрабатывает отдельную акцию
func handlePromotionRoute(handler *handlers.PromoHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.GetPromotion(w, r)
		case http.MethodPut:
			handler.UpdatePromotion(w, r)
		case http.MethodDelete:
			handler.DeletePromotion(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// zoneCacheInvalidator сбрасывает кеш зон
type zoneCacheInvalidator interface {
	InvalidateCity(ctx context.Context, city string)
	InvalidateAll(ctx context.Context)
}

// eventRegistry принимает обработчики событий Kafka
type eventRegistry interface {
	RegisterHandler(eventType models.EventType, handler kafka.EventHandler)
}

// registerEventHandlers регистрирует обработчики событий Kafka.
// zone.updated без города сбрасывает кеш зон всех городов.
func registerEventHandlers(consumer eventRegistry, zones zoneCacheInvalidator, log *logger.Logger) {
	// Кеш города мог быть заполнен другим экземпляром до коммита изменения зоны
	consumer.RegisterHandler(models.EventTypeZoneUpdated, func(ctx context.Context, event *models.Event) error {
		var data models.ZoneUpdatedData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return fmt.Errorf("decode zone.updated payload: %w", err)
		}
		if strings.TrimSpace(data.City) == "" {
			zones.InvalidateAll(ctx)
		} else {
			zones.InvalidateCity(ctx, data.City)
		}
		log.WithFields(logrus.Fields{
			"event_id": event.ID,
			"zone_id":  data.ZoneID,
			"city":     data.City,
		}).Info("Zone cache invalidated")
		return nil
	})
}

// corsMiddleware и другие helper функции
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
