package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
)

// Состояния сервиса расчета
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// dependencyProbe проверка одной зависимости. Без обязательной зависимости
// расчет заказа невозможен; без необязательной работает без кеша или событий.
type dependencyProbe struct {
	name     string
	required bool
	check    func(ctx context.Context) error
}

// HealthHandler отдает состояние зависимостей сервиса расчета
type HealthHandler struct {
	probes []dependencyProbe
}

// NewHealthHandler создает обработчик здоровья; kafkaCheck по умолчанию CheckKafkaHealth.
// База обязательна, Redis (кеш зон, лимиты) и Kafka (события) нет.
func NewHealthHandler(db DBHealth, redisClient RedisHealth, kafkaBrokers []string, kafkaCheck func([]string) error) *HealthHandler {
	if kafkaCheck == nil {
		kafkaCheck = CheckKafkaHealth
	}
	return &HealthHandler{
		probes: []dependencyProbe{
			{name: "database", required: true, check: func(context.Context) error { return db.Health() }},
			{name: "redis", check: redisClient.Health},
			{name: "kafka", check: func(context.Context) error { return kafkaCheck(kafkaBrokers) }},
		},
	}
}

// HealthResponse ответ проверки здоровья
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Uptime   string            `json:"uptime"`
}

var startTime = time.Now()

// evaluate опрашивает все зависимости и сводит их в общий статус
func (h *HealthHandler) evaluate(ctx context.Context) HealthResponse {
	resp := HealthResponse{
		Status:   statusHealthy,
		Services: make(map[string]string, len(h.probes)),
		Uptime:   time.Since(startTime).String(),
	}
	for _, p := range h.probes {
		if err := p.check(ctx); err != nil {
			resp.Services[p.name] = statusUnhealthy + ": " + err.Error()
			if p.required {
				resp.Status = statusUnhealthy
			} else if resp.Status == statusHealthy {
				resp.Status = statusDegraded
			}
			continue
		}
		resp.Services[p.name] = statusHealthy
	}
	return resp
}

// Health подробное состояние; 503 только если недоступна обязательная зависимость
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := h.evaluate(ctx)
	statusCode := http.StatusOK
	if resp.Status == statusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, statusCode, resp)
}

// Readiness готовность принимать заказы на расчет
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := h.evaluate(ctx)
	if resp.Status == statusUnhealthy {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Pricing is not ready")
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready", "mode": resp.Status})
}

// Liveness проверяет, что процесс жив
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}

// CheckKafkaHealth проверяет доступность Kafka брокеров
func CheckKafkaHealth(brokers []string) error {
	return checkKafkaHealth(brokers)
}

func checkKafkaHealth(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return nil
}
