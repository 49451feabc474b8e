package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/IBM/sarama"
)

type stubDB struct{ err error }

func (s *stubDB) Health() error { return s.err }

type stubRedisHealth struct{ err error }

func (s *stubRedisHealth) Health(ctx context.Context) error { return s.err }

func kafkaOK([]string) error { return nil }

func TestHealthHandler_Statuses(t *testing.T) {
	cases := []struct {
		name       string
		db         error
		redis      error
		kafka      error
		wantCode   int
		wantStatus string
	}{
		{"all up", nil, nil, nil, http.StatusOK, statusHealthy},
		{"redis down", nil, errors.New("redis down"), nil, http.StatusOK, statusDegraded},
		{"kafka down", nil, nil, errors.New("kafka down"), http.StatusOK, statusDegraded},
		{"database down", errors.New("db down"), nil, nil, http.StatusServiceUnavailable, statusUnhealthy},
		{"everything down", errors.New("db down"), errors.New("redis down"), errors.New("kafka down"), http.StatusServiceUnavailable, statusUnhealthy},
	}
	for _, tc := range cases {
		kafkaErr := tc.kafka
		h := NewHealthHandler(&stubDB{err: tc.db}, &stubRedisHealth{err: tc.redis}, []string{"kafka:9092"}, func([]string) error { return kafkaErr })
		rr := httptest.NewRecorder()
		h.Health(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rr.Code != tc.wantCode {
			t.Fatalf("%s: expected %d, got %d", tc.name, tc.wantCode, rr.Code)
		}
		var resp HealthResponse
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("%s: decode: %v", tc.name, err)
		}
		if resp.Status != tc.wantStatus {
			t.Fatalf("%s: expected status %s, got %s", tc.name, tc.wantStatus, resp.Status)
		}
		if len(resp.Services) != 3 {
			t.Fatalf("%s: expected three dependencies reported, got %v", tc.name, resp.Services)
		}
	}
}

func TestHealthHandler_ReadinessDegradedStillReady(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{err: errors.New("redis down")}, nil, kafkaOK)
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	_ = json.NewDecoder(rr.Body).Decode(&body)
	if body["mode"] != statusDegraded {
		t.Fatalf("expected degraded mode, got %v", body)
	}
}

func TestHealthHandler_Readiness_DBError(t *testing.T) {
	h := NewHealthHandler(&stubDB{err: errors.New("db down")}, &stubRedisHealth{}, nil, kafkaOK)
	rr := httptest.NewRecorder()
	h.Readiness(rr, httptest.NewRequest(http.MethodGet, "/health/readiness", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestHealthHandler_MethodNotAllowed(t *testing.T) {
	h := NewHealthHandler(&stubDB{}, &stubRedisHealth{}, nil, kafkaOK)
	for name, handle := range map[string]http.HandlerFunc{
		"/health":           h.Health,
		"/health/readiness": h.Readiness,
		"/health/liveness":  h.Liveness,
	} {
		rr := httptest.NewRecorder()
		handle(rr, httptest.NewRequest(http.MethodPost, name, nil))
		if rr.Code != http.StatusMethodNotAllowed {
			t.Fatalf("%s: expected 405, got %d", name, rr.Code)
		}
	}
}

func TestHealthHandler_Liveness(t *testing.T) {
	h := NewHealthHandler(&stubDB{err: errors.New("db down")}, &stubRedisHealth{}, nil, kafkaOK)
	rr := httptest.NewRecorder()
	h.Liveness(rr, httptest.NewRequest(http.MethodGet, "/health/liveness", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("liveness must not depend on the database, got %d", rr.Code)
	}
}

func TestCheckKafkaHealth_NoBrokers(t *testing.T) {
	if err := CheckKafkaHealth(nil); err == nil {
		t.Fatalf("expected error for empty brokers")
	}
}

func TestCheckKafkaHealth_WithMockBroker(t *testing.T) {
	broker := sarama.NewMockBroker(t, 1)
	defer broker.Close()

	broker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetBroker(broker.Addr(), broker.BrokerID()).
			SetController(broker.BrokerID()).
			SetLeader("orders", 0, broker.BrokerID()),
	})

	if err := checkKafkaHealth([]string{broker.Addr()}); err != nil {
		t.Fatalf("expected kafka health ok, got %v", err)
	}
}
