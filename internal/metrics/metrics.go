package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Исходы финализации заказа
const (
	ResultOK       = "ok"
	ResultConflict = "conflict"
	ResultRejected = "rejected"
	ResultError    = "error"
)

// PricingMetrics счётчики расчета заказов
type PricingMetrics struct {
	FinalizeTotal     *prometheus.CounterVec
	FinalizeDuration  prometheus.Histogram
	PromotionsApplied *prometheus.CounterVec
	ZoneChecks        *prometheus.CounterVec
	ZoneCacheLookups  *prometheus.CounterVec
}

// New создает и регистрирует метрики. reg == nil означает регистр по умолчанию.
func New(namespace string, reg prometheus.Registerer) *PricingMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &PricingMetrics{
		FinalizeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_finalize_total",
			Help:      "Order finalize attempts by outcome.",
		}, []string{"result"}),
		FinalizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_finalize_duration_ms",
			Help:      "Order finalize latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		PromotionsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotions_applied_total",
			Help:      "Promotions applied to finalized orders by discount type.",
		}, []string{"discount_type"}),
		ZoneChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_checks_total",
			Help:      "Address zone checks by outcome.",
		}, []string{"in_zone"}),
		ZoneCacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "zone_cache_lookups_total",
			Help:      "Zone cache lookups by outcome.",
		}, []string{"result"}),
	}

	m.FinalizeTotal = registerCounterVec(reg, m.FinalizeTotal)
	m.PromotionsApplied = registerCounterVec(reg, m.PromotionsApplied)
	m.ZoneChecks = registerCounterVec(reg, m.ZoneChecks)
	m.ZoneCacheLookups = registerCounterVec(reg, m.ZoneCacheLookups)
	if err := reg.Register(m.FinalizeDuration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				m.FinalizeDuration = existing
			}
		} else {
			panic(err)
		}
	}
	return m
}

// ObserveFinalize фиксирует исход и длительность финализации
func (m *PricingMetrics) ObserveFinalize(result string, started time.Time) {
	if m == nil {
		return
	}
	m.FinalizeTotal.WithLabelValues(result).Inc()
	m.FinalizeDuration.Observe(float64(time.Since(started)) / float64(time.Millisecond))
}

// PromotionApplied учитывает примененную акцию
func (m *PricingMetrics) PromotionApplied(discountType string) {
	if m == nil {
		return
	}
	m.PromotionsApplied.WithLabelValues(discountType).Inc()
}

// ZoneChecked учитывает проверку адреса
func (m *PricingMetrics) ZoneChecked(inZone bool) {
	if m == nil {
		return
	}
	label := "false"
	if inZone {
		label = "true"
	}
	m.ZoneChecks.WithLabelValues(label).Inc()
}

// ZoneCacheLookup учитывает попадание или промах кеша зон
func (m *PricingMetrics) ZoneCacheLookup(hit bool) {
	if m == nil {
		return
	}
	label := "miss"
	if hit {
		label = "hit"
	}
	m.ZoneCacheLookups.WithLabelValues(label).Inc()
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
