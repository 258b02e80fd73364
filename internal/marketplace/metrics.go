package marketplace

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/kurihiro0119/hitbatch/internal/domain"
)

// Metrics counts and times marketplace calls
type Metrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics registers the marketplace collectors on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)
	return &Metrics{
		calls: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hitbatch",
			Subsystem: "marketplace",
			Name:      "calls_total",
			Help:      "Total number of marketplace calls by operation and outcome",
		}, []string{"operation", "outcome"}),
		duration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "hitbatch",
			Subsystem: "marketplace",
			Name:      "call_duration_seconds",
			Help:      "Marketplace call latency by operation",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) observe(operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.calls.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Instrument wraps next so every call is recorded in m
func Instrument(next Client, m *Metrics) Client {
	return &instrumentedClient{next: next, metrics: m}
}

type instrumentedClient struct {
	next    Client
	metrics *Metrics
}

func (c *instrumentedClient) CreateHITType(ctx context.Context, params domain.HITTypeParams) (id string, err error) {
	defer func(start time.Time) { c.metrics.observe("CreateHITType", start, err) }(time.Now())
	return c.next.CreateHITType(ctx, params)
}

func (c *instrumentedClient) CreateHIT(ctx context.Context, params domain.HITParams) (hit *domain.HIT, err error) {
	defer func(start time.Time) { c.metrics.observe("CreateHIT", start, err) }(time.Now())
	return c.next.CreateHIT(ctx, params)
}

func (c *instrumentedClient) CreateHITWithHITType(ctx context.Context, hitTypeID string, maxAssignments int, lifetime time.Duration, question string) (hit *domain.HIT, err error) {
	defer func(start time.Time) { c.metrics.observe("CreateHITWithHITType", start, err) }(time.Now())
	return c.next.CreateHITWithHITType(ctx, hitTypeID, maxAssignments, lifetime, question)
}

func (c *instrumentedClient) GetHIT(ctx context.Context, hitID string) (hit *domain.HIT, err error) {
	defer func(start time.Time) { c.metrics.observe("GetHIT", start, err) }(time.Now())
	return c.next.GetHIT(ctx, hitID)
}

func (c *instrumentedClient) UpdateExpiration(ctx context.Context, hitID string, expireAt time.Time) (err error) {
	defer func(start time.Time) { c.metrics.observe("UpdateExpirationForHIT", start, err) }(time.Now())
	return c.next.UpdateExpiration(ctx, hitID, expireAt)
}

func (c *instrumentedClient) CreateAdditionalAssignments(ctx context.Context, hitID string, count int) (err error) {
	defer func(start time.Time) { c.metrics.observe("CreateAdditionalAssignmentsForHIT", start, err) }(time.Now())
	return c.next.CreateAdditionalAssignments(ctx, hitID, count)
}

func (c *instrumentedClient) ListOwnQualificationTypes(ctx context.Context) (qts []domain.QualificationType, err error) {
	defer func(start time.Time) { c.metrics.observe("ListQualificationTypes", start, err) }(time.Now())
	return c.next.ListOwnQualificationTypes(ctx)
}

func (c *instrumentedClient) GetAccountBalance(ctx context.Context) (balance decimal.Decimal, err error) {
	defer func(start time.Time) { c.metrics.observe("GetAccountBalance", start, err) }(time.Now())
	return c.next.GetAccountBalance(ctx)
}
