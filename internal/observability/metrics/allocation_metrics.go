package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	AllocationOutcomeCreated  = "created"
	AllocationOutcomeConflict = "conflict"
	AllocationOutcomeCapacity = "capacity"
	AllocationOutcomeRejected = "rejected"
	AllocationOutcomeError    = "error"
)

const (
	MacModePool   = "pool"
	MacModeExtend = "extend"
)

const (
	ReasonDeadlineExceeded     = "deadline_exceeded"
	ReasonDBLockTimeout        = "db_lock_timeout"
	ReasonSerializationFailure = "serialization_failure"
	ReasonUniqueViolation      = "unique_violation"
	ReasonUnknown              = "unknown"
)

// AllocationMetrics tracks the article creation critical section: how often
// it races, how long it holds the product lock and how often a product runs
// out of MAC range.
type AllocationMetrics struct {
	attempts       *prometheus.CounterVec
	retries        *prometheus.CounterVec
	outcomes       *prometheus.CounterVec
	duration       prometheus.Observer
	lockWait       prometheus.Observer
	macUnits       *prometheus.CounterVec
	outcomeCounter map[string]prometheus.Counter
}

var (
	allocationMetricsOnce sync.Once
	allocationMetrics     *AllocationMetrics
)

// Allocation returns the singleton allocation metrics registry.
func Allocation() *AllocationMetrics {
	return AllocationWithConfig(Config{})
}

// AllocationWithConfig returns the singleton allocation metrics registry using config labels.
func AllocationWithConfig(cfg Config) *AllocationMetrics {
	allocationMetricsOnce.Do(func() {
		allocationMetrics = newAllocationMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return allocationMetrics
}

// ResetAllocationMetricsForTest resets the allocation metrics singleton for tests.
func ResetAllocationMetricsForTest() {
	allocationMetricsOnce = sync.Once{}
	allocationMetrics = nil
}

func constLabels(cfg Config) prometheus.Labels {
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "bsma"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	return prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}
}

func newAllocationMetrics(registerer prometheus.Registerer, cfg Config) *AllocationMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	labels := constLabels(cfg)

	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bsma_allocation_attempts_total",
		Help:        "Article allocation transactions started, including retries.",
		ConstLabels: labels,
	}, []string{"product_id"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bsma_allocation_retries_total",
		Help:        "Article allocation retries after a lost race, by reason.",
		ConstLabels: labels,
	}, []string{"reason"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bsma_allocation_outcomes_total",
		Help:        "Article allocation results by outcome.",
		ConstLabels: labels,
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "bsma_allocation_duration_seconds",
		Help:        "Wall time of an article creation including retries.",
		Buckets:     []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		ConstLabels: labels,
	})
	lockWait := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "bsma_allocation_lock_wait_seconds",
		Help:        "Time spent acquiring the product row lock.",
		Buckets:     []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		ConstLabels: labels,
	})
	macUnits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "bsma_mac_units_total",
		Help:        "MAC rows bound to new articles by allocation mode.",
		ConstLabels: labels,
	}, []string{"mode"})

	registerer.MustRegister(attempts, retries, outcomes, duration, lockWait, macUnits)

	outcomeCounter := map[string]prometheus.Counter{}
	for _, outcome := range []string{
		AllocationOutcomeCreated,
		AllocationOutcomeConflict,
		AllocationOutcomeCapacity,
		AllocationOutcomeRejected,
		AllocationOutcomeError,
	} {
		outcomeCounter[outcome] = outcomes.WithLabelValues(outcome)
	}

	return &AllocationMetrics{
		attempts:       attempts,
		retries:        retries,
		outcomes:       outcomes,
		duration:       duration,
		lockWait:       lockWait,
		macUnits:       macUnits,
		outcomeCounter: outcomeCounter,
	}
}

func (m *AllocationMetrics) IncAttempt(productID string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(productID).Inc()
}

// IncRetry records a rolled back attempt that will be retried.
func (m *AllocationMetrics) IncRetry(err error) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(ClassifyReason(err)).Inc()
}

func (m *AllocationMetrics) IncOutcome(outcome string) {
	if m == nil {
		return
	}
	if counter, ok := m.outcomeCounter[outcome]; ok {
		counter.Inc()
		return
	}
	m.outcomes.WithLabelValues(outcome).Inc()
}

func (m *AllocationMetrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.duration.Observe(d.Seconds())
}

// ObserveLockWait records how long SELECT ... FOR UPDATE on the product took.
func (m *AllocationMetrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *AllocationMetrics) AddMacUnits(mode string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.macUnits.WithLabelValues(mode).Add(float64(count))
}

// ClassifyReason maps a database error to a low-cardinality label.
func ClassifyReason(err error) string {
	if err == nil {
		return ReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return ReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return ReasonSerializationFailure
	}
	if isUniqueViolation(err) {
		return ReasonUniqueViolation
	}
	return ReasonUnknown
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "Error 1062")
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
