package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassifyReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", context.DeadlineExceeded, ReasonDeadlineExceeded},
		{"db_lock_timeout", &pgconn.PgError{Code: "55P03"}, ReasonDBLockTimeout},
		{"serialization_failure", &pgconn.PgError{Code: "40001"}, ReasonSerializationFailure},
		{"unique_violation", gorm.ErrDuplicatedKey, ReasonUniqueViolation},
		{"sqlite_unique", fmt.Errorf("insert: %w", errors.New("UNIQUE constraint failed: macs.product_id, macs.offset")), ReasonUniqueViolation},
		{"unknown", errors.New("boom"), ReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyReason(tc.err))
		})
	}
}

func TestAllocationMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newAllocationMetrics(registry, Config{ServiceName: "bsma", Environment: "test"})

	m.IncAttempt("42")
	m.IncAttempt("42")
	m.IncRetry(gorm.ErrDuplicatedKey)
	m.IncOutcome(AllocationOutcomeCreated)
	m.AddMacUnits(MacModeExtend, 2)
	m.ObserveLockWait(-time.Second)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.attempts.WithLabelValues("42")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.retries.WithLabelValues(ReasonUniqueViolation)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.outcomes.WithLabelValues(AllocationOutcomeCreated)))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.macUnits.WithLabelValues(MacModeExtend)))
}

func TestJobMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newJobMetrics(registry, Config{ServiceName: "bsma", Environment: "test"})

	m.IncJobRun("activation_poll")
	m.AddProcessed("activation_poll", "updated", 3)
	m.AddProcessed("activation_poll", "updated", 0)
	m.IncJobError("activation_poll", context.Canceled)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobRuns.WithLabelValues("activation_poll")))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.batchProcessed.WithLabelValues("activation_poll", "updated")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.jobErrors.WithLabelValues("activation_poll", ReasonDeadlineExceeded)))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	router := gin.New()
	router.Use(GinMiddleware(m))
	router.GET("/api/products/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/products/7", nil))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("/api/products/:id", http.MethodGet, "404")))
}
