package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/bsma/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

var errUnique = errors.New("UNIQUE constraint failed: articles.product_id, articles.serial")

func observeGlobal(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "user", "operator-7")
	WithContext(ctx, base).Info("hello")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user", fields["actor_type"])
	assert.Equal(t, "operator-7", fields["actor_id"])
}

func TestGormLoggerDemotesExpectedErrors(t *testing.T) {
	logs := observeGlobal(t)

	l := NewGormLogger(GormLoggerConfig{
		Level: gormlogger.Warn,
		ExpectedError: func(err error) bool {
			return errors.Is(err, errUnique)
		},
	})

	sql := func() (string, int64) { return "INSERT INTO articles (id) VALUES (1)", 0 }
	l.Trace(context.Background(), time.Now(), sql, errUnique)
	l.Trace(context.Background(), time.Now(), sql, errors.New("connection reset"))

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zapcore.DebugLevel, logs.All()[0].Level)
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[1].Level)
	assert.Equal(t, "INSERT", logs.All()[1].ContextMap()["operation"])
}

func TestGinMiddlewarePropagatesRequestAndActor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logs := observeGlobal(t)

	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))
	var gotActor string
	router.GET("/api/articles", func(c *gin.Context) {
		_, gotActor = obscontext.ActorFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/articles", nil)
	req.Header.Set("X-Request-Id", "abc")
	req.Header.Set(HeaderActorID, "operator-1")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	assert.Equal(t, "abc", resp.Header().Get("X-Request-Id"))
	assert.Equal(t, "operator-1", gotActor)

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/articles", entries[0].ContextMap()["route"])
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
}
