package activation

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smallbiznis/bsma/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registryFor(url string) *HTTPRegistry {
	cfg := config.DefaultActivationConfig()
	cfg.Enabled = true
	cfg.URL = url
	cfg.Username = "warehouse"
	cfg.Password = "secret"
	cfg.APIKey = "k-1"
	cfg.Timeout = 2 * time.Second
	return NewHTTPRegistry(config.NewStaticActivationConfigHolder(cfg))
}

func TestHTTPRegistryStatus(t *testing.T) {
	var gotPath, gotKey, gotUser, gotPass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("apikey")
		gotUser, gotPass, _ = r.BasicAuth()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"devices":[{"status":"active"}]}`))
	}))
	defer srv.Close()

	payload, err := registryFor(srv.URL+"/status").Status(context.Background(), "35-123456-000007-3")
	require.NoError(t, err)

	assert.Equal(t, "/status/351234560000073", gotPath)
	assert.Equal(t, "k-1", gotKey)
	assert.Equal(t, "warehouse", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Contains(t, payload, "devices")
}

func TestHTTPRegistryRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := registryFor(srv.URL).Status(context.Background(), "351234560000073")
	assert.ErrorIs(t, err, ErrRegistryStatus)
}

func TestHTTPRegistryRejectsBadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := registryFor(srv.URL).Status(context.Background(), "351234560000073")
	assert.Error(t, err)
}

func TestHTTPRegistryRequiresURL(t *testing.T) {
	r := NewHTTPRegistry(config.NewStaticActivationConfigHolder(config.DefaultActivationConfig()))
	_, err := r.Status(context.Background(), "351234560000073")
	assert.ErrorIs(t, err, ErrRegistryNotConfigured)

	_, err = registryFor("http://127.0.0.1:1").Status(context.Background(), " - ")
	assert.ErrorIs(t, err, ErrEmptyIMEI)
}

func TestRedisLockWithoutClient(t *testing.T) {
	assert.Nil(t, NewRedisLock(nil))

	var l *RedisLock
	_, ok, err := l.TryLock(context.Background(), runLockKey, time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, errLockNotConfigured)
	assert.NoError(t, l.Release(context.Background(), runLockKey, "token"))
}
