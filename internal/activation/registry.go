package activation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/smallbiznis/bsma/internal/config"
	"github.com/smallbiznis/bsma/internal/identity"
	obstracing "github.com/smallbiznis/bsma/internal/observability/tracing"
)

const maxPayloadBytes = 1 << 20

var (
	ErrRegistryNotConfigured = errors.New("activation_registry_not_configured")
	ErrRegistryStatus        = errors.New("activation_registry_status")
	ErrEmptyIMEI             = errors.New("activation_empty_imei")
)

// Registry looks up the activation status of a device by IMEI.
type Registry interface {
	Status(ctx context.Context, imei string) (map[string]any, error)
}

// HTTPRegistry calls GET {url}/{imei} with basic auth and the apikey query
// parameter. Settings are read per call so credential rotation applies
// without a restart.
type HTTPRegistry struct {
	holder *config.ActivationConfigHolder
	client *http.Client
}

func NewHTTPRegistry(holder *config.ActivationConfigHolder) *HTTPRegistry {
	return &HTTPRegistry{
		holder: holder,
		client: obstracing.WrapHTTPClient(&http.Client{}),
	}
}

func (r *HTTPRegistry) Status(ctx context.Context, imei string) (map[string]any, error) {
	cfg := r.holder.Get()
	if cfg.URL == "" {
		return nil, ErrRegistryNotConfigured
	}
	digits := identity.StripIMEI(imei)
	if digits == "" {
		return nil, ErrEmptyIMEI
	}

	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	endpoint, err := url.Parse(cfg.URL + "/" + url.PathEscape(digits))
	if err != nil {
		return nil, err
	}
	if cfg.APIKey != "" {
		q := endpoint.Query()
		q.Set("apikey", cfg.APIKey)
		endpoint.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if cfg.Username != "" || cfg.Password != "" {
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxPayloadBytes))
		return nil, fmt.Errorf("%w: %s", ErrRegistryStatus, strings.TrimSpace(resp.Status))
	}

	var payload map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxPayloadBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode registry payload: %w", err)
	}
	return payload, nil
}
