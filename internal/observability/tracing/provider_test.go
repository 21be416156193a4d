package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("activation.password", "secret"),
		attribute.String("http.request.header.authorization", "Basic abc"),
		attribute.Int64("product_id", 7),
	)

	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("product_id"), attrs[0].Key)
}

func TestSafeError(t *testing.T) {
	assert.Nil(t, SafeError(nil))
	assert.Nil(t, SafeError(errors.New("  ")))

	long := errors.New(strings.Repeat("x", 300))
	assert.Len(t, SafeError(long).Error(), 256)

	wrapped := SafeError(errors.New("lock timeout"))
	assert.EqualError(t, wrapped, "lock timeout")
}

func TestNewExporterRejectsUnknownProtocol(t *testing.T) {
	_, err := newExporter("carrier-pigeon", "localhost:4317")
	assert.Error(t, err)
}
