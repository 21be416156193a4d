package metrics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("product_id", "123"),
		attribute.String("article_id", "456"),
		attribute.String("mode", "pool"),
	)
	require.Len(t, attrs, 2)
	keys := []attribute.Key{attrs[0].Key, attrs[1].Key}
	assert.Contains(t, keys, attribute.Key("product_id"))
	assert.Contains(t, keys, attribute.Key("mode"))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordArticleCreated(context.Background(), "1")
	m.RecordMacUnits(context.Background(), "1", "extend", 2)
	m.RecordActivationUpdate(context.Background(), "updated")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "bsma"}, noop.NewMeterProvider())
	require.NoError(t, err)
	m.RecordArticleCreated(context.Background(), "1")
	m.RecordMacUnits(context.Background(), "1", "pool", 2)
}
