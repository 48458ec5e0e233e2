package observability_test

import (
	"testing"

	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFilterCore_DropsSuppressedMessages(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(observability.NewFilterCore(core, []string{"heartbeat"}))

	logger.Info("realtime: heartbeat sent")
	logger.Warn("supabase: non-2xx response")
	logger.With(zap.String("k", "v")).Info("another heartbeat ack")

	assert.Equal(t, 1, logs.Len())
	assert.Equal(t, "supabase: non-2xx response", logs.All()[0].Message)
}

func TestMetrics_ServiceSnapshot(t *testing.T) {
	m := observability.NewMetrics()

	m.IncrFallback("messages_by_type")
	m.IncrFallback("messages_by_type")
	m.IncrFallback("clients_served")
	m.IncrWebhook("campaign_created", "delivered")
	m.IncrWebhook("campaign_trigger", "failed")
	m.IncrCacheHit("views")
	m.IncrCacheMiss("views")
	m.IncrRealtimeEvent("INSERT")

	snap := m.GetServiceSnapshot()
	assert.Equal(t, float64(3), snap.AggregationFallbacks)
	assert.Equal(t, float64(1), snap.WebhookDelivered)
	assert.Equal(t, float64(1), snap.WebhookFailed)
	assert.Equal(t, 0.5, snap.CacheHitRate)
	assert.Equal(t, float64(1), snap.RealtimeEvents)
	assert.Equal(t, float64(2), m.Fallbacks("messages_by_type"))
}
