package webhook_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/resilience"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/webhook"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClient(t *testing.T, h http.HandlerFunc) (*webhook.Client, *observability.Metrics) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	m := observability.NewMetrics()
	return webhook.NewClient(srv.Client(), srv.URL+"/hook", resilience.NewCircuitBreaker("webhook-test", nil), m, zap.NewNop()), m
}

func TestNotify_PostsEnvelope(t *testing.T) {
	var got map[string]any
	c, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/hook", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"success":true,"executionId":"exec-42"}`))
	})

	id, err := c.Notify(context.Background(), domain.EventCampaignTrigger, map[string]any{"campaignId": "k1"})
	require.NoError(t, err)
	assert.Equal(t, "exec-42", id)

	assert.Equal(t, domain.EventCampaignTrigger, got["event"])
	assert.Equal(t, webhook.Source, got["source"])
	assert.NotEmpty(t, got["id"])
	assert.NotEmpty(t, got["timestamp"])
	assert.Equal(t, "k1", got["data"].(map[string]any)["campaignId"])
	assert.Equal(t, float64(1), m.GetServiceSnapshot().WebhookDelivered)
}

func TestNotify_Non2xxIsError(t *testing.T) {
	var calls int32
	c, m := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.Notify(context.Background(), domain.EventCampaignCreated, nil)

	var ext *domain.ErrExternalService
	require.ErrorAs(t, err, &ext)
	assert.Equal(t, "webhook", ext.Service)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "webhook calls are not retried")
	assert.Equal(t, float64(1), m.GetServiceSnapshot().WebhookFailed)
}

func TestNotify_ReportedFailureIsError(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"error":"workflow disabled"}`))
	})

	_, err := c.Notify(context.Background(), domain.EventCampaignTrigger, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow disabled")
}

func TestNotify_EmptyBodyIsSuccess(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	id, err := c.Notify(context.Background(), domain.EventCampaignCreated, nil)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestHealthCheck(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"not found still reachable", http.StatusNotFound, false},
		{"server error", http.StatusInternalServerError, true},
		{"method not allowed", http.StatusMethodNotAllowed, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodGet, r.Method)
				w.WriteHeader(tc.status)
			})
			err := c.HealthCheck(context.Background())
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNotify_Unconfigured(t *testing.T) {
	c := webhook.NewClient(http.DefaultClient, "", resilience.NewCircuitBreaker("w", nil), nil, zap.NewNop())
	_, err := c.Notify(context.Background(), domain.EventCampaignCreated, nil)
	assert.Error(t, err)
	assert.Error(t, c.HealthCheck(context.Background()))
}
