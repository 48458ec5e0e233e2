// Package webhook calls the external automation engine that runs campaigns.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("webhook")

// Source identifies this service in every envelope.
const Source = "farma-crm"

// Envelope is the JSON body posted to the automation webhook.
type Envelope struct {
	ID        string    `json:"id"`
	Event     string    `json:"event"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
}

// reply is what the engine answers; every field is optional.
type reply struct {
	Success     *bool  `json:"success"`
	ExecutionID string `json:"executionId"`
	Message     string `json:"message"`
	Error       string `json:"error"`
}

// Client posts events to the automation webhook. Calls are never retried.
type Client struct {
	httpClient *http.Client
	url        string
	cb         *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// NewClient creates a webhook client. metrics may be nil.
func NewClient(httpClient *http.Client, url string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		url:        url,
		cb:         cb,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
	}
}

// Notify posts one event and returns the executionId the engine reported.
// A non-2xx status or an explicit "success": false is an error.
func (c *Client) Notify(ctx context.Context, event string, data any) (string, error) {
	ctx, span := tracer.Start(ctx, "Webhook.Notify")
	defer span.End()
	span.SetAttributes(attribute.String("webhook.event", event))

	if c.url == "" {
		c.record(event, "failed")
		return "", &domain.ErrExternalService{Service: "webhook", Err: errors.New("webhook url not configured")}
	}

	env := Envelope{
		ID:        uuid.NewString(),
		Event:     event,
		Data:      data,
		Timestamp: c.now().UTC(),
		Source:    Source,
	}

	result, err := c.cb.Execute(func() (any, error) {
		body, err := json.Marshal(env)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, string(raw))
		}

		var r reply
		if len(bytes.TrimSpace(raw)) > 0 {
			// Non-JSON 2xx bodies are accepted as success without an execution id.
			_ = json.Unmarshal(raw, &r)
		}
		if r.Success != nil && !*r.Success {
			msg := r.Error
			if msg == "" {
				msg = r.Message
			}
			return nil, fmt.Errorf("webhook reported failure: %s", msg)
		}
		return r.ExecutionID, nil
	})

	if err != nil {
		c.record(event, "failed")
		c.logger.Warn("webhook: notify failed",
			zap.String("event", event),
			zap.String("envelope_id", env.ID),
			zap.Error(err),
		)
		return "", &domain.ErrExternalService{Service: "webhook", Err: err}
	}

	c.record(event, "delivered")
	executionID, _ := result.(string)
	c.logger.Info("webhook: event delivered",
		zap.String("event", event),
		zap.String("envelope_id", env.ID),
		zap.String("execution_id", executionID),
	)
	return executionID, nil
}

// HealthCheck GETs the webhook URL. 2xx and 404 both mean reachable:
// most engines only answer POST on the hook path.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Webhook.HealthCheck")
	defer span.End()

	if c.url == "" {
		return errors.New("webhook url not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusNotFound || (resp.StatusCode >= 200 && resp.StatusCode < 300) {
		return nil
	}
	return fmt.Errorf("webhook health check returned %d", resp.StatusCode)
}

func (c *Client) record(event, outcome string) {
	if c.metrics != nil {
		c.metrics.IncrWebhook(event, outcome)
	}
}
