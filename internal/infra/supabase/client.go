// Package supabase provides a client for Supabase PostgREST.
// It is the only path to the CRM tables; every store in this package
// goes through the fluent Query builder defined in query.go.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("supabase")

// Client wraps HTTP calls to the Supabase PostgREST API.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	serviceRoleKey string
	cb             *gobreaker.CircuitBreaker
	bulkhead       *resilience.Bulkhead
	cfg            resilience.Config
	logger         *zap.Logger
}

// NewClient creates a Supabase client.
func NewClient(httpClient *http.Client, baseURL, apiKey, serviceRoleKey string, cb *gobreaker.CircuitBreaker, cfg resilience.Config, logger *zap.Logger) *Client {
	return &Client{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(baseURL, "/"),
		apiKey:         apiKey,
		serviceRoleKey: serviceRoleKey,
		cb:             cb,
		bulkhead:       resilience.NewBulkhead(cfg.MaxConcurrency),
		cfg:            cfg,
		logger:         logger,
	}
}

// request describes one PostgREST call.
type request struct {
	method string
	path   string // relative to /rest/v1/
	query  url.Values
	body   any
	prefer []string
	accept string
}

// response is a decoded-enough PostgREST reply.
type response struct {
	status int
	header http.Header
	body   []byte
}

// doRequest executes an authenticated request to Supabase PostgREST.
// Non-2xx replies come back as *APIError.
func (c *Client) doRequest(ctx context.Context, r request) (*response, error) {
	if err := c.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer c.bulkhead.Release()

	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, r.path)
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", r.path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		c.logger.Error("supabase: failed to create request",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, err
	}

	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))
	req.Header.Set("Content-Type", "application/json")
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	}
	if len(r.prefer) > 0 {
		req.Header.Set("Prefer", strings.Join(r.prefer, ","))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("supabase: failed to read response body",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Error(err),
		)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: non-2xx response",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(raw)),
		)
		return nil, newAPIError(resp.StatusCode, raw)
	}

	c.logger.Debug("supabase: request OK",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
	)

	return &response{status: resp.StatusCode, header: resp.Header, body: raw}, nil
}

// execute runs fn behind the circuit breaker. Reads are retried with backoff;
// writes run once so a timed-out insert is never replayed.
func (c *Client) execute(ctx context.Context, service string, retry bool, fn func() error) error {
	_, err := c.cb.Execute(func() (any, error) {
		if !retry {
			return nil, fn()
		}
		return nil, resilience.RetryWithBackoff(ctx, c.cfg, func() error {
			err := fn()
			if resilience.IsClientError(err) {
				return resilience.Permanent(err)
			}
			return err
		})
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ErrCircuitOpen{Service: service}
	}
	return &domain.ErrExternalService{Service: service, Err: err}
}

// RPC calls a Postgres function exposed under /rest/v1/rpc/{fn}.
// dest may be nil when the function returns void.
func (c *Client) RPC(ctx context.Context, fn string, args any, dest any) error {
	ctx, span := tracer.Start(ctx, "Supabase.RPC")
	defer span.End()
	span.SetAttributes(attribute.String("rpc.function", fn))

	if args == nil {
		args = map[string]any{}
	}

	return c.execute(ctx, "supabase/rpc/"+fn, false, func() error {
		resp, err := c.doRequest(ctx, request{method: http.MethodPost, path: "rpc/" + fn, body: args})
		if err != nil {
			return err
		}
		if dest == nil || len(resp.body) == 0 {
			return nil
		}
		if err := json.Unmarshal(resp.body, dest); err != nil {
			return fmt.Errorf("decode rpc %s: %w", fn, err)
		}
		return nil
	})
}

// Ping checks PostgREST is reachable. Any reply below 500 counts as up.
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Supabase.Ping")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.serviceRoleKey))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 500 {
		return fmt.Errorf("supabase ping returned %d", resp.StatusCode)
	}
	return nil
}

