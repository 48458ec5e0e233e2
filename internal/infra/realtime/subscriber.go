// Package realtime subscribes to Supabase Realtime (Phoenix channels) and
// delivers changes of the messages table.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	messagesTopic  = "realtime:public:messages"
	heartbeatEvery = 25 * time.Second
	writeWait      = 10 * time.Second
	readWait       = 2 * heartbeatEvery
	minBackoff     = time.Second
	maxBackoff     = 30 * time.Second
)

// Frame is one Phoenix channel message.
type Frame struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref,omitempty"`
}

type changePayload struct {
	Data struct {
		Type   string         `json:"type"`
		Table  string         `json:"table"`
		Record domain.Message `json:"record"`
	} `json:"data"`
}

type replyPayload struct {
	Status   string          `json:"status"`
	Response json.RawMessage `json:"response"`
}

// DecodeFrame extracts a message change from a raw frame. ok is false for
// frames that are not messages INSERT/UPDATE notifications.
func DecodeFrame(raw []byte) (change domain.MessageChange, ok bool, err error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return change, false, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event != "postgres_changes" {
		return change, false, nil
	}

	var p changePayload
	if err := json.Unmarshal(f.Payload, &p); err != nil {
		return change, false, fmt.Errorf("decode postgres_changes payload: %w", err)
	}
	if p.Data.Table != "" && p.Data.Table != "messages" {
		return change, false, nil
	}
	switch p.Data.Type {
	case "INSERT", "UPDATE":
	default:
		return change, false, nil
	}
	return domain.MessageChange{Type: p.Data.Type, New: p.Data.Record}, true, nil
}

// Subscriber keeps one websocket to Supabase Realtime open, reconnecting
// with exponential backoff until its context ends.
type Subscriber struct {
	endpoint    string
	accessToken string
	dialer      *websocket.Dialer
	metrics     *observability.Metrics
	logger      *zap.Logger
	ref         atomic.Int64
}

// NewSubscriber builds the websocket endpoint from the project URL.
// metrics may be nil.
func NewSubscriber(projectURL, apiKey, accessToken string, metrics *observability.Metrics, logger *zap.Logger) (*Subscriber, error) {
	endpoint, err := Endpoint(projectURL, apiKey)
	if err != nil {
		return nil, err
	}
	return &Subscriber{
		endpoint:    endpoint,
		accessToken: accessToken,
		dialer:      websocket.DefaultDialer,
		metrics:     metrics,
		logger:      logger,
	}, nil
}

// Endpoint converts https://xyz.supabase.co into the realtime websocket URL.
func Endpoint(projectURL, apiKey string) (string, error) {
	u, err := url.Parse(strings.TrimRight(projectURL, "/"))
	if err != nil {
		return "", fmt.Errorf("parse supabase url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported supabase url scheme %q", u.Scheme)
	}
	u.Path += "/realtime/v1/websocket"
	q := url.Values{}
	q.Set("apikey", apiKey)
	q.Set("vsn", "1.0.0")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run implements port.MessageChangeSource. It returns only when ctx ends.
func (s *Subscriber) Run(ctx context.Context, handle func(domain.MessageChange)) error {
	backoff := minBackoff
	for {
		joined, err := s.session(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if joined {
			backoff = minBackoff
		}
		s.logger.Warn("realtime: connection lost, reconnecting",
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// session runs one connection: join, heartbeat, read loop.
func (s *Subscriber) session(ctx context.Context, handle func(domain.MessageChange)) (joined bool, err error) {
	conn, _, err := s.dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return false, fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	send := func(f Frame) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(f)
	}

	joinRef := s.nextRef()
	if err := send(Frame{Topic: messagesTopic, Event: "phx_join", Payload: s.joinPayload(), Ref: joinRef}); err != nil {
		return false, fmt.Errorf("join %s: %w", messagesTopic, err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(heartbeatEvery)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblocks ReadMessage below.
				_ = conn.Close()
				return
			case <-ticker.C:
				if err := send(Frame{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage(`{}`), Ref: s.nextRef()}); err != nil {
					s.logger.Debug("realtime: heartbeat failed", zap.Error(err))
					_ = conn.Close()
					return
				}
			}
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(readWait))
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return joined, err
		}
		_ = conn.SetReadDeadline(time.Now().Add(readWait))

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.logger.Debug("realtime: undecodable frame", zap.Error(err))
			continue
		}

		switch f.Event {
		case "phx_reply":
			if f.Ref != joinRef {
				continue
			}
			var r replyPayload
			_ = json.Unmarshal(f.Payload, &r)
			if r.Status != "ok" {
				return false, fmt.Errorf("join rejected: %s", string(r.Response))
			}
			joined = true
			s.logger.Info("realtime: subscribed", zap.String("topic", messagesTopic))
		case "phx_error", "phx_close":
			return joined, errors.New("channel " + f.Event)
		case "postgres_changes":
			change, ok, err := DecodeFrame(raw)
			if err != nil {
				s.logger.Warn("realtime: bad change payload", zap.Error(err))
				continue
			}
			if !ok {
				continue
			}
			if s.metrics != nil {
				s.metrics.IncrRealtimeEvent(change.Type)
			}
			handle(change)
		}
	}
}

func (s *Subscriber) joinPayload() json.RawMessage {
	payload := map[string]any{
		"config": map[string]any{
			"broadcast": map[string]any{"self": false},
			"presence":  map[string]any{"key": ""},
			"postgres_changes": []map[string]string{
				{"event": "INSERT", "schema": "public", "table": "messages"},
				{"event": "UPDATE", "schema": "public", "table": "messages"},
			},
		},
		"access_token": s.accessToken,
	}
	b, _ := json.Marshal(payload)
	return b
}

func (s *Subscriber) nextRef() string {
	return fmt.Sprintf("%d", s.ref.Add(1))
}
