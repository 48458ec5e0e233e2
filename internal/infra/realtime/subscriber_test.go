package realtime_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/observability"
	"github.com/boddenberg/farma-crm-bfa-go/internal/infra/realtime"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const insertFrame = `{
  "topic": "realtime:public:messages",
  "event": "postgres_changes",
  "payload": {
    "data": {
      "type": "INSERT",
      "schema": "public",
      "table": "messages",
      "commit_timestamp": "2024-05-02T10:00:00Z",
      "record": {
        "id": "m1",
        "conversation_id": "conv-1",
        "sender": "client",
        "content": "Olá, meu remédio chegou?",
        "sent_at": "2024-05-02T10:00:00Z",
        "read": false
      }
    },
    "ids": [1]
  },
  "ref": null
}`

func TestDecodeFrame(t *testing.T) {
	change, ok, err := realtime.DecodeFrame([]byte(insertFrame))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "INSERT", change.Type)
	assert.Equal(t, "conv-1", change.New.ConversationID)
	assert.Equal(t, domain.SenderClient, change.New.Sender)
	assert.False(t, change.New.Read)
}

func TestDecodeFrame_IgnoresOtherFrames(t *testing.T) {
	frames := []string{
		`{"topic":"phoenix","event":"phx_reply","payload":{"status":"ok","response":{}},"ref":"1"}`,
		`{"topic":"realtime:public:messages","event":"postgres_changes","payload":{"data":{"type":"DELETE","table":"messages","record":{}}}}`,
		`{"topic":"realtime:public:clients","event":"postgres_changes","payload":{"data":{"type":"INSERT","table":"clients","record":{}}}}`,
	}
	for _, f := range frames {
		_, ok, err := realtime.DecodeFrame([]byte(f))
		assert.NoError(t, err)
		assert.False(t, ok, f)
	}

	_, _, err := realtime.DecodeFrame([]byte(`not json`))
	assert.Error(t, err)
}

func TestEndpoint(t *testing.T) {
	got, err := realtime.Endpoint("https://abc.supabase.co/", "anon")
	require.NoError(t, err)
	assert.Equal(t, "wss://abc.supabase.co/realtime/v1/websocket?apikey=anon&vsn=1.0.0", got)

	_, err = realtime.Endpoint("ftp://abc", "anon")
	assert.Error(t, err)
}

func TestSubscriber_JoinsAndDelivers(t *testing.T) {
	upgrader := websocket.Upgrader{}
	joined := make(chan realtime.Frame, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1/websocket", r.URL.Path)
		assert.Equal(t, "anon", r.URL.Query().Get("apikey"))

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var join realtime.Frame
		if err := conn.ReadJSON(&join); err != nil {
			return
		}
		joined <- join

		_ = conn.WriteJSON(realtime.Frame{
			Topic:   join.Topic,
			Event:   "phx_reply",
			Payload: json.RawMessage(`{"status":"ok","response":{}}`),
			Ref:     join.Ref,
		})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(insertFrame))

		// Hold the connection until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	metrics := observability.NewMetrics()
	sub, err := realtime.NewSubscriber(srv.URL, "anon", "service-token", metrics, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan domain.MessageChange, 1)
	errc := make(chan error, 1)
	go func() {
		errc <- sub.Run(ctx, func(c domain.MessageChange) { changes <- c })
	}()

	select {
	case join := <-joined:
		assert.Equal(t, "realtime:public:messages", join.Topic)
		assert.Equal(t, "phx_join", join.Event)
		assert.Contains(t, string(join.Payload), `"table":"messages"`)
		assert.Contains(t, string(join.Payload), `"access_token":"service-token"`)
	case <-time.After(2 * time.Second):
		t.Fatal("no join frame received")
	}

	select {
	case c := <-changes:
		assert.Equal(t, "conv-1", c.New.ConversationID)
	case <-time.After(2 * time.Second):
		t.Fatal("no change delivered")
	}

	cancel()
	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, float64(1), metrics.GetServiceSnapshot().RealtimeEvents)
}
