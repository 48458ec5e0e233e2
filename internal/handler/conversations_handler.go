package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
	"github.com/boddenberg/farma-crm-bfa-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Conversations Handlers
// ============================================================

const (
	streamWriteWait  = 10 * time.Second
	streamPingPeriod = 30 * time.Second
)

// The panel is served from another origin; the stream is authenticated by
// the access token, not by origin.
var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

type streamFrame struct {
	Type          string                       `json:"type"`
	Conversations []domain.ConversationSummary `json:"conversations"`
}

func listConversationsHandler(feeds *service.FeedRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/conversations")
		defer span.End()
		feed, err := feeds.ForActor(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, feed.Snapshot())
	}
}

func openConversationHandler(feeds *service.FeedRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/conversations/{id}/read")
		defer span.End()
		id := chi.URLParam(r, "id")
		span.SetAttributes(attribute.String("conversation.id", id))
		feed, err := feeds.ForActor(ctx)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := feed.Open(ctx, id); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, domain.SuccessResponse{Message: "conversation marked as read"})
	}
}

// conversationStreamHandler upgrades to a websocket and pushes the whole
// conversation list after every change, starting with the current one.
func conversationStreamHandler(feeds *service.FeedRegistry, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		feed, err := feeds.ForActor(r.Context())
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		conn, err := streamUpgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("conversation stream: upgrade failed", zap.Error(err))
			return
		}
		defer conn.Close()

		updates, unsubscribe := feed.Subscribe()
		defer unsubscribe()

		ctx, stop := context.WithCancel(r.Context())
		defer stop()

		// Client frames are ignored; reading detects the close.
		go func() {
			defer stop()
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		if err := writeFrame(conn, feed.Snapshot()); err != nil {
			return
		}

		ping := time.NewTicker(streamPingPeriod)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case snapshot := <-updates:
				if err := writeFrame(conn, snapshot); err != nil {
					logger.Debug("conversation stream: write failed", zap.Error(err))
					return
				}
			case <-ping.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, conversations []domain.ConversationSummary) error {
	conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	return conn.WriteJSON(streamFrame{Type: "snapshot", Conversations: conversations})
}
