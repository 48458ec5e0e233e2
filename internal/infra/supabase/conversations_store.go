package supabase

import (
	"context"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Conversations & views (implements port.ConversationStore)
// ============================================================

const conversationColumns = "id,client_id,status,started_at,assigned_to,clients(name,phone)"

func (c *Client) CountActiveConversations(ctx context.Context) (int, error) {
	return c.From("conversations").
		Select("id").
		Eq("status", domain.ConversationActive).
		Count(ctx)
}

func (c *Client) ListAssignedConversations(ctx context.Context, actor string) ([]domain.Conversation, error) {
	return getAll[domain.Conversation](ctx, c.From("conversations").
		Select(conversationColumns).
		Eq("assigned_to", actor).
		Order("started_at", false))
}

func (c *Client) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	var rows []domain.Conversation
	err := c.From("conversations").
		Select(conversationColumns).
		Eq("id", id).
		Limit(1).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "conversation", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) ListActiveConversationsSince(ctx context.Context, since time.Time) ([]domain.Conversation, error) {
	return getAll[domain.Conversation](ctx, c.From("conversations").
		Select("id,client_id,status,started_at").
		Eq("status", domain.ConversationActive).
		Gte("started_at", timestamp(since)).
		Order("started_at", true))
}

// viewRow is one row of the precomputed conversation views.
type viewRow struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func (c *Client) DailyConversations(ctx context.Context) ([]domain.Series, error) {
	var rows []viewRow
	err := c.From("daily_conversations_view").
		Select("name,value").
		Order("day_order", true).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}
	return toSeries(rows), nil
}

func (c *Client) MonthlyConversations(ctx context.Context, limit int) ([]domain.Series, error) {
	var rows []viewRow
	err := c.From("monthly_conversations_view").
		Select("name,value").
		Order("month_order", false).
		Limit(limit).
		Get(ctx, &rows)
	if err != nil {
		return nil, err
	}

	// Fetched newest first to keep the most recent months; charts want oldest first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return toSeries(rows), nil
}

func toSeries(rows []viewRow) []domain.Series {
	series := make([]domain.Series, 0, len(rows))
	for _, r := range rows {
		series = append(series, domain.Series{Name: r.Name, Value: r.Value})
	}
	return series
}
