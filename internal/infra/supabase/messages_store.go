package supabase

import (
	"context"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Messages (implements port.MessageStore)
// ============================================================

const messageColumns = "id,conversation_id,sender,content,sent_at,read"

// activityChunk bounds the ids per activity request, keeping the URL short
// and the parent rows under the server's max-rows.
const activityChunk = 100

// activityRow is one conversation with its newest message and the count of
// unread client messages, both computed by PostgREST per parent row.
type activityRow struct {
	ID     string           `json:"id"`
	Last   []domain.Message `json:"last"`
	Unread []struct {
		Count int `json:"count"`
	} `json:"unread"`
}

// ConversationActivity resolves last message and unread count for every
// conversation. Each parent embeds at most one message, so the reply size
// does not grow with conversation history.
func (c *Client) ConversationActivity(ctx context.Context, conversationIDs []string) (map[string]domain.ConversationActivity, error) {
	activity := make(map[string]domain.ConversationActivity, len(conversationIDs))
	for _, id := range conversationIDs {
		activity[id] = domain.ConversationActivity{ConversationID: id}
	}

	for start := 0; start < len(conversationIDs); start += activityChunk {
		chunk := conversationIDs[start:min(start+activityChunk, len(conversationIDs))]

		var rows []activityRow
		err := c.From("conversations").
			Select("id,last:messages("+messageColumns+"),unread:messages(count)").
			In("id", chunk).
			OrderEmbedded("last", "sent_at", false).
			LimitEmbedded("last", 1).
			Eq("unread.sender", domain.SenderClient).
			Is("unread.read", "false").
			Get(ctx, &rows)
		if err != nil {
			return nil, err
		}

		for _, r := range rows {
			a := domain.ConversationActivity{ConversationID: r.ID}
			if len(r.Last) > 0 {
				last := r.Last[0]
				a.LastMessage = &last
			}
			if len(r.Unread) > 0 {
				a.Unread = r.Unread[0].Count
			}
			activity[r.ID] = a
		}
	}
	return activity, nil
}

func (c *Client) ListRecentMessages(ctx context.Context, conversationIDs []string, limit int) ([]domain.Message, error) {
	messages := []domain.Message{}
	if conversationIDs != nil && len(conversationIDs) == 0 {
		return messages, nil
	}

	q := c.From("messages").Select(messageColumns)
	if conversationIDs != nil {
		q = q.In("conversation_id", conversationIDs)
	}
	err := q.Order("sent_at", false).
		Limit(limit).
		Get(ctx, &messages)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkConversationRead calls the mark_messages_as_read function.
func (c *Client) MarkConversationRead(ctx context.Context, conversationID, actor string) error {
	return c.RPC(ctx, "mark_messages_as_read", map[string]any{
		"p_conversation_id": conversationID,
		"p_user_id":         actor,
	}, nil)
}
