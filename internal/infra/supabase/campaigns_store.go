package supabase

import (
	"context"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Campaigns & executions (implements port.CampaignStore)
// ============================================================

func (c *Client) ListCampaigns(ctx context.Context, owner string) ([]domain.Campaign, error) {
	q := c.From("campaigns").Select("*")
	if owner != "" {
		q = q.Eq("created_by", owner)
	}

	return getAll[domain.Campaign](ctx, q.Order("created_at", false))
}

func (c *Client) GetCampaign(ctx context.Context, id, owner string) (*domain.Campaign, error) {
	return getOwned[domain.Campaign](ctx, c, "campaigns", "campaign", id, owner)
}

func (c *Client) InsertCampaign(ctx context.Context, row map[string]any) (*domain.Campaign, error) {
	return insertOne[domain.Campaign](ctx, c, "campaigns", row)
}

func (c *Client) UpdateCampaign(ctx context.Context, id, owner string, patch map[string]any) (*domain.Campaign, error) {
	return updateOwned[domain.Campaign](ctx, c, "campaigns", "campaign", id, owner, patch)
}

func (c *Client) DeleteCampaign(ctx context.Context, id, owner string) error {
	return deleteOwned(ctx, c, "campaigns", "campaign", id, owner)
}

func (c *Client) ListUpcomingCampaigns(ctx context.Context, owner string, from time.Time, limit int) ([]domain.Campaign, error) {
	campaigns := []domain.Campaign{}
	err := c.From("campaigns").
		Select("*").
		Eq("created_by", owner).
		Gte("scheduled_for", timestamp(from)).
		Order("scheduled_for", true).
		Limit(limit).
		Get(ctx, &campaigns)
	if err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (c *Client) ListExecutions(ctx context.Context, campaignIDs []string) ([]domain.CampaignExecution, error) {
	if len(campaignIDs) == 0 {
		return []domain.CampaignExecution{}, nil
	}

	return getAll[domain.CampaignExecution](ctx, c.From("campaign_executions").
		Select("id,campaign_id,executed_at,messages_sent,status").
		In("campaign_id", campaignIDs).
		Order("executed_at", false))
}
