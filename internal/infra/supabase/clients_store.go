package supabase

import (
	"context"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Clients (implements port.ClientStore)
// ============================================================

func (c *Client) ListClients(ctx context.Context, owner string) ([]domain.Client, error) {
	return getAll[domain.Client](ctx, c.From("clients").
		Select("*").
		Eq("created_by", owner).
		Order("created_at", false))
}

func (c *Client) CountActiveClients(ctx context.Context, owner string) (int, error) {
	return c.From("clients").
		Select("id").
		Eq("status", domain.ClientStatusActive).
		Eq("created_by", owner).
		Count(ctx)
}

func (c *Client) InsertClient(ctx context.Context, row map[string]any) (*domain.Client, error) {
	return insertOne[domain.Client](ctx, c, "clients", row)
}

func (c *Client) UpdateClient(ctx context.Context, id, owner string, patch map[string]any) (*domain.Client, error) {
	return updateOwned[domain.Client](ctx, c, "clients", "client", id, owner, patch)
}

func (c *Client) DeleteClient(ctx context.Context, id, owner string) error {
	return deleteOwned(ctx, c, "clients", "client", id, owner)
}
