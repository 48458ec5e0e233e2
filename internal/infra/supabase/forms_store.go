package supabase

import (
	"context"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Forms & responses (implements port.FormStore)
// ============================================================

func (c *Client) ListForms(ctx context.Context, owner string) ([]domain.Form, error) {
	return getAll[domain.Form](ctx, c.From("forms").
		Select("*").
		Eq("created_by", owner).
		Order("created_at", false))
}

func (c *Client) GetForm(ctx context.Context, id, owner string) (*domain.Form, error) {
	return getOwned[domain.Form](ctx, c, "forms", "form", id, owner)
}

func (c *Client) InsertForm(ctx context.Context, row map[string]any) (*domain.Form, error) {
	return insertOne[domain.Form](ctx, c, "forms", row)
}

func (c *Client) UpdateForm(ctx context.Context, id, owner string, patch map[string]any) (*domain.Form, error) {
	return updateOwned[domain.Form](ctx, c, "forms", "form", id, owner, patch)
}

func (c *Client) DeleteForm(ctx context.Context, id, owner string) error {
	return deleteOwned(ctx, c, "forms", "form", id, owner)
}

func (c *Client) ListFormResponses(ctx context.Context, formID string) ([]domain.FormResponse, error) {
	return getAll[domain.FormResponse](ctx, c.From("form_responses").
		Select("*").
		Eq("form_id", formID).
		Order("submitted_at", false))
}
