package supabase

import (
	"context"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Products (implements port.ProductStore)
// ============================================================

func (c *Client) ListProducts(ctx context.Context, owner string) ([]domain.Product, error) {
	return getAll[domain.Product](ctx, c.From("products").
		Select("*").
		Eq("created_by", owner).
		Order("name", true))
}

func (c *Client) GetProduct(ctx context.Context, id, owner string) (*domain.Product, error) {
	return getOwned[domain.Product](ctx, c, "products", "product", id, owner)
}

func (c *Client) InsertProduct(ctx context.Context, row map[string]any) (*domain.Product, error) {
	return insertOne[domain.Product](ctx, c, "products", row)
}

func (c *Client) UpdateProduct(ctx context.Context, id, owner string, patch map[string]any) (*domain.Product, error) {
	return updateOwned[domain.Product](ctx, c, "products", "product", id, owner, patch)
}

func (c *Client) DeleteProduct(ctx context.Context, id, owner string) error {
	return deleteOwned(ctx, c, "products", "product", id, owner)
}

func (c *Client) CountSaleReferences(ctx context.Context, productID string) (int, error) {
	return c.From("sale_items").
		Select("id").
		Eq("product_id", productID).
		Count(ctx)
}

func (c *Client) ListProductCategories(ctx context.Context, owner string) ([]string, error) {
	type categoryRow struct {
		Category string `json:"category"`
	}
	rows, err := getAll[categoryRow](ctx, c.From("products").
		Select("category").
		Eq("created_by", owner))
	if err != nil {
		return nil, err
	}

	categories := make([]string, 0, len(rows))
	for _, r := range rows {
		categories = append(categories, r.Category)
	}
	return categories, nil
}
