package supabase

import (
	"context"
	"time"
)

// ============================================================
// Sales (implements port.SalesStore)
// ============================================================

// SumItemsSold sums item quantities of the owner's sales in [from, to],
// filtering through an inner join on sales.
func (c *Client) SumItemsSold(ctx context.Context, owner string, from, to time.Time) (int, error) {
	type quantityRow struct {
		Quantity int `json:"quantity"`
	}
	rows, err := getAll[quantityRow](ctx, c.From("sale_items").
		Select("quantity,sales!inner(created_by,created_at)").
		Eq("sales.created_by", owner).
		Gte("sales.created_at", timestamp(from)).
		Lte("sales.created_at", timestamp(to)))
	if err != nil {
		return 0, err
	}

	total := 0
	for _, r := range rows {
		total += r.Quantity
	}
	return total, nil
}
