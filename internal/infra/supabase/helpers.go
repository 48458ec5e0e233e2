package supabase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boddenberg/farma-crm-bfa-go/internal/domain"
)

// ============================================================
// Ownership-scoped helpers shared by the table stores
// ============================================================

// insertOne inserts row and returns the created representation.
func insertOne[T any](ctx context.Context, c *Client, table string, row map[string]any) (*T, error) {
	var rows []T
	if err := c.From(table).Insert(ctx, row, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrExternalService{Service: "supabase/" + table, Err: errEmptyInsert}
	}
	return &rows[0], nil
}

// getOwned reads one row filtered by id and created_by.
func getOwned[T any](ctx context.Context, c *Client, table, resource, id, owner string) (*T, error) {
	var row T
	err := c.From(table).
		Select("*").
		Eq("id", id).
		Eq("created_by", owner).
		Single().
		Get(ctx, &row)
	if isNoRows(err) {
		return nil, &domain.ErrNotFound{Resource: resource, ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func isNoRows(err error) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == CodeNoRows
}

// updateOwned patches one row filtered by id and created_by.
// Zero matched rows is reported as not found.
func updateOwned[T any](ctx context.Context, c *Client, table, resource, id, owner string, patch map[string]any) (*T, error) {
	var rows []T
	err := c.From(table).
		Eq("id", id).
		Eq("created_by", owner).
		Update(ctx, patch, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return &rows[0], nil
}

// deleteOwned removes one row filtered by id and created_by.
// Zero matched rows is reported as not found.
func deleteOwned(ctx context.Context, c *Client, table, resource, id, owner string) error {
	var rows []json.RawMessage
	err := c.From(table).
		Select("id").
		Eq("id", id).
		Eq("created_by", owner).
		Delete(ctx, &rows)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return &domain.ErrNotFound{Resource: resource, ID: id}
	}
	return nil
}

// pageSize is the rows requested per page by getAll.
const pageSize = 500

// getAll pages through q until an empty page. Offsets advance by the rows
// actually received, so a server max-rows below pageSize cannot drop rows.
// An id tie-break keeps the paging order stable.
func getAll[T any](ctx context.Context, q *Query) ([]T, error) {
	q.Order("id", true).Limit(pageSize)

	all := []T{}
	for offset := 0; ; {
		var page []T
		if err := q.Offset(offset).Get(ctx, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			return all, nil
		}
		all = append(all, page...)
		offset += len(page)
	}
}

// timestamp formats t the way PostgREST filters expect.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

type storeError string

func (e storeError) Error() string { return string(e) }

const errEmptyInsert = storeError("insert returned no representation")
