package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

// CodeNoRows is PostgREST's reply when Single matched no row.
const CodeNoRows = "PGRST116"

// APIError is a non-2xx PostgREST reply.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	if err := json.Unmarshal(body, e); err != nil || e.Message == "" {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("supabase returned status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("supabase returned status %d: %s", e.Status, e.Message)
}

// ClientError marks 4xx replies so the breaker and retry loop leave them alone.
func (e *APIError) ClientError() bool {
	return e.Status >= 400 && e.Status < 500
}

// ErrorCode implements port.CodedError.
func (e *APIError) ErrorCode() string { return e.Code }

// ErrorDetail implements port.CodedError.
func (e *APIError) ErrorDetail() string {
	return strings.TrimSpace(e.Message + " " + e.Details)
}

// AsAPIError unwraps err to an *APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Query is a fluent PostgREST request for one table or view.
// Filters accumulate; a terminal method (Get, Count, Insert, Update, Delete)
// sends the request.
type Query struct {
	c      *Client
	table  string
	params url.Values
	orders []string
	single bool
}

// From starts a query on table.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table, params: url.Values{}}
}

// Select sets the column list, including embedded resources like "*,clients(name)".
func (q *Query) Select(columns string) *Query {
	q.params.Set("select", columns)
	return q
}

func (q *Query) filter(column, op, value string) *Query {
	q.params.Add(column, op+"."+value)
	return q
}

// Eq filters column = value.
func (q *Query) Eq(column, value string) *Query { return q.filter(column, "eq", value) }

// Gte filters column >= value.
func (q *Query) Gte(column, value string) *Query { return q.filter(column, "gte", value) }

// Lte filters column <= value.
func (q *Query) Lte(column, value string) *Query { return q.filter(column, "lte", value) }

// Is filters column IS value (null, true, false).
func (q *Query) Is(column, value string) *Query { return q.filter(column, "is", value) }

// In filters column IN values.
func (q *Query) In(column string, values []string) *Query {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteListValue(v)
	}
	return q.filter(column, "in", "("+strings.Join(quoted, ",")+")")
}

// Order appends an ordering. Multiple calls sort by each in turn.
func (q *Query) Order(column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.orders = append(q.orders, column+"."+dir)
	q.params.Set("order", strings.Join(q.orders, ","))
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) *Query {
	q.params.Set("limit", strconv.Itoa(n))
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) *Query {
	q.params.Set("offset", strconv.Itoa(n))
	return q
}

// OrderEmbedded orders the rows of an embedded resource, e.g. "last" in
// "last:messages(...)". The parent rows keep their own order.
func (q *Query) OrderEmbedded(resource, column string, ascending bool) *Query {
	dir := "desc"
	if ascending {
		dir = "asc"
	}
	q.params.Set(resource+".order", column+"."+dir)
	return q
}

// LimitEmbedded caps the rows of an embedded resource per parent row.
func (q *Query) LimitEmbedded(resource string, n int) *Query {
	q.params.Set(resource+".limit", strconv.Itoa(n))
	return q
}

// Single asks PostgREST for exactly one object instead of an array.
// Zero rows then fail with code PGRST116.
func (q *Query) Single() *Query {
	q.single = true
	return q
}

// Params returns the encoded filter string; used in logs and tests.
func (q *Query) Params() string {
	return q.params.Encode()
}

func (q *Query) accept() string {
	if q.single {
		return "application/vnd.pgrst.object+json"
	}
	return ""
}

func (q *Query) service() string {
	return "supabase/" + q.table
}

// Get runs a SELECT and decodes the rows into dest.
func (q *Query) Get(ctx context.Context, dest any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Select")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", q.table))

	return q.c.execute(ctx, q.service(), true, func() error {
		resp, err := q.c.doRequest(ctx, request{
			method: http.MethodGet,
			path:   q.table,
			query:  q.params,
			accept: q.accept(),
		})
		if err != nil {
			return err
		}
		return decodeRows(resp.body, dest, q.table)
	})
}

// Count runs a HEAD request with exact counting and returns the total.
func (q *Query) Count(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Count")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", q.table))

	if q.params.Get("select") == "" {
		q.params.Set("select", "*")
	}

	var total int
	err := q.c.execute(ctx, q.service(), true, func() error {
		resp, err := q.c.doRequest(ctx, request{
			method: http.MethodHead,
			path:   q.table,
			query:  q.params,
			prefer: []string{"count=exact"},
		})
		if err != nil {
			return err
		}
		n, err := parseContentRange(resp.header.Get("Content-Range"))
		if err != nil {
			return err
		}
		total = n
		return nil
	})
	return total, err
}

// Insert posts row (an object or a slice of objects) and decodes the
// created representation into dest when dest is non-nil.
func (q *Query) Insert(ctx context.Context, row any, dest any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Insert")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", q.table))

	return q.c.execute(ctx, q.service(), false, func() error {
		resp, err := q.c.doRequest(ctx, request{
			method: http.MethodPost,
			path:   q.table,
			query:  q.params,
			body:   row,
			prefer: []string{"return=representation"},
			accept: q.accept(),
		})
		if err != nil {
			return err
		}
		return decodeRows(resp.body, dest, q.table)
	})
}

// Update patches every row matching the filters and decodes the updated
// rows into dest. An empty result means nothing matched.
func (q *Query) Update(ctx context.Context, patch any, dest any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Update")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", q.table))

	return q.c.execute(ctx, q.service(), false, func() error {
		resp, err := q.c.doRequest(ctx, request{
			method: http.MethodPatch,
			path:   q.table,
			query:  q.params,
			body:   patch,
			prefer: []string{"return=representation"},
		})
		if err != nil {
			return err
		}
		return decodeRows(resp.body, dest, q.table)
	})
}

// Delete removes every row matching the filters and decodes the deleted
// rows into dest.
func (q *Query) Delete(ctx context.Context, dest any) error {
	ctx, span := tracer.Start(ctx, "Supabase.Delete")
	defer span.End()
	span.SetAttributes(attribute.String("db.table", q.table))

	return q.c.execute(ctx, q.service(), false, func() error {
		resp, err := q.c.doRequest(ctx, request{
			method: http.MethodDelete,
			path:   q.table,
			query:  q.params,
			prefer: []string{"return=representation"},
		})
		if err != nil {
			return err
		}
		return decodeRows(resp.body, dest, q.table)
	})
}

func decodeRows(body []byte, dest any, table string) error {
	if dest == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s: %w", table, err)
	}
	return nil
}

// parseContentRange reads the total from "0-24/3573" or "*/0".
func parseContentRange(h string) (int, error) {
	i := strings.LastIndex(h, "/")
	if i < 0 || i == len(h)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", h)
	}
	total := h[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("count not computed in Content-Range %q", h)
	}
	return strconv.Atoi(total)
}

// quoteListValue quotes values that would break the in.(...) list syntax.
func quoteListValue(v string) string {
	if strings.ContainsAny(v, ",()\" ") {
		return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
	}
	return v
}
