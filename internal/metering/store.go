package metering

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidCursor is returned by ListCalls for a cursor it did not issue.
var ErrInvalidCursor = errors.New("invalid cursor")

// Store provides database operations for the call log.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store backed by the given connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// BatchInsert writes a slice of calls to the database in a single multi-row
// INSERT statement. It is a no-op when calls is empty.
func (s *Store) BatchInsert(ctx context.Context, calls []Call) error {
	if len(calls) == 0 {
		return nil
	}

	query, args := batchInsertQuery(calls)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("batch inserting calls: %w", err)
	}
	return nil
}

const insertCols = 12 // number of columns per row

func batchInsertQuery(calls []Call) (string, []any) {
	args := make([]any, 0, len(calls)*insertCols)
	rows := make([]string, 0, len(calls))

	for i, c := range calls {
		placeholders := make([]string, insertCols)
		for j := range placeholders {
			placeholders[j] = "$" + strconv.Itoa(i*insertCols+j+1)
		}
		rows = append(rows, "("+strings.Join(placeholders, ", ")+")")

		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		args = append(args,
			id,
			c.Timestamp,
			c.Endpoint,
			c.Option,
			c.Method,
			c.StatusCode,
			c.LatencyMs,
			c.DelayMs,
			c.ResponseSize,
			c.Outcome,
			c.ErrorKind,
			c.Error,
		)
	}

	query := `INSERT INTO calls
		(id, timestamp, endpoint, option, method, status_code, latency_ms,
		 delay_ms, response_size, outcome, error_kind, error)
		VALUES ` + strings.Join(rows, ", ")
	return query, args
}

// GetSummary returns aggregate usage metrics matching the given query filters.
func (s *Store) GetSummary(ctx context.Context, q UsageQuery) (*UsageSummary, error) {
	where, args := buildWhereClause(q)

	query := `SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN outcome IN ('provider_error', 'transport_error') THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN outcome = 'rate_limited' THEN 1 ELSE 0 END), 0),
		COALESCE(AVG(latency_ms), 0),
		COALESCE(SUM(delay_ms), 0),
		COALESCE(SUM(CASE WHEN delay_ms > 0 THEN 1 ELSE 0 END), 0)
	FROM calls` + where

	var summary UsageSummary
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&summary.TotalCalls,
		&summary.SuccessCount,
		&summary.ErrorCount,
		&summary.RateLimited,
		&summary.AvgLatencyMs,
		&summary.TotalDelayMs,
		&summary.DelayedCalls,
	)
	if err != nil {
		return nil, fmt.Errorf("querying usage summary: %w", err)
	}

	return &summary, nil
}

// ListCalls returns a page of calls matching the query filters, ordered by
// timestamp DESC, id DESC. It uses cursor-based pagination and returns the
// next cursor (empty string if no more results).
func (s *Store) ListCalls(ctx context.Context, q UsageQuery) ([]*Call, string, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	where, args := buildWhereClause(q)

	// Apply cursor: the cursor encodes "timestamp|id".
	if q.Cursor != "" {
		ts, id, err := decodeCursor(q.Cursor)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %v", ErrInvalidCursor, err)
		}
		n := len(args)
		if where == "" {
			where = " WHERE"
		} else {
			where += " AND"
		}
		where += fmt.Sprintf(" (timestamp, id) < ($%d, $%d)", n+1, n+2)
		args = append(args, ts, id)
	}

	query := `SELECT id, timestamp, endpoint, option, method, status_code,
		latency_ms, delay_ms, response_size, outcome, error_kind, error
	FROM calls` + where +
		` ORDER BY timestamp DESC, id DESC LIMIT $` + strconv.Itoa(len(args)+1)
	args = append(args, limit+1) // fetch one extra to determine if there's a next page

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", fmt.Errorf("listing calls: %w", err)
	}
	defer rows.Close()

	var calls []*Call
	for rows.Next() {
		var c Call
		if err := rows.Scan(
			&c.ID, &c.Timestamp, &c.Endpoint, &c.Option, &c.Method, &c.StatusCode,
			&c.LatencyMs, &c.DelayMs, &c.ResponseSize, &c.Outcome, &c.ErrorKind, &c.Error,
		); err != nil {
			return nil, "", fmt.Errorf("scanning call row: %w", err)
		}
		calls = append(calls, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, "", fmt.Errorf("iterating call rows: %w", err)
	}

	var nextCursor string
	if len(calls) > limit {
		last := calls[limit-1]
		nextCursor = encodeCursor(last.Timestamp, last.ID)
		calls = calls[:limit]
	}

	return calls, nextCursor, nil
}

// buildWhereClause constructs a WHERE clause and positional arguments from a
// UsageQuery. The returned string starts with " WHERE" or is empty.
func buildWhereClause(q UsageQuery) (string, []any) {
	var conditions []string
	var args []any

	if q.Option != "" {
		args = append(args, q.Option)
		conditions = append(conditions, fmt.Sprintf("option = $%d", len(args)))
	}
	if q.Outcome != "" {
		args = append(args, q.Outcome)
		conditions = append(conditions, fmt.Sprintf("outcome = $%d", len(args)))
	}
	if !q.From.IsZero() {
		args = append(args, q.From)
		conditions = append(conditions, fmt.Sprintf("timestamp >= $%d", len(args)))
	}
	if !q.To.IsZero() {
		args = append(args, q.To)
		conditions = append(conditions, fmt.Sprintf("timestamp <= $%d", len(args)))
	}

	if len(conditions) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conditions, " AND "), args
}

// encodeCursor encodes a timestamp and id into an opaque cursor string.
func encodeCursor(ts time.Time, id string) string {
	raw := ts.Format(time.RFC3339Nano) + "|" + id
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor decodes an opaque cursor string into a timestamp and id.
func decodeCursor(cursor string) (time.Time, string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return time.Time{}, "", fmt.Errorf("decoding cursor: %w", err)
	}
	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("malformed cursor")
	}
	ts, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", fmt.Errorf("parsing cursor timestamp: %w", err)
	}
	return ts, parts[1], nil
}
