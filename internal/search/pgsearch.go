package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgSearch implements Searcher using a PostgreSQL ILIKE scan as a fallback.
type PgSearch struct {
	db *sql.DB
}

// NewPgSearch creates a PostgreSQL fallback searcher.
func NewPgSearch(db *sql.DB) *PgSearch {
	return &PgSearch{db: db}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgSearch) Healthy() bool {
	return true
}

// Search matches the query text against task titles and descriptions within
// the caller's buckets.
func (p *PgSearch) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" || len(q.BucketIDs) == 0 {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	pattern := "%" + q.Text + "%"
	ctx := context.Background()

	var total int
	err := p.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tasks
		WHERE bucket_id = ANY($1) AND (title ILIKE $2 OR description ILIKE $2)
	`, q.BucketIDs, pattern).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("pgsearch count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, LEFT(description, 200), bucket_id
		FROM tasks
		WHERE bucket_id = ANY($1) AND (title ILIKE $2 OR description ILIKE $2)
		ORDER BY (title ILIKE $2) DESC, updated_at DESC
		LIMIT $3 OFFSET $4
	`, q.BucketIDs, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgsearch query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.TaskID, &r.Title, &r.Snippet, &r.BucketID); err != nil {
			return nil, 0, fmt.Errorf("pgsearch scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all tasks for full reindexing.
func (p *PgSearch) LoadAllRecords(ctx context.Context) ([]TaskRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, title, description, bucket_id, completed FROM tasks
	`)
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]TaskRecord, 0)
	for rows.Next() {
		var t TaskRecord
		if err := rows.Scan(&t.ID, &t.Title, &t.Description, &t.BucketID, &t.Completed); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
