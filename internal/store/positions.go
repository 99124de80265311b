package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"dosync/api/internal/order"
)

// txPositions adapts a transaction to order.Store. Bucket-kind scopes map to
// the tasks table; user/team-kind scopes map to the buckets table.
type txPositions struct {
	tx *sql.Tx
}

func scopeTarget(scope order.Scope) (table, column string, err error) {
	switch scope.Kind {
	case order.ScopeBucket:
		return "tasks", "bucket_id", nil
	case order.ScopeUser:
		return "buckets", "user_id", nil
	case order.ScopeTeam:
		return "buckets", "team_id", nil
	default:
		return "", "", fmt.Errorf("unknown scope kind %q", scope.Kind)
	}
}

func (p txPositions) Count(ctx context.Context, scope order.Scope) (int, error) {
	table, column, err := scopeTarget(scope)
	if err != nil {
		return 0, err
	}
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE %s=$1`, table, column)
	if err := p.tx.QueryRowContext(ctx, query, scope.Key).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", scope, err)
	}
	return count, nil
}

func (p txPositions) ShiftRange(ctx context.Context, scope order.Scope, from, to, delta int) (int, error) {
	table, column, err := scopeTarget(scope)
	if err != nil {
		return 0, err
	}
	var result sql.Result
	if to < 0 {
		query := fmt.Sprintf(`UPDATE %s SET position = position + $1 WHERE %s=$2 AND position >= $3`, table, column)
		result, err = p.tx.ExecContext(ctx, query, delta, scope.Key, from)
	} else {
		query := fmt.Sprintf(`UPDATE %s SET position = position + $1 WHERE %s=$2 AND position BETWEEN $3 AND $4`, table, column)
		result, err = p.tx.ExecContext(ctx, query, delta, scope.Key, from, to)
	}
	if err != nil {
		return 0, fmt.Errorf("shift %s: %w", scope, err)
	}
	updated, _ := result.RowsAffected()
	return int(updated), nil
}

func (p txPositions) SetPosition(ctx context.Context, id string, scope order.Scope, position int) error {
	var err error
	switch scope.Kind {
	case order.ScopeBucket:
		_, err = p.tx.ExecContext(ctx, `UPDATE tasks SET bucket_id=$2, position=$3, updated_at=NOW() WHERE id=$1`, id, scope.Key, position)
	case order.ScopeUser:
		_, err = p.tx.ExecContext(ctx, `UPDATE buckets SET user_id=$2, team_id=NULL, position=$3 WHERE id=$1`, id, scope.Key, position)
	case order.ScopeTeam:
		_, err = p.tx.ExecContext(ctx, `UPDATE buckets SET team_id=$2, user_id=NULL, position=$3 WHERE id=$1`, id, scope.Key, position)
	default:
		return fmt.Errorf("unknown scope kind %q", scope.Kind)
	}
	if err != nil {
		return fmt.Errorf("set position %s: %w", id, err)
	}
	return nil
}

// lockScopes takes FOR UPDATE row locks on the sibling sets of the given
// scopes, in a deterministic order so concurrent cross-scope moves cannot
// deadlock. This serializes reorders per scope while leaving disjoint
// scopes independent.
func lockScopes(ctx context.Context, tx *sql.Tx, scopes ...order.Scope) error {
	sorted := make([]order.Scope, 0, len(scopes))
	seen := make(map[order.Scope]struct{}, len(scopes))
	for _, scope := range scopes {
		if _, ok := seen[scope]; ok {
			continue
		}
		seen[scope] = struct{}{}
		sorted = append(sorted, scope)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].String() < sorted[j].String() })

	for _, scope := range sorted {
		table, column, err := scopeTarget(scope)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(`SELECT id FROM %s WHERE %s=$1 ORDER BY id FOR UPDATE`, table, column)
		rows, err := tx.QueryContext(ctx, query, scope.Key)
		if err != nil {
			return fmt.Errorf("lock scope %s: %w", scope, err)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("lock scope %s: %w", scope, err)
		}
	}
	return nil
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// CreateBucket inserts the bucket at the end of its scope, atomically with
// the position assignment.
func (s *PostgresStore) CreateBucket(ctx context.Context, bucket Bucket) (Bucket, error) {
	scope, err := bucketScope(bucket)
	if err != nil {
		return Bucket{}, err
	}
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockScopes(ctx, tx, scope); err != nil {
			return err
		}
		pos, err := order.Append(ctx, txPositions{tx}, scope)
		if err != nil {
			return err
		}
		bucket.Position = pos
		_, err = tx.ExecContext(ctx, `
			INSERT INTO buckets (id, name, user_id, team_id, position)
			VALUES ($1, $2, $3, $4, $5)
		`, bucket.ID, bucket.Name, bucket.UserID, bucket.TeamID, bucket.Position)
		if err != nil {
			return fmt.Errorf("insert bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		return Bucket{}, err
	}
	return bucket, nil
}

// MoveBucket repositions a bucket within its scope or moves it into another
// scope, in one transaction.
func (s *PostgresStore) MoveBucket(ctx context.Context, bucketID string, targetScope *order.Scope, targetPosition *int) error {
	if targetPosition == nil && targetScope == nil {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		bucket, err := getBucketForUpdate(ctx, tx, bucketID)
		if err != nil {
			return err
		}
		scope, err := bucketScope(bucket)
		if err != nil {
			return err
		}
		scopes := []order.Scope{scope}
		if targetScope != nil {
			scopes = append(scopes, *targetScope)
		}
		if err := lockScopes(ctx, tx, scopes...); err != nil {
			return err
		}
		item := order.Item{ID: bucket.ID, Scope: scope, Position: bucket.Position}
		return order.Apply(ctx, txPositions{tx}, item, order.Move{TargetScope: targetScope, TargetPosition: targetPosition})
	})
}

// DeleteBucket removes the bucket (tasks cascade) and compacts the scope's
// remaining positions, in one transaction.
func (s *PostgresStore) DeleteBucket(ctx context.Context, bucketID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		bucket, err := getBucketForUpdate(ctx, tx, bucketID)
		if err != nil {
			return err
		}
		scope, err := bucketScope(bucket)
		if err != nil {
			return err
		}
		if err := lockScopes(ctx, tx, scope); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM buckets WHERE id=$1`, bucketID); err != nil {
			return fmt.Errorf("delete bucket: %w", err)
		}
		return order.Compact(ctx, txPositions{tx}, scope, bucket.Position)
	})
}

// CreateTask inserts the task at the end of its bucket, atomically with the
// position assignment.
func (s *PostgresStore) CreateTask(ctx context.Context, task Task) (Task, error) {
	scope := order.Scope{Kind: order.ScopeBucket, Key: task.BucketID}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockScopes(ctx, tx, scope); err != nil {
			return err
		}
		pos, err := order.Append(ctx, txPositions{tx}, scope)
		if err != nil {
			return err
		}
		task.Position = pos
		err = tx.QueryRowContext(ctx, `
			INSERT INTO tasks (id, bucket_id, title, description, due_date, completed, assignee_id, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING created_at, updated_at
		`, task.ID, task.BucketID, task.Title, task.Description, task.DueDate, task.Completed, task.AssigneeID, task.Position).
			Scan(&task.CreatedAt, &task.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, err
	}
	return task, nil
}

// MoveTask repositions a task within its bucket or moves it into another
// bucket, in one transaction.
func (s *PostgresStore) MoveTask(ctx context.Context, taskID string, targetBucketID *string, targetPosition *int) error {
	if targetPosition == nil && targetBucketID == nil {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var bucketID string
		var position int
		err := tx.QueryRowContext(ctx, `SELECT bucket_id, position FROM tasks WHERE id=$1 FOR UPDATE`, taskID).
			Scan(&bucketID, &position)
		if err != nil {
			return err
		}
		scope := order.Scope{Kind: order.ScopeBucket, Key: bucketID}
		var target *order.Scope
		scopes := []order.Scope{scope}
		if targetBucketID != nil && *targetBucketID != bucketID {
			t := order.Scope{Kind: order.ScopeBucket, Key: *targetBucketID}
			target = &t
			scopes = append(scopes, t)
		}
		if err := lockScopes(ctx, tx, scopes...); err != nil {
			return err
		}
		item := order.Item{ID: taskID, Scope: scope, Position: position}
		return order.Apply(ctx, txPositions{tx}, item, order.Move{TargetScope: target, TargetPosition: targetPosition})
	})
}

// DeleteTask removes the task and compacts the bucket's remaining positions,
// in one transaction.
func (s *PostgresStore) DeleteTask(ctx context.Context, taskID string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var bucketID string
		var position int
		err := tx.QueryRowContext(ctx, `SELECT bucket_id, position FROM tasks WHERE id=$1 FOR UPDATE`, taskID).
			Scan(&bucketID, &position)
		if err != nil {
			return err
		}
		scope := order.Scope{Kind: order.ScopeBucket, Key: bucketID}
		if err := lockScopes(ctx, tx, scope); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id=$1`, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return order.Compact(ctx, txPositions{tx}, scope, position)
	})
}

func getBucketForUpdate(ctx context.Context, tx *sql.Tx, bucketID string) (Bucket, error) {
	var bucket Bucket
	err := tx.QueryRowContext(ctx, `
		SELECT id, name, user_id, team_id, position FROM buckets WHERE id=$1 FOR UPDATE
	`, bucketID).Scan(&bucket.ID, &bucket.Name, &bucket.UserID, &bucket.TeamID, &bucket.Position)
	if err != nil {
		return Bucket{}, err
	}
	return bucket, nil
}

func bucketScope(bucket Bucket) (order.Scope, error) {
	switch {
	case bucket.UserID != nil && bucket.TeamID == nil:
		return order.Scope{Kind: order.ScopeUser, Key: *bucket.UserID}, nil
	case bucket.TeamID != nil && bucket.UserID == nil:
		return order.Scope{Kind: order.ScopeTeam, Key: *bucket.TeamID}, nil
	default:
		return order.Scope{}, fmt.Errorf("bucket %s: exactly one of user_id/team_id must be set", bucket.ID)
	}
}
