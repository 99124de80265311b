// Package order maintains contiguous zero-based position sequences for
// sibling records sharing a scope (tasks within a bucket, buckets within a
// user or team). All callers are expected to invoke these functions against
// a Store bound to a single database transaction.
package order

import (
	"context"
	"fmt"
)

type ScopeKind string

const (
	ScopeUser   ScopeKind = "user"
	ScopeTeam   ScopeKind = "team"
	ScopeBucket ScopeKind = "bucket"
)

// Scope identifies a sibling group: all items with the same scope share one
// position sequence.
type Scope struct {
	Kind ScopeKind
	Key  string
}

func (s Scope) String() string {
	return string(s.Kind) + ":" + s.Key
}

// Item is the ordered record being moved.
type Item struct {
	ID       string
	Scope    Scope
	Position int
}

// Move describes a requested reposition. A nil TargetScope means "stay in the
// current scope"; a nil TargetPosition means no reposition was requested.
type Move struct {
	TargetScope    *Scope
	TargetPosition *int
}

// Store is the persistence collaborator. ShiftRange updates positions in
// [from, to] by delta; to < 0 means no upper bound.
type Store interface {
	Count(ctx context.Context, scope Scope) (int, error)
	ShiftRange(ctx context.Context, scope Scope, from, to, delta int) (int, error)
	SetPosition(ctx context.Context, id string, scope Scope, position int) error
}

// Apply computes and applies the sibling shifts needed to move item per mv,
// preserving the contiguous zero-based invariant in both scopes. Target
// positions are clamped into the valid range for the target scope.
func Apply(ctx context.Context, s Store, item Item, mv Move) error {
	if mv.TargetPosition == nil {
		return nil
	}

	target := item.Scope
	if mv.TargetScope != nil {
		target = *mv.TargetScope
	}

	pos := *mv.TargetPosition
	if pos < 0 {
		pos = 0
	}

	if target == item.Scope {
		count, err := s.Count(ctx, item.Scope)
		if err != nil {
			return fmt.Errorf("count siblings %s: %w", item.Scope, err)
		}
		if pos > count-1 {
			pos = count - 1
		}
		if pos < 0 {
			pos = 0
		}
		if pos == item.Position {
			return nil
		}
		if pos > item.Position {
			// Move down: everything in (current, target] closes up by one.
			if _, err := s.ShiftRange(ctx, item.Scope, item.Position+1, pos, -1); err != nil {
				return fmt.Errorf("shift down %s: %w", item.Scope, err)
			}
		} else {
			// Move up: everything in [target, current) makes room by one.
			if _, err := s.ShiftRange(ctx, item.Scope, pos, item.Position-1, +1); err != nil {
				return fmt.Errorf("shift up %s: %w", item.Scope, err)
			}
		}
		if err := s.SetPosition(ctx, item.ID, item.Scope, pos); err != nil {
			return fmt.Errorf("set position %s: %w", item.ID, err)
		}
		return nil
	}

	// Cross-scope move: close the gap in the old scope, open a slot in the new.
	count, err := s.Count(ctx, target)
	if err != nil {
		return fmt.Errorf("count siblings %s: %w", target, err)
	}
	if pos > count {
		pos = count
	}
	if _, err := s.ShiftRange(ctx, item.Scope, item.Position+1, -1, -1); err != nil {
		return fmt.Errorf("close gap %s: %w", item.Scope, err)
	}
	if _, err := s.ShiftRange(ctx, target, pos, -1, +1); err != nil {
		return fmt.Errorf("open slot %s: %w", target, err)
	}
	if err := s.SetPosition(ctx, item.ID, target, pos); err != nil {
		return fmt.Errorf("set position %s: %w", item.ID, err)
	}
	return nil
}

// Compact closes the gap left behind after the item at deletedPosition was
// removed from scope.
func Compact(ctx context.Context, s Store, scope Scope, deletedPosition int) error {
	if _, err := s.ShiftRange(ctx, scope, deletedPosition+1, -1, -1); err != nil {
		return fmt.Errorf("compact %s: %w", scope, err)
	}
	return nil
}

// Append returns the position a newly created item in scope should take:
// the current sibling count.
func Append(ctx context.Context, s Store, scope Scope) (int, error) {
	count, err := s.Count(ctx, scope)
	if err != nil {
		return 0, fmt.Errorf("count siblings %s: %w", scope, err)
	}
	return count, nil
}
