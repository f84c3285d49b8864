package lifecycle

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// MemoryStore is an in-process Store. Transactions are serialized and
// rolled back from a snapshot when fn fails.
type MemoryStore[T Record] struct {
	mu      sync.Mutex
	rows    map[string]T
	clone   func(T) T
	unique  func(T) string
	parents func(id string) bool
}

// MemoryOption configures a MemoryStore.
type MemoryOption[T Record] func(*MemoryStore[T])

// UniqueBy rejects inserts and updates whose key collides with another row,
// soft-deleted rows included. An empty key is never checked.
func UniqueBy[T Record](key func(T) string) MemoryOption[T] {
	return func(s *MemoryStore[T]) { s.unique = key }
}

// ParentsFrom answers ParentExists with fn.
func ParentsFrom[T Record](fn func(id string) bool) MemoryOption[T] {
	return func(s *MemoryStore[T]) { s.parents = fn }
}

// NewMemoryStore creates an empty store. clone must return a deep copy so
// callers never alias stored rows.
func NewMemoryStore[T Record](clone func(T) T, opts ...MemoryOption[T]) *MemoryStore[T] {
	s := &MemoryStore[T]{
		rows:  make(map[string]T),
		clone: clone,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InTx runs fn with exclusive access to the store.
func (s *MemoryStore[T]) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx[T]) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := maps.Clone(s.rows)
	if err := fn(ctx, memoryTx[T]{s}); err != nil {
		s.rows = snapshot
		return err
	}
	return nil
}

// Exists reports whether a live row with id is stored. It is suitable as the
// ParentsFrom function of a child store.
func (s *MemoryStore[T]) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.rows[id]
	return ok && !rec.ResourceMeta().IsDeleted()
}

// Len returns the number of stored rows, soft-deleted included.
func (s *MemoryStore[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows)
}

type memoryTx[T Record] struct {
	s *MemoryStore[T]
}

func (tx memoryTx[T]) Insert(_ context.Context, rec T) error {
	id := rec.ResourceMeta().ID
	if _, ok := tx.s.rows[id]; ok {
		return fmt.Errorf("id %s: %w", id, ErrConflict)
	}
	if err := tx.checkUnique(rec); err != nil {
		return err
	}
	tx.s.rows[id] = tx.s.clone(rec)
	return nil
}

func (tx memoryTx[T]) Get(_ context.Context, id string) (T, error) {
	rec, ok := tx.s.rows[id]
	if !ok {
		var zero T
		return zero, ErrNotFound
	}
	return tx.s.clone(rec), nil
}

func (tx memoryTx[T]) Update(_ context.Context, rec T) error {
	id := rec.ResourceMeta().ID
	if _, ok := tx.s.rows[id]; !ok {
		return ErrNotFound
	}
	if err := tx.checkUnique(rec); err != nil {
		return err
	}
	tx.s.rows[id] = tx.s.clone(rec)
	return nil
}

func (tx memoryTx[T]) Remove(_ context.Context, id string) error {
	if _, ok := tx.s.rows[id]; !ok {
		return ErrNotFound
	}
	delete(tx.s.rows, id)
	return nil
}

func (tx memoryTx[T]) ParentExists(_ context.Context, id string) (bool, error) {
	if tx.s.parents == nil {
		return false, nil
	}
	return tx.s.parents(id), nil
}

func (tx memoryTx[T]) Page(_ context.Context, q Query, after string, limit int) ([]T, error) {
	ids := slices.Sorted(maps.Keys(tx.s.rows))
	out := make([]T, 0, min(limit, len(ids)))
	for _, id := range ids {
		if len(out) >= limit {
			break
		}
		if id <= after {
			continue
		}
		rec := tx.s.rows[id]
		meta := rec.ResourceMeta()
		if q.OwnerID != "" && meta.OwnerID != q.OwnerID {
			continue
		}
		if q.ParentID != "" && meta.ParentID != q.ParentID {
			continue
		}
		if meta.IsDeleted() && !q.IncludeDeleted {
			continue
		}
		if q.LiveParent && meta.ParentID != "" && (tx.s.parents == nil || !tx.s.parents(meta.ParentID)) {
			continue
		}
		out = append(out, tx.s.clone(rec))
	}
	return out, nil
}

func (tx memoryTx[T]) checkUnique(rec T) error {
	if tx.s.unique == nil {
		return nil
	}
	key := tx.s.unique(rec)
	if key == "" {
		return nil
	}
	id := rec.ResourceMeta().ID
	for otherID, other := range tx.s.rows {
		if otherID != id && tx.s.unique(other) == key {
			return fmt.Errorf("%q already exists: %w", key, ErrConflict)
		}
	}
	return nil
}
