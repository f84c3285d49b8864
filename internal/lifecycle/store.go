package lifecycle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Query filters a listing. Empty fields match everything.
type Query struct {
	OwnerID        string
	ParentID       string
	IncludeDeleted bool
	// LiveParent keeps only rows whose parent row exists and is not
	// soft-deleted. Rows without a parent are unaffected.
	LiveParent bool
}

// Store hands out transactions over one resource table.
type Store[T Record] interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx[T]) error) error
}

// Tx is the unit of work a Manager operation runs in. Implementations
// report missing rows with ErrNotFound and uniqueness violations with
// ErrConflict (optionally wrapped).
type Tx[T Record] interface {
	Insert(ctx context.Context, rec T) error
	// Get returns the row regardless of its soft-delete marker.
	Get(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, rec T) error
	Remove(ctx context.Context, id string) error
	// ParentExists reports whether a live parent row with id exists.
	ParentExists(ctx context.Context, id string) (bool, error)
	// Page returns up to limit rows matching q with ID greater than after,
	// ordered by ID ascending.
	Page(ctx context.Context, q Query, after string, limit int) ([]T, error)
}

// Page is one slice of a paginated listing.
type Page[T Record] struct {
	Items      []T
	NextCursor string
}

// HasMore reports whether another page follows.
func (p Page[T]) HasMore() bool {
	return p.NextCursor != ""
}

type cursor struct {
	ID string `json:"id"`
}

func encodeCursor(id string) string {
	data, _ := json.Marshal(cursor{ID: id})
	return base64.URLEncoding.EncodeToString(data)
}

func decodeCursor(s string) (string, error) {
	if s == "" {
		return "", nil
	}
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return "", fmt.Errorf("decode cursor: %w", err)
	}
	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return "", fmt.Errorf("decode cursor: %w", err)
	}
	return c.ID, nil
}
