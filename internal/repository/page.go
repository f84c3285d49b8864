package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/quillbase/quillbase/internal/model"
)

// ErrPageNotFound is returned when no live page matches a lookup.
var ErrPageNotFound = errors.New("page not found")

var pageColumns = map[model.PageField]string{
	model.PageFieldID:    "id",
	model.PageFieldTitle: "title",
}

// FindPage returns the oldest live page whose field equals value.
func (r *Repository) FindPage(ctx context.Context, field model.PageField, value string) (*model.Page, error) {
	col, ok := pageColumns[field]
	if !ok {
		return nil, fmt.Errorf("unknown page field %q", field)
	}

	pages := r.Pages()
	query := fmt.Sprintf(`SELECT %s FROM pages WHERE %s = $1 AND deleted_at IS NULL ORDER BY id LIMIT 1`, pages.cols, col)

	page, err := pages.scan(r.pool.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPageNotFound
		}
		return nil, fmt.Errorf("failed to find page by %s: %w", field, err)
	}

	return page, nil
}
