package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrVideoNotFound is returned when a like targets a missing video.
var ErrVideoNotFound = errors.New("video not found")

// AdjustVideoLikes adds delta to the like counter of a live video and
// returns the new count. The counter never drops below zero and the
// video's updated_at is left alone.
func (r *Repository) AdjustVideoLikes(ctx context.Context, id string, delta int) (int, error) {
	query := `
		UPDATE videos
		SET likes = GREATEST(likes + $2, 0)
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING likes
	`

	var likes int
	if err := r.pool.QueryRow(ctx, query, id, delta).Scan(&likes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrVideoNotFound
		}
		return 0, fmt.Errorf("failed to adjust video likes: %w", err)
	}

	return likes, nil
}
