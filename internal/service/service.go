// Package service provides business logic for the application.
//
// Each service owns the lifecycle managers for its resource types and adds
// input normalisation, validation and the post-commit side effects (cache
// refreshes, mail and media jobs) around them.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillbase/quillbase/internal/lifecycle"
	"github.com/quillbase/quillbase/internal/metrics"
)

// Listing limits.
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Policies maps resource kinds to their lifecycle policy.
type Policies map[string]lifecycle.Policy

// Deps carries the ambient collaborators shared by all services.
type Deps struct {
	Logger  *slog.Logger
	Metrics metrics.Recorder
	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func (d Deps) recorder() metrics.Recorder {
	if d.Metrics == nil {
		return metrics.NewNoop()
	}
	return d.Metrics
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}
	return d.Now().UTC()
}

func managerOptions[T lifecycle.Record](d Deps, extra ...lifecycle.Option[T]) []lifecycle.Option[T] {
	opts := []lifecycle.Option[T]{
		lifecycle.WithLogger[T](d.logger()),
		lifecycle.WithMetrics[T](d.recorder()),
	}
	if d.Now != nil {
		opts = append(opts, lifecycle.WithClock[T](d.Now))
	}
	return append(opts, extra...)
}

// Enqueuer publishes background jobs. *jobs.Publisher implements it.
type Enqueuer interface {
	Enqueue(ctx context.Context, stream, kind string, payload any) (string, error)
}

// ListInput selects one page of a listing.
type ListInput struct {
	Cursor string
	Limit  int
}

func (in ListInput) limit() int {
	switch {
	case in.Limit <= 0:
		return DefaultPageLimit
	case in.Limit > MaxPageLimit:
		return MaxPageLimit
	default:
		return in.Limit
	}
}
