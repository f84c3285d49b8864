// Package metrics provides lightweight hooks for instrumentation.
package metrics

import "time"

// Outcome labels for resource operations.
const (
	OutcomeSuccess   = "success"
	OutcomeNotFound  = "not_found"
	OutcomeForbidden = "forbidden"
	OutcomeConflict  = "conflict"
	OutcomeInvalid   = "invalid"
	OutcomeError     = "error"
)

// Recorder captures metric events for the application.
// Implementations can expose these to Prometheus, StatsD, etc.
type Recorder interface {
	// Resource lifecycle metrics
	IncResourceOp(kind, op, outcome string)
	ObserveResourceOpDuration(kind, op string, duration time.Duration)

	// Read-through cache metrics
	IncCacheHit(kind string)
	IncCacheMiss(kind string)

	// Background job metrics
	IncJobPublished(stream, status string) // status: "success" or "dropped"
	IncJobProcessed(stream, status string) // status: "success", "retry", "dead"
	SetJobQueueDepth(stream string, depth int64)
}

// Snapshotter exposes a snapshot of current metrics.
type Snapshotter interface {
	Snapshot() Snapshot
}
