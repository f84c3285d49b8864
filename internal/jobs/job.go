// Package jobs runs background work over Redis Streams.
//
// A Publisher appends jobs to a stream; a Worker consumes one stream through
// a consumer group, dispatching each job to the handler registered for its
// kind. Failed jobs are rescheduled through a per-stream delayed set with
// exponential backoff and end up on a dead-letter stream once exhausted.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Streams used by the application.
const (
	StreamMail  = "stream:mail"
	StreamMedia = "stream:media"
)

const (
	// ConsumerGroup is the Redis consumer group shared by all workers.
	ConsumerGroup = "quillbase_workers"

	// DefaultMaxStreamLen is the approximate max length of a stream.
	DefaultMaxStreamLen = 100000

	// deadLetterMaxLen keeps the last poison messages per stream.
	deadLetterMaxLen = 10000

	maxKindLength = 64
)

// DeadLetterStream returns the dead-letter stream for stream.
func DeadLetterStream(stream string) string {
	return stream + ":dlq"
}

// DelayedKey returns the sorted set holding stream's scheduled retries.
func DelayedKey(stream string) string {
	return "jobs:delayed:" + stream
}

// Job is the envelope stored in a stream entry.
type Job struct {
	ID         string          `json:"id"`
	Kind       string          `json:"k"`
	Payload    json.RawMessage `json:"p"`
	Attempt    int             `json:"a"`
	EnqueuedAt int64           `json:"t"` // Unix milliseconds
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v any) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", j.Kind, err))
	}
	return nil
}

// Validate checks the envelope fields a worker relies on.
func (j *Job) Validate() error {
	if j.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	if len(j.Kind) > maxKindLength {
		return fmt.Errorf("kind too long")
	}
	if len(j.Payload) == 0 {
		return fmt.Errorf("payload is required")
	}
	if j.Attempt < 0 {
		return fmt.Errorf("attempt must not be negative")
	}
	if j.EnqueuedAt <= 0 {
		return fmt.Errorf("enqueued_at must be set")
	}
	return nil
}

// HandlerFunc processes one job. Returning an error schedules a retry
// unless the error is Permanent.
type HandlerFunc func(ctx context.Context, job *Job) error

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the job is dead-lettered.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func newJob(id, kind string, payload any, now time.Time) (*Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return &Job{
		ID:         id,
		Kind:       kind,
		Payload:    data,
		EnqueuedAt: now.UnixMilli(),
	}, nil
}
