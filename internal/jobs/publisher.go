package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"

	"github.com/quillbase/quillbase/internal/metrics"
)

// PublishTimeout is the max time to wait for Redis on an async publish.
const PublishTimeout = 500 * time.Millisecond

// Publisher enqueues jobs to Redis streams.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
	maxLen  int64
	now     func() time.Time
}

// NewPublisher creates a new job publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "jobs.publisher"),
		metrics: recorder,
		maxLen:  DefaultMaxStreamLen,
		now:     time.Now,
	}
}

// SetMaxLen overrides the approximate stream length cap.
func (p *Publisher) SetMaxLen(n int64) {
	if n > 0 {
		p.maxLen = n
	}
}

// Enqueue appends a job of the given kind to stream and returns the stream
// entry ID.
func (p *Publisher) Enqueue(ctx context.Context, stream, kind string, payload any) (string, error) {
	job, err := newJob(ulid.Make().String(), kind, payload, p.now())
	if err != nil {
		p.metrics.IncJobPublished(stream, "dropped")
		return "", err
	}

	id, err := appendJob(ctx, p.redis, stream, p.maxLen, job)
	if err != nil {
		p.metrics.IncJobPublished(stream, "dropped")
		return "", err
	}

	p.logger.Debug("job published",
		"stream", stream,
		"kind", kind,
		"job_id", job.ID,
		"stream_id", id,
	)
	p.metrics.IncJobPublished(stream, "success")
	return id, nil
}

// EnqueueAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) EnqueueAsync(stream, kind string, payload any) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		if _, err := p.Enqueue(ctx, stream, kind, payload); err != nil {
			p.logger.Warn("failed to publish job",
				"stream", stream,
				"kind", kind,
				"error", err,
			)
		}
	}()
}

// appendJob writes job as the payload field of a new stream entry.
func appendJob(ctx context.Context, client *redis.Client, stream string, maxLen int64, job *Job) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("marshal job: %w", err)
	}
	return appendRaw(ctx, client, stream, maxLen, string(data))
}

func appendRaw(ctx context.Context, client *redis.Client, stream string, maxLen int64, payload string) (string, error) {
	id, err := client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",
		Values: map[string]interface{}{
			"payload": payload,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	return id, nil
}
