package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quillbase/quillbase/internal/metrics"
)

const (
	// DefaultBatchSize is the max jobs read per poll.
	DefaultBatchSize = 20

	// DefaultBlockTimeout is how long to block waiting for messages.
	DefaultBlockTimeout = 2 * time.Second

	// DefaultClaimInterval is how often to scan pending messages.
	DefaultClaimInterval = 10 * time.Second

	// DefaultClaimIdle is the idle time before reclaiming pending messages.
	DefaultClaimIdle = 5 * time.Minute

	// DefaultMetricsInterval is how often to refresh queue depth metrics.
	DefaultMetricsInterval = 5 * time.Second
)

// popDueScript atomically removes and returns members of a delayed set
// whose score (due time in Unix ms) has passed.
var popDueScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
if #due > 0 then
	redis.call('ZREM', KEYS[1], unpack(due))
end
return due
`)

// Worker processes jobs from one Redis stream.
type Worker struct {
	redis           *redis.Client
	stream          string
	handlers        map[string]HandlerFunc
	logger          *slog.Logger
	metrics         metrics.Recorder
	consumerID      string
	batchSize       int
	blockTimeout    time.Duration
	claimInterval   time.Duration
	claimIdle       time.Duration
	metricsInterval time.Duration
	maxAttempts     int
	maxLen          int64
	retryDelay      func(attempt int) time.Duration
	claimStartID    string
	lastClaim       time.Time
	lastMetrics     time.Time

	started  bool
	draining bool
	cancel   context.CancelFunc
	done     chan struct{}
	mu       sync.Mutex
}

// NewWorker creates a worker for stream.
func NewWorker(client *redis.Client, stream string, logger *slog.Logger, consumerID string, recorder metrics.Recorder) *Worker {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Worker{
		redis:           client,
		stream:          stream,
		handlers:        make(map[string]HandlerFunc),
		logger:          logger.With("component", "jobs.worker", "stream", stream, "consumer_id", consumerID),
		metrics:         recorder,
		consumerID:      consumerID,
		batchSize:       DefaultBatchSize,
		blockTimeout:    DefaultBlockTimeout,
		claimInterval:   DefaultClaimInterval,
		claimIdle:       DefaultClaimIdle,
		metricsInterval: DefaultMetricsInterval,
		maxAttempts:     DefaultMaxAttempts,
		maxLen:          DefaultMaxStreamLen,
		retryDelay:      NextRetryDelay,
		claimStartID:    "0-0",
	}
}

// Handle registers h for jobs of kind. Must be called before Run.
func (w *Worker) Handle(kind string, h HandlerFunc) {
	w.handlers[kind] = h
}

// Stream returns the stream this worker consumes.
func (w *Worker) Stream() string {
	return w.stream
}

// Run starts the worker loop. Blocks until context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return errors.New("worker already started")
	}
	w.started = true
	w.done = make(chan struct{})
	ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	defer close(w.done)

	if err := w.ensureConsumerGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	w.logger.Info("jobs worker started")

	for {
		w.mu.Lock()
		draining := w.draining
		w.mu.Unlock()

		if draining {
			w.logger.Info("jobs worker draining, stopping")
			return nil
		}

		select {
		case <-ctx.Done():
			w.logger.Info("jobs worker stopping")
			return nil
		default:
			if err := w.processOnce(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				w.logger.Error("process error", "error", err)
				time.Sleep(1 * time.Second)
			}
		}
	}
}

// Shutdown gracefully stops the worker, completing any in-flight job.
func (w *Worker) Shutdown(ctx context.Context) error {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return nil
	}
	w.draining = true
	cancel := w.cancel
	done := w.done
	w.mu.Unlock()

	w.logger.Info("jobs worker shutdown initiated")

	if cancel != nil {
		cancel()
	}

	if done != nil {
		select {
		case <-done:
			w.logger.Info("jobs worker shutdown complete")
			return nil
		case <-ctx.Done():
			w.logger.Warn("jobs worker shutdown timed out")
			return ctx.Err()
		}
	}
	return nil
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (w *Worker) ensureConsumerGroup(ctx context.Context) error {
	err := w.redis.XGroupCreateMkStream(ctx, w.stream, ConsumerGroup, "0").Err()
	if err != nil && !isConsumerGroupExistsError(err) {
		return err
	}
	return nil
}

// processOnce promotes due retries, then reads and handles a single batch.
func (w *Worker) processOnce(ctx context.Context) error {
	w.maybeUpdateQueueDepth(ctx)

	if _, err := w.promoteDue(ctx); err != nil {
		w.logger.Warn("failed to promote delayed jobs", "error", err)
	}

	claimed, err := w.maybeClaimPending(ctx)
	if err != nil {
		w.logger.Warn("failed to claim pending messages", "error", err)
	}

	messages := claimed
	if len(messages) == 0 {
		messages, err = w.readBatch(ctx)
		if err != nil {
			return err
		}
	}

	acks := make([]string, 0, len(messages))
	for _, msg := range messages {
		if err := w.process(ctx, msg); err != nil {
			// Leave unacknowledged so a later claim retries it.
			w.logger.Error("job left pending", "message_id", msg.ID, "error", err)
			continue
		}
		acks = append(acks, msg.ID)
	}

	return w.ackMessages(ctx, acks)
}

// process runs one message. A nil return means the message may be acked:
// it succeeded, was rescheduled or was dead-lettered.
func (w *Worker) process(ctx context.Context, msg redis.XMessage) error {
	payload, ok := msg.Values["payload"].(string)
	if !ok {
		return w.deadLetter(ctx, msg, "invalid_format", "payload field missing or not a string")
	}

	var job Job
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return w.deadLetter(ctx, msg, "unmarshal_error", err.Error())
	}
	if err := job.Validate(); err != nil {
		return w.deadLetter(ctx, msg, "validation_error", err.Error())
	}

	handler, ok := w.handlers[job.Kind]
	if !ok {
		return w.deadLetter(ctx, msg, "unknown_kind", job.Kind)
	}

	start := time.Now()
	err := handler(ctx, &job)
	if err == nil {
		w.logger.Info("job processed",
			"kind", job.Kind,
			"job_id", job.ID,
			"attempt", job.Attempt+1,
			"duration_ms", float64(time.Since(start).Microseconds())/1000,
		)
		w.metrics.IncJobProcessed(w.stream, "success")
		return nil
	}
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return err
	}

	if IsPermanent(err) {
		return w.deadLetter(ctx, msg, "permanent_error", err.Error())
	}
	if IsExhausted(job.Attempt+1, w.maxAttempts) {
		return w.deadLetter(ctx, msg, "exhausted", err.Error())
	}

	delay := w.retryDelay(job.Attempt)
	job.Attempt++
	if err := w.schedule(ctx, &job, time.Now().Add(delay)); err != nil {
		return err
	}

	w.logger.Warn("job failed, retry scheduled",
		"kind", job.Kind,
		"job_id", job.ID,
		"attempt", job.Attempt,
		"retry_in_seconds", delay.Seconds(),
		"error", err,
	)
	w.metrics.IncJobProcessed(w.stream, "retry")
	return nil
}

// schedule parks job in the delayed set until at.
func (w *Worker) schedule(ctx context.Context, job *Job, at time.Time) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	err = w.redis.ZAdd(ctx, DelayedKey(w.stream), redis.Z{
		Score:  float64(at.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("zadd: %w", err)
	}
	return nil
}

// promoteDue moves due retries from the delayed set back onto the stream.
func (w *Worker) promoteDue(ctx context.Context) (int, error) {
	due, err := popDueScript.Run(ctx, w.redis,
		[]string{DelayedKey(w.stream)},
		strconv.FormatInt(time.Now().UnixMilli(), 10),
		w.batchSize,
	).StringSlice()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("pop due jobs: %w", err)
	}

	for i, payload := range due {
		if _, err := appendRaw(ctx, w.redis, w.stream, w.maxLen, payload); err != nil {
			// Put the rest back so nothing is lost.
			for _, rest := range due[i:] {
				_ = w.redis.ZAdd(ctx, DelayedKey(w.stream), redis.Z{
					Score:  float64(time.Now().UnixMilli()),
					Member: rest,
				}).Err()
			}
			return i, err
		}
	}
	return len(due), nil
}

// maybeClaimPending checks for stuck pending messages and reclaims them.
func (w *Worker) maybeClaimPending(ctx context.Context) ([]redis.XMessage, error) {
	if w.claimInterval <= 0 || w.claimIdle <= 0 {
		return nil, nil
	}
	if !w.lastClaim.IsZero() && time.Since(w.lastClaim) < w.claimInterval {
		return nil, nil
	}

	w.lastClaim = time.Now()
	messages, start, err := w.redis.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   w.stream,
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		MinIdle:  w.claimIdle,
		Start:    w.claimStartID,
		Count:    int64(w.batchSize),
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	if start != "" {
		w.claimStartID = start
	}
	return messages, nil
}

func (w *Worker) maybeUpdateQueueDepth(ctx context.Context) {
	if w.metricsInterval <= 0 {
		return
	}
	if !w.lastMetrics.IsZero() && time.Since(w.lastMetrics) < w.metricsInterval {
		return
	}
	w.lastMetrics = time.Now()

	groups, err := w.redis.XInfoGroups(ctx, w.stream).Result()
	if err != nil && err != redis.Nil {
		w.logger.Warn("failed to read stream group info", "error", err)
		return
	}
	for _, group := range groups {
		if group.Name == ConsumerGroup {
			w.metrics.SetJobQueueDepth(w.stream, group.Pending+group.Lag)
			return
		}
	}
}

// SetBatchSize overrides the default batch size.
func (w *Worker) SetBatchSize(size int) {
	if size > 0 {
		w.batchSize = size
	}
}

// SetBlockTimeout overrides the default blocking timeout.
func (w *Worker) SetBlockTimeout(timeout time.Duration) {
	if timeout > 0 {
		w.blockTimeout = timeout
	}
}

// SetClaimIdle overrides the default pending idle threshold.
func (w *Worker) SetClaimIdle(idle time.Duration) {
	if idle > 0 {
		w.claimIdle = idle
	}
}

// SetMaxAttempts overrides how many times a job's handler may run.
func (w *Worker) SetMaxAttempts(n int) {
	if n > 0 {
		w.maxAttempts = n
	}
}

// SetMaxLen overrides the approximate stream length cap used on re-enqueue.
func (w *Worker) SetMaxLen(n int64) {
	if n > 0 {
		w.maxLen = n
	}
}

// SetRetryDelay overrides the backoff schedule.
func (w *Worker) SetRetryDelay(fn func(attempt int) time.Duration) {
	if fn != nil {
		w.retryDelay = fn
	}
}

// readBatch reads messages from the stream using XREADGROUP.
func (w *Worker) readBatch(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := w.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    ConsumerGroup,
		Consumer: w.consumerID,
		Streams:  []string{w.stream, ">"},
		Count:    int64(w.batchSize),
		Block:    w.blockTimeout,
	}).Result()

	if err == redis.Nil || len(streams) == 0 {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	return streams[0].Messages, nil
}

// deadLetter moves a message to the dead-letter stream.
func (w *Worker) deadLetter(ctx context.Context, msg redis.XMessage, reason, detail string) error {
	w.logger.Warn("dead-lettering job",
		"message_id", msg.ID,
		"reason", reason,
		"detail", detail,
	)

	_, err := w.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: DeadLetterStream(w.stream),
		MaxLen: deadLetterMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"original_id":      msg.ID,
			"original_stream":  w.stream,
			"reason":           reason,
			"detail":           detail,
			"payload":          msg.Values["payload"],
			"dead_lettered_at": time.Now().UTC().Format(time.RFC3339),
		},
	}).Result()
	if err != nil {
		return fmt.Errorf("write dead letter: %w", err)
	}

	w.metrics.IncJobProcessed(w.stream, "dead")
	return nil
}

// ackMessages acknowledges processed messages.
func (w *Worker) ackMessages(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}

	if err := w.redis.XAck(ctx, w.stream, ConsumerGroup, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// isConsumerGroupExistsError checks if the error is "BUSYGROUP" (group exists).
func isConsumerGroupExistsError(err error) bool {
	return err != nil && strings.HasPrefix(err.Error(), "BUSYGROUP")
}
