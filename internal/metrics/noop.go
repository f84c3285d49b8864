package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncResourceOp(kind, op, outcome string)                     {}
func (n *NoopRecorder) ObserveResourceOpDuration(kind, op string, d time.Duration) {}
func (n *NoopRecorder) IncCacheHit(kind string)                                    {}
func (n *NoopRecorder) IncCacheMiss(kind string)                                   {}
func (n *NoopRecorder) IncJobPublished(stream, status string)                      {}
func (n *NoopRecorder) IncJobProcessed(stream, status string)                      {}
func (n *NoopRecorder) SetJobQueueDepth(stream string, depth int64)                {}
