package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

// Sample is one labelled counter or gauge value.
type Sample struct {
	Labels map[string]string
	Value  float64
}

// Snapshot captures current in-memory series keyed by metric name.
type Snapshot struct {
	Counters map[string][]Sample
	Gauges   map[string][]Sample
}

// Counter returns the value of the counter with exactly the given labels.
func (s Snapshot) Counter(name string, labels ...string) float64 {
	return find(s.Counters[name], labels)
}

// Gauge returns the value of the gauge with exactly the given labels.
func (s Snapshot) Gauge(name string, labels ...string) float64 {
	return find(s.Gauges[name], labels)
}

func find(samples []Sample, labels []string) float64 {
	want := pairs(labels)
	for _, sample := range samples {
		if len(sample.Labels) != len(want) {
			continue
		}
		match := true
		for k, v := range want {
			if sample.Labels[k] != v {
				match = false
				break
			}
		}
		if match {
			return sample.Value
		}
	}
	return 0
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics endpoint
// and is used directly in tests.
type InMemoryRecorder struct {
	mu       sync.Mutex
	counters map[string]map[string]float64
	gauges   map[string]map[string]float64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{
		counters: make(map[string]map[string]float64),
		gauges:   make(map[string]map[string]float64),
	}
}

// IncResourceOp counts a lifecycle operation by outcome.
func (m *InMemoryRecorder) IncResourceOp(kind, op, outcome string) {
	m.add("quillbase_resource_operations_total", 1, "kind", kind, "op", op, "outcome", outcome)
}

// ObserveResourceOpDuration accumulates lifecycle operation latency.
func (m *InMemoryRecorder) ObserveResourceOpDuration(kind, op string, d time.Duration) {
	m.add("quillbase_resource_operation_duration_seconds_count", 1, "kind", kind, "op", op)
	m.add("quillbase_resource_operation_duration_seconds_sum", d.Seconds(), "kind", kind, "op", op)
}

// IncCacheHit counts a read-through cache hit.
func (m *InMemoryRecorder) IncCacheHit(kind string) {
	m.add("quillbase_cache_hits_total", 1, "kind", kind)
}

// IncCacheMiss counts a read-through cache miss.
func (m *InMemoryRecorder) IncCacheMiss(kind string) {
	m.add("quillbase_cache_misses_total", 1, "kind", kind)
}

// IncJobPublished counts an enqueue attempt.
func (m *InMemoryRecorder) IncJobPublished(stream, status string) {
	m.add("quillbase_jobs_published_total", 1, "stream", stream, "status", status)
}

// IncJobProcessed counts a processed job by status.
func (m *InMemoryRecorder) IncJobProcessed(stream, status string) {
	m.add("quillbase_jobs_processed_total", 1, "stream", stream, "status", status)
}

// SetJobQueueDepth records pending + lag for a stream's consumer group.
func (m *InMemoryRecorder) SetJobQueueDepth(stream string, depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series(m.gauges, "quillbase_jobs_queue_depth")[labelKey("stream", stream)] = float64(depth)
}

// Snapshot returns a copy of every series.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Counters: copySeries(m.counters),
		Gauges:   copySeries(m.gauges),
	}
}

func (m *InMemoryRecorder) add(name string, delta float64, labels ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	series(m.counters, name)[labelKey(labels...)] += delta
}

func series(all map[string]map[string]float64, name string) map[string]float64 {
	s, ok := all[name]
	if !ok {
		s = make(map[string]float64)
		all[name] = s
	}
	return s
}

// labelKey encodes alternating name/value pairs as `a="x",b="y"`.
func labelKey(labels ...string) string {
	parts := make([]string, 0, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		parts = append(parts, labels[i]+`="`+labels[i+1]+`"`)
	}
	return strings.Join(parts, ",")
}

func pairs(labels []string) map[string]string {
	out := make(map[string]string, len(labels)/2)
	for i := 0; i+1 < len(labels); i += 2 {
		out[labels[i]] = labels[i+1]
	}
	return out
}

func parseKey(key string) map[string]string {
	out := make(map[string]string)
	if key == "" {
		return out
	}
	for _, part := range strings.Split(key, ",") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[name] = strings.Trim(value, `"`)
	}
	return out
}

func copySeries(all map[string]map[string]float64) map[string][]Sample {
	out := make(map[string][]Sample, len(all))
	for name, s := range all {
		keys := make([]string, 0, len(s))
		for k := range s {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		samples := make([]Sample, 0, len(keys))
		for _, k := range keys {
			samples = append(samples, Sample{Labels: parseKey(k), Value: s[k]})
		}
		out[name] = samples
	}
	return out
}

// FormatLabels renders labels in Prometheus exposition order.
func FormatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, k+`="`+labels[k]+`"`)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
