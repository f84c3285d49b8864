package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/quillbase/quillbase/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	writeFamily(w, "counter", snap.Counters)
	writeFamily(w, "gauge", snap.Gauges)
}

func writeFamily(w http.ResponseWriter, kind string, series map[string][]metrics.Sample) {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		writeMetric(w, "# TYPE %s %s\n", name, kind)
		for _, s := range series[name] {
			writeMetric(w, "%s%s %g\n", name, metrics.FormatLabels(s.Labels), s.Value)
		}
	}
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
