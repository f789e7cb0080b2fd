package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/veomenu/veomenu/internal/metrics"
)

// Metrics returns middleware that records request count and duration.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			m.RecordRequest(r.Method, metricsPath(r.URL.Path), rec.status, time.Since(start))
		})
	}
}

// metricsPath normalizes a request path into a bounded label value. Numeric
// and UUID segments collapse to {id}; anything outside the known surface is
// lumped into "other" so scanners cannot inflate label cardinality.
func metricsPath(path string) string {
	if path == "/health" || path == "/metrics" {
		return path
	}
	if !strings.HasPrefix(path, "/api/") {
		return "other"
	}
	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		if isIDSegment(seg) {
			segments[i] = "{id}"
		}
	}
	return strings.Join(segments, "/")
}

func isIDSegment(seg string) bool {
	if len(seg) == 36 && strings.Count(seg, "-") == 4 {
		return true
	}
	for _, c := range seg {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(seg) > 0
}
