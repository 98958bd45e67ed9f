package httpapi

import "net/http"

// handlePerfLatency serves a rolling-window latency breakdown of the turn
// phases, for tuning prompt and grading latency without scraping Prometheus.
func (s *Server) handlePerfLatency(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.deps.Metrics.SnapshotPhases())
}
