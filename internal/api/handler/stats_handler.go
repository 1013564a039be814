package handler

import (
	"net/http"

	"github.com/shiftbrew/dispatch/internal/service"
)

// StatsHandler serves a human-readable JSON pipeline snapshot.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp and are separate from this endpoint.
type StatsHandler struct {
	monitor *service.Monitor
}

func NewStatsHandler(monitor *service.Monitor) *StatsHandler {
	return &StatsHandler{monitor: monitor}
}

// GetStats handles GET /api/v1/stats
//
// @Summary  Job counts per state plus current queue depth
// @Tags     stats
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/stats [get]
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	counts, err := h.monitor.CountsByState(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read job counts")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"jobs_by_state": counts,
		"queue_depth":   h.monitor.QueueDepth(),
	})
}
