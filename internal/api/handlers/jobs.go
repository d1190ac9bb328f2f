package handlers

import (
	"net/http"

	"github.com/wonny/fwtrader/internal/scheduler"
)

// JobStatsSource reports scheduler job statistics
type JobStatsSource interface {
	GetJobStats() map[string]scheduler.JobStats
}

// JobHandler serves scheduler status
type JobHandler struct {
	source JobStatsSource
}

// NewJobHandler creates a new job handler (source nil = 스케줄러 미사용)
func NewJobHandler(source JobStatsSource) *JobHandler {
	return &JobHandler{source: source}
}

// List returns per-job statistics
// GET /api/jobs
func (h *JobHandler) List(w http.ResponseWriter, r *http.Request) {
	stats := map[string]scheduler.JobStats{}
	if h.source != nil {
		stats = h.source.GetJobStats()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": stats,
	})
}
