package handlers

import (
	"errors"
	"net/http"
	"slices"

	"github.com/wonny/fwtrader/internal/audit"
	"github.com/wonny/fwtrader/pkg/logger"
)

// PerformanceHandler serves performance analytics over retained cycles
type PerformanceHandler struct {
	analyzer *audit.Analyzer
	records  RecordSource
	logger   *logger.Logger
}

// NewPerformanceHandler creates a new performance handler
func NewPerformanceHandler(analyzer *audit.Analyzer, records RecordSource, log *logger.Logger) *PerformanceHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &PerformanceHandler{analyzer: analyzer, records: records, logger: log}
}

// Get returns the performance report
// GET /api/performance
func (h *PerformanceHandler) Get(w http.ResponseWriter, r *http.Request) {
	records := h.records.List(0)
	slices.Reverse(records) // 오래된 순

	report, err := h.analyzer.Analyze(records)
	if errors.Is(err, audit.ErrNotEnoughCycles) {
		respondError(w, http.StatusNotFound, "Not enough cycles for performance analysis")
		return
	}
	if err != nil {
		h.logger.WithError(err).Error("Performance analysis failed")
		respondError(w, http.StatusInternalServerError, "Performance analysis failed")
		return
	}
	respondJSON(w, http.StatusOK, report)
}
