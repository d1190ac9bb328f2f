package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/logger"
)

// CycleRunner runs one cycle on demand
type CycleRunner interface {
	RunCycle(ctx context.Context) (*contracts.CycleRecord, error)
}

// RecordSource serves recent cycle records (newest first)
type RecordSource interface {
	List(n int) []*contracts.CycleRecord
	Latest() (*contracts.CycleRecord, bool)
}

// defaultListLimit / maxListLimit bound GET /api/cycles
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CycleHandler handles cycle record endpoints
// ⭐ SSOT: 사이클 API 핸들러는 이 구조체에서만
type CycleHandler struct {
	runner  CycleRunner
	records RecordSource
	logger  *logger.Logger
}

// NewCycleHandler creates a new cycle handler
func NewCycleHandler(runner CycleRunner, records RecordSource, log *logger.Logger) *CycleHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &CycleHandler{
		runner:  runner,
		records: records,
		logger:  log,
	}
}

// List returns recent cycle records
// GET /api/cycles?limit=n
func (h *CycleHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxListLimit)
	}

	records := h.records.List(limit)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}

// Latest returns the most recent cycle record
// GET /api/cycles/latest
func (h *CycleHandler) Latest(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.records.Latest()
	if !ok {
		respondError(w, http.StatusNotFound, "No cycle has run yet")
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

// Run triggers one cycle and returns its record
// POST /api/cycles/run
func (h *CycleHandler) Run(w http.ResponseWriter, r *http.Request) {
	// 클라이언트 연결 종료로 사이클 중간 취소 방지
	ctx := context.WithoutCancel(r.Context())

	rec, err := h.runner.RunCycle(ctx)
	if errors.Is(err, contracts.ErrCycleInProgress) {
		respondError(w, http.StatusConflict, "A cycle is already in progress")
		return
	}
	if rec == nil {
		h.logger.WithError(err).Error("Manual cycle produced no record")
		respondError(w, http.StatusInternalServerError, "Cycle did not complete")
		return
	}

	// 단계 실패도 레코드에 기록되므로 200
	if err != nil {
		h.logger.WithError(err).Warn("Manual cycle failed")
	}
	respondJSON(w, http.StatusOK, rec)
}
