package handlers

import (
	"net/http"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/internal/state"
	"github.com/wonny/fwtrader/pkg/logger"
)

// StateReader exposes the committed Context
type StateReader interface {
	Snapshot() *state.Context
	Phase() contracts.Phase
}

// StateHandler serves the strategy Context
type StateHandler struct {
	reader StateReader
	logger *logger.Logger
}

// NewStateHandler creates a new state handler
func NewStateHandler(reader StateReader, log *logger.Logger) *StateHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &StateHandler{reader: reader, logger: log}
}

// Get returns the serialized Context
// GET /api/state
func (h *StateHandler) Get(w http.ResponseWriter, r *http.Request) {
	data, err := h.reader.Snapshot().Serialize()
	if err != nil {
		h.logger.WithError(err).Error("Failed to serialize context")
		respondError(w, http.StatusInternalServerError, "Failed to serialize context")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Cycle-Phase", string(h.reader.Phase()))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
