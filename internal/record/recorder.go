package record

import (
	"context"
	"errors"
	"sync"

	"github.com/wonny/fwtrader/internal/contracts"
	"github.com/wonny/fwtrader/pkg/logger"
)

// Multi fans a record out to every sink
// 모든 sink에 기록 시도 후 오류는 errors.Join으로 합침
type Multi []contracts.Recorder

func (m Multi) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	var errs []error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogRecorder writes cycle records as structured log events
type LogRecorder struct {
	logger *logger.Logger
}

// NewLogRecorder creates a log sink
func NewLogRecorder(log *logger.Logger) *LogRecorder {
	return &LogRecorder{logger: log.WithComponent("record")}
}

func (l *LogRecorder) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	fields := map[string]interface{}{
		"cycle_id":    rec.ID,
		"strategy_id": rec.StrategyID,
		"sequence":    rec.Sequence,
		"status":      rec.Status,
		"selected":    len(rec.Selected),
		"signals":     len(rec.Signals),
		"intents":     len(rec.Intents),
		"confirmed":   rec.ConfirmedCount(),
		"failed":      rec.FailedCount(),
		"cash":        rec.Cash,
		"equity":      rec.Equity,
		"positions":   rec.Positions,
		"duration_ms": rec.Duration().Milliseconds(),
	}
	if rec.NoopReason != "" {
		fields["noop_reason"] = rec.NoopReason
	}
	if rec.Error != "" {
		fields["failed_stage"] = rec.FailedStage
		fields["error"] = rec.Error
	}
	if len(rec.Warnings) > 0 {
		fields["warnings"] = rec.Warnings
	}

	entry := l.logger.WithFields(fields)
	if rec.Status == contracts.CycleFailed {
		entry.Warn("cycle record")
	} else {
		entry.Info("cycle record")
	}
	return nil
}

// DefaultHistorySize is the History capacity when none is given
const DefaultHistorySize = 100

// History keeps the latest cycle records in memory
type History struct {
	mu      sync.RWMutex
	records []*contracts.CycleRecord
	size    int
}

// NewHistory creates a ring of size records (0 = DefaultHistorySize)
func NewHistory(size int) *History {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &History{size: size, records: make([]*contracts.CycleRecord, 0, size)}
}

func (h *History) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, rec)
	if len(h.records) > h.size {
		h.records = h.records[len(h.records)-h.size:]
	}
	return nil
}

// Latest returns the most recent record
func (h *History) Latest() (*contracts.CycleRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.records) == 0 {
		return nil, false
	}
	return h.records[len(h.records)-1], true
}

// List returns up to n records, newest first (n <= 0 = all)
func (h *History) List(n int) []*contracts.CycleRecord {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}
	out := make([]*contracts.CycleRecord, 0, n)
	for i := len(h.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, h.records[i])
	}
	return out
}

// Len returns the number of retained records
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.records)
}
