package record

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/wonny/fwtrader/internal/contracts"
)

// FileRecorder appends cycle records to a JSON-lines file
// 레코드 1건 = 1줄, 기록마다 fsync
type FileRecorder struct {
	mu   sync.Mutex
	path string
}

// NewFileRecorder creates a JSONL sink at path (parent dirs are created on first write)
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path}
}

// Path returns the file location
func (f *FileRecorder) Path() string { return f.path }

func (f *FileRecorder) Record(ctx context.Context, rec *contracts.CycleRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cycle record: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create record dir: %w", err)
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open record file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write cycle record: %w", err)
	}
	return file.Sync()
}

// ReadFile loads records from a JSONL file, newest last
// 마지막 줄이 잘린 경우(비정상 종료) 그 줄만 무시
func ReadFile(path string) ([]*contracts.CycleRecord, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open record file: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReader(file)
	var out []*contracts.CycleRecord
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && line[len(line)-1] == '\n' {
			var rec contracts.CycleRecord
			if uerr := json.Unmarshal(line, &rec); uerr != nil {
				return out, fmt.Errorf("decode cycle record %d: %w", len(out)+1, uerr)
			}
			out = append(out, &rec)
		}
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, fmt.Errorf("read record file: %w", err)
		}
	}
}
