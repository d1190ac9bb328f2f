package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the Context between process restarts
// ⭐ SSOT: Context 영속화 인터페이스
type Store interface {
	// Load returns nil, nil when nothing was saved yet
	Load(ctx context.Context) (*Context, error)
	Save(ctx context.Context, c *Context) error
}

// MemoryStore keeps the last saved Context in memory
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) (*Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return nil, nil
	}
	return Restore(s.data)
}

func (s *MemoryStore) Save(ctx context.Context, c *Context) error {
	data, err := c.Serialize()
	if err != nil {
		return fmt.Errorf("serialize context: %w", err)
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// FileStore writes the Context as a JSON file
// 쓰기는 임시 파일 + rename으로 원자적으로 수행
type FileStore struct {
	path string
}

// NewFileStore creates a file store at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Load(ctx context.Context) (*Context, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read context file: %w", err)
	}
	return Restore(data)
}

func (s *FileStore) Save(ctx context.Context, c *Context) error {
	data, err := c.Serialize()
	if err != nil {
		return fmt.Errorf("serialize context: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create context dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp context file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write context file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync context file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close context file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("rename context file: %w", err)
	}
	return nil
}

// Delete removes the saved Context
func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove context file: %w", err)
	}
	return nil
}
