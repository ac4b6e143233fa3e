package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"greenbot/pkg/fileutil"
	"greenbot/pkg/logger"
)

// FileStore is a KV kept in memory and persisted to a JSON file.
type FileStore struct {
	log      *logger.Logger
	filePath string
	data     map[string]any
	mu       sync.RWMutex

	autoSave     bool
	saveInterval time.Duration
	saveTicker   *time.Ticker
	stopSave     chan struct{}
	closeOnce    sync.Once
	dirty        bool
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	FilePath     string
	AutoSave     bool          // flush on a ticker instead of on every write
	SaveInterval time.Duration // default 5s
}

// NewFileStore opens or creates the state file.
func NewFileStore(log *logger.Logger, cfg *FileStoreConfig) (*FileStore, error) {
	if cfg.SaveInterval <= 0 {
		cfg.SaveInterval = 5 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("creating state directory: %w", err)
	}

	s := &FileStore{
		log:          log,
		filePath:     cfg.FilePath,
		data:         make(map[string]any),
		autoSave:     cfg.AutoSave,
		saveInterval: cfg.SaveInterval,
		stopSave:     make(chan struct{}),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading state: %w", err)
	}

	if s.autoSave {
		s.startAutoSave()
	}

	return s, nil
}

func (s *FileStore) Get(_ context.Context, key string) (any, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.data[key]
	return value, exists, nil
}

func (s *FileStore) Set(_ context.Context, key string, value any) error {
	normalized, err := normalize(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.data[key] = normalized
	s.dirty = true
	s.mu.Unlock()

	return s.flushIfSync()
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.data, key)
	s.dirty = true
	s.mu.Unlock()

	return s.flushIfSync()
}

func (s *FileStore) Keys(_ context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (s *FileStore) UpdateFunc(_ context.Context, key string, fn UpdateFn) error {
	s.mu.Lock()
	current, exists := s.data[key]
	next, write := fn(current, exists)
	if !write {
		s.mu.Unlock()
		return nil
	}
	normalized, err := normalize(next)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.data[key] = normalized
	s.dirty = true
	s.mu.Unlock()

	return s.flushIfSync()
}

// Save writes pending changes to disk.
func (s *FileStore) Save() error {
	s.mu.RLock()
	if !s.dirty {
		s.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	keyCount := len(s.data)
	s.mu.RUnlock()

	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}
	if err := fileutil.WriteFileAtomic(s.filePath, data, 0644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}

	s.mu.Lock()
	s.dirty = false
	s.mu.Unlock()

	s.log.Debug("Saved state", zap.String("file", s.filePath), zap.Int("keys", keyCount))
	return nil
}

// Close stops auto-save and flushes.
func (s *FileStore) Close() error {
	s.closeOnce.Do(func() {
		if s.saveTicker != nil {
			s.saveTicker.Stop()
			close(s.stopSave)
		}
	})
	return s.Save()
}

func (s *FileStore) flushIfSync() error {
	if s.autoSave {
		return nil
	}
	return s.Save()
}

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, &s.data); err != nil {
		return fmt.Errorf("unmarshaling state: %w", err)
	}
	if s.data == nil {
		s.data = make(map[string]any)
	}

	s.log.Info("Loaded state", zap.String("file", s.filePath), zap.Int("keys", len(s.data)))
	return nil
}

func (s *FileStore) startAutoSave() {
	s.saveTicker = time.NewTicker(s.saveInterval)

	go func() {
		for {
			select {
			case <-s.saveTicker.C:
				if err := s.Save(); err != nil {
					s.log.Error("Auto-save failed", zap.Error(err))
				}
			case <-s.stopSave:
				return
			}
		}
	}()
}

// normalize round-trips value through JSON so in-memory values look exactly
// like values loaded from disk.
func normalize(value any) (any, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshaling value: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshaling value: %w", err)
	}
	return out, nil
}
