package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	ConfigFileName  = "config.json"
	ScratchFileName = "scratch_buffer.json"
)

// ConfigStore owns the in-memory settings and their JSON file. Every
// mutation rewrites the whole object; there is no partial write.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	config   Config
	log      *slog.Logger
}

// NewConfigStore loads filePath. A missing or malformed file is not an
// error: the store starts from DefaultConfig. A missing file is created so
// the user has something to edit.
func NewConfigStore(filePath string, logger *slog.Logger) *ConfigStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ConfigStore{filePath: filePath, log: logger}
	s.config = s.Load()
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		if err := writeAtomic(filePath, s.config); err != nil {
			logger.Warn("create config file", "path", filePath, "error", err)
		}
	}
	return s
}

// Load reads the file without touching the in-memory copy.
func (s *ConfigStore) Load() Config {
	cfg := DefaultConfig()
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("read config, using defaults", "path", s.filePath, "error", err)
		}
		return cfg
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		s.log.Warn("malformed config, using defaults", "path", s.filePath, "error", err)
		return DefaultConfig()
	}
	cfg.normalize()
	return cfg
}

// Path returns the backing file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Get returns a snapshot of the current settings (safe copy under RLock).
func (s *ConfigStore) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.clone()
}

// Update applies fn to a copy of the settings, writes the result to disk
// and only then swaps it in. If fn returns an error, or the write fails,
// the in-memory settings are left as they were.
func (s *ConfigStore) Update(fn func(*Config) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.config.clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.normalize()
	if err := writeAtomic(s.filePath, next); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	s.config = next
	return nil
}

// Save writes the current settings again. Used at exit.
func (s *ConfigStore) Save() error {
	return s.Update(func(*Config) error { return nil })
}

// ScratchStore archives discarded unsaved documents. Entries never expire;
// only Clear removes them.
type ScratchStore struct {
	mu       sync.RWMutex
	filePath string
	entries  []string
	log      *slog.Logger
}

// NewScratchStore loads filePath, treating a missing or malformed file as
// an empty archive.
func NewScratchStore(filePath string, logger *slog.Logger) *ScratchStore {
	if logger == nil {
		logger = slog.Default()
	}
	s := &ScratchStore{filePath: filePath, log: logger}
	s.entries = s.Load()
	return s
}

// Load reads the archive file without touching the in-memory entries.
func (s *ScratchStore) Load() []string {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("read scratch buffer", "path", s.filePath, "error", err)
		}
		return []string{}
	}
	var entries []string
	if err := json.Unmarshal(data, &entries); err != nil {
		s.log.Warn("malformed scratch buffer, starting empty", "path", s.filePath, "error", err)
		return []string{}
	}
	if entries == nil {
		entries = []string{}
	}
	return entries
}

// Append adds text to the in-memory archive. It is persisted by Flush.
func (s *ScratchStore) Append(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, text)
}

// Entries returns a copy of the archive, oldest first.
func (s *ScratchStore) Entries() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.entries...)
}

// Get returns entry i.
func (s *ScratchStore) Get(i int) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.entries) {
		return "", false
	}
	return s.entries[i], true
}

// Len reports the number of archived entries.
func (s *ScratchStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Clear drops every entry and persists the empty archive immediately.
func (s *ScratchStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := writeAtomic(s.filePath, []string{}); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	s.entries = []string{}
	return nil
}

// Flush writes the archive to disk.
func (s *ScratchStore) Flush() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := writeAtomic(s.filePath, s.entries); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}
	return nil
}

// writeAtomic writes v as JSON to a temp file then renames it over path.
func writeAtomic(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFile(path, data, 0644)
}

// WriteFile replaces path with data through a temp file in the same
// directory, so a concurrent reader sees either the old or the new content
// and never a truncated file. An existing file keeps its mode; a symlink is
// followed and its target replaced.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	if target, evalErr := filepath.EvalSymlinks(path); evalErr == nil {
		path = target
	}
	if info, statErr := os.Stat(path); statErr == nil {
		perm = info.Mode().Perm()
	}

	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, perm); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
