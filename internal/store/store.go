// Package store provides the scoped key-value persistence folio keeps its
// ledger, profiles and pointers in.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store is a durable key-value scope. Values are JSON-encodable.
type Store interface {
	// Get decodes the value under key into dst. It reports false when the
	// key is absent.
	Get(key string, dst any) (bool, error)
	// Set encodes value and persists it under key.
	Set(key string, value any) error
}

// JSONFile stores every key of a scope in one JSON document
type JSONFile struct {
	path string

	mu     sync.Mutex
	loaded bool
	data   map[string]json.RawMessage
}

// NewJSONFile returns a store backed by the file at path. The file is
// created on first write.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

// Path returns the backing file
func (s *JSONFile) Path() string {
	return s.path
}

// Get implements Store
func (s *JSONFile) Get(key string, dst any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return false, err
	}
	raw, ok := s.data[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Set implements Store
func (s *JSONFile) Set(key string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}

	prev, had := s.data[key]
	s.data[key] = raw
	if err := s.flush(); err != nil {
		if had {
			s.data[key] = prev
		} else {
			delete(s.data, key)
		}
		return err
	}
	return nil
}

// load reads the document once; a missing file is an empty scope
func (s *JSONFile) load() error {
	if s.loaded {
		return nil
	}
	s.data = make(map[string]json.RawMessage)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return fmt.Errorf("failed to read state: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.data); err != nil {
			return fmt.Errorf("failed to parse state %s: %w", s.path, err)
		}
	}
	s.loaded = true
	return nil
}

// flush writes to a temp file and renames it over the document
func (s *JSONFile) flush() error {
	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state: %w", err)
	}
	return nil
}

// Memory is an in-process store
type Memory struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Store
func (m *Memory) Get(key string, dst any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return true, nil
}

// Set implements Store
func (m *Memory) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}
