// Package catalog keeps the local registry of model containers: identity and
// provenance of each model, its install state, and where its file lives under
// the models directory.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/samcharles93/loupe/internal/gguf"
)

var ErrModelNotFound = errors.New("model not found")

// State tracks a model through its local lifecycle.
type State string

const (
	StatePending     State = "pending"
	StateDownloading State = "downloading"
	StateInstalled   State = "installed"
	StateError       State = "error"
	StateRemoved     State = "removed"
)

// Model is one catalog record. Path and FileName locate the container file,
// relative to the models directory unless absolute.
type Model struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	BaseModel    string    `json:"base_model,omitempty"`
	Title        string    `json:"title,omitempty"`
	Description  string    `json:"description,omitempty"`
	Author       string    `json:"author,omitempty"`
	License      string    `json:"license,omitempty"`
	Quantization string    `json:"quantization,omitempty"`
	FileSize     uint64    `json:"file_size,omitempty"`
	SHA          string    `json:"sha,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	State        State     `json:"state,omitempty"`
	Path         string    `json:"path,omitempty"`
	FileName     string    `json:"file_name,omitempty"`
}

// MatchIDOrName reports whether s names this model, by id first.
func (m Model) MatchIDOrName(s string) bool {
	return m.ID == s || m.Name == s
}

// Store is the JSON-file-backed catalog. Mutations happen in memory; Save
// writes the file explicitly.
type Store struct {
	mu        sync.RWMutex
	path      string
	modelsDir string
	items     []Model
	clock     func() time.Time
}

// Open loads the catalog file at path. A missing file is an empty catalog,
// not an error. modelsDir is the base for relative model paths.
func Open(path, modelsDir string) (*Store, error) {
	s := &Store{path: path, modelsDir: modelsDir, clock: time.Now}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &s.items); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return s, nil
}

// Save writes the catalog back to its file, creating the directory if
// needed.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.items, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o644)
}

// List returns the catalog records in insertion order.
func (s *Store) List() []Model {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Model, len(s.items))
	copy(out, s.items)
	return out
}

// Get finds a record by id or name.
func (s *Store) Get(idOrName string) (Model, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.index(idOrName); i >= 0 {
		return s.items[i], true
	}
	return Model{}, false
}

// Create registers m under a fresh UUID. A caller-supplied id is preserved as
// BaseModel so the record keeps its upstream identity.
func (s *Store) Create(m Model) Model {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.BaseModel = m.ID
	m.ID = uuid.NewString()
	now := s.clock().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.State == "" {
		m.State = StatePending
	}
	s.items = append(s.items, m)
	return m
}

// Update replaces the record with m's ID.
func (s *Store) Update(m Model) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.items {
		if s.items[i].ID == m.ID {
			m.CreatedAt = s.items[i].CreatedAt
			m.UpdatedAt = s.clock().UTC()
			s.items[i] = m
			return nil
		}
	}
	return fmt.Errorf("%s: %w", m.ID, ErrModelNotFound)
}

// Remove takes a model out of the catalog. A model still in use is only
// marked removed so references stay resolvable; otherwise the record is
// deleted.
func (s *Store) Remove(idOrName string, inUse bool) (Model, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(idOrName)
	if i < 0 {
		return Model{}, fmt.Errorf("%s: %w", idOrName, ErrModelNotFound)
	}
	if inUse {
		s.items[i].State = StateRemoved
		s.items[i].UpdatedAt = s.clock().UTC()
		return s.items[i], nil
	}
	m := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return m, nil
}

// SetState updates a record's lifecycle state.
func (s *Store) SetState(idOrName string, st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.index(idOrName)
	if i < 0 {
		return fmt.Errorf("%s: %w", idOrName, ErrModelNotFound)
	}
	s.items[i].State = st
	s.items[i].UpdatedAt = s.clock().UTC()
	return nil
}

// ModelPath resolves the on-disk location of a model's container file and
// verifies the file actually decodes as one before handing the path out.
func (s *Store) ModelPath(idOrName string) (string, error) {
	m, ok := s.Get(idOrName)
	if !ok {
		return "", fmt.Errorf("%s: %w", idOrName, ErrModelNotFound)
	}
	if m.FileName == "" {
		return "", fmt.Errorf("model %s has no file name", idOrName)
	}

	path := filepath.Join(m.Path, m.FileName)
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.modelsDir, path)
	}

	if _, err := gguf.Open(path); err != nil {
		return "", fmt.Errorf("validate %s: %w", path, err)
	}
	return path, nil
}

// index returns the position of idOrName, preferring an id match. Callers
// hold s.mu.
func (s *Store) index(idOrName string) int {
	for i := range s.items {
		if s.items[i].ID == idOrName {
			return i
		}
	}
	for i := range s.items {
		if s.items[i].Name == idOrName {
			return i
		}
	}
	return -1
}
