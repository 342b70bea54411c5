package formula

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store errors handlers map to HTTP statuses.
var (
	ErrNotFound     = errors.New("formula not found")
	ErrDuplicateKey = errors.New("formula key already exists")
)

// FormulaStore manages formula persistence, keyed by the immutable formula
// key.
type FormulaStore interface {
	// Add persists a new formula, assigning ID and timestamps.
	Add(f *Formula) error

	// Get retrieves a formula by key.
	Get(key string) (*Formula, error)

	// List returns every formula, oldest first.
	List() ([]*Formula, error)

	// ListActive returns only active formulas, oldest first.
	ListActive() ([]*Formula, error)

	// Update mutates expression, description and active flag. The key is
	// the lookup handle and is never changed.
	Update(f *Formula) error

	// Delete removes a formula by key.
	Delete(key string) error
}

// InMemoryFormulaStore implements FormulaStore with a map. Thread-safe.
type InMemoryFormulaStore struct {
	formulas map[string]*Formula
	mu       sync.RWMutex
}

func NewInMemoryFormulaStore() *InMemoryFormulaStore {
	return &InMemoryFormulaStore{
		formulas: make(map[string]*Formula),
	}
}

func (s *InMemoryFormulaStore) Add(f *Formula) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.formulas[f.Key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateKey, f.Key)
	}

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	now := time.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.formulas[f.Key] = f
	return nil
}

func (s *InMemoryFormulaStore) Get(key string) (*Formula, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.formulas[key]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return f, nil
}

func (s *InMemoryFormulaStore) List() ([]*Formula, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(*Formula) bool { return true }), nil
}

func (s *InMemoryFormulaStore) ListActive() ([]*Formula, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(func(f *Formula) bool { return f.Active }), nil
}

// collect is called with the read lock held.
func (s *InMemoryFormulaStore) collect(keep func(*Formula) bool) []*Formula {
	var out []*Formula
	for _, f := range s.formulas {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Key < out[j].Key
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *InMemoryFormulaStore) Update(f *Formula) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.formulas[f.Key]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, f.Key)
	}

	// identity and creation time survive updates
	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	f.UpdatedAt = time.Now()
	s.formulas[f.Key] = f
	return nil
}

func (s *InMemoryFormulaStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.formulas[key]; !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}

	delete(s.formulas, key)
	return nil
}
