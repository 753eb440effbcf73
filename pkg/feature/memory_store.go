package feature

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store guarded by a RWMutex.
// Flags are lost on restart.
type MemoryStore struct {
	flags map[string]*Flag
	mu    sync.RWMutex
	now   func() time.Time
}

// StoreOption configures a MemoryStore.
type StoreOption func(*MemoryStore)

// WithStoreClock overrides the time source for CreatedAt and UpdatedAt.
func WithStoreClock(now func() time.Time) StoreOption {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewMemoryStore creates a store seeded with initial. Invalid or duplicate
// initial flags are rejected.
func NewMemoryStore(initial []*Flag, opts ...StoreOption) (*MemoryStore, error) {
	s := &MemoryStore{
		flags: make(map[string]*Flag, len(initial)),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, flag := range initial {
		if flag == nil {
			continue
		}
		if err := flag.Validate(); err != nil {
			return nil, err
		}
		if _, dup := s.flags[flag.Name]; dup {
			return nil, errors.Join(ErrInvalidFlag, errors.New("duplicate flag "+flag.Name))
		}
		s.flags[flag.Name] = s.stamp(flag.Clone(), nil)
	}

	return s, nil
}

// Get returns a copy of the named flag.
func (s *MemoryStore) Get(name string) (*Flag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	flag, ok := s.flags[name]
	if !ok {
		return nil, false
	}
	return flag.Clone(), true
}

// Set inserts or fully replaces a flag. CreatedAt of an existing flag is kept.
func (s *MemoryStore) Set(flag *Flag) error {
	if err := flag.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.flags[flag.Name] = s.stamp(flag.Clone(), s.flags[flag.Name])
	return nil
}

// Delete removes the named flag and reports whether it existed.
func (s *MemoryStore) Delete(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.flags[name]; !ok {
		return false
	}
	delete(s.flags, name)
	return true
}

// List returns copies of all flags sorted by name. When tags are given,
// only flags carrying at least one of them are returned.
func (s *MemoryStore) List(tags ...string) []*Flag {
	s.mu.RLock()
	result := make([]*Flag, 0, len(s.flags))
	for _, flag := range s.flags {
		if len(tags) > 0 && !slices.ContainsFunc(tags, func(t string) bool {
			return slices.Contains(flag.Tags, t)
		}) {
			continue
		}
		result = append(result, flag.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Flag) int {
		return strings.Compare(a.Name, b.Name)
	})
	return result
}

// Mutate applies fn to a copy of the named flag under the write lock and
// stores the result if fn succeeds and the flag stays valid. The name
// cannot be changed.
func (s *MemoryStore) Mutate(name string, fn func(*Flag) error) (*Flag, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.flags[name]
	if !ok {
		return nil, ErrFlagNotFound
	}

	next := existing.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if next.Name != name {
		return nil, errors.Join(ErrInvalidFlag, errors.New("flag name cannot be changed"))
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}

	s.flags[name] = s.stamp(next, existing)
	return next.Clone(), nil
}

func (s *MemoryStore) stamp(flag, existing *Flag) *Flag {
	now := s.now().UTC()
	switch {
	case existing != nil:
		flag.CreatedAt = existing.CreatedAt
		flag.UpdatedAt = now
	case flag.CreatedAt.IsZero():
		flag.CreatedAt = now
		flag.UpdatedAt = now
	case flag.UpdatedAt.IsZero():
		flag.UpdatedAt = flag.CreatedAt
	}
	return flag
}
