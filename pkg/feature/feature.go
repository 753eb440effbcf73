package feature

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// Flag represents a feature flag with its configuration.
type Flag struct {
	Name              string              `json:"name" yaml:"name"`
	Description       string              `json:"description,omitempty" yaml:"description,omitempty"`
	Enabled           bool                `json:"enabled" yaml:"enabled"`
	RolloutPercentage float64             `json:"rollout_percentage" yaml:"rollout_percentage"`
	Conditions        map[string][]string `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	Tags              []string            `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt         time.Time           `json:"created_at,omitzero" yaml:"-"`
	UpdatedAt         time.Time           `json:"updated_at,omitzero" yaml:"-"`
}

// Validate reports why the flag cannot be stored.
func (f *Flag) Validate() error {
	if f == nil {
		return errors.Join(ErrInvalidFlag, errors.New("flag cannot be nil"))
	}
	if strings.TrimSpace(f.Name) == "" {
		return errors.Join(ErrInvalidFlag, errors.New("flag name cannot be empty"))
	}
	if p := f.RolloutPercentage; !(p >= 0 && p <= 100) {
		return errors.Join(ErrInvalidFlag,
			fmt.Errorf("rollout percentage %v must be between 0 and 100", f.RolloutPercentage))
	}
	for attr, allowed := range f.Conditions {
		if attr == "" {
			return errors.Join(ErrInvalidFlag, errors.New("condition attribute cannot be empty"))
		}
		if len(allowed) == 0 {
			return errors.Join(ErrInvalidFlag, fmt.Errorf("condition %q has no allowed values", attr))
		}
	}
	return nil
}

// Clone returns a deep copy of the flag.
func (f *Flag) Clone() *Flag {
	if f == nil {
		return nil
	}
	c := *f
	c.Tags = slices.Clone(f.Tags)
	if f.Conditions != nil {
		c.Conditions = make(map[string][]string, len(f.Conditions))
		for k, v := range f.Conditions {
			c.Conditions[k] = slices.Clone(v)
		}
	}
	return &c
}

// Attributes carries the caller context conditions are matched against,
// e.g. {"user_tier": "premium"}.
type Attributes map[string]string

// Clone returns a copy of a.
func (a Attributes) Clone() Attributes {
	return maps.Clone(a)
}

// Extractor function types for retrieving evaluation data from context.
// They keep the engine decoupled from the application's identity model.
type (
	UserIDExtractor     func(ctx context.Context) string
	AttributesExtractor func(ctx context.Context) Attributes
)

// Store is a concurrent registry of flags keyed by name.
// Implementations return copies; callers never share memory with the store.
type Store interface {
	Get(name string) (*Flag, bool)
	Set(flag *Flag) error
	Delete(name string) bool
	List(tags ...string) []*Flag
	Mutate(name string, fn func(*Flag) error) (*Flag, error)
}
