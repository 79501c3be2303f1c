// Package settings holds the pipeline configuration and hands it out as
// immutable snapshots. A snapshot is taken once per inbound event; updates
// swap the whole value atomically and are only observed by later events.
package settings

import (
	"fmt"
	"sync/atomic"

	"github.com/ggz/smsbridge/internal/domain"
)

// Store exposes the current configuration as an atomic snapshot.
type Store interface {
	Snapshot() domain.Settings
}

// Swappable is an in-memory Store whose value is replaced wholesale. Safe
// for concurrent snapshot and update.
type Swappable struct {
	current atomic.Pointer[domain.Settings]
}

func NewSwappable(initial domain.Settings) (*Swappable, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	s := &Swappable{}
	s.current.Store(&initial)
	return s, nil
}

func (s *Swappable) Snapshot() domain.Settings {
	return *s.current.Load()
}

// Update validates and installs a new configuration. In-flight events keep
// the snapshot they started with.
func (s *Swappable) Update(next domain.Settings) error {
	if err := next.Validate(); err != nil {
		return fmt.Errorf("rejecting settings update: %w", err)
	}
	s.current.Store(&next)
	return nil
}
