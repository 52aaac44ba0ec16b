package memory

import (
	"context"
	"fmt"
	"sync"

	"leandash/internal/core"
)

// Row is one mirrored observation.
type Row struct {
	Chart   string
	Horizon core.Horizon
	Entry   core.ChartEntry
}

// Store is an in-memory mirror for development and tests.
type Store struct {
	mu   sync.Mutex
	rows []Row
}

func New() *Store {
	return &Store{}
}

// Append stores the entry and returns a synthetic row reference.
func (s *Store) Append(_ context.Context, chartName string, horizon core.Horizon, e core.ChartEntry) (string, error) {
	if err := horizon.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, Row{Chart: chartName, Horizon: horizon, Entry: e})
	return fmt.Sprintf("mem:%d", len(s.rows)), nil
}

// Rows returns a copy of everything mirrored so far.
func (s *Store) Rows() []Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Row(nil), s.rows...)
}
