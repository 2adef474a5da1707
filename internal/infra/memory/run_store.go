package memory

import (
	"context"
	"sync"

	"github.com/soldier14/survey-runtime/internal/domain"
)

// RunStore is an in-memory implementation of app.RunStore, useful for
// tests and demos. Runs are kept in append order, so LoadRuns is
// oldest-first by construction.
type RunStore struct {
	mu      sync.Mutex
	runs    []domain.CompletedRun
	summary *domain.Summary
}

func NewRunStore() *RunStore {
	return &RunStore{}
}

func (s *RunStore) SaveRun(_ context.Context, run domain.CompletedRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *RunStore) SaveSummary(_ context.Context, summary domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary = &summary
	return nil
}

func (s *RunStore) LoadRuns(_ context.Context) ([]domain.CompletedRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CompletedRun(nil), s.runs...), nil
}

// Summary returns the last saved aggregate, if any.
func (s *RunStore) Summary() (domain.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return domain.Summary{}, false
	}
	return *s.summary, true
}

// Runs returns a copy of everything saved so far.
func (s *RunStore) Runs() []domain.CompletedRun {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CompletedRun(nil), s.runs...)
}
