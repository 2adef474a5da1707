package app

import (
	"context"
	"fmt"
	"log"

	"github.com/soldier14/survey-runtime/internal/domain"
)

// SurveyRepository loads survey definitions (from files, cache, etc).
type SurveyRepository interface {
	GetSurvey(ctx context.Context, ref string) (domain.Survey, error)
}

// StoreOpener builds a RunStore for one survey reference. The service
// holds a registry of openers keyed by backend name, injected at
// construction rather than discovered through globals.
type StoreOpener func(ctx context.Context, ref string) (RunStore, error)

// SurveyService opens sessions: it loads the survey, picks the persistence
// backend, reconciles history, and seeds the leaderboard.
type SurveyService struct {
	surveys SurveyRepository
	stores  map[string]StoreOpener
	resolve MessageResolver
}

func NewSurveyService(surveys SurveyRepository, stores map[string]StoreOpener, resolve MessageResolver) *SurveyService {
	return &SurveyService{surveys: surveys, stores: stores, resolve: resolve}
}

// Open builds a ready session in the summary phase. Reconciliation reads
// the full history; callers on a UI thread should run Open off that thread.
// A reconcile failure degrades to an empty history rather than refusing to
// open: historical rows are advisory, the live session is not.
func (s *SurveyService) Open(ctx context.Context, ref, backend string) (*Session, error) {
	survey, err := s.surveys.GetSurvey(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("get survey %q: %w", ref, err)
	}

	opener, ok := s.stores[backend]
	if !ok {
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	store, err := opener(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", backend, err)
	}

	coord := NewCoordinator(store, survey)
	board := NewLeaderboard(survey.Leaderboard)

	seed, err := coord.Reconcile(ctx, board.limit)
	if err != nil {
		log.Printf("reconcile history for %q: %v", ref, err)
	} else {
		board.Seed(seed)
	}

	return NewSession(survey, coord, board, s.resolve), nil
}
