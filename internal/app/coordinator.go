package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/soldier14/survey-runtime/internal/domain"
)

// RunStore is the persistence port for completed runs and the summary
// aggregate. Implementations must return runs oldest-first in a
// deterministic order and must tolerate an empty store.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.CompletedRun) error
	SaveSummary(ctx context.Context, summary domain.Summary) error
	LoadRuns(ctx context.Context) ([]domain.CompletedRun, error)
}

// Coordinator bridges in-memory run and summary state to a RunStore. It
// owns run-id allocation and serializes all writes for one configuration.
type Coordinator struct {
	store RunStore

	mu      sync.Mutex
	nextID  int
	summary domain.Summary
}

func NewCoordinator(store RunStore, survey domain.Survey) *Coordinator {
	return &Coordinator{
		store:  store,
		nextID: 1,
		summary: domain.Summary{
			Title:         survey.Title,
			Kind:          survey.Kind,
			PageCount:     len(survey.Pages),
			QuestionCount: survey.QuestionCount(),
		},
	}
}

// Reconcile reads all historical runs, rebuilds the summary, moves the
// next run id above the highest id seen, and returns the top-limit runs by
// score for leaderboard seeding. A fresh store yields zero-value aggregates
// and an empty seed.
func (c *Coordinator) Reconcile(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	runs, err := c.store.LoadRuns(ctx)
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	maxID := 0
	entries := make([]domain.LeaderboardEntry, 0, len(runs))
	for _, run := range runs {
		if run.ID > maxID {
			maxID = run.ID
		}
		c.summary.Observe(run)
		entries = append(entries, domain.LeaderboardEntry{
			DisplayName: run.Participant,
			Score:       run.Score,
			CompletedAt: run.FinishedAt,
		})
	}
	c.nextID = maxID + 1

	// Top-limit by score; stable, so equal scores keep history order
	// (oldest first).
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score > entries[j].Score })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// AllocateRunID hands out the next run id. IDs strictly increase and are
// never reused, even for runs that end up cancelled.
func (c *Coordinator) AllocateRunID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	return id
}

// Complete folds the run into the summary and persists both. The summary
// write is a full overwrite; the run is an append. The in-memory aggregate
// is updated even when a write fails, so a lost row never desyncs the live
// session.
func (c *Coordinator) Complete(ctx context.Context, run domain.CompletedRun) (domain.Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.summary.Observe(run)

	if err := c.store.SaveRun(ctx, run); err != nil {
		return c.summary, fmt.Errorf("save run %d: %w", run.ID, err)
	}
	if err := c.store.SaveSummary(ctx, c.summary); err != nil {
		return c.summary, fmt.Errorf("save summary: %w", err)
	}
	return c.summary, nil
}

// Summary returns the current aggregate snapshot.
func (c *Coordinator) Summary() domain.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.summary
}
