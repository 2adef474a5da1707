package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/soldier14/survey-runtime/internal/domain"
)

// RunStore keeps completed runs in a Redis list and the summary in a
// plain key, one pair per survey reference:
//
//	RPUSH survey:{ref}:runs    {run JSON}
//	SET   survey:{ref}:summary {summary JSON}
//
// RPUSH preserves append order, so LoadRuns is oldest-first like the
// tabular reference store.
type RunStore struct {
	client *redis.Client
	ref    string
}

func NewRunStore(client *redis.Client, ref string) *RunStore {
	return &RunStore{client: client, ref: ref}
}

func (s *RunStore) SaveRun(ctx context.Context, run domain.CompletedRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %d: %w", run.ID, err)
	}
	if err := s.client.RPush(ctx, s.runsKey(), data).Err(); err != nil {
		return fmt.Errorf("push run %d: %w", run.ID, err)
	}
	return nil
}

func (s *RunStore) SaveSummary(ctx context.Context, summary domain.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	if err := s.client.Set(ctx, s.summaryKey(), data, 0).Err(); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	return nil
}

func (s *RunStore) LoadRuns(ctx context.Context) ([]domain.CompletedRun, error) {
	raw, err := s.client.LRange(ctx, s.runsKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	runs := make([]domain.CompletedRun, 0, len(raw))
	for i, item := range raw {
		var run domain.CompletedRun
		if err := json.Unmarshal([]byte(item), &run); err != nil {
			return nil, fmt.Errorf("unmarshal run %d: %w", i, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// Summary reads the stored aggregate, if present.
func (s *RunStore) Summary(ctx context.Context) (domain.Summary, bool, error) {
	raw, err := s.client.Get(ctx, s.summaryKey()).Result()
	if err == redis.Nil {
		return domain.Summary{}, false, nil
	}
	if err != nil {
		return domain.Summary{}, false, fmt.Errorf("get summary: %w", err)
	}
	var summary domain.Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		return domain.Summary{}, false, fmt.Errorf("unmarshal summary: %w", err)
	}
	return summary, true, nil
}

func (s *RunStore) runsKey() string    { return "survey:" + s.ref + ":runs" }
func (s *RunStore) summaryKey() string { return "survey:" + s.ref + ":summary" }
