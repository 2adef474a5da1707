package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/soldier14/survey-runtime/internal/domain"
)

// RunStore persists completed runs as JSONB rows keyed by survey
// reference and run id. Run ids are allocated by the coordinator, so the
// primary key doubles as the append-order sort key.
type RunStore struct {
	pool *pgxpool.Pool
	ref  string
}

func NewRunStore(pool *pgxpool.Pool, ref string) *RunStore {
	return &RunStore{pool: pool, ref: ref}
}

func (s *RunStore) SaveRun(ctx context.Context, run domain.CompletedRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshal run %d: %w", run.ID, err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO survey_runs (survey_ref, run_id, data) VALUES ($1, $2, $3)`,
		s.ref, run.ID, data)
	if err != nil {
		return fmt.Errorf("insert run %d: %w", run.ID, err)
	}
	return nil
}

func (s *RunStore) SaveSummary(ctx context.Context, summary domain.Summary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO survey_summaries (survey_ref, data) VALUES ($1, $2)
		 ON CONFLICT (survey_ref) DO UPDATE SET data = EXCLUDED.data`,
		s.ref, data)
	if err != nil {
		return fmt.Errorf("upsert summary: %w", err)
	}
	return nil
}

func (s *RunStore) LoadRuns(ctx context.Context) ([]domain.CompletedRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT data FROM survey_runs WHERE survey_ref = $1 ORDER BY run_id ASC`, s.ref)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.CompletedRun
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		var run domain.CompletedRun
		if err := json.Unmarshal(raw, &run); err != nil {
			return nil, fmt.Errorf("unmarshal run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
