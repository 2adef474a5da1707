package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/soldier14/survey-runtime/internal/domain"
)

const (
	dataSuffix    = "_data.csv"
	summarySuffix = "_summary.csv"
)

// Columns every data row starts with; (id, title, answer) triples follow,
// one per savable question of the survey. Rows may be narrower than the
// header when questions are conditionally hidden, so readers must not
// enforce a fixed width.
var runPrefixHeader = []string{"run_id", "started_at", "finished_at", "kind", "participant", "score"}

var summaryHeader = []string{
	"title", "kind", "page_count", "question_count", "completed_count",
	"first_completed_at", "last_completed_at", "min_score", "max_score",
}

// RunStore is the reference tabular persistence implementation: two CSV
// files colocated with the survey source. Runs append to <base>_data.csv
// (header written on first-ever append); the summary is a single
// current-state row in <base>_summary.csv, rewritten whole on every save.
//
// Writes are serialized by the store's mutex; the files have no other
// writers by contract.
type RunStore struct {
	mu          sync.Mutex
	dataPath    string
	summaryPath string
	columns     int
}

// NewRunStore builds a store for the survey's configuration at base, which
// is the survey definition path stripped of its extension. The data-file
// header names a column triple for every savable question, so its width
// does not depend on which run happens to be persisted first.
func NewRunStore(base string, survey domain.Survey) *RunStore {
	base = strings.TrimSuffix(base, ".yaml")
	base = strings.TrimSuffix(base, ".yml")
	columns := 0
	for _, page := range survey.Pages {
		for _, q := range page.Questions {
			if q.Savable() {
				columns++
			}
		}
	}
	return &RunStore{
		dataPath:    base + dataSuffix,
		summaryPath: base + summarySuffix,
		columns:     columns,
	}
}

func (s *RunStore) SaveRun(_ context.Context, run domain.CompletedRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.dataPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run data: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat run data: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		header := append([]string(nil), runPrefixHeader...)
		for i := 0; i < s.columns; i++ {
			n := strconv.Itoa(i + 1)
			header = append(header, "question_"+n+"_id", "question_"+n+"_title", "question_"+n+"_answer")
		}
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	row := []string{
		strconv.Itoa(run.ID),
		run.StartedAt.Format(time.RFC3339),
		run.FinishedAt.Format(time.RFC3339),
		string(run.Kind),
		DefuseCell(run.Participant),
		strconv.Itoa(run.Score),
	}
	for _, answer := range run.Answers {
		row = append(row, answer.QuestionID, DefuseCell(answer.QuestionTitle), DefuseCell(answer.Value))
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write run %d: %w", run.ID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush run %d: %w", run.ID, err)
	}
	return f.Sync()
}

func (s *RunStore) SaveSummary(_ context.Context, summary domain.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(summaryHeader); err != nil {
		return fmt.Errorf("write summary header: %w", err)
	}
	row := []string{
		DefuseCell(summary.Title),
		string(summary.Kind),
		strconv.Itoa(summary.PageCount),
		strconv.Itoa(summary.QuestionCount),
		strconv.Itoa(summary.CompletedCount),
		formatTime(summary.FirstCompletedAt),
		formatTime(summary.LastCompletedAt),
		formatScore(summary.MinScore),
		formatScore(summary.MaxScore),
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write summary row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return os.WriteFile(s.summaryPath, []byte(sb.String()), 0o644)
}

func (s *RunStore) LoadRuns(_ context.Context) ([]domain.CompletedRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open run data: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read run data: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil
	}

	runs := make([]domain.CompletedRun, 0, len(rows)-1)
	for i, row := range rows[1:] {
		run, err := parseRunRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func parseRunRow(row []string) (domain.CompletedRun, error) {
	prefix := len(runPrefixHeader)
	if len(row) < prefix {
		return domain.CompletedRun{}, fmt.Errorf("short row: %d columns", len(row))
	}

	id, err := strconv.Atoi(row[0])
	if err != nil {
		return domain.CompletedRun{}, fmt.Errorf("run id %q: %w", row[0], err)
	}
	started, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return domain.CompletedRun{}, fmt.Errorf("start time %q: %w", row[1], err)
	}
	finished, err := time.Parse(time.RFC3339, row[2])
	if err != nil {
		return domain.CompletedRun{}, fmt.Errorf("end time %q: %w", row[2], err)
	}
	score, err := strconv.Atoi(row[5])
	if err != nil {
		return domain.CompletedRun{}, fmt.Errorf("score %q: %w", row[5], err)
	}

	run := domain.CompletedRun{
		ID:          id,
		StartedAt:   started,
		FinishedAt:  finished,
		Kind:        domain.SurveyKind(row[3]),
		Participant: RefuseCell(row[4]),
		Score:       score,
	}
	rest := row[prefix:]
	if len(rest)%3 != 0 {
		return domain.CompletedRun{}, fmt.Errorf("ragged answer columns: %d", len(rest))
	}
	for i := 0; i < len(rest); i += 3 {
		run.Answers = append(run.Answers, domain.AnswerRecord{
			QuestionID:    rest[i],
			QuestionTitle: RefuseCell(rest[i+1]),
			Value:         RefuseCell(rest[i+2]),
		})
	}
	return run, nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatScore(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

// DefuseCell neutralizes spreadsheet formula triggers in free-text values
// by prefixing a single quote. Spreadsheet applications treat a leading
// =, +, -, @, tab, or carriage return as the start of a formula, which
// turns exported cells into an injection vector.
func DefuseCell(value string) string {
	if value == "" {
		return value
	}
	switch value[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + value
	}
	return value
}

// RefuseCell undoes DefuseCell for values read back from the store.
func RefuseCell(value string) string {
	if len(value) >= 2 && value[0] == '\'' {
		switch value[1] {
		case '=', '+', '-', '@', '\t', '\r':
			return value[1:]
		}
	}
	return value
}
