package file

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/soldier14/survey-runtime/internal/domain"
)

// storeSurvey builds a one-page survey with the given number of savable
// text questions plus an information block, which must not widen the
// data-file header.
func storeSurvey(t *testing.T, savable int) domain.Survey {
	t.Helper()
	intro, err := domain.NewQuestion("p0info", "Welcome", false, false, domain.InformationSpec{Body: "hi"})
	if err != nil {
		t.Fatalf("build intro: %v", err)
	}
	questions := []domain.Question{intro}
	for i := 0; i < savable; i++ {
		q, err := domain.NewQuestion(fmt.Sprintf("p0q%d", i), fmt.Sprintf("Q%d", i), false, false, domain.TextSpec{})
		if err != nil {
			t.Fatalf("build question %d: %v", i, err)
		}
		questions = append(questions, q)
	}
	return domain.Survey{
		Title: "Capital quiz",
		Kind:  domain.KindQuiz,
		Pages: []domain.Page{{Title: "Round 1", Questions: questions}},
	}
}

func testRun(id int, participant string, score int, answers ...domain.AnswerRecord) domain.CompletedRun {
	return domain.CompletedRun{
		ID:          id,
		Kind:        domain.KindQuiz,
		StartedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		FinishedAt:  time.Date(2024, 3, 1, 9, 5, 0, 0, time.UTC),
		Participant: participant,
		Score:       score,
		Answers:     answers,
	}
}

func TestRunStoreRoundTrip(t *testing.T) {
	base := filepath.Join(t.TempDir(), "capitals")
	store := NewRunStore(base, storeSurvey(t, 2))
	ctx := context.Background()

	first := testRun(1, "alice", 8,
		domain.AnswerRecord{QuestionID: "p0q0", QuestionTitle: "Capitals?", Value: "Oslo; Helsinki"},
		domain.AnswerRecord{QuestionID: "p0q1", QuestionTitle: "Guess", Value: "5"},
	)
	second := testRun(2, "bob", 0,
		domain.AnswerRecord{QuestionID: "p0q0", QuestionTitle: "Capitals?", Value: "Bergen"},
	)

	if err := store.SaveRun(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := store.SaveRun(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	runs, err := store.LoadRuns(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != 1 || runs[1].ID != 2 {
		t.Fatalf("expected oldest-first order, got ids %d %d", runs[0].ID, runs[1].ID)
	}
	if runs[0].Participant != "alice" || runs[0].Score != 8 {
		t.Fatalf("first run mangled: %+v", runs[0])
	}
	if len(runs[0].Answers) != 2 || runs[0].Answers[1].Value != "5" {
		t.Fatalf("answers mangled: %+v", runs[0].Answers)
	}
	// Rows with fewer answers than the header are fine; readers must not
	// assume a fixed width.
	if len(runs[1].Answers) != 1 {
		t.Fatalf("second run answers: %+v", runs[1].Answers)
	}
}

func TestRunStoreWritesHeaderOnce(t *testing.T) {
	base := filepath.Join(t.TempDir(), "capitals")
	store := NewRunStore(base, storeSurvey(t, 1))
	ctx := context.Background()

	for id := 1; id <= 2; id++ {
		run := testRun(id, "p", 0, domain.AnswerRecord{QuestionID: "p0q0", QuestionTitle: "Q", Value: "x"})
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save: %v", err)
		}
	}

	data, err := os.ReadFile(base + "_data.csv")
	if err != nil {
		t.Fatalf("read data file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header + 2 rows, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "run_id,started_at,finished_at,kind,participant,score,question_1_id") {
		t.Fatalf("unexpected header: %s", lines[0])
	}
}

func TestHeaderCoversAllSavableQuestions(t *testing.T) {
	base := filepath.Join(t.TempDir(), "capitals")
	store := NewRunStore(base, storeSurvey(t, 2))
	ctx := context.Background()

	// The first persisted run saw a conditional question hidden, so it is
	// narrower than the survey. The header must still name every savable
	// question's columns for later, wider runs.
	narrow := testRun(1, "alice", 0,
		domain.AnswerRecord{QuestionID: "p0q0", QuestionTitle: "Q0", Value: "yes"},
	)
	wide := testRun(2, "bob", 0,
		domain.AnswerRecord{QuestionID: "p0q0", QuestionTitle: "Q0", Value: "no"},
		domain.AnswerRecord{QuestionID: "p0q1", QuestionTitle: "Q1", Value: "follow-up"},
	)
	if err := store.SaveRun(ctx, narrow); err != nil {
		t.Fatalf("save narrow: %v", err)
	}
	if err := store.SaveRun(ctx, wide); err != nil {
		t.Fatalf("save wide: %v", err)
	}

	f, err := os.Open(base + "_data.csv")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	header := rows[0]
	if got, want := len(header), 6+2*3; got != want {
		t.Fatalf("expected %d header columns, got %d: %v", want, got, header)
	}
	if header[len(header)-1] != "question_2_answer" {
		t.Fatalf("last header column: %q", header[len(header)-1])
	}
	if len(rows[2]) > len(header) {
		t.Fatalf("row wider than header: %d vs %d", len(rows[2]), len(header))
	}
}

func TestFormulaCellsAreDefused(t *testing.T) {
	base := filepath.Join(t.TempDir(), "capitals")
	store := NewRunStore(base, storeSurvey(t, 3))
	ctx := context.Background()

	run := testRun(1, "=cmd", 0,
		domain.AnswerRecord{QuestionID: "p0q0", QuestionTitle: "Feedback", Value: "=SUM(A1:A2)"},
		domain.AnswerRecord{QuestionID: "p0q1", QuestionTitle: "More", Value: "@import"},
		domain.AnswerRecord{QuestionID: "p0q2", QuestionTitle: "Plain", Value: "harmless"},
	)
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save: %v", err)
	}

	f, err := os.Open(base + "_data.csv")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	row := rows[1]
	if row[4] != "'=cmd" {
		t.Fatalf("participant not defused: %q", row[4])
	}
	if row[8] != "'=SUM(A1:A2)" {
		t.Fatalf("formula answer written raw: %q", row[8])
	}
	if row[11] != "'@import" {
		t.Fatalf("@-answer written raw: %q", row[11])
	}
	if row[14] != "harmless" {
		t.Fatalf("plain answer modified: %q", row[14])
	}

	// Loading strips the neutralizing prefix again.
	runs, err := store.LoadRuns(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if runs[0].Participant != "=cmd" || runs[0].Answers[0].Value != "=SUM(A1:A2)" {
		t.Fatalf("round trip lost original values: %+v", runs[0])
	}
}

func TestSummaryIsRewrittenWhole(t *testing.T) {
	base := filepath.Join(t.TempDir(), "capitals")
	store := NewRunStore(base, storeSurvey(t, 2))
	ctx := context.Background()

	first := time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	last := time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC)
	minScore, maxScore := 3, 14

	summary := domain.Summary{
		Title: "Capital quiz", Kind: domain.KindQuiz,
		PageCount: 2, QuestionCount: 4, CompletedCount: 1,
		FirstCompletedAt: &first, LastCompletedAt: &first,
		MinScore: &minScore, MaxScore: &minScore,
	}
	if err := store.SaveSummary(ctx, summary); err != nil {
		t.Fatalf("save summary: %v", err)
	}

	summary.CompletedCount = 2
	summary.LastCompletedAt = &last
	summary.MaxScore = &maxScore
	if err := store.SaveSummary(ctx, summary); err != nil {
		t.Fatalf("save summary again: %v", err)
	}

	data, err := os.ReadFile(base + "_summary.csv")
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("summary must stay a single current-state row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], ",2,") || !strings.Contains(lines[1], "14") {
		t.Fatalf("summary row stale: %s", lines[1])
	}
}

func TestLoadRunsMissingFile(t *testing.T) {
	store := NewRunStore(filepath.Join(t.TempDir(), "fresh"), storeSurvey(t, 1))
	runs, err := store.LoadRuns(context.Background())
	if err != nil {
		t.Fatalf("expected clean empty load, got %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}
