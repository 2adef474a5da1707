package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/soldier14/survey-runtime/internal/app"
	"github.com/soldier14/survey-runtime/internal/domain"
	"github.com/soldier14/survey-runtime/internal/infra/memory"
)

func TestServiceOpensSessionWithConfiguredBackend(t *testing.T) {
	survey := testSurvey(t)
	repo := memory.NewSurveyRepository(memory.NewStaticSurveyLoader(map[string]domain.Survey{
		"capitals": survey,
	}), time.Minute)

	store := memory.NewRunStore()
	service := app.NewSurveyService(repo, map[string]app.StoreOpener{
		"memory": func(ctx context.Context, ref string) (app.RunStore, error) { return store, nil },
	}, nil)

	session, err := service.Open(context.Background(), "capitals", "memory")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if phase := session.State().Phase; phase != app.PhaseSummary {
		t.Fatalf("expected fresh session in summary phase, got %s", phase)
	}

	if _, err := service.Open(context.Background(), "capitals", "carrier-pigeon"); err == nil {
		t.Fatalf("expected unknown backend to fail")
	}
	if _, err := service.Open(context.Background(), "missing", "memory"); err == nil {
		t.Fatalf("expected unknown survey to fail")
	}
}

func TestConditionalQuestionVisibility(t *testing.T) {
	gate := mustQ(t, "p0q0", "Do you drink coffee?", true, false, domain.ChoiceSpec{
		Options: []domain.ChoiceOption{{Label: "Yes"}, {Label: "No"}},
	})
	follow, err := domain.NewQuestion("p1q0", "How many cups per day?", false, false, domain.DataSpec{Field: domain.FieldAge})
	if err != nil {
		t.Fatalf("build question: %v", err)
	}
	follow.Conditional = &domain.Condition{QuestionID: "p0q0", Equals: "Yes"}
	always := mustQ(t, "p1q1", "Any comments?", false, false, domain.TextSpec{})

	survey := domain.Survey{
		Title: "Coffee survey",
		Kind:  domain.KindSurvey,
		Pages: []domain.Page{
			{Title: "Gate", Questions: []domain.Question{gate}},
			{Title: "Details", Questions: []domain.Question{follow, always}},
		},
	}

	coord := app.NewCoordinator(memory.NewRunStore(), survey)
	session := app.NewSession(survey, coord, nil, nil)

	if err := session.Take(); err != nil {
		t.Fatalf("take: %v", err)
	}
	if err := session.UpdateSelection("p0q0", []string{"No"}); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if got := len(session.State().Content.Answers); got != 1 {
		t.Fatalf("expected follow-up hidden for No, got %d answers", got)
	}

	// Go back, flip the gate, and the follow-up appears.
	if err := session.Back(); err != nil {
		t.Fatalf("back: %v", err)
	}
	if err := session.UpdateSelection("p0q0", []string{"Yes"}); err != nil {
		t.Fatalf("reselect: %v", err)
	}
	if err := session.Advance(); err != nil {
		t.Fatalf("advance again: %v", err)
	}
	if got := len(session.State().Content.Answers); got != 2 {
		t.Fatalf("expected follow-up visible for Yes, got %d answers", got)
	}
}
