package app

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/soldier14/survey-runtime/internal/domain"
)

// Phase is the coarse UI state of a session.
type Phase string

const (
	// PhaseSummary shows the aggregate and leaderboard; no run is active.
	PhaseSummary Phase = "summary"
	// PhaseContent is mid-run, on some page.
	PhaseContent Phase = "content"
)

// anonymousParticipant is used when no leaderboard-eligible data answer
// exists in a completed run.
const anonymousParticipant = "Anonymous"

// MessageResolver renders a symbolic validation failure to display text.
type MessageResolver func(domain.ErrorKind) string

// DefaultMessages is the built-in English resolver.
func DefaultMessages(kind domain.ErrorKind) string {
	switch kind {
	case domain.ErrorRequired:
		return "An answer is required."
	case domain.ErrorInvalidFormat:
		return "The value has an invalid format."
	case domain.ErrorOutOfRange:
		return "The value is out of range."
	}
	return string(kind)
}

// activeRun is the mutable in-progress take. It never leaves the session;
// completion converts it into an immutable domain.CompletedRun.
type activeRun struct {
	id        int
	startedAt time.Time
	pages     map[int][]domain.Answer
}

// Session drives one survey through the Summary and Content phases. All
// transitions are synchronous except run completion, whose persistence and
// leaderboard update happen on a background goroutine; the session returns
// to the summary phase immediately and the board catches up (it is
// advisory, not a source of truth).
//
// A session has at most one active run at a time. Callers serialize access
// through the session itself; every exported method locks.
type Session struct {
	survey  domain.Survey
	coord   *Coordinator
	board   *Leaderboard
	resolve MessageResolver
	now     func() time.Time

	// onPersisted, when set, fires after background persistence settles.
	onPersisted func(domain.Summary)

	mu          sync.Mutex
	phase       Phase
	pageIndex   int
	run         *activeRun
	answers     []domain.Answer
	inputErrors map[string]string
}

func NewSession(survey domain.Survey, coord *Coordinator, board *Leaderboard, resolve MessageResolver) *Session {
	if resolve == nil {
		resolve = DefaultMessages
	}
	return &Session{
		survey:  survey,
		coord:   coord,
		board:   board,
		resolve: resolve,
		now:     time.Now,
		phase:   PhaseSummary,
	}
}

// NewSessionWithClock is test-only for deterministic timestamps.
func NewSessionWithClock(survey domain.Survey, coord *Coordinator, board *Leaderboard, resolve MessageResolver, now func() time.Time) *Session {
	session := NewSession(survey, coord, board, resolve)
	session.now = now
	return session
}

// SetCompletionListener registers a callback invoked after a completed
// run's background persistence finishes. Test and UI hook.
func (s *Session) SetCompletionListener(fn func(domain.Summary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onPersisted = fn
}

// Take starts a new run on page zero with a freshly allocated id.
func (s *Session) Take() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase == PhaseContent {
		return domain.ErrRunInProgress
	}
	s.run = &activeRun{
		id:        s.coord.AllocateRunID(),
		startedAt: s.now(),
		pages:     make(map[int][]domain.Answer),
	}
	s.phase = PhaseContent
	s.pageIndex = 0
	s.inputErrors = nil
	s.buildPageLocked(0)
	return nil
}

// Cancel discards the in-progress run entirely. Nothing is persisted and
// the allocated run id is simply skipped.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseContent {
		return domain.ErrNoActiveRun
	}
	s.run = nil
	s.answers = nil
	s.inputErrors = nil
	s.phase = PhaseSummary
	return nil
}

// Back syncs the current page into the run, then rebuilds the previous
// page seeded from its earlier answers, so the user gets their input back.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseContent {
		return domain.ErrNoActiveRun
	}
	if s.pageIndex == 0 {
		return domain.ErrFirstPage
	}
	s.syncPageLocked()
	s.pageIndex--
	s.inputErrors = nil
	s.buildPageLocked(s.pageIndex)
	return nil
}

// Advance validates the current page. Invalid answers refuse the
// transition and surface as the input-error map; the page index does not
// move. A valid final page completes the run.
func (s *Session) Advance() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseContent {
		return domain.ErrNoActiveRun
	}

	errors := make(map[string]string)
	for _, answer := range s.answers {
		kinds := answer.Validate()
		if len(kinds) == 0 {
			continue
		}
		rendered := make([]string, len(kinds))
		for i, kind := range kinds {
			rendered[i] = s.resolve(kind)
		}
		errors[answer.QuestionID()] = strings.Join(rendered, " ")
	}
	if len(errors) > 0 {
		s.inputErrors = errors
		return nil
	}

	s.syncPageLocked()
	s.inputErrors = nil
	s.pageIndex++

	if s.pageIndex < len(s.survey.Pages) {
		s.buildPageLocked(s.pageIndex)
		return nil
	}

	s.completeLocked()
	return nil
}

// completeLocked finalizes the run, transitions to the summary phase, and
// hands persistence to a background goroutine.
func (s *Session) completeLocked() {
	run := s.run
	finished := s.now()

	completed := domain.CompletedRun{
		ID:          run.id,
		Kind:        s.survey.Kind,
		StartedAt:   run.startedAt,
		FinishedAt:  finished,
		Participant: s.participantLocked(),
		Score:       s.totalScoreLocked(),
	}
	for page := 0; page < len(s.survey.Pages); page++ {
		for _, answer := range run.pages[page] {
			completed.Answers = append(completed.Answers, domain.AnswerRecord{
				QuestionID:    answer.QuestionID(),
				QuestionTitle: answer.Question().Title,
				Value:         answer.DisplayValue(),
			})
		}
	}

	s.run = nil
	s.answers = nil
	s.phase = PhaseSummary

	board := s.board
	coord := s.coord
	onPersisted := s.onPersisted
	isQuiz := s.survey.Kind == domain.KindQuiz

	go func() {
		summary, err := coord.Complete(context.Background(), completed)
		if err != nil {
			// A lost row is non-fatal to the live session.
			log.Printf("persist run %d: %v", completed.ID, err)
		}
		if isQuiz && board != nil {
			board.Record(domain.LeaderboardEntry{
				DisplayName: completed.Participant,
				Score:       completed.Score,
				CompletedAt: completed.FinishedAt,
			})
		}
		if onPersisted != nil {
			onPersisted(summary)
		}
	}()
}

// participantLocked finds the first answered, leaderboard-flagged data
// answer across the synced pages.
func (s *Session) participantLocked() string {
	for page := 0; page < len(s.survey.Pages); page++ {
		for _, answer := range s.run.pages[page] {
			data, ok := answer.(*domain.DataAnswer)
			if ok && data.LeaderboardName() && data.IsAnswered() {
				return strings.TrimSpace(data.Value())
			}
		}
	}
	return anonymousParticipant
}

func (s *Session) totalScoreLocked() int {
	total := 0
	for _, answers := range s.run.pages {
		for _, answer := range answers {
			total += answer.Score()
		}
	}
	return total
}

// syncPageLocked moves the current arena's savable answers into the run.
// Information blocks carry no data and are excluded.
func (s *Session) syncPageLocked() {
	synced := make([]domain.Answer, 0, len(s.answers))
	for _, answer := range s.answers {
		if answer.Question().Savable() {
			synced = append(synced, answer)
		}
	}
	s.run.pages[s.pageIndex] = synced
}

// buildPageLocked constructs the arena for a page: visible questions only,
// each seeded from the run's prior answer for that question id when one
// exists.
func (s *Session) buildPageLocked(page int) {
	questions := s.survey.Pages[page].Questions
	arena := make([]domain.Answer, 0, len(questions))
	for _, q := range questions {
		if !s.visibleLocked(q) {
			continue
		}
		arena = append(arena, domain.NewAnswer(q, s.seedLocked(page, q.ID)))
	}
	s.answers = arena
}

// seedLocked returns the prior raw value for a question on a previously
// visited page, or nil.
func (s *Session) seedLocked(page int, questionID string) any {
	for _, answer := range s.run.pages[page] {
		if answer.QuestionID() == questionID {
			return answer.RawValue()
		}
	}
	return nil
}

// visibleLocked evaluates a question's conditional against the answers
// synced so far. An unanswered or unsynced controlling question hides the
// dependent one.
func (s *Session) visibleLocked(q domain.Question) bool {
	if q.Conditional == nil {
		return true
	}
	for _, answers := range s.run.pages {
		for _, answer := range answers {
			if answer.QuestionID() == q.Conditional.QuestionID {
				return answer.IsAnswered() && answer.DisplayValue() == q.Conditional.Equals
			}
		}
	}
	return false
}

// SummaryView is the idle-phase UI model.
type SummaryView struct {
	Summary         domain.Summary            `json:"summary"`
	ShowLeaderboard bool                      `json:"showLeaderboard"`
	ShowScores      bool                      `json:"showScores"`
	Leaderboard     []domain.LeaderboardEntry `json:"leaderboard,omitempty"`
}

// AnswerView is an immutable snapshot of one answer, captured under the
// session lock. Renderers read it freely while the live answer keeps
// changing underneath.
type AnswerView struct {
	Question domain.Question `json:"-"`
	Answered bool            `json:"answered"`
	Value    any             `json:"value,omitempty"`
	Display  string          `json:"display,omitempty"`
}

// ContentView is the mid-run UI model. Errors maps question ids to
// rendered validation text; it is the only way invalid input becomes
// visible.
type ContentView struct {
	PageIndex int               `json:"pageIndex"`
	PageCount int               `json:"pageCount"`
	PageTitle string            `json:"pageTitle"`
	Answers   []AnswerView      `json:"answers"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// UIState is the two-variant state exposed to the rendering layer. Exactly
// one of Summary and Content is set, matching Phase.
type UIState struct {
	Phase   Phase        `json:"phase"`
	Summary *SummaryView `json:"summary,omitempty"`
	Content *ContentView `json:"content,omitempty"`
}

// State snapshots the session for rendering.
func (s *Session) State() UIState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseContent {
		errors := make(map[string]string, len(s.inputErrors))
		for id, text := range s.inputErrors {
			errors[id] = text
		}
		views := make([]AnswerView, 0, len(s.answers))
		for _, answer := range s.answers {
			views = append(views, AnswerView{
				Question: answer.Question(),
				Answered: answer.IsAnswered(),
				Value:    answer.RawValue(),
				Display:  answer.DisplayValue(),
			})
		}
		return UIState{
			Phase: PhaseContent,
			Content: &ContentView{
				PageIndex: s.pageIndex,
				PageCount: len(s.survey.Pages),
				PageTitle: s.survey.Pages[s.pageIndex].Title,
				Answers:   views,
				Errors:    errors,
			},
		}
	}

	view := &SummaryView{
		Summary:         s.coord.Summary(),
		ShowLeaderboard: s.survey.ShowLeaderboard,
		ShowScores:      s.survey.Leaderboard.ShowScores,
	}
	if s.survey.ShowLeaderboard && s.board != nil {
		view.Leaderboard = s.board.Entries()
	}
	return UIState{Phase: PhaseSummary, Summary: view}
}

// Answer update entry points. Unknown question ids report
// domain.ErrQuestionNotFound; an update of the wrong kind for the question
// is silently ignored, mirroring the seeding leniency.

func (s *Session) UpdateText(questionID, value string) error {
	return s.update(questionID, func(answer domain.Answer) {
		switch a := answer.(type) {
		case *domain.TextAnswer:
			a.SetText(value)
		case *domain.DataAnswer:
			a.SetValue(value)
		}
	})
}

func (s *Session) UpdateSelection(questionID string, labels []string) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.ChoiceAnswer); ok {
			a.SetSelected(labels)
		}
	})
}

func (s *Session) UpdateRating(questionID string, rating int) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.RatingAnswer); ok {
			a.SetRating(rating)
		}
	})
}

func (s *Session) UpdateSliderValue(questionID string, value float64) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.SliderAnswer); ok {
			a.SetValue(value)
		}
	})
}

func (s *Session) UpdateSliderRange(questionID string, low, high float64) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.SliderAnswer); ok {
			a.SetRange(low, high)
		}
	})
}

func (s *Session) UpdateLikert(questionID, statement, choice string) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.LikertAnswer); ok {
			a.SetSelection(statement, choice)
		}
	})
}

func (s *Session) UpdateDate(questionID string, date time.Time) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.DateTimeAnswer); ok {
			a.SetDate(date)
		}
	})
}

func (s *Session) UpdateTime(questionID string, clock time.Time) error {
	return s.update(questionID, func(answer domain.Answer) {
		if a, ok := answer.(*domain.DateTimeAnswer); ok {
			a.SetTime(clock)
		}
	})
}

func (s *Session) update(questionID string, apply func(domain.Answer)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.phase != PhaseContent {
		return domain.ErrNoActiveRun
	}
	for _, answer := range s.answers {
		if answer.QuestionID() == questionID {
			apply(answer)
			return nil
		}
	}
	return domain.ErrQuestionNotFound
}
