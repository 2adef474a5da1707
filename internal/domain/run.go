package domain

import "time"

// SurveyKind distinguishes plain surveys from scored quizzes.
type SurveyKind string

const (
	KindSurvey SurveyKind = "SURVEY"
	KindQuiz   SurveyKind = "QUIZ"
)

// LeaderboardSettings controls the bounded scoreboard of a quiz.
type LeaderboardSettings struct {
	ShowScores      bool `json:"showScores" yaml:"showScores"`
	ShowPlaceholder bool `json:"showPlaceholder" yaml:"showPlaceholder"`
	Limit           int  `json:"limit" yaml:"limit"`
}

// Page is one screen of ordered questions.
type Page struct {
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Survey is the fully-validated in-memory configuration graph the runtime
// consumes. Construction happens in the loader; the runtime never mutates it.
type Survey struct {
	Title              string              `json:"title"`
	Description        string              `json:"description,omitempty"`
	Kind               SurveyKind          `json:"kind"`
	Pages              []Page              `json:"pages"`
	ShowQuestionScores bool                `json:"showQuestionScores,omitempty"`
	ShowLeaderboard    bool                `json:"showLeaderboard,omitempty"`
	Leaderboard        LeaderboardSettings `json:"leaderboard,omitempty"`
}

// QuestionCount is the number of questions across all pages, information
// blocks excluded.
func (s Survey) QuestionCount() int {
	count := 0
	for _, page := range s.Pages {
		for _, q := range page.Questions {
			if q.Kind() != KindInformation {
				count++
			}
		}
	}
	return count
}

// AnswerRecord is one flattened question/answer cell of a completed run.
type AnswerRecord struct {
	QuestionID    string `json:"questionId"`
	QuestionTitle string `json:"questionTitle"`
	Value         string `json:"value"`
}

// CompletedRun is the immutable, scored outcome of one survey traversal.
// IDs are allocated by the persistence coordinator and strictly increase
// across restarts for one configuration's store.
type CompletedRun struct {
	ID          int            `json:"id"`
	Kind        SurveyKind     `json:"kind"`
	StartedAt   time.Time      `json:"startedAt"`
	FinishedAt  time.Time      `json:"finishedAt"`
	Participant string         `json:"participant,omitempty"`
	Score       int            `json:"score"`
	Answers     []AnswerRecord `json:"answers"`
}

// Summary aggregates every completed run of one configuration. Rebuilt from
// history at startup, then updated in place after each completion.
type Summary struct {
	Title            string     `json:"title"`
	Kind             SurveyKind `json:"kind"`
	PageCount        int        `json:"pageCount"`
	QuestionCount    int        `json:"questionCount"`
	CompletedCount   int        `json:"completedCount"`
	FirstCompletedAt *time.Time `json:"firstCompletedAt,omitempty"`
	LastCompletedAt  *time.Time `json:"lastCompletedAt,omitempty"`
	MinScore         *int       `json:"minScore,omitempty"`
	MaxScore         *int       `json:"maxScore,omitempty"`
}

// Observe folds one completed run into the aggregate. Score extremes are
// tracked for quizzes only.
func (s *Summary) Observe(run CompletedRun) {
	s.CompletedCount++
	finished := run.FinishedAt
	if s.FirstCompletedAt == nil || finished.Before(*s.FirstCompletedAt) {
		t := finished
		s.FirstCompletedAt = &t
	}
	if s.LastCompletedAt == nil || finished.After(*s.LastCompletedAt) {
		t := finished
		s.LastCompletedAt = &t
	}
	if s.Kind != KindQuiz {
		return
	}
	score := run.Score
	if s.MinScore == nil || score < *s.MinScore {
		v := score
		s.MinScore = &v
	}
	if s.MaxScore == nil || score > *s.MaxScore {
		v := score
		s.MaxScore = &v
	}
}

// LeaderboardEntry is one row of the bounded scoreboard.
type LeaderboardEntry struct {
	DisplayName string    `json:"displayName"`
	Score       int       `json:"score"`
	CompletedAt time.Time `json:"completedAt"`
	Placeholder bool      `json:"placeholder,omitempty"`
}
