package domain

import (
	"fmt"
	"regexp"
)

// Kind discriminates the closed set of question variants.
type Kind string

const (
	KindText        Kind = "text"
	KindChoice      Kind = "choice"
	KindData        Kind = "data"
	KindRating      Kind = "rating"
	KindSlider      Kind = "slider"
	KindLikert      Kind = "likert"
	KindDateTime    Kind = "datetime"
	KindInformation Kind = "information"
)

// Condition gates a question's visibility on another question's answer.
type Condition struct {
	QuestionID string `json:"questionId"`
	Equals     string `json:"equals"`
}

// Question is one immutable entry on a survey page. ID is unique within a
// survey (derived from page index and position by the loader) and joins
// questions to their answers for the lifetime of one configuration.
type Question struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Required    bool       `json:"required"`
	Scorable    bool       `json:"scorable"`
	Conditional *Condition `json:"conditional,omitempty"`
	Spec        Spec       `json:"-"`
}

// Kind reports the variant of the question's spec.
func (q Question) Kind() Kind { return q.Spec.Kind() }

// Savable reports whether answers to this question are persisted with a
// completed run. Information blocks carry no data.
func (q Question) Savable() bool { return q.Kind() != KindInformation }

// NewQuestion validates the kind-specific configuration and returns the
// assembled question. Structurally invalid configurations are rejected here
// rather than surfacing later as runtime surprises.
func NewQuestion(id, title string, required, scorable bool, spec Spec) (Question, error) {
	if id == "" {
		return Question{}, fmt.Errorf("question %q: empty id", title)
	}
	if spec == nil {
		return Question{}, fmt.Errorf("question %s: missing spec", id)
	}
	if err := spec.validate(); err != nil {
		return Question{}, fmt.Errorf("question %s: %w", id, err)
	}
	if scorable && spec.Kind() == KindInformation {
		return Question{}, fmt.Errorf("question %s: information blocks cannot be scorable", id)
	}
	return Question{ID: id, Title: title, Required: required, Scorable: scorable, Spec: spec}, nil
}

// Spec carries the kind-specific configuration of a question. The set of
// implementations is closed: dispatch is a type switch, and adding a kind
// means touching every switch that the compiler then points at.
type Spec interface {
	Kind() Kind
	validate() error
}

// TextSpec configures a free-text question. For scoring, exactly one of
// CorrectAnswer, CorrectPattern, or AllowedAnswers may be set.
type TextSpec struct {
	Placeholder    string   `json:"placeholder,omitempty"`
	Multiline      bool     `json:"multiline,omitempty"`
	Pattern        string   `json:"pattern,omitempty"` // validation regex, optional
	Score          int      `json:"score,omitempty"`
	CorrectAnswer  string   `json:"correctAnswer,omitempty"`
	CorrectPattern string   `json:"correctPattern,omitempty"`
	AllowedAnswers []string `json:"allowedAnswers,omitempty"`
}

func (TextSpec) Kind() Kind { return KindText }

func (s TextSpec) validate() error {
	if s.Pattern != "" {
		if _, err := regexp.Compile(s.Pattern); err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}
	configured := 0
	if s.CorrectAnswer != "" {
		configured++
	}
	if s.CorrectPattern != "" {
		if _, err := regexp.Compile(s.CorrectPattern); err != nil {
			return fmt.Errorf("invalid correct pattern: %w", err)
		}
		configured++
	}
	if len(s.AllowedAnswers) > 0 {
		configured++
	}
	if configured > 1 {
		return fmt.Errorf("at most one of correctAnswer, correctPattern, allowedAnswers may be set")
	}
	if s.Score > 0 && configured == 0 {
		return fmt.Errorf("score set without a correct answer rule")
	}
	return nil
}

// ChoiceOption is one selectable entry of a choice question.
type ChoiceOption struct {
	Label   string `json:"label"`
	Score   int    `json:"score,omitempty"`
	Correct bool   `json:"correct,omitempty"`
}

// ChoiceSpec configures a single- or multi-select question. MinSelections
// and MaxSelections are hints for the input layer; the data layer accepts
// any subset of the configured options.
type ChoiceSpec struct {
	Options       []ChoiceOption `json:"options"`
	Multi         bool           `json:"multi,omitempty"`
	MinSelections int            `json:"minSelections,omitempty"`
	MaxSelections int            `json:"maxSelections,omitempty"`
}

func (ChoiceSpec) Kind() Kind { return KindChoice }

func (s ChoiceSpec) validate() error {
	if len(s.Options) == 0 {
		return fmt.Errorf("choice needs at least one option")
	}
	seen := make(map[string]struct{}, len(s.Options))
	for _, opt := range s.Options {
		if opt.Label == "" {
			return fmt.Errorf("choice option with empty label")
		}
		if _, dup := seen[opt.Label]; dup {
			return fmt.Errorf("duplicate choice option %q", opt.Label)
		}
		seen[opt.Label] = struct{}{}
	}
	if s.MinSelections < 0 || s.MaxSelections < 0 {
		return fmt.Errorf("negative selection bound")
	}
	if s.MaxSelections > 0 && s.MinSelections > s.MaxSelections {
		return fmt.Errorf("minSelections exceeds maxSelections")
	}
	return nil
}

// DataField names a personal-data input with an implied pattern and bounds.
type DataField string

const (
	FieldName     DataField = "name"
	FieldPhone    DataField = "phone"
	FieldEmail    DataField = "email"
	FieldNickname DataField = "nickname"
	FieldAge      DataField = "age"
	FieldBirthday DataField = "birthday"
)

// DataSpec configures a participant-data question. A custom pattern
// overrides the field's default. Leaderboard marks the answer as the
// display name source for the leaderboard.
type DataSpec struct {
	Field         DataField `json:"field"`
	CustomPattern string    `json:"customPattern,omitempty"`
	Leaderboard   bool      `json:"leaderboard,omitempty"`
}

func (DataSpec) Kind() Kind { return KindData }

func (s DataSpec) validate() error {
	switch s.Field {
	case FieldName, FieldPhone, FieldEmail, FieldNickname, FieldAge, FieldBirthday:
	default:
		return fmt.Errorf("unknown data field %q", s.Field)
	}
	if s.CustomPattern != "" {
		if _, err := regexp.Compile(s.CustomPattern); err != nil {
			return fmt.Errorf("invalid custom pattern: %w", err)
		}
	}
	return nil
}

// RatingSpec configures a star-style rating. Levels is clamped to a sane
// widget range at construction, not at answer time.
type RatingSpec struct {
	Levels int `json:"levels"`
}

func (RatingSpec) Kind() Kind { return KindRating }

func (s RatingSpec) validate() error {
	if s.Levels < 3 || s.Levels > 10 {
		return fmt.Errorf("rating levels %d outside 3..10", s.Levels)
	}
	return nil
}

// SliderSpec configures a single-value or range slider.
type SliderSpec struct {
	Range   bool     `json:"range,omitempty"`
	Min     float64  `json:"min"`
	Max     float64  `json:"max"`
	Step    float64  `json:"step"`
	Score   int      `json:"score,omitempty"`
	Correct *float64 `json:"correct,omitempty"`
}

func (SliderSpec) Kind() Kind { return KindSlider }

func (s SliderSpec) validate() error {
	if s.Min >= s.Max {
		return fmt.Errorf("slider min %v not below max %v", s.Min, s.Max)
	}
	if s.Step <= 0 {
		return fmt.Errorf("slider step must be positive")
	}
	if s.Score > 0 && s.Correct == nil {
		return fmt.Errorf("score set without a correct value")
	}
	if s.Correct != nil && (*s.Correct < s.Min || *s.Correct > s.Max) {
		return fmt.Errorf("correct value %v outside [%v, %v]", *s.Correct, s.Min, s.Max)
	}
	return nil
}

// LikertStatement is one row of a likert matrix. Correct, when set, names
// the choice that earns the statement's score.
type LikertStatement struct {
	Label   string `json:"label"`
	Score   int    `json:"score,omitempty"`
	Correct string `json:"correct,omitempty"`
}

// LikertSpec configures a matrix of statements rated on a shared choice scale.
type LikertSpec struct {
	Choices    []string          `json:"choices"`
	Statements []LikertStatement `json:"statements"`
}

func (LikertSpec) Kind() Kind { return KindLikert }

func (s LikertSpec) validate() error {
	if len(s.Choices) < 2 {
		return fmt.Errorf("likert needs at least two choices")
	}
	if len(s.Statements) == 0 {
		return fmt.Errorf("likert needs at least one statement")
	}
	choiceSet := make(map[string]struct{}, len(s.Choices))
	for _, c := range s.Choices {
		if c == "" {
			return fmt.Errorf("likert choice with empty label")
		}
		choiceSet[c] = struct{}{}
	}
	for _, st := range s.Statements {
		if st.Label == "" {
			return fmt.Errorf("likert statement with empty label")
		}
		if st.Correct != "" {
			if _, ok := choiceSet[st.Correct]; !ok {
				return fmt.Errorf("statement %q: correct choice %q not in scale", st.Label, st.Correct)
			}
		}
	}
	return nil
}

// DateTimeMode selects which inputs a datetime question presents.
type DateTimeMode string

const (
	ModeDate     DateTimeMode = "date"
	ModeTime     DateTimeMode = "time"
	ModeDateTime DateTimeMode = "datetime"
)

// DateTimeSpec configures a date and/or time question. CorrectDate uses
// layout 2006-01-02, CorrectTime uses 15:04. A side without a configured
// correct value is treated as automatically satisfied when scoring.
type DateTimeSpec struct {
	Mode        DateTimeMode `json:"mode"`
	Score       int          `json:"score,omitempty"`
	CorrectDate string       `json:"correctDate,omitempty"`
	CorrectTime string       `json:"correctTime,omitempty"`
}

func (DateTimeSpec) Kind() Kind { return KindDateTime }

func (s DateTimeSpec) validate() error {
	switch s.Mode {
	case ModeDate, ModeTime, ModeDateTime:
	default:
		return fmt.Errorf("unknown datetime mode %q", s.Mode)
	}
	if s.CorrectDate != "" {
		if s.Mode == ModeTime {
			return fmt.Errorf("correct date on a time-only question")
		}
		if _, err := parseDate(s.CorrectDate); err != nil {
			return fmt.Errorf("invalid correct date: %w", err)
		}
	}
	if s.CorrectTime != "" {
		if s.Mode == ModeDate {
			return fmt.Errorf("correct time on a date-only question")
		}
		if _, err := parseClock(s.CorrectTime); err != nil {
			return fmt.Errorf("invalid correct time: %w", err)
		}
	}
	if s.Score > 0 && s.CorrectDate == "" && s.CorrectTime == "" {
		return fmt.Errorf("score set without a correct date or time")
	}
	return nil
}

// InformationSpec is a display-only block, never answered, scored, or saved.
type InformationSpec struct {
	Body string `json:"body"`
}

func (InformationSpec) Kind() Kind { return KindInformation }

func (s InformationSpec) validate() error { return nil }
