package domain

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// scoreEpsilon bounds single-value slider comparison. Effectively exact
// float equality.
const scoreEpsilon = 1e-6

// Answer is the mutable per-run counterpart of a Question. One concrete
// type exists per question kind; the set is closed and dispatch is by type
// switch. Answers are owned by the session's page arena and are never
// shared across runs.
type Answer interface {
	Question() Question
	QuestionID() string
	// IsAnswered reports value presence, kind-specific. Freshly built
	// unseeded answers report false, except information blocks.
	IsAnswered() bool
	// Validate returns every applicable symbolic failure, not just the first.
	Validate() []ErrorKind
	// Score is zero unless answered, and always zero for non-scoring kinds.
	Score() int
	// RawValue is the seedable current value, or nil when unanswered.
	RawValue() any
	// DisplayValue is the flattened text form used for persistence rows.
	DisplayValue() string
}

// DateTimeValue is the seedable value of a datetime answer. Either side may
// be absent.
type DateTimeValue struct {
	Date  *time.Time
	Clock *time.Time
}

// NewAnswer builds the answer variant matching the question's kind. A seed
// of the wrong shape for the kind is silently discarded and the answer
// starts empty; stale values from an edited configuration are not worth an
// error.
func NewAnswer(q Question, seed any) Answer {
	switch spec := q.Spec.(type) {
	case TextSpec:
		a := &TextAnswer{question: q, spec: spec}
		if v, ok := seed.(string); ok {
			a.value = v
		}
		return a
	case ChoiceSpec:
		a := &ChoiceAnswer{question: q, spec: spec}
		if v, ok := seed.([]string); ok {
			a.selected = append([]string(nil), v...)
		}
		return a
	case DataSpec:
		a := &DataAnswer{question: q, spec: spec}
		if v, ok := seed.(string); ok {
			a.value = v
		}
		return a
	case RatingSpec:
		a := &RatingAnswer{question: q, spec: spec}
		if v, ok := seed.(int); ok && v >= 1 && v <= spec.Levels {
			a.value = v
		}
		return a
	case SliderSpec:
		a := &SliderAnswer{question: q, spec: spec}
		if v, ok := seed.([2]float64); ok {
			a.low, a.high, a.answered = v[0], v[1], true
		}
		return a
	case LikertSpec:
		a := &LikertAnswer{question: q, spec: spec, selections: make(map[string]string)}
		if v, ok := seed.(map[string]string); ok {
			for statement, choice := range v {
				a.SetSelection(statement, choice)
			}
		}
		return a
	case DateTimeSpec:
		a := &DateTimeAnswer{question: q, spec: spec}
		if v, ok := seed.(DateTimeValue); ok {
			a.date, a.clock = v.Date, v.Clock
		}
		return a
	case InformationSpec:
		return &InformationAnswer{question: q}
	}
	return nil
}

func requiredError(q Question, answered bool) []ErrorKind {
	if q.Required && !answered {
		return []ErrorKind{ErrorRequired}
	}
	return nil
}

// TextAnswer holds free text.
type TextAnswer struct {
	question Question
	spec     TextSpec
	value    string
}

func (a *TextAnswer) Question() Question { return a.question }
func (a *TextAnswer) QuestionID() string { return a.question.ID }
func (a *TextAnswer) SetText(v string)   { a.value = v }
func (a *TextAnswer) Text() string       { return a.value }

func (a *TextAnswer) IsAnswered() bool { return strings.TrimSpace(a.value) != "" }

func (a *TextAnswer) Validate() []ErrorKind {
	kinds := requiredError(a.question, a.IsAnswered())
	if a.IsAnswered() && a.spec.Pattern != "" {
		if !regexp.MustCompile(a.spec.Pattern).MatchString(strings.TrimSpace(a.value)) {
			kinds = append(kinds, ErrorInvalidFormat)
		}
	}
	return kinds
}

func (a *TextAnswer) Score() int {
	if !a.question.Scorable || !a.IsAnswered() {
		return 0
	}
	value := strings.TrimSpace(a.value)
	switch {
	case a.spec.CorrectAnswer != "":
		if value == a.spec.CorrectAnswer {
			return a.spec.Score
		}
	case a.spec.CorrectPattern != "":
		if regexp.MustCompile(a.spec.CorrectPattern).MatchString(value) {
			return a.spec.Score
		}
	case len(a.spec.AllowedAnswers) > 0:
		for _, allowed := range a.spec.AllowedAnswers {
			if value == allowed {
				return a.spec.Score
			}
		}
	}
	return 0
}

func (a *TextAnswer) RawValue() any {
	if !a.IsAnswered() {
		return nil
	}
	return a.value
}

func (a *TextAnswer) DisplayValue() string { return a.value }

// ChoiceAnswer holds the selected option labels of a choice question.
// Selection-count limits are deliberately not re-checked here; the input
// layer enforces them and the data layer accepts any subset of configured
// options.
type ChoiceAnswer struct {
	question Question
	spec     ChoiceSpec
	selected []string
}

func (a *ChoiceAnswer) Question() Question { return a.question }
func (a *ChoiceAnswer) QuestionID() string { return a.question.ID }
func (a *ChoiceAnswer) Selected() []string { return append([]string(nil), a.selected...) }

// SetSelected replaces the selection. Labels not present in the
// configuration are dropped.
func (a *ChoiceAnswer) SetSelected(labels []string) {
	a.selected = a.selected[:0]
	for _, label := range labels {
		for _, opt := range a.spec.Options {
			if opt.Label == label {
				a.selected = append(a.selected, label)
				break
			}
		}
	}
}

func (a *ChoiceAnswer) IsAnswered() bool { return len(a.selected) > 0 }

func (a *ChoiceAnswer) Validate() []ErrorKind {
	return requiredError(a.question, a.IsAnswered())
}

// Score sums the scores of every selected option flagged correct, giving
// partial credit on multi-select questions.
func (a *ChoiceAnswer) Score() int {
	if !a.question.Scorable || !a.IsAnswered() {
		return 0
	}
	total := 0
	for _, label := range a.selected {
		for _, opt := range a.spec.Options {
			if opt.Label == label && opt.Correct {
				total += opt.Score
			}
		}
	}
	return total
}

func (a *ChoiceAnswer) RawValue() any {
	if !a.IsAnswered() {
		return nil
	}
	return append([]string(nil), a.selected...)
}

func (a *ChoiceAnswer) DisplayValue() string { return strings.Join(a.selected, "; ") }

// DataAnswer holds a participant-data value (name, email, age, ...).
// Data questions never score.
type DataAnswer struct {
	question Question
	spec     DataSpec
	value    string
	now      func() time.Time
}

func (a *DataAnswer) Question() Question { return a.question }
func (a *DataAnswer) QuestionID() string { return a.question.ID }
func (a *DataAnswer) SetValue(v string)  { a.value = v }
func (a *DataAnswer) Value() string      { return a.value }

// LeaderboardName reports whether this answer supplies the run's display
// name for the leaderboard.
func (a *DataAnswer) LeaderboardName() bool { return a.spec.Leaderboard }

func (a *DataAnswer) IsAnswered() bool { return strings.TrimSpace(a.value) != "" }

func (a *DataAnswer) Validate() []ErrorKind {
	kinds := requiredError(a.question, a.IsAnswered())
	if a.IsAnswered() {
		now := time.Now
		if a.now != nil {
			now = a.now
		}
		kinds = append(kinds, validateDataValue(a.spec, strings.TrimSpace(a.value), now())...)
	}
	return kinds
}

func (a *DataAnswer) Score() int { return 0 }

func (a *DataAnswer) RawValue() any {
	if !a.IsAnswered() {
		return nil
	}
	return a.value
}

func (a *DataAnswer) DisplayValue() string { return a.value }

// RatingAnswer holds a 1..levels star rating. Ratings never score.
type RatingAnswer struct {
	question Question
	spec     RatingSpec
	value    int
}

func (a *RatingAnswer) Question() Question { return a.question }
func (a *RatingAnswer) QuestionID() string { return a.question.ID }
func (a *RatingAnswer) Rating() int        { return a.value }

// SetRating ignores values outside 1..levels.
func (a *RatingAnswer) SetRating(v int) {
	if v >= 1 && v <= a.spec.Levels {
		a.value = v
	}
}

func (a *RatingAnswer) IsAnswered() bool { return a.value > 0 }

func (a *RatingAnswer) Validate() []ErrorKind {
	return requiredError(a.question, a.IsAnswered())
}

func (a *RatingAnswer) Score() int { return 0 }

func (a *RatingAnswer) RawValue() any {
	if !a.IsAnswered() {
		return nil
	}
	return a.value
}

func (a *RatingAnswer) DisplayValue() string {
	if !a.IsAnswered() {
		return ""
	}
	return strconv.Itoa(a.value)
}

// SliderAnswer holds a single value or a [low, high] range.
type SliderAnswer struct {
	question Question
	spec     SliderSpec
	low      float64
	high     float64
	answered bool
}

func (a *SliderAnswer) Question() Question { return a.question }
func (a *SliderAnswer) QuestionID() string { return a.question.ID }

// SetValue records a single-value selection.
func (a *SliderAnswer) SetValue(v float64) {
	a.low, a.high, a.answered = v, v, true
}

// SetRange records a range selection; bounds are normalized low-to-high.
func (a *SliderAnswer) SetRange(low, high float64) {
	if low > high {
		low, high = high, low
	}
	a.low, a.high, a.answered = low, high, true
}

func (a *SliderAnswer) Range() (float64, float64) { return a.low, a.high }

func (a *SliderAnswer) IsAnswered() bool { return a.answered }

func (a *SliderAnswer) Validate() []ErrorKind {
	return requiredError(a.question, a.IsAnswered())
}

// Score awards the full configured score when the correct value falls
// inside the selected range, or, in single-value mode, within epsilon of
// the selection.
func (a *SliderAnswer) Score() int {
	if !a.question.Scorable || !a.IsAnswered() || a.spec.Correct == nil {
		return 0
	}
	correct := *a.spec.Correct
	if a.spec.Range {
		if correct >= a.low && correct <= a.high {
			return a.spec.Score
		}
		return 0
	}
	if math.Abs(a.low-correct) < scoreEpsilon {
		return a.spec.Score
	}
	return 0
}

func (a *SliderAnswer) RawValue() any {
	if !a.IsAnswered() {
		return nil
	}
	return [2]float64{a.low, a.high}
}

func (a *SliderAnswer) DisplayValue() string {
	if !a.IsAnswered() {
		return ""
	}
	format := func(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }
	if a.spec.Range {
		return format(a.low) + ".." + format(a.high)
	}
	return format(a.low)
}

// LikertAnswer maps statement labels to the chosen scale entry.
type LikertAnswer struct {
	question   Question
	spec       LikertSpec
	selections map[string]string
}

func (a *LikertAnswer) Question() Question { return a.question }
func (a *LikertAnswer) QuestionID() string { return a.question.ID }

// SetSelection records the choice for one statement. Unknown statements or
// choices are ignored.
func (a *LikertAnswer) SetSelection(statement, choice string) {
	known := false
	for _, st := range a.spec.Statements {
		if st.Label == statement {
			known = true
			break
		}
	}
	if !known {
		return
	}
	for _, c := range a.spec.Choices {
		if c == choice {
			a.selections[statement] = choice
			return
		}
	}
}

func (a *LikertAnswer) Selection(statement string) (string, bool) {
	choice, ok := a.selections[statement]
	return choice, ok
}

// IsAnswered requires every statement to have a selection.
func (a *LikertAnswer) IsAnswered() bool {
	for _, st := range a.spec.Statements {
		if _, ok := a.selections[st.Label]; !ok {
			return false
		}
	}
	return true
}

func (a *LikertAnswer) Validate() []ErrorKind {
	return requiredError(a.question, a.IsAnswered())
}

// Score sums the score of every statement whose selection equals its
// configured correct choice.
func (a *LikertAnswer) Score() int {
	if !a.question.Scorable || !a.IsAnswered() {
		return 0
	}
	total := 0
	for _, st := range a.spec.Statements {
		if st.Correct == "" {
			continue
		}
		if a.selections[st.Label] == st.Correct {
			total += st.Score
		}
	}
	return total
}

func (a *LikertAnswer) RawValue() any {
	if len(a.selections) == 0 {
		return nil
	}
	copied := make(map[string]string, len(a.selections))
	for statement, choice := range a.selections {
		copied[statement] = choice
	}
	return copied
}

func (a *LikertAnswer) DisplayValue() string {
	parts := make([]string, 0, len(a.spec.Statements))
	for _, st := range a.spec.Statements {
		if choice, ok := a.selections[st.Label]; ok {
			parts = append(parts, st.Label+": "+choice)
		}
	}
	return strings.Join(parts, "; ")
}

// DateTimeAnswer holds a date and/or clock time, per the question's mode.
type DateTimeAnswer struct {
	question Question
	spec     DateTimeSpec
	date     *time.Time
	clock    *time.Time
}

func (a *DateTimeAnswer) Question() Question { return a.question }
func (a *DateTimeAnswer) QuestionID() string { return a.question.ID }

func (a *DateTimeAnswer) SetDate(t time.Time) {
	if a.spec.Mode == ModeTime {
		return
	}
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	a.date = &d
}

func (a *DateTimeAnswer) SetTime(t time.Time) {
	if a.spec.Mode == ModeDate {
		return
	}
	c := time.Date(0, 1, 1, t.Hour(), t.Minute(), 0, 0, time.UTC)
	a.clock = &c
}

func (a *DateTimeAnswer) Value() DateTimeValue { return DateTimeValue{Date: a.date, Clock: a.clock} }

// IsAnswered requires whichever of date and time the mode calls for.
func (a *DateTimeAnswer) IsAnswered() bool {
	switch a.spec.Mode {
	case ModeDate:
		return a.date != nil
	case ModeTime:
		return a.clock != nil
	default:
		return a.date != nil && a.clock != nil
	}
}

func (a *DateTimeAnswer) Validate() []ErrorKind {
	return requiredError(a.question, a.IsAnswered())
}

// Score awards the full score only when every configured correct side
// matches; an unconfigured side is automatically satisfied.
func (a *DateTimeAnswer) Score() int {
	if !a.question.Scorable || !a.IsAnswered() {
		return 0
	}
	if a.spec.CorrectDate != "" {
		want, err := parseDate(a.spec.CorrectDate)
		if err != nil || a.date == nil || !a.date.Equal(want) {
			return 0
		}
	}
	if a.spec.CorrectTime != "" {
		want, err := parseClock(a.spec.CorrectTime)
		if err != nil || a.clock == nil || !a.clock.Equal(want) {
			return 0
		}
	}
	return a.spec.Score
}

func (a *DateTimeAnswer) RawValue() any {
	if a.date == nil && a.clock == nil {
		return nil
	}
	return DateTimeValue{Date: a.date, Clock: a.clock}
}

func (a *DateTimeAnswer) DisplayValue() string {
	parts := make([]string, 0, 2)
	if a.date != nil {
		parts = append(parts, a.date.Format(dateLayout))
	}
	if a.clock != nil {
		parts = append(parts, a.clock.Format(clockLayout))
	}
	return strings.Join(parts, " ")
}

// InformationAnswer is the unit answer of a display-only block. Always
// answered, never validated against, never scored, never saved.
type InformationAnswer struct {
	question Question
}

func (a *InformationAnswer) Question() Question    { return a.question }
func (a *InformationAnswer) QuestionID() string    { return a.question.ID }
func (a *InformationAnswer) IsAnswered() bool      { return true }
func (a *InformationAnswer) Validate() []ErrorKind { return nil }
func (a *InformationAnswer) Score() int            { return 0 }
func (a *InformationAnswer) RawValue() any         { return nil }
func (a *InformationAnswer) DisplayValue() string  { return "" }
