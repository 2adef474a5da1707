package file

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/soldier14/survey-runtime/internal/domain"
	"gopkg.in/yaml.v3"
)

// Loader reads survey definitions from YAML files in a base directory.
// Question ids are assigned from page index and position (p<page>q<pos>),
// stable for the lifetime of one configuration file.
type Loader struct {
	dir string
}

func NewLoader(dir string) *Loader {
	if dir == "" {
		dir = "."
	}
	return &Loader{dir: dir}
}

// SurveyPath resolves a survey reference to its definition file.
func (l *Loader) SurveyPath(ref string) string {
	path := ref
	if !filepath.IsAbs(path) {
		path = filepath.Join(l.dir, path)
	}
	if filepath.Ext(path) == "" {
		path += ".yaml"
	}
	return path
}

func (l *Loader) LoadSurvey(_ context.Context, ref string) (domain.Survey, error) {
	data, err := os.ReadFile(l.SurveyPath(ref))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Survey{}, domain.ErrSurveyNotFound
		}
		return domain.Survey{}, fmt.Errorf("read survey %q: %w", ref, err)
	}
	return ParseSurvey(data)
}

// ParseSurvey decodes and validates one YAML survey document.
func ParseSurvey(data []byte) (domain.Survey, error) {
	var doc surveyDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return domain.Survey{}, fmt.Errorf("parse survey: %w", err)
	}
	return doc.build()
}

type surveyDoc struct {
	Title              string                     `yaml:"title"`
	Description        string                     `yaml:"description"`
	Kind               string                     `yaml:"kind"`
	ShowQuestionScores bool                       `yaml:"showQuestionScores"`
	ShowLeaderboard    bool                       `yaml:"showLeaderboard"`
	Leaderboard        domain.LeaderboardSettings `yaml:"leaderboard"`
	Pages              []pageDoc                  `yaml:"pages"`
}

type pageDoc struct {
	Title     string        `yaml:"title"`
	Questions []questionDoc `yaml:"questions"`
}

type conditionDoc struct {
	QuestionID string `yaml:"questionId"`
	Equals     string `yaml:"equals"`
}

type optionDoc struct {
	Label   string `yaml:"label"`
	Score   int    `yaml:"score"`
	Correct bool   `yaml:"correct"`
}

type statementDoc struct {
	Label   string `yaml:"label"`
	Score   int    `yaml:"score"`
	Correct string `yaml:"correct"`
}

// questionDoc is the union of every kind's settings; Type selects which
// subset applies.
type questionDoc struct {
	Type      string        `yaml:"type"`
	Title     string        `yaml:"title"`
	Required  bool          `yaml:"required"`
	Condition *conditionDoc `yaml:"condition"`

	// text
	Placeholder    string   `yaml:"placeholder"`
	Multiline      bool     `yaml:"multiline"`
	Pattern        string   `yaml:"pattern"`
	Score          int      `yaml:"score"`
	CorrectAnswer  string   `yaml:"correctAnswer"`
	CorrectPattern string   `yaml:"correctPattern"`
	AllowedAnswers []string `yaml:"allowedAnswers"`

	// choice
	Multi         bool        `yaml:"multi"`
	MinSelections int         `yaml:"minSelections"`
	MaxSelections int         `yaml:"maxSelections"`
	Options       []optionDoc `yaml:"options"`

	// data
	Field         string `yaml:"field"`
	CustomPattern string `yaml:"customPattern"`
	Leaderboard   bool   `yaml:"leaderboard"`

	// rating
	Levels int `yaml:"levels"`

	// slider
	Range   bool     `yaml:"range"`
	Min     float64  `yaml:"min"`
	Max     float64  `yaml:"max"`
	Step    float64  `yaml:"step"`
	Correct *float64 `yaml:"correct"`

	// likert
	Choices    []string       `yaml:"choices"`
	Statements []statementDoc `yaml:"statements"`

	// datetime
	Mode        string `yaml:"mode"`
	CorrectDate string `yaml:"correctDate"`
	CorrectTime string `yaml:"correctTime"`

	// information
	Body string `yaml:"body"`
}

func (doc surveyDoc) build() (domain.Survey, error) {
	kind := domain.SurveyKind(doc.Kind)
	switch doc.Kind {
	case "survey", "":
		kind = domain.KindSurvey
	case "quiz":
		kind = domain.KindQuiz
	case string(domain.KindSurvey), string(domain.KindQuiz):
	default:
		return domain.Survey{}, fmt.Errorf("unknown survey kind %q", doc.Kind)
	}

	if len(doc.Pages) == 0 {
		return domain.Survey{}, fmt.Errorf("survey %q has no pages", doc.Title)
	}

	survey := domain.Survey{
		Title:              doc.Title,
		Description:        doc.Description,
		Kind:               kind,
		ShowQuestionScores: doc.ShowQuestionScores,
		ShowLeaderboard:    doc.ShowLeaderboard,
		Leaderboard:        doc.Leaderboard,
	}
	for pageIdx, page := range doc.Pages {
		built := domain.Page{Title: page.Title}
		for pos, qd := range page.Questions {
			id := fmt.Sprintf("p%dq%d", pageIdx, pos)
			question, err := qd.build(id)
			if err != nil {
				return domain.Survey{}, fmt.Errorf("page %d: %w", pageIdx, err)
			}
			built.Questions = append(built.Questions, question)
		}
		if len(built.Questions) == 0 {
			return domain.Survey{}, fmt.Errorf("page %d has no questions", pageIdx)
		}
		survey.Pages = append(survey.Pages, built)
	}
	return survey, nil
}

func (qd questionDoc) build(id string) (domain.Question, error) {
	var spec domain.Spec
	scorable := false

	switch qd.Type {
	case "text":
		spec = domain.TextSpec{
			Placeholder:    qd.Placeholder,
			Multiline:      qd.Multiline,
			Pattern:        qd.Pattern,
			Score:          qd.Score,
			CorrectAnswer:  qd.CorrectAnswer,
			CorrectPattern: qd.CorrectPattern,
			AllowedAnswers: qd.AllowedAnswers,
		}
		scorable = qd.Score > 0
	case "choice":
		options := make([]domain.ChoiceOption, len(qd.Options))
		for i, opt := range qd.Options {
			options[i] = domain.ChoiceOption{Label: opt.Label, Score: opt.Score, Correct: opt.Correct}
			if opt.Correct && opt.Score > 0 {
				scorable = true
			}
		}
		spec = domain.ChoiceSpec{
			Options:       options,
			Multi:         qd.Multi,
			MinSelections: qd.MinSelections,
			MaxSelections: qd.MaxSelections,
		}
	case "data":
		spec = domain.DataSpec{
			Field:         domain.DataField(qd.Field),
			CustomPattern: qd.CustomPattern,
			Leaderboard:   qd.Leaderboard,
		}
	case "rating":
		spec = domain.RatingSpec{Levels: qd.Levels}
	case "slider":
		spec = domain.SliderSpec{
			Range:   qd.Range,
			Min:     qd.Min,
			Max:     qd.Max,
			Step:    qd.Step,
			Score:   qd.Score,
			Correct: qd.Correct,
		}
		scorable = qd.Score > 0
	case "likert":
		statements := make([]domain.LikertStatement, len(qd.Statements))
		for i, st := range qd.Statements {
			statements[i] = domain.LikertStatement{Label: st.Label, Score: st.Score, Correct: st.Correct}
			if st.Correct != "" && st.Score > 0 {
				scorable = true
			}
		}
		spec = domain.LikertSpec{Choices: qd.Choices, Statements: statements}
	case "datetime":
		spec = domain.DateTimeSpec{
			Mode:        domain.DateTimeMode(qd.Mode),
			Score:       qd.Score,
			CorrectDate: qd.CorrectDate,
			CorrectTime: qd.CorrectTime,
		}
		scorable = qd.Score > 0
	case "information":
		spec = domain.InformationSpec{Body: qd.Body}
	default:
		return domain.Question{}, fmt.Errorf("question %s: unknown type %q", id, qd.Type)
	}

	question, err := domain.NewQuestion(id, qd.Title, qd.Required, scorable, spec)
	if err != nil {
		return domain.Question{}, err
	}
	if qd.Condition != nil {
		question.Conditional = &domain.Condition{
			QuestionID: qd.Condition.QuestionID,
			Equals:     qd.Condition.Equals,
		}
	}
	return question, nil
}
