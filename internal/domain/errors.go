package domain

import "errors"

var (
	// ErrSurveyNotFound indicates the survey definition could not be loaded.
	ErrSurveyNotFound = errors.New("survey not found")
	// ErrQuestionNotFound indicates an update referenced an unknown question ID.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrNoActiveRun is returned when a content action arrives in the summary state.
	ErrNoActiveRun = errors.New("no active run")
	// ErrRunInProgress is returned when a run is started while one is already active.
	ErrRunInProgress = errors.New("run already in progress")
	// ErrFirstPage is returned when backing up from page zero.
	ErrFirstPage = errors.New("already on first page")
)

// ErrorKind is a symbolic validation failure. Rendering it to display text is
// the caller's concern; the session resolves kinds through an injected
// message resolver.
type ErrorKind string

const (
	// ErrorRequired: the question is required and has no answer.
	ErrorRequired ErrorKind = "answer.required"
	// ErrorInvalidFormat: the value does not match the configured or implied pattern.
	ErrorInvalidFormat ErrorKind = "answer.invalid_format"
	// ErrorOutOfRange: a numeric or date value falls outside the accepted bounds.
	ErrorOutOfRange ErrorKind = "answer.out_of_range"
)
