// Package util provides logging helpers, the command error taxonomy, and
// small string utilities shared by the shell packages.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors, one per command error kind. Every *CommandError unwraps
// to the sentinel of its kind so callers can use errors.Is.
var (
	ErrArgumentValidation = errors.New("invalid argument")
	ErrRange              = errors.New("value outside length/range")
	ErrSyntax             = errors.New("syntax error")
	ErrDescription        = errors.New("bad command description")
	ErrCompletion         = errors.New("command completion")
	ErrAmbiguous          = errors.New("ambiguous command")
	ErrMissing            = errors.New("no such command")
	ErrInvocation         = errors.New("invalid command invocation")
	ErrSemantic           = errors.New("invalid use")
	ErrInternal           = errors.New("internal error")
	ErrRest               = errors.New("rest error")
)

// Kind labels a CommandError. The label is the prefix shown to the user.
type Kind string

const (
	KindArgumentValidation Kind = "Invalid argument"
	KindRange              Kind = "Value outside length/range"
	KindSyntax             Kind = ""
	KindDescription        Kind = "Bad command description"
	KindCompletion         Kind = "Command completion"
	KindAmbiguous          Kind = "Ambiguous command"
	KindMissing            Kind = "No such command"
	KindInvocation         Kind = "Invalid command invocation"
	KindSemantic           Kind = "Invalid Use"
	KindInternal           Kind = "Internal (bug)"
	KindRest               Kind = "REST"
)

var kindSentinels = map[Kind]error{
	KindArgumentValidation: ErrArgumentValidation,
	KindRange:              ErrRange,
	KindSyntax:             ErrSyntax,
	KindDescription:        ErrDescription,
	KindCompletion:         ErrCompletion,
	KindAmbiguous:          ErrAmbiguous,
	KindMissing:            ErrMissing,
	KindInvocation:         ErrInvocation,
	KindSemantic:           ErrSemantic,
	KindInternal:           ErrInternal,
	KindRest:               ErrRest,
}

// CommandError is the common error type raised while parsing, completing
// or dispatching a command.
type CommandError struct {
	Kind    Kind
	Message string

	// ExpectedTokens lists the accepted spellings when an argument is rejected.
	ExpectedTokens []string

	// Suggestions holds near matches for a missing command.
	Suggestions []string

	// ErrorType and Description carry the upstream REST error, when known.
	ErrorType   string
	Description string
}

func (e *CommandError) Error() string {
	msg := e.Message
	if len(e.Suggestions) > 0 {
		msg += fmt.Sprintf(" (did you mean: %s?)", strings.Join(e.Suggestions, ", "))
	}
	if e.Kind == KindSyntax {
		return msg
	}
	return string(e.Kind) + ": " + msg
}

func (e *CommandError) Unwrap() error {
	return kindSentinels[e.Kind]
}

// NewArgumentValidationError reports a value rejected by a field. The
// expected tokens, if any, are the values that would have been accepted.
func NewArgumentValidationError(msg string, expected ...string) *CommandError {
	return &CommandError{Kind: KindArgumentValidation, Message: msg, ExpectedTokens: expected}
}

// NewRangeError reports an integer or length outside its declared bounds.
func NewRangeError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindRange, Message: fmt.Sprintf(format, args...)}
}

// NewSyntaxError reports input that does not fit the command grammar.
func NewSyntaxError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindSyntax, Message: fmt.Sprintf(format, args...)}
}

// NewDescriptionError reports a malformed command descriptor.
func NewDescriptionError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindDescription, Message: fmt.Sprintf(format, args...)}
}

// NewCompletionError reports a failure while computing completions.
func NewCompletionError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindCompletion, Message: fmt.Sprintf(format, args...)}
}

// NewAmbiguousError reports a word that matched more than one command or alternative.
func NewAmbiguousError(word string, matches []string) *CommandError {
	return &CommandError{
		Kind:           KindAmbiguous,
		Message:        fmt.Sprintf("%s (matches %s)", word, strings.Join(matches, ", ")),
		ExpectedTokens: matches,
	}
}

// NewMissingError reports an unknown command word.
func NewMissingError(word string, suggestions ...string) *CommandError {
	return &CommandError{Kind: KindMissing, Message: word, Suggestions: suggestions}
}

// NewInvocationError reports an action invoked without what it needs.
func NewInvocationError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindInvocation, Message: fmt.Sprintf(format, args...)}
}

// NewSemanticError reports well-formed input that cannot be honored.
func NewSemanticError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindSemantic, Message: fmt.Sprintf(format, args...)}
}

// NewInternalError reports a condition that indicates a bug.
func NewInternalError(format string, args ...interface{}) *CommandError {
	return &CommandError{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// NewRestError reports a failed backend request. errorType and description
// come from the backend's error body and may be empty.
func NewRestError(errorType, description, msg string) *CommandError {
	if errorType == "" {
		errorType = "unknown"
	}
	full := fmt.Sprintf("Error: REST API; type = %s", errorType)
	if description != "" {
		full += "; " + description
	}
	full += ": " + msg
	return &CommandError{
		Kind:        KindRest,
		Message:     full,
		ErrorType:   errorType,
		Description: description,
	}
}

// AsCommandError returns err as a *CommandError when it is (or wraps) one.
func AsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// IsUserError reports whether err is a parse, validation or semantic error
// that should be shown to the user without being logged.
func IsUserError(err error) bool {
	ce, ok := AsCommandError(err)
	if !ok {
		return false
	}
	switch ce.Kind {
	case KindInternal, KindRest, KindDescription:
		return false
	}
	return true
}

// ExpectedTokens returns the tokens carried by err, or nil.
func ExpectedTokens(err error) []string {
	if ce, ok := AsCommandError(err); ok {
		return ce.ExpectedTokens
	}
	return nil
}

// ValidationBuilder accumulates descriptor problems so that every mistake
// in a table is reported in one pass.
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns a description error listing every message, or nil.
func (v *ValidationBuilder) Build() error {
	switch len(v.errors) {
	case 0:
		return nil
	case 1:
		return NewDescriptionError("%s", v.errors[0])
	}
	return NewDescriptionError("%d problems:\n  - %s", len(v.errors), strings.Join(v.errors, "\n  - "))
}
