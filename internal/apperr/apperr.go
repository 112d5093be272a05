// Package apperr defines the error kinds surfaced by the analytics engine.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers deciding how to react
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindDateParse
	KindValidation
	KindDirectoryNotFound
	KindNoUsageData
	KindPricingNotFound
	KindIO
	KindJSONParse
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "configuration error"
	case KindDateParse:
		return "date parse error"
	case KindValidation:
		return "validation error"
	case KindDirectoryNotFound:
		return "directory not found"
	case KindNoUsageData:
		return "no usage data"
	case KindPricingNotFound:
		return "pricing not found"
	case KindIO:
		return "i/o error"
	case KindJSONParse:
		return "json parse error"
	default:
		return "error"
	}
}

// Sentinels for errors.Is matching against a kind
var (
	ErrConfig            = &Error{Kind: KindConfig}
	ErrDateParse         = &Error{Kind: KindDateParse}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrDirectoryNotFound = &Error{Kind: KindDirectoryNotFound}
	ErrNoUsageData       = &Error{Kind: KindNoUsageData}
	ErrPricingNotFound   = &Error{Kind: KindPricingNotFound}
	ErrIO                = &Error{Kind: KindIO}
	ErrJSONParse         = &Error{Kind: KindJSONParse}
)

// Error is a classified error with optional operation and path context
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New returns a classified error wrapping err
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf returns a classified error with a formatted message
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithPath returns a classified error that names the offending path
func WithPath(kind Kind, op, path string, err error) *Error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
