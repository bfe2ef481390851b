package historical

import (
	"errors"
	"fmt"
)

// Stage names the step of a monthly iteration that failed
type Stage string

const (
	StageFetch  Stage = "fetch"
	StageParse  Stage = "parse"
	StageLoad   Stage = "load"
	StageSave   Stage = "save"
	StageExport Stage = "export"
)

// StageError reports which stage of which month aborted a run
type StageError struct {
	Stage Stage
	Month string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Month, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Parse failure kinds
var (
	ErrMissingKey     = errors.New("time series key not found")
	ErrMalformedBlock = errors.New("malformed time series block")
	ErrMissingField   = errors.New("missing field")
	ErrBadNumber      = errors.New("invalid number")
	ErrBadTimestamp   = errors.New("invalid timestamp")
)

// ParseError describes why a payload could not be turned into a table.
// Kind is one of the Err* sentinels above.
type ParseError struct {
	Kind   error
	Key    string // payload key or bar timestamp involved
	Field  string
	Value  string
	Detail string // provider message, if any
	Err    error
}

func (e *ParseError) Error() string {
	msg := e.Kind.Error()
	if e.Key != "" {
		msg += fmt.Sprintf(" at %q", e.Key)
	}
	if e.Field != "" {
		msg += fmt.Sprintf(" field %q", e.Field)
	}
	if e.Value != "" {
		msg += fmt.Sprintf(" value %q", e.Value)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is matches the error against its kind.
func (e *ParseError) Is(target error) bool {
	return target == e.Kind
}
