package sandbox

import (
	"errors"
	"strings"

	"data-agent/internal/domain/entity"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

type ErrorKind string

const (
	KindSyntax    ErrorKind = "SyntaxError"
	KindName      ErrorKind = "NameError"
	KindRuntime   ErrorKind = "RuntimeError"
	KindStepLimit ErrorKind = "StepLimitError"
	KindCancelled ErrorKind = "CancelledError"
)

// ExecError describes a snippet that failed to parse, resolve or run.
// Detail carries the location: a source position or a Starlark backtrace.
type ExecError struct {
	Kind    ErrorKind
	Message string
	Detail  string
}

func (e *ExecError) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *ExecError) Unwrap() error {
	return entity.ErrToolExecution
}

// Report is the observation text handed back to the model.
func (e *ExecError) Report() string {
	if e.Detail == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Detail
}

func classify(err error) *ExecError {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr
	}

	var synErr syntax.Error
	if errors.As(err, &synErr) {
		return &ExecError{Kind: KindSyntax, Message: synErr.Msg, Detail: "at " + synErr.Pos.String()}
	}

	var resErr resolve.ErrorList
	if errors.As(err, &resErr) {
		lines := make([]string, 0, len(resErr))
		for _, e := range resErr {
			lines = append(lines, "at "+e.Pos.String()+": "+e.Msg)
		}
		return &ExecError{Kind: KindName, Message: resErr[0].Msg, Detail: strings.Join(lines, "\n")}
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		kind := KindRuntime
		switch {
		case strings.Contains(evalErr.Msg, "too many steps"):
			kind = KindStepLimit
		case strings.Contains(evalErr.Msg, "computation cancelled"):
			kind = KindCancelled
		}
		return &ExecError{Kind: kind, Message: evalErr.Msg, Detail: evalErr.Backtrace()}
	}

	return &ExecError{Kind: KindRuntime, Message: err.Error()}
}
