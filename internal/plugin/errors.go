package plugin

import (
	"fmt"

	"github.com/Mschirtzinger/hardlinks/internal/catalog"
)

// Code is a successful handler outcome.
type Code int

const (
	// CodeContinue lets the host run its default behavior.
	CodeContinue Code = iota
	// CodeSkipOperation tells the host to skip its default behavior.
	CodeSkipOperation
	// CodeSuccess is returned by direct invocations that completed.
	CodeSuccess
)

func (c Code) String() string {
	switch c {
	case CodeContinue:
		return "RULE_ENGINE_CONTINUE"
	case CodeSkipOperation:
		return "RULE_ENGINE_SKIP_OPERATION"
	case CodeSuccess:
		return "SUCCESS"
	}
	return fmt.Sprintf("CODE(%d)", int(c))
}

// Error is a failed rule execution with the status reported to the host.
type Error struct {
	Status catalog.Status
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Msg == "" {
		return fmt.Sprintf("%v [%s]", e.Err, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Msg, e.Status, e.Err)
	}
	return fmt.Sprintf("%s [%s]", e.Msg, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CatalogStatus exposes the status to catalog.StatusOf.
func (e *Error) CatalogStatus() catalog.Status {
	return e.Status
}

func newError(status catalog.Status, err error, format string, args ...any) *Error {
	return &Error{Status: status, Msg: fmt.Sprintf(format, args...), Err: err}
}

// inputFormatError reports an unparsable rule text.
func inputFormatError(err error) *Error {
	return &Error{Status: catalog.StatusUserInputFormat, Err: err}
}

// typeError reports a missing or mistyped field, or a hook input of the wrong shape.
func typeError(format string, args ...any) *Error {
	return &Error{Status: catalog.StatusSysInternal, Msg: fmt.Sprintf(format, args...)}
}
