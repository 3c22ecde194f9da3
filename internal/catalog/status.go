package catalog

import (
	"errors"
	"fmt"
)

// Status is a numeric catalog status. Zero is success; failures are negative.
type Status int

const (
	StatusOK                 Status = 0
	StatusSysInternal        Status = -154000
	StatusUnknown            Status = -155000
	StatusUserInputFormat    Status = -316000
	StatusNoRowsFound        Status = -808000
	StatusNameExists         Status = -809000
	StatusNoAccessPermission Status = -818000
	StatusInvalidOperation   Status = -826000
	StatusRuntime            Status = -1205000
	StatusNotSupported       Status = -1210000
)

var statusNames = map[Status]string{
	StatusOK:                 "OK",
	StatusSysInternal:        "SYS_INTERNAL_ERR",
	StatusUnknown:            "SYS_UNKNOWN_ERROR",
	StatusUserInputFormat:    "USER_INPUT_FORMAT_ERR",
	StatusNoRowsFound:        "CAT_NO_ROWS_FOUND",
	StatusNameExists:         "CAT_NAME_EXISTS",
	StatusNoAccessPermission: "CAT_NO_ACCESS_PERMISSION",
	StatusInvalidOperation:   "INVALID_OPERATION",
	StatusRuntime:            "RE_RUNTIME_ERROR",
	StatusNotSupported:       "NOT_YET_SUPPORTED",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", int(s))
}

var (
	// ErrNotFound is returned when a logical path has no catalog record.
	ErrNotFound = &Error{Status: StatusNoRowsFound, Msg: "no rows found"}

	// ErrExists is returned when registering a logical path that already exists.
	ErrExists = &Error{Status: StatusNameExists, Msg: "logical path already exists"}

	// ErrPermissionDenied is returned when a privileged primitive is called
	// on an unelevated session.
	ErrPermissionDenied = &Error{Status: StatusNoAccessPermission, Msg: "privileged operation requires elevated session"}
)

// Error is a failed catalog primitive: a status plus a message.
type Error struct {
	Status Status
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s [%s]: %v", e.Msg, e.Status, e.Err)
	}
	return fmt.Sprintf("%s [%s]", e.Msg, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches catalog errors by status so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Status == t.Status
	}
	return false
}

// Errorf builds an Error with a formatted message wrapping err.
func Errorf(status Status, err error, format string, args ...any) *Error {
	return &Error{Status: status, Msg: fmt.Sprintf(format, args...), Err: err}
}

// CatalogStatus returns the status; see StatusOf.
func (e *Error) CatalogStatus() Status {
	return e.Status
}

// StatusOf extracts the status carried by err. The outermost error in the
// chain that carries a status wins. Errors without one map to
// StatusSysInternal, nil maps to StatusOK.
func StatusOf(err error) Status {
	if err == nil {
		return StatusOK
	}
	var sc interface{ CatalogStatus() Status }
	if errors.As(err, &sc) {
		return sc.CatalogStatus()
	}
	return StatusSysInternal
}
