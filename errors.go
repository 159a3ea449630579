package safedbx

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"

	"github.com/Giulio2002/safedbx/internal/engine"
)

// Error is a failed safedbx operation.
type Error struct {
	Code    ErrorCode
	Op      string // operation that failed, e.g. "open db"
	Message string
	Err     error // wrapped error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("safedbx: %s: %v", msg, e.Err)
	}
	return fmt.Sprintf("safedbx: %s", msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode is an engine result code. Negative codes follow libmdbx
// numbering; positive codes are POSIX errno values reported by the engine
// or the operating system.
type ErrorCode int

// Error codes
const (
	// Success indicates the operation completed successfully
	Success ErrorCode = 0

	// ErrNotFound indicates the named database was not found
	ErrNotFound ErrorCode = -30798

	// ErrPageNotFound indicates a requested page was not found (corruption)
	ErrPageNotFound ErrorCode = -30797

	// ErrCorrupted indicates the database is corrupted
	ErrCorrupted ErrorCode = -30796

	// ErrPanic indicates a fatal environment error
	ErrPanic ErrorCode = -30795

	// ErrVersionMismatch indicates DB version doesn't match library
	ErrVersionMismatch ErrorCode = -30794

	// ErrInvalid indicates the file is not a valid database file
	ErrInvalid ErrorCode = -30793

	// ErrMapFull indicates the environment mapsize was reached
	ErrMapFull ErrorCode = -30792

	// ErrDBsFull indicates the environment maxdbs was reached
	ErrDBsFull ErrorCode = -30791

	// ErrReadersFull indicates the environment maxreaders was reached
	ErrReadersFull ErrorCode = -30790

	// ErrTxnFull indicates the transaction has too many dirty pages
	ErrTxnFull ErrorCode = -30788

	// ErrUnableExtendMapsize indicates mapping couldn't be extended
	ErrUnableExtendMapsize ErrorCode = -30785

	// ErrIncompatible indicates incompatible operation or flags
	ErrIncompatible ErrorCode = -30784

	// ErrBadRSlot indicates reader slot was corrupted or reused
	ErrBadRSlot ErrorCode = -30783

	// ErrBadTxn indicates the transaction is invalid or already finished
	ErrBadTxn ErrorCode = -30782

	// ErrBadValSize indicates invalid key or data size
	ErrBadValSize ErrorCode = -30781

	// ErrBadDBI indicates the database handle is invalid
	ErrBadDBI ErrorCode = -30780

	// ErrProblem indicates an unexpected internal error
	ErrProblem ErrorCode = -30779

	// ErrBusy indicates the environment is locked by another handle
	ErrBusy ErrorCode = -30778

	// ErrBadEnv indicates the environment is closed
	ErrBadEnv ErrorCode = -30420

	// ErrTooLarge indicates database is too large for system
	ErrTooLarge ErrorCode = -30417

	// ErrThreadMismatch indicates a write transaction was used from
	// another OS thread than the one that began it
	ErrThreadMismatch ErrorCode = -30416
)

// Errno codes
const (
	ErrOperationNotPermitted ErrorCode = 1
	ErrNoEntry               ErrorCode = 2
	ErrIO                    ErrorCode = 5
	ErrNoMemory              ErrorCode = 12
	ErrPermissionDenied      ErrorCode = 13
	ErrDeviceBusy            ErrorCode = 16
	ErrInvalidArgument       ErrorCode = 22
	ErrNoSpace               ErrorCode = 28
	ErrReadOnlyFS            ErrorCode = 30
)

var errorMessages = map[ErrorCode]string{
	Success:                "success",
	ErrNotFound:            "not found",
	ErrPageNotFound:        "requested page not found",
	ErrCorrupted:           "database is corrupted",
	ErrPanic:               "fatal environment error",
	ErrVersionMismatch:     "database version mismatch",
	ErrInvalid:             "file is not a valid database",
	ErrMapFull:             "environment mapsize limit reached",
	ErrDBsFull:             "environment maxdbs limit reached",
	ErrReadersFull:         "environment maxreaders limit reached",
	ErrTxnFull:             "transaction has too many dirty pages",
	ErrUnableExtendMapsize: "unable to extend memory mapping",
	ErrIncompatible:        "incompatible operation or flags",
	ErrBadRSlot:            "reader slot corrupted",
	ErrBadTxn:              "transaction is invalid",
	ErrBadValSize:          "invalid key or value size",
	ErrBadDBI:              "invalid database handle",
	ErrProblem:             "unexpected internal error",
	ErrBusy:                "environment is busy",
	ErrBadEnv:              "environment is closed",
	ErrTooLarge:            "database too large for system",
	ErrThreadMismatch:      "thread attempted to use unowned object",
}

// NewError creates a new Error with the given code
func NewError(code ErrorCode) *Error {
	msg, ok := errorMessages[code]
	switch {
	case ok:
	case code > 0:
		msg = syscall.Errno(code).Error()
	default:
		msg = fmt.Sprintf("unknown error code %d", code)
	}
	return &Error{Code: code, Message: msg}
}

// WrapError creates a new Error wrapping another error
func WrapError(code ErrorCode, err error) *Error {
	e := NewError(code)
	e.Err = err
	return e
}

func opError(op string, code ErrorCode) *Error {
	e := NewError(code)
	e.Op = op
	return e
}

// fromEngine translates a driver failure. The engine's own error is kept
// as the cause so the native message stays reachable.
func fromEngine(op string, err error) error {
	if err == nil {
		return nil
	}
	e := opError(op, ErrorCode(engine.StatusOf(err)))
	var ee *engine.Error
	if errors.As(err, &ee) {
		e.Err = ee.Err
	} else {
		e.Err = err
	}
	return e
}

// fromOS translates a filesystem failure.
func fromOS(op string, err error) error {
	e := opError(op, osCode(err))
	e.Err = err
	return e
}

func osCode(err error) ErrorCode {
	var errno syscall.Errno
	switch {
	case errors.As(err, &errno):
		return ErrorCode(errno)
	case errors.Is(err, fs.ErrNotExist):
		return ErrNoEntry
	case errors.Is(err, fs.ErrPermission):
		return ErrPermissionDenied
	}
	return ErrIO
}

// Code returns the error code from an error, or ErrProblem if not a safedbx error
func Code(err error) ErrorCode {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrProblem
}

func codeIn(err error, codes ...ErrorCode) bool {
	if err == nil {
		return false
	}
	c := Code(err)
	for _, want := range codes {
		if c == want {
			return true
		}
	}
	return false
}

// IsNotFound returns true if a lookup found no such database.
func IsNotFound(err error) bool {
	return codeIn(err, ErrNotFound)
}

// IsNotExist returns true if the environment path does not exist.
func IsNotExist(err error) bool {
	return codeIn(err, ErrNoEntry)
}

// IsDBsFull returns true if the named-database limit was reached, including
// the case where named databases were never enabled.
func IsDBsFull(err error) bool {
	return codeIn(err, ErrDBsFull)
}

// IsReadersFull returns true if every reader slot is taken.
func IsReadersFull(err error) bool {
	return codeIn(err, ErrReadersFull)
}

// IsBusy returns true if another handle holds the environment open in a
// mode that excludes this one.
func IsBusy(err error) bool {
	return codeIn(err, ErrBusy, ErrDeviceBusy)
}

// IsIncompatible returns true if requested flags conflict with stored ones.
func IsIncompatible(err error) bool {
	return codeIn(err, ErrIncompatible)
}

// IsConfig returns true for settings the engine rejected.
func IsConfig(err error) bool {
	return codeIn(err, ErrInvalidArgument, ErrIncompatible, ErrVersionMismatch,
		ErrInvalid, ErrTooLarge, ErrDBsFull)
}

// IsPermission returns true for access failures, including write
// transactions on a read-only environment.
func IsPermission(err error) bool {
	return codeIn(err, ErrPermissionDenied, ErrOperationNotPermitted, ErrReadOnlyFS)
}

// IsIO returns true for storage failures such as a full disk.
func IsIO(err error) bool {
	return codeIn(err, ErrIO, ErrNoSpace, ErrNoMemory, ErrMapFull, ErrUnableExtendMapsize)
}

// IsMisuse returns true for operations on finished transactions, foreign or
// closed handles and closed environments.
func IsMisuse(err error) bool {
	return codeIn(err, ErrBadTxn, ErrBadDBI, ErrBadEnv, ErrThreadMismatch, ErrBadRSlot)
}

// IsCorrupted returns true if the error indicates database corruption
func IsCorrupted(err error) bool {
	return codeIn(err, ErrCorrupted, ErrPageNotFound)
}

// IsMapFull returns true if the error is ErrMapFull
func IsMapFull(err error) bool {
	return codeIn(err, ErrMapFull)
}
