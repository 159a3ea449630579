// Package engine defines the boundary between safedbx and the native
// storage engines it drives.
//
// An engine exposes C-style handles: an environment handle that must be
// configured before it is opened and closed exactly once, transaction handles
// that must be committed or aborted exactly once, and integer database
// handles (DBIs) that index the environment's handle table. Every failure is
// reported as an *Error carrying a Status from a small fixed vocabulary; the
// safedbx package translates those into its own typed errors.
//
// Implementations make no promises about concurrent handle-table mutation
// or about more than one write transaction at a time. Callers serialize.
package engine

import (
	"errors"
	"fmt"
	"os"
)

// DBI is a database handle: an index into the environment's handle table.
type DBI uint32

// Well-known handles. The GC table and the main (unnamed) table always
// occupy the first two slots; named tables are allocated after them.
const (
	FreeDBI DBI = 0
	MainDBI DBI = 1
	CoreDBs     = 2
)

// Env is a native environment handle.
//
// The setters must be called before Open. Close releases the handle and
// every DBI allocated from it; it must be the last call made on the handle.
type Env interface {
	SetMaxReaders(readers uint32) error
	SetMaxDBs(dbs uint32) error
	SetMapSize(size int64) error
	Open(path string, flags uint, mode os.FileMode) error
	BeginTxn(readOnly bool) (Txn, error)
	Sync(force bool) error
	CloseDBI(dbi DBI)
	Close()
}

// Txn is a native transaction handle.
//
// OpenDBI resolves name ("" for the main table) to a handle. With the
// Create flag the table is created if absent; otherwise a missing table
// yields NotFound. Handles opened by a transaction that is aborted are
// released together with it.
type Txn interface {
	OpenDBI(name string, flags uint) (DBI, error)
	DBIFlags(dbi DBI) (uint, error)
	Commit() error
	Abort()
}

// Driver creates unopened environment handles.
type Driver func() (Env, error)

// Status is an engine result code. Negative values follow libmdbx
// numbering; positive values are POSIX errno numbers.
type Status int

// Engine result codes.
const (
	Success             Status = 0
	NotFound            Status = -30798
	PageNotFound        Status = -30797
	Corrupted           Status = -30796
	Panic               Status = -30795
	VersionMismatch     Status = -30794
	Invalid             Status = -30793
	MapFull             Status = -30792
	DBsFull             Status = -30791
	ReadersFull         Status = -30790
	TxnFull             Status = -30788
	UnableExtendMapsize Status = -30785
	Incompatible        Status = -30784
	BadRSlot            Status = -30783
	BadTxn              Status = -30782
	BadValSize          Status = -30781
	BadDBI              Status = -30780
	Problem             Status = -30779
	Busy                Status = -30778
)

// POSIX errno values an engine may report.
const (
	EPERM  Status = 1
	ENOENT Status = 2
	EIO    Status = 5
	ENOMEM Status = 12
	EACCES Status = 13
	EBUSY  Status = 16
	EINVAL Status = 22
	ENOSPC Status = 28
	EROFS  Status = 30
)

// Error is a failed engine call.
type Error struct {
	Op     string
	Status Status
	Err    error // native error, if any
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Errorf returns an *Error for op with the given status.
func Errorf(op string, st Status) *Error {
	return &Error{Op: op, Status: st}
}

// Wrap returns an *Error for op with the given status wrapping err.
func Wrap(op string, st Status, err error) *Error {
	return &Error{Op: op, Status: st, Err: err}
}

// StatusOf extracts the Status from err. A nil error is Success; an error
// that is not an *Error is Problem.
func StatusOf(err error) Status {
	if err == nil {
		return Success
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return Problem
}
