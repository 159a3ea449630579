package safedbx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giulio2002/safedbx/internal/engine"
)

func TestErrorCodes(t *testing.T) {
	// codes mirror the engine vocabulary one to one
	assert.EqualValues(t, engine.NotFound, ErrNotFound)
	assert.EqualValues(t, engine.DBsFull, ErrDBsFull)
	assert.EqualValues(t, engine.ReadersFull, ErrReadersFull)
	assert.EqualValues(t, engine.Incompatible, ErrIncompatible)
	assert.EqualValues(t, engine.BadTxn, ErrBadTxn)
	assert.EqualValues(t, engine.BadDBI, ErrBadDBI)
	assert.EqualValues(t, engine.Busy, ErrBusy)
	assert.EqualValues(t, engine.ENOENT, ErrNoEntry)
	assert.EqualValues(t, engine.EACCES, ErrPermissionDenied)
	assert.EqualValues(t, engine.EINVAL, ErrInvalidArgument)
	assert.EqualValues(t, engine.ENOSPC, ErrNoSpace)
}

func TestErrorFormat(t *testing.T) {
	err := opError("open db", ErrNotFound)
	assert.Equal(t, "safedbx: open db: not found", err.Error())

	err = WrapError(ErrNoSpace, errors.New("disk full"))
	assert.Equal(t, "safedbx: no space left on device: disk full", err.Error())

	assert.Equal(t, "safedbx: unknown error code -1", NewError(-1).Error())

	// engine codes that no safedbx operation can produce have no name
	assert.Equal(t, "safedbx: unknown error code -30799", NewError(-30799).Error())
}

func TestFromEngine(t *testing.T) {
	assert.NoError(t, fromEngine("sync", nil))

	cause := errors.New("MDBX_DBS_FULL")
	err := fromEngine("create db", engine.Wrap("dbi open", engine.DBsFull, cause))
	assert.Equal(t, ErrDBsFull, Code(err))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "safedbx: create db: environment maxdbs limit reached: MDBX_DBS_FULL", err.Error())

	// a bare engine status has no cause
	err = fromEngine("open db", engine.Errorf("dbi open", engine.NotFound))
	var e *Error
	require.ErrorAs(t, err, &e)
	assert.Nil(t, e.Err)

	// anything that is not an engine error is a problem
	err = fromEngine("open", errors.New("odd"))
	assert.Equal(t, ErrProblem, Code(err))
}

func TestFromOS(t *testing.T) {
	_, statErr := os.Stat("/nonexistent/safedbx")
	require.Error(t, statErr)
	assert.Equal(t, ErrNoEntry, Code(fromOS("open", statErr)))

	perm := &fs.PathError{Op: "mkdir", Path: "/x", Err: syscall.EACCES}
	assert.True(t, IsPermission(fromOS("open", perm)))

	wrapped := fmt.Errorf("mkdir: %w", fs.ErrPermission)
	assert.Equal(t, ErrPermissionDenied, Code(fromOS("open", wrapped)))
	assert.Equal(t, ErrIO, Code(fromOS("open", errors.New("odd"))))
}

func TestPredicates(t *testing.T) {
	for _, tc := range []struct {
		code ErrorCode
		pred func(error) bool
	}{
		{ErrNotFound, IsNotFound},
		{ErrNoEntry, IsNotExist},
		{ErrDBsFull, IsDBsFull},
		{ErrDBsFull, IsConfig},
		{ErrReadersFull, IsReadersFull},
		{ErrIncompatible, IsIncompatible},
		{ErrBusy, IsBusy},
		{ErrDeviceBusy, IsBusy},
		{ErrInvalidArgument, IsConfig},
		{ErrPermissionDenied, IsPermission},
		{ErrReadOnlyFS, IsPermission},
		{ErrNoSpace, IsIO},
		{ErrMapFull, IsIO},
		{ErrMapFull, IsMapFull},
		{ErrBadTxn, IsMisuse},
		{ErrBadEnv, IsMisuse},
		{ErrCorrupted, IsCorrupted},
	} {
		err := fmt.Errorf("outer: %w", NewError(tc.code))
		assert.True(t, tc.pred(err), "code %d", tc.code)
	}

	assert.False(t, IsNotFound(nil))
	assert.False(t, IsNotFound(errors.New("not found")))
	assert.False(t, IsIO(NewError(ErrNotFound)))
	assert.Equal(t, Success, Code(nil))
	assert.Equal(t, ErrProblem, Code(errors.New("x")))
}
