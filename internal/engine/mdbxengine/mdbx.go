//go:build cgo

// Package mdbxengine drives libmdbx through github.com/erigontech/mdbx-go.
package mdbxengine

import (
	"errors"
	"io/fs"
	"os"
	"runtime"
	"syscall"

	"github.com/erigontech/mdbx-go/mdbx"

	"github.com/Giulio2002/safedbx/internal/engine"
)

type env struct {
	env    *mdbx.Env
	opened bool
}

// New returns an unopened libmdbx environment handle.
func New() (engine.Env, error) {
	e, err := mdbx.NewEnv(mdbx.Label("safedbx"))
	if err != nil {
		return nil, wrap("env create", err)
	}
	return &env{env: e}, nil
}

func (e *env) SetMaxReaders(readers uint32) error {
	return wrap("env set maxreaders", e.env.SetOption(mdbx.OptMaxReaders, uint64(readers)))
}

func (e *env) SetMaxDBs(dbs uint32) error {
	return wrap("env set maxdbs", e.env.SetOption(mdbx.OptMaxDB, uint64(dbs)))
}

// SetMapSize sets the upper bound of the database geometry and leaves the
// other geometry parameters at their defaults.
func (e *env) SetMapSize(size int64) error {
	if size < 0 {
		return engine.Errorf("env set mapsize", engine.EINVAL)
	}
	if size == 0 {
		return nil
	}
	return wrap("env set mapsize", e.env.SetGeometry(-1, -1, int(size), -1, -1, -1))
}

func (e *env) Open(path string, flags uint, mode os.FileMode) error {
	// Read transactions may migrate between OS threads with the goroutine
	// that owns them.
	if err := e.env.Open(path, flags|engine.NoStickyThreads, mode); err != nil {
		return wrap("env open", err)
	}
	e.opened = true
	return nil
}

func (e *env) BeginTxn(readOnly bool) (engine.Txn, error) {
	var flags uint
	if readOnly {
		flags = mdbx.Readonly
	} else {
		// libmdbx binds a write transaction to the thread that began it.
		runtime.LockOSThread()
	}
	tx, err := e.env.BeginTxn(nil, flags)
	if err != nil {
		if !readOnly {
			runtime.UnlockOSThread()
		}
		return nil, wrap("txn begin", err)
	}
	return &txn{txn: tx, readOnly: readOnly}, nil
}

func (e *env) Sync(force bool) error {
	return wrap("env sync", e.env.Sync(force, false))
}

func (e *env) CloseDBI(dbi engine.DBI) {
	if dbi < engine.CoreDBs {
		return
	}
	e.env.CloseDBI(mdbx.DBI(dbi))
}

func (e *env) Close() {
	e.env.Close()
}

type txn struct {
	txn      *mdbx.Txn
	readOnly bool
	done     bool
}

// OpenDBI looks tables up with DBAccede so existing tables open whatever
// flags they were created with. With Create, an existing table must
// already carry every requested persistent flag.
func (t *txn) OpenDBI(name string, flags uint) (engine.DBI, error) {
	if t.done {
		return 0, engine.Errorf("dbi open", engine.BadTxn)
	}
	if flags&engine.Create == 0 {
		return t.open(name, flags|engine.DBAccede)
	}

	dbi, err := t.open(name, engine.DBAccede)
	switch {
	case err == nil:
		have, err := t.txn.Flags(mdbx.DBI(dbi))
		if err != nil {
			return 0, wrap("dbi flags", err)
		}
		if want := flags & engine.PersistentDBFlags; want&^have != 0 {
			return 0, engine.Errorf("dbi open", engine.Incompatible)
		}
		return dbi, nil
	case engine.StatusOf(err) == engine.NotFound:
		return t.open(name, flags)
	default:
		return 0, err
	}
}

func (t *txn) open(name string, flags uint) (engine.DBI, error) {
	var (
		dbi mdbx.DBI
		err error
	)
	if name == "" {
		dbi, err = t.txn.OpenRoot(flags)
	} else {
		dbi, err = t.txn.OpenDBI(name, flags, nil, nil)
	}
	if err != nil {
		return 0, wrap("dbi open", err)
	}
	return engine.DBI(dbi), nil
}

func (t *txn) DBIFlags(dbi engine.DBI) (uint, error) {
	if t.done {
		return 0, engine.Errorf("dbi flags", engine.BadTxn)
	}
	flags, err := t.txn.Flags(mdbx.DBI(dbi))
	if err != nil {
		return 0, wrap("dbi flags", err)
	}
	return flags, nil
}

func (t *txn) Commit() error {
	if t.done {
		return engine.Errorf("txn commit", engine.BadTxn)
	}
	t.done = true
	defer t.unlock()

	_, err := t.txn.Commit()
	return wrap("txn commit", err)
}

func (t *txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.txn.Abort()
	t.unlock()
}

func (t *txn) unlock() {
	if !t.readOnly {
		runtime.UnlockOSThread()
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return engine.Wrap(op, statusOf(err), err)
}

func statusOf(err error) engine.Status {
	cause := err
	var opErr *mdbx.OpError
	if errors.As(err, &opErr) {
		cause = opErr.Errno
	}
	switch e := cause.(type) {
	case mdbx.Errno:
		return engine.Status(e)
	case syscall.Errno:
		// another handle in this process has the environment open
		if e == syscall.EAGAIN || e == syscall.EWOULDBLOCK {
			return engine.Busy
		}
		return engine.Status(e)
	}

	switch {
	case errors.Is(err, mdbx.ErrNotFound):
		return engine.NotFound
	case errors.Is(err, fs.ErrNotExist):
		return engine.ENOENT
	case errors.Is(err, fs.ErrPermission):
		return engine.EACCES
	}
	return engine.Problem
}
