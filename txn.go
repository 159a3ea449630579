package safedbx

import (
	"fmt"

	"github.com/Giulio2002/safedbx/internal/engine"
)

type txnState uint8

const (
	txnActive txnState = iota
	txnCommitted
	txnAborted
)

// Txn is a read-only or read-write transaction.
//
// A Txn is not safe for concurrent use. It ends exactly once, by Commit or
// Abort; every later call fails with ErrBadTxn except Abort, which does
// nothing. Write transactions pin their goroutine to its OS thread until
// they end, so they must be finished on the goroutine that began them.
type Txn struct {
	env      *Env
	native   engine.Txn
	id       uint64
	readOnly bool
	state    txnState
}

// Env returns the transaction's environment.
func (txn *Txn) Env() *Env {
	return txn.env
}

// ID returns the transaction's sequence number within its environment.
func (txn *Txn) ID() uint64 {
	return txn.id
}

// IsReadOnly returns true if this is a read-only transaction.
func (txn *Txn) IsReadOnly() bool {
	return txn.readOnly
}

func (txn *Txn) active() bool {
	return txn != nil && txn.state == txnActive
}

func (txn *Txn) String() string {
	mode := "rw"
	if txn.readOnly {
		mode = "ro"
	}
	return fmt.Sprintf("txn(%d,%s)", txn.id, mode)
}

// Flags returns the persistent flags of db as seen by this transaction.
func (txn *Txn) Flags(db Database) (uint, error) {
	if !txn.active() {
		return 0, opError("db flags", ErrBadTxn)
	}
	if db.env != txn.env {
		return 0, opError("db flags", ErrBadDBI)
	}
	flags, err := txn.native.DBIFlags(engine.DBI(db.dbi))
	if err != nil {
		return 0, fromEngine("db flags", err)
	}
	return flags & PersistentDBFlags, nil
}

// Commit commits the transaction. A read-only transaction just releases its
// snapshot. If the engine fails to commit, the transaction is aborted and
// the error returned.
func (txn *Txn) Commit() error {
	if !txn.active() {
		return opError("commit", ErrBadTxn)
	}

	if err := txn.native.Commit(); err != nil {
		txn.finish(txnAborted)
		txn.env.metrics.commitErrors.Inc()
		txn.env.log.Warn("transaction commit failed", "txn", txn.id, "err", err)
		return fromEngine("commit", err)
	}
	txn.finish(txnCommitted)
	return nil
}

// Abort discards the transaction. It does nothing if the transaction has
// already ended, so it is always safe to defer.
func (txn *Txn) Abort() {
	if !txn.active() {
		return
	}
	txn.native.Abort()
	txn.finish(txnAborted)
}

// finish releases everything the transaction holds in the environment.
func (txn *Txn) finish(state txnState) {
	txn.state = state
	e := txn.env

	if txn.readOnly {
		e.readers.Dec()
	} else {
		e.writer.Store(false)
		e.writeMu.Unlock()
	}

	if state == txnCommitted {
		e.metrics.committed(txn.readOnly).Inc()
	} else {
		e.metrics.aborted(txn.readOnly).Inc()
	}

	e.live.Dec()
	e.txnWg.Done()
}
