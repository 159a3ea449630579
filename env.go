package safedbx

import (
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/Giulio2002/safedbx/internal/engine"
)

// envSignature is the magic number for open environments
const envSignature uint32 = 0x454E5658 // "ENVX"

// slowLockWait is the write-lock wait above which a warning is logged.
const slowLockWait = time.Second

// Env is an open storage environment.
//
// An Env is safe for concurrent use. Any number of read transactions may be
// active at once; write transactions are serialized by an environment-wide
// write lock, so BeginWriteTxn blocks while another write transaction is
// active. Database handle resolution (OpenDB, CreateDB, CloseDB) is
// serialized separately.
//
// Lock order is write lock, then handle table. A goroutine holding a write
// transaction must not call CreateDB, and a goroutine holding any
// transaction must not call Close: both wait for the transaction forever.
type Env struct {
	signature uint32 // guarded by mu; zeroed by Close
	native    engine.Env
	path      string
	flags     uint
	driver    Driver
	log       *slog.Logger

	mu sync.RWMutex

	// Close waits for every live transaction before releasing native.
	txnWg sync.WaitGroup

	writeMu sync.Mutex // held by the active write transaction
	dbiMu   sync.Mutex // serializes native handle-table access

	dbis    *xsync.MapOf[DBI, string]
	readers *xsync.Counter
	live    *xsync.Counter
	writer  atomic.Bool
	txnSeq  atomic.Uint64

	metrics *envMetrics
}

func newEnv(native engine.Env, path string, flags uint, driver Driver, log *slog.Logger) *Env {
	e := &Env{
		signature: envSignature,
		native:    native,
		path:      path,
		flags:     flags,
		driver:    driver,
		log:       log.With("path", path),
		dbis:      xsync.NewMapOf[DBI, string](),
		readers:   xsync.NewCounter(),
		live:      xsync.NewCounter(),
	}
	e.dbis.Store(MainDBI, "")
	e.metrics = newEnvMetrics(e)
	return e
}

// valid returns true if the environment is open. Callers hold mu.
func (e *Env) valid() bool {
	return e != nil && e.signature == envSignature
}

func (e *Env) isOpen() bool {
	if e == nil {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.valid()
}

// enter registers a new transaction. It fails once Close has started.
func (e *Env) enter(op string) error {
	if e == nil {
		return opError(op, ErrBadEnv)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.valid() {
		return opError(op, ErrBadEnv)
	}
	e.txnWg.Add(1)
	e.live.Inc()
	return nil
}

// Close closes the environment. It waits for every live transaction to
// finish, then releases the engine handle. Further calls are no-ops, and
// every later operation fails with ErrBadEnv.
func (e *Env) Close() {
	if e == nil {
		return
	}

	e.mu.Lock()
	if !e.valid() {
		e.mu.Unlock()
		return
	}
	e.signature = 0
	e.mu.Unlock()

	e.txnWg.Wait()

	e.native.Close()
	e.dbis.Clear()
	e.log.Info("environment closed")
}

// Path returns the path the environment was opened at.
func (e *Env) Path() string {
	return e.path
}

// Flags returns the flags the environment was opened with.
func (e *Env) Flags() uint {
	return e.flags
}

// Driver returns the storage engine driving the environment.
func (e *Env) Driver() Driver {
	return e.driver
}

// BeginReadTxn begins a read-only transaction.
func (e *Env) BeginReadTxn() (*Txn, error) {
	return e.beginTxn(true)
}

// BeginWriteTxn begins a read-write transaction, blocking until no other
// write transaction is active. The returned transaction must be finished
// on the goroutine that began it.
func (e *Env) BeginWriteTxn() (*Txn, error) {
	return e.beginTxn(false)
}

// BeginTxn begins a transaction; TxnReadOnly in flags selects a read-only
// one.
func (e *Env) BeginTxn(flags uint) (*Txn, error) {
	return e.beginTxn(flags&TxnReadOnly != 0)
}

func (e *Env) beginTxn(readOnly bool) (*Txn, error) {
	op := "begin write txn"
	if readOnly {
		op = "begin read txn"
	}
	if err := e.enter(op); err != nil {
		return nil, err
	}

	if !readOnly {
		start := time.Now()
		e.writeMu.Lock()
		e.metrics.lockWait.UpdateDuration(start)
		if wait := time.Since(start); wait > slowLockWait {
			e.log.Warn("slow write lock acquisition", "wait", wait)
		}
	}

	native, err := e.native.BeginTxn(readOnly)
	if err != nil {
		if !readOnly {
			e.writeMu.Unlock()
		}
		e.live.Dec()
		e.txnWg.Done()
		return nil, fromEngine(op, err)
	}

	if readOnly {
		e.readers.Inc()
	} else {
		e.writer.Store(true)
	}
	e.metrics.begun(readOnly).Inc()

	return &Txn{
		env:      e,
		native:   native,
		id:       e.txnSeq.Add(1),
		readOnly: readOnly,
	}, nil
}

// OpenDB resolves an existing database. The empty name is the default
// database, which always exists. A named database that does not exist
// yields ErrNotFound; naming one on an environment without max DBs yields
// ErrDBsFull.
func (e *Env) OpenDB(name string) (Database, error) {
	return e.resolveDB("open db", name, 0, true)
}

// CreateDB resolves a database, creating it if absent. If it exists, the
// flags are added to its stored flags; with the mdbx driver an existing
// database must already carry them, or ErrIncompatible is returned.
// CreateDB begins a write transaction and so waits for any active one.
func (e *Env) CreateDB(name string, flags uint) (Database, error) {
	return e.resolveDB("create db", name, flags|Create, false)
}

func (e *Env) resolveDB(op, name string, flags uint, readOnly bool) (Database, error) {
	txn, err := e.beginTxn(readOnly)
	if err != nil {
		return Database{}, err
	}

	e.dbiMu.Lock()
	defer e.dbiMu.Unlock()

	dbi, err := txn.native.OpenDBI(name, flags)
	if err != nil {
		txn.Abort()
		return Database{}, fromEngine(op+" "+quoteName(name), err)
	}
	if err := txn.Commit(); err != nil {
		return Database{}, err
	}

	db := Database{dbi: DBI(dbi), env: e}
	e.dbis.Store(db.dbi, name)
	if readOnly {
		e.metrics.dbiOpen.Inc()
	} else {
		e.metrics.dbiCreate.Inc()
	}
	e.log.Debug("database resolved", "name", name, "dbi", db.dbi, "create", !readOnly)
	return db, nil
}

// GetDBFlags returns the persistent flags of db.
func (e *Env) GetDBFlags(db Database) (uint, error) {
	txn, err := e.BeginReadTxn()
	if err != nil {
		return 0, err
	}
	defer txn.Abort()

	flags, err := txn.Flags(db)
	if err != nil {
		return 0, err
	}
	return flags, txn.Commit()
}

// Sync flushes buffered writes to disk. With force the flush is synchronous
// even if the environment defers syncing. It is a no-op on read-only
// environments.
func (e *Env) Sync(force bool) error {
	if e == nil {
		return opError("sync", ErrBadEnv)
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.valid() {
		return opError("sync", ErrBadEnv)
	}
	if e.flags&ReadOnly != 0 {
		return nil
	}
	return fromEngine("sync", e.native.Sync(force))
}

// CloseDB releases a database handle.
//
// This is rarely needed: handles are released by Close. The caller must
// ensure no transaction uses db, and none will; the engine does not check.
// Closing the default database, a foreign handle or a handle on a closed
// environment does nothing.
func (e *Env) CloseDB(db Database) {
	if e == nil || db.env != e || db.dbi < CoreDBs {
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.valid() {
		return
	}

	e.dbiMu.Lock()
	defer e.dbiMu.Unlock()

	e.native.CloseDBI(engine.DBI(db.dbi))
	e.dbis.Delete(db.dbi)
	e.log.Debug("database closed", "dbi", db.dbi)
}

// Databases returns the handles resolved so far, ordered by DBI.
func (e *Env) Databases() []Database {
	var dbs []Database
	e.dbis.Range(func(dbi DBI, _ string) bool {
		dbs = append(dbs, Database{dbi: dbi, env: e})
		return true
	})
	slices.SortFunc(dbs, func(a, b Database) int {
		return int(a.dbi) - int(b.dbi)
	})
	return dbs
}

// EnvStat is a snapshot of environment activity.
type EnvStat struct {
	Readers      int64 // active read transactions
	WriterActive bool  // a write transaction holds the write lock
	Handles      int   // resolved database handles
	LiveTxns     int64 // active transactions of either kind
}

// Stat returns current activity counters.
func (e *Env) Stat() EnvStat {
	return EnvStat{
		Readers:      e.readers.Value(),
		WriterActive: e.writer.Load(),
		Handles:      e.dbis.Size(),
		LiveTxns:     e.live.Value(),
	}
}

func quoteName(name string) string {
	if name == "" {
		return "<default>"
	}
	return `"` + name + `"`
}
