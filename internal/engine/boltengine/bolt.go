// Package boltengine is a pure-Go engine driver built on go.etcd.io/bbolt.
//
// It emulates the libmdbx handle contract on top of bbolt buckets: every
// named database is a bucket, the main database is a reserved bucket, and
// persistent database flags live in a second reserved bucket. DBIs are
// allocated from an in-memory handle table the same way libmdbx allocates
// them: slot 1 is the main database, named databases start at slot 2, and
// at most max-dbs named handles may exist at once.
package boltengine

import (
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"
	berrors "go.etcd.io/bbolt/errors"

	"github.com/Giulio2002/safedbx/internal/engine"
	"github.com/Giulio2002/safedbx/internal/fastmap"
)

const (
	// FileName is the data file name inside an environment directory.
	FileName = "data.bolt"

	// DefaultMaxReaders matches the libmdbx default reader table size.
	DefaultMaxReaders = 126

	// DefaultMapSize is the initial mapping when no map size is set. bbolt
	// remaps under an exclusive lock that waits for every reader, so the
	// mapping starts large enough that small environments never remap.
	DefaultMapSize = 64 << 20

	// lockTimeout bounds the wait for bbolt's file lock. Another handle
	// holding the file open surfaces as Busy instead of hanging.
	lockTimeout = time.Second
)

// Reserved bucket names. User database names may not start with NUL.
var (
	mainBucket  = []byte("\x00main")
	flagsBucket = []byte("\x00flags")
)

type dbiInfo struct {
	name string
	key  []byte
}

type env struct {
	db         *bolt.DB
	flags      uint
	maxReaders uint32
	maxDBs     uint32
	mapSize    int64

	readers atomic.Int32

	mu    sync.RWMutex // guards table
	table fastmap.Map[*dbiInfo]
}

// New returns an unopened bbolt-backed environment handle.
func New() (engine.Env, error) {
	return &env{maxReaders: DefaultMaxReaders, mapSize: DefaultMapSize}, nil
}

func (e *env) SetMaxReaders(readers uint32) error {
	if e.db != nil || readers < 1 {
		return engine.Errorf("env set maxreaders", engine.EINVAL)
	}
	e.maxReaders = readers
	return nil
}

func (e *env) SetMaxDBs(dbs uint32) error {
	if e.db != nil {
		return engine.Errorf("env set maxdbs", engine.EINVAL)
	}
	e.maxDBs = dbs
	return nil
}

func (e *env) SetMapSize(size int64) error {
	if e.db != nil || size < 0 {
		return engine.Errorf("env set mapsize", engine.EINVAL)
	}
	if size == 0 {
		size = DefaultMapSize
	}
	e.mapSize = size
	return nil
}

func (e *env) Open(path string, flags uint, mode os.FileMode) error {
	if e.db != nil {
		return engine.Errorf("env open", engine.EINVAL)
	}

	file := path
	if flags&engine.NoSubdir == 0 {
		file = filepath.Join(path, FileName)
	}

	// bbolt never shrinks below the file size, so a map size smaller
	// than the committed data is clamped rather than rejected.
	db, err := bolt.Open(file, mode, &bolt.Options{
		Timeout:         lockTimeout,
		ReadOnly:        flags&engine.ReadOnly != 0,
		NoSync:          flags&engine.SafeNoSync != 0,
		InitialMmapSize: int(e.mapSize),
	})
	if err != nil {
		return wrap("env open", err)
	}

	if flags&engine.ReadOnly == 0 {
		err = db.Update(func(tx *bolt.Tx) error {
			if _, err := tx.CreateBucketIfNotExists(mainBucket); err != nil {
				return err
			}
			_, err := tx.CreateBucketIfNotExists(flagsBucket)
			return err
		})
		if err != nil {
			db.Close()
			return wrap("env open", err)
		}
	}

	e.db = db
	e.flags = flags
	e.table.Set(uint32(engine.MainDBI), &dbiInfo{key: mainBucket})
	return nil
}

func (e *env) BeginTxn(readOnly bool) (engine.Txn, error) {
	if e.db == nil {
		return nil, engine.Errorf("txn begin", engine.EINVAL)
	}
	if readOnly {
		if n := e.readers.Add(1); n > int32(e.maxReaders) {
			e.readers.Add(-1)
			return nil, engine.Errorf("txn begin", engine.ReadersFull)
		}
	}

	tx, err := e.db.Begin(!readOnly)
	if err != nil {
		if readOnly {
			e.readers.Add(-1)
		}
		return nil, wrap("txn begin", err)
	}
	return &txn{env: e, tx: tx, readOnly: readOnly}, nil
}

func (e *env) Sync(force bool) error {
	if e.db == nil {
		return engine.Errorf("env sync", engine.EINVAL)
	}
	if e.flags&engine.ReadOnly != 0 {
		return nil
	}
	if !force && e.flags&engine.SafeNoSync != 0 {
		return nil
	}
	return wrap("env sync", e.db.Sync())
}

func (e *env) CloseDBI(dbi engine.DBI) {
	if dbi < engine.CoreDBs {
		return
	}
	e.mu.Lock()
	e.table.Delete(uint32(dbi))
	e.mu.Unlock()
}

func (e *env) Close() {
	if e.db == nil {
		return
	}
	e.db.Close()
	e.db = nil

	e.mu.Lock()
	e.table.Clear()
	e.mu.Unlock()
}

// acquire returns the handle for name, allocating a table slot if the name
// has none yet. fresh reports whether the slot was allocated by this call.
func (e *env) acquire(name string) (dbi engine.DBI, fresh bool, err error) {
	if name == "" {
		return engine.MainDBI, false, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	found := false
	e.table.ForEach(func(k uint32, info *dbiInfo) {
		if !found && k >= engine.CoreDBs && info.name == name {
			dbi, found = engine.DBI(k), true
		}
	})
	if found {
		return dbi, false, nil
	}

	limit := uint32(engine.CoreDBs) + e.maxDBs
	for i := uint32(engine.CoreDBs); i < limit; i++ {
		if _, used := e.table.Get(i); !used {
			e.table.Set(i, &dbiInfo{name: name, key: []byte(name)})
			return engine.DBI(i), true, nil
		}
	}
	return 0, false, engine.Errorf("dbi open", engine.DBsFull)
}

func (e *env) lookup(dbi engine.DBI) (*dbiInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table.Get(uint32(dbi))
}

type txn struct {
	env      *env
	tx       *bolt.Tx
	readOnly bool
	done     bool

	// handles first allocated by this transaction; released on abort
	opened []engine.DBI
}

func (t *txn) OpenDBI(name string, flags uint) (engine.DBI, error) {
	if t.done {
		return 0, engine.Errorf("dbi open", engine.BadTxn)
	}
	if strings.HasPrefix(name, "\x00") {
		return 0, engine.Errorf("dbi open", engine.EINVAL)
	}
	if name != "" && t.env.maxDBs == 0 {
		return 0, engine.Errorf("dbi open", engine.DBsFull)
	}

	key := mainBucket
	if name != "" {
		key = []byte(name)
		if t.tx.Bucket(key) == nil {
			if flags&engine.Create == 0 {
				return 0, engine.Errorf("dbi open", engine.NotFound)
			}
			if t.readOnly {
				return 0, engine.Errorf("dbi open", engine.EACCES)
			}
			if _, err := t.tx.CreateBucket(key); err != nil {
				return 0, wrap("dbi open", err)
			}
		}
	}

	if flags&engine.Create != 0 {
		if err := t.widenFlags(key, flags&engine.PersistentDBFlags); err != nil {
			return 0, err
		}
	}

	dbi, fresh, err := t.env.acquire(name)
	if err != nil {
		return 0, err
	}
	if fresh {
		t.opened = append(t.opened, dbi)
	}
	return dbi, nil
}

// widenFlags ORs flags into the stored flags of the table under key.
func (t *txn) widenFlags(key []byte, flags uint) error {
	stored := t.flagsOf(key)
	if flags&^stored == 0 {
		return nil
	}
	if t.readOnly {
		return engine.Errorf("dbi open", engine.EACCES)
	}
	fb, err := t.tx.CreateBucketIfNotExists(flagsBucket)
	if err != nil {
		return wrap("dbi open", err)
	}
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(stored|flags))
	return wrap("dbi open", fb.Put(key, buf[:]))
}

func (t *txn) flagsOf(key []byte) uint {
	fb := t.tx.Bucket(flagsBucket)
	if fb == nil {
		return 0
	}
	v := fb.Get(key)
	if len(v) != 4 {
		return 0
	}
	return uint(binary.BigEndian.Uint32(v))
}

func (t *txn) DBIFlags(dbi engine.DBI) (uint, error) {
	if t.done {
		return 0, engine.Errorf("dbi flags", engine.BadTxn)
	}
	info, ok := t.env.lookup(dbi)
	if !ok {
		return 0, engine.Errorf("dbi flags", engine.BadDBI)
	}
	if dbi != engine.MainDBI && t.tx.Bucket(info.key) == nil {
		// table not visible in this snapshot
		return 0, engine.Errorf("dbi flags", engine.BadDBI)
	}
	return t.flagsOf(info.key), nil
}

func (t *txn) Commit() error {
	if t.done {
		return engine.Errorf("txn commit", engine.BadTxn)
	}
	t.done = true

	if t.readOnly {
		defer t.env.readers.Add(-1)
		return wrap("txn commit", t.tx.Rollback())
	}
	// bbolt rolls the transaction back itself when Commit fails.
	if err := t.tx.Commit(); err != nil {
		t.release()
		return wrap("txn commit", err)
	}
	return nil
}

func (t *txn) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.tx.Rollback()
	t.release()
	if t.readOnly {
		t.env.readers.Add(-1)
	}
}

func (t *txn) release() {
	for _, dbi := range t.opened {
		t.env.CloseDBI(dbi)
	}
	t.opened = nil
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return engine.Wrap(op, statusOf(err), err)
}

func statusOf(err error) engine.Status {
	switch {
	case errors.Is(err, berrors.ErrDatabaseReadOnly), errors.Is(err, berrors.ErrTxNotWritable):
		return engine.EACCES
	case errors.Is(err, berrors.ErrTimeout):
		return engine.Busy
	case errors.Is(err, berrors.ErrTxClosed), errors.Is(err, berrors.ErrDatabaseNotOpen):
		return engine.BadTxn
	case errors.Is(err, berrors.ErrInvalid):
		return engine.Invalid
	case errors.Is(err, berrors.ErrChecksum):
		return engine.Corrupted
	case errors.Is(err, berrors.ErrVersionMismatch):
		return engine.VersionMismatch
	case errors.Is(err, berrors.ErrBucketNameRequired):
		return engine.EINVAL
	case errors.Is(err, berrors.ErrIncompatibleValue):
		return engine.Incompatible
	case errors.Is(err, fs.ErrNotExist):
		return engine.ENOENT
	case errors.Is(err, fs.ErrPermission):
		return engine.EACCES
	case errors.Is(err, syscall.ENOSPC):
		return engine.ENOSPC
	case errors.Is(err, syscall.EROFS):
		return engine.EROFS
	}
	return engine.Problem
}
