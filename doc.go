// Package safedbx is a lifecycle- and concurrency-safe layer over an
// embedded, memory-mapped, transactional key-value engine.
//
// The engine is libmdbx (through cgo) or, in builds without cgo, a pure-Go
// engine built on bbolt. Both expose the same C-style contract: handles
// that must be configured before open, a handle table that is not safe
// for concurrent mutation, and at most one write transaction at a time.
// safedbx enforces that contract instead of leaving it to callers:
//   - EnvironmentBuilder is an immutable value; Open releases the native
//     handle on every failure path
//   - write transactions are serialized by an environment-wide lock
//   - database handle resolution is serialized by a separate mutex
//   - Close waits for live transactions before releasing the engine, and
//     every later call fails with ErrBadEnv instead of touching freed memory
//
// Basic usage:
//
//	env, err := safedbx.NewBuilder().
//	    SetMaxDBs(16).
//	    SetMapSize(1 << 30).
//	    Open("/path/to/db", safedbx.DefaultMode)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	users, err := env.CreateDB("users", safedbx.DupSort)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = env.View(func(txn *safedbx.Txn) error {
//	    flags, err := txn.Flags(users)
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(flags&safedbx.DupSort != 0)
//	    return nil
//	})
//
// Data access (cursors, get/put) is the engine's business and is not part
// of this package.
package safedbx
