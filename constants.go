package safedbx

import "github.com/Giulio2002/safedbx/internal/engine"

// Environment flags
const (
	// EnvDefaults is the default (durable) environment mode
	EnvDefaults uint = 0

	// NoSubdir uses path as the data file itself instead of a directory
	NoSubdir = engine.NoSubdir

	// ReadOnly opens the environment without write access
	ReadOnly = engine.ReadOnly

	// WriteMap uses a writable memory map
	WriteMap = engine.WriteMap

	// NoMetaSync skips syncing the meta page on commit
	NoMetaSync = engine.NoMetaSync

	// SafeNoSync skips fsync on commit; Sync(true) flushes explicitly
	SafeNoSync = engine.SafeNoSync

	// UtterlyNoSync combines SafeNoSync and NoMetaSync
	UtterlyNoSync = SafeNoSync | NoMetaSync

	// Durable is an alias for EnvDefaults
	Durable = EnvDefaults
)

// Transaction flags
const (
	TxnReadWrite uint = 0
	TxnReadOnly       = engine.ReadOnly
)

// Database flags
const (
	// DBDefaults is the default database mode
	DBDefaults uint = 0

	// ReverseKey compares keys in reverse byte order
	ReverseKey = engine.ReverseKey

	// DupSort allows duplicate keys with sorted values
	DupSort = engine.DupSort

	// IntegerKey stores native-endian integer keys
	IntegerKey = engine.IntegerKey

	// DupFixed marks fixed-size duplicate values (with DupSort)
	DupFixed = engine.DupFixed

	// IntegerDup marks integer duplicate values (with DupSort)
	IntegerDup = engine.IntegerDup

	// ReverseDup compares duplicate values in reverse byte order
	ReverseDup = engine.ReverseDup

	// Create creates the database if it doesn't exist.
	// CreateDB always sets it.
	Create = engine.Create
)

// PersistentDBFlags masks the flags stored with a database.
const PersistentDBFlags = engine.PersistentDBFlags

// Well-known database handles
const (
	// MainDBI is the handle of the default (unnamed) database
	MainDBI = DBI(engine.MainDBI)

	// CoreDBs is the number of handles reserved by the engine
	CoreDBs = engine.CoreDBs
)

// DefaultMode is the permission mode for new environment files.
const DefaultMode = 0o644
