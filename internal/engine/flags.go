package engine

// Flag bits shared by all drivers. The values are the libmdbx ones so the
// mdbx driver can pass them through untouched.
const (
	// Environment flags.
	NoSubdir        uint = 0x00004000
	SafeNoSync      uint = 0x00010000
	ReadOnly        uint = 0x00020000
	NoMetaSync      uint = 0x00040000
	WriteMap        uint = 0x00080000
	NoStickyThreads uint = 0x00200000

	// Database flags.
	ReverseKey uint = 0x02
	DupSort    uint = 0x04
	IntegerKey uint = 0x08
	DupFixed   uint = 0x10
	IntegerDup uint = 0x20
	ReverseDup uint = 0x40
	Create     uint = 0x40000
	DBAccede   uint = 0x40000000

	// PersistentDBFlags are the database flags stored with a table.
	PersistentDBFlags = ReverseKey | DupSort | IntegerKey | DupFixed | IntegerDup | ReverseDup
)
