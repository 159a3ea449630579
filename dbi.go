package safedbx

import "fmt"

// DBI is a database handle: an index into the environment's handle table.
type DBI uint32

// Database identifies one database of an environment. It is a small value,
// compared with ==, and is only meaningful with the Env that produced it.
// The zero Database is invalid.
type Database struct {
	dbi DBI
	env *Env
}

// DBI returns the raw handle.
func (db Database) DBI() DBI {
	return db.dbi
}

// Env returns the environment the handle belongs to.
func (db Database) Env() *Env {
	return db.env
}

// Valid returns true while the environment is open and the handle has not
// been closed.
func (db Database) Valid() bool {
	if !db.env.isOpen() {
		return false
	}
	_, ok := db.env.dbis.Load(db.dbi)
	return ok
}

// Name returns the database name; the default database has the empty name.
func (db Database) Name() string {
	if db.env == nil {
		return ""
	}
	name, _ := db.env.dbis.Load(db.dbi)
	return name
}

func (db Database) String() string {
	if db.env == nil {
		return "db(invalid)"
	}
	return fmt.Sprintf("db(%d,%s)", db.dbi, quoteName(db.Name()))
}
