package safedbx

import (
	"slices"
	"sync"

	"github.com/Giulio2002/safedbx/internal/engine"
	"github.com/Giulio2002/safedbx/internal/engine/boltengine"
)

// Driver names a storage engine implementation.
type Driver string

const (
	// DriverMDBX is libmdbx through cgo. It is only available in cgo builds.
	DriverMDBX Driver = "mdbx"

	// DriverBolt is a pure-Go engine built on bbolt.
	DriverBolt Driver = "bolt"
)

var (
	driversMu sync.RWMutex
	drivers   = map[Driver]engine.Driver{
		DriverBolt: boltengine.New,
	}
)

// registerDriver makes a driver available under name and returns a
// function that removes it again.
func registerDriver(name Driver, fn engine.Driver) (unregister func()) {
	driversMu.Lock()
	drivers[name] = fn
	driversMu.Unlock()
	return func() {
		driversMu.Lock()
		delete(drivers, name)
		driversMu.Unlock()
	}
}

func lookupDriver(name Driver) (engine.Driver, bool) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	fn, ok := drivers[name]
	return fn, ok
}

// Drivers returns the names of the available drivers, sorted.
func Drivers() []Driver {
	driversMu.RLock()
	names := make([]Driver, 0, len(drivers))
	for name := range drivers {
		names = append(names, name)
	}
	driversMu.RUnlock()
	slices.Sort(names)
	return names
}

// DefaultDriver is DriverMDBX when compiled in and DriverBolt otherwise.
func DefaultDriver() Driver {
	if _, ok := lookupDriver(DriverMDBX); ok {
		return DriverMDBX
	}
	return DriverBolt
}
