//go:build cgo

package safedbx

import "github.com/Giulio2002/safedbx/internal/engine/mdbxengine"

func init() {
	registerDriver(DriverMDBX, mdbxengine.New)
}
