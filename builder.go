package safedbx

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"tlog.app/go/errors"

	"github.com/Giulio2002/safedbx/internal/engine"
)

// EnvironmentBuilder collects environment settings. It is a value: every
// setter returns a modified copy, so one builder can open any number of
// independent environments.
//
// Limits that are never set keep the engine's defaults.
type EnvironmentBuilder struct {
	flags uint

	maxReaders    uint32
	hasMaxReaders bool
	maxDBs        uint32
	hasMaxDBs     bool
	mapSize       int64
	hasMapSize    bool

	driver Driver
	logger *slog.Logger
}

// NewBuilder returns a builder with no settings.
func NewBuilder() EnvironmentBuilder {
	return EnvironmentBuilder{}
}

// SetFlags sets the environment flags.
func (b EnvironmentBuilder) SetFlags(flags uint) EnvironmentBuilder {
	b.flags = flags
	return b
}

// SetMaxReaders sets the size of the reader slot table.
func (b EnvironmentBuilder) SetMaxReaders(readers uint32) EnvironmentBuilder {
	b.maxReaders, b.hasMaxReaders = readers, true
	return b
}

// SetMaxDBs sets the maximum number of named databases. Named databases
// cannot be opened or created unless this is positive.
func (b EnvironmentBuilder) SetMaxDBs(dbs uint32) EnvironmentBuilder {
	b.maxDBs, b.hasMaxDBs = dbs, true
	return b
}

// SetMapSize sets the maximum size of the memory map in bytes. A size
// below the data already committed is raised by the engine.
func (b EnvironmentBuilder) SetMapSize(size int64) EnvironmentBuilder {
	b.mapSize, b.hasMapSize = size, true
	return b
}

// SetDriver selects the storage engine. The default is DefaultDriver().
func (b EnvironmentBuilder) SetDriver(d Driver) EnvironmentBuilder {
	b.driver = d
	return b
}

// SetLogger sets the logger for environments opened by the builder.
func (b EnvironmentBuilder) SetLogger(logger *slog.Logger) EnvironmentBuilder {
	b.logger = logger
	return b
}

// Flags returns the environment flags.
func (b EnvironmentBuilder) Flags() uint { return b.flags }

// MaxReaders returns the reader slot limit and whether it was set.
func (b EnvironmentBuilder) MaxReaders() (uint32, bool) { return b.maxReaders, b.hasMaxReaders }

// MaxDBs returns the named database limit and whether it was set.
func (b EnvironmentBuilder) MaxDBs() (uint32, bool) { return b.maxDBs, b.hasMaxDBs }

// MapSize returns the map size and whether it was set.
func (b EnvironmentBuilder) MapSize() (int64, bool) { return b.mapSize, b.hasMapSize }

// Logger returns the configured logger, or nil.
func (b EnvironmentBuilder) Logger() *slog.Logger { return b.logger }

// Driver returns the selected driver.
func (b EnvironmentBuilder) Driver() Driver {
	if b.driver == "" {
		return DefaultDriver()
	}
	return b.driver
}

// Open opens the environment at path. Unless ReadOnly or NoSubdir is set,
// the directory is created with mode (plus owner rwx) if missing; mode is
// also used for the engine's files.
//
// Opening a missing path read-only fails with ErrNoEntry. Opening an
// existing environment read-only succeeds; write transactions on it then
// fail with ErrPermissionDenied.
func (b EnvironmentBuilder) Open(path string, mode os.FileMode) (*Env, error) {
	name := b.Driver()
	newNative, ok := lookupDriver(name)
	if !ok {
		e := opError("open", ErrInvalidArgument)
		e.Err = fmt.Errorf("unknown driver %q", name)
		return nil, e
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if b.flags&(ReadOnly|NoSubdir) == 0 {
		if err := os.MkdirAll(path, mode|0o700); err != nil {
			return nil, fromOS("open", errors.Wrap(err, "create environment directory"))
		}
	}

	native, err := newNative()
	if err != nil {
		return nil, fromEngine("open", err)
	}

	if err := b.configure(native); err != nil {
		native.Close()
		return nil, err
	}
	if err := native.Open(path, b.flags, mode); err != nil {
		native.Close()
		return nil, fromEngine("open", err)
	}

	env := newEnv(native, path, b.flags, name, logger)
	logger.Debug("environment opened", "path", path, "driver", name, "flags", b.flags)
	return env, nil
}

// configure applies the limits that were set: readers, databases, map size.
func (b EnvironmentBuilder) configure(native engine.Env) error {
	if b.hasMaxReaders {
		if err := native.SetMaxReaders(b.maxReaders); err != nil {
			return fromEngine("set max readers", err)
		}
	}
	if b.hasMaxDBs {
		if err := native.SetMaxDBs(b.maxDBs); err != nil {
			return fromEngine("set max dbs", err)
		}
	}
	if b.hasMapSize {
		if err := native.SetMapSize(b.mapSize); err != nil {
			return fromEngine("set map size", err)
		}
	}
	return nil
}
