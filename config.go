package safedbx

import (
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"tlog.app/go/errors"
)

// EnvPrefix prefixes environment variables read by LoadConfig, e.g.
// SAFEDBX_MAX_DBS=16.
const EnvPrefix = "SAFEDBX_"

// Config holds environment settings loaded from a file and the process
// environment.
//
//	driver: bolt
//	read_only: false
//	max_dbs: 16
//	map_size: 1GiB
type Config struct {
	Driver     Driver `koanf:"driver"`
	ReadOnly   bool   `koanf:"read_only"`
	NoSubdir   bool   `koanf:"no_subdir"`
	WriteMap   bool   `koanf:"write_map"`
	NoMetaSync bool   `koanf:"no_meta_sync"`
	SafeNoSync bool   `koanf:"safe_no_sync"`
	MaxReaders uint32 `koanf:"max_readers"`
	MaxDBs     uint32 `koanf:"max_dbs"`
	MapSize    int64  `koanf:"-"` // bytes; the source accepts "64MiB" and the like

	hasMaxReaders bool
	hasMaxDBs     bool
	hasMapSize    bool
}

// LoadConfig loads defaults, then the YAML file at path (skipped if path is
// empty), then SAFEDBX_* environment variables, each overriding the last.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"driver": string(DefaultDriver()),
	}, "."), nil); err != nil {
		return Config{}, errors.Wrap(err, "load defaults")
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, errors.Wrap(err, "read config file %v", path)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return Config{}, errors.Wrap(err, "load env vars")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, errors.Wrap(err, "decode config")
	}

	cfg.hasMaxReaders = k.Exists("max_readers")
	cfg.hasMaxDBs = k.Exists("max_dbs")
	if k.Exists("map_size") {
		size, err := humanize.ParseBytes(k.String("map_size"))
		if err != nil {
			return Config{}, errors.Wrap(err, "parse map_size")
		}
		cfg.MapSize, cfg.hasMapSize = int64(size), true
	}
	return cfg, nil
}

// Flags returns the environment flags the config selects.
func (c Config) Flags() uint {
	var flags uint
	if c.ReadOnly {
		flags |= ReadOnly
	}
	if c.NoSubdir {
		flags |= NoSubdir
	}
	if c.WriteMap {
		flags |= WriteMap
	}
	if c.NoMetaSync {
		flags |= NoMetaSync
	}
	if c.SafeNoSync {
		flags |= SafeNoSync
	}
	return flags
}

// Builder returns a builder with the config applied. Limits absent from
// every source are left unset.
func (c Config) Builder() EnvironmentBuilder {
	b := NewBuilder().SetFlags(c.Flags()).SetDriver(c.Driver)
	if c.hasMaxReaders {
		b = b.SetMaxReaders(c.MaxReaders)
	}
	if c.hasMaxDBs {
		b = b.SetMaxDBs(c.MaxDBs)
	}
	if c.hasMapSize {
		b = b.SetMapSize(c.MapSize)
	}
	return b
}
