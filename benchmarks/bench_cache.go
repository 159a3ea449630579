package benchmarks

import (
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/Giulio2002/safedbx"
)

// benchTables is the number of named databases each cached environment holds.
const benchTables = 8

var (
	cacheMu  sync.Mutex
	cacheDir string
	envs     = make(map[safedbx.Driver]*safedbx.Env)
)

// getCachedEnv returns an environment for the driver with benchTables named
// databases, creating it on first use. Environments live for the whole run.
func getCachedEnv(b *testing.B, d safedbx.Driver) *safedbx.Env {
	b.Helper()
	cacheMu.Lock()
	defer cacheMu.Unlock()

	if env, ok := envs[d]; ok {
		return env
	}

	if cacheDir == "" {
		dir, err := os.MkdirTemp("", "safedbx-bench")
		if err != nil {
			b.Fatal(err)
		}
		cacheDir = dir
	}

	env, err := safedbx.NewBuilder().
		SetDriver(d).
		SetMaxDBs(benchTables).
		SetMaxReaders(256).
		SetFlags(safedbx.NoMetaSync).
		Open(fmt.Sprintf("%s/%s", cacheDir, d), safedbx.DefaultMode)
	if err != nil {
		b.Fatal(err)
	}

	for i := 0; i < benchTables; i++ {
		if _, err := env.CreateDB(tableName(i), safedbx.DBDefaults); err != nil {
			env.Close()
			b.Fatal(err)
		}
	}

	envs[d] = env
	return env
}

func tableName(i int) string {
	return fmt.Sprintf("table-%02d", i)
}

// forEachDriver runs bench once per compiled-in driver.
func forEachDriver(b *testing.B, name string, bench func(*testing.B, *safedbx.Env)) {
	for _, d := range safedbx.Drivers() {
		d := d
		b.Run(name+"/"+string(d), func(b *testing.B) {
			bench(b, getCachedEnv(b, d))
		})
	}
}
