package safedbx

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Giulio2002/safedbx/internal/engine"
)

// recorder is a fake engine that logs every native call.
type recorder struct {
	mu        sync.Mutex
	calls     []string
	failOn    string // call prefix that fails with EINVAL
	commitErr error
	closes    int
}

func (r *recorder) call(format string, args ...any) error {
	c := fmt.Sprintf(format, args...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	if r.failOn != "" && strings.HasPrefix(c, r.failOn) {
		return engine.Wrap(c, engine.EINVAL, errors.New("rejected"))
	}
	return nil
}

func (r *recorder) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakeEnv struct{ r *recorder }

func (f *fakeEnv) SetMaxReaders(n uint32) error { return f.r.call("maxreaders %d", n) }
func (f *fakeEnv) SetMaxDBs(n uint32) error     { return f.r.call("maxdbs %d", n) }
func (f *fakeEnv) SetMapSize(n int64) error     { return f.r.call("mapsize %d", n) }

func (f *fakeEnv) Open(path string, flags uint, mode os.FileMode) error {
	return f.r.call("open %#x %v", flags, mode)
}

func (f *fakeEnv) BeginTxn(readOnly bool) (engine.Txn, error) {
	if err := f.r.call("begin ro=%v", readOnly); err != nil {
		return nil, err
	}
	return &fakeTxn{r: f.r}, nil
}

func (f *fakeEnv) Sync(force bool) error { return f.r.call("sync %v", force) }
func (f *fakeEnv) CloseDBI(dbi engine.DBI) {
	_ = f.r.call("closedbi %d", dbi)
}

func (f *fakeEnv) Close() {
	_ = f.r.call("close")
	f.r.mu.Lock()
	f.r.closes++
	f.r.mu.Unlock()
}

type fakeTxn struct{ r *recorder }

func (f *fakeTxn) OpenDBI(name string, flags uint) (engine.DBI, error) {
	if err := f.r.call("opendbi %q", name); err != nil {
		return 0, err
	}
	if name == "" {
		return engine.MainDBI, nil
	}
	return engine.CoreDBs, nil
}

func (f *fakeTxn) DBIFlags(engine.DBI) (uint, error) { return 0, nil }

func (f *fakeTxn) Commit() error {
	_ = f.r.call("commit")
	return f.r.commitErr
}

func (f *fakeTxn) Abort() { _ = f.r.call("abort") }

// useRecorder registers a fresh recording driver for the test.
func useRecorder(t *testing.T) (*recorder, Driver) {
	t.Helper()
	r := &recorder{}
	name := Driver("recording")
	unregister := registerDriver(name, func() (engine.Env, error) {
		return &fakeEnv{r: r}, nil
	})
	t.Cleanup(unregister)
	return r, name
}

func TestBuilderIsValue(t *testing.T) {
	base := NewBuilder().SetMaxDBs(4)
	wider := base.SetMaxDBs(8).SetFlags(NoSubdir)

	n, ok := base.MaxDBs()
	assert.True(t, ok)
	assert.EqualValues(t, 4, n)
	assert.Zero(t, base.Flags())

	n, _ = wider.MaxDBs()
	assert.EqualValues(t, 8, n)
	assert.Equal(t, NoSubdir, wider.Flags())

	_, ok = base.MaxReaders()
	assert.False(t, ok, "unset limits stay unset")
	_, ok = base.MapSize()
	assert.False(t, ok)
	assert.Equal(t, DefaultDriver(), base.Driver())
	assert.Nil(t, base.Logger())
}

func TestBuilderOrder(t *testing.T) {
	r, name := useRecorder(t)

	env, err := NewBuilder().
		SetDriver(name).
		SetMapSize(1 << 20).
		SetMaxDBs(3).
		SetMaxReaders(7).
		SetFlags(SafeNoSync).
		Open(t.TempDir(), 0o600)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"maxreaders 7",
		"maxdbs 3",
		"mapsize 1048576",
		fmt.Sprintf("open %#x -rw-------", SafeNoSync),
	}, r.log())

	env.Close()
	env.Close()
	assert.Equal(t, 1, r.closes, "native handle released exactly once")
}

func TestBuilderUnsetLimits(t *testing.T) {
	r, name := useRecorder(t)

	env, err := NewBuilder().SetDriver(name).Open(t.TempDir(), DefaultMode)
	require.NoError(t, err)
	defer env.Close()

	assert.Equal(t, []string{"open 0x0 -rw-r--r--"}, r.log())
}

func TestBuilderCleanupOnFailure(t *testing.T) {
	for _, step := range []string{"maxreaders", "maxdbs", "mapsize", "open"} {
		t.Run(step, func(t *testing.T) {
			r, name := useRecorder(t)
			r.failOn = step

			env, err := NewBuilder().
				SetDriver(name).
				SetMaxReaders(1).
				SetMaxDBs(1).
				SetMapSize(1).
				Open(t.TempDir(), DefaultMode)
			require.Error(t, err)
			assert.Nil(t, env)
			assert.Equal(t, ErrInvalidArgument, Code(err))
			assert.True(t, IsConfig(err))

			calls := r.log()
			assert.True(t, strings.HasPrefix(calls[len(calls)-2], step), "failed at %v", calls)
			assert.Equal(t, "close", calls[len(calls)-1])
			assert.Equal(t, 1, r.closes)
		})
	}
}

func TestBuilderUnknownDriver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	_, err := NewBuilder().SetDriver("rocks").Open(path, DefaultMode)
	require.Error(t, err)
	assert.Equal(t, ErrInvalidArgument, Code(err))
	assert.Contains(t, err.Error(), `unknown driver "rocks"`)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "nothing is created for an unknown driver")
}

func TestBuilderMkdirFailure(t *testing.T) {
	r, name := useRecorder(t)

	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))

	_, err := NewBuilder().SetDriver(name).Open(filepath.Join(file, "db"), DefaultMode)
	require.Error(t, err)
	assert.NotEqual(t, ErrProblem, Code(err))
	assert.Contains(t, err.Error(), "create environment directory")
	assert.Empty(t, r.log(), "no native handle is created")
}

func TestBuilderReuse(t *testing.T) {
	forEachDriver(t, func(t *testing.T, d Driver) {
		b := testBuilder(d).SetMaxDBs(2)

		a := openTestEnv(t, b, t.TempDir())
		c := openTestEnv(t, b, t.TempDir())

		_, err := a.CreateDB("only-in-a", 0)
		require.NoError(t, err)

		_, err = c.OpenDB("only-in-a")
		assert.True(t, IsNotFound(err), "environments are independent")
	})
}

func TestBuilderLogger(t *testing.T) {
	_, name := useRecorder(t)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	env, err := NewBuilder().SetDriver(name).SetMaxDBs(1).SetLogger(logger).Open(t.TempDir(), DefaultMode)
	require.NoError(t, err)
	_, err = env.CreateDB("users", 0)
	require.NoError(t, err)
	env.Close()

	out := buf.String()
	assert.Contains(t, out, "environment opened")
	assert.Contains(t, out, "database resolved")
	assert.Contains(t, out, "environment closed")
}
