package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/confkit/pkg/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type reload struct {
	name string
	err  error
}

func newTestWatcher(t *testing.T, opts ...Option) (*Watcher, chan reload) {
	t.Helper()

	reloads := make(chan reload, 16)
	opts = append([]Option{
		WithDebounce(10 * time.Millisecond),
		WithReloadHook(func(name string, err error) {
			select {
			case reloads <- reload{name: name, err: err}:
			default:
			}
		}),
	}, opts...)

	w, err := New(zaptest.NewLogger(t), opts...)
	require.NoError(t, err)
	return w, reloads
}

func waitReload(t *testing.T, reloads <-chan reload) reload {
	t.Helper()
	select {
	case r := <-reloads:
		return r
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for reload")
		return reload{}
	}
}

// replaceFile swaps the file in one rename so the watcher never sees a partial write.
func replaceFile(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func TestWatcherReloadsChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: initial\n"), 0o600))

	src, err := source.NewYAMLFile(path)
	require.NoError(t, err)

	w, reloads := newTestWatcher(t)
	require.NoError(t, w.AddSources([]source.Source{src}))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	replaceFile(t, path, "mode: updated\n")

	r := waitReload(t, reloads)
	require.NoError(t, r.err)
	assert.Equal(t, src.Name(), r.name)

	v, _ := src.Value("mode")
	assert.Equal(t, "updated", v)
}

func TestWatcherKeepsPropertiesOnBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.yaml")
	require.NoError(t, os.WriteFile(path, []byte("mode: good\n"), 0o600))

	src, err := source.NewYAMLFile(path)
	require.NoError(t, err)

	w, reloads := newTestWatcher(t)
	require.NoError(t, w.AddFile(src))
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	replaceFile(t, path, "- not a mapping\n")

	r := waitReload(t, reloads)
	require.ErrorIs(t, r.err, source.ErrInvalidDocument)

	v, _ := src.Value("mode")
	assert.Equal(t, "good", v)
}

type countingRefresher struct {
	calls chan struct{}
}

func (c *countingRefresher) Name() string { return "counting" }

func (c *countingRefresher) Refresh(context.Context) error {
	select {
	case c.calls <- struct{}{}:
	default:
	}
	return nil
}

func TestWatcherPollsRefreshers(t *testing.T) {
	w, reloads := newTestWatcher(t, WithPollInterval(5*time.Millisecond))
	r := &countingRefresher{calls: make(chan struct{}, 1)}
	w.AddRefresher(r)

	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	got := waitReload(t, reloads)
	assert.Equal(t, "counting", got.name)
	assert.NoError(t, got.err)
}

func TestAddFileRejectsReaderSources(t *testing.T) {
	src, err := source.NewYAMLReader("inline", strings.NewReader("a: b\n"))
	require.NoError(t, err)

	w, _ := newTestWatcher(t)
	defer w.Stop()

	require.ErrorIs(t, w.AddFile(src), source.ErrNotReloadable)
	require.NoError(t, w.AddSources([]source.Source{src}))
}

func TestStopIsIdempotentAndStartAfterStopFails(t *testing.T) {
	w, _ := newTestWatcher(t)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))

	w.Stop()
	w.Stop()

	assert.Error(t, w.Start(context.Background()))
}

func TestWatcherExitsOnContextCancel(t *testing.T) {
	w, _ := newTestWatcher(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))

	cancel()
	w.Stop()
}
