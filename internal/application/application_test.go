package application

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/confkit/internal/config"
	"github.com/eugenenazirov/confkit/pkg/confkit"
	"github.com/eugenenazirov/confkit/pkg/source"
)

func TestNewResolvesSourcesByOrdinal(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "app.yaml"), "app:\n  name: from-file\n  mode: file\n")

	cfg := baseTestConfig(":8085", dir)
	cfg.FlagProperties = map[string]string{"app.mode": "flag"}

	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	if got, _ := app.Config().Value("app.name"); got != "from-file" {
		t.Fatalf("expected file value, got %q", got)
	}
	if got, _ := app.Config().Value("app.mode"); got != "flag" {
		t.Fatalf("expected flag to outrank file, got %q", got)
	}

	if err := app.overrides.Set("app.mode", "override"); err != nil {
		t.Fatalf("set override: %v", err)
	}
	if got, _ := app.Config().Value("app.mode"); got != "override" {
		t.Fatalf("expected override to outrank flag, got %q", got)
	}

	if confkit.GetConfig() != app.Config() {
		t.Fatalf("expected app configuration to be registered process-wide")
	}
	if app.server == nil || app.router == nil || app.handler == nil {
		t.Fatalf("expected server, router, and handler to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewWithDatabaseSource(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "props.db")

	seed, err := source.OpenSQL(ctx, dbPath)
	if err != nil {
		t.Fatalf("open seed db: %v", err)
	}
	if err := seed.Set(ctx, "db.only", "stored"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_ = seed.Close()

	cfg := baseTestConfig(":0", t.TempDir())
	cfg.DatabasePath = dbPath

	app, err := New(ctx, cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(func() { _ = app.Close() })

	got, err := app.Config().Value("db.only")
	if err != nil || got != "stored" {
		t.Fatalf("expected database value, got %q (%v)", got, err)
	}
}

func TestNewReturnsErrorForBrokenYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.yaml"), "- not: a mapping\n")

	if _, err := New(context.Background(), baseTestConfig(":0", dir), zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for invalid YAML source")
	}
}

func TestStartWatchesFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.yaml")
	writeFile(t, path, "feature: off\n")

	cfg := baseTestConfig("127.0.0.1:0", dir)
	cfg.Watch = true

	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = app.server.Close()
		_ = app.Close()
	})
	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start returned error: %v", err)
	}

	tmp := path + ".tmp"
	writeFile(t, tmp, "feature: on\n")
	if err := os.Rename(tmp, path); err != nil {
		t.Fatalf("rename: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if v, _ := app.Config().Value("feature"); v == "on" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected watcher to reload the changed file")
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090", "")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestBuildRootHandler(t *testing.T) {
	apiInvoked := false
	handler := BuildRootHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiInvoked = true
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("serves index", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
	})

	t.Run("returns not found for unknown paths", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unknown", nil))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected status 404, got %d", rec.Code)
		}
	})

	t.Run("forwards api traffic", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
		if rec.Code != http.StatusNoContent || !apiInvoked {
			t.Fatalf("expected API handler to be invoked, got %d", rec.Code)
		}
	})
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func baseTestConfig(port, configDir string) config.Config {
	return config.Config{
		Port:                 port,
		ConfigDirs:           []string{configDir},
		Watch:                false,
		WatchDebounce:        10 * time.Millisecond,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
		FlagProperties:       map[string]string{},
	}
}
