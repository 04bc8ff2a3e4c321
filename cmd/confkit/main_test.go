package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func setupConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "server:\n  host: localhost\n  port: 8080\n"
	if err := os.WriteFile(filepath.Join(dir, "app.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func TestRunGet(t *testing.T) {
	dir := setupConfigDir(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config-dir", dir, "get", "server.host"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "localhost" {
		t.Fatalf("expected localhost, got %q", got)
	}
}

func TestRunGetFlagOutranksFile(t *testing.T) {
	dir := setupConfigDir(t)

	var stdout, stderr bytes.Buffer
	code := run([]string{"--config-dir", dir, "--set", "server.port=9999", "get", "server.port"}, &stdout, &stderr)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if got := strings.TrimSpace(stdout.String()); got != "9999" {
		t.Fatalf("expected flag value, got %q", got)
	}
}

func TestRunGetMissingKey(t *testing.T) {
	dir := setupConfigDir(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"--config-dir", dir, "get", "no.such.key"}, &stdout, &stderr); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if stdout.Len() != 0 {
		t.Fatalf("expected no output, got %q", stdout.String())
	}
}

func TestRunListAndSources(t *testing.T) {
	dir := setupConfigDir(t)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"--config-dir", dir, "list"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d (stderr: %s)", code, stderr.String())
	}
	if !strings.Contains(stdout.String(), "server.port=8080\n") {
		t.Fatalf("expected server.port in listing, got %q", stdout.String())
	}

	stdout.Reset()
	if code := run([]string{"--config-dir", dir, "sources"}, &stdout, &stderr); code != 0 {
		t.Fatalf("expected exit code 0, got %d", code)
	}
	lines := strings.Split(strings.TrimSpace(stdout.String()), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[0], "500\toverrides") {
		t.Fatalf("unexpected sources output: %q", stdout.String())
	}
}

func TestRunUsageError(t *testing.T) {
	var stdout, stderr bytes.Buffer
	if code := run([]string{"frobnicate"}, &stdout, &stderr); code != 2 {
		t.Fatalf("expected exit code 2, got %d", code)
	}
}
