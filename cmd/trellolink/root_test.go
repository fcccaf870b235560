package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
)

func runCLI(t *testing.T, environ map[string]string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&cliEnv{environ: environ, stderr: &stderr})
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func testEnviron(t *testing.T) map[string]string {
	t.Helper()
	return map[string]string{
		"TRELLO_KEY":          "key-1",
		"TRELLO_REDIRECT_URI": "http://localhost:3001/auth/callback",
		"DB_PATH":             filepath.Join(t.TempDir(), "trellolink.db"),
		"LOG_LEVEL":           "error",
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, nil, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if strings.TrimSpace(out) != "trellolink version "+version {
		t.Fatalf("unexpected version output %q", out)
	}
}

func TestMigrateCommand_AppliesToSQLiteFile(t *testing.T) {
	environ := testEnviron(t)
	out, err := runCLI(t, environ, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "migrations applied") {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := runCLI(t, environ, "migrate"); err != nil {
		t.Fatalf("second migrate should be a no-op: %v", err)
	}
}

func TestMigrateCommand_FailsWithoutTrelloKey(t *testing.T) {
	environ := testEnviron(t)
	delete(environ, "TRELLO_KEY")
	if _, err := runCLI(t, environ, "migrate"); err == nil {
		t.Fatalf("expected config validation error")
	}
}

func TestEventsCommand_PrintsEmptyList(t *testing.T) {
	out, err := runCLI(t, testEnviron(t), "events", "--limit", "5")
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	var events []map[string]any
	if err := json.Unmarshal([]byte(out), &events); err != nil {
		t.Fatalf("decode output %q: %v", out, err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events, got %d", len(events))
	}
}

func TestServeCommand_RejectsBadLogLevel(t *testing.T) {
	environ := testEnviron(t)
	environ["LOG_LEVEL"] = "loud"
	if _, err := runCLI(t, environ, "serve", "--addr", "127.0.0.1:0"); err == nil {
		t.Fatalf("expected log level error")
	}
}
