package tap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/oguidomingos/datagem2/pkg/common/logger"
	"github.com/sirupsen/logrus"
)

func testLog() *logrus.Entry {
	return logrus.NewEntry(logger.Log)
}

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "fake-tap")
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("failed to write tap script: %v", err)
	}
	return path
}

func writeEmptyConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestRunnerCapturesStreamAndState(t *testing.T) {
	dir := t.TempDir()
	configPath := writeEmptyConfig(t, dir)

	script := writeScript(t, dir, `#!/bin/sh
echo '{"type":"SCHEMA","stream":"orders","schema":{}}'
echo '{"type":"RECORD","stream":"orders","record":{"id":1}}'
echo '{"type":"RECORD","stream":"orders","record":{"id":2}}'
echo 'this is not a protocol line'
echo '{"type":"STATE","value":{"bookmarks":{"orders":"early"}}}'
echo '{"type":"RECORD","stream":"customers","record":{"id":9}}'
echo '{"type":"STATE","value":{"bookmarks":{"orders":"final"}}}'
echo 'INFO fetching page 2' >&2
`)

	result, err := NewRunner(0, testLog()).Run(context.Background(), script, configPath, "", "")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if len(result.Lines) != 7 {
		t.Fatalf("expected 7 stdout lines, got %d", len(result.Lines))
	}
	if result.Records != 3 {
		t.Fatalf("expected 3 records observed, got %d", result.Records)
	}
	if string(result.LastState) != `{"bookmarks":{"orders":"final"}}` {
		t.Fatalf("last state not captured verbatim: %s", result.LastState)
	}
	if len(result.Stderr) != 1 || result.Stderr[0] != "INFO fetching page 2" {
		t.Fatalf("stderr not captured: %v", result.Stderr)
	}
}

func TestRunnerAttachesStateOnlyWhenFileExists(t *testing.T) {
	dir := t.TempDir()
	configPath := writeEmptyConfig(t, dir)
	statePath := filepath.Join(dir, "state.json")

	script := writeScript(t, dir, `#!/bin/sh
printf '{"type":"RECORD","stream":"argv","record":{"args":"%s"}}\n' "$*"
`)

	runner := NewRunner(0, testLog())

	result, err := runner.Run(context.Background(), script, configPath, "", statePath)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if strings.Contains(result.Lines[0], "--state") {
		t.Fatalf("state flag attached without a checkpoint file: %s", result.Lines[0])
	}

	if err := os.WriteFile(statePath, []byte(`{"bookmarks":{}}`), 0o644); err != nil {
		t.Fatalf("failed to write checkpoint: %v", err)
	}

	result, err = runner.Run(context.Background(), script, configPath, "", statePath)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if !strings.Contains(result.Lines[0], "--state") {
		t.Fatalf("state flag missing despite checkpoint file: %s", result.Lines[0])
	}
	if !strings.Contains(result.Lines[0], "--config") {
		t.Fatalf("config flag missing: %s", result.Lines[0])
	}
}

func TestRunnerNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	configPath := writeEmptyConfig(t, dir)

	script := writeScript(t, dir, `#!/bin/sh
echo '{"type":"RECORD","stream":"orders","record":{"id":1}}'
echo 'ERROR API returned 401' >&2
echo 'ERROR giving up' >&2
exit 2
`)

	_, err := NewRunner(0, testLog()).Run(context.Background(), script, configPath, "", "")
	if !IsExecError(err) {
		t.Fatalf("expected exec error, got %v", err)
	}

	var execErr ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected ExecError, got %T", err)
	}
	if execErr.ExitCode != 2 {
		t.Fatalf("expected exit code 2, got %d", execErr.ExitCode)
	}
	if !strings.Contains(execErr.Stderr, "API returned 401") || !strings.Contains(execErr.Stderr, "giving up") {
		t.Fatalf("stderr not carried in error: %q", execErr.Stderr)
	}
}

func TestRunnerMissingConfig(t *testing.T) {
	_, err := NewRunner(0, testLog()).Run(context.Background(), "/bin/true", filepath.Join(t.TempDir(), "absent.json"), "", "")
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatalf("expected config-not-found, got %v", err)
	}
}

func TestRunnerMissingCatalog(t *testing.T) {
	dir := t.TempDir()
	configPath := writeEmptyConfig(t, dir)

	_, err := NewRunner(0, testLog()).Run(context.Background(), "/bin/true", configPath, filepath.Join(dir, "absent-catalog.json"), "")
	if !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("expected catalog-not-found, got %v", err)
	}
}

func TestRunnerTimeout(t *testing.T) {
	dir := t.TempDir()
	configPath := writeEmptyConfig(t, dir)

	script := writeScript(t, dir, `#!/bin/sh
sleep 30
`)

	start := time.Now()
	_, err := NewRunner(200*time.Millisecond, testLog()).Run(context.Background(), script, configPath, "", "")
	if !IsExecError(err) {
		t.Fatalf("expected exec error after timeout, got %v", err)
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("timeout not mentioned: %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatal("timeout was not enforced")
	}
}
