package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdoutBytes, _ := io.ReadAll(stdoutR)
	stderrBytes, _ := io.ReadAll(stderrR)

	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdoutBytes), string(stderrBytes)
}

func writeTestConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
service:
  tick_interval: 30s
storage:
  path: ./test.db
`
	if err := os.WriteFile(path, []byte(yaml), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRunConfigCheckValid(t *testing.T) {
	path := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Config OK") {
		t.Fatalf("stdout missing Config OK: %s", stdout)
	}
	if !strings.Contains(stdout, "no checksums present") {
		t.Fatalf("stdout should note missing checksums: %s", stdout)
	}
}

func TestRunConfigCheckInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("service:\n  tick_interval: -5s\nstorage:\n  path: ./x.db\n"), 0600); err != nil {
		t.Fatal(err)
	}

	code, _, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code == 0 {
		t.Fatal("expected nonzero exit for invalid config")
	}
	if !strings.Contains(stderr, "tick_interval") {
		t.Fatalf("stderr missing cause: %s", stderr)
	}
}

func TestRunConfigLockThenCheck(t *testing.T) {
	path := writeTestConfig(t)

	code, stdout, stderr := captureOutputWithExitCode(t, func() int {
		return runConfigLock([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("lock exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, ".checksums") {
		t.Fatalf("stdout missing checksums path: %s", stdout)
	}

	code, stdout, stderr = captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code != 0 {
		t.Fatalf("check exit code = %d, stderr: %s", code, stderr)
	}
	if !strings.Contains(stdout, "Config integrity: verified") {
		t.Fatalf("stdout missing integrity confirmation: %s", stdout)
	}

	// Tamper and expect failure.
	if err := os.WriteFile(path, []byte("service:\n  tick_interval: 45s\nstorage:\n  path: ./test.db\n"), 0600); err != nil {
		t.Fatal(err)
	}
	code, _, stderr = captureOutputWithExitCode(t, func() int {
		return runConfigCheck([]string{"--config", path})
	})
	if code == 0 {
		t.Fatal("expected nonzero exit after config modification")
	}
	if !strings.Contains(stderr, "hash mismatch") {
		t.Fatalf("stderr missing hash mismatch: %s", stderr)
	}
}

func TestDiscoverBundles(t *testing.T) {
	dir := t.TempDir()

	manifest := `
name: crm-sync
version: 1.0.0
recurring_jobs:
  - name: refresh
    schedule: "0 * * * *"
`
	if err := os.WriteFile(filepath.Join(dir, "crm-sync.yaml"), []byte(manifest), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("not a manifest"), 0600); err != nil {
		t.Fatal(err)
	}

	registry, err := discoverBundles(dir)
	if err != nil {
		t.Fatalf("discoverBundles: %v", err)
	}
	if registry.Len() != 1 {
		t.Fatalf("registry.Len() = %d, want 1", registry.Len())
	}
	h, ok := registry.Get("crm-sync")
	if !ok {
		t.Fatal("crm-sync not registered")
	}
	if h.Version() != "1.0.0" {
		t.Fatalf("version = %q, want 1.0.0", h.Version())
	}
	if jobs := h.RecurringJobs(); len(jobs) != 1 || jobs[0].Name != "refresh" {
		t.Fatalf("unexpected jobs: %+v", h.RecurringJobs())
	}
}

func TestDiscoverBundlesMissingDir(t *testing.T) {
	registry, err := discoverBundles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing dir should not error: %v", err)
	}
	if registry.Len() != 0 {
		t.Fatalf("registry.Len() = %d, want 0", registry.Len())
	}
}

func TestDiscoverBundlesBadManifest(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: only-a-name\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := discoverBundles(dir); err == nil {
		t.Fatal("expected error for manifest missing version")
	}
}
