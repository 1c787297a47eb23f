package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunThenInspectSegments(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "segments.db")

	rootCmd.SetArgs([]string{"run", "--cycles", "120", "--agents", "6", "--regions", "2", "--seed", "5",
		"--db", db, "--stats-dir", dir, "--stats-every", "10"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("run: %v", err)
	}
	logs, err := filepath.Glob(filepath.Join(dir, "cycles", "cycles-*.jsonl.zst"))
	if err != nil || len(logs) == 0 {
		t.Fatalf("no cycle log written: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	defer rootCmd.SetOut(nil)
	rootCmd.SetArgs([]string{"segments", "--db", db})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("segments: %v", err)
	}
	if !strings.HasPrefix(out.String(), "SLOT") {
		t.Fatalf("unexpected listing:\n%s", out.String())
	}
}

func TestSegmentsRequiresExistingDB(t *testing.T) {
	rootCmd.SetArgs([]string{"segments", "--db", filepath.Join(t.TempDir(), "missing.db")})
	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected an error for a missing store")
	}
}
