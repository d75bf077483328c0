package janitor

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestSweep_RemovesOnlyStaleFiles(t *testing.T) {
	dir := t.TempDir()
	stale := writeFile(t, dir, "1_old.mp4")
	fresh := writeFile(t, dir, "2_new.mp4")

	j := New(dir, 10*time.Minute, testLogger())
	// Pin "now" far enough ahead that only the backdated file is stale.
	j.now = func() time.Time { return time.Now().Add(5 * time.Minute) }

	old := time.Now().Add(-20 * time.Minute)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	j.Sweep(nil)

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("stale file survived sweep")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Errorf("fresh file removed by sweep: %v", err)
	}
}

func TestSweep_HonorsKeepList(t *testing.T) {
	dir := t.TempDir()
	kept := writeFile(t, dir, "1_keep.mp4")

	old := time.Now().Add(-time.Hour)
	if err := os.Chtimes(kept, old, old); err != nil {
		t.Fatalf("chtimes: %v", err)
	}

	j := New(dir, 10*time.Minute, testLogger())
	j.Sweep(map[string]struct{}{kept: {}})

	if _, err := os.Stat(kept); err != nil {
		t.Errorf("kept file removed by sweep: %v", err)
	}
}

func TestSweep_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	old := time.Now().Add(-time.Hour)
	os.Chtimes(sub, old, old)

	j := New(dir, 10*time.Minute, testLogger())
	j.Sweep(nil)

	if _, err := os.Stat(sub); err != nil {
		t.Errorf("directory removed by sweep: %v", err)
	}
}

func TestSweep_MissingDirIsNoOp(t *testing.T) {
	j := New(filepath.Join(t.TempDir(), "absent"), 10*time.Minute, testLogger())
	j.Sweep(nil) // must not panic or error
}
