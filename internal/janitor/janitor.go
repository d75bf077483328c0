package janitor

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Janitor removes stale files from the working directory. Sweeps are
// best-effort: individual failures are logged and ignored, a sweep never
// returns an error.
type Janitor struct {
	dir       string
	retention time.Duration
	logger    *slog.Logger

	now func() time.Time
}

// New creates a janitor for dir, deleting files older than retention.
func New(dir string, retention time.Duration, logger *slog.Logger) *Janitor {
	return &Janitor{
		dir:       dir,
		retention: retention,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep deletes every file in the working directory older than the retention
// window, except paths present in keep.
func (j *Janitor) Sweep(keep map[string]struct{}) {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			j.logger.Warn("sweep: read dir", "dir", j.dir, "error", err)
		}
		return
	}

	cutoff := j.now().Add(-j.retention)
	removed := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(j.dir, entry.Name())
		if _, ok := keep[path]; ok {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			j.logger.Warn("sweep: remove", "path", path, "error", err)
			continue
		}
		removed++
	}

	if removed > 0 {
		j.logger.Info("swept stale files", "dir", j.dir, "removed", removed)
	}
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (j *Janitor) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep(nil)
		}
	}
}
