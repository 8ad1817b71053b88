package worker

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// UploadJanitor removes staged uploads that outlived their request, e.g.
// after a crash between staging and cleanup.
type UploadJanitor struct {
	Dir      string
	Prefixes []string
	MaxAge   time.Duration
	Interval time.Duration
	Logger   *logrus.Entry

	now func() time.Time
}

func NewUploadJanitor(dir string, prefixes ...string) *UploadJanitor {
	if dir == "" {
		dir = os.TempDir()
	}
	return &UploadJanitor{
		Dir:      dir,
		Prefixes: prefixes,
		MaxAge:   time.Hour,
		Interval: 15 * time.Minute,
		Logger:   logrus.WithField("worker", "upload_janitor"),
		now:      time.Now,
	}
}

func (uj *UploadJanitor) Start(ctx context.Context) {
	uj.Logger.Info("Upload janitor started")

	ticker := time.NewTicker(uj.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			uj.Logger.Info("Upload janitor shutting down...")
			return
		case <-ticker.C:
			if _, err := uj.Sweep(); err != nil {
				uj.Logger.WithError(err).Error("Upload sweep failed")
			}
		}
	}
}

// Sweep deletes matching files older than MaxAge and returns how many it
// removed.
func (uj *UploadJanitor) Sweep() (int, error) {
	entries, err := os.ReadDir(uj.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := uj.now().Add(-uj.MaxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !uj.matches(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(uj.Dir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			uj.Logger.WithError(err).WithField("path", path).Warn("Could not remove stale upload")
			continue
		}
		removed++
	}

	if removed > 0 {
		uj.Logger.WithField("removed", removed).Info("Removed stale uploads")
	}
	return removed, nil
}

func (uj *UploadJanitor) matches(name string) bool {
	for _, p := range uj.Prefixes {
		if strings.HasPrefix(name, p+"-") {
			return true
		}
	}
	return false
}
