// Package scheduler runs the controller's background loops.
package scheduler

import (
	"context"
	"os"
	"time"

	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/probes"
)

// DefaultPollInterval is how often the credentials file's mtime is checked.
const DefaultPollInterval = time.Second

// CredentialsWatcher reloads the probe credentials file whenever its
// modification time changes. The store is swapped only after a full
// successful parse, so a half-written or invalid file never clobbers the
// working map.
type CredentialsWatcher struct {
	path     string
	store    *probes.CredentialStore
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}

	lastMod time.Time
}

// NewCredentialsWatcher creates a watcher over the given file.
func NewCredentialsWatcher(path string, store *probes.CredentialStore, log logger.Logger, interval time.Duration) *CredentialsWatcher {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &CredentialsWatcher{
		path:     path,
		store:    store,
		logger:   log,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start loads the file once, then polls for changes until Stop or context
// cancellation. A missing file at startup is tolerated: the store stays
// empty and all auth is denied until the file appears.
func (cw *CredentialsWatcher) Start(ctx context.Context) error {
	cw.reload()

	ticker := time.NewTicker(cw.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				cw.poll()
			case <-cw.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the watcher.
func (cw *CredentialsWatcher) Stop() {
	close(cw.stopCh)
}

// poll reloads only when the file's mtime moved.
func (cw *CredentialsWatcher) poll() {
	info, err := os.Stat(cw.path)
	if err != nil {
		if !cw.lastMod.IsZero() {
			cw.logger.Warnf("credentials file vanished: %v", err)
			cw.lastMod = time.Time{}
			cw.store.Replace(map[string]string{})
		}
		return
	}
	if info.ModTime().Equal(cw.lastMod) {
		return
	}
	cw.reload()
}

func (cw *CredentialsWatcher) reload() {
	info, err := os.Stat(cw.path)
	if err != nil {
		cw.logger.Warnf("credentials file unavailable, denying all probe auth: %v", err)
		cw.store.Replace(map[string]string{})
		cw.lastMod = time.Time{}
		return
	}

	if err := cw.store.LoadFile(cw.path); err != nil {
		// Keep the previous map; a bad write must not drop the fleet.
		cw.logger.Error("failed to reload credentials, keeping previous map",
			logger.Error(err))
		cw.lastMod = info.ModTime()
		return
	}
	cw.lastMod = info.ModTime()
	cw.logger.Info("probe credentials loaded",
		logger.String("file", cw.path),
		logger.Int("probes", cw.store.Count()))
}
