package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minescope/minescope/internal/logger"
	"github.com/minescope/minescope/internal/probes"
)

func TestWatcherInitialLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alpha":"s3cret"}`), 0o600))

	store := probes.NewCredentialStore()
	cw := NewCredentialsWatcher(path, store, logger.New("error", false), 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer cw.Stop()

	secret, ok := store.Secret("alpha")
	assert.True(t, ok)
	assert.Equal(t, "s3cret", secret)
}

func TestWatcherMissingFileDeniesAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")
	store := probes.NewCredentialStore()
	store.Replace(map[string]string{"stale": "x"})

	cw := NewCredentialsWatcher(path, store, logger.New("error", false), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer cw.Stop()

	assert.Equal(t, 0, store.Count())
}

func TestWatcherReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alpha":"one"}`), 0o600))

	store := probes.NewCredentialStore()
	cw := NewCredentialsWatcher(path, store, logger.New("error", false), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer cw.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{"alpha":"two","beta":"three"}`), 0o600))
	// Force the mtime forward in case the filesystem's resolution is
	// coarser than the rewrite gap.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	require.Eventually(t, func() bool {
		s, _ := store.Secret("alpha")
		return s == "two" && store.Count() == 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherKeepsMapOnParseFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probes.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"alpha":"one"}`), 0o600))

	store := probes.NewCredentialStore()
	cw := NewCredentialsWatcher(path, store, logger.New("error", false), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, cw.Start(ctx))
	defer cw.Stop()

	require.NoError(t, os.WriteFile(path, []byte(`{broken`), 0o600))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	// Give the watcher time to notice the bad write.
	time.Sleep(100 * time.Millisecond)

	secret, ok := store.Secret("alpha")
	assert.True(t, ok, "a bad write must not drop the working map")
	assert.Equal(t, "one", secret)
}
