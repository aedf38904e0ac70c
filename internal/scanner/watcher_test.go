package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"musicbox/internal/library"
	"musicbox/internal/logger"
	"musicbox/internal/metadata"
	"musicbox/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testQuietPeriod = 50 * time.Millisecond

type recordingSyncer struct {
	mu      sync.Mutex
	syncs   int
	removed []string
}

func (r *recordingSyncer) Sync(context.Context) (Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.syncs++
	return Result{}, nil
}

func (r *recordingSyncer) RemoveFile(_ context.Context, path string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return true, nil
}

func (r *recordingSyncer) Supports(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

func (r *recordingSyncer) syncCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.syncs
}

func (r *recordingSyncer) removals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.removed...)
}

func TestWatcherLifecycleIsIdempotent(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	watcher := NewWatcher(t.TempDir(), &recordingSyncer{}, testQuietPeriod, logger.NewTestLogger())
	assert.False(t, watcher.Watching())

	require.NoError(t, watcher.Start())
	require.NoError(t, watcher.Start())
	assert.True(t, watcher.Watching())

	require.NoError(t, watcher.Stop())
	require.NoError(t, watcher.Stop())
	assert.False(t, watcher.Watching())

	assert.ErrorIs(t, watcher.Start(), ErrWatcherClosed)
}

func TestWatcherRequiresExistingRoot(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	watcher := NewWatcher(filepath.Join(t.TempDir(), "missing"), &recordingSyncer{}, testQuietPeriod, logger.NewTestLogger())
	require.Error(t, watcher.Start())
	assert.False(t, watcher.Watching())
}

func TestWatcherSyncsAfterFileSettles(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	root := t.TempDir()
	syncer := &recordingSyncer{}
	watcher := NewWatcher(root, syncer, testQuietPeriod, logger.NewTestLogger())
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	path := filepath.Join(root, "new.mp3")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte(strings.Repeat("x", i+1)), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "cover.txt"), []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return syncer.syncCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(4 * testQuietPeriod)
	assert.Equal(t, 1, syncer.syncCount())
	assert.Empty(t, syncer.removals())
}

func TestWatcherPicksUpNewSubdirectories(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	root := t.TempDir()
	syncer := &recordingSyncer{}
	watcher := NewWatcher(root, syncer, testQuietPeriod, logger.NewTestLogger())
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	dir := filepath.Join(root, "Artist", "Album")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.Eventually(t, func() bool { return syncer.syncCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return watcher.isWatchedDir(dir) }, 2*time.Second, 10*time.Millisecond)

	before := syncer.syncCount()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "track.mp3"), []byte("audio"), 0o644))
	require.Eventually(t, func() bool { return syncer.syncCount() > before }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherRemovesDeletedFiles(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	root := t.TempDir()
	path := filepath.Join(root, "gone.mp3")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o644))

	syncer := &recordingSyncer{}
	watcher := NewWatcher(root, syncer, testQuietPeriod, logger.NewTestLogger())
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool { return len(syncer.removals()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{path}, syncer.removals())
	assert.Zero(t, syncer.syncCount())
}

func TestWatcherWatchesSymlinkedRoot(t *testing.T) {
	defer testutil.VerifyNoLeaks(t)

	base := t.TempDir()
	target := filepath.Join(base, "real")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "Artist"), 0o755))
	link := filepath.Join(base, "music")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	syncer := &recordingSyncer{}
	watcher := NewWatcher(link, syncer, testQuietPeriod, logger.NewTestLogger())
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	canonical, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.True(t, watcher.isWatchedDir(filepath.Join(canonical, "Artist")))

	require.NoError(t, os.WriteFile(filepath.Join(target, "Artist", "new.mp3"), []byte("audio"), 0o644))
	require.Eventually(t, func() bool { return syncer.syncCount() >= 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatcherKeepsLibraryInStepWithDisk(t *testing.T) {
	defer testutil.VerifyNoLeaks(t, testutil.IgnoreDatabaseGoroutines()...)

	f := newFixture(t)
	f.extractor.set("Song1.mp3", metadata.Tags{Artist: "Artist A", Album: "Album X"})
	f.write(t, "Artist A/Album X/Song1.mp3")

	_, err := f.service.Sync(context.Background())
	require.NoError(t, err)
	require.Len(t, f.albums(t), 1)

	watcher := NewWatcher(f.service.Root(), f.service, testQuietPeriod, logger.NewTestLogger())
	require.NoError(t, watcher.Start())
	defer watcher.Stop()

	f.extractor.set("Song2.mp3", metadata.Tags{Artist: "Artist B", Album: "Album Y"})
	f.write(t, "Artist B/Album Y/Song2.mp3")
	require.Eventually(t, func() bool { return len(f.albums(t)) == 2 }, 3*time.Second, 20*time.Millisecond)

	f.remove(t, "Artist A/Album X/Song1.mp3")
	require.Eventually(t, func() bool {
		_, err := library.NewTrackRepository(f.db).GetByFileURL(context.Background(), "/music/Artist A/Album X/Song1.mp3")
		return errors.Is(err, library.ErrTrackNotFound)
	}, 3*time.Second, 20*time.Millisecond)

	albums := f.albums(t)
	require.Len(t, albums, 1)
	assert.Equal(t, "Album Y", albums[0].Title)
}
