package pipeline

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStaging(t *testing.T) *StagingStore {
	t.Helper()
	s, err := NewStagingStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return s
}

func TestStagingStore_StageAndRelease(t *testing.T) {
	s := newStaging(t)
	content := []byte("\x00\x00\x00\x18ftypmp42\x00\x00\x00\x00mp42isom")

	sf, err := s.Stage(context.Background(), bytes.NewReader(content), "video/mp4; codecs=avc1")
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), sf.SizeBytes)
	assert.Equal(t, "video/mp4", sf.DeclaredMimeType)
	assert.Equal(t, "video/mp4", sf.DetectedMimeType)
	assert.Equal(t, s.Dir(), filepath.Dir(sf.LocalPath))

	got, err := os.ReadFile(sf.LocalPath)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	s.Release(sf)
	_, err = os.Stat(sf.LocalPath)
	assert.True(t, os.IsNotExist(err))

	// second release and release of nil are no-ops
	s.Release(sf)
	s.Release(nil)
}

func TestStagingStore_ReleaseAfterExternalRemoval(t *testing.T) {
	s := newStaging(t)
	sf, err := s.Stage(context.Background(), strings.NewReader("data"), "video/mp4")
	require.NoError(t, err)
	require.NoError(t, os.Remove(sf.LocalPath))
	assert.NotPanics(t, func() { s.Release(sf) })
}

type failingReader struct{ after int }

func (f *failingReader) Read(p []byte) (int, error) {
	if f.after <= 0 {
		return 0, errors.New("client went away")
	}
	n := min(len(p), f.after)
	f.after -= n
	return n, nil
}

func TestStagingStore_ReadFailureRemovesPartialFile(t *testing.T) {
	s := newStaging(t)
	_, err := s.Stage(context.Background(), &failingReader{after: 1024}, "video/mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIOFailure)

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStagingStore_CancelledContext(t *testing.T) {
	s := newStaging(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Stage(ctx, strings.NewReader("data"), "video/mp4")
	assert.ErrorIs(t, err, ErrIOFailure)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStagingStore_LimitReaderRejectsOversize(t *testing.T) {
	s := newStaging(t)
	r := newLimitReader(bytes.NewReader(make([]byte, 2048)), 1024)
	_, err := s.Stage(context.Background(), r, "video/mp4")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.True(t, IsAdmission(err))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLimitReader_AcceptsExactlyMax(t *testing.T) {
	r := newLimitReader(bytes.NewReader(make([]byte, 1024)), 1024)
	n, err := io.Copy(io.Discard, r)
	require.NoError(t, err)
	assert.Equal(t, int64(1024), n)
}

func TestStagingStore_ConcurrentStagesNeverCollide(t *testing.T) {
	s := newStaging(t)
	const n = 16
	paths := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		i := i
		go func() {
			defer wg.Done()
			sf, err := s.Stage(context.Background(), strings.NewReader("same name"), "video/mp4")
			if assert.NoError(t, err) {
				paths[i] = sf.LocalPath
			}
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		assert.False(t, seen[p], "duplicate staging path %s", p)
		seen[p] = true
	}
}

func TestStagingStore_SweepStale(t *testing.T) {
	s := newStaging(t)
	old, err := s.Stage(context.Background(), strings.NewReader("old"), "video/mp4")
	require.NoError(t, err)
	fresh, err := s.Stage(context.Background(), strings.NewReader("fresh"), "video/mp4")
	require.NoError(t, err)
	unrelated := filepath.Join(s.Dir(), "keep.txt")
	require.NoError(t, os.WriteFile(unrelated, []byte("x"), 0o600))

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old.LocalPath, past, past))
	require.NoError(t, os.Chtimes(unrelated, past, past))

	removed, err := s.SweepStale(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = os.Stat(old.LocalPath)
	assert.True(t, os.IsNotExist(err))
	assert.FileExists(t, fresh.LocalPath)
	assert.FileExists(t, unrelated)
}

func TestCleanupCoordinator_GuardReleasesOnce(t *testing.T) {
	s := newStaging(t)
	c := NewCleanupCoordinator(s, zerolog.Nop())

	sf, err := s.Stage(context.Background(), strings.NewReader("payload"), "video/mp4")
	require.NoError(t, err)

	release := c.Guard(sf)
	release()
	assert.NoFileExists(t, sf.LocalPath)

	// a new file at the same path must survive a second release
	require.NoError(t, os.WriteFile(sf.LocalPath, []byte("other"), 0o600))
	release()
	assert.FileExists(t, sf.LocalPath)
}
