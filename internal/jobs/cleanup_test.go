package jobs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	calls atomic.Int32
	err   error
}

func (s *countingStore) DeleteExpired(ctx context.Context) (int64, error) {
	s.calls.Add(1)
	return 2, s.err
}

func TestCleanupJob(t *testing.T) {
	t.Run("creates job with correct interval", func(t *testing.T) {
		job := NewCleanupJob(nil, "", time.Minute, 5*time.Minute)

		assert.NotNil(t, job)
		assert.Equal(t, 5*time.Minute, job.interval)
	})

	t.Run("runs cleanup on start", func(t *testing.T) {
		sessions := &countingStore{}
		job := NewCleanupJob(sessions, "", time.Minute, time.Hour)

		job.Start()
		require.Eventually(t, func() bool { return sessions.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("runs on every tick", func(t *testing.T) {
		sessions := &countingStore{}
		job := NewCleanupJob(sessions, "", time.Minute, 10*time.Millisecond)

		job.Start()
		require.Eventually(t, func() bool { return sessions.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
		job.Stop()
	})

	t.Run("store failures do not stop the sweep", func(t *testing.T) {
		dir := t.TempDir()
		stale := filepath.Join(dir, "recording_20240501_100000_a.ogg")
		require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))

		job := NewCleanupJob(&countingStore{err: errors.New("boom")}, dir, time.Minute, time.Hour)
		job.now = func() time.Time { return time.Now().Add(time.Hour) }

		job.cleanup()

		_, err := os.Stat(stale)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("keeps fresh artifacts", func(t *testing.T) {
		dir := t.TempDir()
		fresh := filepath.Join(dir, "recording_20240501_100000_b.ogg")
		require.NoError(t, os.WriteFile(fresh, []byte("x"), 0o644))

		job := NewCleanupJob(nil, dir, 30*time.Minute, time.Hour)
		job.cleanup()

		_, err := os.Stat(fresh)
		assert.NoError(t, err)
	})
}
