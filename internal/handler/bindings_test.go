package handler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindingTracker(t *testing.T) {
	t.Run("allows one binding per session", func(t *testing.T) {
		tracker := NewBindingTracker()

		release, err := tracker.Acquire("s-1", func() {})
		require.NoError(t, err)

		_, err = tracker.Acquire("s-1", func() {})
		assert.ErrorIs(t, err, ErrAlreadyBound)

		_, err = tracker.Acquire("s-2", func() {})
		assert.NoError(t, err)
		assert.Equal(t, 2, tracker.Len())

		release()
		release()
		assert.Equal(t, 1, tracker.Len())

		_, err = tracker.Acquire("s-1", func() {})
		assert.NoError(t, err)
	})

	t.Run("close all cancels and wait drains", func(t *testing.T) {
		tracker := NewBindingTracker()
		ctx, cancel := context.WithCancel(context.Background())
		release, err := tracker.Acquire("s-1", cancel)
		require.NoError(t, err)

		go func() {
			<-ctx.Done()
			release()
		}()
		tracker.CloseAll()

		waitCtx, waitCancel := context.WithTimeout(context.Background(), time.Second)
		defer waitCancel()
		assert.NoError(t, tracker.Wait(waitCtx))
		assert.Zero(t, tracker.Len())
	})

	t.Run("wait honours its context", func(t *testing.T) {
		tracker := NewBindingTracker()
		_, err := tracker.Acquire("s-1", func() {})
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, tracker.Wait(ctx), context.DeadlineExceeded)
	})
}
