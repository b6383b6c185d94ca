package dispatch

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_Go(t *testing.T) {
	t.Run("should keep running after the submitter's context is cancelled", func(t *testing.T) {
		p, err := New(2)
		require.NoError(t, err)

		reqCtx, cancel := context.WithCancel(context.Background())
		release := make(chan struct{})
		result := make(chan error, 1)
		require.NoError(t, p.Go(reqCtx, "detached", func(ctx context.Context) {
			<-release
			result <- ctx.Err()
		}))

		cancel()
		close(release)

		select {
		case err := <-result:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("task did not run")
		}
		require.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("should bound tasks by the task timeout", func(t *testing.T) {
		p, err := New(1, WithTaskTimeout(20*time.Millisecond))
		require.NoError(t, err)

		result := make(chan error, 1)
		require.NoError(t, p.Go(context.Background(), "slow", func(ctx context.Context) {
			<-ctx.Done()
			result <- ctx.Err()
		}))

		select {
		case err := <-result:
			assert.ErrorIs(t, err, context.DeadlineExceeded)
		case <-time.After(time.Second):
			t.Fatal("task was not cancelled by the timeout")
		}
		require.NoError(t, p.Shutdown(context.Background()))
	})

	t.Run("should survive a panicking task", func(t *testing.T) {
		p, err := New(1)
		require.NoError(t, err)

		require.NoError(t, p.Go(context.Background(), "panics", func(ctx context.Context) {
			panic("boom")
		}))
		var ran atomic.Bool
		require.NoError(t, p.Go(context.Background(), "after", func(ctx context.Context) {
			ran.Store(true)
		}))

		require.NoError(t, p.Shutdown(context.Background()))
		assert.True(t, ran.Load())
	})
}

func TestPool_Shutdown(t *testing.T) {
	t.Run("should wait for submitted tasks", func(t *testing.T) {
		p, err := New(4)
		require.NoError(t, err)

		var done atomic.Int32
		for i := 0; i < 10; i++ {
			require.NoError(t, p.Go(context.Background(), "work", func(ctx context.Context) {
				time.Sleep(5 * time.Millisecond)
				done.Add(1)
			}))
		}

		require.NoError(t, p.Shutdown(context.Background()))
		assert.Equal(t, int32(10), done.Load())
	})

	t.Run("should reject tasks after shutdown", func(t *testing.T) {
		p, err := New(1)
		require.NoError(t, err)
		require.NoError(t, p.Shutdown(context.Background()))

		err = p.Go(context.Background(), "late", func(ctx context.Context) {})
		assert.ErrorIs(t, err, ErrClosed)
	})

	t.Run("should give up when its context ends", func(t *testing.T) {
		p, err := New(1)
		require.NoError(t, err)

		release := make(chan struct{})
		defer close(release)
		require.NoError(t, p.Go(context.Background(), "stuck", func(ctx context.Context) {
			<-release
		}))

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, p.Shutdown(ctx), context.DeadlineExceeded)
	})
}

func TestNew(t *testing.T) {
	_, err := New(0)
	assert.Error(t, err)
}
