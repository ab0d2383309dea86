package redisc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBufferPoolAcquireRelease(t *testing.T) {
	pool, err := NewBufferPool(2, 64, 1024)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.Equal(t, 1024, pool.MaxFrameBytes())

	ctx := testContext(t)

	b1, err := pool.Acquire(ctx)
	require.NoError(t, err)
	b2, err := pool.Acquire(ctx)
	require.NoError(t, err)

	stats := pool.Stats()
	require.Equal(t, int32(2), stats.AcquiredBuffers)
	require.Equal(t, int32(0), stats.IdleBuffers)

	b1.Release()
	b2.Release()

	stats = pool.Stats()
	require.Equal(t, int32(0), stats.AcquiredBuffers)
	require.Equal(t, int32(2), stats.IdleBuffers)
}

func TestBufferPoolBackpressure(t *testing.T) {
	pool, err := NewBufferPool(1, 64, 1024)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	held, err := pool.Acquire(testContext(t))
	require.NoError(t, err)

	// The budget is spent: the next acquire must block until a buffer
	// comes back.
	short, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(short)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	done := make(chan *PooledBuffer, 1)
	go func() {
		b, err := pool.Acquire(context.Background())
		if err != nil {
			done <- nil
			return
		}
		done <- b
	}()

	time.Sleep(20 * time.Millisecond)
	held.Release()

	select {
	case b := <-done:
		require.NotNil(t, b)
		b.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("blocked acquire never resumed after release")
	}

	require.GreaterOrEqual(t, pool.Stats().AcquireWaits, int64(1))
}

func TestBufferPoolReleaseIdempotent(t *testing.T) {
	pool, err := NewBufferPool(1, 64, 1024)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	b, err := pool.Acquire(testContext(t))
	require.NoError(t, err)
	b.Release()
	b.Release()

	require.Equal(t, int32(0), pool.Stats().AcquiredBuffers)
}

func TestBufferPoolReleaseResetsBuffer(t *testing.T) {
	pool, err := NewBufferPool(1, 64, 1024)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	ctx := testContext(t)

	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, b.Buffer().Write([]byte("leftovers")))
	b.Release()

	b, err = pool.Acquire(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, b.Buffer().Len())
	b.Release()
}
