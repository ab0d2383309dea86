package redisc

import (
	"context"
	"sync"

	"github.com/jackc/puddle/v2"

	"github.com/pell/redisc/resp"
)

// BufferPool is a shared, size-bounded pool of frame buffers capping
// the total framing memory across connections. Acquire blocks when the
// outstanding budget is exhausted, which is the backpressure signal for
// new connections.
//
// Each connection holds exactly two buffers (read and write) for its
// lifetime, so the pool must be sized to at least twice the expected
// number of concurrent connections or Acquire will starve.
type BufferPool struct {
	pool     *puddle.Pool[*resp.Buffer]
	maxFrame int
}

// NewBufferPool creates a pool of up to maxBuffers buffers, each with
// the given initial capacity and growing on demand up to maxFrameBytes.
func NewBufferPool(maxBuffers int32, initialBytes, maxFrameBytes int) (*BufferPool, error) {
	if maxFrameBytes <= 0 {
		maxFrameBytes = resp.DefaultMaxFrameBytes
	}
	p := &BufferPool{maxFrame: maxFrameBytes}
	pool, err := puddle.NewPool(&puddle.Config[*resp.Buffer]{
		Constructor: func(ctx context.Context) (*resp.Buffer, error) {
			return resp.NewBuffer(initialBytes, maxFrameBytes), nil
		},
		Destructor: func(*resp.Buffer) {},
		MaxSize:    maxBuffers,
	})
	if err != nil {
		return nil, err
	}
	p.pool = pool
	return p, nil
}

// Acquire returns a buffer, blocking until one is available or ctx is
// done.
func (p *BufferPool) Acquire(ctx context.Context) (*PooledBuffer, error) {
	res, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	return &PooledBuffer{res: res}, nil
}

// MaxFrameBytes reports the frame ceiling of the pool's buffers.
func (p *BufferPool) MaxFrameBytes() int { return p.maxFrame }

// Close destroys all idle buffers and marks the pool closed. Buffers
// still held by connections are destroyed as they are released.
func (p *BufferPool) Close() { p.pool.Close() }

// Stats returns a snapshot of pool usage.
func (p *BufferPool) Stats() BufferPoolStats {
	s := p.pool.Stat()
	return BufferPoolStats{
		TotalBuffers:    s.TotalResources(),
		IdleBuffers:     s.IdleResources(),
		AcquiredBuffers: s.AcquiredResources(),
		AcquireCount:    s.AcquireCount(),
		AcquireWaits:    s.EmptyAcquireCount(),
	}
}

// BufferPoolStats is a point-in-time snapshot of a BufferPool.
type BufferPoolStats struct {
	TotalBuffers    int32
	IdleBuffers     int32
	AcquiredBuffers int32
	AcquireCount    int64
	// AcquireWaits counts acquires that had to wait because the
	// budget was exhausted (backpressure events).
	AcquireWaits int64
}

// PooledBuffer is a buffer checked out of a BufferPool. Release returns
// it to the pool; the buffer must not be used afterwards.
type PooledBuffer struct {
	res  *puddle.Resource[*resp.Buffer]
	once sync.Once
}

// Buffer returns the underlying frame buffer.
func (b *PooledBuffer) Buffer() *resp.Buffer { return b.res.Value() }

// Release resets the buffer and returns it to the pool.
func (b *PooledBuffer) Release() {
	b.once.Do(func() {
		b.res.Value().Reset()
		b.res.Release()
	})
}

var (
	sharedPoolOnce sync.Once
	sharedPool     *BufferPool
)

// sharedBufferPool lazily builds the process-wide default pool, sized
// from the first caller's config.
func sharedBufferPool(cfg Config) (*BufferPool, error) {
	var err error
	sharedPoolOnce.Do(func() {
		sharedPool, err = NewBufferPool(cfg.MaxPooledBuffers, cfg.InitialBufferBytes, cfg.MaxFrameBytes)
	})
	if err != nil {
		return nil, err
	}
	return sharedPool, nil
}
