package redisc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/pell/redisc/resp"
)

// ConnState is the dispatcher state machine. A connection moves
// Connecting → Ready → SubscriberMode → Closing → Closed; Failed is
// terminal and reachable from any non-terminal state on an
// unrecoverable I/O or protocol error.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateReady
	StateSubscriberMode
	StateClosing
	StateClosed
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateSubscriberMode:
		return "subscriber"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return "unknown"
}

func (s ConnState) terminal() bool {
	return s == StateClosed || s == StateFailed
}

const readChunkBytes = 8192

var errEmptyCommand = errors.New("redisc: empty command")

// Conn multiplexes concurrent command execution over a single ordered
// byte stream. Multiple commands may be in flight before their replies
// return (pipelining); replies complete pending requests strictly in
// the order the commands were written to the socket.
//
// Submit is safe for concurrent use. The reply queue and subscription
// maps are owned by the connection and never exposed; callers interact
// only through response slots and subscription handles.
type Conn struct {
	cfg  Config
	log  *zap.Logger
	sock io.ReadWriteCloser

	rbuf *PooledBuffer
	wbuf *PooledBuffer

	// writeMu serializes encode+write so that the order of fifo
	// entries always matches the order of bytes on the socket.
	writeMu sync.Mutex

	mu          sync.Mutex
	fifo        []*Pending
	subs        map[string]*Subscription
	psubs       map[string]*Subscription
	terminalErr error
	sockErr     error

	state atomic.Int32
	done  chan struct{}

	wg          sync.WaitGroup
	releaseOnce sync.Once
	closeOnce   sync.Once

	stats connStats
}

// NewConn wraps an already-established duplex stream (the connector
// collaborator's responsibility) in a dispatcher. ctx bounds the
// acquisition of frame buffers, which blocks when the buffer pool's
// budget is exhausted.
func NewConn(ctx context.Context, sock io.ReadWriteCloser, cfg Config) (*Conn, error) {
	cfg = cfg.withDefaults()

	pool := cfg.Pool
	if pool == nil {
		var err error
		pool, err = sharedBufferPool(cfg)
		if err != nil {
			return nil, err
		}
	}

	rbuf, err := pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	wbuf, err := pool.Acquire(ctx)
	if err != nil {
		rbuf.Release()
		return nil, err
	}

	c := &Conn{
		cfg:   cfg,
		log:   cfg.Logger,
		sock:  sock,
		rbuf:  rbuf,
		wbuf:  wbuf,
		subs:  make(map[string]*Subscription),
		psubs: make(map[string]*Subscription),
		done:  make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	c.wg.Add(1)
	go c.readLoop()

	// The read loop may already have failed the connection; do not
	// overwrite a terminal state.
	c.state.CompareAndSwap(int32(StateConnecting), int32(StateReady))
	return c, nil
}

// State reports the current dispatcher state.
func (c *Conn) State() ConnState {
	return ConnState(c.state.Load())
}

// Submit appends the command to the outbound stream and a matching
// entry to the pending-reply queue, returning the slot the caller
// waits on. It blocks while the socket write is in progress and fails
// immediately with ErrClosed once the connection is terminal.
func (c *Conn) Submit(cmd *Command) (*Pending, error) {
	return c.submit(cmd, nil)
}

// Do submits the command and waits for its reply. A server error reply
// is returned as *CommandError; the connection remains usable after it.
func (c *Conn) Do(ctx context.Context, cmd *Command) (resp.Value, error) {
	p, err := c.Submit(cmd)
	if err != nil {
		return resp.Nil, err
	}
	v, err := p.Wait(ctx)
	if err != nil {
		return resp.Nil, err
	}
	return asReply(v)
}

func (c *Conn) submit(cmd *Command, sub *Subscription) (*Pending, error) {
	if cmd == nil || len(cmd.args) == 0 {
		return nil, errEmptyCommand
	}

	p := newPending(cmd)
	p.sub = sub
	p.subKind = subscribeFamily(cmd.Name())
	if p.subKind != subNone {
		p.acks = len(cmd.args) - 1
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.submissionError(); err != nil {
		return nil, err
	}

	// A bare UNSUBSCRIBE/PUNSUBSCRIBE is acknowledged once per name
	// currently subscribed, or exactly once when there are none.
	if p.subKind != subNone && p.acks == 0 {
		c.mu.Lock()
		switch p.subKind {
		case subUnsubChannel:
			p.acks = len(c.subs)
		case subUnsubPattern:
			p.acks = len(c.psubs)
		}
		c.mu.Unlock()
		if p.acks == 0 {
			p.acks = 1
		}
	}

	if p.subKind == subChannel || p.subKind == subPattern {
		c.state.CompareAndSwap(int32(StateReady), int32(StateSubscriberMode))
	}

	c.mu.Lock()
	c.fifo = append(c.fifo, p)
	c.mu.Unlock()

	buf := c.wbuf.Buffer()
	buf.Reset()
	if err := buf.WriteCommand(cmd.args); err != nil {
		c.fail(err)
		return nil, err
	}
	if _, err := c.sock.Write(buf.Bytes()); err != nil {
		cerr := &ConnectionError{Err: err}
		c.fail(cerr)
		return nil, cerr
	}

	c.stats.commands.Add(1)
	c.stats.bytesWritten.Add(int64(buf.Len()))
	return p, nil
}

// submissionError reports why new submissions are rejected, or nil.
func (c *Conn) submissionError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.terminalErr == nil {
		return nil
	}
	if errors.Is(c.terminalErr, ErrClosed) {
		return ErrClosed
	}
	// Late submitters learn the terminal cause, but the error still
	// matches ErrClosed for uniform handling.
	return fmt.Errorf("%w: %v", ErrClosed, c.terminalErr)
}

// readLoop is the read half of the connection actor: it feeds the
// decoder and routes every complete reply, until the stream or the
// protocol fails.
func (c *Conn) readLoop() {
	defer c.wg.Done()

	dec := resp.NewDecoder(c.rbuf.Buffer())
	scratch := make([]byte, readChunkBytes)

	for {
		n, err := c.sock.Read(scratch)
		if n > 0 {
			c.stats.bytesRead.Add(int64(n))
			if ferr := dec.Feed(scratch[:n]); ferr != nil {
				c.fail(ferr)
				return
			}
			for {
				v, derr := dec.Next()
				if derr != nil {
					if errors.Is(derr, resp.ErrIncomplete) {
						break
					}
					c.fail(derr)
					return
				}
				if !c.dispatch(v) {
					return
				}
			}
		}
		if err != nil {
			c.fail(&ConnectionError{Err: err})
			return
		}
	}
}

func (c *Conn) fail(err error) {
	c.terminate(StateFailed, err)
}

// terminate performs the single transition into a terminal state:
// it fails every pending request and subscription with the cause,
// closes the socket, and schedules the frame buffers back to the pool.
// The first call wins; later calls are no-ops.
func (c *Conn) terminate(final ConnState, cause error) {
	c.mu.Lock()
	if c.terminalErr != nil {
		c.mu.Unlock()
		return
	}
	c.terminalErr = cause
	c.state.Store(int32(final))

	pending := c.fifo
	c.fifo = nil
	var subs []*Subscription
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	for _, s := range c.psubs {
		subs = append(subs, s)
	}
	c.subs = make(map[string]*Subscription)
	c.psubs = make(map[string]*Subscription)
	c.sockErr = c.sock.Close()
	c.mu.Unlock()

	close(c.done)

	for _, p := range pending {
		p.complete(resp.Nil, cause)
	}
	for _, s := range subs {
		s.finish(cause)
	}

	if final == StateFailed {
		c.log.Warn("redis connection failed",
			zap.Error(cause),
			zap.Int("failed_requests", len(pending)))
	}

	// Buffers go back to the pool once the read loop has exited and no
	// in-flight Submit is using the write buffer.
	go func() {
		c.wg.Wait()
		c.writeMu.Lock()
		defer c.writeMu.Unlock()
		c.releaseOnce.Do(func() {
			c.rbuf.Release()
			c.wbuf.Release()
		})
	}()
}

// Close shuts the connection down. Requests still pending are failed
// with ErrClosed; the call returns once the read loop has stopped.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.state.CompareAndSwap(int32(StateReady), int32(StateClosing))
		c.state.CompareAndSwap(int32(StateSubscriberMode), int32(StateClosing))
		c.terminate(StateClosed, ErrClosed)
		c.wg.Wait()
	})
	return c.sockErr
}
