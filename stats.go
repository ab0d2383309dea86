package redisc

import "sync/atomic"

// connStats is the per-connection counter set, updated with atomics so
// Stats can snapshot without touching the dispatcher's locks.
type connStats struct {
	commands      atomic.Int64
	replies       atomic.Int64
	pushes        atomic.Int64
	droppedPushes atomic.Int64
	bytesRead     atomic.Int64
	bytesWritten  atomic.Int64
}

// ConnStats is a point-in-time snapshot of a connection's counters.
type ConnStats struct {
	// Commands fully written to the socket.
	Commands int64
	// Replies matched to a pending request.
	Replies int64
	// Pushes delivered to a subscription handle.
	Pushes int64
	// DroppedPushes arrived for a channel with no local handle.
	DroppedPushes int64
	BytesRead     int64
	BytesWritten  int64
	State         ConnState
}

// Stats returns a snapshot of the connection counters and state.
func (c *Conn) Stats() ConnStats {
	return ConnStats{
		Commands:      c.stats.commands.Load(),
		Replies:       c.stats.replies.Load(),
		Pushes:        c.stats.pushes.Load(),
		DroppedPushes: c.stats.droppedPushes.Load(),
		BytesRead:     c.stats.bytesRead.Load(),
		BytesWritten:  c.stats.bytesWritten.Load(),
		State:         c.State(),
	}
}
