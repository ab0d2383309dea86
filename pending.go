package redisc

import (
	"context"

	"github.com/pell/redisc/resp"
)

// Pending is the one-shot response slot for a submitted command. It is
// created at submission time and completed exactly once, with either
// the decoded reply or a connection error, strictly in submission order
// relative to other slots on the same connection.
type Pending struct {
	cmd  *Command
	done chan struct{}
	val  resp.Value
	err  error

	// Subscribe-family bookkeeping. A SUBSCRIBE with N names is
	// acknowledged with N ack frames; the slot completes on the last.
	subKind subscribeKind
	acks    int
	sub     *Subscription
}

func newPending(cmd *Command) *Pending {
	return &Pending{cmd: cmd, done: make(chan struct{})}
}

// Wait blocks until the reply or connection error arrives, or ctx is
// done. Abandoning a Wait does not cancel the in-flight exchange and
// never removes the slot from the reply queue: the reply is still
// consumed to keep the stream aligned, it is just not delivered here.
func (p *Pending) Wait(ctx context.Context) (resp.Value, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		return resp.Nil, ctx.Err()
	}
}

// complete delivers the outcome. Only the connection actor calls it,
// and only once per slot.
func (p *Pending) complete(v resp.Value, err error) {
	p.val = v
	p.err = err
	close(p.done)
}
