package redisc

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/pell/redisc/resp"
)

// Message is a single pub/sub notification. Pattern is empty for plain
// channel subscriptions.
type Message struct {
	Channel string
	Pattern string
	Payload []byte
}

// Subscription is the stream-delivery handle for one SUBSCRIBE or
// PSUBSCRIBE command. Messages accumulate without bound until received;
// the stream ends after a full unsubscribe (ErrSubscriptionClosed) or
// on connection loss (the connection's terminal error).
type Subscription struct {
	conn    *Conn
	pattern bool
	names   []string

	mu     sync.Mutex
	queue  []Message
	wake   chan struct{}
	active int
	ended  bool
	err    error
}

// Subscribe issues SUBSCRIBE for the given channels and returns the
// handle once every channel is acknowledged. The connection enters
// subscriber mode; ordinary commands may still be issued and their
// replies are matched by submission order as usual.
func (c *Conn) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	return c.newSubscription(ctx, false, channels)
}

// PSubscribe issues PSUBSCRIBE for the given patterns.
func (c *Conn) PSubscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	return c.newSubscription(ctx, true, patterns)
}

func (c *Conn) newSubscription(ctx context.Context, pattern bool, names []string) (*Subscription, error) {
	if len(names) == 0 {
		return nil, errors.New("redisc: subscribe requires at least one channel")
	}

	sub := &Subscription{
		conn:    c,
		pattern: pattern,
		names:   names,
		wake:    make(chan struct{}, 1),
	}

	name := "SUBSCRIBE"
	if pattern {
		name = "PSUBSCRIBE"
	}
	args := make([]interface{}, len(names))
	for i, n := range names {
		args[i] = n
	}

	p, err := c.submit(NewCommand(name, args...), sub)
	if err != nil {
		return nil, err
	}
	v, err := p.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if v.IsError() {
		return nil, commandError(v)
	}
	return sub, nil
}

// Names returns the channels or patterns this handle was created for.
func (s *Subscription) Names() []string { return s.names }

// Receive returns the next message, blocking until one arrives, the
// subscription ends, or ctx is done. Buffered messages are drained
// before the end-of-stream error is reported.
func (s *Subscription) Receive(ctx context.Context) (Message, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			m := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return m, nil
		}
		if s.ended {
			err := s.err
			s.mu.Unlock()
			return Message{}, err
		}
		s.mu.Unlock()

		select {
		case <-s.wake:
		case <-ctx.Done():
			return Message{}, ctx.Err()
		}
	}
}

// Unsubscribe removes every channel or pattern of this handle and
// waits for the acknowledgments. The handle's stream ends once the
// last name is acknowledged.
func (s *Subscription) Unsubscribe(ctx context.Context) error {
	name := "UNSUBSCRIBE"
	if s.pattern {
		name = "PUNSUBSCRIBE"
	}
	args := make([]interface{}, len(s.names))
	for i, n := range s.names {
		args[i] = n
	}
	_, err := s.conn.Do(ctx, NewCommand(name, args...))
	return err
}

func (s *Subscription) push(m Message) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, m)
	s.mu.Unlock()
	s.signal()
}

// retain records one acknowledged name.
func (s *Subscription) retain() {
	s.mu.Lock()
	s.active++
	s.mu.Unlock()
}

// releaseName records one unsubscribed name and reports whether the
// handle has no names left.
func (s *Subscription) releaseName() bool {
	s.mu.Lock()
	s.active--
	last := s.active <= 0
	s.mu.Unlock()
	return last
}

// finish ends the stream. Already-queued messages stay receivable.
func (s *Subscription) finish(err error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.err = err
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Push frame shapes. The first element names the frame kind; the server
// sends these lowercase but comparison is case-insensitive to match the
// tolerance of the command table.
const (
	pushMessage      = "message"
	pushPMessage     = "pmessage"
	pushSubscribe    = "subscribe"
	pushPSubscribe   = "psubscribe"
	pushUnsubscribe  = "unsubscribe"
	pushPUnsubscribe = "punsubscribe"
)

// dispatch routes one decoded reply: push frames go to the pub/sub
// router, everything else completes the oldest pending request.
// It reports false after failing the connection.
func (c *Conn) dispatch(v resp.Value) bool {
	if kind, elems, ok := c.pushShape(v); ok {
		switch kind {
		case pushMessage:
			return c.deliverMessage(elems)
		case pushPMessage:
			return c.deliverPMessage(elems)
		case pushSubscribe, pushPSubscribe:
			return c.handleSubscribeAck(kind, elems, v)
		case pushUnsubscribe, pushPUnsubscribe:
			return c.handleUnsubscribeAck(kind, elems, v)
		}
	}
	return c.completeNext(v)
}

// pushShape classifies v as a push frame. Shape alone is not enough: an
// ordinary array reply may begin with the bulk string "message", so
// frames are only claimed once the connection is in subscriber mode.
func (c *Conn) pushShape(v resp.Value) (string, []resp.Value, bool) {
	if c.State() != StateSubscriberMode {
		return "", nil, false
	}
	if v.Kind() != resp.KindArray {
		return "", nil, false
	}
	elems, _ := v.Slice()
	if len(elems) < 3 {
		return "", nil, false
	}
	first, err := elems[0].Text()
	if err != nil {
		return "", nil, false
	}
	kind := strings.ToLower(first)
	switch kind {
	case pushMessage, pushSubscribe, pushPSubscribe, pushUnsubscribe, pushPUnsubscribe:
		return kind, elems, len(elems) == 3
	case pushPMessage:
		return kind, elems, len(elems) == 4
	}
	return "", nil, false
}

func (c *Conn) deliverMessage(elems []resp.Value) bool {
	channel, err := elems[1].Text()
	if err != nil {
		c.fail(&resp.ProtocolError{Message: "push message with malformed channel"})
		return false
	}
	payload, err := elems[2].Bytes()
	if err != nil {
		c.fail(&resp.ProtocolError{Message: "push message with malformed payload"})
		return false
	}

	c.mu.Lock()
	sub := c.subs[channel]
	c.mu.Unlock()

	if sub == nil {
		c.stats.droppedPushes.Add(1)
		c.log.Warn("dropping push for unknown channel", zap.String("channel", channel))
		return true
	}
	c.stats.pushes.Add(1)
	sub.push(Message{Channel: channel, Payload: payload})
	return true
}

func (c *Conn) deliverPMessage(elems []resp.Value) bool {
	pattern, perr := elems[1].Text()
	channel, cerr := elems[2].Text()
	payload, berr := elems[3].Bytes()
	if perr != nil || cerr != nil || berr != nil {
		c.fail(&resp.ProtocolError{Message: "push pmessage with malformed elements"})
		return false
	}

	c.mu.Lock()
	sub := c.psubs[pattern]
	c.mu.Unlock()

	if sub == nil {
		c.stats.droppedPushes.Add(1)
		c.log.Warn("dropping push for unknown pattern", zap.String("pattern", pattern))
		return true
	}
	c.stats.pushes.Add(1)
	sub.push(Message{Channel: channel, Pattern: pattern, Payload: payload})
	return true
}

// handleSubscribeAck routes a [subscribe, channel, count] frame back to
// the FIFO entry of the originating command and registers the handle
// for the acknowledged name. A command subscribing N names completes on
// its Nth ack.
func (c *Conn) handleSubscribeAck(kind string, elems []resp.Value, v resp.Value) bool {
	want := subChannel
	if kind == pushPSubscribe {
		want = subPattern
	}
	name, _ := elems[1].Text()

	c.mu.Lock()
	if len(c.fifo) == 0 || c.fifo[0].subKind != want {
		c.mu.Unlock()
		c.fail(&resp.ProtocolError{Message: "unexpected " + kind + " acknowledgment"})
		return false
	}
	head := c.fifo[0]
	if head.sub != nil && name != "" {
		if want == subPattern {
			c.psubs[name] = head.sub
		} else {
			c.subs[name] = head.sub
		}
		head.sub.retain()
	}
	head.acks--
	completed := head.acks <= 0
	if completed {
		c.fifo = c.fifo[1:]
	}
	c.mu.Unlock()

	if completed {
		c.stats.replies.Add(1)
		head.complete(v, nil)
	}
	return true
}

// handleUnsubscribeAck routes an [unsubscribe, channel, count] frame:
// the mapping entry is removed, the originating command's slot advances
// by one ack, and the handle's stream ends with its last name. When the
// server reports zero remaining subscriptions the connection leaves
// subscriber mode only if configured to (ExitOnUnsubscribe).
func (c *Conn) handleUnsubscribeAck(kind string, elems []resp.Value, v resp.Value) bool {
	want := subUnsubChannel
	if kind == pushPUnsubscribe {
		want = subUnsubPattern
	}
	name, _ := elems[1].Text()
	count, _ := elems[2].Int()

	c.mu.Lock()
	if len(c.fifo) == 0 || c.fifo[0].subKind != want {
		c.mu.Unlock()
		c.fail(&resp.ProtocolError{Message: "unexpected " + kind + " acknowledgment"})
		return false
	}
	head := c.fifo[0]

	var released *Subscription
	if name != "" {
		if want == subUnsubPattern {
			if sub := c.psubs[name]; sub != nil {
				delete(c.psubs, name)
				released = sub
			}
		} else {
			if sub := c.subs[name]; sub != nil {
				delete(c.subs, name)
				released = sub
			}
		}
	}

	head.acks--
	completed := head.acks <= 0
	if completed {
		c.fifo = c.fifo[1:]
	}
	if count == 0 && c.cfg.ExitOnUnsubscribe {
		c.state.CompareAndSwap(int32(StateSubscriberMode), int32(StateReady))
	}
	c.mu.Unlock()

	if released != nil && released.releaseName() {
		released.finish(ErrSubscriptionClosed)
	}
	if completed {
		c.stats.replies.Add(1)
		head.complete(v, nil)
	}
	return true
}

// completeNext delivers an ordinary reply to the oldest pending
// request. A reply with nothing pending is a protocol violation and
// fails the connection.
func (c *Conn) completeNext(v resp.Value) bool {
	c.mu.Lock()
	if len(c.fifo) == 0 {
		c.mu.Unlock()
		c.log.Error("reply received with no pending request", zap.String("reply", v.String()))
		c.fail(&resp.ProtocolError{Message: "reply received with no pending request"})
		return false
	}
	head := c.fifo[0]
	c.fifo = c.fifo[1:]
	c.mu.Unlock()

	c.stats.replies.Add(1)
	head.complete(v, nil)
	return true
}
