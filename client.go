package redisc

import (
	"context"
	"time"

	"github.com/pell/redisc/resp"
)

// Client is a typed command surface over a pipelined connection. All
// methods submit through the connection and therefore interleave freely
// with other goroutines using the same Client.
type Client struct {
	conn *Conn
}

// NewClient wraps an established connection.
func NewClient(conn *Conn) *Client {
	return &Client{conn: conn}
}

// Conn exposes the underlying connection for raw commands.
func (c *Client) Conn() *Conn { return c.conn }

func expectOK(v resp.Value) error {
	if !v.OK() {
		return &resp.TypeError{Expected: "OK", Value: v}
	}
	return nil
}

// Close terminates the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// Do submits an arbitrary command and waits for its reply.
func (c *Client) Do(ctx context.Context, cmd *Command) (resp.Value, error) {
	return c.conn.Do(ctx, cmd)
}

// Get returns the value stored at key. found is false when the key does
// not exist.
func (c *Client) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	v, err := c.conn.Do(ctx, NewCommand("GET", key))
	if err != nil {
		return nil, false, err
	}
	if v.IsNil() {
		return nil, false, nil
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// SetOptions carries the optional arguments of SET. IfExists and
// IfNotExists are mutually exclusive.
type SetOptions struct {
	TTL         time.Duration
	IfExists    bool // XX
	IfNotExists bool // NX
}

// Set stores value at key unconditionally.
func (c *Client) Set(ctx context.Context, key string, value []byte) error {
	v, err := c.conn.Do(ctx, NewCommand("SET", key, value))
	if err != nil {
		return err
	}
	return expectOK(v)
}

// SetWith stores value at key honoring opts. It reports false when an
// XX/NX condition was not met.
func (c *Client) SetWith(ctx context.Context, key string, value []byte, opts SetOptions) (bool, error) {
	cmd := NewCommand("SET", key, value)
	if opts.TTL > 0 {
		if opts.TTL%time.Second == 0 {
			cmd = cmd.Arg("EX").Arg(int64(opts.TTL / time.Second))
		} else {
			cmd = cmd.Arg("PX").Arg(opts.TTL.Milliseconds())
		}
	}
	if opts.IfExists {
		cmd = cmd.Arg("XX")
	}
	if opts.IfNotExists {
		cmd = cmd.Arg("NX")
	}
	v, err := c.conn.Do(ctx, cmd)
	if err != nil {
		return false, err
	}
	if v.IsNil() {
		return false, nil
	}
	if err := expectOK(v); err != nil {
		return false, err
	}
	return true, nil
}

// IncrBy increments the integer at key by delta and returns the new value.
func (c *Client) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	v, err := c.conn.Do(ctx, NewCommand("INCRBY", key, delta))
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// Del removes the given keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	cmd := NewCommand("DEL")
	for _, k := range keys {
		cmd = cmd.Arg(k)
	}
	v, err := c.conn.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// Exists returns how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	cmd := NewCommand("EXISTS")
	for _, k := range keys {
		cmd = cmd.Arg(k)
	}
	v, err := c.conn.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// Expire sets a relative expiry on key. It reports false when the key
// does not exist.
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	v, err := c.conn.Do(ctx, NewCommand("EXPIRE", key, int64(ttl/time.Second)))
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// ExpireAt sets an absolute expiry on key. It reports false when the
// key does not exist.
func (c *Client) ExpireAt(ctx context.Context, key string, at time.Time) (bool, error) {
	v, err := c.conn.Do(ctx, NewCommand("EXPIREAT", key, at.Unix()))
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// TTLResult distinguishes the three answers TTL gives: a remaining
// duration, a key with no expiry, or a missing key.
type TTLResult struct {
	Seconds  int64
	NoExpire bool
	NotFound bool
}

// TTL reports the remaining time to live of key.
func (c *Client) TTL(ctx context.Context, key string) (TTLResult, error) {
	v, err := c.conn.Do(ctx, NewCommand("TTL", key))
	if err != nil {
		return TTLResult{}, err
	}
	n, err := v.Int()
	if err != nil {
		return TTLResult{}, err
	}
	switch n {
	case -1:
		return TTLResult{NoExpire: true}, nil
	case -2:
		return TTLResult{NotFound: true}, nil
	default:
		return TTLResult{Seconds: n}, nil
	}
}

// Keys returns all keys matching pattern. Intended for tests and
// tooling, not hot paths.
func (c *Client) Keys(ctx context.Context, pattern string) ([]string, error) {
	v, err := c.conn.Do(ctx, NewCommand("KEYS", pattern))
	if err != nil {
		return nil, err
	}
	return v.Strings()
}

// HSet stores field=value in the hash at key and reports whether the
// field was newly created.
func (c *Client) HSet(ctx context.Context, key, field string, value []byte) (bool, error) {
	v, err := c.conn.Do(ctx, NewCommand("HSET", key, field, value))
	if err != nil {
		return false, err
	}
	return v.Bool()
}

// HGet returns the value of field in the hash at key. found is false
// when the field or key does not exist.
func (c *Client) HGet(ctx context.Context, key, field string) (value []byte, found bool, err error) {
	v, err := c.conn.Do(ctx, NewCommand("HGET", key, field))
	if err != nil {
		return nil, false, err
	}
	if v.IsNil() {
		return nil, false, nil
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// HDel removes the given fields from the hash at key and returns how
// many were removed.
func (c *Client) HDel(ctx context.Context, key string, fields ...string) (int64, error) {
	cmd := NewCommand("HDEL", key)
	for _, f := range fields {
		cmd = cmd.Arg(f)
	}
	v, err := c.conn.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// HLen returns the number of fields in the hash at key.
func (c *Client) HLen(ctx context.Context, key string) (int64, error) {
	v, err := c.conn.Do(ctx, NewCommand("HLEN", key))
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// LPush prepends values to the list at key and returns the new length.
func (c *Client) LPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	return c.listPush(ctx, "LPUSH", key, values)
}

// RPush appends values to the list at key and returns the new length.
func (c *Client) RPush(ctx context.Context, key string, values ...[]byte) (int64, error) {
	return c.listPush(ctx, "RPUSH", key, values)
}

func (c *Client) listPush(ctx context.Context, name, key string, values [][]byte) (int64, error) {
	cmd := NewCommand(name, key)
	for _, v := range values {
		cmd = cmd.Arg(v)
	}
	v, err := c.conn.Do(ctx, cmd)
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// LPop removes and returns the first element of the list at key. found
// is false when the list is empty or missing.
func (c *Client) LPop(ctx context.Context, key string) (value []byte, found bool, err error) {
	return c.listPop(ctx, "LPOP", key)
}

// RPop removes and returns the last element of the list at key.
func (c *Client) RPop(ctx context.Context, key string) (value []byte, found bool, err error) {
	return c.listPop(ctx, "RPOP", key)
}

func (c *Client) listPop(ctx context.Context, name, key string) ([]byte, bool, error) {
	v, err := c.conn.Do(ctx, NewCommand(name, key))
	if err != nil {
		return nil, false, err
	}
	if v.IsNil() {
		return nil, false, nil
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// LIndex returns the element at index of the list at key. found is
// false when the index is out of range.
func (c *Client) LIndex(ctx context.Context, key string, index int64) (value []byte, found bool, err error) {
	v, err := c.conn.Do(ctx, NewCommand("LINDEX", key, index))
	if err != nil {
		return nil, false, err
	}
	if v.IsNil() {
		return nil, false, nil
	}
	b, err := v.Bytes()
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Ping checks liveness of the connection.
func (c *Client) Ping(ctx context.Context) error {
	v, err := c.conn.Do(ctx, NewCommand("PING"))
	if err != nil {
		return err
	}
	s, err := v.Text()
	if err != nil {
		return err
	}
	if s != "PONG" {
		return &resp.TypeError{Expected: "PONG", Value: v}
	}
	return nil
}

// Echo round-trips payload through the server.
func (c *Client) Echo(ctx context.Context, payload []byte) ([]byte, error) {
	v, err := c.conn.Do(ctx, NewCommand("ECHO", payload))
	if err != nil {
		return nil, err
	}
	return v.Bytes()
}

// Select switches the connection to the given logical database.
func (c *Client) Select(ctx context.Context, db int) error {
	v, err := c.conn.Do(ctx, NewCommand("SELECT", db))
	if err != nil {
		return err
	}
	return expectOK(v)
}

// Auth authenticates the connection.
func (c *Client) Auth(ctx context.Context, password string) error {
	v, err := c.conn.Do(ctx, NewCommand("AUTH", password))
	if err != nil {
		return err
	}
	return expectOK(v)
}

// FlushDB removes every key of the selected database.
func (c *Client) FlushDB(ctx context.Context) error {
	v, err := c.conn.Do(ctx, NewCommand("FLUSHDB"))
	if err != nil {
		return err
	}
	return expectOK(v)
}

// Publish posts payload to channel and returns the number of receivers.
func (c *Client) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	v, err := c.conn.Do(ctx, NewCommand("PUBLISH", channel, payload))
	if err != nil {
		return 0, err
	}
	return v.Int()
}

// Subscribe opens a channel subscription on the underlying connection.
func (c *Client) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	return c.conn.Subscribe(ctx, channels...)
}

// PSubscribe opens a pattern subscription on the underlying connection.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	return c.conn.PSubscribe(ctx, patterns...)
}
