package redisc

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/multierr"
)

// NewDialBreaker returns a circuit breaker suitable for guarding dial
// attempts against a single address: it opens after three consecutive
// failures and probes again after the given timeout.
func NewDialBreaker(addr string, timeout time.Duration) *gobreaker.CircuitBreaker[net.Conn] {
	settings := gobreaker.Settings{
		Name:    addr,
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	}
	return gobreaker.NewCircuitBreaker[net.Conn](settings)
}

// Connector establishes authenticated streams and hands them to the
// dispatcher. The zero value is not usable; set Addr at minimum.
//
// Connecting is the connector's whole job: a Conn never redials, and a
// failed Conn is replaced by calling Connect again.
type Connector struct {
	// Addr is the host:port of the server.
	Addr string

	// Dialer customizes TCP setup. Nil means a default net.Dialer.
	Dialer *net.Dialer

	// TLSConfig enables TLS when non-nil.
	TLSConfig *tls.Config

	// Passwords are tried in order with AUTH until one is accepted.
	// An empty list skips authentication.
	Passwords []string

	// Config is passed through to the connections produced.
	Config Config

	// Breaker, when non-nil, guards dial attempts so a dead server
	// stops consuming dial timeouts under load.
	Breaker *gobreaker.CircuitBreaker[net.Conn]
}

// Connect dials, authenticates, and wraps the stream in a pipelined
// dispatcher connection.
func (c *Connector) Connect(ctx context.Context) (*Conn, error) {
	sock, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.authenticate(sock); err != nil {
		return nil, multierr.Append(err, sock.Close())
	}
	conn, err := NewConn(ctx, sock, c.Config)
	if err != nil {
		return nil, multierr.Append(err, sock.Close())
	}
	return conn, nil
}

// ConnectSimple dials and authenticates a strictly request/response
// client.
func (c *Connector) ConnectSimple(ctx context.Context) (*SimpleClient, error) {
	sock, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	s := NewSimpleClient(sock, c.Config)
	if err := c.authSimple(s); err != nil {
		return nil, multierr.Append(err, sock.Close())
	}
	return s, nil
}

// ConnectClient is Connect plus the typed command surface.
func (c *Connector) ConnectClient(ctx context.Context) (*Client, error) {
	conn, err := c.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

func (c *Connector) dial(ctx context.Context) (net.Conn, error) {
	if c.Breaker != nil {
		return c.Breaker.Execute(func() (net.Conn, error) {
			return c.dialDirect(ctx)
		})
	}
	return c.dialDirect(ctx)
}

func (c *Connector) dialDirect(ctx context.Context) (net.Conn, error) {
	d := c.Dialer
	if d == nil {
		d = &net.Dialer{}
	}
	sock, err := d.DialContext(ctx, "tcp", c.Addr)
	if err != nil {
		return nil, &ConnectionError{Err: err}
	}
	if c.TLSConfig == nil {
		return sock, nil
	}
	tconn := tls.Client(sock, c.TLSConfig)
	if err := tconn.HandshakeContext(ctx); err != nil {
		err = multierr.Append(err, sock.Close())
		return nil, &ConnectionError{Err: err}
	}
	return tconn, nil
}

// authenticate runs the AUTH handshake over a throwaway synchronous
// client. The handshake is strictly request/response, so no stream
// bytes are left behind for the dispatcher that takes over.
func (c *Connector) authenticate(sock net.Conn) error {
	if len(c.Passwords) == 0 {
		return nil
	}
	return c.authSimple(NewSimpleClient(sock, c.Config))
}

func (c *Connector) authSimple(s *SimpleClient) error {
	if len(c.Passwords) == 0 {
		return nil
	}
	var last error
	for _, pw := range c.Passwords {
		v, err := s.Exec(NewCommand("AUTH", pw))
		if err != nil {
			return err
		}
		if v.OK() {
			return nil
		}
		var cmdErr error
		if v.IsError() {
			cmdErr = commandError(v)
		} else {
			cmdErr = errors.New(v.String())
		}
		last = cmdErr
	}
	return fmt.Errorf("%w: %v", ErrUnauthorized, last)
}
