package redisc

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pell/redisc/resp"
)

// fakeServer is the in-memory peer of a connection under test. It
// continuously consumes the commands the client writes, so client
// writes never block, and lets each test script raw replies.
type fakeServer struct {
	t    testing.TB
	conn net.Conn
	cmds chan []string
}

func newFakePeer(t testing.TB) (net.Conn, *fakeServer) {
	client, server := net.Pipe()
	fs := &fakeServer{t: t, conn: server, cmds: make(chan []string, 64)}
	go fs.consume()

	t.Cleanup(func() {
		client.Close()
		server.Close()
	})
	return client, fs
}

func (s *fakeServer) consume() {
	defer close(s.cmds)

	dec := resp.NewDecoder(resp.NewBuffer(0, 0))
	chunk := make([]byte, 4096)
	for {
		n, err := s.conn.Read(chunk)
		if n > 0 {
			if ferr := dec.Feed(chunk[:n]); ferr != nil {
				return
			}
			for {
				v, derr := dec.Next()
				if derr != nil {
					break
				}
				args, serr := v.Strings()
				if serr != nil {
					return
				}
				s.cmds <- args
			}
		}
		if err != nil {
			return
		}
	}
}

// expect receives the next command from the client and checks its name
// (case-insensitive). It returns the arguments after the name.
func (s *fakeServer) expect(name string) []string {
	s.t.Helper()
	select {
	case args, ok := <-s.cmds:
		if !ok {
			s.t.Fatalf("client stream ended while waiting for %s", name)
		}
		require.NotEmpty(s.t, args)
		require.True(s.t, strings.EqualFold(name, args[0]),
			"expected command %s, got %s", name, args[0])
		return args[1:]
	case <-time.After(2 * time.Second):
		s.t.Fatalf("timed out waiting for command %s", name)
	}
	return nil
}

// reply writes raw protocol bytes to the client.
func (s *fakeServer) reply(wire string) {
	s.t.Helper()
	_, err := s.conn.Write([]byte(wire))
	require.NoError(s.t, err)
}

// drop closes the server side of the stream, simulating a peer failure.
func (s *fakeServer) drop() {
	s.conn.Close()
}

func newTestConn(t *testing.T, cfg Config) (*Conn, *fakeServer) {
	t.Helper()
	sock, server := newFakePeer(t)
	conn, err := NewConn(context.Background(), sock, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, server
}

// subscribeAck builds the [subscribe, name, count] acknowledgment frame.
func subscribeAck(kind, name string, count int) string {
	return string(resp.AppendValue(nil, resp.Array(
		resp.BulkString(kind),
		resp.BulkString(name),
		resp.Int(int64(count)),
	)))
}

// pushFrame builds a [message, channel, payload] push frame.
func pushFrame(channel, payload string) string {
	return string(resp.AppendValue(nil, resp.Array(
		resp.BulkString("message"),
		resp.BulkString(channel),
		resp.BulkString(payload),
	)))
}

// ppushFrame builds a [pmessage, pattern, channel, payload] push frame.
func ppushFrame(pattern, channel, payload string) string {
	return string(resp.AppendValue(nil, resp.Array(
		resp.BulkString("pmessage"),
		resp.BulkString(pattern),
		resp.BulkString(channel),
		resp.BulkString(payload),
	)))
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
