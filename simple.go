package redisc

import (
	"errors"
	"io"

	"github.com/pell/redisc/resp"
)

// SimpleClient is a strictly request/response client: one command on
// the wire at a time, no pipelining, no background goroutines. It is
// suited to scripts and tests; use Conn for concurrent workloads.
//
// SimpleClient is not safe for concurrent use. Push frames are not
// routed; subscribe-family commands must go through Conn.
type SimpleClient struct {
	sock io.ReadWriteCloser
	dec  *resp.Decoder
	wbuf *resp.Buffer
	err  error
}

// NewSimpleClient wraps an established duplex stream.
func NewSimpleClient(sock io.ReadWriteCloser, cfg Config) *SimpleClient {
	cfg = cfg.withDefaults()
	return &SimpleClient{
		sock: sock,
		dec:  resp.NewDecoder(resp.NewBuffer(cfg.InitialBufferBytes, cfg.MaxFrameBytes)),
		wbuf: resp.NewBuffer(cfg.InitialBufferBytes, cfg.MaxFrameBytes),
	}
}

// Do writes cmd and reads its reply. Error replies from the server are
// returned as the reply value's *CommandError; I/O and protocol errors
// poison the client and every later call repeats them.
func (s *SimpleClient) Do(cmd *Command) (resp.Value, error) {
	v, err := s.Exec(cmd)
	if err != nil {
		return resp.Nil, err
	}
	return asReply(v)
}

// Exec is Do without the error-reply conversion: server error replies
// come back as values.
func (s *SimpleClient) Exec(cmd *Command) (resp.Value, error) {
	if s.err != nil {
		return resp.Nil, s.err
	}
	if cmd == nil || len(cmd.args) == 0 {
		return resp.Nil, errEmptyCommand
	}

	s.wbuf.Reset()
	if err := s.wbuf.WriteCommand(cmd.args); err != nil {
		return resp.Nil, s.poison(err)
	}
	if _, err := s.sock.Write(s.wbuf.Bytes()); err != nil {
		return resp.Nil, s.poison(&ConnectionError{Err: err})
	}

	chunk := make([]byte, readChunkBytes)
	for {
		v, err := s.dec.Next()
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, resp.ErrIncomplete) {
			return resp.Nil, s.poison(err)
		}

		n, err := s.sock.Read(chunk)
		if n > 0 {
			if ferr := s.dec.Feed(chunk[:n]); ferr != nil {
				return resp.Nil, s.poison(ferr)
			}
		}
		if err != nil {
			return resp.Nil, s.poison(&ConnectionError{Err: err})
		}
	}
}

func (s *SimpleClient) poison(err error) error {
	if s.err == nil {
		s.err = err
	}
	return err
}

// Close releases the underlying stream.
func (s *SimpleClient) Close() error {
	s.poison(ErrClosed)
	return s.sock.Close()
}
