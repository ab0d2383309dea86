package redisc

import (
	"errors"

	"github.com/pell/redisc/resp"
)

var (
	// ErrClosed is returned by Submit and Do after the connection has
	// been closed locally. Nothing was written to the wire.
	ErrClosed = errors.New("redisc: connection closed")

	// ErrUnauthorized is returned by the connector when the server
	// rejects every configured password.
	ErrUnauthorized = errors.New("redisc: authentication failed")

	// ErrSubscriptionClosed is returned by Subscription.Receive after
	// the subscription was cleanly unsubscribed.
	ErrSubscriptionClosed = errors.New("redisc: subscription closed")
)

// ConnectionError reports an I/O failure or peer close on the
// connection. It is fatal: every pending request is failed with the
// same error and the connection is never reused.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string {
	return "redisc: connection error: " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// CommandError is an error reply from the server ("-ERR ...").
// From the transport's point of view this is an ordinary, successful
// exchange: it is delivered only to the originating caller and the
// connection remains usable.
type CommandError struct {
	// Kind is the leading error token ("ERR", "WRONGTYPE", ...);
	// extraction is best-effort and Kind may be empty.
	Kind    string
	Message string
}

func (e *CommandError) Error() string {
	if e.Kind == "" {
		return "redisc: server error: " + e.Message
	}
	return "redisc: server error: " + e.Kind + " " + e.Message
}

// commandError converts an error reply value into a *CommandError.
func commandError(v resp.Value) *CommandError {
	return &CommandError{Kind: v.ErrorKind(), Message: v.ErrorMessage()}
}

// asReply maps an error reply to a *CommandError and passes every other
// value through untouched.
func asReply(v resp.Value) (resp.Value, error) {
	if v.IsError() {
		return resp.Nil, commandError(v)
	}
	return v, nil
}

// IsFatal reports whether err terminated its connection. Fatal errors
// are never retried by this package; callers must establish a new
// connection.
func IsFatal(err error) bool {
	var (
		connErr  *ConnectionError
		protoErr *resp.ProtocolError
		sizeErr  *resp.SizeLimitError
	)
	return errors.As(err, &connErr) ||
		errors.As(err, &protoErr) ||
		errors.As(err, &sizeErr) ||
		errors.Is(err, ErrClosed)
}
