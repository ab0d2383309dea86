package resp

import (
	"errors"
	"fmt"
)

// ErrIncomplete is returned by Decoder.Next when the buffered bytes do
// not yet contain a complete frame. It is the only recoverable decode
// condition: feed more bytes and call Next again.
var ErrIncomplete = errors.New("resp: incomplete frame")

// ProtocolError reports a structural violation in the byte stream:
// an unknown type tag, a malformed length header, a missing CRLF
// terminator. The stream position is undefined afterwards, so the
// connection must be closed.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return "resp: protocol error: " + e.Message
}

// SizeLimitError reports a frame or buffer that exceeds the configured
// maximum. It is raised before the oversized data is allocated, and it
// is connection-fatal: the remainder of the frame is still on the wire.
type SizeLimitError struct {
	Size  int64
	Limit int64
}

func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("resp: frame size %d exceeds limit %d", e.Size, e.Limit)
}

// TypeError reports a reply that cannot be converted to the requested
// Go type. The reply itself was a valid protocol exchange.
type TypeError struct {
	Expected string
	Value    Value
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("resp: cannot convert %s reply to %s", e.Value.Kind(), e.Expected)
}
