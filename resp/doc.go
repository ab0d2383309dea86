// Package resp implements the Redis wire protocol (RESP): a streaming
// decoder and an encoder for the five RESP2 value types, plus the
// bounded frame buffer both sides of a connection share.
//
// The package is a foundation for building clients with different
// properties (pipelining, pub/sub, pooling). It handles framing and
// correctness only, without imposing connection management decisions.
//
// # Values
//
// Value is a recursive sum type mirroring the wire format: null,
// integer, simple string, bulk string, error, and array. The decoder
// preserves the distinction between the null bulk string ("$-1"), the
// null array ("*-1") and their empty counterparts.
//
// # Streaming decode
//
// A frame may arrive across any number of socket reads. Decoder
// accumulates bytes and suspends with ErrIncomplete until a complete
// frame is available, consuming nothing in between:
//
//	dec := resp.NewDecoder(resp.NewBuffer(4096, maxFrame))
//	if err := dec.Feed(chunk); err != nil { ... }
//	for {
//		v, err := dec.Next()
//		if errors.Is(err, resp.ErrIncomplete) {
//			break // read more bytes
//		}
//		...
//	}
//
// Malformed input fails with *ProtocolError and oversized frames with
// *SizeLimitError; both are connection-fatal and never retried here.
//
// # Encoding
//
// Commands are written as arrays of bulk strings, so arguments may
// contain arbitrary binary data:
//
//	wire := resp.AppendCommand(nil, [][]byte{[]byte("SET"), key, value})
package resp
