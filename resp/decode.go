package resp

import (
	"bytes"
	"strconv"
)

// MaxLineBytes bounds a single protocol line (type tag through CRLF).
// Length headers are a handful of bytes and simple strings are short in
// practice; a longer line indicates a corrupt or hostile stream.
const MaxLineBytes = 64 << 10

// maxArrayElements bounds the declared element count of a single array
// header, so a hostile peer cannot trigger a huge allocation with five
// bytes of input.
const maxArrayElements = 1 << 20

// Decoder is a streaming RESP decoder over an accumulating Buffer.
//
// A frame may arrive across any number of reads: Feed appends raw
// bytes, Next either yields the next complete value or returns
// ErrIncomplete without consuming anything, so decoding resumes from
// the exact same position once more bytes arrive. Any other error is
// terminal for the stream.
type Decoder struct {
	buf *Buffer
}

// NewDecoder returns a Decoder accumulating into buf. The buffer's
// capacity ceiling doubles as the maximum frame size.
func NewDecoder(buf *Buffer) *Decoder {
	return &Decoder{buf: buf}
}

// Feed appends raw bytes from the wire. It fails with a SizeLimitError
// when the accumulated unread data would exceed the buffer ceiling,
// which means a single frame larger than the configured maximum.
func (d *Decoder) Feed(p []byte) error {
	return d.buf.Write(p)
}

// Buffered reports the number of unconsumed bytes.
func (d *Decoder) Buffered() int { return d.buf.Len() }

// Next decodes and consumes the next complete value. It returns
// ErrIncomplete when the buffer does not yet hold a full frame, a
// *ProtocolError or *SizeLimitError on malformed or oversized input,
// and never panics.
func (d *Decoder) Next() (Value, error) {
	v, n, err := decodeValue(d.buf.Bytes(), 0, int64(d.buf.Max()))
	if err != nil {
		return Nil, err
	}
	d.buf.Discard(n)
	return v, nil
}

// decodeValue decodes one value starting at pos, returning the value
// and the position just past it. ErrIncomplete means no byte has been
// consumed and the caller must retry with more data.
func decodeValue(b []byte, pos int, limit int64) (Value, int, error) {
	if pos >= len(b) {
		return Nil, 0, ErrIncomplete
	}
	switch b[pos] {
	case '+':
		return decodeSimple(b, pos+1)
	case '-':
		return decodeError(b, pos+1)
	case ':':
		return decodeInteger(b, pos+1)
	case '$':
		return decodeBulk(b, pos+1, limit)
	case '*':
		return decodeArray(b, pos+1, limit)
	}
	return Nil, 0, &ProtocolError{Message: "unexpected type tag " + strconv.QuoteRune(rune(b[pos]))}
}

// readLine scans for CRLF starting at pos and returns the line body and
// the position just past the terminator.
func readLine(b []byte, pos int) ([]byte, int, error) {
	i := bytes.Index(b[pos:], crlf)
	if i < 0 {
		if len(b)-pos > MaxLineBytes {
			return nil, 0, &ProtocolError{Message: "line exceeds maximum length"}
		}
		return nil, 0, ErrIncomplete
	}
	if i > MaxLineBytes {
		return nil, 0, &ProtocolError{Message: "line exceeds maximum length"}
	}
	return b[pos : pos+i], pos + i + 2, nil
}

// readHeader reads a decimal length line, as used by bulk string and
// array headers.
func readHeader(b []byte, pos int) (int64, int, error) {
	line, next, err := readLine(b, pos)
	if err != nil {
		return 0, 0, err
	}
	n, perr := strconv.ParseInt(string(line), 10, 64)
	if perr != nil {
		return 0, 0, &ProtocolError{Message: "malformed length header " + strconv.Quote(string(line))}
	}
	return n, next, nil
}

func decodeSimple(b []byte, pos int) (Value, int, error) {
	line, next, err := readLine(b, pos)
	if err != nil {
		return Nil, 0, err
	}
	payload := make([]byte, len(line))
	copy(payload, line)
	return Value{kind: KindSimple, str: payload}, next, nil
}

// decodeError splits the line into a kind token and a message on the
// first space, but only when the leading token follows the uppercase
// kind-prefix convention ("ERR", "WRONGTYPE", ...). Kind extraction is
// best-effort and never required for correctness.
func decodeError(b []byte, pos int) (Value, int, error) {
	line, next, err := readLine(b, pos)
	if err != nil {
		return Nil, 0, err
	}
	kind, msg := splitErrorLine(line)
	return Value{kind: KindError, ekind: kind, emsg: msg}, next, nil
}

func splitErrorLine(line []byte) (kind, msg string) {
	i := bytes.IndexByte(line, ' ')
	token := line
	if i >= 0 {
		token = line[:i]
	}
	if len(token) == 0 || !isUpperToken(token) {
		return "", string(line)
	}
	if i < 0 {
		return string(token), ""
	}
	return string(token), string(line[i+1:])
}

func isUpperToken(token []byte) bool {
	for _, c := range token {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

func decodeInteger(b []byte, pos int) (Value, int, error) {
	n, next, err := readHeader(b, pos)
	if err != nil {
		return Nil, 0, err
	}
	return Value{kind: KindInteger, num: n}, next, nil
}

func decodeBulk(b []byte, pos int, limit int64) (Value, int, error) {
	n, next, err := readHeader(b, pos)
	if err != nil {
		return Nil, 0, err
	}
	switch {
	case n == -1:
		return Nil, next, nil
	case n < -1:
		return Nil, 0, &ProtocolError{Message: "invalid bulk string length " + strconv.FormatInt(n, 10)}
	case n > limit:
		return Nil, 0, &SizeLimitError{Size: n, Limit: limit}
	}
	size := int(n)
	if len(b)-next < size+2 {
		return Nil, 0, ErrIncomplete
	}
	if !bytes.Equal(b[next+size:next+size+2], crlf) {
		return Nil, 0, &ProtocolError{Message: "bulk string missing CRLF terminator"}
	}
	payload := make([]byte, size)
	copy(payload, b[next:next+size])
	return Value{kind: KindBulk, str: payload}, next + size + 2, nil
}

func decodeArray(b []byte, pos int, limit int64) (Value, int, error) {
	n, next, err := readHeader(b, pos)
	if err != nil {
		return Nil, 0, err
	}
	switch {
	case n == -1:
		return Nil, next, nil
	case n < -1:
		return Nil, 0, &ProtocolError{Message: "invalid array length " + strconv.FormatInt(n, 10)}
	case n > maxArrayElements:
		return Nil, 0, &SizeLimitError{Size: n, Limit: maxArrayElements}
	}
	// Element count comes from the wire; cap the preallocation so a
	// large header cannot commit memory before the elements exist.
	capHint := n
	if capHint > 1024 {
		capHint = 1024
	}
	items := make([]Value, 0, capHint)
	for i := int64(0); i < n; i++ {
		item, itemNext, err := decodeValue(b, next, limit)
		if err != nil {
			return Nil, 0, err
		}
		items = append(items, item)
		next = itemNext
	}
	return Value{kind: KindArray, arr: items}, next, nil
}
