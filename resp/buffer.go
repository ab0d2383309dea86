package resp

// Buffer is a growable byte region with a hard capacity ceiling, used
// as the per-connection framing area on both the encode and decode
// paths. It is owned by exactly one connection at a time and is not
// safe for concurrent use.
type Buffer struct {
	data []byte
	off  int
	max  int
}

// DefaultMaxFrameBytes bounds a single frame (and therefore the buffer)
// when no explicit limit is configured. Redis itself caps bulk strings
// at 512MB; a client rarely wants frames anywhere near that.
const DefaultMaxFrameBytes = 64 << 20

// NewBuffer returns a Buffer with the given initial capacity and
// ceiling. A non-positive max falls back to DefaultMaxFrameBytes.
func NewBuffer(initial, max int) *Buffer {
	if max <= 0 {
		max = DefaultMaxFrameBytes
	}
	if initial < 0 {
		initial = 0
	}
	if initial > max {
		initial = max
	}
	return &Buffer{data: make([]byte, 0, initial), max: max}
}

// Write appends p, growing on demand up to the ceiling. Exceeding the
// ceiling fails with a SizeLimitError and leaves the buffer unchanged.
func (b *Buffer) Write(p []byte) error {
	if err := b.reserve(len(p)); err != nil {
		return err
	}
	b.data = append(b.data, p...)
	return nil
}

// WriteCommand encodes args as a RESP array of bulk strings into the
// buffer, enforcing the ceiling against the encoded size up front.
func (b *Buffer) WriteCommand(args [][]byte) error {
	if err := b.reserve(commandSize(args)); err != nil {
		return err
	}
	b.data = AppendCommand(b.data, args)
	return nil
}

// WriteValue encodes v into the buffer.
func (b *Buffer) WriteValue(v Value) error {
	encoded := AppendValue(nil, v)
	return b.Write(encoded)
}

// reserve checks the ceiling against n more bytes of unread data and
// reclaims already-consumed space when growth would otherwise be needed.
func (b *Buffer) reserve(n int) error {
	unread := len(b.data) - b.off
	if unread+n > b.max {
		return &SizeLimitError{Size: int64(unread + n), Limit: int64(b.max)}
	}
	if len(b.data)+n > cap(b.data) && b.off > 0 {
		copy(b.data, b.data[b.off:])
		b.data = b.data[:unread]
		b.off = 0
	}
	return nil
}

// Bytes returns the unread portion of the buffer. The slice is only
// valid until the next Write or Discard.
func (b *Buffer) Bytes() []byte { return b.data[b.off:] }

// Len reports the number of unread bytes.
func (b *Buffer) Len() int { return len(b.data) - b.off }

// Max reports the capacity ceiling.
func (b *Buffer) Max() int { return b.max }

// Discard consumes n unread bytes from the front.
func (b *Buffer) Discard(n int) {
	b.off += n
	if b.off >= len(b.data) {
		b.data = b.data[:0]
		b.off = 0
	}
}

// Reset drops all content but keeps the allocated storage.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.off = 0
}
