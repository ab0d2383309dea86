package resp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestDecoder(max int) *Decoder {
	return NewDecoder(NewBuffer(0, max))
}

func decodeOne(t *testing.T, wire string) Value {
	t.Helper()
	dec := newTestDecoder(0)
	require.NoError(t, dec.Feed([]byte(wire)))
	v, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, 0, dec.Buffered(), "frame should be fully consumed")
	return v
}

func TestDecodeFrames(t *testing.T) {
	tests := []struct {
		name     string
		wire     string
		expected Value
	}{
		{"simple string", "+OK\r\n", Simple("OK")},
		{"empty simple string", "+\r\n", Simple("")},
		{"integer", ":1000\r\n", Int(1000)},
		{"negative integer", ":-42\r\n", Int(-42)},
		{"error with kind", "-ERR unknown command\r\n", Error("ERR", "unknown command")},
		{"error with longer kind", "-WRONGTYPE Operation against a key\r\n", Error("WRONGTYPE", "Operation against a key")},
		{"error without kind convention", "-something went wrong\r\n", Error("", "something went wrong")},
		{"bare error kind", "-NOAUTH\r\n", Error("NOAUTH", "")},
		{"bulk string", "$5\r\nhello\r\n", BulkString("hello")},
		{"empty bulk string", "$0\r\n\r\n", BulkString("")},
		{"bulk string with CRLF payload", "$7\r\nab\r\ncd!\r\n", BulkString("ab\r\ncd!")},
		{"null bulk string", "$-1\r\n", Nil},
		{"null array", "*-1\r\n", Nil},
		{"empty array", "*0\r\n", Array()},
		{"array", "*2\r\n$3\r\nfoo\r\n:7\r\n", Array(BulkString("foo"), Int(7))},
		{
			"nested array",
			"*2\r\n*2\r\n+a\r\n+b\r\n$-1\r\n",
			Array(Array(Simple("a"), Simple("b")), Nil),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := decodeOne(t, tt.wire)
			require.True(t, tt.expected.Equal(v), "decoded %s, want %s", v, tt.expected)
		})
	}
}

func TestDecodeNullIsNotEmpty(t *testing.T) {
	null := decodeOne(t, "$-1\r\n")
	empty := decodeOne(t, "$0\r\n\r\n")
	require.True(t, null.IsNil())
	require.False(t, empty.IsNil())
	require.False(t, null.Equal(empty))

	nullArr := decodeOne(t, "*-1\r\n")
	emptyArr := decodeOne(t, "*0\r\n")
	require.True(t, nullArr.IsNil())
	require.False(t, emptyArr.IsNil())
	require.False(t, nullArr.Equal(emptyArr))
}

func TestDecodeByteAtATime(t *testing.T) {
	wire := "*3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n"
	dec := newTestDecoder(0)

	for i := 0; i < len(wire)-1; i++ {
		require.NoError(t, dec.Feed([]byte{wire[i]}))
		_, err := dec.Next()
		require.ErrorIs(t, err, ErrIncomplete, "frame complete too early at byte %d", i)
		require.Equal(t, i+1, dec.Buffered(), "incomplete decode must not consume")
	}

	require.NoError(t, dec.Feed([]byte{wire[len(wire)-1]}))
	v, err := dec.Next()
	require.NoError(t, err)
	require.Equal(t, 0, dec.Buffered())

	expected := Array(BulkString("message"), BulkString("news"), BulkString("hello"))
	require.True(t, expected.Equal(v))
}

func TestDecodePipelinedFrames(t *testing.T) {
	dec := newTestDecoder(0)
	require.NoError(t, dec.Feed([]byte("+OK\r\n:3\r\n$2\r\nhi\r\n")))

	v, err := dec.Next()
	require.NoError(t, err)
	require.True(t, v.OK())

	v, err = dec.Next()
	require.NoError(t, err)
	n, err := v.Int()
	require.NoError(t, err)
	require.Equal(t, int64(3), n)

	v, err = dec.Next()
	require.NoError(t, err)
	s, err := v.Text()
	require.NoError(t, err)
	require.Equal(t, "hi", s)

	_, err = dec.Next()
	require.ErrorIs(t, err, ErrIncomplete)
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		wire string
	}{
		{"unknown type tag", "?3\r\n"},
		{"bulk length below -1", "$-2\r\n"},
		{"array length below -1", "*-2\r\n"},
		{"non-numeric bulk length", "$abc\r\n"},
		{"non-numeric array length", "*1.5\r\n"},
		{"bulk payload missing terminator", "$3\r\nabcXY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := newTestDecoder(0)
			require.NoError(t, dec.Feed([]byte(tt.wire)))
			_, err := dec.Next()
			var perr *ProtocolError
			require.ErrorAs(t, err, &perr)
		})
	}
}

func TestDecodeBulkOverLimit(t *testing.T) {
	dec := newTestDecoder(64)
	require.NoError(t, dec.Feed([]byte("$100\r\n")))
	_, err := dec.Next()

	var serr *SizeLimitError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, int64(100), serr.Size)
	require.Equal(t, int64(64), serr.Limit)
}

func TestDecodeArrayHeaderOverLimit(t *testing.T) {
	dec := newTestDecoder(0)
	require.NoError(t, dec.Feed([]byte("*1048577\r\n")))
	_, err := dec.Next()

	var serr *SizeLimitError
	require.ErrorAs(t, err, &serr)
}

func TestDecodeLineTooLong(t *testing.T) {
	dec := newTestDecoder(0)
	require.NoError(t, dec.Feed([]byte("+"+strings.Repeat("a", MaxLineBytes+2))))
	_, err := dec.Next()

	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
}

func TestFeedOverBufferCeiling(t *testing.T) {
	dec := newTestDecoder(16)
	err := dec.Feed([]byte(strings.Repeat("x", 17)))

	var serr *SizeLimitError
	require.ErrorAs(t, err, &serr)
}

func TestDecodeResumesAfterPartialBulk(t *testing.T) {
	dec := newTestDecoder(0)
	require.NoError(t, dec.Feed([]byte("$5\r\nhel")))

	_, err := dec.Next()
	require.ErrorIs(t, err, ErrIncomplete)
	require.Equal(t, 7, dec.Buffered())

	require.NoError(t, dec.Feed([]byte("lo\r\n")))
	v, err := dec.Next()
	require.NoError(t, err)
	require.True(t, BulkString("hello").Equal(v))
}

func TestAppendCommand(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"get", []string{"GET", "foo"}, "*2\r\n$3\r\nGET\r\n$3\r\nfoo\r\n"},
		{"set", []string{"SET", "k", "v"}, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$1\r\nv\r\n"},
		{"binary argument", []string{"SET", "k", "a\r\nb"}, "*3\r\n$3\r\nSET\r\n$1\r\nk\r\n$4\r\na\r\nb\r\n"},
		{"empty argument", []string{"ECHO", ""}, "*2\r\n$4\r\nECHO\r\n$0\r\n\r\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := make([][]byte, len(tt.args))
			for i, a := range tt.args {
				args[i] = []byte(a)
			}
			encoded := AppendCommand(nil, args)
			require.Equal(t, tt.expected, string(encoded))
			require.Equal(t, len(encoded), commandSize(args), "size estimate must match encoding")
		})
	}
}

func TestAppendValueRoundTrip(t *testing.T) {
	values := []Value{
		Nil,
		Int(0),
		Int(-123456),
		Simple("PONG"),
		BulkString("payload"),
		BulkString(""),
		Error("ERR", "boom"),
		Array(),
		Array(BulkString("message"), BulkString("ch"), BulkString("body")),
		Array(Array(Int(1), Int(2)), Nil, Simple("done")),
	}

	for _, v := range values {
		encoded := AppendValue(nil, v)
		decoded := decodeOne(t, string(encoded))
		require.True(t, v.Equal(decoded), "round trip of %s yielded %s", v, decoded)
	}
}

func TestErrIncompleteIdentity(t *testing.T) {
	dec := newTestDecoder(0)
	_, err := dec.Next()
	require.True(t, errors.Is(err, ErrIncomplete))
}
