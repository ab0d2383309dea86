package resp

import "strconv"

var crlf = []byte("\r\n")

// AppendCommand appends the encoding of a command, a RESP array of
// bulk strings with one element per argument, to dst and returns the
// extended slice. Lengths are explicit on the wire, so argument bytes may
// contain arbitrary binary data including CR and LF.
func AppendCommand(dst []byte, args [][]byte) []byte {
	dst = appendHeader(dst, '*', int64(len(args)))
	for _, arg := range args {
		dst = appendBulk(dst, arg)
	}
	return dst
}

// AppendValue appends the encoding of an arbitrary value to dst.
// Nil encodes as the null bulk string "$-1".
func AppendValue(dst []byte, v Value) []byte {
	switch v.kind {
	case KindNil:
		return appendHeader(dst, '$', -1)
	case KindInteger:
		return appendHeader(dst, ':', v.num)
	case KindSimple:
		return appendLine(dst, '+', v.str)
	case KindError:
		line := v.emsg
		if v.ekind != "" {
			line = v.ekind + " " + v.emsg
		}
		return appendLine(dst, '-', []byte(line))
	case KindBulk:
		return appendBulk(dst, v.str)
	case KindArray:
		dst = appendHeader(dst, '*', int64(len(v.arr)))
		for _, item := range v.arr {
			dst = AppendValue(dst, item)
		}
		return dst
	}
	return dst
}

// commandSize reports the encoded size of a command without encoding it.
func commandSize(args [][]byte) int {
	n := headerSize(int64(len(args)))
	for _, arg := range args {
		n += headerSize(int64(len(arg))) + len(arg) + 2
	}
	return n
}

func headerSize(n int64) int {
	size := 3 // tag + CRLF
	if n < 0 {
		size++
		n = -n
	}
	for {
		size++
		n /= 10
		if n == 0 {
			return size
		}
	}
}

func appendHeader(dst []byte, tag byte, n int64) []byte {
	dst = append(dst, tag)
	dst = strconv.AppendInt(dst, n, 10)
	return append(dst, crlf...)
}

func appendLine(dst []byte, tag byte, line []byte) []byte {
	dst = append(dst, tag)
	dst = append(dst, line...)
	return append(dst, crlf...)
}

func appendBulk(dst []byte, payload []byte) []byte {
	dst = appendHeader(dst, '$', int64(len(payload)))
	dst = append(dst, payload...)
	return append(dst, crlf...)
}
