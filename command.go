package redisc

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is an ordered sequence of byte-string arguments; the command
// name is argument zero. A Command is immutable once submitted: the
// dispatcher owns it until it is fully written to the socket.
type Command struct {
	args [][]byte
}

// NewCommand builds a command from a name and arguments. Arguments are
// coerced to bulk strings: string, []byte, integer and float types,
// bool (0/1) and fmt.Stringer are accepted.
func NewCommand(name string, args ...interface{}) *Command {
	encoded := make([][]byte, 0, len(args)+1)
	encoded = append(encoded, []byte(name))
	for _, arg := range args {
		encoded = append(encoded, coerceArg(arg))
	}
	return &Command{args: encoded}
}

// Name returns the command name (argument zero) as written.
func (c *Command) Name() string {
	if len(c.args) == 0 {
		return ""
	}
	return string(c.args[0])
}

// Args returns the raw argument vector, including the name.
func (c *Command) Args() [][]byte { return c.args }

// Arg appends one more argument and returns the command for chaining.
func (c *Command) Arg(arg interface{}) *Command {
	c.args = append(c.args, coerceArg(arg))
	return c
}

func coerceArg(arg interface{}) []byte {
	switch v := arg.(type) {
	case string:
		return []byte(v)
	case []byte:
		return v
	case int:
		return strconv.AppendInt(nil, int64(v), 10)
	case int64:
		return strconv.AppendInt(nil, v, 10)
	case uint64:
		return strconv.AppendUint(nil, v, 10)
	case float64:
		return strconv.AppendFloat(nil, v, 'g', -1, 64)
	case bool:
		if v {
			return []byte("1")
		}
		return []byte("0")
	case fmt.Stringer:
		return []byte(v.String())
	default:
		return []byte(fmt.Sprint(v))
	}
}

// subscribeKind classifies the subscribe-family command names that flip
// a connection into subscriber mode. Matching is case-insensitive, the
// way the server matches command names.
type subscribeKind uint8

const (
	subNone subscribeKind = iota
	subChannel
	subPattern
	subUnsubChannel
	subUnsubPattern
)

func subscribeFamily(name string) subscribeKind {
	switch strings.ToUpper(name) {
	case "SUBSCRIBE":
		return subChannel
	case "PSUBSCRIBE":
		return subPattern
	case "UNSUBSCRIBE":
		return subUnsubChannel
	case "PUNSUBSCRIBE":
		return subUnsubPattern
	}
	return subNone
}
