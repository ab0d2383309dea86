package redisc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewCommandCoercion(t *testing.T) {
	tests := []struct {
		name     string
		arg      interface{}
		expected string
	}{
		{"string", "value", "value"},
		{"bytes", []byte{0x00, 0x01}, "\x00\x01"},
		{"int", 42, "42"},
		{"int64", int64(-7), "-7"},
		{"uint64", uint64(18446744073709551615), "18446744073709551615"},
		{"float64", 1.5, "1.5"},
		{"bool true", true, "1"},
		{"bool false", false, "0"},
		{"stringer", net.IPv4(127, 0, 0, 1), "127.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewCommand("SET", "k", tt.arg)
			args := cmd.Args()
			require.Len(t, args, 3)
			require.Equal(t, tt.expected, string(args[2]))
		})
	}
}

func TestCommandName(t *testing.T) {
	require.Equal(t, "GET", NewCommand("GET", "k").Name())
	require.Equal(t, "", (&Command{}).Name())
}

func TestCommandArgChaining(t *testing.T) {
	cmd := NewCommand("SET", "k", "v").Arg("EX").Arg(30)
	args := cmd.Args()
	require.Len(t, args, 5)
	require.Equal(t, "EX", string(args[3]))
	require.Equal(t, "30", string(args[4]))
}

func TestSubscribeFamily(t *testing.T) {
	tests := []struct {
		name     string
		expected subscribeKind
	}{
		{"SUBSCRIBE", subChannel},
		{"subscribe", subChannel},
		{"PSubscribe", subPattern},
		{"UNSUBSCRIBE", subUnsubChannel},
		{"punsubscribe", subUnsubPattern},
		{"GET", subNone},
		{"PUBLISH", subNone},
	}
	for _, tt := range tests {
		require.Equal(t, tt.expected, subscribeFamily(tt.name), "command %s", tt.name)
	}
}
