package redisc

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
	"go.uber.org/zap"

	"github.com/pell/redisc/resp"
)

// Config holds the per-connection protocol engine settings. The zero
// value is usable: every field falls back to its documented default.
type Config struct {
	// MaxFrameBytes is the largest single frame accepted in either
	// direction. A peer declaring a longer bulk string fails the
	// connection with a size-limit error before the data is read.
	// Defaults to resp.DefaultMaxFrameBytes. Ignored when Pool is set;
	// the pool's ceiling applies instead.
	MaxFrameBytes int `env:"REDISC_MAX_FRAME_BYTES"`

	// InitialBufferBytes is the starting capacity of frame buffers.
	// Defaults to 4096.
	InitialBufferBytes int `env:"REDISC_INITIAL_BUFFER_BYTES"`

	// MaxPooledBuffers bounds the shared default buffer pool. Two
	// buffers are held per connection. Defaults to 64.
	MaxPooledBuffers int32 `env:"REDISC_MAX_POOLED_BUFFERS"`

	// ExitOnUnsubscribe controls whether the connection leaves
	// subscriber mode once the server reports zero remaining
	// subscriptions. The protocol does not pin this down, so it is
	// configurable; the default is false (stay in subscriber mode).
	ExitOnUnsubscribe bool `env:"REDISC_EXIT_ON_UNSUBSCRIBE"`

	// Pool supplies frame buffers. When nil, a process-wide pool
	// sized from this config is used.
	Pool *BufferPool

	// Logger receives asynchronous events that have no caller to
	// report to: dropped push messages, connection failures. Defaults
	// to a no-op logger.
	Logger *zap.Logger
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxFrameBytes:      resp.DefaultMaxFrameBytes,
		InitialBufferBytes: 4096,
		MaxPooledBuffers:   64,
	}
}

// ConfigFromEnv loads config from the environment, reading a .env file
// first when one is present in the working directory.
func ConfigFromEnv(ctx context.Context) (Config, error) {
	// A missing .env file is not an error; the environment wins.
	_ = godotenv.Load()

	cfg := Config{}
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = resp.DefaultMaxFrameBytes
	}
	if c.InitialBufferBytes <= 0 {
		c.InitialBufferBytes = 4096
	}
	if c.MaxPooledBuffers <= 0 {
		c.MaxPooledBuffers = 64
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}
