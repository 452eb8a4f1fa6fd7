package protocol

import (
	"time"

	"go.uber.org/zap"
)

// Defaults from the LightWare reference library.
const (
	DefaultTimeout = 200 * time.Millisecond
	DefaultRetries = 4
)

// Recorder receives link statistics. metrics.LinkMetrics implements it.
type Recorder interface {
	// FrameReceived is called for every frame boundary the parser sees.
	// result is one of "ok", "bad_length", "bad_crc" or "unexpected".
	FrameReceived(result string)

	// RequestDone is called once per Do with result "ok", "timeout",
	// "transport" or "cancelled".
	RequestDone(command byte, result string, attempts int, elapsed time.Duration)
}

// Config holds the session configuration.
type Config struct {
	// Timeout bounds the wait for a response to a single attempt
	Timeout time.Duration

	// Retries is the number of attempts per request, each of which re-sends the frame
	Retries int

	// MinInterval is the dead time enforced between transmitted frames (0 disables)
	MinInterval time.Duration

	// PollInterval is how long the receive loop sleeps after a read that returned nothing
	PollInterval time.Duration

	// RxBufferSize is the capacity of the received byte queue
	RxBufferSize int

	Logger   *zap.Logger
	Recorder Recorder
}

func defaultConfig() Config {
	return Config{
		Timeout:      DefaultTimeout,
		Retries:      DefaultRetries,
		PollInterval: time.Millisecond,
		RxBufferSize: 2048,
		Logger:       zap.NewNop(),
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithTimeout sets the per-attempt response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.Timeout = timeout
		}
	}
}

// WithRetries sets the number of attempts per request.
// Write commands are re-sent on every attempt, so a device may apply them more than once.
func WithRetries(retries int) Option {
	return func(c *Config) {
		if retries > 0 {
			c.Retries = retries
		}
	}
}

// WithMinInterval enforces dead time between frames written to the device.
func WithMinInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.MinInterval = d
		}
	}
}

// WithPollInterval sets the back-off used when the transport has nothing to read.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.PollInterval = d
		}
	}
}

// WithLogger sets the logger. A nil logger is ignored.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithRecorder installs a statistics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Config) {
		c.Recorder = r
	}
}
