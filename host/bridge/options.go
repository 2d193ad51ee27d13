package bridge

import "time"

// Progress phases
const (
	PhaseErasing     = "erasing"
	PhaseProgramming = "programming"
	PhaseVerifying   = "verifying"
	PhaseReading     = "reading"
	PhaseComplete    = "complete"
)

// Progress reports how far a flash operation has come
type Progress struct {
	Phase string

	// Done and Total count bytes
	Done  int
	Total int

	ElapsedTime time.Duration
}

// ProgressCallback is called after each chunk. It should return quickly.
type ProgressCallback func(Progress)

// Config holds the client and flasher configuration.
type Config struct {
	// ReadTimeout bounds how long a response may take to arrive
	ReadTimeout time.Duration

	// ChunkSize is the largest body sent in one command. It is rounded
	// down to an even number so program chunks never split a byte pair.
	ChunkSize int

	// BusyTimeout bounds how long an erase may keep the flash busy
	BusyTimeout time.Duration

	// ProgressCallback is called during long operations (optional)
	ProgressCallback ProgressCallback
}

func defaultConfig() Config {
	return Config{
		ReadTimeout: 5 * time.Second,
		ChunkSize:   maxBody,
		BusyTimeout: 60 * time.Second,
	}
}

// Option is a functional option for Client and Flasher
type Option func(*Config)

// WithReadTimeout sets the response timeout
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.ReadTimeout = timeout
	}
}

// WithChunkSize sets the largest body per command
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size >= 2 && size <= maxBody {
			c.ChunkSize = size &^ 1
		}
	}
}

// WithBusyTimeout sets how long to wait for an erase to finish
func WithBusyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.BusyTimeout = timeout
	}
}

// WithProgressCallback sets a callback to track flash operations
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}
