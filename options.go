package nand

import (
	"io"
	"log/slog"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Config holds the controller configuration.
type Config struct {
	// Revision selects the register layout. Zero means read VERSION once in
	// New.
	Revision ChipRevision

	// Clock is the controller core clock used to convert SDR timings into
	// cycles.
	Clock physic.Frequency

	// Pins is asked once in Init for the NAND interface pins (optional).
	Pins PinAllocator

	// Logger receives correctable ECC reports and bring-up progress.
	Logger *slog.Logger

	// PollInterval is the sleep between two status register polls. Zero
	// spins.
	PollInterval time.Duration

	// FIFOTimeout bounds every command FIFO and codeword wait.
	FIFOTimeout time.Duration

	// BlockCount is the number of blocks on the device. Zero means unknown:
	// addresses are not range checked and the bad-block map grows on demand.
	BlockCount int

	// BadBlockCapacity caps the number of blocks whose scan result is
	// cached. Negative means the whole device.
	BadBlockCapacity int
}

// LegacyBadBlockCapacity is the fixed cache size of the original 32-bit
// bad-block bitmap.
const LegacyBadBlockCapacity = 32

func defaultConfig() Config {
	return Config{
		Clock:            DefaultClock,
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		FIFOTimeout:      10 * time.Millisecond,
		BadBlockCapacity: -1,
	}
}

// Option is a functional option for configuring the Controller.
type Option func(*Config)

// WithRevision selects the controller register layout instead of reading
// the VERSION register.
func WithRevision(rev ChipRevision) Option {
	return func(c *Config) {
		c.Revision = rev
	}
}

// WithClock sets the controller core clock.
//
// Example:
//
//	ctrl, err := nand.New(regs, nand.WithClock(200*physic.MegaHertz))
func WithClock(f physic.Frequency) Option {
	return func(c *Config) {
		if f > 0 {
			c.Clock = f
		}
	}
}

// WithPins sets the pin allocator called by Init.
func WithPins(p PinAllocator) Option {
	return func(c *Config) {
		c.Pins = p
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithPollInterval sets the sleep between status polls.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		if d >= 0 {
			c.PollInterval = d
		}
	}
}

// WithFIFOTimeout bounds command FIFO and codeword waits.
func WithFIFOTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.FIFOTimeout = d
		}
	}
}

// WithBlockCount sets the device block count. The bad-block map is sized to
// it.
func WithBlockCount(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.BlockCount = n
		}
	}
}

// WithLegacyBadBlockCap limits the bad-block cache to the first
// LegacyBadBlockCapacity blocks. Blocks beyond it are scanned on every use.
func WithLegacyBadBlockCap() Option {
	return func(c *Config) {
		c.BadBlockCapacity = LegacyBadBlockCapacity
	}
}
