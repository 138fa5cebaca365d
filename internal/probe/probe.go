// Package probe talks to hardware debug probe servers over TCP and exposes
// the narrow surface the render loop needs: raw target-memory reads plus the
// probe's logging channel.
package probe

import (
	"errors"
	"time"
)

// DebugProbe reads target memory over a hardware debug connection.
type DebugProbe interface {
	// Connect establishes the debug session with the named target over the
	// given wire interface ("swd" or "jtag").
	Connect(target, iface string) error

	// ReadMemory reads units memory units of unitBits width starting at addr
	// and returns their little-endian byte representation.
	ReadMemory(addr uint64, units, unitBits int) ([]byte, error)

	// ReadLogChannel returns bytes pending on the probe's logging channel,
	// waiting at most timeout. A nil slice with nil error means no output
	// arrived within the window.
	ReadLogChannel(channel int, timeout time.Duration) ([]byte, error)

	Close() error
}

// Halter is implemented by probes that need a stopped core around memory
// reads. The render loop brackets each fetch with Halt/Resume when present.
type Halter interface {
	Halt() error
	Resume() error
}

var (
	// ErrConnection means the probe server is unreachable or refused us.
	ErrConnection = errors.New("probe connection failed")
	// ErrAddressDiscovery means the target never announced its framebuffer
	// address on the log channel.
	ErrAddressDiscovery = errors.New("framebuffer address not reported")
	// ErrNoLogChannel is returned by probes without a logging channel.
	ErrNoLogChannel = errors.New("probe has no log channel")
)
