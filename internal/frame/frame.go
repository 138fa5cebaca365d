package frame

import "image/color"

// PixelFormat selects how raw framebuffer memory is interpreted.
type PixelFormat int

const (
	// Mono1bpp is a paged monochrome bitmap: each byte encodes 8 vertically
	// stacked pixels, one page per 8 scanlines.
	Mono1bpp PixelFormat = iota
	// RGB565 is 16-bit color, 5 bits red, 6 bits green, 5 bits blue.
	RGB565
)

func (f PixelFormat) String() string {
	switch f {
	case Mono1bpp:
		return "mono"
	case RGB565:
		return "rgb565"
	}
	return "unknown"
}

// Display colors for mono mode.
var (
	Foreground = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Background = color.RGBA{A: 255}
)

// DisplayConfig describes the emulated display. Set once at startup,
// read-only afterwards.
type DisplayConfig struct {
	Width  int
	Height int
	Format PixelFormat
	// Packed selects 64-bit quartet reads for RGB565 targets whose probe
	// transaction is word-width-constrained.
	Packed bool
	// Addr is the framebuffer base address in target memory.
	Addr uint64
	FPS  int
	// Scale is the side length in window pixels of one device pixel.
	Scale int
}

// Pages is the number of 8-scanline bands in mono mode.
func (c DisplayConfig) Pages() int { return c.Height / 8 }

// UnitBits is the memory unit width of one read transaction.
func (c DisplayConfig) UnitBits() int {
	switch {
	case c.Format == Mono1bpp:
		return 8
	case c.Packed:
		return 64
	default:
		return 16
	}
}

// UnitCount is the number of memory units covering one full frame.
func (c DisplayConfig) UnitCount() int {
	switch {
	case c.Format == Mono1bpp:
		return c.Width * c.Pages()
	case c.Packed:
		return c.Width / 4 * c.Height
	default:
		return c.Width * c.Height
	}
}

// FrameBytes is the byte length of one full raw frame.
func (c DisplayConfig) FrameBytes() int { return c.UnitCount() * c.UnitBits() / 8 }

// RawFrame is one transaction's worth of framebuffer memory, read fresh each
// tick and discarded after the decode that consumes it.
type RawFrame struct {
	Data     []byte
	UnitBits int
}
