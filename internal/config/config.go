package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/edgedbg/vscreen/internal/frame"
)

// OpenOCDTarget is the sentinel target name selecting the OpenOCD backend
// instead of a J-Link device.
const OpenOCDTarget = "OPENOCD"

// ErrUnsupportedFormat reports a pixel format/geometry combination the
// decoder cannot handle. Rejected at startup, before the loop runs.
var ErrUnsupportedFormat = errors.New("unsupported display configuration")

// Default probe server endpoints.
const (
	DefaultGDBAddr     = "localhost:2331"
	DefaultRTTAddr     = "localhost:19021"
	DefaultOpenOCDAddr = "localhost:6666"
)

// Config holds all runtime configuration.
type Config struct {
	Target    string // device name, or OpenOCDTarget
	Interface string // "swd" or "jtag"
	Display   frame.DisplayConfig

	ProbeAddr string // TCP endpoint of the probe server
	RTTAddr   string // RTT telnet endpoint (J-Link only)
	Mirror    string // websocket mirror listen address, empty to disable
	Quality   int    // mirror JPEG quality
}

// OpenOCD reports whether the OpenOCD backend was selected.
func (c *Config) OpenOCD() bool { return c.Target == OpenOCDTarget }

// ParseFlags parses the command line: vscreen [flags] <target>.
func ParseFlags(args []string) (*Config, error) {
	cfg := &Config{}
	var display, address string

	fs := flag.NewFlagSet("vscreen", flag.ContinueOnError)
	fs.StringVar(&cfg.Interface, "interface", "swd", "Debug interface (swd or jtag)")
	fs.StringVar(&display, "display", "mono", "Type of display to emulate (mono or rgb565)")
	fs.IntVar(&cfg.Display.Width, "width", 128, "Width of the display in pixels")
	fs.IntVar(&cfg.Display.Height, "height", 64, "Height of the display in pixels")
	fs.IntVar(&cfg.Display.FPS, "fps", 60, "Emulated frame rate")
	fs.IntVar(&cfg.Display.Scale, "scale", 2, "Window pixels per device pixel")
	fs.BoolVar(&cfg.Display.Packed, "packed", false, "Read RGB565 pixels as packed 64-bit quartets")
	fs.StringVar(&address, "address", "", "Framebuffer address in hex (required for OPENOCD)")
	fs.StringVar(&cfg.ProbeAddr, "probe-addr", "", "TCP endpoint of the probe server")
	fs.StringVar(&cfg.RTTAddr, "rtt-addr", DefaultRTTAddr, "RTT telnet endpoint (J-Link)")
	fs.StringVar(&cfg.Mirror, "mirror", "", "Listen address for the websocket frame mirror (disabled if empty)")
	fs.IntVar(&cfg.Quality, "quality", 70, "Mirror JPEG quality (1-100)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() != 1 {
		return nil, errors.New("usage: vscreen [flags] <target>")
	}
	cfg.Target = strings.ToUpper(strings.TrimSpace(fs.Arg(0)))

	cfg.Interface = strings.ToLower(strings.TrimSpace(cfg.Interface))
	if cfg.Interface != "swd" && cfg.Interface != "jtag" {
		return nil, fmt.Errorf("unknown debug interface %q (want swd or jtag)", cfg.Interface)
	}

	switch strings.ToLower(strings.TrimSpace(display)) {
	case "mono":
		cfg.Display.Format = frame.Mono1bpp
	case "rgb565":
		cfg.Display.Format = frame.RGB565
	default:
		return nil, fmt.Errorf("unknown display type %q (want mono or rgb565)", display)
	}

	if address != "" {
		addr, err := parseHexAddress(address)
		if err != nil {
			return nil, fmt.Errorf("invalid framebuffer address %q: %v", address, err)
		}
		cfg.Display.Addr = addr
	}
	if cfg.OpenOCD() && cfg.Display.Addr == 0 {
		return nil, errors.New("OPENOCD target has no log channel: a non-zero -address is required")
	}

	if cfg.ProbeAddr == "" {
		if cfg.OpenOCD() {
			cfg.ProbeAddr = DefaultOpenOCDAddr
		} else {
			cfg.ProbeAddr = DefaultGDBAddr
		}
	}

	if err := validateDisplay(cfg.Display); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateDisplay(d frame.DisplayConfig) error {
	if d.Width <= 0 || d.Height <= 0 {
		return fmt.Errorf("%w: display size %dx%d", ErrUnsupportedFormat, d.Width, d.Height)
	}
	if d.Format == frame.Mono1bpp && d.Height%8 != 0 {
		return fmt.Errorf("%w: mono height %d is not a multiple of 8", ErrUnsupportedFormat, d.Height)
	}
	if d.Packed && d.Format != frame.RGB565 {
		return fmt.Errorf("%w: packed reads apply to rgb565 only", ErrUnsupportedFormat)
	}
	if d.Packed && d.Width%4 != 0 {
		return fmt.Errorf("%w: packed rgb565 width %d is not a multiple of 4", ErrUnsupportedFormat, d.Width)
	}
	if d.FPS <= 0 {
		return fmt.Errorf("%w: frame rate %d", ErrUnsupportedFormat, d.FPS)
	}
	if d.Scale <= 0 {
		return fmt.Errorf("%w: scale %d", ErrUnsupportedFormat, d.Scale)
	}
	return nil
}

func parseHexAddress(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		s = s[2:]
	}
	return strconv.ParseUint(s, 16, 64)
}
