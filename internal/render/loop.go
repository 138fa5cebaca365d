package render

import (
	"context"
	"image"
	"image/color"
	"log"
	"time"

	"github.com/edgedbg/vscreen/internal/frame"
	"github.com/edgedbg/vscreen/internal/probe"
)

// midline is the diagnostic marker drawn across the vertical center of the
// canvas before each frame.
var midline = color.RGBA{R: 64, G: 64, B: 64, A: 255}

// Loop drives the fetch-decode-paint cycle at the configured frame rate.
// One goroutine runs the whole cycle; a failed fetch or decode skips the
// tick and leaves the last presented frame on screen.
type Loop struct {
	cfg    frame.DisplayConfig
	probe  probe.DebugProbe
	canvas Canvas
}

func NewLoop(cfg frame.DisplayConfig, p probe.DebugProbe, cv Canvas) *Loop {
	return &Loop{cfg: cfg, probe: p, canvas: cv}
}

// Run ticks until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.cfg.FPS))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.tick(); err != nil {
				log.Printf("frame skipped: %v", err)
			}
		}
	}
}

func (l *Loop) tick() error {
	raw, err := l.fetch()
	if err != nil {
		return err
	}
	img, err := frame.Decode(l.cfg, raw)
	if err != nil {
		return err
	}
	l.paint(img)
	return nil
}

// fetch reads one full frame from target memory, stopping the core around
// the read for probes that need it.
func (l *Loop) fetch() (frame.RawFrame, error) {
	if h, ok := l.probe.(probe.Halter); ok {
		if err := h.Halt(); err != nil {
			return frame.RawFrame{}, err
		}
		defer func() {
			if err := h.Resume(); err != nil {
				log.Printf("resume after read: %v", err)
			}
		}()
	}
	data, err := l.probe.ReadMemory(l.cfg.Addr, l.cfg.UnitCount(), l.cfg.UnitBits())
	if err != nil {
		return frame.RawFrame{}, err
	}
	return frame.RawFrame{Data: data, UnitBits: l.cfg.UnitBits()}, nil
}

func (l *Loop) paint(img *image.RGBA) {
	s := l.cfg.Scale
	l.canvas.Clear(frame.Background)
	my := l.cfg.Height * s / 2
	l.canvas.DrawLine(0, my, l.cfg.Width*s-1, my, midline)
	for y := 0; y < l.cfg.Height; y++ {
		for x := 0; x < l.cfg.Width; x++ {
			c := img.RGBAAt(x, y)
			// Mono backgrounds are already there from the clear; color
			// frames paint every pixel so black covers the midline too.
			if l.cfg.Format == frame.Mono1bpp && c == frame.Background {
				continue
			}
			l.canvas.FillSquare(x*s, y*s, s, c)
		}
	}
	l.canvas.Present()
}
