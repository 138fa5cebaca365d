package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgedbg/vscreen/internal/config"
	"github.com/edgedbg/vscreen/internal/display"
	"github.com/edgedbg/vscreen/internal/frame"
	"github.com/edgedbg/vscreen/internal/mirror"
	"github.com/edgedbg/vscreen/internal/probe"
	"github.com/edgedbg/vscreen/internal/render"
)

// RTT discovery window: up to 50 reads of 200ms each.
const (
	discoveryReads   = 50
	discoveryTimeout = 200 * time.Millisecond
)

func main() {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal(err)
	}

	d := cfg.Display
	log.Printf("vscreen starting")
	log.Printf("  Target:    %s (%s)", cfg.Target, cfg.Interface)
	log.Printf("  Display:   %dx%d %s%s", d.Width, d.Height, d.Format, packedSuffix(d))
	log.Printf("  FPS:       %d", d.FPS)
	log.Printf("  Scale:     %d", d.Scale)

	var p probe.DebugProbe
	if cfg.OpenOCD() {
		p = probe.NewOpenOCDProbe(cfg.ProbeAddr)
	} else {
		p = probe.NewJLinkProbe(cfg.ProbeAddr, cfg.RTTAddr)
	}
	if err := p.Connect(cfg.Target, cfg.Interface); err != nil {
		log.Fatalf("probe connect: %v", err)
	}
	defer p.Close()

	// OPENOCD always has an explicit address (enforced at parse time); the
	// J-Link path may instead learn it from the boot log.
	if cfg.Display.Addr == 0 {
		addr, err := probe.DiscoverVRAM(p, discoveryReads, discoveryTimeout)
		if err != nil {
			log.Fatalf("address discovery: %v", err)
		}
		cfg.Display.Addr = addr
	}
	log.Printf("D-VRAM (display data buffer) at: 0x%X", cfg.Display.Addr)

	disp := display.NewEbitenDisplay(d.Width*d.Scale, d.Height*d.Scale)
	sinks := []render.FrameSink{disp}
	if cfg.Mirror != "" {
		m := mirror.NewServer(cfg.Mirror, cfg.Quality)
		if err := m.Start(); err != nil {
			log.Fatalf("mirror: %v", err)
		}
		defer m.Close()
		sinks = append(sinks, m)
		log.Printf("mirroring frames at http://%s/", cfg.Mirror)
	}

	canvas := render.NewImageCanvas(d.Width*d.Scale, d.Height*d.Scale, sinks...)
	loop := render.NewLoop(cfg.Display, p, canvas)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	go func() {
		if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Printf("render loop: %v", err)
		}
	}()

	// Ebitengine must run on the main goroutine; returning means the window
	// was closed or ctx was cancelled, either way we are done.
	if err := disp.Run(ctx); err != nil {
		log.Fatalf("display: %v", err)
	}
}

func packedSuffix(d frame.DisplayConfig) string {
	if d.Packed {
		return " (packed 64-bit reads)"
	}
	return ""
}
