package display

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
)

var errStopped = errors.New("display stopped")

// EbitenDisplay shows the virtual screen in an Ebitengine window. The window
// is fixed at the scaled canvas size; frames arrive pre-scaled from the
// render loop.
type EbitenDisplay struct {
	width  int
	height int

	mu    sync.Mutex
	frame *image.RGBA

	tex *ebiten.Image
	ctx context.Context
}

// NewEbitenDisplay creates a window of the given size in window pixels.
func NewEbitenDisplay(width, height int) *EbitenDisplay {
	return &EbitenDisplay{width: width, height: height}
}

// PushFrame replaces the displayed frame (called from the poll goroutine).
func (d *EbitenDisplay) PushFrame(img *image.RGBA) {
	d.mu.Lock()
	d.frame = img
	d.mu.Unlock()
}

// Run opens the window and blocks until it is closed or ctx is cancelled.
// Ebitengine requires this to run on the main goroutine.
func (d *EbitenDisplay) Run(ctx context.Context) error {
	d.ctx = ctx
	ebiten.SetWindowSize(d.width, d.height)
	ebiten.SetWindowTitle("Virtual Screen")
	if err := ebiten.RunGame(d); err != nil && !errors.Is(err, errStopped) {
		return err
	}
	return nil
}

// --- ebiten.Game interface ---

func (d *EbitenDisplay) Update() error {
	select {
	case <-d.ctx.Done():
		return errStopped
	default:
		return nil
	}
}

func (d *EbitenDisplay) Draw(screen *ebiten.Image) {
	d.mu.Lock()
	frame := d.frame
	d.mu.Unlock()

	if frame == nil {
		return
	}
	if d.tex == nil ||
		d.tex.Bounds().Dx() != frame.Bounds().Dx() ||
		d.tex.Bounds().Dy() != frame.Bounds().Dy() {
		d.tex = ebiten.NewImage(frame.Bounds().Dx(), frame.Bounds().Dy())
	}
	d.tex.WritePixels(frame.Pix)
	screen.DrawImage(d.tex, nil)
}

func (d *EbitenDisplay) Layout(outsideWidth, outsideHeight int) (int, int) {
	return d.width, d.height
}
