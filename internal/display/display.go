package display

import (
	"context"
	"image"
)

// Display presents rendered frames in a window.
type Display interface {
	// Run opens the window and blocks until it is closed or ctx is
	// cancelled. Must be called from the main goroutine.
	Run(ctx context.Context) error

	// PushFrame replaces the displayed frame. Safe to call from the poll
	// goroutine.
	PushFrame(img *image.RGBA)
}
