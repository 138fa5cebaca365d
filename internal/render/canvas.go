package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Canvas is the drawing surface the render loop paints each tick.
type Canvas interface {
	Clear(c color.RGBA)
	DrawLine(x0, y0, x1, y1 int, c color.RGBA)
	FillSquare(x, y, size int, c color.RGBA)
	// Present pushes the finished frame to the attached sinks.
	Present()
}

// FrameSink receives completed frames at present time.
type FrameSink interface {
	PushFrame(img *image.RGBA)
}

// ImageCanvas draws into an RGBA buffer and fans finished frames out to its
// sinks. The buffer is reused across ticks; sinks get a copy.
type ImageCanvas struct {
	img   *image.RGBA
	sinks []FrameSink
}

func NewImageCanvas(w, h int, sinks ...FrameSink) *ImageCanvas {
	return &ImageCanvas{
		img:   image.NewRGBA(image.Rect(0, 0, w, h)),
		sinks: sinks,
	}
}

func (cv *ImageCanvas) Clear(c color.RGBA) {
	draw.Draw(cv.img, cv.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawLine draws a 1-pixel line between the two points, endpoints included.
func (cv *ImageCanvas) DrawLine(x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := step(x0, x1)
	sy := step(y0, y1)
	err := dx + dy
	for {
		cv.set(x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		if e2 := 2 * err; e2 >= dy {
			err += dy
			x0 += sx
		} else {
			err += dx
			y0 += sy
		}
	}
}

func (cv *ImageCanvas) FillSquare(x, y, size int, c color.RGBA) {
	r := image.Rect(x, y, x+size, y+size).Intersect(cv.img.Bounds())
	draw.Draw(cv.img, r, image.NewUniform(c), image.Point{}, draw.Src)
}

func (cv *ImageCanvas) Present() {
	if len(cv.sinks) == 0 {
		return
	}
	out := image.NewRGBA(cv.img.Bounds())
	copy(out.Pix, cv.img.Pix)
	for _, s := range cv.sinks {
		s.PushFrame(out)
	}
}

func (cv *ImageCanvas) set(x, y int, c color.RGBA) {
	if image.Pt(x, y).In(cv.img.Bounds()) {
		cv.img.SetRGBA(x, y, c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func step(from, to int) int {
	if from < to {
		return 1
	}
	return -1
}
