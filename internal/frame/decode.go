package frame

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// ErrFrameSize reports a raw frame whose length disagrees with the configured
// geometry. The tick that produced it is skipped; nothing is painted.
var ErrFrameSize = errors.New("frame size mismatch")

// Decode interprets raw per the configured pixel format and returns the frame
// as a W×H RGBA image.
func Decode(cfg DisplayConfig, raw RawFrame) (*image.RGBA, error) {
	if raw.UnitBits != cfg.UnitBits() {
		return nil, fmt.Errorf("%w: read %d-bit units, format wants %d-bit",
			ErrFrameSize, raw.UnitBits, cfg.UnitBits())
	}
	if len(raw.Data) != cfg.FrameBytes() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d for %dx%d %s",
			ErrFrameSize, len(raw.Data), cfg.FrameBytes(), cfg.Width, cfg.Height, cfg.Format)
	}
	switch {
	case cfg.Format == Mono1bpp:
		return decodeMono(cfg, raw.Data), nil
	case cfg.Packed:
		return decodePacked(cfg, raw.Data), nil
	default:
		return decodeRGB565(cfg, raw.Data), nil
	}
}

// decodeMono unpacks a paged 1bpp bitmap: the byte at column+page*W holds 8
// vertical pixels of that page, bit 0 topmost, so y = bit + page*8.
func decodeMono(cfg DisplayConfig, data []byte) *image.RGBA {
	img := newFilled(cfg.Width, cfg.Height, Background)
	for page := 0; page < cfg.Pages(); page++ {
		for col := 0; col < cfg.Width; col++ {
			b := data[col+page*cfg.Width]
			if b == 0 {
				continue
			}
			for bit := 0; bit < 8; bit++ {
				if b&(1<<bit) != 0 {
					img.SetRGBA(col, bit+page*8, Foreground)
				}
			}
		}
	}
	return img
}

// decodeRGB565 reads one little-endian 16-bit pixel per device pixel in
// row-major order.
func decodeRGB565(cfg DisplayConfig, data []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			v := binary.LittleEndian.Uint16(data[2*(x+y*cfg.Width):])
			img.SetRGBA(x, y, PixelRGB565(v))
		}
	}
	return img
}

// decodePacked reads 64-bit little-endian units, each carrying four
// consecutive horizontal pixels: pixel i in bits 16i..16i+15. Row stride is
// W/4 units.
func decodePacked(cfg DisplayConfig, data []byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, cfg.Width, cfg.Height))
	stride := cfg.Width / 4
	for y := 0; y < cfg.Height; y++ {
		for u := 0; u < stride; u++ {
			word := binary.LittleEndian.Uint64(data[8*(u+y*stride):])
			for i := 0; i < 4; i++ {
				img.SetRGBA(u*4+i, y, PixelRGB565(uint16(word>>(16*i))))
			}
		}
	}
	return img
}

// PixelRGB565 expands a 16-bit 5/6/5 pixel to 8-bit channels. The channels
// are widened by the plain scale factors 8/4/8 rather than bit replication,
// matching the reference captures bit for bit.
func PixelRGB565(v uint16) color.RGBA {
	return color.RGBA{
		R: uint8(v>>11&0x1f) * 8,
		G: uint8(v>>5&0x3f) * 4,
		B: uint8(v&0x1f) * 8,
		A: 255,
	}
}

func newFilled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return img
}
