// Package raster holds the pixel buffer helpers shared by the editing engine.
//
// Every buffer in the engine is a zero-based *image.RGBA. Functions in this
// package never mutate their input unless the name says so.
package raster

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
)

// ErrCropOutOfBounds is returned when a crop rectangle is empty or extends
// beyond the source image.
var ErrCropOutOfBounds = errors.New("crop area outside image bounds")

// ErrTooLarge is returned by CheckSize for dimensions no buffer may have.
var ErrTooLarge = errors.New("image dimensions too large")

// Limits applied to every buffer whose size comes from outside the engine.
const (
	MaxSide   = 1 << 15
	MaxPixels = 1 << 26
)

// CheckSize reports whether a w×h buffer may be allocated.
func CheckSize(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("image size %dx%d: must be positive", w, h)
	}
	if w > MaxSide || h > MaxSide || w*h > MaxPixels {
		return fmt.Errorf("%w: %dx%d", ErrTooLarge, w, h)
	}
	return nil
}

// New allocates a transparent buffer of the given size.
func New(w, h int) *image.RGBA {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// Clone returns a deep copy of img rebased to a zero origin.
func Clone(img *image.RGBA) *image.RGBA {
	if img == nil {
		return nil
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	if b.Min == (image.Point{}) && img.Stride == out.Stride {
		copy(out.Pix, img.Pix)
		return out
	}
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// ToRGBA converts any image into a zero-based RGBA buffer.
func ToRGBA(img image.Image) *image.RGBA {
	if img == nil {
		return nil
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// Crop returns a copy of rect from img. The rectangle must lie inside the
// image; cropping to the full bounds yields a pixel-identical copy.
func Crop(img *image.RGBA, rect image.Rectangle) (*image.RGBA, error) {
	if img == nil {
		return nil, ErrCropOutOfBounds
	}
	if rect.Empty() || !rect.In(img.Bounds()) {
		return nil, ErrCropOutOfBounds
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), img, rect.Min, draw.Src)
	return out, nil
}

// Expand enlarges img so that rect fits within it. It returns the new image
// and the amount the coordinate space shifted.
func Expand(img *image.RGBA, rect image.Rectangle) (*image.RGBA, image.Point) {
	b := img.Bounds()
	minX := 0
	if rect.Min.X < 0 {
		minX = rect.Min.X
	}
	minY := 0
	if rect.Min.Y < 0 {
		minY = rect.Min.Y
	}
	maxX := b.Max.X
	if rect.Max.X > maxX {
		maxX = rect.Max.X
	}
	maxY := b.Max.Y
	if rect.Max.Y > maxY {
		maxY = rect.Max.Y
	}
	if minX == 0 && minY == 0 && maxX == b.Max.X && maxY == b.Max.Y {
		return img, image.Point{}
	}
	out := image.NewRGBA(image.Rect(0, 0, maxX-minX, maxY-minY))
	draw.Draw(out, b.Add(image.Pt(-minX, -minY)), img, b.Min, draw.Src)
	return out, image.Pt(minX, minY)
}

// Equal reports whether a and b have the same bounds and pixel bytes.
func Equal(a, b *image.RGBA) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Bounds().Size() != b.Bounds().Size() {
		return false
	}
	w, h := a.Bounds().Dx(), a.Bounds().Dy()
	for y := 0; y < h; y++ {
		ra := a.Pix[y*a.Stride : y*a.Stride+w*4]
		rb := b.Pix[y*b.Stride : y*b.Stride+w*4]
		for i := range ra {
			if ra[i] != rb[i] {
				return false
			}
		}
	}
	return true
}

// Fill paints the whole buffer with col.
func Fill(img *image.RGBA, col color.RGBA) {
	draw.Draw(img, img.Bounds(), image.NewUniform(col), image.Point{}, draw.Src)
}

// Clamp8 rounds v to the nearest integer and clamps it to [0, 255].
func Clamp8(v float64) uint8 {
	if math.IsNaN(v) || v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

// ClampInt restricts v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Lerp8 blends a towards b by t in [0, 1].
func Lerp8(a, b uint8, t float64) uint8 {
	return Clamp8(float64(a) + (float64(b)-float64(a))*t)
}
