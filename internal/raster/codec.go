package raster

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"strings"

	"github.com/HugoSmits86/nativewebp"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Format names an export encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatJPG  Format = "jpg"
	FormatWebP Format = "webp"
)

// DefaultJPEGQuality is used when ExportOptions.Quality is zero.
const DefaultJPEGQuality = 90

// ExportOptions controls Encode. Width and Height, when non-zero, rescale the
// output; a single zero dimension keeps the aspect ratio.
type ExportOptions struct {
	Format  Format
	Quality int
	Width   int
	Height  int
}

// ParseFormat maps user input such as "jpeg" or "PNG" to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "png":
		return FormatPNG, nil
	case "jpg", "jpeg":
		return FormatJPG, nil
	case "webp":
		return FormatWebP, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Decode reads any registered image format into an RGBA buffer.
func Decode(r io.Reader) (*image.RGBA, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return ToRGBA(img), format, nil
}

// DecodeBytes is Decode over an in-memory payload.
func DecodeBytes(data []byte) (*image.RGBA, error) {
	img, _, err := Decode(bytes.NewReader(data))
	return img, err
}

// Scale resamples img to w×h. The source is left untouched.
func Scale(img image.Image, w, h int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(out, out.Bounds(), img, img.Bounds(), draw.Src, nil)
	return out
}

// TargetSize resolves the export dimensions for a source of size src.
func (o ExportOptions) TargetSize(src image.Point) image.Point {
	w, h := o.Width, o.Height
	switch {
	case w <= 0 && h <= 0:
		return src
	case w <= 0 && src.Y > 0:
		w = int(float64(src.X)*float64(h)/float64(src.Y) + 0.5)
	case h <= 0 && src.X > 0:
		h = int(float64(src.Y)*float64(w)/float64(src.X) + 0.5)
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return image.Pt(w, h)
}

// Encode writes img using opts.
func Encode(w io.Writer, img image.Image, opts ExportOptions) error {
	if img == nil {
		return fmt.Errorf("encode: nil image")
	}
	size := opts.TargetSize(img.Bounds().Size())
	if size != img.Bounds().Size() {
		img = Scale(img, size.X, size.Y)
	}
	format := opts.Format
	if format == "" {
		format = FormatPNG
	}
	switch format {
	case FormatPNG:
		return png.Encode(w, img)
	case FormatJPG:
		q := opts.Quality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		if q > 100 {
			q = 100
		}
		return jpeg.Encode(w, img, &jpeg.Options{Quality: q})
	case FormatWebP:
		return nativewebp.Encode(w, img, nil)
	}
	return fmt.Errorf("unsupported export format %q", format)
}

// EncodeBytes is Encode into a fresh byte slice.
func EncodeBytes(img image.Image, opts ExportOptions) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
