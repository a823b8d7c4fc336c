// Package clipboard moves images between the editor and the desktop clipboard.
package clipboard

import (
	"bytes"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"os"
)

var (
	// ErrNoDisplay is returned when neither X11 nor Wayland is reachable.
	ErrNoDisplay = errors.New("clipboard: requires DISPLAY or WAYLAND_DISPLAY")
	// ErrNoImage is returned when the clipboard holds no image data.
	ErrNoImage = errors.New("clipboard: no image data")
	// ErrUnsupported is returned on platforms without a clipboard backend.
	ErrUnsupported = errors.New("clipboard: not supported on this platform")
)

func hasDisplay() bool {
	return os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != ""
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrNoImage
	}
	return png.Decode(bytes.NewReader(data))
}

// ReadRGBA reads the clipboard image and converts it to RGBA.
func ReadRGBA() (*image.RGBA, error) {
	img, err := ReadImage()
	if err != nil {
		return nil, err
	}
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) {
		return rgba, nil
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Rect, img, b.Min, draw.Src)
	return out, nil
}
