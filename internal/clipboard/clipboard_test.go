package clipboard

import (
	"errors"
	"image"
	"image/color"
	"testing"
)

func TestEncodeDecode(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.RGBA{R: 200, A: 255})
	data, err := encode(img)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, err := decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Bounds() != img.Bounds() {
		t.Fatalf("bounds %v, want %v", out.Bounds(), img.Bounds())
	}
	r, _, _, _ := out.At(1, 1).RGBA()
	if r>>8 != 200 {
		t.Fatalf("red %d, want 200", r>>8)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if _, err := decode(nil); !errors.Is(err, ErrNoImage) {
		t.Fatalf("expected ErrNoImage, got %v", err)
	}
}
