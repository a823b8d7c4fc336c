package render

import (
	"image"
	"image/color"
	"testing"
)

func TestApplyShadowExpandsBounds(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	img.Set(5, 5, color.RGBA{R: 255, A: 255})

	opts := ShadowOptions{Radius: 4, Offset: image.Pt(8, 6), Opacity: 0.5}
	out := ApplyShadow(img, opts)
	want := image.Rect(0, 0, 22, 20)
	if !out.Image.Bounds().Eq(want) {
		t.Fatalf("unexpected bounds %v, want %v", out.Image.Bounds(), want)
	}
	if out.Offset != (image.Point{}) {
		t.Fatalf("content offset = %v", out.Offset)
	}
	cast := image.Pt(5, 5).Add(opts.Offset).Add(out.Offset)
	if out.Image.RGBAAt(cast.X, cast.Y).A == 0 {
		t.Fatalf("expected shadow alpha at %v", cast)
	}
}

func TestApplyShadowDisabledReturnsInput(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	out := ApplyShadow(img, ShadowOptions{Radius: 12, Offset: image.Pt(20, 10)})
	if out.Image != img {
		t.Fatalf("expected the input image back when opacity is zero")
	}
	if ApplyShadow(nil, DefaultShadowOptions()).Image != nil {
		t.Fatalf("nil input should give nil output")
	}
}

func TestBoxBlurFreshBuffer(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 9, 9))
	src.SetRGBA(4, 4, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	before := append([]uint8(nil), src.Pix...)

	out := BoxBlur(src, 1)
	for i := range before {
		if src.Pix[i] != before[i] {
			t.Fatalf("input modified at byte %d", i)
		}
	}
	if &out.Pix[0] == &src.Pix[0] {
		t.Fatalf("output aliases input")
	}
	// A lone pixel spreads evenly over the 3x3 kernel.
	for _, p := range []image.Point{{3, 3}, {4, 4}, {5, 5}, {3, 5}} {
		if got := out.RGBAAt(p.X, p.Y).R; got != 255/9 {
			t.Fatalf("R at %v = %d, want %d", p, got, 255/9)
		}
	}
	if out.RGBAAt(2, 2).A != 0 {
		t.Fatalf("blur leaked outside the kernel")
	}
}

func TestBlurAlphaZeroRadiusCopies(t *testing.T) {
	src := image.NewAlpha(image.Rect(0, 0, 3, 3))
	src.SetAlpha(1, 1, color.Alpha{A: 200})
	out := BlurAlpha(src, 0)
	if out.AlphaAt(1, 1).A != 200 || &out.Pix[0] == &src.Pix[0] {
		t.Fatalf("zero radius must copy")
	}
}
