package assets

import (
	"bytes"
	"image/png"
	"testing"
)

func TestStickersRender(t *testing.T) {
	for _, name := range Names() {
		img, err := Sticker(name, 64)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if img.Bounds().Dx() != 64 || img.Bounds().Dy() != 64 {
			t.Fatalf("%s: bounds %v", name, img.Bounds())
		}
		if img.RGBAAt(32, 32).A == 0 {
			t.Errorf("%s: centre is transparent", name)
		}
		again, _ := Sticker(name, 64)
		if again != img {
			t.Errorf("%s: not cached", name)
		}
	}
	if len(Names()) != 5 {
		t.Fatalf("names = %v", Names())
	}
}

func TestUnknownSticker(t *testing.T) {
	if _, err := Load("unicorn"); err == nil {
		t.Fatal("expected error")
	}
	if _, err := Sticker("star", 0); err == nil {
		t.Fatal("expected size error")
	}
}

func TestPNG(t *testing.T) {
	data, err := PNG("logo", 16)
	if err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() != 16 {
		t.Fatalf("decode: %v %v", img, err)
	}
}
