// Package assets draws the built-in stickers. They are rendered on first
// use and cached per size.
package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sort"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"
)

// DefaultSize is the edge length Load renders at.
const DefaultSize = 128

type key struct {
	name string
	size int
}

var (
	mu    sync.Mutex
	cache = map[key]*image.RGBA{}

	painters = map[string]func(dc *gg.Context, s float64){
		"star":  paintStar,
		"heart": paintHeart,
		"check": paintCheck,
		"badge": paintBadge,
		"logo":  paintLogo,
	}
)

// Names lists the built-in sticker ids.
func Names() []string {
	out := make([]string, 0, len(painters))
	for n := range painters {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Sticker returns the size×size rendering of name. The result is shared;
// callers must not modify it.
func Sticker(name string, size int) (*image.RGBA, error) {
	paint, ok := painters[name]
	if !ok {
		return nil, fmt.Errorf("sticker %q not built in", name)
	}
	if size <= 0 {
		return nil, fmt.Errorf("sticker size %d", size)
	}
	mu.Lock()
	defer mu.Unlock()
	k := key{name, size}
	if img, ok := cache[k]; ok {
		return img, nil
	}
	dc := gg.NewContext(size, size)
	paint(dc, float64(size))
	src := dc.Image()
	img := image.NewRGBA(src.Bounds())
	draw.Draw(img, img.Bounds(), src, image.Point{}, draw.Src)
	cache[k] = img
	return img, nil
}

// Load renders name at DefaultSize; it matches the asset loader signature.
func Load(name string) (*image.RGBA, error) { return Sticker(name, DefaultSize) }

// PNG returns the sticker encoded as PNG.
func PNG(name string, size int) ([]byte, error) {
	img, err := Sticker(name, size)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func paintStar(dc *gg.Context, s float64) {
	c := s / 2
	for i := 0; i < 10; i++ {
		r := s * 0.48
		if i%2 == 1 {
			r = s * 0.2
		}
		a := -math.Pi/2 + float64(i)*math.Pi/5
		dc.LineTo(c+r*math.Cos(a), c+r*math.Sin(a))
	}
	dc.ClosePath()
	dc.SetColor(color.NRGBA{255, 200, 0, 255})
	dc.FillPreserve()
	dc.SetColor(color.NRGBA{180, 120, 0, 255})
	dc.SetLineWidth(s / 32)
	dc.Stroke()
}

func paintHeart(dc *gg.Context, s float64) {
	dc.MoveTo(s/2, s*0.3)
	dc.CubicTo(s/2, s*0.05, s*0.05, s*0.02, s*0.05, s*0.32)
	dc.CubicTo(s*0.05, s*0.6, s*0.35, s*0.78, s/2, s*0.95)
	dc.CubicTo(s*0.65, s*0.78, s*0.95, s*0.6, s*0.95, s*0.32)
	dc.CubicTo(s*0.95, s*0.02, s/2, s*0.05, s/2, s*0.3)
	dc.ClosePath()
	dc.SetColor(color.NRGBA{230, 40, 70, 255})
	dc.Fill()
}

func paintCheck(dc *gg.Context, s float64) {
	dc.DrawCircle(s/2, s/2, s*0.46)
	dc.SetColor(color.NRGBA{40, 170, 80, 255})
	dc.Fill()
	dc.MoveTo(s*0.27, s*0.52)
	dc.LineTo(s*0.44, s*0.68)
	dc.LineTo(s*0.74, s*0.34)
	dc.SetColor(color.White)
	dc.SetLineWidth(s / 10)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.Stroke()
}

func paintBadge(dc *gg.Context, s float64) {
	c := s / 2
	const teeth = 16
	for i := 0; i < 2*teeth; i++ {
		r := s * 0.48
		if i%2 == 1 {
			r = s * 0.42
		}
		a := float64(i) * math.Pi / teeth
		dc.LineTo(c+r*math.Cos(a), c+r*math.Sin(a))
	}
	dc.ClosePath()
	dc.SetColor(color.NRGBA{30, 90, 200, 255})
	dc.Fill()
	dc.DrawCircle(c, c, s*0.32)
	dc.SetColor(color.NRGBA{255, 255, 255, 230})
	dc.SetLineWidth(s / 40)
	dc.Stroke()
}

func paintLogo(dc *gg.Context, s float64) {
	dc.DrawRoundedRectangle(s*0.04, s*0.04, s*0.92, s*0.92, s*0.18)
	g := gg.NewLinearGradient(0, 0, s, s)
	g.AddColorStop(0, color.NRGBA{120, 60, 220, 255})
	g.AddColorStop(1, color.NRGBA{240, 80, 140, 255})
	dc.SetFillStyle(g)
	dc.Fill()
	// brush tip
	dc.DrawEllipse(s*0.5, s*0.5, s*0.26, s*0.14)
	dc.SetColor(color.NRGBA{255, 255, 255, 220})
	dc.Fill()
}
