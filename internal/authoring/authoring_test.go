package authoring

import (
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"testing"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/scene"
)

func newScene(t *testing.T) (*scene.Renderer, *events.Bus, *events.Recorder) {
	t.Helper()
	bus := events.NewBus()
	rec := &events.Recorder{}
	t.Cleanup(bus.Subscribe(rec.Record))
	return scene.New(200, 100, bus), bus, rec
}

func TestAddAndEditText(t *testing.T) {
	r, bus, rec := newScene(t)
	tool := NewTextTool(r, bus)
	h, err := tool.AddText("hi", 10, 20, scene.TextStyle{Size: 16, Color: color.NRGBA{0, 0, 0, 255}})
	if err != nil {
		t.Fatalf("AddText: %v", err)
	}
	if rec.Count("text-added") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	n, _ := r.Node(h)
	ov, err := tool.BeginEdit(h)
	if err != nil {
		t.Fatalf("BeginEdit: %v", err)
	}
	if ov.Bounds != n.Transform.Bounds() || ov.Text != "hi" {
		t.Fatalf("overlay = %+v, node bounds %v", ov, n.Transform.Bounds())
	}
	if err := tool.CommitEdit("hello world"); err != nil {
		t.Fatalf("CommitEdit: %v", err)
	}
	n2, _ := r.Node(h)
	if got := n2.Item.(*scene.TextItem).Content; got != "hello world" {
		t.Fatalf("content = %q", got)
	}
	if n2.Transform.Width <= n.Transform.Width {
		t.Fatalf("width %v did not grow from %v", n2.Transform.Width, n.Transform.Width)
	}
	evs := rec.Events()
	last, ok := evs[len(evs)-1].(events.TextEdited)
	if !ok || last.Text != "hello world" || string(last.Node) != n.ID {
		t.Fatalf("last event = %#v", evs[len(evs)-1])
	}
	if err := tool.CommitEdit("again"); !errors.Is(err, ErrNoEdit) {
		t.Fatalf("err = %v", err)
	}
}

func TestCancelEditLeavesNode(t *testing.T) {
	r, bus, rec := newScene(t)
	tool := NewTextTool(r, bus)
	h, _ := tool.AddText("keep", 0, 0, scene.TextStyle{})
	tool.BeginEdit(h)
	tool.CancelEdit()
	if _, ok := tool.Editing(); ok {
		t.Fatalf("still editing")
	}
	n, _ := r.Node(h)
	if n.Item.(*scene.TextItem).Content != "keep" || rec.Count("text-edited") != 0 {
		t.Fatalf("cancel changed the node")
	}
}

func TestBeginEditRejectsShapes(t *testing.T) {
	r, bus, _ := newScene(t)
	h, err := AddShape(r, "rectangle", scene.Transform{Width: 10, Height: 10}, ShapeOptions{}, scene.ShapeStyle{Fill: color.NRGBA{255, 0, 0, 255}})
	if err != nil {
		t.Fatalf("AddShape: %v", err)
	}
	if _, err := NewTextTool(r, bus).BeginEdit(h); !errors.Is(err, ErrNotText) {
		t.Fatalf("err = %v", err)
	}
}

func TestShapeBuilders(t *testing.T) {
	style := scene.ShapeStyle{Fill: color.NRGBA{0, 0, 255, 255}, Stroke: color.NRGBA{0, 0, 0, 255}, StrokeWidth: 1}
	for _, typ := range ShapeTypes() {
		t.Run(typ, func(t *testing.T) {
			it, err := NewShape(typ, 40, 30, ShapeOptions{}, style)
			if err != nil {
				t.Fatalf("NewShape: %v", err)
			}
			img, err := it.Rasterize(40, 30)
			if err != nil {
				t.Fatalf("Rasterize: %v", err)
			}
			painted := 0
			for i := 3; i < len(img.Pix); i += 4 {
				if img.Pix[i] > 0 {
					painted++
				}
			}
			if painted == 0 {
				t.Fatalf("%s drew nothing", typ)
			}
		})
	}
	if len(ShapeTypes()) != 11 {
		t.Fatalf("types = %v", ShapeTypes())
	}
}

func TestUnknownShape(t *testing.T) {
	r, _, _ := newScene(t)
	if _, err := AddShape(r, "blob", scene.Transform{Width: 5, Height: 5}, ShapeOptions{}, scene.ShapeStyle{}); !errors.Is(err, ErrUnknownShape) {
		t.Fatalf("err = %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("node created for unknown shape")
	}
}

func TestShapeScalesWithNode(t *testing.T) {
	it, _ := NewShape("rectangle", 10, 10, ShapeOptions{}, scene.ShapeStyle{Fill: color.NRGBA{255, 0, 0, 255}})
	img, err := it.Rasterize(40, 20)
	if err != nil {
		t.Fatalf("Rasterize: %v", err)
	}
	if img.RGBAAt(35, 15).A != 255 {
		t.Fatalf("rectangle did not stretch to the node size")
	}
}

func TestStrokeSimplificationBound(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for _, tc := range []struct {
		max int
		tol float64
	}{{16, 2}, {64, 0.5}, {5, 0}, {200, 3}} {
		s := NewStroke(tc.max, tc.tol)
		s.Begin(50, 50, 1, scene.StrokeSettings{Width: 3, Color: color.NRGBA{0, 0, 0, 255}})
		x, y := 50.0, 50.0
		for i := 0; i < 1000; i++ {
			x += rng.Float64()*4 - 2
			y += rng.Float64()*4 - 2
			s.Add(x, y, 0.5)
			if s.Len() > tc.max {
				t.Fatalf("held %d points, cap %d", s.Len(), tc.max)
			}
		}
		it, tr, err := s.Finish()
		if err != nil {
			t.Fatalf("Finish: %v", err)
		}
		if len(it.Points) > tc.max {
			t.Fatalf("committed %d points, cap %d", len(it.Points), tc.max)
		}
		for i := 1; i < len(it.Points); i++ {
			a, b := it.Points[i-1], it.Points[i]
			if d := math.Hypot(a.X-b.X, a.Y-b.Y); d < tc.tol {
				t.Fatalf("points %d,%d are %.3f apart, tolerance %v", i-1, i, d, tc.tol)
			}
		}
		for _, p := range it.Points {
			if p.X < 0 || p.Y < 0 || p.X > tr.Width || p.Y > tr.Height {
				t.Fatalf("point %v outside %vx%v box", p, tr.Width, tr.Height)
			}
		}
		if s.Active() {
			t.Fatalf("session still active after Finish")
		}
	}
}

func TestStrokeCancel(t *testing.T) {
	s := NewStroke(0, -1)
	if s.MaxPoints != DefaultMaxPoints || s.Tolerance != DefaultTolerance {
		t.Fatalf("defaults = %d, %v", s.MaxPoints, s.Tolerance)
	}
	s.Begin(0, 0, 1, scene.StrokeSettings{})
	s.Add(10, 10, 1)
	s.Cancel()
	if _, _, err := s.Finish(); !errors.Is(err, ErrNoStroke) {
		t.Fatalf("err = %v", err)
	}
}

func TestAssetCacheLoadsOnce(t *testing.T) {
	c := NewAssetCache(func(id string) (*image.RGBA, error) {
		if id == "missing" {
			return nil, errors.New("not found")
		}
		return raster.New(8, 8), nil
	})
	for i := 0; i < 3; i++ {
		if _, err := c.Get("star"); err != nil {
			t.Fatalf("Get: %v", err)
		}
	}
	if c.Loads() != 1 {
		t.Fatalf("loads = %d", c.Loads())
	}
	if _, err := c.Get("missing"); err == nil {
		t.Fatalf("missing asset loaded")
	}
}

func TestAnchorPositions(t *testing.T) {
	cases := map[Anchor][2]float64{
		AnchorTopLeft:     {5, 5},
		AnchorTopRight:    {175, 5},
		AnchorBottomLeft:  {5, 85},
		AnchorBottomRight: {175, 85},
		AnchorCenter:      {90, 45},
	}
	for a, want := range cases {
		x, y, err := a.Position(200, 100, 20, 10, 5)
		if err != nil || x != want[0] || y != want[1] {
			t.Errorf("%s = (%v,%v) %v, want %v", a, x, y, err, want)
		}
	}
	if _, err := ParseAnchor("middle"); !errors.Is(err, ErrUnknownAnchor) {
		t.Fatalf("err = %v", err)
	}
	if a, _ := ParseAnchor("centre"); a != AnchorCenter {
		t.Fatalf("centre = %q", a)
	}
}

func TestPlaceStickerAndWatermark(t *testing.T) {
	r, bus, rec := newScene(t)
	img := raster.New(10, 10)
	raster.Fill(img, color.RGBA{255, 0, 0, 255})
	cache := NewAssetCache(nil)
	cache.Put("dot", img)
	p := NewPlacer(r, bus, cache)

	h, err := p.PlaceSticker("dot", 50, 50, 2, 1)
	if err != nil {
		t.Fatalf("PlaceSticker: %v", err)
	}
	n, _ := r.Node(h)
	if n.Transform != (scene.Transform{X: 40, Y: 40, Width: 20, Height: 20}) {
		t.Fatalf("transform = %+v", n.Transform)
	}
	w, err := p.PlaceWatermark("dot", AnchorBottomRight, 4, 1, 0.5)
	if err != nil {
		t.Fatalf("PlaceWatermark: %v", err)
	}
	wn, _ := r.Node(w)
	if wn.Transform.X != 186 || wn.Transform.Y != 86 || wn.Opacity != 0.5 {
		t.Fatalf("watermark = %+v opacity %v", wn.Transform, wn.Opacity)
	}
	if rec.Count("sticker-added") != 1 || rec.Count("watermark-added") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	if _, err := p.PlaceSticker("dot", 0, 0, 0, 1); !errors.Is(err, ErrInvalidScale) {
		t.Fatalf("err = %v", err)
	}
	if _, err := p.PlaceSticker("nope", 0, 0, 1, 1); err == nil {
		t.Fatalf("unknown asset placed")
	}
	if r.Len() != 2 {
		t.Fatalf("len = %d", r.Len())
	}
}
