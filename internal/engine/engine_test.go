package engine

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log"
	"sync"
	"testing"

	"github.com/example/retoucher/internal/aiservice"
	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/retouch"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := raster.New(w, h)
	raster.Fill(img, c)
	return img
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	opts = append([]Option{WithLogger(log.New(io.Discard, "", 0))}, opts...)
	e := New(opts...)
	e.Bus().Subscribe(rec.Record)
	t.Cleanup(e.Destroy)
	return e, rec
}

func withImage(t *testing.T, e *Engine, img *image.RGBA) {
	t.Helper()
	if err := e.SetImage(img); err != nil {
		t.Fatalf("SetImage: %v", err)
	}
}

func TestLoadImageUndoRedo(t *testing.T) {
	e, rec := newEngine(t)
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(8, 6, color.RGBA{10, 20, 30, 255})); err != nil {
		t.Fatal(err)
	}
	if err := e.LoadImage(&buf); err != nil {
		t.Fatalf("LoadImage: %v", err)
	}
	if w, h := e.Size(); w != 8 || h != 6 {
		t.Fatalf("size = %dx%d, want 8x6", w, h)
	}
	if rec.Count("image-loaded") != 1 || rec.Count("action-performed") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}

	if err := e.ApplyFilter("invert", nil); err != nil {
		t.Fatalf("ApplyFilter: %v", err)
	}
	if got := e.BaseImage().RGBAAt(0, 0); got != (color.RGBA{245, 235, 225, 255}) {
		t.Fatalf("inverted pixel = %v", got)
	}
	if !e.Undo() {
		t.Fatalf("Undo = false")
	}
	if got := e.BaseImage().RGBAAt(0, 0); got != (color.RGBA{10, 20, 30, 255}) {
		t.Fatalf("pixel after undo = %v", got)
	}
	if !e.Redo() {
		t.Fatalf("Redo = false")
	}
	if got := e.BaseImage().RGBAAt(0, 0); got.R != 245 {
		t.Fatalf("pixel after redo = %v", got)
	}
	if e.Redo() {
		t.Fatalf("Redo past the end succeeded")
	}
	last := rec.Events()[len(rec.Events())-1].(events.ActionPerformed)
	if last.Action != "redo" || !last.CanUndo || last.CanRedo {
		t.Fatalf("last action event = %+v", last)
	}
}

func TestLoadImageRejectsGarbage(t *testing.T) {
	e, rec := newEngine(t)
	if err := e.LoadImage(bytes.NewReader([]byte("not an image"))); err == nil {
		t.Fatalf("expected decode error")
	}
	evs := rec.Events()
	if len(evs) != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	if ev, ok := evs[0].(events.ImageLoaded); !ok || ev.Err == nil {
		t.Fatalf("event = %#v, want ImageLoaded with Err", evs[0])
	}
	if e.BaseImage() != nil || len(e.History()) != 0 {
		t.Fatalf("failed load changed the session")
	}
}

func TestNewEditDiscardsRedo(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(4, 4, color.RGBA{100, 100, 100, 255}))
	for _, id := range []string{"invert", "grayscale"} {
		if err := e.ApplyFilter(id, nil); err != nil {
			t.Fatalf("%s: %v", id, err)
		}
	}
	e.Undo()
	e.Undo()
	if err := e.ApplyFilter("sepia", nil); err != nil {
		t.Fatal(err)
	}
	if e.Redo() {
		t.Fatalf("Redo after a new edit succeeded")
	}
	var types []string
	for _, a := range e.History() {
		types = append(types, a.Type)
	}
	if len(types) != 2 || types[0] != "set-image" || types[1] != "filter" {
		t.Fatalf("history = %v", types)
	}
}

func TestImportMalformedKeepsScene(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(5, 5, color.RGBA{1, 2, 3, 255}))
	before, err := e.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	if err := e.Import([]byte(`{"version":1,"nodes":[{"id":""}]}`)); !errors.Is(err, scene.ErrMalformedSnapshot) {
		t.Fatalf("Import err = %v, want ErrMalformedSnapshot", err)
	}
	after, _ := e.Snapshot()
	if !bytes.Equal(before, after) {
		t.Fatalf("scene changed after malformed import")
	}
	if names := rec.Names(); len(names) != 1 || names[0] != "image-loaded" {
		t.Fatalf("events = %v", names)
	}
	if len(e.History()) != 1 {
		t.Fatalf("history grew to %d", len(e.History()))
	}
}

func TestImportOversizedImageIsRejected(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(5, 5, color.RGBA{1, 2, 3, 255}))
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(make([]byte, 16))
	zw.Close()
	data := fmt.Sprintf(`{"version":1,"width":5,"height":5,"nodes":[{"id":"a","slot":0,"gen":1,"layer":"images","transform":{"Width":5,"Height":5},"item":{"kind":"image","image":{"w":%d,"h":%d,"pix":%q,"base":true}}}]}`,
		1<<40, 1<<40, base64.StdEncoding.EncodeToString(buf.Bytes()))
	if err := e.Import([]byte(data)); !errors.Is(err, scene.ErrMalformedSnapshot) {
		t.Fatalf("Import err = %v, want ErrMalformedSnapshot", err)
	}
	if w, h := e.Size(); w != 5 || h != 5 {
		t.Fatalf("size = %dx%d after rejected import, want 5x5", w, h)
	}
}

func TestPatchOffImageRecordsNothing(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(20, 20, color.RGBA{9, 9, 9, 255}))
	n := len(e.History())
	if err := e.Patch(selection.Rect(0, 0, 10, 10), 100, 100); !errors.Is(err, retouch.ErrOutsideImage) {
		t.Fatalf("Patch err = %v, want ErrOutsideImage", err)
	}
	if got := len(e.History()); got != n {
		t.Fatalf("history = %d entries, want %d", got, n)
	}
	if len(e.Tasks()) != 0 {
		t.Fatalf("tasks = %v, want none", e.Tasks())
	}
}

func TestImportRoundTrip(t *testing.T) {
	src, _ := newEngine(t)
	withImage(t, src, solid(6, 6, color.RGBA{200, 0, 0, 255}))
	if _, err := src.AddShape("circle", scene.Transform{X: 1, Y: 1, Width: 4, Height: 4}, DefaultState().ShapeOptions, DefaultState().ShapeStyle); err != nil {
		t.Fatal(err)
	}
	data, err := src.Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	dst, _ := newEngine(t)
	if err := dst.Import(data); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if !raster.Equal(src.Render(), dst.Render()) {
		t.Fatalf("imported scene renders differently")
	}
	if !dst.Undo() || dst.BaseImage() != nil {
		t.Fatalf("import was not undoable")
	}
}

func TestCropToSelection(t *testing.T) {
	e, rec := newEngine(t)
	img := solid(20, 10, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(5, 2, color.RGBA{255, 0, 0, 255})
	withImage(t, e, img)
	h, err := e.AddShape("rectangle", scene.Transform{X: 6, Y: 4, Width: 2, Height: 2}, DefaultState().ShapeOptions, DefaultState().ShapeStyle)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SetTool(ToolRectSelect); err != nil {
		t.Fatal(err)
	}
	e.PointerDown(5, 2, 1, 0)
	e.PointerMove(9, 6, 1, 0)
	e.PointerUp(15, 8, 1, 0)
	if st := e.State(); st.Selection.Bounds() != image.Rect(5, 2, 15, 8) {
		t.Fatalf("selection = %v", st.Selection.Bounds())
	}
	if err := e.Crop(image.Rectangle{}); err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if w, h := e.Size(); w != 10 || h != 6 {
		t.Fatalf("size = %dx%d", w, h)
	}
	if got := e.BaseImage().RGBAAt(0, 0); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("corner = %v", got)
	}
	n, _ := e.Node(h)
	if n.Transform.X != 1 || n.Transform.Y != 2 {
		t.Fatalf("shape moved to %v,%v, want 1,2", n.Transform.X, n.Transform.Y)
	}
	if rec.Count("selection-cleared") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	if !e.State().Selection.IsZero() {
		t.Fatalf("selection survived crop")
	}
}

func TestCropWithoutSelection(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(4, 4, color.RGBA{A: 255}))
	if err := e.Crop(image.Rectangle{}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
	if err := e.Crop(image.Rect(2, 2, 9, 9)); !errors.Is(err, raster.ErrCropOutOfBounds) {
		t.Fatalf("err = %v, want ErrCropOutOfBounds", err)
	}
	if len(e.History()) != 1 {
		t.Fatalf("failed crops were recorded")
	}
}

func TestMagicWandSelectsRegion(t *testing.T) {
	e, rec := newEngine(t)
	img := solid(10, 10, color.RGBA{255, 255, 255, 255})
	for y := 0; y < 10; y++ {
		img.SetRGBA(5, y, color.RGBA{A: 255})
	}
	withImage(t, e, img)
	a, err := e.MagicWand(1, 1, 0)
	if err != nil {
		t.Fatalf("MagicWand: %v", err)
	}
	if a.Bounds() != image.Rect(0, 0, 5, 10) || a.Mask().Count != 50 {
		t.Fatalf("wand bounds %v count %d", a.Bounds(), a.Mask().Count)
	}
	if rec.Count("selection-changed") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
}

// gateService blocks until release is closed, then answers like the local
// service.
type gateService struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
	mu      sync.Mutex
	calls   int
}

func newGate() *gateService {
	return &gateService{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gateService) Process(ctx context.Context, req aiservice.Request) (aiservice.Response, error) {
	g.mu.Lock()
	g.calls++
	g.mu.Unlock()
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return aiservice.Response{}, ctx.Err()
	}
	return aiservice.NewLocal().Process(ctx, req)
}

func TestRemoveBackgroundAppliedOnce(t *testing.T) {
	g := newGate()
	e, rec := newEngine(t, WithAIService(g))
	img := solid(16, 16, color.RGBA{255, 255, 255, 255})
	for y := 6; y < 10; y++ {
		for x := 6; x < 10; x++ {
			img.SetRGBA(x, y, color.RGBA{200, 0, 0, 255})
		}
	}
	withImage(t, e, img)

	first := make(chan error, 1)
	go func() { first <- e.RemoveBackground(context.Background()) }()
	<-g.started
	if err := e.RemoveBackground(context.Background()); !errors.Is(err, retouch.ErrBusy) {
		t.Fatalf("second call err = %v, want ErrBusy", err)
	}
	close(g.release)
	if err := <-first; err != nil {
		t.Fatalf("first call: %v", err)
	}
	if rec.Count("background-removed") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	if len(e.History()) != 2 {
		t.Fatalf("history has %d actions, want 2", len(e.History()))
	}
	out := e.BaseImage()
	if out.RGBAAt(0, 0).A != 0 || out.RGBAAt(8, 8).A != 255 {
		t.Fatalf("background pixel %v subject pixel %v", out.RGBAAt(0, 0), out.RGBAAt(8, 8))
	}
	if g.calls != 1 || e.Processing() {
		t.Fatalf("calls = %d processing = %v", g.calls, e.Processing())
	}
}

func TestRemoveBackgroundSuperseded(t *testing.T) {
	g := newGate()
	e, rec := newEngine(t, WithAIService(g))
	withImage(t, e, solid(8, 8, color.RGBA{255, 255, 255, 255}))

	done := make(chan error, 1)
	go func() { done <- e.RemoveBackground(context.Background()) }()
	<-g.started
	if err := e.ApplyFilter("invert", nil); err != nil {
		t.Fatal(err)
	}
	close(g.release)
	if err := <-done; !errors.Is(err, ErrSuperseded) {
		t.Fatalf("err = %v, want ErrSuperseded", err)
	}
	var got events.BackgroundRemoved
	for _, ev := range rec.Events() {
		if br, ok := ev.(events.BackgroundRemoved); ok {
			got = br
		}
	}
	if got.Success || !errors.Is(got.Err, ErrSuperseded) {
		t.Fatalf("event = %+v", got)
	}
	if e.BaseImage().RGBAAt(0, 0) != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("stale result overwrote the edit")
	}
}

type failService struct{ err error }

func (f failService) Process(context.Context, aiservice.Request) (aiservice.Response, error) {
	return aiservice.Response{}, f.err
}

func TestRemoveObjectFailureLeavesImage(t *testing.T) {
	fail := &aiservice.Error{Reason: aiservice.ReasonUnreachable, Err: aiservice.ErrUnreachable}
	e, rec := newEngine(t, WithAIService(failService{fail}))
	img := solid(8, 8, color.RGBA{9, 9, 9, 255})
	withImage(t, e, img)
	if err := e.RemoveObject(context.Background(), selection.Area{}); !errors.Is(err, ErrNoSelection) {
		t.Fatalf("err = %v, want ErrNoSelection", err)
	}
	if err := e.SetSelection(selection.Rect(2, 2, 6, 6)); err != nil {
		t.Fatal(err)
	}
	if err := e.RemoveObject(context.Background(), selection.Area{}); !errors.Is(err, aiservice.ErrUnreachable) {
		t.Fatalf("err = %v, want ErrUnreachable", err)
	}
	var got events.ObjectRemoved
	for _, ev := range rec.Events() {
		if or, ok := ev.(events.ObjectRemoved); ok {
			got = or
		}
	}
	if got.Success || !errors.Is(got.Err, aiservice.ErrUnreachable) {
		t.Fatalf("event = %+v", got)
	}
	if !raster.Equal(e.BaseImage(), img) || len(e.History()) != 1 || e.Processing() {
		t.Fatalf("failed removal mutated the session")
	}
}

func TestDestroy(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(2, 2, color.RGBA{A: 255}))
	e.Destroy()
	if err := e.ApplyFilter("invert", nil); !errors.Is(err, ErrDestroyed) {
		t.Fatalf("err = %v, want ErrDestroyed", err)
	}
	if e.Undo() {
		t.Fatalf("Undo after Destroy succeeded")
	}
	if len(e.History()) != 0 {
		t.Fatalf("history kept after Destroy")
	}
	e.Destroy()
}

func TestDestroyCancelsPendingAI(t *testing.T) {
	g := newGate()
	e, _ := newEngine(t, WithAIService(g))
	withImage(t, e, solid(4, 4, color.RGBA{255, 255, 255, 255}))
	done := make(chan error, 1)
	go func() { done <- e.RemoveBackground(context.Background()) }()
	<-g.started
	e.Destroy()
	if err := <-done; err == nil {
		t.Fatalf("pending request succeeded after Destroy")
	}
}

func TestExportPublishes(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(3, 3, color.RGBA{1, 1, 1, 255}))
	data, err := e.Export(raster.ExportOptions{Format: raster.FormatPNG, Width: 6, Height: 6})
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() != 6 {
		t.Fatalf("decoded %v, %v", img, err)
	}
	if w, _ := e.Size(); w != 3 {
		t.Fatalf("export resized the canvas")
	}
	evs := rec.Events()
	if ev, ok := evs[len(evs)-1].(events.Exported); !ok || ev.Size != len(data) || ev.Format != "png" {
		t.Fatalf("last event = %#v", evs[len(evs)-1])
	}
}

// Subscribers may call back into the engine; events are delivered after
// the engine lock is released.
func TestSubscriberCanReenter(t *testing.T) {
	e, _ := newEngine(t)
	rendered := 0
	e.Bus().Subscribe(func(ev events.Event) {
		if _, ok := ev.(events.ActionPerformed); ok {
			e.Render()
			rendered++
		}
	})
	withImage(t, e, solid(2, 2, color.RGBA{A: 255}))
	if rendered != 1 {
		t.Fatalf("rendered %d times", rendered)
	}
}
