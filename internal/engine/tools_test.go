package engine

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"golang.org/x/mobile/event/key"
	"golang.org/x/mobile/event/mouse"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/retouch"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
)

func drag(e *Engine, mods Modifiers, pts ...image.Point) {
	for i, p := range pts {
		x, y := float64(p.X), float64(p.Y)
		switch i {
		case 0:
			e.PointerDown(x, y, 1, mods)
		case len(pts) - 1:
			e.PointerUp(x, y, 1, mods)
		default:
			e.PointerMove(x, y, 1, mods)
		}
	}
}

func press(r rune, code key.Code, mods key.Modifiers) key.Event {
	return key.Event{Rune: r, Code: code, Modifiers: mods, Direction: key.DirPress}
}

func TestSetTool(t *testing.T) {
	e, rec := newEngine(t)
	if err := e.SetTool(ToolBrush); err != nil {
		t.Fatal(err)
	}
	if err := e.SetTool("smudge"); !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("err = %v, want ErrUnknownTool", err)
	}
	evs := rec.Events()
	if len(evs) != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	if ev := evs[0].(events.ToolChanged); ev.From != "select" || ev.To != "brush" {
		t.Fatalf("event = %+v", ev)
	}
	if e.State().Tool != ToolBrush {
		t.Fatalf("tool = %v", e.State().Tool)
	}
}

func TestToolSwitchClearsSelectionExceptPatch(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(10, 10, color.RGBA{A: 255}))
	e.SetSelection(selection.Rect(1, 1, 5, 5))
	e.SetTool(ToolPatch)
	if e.State().Selection.IsZero() {
		t.Fatalf("patch tool dropped the selection")
	}
	e.SetTool(ToolBrush)
	if !e.State().Selection.IsZero() {
		t.Fatalf("selection survived switch to brush")
	}
}

func TestCloneToolWithoutSourceIsNoOp(t *testing.T) {
	e, rec := newEngine(t)
	img := solid(12, 12, color.RGBA{50, 60, 70, 255})
	withImage(t, e, img)
	e.SetTool(ToolCloneStamp)
	rec.Reset()
	drag(e, 0, image.Pt(3, 3), image.Pt(5, 5), image.Pt(7, 7))
	if names := rec.Names(); len(names) != 0 {
		t.Fatalf("events = %v", names)
	}
	if !raster.Equal(e.BaseImage(), img) || len(e.History()) != 1 || len(e.Tasks()) != 0 {
		t.Fatalf("clone without source mutated the session")
	}
	if ok, err := e.CloneStamp([]image.Point{{4, 4}}); ok || err != nil {
		t.Fatalf("CloneStamp = %v, %v", ok, err)
	}
}

func TestCloneToolStroke(t *testing.T) {
	e, _ := newEngine(t)
	img := solid(40, 20, color.RGBA{255, 255, 255, 255})
	for y := 0; y < 20; y++ {
		for x := 0; x < 10; x++ {
			img.SetRGBA(x, y, color.RGBA{0, 0, 200, 255})
		}
	}
	withImage(t, e, img)
	e.UpdateState(func(st *EditingState) { st.Retouch = retouch.BrushSettings{Radius: 3, Hardness: 1, Opacity: 1} })
	e.SetTool(ToolCloneStamp)
	e.PointerDown(5, 10, 1, ModAlt)
	drag(e, 0, image.Pt(25, 10), image.Pt(26, 10), image.Pt(27, 10))
	out := e.BaseImage()
	if got := out.RGBAAt(26, 10); got != (color.RGBA{0, 0, 200, 255}) {
		t.Fatalf("cloned pixel = %v", got)
	}
	h := e.History()
	if len(h) != 2 || h[1].Type != "clone-stamp" {
		t.Fatalf("history = %+v", h)
	}
	if tasks := e.Tasks(); len(tasks) != 1 || tasks[0].Tool != retouch.ToolCloneStamp {
		t.Fatalf("tasks = %+v", tasks)
	}
	e.Undo()
	if !raster.Equal(e.BaseImage(), img) {
		t.Fatalf("undo did not revert the stroke")
	}
}

func TestBrushStrokeAndEscape(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(50, 50, color.RGBA{255, 255, 255, 255}))
	e.SetTool(ToolBrush)

	e.PointerDown(5, 5, 1, 0)
	e.PointerMove(20, 20, 1, 0)
	if ok, _ := e.HandleKey(press(-1, key.CodeEscape, 0)); !ok {
		t.Fatalf("escape not handled")
	}
	e.PointerUp(30, 30, 1, 0)
	if n := len(e.Nodes(scene.LayerStrokes)); n != 0 {
		t.Fatalf("aborted stroke left %d nodes", n)
	}
	if len(e.History()) != 1 {
		t.Fatalf("aborted stroke was recorded")
	}

	rec.Reset()
	drag(e, 0, image.Pt(5, 5), image.Pt(15, 10), image.Pt(30, 30))
	hs := e.Nodes(scene.LayerStrokes)
	if len(hs) != 1 {
		t.Fatalf("stroke nodes = %d", len(hs))
	}
	n, _ := e.Node(hs[0])
	if it := n.Item.(*scene.StrokeItem); len(it.Points) != 3 || it.Settings.Blend != scene.BlendNormal {
		t.Fatalf("stroke = %+v", it)
	}
	if rec.Count("action-performed") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
}

func TestLassoEscapeKeepsNoSelection(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(20, 20, color.RGBA{A: 255}))
	e.SetTool(ToolLasso)
	e.PointerDown(1, 1, 1, 0)
	e.PointerMove(10, 1, 1, 0)
	e.PointerMove(10, 10, 1, 0)
	e.Cancel()
	e.PointerUp(1, 10, 1, 0)
	if rec.Count("selection-changed") != 0 {
		t.Fatalf("events = %v", rec.Names())
	}

	drag(e, 0, image.Pt(1, 1), image.Pt(10, 1), image.Pt(10, 10), image.Pt(1, 10))
	st := e.State()
	if st.Selection.Kind != selection.KindFreehand || !st.Selection.Contains(5, 5) {
		t.Fatalf("selection = %+v", st.Selection)
	}
}

func TestPolygonSelectCloses(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(20, 20, color.RGBA{A: 255}))
	e.SetTool(ToolPolygonSelect)
	for _, p := range []image.Point{{2, 2}, {18, 2}, {18, 18}, {3, 3}} {
		e.PointerDown(float64(p.X), float64(p.Y), 1, 0)
		e.PointerUp(float64(p.X), float64(p.Y), 1, 0)
	}
	a := e.State().Selection
	if a.Kind != selection.KindPolygon || len(a.Points) != 6 {
		t.Fatalf("selection = %+v", a)
	}
}

func TestSelectToolDragMovesNode(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(40, 40, color.RGBA{255, 255, 255, 255}))
	h, err := e.AddShape("rectangle", scene.Transform{X: 5, Y: 5, Width: 10, Height: 10}, DefaultState().ShapeOptions, DefaultState().ShapeStyle)
	if err != nil {
		t.Fatal(err)
	}
	rec.Reset()
	drag(e, 0, image.Pt(8, 8), image.Pt(12, 10), image.Pt(18, 15))
	n, _ := e.Node(h)
	if n.Transform.X != 15 || n.Transform.Y != 12 {
		t.Fatalf("node at %v,%v, want 15,12", n.Transform.X, n.Transform.Y)
	}
	if rec.Count("node-selected") != 1 || rec.Count("item-moved") != 1 || rec.Count("action-performed") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
	if !e.Undo() {
		t.Fatal("Undo = false")
	}
	n, _ = e.Node(h)
	if n.Transform.X != 5 || n.Transform.Y != 5 {
		t.Fatalf("undo left node at %v,%v", n.Transform.X, n.Transform.Y)
	}
}

func TestSelectToolResizeByHandle(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(60, 60, color.RGBA{255, 255, 255, 255}))
	h, _ := e.AddShape("ellipse", scene.Transform{X: 10, Y: 10, Width: 20, Height: 20}, DefaultState().ShapeOptions, DefaultState().ShapeStyle)
	e.PointerDown(20, 20, 1, 0)
	e.PointerUp(20, 20, 1, 0)
	rec.Reset()
	// bottom-right corner handle
	drag(e, 0, image.Pt(30, 30), image.Pt(35, 35), image.Pt(40, 36))
	n, _ := e.Node(h)
	if n.Transform.Width != 30 || n.Transform.Height != 26 || n.Transform.X != 10 {
		t.Fatalf("transform = %+v", n.Transform)
	}
	if rec.Count("item-resized") != 1 || rec.Count("item-moved") != 0 {
		t.Fatalf("events = %v", rec.Names())
	}
	if last := e.History()[len(e.History())-1]; last.Type != "resize" {
		t.Fatalf("last action = %s", last.Type)
	}
}

func TestDeleteKeyRemovesSelectedNode(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(30, 30, color.RGBA{A: 255}))
	h, _ := e.AddShape("star", scene.Transform{X: 2, Y: 2, Width: 20, Height: 20}, DefaultState().ShapeOptions, DefaultState().ShapeStyle)
	e.PointerDown(12, 12, 1, 0)
	e.PointerUp(12, 12, 1, 0)
	if ok, err := e.HandleKey(press(-1, key.CodeDeleteForward, 0)); !ok || err != nil {
		t.Fatalf("HandleKey = %v, %v", ok, err)
	}
	if _, err := e.Node(h); !errors.Is(err, scene.ErrStaleHandle) {
		t.Fatalf("node still present: %v", err)
	}
}

func TestTextToolTyping(t *testing.T) {
	e, rec := newEngine(t)
	withImage(t, e, solid(200, 80, color.RGBA{255, 255, 255, 255}))
	e.SetTool(ToolText)
	e.PointerDown(10, 10, 1, 0)
	e.PointerUp(10, 10, 1, 0)
	for _, r := range "hix" {
		e.HandleKey(press(r, key.CodeUnknown, 0))
	}
	e.HandleKey(press(-1, key.CodeDeleteBackspace, 0))
	if ok, err := e.HandleKey(press(-1, key.CodeReturnEnter, 0)); !ok || err != nil {
		t.Fatalf("enter = %v, %v", ok, err)
	}
	hs := e.Nodes(scene.LayerText)
	if len(hs) != 1 {
		t.Fatalf("text nodes = %d", len(hs))
	}
	n, _ := e.Node(hs[0])
	if got := n.Item.(*scene.TextItem).Content; got != "hi" {
		t.Fatalf("content = %q", got)
	}
	if rec.Count("text-added") != 1 || e.State().Tool != ToolText {
		t.Fatalf("events = %v", rec.Names())
	}

	// Pressing the node again edits it in place.
	e.PointerDown(n.Transform.X+1, n.Transform.Y+1, 1, 0)
	e.HandleKey(press('!', key.CodeUnknown, 0))
	e.HandleKey(press(-1, key.CodeReturnEnter, 0))
	n, _ = e.Node(hs[0])
	if got := n.Item.(*scene.TextItem).Content; got != "hi!" {
		t.Fatalf("edited content = %q", got)
	}
	if rec.Count("text-edited") != 1 {
		t.Fatalf("events = %v", rec.Names())
	}
}

func TestToolShortcuts(t *testing.T) {
	e, _ := newEngine(t)
	if ok, _ := e.HandleKey(press('b', key.CodeB, 0)); !ok || e.State().Tool != ToolBrush {
		t.Fatalf("tool = %v", e.State().Tool)
	}
	if ok, _ := e.HandleKey(press('q', key.CodeQ, 0)); ok {
		t.Fatalf("unbound key consumed")
	}
}

func TestUndoShortcut(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(2, 2, color.RGBA{A: 255}))
	e.ApplyFilter("invert", nil)
	if ok, _ := e.HandleKey(press('z', key.CodeZ, key.ModControl)); !ok {
		t.Fatalf("ctrl+z did not undo")
	}
	if ok, _ := e.HandleKey(press('z', key.CodeZ, key.ModControl|key.ModShift)); !ok {
		t.Fatalf("ctrl+shift+z did not redo")
	}
	if got := e.BaseImage().RGBAAt(0, 0); got.R != 255 {
		t.Fatalf("pixel = %v", got)
	}
}

func TestHandleMouseUsesZoom(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(40, 40, color.RGBA{255, 255, 255, 255}))
	e.UpdateState(func(st *EditingState) { st.Zoom, st.PanX, st.PanY = 2, 10, 10 })
	e.SetTool(ToolRectSelect)
	e.HandleMouse(mouse.Event{X: 20, Y: 20, Button: mouse.ButtonLeft, Direction: mouse.DirPress})
	e.HandleMouse(mouse.Event{X: 40, Y: 30, Direction: mouse.DirNone})
	e.HandleMouse(mouse.Event{X: 50, Y: 50, Button: mouse.ButtonLeft, Direction: mouse.DirRelease})
	if got := e.State().Selection.Bounds(); got != image.Rect(5, 5, 20, 20) {
		t.Fatalf("selection = %v", got)
	}
}

func TestPreviewIgnoresPointer(t *testing.T) {
	e, _ := newEngine(t)
	withImage(t, e, solid(20, 20, color.RGBA{A: 255}))
	e.UpdateState(func(st *EditingState) { st.Preview = true })
	e.SetTool(ToolBrush)
	drag(e, 0, image.Pt(1, 1), image.Pt(10, 10))
	if len(e.Nodes(scene.LayerStrokes)) != 0 {
		t.Fatalf("preview mode accepted a stroke")
	}
}

func TestSpotHealTool(t *testing.T) {
	e, _ := newEngine(t)
	img := solid(40, 40, color.RGBA{120, 120, 120, 255})
	img.SetRGBA(20, 20, color.RGBA{255, 0, 0, 255})
	withImage(t, e, img)
	e.UpdateState(func(st *EditingState) { st.Retouch.Radius = 4 })
	e.SetTool(ToolSpotHeal)
	e.PointerDown(20, 20, 1, 0)
	e.PointerUp(20, 20, 1, 0)
	if got := e.BaseImage().RGBAAt(20, 20); got.R > 150 {
		t.Fatalf("blemish still red: %v", got)
	}
	if tasks := e.Tasks(); len(tasks) != 1 || tasks[0].Tool != retouch.ToolSpotHeal {
		t.Fatalf("tasks = %+v", tasks)
	}
	if h := e.History(); h[len(h)-1].Type != "spot-heal" {
		t.Fatalf("history = %+v", h)
	}
}

func TestPatchToolDrag(t *testing.T) {
	e, _ := newEngine(t)
	img := solid(60, 30, color.RGBA{255, 255, 255, 255})
	for y := 5; y < 25; y++ {
		for x := 5; x < 25; x++ {
			img.SetRGBA(x, y, color.RGBA{0, 150, 0, 255})
		}
	}
	withImage(t, e, img)
	e.SetSelection(selection.Rect(5, 5, 25, 25))
	e.SetTool(ToolPatch)
	drag(e, 0, image.Pt(15, 15), image.Pt(30, 15), image.Pt(45, 15))
	if got := e.BaseImage().RGBAAt(45, 15); got != (color.RGBA{0, 150, 0, 255}) {
		t.Fatalf("patched centre = %v", got)
	}
	if h := e.History(); h[len(h)-1].Type != "patch" {
		t.Fatalf("history = %+v", h)
	}
}
