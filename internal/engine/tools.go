package engine

import (
	"image"
	"math"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
)

// Pointer is one pointer sample in canvas coordinates.
type Pointer struct {
	X, Y     float64
	Pressure float64
	Mods     Modifiers
}

func (p Pointer) pt() image.Point { return image.Pt(int(math.Floor(p.X)), int(math.Floor(p.Y))) }

// toolHandler receives input while its tool is active. Every method runs
// with e.mu held. cancel discards an unfinished gesture without touching
// committed state.
type toolHandler interface {
	down(e *Engine, p Pointer) error
	move(e *Engine, p Pointer) error
	up(e *Engine, p Pointer) error
	cancel(e *Engine)
}

// textInput is implemented by handlers that accept typed text.
type textInput interface {
	accepting() bool
	typeRune(e *Engine, r rune) bool
	backspace(e *Engine)
	commit(e *Engine) error
}

func handlerFor(t Tool) toolHandler {
	switch t {
	case ToolRectSelect:
		return &boxSelect{circle: false}
	case ToolCircleSelect:
		return &boxSelect{circle: true}
	case ToolLasso:
		return &lassoTool{}
	case ToolPolygonSelect:
		return &polygonTool{}
	case ToolMagicWand:
		return wandTool{}
	case ToolBrush:
		return brushTool{}
	case ToolText:
		return &textTool{}
	case ToolShape:
		return &shapeTool{}
	case ToolSpotHeal:
		return healTool{}
	case ToolCloneStamp:
		return &cloneTool{}
	case ToolPatch:
		return &patchTool{}
	default:
		return &selectTool{}
	}
}

// SetTool tears down the active tool and installs t. The live selection is
// kept only when switching to a tool that consumes it.
func (e *Engine) SetTool(t Tool) error {
	if _, err := ParseTool(string(t)); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	from := e.state.Tool
	if from == t {
		return nil
	}
	e.handler.cancel(e)
	e.text.CancelEdit()
	if t != ToolPatch {
		e.clearSelection()
	}
	e.handler = handlerFor(t)
	e.state.Tool = t
	e.emit(events.ToolChanged{From: string(from), To: string(t)})
	return nil
}

// Cancel aborts the gesture in progress, if any.
func (e *Engine) Cancel() {
	if e.lock() != nil {
		return
	}
	defer e.unlock()
	e.handler.cancel(e)
}

// PointerDown starts a gesture at canvas point (x, y).
func (e *Engine) PointerDown(x, y, pressure float64, mods Modifiers) error {
	return e.dispatch(Pointer{x, y, pressure, mods}, toolHandler.down)
}

// PointerMove continues the gesture.
func (e *Engine) PointerMove(x, y, pressure float64, mods Modifiers) error {
	return e.dispatch(Pointer{x, y, pressure, mods}, toolHandler.move)
}

// PointerUp finishes the gesture.
func (e *Engine) PointerUp(x, y, pressure float64, mods Modifiers) error {
	return e.dispatch(Pointer{x, y, pressure, mods}, toolHandler.up)
}

func (e *Engine) dispatch(p Pointer, fn func(toolHandler, *Engine, Pointer) error) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	if e.state.Preview {
		return nil
	}
	return fn(e.handler, e, p)
}

// selectTool picks nodes, drags them and resizes them by their handles.
type selectTool struct {
	node   scene.Handle
	handle int
	start  Pointer
	orig   scene.Transform
	before []byte
	moved  bool
}

func (s *selectTool) down(e *Engine, p Pointer) error {
	s.reset()
	if h, ok := e.renderer.Selected(); ok {
		if idx, ok := e.renderer.HandleAt(int(p.X), int(p.Y)); ok {
			return s.begin(e, h, idx, p)
		}
	}
	h, ok := e.renderer.Click(p.X, p.Y)
	if !ok {
		return nil
	}
	n, err := e.renderer.Node(h)
	if err != nil || !n.Draggable {
		return err
	}
	return s.begin(e, h, -1, p)
}

func (s *selectTool) begin(e *Engine, h scene.Handle, idx int, p Pointer) error {
	n, err := e.renderer.Node(h)
	if err != nil {
		return err
	}
	before, err := e.renderer.Snapshot()
	if err != nil {
		return err
	}
	s.node, s.handle, s.start, s.orig, s.before = h, idx, p, n.Transform, before
	return nil
}

func (s *selectTool) target(p Pointer) scene.Transform {
	t := s.orig
	dx, dy := p.X-s.start.X, p.Y-s.start.Y
	if s.handle < 0 {
		t.X += dx
		t.Y += dy
		return t
	}
	left, right := t.X, t.X+t.Width
	top, bottom := t.Y, t.Y+t.Height
	switch s.handle {
	case 0, 3, 7:
		left = math.Min(left+dx, right-1)
	case 1, 2, 5:
		right = math.Max(right+dx, left+1)
	}
	switch s.handle {
	case 0, 1, 4:
		top = math.Min(top+dy, bottom-1)
	case 2, 3, 6:
		bottom = math.Max(bottom+dy, top+1)
	}
	t.X, t.Y, t.Width, t.Height = left, top, right-left, bottom-top
	return t
}

func (s *selectTool) move(e *Engine, p Pointer) error {
	if s.before == nil {
		return nil
	}
	s.moved = true
	return e.renderer.SetTransform(s.node, s.target(p))
}

func (s *selectTool) up(e *Engine, p Pointer) error {
	if s.before == nil {
		return nil
	}
	defer s.reset()
	if !s.moved || (p.X == s.start.X && p.Y == s.start.Y) {
		return e.renderer.SetTransform(s.node, s.orig)
	}
	t := s.target(p)
	if t.X != s.orig.X || t.Y != s.orig.Y {
		if err := e.renderer.MoveNode(s.node, t.X, t.Y); err != nil {
			e.rollback("move", s.before, len(e.pending))
			return err
		}
	}
	kind, desc := "move", "Move node"
	if s.handle >= 0 {
		kind, desc = "resize", "Resize node"
		if err := e.renderer.ResizeNode(s.node, t.Width, t.Height); err != nil {
			e.rollback(kind, s.before, len(e.pending))
			return err
		}
	}
	return e.record(kind, desc, s.before)
}

func (s *selectTool) cancel(e *Engine) {
	if s.before != nil {
		_ = e.renderer.SetTransform(s.node, s.orig)
	}
	s.reset()
}

func (s *selectTool) reset() { *s = selectTool{} }

// boxSelect drags out a rectangle or a circle centred on the press point.
type boxSelect struct {
	circle bool
	active bool
	start  Pointer
}

func (b *boxSelect) area(p Pointer) selection.Area {
	if b.circle {
		return selection.Circle(b.start.X, b.start.Y, math.Hypot(p.X-b.start.X, p.Y-b.start.Y))
	}
	return selection.Rect(math.Min(b.start.X, p.X), math.Min(b.start.Y, p.Y), math.Max(b.start.X, p.X), math.Max(b.start.Y, p.Y))
}

func (b *boxSelect) down(e *Engine, p Pointer) error {
	b.active, b.start = true, p
	return nil
}

func (b *boxSelect) move(e *Engine, p Pointer) error {
	if b.active {
		e.renderer.SetSelectionOutline(b.area(p).Outline(), true)
	}
	return nil
}

func (b *boxSelect) up(e *Engine, p Pointer) error {
	if !b.active {
		return nil
	}
	b.active = false
	a := b.area(p)
	if a.Bounds().Empty() {
		e.clearSelection()
		return nil
	}
	e.setSelection(a)
	return nil
}

func (b *boxSelect) cancel(e *Engine) {
	if b.active {
		b.active = false
		e.restoreOutline()
	}
}

// restoreOutline redraws the live selection after a preview was abandoned.
func (e *Engine) restoreOutline() {
	if a, ok := e.sel.Active(); ok {
		e.renderer.SetSelectionOutline(a.Outline(), true)
		return
	}
	e.renderer.SetSelectionOutline(nil, false)
}

type lassoTool struct{ l selection.Lasso }

func (t *lassoTool) down(e *Engine, p Pointer) error {
	t.l.Begin(p.X, p.Y)
	return nil
}

func (t *lassoTool) move(e *Engine, p Pointer) error {
	if t.l.Active() {
		t.l.Add(p.X, p.Y)
		e.renderer.SetSelectionOutline(t.l.Points(), false)
	}
	return nil
}

func (t *lassoTool) up(e *Engine, p Pointer) error {
	if !t.l.Active() {
		return nil
	}
	t.l.Add(p.X, p.Y)
	a, err := t.l.Finish()
	if err != nil {
		e.restoreOutline()
		return err
	}
	e.setSelection(a)
	return nil
}

func (t *lassoTool) cancel(e *Engine) {
	if t.l.Active() {
		t.l.Cancel()
		e.restoreOutline()
	}
}

// closeDistance is how near the first vertex a click must land to close a
// polygon selection.
const closeDistance = 6

type polygonTool struct{ pts []float64 }

func (t *polygonTool) down(e *Engine, p Pointer) error {
	if n := len(t.pts); n >= 6 && math.Hypot(p.X-t.pts[0], p.Y-t.pts[1]) <= closeDistance {
		return t.commit(e)
	}
	t.pts = append(t.pts, p.X, p.Y)
	e.renderer.SetSelectionOutline(t.pts, false)
	return nil
}

func (t *polygonTool) move(*Engine, Pointer) error { return nil }
func (t *polygonTool) up(*Engine, Pointer) error   { return nil }

func (t *polygonTool) commit(e *Engine) error {
	if len(t.pts) == 0 {
		return nil
	}
	a, err := selection.Polygon(t.pts)
	t.pts = nil
	if err != nil {
		e.restoreOutline()
		return err
	}
	e.setSelection(a)
	return nil
}

func (t *polygonTool) accepting() bool             { return len(t.pts) > 0 }
func (t *polygonTool) typeRune(*Engine, rune) bool { return false }

func (t *polygonTool) backspace(e *Engine) {
	if len(t.pts) >= 2 {
		t.pts = t.pts[:len(t.pts)-2]
		e.renderer.SetSelectionOutline(t.pts, false)
	}
}

func (t *polygonTool) cancel(e *Engine) {
	if t.pts != nil {
		t.pts = nil
		e.restoreOutline()
	}
}

type wandTool struct{}

func (wandTool) down(e *Engine, p Pointer) error {
	_, err := e.magicWand(p.pt().X, p.pt().Y, e.state.Tolerance)
	return err
}

func (wandTool) move(*Engine, Pointer) error { return nil }
func (wandTool) up(*Engine, Pointer) error   { return nil }
func (wandTool) cancel(*Engine)              {}

// brushTool feeds the engine's stroke session; the session outlives the
// handler so its cap and tolerance come from configuration.
type brushTool struct{}

func (brushTool) down(e *Engine, p Pointer) error {
	e.stroke.Begin(p.X, p.Y, p.Pressure, e.state.Brush)
	return nil
}

func (brushTool) move(e *Engine, p Pointer) error {
	if e.stroke.Active() {
		e.stroke.Add(p.X, p.Y, p.Pressure)
	}
	return nil
}

func (brushTool) up(e *Engine, p Pointer) error {
	if !e.stroke.Active() {
		return nil
	}
	e.stroke.Add(p.X, p.Y, p.Pressure)
	item, t, err := e.stroke.Finish()
	if err != nil {
		return err
	}
	return e.perform("brush", "Brush stroke", func() error {
		_, err := e.renderer.RenderNode(item, t)
		return err
	})
}

func (brushTool) cancel(e *Engine) { e.stroke.Cancel() }

// textTool types a new text node at the press point, or edits the text node
// that was pressed.
type textTool struct {
	draft   []rune
	at      Pointer
	typing  bool
	editing bool
}

func (t *textTool) down(e *Engine, p Pointer) error {
	if t.typing {
		if err := t.commit(e); err != nil {
			return err
		}
	}
	if h, ok := e.renderer.HitTest(p.X, p.Y); ok {
		if ov, err := e.text.BeginEdit(h); err == nil {
			t.draft, t.typing, t.editing = []rune(ov.Text), true, true
			return nil
		}
	}
	t.draft, t.at, t.typing, t.editing = nil, p, true, false
	return nil
}

func (t *textTool) move(*Engine, Pointer) error { return nil }
func (t *textTool) up(*Engine, Pointer) error   { return nil }

func (t *textTool) accepting() bool { return t.typing }

func (t *textTool) typeRune(_ *Engine, r rune) bool {
	t.draft = append(t.draft, r)
	return true
}

func (t *textTool) backspace(*Engine) {
	if t.typing && len(t.draft) > 0 {
		t.draft = t.draft[:len(t.draft)-1]
	}
}

func (t *textTool) commit(e *Engine) error {
	if !t.typing {
		return nil
	}
	content, editing := string(t.draft), t.editing
	t.draft, t.typing, t.editing = nil, false, false
	if editing {
		return e.commitText(content)
	}
	if content == "" {
		return nil
	}
	_, err := e.addText(content, t.at.X, t.at.Y, e.state.Text)
	return err
}

func (t *textTool) cancel(e *Engine) {
	t.draft, t.typing, t.editing = nil, false, false
	e.text.CancelEdit()
}

// shapeTool drags out the bounding box of the current shape type.
type shapeTool struct{ box boxSelect }

func (s *shapeTool) down(e *Engine, p Pointer) error { return s.box.down(e, p) }

func (s *shapeTool) move(e *Engine, p Pointer) error { return s.box.move(e, p) }

func (s *shapeTool) up(e *Engine, p Pointer) error {
	if !s.box.active {
		return nil
	}
	s.box.active = false
	e.restoreOutline()
	r := s.box.area(p).Bounds()
	if r.Dx() < 2 || r.Dy() < 2 {
		return nil
	}
	t := scene.Transform{X: float64(r.Min.X), Y: float64(r.Min.Y), Width: float64(r.Dx()), Height: float64(r.Dy())}
	_, err := e.addShape(e.state.Shape, t, e.state.ShapeOptions, e.state.ShapeStyle)
	return err
}

func (s *shapeTool) cancel(e *Engine) { s.box.cancel(e) }

type healTool struct{}

func (healTool) down(e *Engine, p Pointer) error {
	return e.spotHeal(p.X, p.Y, e.state.Retouch.Radius, e.state.HealStrength)
}

func (healTool) move(*Engine, Pointer) error { return nil }
func (healTool) up(*Engine, Pointer) error   { return nil }
func (healTool) cancel(*Engine)              {}

// cloneTool stamps while dragging; Alt-press picks the source instead.
// The whole stroke is one action.
type cloneTool struct {
	before []byte
	img    *image.RGBA
}

func (c *cloneTool) down(e *Engine, p Pointer) error {
	if p.Mods&ModAlt != 0 {
		if _, err := e.base(); err != nil {
			return err
		}
		e.retouch.SetCloneSource(p.pt().X, p.pt().Y)
		return nil
	}
	if _, ok := e.retouch.CloneSource(); !ok {
		return nil
	}
	img, err := e.base()
	if err != nil {
		return err
	}
	before, err := e.renderer.Snapshot()
	if err != nil {
		return err
	}
	c.before, c.img = before, img
	return c.stamp(e, p)
}

func (c *cloneTool) stamp(e *Engine, p Pointer) error {
	out, ok := e.retouch.CloneStamp(c.img, p.pt().X, p.pt().Y)
	if !ok {
		return nil
	}
	c.img = out
	_, err := e.renderer.SetBaseImage(out)
	return err
}

func (c *cloneTool) move(e *Engine, p Pointer) error {
	if c.before == nil {
		return nil
	}
	return c.stamp(e, p)
}

func (c *cloneTool) up(e *Engine, p Pointer) error {
	if c.before == nil {
		return nil
	}
	before := c.before
	c.before, c.img = nil, nil
	if !e.retouch.EndStroke() {
		return nil
	}
	return e.record("clone-stamp", "Clone stamp", before)
}

func (c *cloneTool) cancel(e *Engine) {
	if c.before == nil {
		return
	}
	e.retouch.EndStroke()
	e.rollback("clone-stamp", c.before, len(e.pending))
	c.before, c.img = nil, nil
}

// patchTool lassoes a region when there is no selection; dragging from
// inside the selection patches it at the release offset.
type patchTool struct {
	lasso    lassoTool
	dragging bool
	start    Pointer
}

func (t *patchTool) down(e *Engine, p Pointer) error {
	if a, ok := e.sel.Active(); ok && a.Contains(p.X, p.Y) {
		t.dragging, t.start = true, p
		return nil
	}
	return t.lasso.down(e, p)
}

func (t *patchTool) move(e *Engine, p Pointer) error {
	if t.dragging {
		return nil
	}
	return t.lasso.move(e, p)
}

func (t *patchTool) up(e *Engine, p Pointer) error {
	if !t.dragging {
		return t.lasso.up(e, p)
	}
	t.dragging = false
	dx := int(math.Round(p.X - t.start.X))
	dy := int(math.Round(p.Y - t.start.Y))
	if dx == 0 && dy == 0 {
		return nil
	}
	return e.patch(selection.Area{}, dx, dy)
}

func (t *patchTool) cancel(e *Engine) {
	t.dragging = false
	t.lasso.cancel(e)
}
