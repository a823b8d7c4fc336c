package authoring

import (
	"fmt"
	"image"
	"math"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/scene"
)

// Overlay is the input box a UI opens over a text node while it is edited.
// Bounds matches the node's bounding box one to one.
type Overlay struct {
	Node   scene.Handle
	Bounds image.Rectangle
	Text   string
	Style  scene.TextStyle
}

// TextTool creates and edits text nodes.
type TextTool struct {
	r       *scene.Renderer
	bus     *events.Bus
	editing *Overlay
}

func NewTextTool(r *scene.Renderer, bus *events.Bus) *TextTool {
	return &TextTool{r: r, bus: bus}
}

// AddText places content with its top-left corner at (x, y).
func (t *TextTool) AddText(content string, x, y float64, st scene.TextStyle) (scene.Handle, error) {
	w, h, err := scene.MeasureText(content, st)
	if err != nil {
		return scene.Handle{}, fmt.Errorf("measure text: %w", err)
	}
	hd, err := t.r.RenderNode(&scene.TextItem{Content: content, Style: st}, scene.Transform{X: x, Y: y, Width: w, Height: h})
	if err != nil {
		return scene.Handle{}, err
	}
	n, _ := t.r.Node(hd)
	t.bus.Publish(events.TextAdded{Node: events.NodeRef(n.ID)})
	return hd, nil
}

// BeginEdit opens an edit session on a text node.
func (t *TextTool) BeginEdit(h scene.Handle) (Overlay, error) {
	n, err := t.r.Node(h)
	if err != nil {
		return Overlay{}, err
	}
	it, ok := n.Item.(*scene.TextItem)
	if !ok {
		return Overlay{}, fmt.Errorf("%w: %v", ErrNotText, n.Kind)
	}
	ov := Overlay{Node: h, Bounds: n.Transform.Bounds(), Text: it.Content, Style: it.Style}
	t.editing = &ov
	return ov, nil
}

// Editing returns the open session, if any.
func (t *TextTool) Editing() (Overlay, bool) {
	if t.editing == nil {
		return Overlay{}, false
	}
	return *t.editing, true
}

// CommitEdit replaces the node's content and grows or shrinks it to fit.
func (t *TextTool) CommitEdit(content string) error {
	if t.editing == nil {
		return ErrNoEdit
	}
	ov := *t.editing
	n, err := t.r.Node(ov.Node)
	if err != nil {
		t.editing = nil
		return err
	}
	w, h, err := scene.MeasureText(content, ov.Style)
	if err != nil {
		return err
	}
	if err := t.r.UpdateItem(ov.Node, &scene.TextItem{Content: content, Style: ov.Style}); err != nil {
		return err
	}
	tr := n.Transform
	if math.Abs(tr.Width-w) > 0.5 || math.Abs(tr.Height-h) > 0.5 {
		tr.Width, tr.Height = w, h
		if err := t.r.SetTransform(ov.Node, tr); err != nil {
			return err
		}
	}
	t.editing = nil
	t.bus.Publish(events.TextEdited{Node: events.NodeRef(n.ID), Text: content})
	return nil
}

// CancelEdit closes the session without touching the node.
func (t *TextTool) CancelEdit() { t.editing = nil }
