package scene

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/render"
)

type layerState struct {
	visible   bool
	listening bool
	dirty     bool
	img       *image.RGBA
	redraws   int
}

// Renderer owns the node arena and the per-layer raster caches. Mutations
// mark only the owning layer dirty; Render recomposites from the caches.
type Renderer struct {
	mu sync.RWMutex

	width, height int
	bus           *events.Bus
	kinds         map[Kind]kindInfo
	arena         arena
	seq           uint64
	base          Handle
	selected      Handle
	layers        [numLayers]layerState
	background    color.NRGBA
	overlay       OverlayStyle
	outline       []float64
	outlineClosed bool
}

// New creates a renderer with an empty w×h canvas. bus may be nil.
func New(w, h int, bus *events.Bus) *Renderer {
	r := &Renderer{width: w, height: h, bus: bus, kinds: defaultKinds(), overlay: DefaultOverlayStyle()}
	for i := range r.layers {
		r.layers[i] = layerState{visible: true, dirty: true}
	}
	for _, l := range []LayerID{LayerImages, LayerShapes, LayerText, LayerStrokes} {
		r.layers[l].listening = true
	}
	return r
}

// RegisterKind adds or redirects a node kind to a layer.
func (r *Renderer) RegisterKind(k Kind, name string, layer LayerID) {
	r.mu.Lock()
	r.kinds[k] = kindInfo{name: name, layer: layer}
	r.mu.Unlock()
}

// Size returns the canvas dimensions.
func (r *Renderer) Size() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.width, r.height
}

// Resize changes the canvas dimensions. Nodes keep their positions.
func (r *Renderer) Resize(w, h int) {
	r.mu.Lock()
	r.width, r.height = max(w, 0), max(h, 0)
	r.markAll()
	r.mu.Unlock()
}

func (r *Renderer) markAll() {
	for i := range r.layers {
		r.layers[i].dirty = true
	}
}

func (r *Renderer) mark(l LayerID) { r.layers[l].dirty = true }

// rasterize fills n.cache, applying shadow and opacity.
func rasterize(n *Node) error {
	tw, th := n.Transform.Width, n.Transform.Height
	if !(tw > 0 && th > 0) {
		return fmt.Errorf("node %s: empty size %vx%v", n.Kind, tw, th)
	}
	if tw > raster.MaxSide || th > raster.MaxSide {
		return fmt.Errorf("node %s: %w: %vx%v", n.Kind, raster.ErrTooLarge, tw, th)
	}
	w, h := int(math.Ceil(tw)), int(math.Ceil(th))
	if err := raster.CheckSize(w, h); err != nil {
		return fmt.Errorf("node %s: %w", n.Kind, err)
	}
	img, err := n.Item.Rasterize(w, h)
	if err != nil {
		return fmt.Errorf("rasterize %s: %w", n.Kind, err)
	}
	if n.Opacity < 1 {
		img = raster.Clone(img)
		scaleAlpha(img, math.Max(n.Opacity, 0))
	}
	n.cache = img
	return nil
}

func (r *Renderer) newNode(item Item, t Transform) (*Node, error) {
	if item == nil {
		return nil, fmt.Errorf("%w: nil item", ErrUnknownKind)
	}
	info, ok := r.kinds[item.Kind()]
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, item.Kind())
	}
	r.seq++
	n := &Node{
		ID:        uuid.NewString(),
		Kind:      item.Kind(),
		Layer:     info.layer,
		Transform: t,
		Draggable: true,
		Opacity:   1,
		Item:      item,
		seq:       r.seq,
	}
	if err := rasterize(n); err != nil {
		return nil, err
	}
	return n, nil
}

// RenderNode creates a node for item at t. On any failure no node exists and
// no layer is invalidated.
func (r *Renderer) RenderNode(item Item, t Transform) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.newNode(item, t)
	if err != nil {
		return Handle{}, err
	}
	n.Z = r.topZ(n.Layer) + 1
	h := r.arena.alloc(n)
	r.mark(n.Layer)
	return h, nil
}

func (r *Renderer) topZ(l LayerID) int {
	z := 0
	r.arena.each(func(_ Handle, n *Node) {
		if n.Layer == l && n.Z > z {
			z = n.Z
		}
	})
	return z
}

func (r *Renderer) lookup(h Handle) (*Node, error) {
	n, ok := r.arena.get(h)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	return n, nil
}

// RemoveNode deletes the node; its handle becomes stale.
func (r *Renderer) RemoveNode(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	r.arena.release(h)
	r.mark(n.Layer)
	if r.selected == h {
		r.selected = Handle{}
		r.mark(LayerOverlay)
	}
	if r.base == h {
		r.base = Handle{}
	}
	return nil
}

// Node returns a copy of the node behind h.
func (r *Renderer) Node(h Handle) (Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, err := r.lookup(h)
	if err != nil {
		return Node{}, err
	}
	out := *n
	out.cache = nil
	return out, nil
}

// Find resolves a node by ID.
func (r *Renderer) Find(id string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.arena.find(id)
}

// Nodes returns the handles on layer l in paint order.
func (r *Renderer) Nodes(l LayerID) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ordered(l)
}

func (r *Renderer) ordered(l LayerID) []Handle {
	type entry struct {
		h Handle
		n *Node
	}
	var es []entry
	r.arena.each(func(h Handle, n *Node) {
		if n.Layer == l {
			es = append(es, entry{h, n})
		}
	})
	sort.Slice(es, func(i, j int) bool {
		if es[i].n.Z != es[j].n.Z {
			return es[i].n.Z < es[j].n.Z
		}
		return es[i].n.seq < es[j].n.seq
	})
	out := make([]Handle, len(es))
	for i, e := range es {
		out[i] = e.h
	}
	return out
}

// Len reports the number of live nodes.
func (r *Renderer) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	r.arena.each(func(Handle, *Node) { n++ })
	return n
}

// SetTransform repositions a node without publishing events. It is used for
// live dragging; MoveNode and ResizeNode finish the gesture.
func (r *Renderer) SetTransform(h Handle, t Transform) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setTransform(h, t)
}

func (r *Renderer) setTransform(h Handle, t Transform) error {
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	old := n.Transform
	n.Transform = t
	if old.Width != t.Width || old.Height != t.Height {
		if err := rasterize(n); err != nil {
			n.Transform = old
			return err
		}
	}
	r.mark(n.Layer)
	if h == r.selected {
		r.mark(LayerOverlay)
	}
	return nil
}

// MoveNode ends a drag at (x, y) and publishes ItemMoved.
func (r *Renderer) MoveNode(h Handle, x, y float64) error {
	r.mu.Lock()
	n, err := r.lookup(h)
	if err == nil {
		t := n.Transform
		t.X, t.Y = x, y
		err = r.setTransform(h, t)
	}
	var id string
	if n != nil {
		id = n.ID
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.bus.Publish(events.ItemMoved{Node: events.NodeRef(id), X: x, Y: y})
	return nil
}

// ResizeNode ends a transform gesture and publishes ItemResized.
func (r *Renderer) ResizeNode(h Handle, w, hgt float64) error {
	if !(w > 0 && hgt > 0) {
		return fmt.Errorf("resize to %vx%v: size must be positive", w, hgt)
	}
	r.mu.Lock()
	n, err := r.lookup(h)
	if err == nil {
		t := n.Transform
		t.Width, t.Height = w, hgt
		err = r.setTransform(h, t)
	}
	var id string
	if n != nil {
		id = n.ID
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.bus.Publish(events.ItemResized{Node: events.NodeRef(id), Width: w, Height: hgt})
	return nil
}

// UpdateItem swaps the content of a node for another item of the same kind.
func (r *Renderer) UpdateItem(h Handle, item Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	if item == nil || item.Kind() != n.Kind {
		return fmt.Errorf("%w: cannot replace %v content", ErrUnknownKind, n.Kind)
	}
	prev := *n
	n.Item = item
	if err := rasterize(n); err != nil {
		*n = prev
		return err
	}
	r.mark(n.Layer)
	return nil
}

// SetZ changes a node's stacking order within its layer.
func (r *Renderer) SetZ(h Handle, z int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	n.Z = z
	r.mark(n.Layer)
	return nil
}

// BringToFront places a node above everything else on its layer.
func (r *Renderer) BringToFront(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	n.Z = r.topZ(n.Layer) + 1
	r.mark(n.Layer)
	return nil
}

// SetOpacity changes a node's overall opacity in [0,1].
func (r *Renderer) SetOpacity(h Handle, o float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	n.Opacity = math.Min(math.Max(o, 0), 1)
	if err := rasterize(n); err != nil {
		return err
	}
	r.mark(n.Layer)
	return nil
}

// SetDraggable toggles whether the select tool may drag the node.
func (r *Renderer) SetDraggable(h Handle, d bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.lookup(h)
	if err != nil {
		return err
	}
	n.Draggable = d
	return nil
}

// SelectNode attaches the transformer to h and publishes NodeSelected.
func (r *Renderer) SelectNode(h Handle) error {
	r.mu.Lock()
	n, err := r.lookup(h)
	if err == nil {
		r.selected = h
		r.mark(LayerOverlay)
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	r.bus.Publish(events.NodeSelected{Node: events.NodeRef(n.ID)})
	return nil
}

// ClearSelection detaches the transformer.
func (r *Renderer) ClearSelection() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.selected.IsZero() {
		r.selected = Handle{}
		r.mark(LayerOverlay)
	}
}

// Selected returns the node carrying the transformer, if any.
func (r *Renderer) Selected() (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.arena.get(r.selected); !ok {
		return Handle{}, false
	}
	return r.selected, true
}

// HitTest returns the topmost node under (x, y) on a visible, listening
// layer. The base image is never hit; clicking it counts as background.
func (r *Renderer) HitTest(x, y float64) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for l := numLayers - 1; l >= 0; l-- {
		ls := r.layers[l]
		if !ls.visible || !ls.listening {
			continue
		}
		hs := r.ordered(l)
		for i := len(hs) - 1; i >= 0; i-- {
			n, _ := r.arena.get(hs[i])
			if hs[i] == r.base {
				continue
			}
			if n.Transform.Contains(x, y) {
				return hs[i], true
			}
		}
	}
	return Handle{}, false
}

// Click selects the node under the point or clears the selection when the
// background was hit.
func (r *Renderer) Click(x, y float64) (Handle, bool) {
	h, ok := r.HitTest(x, y)
	if !ok {
		r.ClearSelection()
		return Handle{}, false
	}
	if err := r.SelectNode(h); err != nil {
		return Handle{}, false
	}
	return h, true
}

// SetLayerVisible shows or hides a layer.
func (r *Renderer) SetLayerVisible(l LayerID, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l >= 0 && l < numLayers {
		r.layers[l].visible = v
	}
}

// SetLayerListening controls whether a layer takes part in hit-testing.
func (r *Renderer) SetLayerListening(l LayerID, v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l >= 0 && l < numLayers {
		r.layers[l].listening = v
	}
}

// SetBackground sets the fill of the background layer.
func (r *Renderer) SetBackground(c color.NRGBA) {
	r.mu.Lock()
	r.background = c
	r.mark(LayerBackground)
	r.mu.Unlock()
}

// SetBaseImage installs img as the editable raster at the canvas origin,
// replacing any previous one. The renderer takes ownership of img.
func (r *Renderer) SetBaseImage(img *image.RGBA) (Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img = raster.ToRGBA(img)
	if img == nil || img.Bounds().Empty() {
		return Handle{}, fmt.Errorf("base image is empty")
	}
	b := img.Bounds()
	t := Transform{Width: float64(b.Dx()), Height: float64(b.Dy())}
	if n, ok := r.arena.get(r.base); ok {
		prev := *n
		n.Item = &ImageItem{Image: img, Base: true, Asset: prev.Item.(*ImageItem).Asset}
		n.Transform = t
		if err := rasterize(n); err != nil {
			*n = prev
			return Handle{}, err
		}
		r.mark(LayerImages)
		return r.base, nil
	}
	n, err := r.newNode(&ImageItem{Image: img, Base: true}, t)
	if err != nil {
		return Handle{}, err
	}
	n.Draggable = false
	n.Z = math.MinInt32
	r.base = r.arena.alloc(n)
	r.mark(LayerImages)
	return r.base, nil
}

// BaseImage returns a copy of the editable raster, or nil before one is set.
func (r *Renderer) BaseImage() *image.RGBA {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.arena.get(r.base)
	if !ok {
		return nil
	}
	return raster.Clone(n.Item.(*ImageItem).Image)
}

// BaseHandle returns the handle of the base image node.
func (r *Renderer) BaseHandle() (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.arena.get(r.base)
	return r.base, ok
}

// Shift moves every node except the base image by (dx, dy), as needed after
// a crop moves the canvas origin.
func (r *Renderer) Shift(dx, dy float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.arena.each(func(h Handle, n *Node) {
		if h == r.base {
			return
		}
		n.Transform.X += dx
		n.Transform.Y += dy
		r.mark(n.Layer)
	})
	r.mark(LayerOverlay)
}

// Redraws reports how many times layer l has been rebuilt.
func (r *Renderer) Redraws(l LayerID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.layers[l].redraws
}

func (r *Renderer) redraw(l LayerID) {
	ls := &r.layers[l]
	ls.img = raster.New(r.width, r.height)
	ls.redraws++
	ls.dirty = false
	switch l {
	case LayerBackground:
		if r.background.A > 0 {
			draw.Draw(ls.img, ls.img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
		}
		return
	case LayerOverlay:
		r.drawOverlay(ls.img)
		return
	case LayerStrokes:
		// strokes blend against the composite and are drawn in flatten
		return
	}
	for _, h := range r.ordered(l) {
		n, _ := r.arena.get(h)
		drawNode(ls.img, n, BlendNormal)
	}
}

func drawNode(dst *image.RGBA, n *Node, mode BlendMode) {
	img := n.cache
	t := n.Transform
	if s, ok := n.Item.(shadowed); ok && s.shadow() != nil && s.shadow().Enabled() {
		res := render.ApplyShadow(img, *s.shadow())
		img = res.Image
		t.X -= float64(res.Offset.X)
		t.Y -= float64(res.Offset.Y)
		t.Width, t.Height = float64(img.Bounds().Dx()), float64(img.Bounds().Dy())
	}
	src, at := place(img, t)
	composite(dst, src, at, mode)
}

func (r *Renderer) flatten(overlay bool) *image.RGBA {
	out := raster.New(r.width, r.height)
	for l := LayerID(0); l < numLayers; l++ {
		if l == LayerOverlay && !overlay {
			continue
		}
		ls := &r.layers[l]
		if !ls.visible {
			continue
		}
		if ls.dirty || ls.img == nil || ls.img.Bounds().Dx() != r.width || ls.img.Bounds().Dy() != r.height {
			r.redraw(l)
		}
		if l == LayerStrokes {
			for _, h := range r.ordered(l) {
				n, _ := r.arena.get(h)
				mode := BlendNormal
				if b, ok := n.Item.(blended); ok && b.blend() != "" {
					mode = b.blend()
				}
				drawNode(out, n, mode)
			}
			continue
		}
		draw.Draw(out, out.Bounds(), ls.img, image.Point{}, draw.Over)
	}
	return out
}

// Render composites every visible layer including the overlay into a new
// image. Only dirty layers are rebuilt.
func (r *Renderer) Render() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flatten(true)
}

// Flatten is Render without the UI overlay.
func (r *Renderer) Flatten() *image.RGBA {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flatten(false)
}

// ExportRaster encodes the scene without the overlay. A target size other
// than the canvas size rescales the output only.
func (r *Renderer) ExportRaster(opts raster.ExportOptions) ([]byte, error) {
	img := r.Flatten()
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("export: canvas is empty")
	}
	return raster.EncodeBytes(img, opts)
}
