// Package scene owns the layered node graph that makes up an editing canvas:
// the base raster, placed images, vector shapes, text and brush strokes, plus
// the UI overlay. Nodes live in a generation-checked arena and are only
// created or destroyed through the Renderer.
package scene

import (
	"errors"
	"fmt"
	"image"
	"math"
)

var (
	// ErrUnknownKind is returned when an item's kind is not registered.
	ErrUnknownKind = errors.New("unknown node kind")
	// ErrStaleHandle is returned for handles whose node has been removed.
	ErrStaleHandle = errors.New("stale node handle")
	// ErrMalformedSnapshot is returned by Restore for undecodable input.
	ErrMalformedSnapshot = errors.New("malformed scene snapshot")
)

// Kind tags the item a node represents.
type Kind int

const (
	KindImage Kind = iota + 1
	KindShape
	KindText
	KindStroke
	KindGroup
)

func (k Kind) String() string {
	switch k {
	case KindImage:
		return "image"
	case KindShape:
		return "shape"
	case KindText:
		return "text"
	case KindStroke:
		return "stroke"
	case KindGroup:
		return "group"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := KindImage; k <= KindGroup; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// LayerID names one of the fixed layers, bottom to top.
type LayerID int

const (
	LayerBackground LayerID = iota
	LayerImages
	LayerShapes
	LayerText
	LayerStrokes
	LayerOverlay
	numLayers
)

var layerNames = [numLayers]string{"background", "images", "shapes", "text", "strokes", "overlay"}

func (l LayerID) String() string {
	if l < 0 || l >= numLayers {
		return fmt.Sprintf("layer(%d)", int(l))
	}
	return layerNames[l]
}

// Layers lists every layer bottom to top.
func Layers() []LayerID {
	out := make([]LayerID, numLayers)
	for i := range out {
		out[i] = LayerID(i)
	}
	return out
}

func parseLayer(s string) (LayerID, bool) {
	for i, n := range layerNames {
		if n == s {
			return LayerID(i), true
		}
	}
	return 0, false
}

// Handle refers to a node slot. A handle stays valid until its node is
// removed; after that the slot generation moves on and the handle is stale.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool { return h.gen == 0 }

func (h Handle) String() string { return fmt.Sprintf("n%d.%d", h.index, h.gen) }

// Transform positions a node on the canvas. Rotation is in degrees around the
// node's centre.
type Transform struct {
	X, Y          float64
	Width, Height float64
	Rotation      float64
}

func (t Transform) centre() (float64, float64) {
	return t.X + t.Width/2, t.Y + t.Height/2
}

// Contains reports whether canvas point (x, y) falls inside the rotated box.
func (t Transform) Contains(x, y float64) bool {
	cx, cy := t.centre()
	dx, dy := x-cx, y-cy
	if t.Rotation != 0 {
		s, c := math.Sincos(-t.Rotation * math.Pi / 180)
		dx, dy = dx*c-dy*s, dx*s+dy*c
	}
	return math.Abs(dx) <= t.Width/2 && math.Abs(dy) <= t.Height/2
}

// Corners returns the four corners of the rotated box clockwise from top-left.
func (t Transform) Corners() [4][2]float64 {
	cx, cy := t.centre()
	s, c := math.Sincos(t.Rotation * math.Pi / 180)
	hw, hh := t.Width/2, t.Height/2
	local := [4][2]float64{{-hw, -hh}, {hw, -hh}, {hw, hh}, {-hw, hh}}
	var out [4][2]float64
	for i, p := range local {
		out[i] = [2]float64{cx + p[0]*c - p[1]*s, cy + p[0]*s + p[1]*c}
	}
	return out
}

// Bounds is the axis-aligned integer rectangle enclosing the rotated box.
func (t Transform) Bounds() image.Rectangle {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range t.Corners() {
		minX, maxX = math.Min(minX, p[0]), math.Max(maxX, p[0])
		minY, maxY = math.Min(minY, p[1]), math.Max(maxY, p[1])
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// Node is the renderer's record for one placed item.
type Node struct {
	ID        string
	Kind      Kind
	Layer     LayerID
	Transform Transform
	Z         int
	Draggable bool
	Opacity   float64
	Item      Item

	seq   uint64
	cache *image.RGBA
}

// Item is the logical content behind a node. Rasterize draws the item into a
// fresh w×h buffer in node-local coordinates.
type Item interface {
	Kind() Kind
	Rasterize(w, h int) (*image.RGBA, error)
}

type kindInfo struct {
	name  string
	layer LayerID
}

func defaultKinds() map[Kind]kindInfo {
	return map[Kind]kindInfo{
		KindImage:  {"image", LayerImages},
		KindShape:  {"shape", LayerShapes},
		KindText:   {"text", LayerText},
		KindStroke: {"stroke", LayerStrokes},
		KindGroup:  {"group", LayerImages},
	}
}

type slot struct {
	gen  uint32
	node *Node
}

// arena is a slot array with generation counters. issued tracks the highest
// generation ever handed out per slot so a restored snapshot can never make a
// later allocation reuse a handle.
type arena struct {
	slots  []slot
	issued []uint32
	free   []uint32
	ids    map[string]Handle
}

func (a *arena) index(h Handle, n *Node) {
	if a.ids == nil {
		a.ids = make(map[string]Handle)
	}
	a.ids[n.ID] = h
}

func (a *arena) alloc(n *Node) Handle {
	var idx uint32
	if k := len(a.free); k > 0 {
		idx = a.free[k-1]
		a.free = a.free[:k-1]
	} else {
		idx = uint32(len(a.slots))
		a.grow(idx)
	}
	a.issued[idx]++
	a.slots[idx] = slot{gen: a.issued[idx], node: n}
	h := Handle{index: idx, gen: a.issued[idx]}
	a.index(h, n)
	return h
}

func (a *arena) grow(idx uint32) {
	for int(idx) >= len(a.slots) {
		a.slots = append(a.slots, slot{})
	}
	for int(idx) >= len(a.issued) {
		a.issued = append(a.issued, 0)
	}
}

func (a *arena) get(h Handle) (*Node, bool) {
	if h.gen == 0 || int(h.index) >= len(a.slots) {
		return nil, false
	}
	s := a.slots[h.index]
	if s.gen != h.gen || s.node == nil {
		return nil, false
	}
	return s.node, true
}

func (a *arena) release(h Handle) bool {
	n, ok := a.get(h)
	if !ok {
		return false
	}
	if a.ids[n.ID] == h {
		delete(a.ids, n.ID)
	}
	a.slots[h.index].node = nil
	a.free = append(a.free, h.index)
	return true
}

// each visits live nodes in slot order.
func (a *arena) each(fn func(Handle, *Node)) {
	for i, s := range a.slots {
		if s.node != nil {
			fn(Handle{index: uint32(i), gen: s.gen}, s.node)
		}
	}
}

func (a *arena) find(id string) (Handle, bool) {
	h, ok := a.ids[id]
	if !ok {
		return Handle{}, false
	}
	if _, ok := a.get(h); !ok {
		return Handle{}, false
	}
	return h, true
}

// place installs n at an exact handle. Used while rebuilding from a snapshot.
func (a *arena) place(h Handle, n *Node) {
	a.grow(h.index)
	a.slots[h.index] = slot{gen: h.gen, node: n}
	a.index(h, n)
	if a.issued[h.index] < h.gen {
		a.issued[h.index] = h.gen
	}
}

func (a *arena) rebuildFree() {
	a.free = a.free[:0]
	for i := len(a.slots) - 1; i >= 0; i-- {
		if a.slots[i].node == nil {
			a.free = append(a.free, uint32(i))
		}
	}
}
