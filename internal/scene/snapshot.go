package scene

import (
	"bytes"
	"compress/zlib"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"

	"github.com/example/retoucher/internal/raster"
)

const snapshotVersion = 1

// maxSlots bounds the slot index a snapshot may name.
const maxSlots = 1 << 20

type snapshotDoc struct {
	Version    int         `json:"version"`
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Background color.NRGBA `json:"background"`
	Selected   string      `json:"selected,omitempty"`
	Nodes      []nodeDoc   `json:"nodes"`
}

type nodeDoc struct {
	ID        string    `json:"id"`
	Slot      uint32    `json:"slot"`
	Gen       uint32    `json:"gen"`
	Seq       uint64    `json:"seq"`
	Layer     string    `json:"layer"`
	Transform Transform `json:"transform"`
	Z         int       `json:"z"`
	Draggable bool      `json:"draggable"`
	Opacity   float64   `json:"opacity"`
	Item      itemDoc   `json:"item"`
}

type itemDoc struct {
	Kind   string      `json:"kind"`
	Image  *imageDoc   `json:"image,omitempty"`
	Shape  *ShapeItem  `json:"shape,omitempty"`
	Text   *TextItem   `json:"text,omitempty"`
	Stroke *StrokeItem `json:"stroke,omitempty"`
	Group  *groupDoc   `json:"group,omitempty"`
}

// imageDoc stores pixels as zlib-compressed premultiplied RGBA so a restore
// is bit-exact.
type imageDoc struct {
	Width  int    `json:"w"`
	Height int    `json:"h"`
	Pix    []byte `json:"pix"`
	Asset  string `json:"asset,omitempty"`
	Base   bool   `json:"base,omitempty"`
}

type groupDoc struct {
	Name     string     `json:"name,omitempty"`
	Children []childDoc `json:"children"`
}

type childDoc struct {
	Offset Transform `json:"offset"`
	Item   itemDoc   `json:"item"`
}

func packPixels(img *image.RGBA) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		i := img.PixOffset(b.Min.X, y)
		if _, err := zw.Write(img.Pix[i : i+b.Dx()*4]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unpackPixels(w, h int, data []byte) (*image.RGBA, error) {
	if err := raster.CheckSize(w, h); err != nil {
		return nil, err
	}
	zr, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	want := w * h * 4
	pix, err := io.ReadAll(io.LimitReader(zr, int64(want)+1))
	if err != nil {
		return nil, fmt.Errorf("pixel data: %w", err)
	}
	if len(pix) != want {
		return nil, fmt.Errorf("pixel data: %d bytes, want %d", len(pix), want)
	}
	img := raster.New(w, h)
	copy(img.Pix, pix)
	return img, nil
}

func encodeItem(it Item) (itemDoc, error) {
	switch v := it.(type) {
	case *ImageItem:
		if v.Image == nil {
			return itemDoc{}, fmt.Errorf("image item without pixels")
		}
		pix, err := packPixels(v.Image)
		if err != nil {
			return itemDoc{}, err
		}
		b := v.Image.Bounds()
		return itemDoc{Kind: KindImage.String(), Image: &imageDoc{Width: b.Dx(), Height: b.Dy(), Pix: pix, Asset: v.Asset, Base: v.Base}}, nil
	case *ShapeItem:
		return itemDoc{Kind: KindShape.String(), Shape: v}, nil
	case *TextItem:
		return itemDoc{Kind: KindText.String(), Text: v}, nil
	case *StrokeItem:
		return itemDoc{Kind: KindStroke.String(), Stroke: v}, nil
	case *GroupItem:
		g := &groupDoc{Name: v.Name}
		for _, c := range v.Children {
			d, err := encodeItem(c.Item)
			if err != nil {
				return itemDoc{}, err
			}
			g.Children = append(g.Children, childDoc{Offset: c.Offset, Item: d})
		}
		return itemDoc{Kind: KindGroup.String(), Group: g}, nil
	}
	return itemDoc{}, fmt.Errorf("%w: %T", ErrUnknownKind, it)
}

func decodeItem(d itemDoc) (Item, error) {
	k, err := ParseKind(d.Kind)
	if err != nil {
		return nil, err
	}
	switch {
	case k == KindImage && d.Image != nil:
		img, err := unpackPixels(d.Image.Width, d.Image.Height, d.Image.Pix)
		if err != nil {
			return nil, err
		}
		return &ImageItem{Image: img, Asset: d.Image.Asset, Base: d.Image.Base}, nil
	case k == KindShape && d.Shape != nil:
		return d.Shape, nil
	case k == KindText && d.Text != nil:
		return d.Text, nil
	case k == KindStroke && d.Stroke != nil:
		return d.Stroke, nil
	case k == KindGroup && d.Group != nil:
		g := &GroupItem{Name: d.Group.Name}
		for _, c := range d.Group.Children {
			it, err := decodeItem(c.Item)
			if err != nil {
				return nil, err
			}
			g.Children = append(g.Children, GroupChild{Item: it, Offset: c.Offset})
		}
		return g, nil
	}
	return nil, fmt.Errorf("%s item has no %s payload", d.Kind, d.Kind)
}

// Snapshot serialises every node, raster contents included, so Restore can
// rebuild the scene with the same handles.
func (r *Renderer) Snapshot() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc := snapshotDoc{Version: snapshotVersion, Width: r.width, Height: r.height, Background: r.background}
	if n, ok := r.arena.get(r.selected); ok {
		doc.Selected = n.ID
	}
	var err error
	r.arena.each(func(h Handle, n *Node) {
		if err != nil {
			return
		}
		var it itemDoc
		it, err = encodeItem(n.Item)
		if err != nil {
			err = fmt.Errorf("node %s: %w", n.ID, err)
			return
		}
		doc.Nodes = append(doc.Nodes, nodeDoc{
			ID: n.ID, Slot: h.index, Gen: h.gen, Seq: n.seq,
			Layer: n.Layer.String(), Transform: n.Transform, Z: n.Z,
			Draggable: n.Draggable, Opacity: n.Opacity, Item: it,
		})
	})
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// Restore replaces the scene with a snapshot. The whole snapshot is decoded
// and every node rasterised before anything is swapped in; on error the
// current scene is untouched.
func (r *Renderer) Restore(data []byte) error {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	bad := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrMalformedSnapshot, fmt.Sprintf(format, args...))
	}
	if doc.Version != snapshotVersion {
		return bad("unsupported version %d", doc.Version)
	}
	if doc.Width < 0 || doc.Height < 0 || doc.Width > raster.MaxSide || doc.Height > raster.MaxSide ||
		doc.Width*doc.Height > raster.MaxPixels {
		return bad("canvas size %dx%d", doc.Width, doc.Height)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	next := arena{issued: append([]uint32(nil), r.arena.issued...)}
	slots := map[uint32]bool{}
	ids := map[string]bool{}
	var base, selected Handle
	var seq uint64
	for i, nd := range doc.Nodes {
		if nd.ID == "" || ids[nd.ID] {
			return bad("node %d: missing or duplicate id %q", i, nd.ID)
		}
		if nd.Gen == 0 || nd.Slot >= maxSlots || slots[nd.Slot] {
			return bad("node %s: invalid slot %d/%d", nd.ID, nd.Slot, nd.Gen)
		}
		layer, ok := parseLayer(nd.Layer)
		if !ok || layer == LayerOverlay {
			return bad("node %s: layer %q", nd.ID, nd.Layer)
		}
		item, err := decodeItem(nd.Item)
		if err != nil {
			return bad("node %s: %v", nd.ID, err)
		}
		if _, ok := r.kinds[item.Kind()]; !ok {
			return bad("node %s: kind %v not registered", nd.ID, item.Kind())
		}
		n := &Node{
			ID: nd.ID, Kind: item.Kind(), Layer: layer, Transform: nd.Transform,
			Z: nd.Z, Draggable: nd.Draggable, Opacity: nd.Opacity, Item: item, seq: nd.Seq,
		}
		if err := rasterize(n); err != nil {
			return bad("node %s: %v", nd.ID, err)
		}
		h := Handle{index: nd.Slot, gen: nd.Gen}
		if img, ok := item.(*ImageItem); ok && img.Base {
			if !base.IsZero() {
				return bad("more than one base image")
			}
			base = h
		}
		if nd.ID == doc.Selected {
			selected = h
		}
		slots[nd.Slot] = true
		ids[nd.ID] = true
		seq = max(seq, nd.Seq)
		next.place(h, n)
	}
	next.rebuildFree()

	r.arena = next
	r.width, r.height = doc.Width, doc.Height
	r.background = doc.Background
	r.base = base
	r.selected = selected
	r.seq = max(r.seq, seq)
	r.markAll()
	return nil
}
