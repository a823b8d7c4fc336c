package authoring

import (
	"fmt"
	"image"
	"math"
	"sync"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/scene"
)

// Loader fetches the raster for an asset id.
type Loader func(id string) (*image.RGBA, error)

// AssetCache loads each asset once and serves it from memory afterwards.
type AssetCache struct {
	mu     sync.Mutex
	load   Loader
	images map[string]*image.RGBA
	loads  int
}

func NewAssetCache(load Loader) *AssetCache {
	return &AssetCache{load: load, images: map[string]*image.RGBA{}}
}

// Get returns the cached raster, invoking the loader on a miss. Failed
// loads are not cached.
func (c *AssetCache) Get(id string) (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[id]; ok {
		return img, nil
	}
	if c.load == nil {
		return nil, fmt.Errorf("asset %q: no loader", id)
	}
	c.loads++
	img, err := c.load(id)
	if err != nil {
		return nil, fmt.Errorf("asset %q: %w", id, err)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("asset %q: empty image", id)
	}
	c.images[id] = img
	return img, nil
}

// Put stores img under id, replacing any cached copy.
func (c *AssetCache) Put(id string, img *image.RGBA) {
	c.mu.Lock()
	c.images[id] = img
	c.mu.Unlock()
}

// Loads counts loader invocations.
func (c *AssetCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Anchor is a canonical watermark position.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
	AnchorCenter      Anchor = "center"
)

// Anchors lists the five positions.
func Anchors() []Anchor {
	return []Anchor{AnchorTopLeft, AnchorTopRight, AnchorBottomLeft, AnchorBottomRight, AnchorCenter}
}

// ParseAnchor accepts the anchor names plus "centre".
func ParseAnchor(s string) (Anchor, error) {
	if s == "centre" {
		return AnchorCenter, nil
	}
	for _, a := range Anchors() {
		if string(a) == s {
			return a, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAnchor, s)
}

// Position returns the top-left corner of a w×h box anchored inside a
// cw×ch canvas with margin pixels of clearance.
func (a Anchor) Position(cw, ch, w, h, margin float64) (float64, float64, error) {
	switch a {
	case AnchorTopLeft:
		return margin, margin, nil
	case AnchorTopRight:
		return cw - w - margin, margin, nil
	case AnchorBottomLeft:
		return margin, ch - h - margin, nil
	case AnchorBottomRight:
		return cw - w - margin, ch - h - margin, nil
	case AnchorCenter:
		return (cw - w) / 2, (ch - h) / 2, nil
	}
	return 0, 0, fmt.Errorf("%w: %q", ErrUnknownAnchor, a)
}

// Placer puts cached assets onto the canvas.
type Placer struct {
	r     *scene.Renderer
	bus   *events.Bus
	cache *AssetCache
}

func NewPlacer(r *scene.Renderer, bus *events.Bus, cache *AssetCache) *Placer {
	return &Placer{r: r, bus: bus, cache: cache}
}

// Cache returns the asset cache.
func (p *Placer) Cache() *AssetCache { return p.cache }

func (p *Placer) place(id string, scale, opacity float64, at func(w, h float64) (float64, float64, error)) (scene.Handle, string, error) {
	if scale <= 0 {
		return scene.Handle{}, "", fmt.Errorf("%w: %v", ErrInvalidScale, scale)
	}
	img, err := p.cache.Get(id)
	if err != nil {
		return scene.Handle{}, "", err
	}
	w := math.Max(1, math.Round(float64(img.Bounds().Dx())*scale))
	h := math.Max(1, math.Round(float64(img.Bounds().Dy())*scale))
	x, y, err := at(w, h)
	if err != nil {
		return scene.Handle{}, "", err
	}
	hd, err := p.r.RenderNode(&scene.ImageItem{Image: img, Asset: id}, scene.Transform{X: x, Y: y, Width: w, Height: h})
	if err != nil {
		return scene.Handle{}, "", err
	}
	if opacity < 1 {
		if err := p.r.SetOpacity(hd, math.Max(0, opacity)); err != nil {
			p.r.RemoveNode(hd)
			return scene.Handle{}, "", err
		}
	}
	n, _ := p.r.Node(hd)
	return hd, n.ID, nil
}

// PlaceSticker centres asset id on (x, y).
func (p *Placer) PlaceSticker(id string, x, y, scale, opacity float64) (scene.Handle, error) {
	hd, ref, err := p.place(id, scale, opacity, func(w, h float64) (float64, float64, error) {
		return x - w/2, y - h/2, nil
	})
	if err != nil {
		return scene.Handle{}, err
	}
	p.bus.Publish(events.StickerAdded{Node: events.NodeRef(ref), Asset: id})
	return hd, nil
}

// PlaceWatermark anchors asset id against the canvas edges.
func (p *Placer) PlaceWatermark(id string, anchor Anchor, margin, scale, opacity float64) (scene.Handle, error) {
	cw, ch := p.r.Size()
	hd, ref, err := p.place(id, scale, opacity, func(w, h float64) (float64, float64, error) {
		return anchor.Position(float64(cw), float64(ch), w, h, margin)
	})
	if err != nil {
		return scene.Handle{}, err
	}
	p.bus.Publish(events.WatermarkAdded{Node: events.NodeRef(ref), Asset: id})
	return hd, nil
}
