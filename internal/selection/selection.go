// Package selection builds selection areas from geometric input or from
// colour similarity, and keeps the single live selection of a session.
package selection

import (
	"errors"
	"fmt"
	"image"
	"math"

	"github.com/fogleman/gg"

	"github.com/example/retoucher/internal/render"
)

var (
	// ErrTooFewPoints rejects polygon and freehand selections under three points.
	ErrTooFewPoints = errors.New("selection needs at least 3 points")
	// ErrEmptyMask is returned when a mask selects nothing.
	ErrEmptyMask = errors.New("selection mask is empty")
	// ErrSeedOutOfBounds is returned for magic-wand seeds outside the image.
	ErrSeedOutOfBounds = errors.New("seed outside image")
)

// Kind is the geometry family of an Area.
type Kind string

const (
	KindRect     Kind = "rect"
	KindCircle   Kind = "circle"
	KindPolygon  Kind = "polygon"
	KindFreehand Kind = "freehand"
)

// Area is a selected region. Points depend on Kind: rect is [x0 y0 x1 y1],
// circle is [cx cy r], polygon and freehand are x, y pairs. Colour-derived
// selections also carry the exact membership mask; Points then holds the
// traced boundary.
type Area struct {
	Kind       Kind
	Points     []float64
	Feathering float64
	AntiAlias  bool

	mask *Mask
}

// Rect selects the rectangle spanned by two corners.
func Rect(x0, y0, x1, y1 float64) Area {
	return Area{Kind: KindRect, Points: []float64{math.Min(x0, x1), math.Min(y0, y1), math.Max(x0, x1), math.Max(y0, y1)}, AntiAlias: true}
}

// Circle selects a disc.
func Circle(cx, cy, r float64) Area {
	return Area{Kind: KindCircle, Points: []float64{cx, cy, math.Abs(r)}, AntiAlias: true}
}

func polyline(kind Kind, pts []float64) (Area, error) {
	if len(pts)%2 != 0 {
		return Area{}, fmt.Errorf("%s selection: odd coordinate count %d", kind, len(pts))
	}
	if len(pts) < 6 {
		return Area{}, fmt.Errorf("%s selection with %d points: %w", kind, len(pts)/2, ErrTooFewPoints)
	}
	return Area{Kind: kind, Points: append([]float64(nil), pts...), AntiAlias: true}, nil
}

// Polygon selects a closed polygon through x, y pairs.
func Polygon(pts []float64) (Area, error) { return polyline(KindPolygon, pts) }

// Freehand selects the closed path of a lasso drag.
func Freehand(pts []float64) (Area, error) { return polyline(KindFreehand, pts) }

// FromMask turns a membership mask into a polygon area whose Points are the
// traced boundary. Contains and Rasterize use the mask itself.
func FromMask(m *Mask) (Area, error) {
	if m == nil || m.Count == 0 {
		return Area{}, ErrEmptyMask
	}
	return Area{Kind: KindPolygon, Points: TraceBoundary(m), mask: m}, nil
}

// Mask returns the membership mask behind a colour-derived area, or nil.
func (a Area) Mask() *Mask { return a.mask }

// IsZero reports whether a holds no selection.
func (a Area) IsZero() bool { return a.Kind == "" }

// Bounds returns the integer rectangle enclosing the area.
func (a Area) Bounds() image.Rectangle {
	if a.mask != nil {
		return a.mask.Bounds()
	}
	p := a.Points
	switch a.Kind {
	case KindRect:
		if len(p) < 4 {
			return image.Rectangle{}
		}
		return image.Rect(int(math.Floor(p[0])), int(math.Floor(p[1])), int(math.Ceil(p[2])), int(math.Ceil(p[3])))
	case KindCircle:
		if len(p) < 3 {
			return image.Rectangle{}
		}
		return image.Rect(int(math.Floor(p[0]-p[2])), int(math.Floor(p[1]-p[2])), int(math.Ceil(p[0]+p[2])), int(math.Ceil(p[1]+p[2])))
	}
	if len(p) < 2 {
		return image.Rectangle{}
	}
	minX, minY, maxX, maxY := p[0], p[1], p[0], p[1]
	for i := 2; i+1 < len(p); i += 2 {
		minX, maxX = math.Min(minX, p[i]), math.Max(maxX, p[i])
		minY, maxY = math.Min(minY, p[i+1]), math.Max(maxY, p[i+1])
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// Contains reports whether (x, y) is inside the area, ignoring feathering.
func (a Area) Contains(x, y float64) bool {
	if a.mask != nil {
		return a.mask.At(int(math.Floor(x)), int(math.Floor(y)))
	}
	p := a.Points
	switch a.Kind {
	case KindRect:
		return len(p) >= 4 && x >= p[0] && x < p[2] && y >= p[1] && y < p[3]
	case KindCircle:
		return len(p) >= 3 && math.Hypot(x-p[0], y-p[1]) <= p[2]
	}
	inside := false
	n := len(p) / 2
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		xi, yi := p[2*i], p[2*i+1]
		xj, yj := p[2*j], p[2*j+1]
		if (yi > y) != (yj > y) && x < (xj-xi)*(y-yi)/(yj-yi)+xi {
			inside = !inside
		}
	}
	return inside
}

// Outline returns the points to draw on the overlay and whether the outline
// closes.
func (a Area) Outline() []float64 {
	p := a.Points
	switch a.Kind {
	case KindRect:
		if len(p) < 4 {
			return nil
		}
		return []float64{p[0], p[1], p[2], p[1], p[2], p[3], p[0], p[3]}
	case KindCircle:
		if len(p) < 3 {
			return nil
		}
		const steps = 64
		out := make([]float64, 0, steps*2)
		for i := 0; i < steps; i++ {
			s, c := math.Sincos(2 * math.Pi * float64(i) / steps)
			out = append(out, p[0]+c*p[2], p[1]+s*p[2])
		}
		return out
	}
	if a.mask != nil {
		// traced boundaries are point clouds; draw the bounding box
		b := a.mask.Bounds()
		x0, y0, x1, y1 := float64(b.Min.X), float64(b.Min.Y), float64(b.Max.X), float64(b.Max.Y)
		return []float64{x0, y0, x1, y0, x1, y1, x0, y1}
	}
	return append([]float64(nil), p...)
}

// Rasterize renders the area into a w×h coverage mask. AntiAlias keeps soft
// edges; Feathering blurs the edge by that many pixels.
func (a Area) Rasterize(w, h int) *image.Alpha {
	out := image.NewAlpha(image.Rect(0, 0, w, h))
	if w <= 0 || h <= 0 || a.IsZero() {
		return out
	}
	if a.mask != nil {
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if a.mask.At(x, y) {
					out.Pix[y*out.Stride+x] = 0xff
				}
			}
		}
	} else {
		dc := gg.NewContext(w, h)
		switch a.Kind {
		case KindCircle:
			if len(a.Points) >= 3 {
				dc.DrawCircle(a.Points[0], a.Points[1], a.Points[2])
			}
		default:
			o := a.Outline()
			for i := 0; i+1 < len(o); i += 2 {
				dc.LineTo(o[i], o[i+1])
			}
			dc.ClosePath()
		}
		dc.SetRGB(1, 1, 1)
		dc.Fill()
		cov := dc.AsMask()
		copy(out.Pix, cov.Pix)
		if !a.AntiAlias {
			for i, v := range out.Pix {
				if v >= 0x80 {
					out.Pix[i] = 0xff
				} else {
					out.Pix[i] = 0
				}
			}
		}
	}
	if a.Feathering > 0 {
		out = render.BlurAlpha(out, int(math.Round(a.Feathering)))
	}
	return out
}
