package authoring

import (
	"fmt"
	"math"
	"sort"

	"github.com/example/retoucher/internal/scene"
)

// ShapeOptions tune the builders that take extra geometry.
type ShapeOptions struct {
	Sides      int     // polygon
	Points     int     // star
	InnerRatio float64 // star inner radius as a fraction of the outer
	Corner     float64 // rounded-rectangle corner radius
	Reverse    bool    // line runs bottom-left to top-right
}

// Builder traces a shape into a w×h box.
type Builder func(w, h float64, o ShapeOptions) scene.Path

// bezier circle constant
const kappa = 0.5522847498

var builders = map[string]Builder{
	"rectangle":         rectangle,
	"rounded-rectangle": roundedRectangle,
	"circle":            circle,
	"ellipse":           ellipse,
	"triangle":          triangle,
	"polygon":           polygon,
	"star":              star,
	"arrow":             arrow,
	"heart":             heart,
	"line":              line,
	"diamond":           diamond,
}

// ShapeTypes lists the known builders.
func ShapeTypes() []string {
	out := make([]string, 0, len(builders))
	for k := range builders {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// BuildShape traces typ into a w×h box.
func BuildShape(typ string, w, h float64, o ShapeOptions) (scene.Path, error) {
	b, ok := builders[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShape, typ)
	}
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %vx%v", ErrInvalidSize, w, h)
	}
	return b(w, h, o), nil
}

// NewShape returns a shape item of type typ sized w×h.
func NewShape(typ string, w, h float64, o ShapeOptions, st scene.ShapeStyle) (*scene.ShapeItem, error) {
	p, err := BuildShape(typ, w, h, o)
	if err != nil {
		return nil, err
	}
	if typ == "line" {
		st.Fill.A = 0
		if st.StrokeWidth <= 0 {
			st.StrokeWidth = 2
		}
	}
	return &scene.ShapeItem{Type: typ, Path: p, Width: w, Height: h, Style: st}, nil
}

// AddShape builds typ to fill t and renders it.
func AddShape(r *scene.Renderer, typ string, t scene.Transform, o ShapeOptions, st scene.ShapeStyle) (scene.Handle, error) {
	it, err := NewShape(typ, t.Width, t.Height, o, st)
	if err != nil {
		return scene.Handle{}, err
	}
	return r.RenderNode(it, t)
}

func rectangle(w, h float64, _ ShapeOptions) scene.Path {
	var p scene.Path
	p.Polygon(0, 0, w, 0, w, h, 0, h)
	return p
}

func roundedRectangle(w, h float64, o ShapeOptions) scene.Path {
	r := o.Corner
	if r <= 0 {
		r = math.Min(w, h) / 8
	}
	r = math.Min(r, math.Min(w, h)/2)
	c := r * (1 - kappa)
	var p scene.Path
	p.MoveTo(r, 0)
	p.LineTo(w-r, 0)
	p.CubicTo(w-c, 0, w, c, w, r)
	p.LineTo(w, h-r)
	p.CubicTo(w, h-c, w-c, h, w-r, h)
	p.LineTo(r, h)
	p.CubicTo(c, h, 0, h-c, 0, h-r)
	p.LineTo(0, r)
	p.CubicTo(0, c, c, 0, r, 0)
	p.Close()
	return p
}

func ellipseAt(cx, cy, rx, ry float64) scene.Path {
	kx, ky := rx*kappa, ry*kappa
	var p scene.Path
	p.MoveTo(cx+rx, cy)
	p.CubicTo(cx+rx, cy+ky, cx+kx, cy+ry, cx, cy+ry)
	p.CubicTo(cx-kx, cy+ry, cx-rx, cy+ky, cx-rx, cy)
	p.CubicTo(cx-rx, cy-ky, cx-kx, cy-ry, cx, cy-ry)
	p.CubicTo(cx+kx, cy-ry, cx+rx, cy-ky, cx+rx, cy)
	p.Close()
	return p
}

func circle(w, h float64, _ ShapeOptions) scene.Path {
	r := math.Min(w, h) / 2
	return ellipseAt(w/2, h/2, r, r)
}

func ellipse(w, h float64, _ ShapeOptions) scene.Path { return ellipseAt(w/2, h/2, w/2, h/2) }

func triangle(w, h float64, _ ShapeOptions) scene.Path {
	var p scene.Path
	p.Polygon(w/2, 0, w, h, 0, h)
	return p
}

// regular emits n vertices on an ellipse inscribed in the box, the first at
// the top.
func regular(w, h float64, n int, radius func(i int) float64) []float64 {
	pts := make([]float64, 0, 2*n)
	for i := 0; i < n; i++ {
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		f := radius(i)
		pts = append(pts, w/2+math.Cos(a)*w/2*f, h/2+math.Sin(a)*h/2*f)
	}
	return pts
}

func polygon(w, h float64, o ShapeOptions) scene.Path {
	n := o.Sides
	if n < 3 {
		n = 6
	}
	var p scene.Path
	p.Polygon(regular(w, h, n, func(int) float64 { return 1 })...)
	return p
}

func star(w, h float64, o ShapeOptions) scene.Path {
	n := o.Points
	if n < 3 {
		n = 5
	}
	inner := o.InnerRatio
	if inner <= 0 || inner >= 1 {
		inner = 0.5
	}
	var p scene.Path
	p.Polygon(regular(w, h, 2*n, func(i int) float64 {
		if i%2 == 1 {
			return inner
		}
		return 1
	})...)
	return p
}

func arrow(w, h float64, _ ShapeOptions) scene.Path {
	head := math.Min(w*0.4, h)
	shaft := h / 3
	var p scene.Path
	p.Polygon(
		0, h/2-shaft/2,
		w-head, h/2-shaft/2,
		w-head, 0,
		w, h/2,
		w-head, h,
		w-head, h/2+shaft/2,
		0, h/2+shaft/2,
	)
	return p
}

func heart(w, h float64, _ ShapeOptions) scene.Path {
	var p scene.Path
	p.MoveTo(w/2, h*0.3)
	p.CubicTo(w/2, h*0.05, w*0.05, 0, 0, h*0.3)
	p.CubicTo(0, h*0.6, w*0.35, h*0.8, w/2, h)
	p.CubicTo(w*0.65, h*0.8, w, h*0.6, w, h*0.3)
	p.CubicTo(w*0.95, 0, w/2, h*0.05, w/2, h*0.3)
	p.Close()
	return p
}

func line(w, h float64, o ShapeOptions) scene.Path {
	var p scene.Path
	if o.Reverse {
		p.MoveTo(0, h)
		p.LineTo(w, 0)
	} else {
		p.MoveTo(0, 0)
		p.LineTo(w, h)
	}
	return p
}

func diamond(w, h float64, _ ShapeOptions) scene.Path {
	var p scene.Path
	p.Polygon(w/2, 0, w, h/2, w/2, h, 0, h/2)
	return p
}
