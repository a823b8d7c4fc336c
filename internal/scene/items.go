package scene

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/fogleman/gg"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/render"
)

// ImageItem is a placed raster. The base item is the editable photo that
// filters and retouch tools operate on; there is at most one per scene.
type ImageItem struct {
	Image *image.RGBA
	Asset string
	Base  bool
}

func (*ImageItem) Kind() Kind { return KindImage }

func (it *ImageItem) Rasterize(w, h int) (*image.RGBA, error) {
	if it.Image == nil || it.Image.Bounds().Empty() {
		return nil, errors.New("image item has no pixels")
	}
	b := it.Image.Bounds()
	if b.Dx() == w && b.Dy() == h && b.Min == (image.Point{}) {
		return it.Image, nil
	}
	return raster.Scale(it.Image, w, h), nil
}

// OpCode is a path instruction.
type OpCode int

const (
	OpMove OpCode = iota
	OpLine
	OpQuad
	OpCubic
	OpClose
)

// PathOp is one instruction with its coordinate pairs.
type PathOp struct {
	Op  OpCode    `json:"op"`
	Pts []float64 `json:"pts,omitempty"`
}

// Path is a vector outline in node-local coordinates.
type Path []PathOp

func (p *Path) MoveTo(x, y float64) { *p = append(*p, PathOp{Op: OpMove, Pts: []float64{x, y}}) }
func (p *Path) LineTo(x, y float64) { *p = append(*p, PathOp{Op: OpLine, Pts: []float64{x, y}}) }
func (p *Path) QuadTo(x1, y1, x, y float64) {
	*p = append(*p, PathOp{Op: OpQuad, Pts: []float64{x1, y1, x, y}})
}
func (p *Path) CubicTo(x1, y1, x2, y2, x, y float64) {
	*p = append(*p, PathOp{Op: OpCubic, Pts: []float64{x1, y1, x2, y2, x, y}})
}
func (p *Path) Close() { *p = append(*p, PathOp{Op: OpClose}) }

// Polygon appends a closed polyline through pts (x, y pairs).
func (p *Path) Polygon(pts ...float64) {
	for i := 0; i+1 < len(pts); i += 2 {
		if i == 0 {
			p.MoveTo(pts[0], pts[1])
			continue
		}
		p.LineTo(pts[i], pts[i+1])
	}
	p.Close()
}

func (p Path) trace(dc *gg.Context) error {
	for _, op := range p {
		need := map[OpCode]int{OpMove: 2, OpLine: 2, OpQuad: 4, OpCubic: 6, OpClose: 0}[op.Op]
		if len(op.Pts) != need {
			return fmt.Errorf("path op %d: want %d coordinates, got %d", op.Op, need, len(op.Pts))
		}
		q := op.Pts
		switch op.Op {
		case OpMove:
			dc.MoveTo(q[0], q[1])
		case OpLine:
			dc.LineTo(q[0], q[1])
		case OpQuad:
			dc.QuadraticTo(q[0], q[1], q[2], q[3])
		case OpCubic:
			dc.CubicTo(q[0], q[1], q[2], q[3], q[4], q[5])
		case OpClose:
			dc.ClosePath()
		}
	}
	return nil
}

// GradientKind selects linear or radial interpolation.
type GradientKind string

const (
	GradientLinear GradientKind = "linear"
	GradientRadial GradientKind = "radial"
)

type GradientStop struct {
	Offset float64     `json:"offset"`
	Color  color.NRGBA `json:"color"`
}

// Gradient coordinates are fractions of the node box; radii are fractions of
// the box's larger side.
type Gradient struct {
	Kind  GradientKind   `json:"kind"`
	X0    float64        `json:"x0"`
	Y0    float64        `json:"y0"`
	X1    float64        `json:"x1"`
	Y1    float64        `json:"y1"`
	R0    float64        `json:"r0,omitempty"`
	R1    float64        `json:"r1,omitempty"`
	Stops []GradientStop `json:"stops"`
}

func (g *Gradient) pattern(w, h float64) gg.Gradient {
	var out gg.Gradient
	if g.Kind == GradientRadial {
		side := math.Max(w, h)
		out = gg.NewRadialGradient(g.X0*w, g.Y0*h, g.R0*side, g.X1*w, g.Y1*h, g.R1*side)
	} else {
		out = gg.NewLinearGradient(g.X0*w, g.Y0*h, g.X1*w, g.Y1*h)
	}
	for _, s := range g.Stops {
		out.AddColorStop(s.Offset, s.Color)
	}
	return out
}

// ShapeStyle is shared by every vector shape.
type ShapeStyle struct {
	Fill        color.NRGBA           `json:"fill"`
	Stroke      color.NRGBA           `json:"stroke"`
	StrokeWidth float64               `json:"strokeWidth"`
	Dash        []float64             `json:"dash,omitempty"`
	Opacity     float64               `json:"opacity"`
	Gradient    *Gradient             `json:"gradient,omitempty"`
	Shadow      *render.ShadowOptions `json:"shadow,omitempty"`
}

// ShapeItem is a filled and/or stroked path. Type records the builder that
// produced it. Path coordinates live in a Width×Height box that is stretched
// to the node size; a zero box draws the path unscaled.
type ShapeItem struct {
	Type   string     `json:"type"`
	Path   Path       `json:"path"`
	Width  float64    `json:"width,omitempty"`
	Height float64    `json:"height,omitempty"`
	Style  ShapeStyle `json:"style"`
}

func (*ShapeItem) Kind() Kind { return KindShape }

func (it *ShapeItem) shadow() *render.ShadowOptions { return it.Style.Shadow }

func (it *ShapeItem) Rasterize(w, h int) (*image.RGBA, error) {
	dc := gg.NewContext(max(w, 1), max(h, 1))
	if it.Width > 0 && it.Height > 0 {
		dc.Scale(float64(w)/it.Width, float64(h)/it.Height)
	}
	if err := it.Path.trace(dc); err != nil {
		return nil, err
	}
	dc.Identity()
	st := it.Style
	switch {
	case st.Gradient != nil && len(st.Gradient.Stops) > 0:
		dc.SetFillStyle(st.Gradient.pattern(float64(w), float64(h)))
		dc.FillPreserve()
	case st.Fill.A > 0:
		dc.SetColor(st.Fill)
		dc.FillPreserve()
	}
	if st.StrokeWidth > 0 && st.Stroke.A > 0 {
		dc.SetColor(st.Stroke)
		dc.SetLineWidth(st.StrokeWidth)
		dc.SetLineJoinRound()
		dc.SetLineCapRound()
		if len(st.Dash) > 0 {
			dc.SetDash(st.Dash...)
		}
		dc.StrokePreserve()
	}
	dc.ClearPath()
	out := raster.ToRGBA(dc.Image())
	if st.Opacity > 0 && st.Opacity < 1 {
		scaleAlpha(out, st.Opacity)
	}
	return out, nil
}

// BlendMode selects how a stroke composites onto the pixels below it.
type BlendMode string

const (
	BlendNormal     BlendMode = "normal"
	BlendMultiply   BlendMode = "multiply"
	BlendScreen     BlendMode = "screen"
	BlendOverlay    BlendMode = "overlay"
	BlendDarken     BlendMode = "darken"
	BlendLighten    BlendMode = "lighten"
	BlendColorDodge BlendMode = "color-dodge"
)

// StrokeSettings are fixed when a stroke is committed.
type StrokeSettings struct {
	Color   color.NRGBA `json:"color"`
	Width   float64     `json:"width"`
	Opacity float64     `json:"opacity"`
	Blend   BlendMode   `json:"blend,omitempty"`
}

// StrokePoint is a pointer sample. P is pressure in [0,1]; zero means full.
type StrokePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	P float64 `json:"p"`
}

// StrokeItem is a committed brush stroke. Points are node-local.
type StrokeItem struct {
	ID        string         `json:"id"`
	Points    []StrokePoint  `json:"points"`
	Settings  StrokeSettings `json:"settings"`
	Timestamp time.Time      `json:"timestamp"`
}

func (*StrokeItem) Kind() Kind { return KindStroke }

func (it *StrokeItem) blend() BlendMode { return it.Settings.Blend }

func pressureWidth(base, p float64) float64 {
	if p <= 0 || p > 1 {
		p = 1
	}
	return math.Max(base*p, 0.5)
}

func (it *StrokeItem) Rasterize(w, h int) (*image.RGBA, error) {
	if len(it.Points) == 0 {
		return nil, errors.New("stroke has no points")
	}
	dc := gg.NewContext(max(w, 1), max(h, 1))
	dc.SetColor(it.Settings.Color)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	pts := it.Points
	if len(pts) == 1 {
		dc.DrawCircle(pts[0].X, pts[0].Y, pressureWidth(it.Settings.Width, pts[0].P)/2)
		dc.Fill()
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		dc.SetLineWidth(pressureWidth(it.Settings.Width, (a.P+b.P)/2))
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
		dc.Stroke()
	}
	out := raster.ToRGBA(dc.Image())
	if op := it.Settings.Opacity; op > 0 && op < 1 {
		scaleAlpha(out, op)
	}
	return out, nil
}

// GroupChild positions a child item inside its group. Offset X/Y are relative
// to the group's top-left corner.
type GroupChild struct {
	Item   Item
	Offset Transform
}

// GroupItem draws several items as one node, used for stickers made of parts.
type GroupItem struct {
	Name     string
	Children []GroupChild
}

func (*GroupItem) Kind() Kind { return KindGroup }

func (it *GroupItem) Rasterize(w, h int) (*image.RGBA, error) {
	if len(it.Children) == 0 {
		return nil, errors.New("group has no children")
	}
	out := raster.New(max(w, 1), max(h, 1))
	for i, c := range it.Children {
		if c.Item == nil {
			return nil, fmt.Errorf("group child %d: %w", i, ErrUnknownKind)
		}
		cw, ch := int(math.Ceil(c.Offset.Width)), int(math.Ceil(c.Offset.Height))
		img, err := c.Item.Rasterize(cw, ch)
		if err != nil {
			return nil, fmt.Errorf("group child %d: %w", i, err)
		}
		src, at := place(img, c.Offset)
		composite(out, src, at, BlendNormal)
	}
	return out, nil
}

type shadowed interface{ shadow() *render.ShadowOptions }

type blended interface{ blend() BlendMode }

func scaleAlpha(img *image.RGBA, f float64) {
	for i := range img.Pix {
		img.Pix[i] = uint8(float64(img.Pix[i])*f + 0.5)
	}
}
