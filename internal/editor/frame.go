package editor

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"unicode"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/theme"
)

const (
	statusHeight = 24
	buttonHeight = 22
	padding      = 4
	checkerSize  = 8
)

// ProgramTitle is shown at the top of the toolbar and in the window title.
const ProgramTitle = "Retoucher"

var labelFace font.Face = basicfont.Face7x13

// toolLabel is the toolbar caption of t, prefixed by its shortcut.
func toolLabel(t engine.Tool) string {
	if r := engine.ToolKey(t); r != 0 {
		return fmt.Sprintf("%c:%s", unicode.ToUpper(r), t)
	}
	return string(t)
}

// toolbarWidth is wide enough for the title and every tool label.
func toolbarWidth() int {
	d := &font.Drawer{Face: labelFace}
	w := d.MeasureString(ProgramTitle).Ceil()
	for _, t := range engine.Tools() {
		if lw := d.MeasureString(toolLabel(t)).Ceil(); lw > w {
			w = lw
		}
	}
	return w + 2*padding
}

// toolButtons lays the tool buttons out below the title.
func toolButtons(width int) []image.Rectangle {
	tools := engine.Tools()
	out := make([]image.Rectangle, len(tools))
	y := buttonHeight + padding
	for i := range tools {
		out[i] = image.Rect(0, y, width, y+buttonHeight)
		y += buttonHeight + 2
	}
	return out
}

// toolAt returns the tool whose button contains p.
func toolAt(p image.Point, width int) (engine.Tool, bool) {
	for i, r := range toolButtons(width) {
		if p.In(r) {
			return engine.Tools()[i], true
		}
	}
	return "", false
}

// fitZoom is the largest zoom at which an image of size sz fits the canvas
// area of a winW×winH window, capped at 1.
func fitZoom(sz image.Point, winW, winH, toolbar int) float64 {
	if sz.X <= 0 || sz.Y <= 0 {
		return 1
	}
	zx := float64(winW-toolbar) / float64(sz.X)
	zy := float64(winH-statusHeight) / float64(sz.Y)
	z := zx
	if zy < z {
		z = zy
	}
	if z <= 0 || z > 1 {
		return 1
	}
	return z
}

// frame is everything one repaint needs.
type frame struct {
	toolbar int
	canvas  *image.RGBA
	state   engine.EditingState
	busy    bool
	message string
}

// canvasRect is where the canvas lands in window coordinates.
func (f frame) canvasRect() image.Rectangle {
	if f.canvas == nil {
		return image.Rectangle{}
	}
	z := f.state.Zoom
	if z <= 0 {
		z = 1
	}
	x0, y0 := int(f.state.PanX), int(f.state.PanY)
	w := int(float64(f.canvas.Bounds().Dx()) * z)
	h := int(float64(f.canvas.Bounds().Dy()) * z)
	return image.Rect(x0, y0, x0+w, y0+h)
}

func (f frame) status() string {
	parts := []string{string(f.state.Tool), fmt.Sprintf("%.0f%%", f.state.Zoom*100)}
	if f.canvas != nil {
		b := f.canvas.Bounds()
		parts = append(parts, fmt.Sprintf("%dx%d", b.Dx(), b.Dy()))
	}
	if !f.state.Selection.IsZero() {
		parts = append(parts, "sel "+f.state.Selection.Bounds().String())
	}
	if f.busy {
		parts = append(parts, "processing...")
	}
	if f.message != "" {
		parts = append(parts, f.message)
	}
	return strings.Join(parts, "  ")
}

func fill(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	draw.Draw(dst, r, &image.Uniform{c}, image.Point{}, draw.Src)
}

func label(dst *image.RGBA, r image.Rectangle, s string, c color.RGBA) {
	m := labelFace.Metrics()
	baseline := r.Min.Y + (r.Dy()+m.Ascent.Ceil()-m.Descent.Ceil())/2
	d := &font.Drawer{Dst: dst, Src: &image.Uniform{c}, Face: labelFace, Dot: fixed.P(r.Min.X+padding, baseline)}
	d.DrawString(s)
}

// compose paints f into dst.
func compose(dst *image.RGBA, th *theme.Theme, f frame) {
	b := dst.Bounds()
	fill(dst, b, th.CanvasBackground)

	if cr := f.canvasRect().Intersect(b); !cr.Empty() {
		th.Checker(dst.SubImage(cr).(*image.RGBA), checkerSize)
		xdraw.NearestNeighbor.Scale(dst, f.canvasRect(), f.canvas, f.canvas.Bounds(), draw.Over, nil)
	}

	bar := image.Rect(0, 0, f.toolbar, b.Dy()-statusHeight)
	fill(dst, bar, th.ToolbarBackground)
	label(dst, image.Rect(0, 0, f.toolbar, buttonHeight), ProgramTitle, th.Foreground)
	for i, r := range toolButtons(f.toolbar) {
		t := engine.Tools()[i]
		bg := th.ButtonBackground
		if t == f.state.Tool {
			bg = th.ButtonActive
		}
		fill(dst, r, bg)
		label(dst, r, toolLabel(t), th.ButtonText)
	}

	st := image.Rect(0, b.Dy()-statusHeight, b.Dx(), b.Dy())
	fill(dst, st, th.Background)
	label(dst, st, f.status(), th.Foreground)
}
