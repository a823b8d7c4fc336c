package scene

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"

	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/render"
)

// DefaultTextSize is used when a style leaves Size unset.
const DefaultTextSize = 24

// TextStyle describes how a text node is drawn.
type TextStyle struct {
	Font        string                `json:"font"` // "sans" or "mono"
	Size        float64               `json:"size"`
	Bold        bool                  `json:"bold,omitempty"`
	Italic      bool                  `json:"italic,omitempty"`
	Color       color.NRGBA           `json:"color"`
	Align       string                `json:"align,omitempty"` // left, center, right
	LineSpacing float64               `json:"lineSpacing,omitempty"`
	Shadow      *render.ShadowOptions `json:"shadow,omitempty"`
	StrokeColor color.NRGBA           `json:"strokeColor"`
	StrokeWidth float64               `json:"strokeWidth,omitempty"`
	Gradient    *Gradient             `json:"gradient,omitempty"`
}

// TextItem is a block of styled text; newlines separate lines.
type TextItem struct {
	Content string    `json:"content"`
	Style   TextStyle `json:"style"`
}

func (*TextItem) Kind() Kind { return KindText }

func (it *TextItem) shadow() *render.ShadowOptions { return it.Style.Shadow }

var (
	fontSources = map[string][]byte{
		"sans":            goregular.TTF,
		"sans-bold":       gobold.TTF,
		"sans-italic":     goitalic.TTF,
		"sans-bolditalic": gobolditalic.TTF,
		"mono":            gomono.TTF,
		"mono-bold":       gomonobold.TTF,
	}
	parsedFonts sync.Map // name -> *opentype.Font
	textFaces   sync.Map // faceKey -> font.Face

	// opentype faces are not safe for concurrent use.
	textMu sync.Mutex
)

type faceKey struct {
	name string
	size float64
}

func fontName(st TextStyle) string {
	family := "sans"
	if st.Font == "mono" {
		family = "mono"
	}
	switch {
	case family == "mono" && st.Bold:
		return "mono-bold"
	case family == "mono":
		return "mono"
	case st.Bold && st.Italic:
		return "sans-bolditalic"
	case st.Bold:
		return "sans-bold"
	case st.Italic:
		return "sans-italic"
	}
	return "sans"
}

func faceFor(st TextStyle) (font.Face, error) {
	size := st.Size
	if size <= 0 {
		size = DefaultTextSize
	}
	key := faceKey{fontName(st), size}
	if f, ok := textFaces.Load(key); ok {
		return f.(font.Face), nil
	}
	var parsed *opentype.Font
	if f, ok := parsedFonts.Load(key.name); ok {
		parsed = f.(*opentype.Font)
	} else {
		f, err := opentype.Parse(fontSources[key.name])
		if err != nil {
			return nil, fmt.Errorf("parse font %s: %w", key.name, err)
		}
		parsedFonts.Store(key.name, f)
		parsed = f
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("font face %s@%v: %w", key.name, size, err)
	}
	actual, _ := textFaces.LoadOrStore(key, face)
	return actual.(font.Face), nil
}

func lineSpacing(st TextStyle) float64 {
	if st.LineSpacing > 0 {
		return st.LineSpacing
	}
	return 1.2
}

func textPadding(st TextStyle) float64 { return math.Ceil(st.StrokeWidth) }

// MeasureText returns the box a text node with this content and style needs.
func MeasureText(content string, st TextStyle) (w, h float64, err error) {
	face, err := faceFor(st)
	if err != nil {
		return 0, 0, err
	}
	textMu.Lock()
	defer textMu.Unlock()
	dc := gg.NewContext(1, 1)
	dc.SetFontFace(face)
	if content == "" {
		content = " "
	}
	w, h = dc.MeasureMultilineString(content, lineSpacing(st))
	pad := textPadding(st) * 2
	// descenders of the last line
	h += float64(face.Metrics().Descent.Ceil())
	return math.Ceil(w + pad), math.Ceil(h + pad), nil
}

func alignFactor(st TextStyle) float64 {
	switch st.Align {
	case "center":
		return 0.5
	case "right":
		return 1
	}
	return 0
}

func (it *TextItem) Rasterize(w, h int) (*image.RGBA, error) {
	face, err := faceFor(it.Style)
	if err != nil {
		return nil, err
	}
	textMu.Lock()
	defer textMu.Unlock()
	st := it.Style
	pad := textPadding(st)
	ax := alignFactor(st)
	x := pad + ax*(float64(w)-2*pad)
	lines := strings.Split(it.Content, "\n")
	lh := float64(face.Metrics().Height.Ceil()) * lineSpacing(st)
	asc := float64(face.Metrics().Ascent.Ceil())
	drawLines := func(dc *gg.Context, dx, dy float64) {
		for i, line := range lines {
			dc.DrawStringAnchored(line, x+dx, pad+asc+float64(i)*lh+dy, ax, 0)
		}
	}

	dc := gg.NewContext(max(w, 1), max(h, 1))
	dc.SetFontFace(face)
	if st.StrokeWidth > 0 && st.StrokeColor.A > 0 {
		dc.SetColor(st.StrokeColor)
		r := st.StrokeWidth
		for a := 0.0; a < 2*math.Pi; a += math.Pi / 8 {
			drawLines(dc, r*math.Cos(a), r*math.Sin(a))
		}
	}
	if st.Gradient != nil && len(st.Gradient.Stops) > 0 {
		fill := gg.NewContext(max(w, 1), max(h, 1))
		fill.SetFontFace(face)
		fill.SetColor(color.White)
		drawLines(fill, 0, 0)
		out := raster.ToRGBA(dc.Image())
		paintThroughMask(out, fill.AsMask(), st.Gradient.pattern(float64(w), float64(h)))
		return out, nil
	}
	col := st.Color
	if col == (color.NRGBA{}) {
		col = color.NRGBA{A: 255}
	}
	dc.SetColor(col)
	drawLines(dc, 0, 0)
	return raster.ToRGBA(dc.Image()), nil
}

// paintThroughMask composites pattern colours over dst wherever mask is set.
func paintThroughMask(dst *image.RGBA, mask *image.Alpha, pat gg.Pattern) {
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := mask.AlphaAt(x, y).A
			if m == 0 {
				continue
			}
			r, g, bl, a := pat.ColorAt(x, y).RGBA()
			f := float64(m) / 255
			sa := float64(a>>8) * f
			i := dst.PixOffset(x, y)
			inv := 1 - sa/255
			dst.Pix[i+0] = raster.Clamp8(float64(r>>8)*f + float64(dst.Pix[i+0])*inv)
			dst.Pix[i+1] = raster.Clamp8(float64(g>>8)*f + float64(dst.Pix[i+1])*inv)
			dst.Pix[i+2] = raster.Clamp8(float64(bl>>8)*f + float64(dst.Pix[i+2])*inv)
			dst.Pix[i+3] = raster.Clamp8(sa + float64(dst.Pix[i+3])*inv)
		}
	}
}
