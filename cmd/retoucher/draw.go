package main

import (
	"flag"
	"fmt"
	"image/color"
	"strings"

	"golang.org/x/image/colornames"

	"github.com/example/retoucher/internal/authoring"
	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/theme"
)

// drawCmd adds a shape, text, sticker or watermark and flattens it into
// the output.
type drawCmd struct {
	*root
	fs  *flag.FlagSet
	img imageFlags

	kind      string
	shape     string
	coords    []float64
	text      string
	asset     string
	anchor    authoring.Anchor
	colorSpec string
	fillSpec  string
	width     float64
	textSize  float64
	font      string
	bold      bool
	scale     float64
	opacity   float64
	margin    float64
	rotation  float64
	sides     int
	points    int
	corner    float64
}

func (d *drawCmd) FlagSet() *flag.FlagSet {
	return d.fs
}

func parseColor(s string) (color.NRGBA, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" {
		return color.NRGBA{}, fmt.Errorf("color cannot be empty")
	}
	if name == "none" || name == "transparent" {
		return color.NRGBA{}, nil
	}
	if c, ok := colornames.Map[name]; ok {
		return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
	}
	c, err := theme.ParseColor(name)
	if err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid color %q", s)
	}
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}, nil
}

func parseDrawCmd(args []string, r *root) (*drawCmd, error) {
	fs := flag.NewFlagSet("draw", flag.ExitOnError)
	d := &drawCmd{root: r, fs: fs}
	fs.Usage = usageFunc(d)
	d.img.bind(fs)
	def := engine.DefaultState()
	fs.StringVar(&d.colorSpec, "color", "red", "stroke or text color name or hex value")
	fs.StringVar(&d.fillSpec, "fill", "none", "shape fill color name or hex value")
	fs.Float64Var(&d.width, "width", def.ShapeStyle.StrokeWidth, "stroke width in pixels")
	fs.Float64Var(&d.textSize, "text-size", scene.DefaultTextSize, "text size in points")
	fs.StringVar(&d.font, "font", def.Text.Font, "text font (sans or mono)")
	fs.BoolVar(&d.bold, "bold", false, "bold text")
	fs.Float64Var(&d.scale, "scale", 1, "sticker or watermark scale")
	fs.Float64Var(&d.opacity, "opacity", 1, "opacity between 0 and 1")
	fs.Float64Var(&d.margin, "margin", 16, "watermark margin in pixels")
	fs.Float64Var(&d.rotation, "rotation", 0, "shape rotation in degrees")
	fs.IntVar(&d.sides, "sides", def.ShapeOptions.Sides, "polygon side count")
	fs.IntVar(&d.points, "points", def.ShapeOptions.Points, "star point count")
	fs.Float64Var(&d.corner, "corner", def.ShapeOptions.Corner, "rounded-rectangle corner radius")

	positionals, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(positionals) < 1 {
		return nil, &UsageError{of: d}
	}
	d.kind = strings.ToLower(positionals[0])
	remaining := positionals[1:]
	switch d.kind {
	case "shape":
		if len(remaining) != 5 {
			return nil, fmt.Errorf("shape requires type x y width height")
		}
		d.shape = strings.ToLower(remaining[0])
		if d.coords, err = expectFloats(remaining[1:], 4, d.shape); err != nil {
			return nil, err
		}
	case "text":
		if len(remaining) < 3 {
			return nil, fmt.Errorf("text requires x y and content")
		}
		if d.coords, err = expectFloats(remaining[:2], 2, d.kind); err != nil {
			return nil, err
		}
		d.text = strings.Join(remaining[2:], " ")
	case "sticker":
		if len(remaining) != 3 {
			return nil, fmt.Errorf("sticker requires id x y")
		}
		d.asset = remaining[0]
		if d.coords, err = expectFloats(remaining[1:], 2, d.kind); err != nil {
			return nil, err
		}
	case "watermark":
		if len(remaining) != 2 {
			return nil, fmt.Errorf("watermark requires id anchor")
		}
		d.asset = remaining[0]
		if d.anchor, err = authoring.ParseAnchor(strings.ToLower(remaining[1])); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown draw kind: %s", d.kind)
	}
	if err := d.img.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *drawCmd) Run() error {
	stroke, err := parseColor(d.colorSpec)
	if err != nil {
		return err
	}
	return d.root.edit(&d.img, func(eng *engine.Engine) error {
		var err error
		switch d.kind {
		case "shape":
			fill, ferr := parseColor(d.fillSpec)
			if ferr != nil {
				return ferr
			}
			t := scene.Transform{X: d.coords[0], Y: d.coords[1], Width: d.coords[2], Height: d.coords[3], Rotation: d.rotation}
			opts := engine.DefaultState().ShapeOptions
			opts.Sides, opts.Points, opts.Corner = d.sides, d.points, d.corner
			st := scene.ShapeStyle{Fill: fill, Stroke: stroke, StrokeWidth: d.width, Opacity: d.opacity}
			_, err = eng.AddShape(d.shape, t, opts, st)
		case "text":
			st := scene.TextStyle{Font: d.font, Size: d.textSize, Bold: d.bold, Color: stroke}
			_, err = eng.AddText(d.text, d.coords[0], d.coords[1], st)
		case "sticker":
			_, err = eng.AddSticker(d.asset, d.coords[0], d.coords[1], d.scale, d.opacity)
		case "watermark":
			_, err = eng.AddWatermark(d.asset, d.anchor, d.margin, d.scale, d.opacity)
		}
		return err
	})
}

// formatColor renders c as #rrggbbaa.
func formatColor(c color.NRGBA) string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}
