package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"

	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/selection"
)

// cropCmd cuts an image to a rectangle.
type cropCmd struct {
	*root
	fs   *flag.FlagSet
	img  imageFlags
	rect image.Rectangle
}

func (c *cropCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseCropCmd(args []string, r *root) (*cropCmd, error) {
	fs := flag.NewFlagSet("crop", flag.ExitOnError)
	c := &cropCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, &UsageError{of: c}
	}
	if c.rect, err = rectArgs(rest, "crop"); err != nil {
		return nil, err
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cropCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		w, h := eng.Size()
		if !c.rect.In(image.Rect(0, 0, w, h)) {
			return fmt.Errorf("crop %v is outside the %dx%d image", c.rect, w, h)
		}
		return eng.Crop(c.rect)
	})
}

// healCmd repairs a blemish at a point.
type healCmd struct {
	*root
	fs       *flag.FlagSet
	img      imageFlags
	x, y     float64
	radius   float64
	strength float64
}

func (c *healCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseHealCmd(args []string, r *root) (*healCmd, error) {
	fs := flag.NewFlagSet("heal", flag.ExitOnError)
	c := &healCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	fs.Float64Var(&c.radius, "radius", r.cfg().Brush.Radius, "heal radius in pixels")
	fs.Float64Var(&c.strength, "strength", 1, "blend strength between 0 and 1")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, &UsageError{of: c}
	}
	v, err := expectFloats(rest, 2, "heal")
	if err != nil {
		return nil, err
	}
	c.x, c.y = v[0], v[1]
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *healCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		return eng.SpotHeal(c.x, c.y, c.radius, c.strength)
	})
}

// cloneCmd stamps pixels from a source point along a stroke.
type cloneCmd struct {
	*root
	fs       *flag.FlagSet
	img      imageFlags
	source   image.Point
	points   []image.Point
	radius   float64
	hardness float64
	opacity  float64
}

func (c *cloneCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseCloneCmd(args []string, r *root) (*cloneCmd, error) {
	fs := flag.NewFlagSet("clone", flag.ExitOnError)
	c := &cloneCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	brush := r.cfg().Brush
	fs.Float64Var(&c.radius, "radius", brush.Radius, "brush radius in pixels")
	fs.Float64Var(&c.hardness, "hardness", brush.Hardness, "brush hardness between 0 and 1")
	fs.Float64Var(&c.opacity, "opacity", brush.Opacity, "brush opacity between 0 and 1")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, &UsageError{of: c}
	}
	if len(rest) < 4 || len(rest)%2 != 0 {
		return nil, fmt.Errorf("clone requires a source x y followed by one or more stroke points")
	}
	v, err := expectInts(rest, len(rest), "clone")
	if err != nil {
		return nil, err
	}
	c.source = image.Pt(v[0], v[1])
	for i := 2; i < len(v); i += 2 {
		c.points = append(c.points, image.Pt(v[i], v[i+1]))
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *cloneCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		err := eng.UpdateState(func(s *engine.EditingState) {
			s.Retouch.Radius = c.radius
			s.Retouch.Hardness = c.hardness
			s.Retouch.Opacity = c.opacity
		})
		if err != nil {
			return err
		}
		if err := eng.SetCloneSource(c.source.X, c.source.Y); err != nil {
			return err
		}
		stamped, err := eng.CloneStamp(c.points)
		if err != nil {
			return err
		}
		if !stamped {
			return fmt.Errorf("clone: no pixels stamped from %v", c.source)
		}
		return nil
	})
}

// patchCmd moves a rectangle of pixels and blends it in at an offset.
type patchCmd struct {
	*root
	fs     *flag.FlagSet
	img    imageFlags
	rect   image.Rectangle
	dx, dy int
}

func (c *patchCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parsePatchCmd(args []string, r *root) (*patchCmd, error) {
	fs := flag.NewFlagSet("patch", flag.ExitOnError)
	c := &patchCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, &UsageError{of: c}
	}
	if len(rest) != 6 {
		return nil, fmt.Errorf("patch requires x0 y0 x1 y1 dx dy")
	}
	if c.rect, err = rectArgs(rest[:4], "patch"); err != nil {
		return nil, err
	}
	off, err := expectInts(rest[4:], 2, "patch offset")
	if err != nil {
		return nil, err
	}
	c.dx, c.dy = off[0], off[1]
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func rectArea(r image.Rectangle) selection.Area {
	return selection.Rect(float64(r.Min.X), float64(r.Min.Y), float64(r.Max.X), float64(r.Max.Y))
}

func (c *patchCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		return eng.Patch(rectArea(c.rect), c.dx, c.dy)
	})
}

// wandCmd selects a colour region and writes its mask, or crops to it.
type wandCmd struct {
	*root
	fs        *flag.FlagSet
	img       imageFlags
	x, y      int
	tolerance float64
	mask      string
	crop      bool
}

func (c *wandCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseWandCmd(args []string, r *root) (*wandCmd, error) {
	fs := flag.NewFlagSet("wand", flag.ExitOnError)
	c := &wandCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	fs.Float64Var(&c.tolerance, "tolerance", 32, "colour distance accepted into the region (0-255)")
	fs.StringVar(&c.mask, "mask", "", "write the selection mask to this PNG file")
	fs.BoolVar(&c.crop, "crop", false, "crop the image to the selected region")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, &UsageError{of: c}
	}
	v, err := expectInts(rest, 2, "wand")
	if err != nil {
		return nil, err
	}
	c.x, c.y = v[0], v[1]
	if c.mask == "" && !c.crop {
		return nil, fmt.Errorf("wand needs -mask or -crop")
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *wandCmd) Run() error {
	eng, cleanup, err := c.root.newEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := c.img.load(eng); err != nil {
		return err
	}
	area, err := eng.MagicWand(c.x, c.y, c.tolerance)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.root.out(), "selected %v\n", area.Bounds())
	if c.mask != "" {
		if err := writeMask(c.mask, area, eng); err != nil {
			return err
		}
	}
	if !c.crop {
		return nil
	}
	if err := eng.Crop(image.Rectangle{}); err != nil {
		return err
	}
	return c.img.save(c.root, eng)
}

func writeMask(path string, area selection.Area, eng *engine.Engine) error {
	w, h := eng.Size()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer closeWithLog(path, f)
	if err := png.Encode(f, area.Rasterize(w, h)); err != nil {
		return fmt.Errorf("write mask %s: %w", path, err)
	}
	return nil
}
