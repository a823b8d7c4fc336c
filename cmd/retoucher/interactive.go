package main

import (
	"bufio"
	"flag"
	"fmt"
	"image"
	"io"
	"os"
	"strings"

	"github.com/example/retoucher/internal/authoring"
	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
)

type commandList []string

func (c *commandList) String() string {
	return strings.Join(*c, ";")
}

func (c *commandList) Set(value string) error {
	*c = append(*c, value)
	return nil
}

// interactiveCmd runs editing commands against one long-lived session.
type interactiveCmd struct {
	*root
	fs    *flag.FlagSet
	execs commandList
	file  string
	in    io.Reader

	eng *engine.Engine
}

func (i *interactiveCmd) FlagSet() *flag.FlagSet {
	return i.fs
}

func parseInteractiveCmd(args []string, r *root) (*interactiveCmd, error) {
	fs := flag.NewFlagSet("interactive", flag.ExitOnError)
	i := &interactiveCmd{root: r, fs: fs}
	fs.Usage = usageFunc(i)
	fs.Var(&i.execs, "e", "execute a command in immediate mode (may be specified multiple times)")
	fs.StringVar(&i.file, "file", "", "image to open at start")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: i}
	}
	return i, nil
}

func (i *interactiveCmd) Run() error {
	eng, cleanup, err := i.root.newEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	i.eng = eng
	if i.file != "" {
		if err := i.open(i.file); err != nil {
			return err
		}
	}

	if len(i.execs) > 0 {
		for _, cmd := range i.execs {
			done, err := i.executeLine(cmd)
			if err != nil {
				return err
			}
			if done {
				break
			}
		}
		return nil
	}

	in := i.in
	if in == nil {
		in = os.Stdin
	}
	out := i.root.out()
	fmt.Fprintln(out, "Enter commands (type 'help' for a list, 'exit' to quit)")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		done, err := i.executeLine(scanner.Text())
		if err != nil {
			fmt.Fprintln(i.root.errOut(), err)
		}
		if done {
			break
		}
	}
	return scanner.Err()
}

const interactiveHelp = `commands:
  open FILE | save FILE | size
  filter ID [name=value...] | preset NAME
  crop [x0 y0 x1 y1]
  select rect x0 y0 x1 y1 | select circle cx cy r | select clear | wand x y [tolerance]
  heal x y [radius] | clone-source x y | clone x y [x y...] | patch dx dy
  text x y CONTENT... | shape TYPE x y w h | sticker ID x y | watermark ID ANCHOR
  remove-bg | remove-object
  color NAME | tool NAME | undo | redo | history | tasks
  exit`

// executeLine runs one command and reports whether the session should end.
func (i *interactiveCmd) executeLine(line string) (bool, error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	eng, out := i.eng, i.root.out()
	name, rest := strings.ToLower(args[0]), args[1:]
	switch name {
	case "exit", "quit":
		return true, nil
	case "help":
		fmt.Fprintln(out, interactiveHelp)
	case "open":
		if len(rest) != 1 {
			return false, fmt.Errorf("open requires a file")
		}
		return false, i.open(rest[0])
	case "save":
		if len(rest) != 1 {
			return false, fmt.Errorf("save requires a file")
		}
		img := imageFlags{output: expandHome(rest[0])}
		return false, img.save(i.root, eng)
	case "size":
		w, h := eng.Size()
		fmt.Fprintf(out, "%dx%d\n", w, h)
	case "filter":
		if len(rest) < 1 {
			return false, fmt.Errorf("filter requires an id")
		}
		v, err := parseValues(rest[1:])
		if err != nil {
			return false, err
		}
		return false, eng.ApplyFilter(rest[0], v)
	case "preset":
		if len(rest) != 1 {
			return false, fmt.Errorf("preset requires a name")
		}
		return false, eng.ApplyPreset(rest[0])
	case "crop":
		if len(rest) == 0 {
			return false, eng.Crop(image.Rectangle{})
		}
		r, err := rectArgs(rest, "crop")
		if err != nil {
			return false, err
		}
		return false, eng.Crop(r)
	case "select":
		return false, i.selectCmd(rest)
	case "wand":
		if len(rest) != 2 && len(rest) != 3 {
			return false, fmt.Errorf("wand requires x y [tolerance]")
		}
		p, err := expectInts(rest[:2], 2, "wand")
		if err != nil {
			return false, err
		}
		tol := eng.State().Tolerance
		if len(rest) == 3 {
			v, err := expectFloats(rest[2:], 1, "wand tolerance")
			if err != nil {
				return false, err
			}
			tol = v[0]
		}
		a, err := eng.MagicWand(p[0], p[1], tol)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "selected %v\n", a.Bounds())
	case "heal":
		if len(rest) != 2 && len(rest) != 3 {
			return false, fmt.Errorf("heal requires x y [radius]")
		}
		v, err := expectFloats(rest, len(rest), "heal")
		if err != nil {
			return false, err
		}
		st := eng.State()
		radius := st.Retouch.Radius
		if len(v) == 3 {
			radius = v[2]
		}
		return false, eng.SpotHeal(v[0], v[1], radius, st.HealStrength)
	case "clone-source":
		p, err := expectInts(rest, 2, "clone-source")
		if err != nil {
			return false, err
		}
		return false, eng.SetCloneSource(p[0], p[1])
	case "clone":
		if len(rest) < 2 || len(rest)%2 != 0 {
			return false, fmt.Errorf("clone requires x y pairs")
		}
		v, err := expectInts(rest, len(rest), "clone")
		if err != nil {
			return false, err
		}
		pts := make([]image.Point, 0, len(v)/2)
		for k := 0; k < len(v); k += 2 {
			pts = append(pts, image.Pt(v[k], v[k+1]))
		}
		ok, err := eng.CloneStamp(pts)
		if err != nil {
			return false, err
		}
		if !ok {
			fmt.Fprintln(out, "no clone source; use clone-source x y")
		}
	case "patch":
		d, err := expectInts(rest, 2, "patch")
		if err != nil {
			return false, err
		}
		return false, eng.Patch(selection.Area{}, d[0], d[1])
	case "text":
		if len(rest) < 3 {
			return false, fmt.Errorf("text requires x y and content")
		}
		p, err := expectFloats(rest[:2], 2, "text")
		if err != nil {
			return false, err
		}
		h, err := eng.AddText(strings.Join(rest[2:], " "), p[0], p[1], eng.State().Text)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "added text %s\n", h)
	case "shape":
		if len(rest) != 5 {
			return false, fmt.Errorf("shape requires type x y w h")
		}
		v, err := expectFloats(rest[1:], 4, "shape")
		if err != nil {
			return false, err
		}
		st := eng.State()
		t := scene.Transform{X: v[0], Y: v[1], Width: v[2], Height: v[3]}
		h, err := eng.AddShape(strings.ToLower(rest[0]), t, st.ShapeOptions, st.ShapeStyle)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "added %s %s\n", rest[0], h)
	case "sticker":
		if len(rest) != 3 {
			return false, fmt.Errorf("sticker requires id x y")
		}
		p, err := expectFloats(rest[1:], 2, "sticker")
		if err != nil {
			return false, err
		}
		h, err := eng.AddSticker(rest[0], p[0], p[1], 1, 1)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "added sticker %s\n", h)
	case "watermark":
		if len(rest) != 2 {
			return false, fmt.Errorf("watermark requires id anchor")
		}
		a, err := authoring.ParseAnchor(strings.ToLower(rest[1]))
		if err != nil {
			return false, err
		}
		if _, err := eng.AddWatermark(rest[0], a, 16, 1, 0.6); err != nil {
			return false, err
		}
	case "remove-bg":
		ctx, cancel := i.root.aiContext()
		defer cancel()
		if err := eng.RemoveBackground(ctx); err != nil {
			return false, describeAIError("background removal", err)
		}
		fmt.Fprintln(out, "background removed")
	case "remove-object":
		ctx, cancel := i.root.aiContext()
		defer cancel()
		if err := eng.RemoveObject(ctx, selection.Area{}); err != nil {
			return false, describeAIError("object removal", err)
		}
		fmt.Fprintln(out, "object removed")
	case "color":
		if len(rest) != 1 {
			return false, fmt.Errorf("color requires a name or hex value")
		}
		c, err := parseColor(rest[0])
		if err != nil {
			return false, err
		}
		err = eng.UpdateState(func(s *engine.EditingState) {
			s.Brush.Color, s.Text.Color, s.ShapeStyle.Stroke = c, c, c
		})
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "color %s\n", formatColor(c))
	case "tool":
		if len(rest) != 1 {
			return false, fmt.Errorf("tool requires a name")
		}
		t, err := engine.ParseTool(strings.ToLower(rest[0]))
		if err != nil {
			return false, err
		}
		return false, eng.SetTool(t)
	case "undo":
		if !eng.Undo() {
			fmt.Fprintln(out, "nothing to undo")
		}
	case "redo":
		if !eng.Redo() {
			fmt.Fprintln(out, "nothing to redo")
		}
	case "history":
		for n, a := range eng.History() {
			marker := " "
			if a.CanUndo {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %2d %-14s %s\n", marker, n, a.Type, a.Description)
		}
	case "tasks":
		for _, t := range eng.Tasks() {
			fmt.Fprintln(out, formatTask(t))
		}
	default:
		return false, fmt.Errorf("unknown command: %s", name)
	}
	return false, nil
}

func (i *interactiveCmd) open(path string) error {
	img := imageFlags{file: expandHome(path)}
	if err := img.load(i.eng); err != nil {
		return err
	}
	w, h := i.eng.Size()
	fmt.Fprintf(i.root.out(), "opened %s (%dx%d)\n", path, w, h)
	return nil
}

func (i *interactiveCmd) selectCmd(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("select requires rect, circle or clear")
	}
	switch strings.ToLower(args[0]) {
	case "clear":
		return i.eng.ClearSelection()
	case "rect":
		r, err := rectArgs(args[1:], "select rect")
		if err != nil {
			return err
		}
		return i.eng.SetSelection(rectArea(r))
	case "circle":
		v, err := expectFloats(args[1:], 3, "select circle")
		if err != nil {
			return err
		}
		return i.eng.SetSelection(selection.Circle(v[0], v[1], v[2]))
	default:
		return fmt.Errorf("unknown selection: %s", args[0])
	}
}
