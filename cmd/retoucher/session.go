package main

import (
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/example/retoucher/internal/audit"
	"github.com/example/retoucher/internal/clipboard"
	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/raster"
)

// Swapped out in tests.
var (
	readClipboardFn  = clipboard.ReadRGBA
	writeClipboardFn = clipboard.WriteImage
)

func closeWithLog(name string, c io.Closer) {
	if err := c.Close(); err != nil {
		log.Printf("%s: close: %v", name, err)
	}
}

func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, rest)
		}
	}
	return path
}

// imageFlags are the input and output flags shared by the editing commands.
type imageFlags struct {
	file          string
	output        string
	fromClipboard bool
	toClipboard   bool
	quality       int
}

func (f *imageFlags) bind(fs *flag.FlagSet) {
	fs.StringVar(&f.file, "file", "", "input image file")
	fs.StringVar(&f.output, "output", "", "output file path (defaults to input file)")
	fs.BoolVar(&f.fromClipboard, "from-clipboard", false, "read the input image from the clipboard")
	fs.BoolVar(&f.fromClipboard, "from-clip", false, "read the input image from the clipboard (alias)")
	fs.BoolVar(&f.toClipboard, "to-clipboard", false, "copy the result to the clipboard")
	fs.BoolVar(&f.toClipboard, "to-clip", false, "copy the result to the clipboard (alias)")
	fs.IntVar(&f.quality, "quality", 0, "jpg/webp quality, 0 uses the configured default")
}

func (f *imageFlags) validate() error {
	if f.fromClipboard {
		if f.output == "" {
			if f.file != "" {
				f.output = f.file
			} else if !f.toClipboard {
				return fmt.Errorf("output file is required when reading from the clipboard")
			}
		}
		return nil
	}
	if f.file == "" {
		return fmt.Errorf("input file is required")
	}
	if f.output == "" {
		f.output = f.file
	}
	return nil
}

func (f *imageFlags) load(eng *engine.Engine) error {
	if f.fromClipboard {
		img, err := readClipboardFn()
		if err != nil {
			return fmt.Errorf("read clipboard image: %w", err)
		}
		return eng.SetImage(img)
	}
	fh, err := os.Open(f.file)
	if err != nil {
		return err
	}
	defer closeWithLog(f.file, fh)
	if err := eng.LoadImage(fh); err != nil {
		return fmt.Errorf("load %s: %w", f.file, err)
	}
	return nil
}

func (f *imageFlags) save(r *root, eng *engine.Engine) error {
	if f.output != "" {
		format, err := raster.ParseFormat(strings.TrimPrefix(filepath.Ext(f.output), "."))
		if err != nil {
			return err
		}
		data, err := eng.Export(raster.ExportOptions{Format: format, Quality: f.quality})
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		if err := os.WriteFile(f.output, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", f.output, err)
		}
		fmt.Fprintf(r.out(), "saved %s\n", f.output)
	}
	if f.toClipboard {
		if err := writeClipboardFn(eng.Flatten()); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintln(r.out(), "copied to clipboard")
	}
	return nil
}

// newEngine opens an editing session configured from r. The returned
// cleanup destroys it and closes the audit store.
func (r *root) newEngine() (*engine.Engine, func(), error) {
	cfg := r.cfg()
	opts := []engine.Option{engine.WithConfig(cfg)}
	if r != nil && r.activeTheme != nil {
		opts = append(opts, engine.WithTheme(r.activeTheme))
	}
	if r != nil && r.notifier != nil {
		opts = append(opts, engine.WithNotifier(r.notifier))
	}
	var store *audit.Store
	if r != nil && r.auditPath != "" {
		s, err := audit.Open(expandHome(r.auditPath))
		if err != nil {
			return nil, nil, err
		}
		store = s
		opts = append(opts, engine.WithRecorder(store))
	}
	eng := engine.New(opts...)
	cleanup := func() {
		eng.Destroy()
		if store != nil {
			closeWithLog("audit", store)
		}
	}
	if cfg.Presets != "" {
		if err := loadPresets(eng, expandHome(cfg.Presets)); err != nil {
			cleanup()
			return nil, nil, err
		}
	}
	return eng, cleanup, nil
}

func loadPresets(eng *engine.Engine, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("presets: %w", err)
	}
	defer closeWithLog(path, f)
	if _, err := eng.LoadPresets(f); err != nil {
		return fmt.Errorf("presets %s: %w", path, err)
	}
	return nil
}

// edit loads the input, runs fn and writes the result.
func (r *root) edit(img *imageFlags, fn func(*engine.Engine) error) error {
	eng, cleanup, err := r.newEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := img.load(eng); err != nil {
		return err
	}
	if err := fn(eng); err != nil {
		return err
	}
	return img.save(r, eng)
}

func expectInts(args []string, n int, what string) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires %d integer arguments", what, n)
	}
	vals := make([]int, n)
	for i, raw := range args {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid integer %q", raw)
		}
		vals[i] = v
	}
	return vals, nil
}

func expectFloats(args []string, n int, what string) ([]float64, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%s requires %d numeric arguments", what, n)
	}
	vals := make([]float64, n)
	for i, raw := range args {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid number %q", raw)
		}
		vals[i] = v
	}
	return vals, nil
}

// rectArgs parses "x0 y0 x1 y1".
func rectArgs(args []string, what string) (image.Rectangle, error) {
	v, err := expectInts(args, 4, what)
	if err != nil {
		return image.Rectangle{}, err
	}
	r := image.Rect(v[0], v[1], v[2], v[3])
	if r.Empty() {
		return image.Rectangle{}, fmt.Errorf("%s: empty rectangle %v", what, r)
	}
	return r, nil
}
