package main

import (
	"bytes"
	"errors"
	"flag"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/retoucher/internal/config"
	"github.com/example/retoucher/internal/raster"
)

func testRoot(buf *bytes.Buffer) *root {
	return &root{program: "retoucher", config: config.New(), stdout: buf, stderr: buf}
}

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := raster.New(w, h)
	raster.Fill(img, c)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func readPNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatal(err)
	}
	return img
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

var white = color.RGBA{255, 255, 255, 255}

func TestParseFilterClipboardRequiresOutput(t *testing.T) {
	_, err := parseFilterCmd([]string{"-from-clipboard", "invert"}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if want := "output file is required when reading from the clipboard"; !strings.Contains(err.Error(), want) {
		t.Fatalf("expected error to mention %q, got %v", want, err)
	}
}

func TestParseFilterRequiresInput(t *testing.T) {
	_, err := parseFilterCmd([]string{"invert"}, nil)
	if err == nil || !strings.Contains(err.Error(), "input file is required") {
		t.Fatalf("got %v, want missing input error", err)
	}
}

func TestParseFilterPresetWithID(t *testing.T) {
	_, err := parseFilterCmd([]string{"-file", "a.png", "-preset", "noir", "invert"}, nil)
	if err == nil || !strings.Contains(err.Error(), "-preset cannot be combined") {
		t.Fatalf("got %v", err)
	}
}

func TestParseNoOperandsIsUsage(t *testing.T) {
	parsers := map[string]func([]string, *root) (runnable, error){
		"filter": func(a []string, r *root) (runnable, error) { return parseFilterCmd(a, r) },
		"crop":   func(a []string, r *root) (runnable, error) { return parseCropCmd(a, r) },
		"heal":   func(a []string, r *root) (runnable, error) { return parseHealCmd(a, r) },
		"clone":  func(a []string, r *root) (runnable, error) { return parseCloneCmd(a, r) },
		"patch":  func(a []string, r *root) (runnable, error) { return parsePatchCmd(a, r) },
		"wand":   func(a []string, r *root) (runnable, error) { return parseWandCmd(a, r) },
		"draw":   func(a []string, r *root) (runnable, error) { return parseDrawCmd(a, r) },
	}
	for name, parse := range parsers {
		t.Run(name, func(t *testing.T) {
			_, err := parse([]string{"-file", "a.png"}, nil)
			var uerr *UsageError
			if !errors.As(err, &uerr) {
				t.Fatalf("got %v, want usage error", err)
			}
		})
	}
}

func TestParseValues(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    map[string]float64
		wantErr string
	}{
		{"empty", nil, map[string]float64{}, ""},
		{"pairs", []string{"radius=3", "angle=-45.5"}, map[string]float64{"radius": 3, "angle": -45.5}, ""},
		{"missing equals", []string{"radius"}, nil, "must be name=value"},
		{"bad number", []string{"radius=big"}, nil, "invalid number"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseValues(tc.args)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("err = %v, want %q", err, tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for k, v := range tc.want {
				if got[k] != v {
					t.Fatalf("%s = %v, want %v", k, got[k], v)
				}
			}
		})
	}
}

func TestParseArgsAllowsTrailingFlags(t *testing.T) {
	fs := flag.NewFlagSet("t", flag.ContinueOnError)
	file := fs.String("file", "", "")
	clip := fs.Bool("to-clip", false, "")
	rest, err := parseArgs(fs, []string{"0", "-5", "10", "-file", "a.png", "12", "-to-clip"})
	if err != nil {
		t.Fatal(err)
	}
	if *file != "a.png" || !*clip {
		t.Fatalf("flags = %q %v", *file, *clip)
	}
	if got := strings.Join(rest, " "); got != "0 -5 10 12" {
		t.Fatalf("positionals = %q", got)
	}
	if _, err := parseArgs(fs, []string{"-nope"}); err == nil {
		t.Fatalf("expected unknown flag error")
	}
	if _, err := parseArgs(fs, []string{"-file"}); err == nil {
		t.Fatalf("expected missing value error")
	}
}

func TestFilterRunWritesOutput(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.png"), filepath.Join(dir, "out.png")
	writePNG(t, in, 8, 8, white)
	var buf bytes.Buffer
	cmd, err := parseFilterCmd([]string{"invert", "-file", in, "-output", out}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(readPNG(t, out), 3, 3); got != (color.RGBA{0, 0, 0, 255}) {
		t.Fatalf("pixel = %v, want black", got)
	}
	if got := buf.String(); !strings.Contains(got, "saved "+out) {
		t.Fatalf("output = %q", got)
	}
}

func TestCropRun(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 20, 10, white)
	var buf bytes.Buffer
	cmd, err := parseCropCmd([]string{"-file", in, "2", "2", "12", "7"}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	if b := readPNG(t, in).Bounds(); b.Dx() != 10 || b.Dy() != 5 {
		t.Fatalf("size = %v, want 10x5", b)
	}
}

func TestCropOutsideImage(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, in, 4, 4, white)
	var buf bytes.Buffer
	cmd, err := parseCropCmd([]string{"-file", in, "0", "0", "10", "10"}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err == nil || !strings.Contains(err.Error(), "outside") {
		t.Fatalf("got %v, want outside error", err)
	}
}

func TestClipboardInAndOut(t *testing.T) {
	origRead, origWrite := readClipboardFn, writeClipboardFn
	t.Cleanup(func() { readClipboardFn, writeClipboardFn = origRead, origWrite })
	readClipboardFn = func() (*image.RGBA, error) {
		img := raster.New(4, 4)
		raster.Fill(img, color.RGBA{255, 0, 0, 255})
		return img, nil
	}
	var copied image.Image
	writeClipboardFn = func(img image.Image) error {
		copied = img
		return nil
	}

	var buf bytes.Buffer
	cmd, err := parseFilterCmd([]string{"-from-clip", "-to-clip", "invert"}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	if copied == nil {
		t.Fatalf("nothing copied")
	}
	if got := rgbaAt(copied, 1, 1); got != (color.RGBA{0, 255, 255, 255}) {
		t.Fatalf("pixel = %v, want cyan", got)
	}
	if !strings.Contains(buf.String(), "copied to clipboard") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestClipboardReadError(t *testing.T) {
	orig := readClipboardFn
	t.Cleanup(func() { readClipboardFn = orig })
	sentinel := errors.New("no display")
	readClipboardFn = func() (*image.RGBA, error) { return nil, sentinel }

	var buf bytes.Buffer
	cmd, err := parseFilterCmd([]string{"-from-clipboard", "-output", filepath.Join(t.TempDir(), "o.png"), "invert"}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); !errors.Is(err, sentinel) {
		t.Fatalf("got %v, want wrapped sentinel", err)
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.NRGBA
		ok   bool
	}{
		{"red", color.NRGBA{255, 0, 0, 255}, true},
		{" Blue ", color.NRGBA{0, 0, 255, 255}, true},
		{"#00ff0080", color.NRGBA{0, 255, 0, 128}, true},
		{"none", color.NRGBA{}, true},
		{"bogus", color.NRGBA{}, false},
		{"", color.NRGBA{}, false},
	}
	for _, tc := range tests {
		got, err := parseColor(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("parseColor(%q) err = %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("parseColor(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := formatColor(color.NRGBA{1, 2, 255, 16}); got != "#0102ff10" {
		t.Fatalf("formatColor = %q", got)
	}
}

func TestParseDrawErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"-file", "a.png", "blob", "1"}, "unknown draw kind"},
		{[]string{"-file", "a.png", "shape", "star", "1", "2"}, "shape requires"},
		{[]string{"-file", "a.png", "text", "1", "2"}, "text requires"},
		{[]string{"-file", "a.png", "watermark", "logo", "middle"}, "anchor"},
	}
	for _, tc := range tests {
		_, err := parseDrawCmd(tc.args, nil)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%v: got %v, want %q", tc.args, err, tc.want)
		}
	}
}

func TestDrawShapeRun(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, in, 20, 20, white)
	var buf bytes.Buffer
	cmd, err := parseDrawCmd([]string{"-file", in, "-color", "blue", "-fill", "blue", "shape", "rectangle", "2", "2", "12", "12"}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	img := readPNG(t, in)
	if got := rgbaAt(img, 8, 8); got != (color.RGBA{0, 0, 255, 255}) {
		t.Fatalf("inside = %v, want blue", got)
	}
	if got := rgbaAt(img, 18, 18); got != white {
		t.Fatalf("outside = %v, want white", got)
	}
}

func TestInteractiveExecs(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.png"), filepath.Join(dir, "out.png")
	writePNG(t, in, 6, 6, white)
	var buf bytes.Buffer
	cmd, err := parseInteractiveCmd([]string{
		"-file", in,
		"-e", "filter invert",
		"-e", "undo",
		"-e", "history",
		"-e", "save " + out,
		"-e", "exit",
		"-e", "filter invert",
	}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	if got := rgbaAt(readPNG(t, out), 2, 2); got != white {
		t.Fatalf("pixel = %v, want white after undo", got)
	}
	got := buf.String()
	for _, want := range []string{"opened " + in + " (6x6)", "filter", "saved " + out} {
		if !strings.Contains(got, want) {
			t.Fatalf("output %q missing %q", got, want)
		}
	}
}

func TestInteractiveStopsOnError(t *testing.T) {
	var buf bytes.Buffer
	cmd, err := parseInteractiveCmd([]string{"-e", "bogus"}, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err == nil || !strings.Contains(err.Error(), "unknown command: bogus") {
		t.Fatalf("got %v", err)
	}
}

func TestInteractivePrompt(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.png")
	writePNG(t, in, 3, 2, white)
	var buf bytes.Buffer
	cmd, err := parseInteractiveCmd(nil, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	cmd.in = strings.NewReader("open " + in + "\nnope\nsize\nundo\nundo\nquit\nsize\n")
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	got := buf.String()
	if !strings.Contains(got, "unknown command: nope") {
		t.Fatalf("error not reported: %q", got)
	}
	if n := strings.Count(got, "3x2\n"); n != 1 {
		t.Fatalf("size printed %d times in %q", n, got)
	}
	if !strings.Contains(got, "nothing to undo") {
		t.Fatalf("second undo should report nothing to undo: %q", got)
	}
}

func TestHealRecordsAuditTask(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.png")
	writePNG(t, in, 40, 40, white)
	var buf bytes.Buffer
	r := testRoot(&buf)
	r.auditPath = filepath.Join(dir, "audit.db")

	heal, err := parseHealCmd([]string{"-file", in, "-radius", "4", "20", "20"}, r)
	if err != nil {
		t.Fatal(err)
	}
	if err := heal.Run(); err != nil {
		t.Fatal(err)
	}
	buf.Reset()
	count, err := parseAuditCmd([]string{"count"}, r)
	if err != nil {
		t.Fatal(err)
	}
	if err := count.Run(); err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(buf.String()); got != "1" {
		t.Fatalf("count = %q, want 1", got)
	}
}

func TestAuditRequiresStore(t *testing.T) {
	var buf bytes.Buffer
	cmd, err := parseAuditCmd(nil, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err == nil || !strings.Contains(err.Error(), "no audit store") {
		t.Fatalf("got %v", err)
	}
}

func TestServeAIHealth(t *testing.T) {
	var buf bytes.Buffer
	c, err := parseServeAICmd(nil, testRoot(&buf))
	if err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(c.handler())
	t.Cleanup(srv.Close)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestVersion(t *testing.T) {
	var buf bytes.Buffer
	if err := (&versionCmd{r: testRoot(&buf)}).Run(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "retoucher version dev\n" {
		t.Fatalf("output = %q", got)
	}
}

func TestConfigPrint(t *testing.T) {
	var buf bytes.Buffer
	r := testRoot(&buf)
	cmd, err := parseConfigCmd([]string{"print"}, r)
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != r.config.String() {
		t.Fatalf("output = %q", got)
	}
}

func TestConfigSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.rc")
	var buf bytes.Buffer
	r := testRoot(&buf)
	cmd, err := parseConfigCmd([]string{"-path", path, "save"}, r)
	if err != nil {
		t.Fatal(err)
	}
	if err := cmd.Run(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != r.config.String() {
		t.Fatalf("saved %q", data)
	}
}

func TestHelpTemplatesRender(t *testing.T) {
	r := &root{program: "retoucher", fs: flag.NewFlagSet("retoucher", flag.ContinueOnError)}
	r.fs.String("theme", "", "color theme")
	fs := func(name string) *flag.FlagSet {
		f := flag.NewFlagSet(name, flag.ContinueOnError)
		f.String("file", "", "input image file")
		return f
	}
	helps := []HelpData{
		r,
		&filterCmd{root: r, fs: fs("filter")},
		&filtersCmd{root: r, fs: fs("filters")},
		&presetsCmd{root: r, fs: fs("presets")},
		&cropCmd{root: r, fs: fs("crop")},
		&healCmd{root: r, fs: fs("heal")},
		&cloneCmd{root: r, fs: fs("clone")},
		&patchCmd{root: r, fs: fs("patch")},
		&wandCmd{root: r, fs: fs("wand")},
		&drawCmd{root: r, fs: fs("draw")},
		&removeBgCmd{root: r, fs: fs("remove-bg")},
		&removeObjectCmd{root: r, fs: fs("remove-object")},
		&serveAICmd{root: r, fs: fs("serve-ai")},
		&editCmd{root: r, fs: fs("edit")},
		&interactiveCmd{root: r, fs: fs("interactive")},
		&auditCmd{root: r, fs: fs("audit")},
		&configCmd{root: r, fs: fs("config")},
	}
	for _, h := range helps {
		t.Run(h.Template(), func(t *testing.T) {
			got, err := (&UsageError{of: h}).renderHelp()
			if err != nil {
				t.Fatal(err)
			}
			if !strings.HasPrefix(got, "Usage: retoucher") {
				t.Fatalf("help = %q", got)
			}
			if !strings.Contains(got, "Flags:") {
				t.Fatalf("help lacks flags: %q", got)
			}
		})
	}
}

func TestHelpWithoutFlagSet(t *testing.T) {
	got := (&UsageError{of: &root{}}).Error()
	if !strings.Contains(got, "Usage: retoucher") {
		t.Fatalf("help = %q", got)
	}
}
