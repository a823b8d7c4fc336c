package theme

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedThemesParse(t *testing.T) {
	names := Embedded()
	if len(names) != 3 {
		t.Fatalf("embedded = %v", names)
	}
	l := &Loader{}
	for _, n := range names {
		th, err := l.Load(n)
		if err != nil {
			t.Fatalf("Load(%q): %v", n, err)
		}
		if th.Name == "" {
			t.Errorf("%s: empty name", n)
		}
	}
	dark, _ := l.Load("dark")
	if dark.CanvasBackground != (color.RGBA{0x1E, 0x1E, 0x1E, 255}) {
		t.Errorf("dark canvas = %v", dark.CanvasBackground)
	}
}

func TestLoadOrder(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "mine.theme"), []byte("Name: Mine\nHandleFill: #102030\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	l := &Loader{ConfigDir: dir, Custom: map[string]*Theme{"dark": {Name: "Shadowed"}}}
	th, err := l.Load("mine")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if th.HandleFill != (color.RGBA{0x10, 0x20, 0x30, 255}) {
		t.Errorf("HandleFill = %v", th.HandleFill)
	}
	// config themes win over embedded ones
	th, _ = l.Load("dark")
	if th.Name != "Shadowed" {
		t.Errorf("name = %q", th.Name)
	}
	if _, err := l.Load("nope"); err == nil {
		t.Errorf("missing theme loaded")
	}
}

func TestParseRejectsBadColor(t *testing.T) {
	if _, err := Parse(strings.NewReader("HandleFill: red\n")); err == nil {
		t.Fatal("expected error")
	}
	th, err := Parse(strings.NewReader("selectionstroke: #11223344\nUnknown: #000000\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if th.SelectionStroke != (color.RGBA{0x11, 0x22, 0x33, 0x44}) {
		t.Errorf("SelectionStroke = %v", th.SelectionStroke)
	}
	if got := Hex(th.SelectionStroke); got != "#11223344" {
		t.Errorf("Hex = %s", got)
	}
}

func TestParseColorForms(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#fff", color.RGBA{255, 255, 255, 255}},
		{"#0078D7", color.RGBA{0, 0x78, 0xd7, 255}},
		{" #01020304 ", color.RGBA{1, 2, 3, 4}},
	}
	for _, tc := range tests {
		got, err := ParseColor(tc.in)
		if err != nil || got != tc.want {
			t.Fatalf("ParseColor(%q) = %v, %v, want %v", tc.in, got, err, tc.want)
		}
	}
	for _, bad := range []string{"fff", "#ff", "#gggggg"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("ParseColor(%q) accepted", bad)
		}
	}
}

func TestParseReportsLine(t *testing.T) {
	_, err := Parse(strings.NewReader("# comment\nHandleFill = #fff\nHandleStroke: nope\n"))
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Fatalf("err = %v, want line 3", err)
	}
}

func TestChecker(t *testing.T) {
	th := Default()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	th.Checker(img, 8)
	if img.RGBAAt(0, 0) != th.CheckerLight || img.RGBAAt(8, 0) != th.CheckerDark || img.RGBAAt(8, 8) != th.CheckerLight {
		t.Fatal("checker pattern wrong")
	}
}

func TestOverlayAndFields(t *testing.T) {
	th := Default()
	ov := th.Overlay()
	if ov.HandleStroke != th.HandleStroke {
		t.Errorf("handle stroke not carried")
	}
	fields := ColorFields()
	if len(fields) != 14 || fields[0] != "SelectionStroke" {
		t.Errorf("fields = %v", fields)
	}
	if c, ok := th.Color("CheckerDark"); !ok || c != th.CheckerDark {
		t.Errorf("Color(CheckerDark) = %v %v", c, ok)
	}
}
