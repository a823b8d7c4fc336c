package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	input := `
theme = my_custom_theme
save_dir = /tmp/edits
history_limit = 20

[export]
format = webp
quality = 75

[brush]
max_points = 512
tolerance = 1.5

[ai]
endpoint = http://127.0.0.1:8089
timeout = 5s

[audit]
path = /tmp/audit.db

[notify]
background_removed = false
export = true

[theme.my_custom_theme]
CanvasBackground = #111111
HandleFill = #FFFFFF
`
	r := strings.NewReader(input)
	cfg, err := Parse(r)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if cfg.Theme != "my_custom_theme" {
		t.Errorf("Expected theme 'my_custom_theme', got '%s'", cfg.Theme)
	}
	if cfg.SaveDir != "/tmp/edits" {
		t.Errorf("Expected save_dir '/tmp/edits', got '%s'", cfg.SaveDir)
	}
	if cfg.HistoryLimit != 20 {
		t.Errorf("history_limit = %d", cfg.HistoryLimit)
	}
	if cfg.Export.Format != "webp" || cfg.Export.Quality != 75 {
		t.Errorf("export = %+v", cfg.Export)
	}
	if cfg.Brush.MaxPoints != 512 || cfg.Brush.Tolerance != 1.5 || cfg.Brush.Radius != 12 {
		t.Errorf("brush = %+v", cfg.Brush)
	}
	if cfg.AI.Endpoint != "http://127.0.0.1:8089" || cfg.AI.Timeout != 5*time.Second {
		t.Errorf("ai = %+v", cfg.AI)
	}
	if cfg.Audit.Path != "/tmp/audit.db" {
		t.Errorf("audit = %+v", cfg.Audit)
	}
	if cfg.Notify.BackgroundRemoved || !cfg.Notify.ObjectRemoved || !cfg.Notify.Export {
		t.Errorf("notify = %+v", cfg.Notify)
	}

	theme, ok := cfg.Themes["my_custom_theme"]
	if !ok {
		t.Fatal("Expected theme 'my_custom_theme' to be loaded")
	}
	if theme.CanvasBackground.R != 0x11 || theme.CanvasBackground.G != 0x11 || theme.CanvasBackground.B != 0x11 {
		t.Errorf("Unexpected CanvasBackground color: %+v", theme.CanvasBackground)
	}
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"format":  "[export]\nformat = tiff\n",
		"quality": "[export]\nquality = 0\n",
		"limit":   "history_limit = -1\n",
		"timeout": "[ai]\ntimeout = soon\n",
		"bool":    "[notify]\nexport = maybe\n",
		"color":   "[theme.x]\nHandleFill = blue\n",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(in)); err == nil {
				t.Fatalf("expected error for %q", in)
			}
		})
	}
}

func TestCircular(t *testing.T) {
	input := `theme = dark
save_dir = /home/user/edits
presets = /etc/retoucher/presets.yaml

[export]
format = jpg
quality = 80

[ai]
endpoint = http://ai.local
timeout = 45s

[audit]
path = /var/lib/retoucher/audit.db

[notify]
background_removed = true
object_removed = false
export = true

[theme.custom]
Name = custom
CanvasBackground = #000000
SelectionStroke = #FF00FF80
`
	// 1. Parse initial input
	cfg, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Initial parse failed: %v", err)
	}

	// 2. Generate string representation
	generated := cfg.String()

	// 3. Parse generated string
	cfg2, err := Parse(strings.NewReader(generated))
	if err != nil {
		t.Fatalf("Circular parse failed: %v", err)
	}

	// 4. Compare relevant fields
	if cfg.Theme != cfg2.Theme || cfg.SaveDir != cfg2.SaveDir || cfg.Presets != cfg2.Presets {
		t.Errorf("root mismatch: %+v vs %+v", cfg, cfg2)
	}
	if cfg.Export != cfg2.Export || cfg.Brush != cfg2.Brush || cfg.AI != cfg2.AI || cfg.Audit != cfg2.Audit {
		t.Errorf("section mismatch:\n%s", generated)
	}
	if cfg.Notify != cfg2.Notify {
		t.Errorf("Notify mismatch: %+v vs %+v", cfg.Notify, cfg2.Notify)
	}

	// Check theme persistence
	t1 := cfg.Themes["custom"]
	t2 := cfg2.Themes["custom"]
	if t1 == nil || t2 == nil {
		t.Fatalf("Custom theme missing in one config")
	}
	if *t1 != *t2 {
		t.Errorf("Theme mismatch: %+v vs %+v", t1, t2)
	}
}

func TestLoaderPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv(EnvPath, "")
	wd := t.TempDir()
	old, _ := os.Getwd()
	if err := os.Chdir(wd); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	if cfg, err := NewLoader("dev", "").Load(); err != nil || cfg.HistoryLimit != 50 {
		t.Fatalf("defaults: %+v %v", cfg, err)
	}

	xdg := DefaultPath()
	c := New()
	c.HistoryLimit = 7
	if err := Save(xdg, c); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if cfg, _ := NewLoader("v1", "").Load(); cfg.HistoryLimit != 7 {
		t.Fatalf("xdg config not used: %d", cfg.HistoryLimit)
	}

	local := filepath.Join(wd, ".retoucherrc")
	os.WriteFile(local, []byte("history_limit = 9\n"), 0o644)
	if cfg, _ := NewLoader("dev", "").Load(); cfg.HistoryLimit != 9 {
		t.Fatalf("dev rc not used: %d", cfg.HistoryLimit)
	}
	if cfg, _ := NewLoader("v1", "").Load(); cfg.HistoryLimit != 7 {
		t.Fatalf("release build read the dev rc")
	}

	override := filepath.Join(wd, "override.rc")
	os.WriteFile(override, []byte("history_limit = 3\n"), 0o644)
	if cfg, _ := NewLoader("dev", override).Load(); cfg.HistoryLimit != 3 {
		t.Fatalf("override not used: %d", cfg.HistoryLimit)
	}
}

func TestLoaderEnvAndXDG(t *testing.T) {
	xdg := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", xdg)
	t.Setenv(EnvPath, "")
	if got, want := DefaultPath(), filepath.Join(xdg, "retoucher", "config.rc"); got != want {
		t.Fatalf("DefaultPath = %q, want %q", got, want)
	}
	c := New()
	c.HistoryLimit = 11
	if err := Save(DefaultPath(), c); err != nil {
		t.Fatal(err)
	}
	env := filepath.Join(t.TempDir(), "env.rc")
	os.WriteFile(env, []byte("history_limit = 4\n"), 0o644)
	t.Setenv(EnvPath, env)
	if cfg, _ := NewLoader("v1", "").Load(); cfg.HistoryLimit != 4 {
		t.Fatalf("env config not used: %d", cfg.HistoryLimit)
	}
	t.Setenv(EnvPath, filepath.Join(t.TempDir(), "missing.rc"))
	if cfg, _ := NewLoader("v1", "").Load(); cfg.HistoryLimit != 11 {
		t.Fatalf("missing env file should fall through: %d", cfg.HistoryLimit)
	}
}
