package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/example/retoucher/internal/theme"
)

// Export holds the default export settings.
type Export struct {
	Format  string
	Quality int
}

// Brush holds the default brush and stroke limits.
type Brush struct {
	MaxPoints int
	Tolerance float64
	Radius    float64
	Hardness  float64
	Opacity   float64
}

// AI configures the image AI service. An empty endpoint selects the
// in-process implementation.
type AI struct {
	Endpoint string
	Timeout  time.Duration
}

// Audit configures the retouch audit log. An empty path disables it.
type Audit struct {
	Path string
}

// Notify holds notification settings.
type Notify struct {
	BackgroundRemoved bool
	ObjectRemoved     bool
	Export            bool
}

// Config holds the application configuration.
type Config struct {
	Theme        string
	SaveDir      string
	HistoryLimit int
	Presets      string
	Export       Export
	Brush        Brush
	AI           AI
	Audit        Audit
	Notify       Notify
	Themes       map[string]*theme.Theme
}

// New creates a new Config with defaults.
func New() *Config {
	return &Config{
		Theme:        "", // Default to empty to allow fallback to Env/Default
		HistoryLimit: 50,
		Export:       Export{Format: "png", Quality: 90},
		Brush: Brush{
			MaxPoints: 2048,
			Tolerance: 2,
			Radius:    12,
			Hardness:  0.5,
			Opacity:   1,
		},
		AI: AI{Timeout: 30 * time.Second},
		Notify: Notify{
			BackgroundRemoved: true,
			ObjectRemoved:     true,
			Export:            false,
		},
		Themes: make(map[string]*theme.Theme),
	}
}

// String implements fmt.Stringer and returns the configuration in RC format.
func (c *Config) String() string {
	var sb strings.Builder

	// Root section
	if c.Theme != "" {
		fmt.Fprintf(&sb, "theme = %s\n", c.Theme)
	}
	if c.SaveDir != "" {
		fmt.Fprintf(&sb, "save_dir = %s\n", c.SaveDir)
	}
	fmt.Fprintf(&sb, "history_limit = %d\n", c.HistoryLimit)
	if c.Presets != "" {
		fmt.Fprintf(&sb, "presets = %s\n", c.Presets)
	}
	sb.WriteString("\n")

	sb.WriteString("[export]\n")
	fmt.Fprintf(&sb, "format = %s\n", c.Export.Format)
	fmt.Fprintf(&sb, "quality = %d\n", c.Export.Quality)
	sb.WriteString("\n")

	sb.WriteString("[brush]\n")
	fmt.Fprintf(&sb, "max_points = %d\n", c.Brush.MaxPoints)
	fmt.Fprintf(&sb, "tolerance = %g\n", c.Brush.Tolerance)
	fmt.Fprintf(&sb, "radius = %g\n", c.Brush.Radius)
	fmt.Fprintf(&sb, "hardness = %g\n", c.Brush.Hardness)
	fmt.Fprintf(&sb, "opacity = %g\n", c.Brush.Opacity)
	sb.WriteString("\n")

	sb.WriteString("[ai]\n")
	if c.AI.Endpoint != "" {
		fmt.Fprintf(&sb, "endpoint = %s\n", c.AI.Endpoint)
	}
	fmt.Fprintf(&sb, "timeout = %s\n", c.AI.Timeout)
	sb.WriteString("\n")

	if c.Audit.Path != "" {
		sb.WriteString("[audit]\n")
		fmt.Fprintf(&sb, "path = %s\n", c.Audit.Path)
		sb.WriteString("\n")
	}

	// Notify section
	sb.WriteString("[notify]\n")
	fmt.Fprintf(&sb, "background_removed = %v\n", c.Notify.BackgroundRemoved)
	fmt.Fprintf(&sb, "object_removed = %v\n", c.Notify.ObjectRemoved)
	fmt.Fprintf(&sb, "export = %v\n", c.Notify.Export)
	sb.WriteString("\n")

	// Themes sections
	// Sort keys for deterministic output
	var themeNames []string
	for name := range c.Themes {
		themeNames = append(themeNames, name)
	}
	sort.Strings(themeNames)

	for _, name := range themeNames {
		t := c.Themes[name]
		fmt.Fprintf(&sb, "[theme.%s]\n", name)
		fmt.Fprintf(&sb, "Name: %s\n", t.Name)
		for _, f := range theme.ColorFields() {
			col, _ := t.Color(f)
			fmt.Fprintf(&sb, "%s: %s\n", f, theme.Hex(col))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
