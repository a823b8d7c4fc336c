package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/example/retoucher/internal/theme"
)

// Parse reads configuration from an io.Reader.
func Parse(r io.Reader) (*Config, error) {
	cfg := New()
	scanner := bufio.NewScanner(r)

	// Context for parsing
	var currentSection string
	var currentTheme *theme.Theme

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}

		// Handle Sections
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			currentSection = strings.TrimSuffix(strings.TrimPrefix(line, "["), "]")
			currentTheme = nil

			if strings.HasPrefix(currentSection, "theme.") {
				themeName := strings.TrimPrefix(currentSection, "theme.")
				// Start with defaults so missing keys are fine
				currentTheme = theme.Default()
				currentTheme.Name = themeName
				cfg.Themes[themeName] = currentTheme
			}
			continue
		}

		// Parse Key = Value or Key: Value
		var parts []string
		if strings.Contains(line, "=") {
			parts = strings.SplitN(line, "=", 2)
		} else if strings.Contains(line, ":") {
			parts = strings.SplitN(line, ":", 2)
		} else {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		// Remove quotes if present
		if strings.HasPrefix(value, "\"") && strings.HasSuffix(value, "\"") {
			value = value[1 : len(value)-1]
		}

		var err error
		switch {
		case currentTheme != nil:
			err = currentTheme.Set(key, value)
		case currentSection == "":
			err = setRootField(cfg, key, value)
		case currentSection == "export":
			err = setExportField(&cfg.Export, key, value)
		case currentSection == "brush":
			err = setBrushField(&cfg.Brush, key, value)
		case currentSection == "ai":
			err = setAIField(&cfg.AI, key, value)
		case currentSection == "audit":
			if strings.EqualFold(key, "path") {
				cfg.Audit.Path = value
			}
		case currentSection == "notify":
			err = setNotifyField(&cfg.Notify, key, value)
		}
		if err != nil {
			if currentSection == "" {
				return nil, fmt.Errorf("error in root section: %w", err)
			}
			return nil, fmt.Errorf("error in section [%s]: %w", currentSection, err)
		}
	}

	return cfg, scanner.Err()
}

func setRootField(cfg *Config, key, value string) error {
	switch strings.ToLower(key) {
	case "theme":
		cfg.Theme = value
	case "save_dir":
		cfg.SaveDir = value
	case "presets":
		cfg.Presets = value
	case "history_limit":
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid history_limit %q", value)
		}
		cfg.HistoryLimit = n
	}
	return nil
}

func setExportField(e *Export, key, value string) error {
	switch strings.ToLower(key) {
	case "format":
		switch strings.ToLower(value) {
		case "png", "jpg", "jpeg", "webp":
			e.Format = strings.ToLower(value)
		default:
			return fmt.Errorf("unsupported export format %q", value)
		}
	case "quality":
		q, err := strconv.Atoi(value)
		if err != nil || q < 1 || q > 100 {
			return fmt.Errorf("quality must be 1-100, got %q", value)
		}
		e.Quality = q
	}
	return nil
}

func setBrushField(b *Brush, key, value string) error {
	k := strings.ToLower(key)
	if k == "max_points" {
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return fmt.Errorf("invalid max_points %q", value)
		}
		b.MaxPoints = n
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid number for key %s: %w", key, err)
	}
	switch k {
	case "tolerance":
		b.Tolerance = f
	case "radius":
		b.Radius = f
	case "hardness":
		b.Hardness = f
	case "opacity":
		b.Opacity = f
	}
	return nil
}

func setAIField(a *AI, key, value string) error {
	switch strings.ToLower(key) {
	case "endpoint":
		a.Endpoint = value
	case "timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		a.Timeout = d
	}
	return nil
}

func setNotifyField(n *Notify, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid boolean for key %s: %w", key, err)
	}
	switch strings.ToLower(key) {
	case "background_removed":
		n.BackgroundRemoved = b
	case "object_removed":
		n.ObjectRemoved = b
	case "export":
		n.Export = b
	}
	return nil
}
