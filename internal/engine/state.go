package engine

import (
	"fmt"
	"image/color"

	"golang.org/x/mobile/event/key"

	"github.com/example/retoucher/internal/authoring"
	"github.com/example/retoucher/internal/retouch"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
)

// Tool identifies the pointer tool that receives input.
type Tool string

const (
	ToolSelect        Tool = "select"
	ToolRectSelect    Tool = "rect-select"
	ToolCircleSelect  Tool = "circle-select"
	ToolLasso         Tool = "lasso"
	ToolPolygonSelect Tool = "polygon-select"
	ToolMagicWand     Tool = "magic-wand"
	ToolBrush         Tool = "brush"
	ToolText          Tool = "text"
	ToolShape         Tool = "shape"
	ToolSpotHeal      Tool = "spot-heal"
	ToolCloneStamp    Tool = "clone-stamp"
	ToolPatch         Tool = "patch"
)

var tools = []Tool{
	ToolSelect, ToolRectSelect, ToolCircleSelect, ToolLasso, ToolPolygonSelect, ToolMagicWand,
	ToolBrush, ToolText, ToolShape, ToolSpotHeal, ToolCloneStamp, ToolPatch,
}

// Tools lists every tool in toolbar order.
func Tools() []Tool { return append([]Tool(nil), tools...) }

// ParseTool resolves a tool name.
func ParseTool(s string) (Tool, error) {
	for _, t := range tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTool, s)
}

// Modifiers are the keyboard modifiers held during pointer input.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
)

func modifiersOf(m key.Modifiers) Modifiers {
	var out Modifiers
	if m&key.ModShift != 0 {
		out |= ModShift
	}
	if m&key.ModControl != 0 {
		out |= ModControl
	}
	if m&key.ModAlt != 0 {
		out |= ModAlt
	}
	if m&key.ModMeta != 0 {
		out |= ModMeta
	}
	return out
}

// EditingState is the session state shared by the tools. Selection is a
// copy of the live selection; setting it has no effect.
type EditingState struct {
	Tool         Tool
	Selection    selection.Area
	Brush        scene.StrokeSettings
	Retouch      retouch.BrushSettings
	HealStrength float64
	Tolerance    float64
	Shape        string
	ShapeOptions authoring.ShapeOptions
	ShapeStyle   scene.ShapeStyle
	Text         scene.TextStyle
	Zoom         float64
	PanX, PanY   float64
	Preview      bool
}

// DefaultState is the state a new session starts with.
func DefaultState() EditingState {
	return EditingState{
		Tool:         ToolSelect,
		Brush:        scene.StrokeSettings{Color: color.NRGBA{R: 220, G: 30, B: 30, A: 255}, Width: 4, Opacity: 1, Blend: scene.BlendNormal},
		Retouch:      retouch.DefaultBrush(),
		HealStrength: 1,
		Tolerance:    32,
		Shape:        "rectangle",
		ShapeOptions: authoring.ShapeOptions{Sides: 6, Points: 5, InnerRatio: 0.5, Corner: 8},
		ShapeStyle: scene.ShapeStyle{
			Fill:        color.NRGBA{R: 0, G: 120, B: 215, A: 160},
			Stroke:      color.NRGBA{R: 0, G: 60, B: 120, A: 255},
			StrokeWidth: 2,
			Opacity:     1,
		},
		Text: scene.TextStyle{Font: "sans", Size: scene.DefaultTextSize, Color: color.NRGBA{A: 255}},
		Zoom: 1,
	}
}
