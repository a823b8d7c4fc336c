package theme

import (
	"image"
	"image/color"
	"reflect"

	"github.com/example/retoucher/internal/scene"
)

// Theme defines the colours of the editing overlay and the editor window.
type Theme struct {
	Name string

	// Overlay
	SelectionStroke color.RGBA // marching-ants line
	SelectionDash   color.RGBA // alternate dash colour
	HandleFill      color.RGBA // transformer handles
	HandleStroke    color.RGBA
	TransformerLine color.RGBA // box around the selected node

	// Canvas
	CanvasBackground color.RGBA // behind the image in the editor window
	CheckerLight     color.RGBA // transparent pixels
	CheckerDark      color.RGBA

	// Window
	Background        color.RGBA
	Foreground        color.RGBA
	ToolbarBackground color.RGBA
	ButtonBackground  color.RGBA
	ButtonActive      color.RGBA
	ButtonText        color.RGBA
}

// Default returns the hardcoded default light theme (fallback).
func Default() *Theme {
	return &Theme{
		Name:              "Default",
		SelectionStroke:   color.RGBA{0, 0, 0, 255},
		SelectionDash:     color.RGBA{255, 255, 255, 255},
		HandleFill:        color.RGBA{255, 255, 255, 255},
		HandleStroke:      color.RGBA{0, 120, 215, 255},
		TransformerLine:   color.RGBA{0, 120, 215, 255},
		CanvasBackground:  color.RGBA{200, 200, 200, 255},
		CheckerLight:      color.RGBA{220, 220, 220, 255},
		CheckerDark:       color.RGBA{192, 192, 192, 255},
		Background:        color.RGBA{220, 220, 220, 255},
		Foreground:        color.RGBA{0, 0, 0, 255},
		ToolbarBackground: color.RGBA{220, 220, 220, 255},
		ButtonBackground:  color.RGBA{200, 200, 200, 255},
		ButtonActive:      color.RGBA{150, 150, 150, 255},
		ButtonText:        color.RGBA{0, 0, 0, 255},
	}
}

// Overlay converts the overlay colours for the renderer.
func (t *Theme) Overlay() scene.OverlayStyle {
	return scene.OverlayStyle{
		SelectionStroke: t.SelectionStroke,
		SelectionDash:   t.SelectionDash,
		HandleFill:      t.HandleFill,
		HandleStroke:    t.HandleStroke,
		TransformerLine: t.TransformerLine,
	}
}

// Checker paints a checkerboard of size-pixel squares into dst.
func (t *Theme) Checker(dst *image.RGBA, size int) {
	if size <= 0 {
		size = 8
	}
	b := dst.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := t.CheckerLight
			if ((x-b.Min.X)/size+(y-b.Min.Y)/size)%2 == 1 {
				c = t.CheckerDark
			}
			dst.SetRGBA(x, y, c)
		}
	}
}

// ColorFields lists the names of every colour field in declaration order.
func ColorFields() []string {
	typ := reflect.TypeOf(Theme{})
	var out []string
	for i := 0; i < typ.NumField(); i++ {
		if typ.Field(i).Type == reflect.TypeOf(color.RGBA{}) {
			out = append(out, typ.Field(i).Name)
		}
	}
	return out
}

// Color returns the colour field called name.
func (t *Theme) Color(name string) (color.RGBA, bool) {
	f := reflect.ValueOf(t).Elem().FieldByName(name)
	if !f.IsValid() || f.Type() != reflect.TypeOf(color.RGBA{}) {
		return color.RGBA{}, false
	}
	return f.Interface().(color.RGBA), true
}
