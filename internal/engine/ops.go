package engine

import (
	"bytes"
	"fmt"
	"image"
	"io"

	"github.com/example/retoucher/internal/authoring"
	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/filter"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/scene"
	"github.com/example/retoucher/internal/selection"
)

// LoadImage decodes r and installs it as the base image, resizing the
// canvas to fit. Decode failures publish ImageLoaded with Err set and leave
// the scene unchanged.
func (e *Engine) LoadImage(r io.Reader) error {
	img, format, err := raster.Decode(r)
	if err != nil {
		err = fmt.Errorf("load image: %w", err)
		e.bus.Publish(events.ImageLoaded{Err: err})
		return err
	}
	return e.setImage("load-image", "Load "+format+" image", img)
}

// SetImage installs a copy of img as the base image.
func (e *Engine) SetImage(img image.Image) error {
	rgba := raster.ToRGBA(img)
	if rgba == nil || rgba.Bounds().Empty() {
		err := fmt.Errorf("set image: %w", ErrNoImage)
		e.bus.Publish(events.ImageLoaded{Err: err})
		return err
	}
	if rgba == img {
		rgba = raster.Clone(rgba)
	}
	return e.setImage("set-image", "Set image", rgba)
}

func (e *Engine) setImage(kind, desc string, img *image.RGBA) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	b := img.Bounds()
	err := e.perform(kind, desc, func() error {
		e.renderer.Resize(b.Dx(), b.Dy())
		_, err := e.renderer.SetBaseImage(img)
		return err
	})
	e.emit(events.ImageLoaded{Width: b.Dx(), Height: b.Dy(), Err: err})
	return err
}

// replaceBase swaps the base image for out as one action. e.mu must be held.
func (e *Engine) replaceBase(kind, desc string, out *image.RGBA) error {
	return e.perform(kind, desc, func() error {
		_, err := e.renderer.SetBaseImage(out)
		return err
	})
}

// base returns a copy of the base image. e.mu must be held.
func (e *Engine) base() (*image.RGBA, error) {
	img := e.renderer.BaseImage()
	if img == nil {
		return nil, ErrNoImage
	}
	return img, nil
}

// ApplyFilter runs a registered filter over the base image.
func (e *Engine) ApplyFilter(id string, v filter.Values) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	img, err := e.base()
	if err != nil {
		return err
	}
	out, err := e.filters.Apply(id, img, v)
	if err != nil {
		return err
	}
	f, _ := e.filters.Get(id)
	if err := e.replaceBase("filter", "Apply "+f.Name, out); err != nil {
		return err
	}
	e.emit(events.FilterApplied{Filter: id})
	return nil
}

// ApplyPreset runs a named preset over the base image.
func (e *Engine) ApplyPreset(name string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	img, err := e.base()
	if err != nil {
		return err
	}
	p, ok := e.filters.Preset(name)
	if !ok {
		return fmt.Errorf("%w: %q", filter.ErrUnknownPreset, name)
	}
	out, err := e.filters.ApplyPreset(name, img)
	if err != nil {
		return err
	}
	if err := e.replaceBase("preset", "Apply preset "+p.Name, out); err != nil {
		return err
	}
	e.emit(events.FilterApplied{Filter: p.FilterID})
	return nil
}

// LoadPresets adds the presets of a YAML bundle.
func (e *Engine) LoadPresets(r io.Reader) (int, error) {
	return e.filters.LoadPresets(r)
}

// Crop cuts the canvas to rect. An empty rect crops to the bounds of the
// active selection. Overlay nodes keep their canvas position relative to
// the image.
func (e *Engine) Crop(rect image.Rectangle) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	img, err := e.base()
	if err != nil {
		return err
	}
	if rect.Empty() {
		a, ok := e.sel.Active()
		if !ok {
			return ErrNoSelection
		}
		rect = a.Bounds().Intersect(img.Bounds())
	}
	out, err := raster.Crop(img, rect)
	if err != nil {
		return err
	}
	err = e.perform("crop", fmt.Sprintf("Crop to %dx%d", rect.Dx(), rect.Dy()), func() error {
		e.renderer.Resize(rect.Dx(), rect.Dy())
		if _, err := e.renderer.SetBaseImage(out); err != nil {
			return err
		}
		e.renderer.Shift(-float64(rect.Min.X), -float64(rect.Min.Y))
		return nil
	})
	if err == nil {
		e.clearSelection()
	}
	return err
}

// SpotHeal repairs a circular blemish at (x, y).
func (e *Engine) SpotHeal(x, y, radius, strength float64) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	return e.spotHeal(x, y, radius, strength)
}

func (e *Engine) spotHeal(x, y, radius, strength float64) error {
	img, err := e.base()
	if err != nil {
		return err
	}
	out, err := e.retouch.SpotHeal(img, x, y, radius, strength)
	if err != nil {
		return err
	}
	return e.replaceBase("spot-heal", fmt.Sprintf("Spot heal at %.0f,%.0f", x, y), out)
}

// SetCloneSource picks the point clone strokes copy from. It changes no
// pixels and is not recorded in the history.
func (e *Engine) SetCloneSource(x, y int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	if _, err := e.base(); err != nil {
		return err
	}
	e.retouch.SetCloneSource(x, y)
	return nil
}

// CloneStamp stamps a whole stroke through pts as one action. Without a
// clone source it does nothing and reports false.
func (e *Engine) CloneStamp(pts []image.Point) (bool, error) {
	if err := e.lock(); err != nil {
		return false, err
	}
	defer e.unlock()
	img, err := e.base()
	if err != nil {
		return false, err
	}
	if _, ok := e.retouch.CloneSource(); !ok || len(pts) == 0 {
		return false, nil
	}
	e.handler.cancel(e)
	before, err := e.renderer.Snapshot()
	if err != nil {
		return false, err
	}
	stamped := false
	for _, p := range pts {
		if out, ok := e.retouch.CloneStamp(img, p.X, p.Y); ok {
			img, stamped = out, true
		}
	}
	e.retouch.EndStroke()
	if !stamped {
		return false, nil
	}
	if _, err := e.renderer.SetBaseImage(img); err != nil {
		e.rollback("clone-stamp", before, len(e.pending))
		return false, err
	}
	return true, e.record("clone-stamp", "Clone stamp", before)
}

// Patch lifts the pixels under area and blends them at (dx, dy). A zero
// area uses the active selection.
func (e *Engine) Patch(area selection.Area, dx, dy int) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	return e.patch(area, dx, dy)
}

func (e *Engine) patch(area selection.Area, dx, dy int) error {
	img, err := e.base()
	if err != nil {
		return err
	}
	if area.IsZero() {
		a, ok := e.sel.Active()
		if !ok {
			return ErrNoSelection
		}
		area = a
	}
	out, err := e.retouch.Patch(img, area, dx, dy)
	if err != nil {
		return err
	}
	return e.replaceBase("patch", fmt.Sprintf("Patch by %d,%d", dx, dy), out)
}

// AddText places a text node with its top-left corner at (x, y).
func (e *Engine) AddText(content string, x, y float64, st scene.TextStyle) (scene.Handle, error) {
	if err := e.lock(); err != nil {
		return scene.Handle{}, err
	}
	defer e.unlock()
	return e.addText(content, x, y, st)
}

func (e *Engine) addText(content string, x, y float64, st scene.TextStyle) (scene.Handle, error) {
	var h scene.Handle
	err := e.perform("add-text", "Add text", func() error {
		var err error
		h, err = e.text.AddText(content, x, y, st)
		return err
	})
	return h, err
}

// EditText replaces the content of a text node.
func (e *Engine) EditText(h scene.Handle, content string) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	if _, err := e.text.BeginEdit(h); err != nil {
		return err
	}
	return e.commitText(content)
}

func (e *Engine) commitText(content string) error {
	return e.perform("edit-text", "Edit text", func() error { return e.text.CommitEdit(content) })
}

// AddShape adds a vector shape filling t.
func (e *Engine) AddShape(typ string, t scene.Transform, o authoring.ShapeOptions, st scene.ShapeStyle) (scene.Handle, error) {
	if err := e.lock(); err != nil {
		return scene.Handle{}, err
	}
	defer e.unlock()
	return e.addShape(typ, t, o, st)
}

func (e *Engine) addShape(typ string, t scene.Transform, o authoring.ShapeOptions, st scene.ShapeStyle) (scene.Handle, error) {
	var h scene.Handle
	err := e.perform("add-shape", "Add "+typ, func() error {
		var err error
		h, err = authoring.AddShape(e.renderer, typ, t, o, st)
		return err
	})
	return h, err
}

// AddSticker centres asset id on (x, y).
func (e *Engine) AddSticker(id string, x, y, scale, opacity float64) (scene.Handle, error) {
	if err := e.lock(); err != nil {
		return scene.Handle{}, err
	}
	defer e.unlock()
	var h scene.Handle
	err := e.perform("add-sticker", "Add sticker "+id, func() error {
		var err error
		h, err = e.placer.PlaceSticker(id, x, y, scale, opacity)
		return err
	})
	return h, err
}

// AddWatermark pins asset id to a canvas anchor.
func (e *Engine) AddWatermark(id string, anchor authoring.Anchor, margin, scale, opacity float64) (scene.Handle, error) {
	if err := e.lock(); err != nil {
		return scene.Handle{}, err
	}
	defer e.unlock()
	var h scene.Handle
	err := e.perform("add-watermark", "Add watermark "+id, func() error {
		var err error
		h, err = e.placer.PlaceWatermark(id, anchor, margin, scale, opacity)
		return err
	})
	return h, err
}

// MoveNode moves a node's top-left corner to (x, y).
func (e *Engine) MoveNode(h scene.Handle, x, y float64) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	return e.perform("move", "Move node", func() error { return e.renderer.MoveNode(h, x, y) })
}

// ResizeNode changes a node's size.
func (e *Engine) ResizeNode(h scene.Handle, w, hgt float64) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	return e.perform("resize", "Resize node", func() error { return e.renderer.ResizeNode(h, w, hgt) })
}

// RemoveNode deletes a node. The base image cannot be removed.
func (e *Engine) RemoveNode(h scene.Handle) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	return e.removeNode(h)
}

func (e *Engine) removeNode(h scene.Handle) error {
	if base, ok := e.renderer.BaseHandle(); ok && base == h {
		return fmt.Errorf("remove node: base image cannot be removed")
	}
	return e.perform("remove", "Remove node", func() error { return e.renderer.RemoveNode(h) })
}

// Import replaces the scene with a snapshot. A malformed snapshot publishes
// ImageLoaded with Err set and leaves the scene intact.
func (e *Engine) Import(data []byte) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	e.handler.cancel(e)
	err := e.perform("import", "Import scene", func() error {
		return e.renderer.Restore(bytes.Clone(data))
	})
	if err != nil {
		err = fmt.Errorf("import: %w", err)
		e.emit(events.ImageLoaded{Err: err})
		return err
	}
	e.afterRestore()
	w, h := e.renderer.Size()
	e.emit(events.ImageLoaded{Width: w, Height: h})
	return nil
}

// SetSelection replaces the live selection and shows its outline.
func (e *Engine) SetSelection(a selection.Area) error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	if a.IsZero() {
		e.clearSelection()
		return nil
	}
	e.setSelection(a)
	return nil
}

// ClearSelection drops the live selection.
func (e *Engine) ClearSelection() error {
	if err := e.lock(); err != nil {
		return err
	}
	defer e.unlock()
	e.clearSelection()
	return nil
}

// MagicWand selects the region connected to (x, y) within tolerance.
func (e *Engine) MagicWand(x, y int, tolerance float64) (selection.Area, error) {
	if err := e.lock(); err != nil {
		return selection.Area{}, err
	}
	defer e.unlock()
	return e.magicWand(x, y, tolerance)
}

func (e *Engine) magicWand(x, y int, tolerance float64) (selection.Area, error) {
	img, err := e.base()
	if err != nil {
		return selection.Area{}, err
	}
	m, err := selection.MagicWand(img, image.Pt(x, y), tolerance)
	if err != nil {
		return selection.Area{}, err
	}
	a, err := selection.FromMask(m)
	if err != nil {
		return selection.Area{}, err
	}
	e.setSelection(a)
	return a, nil
}

func (e *Engine) setSelection(a selection.Area) {
	e.sel.Set(a)
	e.renderer.SetSelectionOutline(a.Outline(), true)
}

func (e *Engine) clearSelection() {
	e.sel.Clear()
	e.renderer.SetSelectionOutline(nil, false)
}
