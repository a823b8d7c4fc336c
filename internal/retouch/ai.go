package retouch

import (
	"context"
	"fmt"
	"image"

	"github.com/example/retoucher/internal/aiservice"
	"github.com/example/retoucher/internal/raster"
	"github.com/example/retoucher/internal/selection"
)

// acquire claims the processing flag; the returned func releases it.
func (e *Engine) acquire() (func(), error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	return func() { e.busy.Store(false) }, nil
}

func (e *Engine) service() aiservice.Service {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ai
}

func (e *Engine) call(ctx context.Context, img *image.RGBA, req aiservice.Request) (*image.RGBA, error) {
	svc := e.service()
	if svc == nil {
		return nil, ErrNoService
	}
	data, err := raster.EncodeBytes(img, raster.ExportOptions{Format: raster.FormatPNG})
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	req.Image = data
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}
	resp, err := svc.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	out, err := raster.DecodeBytes(resp.Image)
	if err != nil {
		return nil, &aiservice.Error{Reason: aiservice.ReasonInvalidResponse, Message: "undecodable image", Err: err}
	}
	if out.Bounds().Size() != img.Bounds().Size() {
		return nil, &aiservice.Error{Reason: aiservice.ReasonInvalidResponse, Message: fmt.Sprintf("result is %v, want %v", out.Bounds().Size(), img.Bounds().Size())}
	}
	return out, nil
}

// RemoveBackground asks the AI service to key out the background. Only one
// AI call runs at a time; an overlapping call fails with ErrBusy. On any
// error img is left as it was and nil is returned.
func (e *Engine) RemoveBackground(ctx context.Context, img *image.RGBA) (*image.RGBA, error) {
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return e.call(ctx, img, aiservice.Request{Model: aiservice.ModelBackgroundRemoval})
}

// RemoveObject inpaints the pixels covered by area.
func (e *Engine) RemoveObject(ctx context.Context, img *image.RGBA, area selection.Area) (*image.RGBA, error) {
	if area.IsZero() || area.Bounds().Intersect(img.Bounds()).Empty() {
		return nil, ErrEmptySelection
	}
	release, err := e.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	b := img.Bounds()
	mask, err := aiservice.EncodeMask(area.Rasterize(b.Dx(), b.Dy()))
	if err != nil {
		return nil, fmt.Errorf("encode mask: %w", err)
	}
	return e.call(ctx, img, aiservice.Request{Model: aiservice.ModelInpainting, Mask: mask})
}
