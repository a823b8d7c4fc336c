package engine

import (
	"context"
	"errors"
	"image"

	"github.com/example/retoucher/internal/events"
	"github.com/example/retoucher/internal/retouch"
	"github.com/example/retoucher/internal/selection"
)

type aiCall func(ctx context.Context, img *image.RGBA) (*image.RGBA, error)

// RemoveBackground keys out the background through the AI service and
// publishes BackgroundRemoved. A call made while another AI request runs
// fails with retouch.ErrBusy and publishes nothing.
func (e *Engine) RemoveBackground(ctx context.Context) error {
	return e.runAI(ctx, "remove-background", "Remove background", e.retouch.RemoveBackground,
		func(err error) events.Event { return events.BackgroundRemoved{Success: err == nil, Err: err} })
}

// RemoveObject inpaints area through the AI service and publishes
// ObjectRemoved. A zero area uses the active selection.
func (e *Engine) RemoveObject(ctx context.Context, area selection.Area) error {
	if area.IsZero() {
		e.mu.Lock()
		area, _ = e.sel.Active()
		e.mu.Unlock()
		if area.IsZero() {
			return ErrNoSelection
		}
	}
	return e.runAI(ctx, "remove-object", "Remove object",
		func(ctx context.Context, img *image.RGBA) (*image.RGBA, error) {
			return e.retouch.RemoveObject(ctx, img, area)
		},
		func(err error) events.Event { return events.ObjectRemoved{Success: err == nil, Err: err} })
}

// runAI sends the base image to call without holding the engine lock, then
// applies the result as one action. The result is dropped when the image
// was edited meanwhile or the engine was destroyed.
func (e *Engine) runAI(ctx context.Context, kind, desc string, call aiCall, report func(error) events.Event) error {
	if err := e.lock(); err != nil {
		return err
	}
	img, err := e.base()
	rev, session := e.revision, e.ctx
	e.unlock()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(session, cancel)
	defer stop()

	out, err := call(ctx, img)
	if errors.Is(err, retouch.ErrBusy) {
		return err
	}
	if err != nil {
		e.logger.Printf("%s: %v", kind, err)
		e.bus.Publish(report(err))
		return err
	}

	if err := e.lock(); err != nil {
		e.logger.Printf("%s: result discarded: %v", kind, err)
		return err
	}
	defer e.unlock()
	if e.revision != rev {
		err = ErrSuperseded
	} else {
		err = e.replaceBase(kind, desc, out)
	}
	if err != nil {
		e.logger.Printf("%s: %v", kind, err)
	}
	e.emit(report(err))
	return err
}
