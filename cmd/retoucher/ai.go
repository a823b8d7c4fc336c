package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"time"

	"github.com/example/retoucher/internal/aiservice"
	"github.com/example/retoucher/internal/engine"
)

// aiContext bounds a one-shot AI call by the configured timeout, with
// some headroom for encoding.
func (r *root) aiContext() (context.Context, context.CancelFunc) {
	timeout := r.cfg().AI.Timeout
	if timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), timeout+5*time.Second)
}

func describeAIError(op string, err error) error {
	if reason := aiservice.ReasonOf(err); reason != "" {
		return fmt.Errorf("%s failed (%s): %w", op, reason, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// removeBgCmd keys the background out of an image.
type removeBgCmd struct {
	*root
	fs  *flag.FlagSet
	img imageFlags
}

func (c *removeBgCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseRemoveBgCmd(args []string, r *root) (*removeBgCmd, error) {
	fs := flag.NewFlagSet("remove-bg", flag.ExitOnError)
	c := &removeBgCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, &UsageError{of: c}
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *removeBgCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		ctx, cancel := c.root.aiContext()
		defer cancel()
		if err := eng.RemoveBackground(ctx); err != nil {
			return describeAIError("background removal", err)
		}
		return nil
	})
}

// removeObjectCmd inpaints a rectangle.
type removeObjectCmd struct {
	*root
	fs   *flag.FlagSet
	img  imageFlags
	rect image.Rectangle
}

func (c *removeObjectCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseRemoveObjectCmd(args []string, r *root) (*removeObjectCmd, error) {
	fs := flag.NewFlagSet("remove-object", flag.ExitOnError)
	c := &removeObjectCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		return nil, &UsageError{of: c}
	}
	if c.rect, err = rectArgs(rest, "remove-object"); err != nil {
		return nil, err
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *removeObjectCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		ctx, cancel := c.root.aiContext()
		defer cancel()
		if err := eng.RemoveObject(ctx, rectArea(c.rect)); err != nil {
			return describeAIError("object removal", err)
		}
		return nil
	})
}
