package main

import (
	"flag"

	"github.com/example/retoucher/internal/editor"
)

// editCmd opens an image in the editor window.
type editCmd struct {
	*root
	fs  *flag.FlagSet
	img imageFlags
}

func (c *editCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseEditCmd(args []string, r *root) (*editCmd, error) {
	fs := flag.NewFlagSet("edit", flag.ExitOnError)
	c := &editCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 1 && c.img.file == "" {
		c.img.file = rest[0]
	} else if len(rest) != 0 {
		return nil, &UsageError{of: c}
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *editCmd) Run() error {
	eng, cleanup, err := c.root.newEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	if err := c.img.load(eng); err != nil {
		return err
	}
	opts := []editor.Option{editor.WithOutput(c.img.output)}
	if c.root != nil && c.root.activeTheme != nil {
		opts = append(opts, editor.WithTheme(c.root.activeTheme))
	}
	editor.New(eng, opts...).Run()
	return nil
}
