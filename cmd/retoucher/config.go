package main

import (
	"flag"
	"fmt"

	"github.com/example/retoucher/internal/config"
)

type configCmd struct {
	*root
	fs   *flag.FlagSet
	path string
}

func (c *configCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseConfigCmd(args []string, r *root) (*configCmd, error) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)
	c := &configCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.path, "path", "", "file to save to (defaults to the loaded config file)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *configCmd) Run() error {
	args := c.fs.Args()
	if len(args) < 1 {
		return &UsageError{of: c}
	}

	switch args[0] {
	case "print":
		fmt.Fprint(c.root.out(), c.root.cfg().String())
		return nil
	case "path":
		loader := config.NewLoader(version, configPathOverride)
		active := loader.GetConfigPath()
		for _, p := range loader.Candidates() {
			mark := " "
			if p == active {
				mark = "*"
			}
			fmt.Fprintf(c.root.out(), "%s %s\n", mark, p)
		}
		return nil
	case "save":
		return c.runSave()
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

// savePath prefers -path, then the file the loader found, then the XDG default.
func (c *configCmd) savePath() string {
	if c.path != "" {
		return c.path
	}
	if p := config.NewLoader(version, configPathOverride).GetConfigPath(); p != "" {
		return p
	}
	return config.DefaultPath()
}

func (c *configCmd) runSave() error {
	path := c.savePath()
	if err := config.Save(path, c.root.cfg()); err != nil {
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	fmt.Fprintf(c.root.errOut(), "Configuration saved to %s\n", path)
	return nil
}
