package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/example/retoucher/internal/engine"
	"github.com/example/retoucher/internal/filter"
)

// filterCmd applies one filter, or a preset, to an image.
type filterCmd struct {
	*root
	fs     *flag.FlagSet
	img    imageFlags
	preset string
	id     string
	values filter.Values
}

func (c *filterCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

// parseValues reads name=value pairs.
func parseValues(args []string) (filter.Values, error) {
	v := filter.Values{}
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("parameter %q must be name=value", arg)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: invalid number %q", name, raw)
		}
		v[name] = f
	}
	return v, nil
}

func parseFilterCmd(args []string, r *root) (*filterCmd, error) {
	fs := flag.NewFlagSet("filter", flag.ExitOnError)
	c := &filterCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	c.img.bind(fs)
	fs.StringVar(&c.preset, "preset", "", "apply the named preset instead of a filter")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	switch {
	case c.preset != "" && len(rest) > 0:
		return nil, fmt.Errorf("-preset cannot be combined with a filter id")
	case c.preset == "":
		if len(rest) < 1 {
			return nil, &UsageError{of: c}
		}
		c.id = rest[0]
		if c.values, err = parseValues(rest[1:]); err != nil {
			return nil, err
		}
	}
	if err := c.img.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *filterCmd) Run() error {
	return c.root.edit(&c.img, func(eng *engine.Engine) error {
		if c.preset != "" {
			return eng.ApplyPreset(c.preset)
		}
		return eng.ApplyFilter(c.id, c.values)
	})
}

// filtersCmd lists the registered filters and their parameters.
type filtersCmd struct {
	*root
	fs       *flag.FlagSet
	category string
}

func (c *filtersCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseFiltersCmd(args []string, r *root) (*filtersCmd, error) {
	fs := flag.NewFlagSet("filters", flag.ExitOnError)
	c := &filtersCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.category, "category", "", "only list filters in this category")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func formatParam(p filter.Param) string {
	s := fmt.Sprintf("%s=%g [%g..%g]", p.Name, p.Value, p.Min, p.Max)
	if p.Unit != "" {
		s += " " + p.Unit
	}
	return s
}

func (c *filtersCmd) Run() error {
	reg := filter.Default()
	out := c.root.out()
	for _, cat := range reg.Categories() {
		if c.category != "" && string(cat) != c.category {
			continue
		}
		fmt.Fprintf(out, "%s:\n", cat)
		for _, f := range reg.List() {
			if f.Category != cat {
				continue
			}
			params := make([]string, len(f.Params))
			for i, p := range f.Params {
				params[i] = formatParam(p)
			}
			fmt.Fprintf(out, "  %-16s %s\n", f.ID, strings.Join(params, ", "))
		}
	}
	return nil
}

// presetsCmd lists presets or writes them as a YAML bundle.
type presetsCmd struct {
	*root
	fs     *flag.FlagSet
	load   string
	export string
}

func (c *presetsCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parsePresetsCmd(args []string, r *root) (*presetsCmd, error) {
	fs := flag.NewFlagSet("presets", flag.ExitOnError)
	c := &presetsCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.load, "load", "", "validate and include presets from this YAML file")
	fs.StringVar(&c.export, "export", "", "write every preset to this YAML file ('-' for stdout)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (c *presetsCmd) Run() error {
	eng, cleanup, err := c.root.newEngine()
	if err != nil {
		return err
	}
	defer cleanup()
	if c.load != "" {
		if err := loadPresets(eng, c.load); err != nil {
			return err
		}
	}
	presets := eng.Filters().Presets()
	if c.export != "" {
		data, err := filter.MarshalPresets(presets)
		if err != nil {
			return err
		}
		if c.export == "-" {
			_, err = c.root.out().Write(data)
			return err
		}
		return os.WriteFile(c.export, data, 0o644)
	}
	out := c.root.out()
	for _, p := range presets {
		desc := p.Description
		if desc == "" {
			desc = p.FilterID
		}
		fmt.Fprintf(out, "%-16s %-12s %s\n", p.Name, p.FilterID, desc)
	}
	return nil
}
