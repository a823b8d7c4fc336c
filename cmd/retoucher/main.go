package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/example/retoucher/internal/config"
	"github.com/example/retoucher/internal/notify"
	"github.com/example/retoucher/internal/theme"
)

var (
	version            = "dev"
	commit             = ""
	date               = ""
	configPathOverride = ""
)

type runnable interface{ Run() error }

type root struct {
	fs          *flag.FlagSet
	program     string
	notifier    *notify.Notifier
	config      *config.Config
	themeName   string
	activeTheme *theme.Theme
	aiEndpoint  string
	aiTimeout   time.Duration
	auditPath   string
	noNotify    bool

	stdout io.Writer
	stderr io.Writer
}

func (r *root) Program() string {
	if r == nil || r.program == "" {
		return "retoucher"
	}
	return r.program
}

func (r *root) FlagSet() *flag.FlagSet {
	return r.fs
}

func (r *root) out() io.Writer {
	if r == nil || r.stdout == nil {
		return os.Stdout
	}
	return r.stdout
}

func (r *root) errOut() io.Writer {
	if r == nil || r.stderr == nil {
		return os.Stderr
	}
	return r.stderr
}

func (r *root) cfg() *config.Config {
	if r == nil || r.config == nil {
		return config.New()
	}
	return r.config
}

func newRoot() *root {
	loader := config.NewLoader(version, configPathOverride)
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to load config: %v\n", err)
		cfg = config.New()
	}

	r := &root{
		fs:       flag.NewFlagSet("retoucher", flag.ExitOnError),
		program:  "retoucher",
		notifier: notify.New(notify.LoadPreferences()),
		config:   cfg,
	}
	r.fs.BoolVar(&cfg.Notify.BackgroundRemoved, "notify-background", cfg.Notify.BackgroundRemoved, "show a desktop notification when background removal finishes")
	r.fs.BoolVar(&cfg.Notify.ObjectRemoved, "notify-object", cfg.Notify.ObjectRemoved, "show a desktop notification when object removal finishes")
	r.fs.BoolVar(&cfg.Notify.Export, "notify-export", cfg.Notify.Export, "show a desktop notification after exporting an image")
	r.fs.BoolVar(&r.noNotify, "no-notify", false, "disable all desktop notifications")
	r.fs.StringVar(&r.aiEndpoint, "ai-endpoint", "", "base URL of the image AI service (empty uses the built-in one)")
	r.fs.DurationVar(&r.aiTimeout, "ai-timeout", 0, "timeout for AI requests (0 uses the configured value)")
	r.fs.StringVar(&r.auditPath, "audit", cfg.Audit.Path, "sqlite file recording retouch tasks (empty disables)")

	// Precedence: CLI > Env > Config > Default
	r.fs.StringVar(&r.themeName, "theme", "", "color theme to use (default, dark, high_contrast)")
	r.fs.Usage = usageFunc(r)
	return r
}

// resolveTheme picks the theme by flag, RETOUCHER_THEME, then config.
func (r *root) resolveTheme() *theme.Theme {
	name := r.themeName
	if name == "" {
		name = os.Getenv("RETOUCHER_THEME")
	}
	cfg := r.cfg()
	if name == "" {
		name = cfg.Theme
	}
	loader := theme.NewLoader()
	loader.Custom = cfg.Themes
	t, err := loader.Load(name)
	if err != nil {
		if name != "default" {
			fmt.Fprintf(r.errOut(), "warning: failed to load theme '%s': %v. using default.\n", name, err)
		}
		t = theme.Default()
	}
	return t
}

func (r *root) Run(args []string) error {
	if err := r.fs.Parse(args); err != nil {
		return err
	}
	if r.fs.NArg() < 1 {
		return &UsageError{of: r}
	}
	if r.aiEndpoint != "" {
		r.config.AI.Endpoint = r.aiEndpoint
	}
	if r.aiTimeout > 0 {
		r.config.AI.Timeout = r.aiTimeout
	}
	if r.noNotify {
		r.notifier = nil
	}
	r.activeTheme = r.resolveTheme()

	cmdName := r.fs.Arg(0)
	subArgs := r.fs.Args()[1:]

	var (
		cmd runnable
		err error
	)
	switch cmdName {
	case "filter":
		cmd, err = parseFilterCmd(subArgs, r)
	case "filters":
		cmd, err = parseFiltersCmd(subArgs, r)
	case "presets":
		cmd, err = parsePresetsCmd(subArgs, r)
	case "crop":
		cmd, err = parseCropCmd(subArgs, r)
	case "heal":
		cmd, err = parseHealCmd(subArgs, r)
	case "clone":
		cmd, err = parseCloneCmd(subArgs, r)
	case "patch":
		cmd, err = parsePatchCmd(subArgs, r)
	case "wand":
		cmd, err = parseWandCmd(subArgs, r)
	case "draw":
		cmd, err = parseDrawCmd(subArgs, r)
	case "remove-bg":
		cmd, err = parseRemoveBgCmd(subArgs, r)
	case "remove-object":
		cmd, err = parseRemoveObjectCmd(subArgs, r)
	case "serve-ai":
		cmd, err = parseServeAICmd(subArgs, r)
	case "edit":
		cmd, err = parseEditCmd(subArgs, r)
	case "interactive":
		cmd, err = parseInteractiveCmd(subArgs, r)
	case "audit":
		cmd, err = parseAuditCmd(subArgs, r)
	case "config":
		cmd, err = parseConfigCmd(subArgs, r)
	case "version":
		cmd = &versionCmd{r: r}
	default:
		err = &UsageError{of: r}
	}
	if err != nil {
		return err
	}
	return cmd.Run()
}

func main() {
	r := newRoot()
	if err := r.Run(os.Args[1:]); err != nil {
		var uerr *UsageError
		if errors.As(err, &uerr) {
			fmt.Fprintln(os.Stderr, uerr.Error())
			os.Exit(2)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// split separates known flags from positionals so flags may follow the
// operands, as in "crop 0 0 10 10 -file in.png".
func split(fs *flag.FlagSet, args []string) ([]string, []string, error) {
	var flags, positionals []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		name := strings.TrimLeft(arg, "-")
		if !strings.HasPrefix(arg, "-") || name == "" || isNumber(arg) {
			positionals = append(positionals, arg)
			continue
		}
		parts := strings.SplitN(name, "=", 2)
		f := fs.Lookup(parts[0])
		if f == nil {
			return nil, nil, fmt.Errorf("flag provided but not defined: %s", arg)
		}
		norm := "-" + parts[0]
		if len(parts) == 2 {
			flags = append(flags, norm+"="+parts[1])
			continue
		}
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			flags = append(flags, norm)
			continue
		}
		if i+1 >= len(args) {
			return nil, nil, fmt.Errorf("flag %s requires a value", arg)
		}
		flags = append(flags, norm, args[i+1])
		i++
	}
	return flags, positionals, nil
}

func isNumber(s string) bool {
	if len(s) < 2 || s[0] != '-' {
		return false
	}
	c := s[1]
	return (c >= '0' && c <= '9') || c == '.'
}

// parseArgs parses args into fs, allowing flags after positionals.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	flags, positionals, err := split(fs, args)
	if err != nil {
		return nil, err
	}
	if err := fs.Parse(flags); err != nil {
		return nil, err
	}
	return append(positionals, fs.Args()...), nil
}
