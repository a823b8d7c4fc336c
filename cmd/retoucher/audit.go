package main

import (
	"context"
	"flag"
	"fmt"
	"image/png"
	"os"

	"github.com/example/retoucher/internal/audit"
	"github.com/example/retoucher/internal/retouch"
)

// auditCmd inspects the retouch task log.
type auditCmd struct {
	*root
	fs     *flag.FlagSet
	limit  int
	tool   string
	before string
	args   []string
}

func (c *auditCmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseAuditCmd(args []string, r *root) (*auditCmd, error) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	c := &auditCmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.IntVar(&c.limit, "limit", 20, "maximum tasks to list (0 lists all)")
	fs.StringVar(&c.tool, "tool", "", "only count tasks of this tool")
	fs.StringVar(&c.before, "before", "", "write the task's original pixels to this PNG file")
	rest, err := parseArgs(fs, args)
	if err != nil {
		return nil, err
	}
	if len(rest) == 0 {
		rest = []string{"list"}
	}
	c.args = rest
	return c, nil
}

func (c *auditCmd) Run() error {
	if c.root == nil || c.root.auditPath == "" {
		return fmt.Errorf("no audit store configured; pass -audit or set audit.path")
	}
	store, err := audit.Open(expandHome(c.root.auditPath))
	if err != nil {
		return err
	}
	defer closeWithLog("audit", store)

	ctx := context.Background()
	out := c.root.out()
	switch c.args[0] {
	case "list":
		tasks, err := store.List(ctx, c.limit)
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Fprintln(out, formatTask(t))
		}
		return nil
	case "count":
		n, err := store.Count(ctx, retouch.Tool(c.tool))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, n)
		return nil
	case "show":
		if len(c.args) != 2 {
			return fmt.Errorf("show requires a task id")
		}
		t, err := store.Get(ctx, c.args[1])
		if err != nil {
			return err
		}
		fmt.Fprintln(out, formatTask(t))
		tc := t.Context
		fmt.Fprintf(out, "  source %.0f,%.0f target %.0f,%.0f radius %g strength %g\n",
			tc.SourceX, tc.SourceY, tc.TargetX, tc.TargetY, tc.Radius, tc.Strength)
		if c.before != "" && t.Before != nil {
			f, err := os.Create(c.before)
			if err != nil {
				return err
			}
			defer closeWithLog(c.before, f)
			return png.Encode(f, t.Before)
		}
		return nil
	default:
		return fmt.Errorf("unknown audit command: %s", c.args[0])
	}
}

func formatTask(t retouch.RepairTask) string {
	return fmt.Sprintf("%s %s %-12s %v", t.Timestamp.Format("2006-01-02 15:04:05"), t.ID, t.Tool, t.Region)
}
