package main

import (
	"bytes"
	"embed"
	"flag"
	"fmt"
	"log"
	"os"
	"sync"
	"text/template"
)

//go:embed templates/*.txt
var helpFS embed.FS

var (
	helpOnce sync.Once
	helpTmpl *template.Template
)

func parseHelpTemplates() {
	helpTmpl = template.Must(template.New("").Funcs(map[string]any{
		"flags": func(fs *flag.FlagSet) []flagInfo {
			result := []flagInfo{}
			if fs == nil {
				return result
			}
			fs.VisitAll(func(f *flag.Flag) {
				result = append(result, flagInfo{f.Name, f.DefValue, f.Usage})
			})
			return result
		},
	}).ParseFS(helpFS, "templates/*.txt"))
}

type flagInfo struct {
	Name     string
	DefValue string
	Usage    string
}

type HelpData interface {
	Program() string
	Template() string
	FlagSet() *flag.FlagSet
}

type UsageError struct {
	of HelpData
}

func (e *UsageError) Error() string {
	help, err := e.renderHelp()
	if err != nil {
		return err.Error()
	}
	return help
}

func (e *UsageError) renderHelp() (string, error) {
	helpOnce.Do(parseHelpTemplates)
	var buf bytes.Buffer
	err := helpTmpl.ExecuteTemplate(&buf, e.of.Template(), e.of)
	if err != nil {
		log.Printf("error rendering help template: %v", err)
		return "", err
	}
	return buf.String(), nil
}

func usageFunc(h HelpData) func() {
	return func() {
		fmt.Fprint(os.Stderr, (&UsageError{of: h}).Error())
	}
}

func (r *root) Template() string {
	return "root.txt"
}

func (c *filterCmd) Template() string {
	return "filter.txt"
}

func (c *filtersCmd) Template() string {
	return "filters.txt"
}

func (c *presetsCmd) Template() string {
	return "presets.txt"
}

func (c *cropCmd) Template() string {
	return "crop.txt"
}

func (c *healCmd) Template() string {
	return "heal.txt"
}

func (c *cloneCmd) Template() string {
	return "clone.txt"
}

func (c *patchCmd) Template() string {
	return "patch.txt"
}

func (c *wandCmd) Template() string {
	return "wand.txt"
}

func (d *drawCmd) Template() string {
	return "draw.txt"
}

func (c *removeBgCmd) Template() string {
	return "remove-bg.txt"
}

func (c *removeObjectCmd) Template() string {
	return "remove-object.txt"
}

func (c *serveAICmd) Template() string {
	return "serve-ai.txt"
}

func (c *editCmd) Template() string {
	return "edit.txt"
}

func (i *interactiveCmd) Template() string {
	return "interactive.txt"
}

func (c *auditCmd) Template() string {
	return "audit.txt"
}

func (c *configCmd) Template() string {
	return "config.txt"
}
