package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/retoucher/internal/aiservice"
)

// serveAICmd exposes the built-in AI service over HTTP so other sessions
// can point -ai-endpoint at it.
type serveAICmd struct {
	*root
	fs   *flag.FlagSet
	addr string
}

func (c *serveAICmd) FlagSet() *flag.FlagSet {
	return c.fs
}

func parseServeAICmd(args []string, r *root) (*serveAICmd, error) {
	fs := flag.NewFlagSet("serve-ai", flag.ExitOnError)
	c := &serveAICmd{root: r, fs: fs}
	fs.Usage = usageFunc(c)
	fs.StringVar(&c.addr, "addr", ":8089", "listen address")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() != 0 {
		return nil, &UsageError{of: c}
	}
	return c, nil
}

func (c *serveAICmd) handler() http.Handler {
	logger := log.New(c.root.errOut(), "serve-ai: ", log.LstdFlags)
	return aiservice.NewHandler(aiservice.NewLocal(), logger)
}

func (c *serveAICmd) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              c.addr,
		Handler:           c.handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	fmt.Fprintf(c.root.out(), "serving AI on %s\n", c.addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
