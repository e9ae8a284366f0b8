package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/google/subcommands"

	"tesouro-scraper/api"
	"tesouro-scraper/utils"
)

type serveCmd struct {
	addr string
}

func (*serveCmd) Name() string     { return "serve" }
func (*serveCmd) Synopsis() string { return "serves POST /runs to trigger pipeline runs over HTTP" }
func (*serveCmd) Usage() string {
	return `serve [-addr :8080]

Starts an HTTP server. POST /runs executes one pipeline run and answers
{"message","records_found","records_processed"}; GET /healthz reports
whether a run is in progress. Only one run executes at a time.
`
}
func (c *serveCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.addr, "addr", "", "Listen address, overrides HTTP_ADDR.")
}

func (c *serveCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	addr := c.addr
	if addr == "" {
		addr = a.cfg.HTTPAddr
	}

	srv := api.NewServer(a.pipeline, utils.NewRunGuard(), a.cfg.RateLimitPerMin, a.logger)
	server := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("Shutdown: %v", err)
		}
	}()

	a.logger.Info("Listening on %s (POST /runs, GET /healthz)", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		a.logger.Error("Server failed: %v", err)
		return subcommands.ExitFailure
	}
	a.logger.Info("Server stopped")
	return subcommands.ExitSuccess
}
