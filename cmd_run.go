package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"tesouro-scraper/services"
)

type runCmd struct{}

func (*runCmd) Name() string     { return "run" }
func (*runCmd) Synopsis() string { return "scrapes the yield table once and reconciles it into the store" }
func (*runCmd) Usage() string {
	return `run

Renders the Tesouro Direto yield page, extracts and normalizes its rows,
upserts one investment per slug and appends one detail per row.
Configuration is read from the environment and an optional .env file.
`
}
func (*runCmd) SetFlags(*flag.FlagSet) {}

func (*runCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitFailure
	}
	defer a.close()

	result, report, err := a.pipeline.Run(ctx)
	services.PrintReport(os.Stdout, result, report)
	if err != nil {
		a.logger.Error("Run failed: %v", err)
		return subcommands.ExitFailure
	}

	fmt.Printf("  Done. %s: %d found, %d processed | Store: %s\n\n",
		result.Message, result.RecordsFound, result.RecordsProcessed, a.cfg.StoreDriver)
	return subcommands.ExitSuccess
}
