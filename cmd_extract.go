package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"tesouro-scraper/config"
	"tesouro-scraper/models"
	"tesouro-scraper/scraper/tesouro"
	"tesouro-scraper/services"
	"tesouro-scraper/utils"
)

type extractCmd struct {
	file    string
	tableID string
	raw     bool
}

func (*extractCmd) Name() string     { return "extract" }
func (*extractCmd) Synopsis() string { return "extracts and normalizes a saved page, printing JSON" }
func (*extractCmd) Usage() string {
	return `extract -file <page.html> [-table rentabilidadeTable] [-raw]

Runs the extractor and normalizer over a saved HTML page without touching
the store and prints the records as JSON on stdout. Use "-file -" to read
from stdin.
`
}
func (c *extractCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.file, "file", "", "The saved HTML page to extract from.")
	f.StringVar(&c.tableID, "table", config.DefaultTableID, "The id attribute of the yield table.")
	f.BoolVar(&c.raw, "raw", false, "Print the raw rows instead of normalized records.")
}

func (c *extractCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.file == "" {
		fmt.Fprintln(os.Stderr, "Error: -file flag is required.")
		return subcommands.ExitUsageError
	}

	page, err := readPage(c.file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %s: %v\n", c.file, err)
		return subcommands.ExitFailure
	}

	rows, err := tesouro.NewExtractor(c.tableID).Extract(page)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error extracting: %v\n", err)
		return subcommands.ExitFailure
	}

	if rows == nil {
		rows = []*models.RawRow{}
	}
	var out any = rows
	if !c.raw {
		// Issues go to stderr so stdout stays valid JSON.
		out = services.NewNormalizer(utils.NewWriterLogger(utils.LevelWarn, os.Stderr)).Normalize(rows)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding: %v\n", err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func readPage(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}
