package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"tesouro-scraper/models"
)

// PrintReport writes a human-readable run summary to w.
func PrintReport(w io.Writer, result *models.RunResult, report *models.ReconciliationReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  TESOURO DIRETO RUN SUMMARY\033[0m\n")
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Scrape\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Records found     : \033[1m%d\033[0m\n", result.RecordsFound)
	fmt.Fprintf(w, "  Records processed : \033[1m%d\033[0m\n", result.RecordsProcessed)
	fmt.Fprintln(w)

	if report == nil {
		fmt.Fprintf(w, "  Store untouched\n")
		fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
		return
	}

	fmt.Fprintf(w, "\033[1;33m  Reconciliation\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Run timestamp     : %s\n", report.RunTimestamp.Format(time.RFC3339))
	fmt.Fprintf(w, "  New investments   : \033[1;32m%d\033[0m\n", report.Inserted)
	fmt.Fprintf(w, "  Updated           : %d\n", report.Updated)
	fmt.Fprintf(w, "  Skipped (no slug) : %d\n", report.Skipped)
	if report.LookupErrors > 0 {
		fmt.Fprintf(w, "  Lookup failures   : \033[1;31m%d\033[0m\n", report.LookupErrors)
	}
	fmt.Fprintln(w)

	if report.CollectionCounted {
		fmt.Fprintf(w, "\033[1;33m  Store\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %-20s %d\n", models.InvestmentsCollection, report.InvestmentCount)
		fmt.Fprintf(w, "  %-20s %d\n", models.InvestmentDetailsCollection, report.DetailCount)
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}
