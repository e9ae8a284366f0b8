package models

import "time"

// Collection names shared by every store backend.
const (
	InvestmentsCollection       = "investments"
	InvestmentDetailsCollection = "investment_details"
)

// RawRow holds the unprocessed cell text of one row of the yield table.
// It is written to the per-run snapshot before any normalisation.
type RawRow struct {
	Title             string    `json:"titulo"`
	MinimumInvestment string    `json:"investimento_minimo"`
	AnnualYield       string    `json:"rendimento_anual"`
	DueDate           string    `json:"vencimento"`
	ExtractedAt       time.Time `json:"data_extracao"`
}

// CanonicalRecord is one normalised row, ready for reconciliation.
// Nil pointers mean the field was absent or could not be parsed.
type CanonicalRecord struct {
	Title             *string   `json:"title"`
	Slug              *string   `json:"slug"`
	MinimumInvestment *string   `json:"minimum_investment"`
	AnnualYield       *string   `json:"annual_yield"`
	DueDate           *string   `json:"due_date"` // YYYY-MM-DD
	ExtractionDate    time.Time `json:"extraction_date"`
}

// HasSlug reports whether the record can be reconciled.
func (r *CanonicalRecord) HasSlug() bool {
	return r != nil && r.Slug != nil && *r.Slug != ""
}

// Investment is the deduplicated parent entity, keyed by Slug.
type Investment struct {
	ID        string
	Title     string
	Slug      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvestmentDetail is one appended snapshot of an investment's figures.
type InvestmentDetail struct {
	ID                string
	InvestmentID      string
	MinimumInvestment *string
	AnnualYield       *string
	DueDate           *string
	ExtractionDate    time.Time
	CreatedAt         time.Time
}

// ReconciliationReport summarises what a reconcile pass staged and committed.
type ReconciliationReport struct {
	Processed    int
	Inserted     int
	Updated      int
	Skipped      int
	LookupErrors int

	RunTimestamp      time.Time
	InvestmentCount   int
	DetailCount       int
	CollectionCounted bool
}

// RunResult is what a pipeline run reports to its caller.
type RunResult struct {
	Message          string `json:"message"`
	RecordsFound     int    `json:"records_found"`
	RecordsProcessed int    `json:"records_processed"`
}
