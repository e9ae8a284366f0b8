package services

import (
	"context"
	"fmt"

	"tesouro-scraper/models"
	"tesouro-scraper/storage"
	"tesouro-scraper/utils"
)

const runMessage = "scrapped"

// Source produces the raw rows of one run.
type Source interface {
	Scrape(ctx context.Context) ([]*models.RawRow, error)
}

// Pipeline sequences scrape → normalize → reconcile for one run.
type Pipeline struct {
	source     Source
	normalizer *Normalizer
	reconciler *Reconciler
	snapshots  storage.RawRowWriter
	logger     *utils.Logger
}

// NewPipeline wires a Pipeline. snapshots may be nil.
func NewPipeline(source Source, normalizer *Normalizer, reconciler *Reconciler, snapshots storage.RawRowWriter, logger *utils.Logger) *Pipeline {
	return &Pipeline{
		source:     source,
		normalizer: normalizer,
		reconciler: reconciler,
		snapshots:  snapshots,
		logger:     logger,
	}
}

// Run executes one pipeline run. Zero rows found is not an error and leaves
// the store untouched. On collaborator or commit failure the result reports
// zero processed records alongside the error.
func (p *Pipeline) Run(ctx context.Context) (*models.RunResult, *models.ReconciliationReport, error) {
	result := &models.RunResult{Message: runMessage}
	p.logger.Info("[pipeline] Starting web scraping")

	rows, err := p.source.Scrape(ctx)
	if err != nil {
		p.logger.Error("[pipeline] Scrape failed: %v", err)
		return result, nil, fmt.Errorf("pipeline: scrape: %w", err)
	}

	result.RecordsFound = len(rows)
	if len(rows) == 0 {
		p.logger.Warn("[pipeline] No records found")
		return result, nil, nil
	}
	p.logger.Info("[pipeline] Number of records on website table: %d", len(rows))

	if p.snapshots != nil {
		if path, err := p.snapshots.WriteRaw(rows); err != nil {
			p.logger.Warn("[pipeline] Raw snapshot write failed: %v", err)
		} else {
			p.logger.Info("[pipeline] Raw rows saved to %s", path)
		}
	}

	records := p.normalizer.Normalize(rows)

	report, err := p.reconciler.Reconcile(ctx, records)
	if err != nil {
		return result, report, fmt.Errorf("pipeline: %w", err)
	}

	result.RecordsProcessed = report.Processed
	p.logger.Info("[pipeline] %d records sent to the store", report.Processed)
	return result, report, nil
}
