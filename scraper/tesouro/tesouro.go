package tesouro

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tesouro-scraper/models"
	"tesouro-scraper/scraper/browser"
	"tesouro-scraper/utils"
)

// previewRows is how many extracted rows are logged in full.
const previewRows = 3

// Scraper renders the Tesouro Direto yield page and extracts its table.
type Scraper struct {
	url       string
	browser   browser.Browser
	extractor *Extractor
	logger    *utils.Logger
	retry     *utils.RetryConfig
}

// New creates a ready-to-use Scraper for url.
func New(url, tableID string, b browser.Browser, maxRetries int, logger *utils.Logger) *Scraper {
	return &Scraper{
		url:       url,
		browser:   b,
		extractor: NewExtractor(tableID),
		logger:    logger,
		retry: &utils.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   2 * time.Second,
			Logger:      logger,
		},
	}
}

// Scrape renders the page in a fresh browser session, closed before
// returning, and extracts the raw rows.
func (s *Scraper) Scrape(ctx context.Context) ([]*models.RawRow, error) {
	html, err := s.render(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := s.extractor.Extract(html)
	if err != nil {
		if errors.Is(err, ErrTableNotFound) {
			s.logger.Warn("[tesouro] Table #%s not found in the HTML", s.extractor.TableID)
		}
		return nil, err
	}

	s.logger.Info("[tesouro] Found %d records in the table", len(rows))
	for i, r := range rows {
		if i == previewRows {
			s.logger.Info("[tesouro] ... and %d more records", len(rows)-previewRows)
			break
		}
		s.logger.Info("[tesouro] Record %d: %s | %s | %s | %s", i+1, r.Title, r.MinimumInvestment, r.AnnualYield, r.DueDate)
	}
	return rows, nil
}

func (s *Scraper) render(ctx context.Context) (string, error) {
	session, err := s.browser.Open(ctx)
	if err != nil {
		return "", fmt.Errorf("tesouro: open browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			s.logger.Warn("[tesouro] Closing browser session: %v", err)
		}
	}()

	selector := "#" + s.extractor.TableID
	var html string
	err = s.retry.Do(ctx, "render-yield-page", func(ctx context.Context) error {
		var err error
		html, err = session.Render(ctx, s.url, selector)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("tesouro: render %s: %w", s.url, err)
	}
	return html, nil
}
