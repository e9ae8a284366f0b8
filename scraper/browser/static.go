package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"

	"tesouro-scraper/utils"
)

// StaticBrowser fetches pages over plain HTTP without running scripts. It
// only works when the server ships the awaited element in the initial HTML.
type StaticBrowser struct {
	Timeout time.Duration
	Logger  *utils.Logger
}

// NewStaticBrowser returns a StaticBrowser.
func NewStaticBrowser(timeout time.Duration, logger *utils.Logger) *StaticBrowser {
	return &StaticBrowser{Timeout: timeout, Logger: logger}
}

func (b *StaticBrowser) Open(_ context.Context) (Session, error) {
	return &staticSession{timeout: b.Timeout, logger: b.Logger}, nil
}

type staticSession struct {
	timeout time.Duration
	logger  *utils.Logger
}

func (s *staticSession) Render(ctx context.Context, url, selector string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.StdlibContext(ctx),
	)
	if s.timeout > 0 {
		c.SetRequestTimeout(s.timeout)
	}

	var (
		html  string
		found bool
	)
	c.OnResponse(func(r *colly.Response) {
		html = string(r.Body)
	})
	c.OnHTML(selector, func(*colly.HTMLElement) {
		found = true
	})

	s.logger.Info("[browser] Fetching %s", url)
	if err := c.Visit(url); err != nil {
		return "", fmt.Errorf("colly visit: %w", err)
	}
	c.Wait()

	if !found {
		return "", fmt.Errorf("static fetch of %s: %s: %w", url, selector, ErrSelectorNotFound)
	}
	return html, nil
}

func (s *staticSession) Close() error { return nil }
