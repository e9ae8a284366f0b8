package browser

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"

	"tesouro-scraper/utils"
)

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// ChromeBrowser drives a local Chrome/Chromium through chromedp.
type ChromeBrowser struct {
	ExecPath string
	Headless bool
	Timeout  time.Duration
	Logger   *utils.Logger
}

// NewChromeBrowser returns a ChromeBrowser, locating the binary when execPath is empty.
func NewChromeBrowser(execPath string, headless bool, timeout time.Duration, logger *utils.Logger) *ChromeBrowser {
	if execPath == "" {
		execPath = findChromeBinary()
	}
	return &ChromeBrowser{ExecPath: execPath, Headless: headless, Timeout: timeout, Logger: logger}
}

// Open starts the browser process. The returned session owns it.
func (b *ChromeBrowser) Open(ctx context.Context) (Session, error) {
	b.Logger.Info("[browser] Using browser binary: %s", displayPath(b.ExecPath))

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.UserAgent(userAgent),
	)
	if b.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.ExecPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.WithoutCancel(ctx), opts...)

	// Suppress chromedp log noise
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	// Run with no actions launches the browser so start-up errors surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chromedp start: %w", err)
	}

	return &chromeSession{
		ctx:     browserCtx,
		timeout: b.Timeout,
		logger:  b.Logger,
		cancel: func() {
			cancelBrowser()
			cancelAlloc()
		},
	}, nil
}

type chromeSession struct {
	ctx     context.Context
	timeout time.Duration
	logger  *utils.Logger
	cancel  func()
}

func (s *chromeSession) Render(ctx context.Context, url, selector string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(s.ctx)
	defer cancelTab()

	timeout := s.timeout
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	runCtx, cancelRun := context.WithTimeout(tabCtx, timeout)
	defer cancelRun()

	// chromedp needs its own context tree; forward the caller's cancellation.
	stop := context.AfterFunc(ctx, cancelRun)
	defer stop()

	s.logger.Info("[browser] Navigating to %s", url)

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if runCtx.Err() != nil && ctx.Err() == nil {
			return "", fmt.Errorf("chromedp wait for %s: %w", selector, ErrSelectorNotFound)
		}
		return "", fmt.Errorf("chromedp render: %w", err)
	}

	s.logger.Debug("[browser] Rendered %d bytes from %s", len(html), url)
	return html, nil
}

// Close terminates the browser process.
func (s *chromeSession) Close() error {
	s.cancel()
	return nil
}

func displayPath(p string) string {
	if p == "" {
		return "(chromedp default lookup)"
	}
	return p
}

// findChromeBinary locates Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
