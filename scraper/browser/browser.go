// Package browser renders pages and hands back their final HTML.
//
// A Browser is opened once per run; the Session it returns must be closed on
// every path, so callers use it as
//
//	session, err := b.Open(ctx)
//	if err != nil { ... }
//	defer session.Close()
package browser

import (
	"context"
	"errors"
)

// ErrSelectorNotFound is returned when the awaited element never appears.
var ErrSelectorNotFound = errors.New("browser: selector not found")

// Browser acquires rendering sessions.
type Browser interface {
	Open(ctx context.Context) (Session, error)
}

// Session renders pages until closed.
type Session interface {
	// Render loads url, waits until selector matches, and returns the page HTML.
	Render(ctx context.Context, url, selector string) (string, error)
	Close() error
}
