package browser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tesouro-scraper/utils"
)

func TestStaticBrowserRender(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		switch r.URL.Path {
		case "/with-table":
			fmt.Fprintln(w, `<html><body><table id="rentabilidadeTable"><tr><td>x</td></tr></table></body></html>`)
		default:
			fmt.Fprintln(w, `<html><body><p>loading…</p></body></html>`)
		}
	}))
	defer ts.Close()

	b := NewStaticBrowser(5*time.Second, utils.NewDiscardLogger())
	session, err := b.Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer session.Close()

	html, err := session.Render(context.Background(), ts.URL+"/with-table", "#rentabilidadeTable")
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(html, `id="rentabilidadeTable"`) {
		t.Errorf("rendered HTML missing the table: %s", html)
	}

	_, err = session.Render(context.Background(), ts.URL+"/empty", "#rentabilidadeTable")
	if !errors.Is(err, ErrSelectorNotFound) {
		t.Errorf("Render without table: got %v, want ErrSelectorNotFound", err)
	}
}

func TestStaticBrowserCancelled(t *testing.T) {
	b := NewStaticBrowser(time.Second, utils.NewDiscardLogger())
	session, _ := b.Open(context.Background())
	defer session.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := session.Render(ctx, "http://127.0.0.1:1/", "table"); !errors.Is(err, context.Canceled) {
		t.Errorf("Render with cancelled ctx: got %v, want context.Canceled", err)
	}
}
