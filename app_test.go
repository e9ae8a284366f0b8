package main

import (
	"context"
	"testing"

	"tesouro-scraper/config"
	"tesouro-scraper/scraper/browser"
	"tesouro-scraper/storage"
	"tesouro-scraper/utils"
)

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	s, err := openStore(ctx, &config.Config{StoreDriver: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*storage.MemoryStore); !ok {
		t.Errorf("memory: got %T", s)
	}

	s, err = openStore(ctx, &config.Config{StoreDriver: "sqlite", SQLitePath: t.TempDir() + "/app.db"})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	s.Close()

	if _, err := openStore(ctx, &config.Config{StoreDriver: "mongo"}); err == nil {
		t.Error("unknown driver: want error")
	}
}

func TestNewBrowser(t *testing.T) {
	logger := utils.NewDiscardLogger()

	tests := []struct {
		renderer string
		want     string
		wantErr  bool
	}{
		{"chrome", "*browser.ChromeBrowser", false},
		{"static", "*browser.StaticBrowser", false},
		{"firefox", "", true},
	}

	for _, tt := range tests {
		b, err := newBrowser(&config.Config{Renderer: tt.renderer}, logger)
		if (err != nil) != tt.wantErr {
			t.Errorf("newBrowser(%q) error = %v; wantErr %t", tt.renderer, err, tt.wantErr)
			continue
		}
		switch b.(type) {
		case *browser.ChromeBrowser:
			if tt.want != "*browser.ChromeBrowser" {
				t.Errorf("newBrowser(%q) = %T", tt.renderer, b)
			}
		case *browser.StaticBrowser:
			if tt.want != "*browser.StaticBrowser" {
				t.Errorf("newBrowser(%q) = %T", tt.renderer, b)
			}
		}
	}
}
