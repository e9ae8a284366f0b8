package services

import (
	"regexp"
	"testing"
	"time"

	"tesouro-scraper/models"
	"tesouro-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.NewDiscardLogger() }

func strPtr(s string) *string { return &s }

func TestSlug(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Tesouro Selic 2029", "tesouro-selic-2029"},
		{"Tesouro IPCA+ 2035", "tesouro-ipca-2035"},
		{"Tesouro IPCA+ com Juros Semestrais 2040", "tesouro-ipca-com-juros-semestrais-2040"},
		{"Tesouro Educa+ 2030", "tesouro-educa-2030"},
		{"Título Préfixádo ção", "titulo-prefixado-cao"},
		{"  --Renda+ Aposentadoria Extra 2065--  ", "renda-aposentadoria-extra-2065"},
		{"ÀÉÎÕÜ", "aeiou"},
		{"!!!", ""},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Slug(tt.title); got != tt.want {
			t.Errorf("Slug(%q) = %q; want %q", tt.title, got, tt.want)
		}
	}
}

func TestSlugProperties(t *testing.T) {
	valid := regexp.MustCompile(`^([a-z0-9]+(-[a-z0-9]+)*)?$`)
	titles := []string{
		"Tesouro Prefixado com Juros Semestrais 2035",
		"Ação — Crédito & Débito!",
		"MIXED case TITLE",
		"über/straße, 2030",
		"日本 Tesouro 2040",
	}

	for _, title := range titles {
		s := Slug(title)
		if !valid.MatchString(s) {
			t.Errorf("Slug(%q) = %q is not lowercase ASCII with single inner separators", title, s)
		}
		if again := Slug(s); again != s {
			t.Errorf("Slug is not idempotent for %q: %q then %q", title, s, again)
		}
		if Slug(title) != s {
			t.Errorf("Slug(%q) is not deterministic", title)
		}
	}
}

func TestParseDueDate(t *testing.T) {
	tests := []struct {
		raw     string
		want    *string
		wantErr bool
	}{
		{"31/12/2025", strPtr("2025-12-31"), false},
		{"01/03/2029", strPtr("2029-03-01"), false},
		{"1/3/2029", strPtr("2029-03-01"), false},
		{" 15/05/2035 ", strPtr("2035-05-15"), false},
		{"", nil, false},
		{"   ", nil, false},
		{"not-a-date", nil, true},
		{"2025-12-31", nil, true},
		{"31/02/2025", nil, true},
	}

	for _, tt := range tests {
		got, err := ParseDueDate(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDueDate(%q) error = %v; wantErr %t", tt.raw, err, tt.wantErr)
		}
		switch {
		case got == nil && tt.want == nil:
		case got == nil || tt.want == nil:
			t.Errorf("ParseDueDate(%q) = %v; want %v", tt.raw, got, tt.want)
		case *got != *tt.want:
			t.Errorf("ParseDueDate(%q) = %q; want %q", tt.raw, *got, *tt.want)
		}
	}
}

func TestNormalizeRow(t *testing.T) {
	n := NewNormalizer(newTestLogger())
	at := time.Date(2025, 9, 8, 11, 52, 14, 0, time.UTC)

	res := n.NormalizeRow(&models.RawRow{
		Title:             "Tesouro Prefixado 2027",
		MinimumInvestment: "R$ 35,67",
		AnnualYield:       "13,50%",
		DueDate:           "01/01/2027",
		ExtractedAt:       at,
	})
	if len(res.Issues) != 0 {
		t.Errorf("Issues: got %v, want none", res.Issues)
	}
	rec := res.Record
	if rec.Slug == nil || *rec.Slug != "tesouro-prefixado-2027" {
		t.Errorf("Slug: got %v", rec.Slug)
	}
	if rec.MinimumInvestment == nil || *rec.MinimumInvestment != "R$ 35,67" {
		t.Errorf("MinimumInvestment: got %v", rec.MinimumInvestment)
	}
	if rec.DueDate == nil || *rec.DueDate != "2027-01-01" {
		t.Errorf("DueDate: got %v", rec.DueDate)
	}
	if !rec.ExtractionDate.Equal(at) {
		t.Errorf("ExtractionDate: got %v, want %v", rec.ExtractionDate, at)
	}
}

func TestNormalizeRowDegradesBadFields(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	res := n.NormalizeRow(&models.RawRow{
		Title:             "Tesouro Selic 2029",
		MinimumInvestment: "R$ 161,38",
		DueDate:           "amanhã",
	})
	if res.Record.DueDate != nil {
		t.Errorf("DueDate: got %q, want nil", *res.Record.DueDate)
	}
	if res.Record.AnnualYield != nil {
		t.Errorf("AnnualYield: got %q, want nil for empty text", *res.Record.AnnualYield)
	}
	if res.Record.Slug == nil {
		t.Error("Slug should survive a bad due date")
	}
	if len(res.Issues) != 1 || res.Issues[0].Field != "due_date" {
		t.Errorf("Issues: got %v, want one due_date issue", res.Issues)
	}
}

func TestNormalizeRowTitleAbsent(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	res := n.NormalizeRow(&models.RawRow{Title: "  ", MinimumInvestment: "R$ 1,00"})
	if res.Record.Title != nil || res.Record.Slug != nil {
		t.Errorf("Title/Slug: got %v/%v, want nil/nil", res.Record.Title, res.Record.Slug)
	}

	res = n.NormalizeRow(&models.RawRow{Title: "***", MinimumInvestment: "R$ 1,00"})
	if res.Record.Slug != nil {
		t.Errorf("Slug: got %q, want nil for a title without letters or digits", *res.Record.Slug)
	}
	if res.Record.HasSlug() {
		t.Error("HasSlug should be false")
	}
}

func TestNormalizeSkipsNilRows(t *testing.T) {
	n := NewNormalizer(newTestLogger())

	records := n.Normalize([]*models.RawRow{
		{Title: "Tesouro Selic 2029", MinimumInvestment: "R$ 161,38"},
		nil,
		{Title: "Tesouro IPCA+ 2035", MinimumInvestment: "R$ 40,12", DueDate: "bad"},
	})
	if len(records) != 2 {
		t.Fatalf("records: got %d, want 2", len(records))
	}

	if got := n.Normalize(nil); len(got) != 0 {
		t.Errorf("Normalize(nil): got %d records, want 0", len(got))
	}
}
