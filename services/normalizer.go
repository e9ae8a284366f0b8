package services

import (
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"tesouro-scraper/models"
	"tesouro-scraper/utils"
)

// dueDateLayout is day/month/year; single-digit parts are accepted.
const dueDateLayout = "2/1/2006"

var (
	// slugSepRegexp matches every run of characters a slug cannot contain
	slugSepRegexp = regexp.MustCompile(`[^a-z0-9]+`)

	foldMarks = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
)

// FieldIssue records a field that could not be normalised and was set to nil.
type FieldIssue struct {
	Field string
	Value string
	Err   error
}

func (i FieldIssue) String() string {
	return fmt.Sprintf("%s=%q: %v", i.Field, i.Value, i.Err)
}

// RowResult is the outcome of normalising a single raw row.
type RowResult struct {
	Record *models.CanonicalRecord
	Issues []FieldIssue
}

// Normalizer transforms RawRows into CanonicalRecords.
type Normalizer struct {
	logger *utils.Logger
}

// NewNormalizer creates a Normalizer with the given logger.
func NewNormalizer(logger *utils.Logger) *Normalizer {
	return &Normalizer{logger: logger}
}

// Normalize processes raw rows and returns one record per non-nil row. A bad
// field never drops its row; it is logged and left nil.
func (n *Normalizer) Normalize(raw []*models.RawRow) []*models.CanonicalRecord {
	result := make([]*models.CanonicalRecord, 0, len(raw))

	for i, r := range raw {
		if r == nil {
			n.logger.Warn("[normalizer] Row %d is empty, skipping", i+1)
			continue
		}

		res := n.NormalizeRow(r)
		for _, issue := range res.Issues {
			n.logger.Warn("[normalizer] Row %d (%s): %s", i+1, r.Title, issue)
		}
		result = append(result, res.Record)
	}

	n.logger.Info("[normalizer] Normalized %d → %d records", len(raw), len(result))
	return result
}

// NormalizeRow maps one raw row to a canonical record.
func (n *Normalizer) NormalizeRow(r *models.RawRow) RowResult {
	var res RowResult

	title := optional(r.Title)
	var slug *string
	if title != nil {
		slug = optional(Slug(*title))
		if slug == nil {
			res.Issues = append(res.Issues, FieldIssue{Field: "slug", Value: *title, Err: errEmptySlug})
		}
	}

	dueDate, err := ParseDueDate(r.DueDate)
	if err != nil {
		res.Issues = append(res.Issues, FieldIssue{Field: "due_date", Value: r.DueDate, Err: err})
	}

	res.Record = &models.CanonicalRecord{
		Title:             title,
		Slug:              slug,
		MinimumInvestment: optional(r.MinimumInvestment),
		AnnualYield:       optional(r.AnnualYield),
		DueDate:           dueDate,
		ExtractionDate:    r.ExtractedAt,
	}
	return res
}

var errEmptySlug = fmt.Errorf("title has no ASCII letters or digits")

// Slug derives the URL-safe natural key of a title: accents are folded to
// ASCII, everything is lowercased and runs of other characters become "-".
//
//	Slug("Tesouro IPCA+ 2035") == "tesouro-ipca-2035"
func Slug(title string) string {
	folded, _, err := transform.String(foldMarks, title)
	if err != nil {
		folded = title
	}
	folded = strings.Map(func(r rune) rune {
		if r > unicode.MaxASCII {
			return -1
		}
		return r
	}, folded)

	s := slugSepRegexp.ReplaceAllString(strings.ToLower(folded), "-")
	return strings.Trim(s, "-")
}

// ParseDueDate converts a DD/MM/YYYY date to ISO 8601 (YYYY-MM-DD). Empty
// input yields nil with no error; unparsable input yields nil and the error.
func ParseDueDate(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dueDateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("parse due date: %w", err)
	}
	iso := t.Format(time.DateOnly)
	return &iso, nil
}

// optional trims s and returns nil when nothing is left.
func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
