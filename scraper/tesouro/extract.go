package tesouro

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"tesouro-scraper/models"
)

// ErrTableNotFound is returned by Extract when the page has no yield table.
var ErrTableNotFound = errors.New("tesouro: yield table not found")

// minCells is the narrowest row the yield table can produce.
const minCells = 4

// Extractor turns the yield table of a rendered page into raw rows.
type Extractor struct {
	TableID string
	Now     func() time.Time
}

// NewExtractor returns an Extractor for the table with the given id.
func NewExtractor(tableID string) *Extractor {
	return &Extractor{TableID: tableID, Now: time.Now}
}

// Extract parses page and returns one RawRow per data row that carries a
// minimum investment. It returns ErrTableNotFound, with no rows, when the
// table is missing.
func (e *Extractor) Extract(page string) ([]*models.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("tesouro: parse html: %w", err)
	}

	table := doc.Find("table#" + e.TableID).First()
	if table.Length() == 0 {
		return nil, ErrTableNotFound
	}

	var rows *goquery.Selection
	if hasExplicitBody(page, e.TableID) {
		rows = table.Find("tbody").First().Find("tr")
	} else {
		// No body section in the source: the first row is the header.
		rows = table.Find("tr")
		if rows.Length() > 1 {
			rows = rows.Slice(1, goquery.ToEnd)
		} else {
			rows = rows.Slice(0, 0)
		}
	}

	result := make([]*models.RawRow, 0, rows.Length())
	rows.Each(func(_ int, tr *goquery.Selection) {
		if row := e.rowFromCells(cellTexts(tr)); row != nil {
			result = append(result, row)
		}
	})
	return result, nil
}

// rowFromCells maps cell texts positionally. The column count differs
// between variants of the table, hence the fallbacks.
func (e *Extractor) rowFromCells(cells []string) *models.RawRow {
	if len(cells) < minCells {
		return nil
	}

	title := cells[1]
	minimum := cells[3]

	var annualYield, dueDate string
	if len(cells) > 4 {
		annualYield = cells[4]
	}
	if len(cells) > 5 {
		dueDate = cells[5]
	}

	if minimum == "" {
		return nil
	}

	return &models.RawRow{
		Title:             title,
		MinimumInvestment: minimum,
		AnnualYield:       annualYield,
		DueDate:           dueDate,
		ExtractedAt:       e.Now(),
	}
}

func cellTexts(tr *goquery.Selection) []string {
	cells := tr.Find("td, th")
	out := make([]string, 0, cells.Length())
	cells.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}

// hasExplicitBody reports whether the source markup of the table with id
// declares a <tbody> of its own. The HTML5 parser behind goquery inserts an
// implied tbody, so the parsed tree cannot answer this.
func hasExplicitBody(page, id string) bool {
	z := html.NewTokenizer(strings.NewReader(page))
	depth := 0 // table nesting depth inside the target table

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return false
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "table":
				if depth > 0 {
					depth++
				} else if attr(tok, "id") == id {
					depth = 1
				}
			case "tbody":
				if depth == 1 {
					return true
				}
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "table" && depth > 0 {
				depth--
				if depth == 0 {
					return false
				}
			}
		}
	}
}

func attr(tok html.Token, key string) string {
	for _, a := range tok.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
