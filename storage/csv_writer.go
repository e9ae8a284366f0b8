package storage

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"tesouro-scraper/models"
)

// SnapshotWriter writes each run's raw rows to a timestamped CSV file
// under dir. It is safe for concurrent use.
type SnapshotWriter struct {
	mu  sync.Mutex
	dir string
	now func() time.Time
}

// NewSnapshotWriter creates dir if needed and returns a writer for it.
func NewSnapshotWriter(dir string) (*SnapshotWriter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("csv: create output dir: %w", err)
	}
	return &SnapshotWriter{dir: dir, now: time.Now}, nil
}

// WriteRaw writes rows to data-YYYYmmdd_HHMMSS.csv and returns the path.
func (c *SnapshotWriter) WriteRaw(rows []*models.RawRow) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := filepath.Join(c.dir, fmt.Sprintf("data-%s.csv", c.now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("csv: create file %q: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{
		"titulo", "investimento_minimo", "rendimento_anual", "vencimento", "data_extracao",
	}); err != nil {
		return "", fmt.Errorf("csv: write header: %w", err)
	}

	for _, r := range rows {
		if r == nil {
			continue
		}
		row := []string{
			r.Title,
			r.MinimumInvestment,
			r.AnnualYield,
			r.DueDate,
			r.ExtractedAt.Format(time.RFC3339Nano),
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("csv: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("csv: flush: %w", err)
	}
	return path, nil
}
