package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"tesouro-scraper/models"
)

// openStores returns every backend that can run in this environment.
func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()

	stores := map[string]Store{"memory": NewMemoryStore()}

	sq, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	stores["sqlite"] = sq

	if dsn := os.Getenv("POSTGRES_TEST_DSN"); dsn != "" {
		pg, err := OpenPostgres(ctx, dsn)
		if err != nil {
			t.Fatalf("OpenPostgres: %v", err)
		}
		if _, err := pg.db.ExecContext(ctx, "DELETE FROM investment_details; DELETE FROM investments"); err != nil {
			t.Fatalf("reset postgres: %v", err)
		}
		stores["postgres"] = pg
	}

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})
	return stores
}

func investmentFields(slug string, at time.Time) Fields {
	return Fields{"title": "Tesouro " + slug, "slug": slug, "created_at": at, "updated_at": at}
}

func TestStoreSetFindCount(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 9, 8, 11, 52, 14, 0, time.UTC)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ref, err := s.FindOne(ctx, models.InvestmentsCollection, "slug", "tesouro-selic-2029")
			if err != nil {
				t.Fatalf("FindOne on empty store: %v", err)
			}
			if ref != nil {
				t.Fatalf("FindOne on empty store: got %v, want nil", ref)
			}

			inv := s.NewRef(models.InvestmentsCollection)
			detail := s.NewRef(models.InvestmentDetailsCollection)
			if inv.ID == "" || inv.ID == detail.ID {
				t.Fatalf("NewRef ids not unique: %q %q", inv.ID, detail.ID)
			}

			b := s.Batch()
			b.Set(inv, investmentFields("tesouro-selic-2029", now))
			b.Set(detail, Fields{
				"investment_id":      inv.ID,
				"minimum_investment": "R$ 161,38",
				"created_at":         now,
				"extraction_date":    now,
			})
			if b.Len() != 2 {
				t.Errorf("Len: got %d, want 2", b.Len())
			}
			if err := b.Commit(ctx); err != nil {
				t.Fatalf("Commit: %v", err)
			}

			ref, err = s.FindOne(ctx, models.InvestmentsCollection, "slug", "tesouro-selic-2029")
			if err != nil || ref == nil {
				t.Fatalf("FindOne after commit: ref=%v err=%v", ref, err)
			}
			if ref.ID != inv.ID {
				t.Errorf("FindOne id: got %q, want %q", ref.ID, inv.ID)
			}

			for coll, want := range map[string]int{
				models.InvestmentsCollection:       1,
				models.InvestmentDetailsCollection: 1,
			} {
				n, err := s.Count(ctx, coll)
				if err != nil {
					t.Fatalf("Count(%s): %v", coll, err)
				}
				if n != want {
					t.Errorf("Count(%s): got %d, want %d", coll, n, want)
				}
			}
		})
	}
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2025, 9, 8, 10, 0, 0, 0, time.UTC)
	later := created.Add(24 * time.Hour)

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			ref := s.NewRef(models.InvestmentsCollection)
			b := s.Batch()
			b.Set(ref, investmentFields("tesouro-ipca-2035", created))
			if err := b.Commit(ctx); err != nil {
				t.Fatalf("Commit set: %v", err)
			}

			b = s.Batch()
			b.Update(ref, Fields{"updated_at": later})
			if err := b.Commit(ctx); err != nil {
				t.Fatalf("Commit update: %v", err)
			}

			missing := s.NewRef(models.InvestmentsCollection)
			b = s.Batch()
			b.Update(missing, Fields{"updated_at": later})
			if err := b.Commit(ctx); err == nil {
				t.Error("updating a missing document should fail the batch")
			}
		})
	}
}

func TestStoreBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			b := s.Batch()
			good := s.NewRef(models.InvestmentsCollection)
			b.Set(good, investmentFields("tesouro-prefixado-2027", now))
			// The second op references a document that does not exist, so the
			// whole batch must be rejected.
			b.Update(s.NewRef(models.InvestmentsCollection), Fields{"updated_at": now})

			if err := b.Commit(ctx); err == nil {
				t.Fatal("expected Commit to fail")
			}

			n, err := s.Count(ctx, models.InvestmentsCollection)
			if err != nil {
				t.Fatalf("Count: %v", err)
			}
			if n != 0 {
				t.Errorf("Count after failed batch: got %d, want 0", n)
			}
		})
	}
}

func TestStoreRejectsUnknownFields(t *testing.T) {
	ctx := context.Background()

	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.FindOne(ctx, models.InvestmentsCollection, "title; DROP TABLE investments", "x"); !errors.Is(err, ErrUnknownField) {
				t.Errorf("FindOne bad field: got %v, want ErrUnknownField", err)
			}
			if _, err := s.FindOne(ctx, "users", "id", "x"); !errors.Is(err, ErrUnknownCollection) {
				t.Errorf("FindOne bad collection: got %v, want ErrUnknownCollection", err)
			}

			b := s.Batch()
			b.Set(s.NewRef(models.InvestmentsCollection), Fields{"colour": "blue"})
			if err := b.Commit(ctx); !errors.Is(err, ErrUnknownField) {
				t.Errorf("Commit bad field: got %v, want ErrUnknownField", err)
			}
		})
	}
}

func TestSQLiteDuplicateSlugFirstWins(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "dup.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	first := time.Now().UTC()
	older := s.NewRef(models.InvestmentsCollection)
	b := s.Batch()
	b.Set(older, investmentFields("dup", first))
	b.Set(s.NewRef(models.InvestmentsCollection), investmentFields("dup", first.Add(time.Hour)))
	if err := b.Commit(ctx); err != nil {
		t.Fatalf("Commit duplicate slugs: %v", err)
	}

	ref, err := s.FindOne(ctx, models.InvestmentsCollection, "slug", "dup")
	if err != nil || ref == nil {
		t.Fatalf("FindOne: got %v, %v", ref, err)
	}
	if ref.ID != older.ID {
		t.Errorf("FindOne: got %s, want the oldest document %s", ref.ID, older.ID)
	}
}

func TestMemoryStoreFailCommit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.FailCommit = errors.New("unavailable")

	b := s.Batch()
	b.Set(s.NewRef(models.InvestmentsCollection), investmentFields("a", time.Now()))
	if err := b.Commit(ctx); !errors.Is(err, s.FailCommit) {
		t.Errorf("Commit: got %v, want wrapped FailCommit", err)
	}
	if n, _ := s.Count(ctx, models.InvestmentsCollection); n != 0 {
		t.Errorf("Count: got %d, want 0", n)
	}
}

func TestSnapshotWriter(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	w, err := NewSnapshotWriter(dir)
	if err != nil {
		t.Fatalf("NewSnapshotWriter: %v", err)
	}
	w.now = func() time.Time { return time.Date(2025, 9, 8, 11, 52, 14, 0, time.UTC) }

	path, err := w.WriteRaw([]*models.RawRow{
		{Title: "Tesouro Selic 2029", MinimumInvestment: "R$ 161,38", AnnualYield: "SELIC + 0,0915%", DueDate: "01/03/2029"},
		nil,
	})
	if err != nil {
		t.Fatalf("WriteRaw: %v", err)
	}
	if filepath.Base(path) != "data-20250908_115214.csv" {
		t.Errorf("path: got %q", path)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	want := "titulo,investimento_minimo,rendimento_anual,vencimento,data_extracao\n"
	if got := string(content[:len(want)]); got != want {
		t.Errorf("header: got %q, want %q", got, want)
	}
}
