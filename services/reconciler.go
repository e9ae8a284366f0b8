package services

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"

	"tesouro-scraper/models"
	"tesouro-scraper/storage"
	"tesouro-scraper/utils"
)

// Reconciler upserts investments by slug and appends one detail per record.
type Reconciler struct {
	store  storage.Store
	logger *utils.Logger
	loc    *time.Location
	now    func() time.Time
	retry  *utils.RetryConfig

	// keys caches slug → investment id for slugs known to be committed.
	keys *cache.Cache
}

// NewReconciler creates a Reconciler that stamps documents in loc. A
// positive keyTTL enables the slug lookup cache.
func NewReconciler(store storage.Store, loc *time.Location, keyTTL time.Duration, logger *utils.Logger) *Reconciler {
	r := &Reconciler{
		store:  store,
		logger: logger,
		loc:    loc,
		now:    time.Now,
		retry: &utils.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   500 * time.Millisecond,
			Logger:      logger,
		},
	}
	if keyTTL > 0 {
		r.keys = cache.New(keyTTL, 2*keyTTL)
	}
	return r
}

// Reconcile stages every write for records in one batch and commits it.
// On commit failure nothing is persisted and the error is returned with a
// report whose Processed count is zero.
func (r *Reconciler) Reconcile(ctx context.Context, records []*models.CanonicalRecord) (*models.ReconciliationReport, error) {
	runTS := r.now().In(r.loc)
	report := &models.ReconciliationReport{RunTimestamp: runTS}

	batch := r.store.Batch()
	// Slugs first seen in this run; the store cannot return them until commit.
	staged := make(map[string]string)

	for i, rec := range records {
		if !rec.HasSlug() {
			r.logger.Warn("[reconciler] Record %d has no slug, skipping", i+1)
			report.Skipped++
			continue
		}
		slug := *rec.Slug

		id, found := staged[slug]
		if !found {
			id, found = r.lookup(ctx, slug, report)
		}

		if found {
			batch.Update(storage.Ref{Collection: models.InvestmentsCollection, ID: id}, storage.Fields{
				"updated_at": runTS,
			})
			report.Updated++
		} else {
			ref := r.store.NewRef(models.InvestmentsCollection)
			batch.Set(ref, investmentFields(rec, runTS))
			id = ref.ID
			staged[slug] = id
			report.Inserted++
		}

		batch.Set(r.store.NewRef(models.InvestmentDetailsCollection), detailFields(id, rec, runTS))
		report.Processed++
	}

	if batch.Len() == 0 {
		r.logger.Info("[reconciler] Nothing to write")
		return report, nil
	}

	if err := batch.Commit(ctx); err != nil {
		r.logger.Error("[reconciler] Batch of %d writes failed, nothing persisted: %v", batch.Len(), err)
		// A cached id may point at a row that no longer exists.
		if r.keys != nil {
			r.keys.Flush()
		}
		failed := &models.ReconciliationReport{RunTimestamp: runTS, Skipped: report.Skipped, LookupErrors: report.LookupErrors}
		return failed, fmt.Errorf("reconciler: commit: %w", err)
	}

	if r.keys != nil {
		for slug, id := range staged {
			r.keys.SetDefault(slug, id)
		}
	}

	r.logger.Info("[reconciler] Committed %d records (%d new, %d updated, %d skipped)",
		report.Processed, report.Inserted, report.Updated, report.Skipped)
	r.countCollections(ctx, report)
	return report, nil
}

// lookup resolves slug to an existing investment id. A lookup still failing
// after retries is logged and counted, and treated as not found.
func (r *Reconciler) lookup(ctx context.Context, slug string, report *models.ReconciliationReport) (string, bool) {
	if r.keys != nil {
		if id, ok := r.keys.Get(slug); ok {
			return id.(string), true
		}
	}

	var ref *storage.Ref
	err := r.retry.Do(ctx, "lookup "+slug, func(ctx context.Context) error {
		var err error
		ref, err = r.store.FindOne(ctx, models.InvestmentsCollection, "slug", slug)
		return err
	})
	if err != nil {
		r.logger.Error("[reconciler] Lookup of %q failed, treating as new: %v", slug, err)
		report.LookupErrors++
		return "", false
	}
	if ref == nil {
		return "", false
	}

	if r.keys != nil {
		r.keys.SetDefault(slug, ref.ID)
	}
	return ref.ID, true
}

func (r *Reconciler) countCollections(ctx context.Context, report *models.ReconciliationReport) {
	inv, err := r.store.Count(ctx, models.InvestmentsCollection)
	if err != nil {
		r.logger.Warn("[reconciler] Counting investments: %v", err)
		return
	}
	det, err := r.store.Count(ctx, models.InvestmentDetailsCollection)
	if err != nil {
		r.logger.Warn("[reconciler] Counting investment details: %v", err)
		return
	}
	report.InvestmentCount, report.DetailCount, report.CollectionCounted = inv, det, true
	r.logger.Info("[reconciler] Store now has %d investments and %d investment details", inv, det)
}

func investmentFields(rec *models.CanonicalRecord, ts time.Time) storage.Fields {
	return storage.Fields{
		"title":      text(rec.Title),
		"slug":       *rec.Slug,
		"created_at": ts,
		"updated_at": ts,
	}
}

func detailFields(investmentID string, rec *models.CanonicalRecord, ts time.Time) storage.Fields {
	var extraction any
	if !rec.ExtractionDate.IsZero() {
		extraction = rec.ExtractionDate
	}
	return storage.Fields{
		"investment_id":            investmentID,
		"minimum_investment":       nullable(rec.MinimumInvestment),
		"minimum_investment_value": ParseBRNumber(rec.MinimumInvestment),
		"annual_yield":             nullable(rec.AnnualYield),
		"annual_yield_value":       ParseBRNumber(rec.AnnualYield),
		"due_date":                 nullable(rec.DueDate),
		"extraction_date":          extraction,
		"created_at":               ts,
	}
}

// nullable unwraps p for the store, keeping nil as an untyped nil.
func nullable(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func text(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
