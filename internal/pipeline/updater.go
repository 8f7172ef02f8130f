package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pricehawk-th/pricehawk/internal/models"
	"github.com/pricehawk-th/pricehawk/internal/ratelimit"
)

// scraper fetches, extracts and persists one product page. The scrape
// service with its store attached satisfies this, so the updater itself
// never writes product rows.
type scraper interface {
	ScrapeProduct(ctx context.Context, pageURL string) (*models.ScrapedProduct, error)
}

type productSource interface {
	ListByRetailer(ctx context.Context, retailerID string, limit int) ([]models.Product, error)
}

type runRecorder interface {
	Create(ctx context.Context, totalProducts int) (*models.UpdateRun, error)
	UpdateProgress(ctx context.Context, runID int64, checked, changed, failed int) error
	Finish(ctx context.Context, runID int64, status string, checked, changed, failed int) error
}

// RetailerConfig overrides pacing for one retailer, or pulls it from a
// run entirely.
type RetailerConfig struct {
	MinDelay time.Duration
	MaxDelay time.Duration
	Disabled bool
}

// RunSummary is the merged outcome of one update run.
type RunSummary struct {
	RunID    int64         `json:"run_id"`
	Status   string        `json:"status"`
	Total    int           `json:"total_products"`
	Checked  int           `json:"checked_count"`
	Changed  int           `json:"changed_count"`
	Failed   int           `json:"failed_count"`
	Duration time.Duration `json:"duration"`
}

// Updater walks every stored product and re-checks its price. One worker
// per retailer so no store ever sees parallel requests from us, each
// worker paced by its own adaptive limiter.
type Updater struct {
	scraper  scraper
	products productSource
	runs     runRecorder
	logger   *slog.Logger

	// Retailers filters the run; empty means all known retailers.
	Retailers []string
	// Overrides adjusts pacing per retailer and can disable one.
	Overrides map[string]RetailerConfig

	MaxWorkers   int
	CatalogLimit int
	MinDelay     time.Duration
	MaxDelay     time.Duration
}

func NewUpdater(scraper scraper, products productSource, runs runRecorder, logger *slog.Logger) *Updater {
	if logger == nil {
		logger = slog.Default().With("component", "price_updater")
	}
	return &Updater{
		scraper:    scraper,
		products:   products,
		runs:       runs,
		logger:     logger,
		MaxWorkers: 6,
		MinDelay:   3 * time.Second,
		MaxDelay:   8 * time.Second,
	}
}

// Run executes one full update pass and records it in update_runs.
// Per-product failures are counted, never fatal; only a cancelled
// context or a bookkeeping failure ends the run early.
func (u *Updater) Run(ctx context.Context) (*RunSummary, error) {
	start := time.Now()

	work, total, err := u.loadWork(ctx)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		u.logger.Info("no products to update")
		return &RunSummary{Status: models.RunStatusCompleted}, nil
	}

	run, err := u.runs.Create(ctx, total)
	if err != nil {
		return nil, fmt.Errorf("failed to create update run: %w", err)
	}

	u.logger.Info("price update run started",
		"run_id", run.ID,
		"total_products", total,
		"retailers", len(work))

	tally := &progressTally{}

	maxWorkers := u.MaxWorkers
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	sem := make(chan struct{}, maxWorkers)

	var wg sync.WaitGroup
	for retailerID, items := range work {
		wg.Add(1)
		go func(retailerID string, items []models.Product) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			u.updateRetailer(ctx, run.ID, retailerID, items, tally)
		}(retailerID, items)
	}
	wg.Wait()

	checked, changed, failed := tally.snapshot()

	status := models.RunStatusCompleted
	finishCtx := ctx
	if ctx.Err() != nil {
		status = models.RunStatusFailed
		// The run context is gone; give the final bookkeeping its own.
		var cancel context.CancelFunc
		finishCtx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
	}

	if err := u.runs.Finish(finishCtx, run.ID, status, checked, changed, failed); err != nil {
		u.logger.Error("failed to finish update run", "run_id", run.ID, "error", err)
	}

	summary := &RunSummary{
		RunID:    run.ID,
		Status:   status,
		Total:    total,
		Checked:  checked,
		Changed:  changed,
		Failed:   failed,
		Duration: time.Since(start),
	}

	u.logger.Info("price update run finished",
		"run_id", run.ID,
		"status", status,
		"checked", checked,
		"changed", changed,
		"failed", failed,
		"duration", summary.Duration.Round(time.Second).String())

	return summary, nil
}

func (u *Updater) loadWork(ctx context.Context) (map[string][]models.Product, int, error) {
	work := make(map[string][]models.Product)
	total := 0

	for _, retailerID := range u.targetRetailers() {
		products, err := u.products.ListByRetailer(ctx, retailerID, u.CatalogLimit)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load products for %s: %w", retailerID, err)
		}
		if len(products) == 0 {
			continue
		}
		work[retailerID] = products
		total += len(products)
	}

	return work, total, nil
}

func (u *Updater) targetRetailers() []string {
	if len(u.Retailers) == 0 {
		out := make([]string, 0, len(models.KnownRetailers))
		for _, r := range models.KnownRetailers {
			if !u.retailerDisabled(r.ID) {
				out = append(out, r.ID)
			}
		}
		return out
	}

	out := make([]string, 0, len(u.Retailers))
	for _, id := range u.Retailers {
		if _, ok := models.RetailerByID(id); !ok {
			u.logger.Warn("skipping unknown retailer", "retailer_id", id)
			continue
		}
		if u.retailerDisabled(id) {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (u *Updater) retailerDisabled(retailerID string) bool {
	o, ok := u.Overrides[retailerID]
	return ok && o.Disabled
}

func (u *Updater) delaysFor(retailerID string) (time.Duration, time.Duration) {
	min, max := u.MinDelay, u.MaxDelay
	if o, ok := u.Overrides[retailerID]; ok {
		if o.MinDelay > 0 {
			min = o.MinDelay
		}
		if o.MaxDelay > 0 {
			max = o.MaxDelay
		}
	}
	if max < min {
		max = min
	}
	return min, max
}

func (u *Updater) updateRetailer(ctx context.Context, runID int64, retailerID string, items []models.Product, tally *progressTally) {
	minDelay, maxDelay := u.delaysFor(retailerID)
	limiter := ratelimit.NewAdaptiveRateLimiter(minDelay, maxDelay)
	logger := u.logger.With("retailer_id", retailerID)

	logger.Info("retailer update started", "products", len(items))

	for i := range items {
		product := &items[i]

		if err := limiter.Wait(ctx); err != nil {
			logger.Warn("retailer update aborted", "remaining", len(items)-i)
			return
		}

		scraped, err := u.scraper.ScrapeProduct(ctx, product.Link)
		if err != nil {
			if ctx.Err() != nil {
				logger.Warn("retailer update aborted", "remaining", len(items)-i)
				return
			}
			limiter.RecordError()
			logger.Error("price check failed", "sku", product.SKU, "error", err)
			checked, changed, failed := tally.fail()
			u.report(ctx, runID, checked, changed, failed)
			continue
		}

		limiter.RecordSuccess()
		moved := scraped.CurrentPrice != nil &&
			(product.CurrentPrice == nil || *product.CurrentPrice != *scraped.CurrentPrice)
		if moved {
			logger.Info("price changed", "sku", product.SKU, "new_price", *scraped.CurrentPrice)
		}

		checked, changed, failed := tally.check(moved)
		u.report(ctx, runID, checked, changed, failed)
	}

	min, max := limiter.Delays()
	logger.Info("retailer update finished",
		"final_min_delay", min.String(),
		"final_max_delay", max.String())
}

func (u *Updater) report(ctx context.Context, runID int64, checked, changed, failed int) {
	if err := u.runs.UpdateProgress(ctx, runID, checked, changed, failed); err != nil {
		u.logger.Debug("failed to record progress", "run_id", runID, "error", err)
	}
}

// progressTally merges counts from the retailer workers.
type progressTally struct {
	mu      sync.Mutex
	checked int
	changed int
	failed  int
}

func (t *progressTally) check(changed bool) (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.checked++
	if changed {
		t.changed++
	}
	return t.checked, t.changed, t.failed
}

func (t *progressTally) fail() (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.failed++
	return t.checked, t.changed, t.failed
}

func (t *progressTally) snapshot() (int, int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.checked, t.changed, t.failed
}
