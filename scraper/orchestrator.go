package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"car_scrooper/config"
	"car_scrooper/logging"
	"car_scrooper/models"
	"car_scrooper/report"
	"car_scrooper/services"
	"car_scrooper/storage"
)

// OfferArchive keeps offer history beyond the two snapshot generations.
type OfferArchive interface {
	ArchiveSnapshot(ctx context.Context, siteID string, snapshot models.Snapshot, seenAt time.Time) (int, error)
	MarkSold(ctx context.Context, siteID string, sold models.SoldSet, soldAt time.Time) (int, error)
	RecordRun(ctx context.Context, run *models.CrawlRun) error
}

// ReportPublisher copies finished report files somewhere public.
type ReportPublisher interface {
	PublishDir(ctx context.Context, siteID, dir string, files []string) ([]string, error)
}

const summaryTopModels = 10

// Orchestrator runs the full pipeline per site: crawl, snapshot rotation,
// dealer directory, sold detection, price totals, then the optional archive
// and publishing steps. Runs are serialized.
type Orchestrator struct {
	cfg       *config.Config
	store     *storage.SQLiteStore
	archive   OfferArchive
	publisher ReportPublisher
	fetchers  map[string]Fetcher
	now       func() time.Time
	out       io.Writer
	paused    atomic.Bool

	mu sync.Mutex
}

// NewOrchestrator builds a fetcher for every configured site. store may be
// nil, in which case runs are only logged.
func NewOrchestrator(cfg *config.Config, store *storage.SQLiteStore) (*Orchestrator, error) {
	fetchers := make(map[string]Fetcher)
	for id, siteCfg := range cfg.Sites {
		fetcher, err := NewFetcher(siteCfg, &cfg.HTTP)
		if err != nil {
			return nil, err
		}
		fetchers[id] = fetcher
		if siteCfg.PageLevelPrice {
			logging.Warnf("Site %s reads one price per page and applies it to every offer on that page", id)
		}
	}

	return &Orchestrator{
		cfg:      cfg,
		store:    store,
		fetchers: fetchers,
		now:      time.Now,
	}, nil
}

func (o *Orchestrator) SetFetcher(siteID string, fetcher Fetcher) {
	o.fetchers[siteID] = fetcher
}

func (o *Orchestrator) SetArchive(archive OfferArchive) {
	o.archive = archive
}

func (o *Orchestrator) SetPublisher(publisher ReportPublisher) {
	o.publisher = publisher
}

func (o *Orchestrator) SetClock(now func() time.Time) {
	o.now = now
}

// SetOutput enables the console summary printed after every run.
func (o *Orchestrator) SetOutput(w io.Writer) {
	o.out = w
}

// RunAll runs every site in id order. A failing site does not stop the rest;
// the first error is returned once all sites ran.
func (o *Orchestrator) RunAll(ctx context.Context) error {
	if o.paused.Load() {
		logging.Infof("Crawler is paused, skipping run")
		return nil
	}

	var firstErr error
	for _, siteID := range o.cfg.SiteIDs() {
		if _, err := o.RunSite(ctx, siteID); err != nil {
			logging.Errorf("Error running site %s: %v", siteID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return firstErr
}

// RunSite runs the pipeline for one site and returns the finished run record.
// The record is returned on failure too, with status failed.
func (o *Orchestrator) RunSite(ctx context.Context, siteID string) (*models.CrawlRun, error) {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return nil, fmt.Errorf("unknown site: %s", siteID)
	}
	fetcher, ok := o.fetchers[siteID]
	if !ok {
		return nil, fmt.Errorf("no fetcher for site: %s", siteID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	run := &models.CrawlRun{
		RunUUID:   uuid.New(),
		SiteID:    siteID,
		StartedAt: o.now(),
		Status:    models.RunStatusRunning,
	}
	if o.store != nil {
		if err := o.store.CreateRun(run); err != nil {
			return nil, fmt.Errorf("create run: %w", err)
		}
	}
	o.log(run, models.LogLevelInfo, "Run %s for %s starts at %s", run.RunUUID, site.Name, run.StartedAt.Format(models.TimestampLayout))

	summary := report.Summary{Run: run, PriceSuffix: site.PriceSuffix}
	defer o.finish(ctx, run, &summary)

	err := o.runPipeline(ctx, site, fetcher, run, &summary)
	if err != nil {
		run.Status = models.RunStatusFailed
		run.ErrorsCount++
		run.ErrorMessage = err.Error()
		o.log(run, models.LogLevelError, "Run failed: %v", err)
		return run, err
	}

	run.Status = models.RunStatusCompleted
	o.log(run, models.LogLevelInfo, "Completed: %d dealers, %d offers, %d sold", run.DealersFound, run.OffersFound, run.OffersSold)
	return run, nil
}

func (o *Orchestrator) runPipeline(ctx context.Context, site *config.SiteConfig, fetcher Fetcher, run *models.CrawlRun, summary *report.Summary) error {
	snapshots, err := storage.NewSnapshotStore(o.siteDir(site.ID))
	if err != nil {
		return err
	}

	result, err := NewCrawler(site, fetcher, o.now).Crawl(ctx)
	if err != nil {
		return err
	}
	run.PagesVisited = result.Stats.PagesVisited
	run.DealersFound = len(result.Dealers)
	run.OffersFound = len(result.Snapshot)
	run.ErrorsCount = result.Stats.DealersDropped
	summary.ListingPages = result.Stats.ListingPages
	summary.Dropped = result.Stats.DealersDropped
	summary.Skipped = result.Stats.OffersSkipped
	if result.Stats.DealersDropped > 0 {
		o.log(run, models.LogLevelWarn, "%d dealers dropped", result.Stats.DealersDropped)
	}

	err = stage("Saving all data into JSON file", func() error {
		if err := snapshots.Rotate(); err != nil {
			return err
		}
		return snapshots.SaveCurrent(result.Snapshot)
	})
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	err = snapshots.WriteFile(storage.DealerDirectoryFile, func(w io.Writer) error {
		return report.WriteDealerDirectory(w, site.DealerListTitle, result.Dealers)
	})
	if err != nil {
		return fmt.Errorf("dealer directory: %w", err)
	}

	previous, err := snapshots.LoadPrevious()
	if err != nil && !errors.Is(err, storage.ErrNoSnapshot) {
		return fmt.Errorf("load previous snapshot: %w", err)
	}

	diff, totals, reportErr := o.writeReports(snapshots, site, result.Snapshot, previous)
	if diff != nil {
		run.OffersSold = len(diff.Sold)
	}
	summary.Totals = totals

	// Archive and publish run even when totals failed.
	o.archiveRun(ctx, run, result.Snapshot, diff)
	summary.Files = o.publish(ctx, run, snapshots)

	return reportErr
}

// RenderReports rebuilds the sold and totals reports from the snapshots on
// disk without crawling.
func (o *Orchestrator) RenderReports(ctx context.Context, siteID string) error {
	site, ok := o.cfg.Sites[siteID]
	if !ok {
		return fmt.Errorf("unknown site: %s", siteID)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	snapshots, err := storage.NewSnapshotStore(o.siteDir(siteID))
	if err != nil {
		return err
	}

	current, err := snapshots.LoadCurrent()
	if err != nil {
		return fmt.Errorf("load current snapshot: %w", err)
	}
	previous, err := snapshots.LoadPrevious()
	if err != nil && !errors.Is(err, storage.ErrNoSnapshot) {
		return fmt.Errorf("load previous snapshot: %w", err)
	}

	if _, _, err := o.writeReports(snapshots, site, current, previous); err != nil {
		return err
	}
	o.publish(ctx, &models.CrawlRun{SiteID: siteID}, snapshots)
	return nil
}

// writeReports writes the sold report when previous is non-nil, then the
// totals. A price that cannot be parsed removes any totals files on disk.
func (o *Orchestrator) writeReports(snapshots *storage.SnapshotStore, site *config.SiteConfig, current, previous models.Snapshot) (*models.DiffResult, models.AggregateTotals, error) {
	var diff *models.DiffResult
	if previous == nil {
		logging.Infof("No previous snapshot for %s, skipping sold detection", site.ID)
	} else {
		err := stage("Detecting which car was sold", func() error {
			result := services.Diff(previous, current, o.now())
			diff = &result
			if err := snapshots.WriteJSON(storage.SoldReportFile, result.Sold); err != nil {
				return err
			}
			return snapshots.WriteFile(storage.OffersReportFile, func(w io.Writer) error {
				return report.RenderOffers(w, result)
			})
		})
		if err != nil {
			return diff, nil, fmt.Errorf("sold report: %w", err)
		}
	}

	var totals models.AggregateTotals
	err := stage("Summing up car prices for relevant car model", func() error {
		var err error
		totals, err = services.Aggregate(current, site.PriceSuffix)
		if err != nil {
			return err
		}
		if err := snapshots.WriteJSON(storage.TotalsFile, totals); err != nil {
			return err
		}
		return snapshots.WriteFile(storage.TotalsReportFile, func(w io.Writer) error {
			return report.RenderTotals(w, totals, site.PriceSuffix)
		})
	})
	if err != nil {
		// Totals of an earlier snapshot must not outlive it.
		if rmErr := snapshots.Remove(storage.TotalsFile, storage.TotalsReportFile); rmErr != nil {
			logging.Warnf("Removing stale totals for %s: %v", site.ID, rmErr)
		}
		return diff, nil, fmt.Errorf("aggregate: %w", err)
	}
	return diff, totals, nil
}

func (o *Orchestrator) archiveRun(ctx context.Context, run *models.CrawlRun, snapshot models.Snapshot, diff *models.DiffResult) {
	if o.archive == nil {
		return
	}

	now := o.now()
	n, err := o.archive.ArchiveSnapshot(ctx, run.SiteID, snapshot, now)
	if err != nil {
		o.log(run, models.LogLevelWarn, "Archive failed after %d offers: %v", n, err)
		return
	}
	if diff == nil {
		return
	}
	sold, err := o.archive.MarkSold(ctx, run.SiteID, diff.Sold, now)
	if err != nil {
		o.log(run, models.LogLevelWarn, "Archive sold update failed: %v", err)
		return
	}
	o.log(run, models.LogLevelDebug, "Archived %d offers, %d newly sold", n, sold)
}

func (o *Orchestrator) publish(ctx context.Context, run *models.CrawlRun, snapshots *storage.SnapshotStore) []string {
	if o.publisher == nil {
		return nil
	}

	files, err := snapshots.Files()
	if err != nil {
		o.log(run, models.LogLevelWarn, "Listing reports failed: %v", err)
		return nil
	}
	keys, err := o.publisher.PublishDir(ctx, run.SiteID, snapshots.Dir(), files)
	if err != nil {
		o.log(run, models.LogLevelWarn, "Publishing reports failed after %d files: %v", len(keys), err)
	}
	return keys
}

func (o *Orchestrator) finish(ctx context.Context, run *models.CrawlRun, summary *report.Summary) {
	finished := o.now()
	run.FinishedAt = &finished

	if o.store != nil {
		if err := o.store.UpdateRun(run); err != nil {
			logging.Warnf("Failed to update run %d: %v", run.ID, err)
		}
		if err := o.store.UpdateSiteStats(run.SiteID); err != nil {
			logging.Warnf("Failed to update stats for %s: %v", run.SiteID, err)
		}
	}
	if o.archive != nil {
		if err := o.archive.RecordRun(ctx, run); err != nil {
			logging.Warnf("Failed to record run in archive: %v", err)
		}
	}

	o.log(run, models.LogLevelInfo, "Run ended at %s after %s", finished.Format(models.TimestampLayout), run.Duration().Round(time.Millisecond))
	if o.out != nil {
		report.PrintSummary(o.out, *summary, summaryTopModels)
	}
}

func (o *Orchestrator) HandleCommand(ctx context.Context, cmd *models.Command) error {
	params, err := cmd.ParseParams()
	if err != nil {
		return err
	}

	switch cmd.Command {
	case models.CmdScrapeNow:
		return o.RunAll(ctx)
	case models.CmdScrapeSite:
		if params.Site == "" {
			return o.RunAll(ctx)
		}
		_, err := o.RunSite(ctx, params.Site)
		return err
	case models.CmdPause:
		o.paused.Store(true)
		logging.Infof("Crawler paused")
	case models.CmdResume:
		o.paused.Store(false)
		logging.Infof("Crawler resumed")
	default:
		return fmt.Errorf("unknown command %q", cmd.Command)
	}
	return nil
}

func (o *Orchestrator) IsPaused() bool {
	return o.paused.Load()
}

// Close releases fetchers that hold resources, such as a browser.
func (o *Orchestrator) Close() error {
	var errs []error
	for id, fetcher := range o.fetchers {
		if c, ok := fetcher.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close fetcher %s: %w", id, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) siteDir(siteID string) string {
	return filepath.Join(o.cfg.ReportsDir, siteID)
}

// log writes to the process log and, for a persisted run, to crawl_logs.
func (o *Orchestrator) log(run *models.CrawlRun, level models.LogLevel, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	logging.Log(level, fmt.Sprintf("%s: %s", run.SiteID, msg))
	if o.store != nil && run.ID != 0 && logging.Enabled(level) {
		if err := o.store.Log(&run.ID, level, msg, run.SiteID); err != nil {
			logging.Warnf("Failed to persist log line: %v", err)
		}
	}
}
