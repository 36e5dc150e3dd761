package cmd

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"car_scrooper/config"
	"car_scrooper/httputil"
	"car_scrooper/logging"
	"car_scrooper/scraper"
	"car_scrooper/storage"
)

// app holds what every pipeline command needs. Archive and publisher are
// only set up when configured.
type app struct {
	store   *storage.SQLiteStore
	archive *storage.PostgresStore
	orch    *scraper.Orchestrator
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logging.Infof("Loaded %d site configs", len(cfg.Sites))
	for _, id := range cfg.SiteIDs() {
		site := cfg.Sites[id]
		logging.Infof("  - %s (%s, %s handler)", site.Name, id, site.Handler)
	}
	logging.Infof("Proxy: %s", httputil.ProxyHost(&cfg.HTTP))

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	logging.Infof("SQLite database: %s", cfg.DBPath)

	a := &app{store: store}
	a.orch, err = scraper.NewOrchestrator(cfg, store)
	if err != nil {
		a.close()
		return nil, err
	}
	a.orch.SetOutput(os.Stdout)

	if cfg.Archive.DBURL != "" {
		archive, err := storage.NewPostgresStore(ctx, cfg.Archive.DBURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect archive: %w", err)
		}
		a.archive = archive
		a.orch.SetArchive(archive)
		logging.Infof("Offer archive: %s", maskConnectionString(cfg.Archive.DBURL))
	}

	if cfg.S3.Enabled() {
		publisher, err := storage.NewS3Publisher(ctx, cfg.S3)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("set up s3: %w", err)
		}
		a.orch.SetPublisher(publisher)
		for _, id := range cfg.SiteIDs() {
			logging.Infof("Reports for %s published at %s", id, publisher.PublicURL(publisher.Key(id, storage.OffersReportFile)))
		}
	}

	return a, nil
}

func (a *app) close() {
	if a.orch != nil {
		if err := a.orch.Close(); err != nil {
			logging.Warnf("Closing fetchers: %v", err)
		}
	}
	if a.archive != nil {
		a.archive.Close()
	}
	a.store.Close()
}

// maskConnectionString hides the password of a connection URL for logging.
func maskConnectionString(connStr string) string {
	u, err := url.Parse(connStr)
	if err != nil || u.User == nil {
		return connStr
	}
	return u.Redacted()
}

// sitesFor returns the requested site, or every site when siteID is empty.
func sitesFor(cfg *config.Config, siteID string) ([]string, error) {
	if siteID == "" {
		return cfg.SiteIDs(), nil
	}
	if _, ok := cfg.Sites[siteID]; !ok {
		return nil, fmt.Errorf("unknown site %q (configured: %v)", siteID, cfg.SiteIDs())
	}
	return []string{siteID}, nil
}
