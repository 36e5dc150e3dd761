package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"car_scrooper/models"
)

const archiveBatchSize = 500

// PostgresStore is the long-lived offer archive. Unlike the two snapshot
// generations on disk it remembers every offer ever seen and when it vanished.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 4
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS offers (
			site_id TEXT NOT NULL,
			offer_id TEXT NOT NULL,
			offer_link TEXT,
			car_name TEXT,
			dealer_name TEXT,
			offer_price TEXT,
			status TEXT NOT NULL DEFAULT 'active',
			first_seen_at TIMESTAMPTZ NOT NULL,
			last_seen_at TIMESTAMPTZ NOT NULL,
			sold_at TIMESTAMPTZ,
			PRIMARY KEY (site_id, offer_id)
		);

		CREATE TABLE IF NOT EXISTS crawl_runs (
			run_uuid UUID PRIMARY KEY,
			site_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			pages_visited INTEGER,
			dealers_found INTEGER,
			offers_found INTEGER,
			offers_sold INTEGER,
			error_message TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_offers_status ON offers(site_id, status);
	`)
	return err
}

// ArchiveSnapshot upserts every offer as active and seen at seenAt. A
// previously sold offer that reappears is active again.
func (s *PostgresStore) ArchiveSnapshot(ctx context.Context, siteID string, snapshot models.Snapshot, seenAt time.Time) (int, error) {
	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}

	total := 0
	for i := 0; i < len(ids); i += archiveBatchSize {
		j := min(i+archiveBatchSize, len(ids))

		b := &pgx.Batch{}
		for _, id := range ids[i:j] {
			o := snapshot[id]
			b.Queue(`
				INSERT INTO offers (site_id, offer_id, offer_link, car_name, dealer_name, offer_price,
					status, first_seen_at, last_seen_at)
				VALUES ($1, $2, $3, $4, $5, $6, 'active', $7, $7)
				ON CONFLICT (site_id, offer_id) DO UPDATE SET
					offer_link = EXCLUDED.offer_link,
					car_name = EXCLUDED.car_name,
					dealer_name = EXCLUDED.dealer_name,
					offer_price = EXCLUDED.offer_price,
					status = 'active',
					last_seen_at = EXCLUDED.last_seen_at,
					sold_at = NULL`,
				siteID, id, o.Link, o.CarName, o.DealerName, o.Price, seenAt,
			)
		}

		n, err := execBatch(ctx, s.pool, b)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// MarkSold flags vanished offers. Offers already sold keep their sold_at.
func (s *PostgresStore) MarkSold(ctx context.Context, siteID string, sold models.SoldSet, soldAt time.Time) (int, error) {
	if len(sold) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(sold))
	for id := range sold {
		ids = append(ids, id)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE offers SET status = 'sold', sold_at = $3
		WHERE site_id = $1 AND offer_id = ANY($2) AND status <> 'sold'`,
		siteID, ids, soldAt)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *models.CrawlRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawl_runs (run_uuid, site_id, started_at, finished_at, status, pages_visited,
			dealers_found, offers_found, offers_sold, error_message)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_uuid) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			pages_visited = EXCLUDED.pages_visited,
			dealers_found = EXCLUDED.dealers_found,
			offers_found = EXCLUDED.offers_found,
			offers_sold = EXCLUDED.offers_sold,
			error_message = EXCLUDED.error_message`,
		run.RunUUID, run.SiteID, run.StartedAt, run.FinishedAt, string(run.Status), run.PagesVisited,
		run.DealersFound, run.OffersFound, run.OffersSold, run.ErrorMessage,
	)
	return err
}

func execBatch(ctx context.Context, pool *pgxpool.Pool, b *pgx.Batch) (int, error) {
	br := pool.SendBatch(ctx, b)
	total := 0
	for k := 0; k < b.Len(); k++ {
		tag, err := br.Exec()
		if err != nil {
			_ = br.Close()
			return total, err
		}
		total += int(tag.RowsAffected())
	}
	return total, br.Close()
}
