package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"car_scrooper/models"
)

// SQLiteStore holds operational state: run history, run-scoped logs, per-site
// stats and the command queue the daemon polls.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_runs (
		id INTEGER PRIMARY KEY,
		run_uuid TEXT NOT NULL,
		site_id TEXT,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		pages_visited INTEGER DEFAULT 0,
		dealers_found INTEGER DEFAULT 0,
		offers_found INTEGER DEFAULT 0,
		offers_sold INTEGER DEFAULT 0,
		errors_count INTEGER DEFAULT 0,
		error_message TEXT DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS crawl_logs (
		id INTEGER PRIMARY KEY,
		run_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		site_id TEXT
	);

	CREATE TABLE IF NOT EXISTS site_stats (
		site_id TEXT PRIMARY KEY,
		last_run_at DATETIME,
		last_run_status TEXT,
		total_runs INTEGER,
		success_rate REAL,
		avg_run_duration_sec INTEGER,
		last_offers_found INTEGER
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_logs_run ON crawl_logs(run_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_runs_status ON crawl_runs(status, started_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateRun inserts a running record and fills in run.ID.
func (s *SQLiteStore) CreateRun(run *models.CrawlRun) error {
	if run.RunUUID == uuid.Nil {
		run.RunUUID = uuid.New()
	}
	result, err := s.db.Exec(`
		INSERT INTO crawl_runs (run_uuid, site_id, started_at, status)
		VALUES (?, ?, ?, ?)`,
		run.RunUUID.String(), run.SiteID, run.StartedAt, run.Status)
	if err != nil {
		return err
	}
	run.ID, err = result.LastInsertId()
	return err
}

func (s *SQLiteStore) UpdateRun(run *models.CrawlRun) error {
	_, err := s.db.Exec(`
		UPDATE crawl_runs SET finished_at = ?, status = ?, pages_visited = ?, dealers_found = ?,
			offers_found = ?, offers_sold = ?, errors_count = ?, error_message = ?
		WHERE id = ?`,
		run.FinishedAt, run.Status, run.PagesVisited, run.DealersFound,
		run.OffersFound, run.OffersSold, run.ErrorsCount, run.ErrorMessage, run.ID)
	return err
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(limit int) ([]models.CrawlRun, error) {
	rows, err := s.db.Query(`
		SELECT id, run_uuid, site_id, started_at, finished_at, status, pages_visited,
			dealers_found, offers_found, offers_sold, errors_count, COALESCE(error_message, '')
		FROM crawl_runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.CrawlRun
	for rows.Next() {
		var run models.CrawlRun
		var runUUID string
		var finishedAt sql.NullTime
		if err := rows.Scan(&run.ID, &runUUID, &run.SiteID, &run.StartedAt, &finishedAt, &run.Status,
			&run.PagesVisited, &run.DealersFound, &run.OffersFound, &run.OffersSold,
			&run.ErrorsCount, &run.ErrorMessage); err != nil {
			return nil, err
		}
		if run.RunUUID, err = uuid.Parse(runUUID); err != nil {
			return nil, fmt.Errorf("run %d: %w", run.ID, err)
		}
		if finishedAt.Valid {
			t := finishedAt.Time
			run.FinishedAt = &t
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) Log(runID *int64, level models.LogLevel, message, siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO crawl_logs (run_id, timestamp, level, message, site_id)
		VALUES (?, ?, ?, ?, ?)`,
		runID, time.Now(), level, message, siteID)
	return err
}

func (s *SQLiteStore) RunLogs(runID int64) ([]models.CrawlLog, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message, site_id
		FROM crawl_logs WHERE run_id = ? ORDER BY timestamp, id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []models.CrawlLog
	for rows.Next() {
		var l models.CrawlLog
		if err := rows.Scan(&l.ID, &l.RunID, &l.Timestamp, &l.Level, &l.Message, &l.SiteID); err != nil {
			return nil, err
		}
		logs = append(logs, l)
	}
	return logs, rows.Err()
}

func (s *SQLiteStore) UpdateSiteStats(siteID string) error {
	_, err := s.db.Exec(`
		INSERT INTO site_stats (site_id, last_run_at, last_run_status, total_runs,
			success_rate, avg_run_duration_sec, last_offers_found)
		SELECT
			?,
			(SELECT started_at FROM crawl_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT status FROM crawl_runs WHERE site_id = ? ORDER BY started_at DESC LIMIT 1),
			(SELECT COUNT(*) FROM crawl_runs WHERE site_id = ?),
			(SELECT CAST(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END) AS REAL) /
				NULLIF(COUNT(*), 0) FROM crawl_runs WHERE site_id = ?),
			(SELECT CAST(AVG((julianday(finished_at) - julianday(started_at)) * 86400) AS INTEGER)
				FROM crawl_runs WHERE site_id = ? AND finished_at IS NOT NULL),
			(SELECT offers_found FROM crawl_runs WHERE site_id = ? AND status = 'completed'
				ORDER BY started_at DESC LIMIT 1)
		WHERE true
		ON CONFLICT(site_id) DO UPDATE SET
			last_run_at = excluded.last_run_at,
			last_run_status = excluded.last_run_status,
			total_runs = excluded.total_runs,
			success_rate = excluded.success_rate,
			avg_run_duration_sec = excluded.avg_run_duration_sec,
			last_offers_found = excluded.last_offers_found`,
		siteID, siteID, siteID, siteID, siteID, siteID, siteID)
	return err
}

// SiteStats is the aggregate row kept per site.
type SiteStats struct {
	SiteID          string
	LastRunAt       *time.Time
	LastRunStatus   string
	TotalRuns       int
	SuccessRate     float64
	AvgRunDuration  time.Duration
	LastOffersFound int
}

func (s *SQLiteStore) GetSiteStats(siteID string) (*SiteStats, error) {
	var stats SiteStats
	var lastRunAt sql.NullTime
	var status sql.NullString
	var rate sql.NullFloat64
	var avgSec, offers sql.NullInt64

	err := s.db.QueryRow(`
		SELECT site_id, last_run_at, last_run_status, total_runs, success_rate,
			avg_run_duration_sec, last_offers_found
		FROM site_stats WHERE site_id = ?`, siteID).
		Scan(&stats.SiteID, &lastRunAt, &status, &stats.TotalRuns, &rate, &avgSec, &offers)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if lastRunAt.Valid {
		t := lastRunAt.Time
		stats.LastRunAt = &t
	}
	stats.LastRunStatus = status.String
	stats.SuccessRate = rate.Float64
	stats.AvgRunDuration = time.Duration(avgSec.Int64) * time.Second
	stats.LastOffersFound = int(offers.Int64)
	return &stats, nil
}

func (s *SQLiteStore) EnqueueCommand(cmd models.CommandType, params *models.CommandParams) (int64, error) {
	var raw any
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			return 0, err
		}
		raw = string(data)
	}

	result, err := s.db.Exec(`INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, raw, time.Now())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands() ([]models.Command, error) {
	rows, err := s.db.Query(`
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(id int64) error {
	_, err := s.db.Exec(`UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}
