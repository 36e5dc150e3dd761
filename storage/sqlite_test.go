package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"car_scrooper/models"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "crawler.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore_RunLifecycle(t *testing.T) {
	store := newTestSQLiteStore(t)

	started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &models.CrawlRun{SiteID: "otomoto", StartedAt: started, Status: models.RunStatusRunning}
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("create run failed: %v", err)
	}
	if run.ID == 0 || run.RunUUID == uuid.Nil {
		t.Fatalf("expected id and uuid to be assigned, got %d %s", run.ID, run.RunUUID)
	}

	finished := started.Add(90 * time.Second)
	run.FinishedAt = &finished
	run.Status = models.RunStatusCompleted
	run.PagesVisited = 12
	run.DealersFound = 3
	run.OffersFound = 40
	run.OffersSold = 2
	if err := store.UpdateRun(run); err != nil {
		t.Fatalf("update run failed: %v", err)
	}

	runs, err := store.ListRuns(10)
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	got := runs[0]
	if got.RunUUID != run.RunUUID || got.Status != models.RunStatusCompleted {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.OffersFound != 40 || got.OffersSold != 2 || got.PagesVisited != 12 {
		t.Fatalf("unexpected counters %+v", got)
	}
	if got.Duration() != 90*time.Second {
		t.Fatalf("expected 90s duration, got %s", got.Duration())
	}

	if err := store.UpdateSiteStats("otomoto"); err != nil {
		t.Fatalf("update stats failed: %v", err)
	}
	stats, err := store.GetSiteStats("otomoto")
	if err != nil {
		t.Fatalf("get stats failed: %v", err)
	}
	if stats == nil || stats.TotalRuns != 1 || stats.SuccessRate != 1 || stats.LastOffersFound != 40 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSQLiteStore_ListRunsNewestFirst(t *testing.T) {
	store := newTestSQLiteStore(t)
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		run := &models.CrawlRun{SiteID: "otomoto", StartedAt: base.Add(time.Duration(i) * time.Hour), Status: models.RunStatusRunning}
		if err := store.CreateRun(run); err != nil {
			t.Fatalf("create run failed: %v", err)
		}
	}

	runs, err := store.ListRuns(2)
	if err != nil {
		t.Fatalf("list runs failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Fatalf("expected newest first, got %s then %s", runs[0].StartedAt, runs[1].StartedAt)
	}
	if runs[0].FinishedAt != nil {
		t.Fatalf("unfinished run should have no finish time")
	}
}

func TestSQLiteStore_Logs(t *testing.T) {
	store := newTestSQLiteStore(t)
	run := &models.CrawlRun{SiteID: "otomoto", StartedAt: time.Now(), Status: models.RunStatusRunning}
	if err := store.CreateRun(run); err != nil {
		t.Fatalf("create run failed: %v", err)
	}

	if err := store.Log(&run.ID, models.LogLevelInfo, "started", "otomoto"); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := store.Log(&run.ID, models.LogLevelWarn, "dealer dropped", "otomoto"); err != nil {
		t.Fatalf("log failed: %v", err)
	}
	if err := store.Log(nil, models.LogLevelInfo, "unrelated", ""); err != nil {
		t.Fatalf("log failed: %v", err)
	}

	logs, err := store.RunLogs(run.ID)
	if err != nil {
		t.Fatalf("run logs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 run logs, got %d", len(logs))
	}
	if logs[1].Level != models.LogLevelWarn || logs[1].Message != "dealer dropped" {
		t.Fatalf("unexpected log %+v", logs[1])
	}
}

func TestSQLiteStore_CommandQueue(t *testing.T) {
	store := newTestSQLiteStore(t)

	if _, err := store.EnqueueCommand(models.CmdScrapeSite, &models.CommandParams{Site: "otomoto"}); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := store.EnqueueCommand(models.CmdPause, nil); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	cmds, err := store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("expected 2 pending commands, got %d", len(cmds))
	}
	if cmds[0].Command != models.CmdScrapeSite {
		t.Fatalf("expected scrape_site first, got %s", cmds[0].Command)
	}
	params, err := cmds[0].ParseParams()
	if err != nil {
		t.Fatalf("parse params failed: %v", err)
	}
	if params.Site != "otomoto" {
		t.Fatalf("expected site otomoto, got %q", params.Site)
	}
	if params, err := cmds[1].ParseParams(); err != nil || params.Site != "" {
		t.Fatalf("expected empty params, got %+v %v", params, err)
	}

	if err := store.MarkCommandProcessed(cmds[0].ID); err != nil {
		t.Fatalf("mark processed failed: %v", err)
	}
	cmds, err = store.GetPendingCommands()
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(cmds) != 1 || cmds[0].Command != models.CmdPause {
		t.Fatalf("expected only pause pending, got %+v", cmds)
	}
}
