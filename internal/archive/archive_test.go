package archive

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/atlasoi/tokensync/internal/model"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestArchive_OpenCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "history.db")

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()

	if a.Path() != path {
		t.Errorf("Path() = %s, want %s", a.Path(), path)
	}

	daily, err := a.DailyRange(context.Background(), "", "")
	if err != nil {
		t.Fatalf("DailyRange() error = %v", err)
	}
	if len(daily) != 0 {
		t.Errorf("fresh archive has %d daily rows, want 0", len(daily))
	}
}

func TestArchive_SaveSnapshotAndRecent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		snap := model.StatsSnapshot{
			TotalSessions: int64(10 + i),
			TotalTokens:   int64(1000 * (i + 1)),
			TotalCost:     float64(i) * 1.25,
			Models: map[string]model.ModelUsage{
				"claude-sonnet": {ModelName: "claude-sonnet", InputTokens: int64(600 * (i + 1)), OutputTokens: int64(400 * (i + 1))},
			},
		}
		if err := a.SaveSnapshot(ctx, snap, base.Add(time.Duration(i)*time.Minute)); err != nil {
			t.Fatalf("SaveSnapshot() error = %v", err)
		}
	}

	recent, err := a.RecentSnapshots(ctx, 2)
	if err != nil {
		t.Fatalf("RecentSnapshots() error = %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("RecentSnapshots() returned %d rows, want 2", len(recent))
	}

	if recent[0].TotalTokens != 3000 {
		t.Errorf("newest TotalTokens = %d, want 3000", recent[0].TotalTokens)
	}
	if recent[1].TotalTokens != 2000 {
		t.Errorf("second TotalTokens = %d, want 2000", recent[1].TotalTokens)
	}
	if !recent[0].CapturedAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("CapturedAt = %v, want %v", recent[0].CapturedAt, base.Add(2*time.Minute))
	}

	usage, ok := recent[0].Models["claude-sonnet"]
	if !ok {
		t.Fatal("model usage missing from archived snapshot")
	}
	if usage.InputTokens != 1800 {
		t.Errorf("InputTokens = %d, want 1800", usage.InputTokens)
	}
}

func TestArchive_UpsertDailyReplaces(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	first := model.DailyActivity{Date: "2024-06-01", SessionCount: 2, TotalTokens: 500}
	if err := a.UpsertDaily(ctx, first); err != nil {
		t.Fatalf("UpsertDaily() error = %v", err)
	}

	second := model.DailyActivity{
		Date:         "2024-06-01",
		SessionCount: 5,
		TotalTokens:  1500,
		TotalCost:    0.42,
		Models: []model.DailyModelTokens{
			{Date: "2024-06-01", ModelName: "claude-opus", InputTokens: 900, OutputTokens: 600},
		},
	}
	if err := a.UpsertDaily(ctx, second); err != nil {
		t.Fatalf("UpsertDaily() error = %v", err)
	}

	daily, err := a.DailyRange(ctx, "", "")
	if err != nil {
		t.Fatalf("DailyRange() error = %v", err)
	}
	if len(daily) != 1 {
		t.Fatalf("DailyRange() returned %d rows, want 1", len(daily))
	}
	if daily[0].SessionCount != 5 {
		t.Errorf("SessionCount = %d, want 5", daily[0].SessionCount)
	}
	if daily[0].TotalTokens != 1500 {
		t.Errorf("TotalTokens = %d, want 1500", daily[0].TotalTokens)
	}
	if len(daily[0].Models) != 1 || daily[0].Models[0].ModelName != "claude-opus" {
		t.Errorf("Models = %+v, want one claude-opus entry", daily[0].Models)
	}
}

func TestArchive_UpsertDailyRequiresDate(t *testing.T) {
	a := openTestArchive(t)

	err := a.UpsertDaily(context.Background(), model.DailyActivity{TotalTokens: 100})
	if err == nil {
		t.Fatal("UpsertDaily() accepted a record without a date")
	}
}

func TestArchive_DailyRangeBounds(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	for _, date := range []string{"2024-05-30", "2024-05-31", "2024-06-01"} {
		if err := a.UpsertDaily(ctx, model.DailyActivity{Date: date, TotalTokens: 1}); err != nil {
			t.Fatalf("UpsertDaily(%s) error = %v", date, err)
		}
	}

	got, err := a.DailyRange(ctx, "2024-05-31", "2024-06-01")
	if err != nil {
		t.Fatalf("DailyRange() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("bounded range returned %d rows, want 2", len(got))
	}
	if got[0].Date != "2024-05-31" || got[1].Date != "2024-06-01" {
		t.Errorf("dates = %s, %s, want ascending 2024-05-31, 2024-06-01", got[0].Date, got[1].Date)
	}

	all, err := a.DailyRange(ctx, "", "")
	if err != nil {
		t.Fatalf("DailyRange() error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("open range returned %d rows, want 3", len(all))
	}

	from, err := a.DailyRange(ctx, "2024-05-31", "")
	if err != nil {
		t.Fatalf("DailyRange() error = %v", err)
	}
	if len(from) != 2 {
		t.Errorf("open-ended range returned %d rows, want 2", len(from))
	}
}

func TestArchive_PruneSnapshots(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	if err := a.SaveSnapshot(ctx, model.StatsSnapshot{TotalTokens: 1}, old); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}
	if err := a.SaveSnapshot(ctx, model.StatsSnapshot{TotalTokens: 2}, recent); err != nil {
		t.Fatalf("SaveSnapshot() error = %v", err)
	}

	removed, err := a.PruneSnapshots(ctx, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PruneSnapshots() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("PruneSnapshots() removed %d, want 1", removed)
	}

	left, err := a.RecentSnapshots(ctx, 10)
	if err != nil {
		t.Fatalf("RecentSnapshots() error = %v", err)
	}
	if len(left) != 1 || left[0].TotalTokens != 2 {
		t.Errorf("remaining snapshots = %+v, want only the recent one", left)
	}

	if err := a.Vacuum(); err != nil {
		t.Errorf("Vacuum() error = %v", err)
	}
}

func TestArchive_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	a, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := a.UpsertDaily(ctx, model.DailyActivity{Date: "2024-06-01", TotalTokens: 777}); err != nil {
		t.Fatalf("UpsertDaily() error = %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	a, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer a.Close()

	daily, err := a.DailyRange(ctx, "", "")
	if err != nil {
		t.Fatalf("DailyRange() error = %v", err)
	}
	if len(daily) != 1 || daily[0].TotalTokens != 777 {
		t.Errorf("reopened archive daily = %+v, want the persisted row", daily)
	}
}
