package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/atlasoi/tokensync/internal/model"
)

// Archive is the local SQLite history file. It keeps an append-only log
// of applied aggregate snapshots and an upsert-by-date table of per-day
// activity, so usage history survives daemon restarts and can be
// inspected offline.
type Archive struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the archive at path and initializes the schema.
func Open(path string) (*Archive, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to archive: %w", err)
	}

	a := &Archive{db: db, path: path}

	if err := a.configure(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to configure archive: %w", err)
	}

	if err := a.createSchema(); err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return a, nil
}

// Path returns the archive file path.
func (a *Archive) Path() string {
	return a.path
}

// configure sets up database pragmas.
func (a *Archive) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}

	for _, pragma := range pragmas {
		if _, err := a.db.ExecContext(context.Background(), pragma); err != nil {
			return fmt.Errorf("failed to execute %s: %w", pragma, err)
		}
	}

	return nil
}

func (a *Archive) createSchema() error {
	if err := a.createSnapshotsTable(); err != nil {
		return err
	}
	return a.createDailyActivityTable()
}

// Timestamps are stored as unix microseconds.
func (a *Archive) createSnapshotsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		captured_at INTEGER NOT NULL,
		total_sessions INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		total_cost REAL NOT NULL DEFAULT 0,
		models TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_captured_at ON snapshots(captured_at);
	`
	_, err := a.db.ExecContext(context.Background(), query)
	return err
}

func (a *Archive) createDailyActivityTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS daily_activity (
		date TEXT PRIMARY KEY,
		session_count INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		total_cost REAL NOT NULL DEFAULT 0,
		models TEXT NOT NULL DEFAULT '[]',
		updated_at INTEGER NOT NULL
	);
	`
	_, err := a.db.ExecContext(context.Background(), query)
	return err
}

// SnapshotRecord is one archived aggregate snapshot.
type SnapshotRecord struct {
	ID            int64
	CapturedAt    time.Time
	TotalSessions int64
	TotalTokens   int64
	TotalCost     float64
	Models        map[string]model.ModelUsage
}

// SaveSnapshot appends an aggregate snapshot observed at capturedAt.
// DailyActivities are not stored here; they live in daily_activity.
func (a *Archive) SaveSnapshot(ctx context.Context, snap model.StatsSnapshot, capturedAt time.Time) error {
	models, err := json.Marshal(snap.Models)
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO snapshots (captured_at, total_sessions, total_tokens, total_cost, models)
		VALUES (?, ?, ?, ?, ?)
	`, capturedAt.UnixMicro(), snap.TotalSessions, snap.TotalTokens, snap.TotalCost, string(models))
	if err != nil {
		return fmt.Errorf("failed to insert snapshot: %w", err)
	}
	return nil
}

// UpsertDaily writes one per-day record, replacing any existing row for
// the same date.
func (a *Archive) UpsertDaily(ctx context.Context, rec model.DailyActivity) error {
	if rec.Date == "" {
		return fmt.Errorf("daily record without a date")
	}

	models, err := json.Marshal(rec.Models)
	if err != nil {
		return fmt.Errorf("failed to encode models: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO daily_activity (date, session_count, total_tokens, total_cost, models, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date) DO UPDATE SET
			session_count = excluded.session_count,
			total_tokens = excluded.total_tokens,
			total_cost = excluded.total_cost,
			models = excluded.models,
			updated_at = excluded.updated_at
	`, rec.Date, rec.SessionCount, rec.TotalTokens, rec.TotalCost, string(models), time.Now().UnixMicro())
	if err != nil {
		return fmt.Errorf("failed to upsert daily activity: %w", err)
	}
	return nil
}

// RecentSnapshots returns up to limit archived snapshots, newest first.
func (a *Archive) RecentSnapshots(ctx context.Context, limit int) ([]SnapshotRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := a.db.QueryContext(ctx, `
		SELECT id, captured_at, total_sessions, total_tokens, total_cost, models
		FROM snapshots
		ORDER BY captured_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var (
			rec        SnapshotRecord
			capturedAt int64
			models     string
		)
		if err := rows.Scan(&rec.ID, &capturedAt, &rec.TotalSessions, &rec.TotalTokens, &rec.TotalCost, &models); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		rec.CapturedAt = time.UnixMicro(capturedAt).UTC()
		if err := json.Unmarshal([]byte(models), &rec.Models); err != nil {
			return nil, fmt.Errorf("failed to decode models: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// DailyRange returns per-day records with startDate <= date <= endDate,
// ascending by date. Empty bounds are open-ended.
func (a *Archive) DailyRange(ctx context.Context, startDate, endDate string) ([]model.DailyActivity, error) {
	query := `
		SELECT date, session_count, total_tokens, total_cost, models
		FROM daily_activity
		WHERE (? = '' OR date >= ?) AND (? = '' OR date <= ?)
		ORDER BY date ASC
	`
	rows, err := a.db.QueryContext(ctx, query, startDate, startDate, endDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily activity: %w", err)
	}
	defer rows.Close()

	var out []model.DailyActivity
	for rows.Next() {
		var (
			rec    model.DailyActivity
			models string
		)
		if err := rows.Scan(&rec.Date, &rec.SessionCount, &rec.TotalTokens, &rec.TotalCost, &models); err != nil {
			return nil, fmt.Errorf("failed to scan daily activity: %w", err)
		}
		if err := json.Unmarshal([]byte(models), &rec.Models); err != nil {
			return nil, fmt.Errorf("failed to decode models: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PruneSnapshots deletes snapshot rows captured before cutoff and
// returns how many were removed. Daily activity is never pruned.
func (a *Archive) PruneSnapshots(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := a.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE captured_at < ?
	`, cutoff.UnixMicro())
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return res.RowsAffected()
}

// Vacuum reclaims space after pruning.
func (a *Archive) Vacuum() error {
	_, err := a.db.ExecContext(context.Background(), "VACUUM")
	return err
}

// Close checkpoints the WAL and closes the file.
func (a *Archive) Close() error {
	_, _ = a.db.ExecContext(context.Background(), "PRAGMA wal_checkpoint(TRUNCATE)")
	return a.db.Close()
}
