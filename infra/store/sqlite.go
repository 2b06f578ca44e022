// Package store provides the durable SQLite persistence store and the
// JSONL offline ledger used by disconnected stations.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ldsn-cm/ldsn/core/model"
)

// SQLiteStore persists reports and alerts to a SQLite database. Rows carry
// a synced flag so a central aggregator can pull them later.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates the database at path and ensures schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	schema := `CREATE TABLE IF NOT EXISTS reports (
        id TEXT PRIMARY KEY,
        disease TEXT NOT NULL,
        location TEXT NOT NULL,
        reporter_id TEXT NOT NULL,
        mortality INTEGER,
        species TEXT,
        notes TEXT,
        received_at INTEGER NOT NULL,
        synced INTEGER DEFAULT 0
    );
    CREATE TABLE IF NOT EXISTS alerts (
        id TEXT PRIMARY KEY,
        disease TEXT NOT NULL,
        location TEXT NOT NULL,
        reporter_id TEXT NOT NULL,
        mortality INTEGER,
        priority INTEGER NOT NULL,
        cluster_boost INTEGER DEFAULT 0,
        created_at INTEGER NOT NULL,
        synced INTEGER DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_reports_synced ON reports(synced);
    CREATE INDEX IF NOT EXISTS idx_alerts_synced ON alerts(synced);`
	if _, err := db.Exec(schema); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, fmt.Errorf("close db: %v (schema err: %w)", cerr, err)
		}
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// SaveReport inserts the report keyed by the ID of the alert it produced.
// Saving the same key twice is a no-op, so a retried or replayed hand-off
// never duplicates the row.
func (s *SQLiteStore) SaveReport(ctx context.Context, id string, r model.FieldReport) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO reports (id, disease, location, reporter_id, mortality, species, notes, received_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.Disease, r.Location, r.ReporterID, r.Mortality, r.Species, r.Notes, r.ReceivedAt.Unix())
	return err
}

// SaveAlert inserts the alert. Saving the same alert ID twice is a no-op,
// which keeps offline replay hand-offs idempotent at the storage level.
func (s *SQLiteStore) SaveAlert(ctx context.Context, a model.Alert) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO alerts (id, disease, location, reporter_id, mortality, priority, cluster_boost, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Disease, a.Location, a.ReporterID, a.Mortality, int(a.Priority), boolToInt(a.ClusterBoost), a.CreatedAt.Unix())
	return err
}

// UnsyncedAlerts returns alerts not yet pulled by the aggregator, oldest
// first, capped at limit.
func (s *SQLiteStore) UnsyncedAlerts(ctx context.Context, limit int) ([]model.Alert, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, disease, location, reporter_id, mortality, priority, cluster_boost, created_at
         FROM alerts WHERE synced = 0 ORDER BY created_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Alert
	for rows.Next() {
		var a model.Alert
		var prio, boost int
		var created int64
		if err := rows.Scan(&a.ID, &a.Disease, &a.Location, &a.ReporterID, &a.Mortality, &prio, &boost, &created); err != nil {
			return nil, err
		}
		a.Priority = model.PriorityLevel(prio)
		a.ClusterBoost = boost != 0
		a.CreatedAt = time.Unix(created, 0).UTC()
		res = append(res, a)
	}
	return res, rows.Err()
}

// UnsyncedReports returns reports not yet pulled by the aggregator, oldest
// first, capped at limit.
func (s *SQLiteStore) UnsyncedReports(ctx context.Context, limit int) ([]model.FieldReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT disease, location, reporter_id, mortality, species, notes, received_at
         FROM reports WHERE synced = 0 ORDER BY received_at LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.FieldReport
	for rows.Next() {
		var r model.FieldReport
		var received int64
		if err := rows.Scan(&r.Disease, &r.Location, &r.ReporterID, &r.Mortality, &r.Species, &r.Notes, &received); err != nil {
			return nil, err
		}
		r.ReceivedAt = time.Unix(received, 0).UTC()
		res = append(res, r)
	}
	return res, rows.Err()
}

// MarkAlertsSynced flips the synced flag for the given alert IDs.
func (s *SQLiteStore) MarkAlertsSynced(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if _, err := s.db.ExecContext(ctx, `UPDATE alerts SET synced = 1 WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
