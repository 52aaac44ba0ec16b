package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"leandash/internal/core"
)

const entryColumns = `id, chart_id, horizon, date, target, value, comment, version, sync_status, updated_at`

func scanEntry(row interface{ Scan(...any) error }) (Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.ChartID, &e.Horizon,
		&e.Data.Date, &e.Data.Target, &e.Data.Value, &e.Data.Comment,
		&e.Version, &e.SyncStatus, &e.UpdatedAt)
	return e, err
}

// UpsertEntry writes one observation, keyed by (chart, horizon, date). A
// second write for the same key overwrites the row, bumps the version and
// re-queues it for mirroring.
func (r *SQLiteRepository) UpsertEntry(ctx context.Context, chartID int64, horizon core.Horizon, data core.ChartEntry) (Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO chart_entries (chart_id, horizon, date, target, value, comment)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(chart_id, horizon, date) DO UPDATE SET
			target = excluded.target,
			value = excluded.value,
			comment = excluded.comment,
			version = chart_entries.version + 1,
			sync_status = 'pending',
			updated_at = CURRENT_TIMESTAMP
		 RETURNING `+entryColumns,
		chartID, string(horizon), data.Date, data.Target, data.Value, data.Comment)
	e, err := scanEntry(row)
	if err != nil {
		return Entry{}, fmt.Errorf("upsert entry: %w", err)
	}

	slog.InfoContext(ctx, "Chart entry saved to SQLite",
		"id", e.ID,
		"chart_id", e.ChartID,
		"horizon", e.Horizon,
		"date", e.Data.Date,
		"version", e.Version)

	return e, nil
}

func (r *SQLiteRepository) GetEntry(ctx context.Context, chartID int64, horizon core.Horizon, date string) (Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM chart_entries
		 WHERE chart_id = ? AND horizon = ? AND date = ?`,
		chartID, string(horizon), date)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("entry %d/%s/%s: %w", chartID, horizon, date, ErrNotFound)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns a chart's stored observations for one horizon.
// A non-empty month restricts daily entries to that yyyy-MM month.
func (r *SQLiteRepository) ListEntries(ctx context.Context, chartID int64, horizon core.Horizon, month string) (core.ChartSeries, error) {
	query := `SELECT date, target, value, comment FROM chart_entries
		 WHERE chart_id = ? AND horizon = ?`
	args := []any{chartID, string(horizon)}
	if month != "" {
		// Daily dates are dd-MM-yyyy, so the month key matches the suffix.
		ym, err := core.ParseMonthKey(month)
		if err != nil {
			return nil, err
		}
		query += ` AND date LIKE ?`
		args = append(args, fmt.Sprintf("%%-%02d-%04d", ym.Month(), ym.Year()))
	}
	query += ` ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var series core.ChartSeries
	for rows.Next() {
		var e core.ChartEntry
		if err := rows.Scan(&e.Date, &e.Target, &e.Value, &e.Comment); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		series = append(series, e)
	}
	return series, rows.Err()
}

// GetPendingSyncEntries returns entries awaiting a mirror write, oldest first.
func (r *SQLiteRepository) GetPendingSyncEntries(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM chart_entries
		 WHERE sync_status = 'pending' ORDER BY updated_at LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending sync entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkEntrySynced flips an entry to synced, but only if the mirrored
// version is still current. A concurrent edit keeps the row pending.
func (r *SQLiteRepository) MarkEntrySynced(ctx context.Context, id, version int64) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chart_entries SET sync_status = 'synced'
		 WHERE id = ? AND version = ?`, id, version)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		slog.InfoContext(ctx, "Entry changed since sync started, left pending",
			"id", id, "synced_version", version)
	}
	return nil
}

func (r *SQLiteRepository) MarkEntrySyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx,
		`UPDATE chart_entries SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) CountPendingSyncEntries(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chart_entries WHERE sync_status = 'pending'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending sync entries: %w", err)
	}
	return n, nil
}
