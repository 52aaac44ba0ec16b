package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leandash/internal/amqp"
	"leandash/internal/core"
	"leandash/internal/mirror"
	"leandash/internal/storage"
)

// Store is the persistence surface the mirror worker needs.
type Store interface {
	GetChart(ctx context.Context, id int64) (storage.Chart, error)
	GetEntry(ctx context.Context, chartID int64, horizon core.Horizon, date string) (storage.Entry, error)
	GetPendingSyncEntries(ctx context.Context, limit int) ([]storage.Entry, error)
	MarkEntrySynced(ctx context.Context, id, version int64) error
	MarkEntrySyncError(ctx context.Context, id int64) error
	CountPendingSyncEntries(ctx context.Context) (int64, error)
}

// MirrorWorker copies edited chart entries to the configured mirror. It is
// driven two ways: AMQP messages for fresh edits, and a periodic backlog
// sweep for entries whose messages were lost or whose writes failed.
type MirrorWorker struct {
	store     Store
	writer    mirror.EntryWriter
	batchSize int
}

func NewMirrorWorker(store Store, writer mirror.EntryWriter, batchSize int) *MirrorWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &MirrorWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleSyncMessage mirrors the entry named by one AMQP message. The row is
// re-read from the database so a stale message never mirrors old data; a
// message for a deleted entry is dropped without error.
func (w *MirrorWorker) HandleSyncMessage(ctx context.Context, msg *amqp.EntrySyncMessage) error {
	entry, err := w.store.GetEntry(ctx, msg.ChartID, core.Horizon(msg.Horizon), msg.Date)
	if errors.Is(err, storage.ErrNotFound) {
		slog.WarnContext(ctx, "Entry no longer exists, dropping sync message",
			"chart_id", msg.ChartID,
			"date", msg.Date)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load entry: %w", err)
	}

	if entry.SyncStatus == storage.SyncDone && entry.Version <= msg.Version {
		slog.InfoContext(ctx, "Entry already mirrored, skipping",
			"chart_id", msg.ChartID,
			"date", msg.Date,
			"version", entry.Version)
		return nil
	}

	return w.mirrorEntry(ctx, entry)
}

func (w *MirrorWorker) mirrorEntry(ctx context.Context, entry storage.Entry) error {
	chart, err := w.store.GetChart(ctx, entry.ChartID)
	if err != nil {
		return fmt.Errorf("load chart: %w", err)
	}

	ref, err := w.writer.Append(ctx, chart.Name, entry.Horizon, entry.Data)
	if err != nil {
		if markErr := w.store.MarkEntrySyncError(ctx, entry.ID); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark entry sync error",
				"id", entry.ID, "error", markErr)
		}
		return fmt.Errorf("mirror entry: %w", err)
	}

	if err := w.store.MarkEntrySynced(ctx, entry.ID, entry.Version); err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}

	slog.InfoContext(ctx, "Entry mirrored",
		"chart_id", entry.ChartID,
		"chart", chart.Name,
		"date", entry.Data.Date,
		"version", entry.Version,
		"ref", ref)

	return nil
}

// ProcessPendingEntries sweeps one batch of the pending backlog. Returns
// how many entries were mirrored.
func (w *MirrorWorker) ProcessPendingEntries(ctx context.Context) (int, error) {
	pending, err := w.store.GetPendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("get pending entries: %w", err)
	}

	processed := 0
	for _, entry := range pending {
		if err := ctx.Err(); err != nil {
			return processed, err
		}
		if err := w.mirrorEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Failed to mirror pending entry",
				"id", entry.ID,
				"chart_id", entry.ChartID,
				"error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

// RunBacklogSweep processes pending entries on a fixed interval until the
// context is cancelled. One sweep runs immediately on startup.
func (w *MirrorWorker) RunBacklogSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Backlog sweep stopped", "reason", ctx.Err())
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *MirrorWorker) sweep(ctx context.Context) {
	processed, err := w.ProcessPendingEntries(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "Backlog sweep failed", "error", err)
		return
	}
	if processed > 0 {
		slog.InfoContext(ctx, "Backlog sweep finished", "processed", processed)
	}
}

// StartupSyncCheck logs how much backlog the worker wakes up to.
func (w *MirrorWorker) StartupSyncCheck(ctx context.Context) error {
	pending, err := w.store.CountPendingSyncEntries(ctx)
	if err != nil {
		return fmt.Errorf("count pending entries: %w", err)
	}
	slog.InfoContext(ctx, "Startup sync check", "pending_entries", pending)
	return nil
}
