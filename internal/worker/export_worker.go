// Package worker mirrors ledger mutations into the spreadsheet journal.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"kesef/internal/amqp"
	"kesef/internal/core"
	"kesef/internal/sheets"
	"kesef/internal/storage"
)

// ExportWorker consumes ledger events and appends journal rows. Recorded
// events are re-read from SQLite so the journal reflects the committed
// row; delete events carry their own data since the row is gone.
type ExportWorker struct {
	storage   *storage.SQLiteRepository
	appender  sheets.RowAppender
	batchSize int
}

func NewExportWorker(storage *storage.SQLiteRepository, appender sheets.RowAppender, batchSize int) *ExportWorker {
	return &ExportWorker{
		storage:   storage,
		appender:  appender,
		batchSize: batchSize,
	}
}

// HandleEvent processes one ledger event from the queue.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev amqp.Event) error {
	switch ev.Kind {
	case amqp.KindEntryRecorded:
		return w.exportRecorded(ctx, ev.ID)
	case amqp.KindEntryDeleted:
		return w.appendRow(ctx, sheets.ExportRow{
			At:       ev.Timestamp,
			UserID:   ev.UserID,
			Category: ev.Category,
			Type:     ev.Type,
			Amount:   ev.Amount,
			Status:   sheets.StatusDeleted,
		})
	case amqp.KindDayPurged:
		return w.appendRow(ctx, sheets.ExportRow{
			At:       ev.Timestamp,
			UserID:   ev.UserID,
			Category: ev.Day,
			Type:     "",
			Amount:   float64(ev.Count),
			Status:   sheets.StatusPurged,
		})
	default:
		slog.WarnContext(ctx, "Unknown ledger event kind", "kind", ev.Kind)
		return nil
	}
}

func (w *ExportWorker) exportRecorded(ctx context.Context, id int64) error {
	entry, err := w.storage.GetEntry(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrEntryNotFound) {
			// Deleted before the export caught up; nothing to journal.
			slog.InfoContext(ctx, "Entry gone before export, skipping", "id", id)
			return nil
		}
		return fmt.Errorf("load entry %d: %w", id, err)
	}

	if err := w.exportEntry(ctx, entry); err != nil {
		if markErr := w.storage.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return err
	}

	return nil
}

func (w *ExportWorker) exportEntry(ctx context.Context, entry core.Entry) error {
	err := w.appendRow(ctx, sheets.ExportRow{
		At:       entry.CreatedAt,
		UserID:   entry.UserID,
		Category: entry.Category,
		Type:     string(entry.Type),
		Amount:   entry.Amount,
		Status:   sheets.StatusRecorded,
	})
	if err != nil {
		return fmt.Errorf("export entry %d: %w", entry.ID, err)
	}

	if err := w.storage.MarkSynced(ctx, entry.ID); err != nil {
		return fmt.Errorf("mark entry %d synced: %w", entry.ID, err)
	}

	slog.InfoContext(ctx, "Entry exported", "id", entry.ID)
	return nil
}

func (w *ExportWorker) appendRow(ctx context.Context, row sheets.ExportRow) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	return w.appender.Append(ctx, row)
}

// ProcessPending exports entries still marked pending. Runs at startup
// and on a periodic ticker to pick up anything the queue missed.
func (w *ExportWorker) ProcessPending(ctx context.Context) error {
	entries, err := w.storage.PendingSyncEntries(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("list pending entries: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Exporting pending entries", "count", len(entries))

	var failed int
	for _, entry := range entries {
		if err := w.exportEntry(ctx, entry); err != nil {
			slog.ErrorContext(ctx, "Pending export failed", "id", entry.ID, "error", err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d pending exports failed", failed, len(entries))
	}
	return nil
}
