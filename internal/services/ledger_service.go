// Package services orchestrates ledger operations: parse, persist,
// aggregate, publish. Handlers hold one service instance; there is no
// shared mutable state beyond the repository it owns.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kesef/internal/amqp"
	"kesef/internal/cache"
	"kesef/internal/core"
	"kesef/internal/storage"
)

// Window selects a summary time range.
type Window int

const (
	WindowWeek Window = iota
	WindowMonth
)

func (w Window) String() string {
	if w == WindowMonth {
		return "month"
	}
	return "week"
}

// Start returns the window's start instant relative to now: the last
// seven days for the week, the first of the current calendar month at
// local midnight for the month.
func (w Window) Start(now time.Time) time.Time {
	if w == WindowMonth {
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	}
	return now.Add(-7 * 24 * time.Hour)
}

// Confirmation is the result of recording one entry: the stored entry and
// the recomputed week and month totals.
type Confirmation struct {
	Entry core.Entry
	Week  core.Totals
	Month core.Totals
}

// LedgerService owns all ledger use cases. The AMQP client and the
// summary cache are both optional; without them entries are still
// persisted, only the export stream and memoization are lost.
type LedgerService struct {
	storage    *storage.SQLiteRepository
	amqpClient *amqp.Client
	summaries  cache.Cache[core.Breakdown]
}

func NewLedgerService(storage *storage.SQLiteRepository, amqpClient *amqp.Client, summaries cache.Cache[core.Breakdown]) *LedgerService {
	return &LedgerService{
		storage:    storage,
		amqpClient: amqpClient,
		summaries:  summaries,
	}
}

// Record parses a free-text line, persists the entry, and returns the
// fresh week and month totals for the confirmation reply.
func (s *LedgerService) Record(ctx context.Context, userID int64, text string) (Confirmation, error) {
	parsed, err := core.ParseLine(text)
	if err != nil {
		return Confirmation{}, err
	}

	entry, err := s.storage.InsertEntry(ctx, userID, parsed.Amount, parsed.Category, parsed.Type)
	if err != nil {
		return Confirmation{}, fmt.Errorf("record entry: %w", err)
	}

	s.publish(ctx, amqp.NewEntryRecordedEvent(entry.ID))
	s.invalidate(userID)

	now := time.Now()
	week, err := s.storage.SumByTypeSince(ctx, userID, WindowWeek.Start(now))
	if err != nil {
		return Confirmation{}, fmt.Errorf("week totals: %w", err)
	}
	month, err := s.storage.SumByTypeSince(ctx, userID, WindowMonth.Start(now))
	if err != nil {
		return Confirmation{}, fmt.Errorf("month totals: %w", err)
	}

	return Confirmation{Entry: entry, Week: week, Month: month}, nil
}

// Summary returns the per-category breakdown for the window, cached until
// the next mutation or TTL expiry.
func (s *LedgerService) Summary(ctx context.Context, userID int64, w Window) (core.Breakdown, error) {
	key := summaryKey(userID, w)
	if s.summaries != nil {
		if b, ok := s.summaries.Get(key); ok {
			return b, nil
		}
	}

	b, err := s.storage.SumByCategorySince(ctx, userID, w.Start(time.Now()))
	if err != nil {
		return core.Breakdown{}, fmt.Errorf("%s summary: %w", w, err)
	}

	if s.summaries != nil {
		s.summaries.Set(key, b)
	}
	return b, nil
}

// Undo removes the user's most recent entry and returns it. Propagates
// core.ErrEmptyLedger when there is nothing to remove.
func (s *LedgerService) Undo(ctx context.Context, userID int64) (core.Entry, error) {
	entry, err := s.storage.DeleteMostRecent(ctx, userID)
	if err != nil {
		return core.Entry{}, err
	}

	s.publish(ctx, amqp.NewEntryDeletedEvent(entry))
	s.invalidate(userID)
	return entry, nil
}

// PurgeDay removes all the user's entries on the given local calendar day
// and returns how many were removed. Zero removals is not an error.
func (s *LedgerService) PurgeDay(ctx context.Context, userID int64, day time.Time) (int64, error) {
	removed, err := s.storage.DeleteOnDate(ctx, userID, day)
	if err != nil {
		return 0, err
	}

	if removed > 0 {
		s.publish(ctx, amqp.NewDayPurgedEvent(userID, day, removed))
		s.invalidate(userID)
	}
	return removed, nil
}

// SearchDay returns the user's per-category sums for one calendar day.
func (s *LedgerService) SearchDay(ctx context.Context, userID int64, day time.Time) (core.Breakdown, error) {
	return s.storage.SumByCategoryOnDate(ctx, userID, day)
}

// publish is best effort: the entry is already durable in SQLite, so a
// broker failure must not fail the user's request.
func (s *LedgerService) publish(ctx context.Context, ev amqp.Event) {
	if s.amqpClient == nil {
		return
	}
	if err := s.amqpClient.Publish(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"kind", ev.Kind, "id", ev.ID, "error", err)
	}
}

func (s *LedgerService) invalidate(userID int64) {
	if s.summaries == nil {
		return
	}
	s.summaries.Delete(summaryKey(userID, WindowWeek))
	s.summaries.Delete(summaryKey(userID, WindowMonth))
}

func summaryKey(userID int64, w Window) string {
	return fmt.Sprintf("summary:%d:%s", userID, w)
}
