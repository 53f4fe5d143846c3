// Package storage persists ledger entries in SQLite.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"kesef/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is RFC3339 at second precision, always UTC. Fixed-width
// strings keep SQLite's lexicographic comparison correct across offsets.
const timeLayout = time.RFC3339

// ErrEntryNotFound is returned when an entry id no longer exists, e.g.
// when the export worker catches up after an /undo.
var ErrEntryNotFound = errors.New("entry not found")

// SQLiteRepository is the single owner of the database handle. It is
// passed explicitly to every collaborator; there is no package-level
// connection.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertEntry appends a new entry with the store-assigned timestamp and id.
// The write is committed before returning.
func (r *SQLiteRepository) InsertEntry(ctx context.Context, userID int64, amount float64, category string, kind core.EntryType) (core.Entry, error) {
	now := time.Now().UTC().Truncate(time.Second)

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO entries (user_id, amount, category, type, date) VALUES (?, ?, ?, ?, ?)`,
		userID, amount, category, string(kind), now.Format(timeLayout))
	if err != nil {
		return core.Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return core.Entry{}, fmt.Errorf("last insert id: %w", err)
	}

	entry := core.Entry{
		ID:        id,
		UserID:    userID,
		Amount:    amount,
		Category:  category,
		Type:      kind,
		CreatedAt: now,
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", entry.ID,
		"user_id", entry.UserID,
		"type", entry.Type,
		"category", entry.Category,
		"amount", entry.Amount)

	return entry, nil
}

// DeleteMostRecent removes the user's entry with the highest id and
// returns it. Returns core.ErrEmptyLedger when the user has no entries.
func (r *SQLiteRepository) DeleteMostRecent(ctx context.Context, userID int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, type, date
		 FROM entries WHERE user_id = ? ORDER BY id DESC LIMIT 1`, userID)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Entry{}, core.ErrEmptyLedger
		}
		return core.Entry{}, fmt.Errorf("find most recent entry: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, entry.ID); err != nil {
		return core.Entry{}, fmt.Errorf("delete entry %d: %w", entry.ID, err)
	}

	slog.InfoContext(ctx, "Most recent entry deleted", "id", entry.ID, "user_id", userID)
	return entry, nil
}

// DeleteOnDate removes every entry of the user whose timestamp falls on
// the given local calendar day. Returns the number of rows removed; zero
// is not an error.
func (r *SQLiteRepository) DeleteOnDate(ctx context.Context, userID int64, day time.Time) (int64, error) {
	start, end := dayBounds(day)

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entries WHERE user_id = ? AND date >= ? AND date < ?`,
		userID, start, end)
	if err != nil {
		return 0, fmt.Errorf("delete entries on date: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}

	slog.InfoContext(ctx, "Entries deleted by date",
		"user_id", userID,
		"day", day.Format("2006-01-02"),
		"removed", n)
	return n, nil
}

// SumByTypeSince returns the user's total income and total expense over
// entries with timestamp >= since.
func (r *SQLiteRepository) SumByTypeSince(ctx context.Context, userID int64, since time.Time) (core.Totals, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, SUM(amount) FROM entries
		 WHERE user_id = ? AND date >= ? GROUP BY type`,
		userID, since.UTC().Format(timeLayout))
	if err != nil {
		return core.Totals{}, fmt.Errorf("sum by type: %w", err)
	}
	defer rows.Close()

	var totals core.Totals
	for rows.Next() {
		var kind string
		var sum float64
		if err := rows.Scan(&kind, &sum); err != nil {
			return core.Totals{}, fmt.Errorf("scan type sum: %w", err)
		}
		switch core.EntryType(kind) {
		case core.Income:
			totals.Income = sum
		case core.Expense:
			totals.Expense = sum
		}
	}
	if err := rows.Err(); err != nil {
		return core.Totals{}, fmt.Errorf("iterate type sums: %w", err)
	}
	return totals, nil
}

// SumByCategorySince returns per-category sums over entries with
// timestamp >= since, split into independent income and expense maps.
func (r *SQLiteRepository) SumByCategorySince(ctx context.Context, userID int64, since time.Time) (core.Breakdown, error) {
	return r.sumByCategory(ctx,
		`SELECT category, type, SUM(amount) FROM entries
		 WHERE user_id = ? AND date >= ? GROUP BY category, type`,
		userID, since.UTC().Format(timeLayout))
}

// SumByCategoryOnDate returns per-category sums restricted to one local
// calendar day.
func (r *SQLiteRepository) SumByCategoryOnDate(ctx context.Context, userID int64, day time.Time) (core.Breakdown, error) {
	start, end := dayBounds(day)
	return r.sumByCategory(ctx,
		`SELECT category, type, SUM(amount) FROM entries
		 WHERE user_id = ? AND date >= ? AND date < ? GROUP BY category, type`,
		userID, start, end)
}

func (r *SQLiteRepository) sumByCategory(ctx context.Context, query string, args ...any) (core.Breakdown, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return core.Breakdown{}, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	breakdown := core.NewBreakdown()
	for rows.Next() {
		var category, kind string
		var sum float64
		if err := rows.Scan(&category, &kind, &sum); err != nil {
			return core.Breakdown{}, fmt.Errorf("scan category sum: %w", err)
		}
		switch core.EntryType(kind) {
		case core.Income:
			breakdown.Income[category] = sum
		case core.Expense:
			breakdown.Expense[category] = sum
		}
	}
	if err := rows.Err(); err != nil {
		return core.Breakdown{}, fmt.Errorf("iterate category sums: %w", err)
	}
	return breakdown, nil
}

// GetEntry retrieves a single entry by id.
func (r *SQLiteRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, amount, category, type, date FROM entries WHERE id = ?`, id)

	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Entry{}, ErrEntryNotFound
		}
		return core.Entry{}, fmt.Errorf("get entry %d: %w", id, err)
	}
	return entry, nil
}

// PendingSyncEntries returns up to limit entries not yet exported,
// oldest first.
func (r *SQLiteRepository) PendingSyncEntries(ctx context.Context, limit int) ([]core.Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, user_id, amount, category, type, date
		 FROM entries WHERE sync_status = 'pending' ORDER BY id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("pending sync entries: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pending entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending entries: %w", err)
	}
	return entries, nil
}

// MarkSynced records a successful export of the entry.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET sync_status = 'synced', synced_at = ? WHERE id = ?`,
		time.Now().UTC().Format(timeLayout), id)
	if err != nil {
		return fmt.Errorf("mark entry synced: %w", err)
	}
	return nil
}

// MarkSyncError flags the entry so the periodic pass retries it later.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE entries SET sync_status = 'error' WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark entry sync error: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (core.Entry, error) {
	var (
		entry core.Entry
		kind  string
		date  string
	)
	if err := row.Scan(&entry.ID, &entry.UserID, &entry.Amount, &entry.Category, &kind, &date); err != nil {
		return core.Entry{}, err
	}
	entry.Type = core.EntryType(kind)

	created, err := time.Parse(timeLayout, date)
	if err != nil {
		return core.Entry{}, fmt.Errorf("parse entry date %q: %w", date, err)
	}
	entry.CreatedAt = created
	return entry, nil
}

// dayBounds converts a local calendar day into the UTC string range
// [start, end) used by the date queries.
func dayBounds(day time.Time) (string, string) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	return start.UTC().Format(timeLayout), end.UTC().Format(timeLayout)
}
