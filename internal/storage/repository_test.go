package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"kesef/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "kesef.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// setEntryDate rewrites an entry's timestamp so tests can place entries in
// past windows. Production code never updates rows.
func setEntryDate(t *testing.T, repo *SQLiteRepository, id int64, at time.Time) {
	t.Helper()
	_, err := repo.db.Exec(`UPDATE entries SET date = ? WHERE id = ?`,
		at.UTC().Format(timeLayout), id)
	if err != nil {
		t.Fatalf("set entry date: %v", err)
	}
}

func TestInsertAndSumByTypeSince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const user = int64(7)

	if _, err := repo.InsertEntry(ctx, user, 50, "אוכל", core.Expense); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.InsertEntry(ctx, user, 30, "תחבורה", core.Expense); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.InsertEntry(ctx, user, 1500, "משכורת", core.Income); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// An old entry must never contribute to a window starting after it.
	old, err := repo.InsertEntry(ctx, user, 999, "ישן", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	setEntryDate(t, repo, old.ID, time.Now().AddDate(0, 0, -30))

	since := time.Now().Add(-7 * 24 * time.Hour)
	totals, err := repo.SumByTypeSince(ctx, user, since)
	if err != nil {
		t.Fatalf("SumByTypeSince: %v", err)
	}
	if totals.Income != 1500 {
		t.Errorf("Income = %v, want 1500", totals.Income)
	}
	if totals.Expense != 80 {
		t.Errorf("Expense = %v, want 80", totals.Expense)
	}

	// Idempotence: a second read without writes yields the same result.
	again, err := repo.SumByTypeSince(ctx, user, since)
	if err != nil {
		t.Fatalf("SumByTypeSince (second): %v", err)
	}
	if again != totals {
		t.Errorf("totals changed between identical reads: %v then %v", totals, again)
	}
}

func TestSumByTypeSinceScopedByUser(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	if _, err := repo.InsertEntry(ctx, 1, 100, "אוכל", core.Expense); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := repo.InsertEntry(ctx, 2, 40, "אוכל", core.Expense); err != nil {
		t.Fatalf("insert: %v", err)
	}

	totals, err := repo.SumByTypeSince(ctx, 1, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("SumByTypeSince: %v", err)
	}
	if totals.Expense != 100 {
		t.Errorf("user 1 expense = %v, want 100 (must not see user 2)", totals.Expense)
	}
}

func TestSumByCategorySince(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const user = int64(3)

	seed := []struct {
		amount   float64
		category string
		kind     core.EntryType
	}{
		{50, "אוכל", core.Expense},
		{25, "אוכל", core.Expense},
		{30, "החזר", core.Expense},
		{80, "החזר", core.Income},
		{1500, "משכורת", core.Income},
	}
	for _, s := range seed {
		if _, err := repo.InsertEntry(ctx, user, s.amount, s.category, s.kind); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	b, err := repo.SumByCategorySince(ctx, user, time.Now().Add(-time.Hour))
	if err != nil {
		t.Fatalf("SumByCategorySince: %v", err)
	}

	wantExpense := map[string]float64{"אוכל": 75, "החזר": 30}
	wantIncome := map[string]float64{"החזר": 80, "משכורת": 1500}
	if !reflect.DeepEqual(b.Expense, wantExpense) {
		t.Errorf("Expense = %v, want %v", b.Expense, wantExpense)
	}
	if !reflect.DeepEqual(b.Income, wantIncome) {
		t.Errorf("Income = %v, want %v", b.Income, wantIncome)
	}
}

func TestDeleteMostRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const user = int64(5)

	a, err := repo.InsertEntry(ctx, user, 10, "א", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := repo.InsertEntry(ctx, user, 20, "ב", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.DeleteMostRecent(ctx, user)
	if err != nil {
		t.Fatalf("DeleteMostRecent: %v", err)
	}
	if got.ID != b.ID {
		t.Errorf("first undo removed id %d, want %d", got.ID, b.ID)
	}

	got, err = repo.DeleteMostRecent(ctx, user)
	if err != nil {
		t.Fatalf("DeleteMostRecent: %v", err)
	}
	if got.ID != a.ID {
		t.Errorf("second undo removed id %d, want %d", got.ID, a.ID)
	}

	if _, err := repo.DeleteMostRecent(ctx, user); !errors.Is(err, core.ErrEmptyLedger) {
		t.Errorf("undo on empty ledger: err = %v, want ErrEmptyLedger", err)
	}
}

func TestDeleteOnDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const user = int64(9)

	day := time.Date(2026, 2, 14, 0, 0, 0, 0, time.Local)

	place := func(amount float64, at time.Time) {
		t.Helper()
		e, err := repo.InsertEntry(ctx, user, amount, "x", core.Expense)
		if err != nil {
			t.Fatalf("insert: %v", err)
		}
		setEntryDate(t, repo, e.ID, at)
	}

	place(1, day.Add(1*time.Second))              // start of day
	place(2, day.Add(13*time.Hour))               // midday
	place(3, day.Add(24*time.Hour-time.Second))   // 23:59:59
	place(4, day.Add(-time.Second))               // previous day
	place(5, day.Add(24*time.Hour+2*time.Second)) // next day

	removed, err := repo.DeleteOnDate(ctx, user, day)
	if err != nil {
		t.Fatalf("DeleteOnDate: %v", err)
	}
	if removed != 3 {
		t.Errorf("removed = %d, want 3", removed)
	}

	// Adjacent-day entries survive.
	totals, err := repo.SumByTypeSince(ctx, user, time.Time{})
	if err != nil {
		t.Fatalf("SumByTypeSince: %v", err)
	}
	if totals.Expense != 9 {
		t.Errorf("remaining expense = %v, want 9", totals.Expense)
	}

	// Deleting an empty day is not an error.
	removed, err = repo.DeleteOnDate(ctx, user, day)
	if err != nil {
		t.Fatalf("DeleteOnDate (empty): %v", err)
	}
	if removed != 0 {
		t.Errorf("removed = %d, want 0", removed)
	}
}

func TestSumByCategoryOnDate(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	const user = int64(11)

	day := time.Date(2026, 2, 14, 0, 0, 0, 0, time.Local)

	e, err := repo.InsertEntry(ctx, user, 60, "מתנות", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	setEntryDate(t, repo, e.ID, day.Add(10*time.Hour))

	e, err = repo.InsertEntry(ctx, user, 200, "בונוס", core.Income)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	setEntryDate(t, repo, e.ID, day.Add(20*time.Hour))

	// Different day, must not appear.
	e, err = repo.InsertEntry(ctx, user, 77, "מתנות", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	setEntryDate(t, repo, e.ID, day.AddDate(0, 0, 1))

	b, err := repo.SumByCategoryOnDate(ctx, user, day)
	if err != nil {
		t.Fatalf("SumByCategoryOnDate: %v", err)
	}
	if got := b.Expense["מתנות"]; got != 60 {
		t.Errorf("expense sum = %v, want 60", got)
	}
	if got := b.Income["בונוס"]; got != 200 {
		t.Errorf("income sum = %v, want 200", got)
	}
}

func TestSyncStateLifecycle(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a, err := repo.InsertEntry(ctx, 1, 10, "א", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	b, err := repo.InsertEntry(ctx, 1, 20, "ב", core.Income)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	pending, err := repo.PendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSyncEntries: %v", err)
	}
	if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != b.ID {
		t.Fatalf("pending = %+v, want [%d %d] oldest first", pending, a.ID, b.ID)
	}

	if err := repo.MarkSynced(ctx, a.ID); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}
	if err := repo.MarkSyncError(ctx, b.ID); err != nil {
		t.Fatalf("MarkSyncError: %v", err)
	}

	pending, err = repo.PendingSyncEntries(ctx, 10)
	if err != nil {
		t.Fatalf("PendingSyncEntries: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after marks = %+v, want none", pending)
	}
}

func TestGetEntry(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	e, err := repo.InsertEntry(ctx, 1, 42, "ספרים", core.Expense)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetEntry: %v", err)
	}
	if got.Amount != 42 || got.Category != "ספרים" || got.Type != core.Expense {
		t.Errorf("GetEntry = %+v", got)
	}

	if _, err := repo.GetEntry(ctx, e.ID+100); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing entry: err = %v, want ErrEntryNotFound", err)
	}
}
