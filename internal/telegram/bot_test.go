package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kesef/internal/core"
	"kesef/internal/format"
	"kesef/internal/services"
)

// fakeLedger records calls and returns canned results.
type fakeLedger struct {
	recordText  string
	recordErr   error
	undoErr     error
	purgedDay   time.Time
	searchedDay time.Time
	breakdown   core.Breakdown
}

func (f *fakeLedger) Record(_ context.Context, _ int64, text string) (services.Confirmation, error) {
	f.recordText = text
	if f.recordErr != nil {
		return services.Confirmation{}, f.recordErr
	}
	return services.Confirmation{
		Entry: core.Entry{ID: 1, Amount: 50, Category: "אוכל", Type: core.Expense},
		Week:  core.Totals{Expense: 50},
		Month: core.Totals{Expense: 50},
	}, nil
}

func (f *fakeLedger) Summary(_ context.Context, _ int64, _ services.Window) (core.Breakdown, error) {
	return f.breakdown, nil
}

func (f *fakeLedger) Undo(_ context.Context, _ int64) (core.Entry, error) {
	if f.undoErr != nil {
		return core.Entry{}, f.undoErr
	}
	return core.Entry{Category: "אוכל", Amount: 50, Type: core.Expense}, nil
}

func (f *fakeLedger) PurgeDay(_ context.Context, _ int64, day time.Time) (int64, error) {
	f.purgedDay = day
	return 2, nil
}

func (f *fakeLedger) SearchDay(_ context.Context, _ int64, day time.Time) (core.Breakdown, error) {
	f.searchedDay = day
	return f.breakdown, nil
}

func message(text string) *tgMessage {
	return &tgMessage{
		From: &tgUser{ID: 12},
		Chat: tgChat{ID: 34},
		Text: text,
	}
}

func TestHandleMessageFreeText(t *testing.T) {
	ledger := &fakeLedger{}
	bot := NewBot("token", 30, ledger)

	reply := bot.handleMessage(context.Background(), message("אוכל 50"))

	if ledger.recordText != "אוכל 50" {
		t.Errorf("Record called with %q", ledger.recordText)
	}
	if !strings.Contains(reply, "✅ נרשם בהצלחה") {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleMessageParseError(t *testing.T) {
	ledger := &fakeLedger{recordErr: core.ErrBadFormat}
	bot := NewBot("token", 30, ledger)

	reply := bot.handleMessage(context.Background(), message("50"))
	if reply != format.MsgBadFormat {
		t.Errorf("reply = %q, want format error message", reply)
	}
}

func TestHandleMessageWeek(t *testing.T) {
	b := core.NewBreakdown()
	b.Expense["אוכל"] = 50
	ledger := &fakeLedger{breakdown: b}
	bot := NewBot("token", 30, ledger)

	reply := bot.handleMessage(context.Background(), message("/week"))
	if !strings.Contains(reply, "סה״כ השבוע לפי קטגוריות") {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleMessageCommandWithBotMention(t *testing.T) {
	ledger := &fakeLedger{breakdown: core.NewBreakdown()}
	bot := NewBot("token", 30, ledger)

	reply := bot.handleMessage(context.Background(), message("/month@kesef_bot"))
	if reply != format.MsgNoDataThisMonth {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleMessageUndoEmpty(t *testing.T) {
	ledger := &fakeLedger{undoErr: core.ErrEmptyLedger}
	bot := NewBot("token", 30, ledger)

	reply := bot.handleMessage(context.Background(), message("/undo"))
	if reply != format.MsgNothingToUndo {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleMessageDelete(t *testing.T) {
	ledger := &fakeLedger{}
	bot := NewBot("token", 30, ledger)
	ctx := context.Background()

	// Wrong arity.
	if got := bot.handleMessage(ctx, message("/delete")); got != format.MsgDeleteUsage {
		t.Errorf("no-arg reply = %q", got)
	}
	if got := bot.handleMessage(ctx, message("/delete 1/2 2026")); got != format.MsgDeleteUsage {
		t.Errorf("two-arg reply = %q", got)
	}

	// Malformed date.
	if got := bot.handleMessage(ctx, message("/delete 2026-02-14")); got != format.MsgInvalidDate {
		t.Errorf("bad-date reply = %q", got)
	}

	// Valid date routes to PurgeDay with the parsed local day.
	got := bot.handleMessage(ctx, message("/delete 14/02/2026"))
	if !strings.Contains(got, "14/02/2026") {
		t.Errorf("delete reply = %q", got)
	}
	want := time.Date(2026, 2, 14, 0, 0, 0, 0, time.Local)
	if !ledger.purgedDay.Equal(want) {
		t.Errorf("purged day = %v, want %v", ledger.purgedDay, want)
	}
}

func TestHandleMessageSearch(t *testing.T) {
	b := core.NewBreakdown()
	b.Expense["מתנות"] = 60
	ledger := &fakeLedger{breakdown: b}
	bot := NewBot("token", 30, ledger)
	ctx := context.Background()

	if got := bot.handleMessage(ctx, message("/search 14/02/2026")); got != format.MsgSearchUsage {
		t.Errorf("missing-keyword reply = %q", got)
	}
	if got := bot.handleMessage(ctx, message("/search date tomorrow")); got != format.MsgSearchUsage {
		t.Errorf("bad-date reply = %q", got)
	}

	got := bot.handleMessage(ctx, message("/search date 14/02/2026"))
	if !strings.Contains(got, "🔴 מתנות: -60 ₪") {
		t.Errorf("search reply = %q", got)
	}
}

func TestHandleMessageIgnores(t *testing.T) {
	ledger := &fakeLedger{}
	bot := NewBot("token", 30, ledger)
	ctx := context.Background()

	if got := bot.handleMessage(ctx, message("/unknown")); got != "" {
		t.Errorf("unknown command reply = %q, want none", got)
	}
	if got := bot.handleMessage(ctx, message("   ")); got != "" {
		t.Errorf("blank message reply = %q, want none", got)
	}
	if got := bot.handleMessage(ctx, &tgMessage{Chat: tgChat{ID: 1}, Text: "אוכל 50"}); got != "" {
		t.Errorf("senderless message reply = %q, want none", got)
	}
}

func TestReplySendsChatIDAndText(t *testing.T) {
	var sent struct {
		ChatID int64  `json:"chat_id"`
		Text   string `json:"text"`
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&sent); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	bot := NewBot("token", 30, &fakeLedger{})
	bot.api = ts.URL

	bot.reply(context.Background(), 34, "שלום")

	if sent.ChatID != 34 || sent.Text != "שלום" {
		t.Errorf("sent = %+v", sent)
	}
}
