// Package telegram is the chat adapter: a long-polling Bot API client
// that routes slash commands and free-text ledger lines to the service
// layer and sends back the formatted replies.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"kesef/internal/core"
	"kesef/internal/format"
	"kesef/internal/ops"
	"kesef/internal/services"
)

// dateLayout is the literal command argument format: dd/mm/yyyy.
const dateLayout = "02/01/2006"

// Ledger is the service surface the bot depends on.
type Ledger interface {
	Record(ctx context.Context, userID int64, text string) (services.Confirmation, error)
	Summary(ctx context.Context, userID int64, w services.Window) (core.Breakdown, error)
	Undo(ctx context.Context, userID int64) (core.Entry, error)
	PurgeDay(ctx context.Context, userID int64, day time.Time) (int64, error)
	SearchDay(ctx context.Context, userID int64, day time.Time) (core.Breakdown, error)
}

type Bot struct {
	api         string
	token       string
	pollTimeout int
	client      *http.Client
	ledger      Ledger
}

func NewBot(token string, pollTimeout int, ledger Ledger) *Bot {
	return &Bot{
		api:         "https://api.telegram.org",
		token:       token,
		pollTimeout: pollTimeout,
		// Long poll holds the connection open for pollTimeout seconds;
		// the client timeout must exceed it.
		client: &http.Client{Timeout: time.Duration(pollTimeout+30) * time.Second},
		ledger: ledger,
	}
}

// Run polls getUpdates until ctx is cancelled. Each update is handled to
// completion before the next one; there is no concurrent dispatch.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	slog.InfoContext(ctx, "Telegram polling started", "timeout", b.pollTimeout)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		updates, err := b.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.ErrorContext(ctx, "Telegram poll error", "error", err)
			time.Sleep(5 * time.Second)
			continue
		}

		for _, u := range updates {
			offset = u.UpdateID + 1
			if u.Message == nil {
				continue
			}

			uctx := context.WithoutCancel(ctx)
			reply := b.handleMessage(uctx, u.Message)
			if reply != "" {
				b.reply(uctx, u.Message.Chat.ID, reply)
			}
		}
	}
}

func (b *Bot) getUpdates(ctx context.Context, offset int64) ([]tgUpdate, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d",
		b.api, b.token, offset, b.pollTimeout)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode updates: %w", err)
	}
	if !body.OK {
		return nil, fmt.Errorf("getUpdates returned ok=false (status %d)", resp.StatusCode)
	}
	return body.Result, nil
}

// handleMessage routes one inbound message and returns the reply text,
// or "" when the message warrants no reply.
func (b *Bot) handleMessage(ctx context.Context, msg *tgMessage) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" || msg.From == nil {
		return ""
	}
	userID := msg.From.ID

	logger := slog.With("trace_id", uuid.NewString(), "user_id", userID, "chat_id", msg.Chat.ID)

	if !strings.HasPrefix(text, "/") {
		return b.handleEntry(ctx, logger, userID, text)
	}

	fields := strings.Fields(text)
	// In group chats commands arrive as /cmd@botname.
	command, _, _ := strings.Cut(fields[0], "@")
	args := fields[1:]

	switch command {
	case "/week":
		ops.CommandsHandled.WithLabelValues("week").Inc()
		return b.handleSummary(ctx, logger, userID, services.WindowWeek)
	case "/month":
		ops.CommandsHandled.WithLabelValues("month").Inc()
		return b.handleSummary(ctx, logger, userID, services.WindowMonth)
	case "/undo":
		ops.CommandsHandled.WithLabelValues("undo").Inc()
		return b.handleUndo(ctx, logger, userID)
	case "/delete":
		ops.CommandsHandled.WithLabelValues("delete").Inc()
		return b.handleDelete(ctx, logger, userID, args)
	case "/search":
		ops.CommandsHandled.WithLabelValues("search").Inc()
		return b.handleSearch(ctx, logger, userID, args)
	default:
		// Unknown commands get no reply, matching Telegram convention.
		return ""
	}
}

func (b *Bot) handleEntry(ctx context.Context, logger *slog.Logger, userID int64, text string) string {
	conf, err := b.ledger.Record(ctx, userID, text)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrBadFormat),
			errors.Is(err, core.ErrNotANumber),
			errors.Is(err, core.ErrAmountNotPositive):
			ops.ParseRejections.Inc()
		default:
			ops.StoreErrors.Inc()
			logger.ErrorContext(ctx, "Failed to record entry", "error", err)
		}
		return format.ErrorReply(err)
	}

	ops.EntriesRecorded.Inc()
	logger.InfoContext(ctx, "Entry recorded",
		"entry_id", conf.Entry.ID,
		"type", conf.Entry.Type,
		"amount", conf.Entry.Amount)
	return format.Confirmation(conf.Week, conf.Month)
}

func (b *Bot) handleSummary(ctx context.Context, logger *slog.Logger, userID int64, w services.Window) string {
	breakdown, err := b.ledger.Summary(ctx, userID, w)
	if err != nil {
		ops.StoreErrors.Inc()
		logger.ErrorContext(ctx, "Failed to compute summary", "window", w.String(), "error", err)
		return format.ErrorReply(err)
	}
	if w == services.WindowMonth {
		return format.MonthlyBreakdown(breakdown)
	}
	return format.WeeklyBreakdown(breakdown)
}

func (b *Bot) handleUndo(ctx context.Context, logger *slog.Logger, userID int64) string {
	entry, err := b.ledger.Undo(ctx, userID)
	if err != nil {
		if errors.Is(err, core.ErrEmptyLedger) {
			return format.MsgNothingToUndo
		}
		ops.StoreErrors.Inc()
		logger.ErrorContext(ctx, "Failed to undo entry", "error", err)
		return format.ErrorReply(err)
	}
	return format.UndoConfirmation(entry)
}

func (b *Bot) handleDelete(ctx context.Context, logger *slog.Logger, userID int64, args []string) string {
	if len(args) != 1 {
		return format.MsgDeleteUsage
	}
	day, err := time.ParseInLocation(dateLayout, args[0], time.Local)
	if err != nil {
		return format.MsgInvalidDate
	}

	if _, err := b.ledger.PurgeDay(ctx, userID, day); err != nil {
		ops.StoreErrors.Inc()
		logger.ErrorContext(ctx, "Failed to delete entries by date", "day", args[0], "error", err)
		return format.ErrorReply(err)
	}
	return format.DeleteConfirmation(args[0])
}

func (b *Bot) handleSearch(ctx context.Context, logger *slog.Logger, userID int64, args []string) string {
	if len(args) != 2 || args[0] != "date" {
		return format.MsgSearchUsage
	}
	day, err := time.ParseInLocation(dateLayout, args[1], time.Local)
	if err != nil {
		return format.MsgSearchUsage
	}

	breakdown, err := b.ledger.SearchDay(ctx, userID, day)
	if err != nil {
		ops.StoreErrors.Inc()
		logger.ErrorContext(ctx, "Failed to search entries by date", "day", args[1], "error", err)
		return format.ErrorReply(err)
	}
	return format.SearchResult(args[1], breakdown)
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	payload := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	body, _ := json.Marshal(payload)

	url := fmt.Sprintf("%s/bot%s/sendMessage", b.api, b.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		slog.ErrorContext(ctx, "Telegram send request error", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		slog.ErrorContext(ctx, "Telegram send error", "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		slog.WarnContext(ctx, "Telegram send non-200",
			"status", resp.StatusCode, "body", string(respBody))
	}
}
