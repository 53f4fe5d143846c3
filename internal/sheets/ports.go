// Package sheets declares the outbound export port. The ledger of record
// is SQLite; the spreadsheet is an append-only journal mirroring it.
package sheets

import (
	"context"
	"time"
)

// Row statuses on the export journal.
const (
	StatusRecorded = "recorded"
	StatusDeleted  = "deleted"
	StatusPurged   = "purged"
)

// ExportRow is one appended journal line.
type ExportRow struct {
	At       time.Time
	UserID   int64
	Category string
	Type     string
	Amount   float64
	Status   string
}

// RowAppender appends one row to the export journal.
type RowAppender interface {
	Append(ctx context.Context, row ExportRow) error
}
