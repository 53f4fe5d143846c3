package core

import (
	"errors"
	"time"
)

const (
	Income  EntryType = "income"
	Expense EntryType = "expense"
)

type (
	// EntryType is the closed income/expense axis of a ledger entry.
	EntryType string

	// Entry is one ledger record. Entries are inserted and deleted,
	// never updated in place.
	Entry struct {
		ID        int64
		UserID    int64
		Amount    float64
		Category  string // free text, may be empty, not normalized
		Type      EntryType
		CreatedAt time.Time
	}
)

var (
	ErrBadFormat         = errors.New("message needs at least a category and an amount")
	ErrNotANumber        = errors.New("amount is not a number")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrInvalidDate       = errors.New("invalid date")
	ErrEmptyLedger       = errors.New("ledger is empty")
)

func (t EntryType) Valid() bool {
	return t == Income || t == Expense
}

func (e Entry) Validate() error {
	if e.Amount <= 0 {
		return ErrAmountNotPositive
	}
	if !e.Type.Valid() {
		return errors.New("invalid entry type")
	}
	return nil
}
