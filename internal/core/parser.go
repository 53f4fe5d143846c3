// Package core holds the ledger domain: entries, the message parser and
// the summary value types. Everything here is pure; persistence lives in
// internal/storage.
package core

import (
	"math"
	"strconv"
	"strings"
)

// ParsedLine is the outcome of parsing one free-text message.
type ParsedLine struct {
	Amount   float64
	Category string
	Type     EntryType
}

// ParseLine turns a raw message like "אוכל 50" into a ledger entry draft.
//
// The line is split on whitespace. A trailing literal "+" marks income, in
// which case the amount is the second-to-last token; otherwise the line is
// an expense and the amount is the last token. Whatever precedes the amount
// becomes the category, joined by single spaces (it may be empty).
//
// Returns ErrBadFormat for fewer than two tokens, ErrNotANumber when the
// amount token does not parse, and ErrAmountNotPositive for zero or
// negative amounts.
func ParseLine(text string) (ParsedLine, error) {
	tokens := strings.Fields(text)
	if len(tokens) < 2 {
		return ParsedLine{}, ErrBadFormat
	}

	var (
		amountTok string
		rest      []string
		kind      EntryType
	)
	if tokens[len(tokens)-1] == "+" {
		kind = Income
		amountTok = tokens[len(tokens)-2]
		rest = tokens[:len(tokens)-2]
	} else {
		kind = Expense
		amountTok = tokens[len(tokens)-1]
		rest = tokens[:len(tokens)-1]
	}

	amount, err := strconv.ParseFloat(amountTok, 64)
	if err != nil || math.IsNaN(amount) || math.IsInf(amount, 0) {
		return ParsedLine{}, ErrNotANumber
	}
	if amount <= 0 {
		return ParsedLine{}, ErrAmountNotPositive
	}

	return ParsedLine{
		Amount:   amount,
		Category: strings.Join(rest, " "),
		Type:     kind,
	}, nil
}
