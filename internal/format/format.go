// Package format renders the bot's Hebrew replies. Templates are fixed
// strings; only amounts and the echoed date argument vary. All amounts are
// rendered with zero decimal places.
package format

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"kesef/internal/core"
)

// Fixed replies keyed by failure kind.
const (
	MsgBadFormat         = "❌ פורמט שגוי\nשלח: קטגוריה סכום (עם + בסוף אם זו הכנסה)\nלדוגמה: אוכל 50\nמשכורת 1500 +"
	MsgNotANumber        = "❌ הסכום חייב להיות מספר"
	MsgAmountNotPositive = "❌ הסכום חייב להיות גדול מאפס"
	MsgDeleteUsage       = "❌ שלח את הפקודה כך: /delete dd/mm/yyyy"
	MsgInvalidDate       = "❌ תאריך לא תקין. השתמש בפורמט dd/mm/yyyy"
	MsgSearchUsage       = "פורמט לא תקין. דוגמה:\nsearch date 14/02/2026"
	MsgNothingToUndo     = "❌ אין רשומות למחוק"
	MsgNoDataForDate     = "אין נתונים לתאריך הזה"
	MsgNoDataThisWeek    = "📆 אין הוצאות או הכנסות השבוע"
	MsgNoDataThisMonth   = "🗓️ אין הוצאות או הכנסות החודש"
	MsgInternalError     = "❌ משהו השתבש, נסה שוב"
)

// ErrorReply maps a domain error to its fixed user-facing reply.
func ErrorReply(err error) string {
	switch {
	case errors.Is(err, core.ErrBadFormat):
		return MsgBadFormat
	case errors.Is(err, core.ErrNotANumber):
		return MsgNotANumber
	case errors.Is(err, core.ErrAmountNotPositive):
		return MsgAmountNotPositive
	case errors.Is(err, core.ErrInvalidDate):
		return MsgInvalidDate
	case errors.Is(err, core.ErrEmptyLedger):
		return MsgNothingToUndo
	default:
		return MsgInternalError
	}
}

// Confirmation renders the reply sent after a successful entry, showing
// week and month totals with signed nets.
func Confirmation(week, month core.Totals) string {
	return fmt.Sprintf(
		"✅ נרשם בהצלחה\n\n"+
			"📆 סה״כ השבוע:\n"+
			"הכנסות: %s ₪\n"+
			"הוצאות: %s ₪\n"+
			"נטו: %s ₪\n\n"+
			"🗓️ סה״כ החודש:\n"+
			"הכנסות: %s ₪\n"+
			"הוצאות: %s ₪\n"+
			"נטו: %s ₪",
		amount(week.Income), amount(week.Expense), net(week.Net()),
		amount(month.Income), amount(month.Expense), net(month.Net()))
}

// WeeklyBreakdown renders the /week category summary.
func WeeklyBreakdown(b core.Breakdown) string {
	if b.Empty() {
		return MsgNoDataThisWeek
	}
	return breakdown("📆 סה״כ השבוע לפי קטגוריות:", "📊 נטו השבוע:", b)
}

// MonthlyBreakdown renders the /month category summary.
func MonthlyBreakdown(b core.Breakdown) string {
	if b.Empty() {
		return MsgNoDataThisMonth
	}
	return breakdown("🗓️ סה״כ החודש לפי קטגוריות:", "📊 נטו החודש:", b)
}

func breakdown(title, netLabel string, b core.Breakdown) string {
	incomeText := categoryLines(b.Income)
	if incomeText == "" {
		incomeText = "אין הכנסות"
	}
	expenseText := categoryLines(b.Expense)
	if expenseText == "" {
		expenseText = "אין הוצאות"
	}

	totals := b.Totals()
	return fmt.Sprintf(
		"%s\n"+
			"הכנסות:\n%s\n"+
			"סה״כ הכנסות: %s ₪\n\n"+
			"הוצאות:\n%s\n"+
			"סה״כ הוצאות: %s ₪\n\n"+
			"%s %s ₪",
		title,
		incomeText, amount(totals.Income),
		expenseText, amount(totals.Expense),
		netLabel, net(totals.Net()))
}

// SearchResult renders the /search reply for one calendar date: signed
// per-category lines, totals and net.
func SearchResult(dateArg string, b core.Breakdown) string {
	if b.Empty() {
		return MsgNoDataForDate
	}

	var lines []string
	for _, cat := range sortedKeys(b.Income) {
		lines = append(lines, fmt.Sprintf("🟢 %s: +%s ₪", cat, amount(b.Income[cat])))
	}
	for _, cat := range sortedKeys(b.Expense) {
		lines = append(lines, fmt.Sprintf("🔴 %s: -%s ₪", cat, amount(b.Expense[cat])))
	}

	totals := b.Totals()
	return fmt.Sprintf(
		"📅 סיכום ל־%s:\n\n%s\n\n"+
			"💰 הכנסות: %s ₪\n"+
			"💸 הוצאות: %s ₪\n"+
			"📊 נטו: %s ₪",
		dateArg,
		strings.Join(lines, "\n"),
		amount(totals.Income), amount(totals.Expense), net(totals.Net()))
}

// UndoConfirmation echoes the removed entry.
func UndoConfirmation(e core.Entry) string {
	return fmt.Sprintf("✅ נמחקה הרשומה האחרונה: %s %s ₪ (%s)",
		e.Category, amount(e.Amount), e.Type)
}

// DeleteConfirmation echoes the purged date argument.
func DeleteConfirmation(dateArg string) string {
	return fmt.Sprintf("✅ נמחקו כל ההכנסות וההוצאות מתאריך %s", dateArg)
}

func categoryLines(sums map[string]float64) string {
	var lines []string
	for _, cat := range sortedKeys(sums) {
		lines = append(lines, fmt.Sprintf("%s: %s ₪", cat, amount(sums[cat])))
	}
	return strings.Join(lines, "\n")
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func amount(v float64) string {
	return fmt.Sprintf("%.0f", v)
}

// net renders a signed net amount. The explicit "+" appears only when the
// net is strictly positive; zero and negative nets carry no plus.
func net(v float64) string {
	if v > 0 {
		return "+" + amount(v)
	}
	return amount(v)
}
