package amqp

import (
	"encoding/json"
	"time"

	"kesef/internal/core"
)

// Event kinds carried on the ledger event queue.
const (
	KindEntryRecorded = "entry_recorded"
	KindEntryDeleted  = "entry_deleted"
	KindDayPurged     = "day_purged"
)

// Event is the envelope published after every ledger mutation. A recorded
// event carries only the entry id; the worker reads the row from SQLite.
// A deleted event carries the full fields, since the row is already gone.
type Event struct {
	Kind      string    `json:"kind"`
	ID        int64     `json:"id,omitempty"`
	UserID    int64     `json:"user_id,omitempty"`
	Amount    float64   `json:"amount,omitempty"`
	Category  string    `json:"category,omitempty"`
	Type      string    `json:"type,omitempty"`
	Day       string    `json:"day,omitempty"`
	Count     int64     `json:"count,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewEntryRecordedEvent(id int64) Event {
	return Event{Kind: KindEntryRecorded, ID: id, Timestamp: time.Now()}
}

func NewEntryDeletedEvent(e core.Entry) Event {
	return Event{
		Kind:      KindEntryDeleted,
		ID:        e.ID,
		UserID:    e.UserID,
		Amount:    e.Amount,
		Category:  e.Category,
		Type:      string(e.Type),
		Timestamp: time.Now(),
	}
}

func NewDayPurgedEvent(userID int64, day time.Time, count int64) Event {
	return Event{
		Kind:      KindDayPurged,
		UserID:    userID,
		Day:       day.Format("2006-01-02"),
		Count:     count,
		Timestamp: time.Now(),
	}
}

func (e Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func EventFromJSON(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}
