package amqp

import (
	"encoding/json"
	"time"

	"ledger/internal/store"
)

// ChangeEvent announces a committed write to every process sharing the
// same database. Receivers re-query; the event carries no record data.
type ChangeEvent struct {
	UserID    string    `json:"userId"`
	Op        string    `json:"op"`
	ID        string    `json:"id"`
	Origin    string    `json:"origin"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChangeEvent stamps c with origin and the current time.
func NewChangeEvent(c store.Change, origin string) *ChangeEvent {
	return &ChangeEvent{
		UserID:    c.UserID,
		Op:        c.Op,
		ID:        c.ID,
		Origin:    origin,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the event to JSON bytes
func (m *ChangeEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ChangeEventFromJSON decodes an event from JSON bytes
func ChangeEventFromJSON(data []byte) (*ChangeEvent, error) {
	var msg ChangeEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
