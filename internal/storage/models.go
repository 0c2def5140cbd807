package storage

import (
	"time"
)

type Profile struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Timezone  string    `db:"timezone" json:"timezone"`
	IsAdmin   bool      `db:"is_admin" json:"isAdmin"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// Event stores both boundaries as absolute UTC instants with millisecond
// precision. Timezone keeps the zone the event was authored in.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Profiles    []string  `json:"profiles"`
	Timezone    string    `json:"timezone"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	CreatedBy   string    `json:"createdBy"`
	Version     int64     `json:"version"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type FieldChange struct {
	Field    string `json:"field"`
	OldValue any    `json:"oldValue"`
	NewValue any    `json:"newValue"`
}

// EventLog is append-only; records are never mutated after AddEventLog.
type EventLog struct {
	ID           string        `json:"id"`
	EventID      string        `json:"eventId"`
	UpdatedBy    string        `json:"updatedBy"`
	UserTimezone string        `json:"userTimezone"`
	Changes      []FieldChange `json:"changes"`
	Timestamp    time.Time     `json:"timestamp"`
}
