package storage

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateID      = errors.New("entity with same ID exists")
	ErrNotFoundEvent    = errors.New("event not found")
	ErrNotFoundProfile  = errors.New("profile not found")
	ErrAdminExists      = errors.New("admin profile already exists")
	ErrVersionConflict  = errors.New("event was modified by another update")
	ErrConnectionFailed = errors.New("failed to connect")
)

type Storage interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error

	AddProfile(ctx context.Context, p *Profile) error
	GetProfile(ctx context.Context, id string) (Profile, error)
	// GetProfiles returns the subset of profiles whose IDs were found;
	// missing IDs are not an error here, callers compare counts.
	GetProfiles(ctx context.Context, ids []string) ([]Profile, error)
	ListProfiles(ctx context.Context) ([]Profile, error)
	FindAdmin(ctx context.Context) (Profile, bool, error)
	UpdateProfileTimezone(ctx context.Context, id string, timezone string) (Profile, error)

	AddEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, id string) (Event, error)
	ListEvents(ctx context.Context) ([]Event, error)
	ListEventsForProfile(ctx context.Context, profileID string) ([]Event, error)
	ListEventsStartingBetween(ctx context.Context, from time.Time, to time.Time) ([]Event, error)
	// UpdateEvent writes e only if the stored version still equals
	// expectedVersion, bumping the version by one.
	UpdateEvent(ctx context.Context, id string, expectedVersion int64, e Event) error

	AddEventLog(ctx context.Context, l *EventLog) error
	ListEventLogs(ctx context.Context, eventID string) ([]EventLog, error)
}
