package sqlstorage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/storage"
)

const dbErrUniqueViolation = "23505"

type Config struct {
	Host     string
	Port     int
	Database string
	Username string
	Password string
}

type Storage struct {
	host     string
	port     int
	database string
	username string
	password string
	db       *sqlx.DB
}

type eventRow struct {
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	Profiles    pq.StringArray `db:"profiles"`
	Timezone    string         `db:"timezone"`
	StartTime   time.Time      `db:"start_timestamp"`
	EndTime     time.Time      `db:"end_timestamp"`
	CreatedBy   string         `db:"created_by"`
	Version     int64          `db:"version"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}

type eventLogRow struct {
	ID           string    `db:"id"`
	EventID      string    `db:"event_id"`
	UpdatedBy    string    `db:"updated_by"`
	UserTimezone string    `db:"user_timezone"`
	Changes      []byte    `db:"changes"`
	Timestamp    time.Time `db:"log_timestamp"`
}

func New(config Config) *Storage {
	return &Storage{
		host:     config.Host,
		port:     config.Port,
		database: config.Database,
		username: config.Username,
		password: config.Password,
	}
}

func (s *Storage) Connect(ctx context.Context) error {
	db, err := sqlx.ConnectContext(
		ctx,
		"postgres",
		fmt.Sprintf(
			"sslmode=disable host=%s port=%d dbname=%s user=%s password=%s",
			s.host, s.port, s.database, s.username, s.password),
	)
	if err != nil {
		log.Errorf("failed to connect: %v", err)
		return storage.ErrConnectionFailed
	}
	s.db = db
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

func (s *Storage) AddProfile(ctx context.Context, p *storage.Profile) error {
	switch p.ID {
	case "":
		err := s.db.GetContext(
			ctx,
			&p.ID,
			"INSERT INTO profiles(name, timezone, is_admin, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5) RETURNING id",
			p.Name, p.Timezone, p.IsAdmin, p.CreatedAt, p.UpdatedAt)
		return wrapProfileInsertErr(p, err)
	default:
		_, err := s.db.ExecContext(
			ctx,
			"INSERT INTO profiles(id, name, timezone, is_admin, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6)",
			p.ID, p.Name, p.Timezone, p.IsAdmin, p.CreatedAt, p.UpdatedAt)
		return wrapProfileInsertErr(p, err)
	}
}

// A partial unique index on is_admin (migrations/001_init.sql) backs the
// single-admin rule, so a concurrent second setup trips 23505 here.
func wrapProfileInsertErr(p *storage.Profile, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		if p.IsAdmin && pqErr.Constraint == "profiles_single_admin" {
			return storage.ErrAdminExists
		}
		return fmt.Errorf("duplicate ID %q: %w", p.ID, storage.ErrDuplicateID)
	}
	return err
}

func (s *Storage) GetProfile(ctx context.Context, id string) (storage.Profile, error) {
	var p storage.Profile
	err := s.db.GetContext(
		ctx,
		&p,
		"SELECT id, name, timezone, is_admin, created_at, updated_at FROM profiles WHERE id=$1",
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Profile{}, fmt.Errorf("profile %q: %w", id, storage.ErrNotFoundProfile)
	}
	return p, err
}

func (s *Storage) GetProfiles(ctx context.Context, ids []string) ([]storage.Profile, error) {
	var profiles []storage.Profile
	err := s.db.SelectContext(
		ctx,
		&profiles,
		"SELECT id, name, timezone, is_admin, created_at, updated_at FROM profiles WHERE id = ANY($1)",
		pq.Array(ids),
	)
	return profiles, err
}

func (s *Storage) ListProfiles(ctx context.Context) ([]storage.Profile, error) {
	var profiles []storage.Profile
	err := s.db.SelectContext(
		ctx,
		&profiles,
		"SELECT id, name, timezone, is_admin, created_at, updated_at FROM profiles ORDER BY created_at",
	)
	return profiles, err
}

func (s *Storage) FindAdmin(ctx context.Context) (storage.Profile, bool, error) {
	var p storage.Profile
	err := s.db.GetContext(
		ctx,
		&p,
		"SELECT id, name, timezone, is_admin, created_at, updated_at FROM profiles WHERE is_admin LIMIT 1",
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Profile{}, false, nil
	}
	if err != nil {
		return storage.Profile{}, false, err
	}
	return p, true, nil
}

func (s *Storage) UpdateProfileTimezone(ctx context.Context, id string, timezone string) (storage.Profile, error) {
	var p storage.Profile
	err := s.db.GetContext(
		ctx,
		&p,
		"UPDATE profiles SET timezone=$2, updated_at=NOW() WHERE id=$1 "+
			"RETURNING id, name, timezone, is_admin, created_at, updated_at",
		id,
		timezone,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Profile{}, fmt.Errorf("profile %q: %w", id, storage.ErrNotFoundProfile)
	}
	return p, err
}

func (s *Storage) AddEvent(ctx context.Context, e *storage.Event) error {
	var err error
	switch e.ID {
	case "":
		err = s.db.GetContext(
			ctx,
			&e.ID,
			"INSERT INTO events(title, description, profiles, timezone, start_timestamp, end_timestamp, "+
				"created_by, version, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id",
			e.Title, e.Description, pq.Array(e.Profiles), e.Timezone,
			e.StartTime.UTC(), e.EndTime.UTC(), e.CreatedBy, e.Version, e.CreatedAt, e.UpdatedAt)
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO events(id, title, description, profiles, timezone, start_timestamp, end_timestamp, "+
				"created_by, version, created_at, updated_at) "+
				"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)",
			e.ID, e.Title, e.Description, pq.Array(e.Profiles), e.Timezone,
			e.StartTime.UTC(), e.EndTime.UTC(), e.CreatedBy, e.Version, e.CreatedAt, e.UpdatedAt)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == dbErrUniqueViolation {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateID)
	}
	return err
}

func (s *Storage) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	var row eventRow
	err := s.db.GetContext(ctx, &row, selectEvents+" WHERE id=$1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Event{}, fmt.Errorf("event %q: %w", id, storage.ErrNotFoundEvent)
	}
	if err != nil {
		return storage.Event{}, err
	}
	return row.toEvent(), nil
}

func (s *Storage) ListEvents(ctx context.Context) ([]storage.Event, error) {
	return s.selectMany(ctx, selectEvents+" ORDER BY start_timestamp")
}

func (s *Storage) ListEventsForProfile(ctx context.Context, profileID string) ([]storage.Event, error) {
	return s.selectMany(ctx, selectEvents+" WHERE $1 = ANY(profiles) ORDER BY start_timestamp", profileID)
}

// Select in range [from:to).
func (s *Storage) ListEventsStartingBetween(ctx context.Context, from time.Time, to time.Time) ([]storage.Event, error) {
	return s.selectMany(
		ctx,
		selectEvents+" WHERE start_timestamp>=$1 AND start_timestamp<$2 ORDER BY start_timestamp",
		from, to,
	)
}

func (s *Storage) UpdateEvent(ctx context.Context, id string, expectedVersion int64, e storage.Event) error {
	res, err := s.db.ExecContext(
		ctx,
		"UPDATE events SET title=$3, description=$4, profiles=$5, timezone=$6, start_timestamp=$7, "+
			"end_timestamp=$8, version=version+1, updated_at=$9 "+
			"WHERE id=$1 AND version=$2",
		id, expectedVersion,
		e.Title, e.Description, pq.Array(e.Profiles), e.Timezone,
		e.StartTime.UTC(), e.EndTime.UTC(), e.UpdatedAt,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := s.db.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM events WHERE id=$1)", id); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
		}
		return fmt.Errorf("event %q version %d: %w", id, expectedVersion, storage.ErrVersionConflict)
	}
	return nil
}

func (s *Storage) AddEventLog(ctx context.Context, l *storage.EventLog) error {
	changes, err := json.Marshal(l.Changes)
	if err != nil {
		return fmt.Errorf("failed to encode changes: %w", err)
	}
	switch l.ID {
	case "":
		return s.db.GetContext(
			ctx,
			&l.ID,
			"INSERT INTO event_logs(event_id, updated_by, user_timezone, changes, log_timestamp) "+
				"VALUES($1, $2, $3, $4, $5) RETURNING id",
			l.EventID, l.UpdatedBy, l.UserTimezone, changes, l.Timestamp.UTC())
	default:
		_, err = s.db.ExecContext(
			ctx,
			"INSERT INTO event_logs(id, event_id, updated_by, user_timezone, changes, log_timestamp) "+
				"VALUES($1, $2, $3, $4, $5, $6)",
			l.ID, l.EventID, l.UpdatedBy, l.UserTimezone, changes, l.Timestamp.UTC())
		return err
	}
}

func (s *Storage) ListEventLogs(ctx context.Context, eventID string) ([]storage.EventLog, error) {
	var rows []eventLogRow
	err := s.db.SelectContext(
		ctx,
		&rows,
		"SELECT id, event_id, updated_by, user_timezone, changes, log_timestamp "+
			"FROM event_logs WHERE event_id=$1 ORDER BY log_timestamp DESC",
		eventID,
	)
	if err != nil {
		return nil, err
	}
	logs := make([]storage.EventLog, 0, len(rows))
	for _, row := range rows {
		l := storage.EventLog{
			ID:           row.ID,
			EventID:      row.EventID,
			UpdatedBy:    row.UpdatedBy,
			UserTimezone: row.UserTimezone,
			Timestamp:    row.Timestamp,
		}
		if err := json.Unmarshal(row.Changes, &l.Changes); err != nil {
			return nil, fmt.Errorf("failed to decode changes of log %q: %w", row.ID, err)
		}
		logs = append(logs, l)
	}
	return logs, nil
}

const selectEvents = "SELECT id, title, description, profiles, timezone, start_timestamp, end_timestamp, " +
	"created_by, version, created_at, updated_at FROM events"

func (s *Storage) selectMany(ctx context.Context, query string, args ...any) ([]storage.Event, error) {
	var rows []eventRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	events := make([]storage.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toEvent())
	}
	return events, nil
}

func (r eventRow) toEvent() storage.Event {
	return storage.Event{
		ID:          r.ID,
		Title:       r.Title,
		Description: r.Description,
		Profiles:    []string(r.Profiles),
		Timezone:    r.Timezone,
		StartTime:   r.StartTime,
		EndTime:     r.EndTime,
		CreatedBy:   r.CreatedBy,
		Version:     r.Version,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
