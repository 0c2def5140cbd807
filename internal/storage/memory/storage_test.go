package memorystorage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teamcal/teamcal/internal/storage"
	memorystorage "github.com/teamcal/teamcal/internal/storage/memory"
)

func newProfile(name string) storage.Profile {
	now := time.Now().UTC().Truncate(time.Millisecond)
	return storage.Profile{Name: name, Timezone: "UTC", CreatedAt: now, UpdatedAt: now}
}

func newEvent(title string, start time.Time, profiles ...string) storage.Event {
	return storage.Event{
		Title:     title,
		Profiles:  profiles,
		Timezone:  "UTC",
		StartTime: start,
		EndTime:   start.Add(time.Hour),
		CreatedBy: "creator",
		Version:   1,
	}
}

func TestProfiles(t *testing.T) {
	ctx := context.Background()

	t.Run("add and get", func(t *testing.T) {
		s := memorystorage.New()
		p := newProfile("alice")
		require.NoError(t, s.AddProfile(ctx, &p))
		require.NotEmpty(t, p.ID)

		got, err := s.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		require.Equal(t, p, got)
	})

	t.Run("get missing", func(t *testing.T) {
		s := memorystorage.New()
		_, err := s.GetProfile(ctx, "missing")
		require.ErrorIs(t, err, storage.ErrNotFoundProfile)
	})

	t.Run("duplicate id", func(t *testing.T) {
		s := memorystorage.New()
		p := newProfile("alice")
		p.ID = "fixed"
		require.NoError(t, s.AddProfile(ctx, &p))
		dup := newProfile("bob")
		dup.ID = "fixed"
		require.ErrorIs(t, s.AddProfile(ctx, &dup), storage.ErrDuplicateID)
	})

	t.Run("get subset by ids", func(t *testing.T) {
		s := memorystorage.New()
		a, b := newProfile("alice"), newProfile("bob")
		require.NoError(t, s.AddProfile(ctx, &a))
		require.NoError(t, s.AddProfile(ctx, &b))

		found, err := s.GetProfiles(ctx, []string{a.ID, "missing", b.ID, a.ID})
		require.NoError(t, err)
		require.Len(t, found, 2)
	})

	t.Run("single admin", func(t *testing.T) {
		s := memorystorage.New()
		_, exists, err := s.FindAdmin(ctx)
		require.NoError(t, err)
		require.False(t, exists)

		admin := newProfile("root")
		admin.IsAdmin = true
		require.NoError(t, s.AddProfile(ctx, &admin))

		got, exists, err := s.FindAdmin(ctx)
		require.NoError(t, err)
		require.True(t, exists)
		require.Equal(t, admin.ID, got.ID)

		second := newProfile("usurper")
		second.IsAdmin = true
		require.ErrorIs(t, s.AddProfile(ctx, &second), storage.ErrAdminExists)
	})

	t.Run("update timezone", func(t *testing.T) {
		s := memorystorage.New()
		p := newProfile("alice")
		require.NoError(t, s.AddProfile(ctx, &p))

		got, err := s.UpdateProfileTimezone(ctx, p.ID, "Asia/Tokyo")
		require.NoError(t, err)
		require.Equal(t, "Asia/Tokyo", got.Timezone)

		_, err = s.UpdateProfileTimezone(ctx, "missing", "UTC")
		require.ErrorIs(t, err, storage.ErrNotFoundProfile)
	})
}

func TestEvents(t *testing.T) {
	ctx := context.Background()
	initDate := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("add assigns id and get returns copy", func(t *testing.T) {
		s := memorystorage.New()
		e := newEvent("meet", initDate, "p1")
		require.NoError(t, s.AddEvent(ctx, &e))
		require.NotEmpty(t, e.ID)

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, e, got)

		got.Profiles[0] = "mutated"
		again, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, "p1", again.Profiles[0])
	})

	t.Run("list sorted by start time", func(t *testing.T) {
		s := memorystorage.New()
		late := newEvent("late", initDate.Add(2*time.Hour), "p1")
		early := newEvent("early", initDate, "p1")
		require.NoError(t, s.AddEvent(ctx, &late))
		require.NoError(t, s.AddEvent(ctx, &early))

		events, err := s.ListEvents(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"early", "late"}, []string{events[0].Title, events[1].Title})
	})

	t.Run("list for profile", func(t *testing.T) {
		s := memorystorage.New()
		mine := newEvent("mine", initDate, "p1", "p2")
		other := newEvent("other", initDate, "p3")
		require.NoError(t, s.AddEvent(ctx, &mine))
		require.NoError(t, s.AddEvent(ctx, &other))

		events, err := s.ListEventsForProfile(ctx, "p2")
		require.NoError(t, err)
		require.Len(t, events, 1)
		require.Equal(t, "mine", events[0].Title)
	})

	t.Run("starting between is half-open", func(t *testing.T) {
		s := memorystorage.New()
		atFrom := newEvent("atFrom", initDate, "p1")
		inside := newEvent("inside", initDate.Add(time.Hour), "p1")
		atTo := newEvent("atTo", initDate.Add(2*time.Hour), "p1")
		for _, e := range []*storage.Event{&atFrom, &inside, &atTo} {
			require.NoError(t, s.AddEvent(ctx, e))
		}

		events, err := s.ListEventsStartingBetween(ctx, initDate, initDate.Add(2*time.Hour))
		require.NoError(t, err)
		require.Len(t, events, 2)
		require.Equal(t, "atFrom", events[0].Title)
		require.Equal(t, "inside", events[1].Title)
	})

	t.Run("update checks version", func(t *testing.T) {
		s := memorystorage.New()
		e := newEvent("meet", initDate, "p1")
		require.NoError(t, s.AddEvent(ctx, &e))

		updated := e
		updated.Title = "renamed"
		require.NoError(t, s.UpdateEvent(ctx, e.ID, e.Version, updated))

		got, err := s.GetEvent(ctx, e.ID)
		require.NoError(t, err)
		require.Equal(t, "renamed", got.Title)
		require.Equal(t, e.Version+1, got.Version)

		// Second write with the stale version loses.
		require.ErrorIs(t, s.UpdateEvent(ctx, e.ID, e.Version, updated), storage.ErrVersionConflict)
	})

	t.Run("update missing event", func(t *testing.T) {
		s := memorystorage.New()
		require.ErrorIs(t, s.UpdateEvent(ctx, "missing", 1, newEvent("x", initDate, "p1")),
			storage.ErrNotFoundEvent)
	})
}

func TestEventLogs(t *testing.T) {
	ctx := context.Background()

	s := memorystorage.New()
	first := storage.EventLog{
		EventID:      "ev1",
		UpdatedBy:    "p1",
		UserTimezone: "UTC",
		Changes:      []storage.FieldChange{{Field: "title", OldValue: "a", NewValue: "b"}},
		Timestamp:    time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
	second := first
	second.Changes = []storage.FieldChange{{Field: "title", OldValue: "b", NewValue: "c"}}
	second.Timestamp = first.Timestamp.Add(time.Minute)

	require.NoError(t, s.AddEventLog(ctx, &first))
	require.NoError(t, s.AddEventLog(ctx, &second))
	require.NotEmpty(t, first.ID)

	logs, err := s.ListEventLogs(ctx, "ev1")
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, second.ID, logs[0].ID, "newest log comes first")
	require.Equal(t, first.ID, logs[1].ID)

	logs, err = s.ListEventLogs(ctx, "unknown")
	require.NoError(t, err)
	require.Empty(t, logs)
}
