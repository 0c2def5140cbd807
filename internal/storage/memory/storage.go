package memorystorage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teamcal/teamcal/internal/storage"
)

type Storage struct {
	mu       sync.RWMutex
	profiles map[string]storage.Profile
	events   map[string]storage.Event
	logs     map[string][]storage.EventLog
}

func New() *Storage {
	return &Storage{
		profiles: make(map[string]storage.Profile),
		events:   make(map[string]storage.Event),
		logs:     make(map[string][]storage.EventLog),
	}
}

func (s *Storage) Connect(_ context.Context) error {
	return nil
}

func (s *Storage) Close(_ context.Context) error {
	return nil
}

func (s *Storage) AddProfile(_ context.Context, p *storage.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	} else if _, ok := s.profiles[p.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", p.ID, storage.ErrDuplicateID)
	}
	if p.IsAdmin {
		for _, existing := range s.profiles {
			if existing.IsAdmin {
				return storage.ErrAdminExists
			}
		}
	}
	s.profiles[p.ID] = *p
	return nil
}

func (s *Storage) GetProfile(_ context.Context, id string) (storage.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return storage.Profile{}, fmt.Errorf("profile %q: %w", id, storage.ErrNotFoundProfile)
	}
	return p, nil
}

func (s *Storage) GetProfiles(_ context.Context, ids []string) ([]storage.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := make([]storage.Profile, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if p, ok := s.profiles[id]; ok {
			profiles = append(profiles, p)
		}
	}
	return profiles, nil
}

func (s *Storage) ListProfiles(_ context.Context) ([]storage.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	profiles := make([]storage.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		profiles = append(profiles, p)
	}
	sort.Slice(profiles, func(i, j int) bool { return profiles[i].CreatedAt.Before(profiles[j].CreatedAt) })
	return profiles, nil
}

func (s *Storage) FindAdmin(_ context.Context) (storage.Profile, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.profiles {
		if p.IsAdmin {
			return p, true, nil
		}
	}
	return storage.Profile{}, false, nil
}

func (s *Storage) UpdateProfileTimezone(_ context.Context, id string, timezone string) (storage.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return storage.Profile{}, fmt.Errorf("profile %q: %w", id, storage.ErrNotFoundProfile)
	}
	p.Timezone = timezone
	p.UpdatedAt = time.Now().UTC()
	s.profiles[id] = p
	return p, nil
}

func (s *Storage) AddEvent(_ context.Context, e *storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.ID == "" {
		e.ID = uuid.NewString()
	} else if _, ok := s.events[e.ID]; ok {
		return fmt.Errorf("duplicate ID %q: %w", e.ID, storage.ErrDuplicateID)
	}
	s.events[e.ID] = copyEvent(*e)
	return nil
}

func (s *Storage) GetEvent(_ context.Context, id string) (storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.events[id]
	if !ok {
		return storage.Event{}, fmt.Errorf("event %q: %w", id, storage.ErrNotFoundEvent)
	}
	return copyEvent(e), nil
}

func (s *Storage) ListEvents(_ context.Context) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectEvents(func(storage.Event) bool { return true }), nil
}

func (s *Storage) ListEventsForProfile(_ context.Context, profileID string) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectEvents(func(e storage.Event) bool {
		for _, id := range e.Profiles {
			if id == profileID {
				return true
			}
		}
		return false
	}), nil
}

// Select in range [from:to).
func (s *Storage) ListEventsStartingBetween(_ context.Context, from time.Time, to time.Time) ([]storage.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectEvents(func(e storage.Event) bool {
		return !e.StartTime.Before(from) && e.StartTime.Before(to)
	}), nil
}

func (s *Storage) UpdateEvent(_ context.Context, id string, expectedVersion int64, e storage.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.events[id]
	if !ok {
		return fmt.Errorf("failed to update event with id %q: %w", id, storage.ErrNotFoundEvent)
	}
	if current.Version != expectedVersion {
		return fmt.Errorf("event %q version %d: %w", id, current.Version, storage.ErrVersionConflict)
	}
	e.ID = id
	e.Version = expectedVersion + 1
	s.events[id] = copyEvent(e)
	return nil
}

func (s *Storage) AddEventLog(_ context.Context, l *storage.EventLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	s.logs[l.EventID] = append(s.logs[l.EventID], *l)
	return nil
}

func (s *Storage) ListEventLogs(_ context.Context, eventID string) ([]storage.EventLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]storage.EventLog, len(s.logs[eventID]))
	copy(logs, s.logs[eventID])
	sort.Slice(logs, func(i, j int) bool { return logs[i].Timestamp.After(logs[j].Timestamp) })
	return logs, nil
}

func (s *Storage) selectEvents(match func(storage.Event) bool) []storage.Event {
	events := make([]storage.Event, 0)
	for _, e := range s.events {
		if match(e) {
			events = append(events, copyEvent(e))
		}
	}
	sort.Slice(events, func(i, j int) bool { return events[i].StartTime.Before(events[j].StartTime) })
	return events
}

func copyEvent(e storage.Event) storage.Event {
	profiles := make([]string, len(e.Profiles))
	copy(profiles, e.Profiles)
	e.Profiles = profiles
	return e
}
