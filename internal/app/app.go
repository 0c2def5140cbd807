package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teamcal/teamcal/internal/audit"
	"github.com/teamcal/teamcal/internal/interval"
	"github.com/teamcal/teamcal/internal/storage"
)

var (
	ErrValidation     = errors.New("invalid request")
	ErrUnknownProfile = errors.New("unknown profile")
)

const defaultTimezone = "UTC"

type App struct {
	Storage storage.Storage
}

func New(storage storage.Storage) *App {
	return &App{Storage: storage}
}

// SetupAdmin creates the single admin profile. Uniqueness is a store-level
// check, not process state, so two racing setups cannot both win.
func (a *App) SetupAdmin(ctx context.Context, name, timezone string) (storage.Profile, error) {
	p, err := a.newProfile(name, timezone)
	if err != nil {
		return storage.Profile{}, err
	}
	if _, exists, err := a.Storage.FindAdmin(ctx); err != nil {
		return storage.Profile{}, err
	} else if exists {
		return storage.Profile{}, storage.ErrAdminExists
	}
	p.IsAdmin = true
	if err := a.Storage.AddProfile(ctx, &p); err != nil {
		return storage.Profile{}, err
	}
	log.Infof("admin profile %q created", p.ID)
	return p, nil
}

func (a *App) CreateProfile(ctx context.Context, name, timezone string) (storage.Profile, error) {
	p, err := a.newProfile(name, timezone)
	if err != nil {
		return storage.Profile{}, err
	}
	if err := a.Storage.AddProfile(ctx, &p); err != nil {
		return storage.Profile{}, err
	}
	return p, nil
}

func (a *App) GetProfile(ctx context.Context, id string) (storage.Profile, error) {
	return a.Storage.GetProfile(ctx, id)
}

func (a *App) ListProfiles(ctx context.Context) ([]storage.Profile, error) {
	return a.Storage.ListProfiles(ctx)
}

func (a *App) UpdateProfileTimezone(ctx context.Context, id, timezone string) (storage.Profile, error) {
	if timezone == "" {
		return storage.Profile{}, fmt.Errorf("timezone is required: %w", ErrValidation)
	}
	if err := interval.CheckZone(timezone); err != nil {
		return storage.Profile{}, err
	}
	return a.Storage.UpdateProfileTimezone(ctx, id, timezone)
}

func (a *App) newProfile(name, timezone string) (storage.Profile, error) {
	if strings.TrimSpace(name) == "" {
		return storage.Profile{}, fmt.Errorf("name is required: %w", ErrValidation)
	}
	if timezone == "" {
		timezone = defaultTimezone
	}
	if err := interval.CheckZone(timezone); err != nil {
		return storage.Profile{}, err
	}
	now := time.Now().UTC().Truncate(time.Millisecond)
	return storage.Profile{
		Name:      strings.TrimSpace(name),
		Timezone:  timezone,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

type CreateEventInput struct {
	Title       string
	Description string
	Profiles    []string
	Timezone    string
	StartDate   string
	StartTime   string
	EndDate     string
	EndTime     string
	CreatedBy   string
}

// CreateEvent runs the validation gate in a fixed order: required fields,
// profile references, creator reference, then interval normalization and
// ordering. A failure at any step leaves nothing persisted.
func (a *App) CreateEvent(ctx context.Context, in CreateEventInput) (storage.Event, error) {
	if strings.TrimSpace(in.Title) == "" {
		return storage.Event{}, fmt.Errorf("title is required: %w", ErrValidation)
	}
	if len(in.Profiles) == 0 {
		return storage.Event{}, fmt.Errorf("profiles must be a non-empty list: %w", ErrValidation)
	}
	if in.CreatedBy == "" {
		return storage.Event{}, fmt.Errorf("createdBy is required: %w", ErrValidation)
	}
	if err := a.resolveProfiles(ctx, in.Profiles); err != nil {
		return storage.Event{}, err
	}
	if _, err := a.Storage.GetProfile(ctx, in.CreatedBy); err != nil {
		if errors.Is(err, storage.ErrNotFoundProfile) {
			return storage.Event{}, fmt.Errorf("creator %q: %w", in.CreatedBy, ErrUnknownProfile)
		}
		return storage.Event{}, err
	}

	timezone := in.Timezone
	if timezone == "" {
		timezone = defaultTimezone
	}
	start, end, err := interval.Normalize(in.StartDate, in.StartTime, in.EndDate, in.EndTime, timezone)
	if err != nil {
		return storage.Event{}, err
	}
	if err := interval.ValidateOrdering(start, end); err != nil {
		return storage.Event{}, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	e := storage.Event{
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Profiles:    in.Profiles,
		Timezone:    timezone,
		StartTime:   start,
		EndTime:     end,
		CreatedBy:   in.CreatedBy,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Storage.AddEvent(ctx, &e); err != nil {
		return storage.Event{}, err
	}
	log.Debugf("event %q created by %q", e.ID, e.CreatedBy)
	return e, nil
}

type UpdateEventInput struct {
	UpdatedBy    string
	UserTimezone string

	Title       *string
	Description *string
	Profiles    []string
	Timezone    *string
	StartDate   string
	StartTime   string
	EndDate     string
	EndTime     string
}

// UpdateEvent applies a partial patch. When the computed change list is empty
// the call is a successful no-op: nothing is written and no audit record
// appears. A changing update bumps the event version and appends exactly one
// EventLog; a stale version fails with storage.ErrVersionConflict, which the
// caller may retry by re-reading and reapplying.
func (a *App) UpdateEvent(ctx context.Context, id string, in UpdateEventInput) (storage.Event, bool, error) {
	if in.UpdatedBy == "" {
		return storage.Event{}, false, fmt.Errorf("updatedBy is required: %w", ErrValidation)
	}
	e, err := a.Storage.GetEvent(ctx, id)
	if err != nil {
		return storage.Event{}, false, err
	}

	patch, err := a.buildPatch(ctx, e, in)
	if err != nil {
		return storage.Event{}, false, err
	}

	changes := audit.Diff(snapshot(e), patch)
	if len(changes) == 0 {
		return e, false, nil
	}

	updated := applyPatch(e, patch)
	if err := interval.ValidateOrdering(updated.StartTime, updated.EndTime); err != nil {
		return storage.Event{}, false, err
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	updated.UpdatedAt = now
	if err := a.Storage.UpdateEvent(ctx, id, e.Version, updated); err != nil {
		return storage.Event{}, false, err
	}
	updated.Version = e.Version + 1

	userTimezone := in.UserTimezone
	if userTimezone == "" {
		userTimezone = defaultTimezone
	}
	l := storage.EventLog{
		EventID:      id,
		UpdatedBy:    in.UpdatedBy,
		UserTimezone: userTimezone,
		Changes:      changes,
		Timestamp:    now,
	}
	if err := a.Storage.AddEventLog(ctx, &l); err != nil {
		return storage.Event{}, false, err
	}
	log.Debugf("event %q updated by %q, %d field(s) changed", id, in.UpdatedBy, len(changes))
	return updated, true, nil
}

func (a *App) GetEvent(ctx context.Context, id string) (storage.Event, error) {
	return a.Storage.GetEvent(ctx, id)
}

func (a *App) ListEvents(ctx context.Context) ([]storage.Event, error) {
	return a.Storage.ListEvents(ctx)
}

func (a *App) ListEventsForProfile(ctx context.Context, profileID string) ([]storage.Event, error) {
	return a.Storage.ListEventsForProfile(ctx, profileID)
}

func (a *App) ListEventLogs(ctx context.Context, eventID string) ([]storage.EventLog, error) {
	return a.Storage.ListEventLogs(ctx, eventID)
}

// resolveProfiles reports every unresolvable reference, sorted, so the error
// is the same regardless of input order.
func (a *App) resolveProfiles(ctx context.Context, ids []string) error {
	found, err := a.Storage.GetProfiles(ctx, ids)
	if err != nil {
		return err
	}
	existing := make(map[string]struct{}, len(found))
	for _, p := range found {
		existing[p.ID] = struct{}{}
	}
	var missing []string
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if _, ok := existing[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("profiles %s: %w", strings.Join(missing, ", "), ErrUnknownProfile)
	}
	return nil
}

func (a *App) buildPatch(ctx context.Context, e storage.Event, in UpdateEventInput) (audit.Patch, error) {
	patch := audit.Patch{
		Title:       in.Title,
		Description: in.Description,
		Timezone:    in.Timezone,
	}
	if in.Title != nil && strings.TrimSpace(*in.Title) == "" {
		return audit.Patch{}, fmt.Errorf("title must not be empty: %w", ErrValidation)
	}
	if in.Timezone != nil {
		if err := interval.CheckZone(*in.Timezone); err != nil {
			return audit.Patch{}, err
		}
	}
	if in.Profiles != nil {
		if len(in.Profiles) == 0 {
			return audit.Patch{}, fmt.Errorf("profiles must be a non-empty list: %w", ErrValidation)
		}
		if err := a.resolveProfiles(ctx, in.Profiles); err != nil {
			return audit.Patch{}, err
		}
		patch.Profiles = in.Profiles
	}

	// New boundaries resolve against the patched zone when one is supplied,
	// otherwise against the zone the event was authored in.
	timezone := e.Timezone
	if in.Timezone != nil {
		timezone = *in.Timezone
	}
	if in.StartDate != "" || in.StartTime != "" {
		start, err := interval.Resolve(in.StartDate, in.StartTime, timezone)
		if err != nil {
			return audit.Patch{}, err
		}
		patch.StartTime = &start
	}
	if in.EndDate != "" || in.EndTime != "" {
		end, err := interval.Resolve(in.EndDate, in.EndTime, timezone)
		if err != nil {
			return audit.Patch{}, err
		}
		patch.EndTime = &end
	}
	return patch, nil
}

func snapshot(e storage.Event) audit.Snapshot {
	return audit.Snapshot{
		Title:       e.Title,
		Description: e.Description,
		Profiles:    e.Profiles,
		Timezone:    e.Timezone,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
	}
}

func applyPatch(e storage.Event, patch audit.Patch) storage.Event {
	if patch.Title != nil {
		e.Title = *patch.Title
	}
	if patch.Description != nil {
		e.Description = *patch.Description
	}
	if patch.Profiles != nil {
		e.Profiles = patch.Profiles
	}
	if patch.Timezone != nil {
		e.Timezone = *patch.Timezone
	}
	if patch.StartTime != nil {
		e.StartTime = *patch.StartTime
	}
	if patch.EndTime != nil {
		e.EndTime = *patch.EndTime
	}
	return e
}
