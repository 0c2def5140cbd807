// Package audit computes field-level change lists for event updates.
package audit

import (
	"sort"
	"time"

	"github.com/teamcal/teamcal/internal/storage"
)

// Auditable field names in their stable output order.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldProfiles    = "profiles"
	FieldTimezone    = "timezone"
	FieldStartDate   = "startDate"
	FieldEndDate     = "endDate"
)

// Snapshot holds the persisted auditable fields of an event.
type Snapshot struct {
	Title       string
	Description string
	Profiles    []string
	Timezone    string
	StartTime   time.Time
	EndTime     time.Time
}

// Patch carries proposed new values; nil pointers and a nil profile list mean
// "field not supplied". Instants are expected in UTC at millisecond precision.
type Patch struct {
	Title       *string
	Description *string
	Profiles    []string
	Timezone    *string
	StartTime   *time.Time
	EndTime     *time.Time
}

// Diff compares each supplied patch field against the snapshot and returns one
// entry per differing field, in the fixed field order above. An empty result
// means the update is a no-op. The profile list compares as a set: the same
// members in a different order count as unchanged.
func Diff(before Snapshot, patch Patch) []storage.FieldChange {
	var changes []storage.FieldChange

	if patch.Title != nil && *patch.Title != before.Title {
		changes = append(changes, storage.FieldChange{Field: FieldTitle, OldValue: before.Title, NewValue: *patch.Title})
	}
	if patch.Description != nil && *patch.Description != before.Description {
		changes = append(changes, storage.FieldChange{
			Field: FieldDescription, OldValue: before.Description, NewValue: *patch.Description,
		})
	}
	if patch.Profiles != nil && !sameMembers(before.Profiles, patch.Profiles) {
		changes = append(changes, storage.FieldChange{
			Field: FieldProfiles, OldValue: before.Profiles, NewValue: patch.Profiles,
		})
	}
	if patch.Timezone != nil && *patch.Timezone != before.Timezone {
		changes = append(changes, storage.FieldChange{Field: FieldTimezone, OldValue: before.Timezone, NewValue: *patch.Timezone})
	}
	if patch.StartTime != nil && !patch.StartTime.Equal(before.StartTime) {
		changes = append(changes, storage.FieldChange{
			Field: FieldStartDate, OldValue: before.StartTime, NewValue: *patch.StartTime,
		})
	}
	if patch.EndTime != nil && !patch.EndTime.Equal(before.EndTime) {
		changes = append(changes, storage.FieldChange{
			Field: FieldEndDate, OldValue: before.EndTime, NewValue: *patch.EndTime,
		})
	}
	return changes
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
