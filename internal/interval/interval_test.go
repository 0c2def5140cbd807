package interval_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/teamcal/teamcal/internal/interval"
)

func TestResolve(t *testing.T) {
	t.Run("round trip through zone", func(t *testing.T) {
		tests := []struct {
			date  string
			clock string
			zone  string
		}{
			{"2024-06-01", "10:00", "Europe/Paris"},
			{"2024-01-15", "23:30", "America/New_York"},
			{"2024-06-01", "00:00", "UTC"},
			{"2024-12-31", "12:15:30", "Asia/Tokyo"},
			{"2024-11-03", "01:30", "America/New_York"}, // ambiguous, resolves deterministically
		}
		for _, tt := range tests {
			got, err := interval.Resolve(tt.date, tt.clock, tt.zone)
			require.NoError(t, err)
			require.Equal(t, time.UTC, got.Location())

			local, err := interval.InZone(got, tt.zone)
			require.NoError(t, err)
			require.Equal(t, tt.date, local.Format("2006-01-02"))
			clockLayout := "15:04"
			if len(tt.clock) > len("15:04") {
				clockLayout = "15:04:05"
			}
			require.Equal(t, tt.clock, local.Format(clockLayout))
		}
	})

	t.Run("known offsets", func(t *testing.T) {
		got, err := interval.Resolve("2024-06-01", "10:00", "Europe/Paris")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), got)

		got, err = interval.Resolve("2024-01-15", "10:00", "America/New_York")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 1, 15, 15, 0, 0, 0, time.UTC), got)
	})

	t.Run("combined stamp with offset is absolute", func(t *testing.T) {
		got, err := interval.Resolve("2024-06-01T10:00:00Z", "", "America/New_York")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), got)
	})

	t.Run("combined stamp without offset uses zone", func(t *testing.T) {
		got, err := interval.Resolve("2024-06-01T10:00", "", "Europe/Paris")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), got)
	})

	t.Run("date only resolves to local midnight", func(t *testing.T) {
		got, err := interval.Resolve("2024-06-01", "", "Europe/Paris")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 5, 31, 22, 0, 0, 0, time.UTC), got)
	})

	t.Run("millisecond precision kept, finer truncated", func(t *testing.T) {
		got, err := interval.Resolve("2024-06-01T10:00:00.123Z", "", "UTC")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 123e6, time.UTC), got)

		got, err = interval.Resolve("2024-06-01T10:00:00.123456789Z", "", "UTC")
		require.NoError(t, err)
		require.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 123e6, time.UTC), got)
	})

	t.Run("nonexistent local time is rejected", func(t *testing.T) {
		// 2024-03-10 02:30 never happens in New York: clocks jump 02:00->03:00.
		_, err := interval.Resolve("2024-03-10", "02:30", "America/New_York")
		require.ErrorIs(t, err, interval.ErrInvalidTimestamp)
	})

	t.Run("unknown zone", func(t *testing.T) {
		_, err := interval.Resolve("2024-06-01", "10:00", "Mars/Olympus_Mons")
		require.ErrorIs(t, err, interval.ErrInvalidTimestamp)
	})

	t.Run("malformed inputs", func(t *testing.T) {
		for _, tt := range []struct{ date, clock string }{
			{"not-a-date", "10:00"},
			{"2024-06-01", "25:00"},
			{"2024-06-01", "garbage"},
			{"garbage", ""},
			{"", "10:00"},
		} {
			_, err := interval.Resolve(tt.date, tt.clock, "UTC")
			require.ErrorIs(t, err, interval.ErrInvalidTimestamp, "date=%q clock=%q", tt.date, tt.clock)
		}
	})
}

func TestNormalize(t *testing.T) {
	start, end, err := interval.Normalize("2024-06-01", "10:00", "2024-06-01", "11:30", "Europe/Paris")
	require.NoError(t, err)
	require.Equal(t, time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC), start)
	require.Equal(t, time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC), end)

	_, _, err = interval.Normalize("2024-06-01", "10:00", "2024-06-01", "bad", "Europe/Paris")
	require.ErrorIs(t, err, interval.ErrInvalidTimestamp)
}

func TestValidateOrdering(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, interval.ValidateOrdering(at, at.Add(time.Millisecond)))
	require.ErrorIs(t, interval.ValidateOrdering(at, at), interval.ErrInvalidInterval)
	require.ErrorIs(t, interval.ValidateOrdering(at, at.Add(-time.Hour)), interval.ErrInvalidInterval)
}

func TestCheckZone(t *testing.T) {
	require.NoError(t, interval.CheckZone("Europe/Paris"))
	require.NoError(t, interval.CheckZone(""))
	require.ErrorIs(t, interval.CheckZone("Nowhere/Special"), interval.ErrInvalidTimestamp)
}
