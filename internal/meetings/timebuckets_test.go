package meetings

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Monday 2024-06-10 14:00 UTC.
var fixedNow = time.Date(2024, 6, 10, 14, 0, 0, 0, time.UTC)

func TestParseTimeBucket(t *testing.T) {
	for _, raw := range []string{"TODAY", "tomorrow", " this_week ", "MONDAY", "sunday", "Morning", "EVENING"} {
		_, ok := ParseTimeBucket(raw)
		assert.True(t, ok, raw)
	}
	for _, raw := range []string{"YESTERDAY", "NOON", ""} {
		_, ok := ParseTimeBucket(raw)
		assert.False(t, ok, raw)
	}
}

func TestResolveTimeSpecWindows(t *testing.T) {
	spec := resolveTimeSpec([]TimeBucket{BucketToday, BucketNextWeek}, fixedNow)
	require.Len(t, spec.windows, 2)

	midnight := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, window{midnight, midnight.AddDate(0, 0, 1)}, spec.windows[0])
	// Week starts Monday; now is already Monday.
	assert.Equal(t, window{midnight.AddDate(0, 0, 7), midnight.AddDate(0, 0, 14)}, spec.windows[1])
}

func TestResolveTimeSpecWeekStartsMonday(t *testing.T) {
	// Sunday 2024-06-16: THIS_WEEK still begins on Monday the 10th.
	sunday := time.Date(2024, 6, 16, 9, 0, 0, 0, time.UTC)
	spec := resolveTimeSpec([]TimeBucket{BucketThisWeek}, sunday)
	require.Len(t, spec.windows, 1)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), spec.windows[0].From)
}

func TestResolveTimeSpecCollapsesDuplicates(t *testing.T) {
	spec := resolveTimeSpec([]TimeBucket{BucketToday, BucketToday, BucketMorning, BucketMorning}, fixedNow)
	assert.Len(t, spec.windows, 1)
	assert.Len(t, spec.dayparts, 1)
}

func TestTimeSpecMatches(t *testing.T) {
	spec := resolveTimeSpec([]TimeBucket{BucketToday, BucketTomorrow, BucketEvening}, fixedNow)

	tests := []struct {
		name string
		t    time.Time
		want bool
	}{
		{"today evening", time.Date(2024, 6, 10, 19, 0, 0, 0, time.UTC), true},
		{"tomorrow evening", time.Date(2024, 6, 11, 23, 59, 0, 0, time.UTC), true},
		{"today morning", time.Date(2024, 6, 10, 10, 0, 0, 0, time.UTC), false},
		{"day after tomorrow evening", time.Date(2024, 6, 12, 19, 0, 0, 0, time.UTC), false},
		{"yesterday evening", time.Date(2024, 6, 9, 19, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, spec.matches(tt.t))
		})
	}
}

func TestTimeSpecMatchesWeekday(t *testing.T) {
	spec := resolveTimeSpec([]TimeBucket{BucketSunday, BucketWednesday}, fixedNow)
	assert.True(t, spec.matches(time.Date(2024, 6, 16, 12, 0, 0, 0, time.UTC)))  // Sunday
	assert.True(t, spec.matches(time.Date(2024, 6, 12, 12, 0, 0, 0, time.UTC)))  // Wednesday
	assert.False(t, spec.matches(time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC))) // Monday
}

func TestTimeSpecCategoriesAreConjunctive(t *testing.T) {
	// THIS_WEEK AND (FRIDAY) AND (EVENING).
	spec := resolveTimeSpec([]TimeBucket{BucketThisWeek, BucketFriday, BucketEvening}, fixedNow)
	assert.True(t, spec.matches(time.Date(2024, 6, 14, 19, 0, 0, 0, time.UTC)))  // this Friday evening
	assert.False(t, spec.matches(time.Date(2024, 6, 14, 10, 0, 0, 0, time.UTC))) // this Friday morning
	assert.False(t, spec.matches(time.Date(2024, 6, 21, 19, 0, 0, 0, time.UTC))) // next Friday evening
}

func TestWithTimeBucketsEmpty(t *testing.T) {
	assert.Nil(t, WithTimeBuckets(nil, fixedNow))
}

func TestWithTimeBucketsSQL(t *testing.T) {
	q := NewQuery().Apply(WithTimeBuckets([]TimeBucket{BucketToday, BucketTomorrow, BucketSunday, BucketEvening}, fixedNow))
	sql, args := q.CountSQL()

	assert.Contains(t, sql, "((m.meeting_time >= $1 AND m.meeting_time < $2) OR (m.meeting_time >= $3 AND m.meeting_time < $4))")
	assert.Contains(t, sql, "EXTRACT(ISODOW FROM m.meeting_time) = ANY($5::int[])")
	assert.Contains(t, sql, "(EXTRACT(HOUR FROM m.meeting_time) >= $6 AND EXTRACT(HOUR FROM m.meeting_time) < $7)")
	require.Len(t, args, 7)
	assert.Equal(t, []int32{7}, args[4])
	assert.Equal(t, 18, args[5])
	assert.Equal(t, 24, args[6])
}
