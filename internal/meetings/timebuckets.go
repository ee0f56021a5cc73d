package meetings

import (
	"strings"
	"time"
)

// TimeBucket is a named window the client can filter meetings by. Buckets in
// the same category (date range, weekday, time of day) are OR-combined;
// categories are AND-combined.
type TimeBucket string

const (
	BucketToday    TimeBucket = "TODAY"
	BucketTomorrow TimeBucket = "TOMORROW"
	BucketThisWeek TimeBucket = "THIS_WEEK"
	BucketNextWeek TimeBucket = "NEXT_WEEK"

	BucketMonday    TimeBucket = "MONDAY"
	BucketTuesday   TimeBucket = "TUESDAY"
	BucketWednesday TimeBucket = "WEDNESDAY"
	BucketThursday  TimeBucket = "THURSDAY"
	BucketFriday    TimeBucket = "FRIDAY"
	BucketSaturday  TimeBucket = "SATURDAY"
	BucketSunday    TimeBucket = "SUNDAY"

	BucketMorning   TimeBucket = "MORNING"
	BucketAfternoon TimeBucket = "AFTERNOON"
	BucketEvening   TimeBucket = "EVENING"
)

var isoWeekdays = map[TimeBucket]int{
	BucketMonday: 1, BucketTuesday: 2, BucketWednesday: 3, BucketThursday: 4,
	BucketFriday: 5, BucketSaturday: 6, BucketSunday: 7,
}

// ParseTimeBucket validates a time_filters token.
func ParseTimeBucket(s string) (TimeBucket, bool) {
	b := TimeBucket(strings.ToUpper(strings.TrimSpace(s)))
	switch b {
	case BucketToday, BucketTomorrow, BucketThisWeek, BucketNextWeek,
		BucketMorning, BucketAfternoon, BucketEvening:
		return b, true
	}
	if _, ok := isoWeekdays[b]; ok {
		return b, true
	}
	return "", false
}

// window is a half-open [From, To) interval.
type window struct {
	From, To time.Time
}

// hourRange is a half-open [From, To) hour-of-day interval.
type hourRange struct {
	From, To int
}

// timeSpec is the resolved form of a bucket set, split by category.
type timeSpec struct {
	windows  []window
	weekdays []int // ISO weekday numbers, Monday=1
	dayparts []hourRange
}

func (s timeSpec) empty() bool {
	return len(s.windows) == 0 && len(s.weekdays) == 0 && len(s.dayparts) == 0
}

// resolveTimeSpec expands buckets into concrete intervals relative to now.
// Today is [midnight, midnight+24h); weeks start Monday 00:00 of the current
// ISO week. Duplicate buckets collapse.
func resolveTimeSpec(buckets []TimeBucket, now time.Time) timeSpec {
	var spec timeSpec
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	// Monday 00:00 of the current ISO week.
	offset := (int(now.Weekday()) + 6) % 7
	monday := midnight.AddDate(0, 0, -offset)

	seen := make(map[TimeBucket]bool)
	for _, b := range buckets {
		if seen[b] {
			continue
		}
		seen[b] = true
		switch b {
		case BucketToday:
			spec.windows = append(spec.windows, window{midnight, midnight.AddDate(0, 0, 1)})
		case BucketTomorrow:
			spec.windows = append(spec.windows, window{midnight.AddDate(0, 0, 1), midnight.AddDate(0, 0, 2)})
		case BucketThisWeek:
			spec.windows = append(spec.windows, window{monday, monday.AddDate(0, 0, 7)})
		case BucketNextWeek:
			spec.windows = append(spec.windows, window{monday.AddDate(0, 0, 7), monday.AddDate(0, 0, 14)})
		case BucketMorning:
			spec.dayparts = append(spec.dayparts, hourRange{0, 12})
		case BucketAfternoon:
			spec.dayparts = append(spec.dayparts, hourRange{12, 18})
		case BucketEvening:
			spec.dayparts = append(spec.dayparts, hourRange{18, 24})
		default:
			if d, ok := isoWeekdays[b]; ok {
				spec.weekdays = append(spec.weekdays, d)
			}
		}
	}
	return spec
}

// matches reports whether t falls inside the spec. Used by tests as the
// reference semantics of the SQL the filter emits.
func (s timeSpec) matches(t time.Time) bool {
	if len(s.windows) > 0 {
		ok := false
		for _, w := range s.windows {
			if !t.Before(w.From) && t.Before(w.To) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(s.weekdays) > 0 {
		iso := (int(t.Weekday()) + 6) % 7 // Monday=0
		ok := false
		for _, d := range s.weekdays {
			if iso+1 == d {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(s.dayparts) > 0 {
		ok := false
		for _, r := range s.dayparts {
			if t.Hour() >= r.From && t.Hour() < r.To {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// WithTimeBuckets restricts meeting_time to the given buckets, resolved
// against now. An empty set is a no-op.
func WithTimeBuckets(buckets []TimeBucket, now time.Time) Filter {
	spec := resolveTimeSpec(buckets, now)
	if spec.empty() {
		return nil
	}
	return func(q *Query) {
		if len(spec.windows) > 0 {
			parts := make([]string, len(spec.windows))
			args := make([]any, 0, len(spec.windows)*2)
			for i, w := range spec.windows {
				parts[i] = "(m.meeting_time >= ? AND m.meeting_time < ?)"
				args = append(args, w.From, w.To)
			}
			q.Where("("+strings.Join(parts, " OR ")+")", args...)
		}
		if len(spec.weekdays) > 0 {
			days := make([]int32, len(spec.weekdays))
			for i, d := range spec.weekdays {
				days[i] = int32(d)
			}
			q.Where("EXTRACT(ISODOW FROM m.meeting_time) = ANY(?::int[])", days)
		}
		if len(spec.dayparts) > 0 {
			parts := make([]string, len(spec.dayparts))
			args := make([]any, 0, len(spec.dayparts)*2)
			for i, r := range spec.dayparts {
				parts[i] = "(EXTRACT(HOUR FROM m.meeting_time) >= ? AND EXTRACT(HOUR FROM m.meeting_time) < ?)"
				args = append(args, r.From, r.To)
			}
			q.Where("("+strings.Join(parts, " OR ")+")", args...)
		}
	}
}
