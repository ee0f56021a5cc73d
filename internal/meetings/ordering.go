package meetings

import (
	"strings"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
)

// Ordering selects the result sort strategy.
type Ordering string

const (
	// OrderCreatedTime sorts newest-created first (default).
	OrderCreatedTime Ordering = "CREATED_TIME"
	// OrderMeetingTime sorts soonest-scheduled first.
	OrderMeetingTime Ordering = "MEETING_TIME"
	// OrderDeadlineSoon restricts to future meetings and sorts near-full,
	// near-term meetings first.
	OrderDeadlineSoon Ordering = "DEADLINE_SOON"
)

// ParseOrdering validates an order_by token. Empty input means CREATED_TIME.
func ParseOrdering(s string) (Ordering, bool) {
	switch Ordering(strings.ToUpper(s)) {
	case "", OrderCreatedTime:
		return OrderCreatedTime, true
	case OrderMeetingTime:
		return OrderMeetingTime, true
	case OrderDeadlineSoon:
		return OrderDeadlineSoon, true
	}
	return "", false
}

// apply adds any ordering-specific restriction to q and returns the ORDER BY
// expression. DEADLINE_SOON's future-only restriction is part of the filter
// set, so it also shapes the total count.
func (o Ordering) apply(q *Query, now nowFunc) string {
	switch o {
	case OrderMeetingTime:
		return "m.meeting_time ASC"
	case OrderDeadlineSoon:
		q.Where("m.meeting_time > ?", now())
		return "ABS(m.max_participants - (m.korean_count + m.foreign_count)) ASC, m.meeting_time ASC"
	default:
		return "m.created_at DESC"
	}
}

// deadlineLess is the reference semantics of the DEADLINE_SOON sort: fewest
// remaining seats first, earlier meeting time breaking ties. It mirrors the
// ORDER BY expression apply emits and anchors the tests comparing fixtures
// against it.
func deadlineLess(a, b *models.Meeting) bool {
	ra := abs(a.MaxParticipants - a.CurrentParticipants())
	rb := abs(b.MaxParticipants - b.CurrentParticipants())
	if ra != rb {
		return ra < rb
	}
	return a.MeetingTime.Before(b.MeetingTime)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
