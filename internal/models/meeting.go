package models

import (
	"time"

	"github.com/google/uuid"
)

// Meeting is the central aggregate: a scheduled social gathering.
// Occupancy is split by nationality class; CurrentParticipants derives from
// the two counters, which are maintained transactionally on approve/exit.
type Meeting struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Location        string     `json:"location"`
	Description     string     `json:"description"`
	MeetingTime     time.Time  `json:"meeting_time"`
	MaxParticipants int        `json:"max_participants"`
	KoreanCount     int        `json:"korean_count"`
	ForeignCount    int        `json:"foreign_count"`
	IsPublic        bool       `json:"is_public"`
	IsActive        bool       `json:"is_active"`
	UniversityID    *uuid.UUID `json:"university_id,omitempty"`
	CreatorID       uuid.UUID  `json:"creator_id"`
	ChatRoomID      *string    `json:"chat_room_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	// Eager-loaded associations (populated by the search service and detail
	// fetch; nil when not loaded).
	Tags      []Tag      `json:"tags,omitempty"`
	Topics    []Topic    `json:"topics,omitempty"`
	Languages []Language `json:"languages,omitempty"`
	Creator   *User      `json:"creator,omitempty"`
}

// CurrentParticipants is the occupancy used by the capacity check.
func (m *Meeting) CurrentParticipants() int {
	return m.KoreanCount + m.ForeignCount
}

// IsFull reports whether the meeting has no remaining seats.
func (m *Meeting) IsFull() bool {
	return m.CurrentParticipants() >= m.MaxParticipants
}
