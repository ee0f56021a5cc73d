package models

import (
	"time"

	"github.com/google/uuid"
)

// MembershipStatus is the join-request lifecycle state.
type MembershipStatus string

const (
	// MembershipPending is a request awaiting the creator's decision.
	MembershipPending MembershipStatus = "PENDING"
	// MembershipApprove is an accepted member.
	MembershipApprove MembershipStatus = "APPROVE"
	// MembershipRejected is transient: the row is deleted on rejection and
	// never stored in this state.
	MembershipRejected MembershipStatus = "REJECTED"
)

// MembershipRequest records a user's intent to join a meeting. At most one
// row per (meeting, user) may be active (PENDING or APPROVE) at a time.
type MembershipRequest struct {
	ID        uuid.UUID        `json:"id"`
	MeetingID uuid.UUID        `json:"meeting_id"`
	UserID    uuid.UUID        `json:"user_id"`
	Status    MembershipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
