package models

import (
	"time"

	"github.com/google/uuid"
)

// Student verification states.
const (
	VerificationPending  = "PENDING"
	VerificationApprove  = "APPROVE"
	VerificationRejected = "REJECTED"
)

// NationalityKorea is the nationality code used by the creator filter.
const NationalityKorea = "kr"

// User is a member of the platform. Profile management lives outside the
// meetings core; the core only reads nationality, university and verification.
type User struct {
	ID                  uuid.UUID  `json:"id"`
	Email               string     `json:"email"`
	Nickname            string     `json:"nickname"`
	NationalityCode     string     `json:"nationality_code"`
	UniversityID        *uuid.UUID `json:"university_id,omitempty"`
	StudentVerification string     `json:"student_verification"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// University is a reference entity owning meetings' private visibility scope.
type University struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// DeviceToken is a push-notification token registered for a user.
type DeviceToken struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"created_at"`
}
