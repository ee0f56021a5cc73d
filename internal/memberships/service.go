package memberships

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/notifications"
)

// Service is the join-request state machine. Every transition runs in one
// transaction and locks the meeting row before reading or writing membership
// rows, so concurrent transitions on one meeting serialize on a single lock
// instead of deadlocking. Notifications fire after commit and never roll back
// state.
type Service struct {
	store               Store
	notifier            notifications.Gateway
	requireVerification bool
	logger              *zap.Logger
}

// NewService creates the membership service.
func NewService(store Store, notifier notifications.Gateway, requireVerification bool, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, notifier: notifier, requireVerification: requireVerification, logger: logger}
}

// Request creates a PENDING join request (none -> PENDING).
// Preconditions: meeting exists and is active, not full, no active request
// for the pair, and (when enabled) the user is a verified student. Any
// violation leaves the database untouched.
func (s *Service) Request(ctx context.Context, meetingID, userID uuid.UUID) (*models.MembershipRequest, error) {
	var req *models.MembershipRequest
	var creatorID uuid.UUID
	var meetingName string

	err := s.store.WithTx(ctx, func(tx Tx) error {
		m, err := tx.GetMeetingForUpdate(ctx, meetingID)
		if err != nil {
			return err
		}
		if !m.IsActive {
			return apperr.Invalid("meeting is no longer active")
		}
		if m.IsFull() {
			return apperr.Conflict("meeting is full")
		}
		user, err := tx.GetUser(ctx, userID)
		if err != nil {
			return err
		}
		if s.requireVerification && user.StudentVerification != models.VerificationApprove {
			return apperr.Invalid("student verification required")
		}
		existing, err := tx.FindActiveRequest(ctx, meetingID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return apperr.Conflict("active join request already exists")
		}

		req = &models.MembershipRequest{MeetingID: meetingID, UserID: userID, Status: models.MembershipPending}
		if err := tx.InsertRequest(ctx, req); err != nil {
			return err
		}
		creatorID = m.CreatorID
		meetingName = m.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.Message{
		UserIDs: []uuid.UUID{creatorID},
		Title:   meetingName,
		Body:    "A new join request is waiting for your approval.",
		Meta:    map[string]string{"meeting_id": meetingID.String(), "event": "join_requested"},
	})
	return req, nil
}

// Approve moves a request PENDING -> APPROVE. Capacity is re-checked here
// under the meeting lock because occupancy may have changed since the request
// was made; the occupancy counter moves in the same transaction.
//
// The request row is the only way to learn which meeting to lock, so it is
// peeked first without a lock and re-read after the meeting lock is held; the
// status check runs against the re-read.
func (s *Service) Approve(ctx context.Context, requestID uuid.UUID) (*models.MembershipRequest, error) {
	var req *models.MembershipRequest
	var meetingName string

	err := s.store.WithTx(ctx, func(tx Tx) error {
		peek, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		m, err := tx.GetMeetingForUpdate(ctx, peek.MeetingID)
		if err != nil {
			return err
		}
		req, err = tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.MembershipPending {
			return apperr.Conflict("join request is not pending")
		}
		if m.IsFull() {
			return apperr.Conflict("meeting is full")
		}
		user, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, requestID, models.MembershipApprove); err != nil {
			return err
		}
		if err := tx.AdjustOccupancy(ctx, req.MeetingID, user.NationalityCode == models.NationalityKorea, +1); err != nil {
			return err
		}
		req.Status = models.MembershipApprove
		meetingName = m.Name
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, notifications.Message{
		UserIDs: []uuid.UUID{req.UserID},
		Title:   meetingName,
		Body:    "Your join request has been approved.",
		Meta:    map[string]string{"meeting_id": req.MeetingID.String(), "event": "join_approved"},
	})
	return req, nil
}

// Reject deletes a PENDING request (no rejected history is retained). Same
// lock discipline as Approve: peek for the meeting id, lock the meeting,
// re-read the request before deciding.
func (s *Service) Reject(ctx context.Context, requestID uuid.UUID) error {
	var userID, meetingID uuid.UUID

	err := s.store.WithTx(ctx, func(tx Tx) error {
		peek, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if _, err := tx.GetMeetingForUpdate(ctx, peek.MeetingID); err != nil {
			return err
		}
		req, err := tx.GetRequest(ctx, requestID)
		if err != nil {
			return err
		}
		if req.Status != models.MembershipPending {
			return apperr.Conflict("join request is not pending")
		}
		if err := tx.DeleteRequest(ctx, requestID); err != nil {
			return err
		}
		userID = req.UserID
		meetingID = req.MeetingID
		return nil
	})
	if err != nil {
		return err
	}

	s.notify(ctx, notifications.Message{
		UserIDs: []uuid.UUID{userID},
		Title:   "Join request",
		Body:    "Your join request has been declined.",
		Meta:    map[string]string{"meeting_id": meetingID.String(), "event": "join_rejected"},
	})
	return nil
}

// Exit removes the membership row for (meeting, user), whether PENDING or
// APPROVE. An approved exit releases the seat in the same transaction. When
// isFire is set, remaining members get a cancellation-style broadcast.
func (s *Service) Exit(ctx context.Context, meetingID, userID uuid.UUID, isFire bool) error {
	var remaining []uuid.UUID
	var meetingName string

	err := s.store.WithTx(ctx, func(tx Tx) error {
		m, err := tx.GetMeetingForUpdate(ctx, meetingID)
		if err != nil {
			return err
		}
		req, err := tx.FindActiveRequest(ctx, meetingID, userID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.NotFound("membership not found")
		}
		if isFire {
			members, err := tx.MemberUserIDs(ctx, meetingID)
			if err != nil {
				return err
			}
			for _, id := range members {
				if id != userID {
					remaining = append(remaining, id)
				}
			}
		}
		if err := tx.DeleteRequest(ctx, req.ID); err != nil {
			return err
		}
		if req.Status == models.MembershipApprove {
			user, err := tx.GetUser(ctx, userID)
			if err != nil {
				return err
			}
			if err := tx.AdjustOccupancy(ctx, meetingID, user.NationalityCode == models.NationalityKorea, -1); err != nil {
				return err
			}
		}
		meetingName = m.Name
		return nil
	})
	if err != nil {
		return err
	}

	if isFire && len(remaining) > 0 {
		s.notify(ctx, notifications.Message{
			UserIDs: remaining,
			Title:   meetingName,
			Body:    "A member has left the meeting.",
			Meta:    map[string]string{"meeting_id": meetingID.String(), "event": "member_exited"},
		})
	}
	return nil
}

// notify delivers best-effort: errors are logged, never propagated.
func (s *Service) notify(ctx context.Context, msg notifications.Message) {
	if err := s.notifier.Notify(ctx, msg); err != nil {
		s.logger.Warn("notification send failed", zap.String("title", msg.Title), zap.Error(err))
	}
}
