package memberships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
)

// Tx is the storage surface available inside one membership transaction.
// GetMeetingForUpdate locks the meeting row; every transition takes that lock
// before writing membership rows, so the lock both serializes concurrent
// transitions on a meeting and gives capacity and duplicate checks a
// consistent snapshot. Membership reads take no row lock of their own, which
// keeps the lock order meeting-then-membership everywhere.
type Tx interface {
	GetMeetingForUpdate(ctx context.Context, meetingID uuid.UUID) (*models.Meeting, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error)
	GetRequest(ctx context.Context, requestID uuid.UUID) (*models.MembershipRequest, error)
	FindActiveRequest(ctx context.Context, meetingID, userID uuid.UUID) (*models.MembershipRequest, error)
	InsertRequest(ctx context.Context, req *models.MembershipRequest) error
	SetStatus(ctx context.Context, requestID uuid.UUID, status models.MembershipStatus) error
	DeleteRequest(ctx context.Context, requestID uuid.UUID) error
	AdjustOccupancy(ctx context.Context, meetingID uuid.UUID, korean bool, delta int) error
	MemberUserIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
}

// Store runs membership state transitions transactionally.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	MemberUserIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
}

// Repository implements Store on pgx.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a memberships repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx executes fn inside one transaction, rolling back on any error.
func (r *Repository) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(&pgxTx{tx: tx})
	})
}

// MemberUserIDs returns user ids of members and pending requesters outside a
// transaction (used for pre-delete broadcast collection).
func (r *Repository) MemberUserIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	return memberUserIDs(ctx, r.pool, meetingID)
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) GetMeetingForUpdate(ctx context.Context, meetingID uuid.UUID) (*models.Meeting, error) {
	var m models.Meeting
	err := t.tx.QueryRow(ctx,
		`SELECT id, name, location, description, meeting_time, max_participants, korean_count, foreign_count, is_public, is_active, university_id, creator_id, chat_room_id, created_at, updated_at
		 FROM meetings WHERE id = $1 FOR UPDATE`, meetingID).
		Scan(&m.ID, &m.Name, &m.Location, &m.Description, &m.MeetingTime,
			&m.MaxParticipants, &m.KoreanCount, &m.ForeignCount, &m.IsPublic, &m.IsActive,
			&m.UniversityID, &m.CreatorID, &m.ChatRoomID, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("meeting not found")
	}
	if err != nil {
		return nil, fmt.Errorf("lock meeting: %w", err)
	}
	return &m, nil
}

func (t *pgxTx) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var u models.User
	err := t.tx.QueryRow(ctx,
		`SELECT id, email, nickname, nationality_code, university_id, student_verification, created_at, updated_at
		 FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &u.Nickname, &u.NationalityCode, &u.UniversityID, &u.StudentVerification, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (t *pgxTx) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.MembershipRequest, error) {
	req, err := scanRequest(t.tx.QueryRow(ctx,
		`SELECT id, meeting_id, user_id, status, created_at, updated_at FROM membership_requests WHERE id = $1`,
		requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("join request not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get join request: %w", err)
	}
	return req, nil
}

// FindActiveRequest returns the PENDING or APPROVE row for (meeting, user),
// or nil when none exists.
func (t *pgxTx) FindActiveRequest(ctx context.Context, meetingID, userID uuid.UUID) (*models.MembershipRequest, error) {
	req, err := scanRequest(t.tx.QueryRow(ctx,
		`SELECT id, meeting_id, user_id, status, created_at, updated_at FROM membership_requests
		 WHERE meeting_id = $1 AND user_id = $2 AND status IN ($3, $4)`,
		meetingID, userID, models.MembershipPending, models.MembershipApprove))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find join request: %w", err)
	}
	return req, nil
}

func (t *pgxTx) InsertRequest(ctx context.Context, req *models.MembershipRequest) error {
	err := t.tx.QueryRow(ctx,
		`INSERT INTO membership_requests (meeting_id, user_id, status) VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		req.MeetingID, req.UserID, req.Status).
		Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if isUniqueViolation(err) {
		// Backstop for the partial unique index on active (meeting, user).
		return apperr.Conflict("active join request already exists")
	}
	if err != nil {
		return fmt.Errorf("insert join request: %w", err)
	}
	return nil
}

func (t *pgxTx) SetStatus(ctx context.Context, requestID uuid.UUID, status models.MembershipStatus) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE membership_requests SET status = $1, updated_at = NOW() WHERE id = $2`, status, requestID)
	if err != nil {
		return fmt.Errorf("update join request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("join request not found")
	}
	return nil
}

func (t *pgxTx) DeleteRequest(ctx context.Context, requestID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM membership_requests WHERE id = $1`, requestID)
	if err != nil {
		return fmt.Errorf("delete join request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("join request not found")
	}
	return nil
}

// AdjustOccupancy moves the nationality-split occupancy counter. Runs inside
// the same transaction as the status change that justifies it.
func (t *pgxTx) AdjustOccupancy(ctx context.Context, meetingID uuid.UUID, korean bool, delta int) error {
	column := "foreign_count"
	if korean {
		column = "korean_count"
	}
	_, err := t.tx.Exec(ctx,
		`UPDATE meetings SET `+column+` = GREATEST(0, `+column+` + $1), updated_at = NOW() WHERE id = $2`,
		delta, meetingID)
	if err != nil {
		return fmt.Errorf("adjust occupancy: %w", err)
	}
	return nil
}

func (t *pgxTx) MemberUserIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error) {
	return memberUserIDs(ctx, t.tx, meetingID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func memberUserIDs(ctx context.Context, q querier, meetingID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := q.Query(ctx,
		`SELECT user_id FROM membership_requests WHERE meeting_id = $1`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanRequest(row pgx.Row) (*models.MembershipRequest, error) {
	var req models.MembershipRequest
	err := row.Scan(&req.ID, &req.MeetingID, &req.UserID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &req, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
