// Package users is the user-directory collaborator boundary: the meetings
// core reads identities, universities, ban lists and device tokens here.
// Registration and profile management live outside this service.
package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
)

// Repository handles user directory lookups.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a users repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user or a NotFound error.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, nickname, nationality_code, university_id, student_verification, created_at, updated_at
		 FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Email, &u.Nickname, &u.NationalityCode, &u.UniversityID, &u.StudentVerification, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// GetUniversityID returns the user's university, or nil when unaffiliated.
func (r *Repository) GetUniversityID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error) {
	u, err := r.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.UniversityID, nil
}

// GetBannedTargets returns the ids of users the given user has banned.
func (r *Repository) GetBannedTargets(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `SELECT target_id FROM user_bans WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get banned targets: %w", err)
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

// GetPushTokens returns all device tokens registered for the given users.
func (r *Repository) GetPushTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	args := make([]string, len(userIDs))
	for i, id := range userIDs {
		args[i] = id.String()
	}
	rows, err := r.pool.Query(ctx, `SELECT token FROM device_tokens WHERE user_id = ANY($1::uuid[])`, args)
	if err != nil {
		return nil, fmt.Errorf("get push tokens: %w", err)
	}
	defer rows.Close()
	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}
