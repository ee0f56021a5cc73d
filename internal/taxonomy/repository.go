// Package taxonomy manages the tag/topic/language reference entities:
// curated rows are seeded, custom rows are coined on demand when a meeting
// supplies free-text names.
package taxonomy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
)

// Repository handles taxonomy persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a taxonomy repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListTags returns the curated tag set.
func (r *Repository) ListTags(ctx context.Context) ([]models.Tag, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_custom FROM tags WHERE NOT is_custom ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()
	var tags []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.IsCustom); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// ListTopics returns the curated topic set.
func (r *Repository) ListTopics(ctx context.Context) ([]models.Topic, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, is_custom FROM topics WHERE NOT is_custom ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list topics: %w", err)
	}
	defer rows.Close()
	var topics []models.Topic
	for rows.Next() {
		var t models.Topic
		if err := rows.Scan(&t.ID, &t.Name, &t.IsCustom); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// OtherTopicName is the curated sentinel topic standing in for "anything not
// in the curated set". Seeded by the schema migration.
const OtherTopicName = "Other"

// OtherTopicID returns the id of the sentinel topic, or NotFound when the
// seed row is absent.
func (r *Repository) OtherTopicID(ctx context.Context) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`SELECT id FROM topics WHERE name = $1 AND NOT is_custom`, OtherTopicName).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, apperr.NotFound("sentinel topic not seeded")
		}
		return uuid.Nil, fmt.Errorf("lookup sentinel topic: %w", err)
	}
	return id, nil
}

// GetOrCreateCustomTag upserts a user-coined tag by name and returns its id.
func (r *Repository) GetOrCreateCustomTag(ctx context.Context, name string) (uuid.UUID, error) {
	return r.getOrCreate(ctx, "tags", name)
}

// GetOrCreateCustomTopic upserts a user-coined topic by name and returns its id.
func (r *Repository) GetOrCreateCustomTopic(ctx context.Context, name string) (uuid.UUID, error) {
	return r.getOrCreate(ctx, "topics", name)
}

// GetOrCreateCustomLanguage upserts a user-coined language by name and returns its id.
func (r *Repository) GetOrCreateCustomLanguage(ctx context.Context, name string) (uuid.UUID, error) {
	return r.getOrCreate(ctx, "languages", name)
}

func (r *Repository) getOrCreate(ctx context.Context, table, name string) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, apperr.Invalid("name must not be empty")
	}
	// DO UPDATE instead of DO NOTHING so RETURNING yields the existing row's
	// id on conflict. An existing curated row keeps is_custom = false.
	var id uuid.UUID
	err := r.pool.QueryRow(ctx,
		`INSERT INTO `+table+` (name, is_custom) VALUES ($1, TRUE)
		 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
		 RETURNING id`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("upsert %s: %w", table, err)
	}
	return id, nil
}
