package meetings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
)

const meetingColumns = `m.id, m.name, m.location, m.description, m.meeting_time, m.max_participants, m.korean_count, m.foreign_count, m.is_public, m.is_active, m.university_id, m.creator_id, m.chat_room_id, m.created_at, m.updated_at`

// Repository handles meeting persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a meetings repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CountFiltered returns the distinct count of meetings matching q.
func (r *Repository) CountFiltered(ctx context.Context, q *Query) (int, error) {
	sql, args := q.CountSQL()
	var count int
	if err := r.pool.QueryRow(ctx, sql, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count meetings: %w", err)
	}
	return count, nil
}

// SearchIDs returns one ordered page of matching meeting ids.
func (r *Repository) SearchIDs(ctx context.Context, q *Query, orderBy string, limit, offset int) ([]uuid.UUID, error) {
	sql, args := q.PageSQL(orderBy, limit, offset)
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("search meetings: %w", err)
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

// GetByIDs fetches live meeting rows for the given ids with tags, topics,
// languages and creator eager-loaded. Missing ids are skipped; row order is
// unspecified (callers re-sort).
func (r *Repository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Meeting, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+meetingColumns+` FROM meetings m WHERE m.id = ANY($1::uuid[])`,
		uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("get meetings: %w", err)
	}
	defer rows.Close()

	var meetings []models.Meeting
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, err
		}
		meetings = append(meetings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.loadAssociations(ctx, meetings); err != nil {
		return nil, err
	}
	return meetings, nil
}

// GetByID returns one meeting with associations, or a NotFound error.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error) {
	list, err := r.GetByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, apperr.NotFound("meeting not found")
	}
	return &list[0], nil
}

// Create inserts a meeting and its association rows in one transaction.
func (r *Repository) Create(ctx context.Context, m *models.Meeting, tagIDs, topicIDs, languageIDs []uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx,
			`INSERT INTO meetings (name, location, description, meeting_time, max_participants, is_public, university_id, creator_id, chat_room_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 RETURNING id, korean_count, foreign_count, is_active, created_at, updated_at`,
			m.Name, m.Location, m.Description, m.MeetingTime, m.MaxParticipants, m.IsPublic, m.UniversityID, m.CreatorID, m.ChatRoomID).
			Scan(&m.ID, &m.KoreanCount, &m.ForeignCount, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert meeting: %w", err)
		}
		return replaceAssociations(ctx, tx, m.ID, tagIDs, topicIDs, languageIDs)
	})
}

// Update rewrites the meeting row and replaces association rows wholesale
// (old rows deleted, new ones inserted, never diffed).
func (r *Repository) Update(ctx context.Context, m *models.Meeting, tagIDs, topicIDs, languageIDs []uuid.UUID) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE meetings SET name = $1, location = $2, description = $3, meeting_time = $4, max_participants = $5, is_public = $6, updated_at = NOW()
			 WHERE id = $7`,
			m.Name, m.Location, m.Description, m.MeetingTime, m.MaxParticipants, m.IsPublic, m.ID)
		if err != nil {
			return fmt.Errorf("update meeting: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return apperr.NotFound("meeting not found")
		}
		for _, table := range []string{"meeting_tags", "meeting_topics", "meeting_languages"} {
			if _, err := tx.Exec(ctx, `DELETE FROM `+table+` WHERE meeting_id = $1`, m.ID); err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		return replaceAssociations(ctx, tx, m.ID, tagIDs, topicIDs, languageIDs)
	})
}

// Delete hard-deletes a meeting; membership and association rows cascade.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM meetings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("meeting not found")
	}
	return nil
}

// ExpirePast flips is_active off for meetings whose time has passed. Runs
// from the periodic sweep, never inline with reads.
func (r *Repository) ExpirePast(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE meetings SET is_active = FALSE, updated_at = NOW() WHERE is_active AND meeting_time < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("expire meetings: %w", err)
	}
	return tag.RowsAffected(), nil
}

func replaceAssociations(ctx context.Context, tx pgx.Tx, meetingID uuid.UUID, tagIDs, topicIDs, languageIDs []uuid.UUID) error {
	insert := func(table, column string, ids []uuid.UUID) error {
		for _, id := range ids {
			if _, err := tx.Exec(ctx,
				`INSERT INTO `+table+` (meeting_id, `+column+`) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				meetingID, id); err != nil {
				return fmt.Errorf("insert %s: %w", table, err)
			}
		}
		return nil
	}
	if err := insert("meeting_tags", "tag_id", tagIDs); err != nil {
		return err
	}
	if err := insert("meeting_topics", "topic_id", topicIDs); err != nil {
		return err
	}
	return insert("meeting_languages", "language_id", languageIDs)
}

func scanMeeting(rows pgx.Rows) (models.Meeting, error) {
	var m models.Meeting
	err := rows.Scan(&m.ID, &m.Name, &m.Location, &m.Description, &m.MeetingTime,
		&m.MaxParticipants, &m.KoreanCount, &m.ForeignCount, &m.IsPublic, &m.IsActive,
		&m.UniversityID, &m.CreatorID, &m.ChatRoomID, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

// loadAssociations batch-loads tags, topics, languages and creators for the
// given meetings: one query per association instead of per row.
func (r *Repository) loadAssociations(ctx context.Context, meetings []models.Meeting) error {
	if len(meetings) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(meetings))
	index := make(map[uuid.UUID]*models.Meeting, len(meetings))
	for i := range meetings {
		ids[i] = meetings[i].ID
		index[meetings[i].ID] = &meetings[i]
	}
	idArgs := uuidStrings(ids)

	if err := r.loadRefs(ctx, "meeting_tags", "tag_id", "tags", idArgs, func(meetingID uuid.UUID, id uuid.UUID, name string, isCustom bool) {
		m := index[meetingID]
		m.Tags = append(m.Tags, models.Tag{ID: id, Name: name, IsCustom: isCustom})
	}); err != nil {
		return err
	}
	if err := r.loadRefs(ctx, "meeting_topics", "topic_id", "topics", idArgs, func(meetingID uuid.UUID, id uuid.UUID, name string, isCustom bool) {
		m := index[meetingID]
		m.Topics = append(m.Topics, models.Topic{ID: id, Name: name, IsCustom: isCustom})
	}); err != nil {
		return err
	}
	if err := r.loadRefs(ctx, "meeting_languages", "language_id", "languages", idArgs, func(meetingID uuid.UUID, id uuid.UUID, name string, isCustom bool) {
		m := index[meetingID]
		m.Languages = append(m.Languages, models.Language{ID: id, Name: name, IsCustom: isCustom})
	}); err != nil {
		return err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, email, nickname, nationality_code, university_id, student_verification, created_at, updated_at
		 FROM users WHERE id IN (SELECT creator_id FROM meetings WHERE id = ANY($1::uuid[]))`, idArgs)
	if err != nil {
		return fmt.Errorf("load creators: %w", err)
	}
	defer rows.Close()
	creators := make(map[uuid.UUID]*models.User)
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Nickname, &u.NationalityCode, &u.UniversityID, &u.StudentVerification, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return err
		}
		creators[u.ID] = &u
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for i := range meetings {
		meetings[i].Creator = creators[meetings[i].CreatorID]
	}
	return nil
}

func (r *Repository) loadRefs(ctx context.Context, joinTable, joinColumn, refTable string, meetingIDs []string, add func(meetingID, id uuid.UUID, name string, isCustom bool)) error {
	rows, err := r.pool.Query(ctx,
		`SELECT j.meeting_id, t.id, t.name, t.is_custom FROM `+joinTable+` j JOIN `+refTable+` t ON t.id = j.`+joinColumn+` WHERE j.meeting_id = ANY($1::uuid[])`,
		meetingIDs)
	if err != nil {
		return fmt.Errorf("load %s: %w", refTable, err)
	}
	defer rows.Close()
	for rows.Next() {
		var meetingID, id uuid.UUID
		var name string
		var isCustom bool
		if err := rows.Scan(&meetingID, &id, &name, &isCustom); err != nil {
			return err
		}
		add(meetingID, id, name, isCustom)
	}
	return rows.Err()
}
