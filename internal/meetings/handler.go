package meetings

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/notifications"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/cache"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/response"
)

// MeetingStore is the persistence surface the CRUD endpoints need.
// *Repository implements it.
type MeetingStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Meeting, error)
	Create(ctx context.Context, m *models.Meeting, tagIDs, topicIDs, languageIDs []uuid.UUID) error
	Update(ctx context.Context, m *models.Meeting, tagIDs, topicIDs, languageIDs []uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TaxonomyResolver resolves curated lookups and coins custom entities during
// meeting create/update.
type TaxonomyResolver interface {
	GetOrCreateCustomTag(ctx context.Context, name string) (uuid.UUID, error)
	GetOrCreateCustomTopic(ctx context.Context, name string) (uuid.UUID, error)
	GetOrCreateCustomLanguage(ctx context.Context, name string) (uuid.UUID, error)
	OtherTopicID(ctx context.Context) (uuid.UUID, error)
}

// MemberLister lists active members of a meeting (for the delete broadcast).
type MemberLister interface {
	MemberUserIDs(ctx context.Context, meetingID uuid.UUID) ([]uuid.UUID, error)
}

// TokenDirectory resolves user ids to device tokens.
type TokenDirectory interface {
	GetPushTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error)
}

// Handler serves the meeting search and CRUD endpoints.
type Handler struct {
	search   *SearchService
	repo     MeetingStore
	taxonomy TaxonomyResolver
	members  MemberLister
	tokens   TokenDirectory
	cache    cache.Store
	notifier notifications.Gateway
	logger   *zap.Logger

	defaultPageSize int
	maxPageSize     int
}

// NewHandler creates a meetings handler.
func NewHandler(search *SearchService, repo MeetingStore, taxonomy TaxonomyResolver, members MemberLister, tokens TokenDirectory, c cache.Store, notifier notifications.Gateway, defaultPageSize, maxPageSize int, logger *zap.Logger) *Handler {
	if notifier == nil {
		notifier = notifications.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		search:          search,
		repo:            repo,
		taxonomy:        taxonomy,
		members:         members,
		tokens:          tokens,
		cache:           c,
		notifier:        notifier,
		logger:          logger,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
	}
}

// List handles GET /meetings.
func (h *Handler) List(c *gin.Context) {
	params, err := h.parseSearchParams(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	rows, total, err := h.search.Search(c.Request.Context(), params)
	if err != nil {
		h.respondError(c, err, "meeting search failed")
		return
	}
	if rows == nil {
		rows = []models.Meeting{}
	}
	response.OK(c, gin.H{"meetings": rows, "total_count": total})
}

// GetByID handles GET /meetings/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	m, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err, "get meeting failed")
		return
	}
	response.OK(c, m)
}

type meetingRequest struct {
	Name            string      `json:"name" binding:"required"`
	Location        string      `json:"location"`
	Description     string      `json:"description"`
	MeetingTime     time.Time   `json:"meeting_time" binding:"required"`
	MaxParticipants int         `json:"max_participants" binding:"required,min=1"`
	IsPublic        bool        `json:"is_public"`
	UniversityID    *uuid.UUID  `json:"university_id"`
	CreatorID       uuid.UUID   `json:"creator_id"`
	ChatRoomID      *string     `json:"chat_room_id"`
	TagIDs          []uuid.UUID `json:"tag_ids"`
	TopicIDs        []uuid.UUID `json:"topic_ids"`
	LanguageIDs     []uuid.UUID `json:"language_ids"`
	CustomTags      []string    `json:"custom_tags"`
	CustomTopics    []string    `json:"custom_topics"`
	CustomLanguages []string    `json:"custom_languages"`
}

// Create handles POST /meetings. Custom tag/topic/language names are upserted
// into the taxonomy before the meeting row is written.
func (h *Handler) Create(c *gin.Context) {
	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.CreatorID == uuid.Nil {
		response.BadRequest(c, "creator_id is required")
		return
	}
	if !req.IsPublic && req.UniversityID == nil {
		response.BadRequest(c, "private meetings require university_id")
		return
	}
	ctx := c.Request.Context()

	tagIDs, topicIDs, languageIDs, err := h.resolveTaxonomy(ctx, req)
	if err != nil {
		h.respondError(c, err, "taxonomy resolution failed")
		return
	}
	m := models.Meeting{
		Name:            req.Name,
		Location:        req.Location,
		Description:     req.Description,
		MeetingTime:     req.MeetingTime,
		MaxParticipants: req.MaxParticipants,
		IsPublic:        req.IsPublic,
		UniversityID:    req.UniversityID,
		CreatorID:       req.CreatorID,
		ChatRoomID:      req.ChatRoomID,
	}
	if err := h.repo.Create(ctx, &m, tagIDs, topicIDs, languageIDs); err != nil {
		h.respondError(c, err, "create meeting failed")
		return
	}
	h.invalidateSearchCache(ctx)

	created, err := h.repo.GetByID(ctx, m.ID)
	if err != nil {
		h.respondError(c, err, "reload meeting failed")
		return
	}
	response.Created(c, created)
}

// Update handles PUT /meetings/:id. Associations are replaced wholesale.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()

	tagIDs, topicIDs, languageIDs, err := h.resolveTaxonomy(ctx, req)
	if err != nil {
		h.respondError(c, err, "taxonomy resolution failed")
		return
	}
	m := models.Meeting{
		ID:              id,
		Name:            req.Name,
		Location:        req.Location,
		Description:     req.Description,
		MeetingTime:     req.MeetingTime,
		MaxParticipants: req.MaxParticipants,
		IsPublic:        req.IsPublic,
	}
	if err := h.repo.Update(ctx, &m, tagIDs, topicIDs, languageIDs); err != nil {
		h.respondError(c, err, "update meeting failed")
		return
	}
	h.invalidateSearchCache(ctx)

	updated, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.respondError(c, err, "reload meeting failed")
		return
	}
	response.OK(c, updated)
}

// Delete handles DELETE /meetings/:id. Members are notified after the row is
// gone; membership and association rows cascade in the database.
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid meeting id")
		return
	}
	ctx := c.Request.Context()

	m, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.respondError(c, err, "get meeting failed")
		return
	}
	memberIDs, err := h.members.MemberUserIDs(ctx, id)
	if err != nil {
		h.respondError(c, err, "list members failed")
		return
	}
	tokens, err := h.tokens.GetPushTokens(ctx, memberIDs)
	if err != nil {
		// Deletion proceeds; the broadcast is best-effort anyway.
		h.logger.Warn("push token lookup failed", zap.String("meeting_id", id.String()), zap.Error(err))
	}

	if err := h.repo.Delete(ctx, id); err != nil {
		h.respondError(c, err, "delete meeting failed")
		return
	}
	h.invalidateSearchCache(ctx)

	if len(tokens) > 0 {
		msg := notifications.Message{
			Tokens: tokens,
			Title:  m.Name,
			Body:   "The meeting has been cancelled.",
			Meta:   map[string]string{"meeting_id": id.String(), "event": "meeting_cancelled"},
		}
		if err := h.notifier.Notify(ctx, msg); err != nil {
			h.logger.Warn("cancellation broadcast failed", zap.String("meeting_id", id.String()), zap.Error(err))
		}
	}
	response.NoContent(c)
}

func (h *Handler) resolveTaxonomy(ctx context.Context, req meetingRequest) (tagIDs, topicIDs, languageIDs []uuid.UUID, err error) {
	tagIDs = append(tagIDs, req.TagIDs...)
	topicIDs = append(topicIDs, req.TopicIDs...)
	languageIDs = append(languageIDs, req.LanguageIDs...)

	for _, name := range req.CustomTags {
		id, err := h.taxonomy.GetOrCreateCustomTag(ctx, name)
		if err != nil {
			return nil, nil, nil, err
		}
		tagIDs = append(tagIDs, id)
	}
	for _, name := range req.CustomTopics {
		id, err := h.taxonomy.GetOrCreateCustomTopic(ctx, name)
		if err != nil {
			return nil, nil, nil, err
		}
		topicIDs = append(topicIDs, id)
	}
	for _, name := range req.CustomLanguages {
		id, err := h.taxonomy.GetOrCreateCustomLanguage(ctx, name)
		if err != nil {
			return nil, nil, nil, err
		}
		languageIDs = append(languageIDs, id)
	}
	return tagIDs, topicIDs, languageIDs, nil
}

// parseSearchParams validates the query string into SearchParams. Unknown
// enum tokens and malformed ids are client errors.
func (h *Handler) parseSearchParams(c *gin.Context) (SearchParams, error) {
	var p SearchParams

	orderBy, ok := ParseOrdering(c.Query("order_by"))
	if !ok {
		return p, apperr.Invalid("invalid order_by")
	}
	p.OrderBy = orderBy

	var err error
	p.Skip, err = intQuery(c, "skip", 0)
	if err != nil || p.Skip < 0 {
		return p, apperr.Invalid("skip must be a non-negative integer")
	}
	p.Limit, err = intQuery(c, "limit", h.defaultPageSize)
	if err != nil || p.Limit < 1 {
		return p, apperr.Invalid("limit must be a positive integer")
	}
	if p.Limit > h.maxPageSize {
		p.Limit = h.maxPageSize
	}

	p.TagIDs, err = uuidListQuery(c, "tags_ids")
	if err != nil {
		return p, err
	}
	topicIDs, err := uuidListQuery(c, "topics_ids")
	if err != nil {
		return p, err
	}
	p.Topics, err = h.topicCondition(c.Request.Context(), topicIDs)
	if err != nil {
		return p, err
	}

	for _, raw := range listQuery(c, "time_filters") {
		bucket, ok := ParseTimeBucket(raw)
		if !ok {
			return p, apperr.Invalid("invalid time_filters token: " + raw)
		}
		p.TimeBuckets = append(p.TimeBuckets, bucket)
	}

	p.Nationality, ok = ParseCreatorNationality(c.Query("creator_nationality"))
	if !ok {
		return p, apperr.Invalid("invalid creator_nationality")
	}

	p.SearchWord = strings.TrimSpace(c.Query("search_word"))

	if raw := c.Query("user_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return p, apperr.Invalid("invalid user_id")
		}
		p.RequesterID = &id
	}

	p.IsPublic = true
	if raw := c.Query("is_public"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, apperr.Invalid("invalid is_public")
		}
		p.IsPublic = v
	}
	if raw := c.Query("count_only"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return p, apperr.Invalid("invalid count_only")
		}
		p.CountOnly = v
	}
	return p, nil
}

// topicCondition widens the filter to include custom topics when the listed
// ids contain the sentinel "Other" topic.
func (h *Handler) topicCondition(ctx context.Context, ids []uuid.UUID) (TopicCondition, error) {
	if len(ids) == 0 {
		return TopicCondition{}, nil
	}
	otherID, err := h.taxonomy.OtherTopicID(ctx)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return Exact(ids), nil
		}
		return TopicCondition{}, err
	}
	for _, id := range ids {
		if id == otherID {
			return ExactOrCustom(ids), nil
		}
	}
	return Exact(ids), nil
}

func (h *Handler) invalidateSearchCache(ctx context.Context) {
	if err := cache.InvalidateNamespace(ctx, h.cache, Namespace); err != nil {
		h.logger.Warn("search cache invalidation failed", zap.Error(err))
	}
}

func (h *Handler) respondError(c *gin.Context, err error, logMsg string) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		response.NotFound(c, err.Error())
	case apperr.KindConflict:
		response.Conflict(c, err.Error())
	case apperr.KindInvalid:
		response.BadRequest(c, err.Error())
	case apperr.KindUnavailable:
		response.ServiceUnavailable(c, err.Error())
	default:
		h.logger.Error(logMsg, zap.Error(err))
		response.Internal(c, logMsg)
	}
}

// listQuery accepts both repeated parameters and comma-separated values.
func listQuery(c *gin.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryArray(name) {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func uuidListQuery(c *gin.Context, name string) ([]uuid.UUID, error) {
	var out []uuid.UUID
	for _, raw := range listQuery(c, name) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, apperr.Invalid("invalid " + name)
		}
		out = append(out, id)
	}
	return out, nil
}

func intQuery(c *gin.Context, name string, fallback int) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}
