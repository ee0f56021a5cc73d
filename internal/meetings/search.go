package meetings

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/cache"
)

type nowFunc func() time.Time

// SearchParams is the full, pre-validated parameter set for a meeting search.
type SearchParams struct {
	TagIDs      []uuid.UUID
	Topics      TopicCondition
	TimeBuckets []TimeBucket
	Nationality CreatorNationality
	SearchWord  string
	RequesterID *uuid.UUID
	IsPublic    bool
	OrderBy     Ordering
	Skip        int
	Limit       int
	CountOnly   bool
}

// searchStore is the query surface the service needs from the repository.
type searchStore interface {
	CountFiltered(ctx context.Context, q *Query) (int, error)
	SearchIDs(ctx context.Context, q *Query, orderBy string, limit, offset int) ([]uuid.UUID, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Meeting, error)
}

// UserDirectory is the collaborator boundary for requester lookups used by
// the private-scope visibility filter.
type UserDirectory interface {
	GetUniversityID(ctx context.Context, userID uuid.UUID) (*uuid.UUID, error)
	GetBannedTargets(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// SearchService orchestrates filter composition, cache lookup/population,
// ordering and pagination.
type SearchService struct {
	store  searchStore
	users  UserDirectory
	cache  cache.Store
	ttl    time.Duration
	now    nowFunc
	logger *zap.Logger
}

// NewSearchService creates the meeting search service.
func NewSearchService(store searchStore, users UserDirectory, c cache.Store, ttl time.Duration, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{store: store, users: users, cache: c, ttl: ttl, now: time.Now, logger: logger}
}

// Search returns one page of meetings plus the total count.
//
// A cache hit re-fetches live rows for the cached id list and reports
// total_count = len(result): meetings created after the cache was populated
// are not reflected until the entry expires or the namespace is invalidated.
// Cache store failures degrade to a live query.
func (s *SearchService) Search(ctx context.Context, p SearchParams) ([]models.Meeting, int, error) {
	key := cacheKey(p.cacheParams())

	if cached, found := s.cacheGet(ctx, key); found {
		rows, err := s.store.GetByIDs(ctx, cached)
		if err != nil {
			return nil, 0, err
		}
		rows = reorder(rows, cached)
		if p.CountOnly {
			return nil, len(rows), nil
		}
		return rows, len(rows), nil
	}

	q, err := s.buildQuery(ctx, p)
	if err != nil {
		return nil, 0, err
	}

	// The DEADLINE_SOON future-only restriction is applied before counting so
	// total_count always describes the same result set as the page.
	orderBy := p.OrderBy.apply(q, s.now)

	total, err := s.store.CountFiltered(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	if p.CountOnly {
		return nil, total, nil
	}

	ids, err := s.store.SearchIDs(ctx, q, orderBy, p.Limit, p.Skip)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	rows = reorder(rows, ids)

	s.cacheSet(ctx, key, ids)
	return rows, total, nil
}

// buildQuery folds the filter set onto a base query over active meetings in
// the requested visibility scope.
func (s *SearchService) buildQuery(ctx context.Context, p SearchParams) (*Query, error) {
	q := NewQuery()
	q.Where("m.is_active")
	q.Where("m.is_public = ?", p.IsPublic)

	// Private scope without a requester silently skips the university and ban
	// restriction; only a requester without a university is a client error.
	if !p.IsPublic && p.RequesterID != nil {
		universityID, err := s.users.GetUniversityID(ctx, *p.RequesterID)
		if err != nil {
			return nil, err
		}
		if universityID == nil {
			return nil, apperr.Invalid("requester has no university")
		}
		banned, err := s.users.GetBannedTargets(ctx, *p.RequesterID)
		if err != nil {
			return nil, err
		}
		q.Apply(WithVisibility(*universityID, banned))
	}

	q.Apply(
		WithCreatorNationality(p.Nationality),
		WithTimeBuckets(p.TimeBuckets, s.now()),
		WithTags(p.TagIDs),
		WithTopics(p.Topics),
		WithSearchWord(p.SearchWord),
	)
	return q, nil
}

func (s *SearchService) cacheGet(ctx context.Context, key string) ([]uuid.UUID, bool) {
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("search cache get failed, falling back to live query", zap.Error(err))
		return nil, false
	}
	if !found {
		return nil, false
	}
	var ids []uuid.UUID
	if err := json.Unmarshal(raw, &ids); err != nil {
		s.logger.Warn("search cache entry corrupt, falling back to live query", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return ids, true
}

func (s *SearchService) cacheSet(ctx context.Context, key string, ids []uuid.UUID) {
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		s.logger.Warn("search cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// cacheParams canonicalizes the parameter set for hashing. Slices are sorted
// so equivalent requests share a key regardless of parameter order.
func (p SearchParams) cacheParams() map[string]string {
	params := map[string]string{
		"order_by":            string(p.OrderBy),
		"skip":                strconv.Itoa(p.Skip),
		"limit":               strconv.Itoa(p.Limit),
		"tags_ids":            joinSorted(uuidStrings(p.TagIDs)),
		"topics_ids":          joinSorted(uuidStrings(p.Topics.IDs)),
		"creator_nationality": string(p.Nationality),
		"search_word":         p.SearchWord,
		"is_public":           strconv.FormatBool(p.IsPublic),
	}
	if p.Topics.OrCustom {
		params["topics_or_custom"] = "true"
	}
	if len(p.TimeBuckets) > 0 {
		buckets := make([]string, len(p.TimeBuckets))
		for i, b := range p.TimeBuckets {
			buckets[i] = string(b)
		}
		params["time_filters"] = joinSorted(buckets)
	}
	if p.RequesterID != nil {
		params["user_id"] = p.RequesterID.String()
	}
	return params
}

// reorder sorts rows to match the order of ids, dropping ids with no row
// (e.g. meetings deleted since the cache was populated).
func reorder(rows []models.Meeting, ids []uuid.UUID) []models.Meeting {
	byID := make(map[uuid.UUID]models.Meeting, len(rows))
	for _, m := range rows {
		byID[m.ID] = m
	}
	out := make([]models.Meeting, 0, len(rows))
	for _, id := range ids {
		if m, ok := byID[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

func joinSorted(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	sorted := append([]string(nil), vals...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
