package meetings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/cache"
)

type fakeSearchStore struct {
	count       int
	ids         []uuid.UUID
	byID        map[uuid.UUID]models.Meeting
	countCalls  int
	searchCalls int
	lastSQL     string
	lastOrderBy string
}

func (f *fakeSearchStore) CountFiltered(_ context.Context, q *Query) (int, error) {
	f.countCalls++
	f.lastSQL, _ = q.CountSQL()
	return f.count, nil
}

func (f *fakeSearchStore) SearchIDs(_ context.Context, q *Query, orderBy string, limit, offset int) ([]uuid.UUID, error) {
	f.searchCalls++
	f.lastOrderBy = orderBy
	return f.ids, nil
}

func (f *fakeSearchStore) GetByIDs(_ context.Context, ids []uuid.UUID) ([]models.Meeting, error) {
	var out []models.Meeting
	// Map iteration order is deliberate: callers must re-sort.
	for id, m := range f.byID {
		for _, want := range ids {
			if id == want {
				out = append(out, m)
			}
		}
	}
	return out, nil
}

type fakeUserDirectory struct {
	universityID *uuid.UUID
	banned       []uuid.UUID
}

func (f *fakeUserDirectory) GetUniversityID(context.Context, uuid.UUID) (*uuid.UUID, error) {
	return f.universityID, nil
}

func (f *fakeUserDirectory) GetBannedTargets(context.Context, uuid.UUID) ([]uuid.UUID, error) {
	return f.banned, nil
}

// brokenCache fails every operation; the service must degrade to live queries.
type brokenCache struct{}

func (brokenCache) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, errors.New("cache down")
}
func (brokenCache) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("cache down")
}
func (brokenCache) Exists(context.Context, string) (bool, error) { return false, errors.New("cache down") }
func (brokenCache) FindByNamespace(context.Context, string) ([]string, error) {
	return nil, errors.New("cache down")
}
func (brokenCache) Delete(context.Context, ...string) error { return errors.New("cache down") }

func newTestStore(n int) *fakeSearchStore {
	store := &fakeSearchStore{count: n, byID: make(map[uuid.UUID]models.Meeting)}
	for i := 0; i < n; i++ {
		id := uuid.New()
		store.ids = append(store.ids, id)
		store.byID[id] = models.Meeting{ID: id, Name: "m", IsActive: true, IsPublic: true}
	}
	return store
}

func TestSearchMissThenHit(t *testing.T) {
	store := newTestStore(3)
	svc := NewSearchService(store, &fakeUserDirectory{}, cache.NewMemory(), time.Minute, nil)
	params := SearchParams{IsPublic: true, OrderBy: OrderCreatedTime, Limit: 10}

	rows, total, err := svc.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 3)
	for i, id := range store.ids {
		assert.Equal(t, id, rows[i].ID)
	}
	assert.Equal(t, 1, store.countCalls)

	// Second identical search is served from cache: no new count or page query.
	rows, total, err = svc.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, store.countCalls)
	assert.Equal(t, 1, store.searchCalls)
	for i, id := range store.ids {
		assert.Equal(t, id, rows[i].ID)
	}
}

func TestSearchCountOnlySkipsPageFetch(t *testing.T) {
	store := newTestStore(5)
	svc := NewSearchService(store, &fakeUserDirectory{}, cache.NewMemory(), time.Minute, nil)

	rows, total, err := svc.Search(context.Background(), SearchParams{IsPublic: true, OrderBy: OrderCreatedTime, Limit: 10, CountOnly: true})
	require.NoError(t, err)
	assert.Nil(t, rows)
	assert.Equal(t, 5, total)
	assert.Equal(t, 0, store.searchCalls)
}

func TestSearchCacheHitDropsDeletedMeetings(t *testing.T) {
	store := newTestStore(3)
	svc := NewSearchService(store, &fakeUserDirectory{}, cache.NewMemory(), time.Minute, nil)
	params := SearchParams{IsPublic: true, OrderBy: OrderCreatedTime, Limit: 10}

	_, _, err := svc.Search(context.Background(), params)
	require.NoError(t, err)

	// A meeting deleted after the cache was populated disappears from the page
	// and from the reported total.
	delete(store.byID, store.ids[1])
	rows, total, err := svc.Search(context.Background(), params)
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, store.ids[0], rows[0].ID)
	assert.Equal(t, store.ids[2], rows[1].ID)
	assert.Equal(t, 1, store.countCalls)
}

func TestSearchCacheFailureDegradesToLiveQuery(t *testing.T) {
	store := newTestStore(2)
	svc := NewSearchService(store, &fakeUserDirectory{}, brokenCache{}, time.Minute, nil)

	rows, total, err := svc.Search(context.Background(), SearchParams{IsPublic: true, OrderBy: OrderCreatedTime, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, rows, 2)
}

func TestSearchPrivateScopeRequiresUniversity(t *testing.T) {
	store := newTestStore(1)
	requester := uuid.New()
	svc := NewSearchService(store, &fakeUserDirectory{universityID: nil}, cache.NewMemory(), time.Minute, nil)

	_, _, err := svc.Search(context.Background(), SearchParams{
		IsPublic: false, RequesterID: &requester, OrderBy: OrderCreatedTime, Limit: 10,
	})
	require.Error(t, err)
	assert.Equal(t, apperr.KindInvalid, apperr.KindOf(err))
	assert.Equal(t, 0, store.countCalls)
}

func TestSearchPrivateScopeAppliesVisibility(t *testing.T) {
	store := newTestStore(1)
	requester := uuid.New()
	universityID := uuid.New()
	users := &fakeUserDirectory{universityID: &universityID, banned: []uuid.UUID{uuid.New()}}
	svc := NewSearchService(store, users, cache.NewMemory(), time.Minute, nil)

	_, _, err := svc.Search(context.Background(), SearchParams{
		IsPublic: false, RequesterID: &requester, OrderBy: OrderCreatedTime, Limit: 10,
	})
	require.NoError(t, err)
	assert.Contains(t, store.lastSQL, "m.university_id =")
	assert.Contains(t, store.lastSQL, "NOT (m.creator_id = ANY(")
}

func TestSearchPrivateScopeWithoutRequesterSkipsVisibility(t *testing.T) {
	store := newTestStore(1)
	svc := NewSearchService(store, &fakeUserDirectory{}, cache.NewMemory(), time.Minute, nil)

	_, _, err := svc.Search(context.Background(), SearchParams{IsPublic: false, OrderBy: OrderCreatedTime, Limit: 10})
	require.NoError(t, err)
	assert.NotContains(t, store.lastSQL, "university_id")
}

func TestSearchDeadlineSoonOrdering(t *testing.T) {
	store := newTestStore(1)
	svc := NewSearchService(store, &fakeUserDirectory{}, cache.NewMemory(), time.Minute, nil)
	svc.now = func() time.Time { return fixedNow }

	_, _, err := svc.Search(context.Background(), SearchParams{IsPublic: true, OrderBy: OrderDeadlineSoon, Limit: 10})
	require.NoError(t, err)
	assert.Contains(t, store.lastSQL, "m.meeting_time >")
	assert.Equal(t, "ABS(m.max_participants - (m.korean_count + m.foreign_count)) ASC, m.meeting_time ASC", store.lastOrderBy)
}
