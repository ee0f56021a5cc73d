package meetings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/apperr"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
	"github.com/BIS-KIT/BISKIT-Backend-sub000/pkg/cache"
)

type fakeTaxonomy struct {
	otherID uuid.UUID // zero means the sentinel topic is not seeded
}

func (f *fakeTaxonomy) GetOrCreateCustomTag(context.Context, string) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeTaxonomy) GetOrCreateCustomTopic(context.Context, string) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeTaxonomy) GetOrCreateCustomLanguage(context.Context, string) (uuid.UUID, error) {
	return uuid.New(), nil
}
func (f *fakeTaxonomy) OtherTopicID(context.Context) (uuid.UUID, error) {
	if f.otherID == uuid.Nil {
		return uuid.Nil, apperr.NotFound("sentinel topic not seeded")
	}
	return f.otherID, nil
}

// fakeMeetingStore implements MeetingStore over the same data a
// fakeSearchStore serves, so handler mutations are visible to later searches.
type fakeMeetingStore struct {
	store *fakeSearchStore
}

func (f *fakeMeetingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Meeting, error) {
	m, ok := f.store.byID[id]
	if !ok {
		return nil, apperr.NotFound("meeting not found")
	}
	cp := m
	return &cp, nil
}

func (f *fakeMeetingStore) Create(_ context.Context, m *models.Meeting, _, _, _ []uuid.UUID) error {
	m.ID = uuid.New()
	m.IsActive = true
	f.store.ids = append(f.store.ids, m.ID)
	f.store.byID[m.ID] = *m
	f.store.count++
	return nil
}

func (f *fakeMeetingStore) Update(_ context.Context, m *models.Meeting, _, _, _ []uuid.UUID) error {
	if _, ok := f.store.byID[m.ID]; !ok {
		return apperr.NotFound("meeting not found")
	}
	f.store.byID[m.ID] = *m
	return nil
}

func (f *fakeMeetingStore) Delete(_ context.Context, id uuid.UUID) error {
	if _, ok := f.store.byID[id]; !ok {
		return apperr.NotFound("meeting not found")
	}
	delete(f.store.byID, id)
	for i, existing := range f.store.ids {
		if existing == id {
			f.store.ids = append(f.store.ids[:i], f.store.ids[i+1:]...)
			break
		}
	}
	f.store.count--
	return nil
}

type fakeMembers struct{}

func (fakeMembers) MemberUserIDs(context.Context, uuid.UUID) ([]uuid.UUID, error) { return nil, nil }

type fakeTokens struct{}

func (fakeTokens) GetPushTokens(context.Context, []uuid.UUID) ([]string, error) { return nil, nil }

func newListRouter(store *fakeSearchStore, taxonomy *fakeTaxonomy) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := NewSearchService(store, &fakeUserDirectory{}, cache.NewMemory(), time.Minute, nil)
	h := NewHandler(svc, nil, taxonomy, nil, nil, cache.NewMemory(), nil, 10, 50, nil)
	r := gin.New()
	r.GET("/meetings", h.List)
	return r
}

func getList(r *gin.Engine, query string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/meetings"+query, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type listResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Meetings   []models.Meeting `json:"meetings"`
		TotalCount int              `json:"total_count"`
	} `json:"data"`
}

func TestListEndpoint(t *testing.T) {
	store := newTestStore(2)
	r := newListRouter(store, &fakeTaxonomy{})

	w := getList(r, "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Data.TotalCount)
	assert.Len(t, resp.Data.Meetings, 2)
}

func TestListEndpointCountOnly(t *testing.T) {
	store := newTestStore(4)
	r := newListRouter(store, &fakeTaxonomy{})

	w := getList(r, "?count_only=true")
	require.Equal(t, http.StatusOK, w.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 4, resp.Data.TotalCount)
	assert.Empty(t, resp.Data.Meetings)
	assert.Equal(t, 0, store.searchCalls)
}

func TestListEndpointRejectsUnknownTokens(t *testing.T) {
	r := newListRouter(newTestStore(0), &fakeTaxonomy{})

	for _, query := range []string{
		"?order_by=RANDOM",
		"?tags_ids=not-a-uuid",
		"?topics_ids=also-bad",
		"?time_filters=YESTERDAY",
		"?creator_nationality=MARTIAN",
		"?user_id=42",
		"?is_public=maybe",
		"?skip=-1",
		"?limit=0",
	} {
		assert.Equal(t, http.StatusBadRequest, getList(r, query).Code, query)
	}
}

func TestListEndpointClampsLimit(t *testing.T) {
	store := newTestStore(1)
	r := newListRouter(store, &fakeTaxonomy{})

	require.Equal(t, http.StatusOK, getList(r, "?limit=9999").Code)
	// Clamped to max page size rather than rejected.
	assert.Equal(t, 1, store.searchCalls)
}

// newCrudRouter wires search and CRUD over one shared cache, the same way the
// server does, so mutations exercise the invalidation path end to end.
func newCrudRouter(store *fakeSearchStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	shared := cache.NewMemory()
	svc := NewSearchService(store, &fakeUserDirectory{}, shared, time.Minute, nil)
	h := NewHandler(svc, &fakeMeetingStore{store: store}, &fakeTaxonomy{}, fakeMembers{}, fakeTokens{}, shared, nil, 10, 50, nil)
	r := gin.New()
	r.GET("/meetings", h.List)
	r.POST("/meetings", h.Create)
	r.DELETE("/meetings/:id", h.Delete)
	return r
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) listResponse {
	t.Helper()
	var resp listResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestCreateInvalidatesSearchCache(t *testing.T) {
	store := newTestStore(1)
	r := newCrudRouter(store)

	// First search populates the cache.
	w := getList(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, decodeList(t, w).Data.TotalCount)
	require.Equal(t, 1, store.countCalls)

	body, err := json.Marshal(gin.H{
		"name":             "board game night",
		"meeting_time":     time.Now().Add(24 * time.Hour),
		"max_participants": 4,
		"is_public":        true,
		"creator_id":       uuid.New(),
	})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/meetings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	// The identical search runs live again and includes the new meeting.
	w = getList(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeList(t, w)
	assert.Equal(t, 2, resp.Data.TotalCount)
	require.Len(t, resp.Data.Meetings, 2)
	assert.Equal(t, 2, store.countCalls)

	names := []string{resp.Data.Meetings[0].Name, resp.Data.Meetings[1].Name}
	assert.Contains(t, names, "board game night")
}

func TestDeleteInvalidatesSearchCache(t *testing.T) {
	store := newTestStore(2)
	r := newCrudRouter(store)

	w := getList(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 2, decodeList(t, w).Data.TotalCount)

	victim := store.ids[0]
	req := httptest.NewRequest(http.MethodDelete, "/meetings/"+victim.String(), nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = getList(r, "")
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeList(t, w)
	assert.Equal(t, 1, resp.Data.TotalCount)
	require.Len(t, resp.Data.Meetings, 1)
	assert.NotEqual(t, victim, resp.Data.Meetings[0].ID)
	assert.Equal(t, 2, store.countCalls)
}

func TestListEndpointSentinelTopicWidens(t *testing.T) {
	store := newTestStore(1)
	other := uuid.New()
	r := newListRouter(store, &fakeTaxonomy{otherID: other})

	w := getList(r, "?topics_ids="+other.String()+","+uuid.NewString())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, store.lastSQL, "tp.is_custom OR")
}

func TestListEndpointExactTopicsWithoutSentinel(t *testing.T) {
	store := newTestStore(1)
	r := newListRouter(store, &fakeTaxonomy{otherID: uuid.New()})

	w := getList(r, "?topics_ids="+uuid.NewString())
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, store.lastSQL, "tp.is_custom OR")
	assert.Contains(t, store.lastSQL, "mtp.topic_id = ANY(")
}

func TestListEndpointUnseededSentinelFallsBackToExact(t *testing.T) {
	store := newTestStore(1)
	r := newListRouter(store, &fakeTaxonomy{})

	w := getList(r, "?topics_ids="+uuid.NewString())
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, store.lastSQL, "tp.is_custom")
}
