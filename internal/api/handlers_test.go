package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macsteckler/lightspeeed-scraper/internal/api"
	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

var (
	testProviderOnce sync.Once
	testProvider     *telemetry.Provider
)

// getTestProvider returns a process-wide provider; metrics register
// against the default registry and cannot be created twice.
func getTestProvider() *telemetry.Provider {
	testProviderOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

type enqueuedJob struct {
	jobType string
	payload domain.JSONBMap
}

type fakeJobStore struct {
	enqueueErr error
	getErr     error
	job        *domain.Job
	nextID     int64
	enqueued   []enqueuedJob
}

func (f *fakeJobStore) Enqueue(_ context.Context, jobType string, payload domain.JSONBMap) (int64, error) {
	if f.enqueueErr != nil {
		return 0, f.enqueueErr
	}
	f.nextID++
	f.enqueued = append(f.enqueued, enqueuedJob{jobType: jobType, payload: payload})
	return f.nextID, nil
}

func (f *fakeJobStore) Get(_ context.Context, id int64) (*domain.Job, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.job == nil || f.job.ID != id {
		return nil, database.ErrNotFound
	}
	return f.job, nil
}

// newTestRouter registers the handler's routes without auth so each
// endpoint can be exercised directly.
func newTestRouter(store *fakeJobStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := api.NewHandler(store, logger.NewNop())

	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.POST("/scrape-article", handler.ScrapeArticle)
	v1.POST("/scrape-source", handler.ScrapeSource)
	v1.POST("/process-sources", handler.ProcessSources)
	v1.POST("/scrape-multiple-sources", handler.ScrapeMultipleSources)
	v1.GET("/jobs/:id", handler.GetJob)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func getPath(router *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestScrapeArticleEnqueuesJob(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-article",
		`{"url": "https://example.com/news/levy-passes", "source_id": "42"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 1, body["job_id"])

	require.Len(t, store.enqueued, 1)
	assert.Equal(t, domain.JobTypeArticle, store.enqueued[0].jobType)
	assert.Equal(t, "https://example.com/news/levy-passes", store.enqueued[0].payload["url"])
	assert.Equal(t, "42", store.enqueued[0].payload["source_id"])
}

func TestScrapeArticleRejectsMissingURL(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-article", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body["code"])
	assert.Empty(t, store.enqueued)
}

func TestScrapeArticleRejectsMalformedJSON(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-article", `{"url": `)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.enqueued)
}

func TestScrapeSourceAppliesDefaultLimit(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-source",
		`{"url": "https://news.example.com", "source_id": "7", "source_table": "news_sources"}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.enqueued, 1)
	assert.Equal(t, domain.JobTypeSource, store.enqueued[0].jobType)
	assert.EqualValues(t, domain.DefaultSourceLimit, store.enqueued[0].payload["limit"])
	assert.Equal(t, "news_sources", store.enqueued[0].payload["source_table"])
}

func TestScrapeSourceRejectsUnknownTable(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-source",
		`{"url": "https://news.example.com", "source_id": "7", "source_table": "mystery_sources"}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "unknown source_table")
	assert.Empty(t, store.enqueued)
}

func TestProcessSourcesAppliesDefaultBatchSize(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/process-sources", `{}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.enqueued, 1)
	assert.Equal(t, domain.JobTypeBatch, store.enqueued[0].jobType)
	assert.EqualValues(t, domain.DefaultBatchSize, store.enqueued[0].payload["batch_size"])
}

func TestProcessSourcesCarriesDryRunAndQuery(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/process-sources",
		`{"batch_size": 5, "query": "verified = true", "dry_run": true}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.enqueued, 1)
	assert.EqualValues(t, 5, store.enqueued[0].payload["batch_size"])
	assert.Equal(t, "verified = true", store.enqueued[0].payload["query"])
	assert.Equal(t, true, store.enqueued[0].payload["dry_run"])
}

func TestScrapeMultipleSourcesEnqueuesJob(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-multiple-sources", `{
		"sources": [
			{"source_id": "1", "source_table": "news_sources"},
			{"source_id": "2", "source_table": "city_sources", "limit": 25}
		]
	}`)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, store.enqueued, 1)
	assert.Equal(t, domain.JobTypeMultiSource, store.enqueued[0].jobType)

	sources, ok := store.enqueued[0].payload["sources"].([]any)
	require.True(t, ok)
	require.Len(t, sources, 2)

	first, ok := sources[0].(map[string]any)
	require.True(t, ok)
	assert.EqualValues(t, domain.DefaultSourceLimit, first["limit"])
}

func TestScrapeMultipleSourcesRejectsDuplicates(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-multiple-sources", `{
		"sources": [
			{"source_id": "1", "source_table": "news_sources"},
			{"source_id": "1", "source_table": "news_sources"}
		]
	}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Contains(t, body["message"], "duplicate source")
	assert.Empty(t, store.enqueued)
}

func TestScrapeMultipleSourcesRequiresSources(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-multiple-sources", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, store.enqueued)
}

func TestGetJobReturnsJob(t *testing.T) {
	store := &fakeJobStore{job: &domain.Job{
		ID:            42,
		JobType:       domain.JobTypeSource,
		Status:        domain.JobStatusDone,
		ArticlesSaved: 3,
		LinksSkipped:  7,
	}}
	router := newTestRouter(store)

	rec := getPath(router, "/api/v1/jobs/42")

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 42, body["id"])
	assert.Equal(t, domain.JobTypeSource, body["job_type"])
	assert.Equal(t, domain.JobStatusDone, body["status"])
	assert.EqualValues(t, 3, body["articles_saved"])
	assert.EqualValues(t, 7, body["links_skipped"])
}

func TestGetJobUnknownIDReturns404(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := getPath(router, "/api/v1/jobs/999")

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "NOT_FOUND", body["code"])
}

func TestGetJobRejectsNonNumericID(t *testing.T) {
	store := &fakeJobStore{}
	router := newTestRouter(store)

	rec := getPath(router, "/api/v1/jobs/abc")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INVALID_JOB_ID", body["code"])
}

func TestEnqueueFailureReturns500(t *testing.T) {
	store := &fakeJobStore{enqueueErr: errors.New("insert failed: connection refused")}
	router := newTestRouter(store)

	rec := postJSON(router, "/api/v1/scrape-article", `{"url": "https://example.com/news/a"}`)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", body["code"])
	assert.NotContains(t, rec.Body.String(), "connection refused")
}

func TestSetupRoutesProtectsJobAPI(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := &fakeJobStore{}
	handler := api.NewHandler(store, logger.NewNop())

	router := gin.New()
	api.SetupRoutes(router, handler, api.RoutesConfig{
		Service:   "lightspeed-scraper",
		Version:   "test",
		JWTSecret: "routes-test-secret",
		Telemetry: getTestProvider(),
	})

	rec := postJSON(router, "/api/v1/scrape-article", `{"url": "https://example.com/news/a"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token := signTestToken(t, "routes-test-secret")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape-article",
		strings.NewReader(`{"url": "https://example.com/news/a"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	authed := httptest.NewRecorder()
	router.ServeHTTP(authed, req)
	assert.Equal(t, http.StatusAccepted, authed.Code)

	assert.Equal(t, http.StatusOK, getPath(router, "/health").Code)
	assert.Equal(t, http.StatusOK, getPath(router, "/metrics").Code)
}

func signTestToken(t *testing.T, secret string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   "api-tests",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}
