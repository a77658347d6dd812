package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/macsteckler/lightspeeed-scraper/internal/database"
	"github.com/macsteckler/lightspeeed-scraper/internal/domain"
	"github.com/macsteckler/lightspeeed-scraper/internal/llm"
	"github.com/macsteckler/lightspeeed-scraper/internal/logger"
	"github.com/macsteckler/lightspeeed-scraper/internal/telemetry"
)

var (
	testProvider *telemetry.Provider
	providerOnce sync.Once
)

// getTestProvider shares one Provider across the test binary because
// metric registration on the default registry is once-only.
func getTestProvider() *telemetry.Provider {
	providerOnce.Do(func() {
		testProvider = telemetry.NewProvider()
	})
	return testProvider
}

type enqueuedJob struct {
	jobType string
	payload domain.JSONBMap
}

type fakeJobs struct {
	mu         sync.Mutex
	nextID     int64
	enqueueErr error
	enqueued   []enqueuedJob
	done       []int64
	deltas     map[int64][]domain.JobCounters
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{nextID: 100, deltas: make(map[int64][]domain.JobCounters)}
}

func (f *fakeJobs) Enqueue(_ context.Context, jobType string, payload domain.JSONBMap) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.enqueueErr != nil {
		return 0, f.enqueueErr
	}
	f.nextID++
	f.enqueued = append(f.enqueued, enqueuedJob{jobType: jobType, payload: payload})
	return f.nextID, nil
}

func (f *fakeJobs) MarkDone(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, id)
	return nil
}

func (f *fakeJobs) UpdateCounters(_ context.Context, id int64, delta domain.JobCounters) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if delta.IsZero() {
		return nil
	}
	f.deltas[id] = append(f.deltas[id], delta)
	return nil
}

// total sums every delta recorded against a job.
func (f *fakeJobs) total(id int64) domain.JobCounters {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum domain.JobCounters
	for _, d := range f.deltas[id] {
		sum.LinksFound += d.LinksFound
		sum.LinksSkipped += d.LinksSkipped
		sum.ArticlesSaved += d.ArticlesSaved
		sum.Errors += d.Errors
	}
	return sum
}

type fakeArticles struct {
	mu      sync.Mutex
	nextID  int64
	saveErr error
	saved   []*domain.Article
}

func (f *fakeArticles) Save(_ context.Context, article *domain.Article) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return 0, f.saveErr
	}
	f.nextID++
	f.saved = append(f.saved, article)
	return f.nextID, nil
}

type processedSave struct {
	url    string
	status string
	city   string
}

type fakeProcessed struct {
	mu       sync.Mutex
	statuses map[string]string
	checkErr error
	saveErr  error
	saved    []processedSave
}

func newFakeProcessed() *fakeProcessed {
	return &fakeProcessed{statuses: make(map[string]string)}
}

func (f *fakeProcessed) Check(_ context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.checkErr != nil {
		return "", f.checkErr
	}
	return f.statuses[url], nil
}

func (f *fakeProcessed) Save(_ context.Context, url, status, city string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.statuses[url] = status
	f.saved = append(f.saved, processedSave{url: url, status: status, city: city})
	return nil
}

type fakeSources struct {
	mu        sync.Mutex
	rows      map[string]*domain.Source
	getErr    error
	batchRows []*domain.Source
	batchErr  error
	stamped   []string
	getCalls  int
}

func newFakeSources() *fakeSources {
	return &fakeSources{rows: make(map[string]*domain.Source)}
}

func sourceKey(table, id string) string { return table + "/" + id }

func (f *fakeSources) add(table string, source *domain.Source) {
	f.rows[sourceKey(table, source.ID)] = source
}

func (f *fakeSources) Get(_ context.Context, table, id string) (*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.getCalls++
	if f.getErr != nil {
		return nil, f.getErr
	}
	source, ok := f.rows[sourceKey(table, id)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return source, nil
}

func (f *fakeSources) SelectForBatch(_ context.Context, _ int, _ string) ([]*domain.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.batchRows, f.batchErr
}

func (f *fakeSources) UpdateScrapedAt(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stamped = append(f.stamped, id)
	return nil
}

type fakeExtractor struct {
	mu         sync.Mutex
	content    *domain.ExtractedContent
	extractErr error
	perURL     map[string]*domain.ExtractedContent
	perURLErr  map[string]error
	links      []string
	linksErr   error
	extracted  []string
	collected  []string
}

func (f *fakeExtractor) Extract(_ context.Context, pageURL string) (*domain.ExtractedContent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.extracted = append(f.extracted, pageURL)
	if err, ok := f.perURLErr[pageURL]; ok {
		return nil, err
	}
	if content, ok := f.perURL[pageURL]; ok {
		return content, nil
	}
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	if f.content != nil {
		return f.content, nil
	}
	return sampleContent(), nil
}

func (f *fakeExtractor) CollectLinks(_ context.Context, pageURL string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collected = append(f.collected, pageURL)
	return f.links, f.linksErr
}

type fakeLLM struct {
	mu             sync.Mutex
	classification domain.Classification
	perURLClass    map[string]domain.Classification
	summary        *llm.Summary
	summarizeErr   error
	classified     []string
	summarized     int
}

func (f *fakeLLM) Classify(_ context.Context, _, _, pageURL string) domain.Classification {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified = append(f.classified, pageURL)
	if c, ok := f.perURLClass[pageURL]; ok {
		return c
	}
	return f.classification
}

func (f *fakeLLM) Summarize(_ context.Context, _ domain.Classification, _ *domain.ExtractedContent) (*llm.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summarized++
	if f.summarizeErr != nil {
		return nil, f.summarizeErr
	}
	if f.summary != nil {
		return f.summary, nil
	}
	return sampleSummary(), nil
}

type fakeDates struct {
	mu     sync.Mutex
	date   *time.Time
	method string
	calls  int
}

func (f *fakeDates) Resolve(_ context.Context, _ *domain.ExtractedContent) (*time.Time, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	method := f.method
	if method == "" {
		method = domain.DateMethodFailed
	}
	return f.date, method
}

type fakeEmbedder struct {
	mu       sync.Mutex
	err      error
	articles []*domain.Article
}

func (f *fakeEmbedder) EmbedArticle(_ context.Context, article *domain.Article) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.articles = append(f.articles, article)
	return f.err
}

// harness bundles a Pipeline with its fakes.
type harness struct {
	pipeline  *Pipeline
	jobs      *fakeJobs
	articles  *fakeArticles
	processed *fakeProcessed
	sources   *fakeSources
	extractor *fakeExtractor
	llm       *fakeLLM
	dates     *fakeDates
	embedder  *fakeEmbedder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		jobs:      newFakeJobs(),
		articles:  &fakeArticles{},
		processed: newFakeProcessed(),
		sources:   newFakeSources(),
		extractor: &fakeExtractor{},
		llm:       &fakeLLM{classification: domain.Classification{Label: domain.LabelCity, CitySlug: "Boise, ID"}},
		dates:     &fakeDates{},
		embedder:  &fakeEmbedder{},
	}
	h.pipeline = New(Deps{
		Jobs:             h.jobs,
		Articles:         h.articles,
		Processed:        h.processed,
		Sources:          h.sources,
		Extractor:        h.extractor,
		LLM:              h.llm,
		Dates:            h.dates,
		Embedder:         h.embedder,
		Telemetry:        getTestProvider(),
		Log:              logger.NewNop(),
		BatchConcurrency: 2,
	})
	return h
}

func sampleContent() *domain.ExtractedContent {
	return &domain.ExtractedContent{
		Title:    "Council approves levy",
		Text:     "The council approved the levy on Tuesday after a lengthy public hearing.",
		Markdown: "# Council approves levy",
		Metadata: map[string]string{"og:title": "Council approves levy"},
		Engine:   domain.EngineBrowser,
	}
}

func sampleSummary() *llm.Summary {
	return &llm.Summary{
		Title:         "Council approves levy",
		ShortSummary:  "Council approved the levy Tuesday.",
		MediumSummary: "Six sentences about the levy.",
		LongSummary:   "Eight sentences about the levy.",
		Topic:         "Government",
		MainTopic:     "Politics",
		Subtopics:     []string{"Budget", "Taxes"},
		Score:         llm.Score(87),
	}
}
