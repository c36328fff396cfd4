package pipeline

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"pheme/internal/core"
	"pheme/internal/fetch"
)

// --- fakes ---

type fakeStorage struct {
	sources []core.Source
	topics  []core.Topic
	block   []string
	scope   core.BlockScope

	mu      sync.Mutex
	stamped map[int64]time.Time
}

func (f *fakeStorage) ListEnabledSources() ([]core.Source, error) { return f.sources, nil }
func (f *fakeStorage) ListTopics() ([]core.Topic, error)          { return f.topics, nil }
func (f *fakeStorage) BlockedKeywords() ([]string, core.BlockScope, error) {
	scope := f.scope
	if scope == "" {
		scope = core.ScopeNarrow
	}
	return f.block, scope, nil
}
func (f *fakeStorage) UpdateSourceLastFetched(id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stamped == nil {
		f.stamped = map[int64]time.Time{}
	}
	f.stamped[id] = at
	return nil
}

type fetcherFunc func(ctx context.Context, source core.Source) ([]core.Candidate, error)

func (fn fetcherFunc) Fetch(ctx context.Context, source core.Source) ([]core.Candidate, error) {
	return fn(ctx, source)
}

// fakeFactory dispatches by source name so one test can give every
// source its own behavior.
type fakeFactory struct {
	byName map[string]fetcherFunc
}

func (f *fakeFactory) ForKind(kind core.SourceKind) (fetch.Fetcher, error) {
	return fetcherFunc(func(ctx context.Context, source core.Source) ([]core.Candidate, error) {
		fn, ok := f.byName[source.Name]
		if !ok {
			return nil, fmt.Errorf("no fake for source %s", source.Name)
		}
		return fn(ctx, source)
	}), nil
}

type fakeExtractor struct {
	bodies map[string]string
}

func (f *fakeExtractor) Extract(_ context.Context, link string) string {
	return f.bodies[link]
}

type fakeSummarizer struct{}

func (fakeSummarizer) Run(_ context.Context, candidates []*core.Candidate) int {
	for _, c := range candidates {
		c.Summary = "summary: " + c.Title
	}
	return len(candidates)
}

func staticCandidates(candidates ...core.Candidate) fetcherFunc {
	return func(context.Context, core.Source) ([]core.Candidate, error) {
		out := make([]core.Candidate, len(candidates))
		copy(out, candidates)
		return out, nil
	}
}

func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)
	}
}

func testDeps(storage *fakeStorage, factory *fakeFactory) Deps {
	return Deps{
		Storage:    storage,
		Fetchers:   factory,
		Extractor:  &fakeExtractor{},
		Summarizer: fakeSummarizer{},
		Now:        fixedClock(),
	}
}

// --- tests ---

func TestRunHappyPath(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{
			{ID: 1, Name: "feed-a", Kind: core.KindFeed, Enabled: true},
			{ID: 2, Name: "feed-b", Kind: core.KindFeed, Enabled: true},
		},
		topics: []core.Topic{
			{ID: 1, Name: "Tech", Keywords: []string{"golang"}, MaxArticles: 5},
			{ID: 2, Name: "Science", Keywords: []string{"physics"}, MaxArticles: 5},
		},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"feed-a": staticCandidates(
			core.Candidate{SourceID: 1, SourceName: "feed-a", Title: "golang 1.25 released", Link: "https://a.example/1"},
			core.Candidate{SourceID: 1, SourceName: "feed-a", Title: "physics breakthrough", Link: "https://a.example/2"},
		),
		"feed-b": staticCandidates(
			core.Candidate{SourceID: 2, SourceName: "feed-b", Title: "more golang news", Link: "https://b.example/1"},
		),
	}}

	p := New(testDeps(storage, factory), Options{})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if p.State() != StateComposed {
		t.Errorf("Expected composed state, got %s", p.State())
	}
	if len(result.Sections) != 2 {
		t.Fatalf("Expected 2 sections, got %d", len(result.Sections))
	}
	if result.Sections[0].TopicName != "Tech" || len(result.Sections[0].Entries) != 2 {
		t.Errorf("Unexpected Tech section: %+v", result.Sections[0])
	}
	if result.Sections[1].TopicName != "Science" || len(result.Sections[1].Entries) != 1 {
		t.Errorf("Unexpected Science section: %+v", result.Sections[1])
	}
	for _, section := range result.Sections {
		for _, e := range section.Entries {
			if e.Summary == "" {
				t.Errorf("Entry %s missing summary", e.Link)
			}
		}
	}

	stats := result.Stats
	if stats.RunID == "" {
		t.Error("Expected a run ID")
	}
	if stats.Fetched != 3 || stats.Matched != 3 || stats.Deduped != 3 || stats.Summarized != 3 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
	if len(stats.Sources) != 2 || stats.Sources[0].Fetched != 2 || stats.Sources[1].Fetched != 1 {
		t.Errorf("Unexpected per-source outcomes: %+v", stats.Sources)
	}

	storage.mu.Lock()
	defer storage.mu.Unlock()
	if len(storage.stamped) != 2 {
		t.Errorf("Expected both sources stamped, got %+v", storage.stamped)
	}
}

func TestRunDeterministicOutput(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{
			{ID: 1, Name: "s1", Kind: core.KindFeed, Enabled: true},
			{ID: 2, Name: "s2", Kind: core.KindFeed, Enabled: true},
			{ID: 3, Name: "s3", Kind: core.KindFeed, Enabled: true},
		},
		topics: []core.Topic{
			{ID: 1, Name: "Tech", Keywords: []string{"ai", "gpu"}, MaxArticles: 4},
		},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"s1": staticCandidates(
			core.Candidate{Title: "ai news", Link: "https://e.com/a"},
			core.Candidate{Title: "ai gpu news", Link: "https://e.com/b"},
		),
		"s2": staticCandidates(
			core.Candidate{Title: "ai report", Link: "https://e.com/c"},
		),
		"s3": staticCandidates(
			core.Candidate{Title: "gpu benchmark", Link: "https://e.com/d"},
		),
	}}

	var baseline []core.TopicSection
	for i := 0; i < 10; i++ {
		p := New(testDeps(storage, factory), Options{FetchWorkers: 3, ExtractWorkers: 3})
		result, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
		if baseline == nil {
			baseline = result.Sections
			continue
		}
		if !reflect.DeepEqual(baseline, result.Sections) {
			t.Fatalf("Run %d produced different sections:\n%+v\nvs\n%+v", i, result.Sections, baseline)
		}
	}
}

func TestRunNoSources(t *testing.T) {
	p := New(testDeps(&fakeStorage{topics: []core.Topic{{ID: 1, Name: "T"}}}, &fakeFactory{}), Options{})
	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrNoSources) {
		t.Errorf("Expected ErrNoSources, got %v", err)
	}
	if p.State() != StateFailed {
		t.Errorf("Expected failed state, got %s", p.State())
	}
}

func TestRunNoTopics(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{{ID: 1, Name: "s", Kind: core.KindFeed, Enabled: true}},
	}
	p := New(testDeps(storage, &fakeFactory{}), Options{})
	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrNoTopics) {
		t.Errorf("Expected ErrNoTopics, got %v", err)
	}
}

func TestRunPartialFetchFailureContinues(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{
			{ID: 1, Name: "broken", Kind: core.KindFeed, Enabled: true},
			{ID: 2, Name: "healthy", Kind: core.KindFeed, Enabled: true},
		},
		topics: []core.Topic{{ID: 1, Name: "Tech", Keywords: []string{"golang"}, MaxArticles: 5}},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"broken": func(context.Context, core.Source) ([]core.Candidate, error) {
			return nil, errors.New("connection refused")
		},
		"healthy": staticCandidates(
			core.Candidate{SourceID: 2, Title: "golang story", Link: "https://h.example/1"},
		),
	}}

	p := New(testDeps(storage, factory), Options{})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("A single failing source must not fail the run: %v", err)
	}
	if result.EntryCount() != 1 {
		t.Errorf("Expected 1 entry from the healthy source, got %d", result.EntryCount())
	}

	outcomes := result.Stats.Sources
	if outcomes[0].Err == "" {
		t.Error("Failing source must record its error")
	}
	if outcomes[1].Err != "" || outcomes[1].Fetched != 1 {
		t.Errorf("Healthy source outcome wrong: %+v", outcomes[1])
	}

	storage.mu.Lock()
	defer storage.mu.Unlock()
	if _, ok := storage.stamped[1]; ok {
		t.Error("Failing source must not be stamped")
	}
	if _, ok := storage.stamped[2]; !ok {
		t.Error("Healthy source must be stamped")
	}
}

func TestRunAllSourcesFailIsSystemic(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{
			{ID: 1, Name: "a", Kind: core.KindFeed, Enabled: true},
			{ID: 2, Name: "b", Kind: core.KindFeed, Enabled: true},
		},
		topics: []core.Topic{{ID: 1, Name: "T", Keywords: []string{"x"}}},
	}
	fail := func(context.Context, core.Source) ([]core.Candidate, error) {
		return nil, errors.New("unreachable")
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{"a": fail, "b": fail}}

	p := New(testDeps(storage, factory), Options{})
	_, err := p.Run(context.Background())
	if !errors.Is(err, ErrEmptyPipeline) {
		t.Errorf("Expected ErrEmptyPipeline, got %v", err)
	}
	if p.State() != StateFailed {
		t.Errorf("Expected failed state, got %s", p.State())
	}
}

func TestRunEmptyDigestIsSuccess(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{{ID: 1, Name: "s", Kind: core.KindFeed, Enabled: true}},
		topics:  []core.Topic{{ID: 1, Name: "T", Keywords: []string{"golang"}, MaxArticles: 5}},
		block:   []string{"blocked"},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"s": staticCandidates(
			core.Candidate{Title: "blocked golang story", Link: "https://e.com/1"},
			core.Candidate{Title: "unrelated cooking tips", Link: "https://e.com/2"},
		),
	}}

	p := New(testDeps(storage, factory), Options{})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("An empty digest is a successful run, got error: %v", err)
	}
	if !result.Empty() {
		t.Errorf("Expected an empty digest, got %d entries", result.EntryCount())
	}
	if result.Stats.Fetched != 2 || result.Stats.Filtered != 1 || result.Stats.Matched != 0 {
		t.Errorf("Unexpected stats: %+v", result.Stats)
	}
}

func TestRunRejectsOverlappingTrigger(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var once sync.Once

	storage := &fakeStorage{
		sources: []core.Source{{ID: 1, Name: "slow", Kind: core.KindFeed, Enabled: true}},
		topics:  []core.Topic{{ID: 1, Name: "T", Keywords: []string{"x"}, MaxArticles: 5}},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"slow": func(context.Context, core.Source) ([]core.Candidate, error) {
			once.Do(func() {
				close(entered)
				<-release
			})
			return []core.Candidate{{Title: "x marks it", Link: "https://e.com/1"}}, nil
		},
	}}

	p := New(testDeps(storage, factory), Options{})

	type runResult struct {
		result *core.DigestResult
		err    error
	}
	done := make(chan runResult, 1)
	go func() {
		result, err := p.Run(context.Background())
		done <- runResult{result, err}
	}()

	<-entered
	if _, err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Errorf("Expected ErrRunInProgress for the overlapping trigger, got %v", err)
	}

	close(release)
	first := <-done
	if first.err != nil {
		t.Fatalf("Rejected trigger must not disturb the active run: %v", first.err)
	}
	if first.result.EntryCount() != 1 {
		t.Errorf("Active run lost its output: %+v", first.result)
	}

	// The guard frees up once the run completes.
	if _, err := p.Run(context.Background()); err != nil {
		t.Errorf("Expected a fresh run to start after completion, got %v", err)
	}
}

func TestRunCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	storage := &fakeStorage{
		sources: []core.Source{{ID: 1, Name: "hang", Kind: core.KindFeed, Enabled: true}},
		topics:  []core.Topic{{ID: 1, Name: "T", Keywords: []string{"x"}}},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"hang": func(ctx context.Context, _ core.Source) ([]core.Candidate, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}}

	p := New(testDeps(storage, factory), Options{GraceTimeout: time.Second})

	done := make(chan error, 1)
	go func() {
		_, err := p.Run(ctx)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Errorf("Expected ErrCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if p.State() != StateFailed {
		t.Errorf("Expected failed state after cancellation, got %s", p.State())
	}
}

func TestRunDeduplicatesLinksAcrossSources(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{
			{ID: 1, Name: "a", Kind: core.KindFeed, Enabled: true},
			{ID: 2, Name: "b", Kind: core.KindFeed, Enabled: true},
		},
		topics: []core.Topic{{ID: 1, Name: "T", Keywords: []string{"shared"}, MaxArticles: 5}},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"a": staticCandidates(core.Candidate{SourceName: "a", Title: "shared story", Link: "https://e.com/same"}),
		"b": staticCandidates(core.Candidate{SourceName: "b", Title: "shared story", Link: "https://e.com/same"}),
	}}

	p := New(testDeps(storage, factory), Options{})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stats.Fetched != 1 {
		t.Errorf("Expected duplicate link collapsed to 1, got %d", result.Stats.Fetched)
	}
	if result.EntryCount() != 1 {
		t.Errorf("Expected 1 entry, got %d", result.EntryCount())
	}
	// The earlier-configured source's copy wins.
	if result.Sections[0].Entries[0].SourceName != "a" {
		t.Errorf("Expected the first source's copy, got %s", result.Sections[0].Entries[0].SourceName)
	}
}

func TestRunExtractionFeedsScoring(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{{ID: 1, Name: "s", Kind: core.KindFeed, Enabled: true}},
		topics:  []core.Topic{{ID: 1, Name: "T", Keywords: []string{"quantum"}, MaxArticles: 5}},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"s": staticCandidates(core.Candidate{Title: "a dry headline", Link: "https://e.com/1"}),
	}}
	deps := testDeps(storage, factory)
	deps.Extractor = &fakeExtractor{bodies: map[string]string{
		"https://e.com/1": "deep dive into quantum computing trends",
	}}

	p := New(deps, Options{})
	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Stats.Extracted != 1 {
		t.Errorf("Expected 1 extraction, got %d", result.Stats.Extracted)
	}
	if result.EntryCount() != 1 {
		t.Errorf("Extracted body must feed topic scoring, got %d entries", result.EntryCount())
	}
}

func TestMarkDelivered(t *testing.T) {
	storage := &fakeStorage{
		sources: []core.Source{{ID: 1, Name: "s", Kind: core.KindFeed, Enabled: true}},
		topics:  []core.Topic{{ID: 1, Name: "T", Keywords: []string{"x"}, MaxArticles: 5}},
	}
	factory := &fakeFactory{byName: map[string]fetcherFunc{
		"s": staticCandidates(core.Candidate{Title: "x story", Link: "https://e.com/1"}),
	}}

	p := New(testDeps(storage, factory), Options{})
	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	p.MarkDelivered()
	if p.State() != StateDelivered {
		t.Errorf("Expected delivered state, got %s", p.State())
	}

	// MarkDelivered is a no-op outside the composed state.
	p.setState(StateFailed)
	p.MarkDelivered()
	if p.State() != StateFailed {
		t.Errorf("MarkDelivered must not move a failed run, got %s", p.State())
	}
}
