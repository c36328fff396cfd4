// Package pipeline orchestrates one digest run: fetch, extract,
// filter, match, dedup, summarize, compose. Stages execute strictly in
// sequence; per-item work inside the fetch, extract, and summarize
// stages runs concurrently against bounded worker pools.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pheme/internal/core"
	"pheme/internal/fetch"
	"pheme/internal/filter"
	"pheme/internal/logger"
	"pheme/internal/match"

	"github.com/google/uuid"
)

// State names the orchestrator's position in a run.
type State string

const (
	StateIdle          State = "idle"
	StateFetching      State = "fetching"
	StateExtracting    State = "extracting"
	StateFiltering     State = "filtering"
	StateMatching      State = "matching"
	StateDeduplicating State = "deduplicating"
	StateSummarizing   State = "summarizing"
	StateComposed      State = "composed"
	StateDelivered     State = "delivered"
	StateFailed        State = "failed"
)

// Run-level failures. Per-source and per-candidate failures never
// surface here; they degrade the item and show up in run stats.
var (
	ErrRunInProgress = errors.New("a digest run is already in progress")
	ErrNoSources     = errors.New("no enabled sources configured")
	ErrNoTopics      = errors.New("no topics configured")
	ErrEmptyPipeline = errors.New("every enabled source produced zero candidates")
	ErrCancelled     = errors.New("digest run cancelled")
)

// Storage is the read-only configuration snapshot the pipeline consumes
// at run start, plus the one write-back it performs (fetch stamps).
type Storage interface {
	ListEnabledSources() ([]core.Source, error)
	ListTopics() ([]core.Topic, error)
	BlockedKeywords() ([]string, core.BlockScope, error)
	UpdateSourceLastFetched(id int64, at time.Time) error
}

// FetcherFactory selects the fetcher for a source kind.
type FetcherFactory interface {
	ForKind(kind core.SourceKind) (fetch.Fetcher, error)
}

// Extractor retrieves a candidate's full body text, empty on failure.
type Extractor interface {
	Extract(ctx context.Context, link string) string
}

// Summarizer fills in every candidate's summary, returning the count of
// real (non-fallback) summaries. It never fails the run.
type Summarizer interface {
	Run(ctx context.Context, candidates []*core.Candidate) int
}

// Options tunes the orchestrator's worker pools and cancellation grace.
type Options struct {
	FetchWorkers   int
	ExtractWorkers int
	GraceTimeout   time.Duration // How long to await in-flight work after cancellation
}

// Deps wires the collaborators into the orchestrator. Everything is an
// interface so the run is directly testable with fakes.
type Deps struct {
	Storage    Storage
	Fetchers   FetcherFactory
	Extractor  Extractor
	Summarizer Summarizer
	Now        func() time.Time // Defaults to time.Now
}

// Pipeline is the digest orchestrator. One instance guards against
// overlapping runs with mutual exclusion: a trigger arriving while a
// run is active is rejected, not queued.
type Pipeline struct {
	deps Deps
	opts Options

	runMu sync.Mutex // held for the duration of a run

	mu    sync.Mutex // guards state and stats
	state State
	stats core.RunStats
}

// New constructs the orchestrator.
func New(deps Deps, opts Options) *Pipeline {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if opts.FetchWorkers <= 0 {
		opts.FetchWorkers = 4
	}
	if opts.ExtractWorkers <= 0 {
		opts.ExtractWorkers = 4
	}
	if opts.GraceTimeout <= 0 {
		opts.GraceTimeout = 10 * time.Second
	}
	return &Pipeline{deps: deps, opts: opts, state: StateIdle}
}

// State returns the orchestrator's current state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Pipeline) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

// MarkDelivered moves a composed run to Delivered. The delivery
// collaborator calls this after a successful send.
func (p *Pipeline) MarkDelivered() {
	p.mu.Lock()
	if p.state == StateComposed {
		p.state = StateDelivered
	}
	p.mu.Unlock()
}

// Run executes one full digest pass and returns the composed result.
// Exactly one run may be active at a time; a second trigger returns
// ErrRunInProgress immediately. Configuration failures surface before
// any fetch; a systemic zero-output run surfaces after the stages as
// ErrEmptyPipeline, distinct from a legitimately empty digest.
func (p *Pipeline) Run(ctx context.Context) (*core.DigestResult, error) {
	if !p.runMu.TryLock() {
		return nil, ErrRunInProgress
	}
	defer p.runMu.Unlock()

	start := p.deps.Now()
	p.mu.Lock()
	p.stats = core.RunStats{RunID: uuid.NewString(), StartedAt: start}
	p.mu.Unlock()

	result, err := p.run(ctx)
	if err != nil {
		p.mu.Lock()
		p.stats.Failure = err.Error()
		p.stats.Duration = p.deps.Now().Sub(start)
		p.mu.Unlock()
		p.setState(StateFailed)
		return nil, err
	}

	p.mu.Lock()
	p.stats.Duration = p.deps.Now().Sub(start)
	result.Stats = p.stats
	p.mu.Unlock()
	p.setState(StateComposed)
	return result, nil
}

func (p *Pipeline) run(ctx context.Context) (*core.DigestResult, error) {
	// Configuration snapshot. Failures here abort before any fetch.
	sources, err := p.deps.Storage.ListEnabledSources()
	if err != nil {
		return nil, fmt.Errorf("loading sources: %w", err)
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}
	topics, err := p.deps.Storage.ListTopics()
	if err != nil {
		return nil, fmt.Errorf("loading topics: %w", err)
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	blocklist, scope, err := p.deps.Storage.BlockedKeywords()
	if err != nil {
		return nil, fmt.Errorf("loading blocklist: %w", err)
	}

	// Fetch: one bounded sub-task per source.
	p.setState(StateFetching)
	candidates, err := p.fetchAll(ctx, sources)
	if err != nil {
		return nil, err
	}

	// Extract: one bounded sub-task per candidate.
	p.setState(StateExtracting)
	if err := p.extractAll(ctx, candidates); err != nil {
		return nil, err
	}

	// Filter: blocked content never reaches topic scoring.
	p.setState(StateFiltering)
	survivors := filter.Apply(candidates, blocklist, scope)
	p.mu.Lock()
	p.stats.Filtered = len(candidates) - len(survivors)
	p.mu.Unlock()
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Match: full score table over every (candidate, topic) pair.
	p.setState(StateMatching)
	table := match.Score(survivors, topics)
	p.mu.Lock()
	p.stats.Matched = table.Matched()
	p.mu.Unlock()
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Dedup: winner-take-all assignment, rank, cap.
	p.setState(StateDeduplicating)
	sections := match.Assign(table)
	p.mu.Lock()
	p.stats.Deduped = match.Assigned(sections)
	p.mu.Unlock()
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Summarize: bounded pool against the inference service.
	p.setState(StateSummarizing)
	var assigned []*core.Candidate
	for i := range sections {
		for j := range sections[i].Candidates {
			assigned = append(assigned, &sections[i].Candidates[j])
		}
	}
	real := p.deps.Summarizer.Run(ctx, assigned)
	p.mu.Lock()
	p.stats.Summarized = real
	p.mu.Unlock()
	if err := cancelled(ctx); err != nil {
		return nil, err
	}

	// Systemic failure: enabled sources but nothing fetched at all.
	// Distinct from an empty digest where candidates were fetched and
	// then filtered or unmatched, which is a successful run.
	p.mu.Lock()
	fetched := p.stats.Fetched
	p.mu.Unlock()
	if fetched == 0 {
		return nil, ErrEmptyPipeline
	}

	return p.compose(sections), nil
}

// fetchAll runs every source's fetcher under the fetch pool and merges
// the results in source configuration order, then item order, dropping
// later duplicates of a link.
func (p *Pipeline) fetchAll(ctx context.Context, sources []core.Source) ([]core.Candidate, error) {
	perSource := make([][]core.Candidate, len(sources))
	outcomes := make([]core.FetchOutcome, len(sources))

	err := p.forEach(ctx, len(sources), p.opts.FetchWorkers, func(i int) {
		source := sources[i]
		outcome := core.FetchOutcome{SourceID: source.ID, SourceName: source.Name}

		fetcher, err := p.deps.Fetchers.ForKind(source.Kind)
		if err != nil {
			outcome.Err = err.Error()
			outcomes[i] = outcome
			return
		}
		fetched, err := fetcher.Fetch(ctx, source)
		if err != nil {
			logger.Warn("source fetch failed", "source", source.Name, "error", err.Error())
			outcome.Err = err.Error()
			outcomes[i] = outcome
			return
		}
		outcome.Fetched = len(fetched)
		outcomes[i] = outcome
		perSource[i] = fetched

		if err := p.deps.Storage.UpdateSourceLastFetched(source.ID, p.deps.Now()); err != nil {
			logger.Warn("failed to stamp source", "source", source.Name, "error", err.Error())
		}
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var merged []core.Candidate
	for _, batch := range perSource {
		for _, c := range batch {
			if seen[c.Link] {
				continue
			}
			seen[c.Link] = true
			merged = append(merged, c)
		}
	}

	p.mu.Lock()
	p.stats.Sources = outcomes
	p.stats.Fetched = len(merged)
	p.mu.Unlock()
	return merged, nil
}

// extractAll populates candidate bodies under the extract pool. Each
// sub-task writes only its own candidate slot.
func (p *Pipeline) extractAll(ctx context.Context, candidates []core.Candidate) error {
	if p.deps.Extractor == nil || len(candidates) == 0 {
		return cancelled(ctx)
	}
	extracted := make([]bool, len(candidates))
	err := p.forEach(ctx, len(candidates), p.opts.ExtractWorkers, func(i int) {
		body := p.deps.Extractor.Extract(ctx, candidates[i].Link)
		if body != "" {
			candidates[i].Body = body
			extracted[i] = true
		}
	})
	if err != nil {
		return err
	}
	n := 0
	for _, ok := range extracted {
		if ok {
			n++
		}
	}
	p.mu.Lock()
	p.stats.Extracted = n
	p.mu.Unlock()
	return nil
}

// compose builds the final payload: non-empty topic sections in topic
// configuration order.
func (p *Pipeline) compose(sections []match.Section) *core.DigestResult {
	result := &core.DigestResult{GeneratedAt: p.deps.Now()}
	for _, section := range sections {
		if len(section.Candidates) == 0 {
			continue
		}
		out := core.TopicSection{TopicID: section.Topic.ID, TopicName: section.Topic.Name}
		for _, c := range section.Candidates {
			out.Entries = append(out.Entries, core.DigestEntry{
				Title:      c.Title,
				Link:       c.Link,
				Summary:    c.Summary,
				Published:  c.Published,
				SourceName: c.SourceName,
				Fallback:   c.SummaryFallback,
			})
		}
		result.Sections = append(result.Sections, out)
	}
	return result
}

// forEach dispatches fn(i) for i in [0, n) across a bounded pool. When
// ctx is cancelled it stops dispatching, awaits in-flight work up to
// the grace timeout, and reports the cancellation; stage output is then
// discarded by the caller.
func (p *Pipeline) forEach(ctx context.Context, n, workers int, fn func(i int)) error {
	if workers > n {
		workers = n
	}
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
			}
		}()
	}

	dispatched := true
	for i := 0; i < n && dispatched; i++ {
		select {
		case jobs <- i:
		case <-ctx.Done():
			dispatched = false
		}
	}
	close(jobs)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if !dispatched {
		select {
		case <-done:
		case <-time.After(p.opts.GraceTimeout):
			logger.Warn("grace timeout expired awaiting in-flight work")
		}
		return fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
	}

	<-done
	return cancelled(ctx)
}

func cancelled(ctx context.Context) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrCancelled, context.Cause(ctx))
	}
	return nil
}
