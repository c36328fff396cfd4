// Package core defines the domain types shared across the digest pipeline.
package core

import (
	"strconv"
	"time"
)

// SourceKind identifies which fetcher handles a source.
type SourceKind string

const (
	KindFeed  SourceKind = "feed"  // RSS/Atom feeds
	KindBoard SourceKind = "board" // forum-style JSON listings (subreddits etc.)
	KindWeb   SourceKind = "web"   // generic web pages scraped with CSS selectors
)

// Kinds returns the closed set of supported source kinds.
func Kinds() []SourceKind {
	return []SourceKind{KindFeed, KindBoard, KindWeb}
}

// Source is a configured place to pull articles from. The pipeline reads
// a snapshot at run start and never mutates it.
type Source struct {
	ID          int64             `json:"id"`
	Name        string            `json:"name"`         // Human-readable source name
	Kind        SourceKind        `json:"kind"`         // Selects the fetcher implementation
	URL         string            `json:"url"`          // Feed URL, board identifier, or page URL
	Category    string            `json:"category"`     // Content category label
	Config      map[string]string `json:"config"`       // Kind-specific settings (max_items, sort, selector...)
	Enabled     bool              `json:"enabled"`      // Disabled sources are skipped entirely
	LastFetched time.Time         `json:"last_fetched"` // Zero until the first successful fetch
}

// ConfigInt reads an integer setting from the kind-specific config map,
// returning def when absent, non-numeric, or not positive.
func (s Source) ConfigInt(key string, def int) int {
	v, ok := s.Config[key]
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// ConfigString reads a string setting with a default.
func (s Source) ConfigString(key, def string) string {
	if v, ok := s.Config[key]; ok && v != "" {
		return v
	}
	return def
}

// Topic groups articles by keyword/pattern relevance. Topics are
// read-only during a run; their configuration order is the canonical
// tie-break order for cross-topic assignment.
type Topic struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Keywords    []string `json:"keywords"`     // Substrings matched case-insensitively
	Patterns    []string `json:"patterns"`     // Optional regex patterns, weighted like keywords
	Priority    int      `json:"priority"`     // Higher wins score ties
	MaxArticles int      `json:"max_articles"` // Cap on articles per digest section
	Enabled     bool     `json:"enabled"`
}

// Candidate is one fetched article moving through the pipeline. It is
// run-scoped: created during fetch, mutated in place by the stages, and
// discarded once the digest result is built.
type Candidate struct {
	SourceID   int64
	SourceName string
	Category   string
	Title      string
	Link       string    // Unique key within a run
	Published  time.Time // Normalized to UTC; zero when the source gives none
	Preview    string    // Short-form text from the source itself
	Body       string    // Full extracted text; empty when extraction failed

	TopicID         int64   // 0 until dedup assigns a topic
	Score           float64 // Score against the assigned topic
	Summary         string  // Populated by the summarizer
	SummaryFallback bool    // True when Summary is a deterministic truncation, not LLM output
}

// BestText returns the richest text available for scoring and
// summarization: the extracted body when present, else the preview.
func (c *Candidate) BestText() string {
	if c.Body != "" {
		return c.Body
	}
	return c.Preview
}

// BlockScope controls how much candidate text the keyword blocklist sees.
type BlockScope string

const (
	ScopeNarrow BlockScope = "title_preview" // title + preview only
	ScopeFull   BlockScope = "full_text"     // title + preview + extracted body
)

// FetchOutcome records how one source fared during the fetch stage.
type FetchOutcome struct {
	SourceID   int64  `json:"source_id"`
	SourceName string `json:"source_name"`
	Fetched    int    `json:"fetched"`
	Err        string `json:"error,omitempty"`
}

// RunStats carries per-stage counters and metadata for one digest run.
type RunStats struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	Duration   time.Duration  `json:"duration"`
	Sources    []FetchOutcome `json:"sources"`
	Fetched    int            `json:"fetched"`    // Candidates produced by the fetch stage (after link dedup)
	Extracted  int            `json:"extracted"`  // Candidates whose body extraction succeeded
	Filtered   int            `json:"filtered"`   // Candidates removed by the keyword blocklist
	Matched    int            `json:"matched"`    // Candidates scoring above zero against at least one topic
	Deduped    int            `json:"deduped"`    // Candidates assigned to a topic after cross-topic dedup
	Summarized int            `json:"summarized"` // Candidates with a real (non-fallback) summary
	Failure    string         `json:"failure,omitempty"`
}

// DigestEntry is one summarized article in the final digest.
type DigestEntry struct {
	Title      string    `json:"title"`
	Link       string    `json:"link"`
	Summary    string    `json:"summary"`
	Published  time.Time `json:"published"`
	SourceName string    `json:"source_name"`
	Fallback   bool      `json:"fallback"` // Summary is fallback text, not an LLM summary
}

// TopicSection is one topic's capped, ordered slice of the digest.
type TopicSection struct {
	TopicID   int64         `json:"topic_id"`
	TopicName string        `json:"topic_name"`
	Entries   []DigestEntry `json:"entries"`
}

// DigestResult is the final payload handed to the composer/delivery
// collaborator: topic sections in topic configuration order, each
// capped and internally ordered by score then recency.
type DigestResult struct {
	GeneratedAt time.Time      `json:"generated_at"`
	Sections    []TopicSection `json:"sections"`
	Stats       RunStats       `json:"stats"`
}

// Empty reports whether the digest contains no entries at all.
func (d *DigestResult) Empty() bool {
	for _, s := range d.Sections {
		if len(s.Entries) > 0 {
			return false
		}
	}
	return true
}

// EntryCount returns the total number of entries across all sections.
func (d *DigestResult) EntryCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Entries)
	}
	return n
}
