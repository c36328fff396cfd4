// Package fetch acquires candidate articles from configured sources.
// One fetcher exists per source kind; all of them run the same
// three-phase skeleton (connect, list, normalize) so every kind
// produces structurally uniform candidates.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"pheme/internal/core"
)

// Fetcher pulls candidate articles from one configured source. A failed
// fetch returns an error and zero candidates; the orchestrator records
// it against the source and continues the run.
type Fetcher interface {
	Fetch(ctx context.Context, source core.Source) ([]core.Candidate, error)
}

// Options configures the fetcher set.
type Options struct {
	Timeout   time.Duration // Per-source fetch timeout
	UserAgent string
}

// DefaultOptions returns the fetch settings used when none are supplied.
func DefaultOptions() Options {
	return Options{
		Timeout:   30 * time.Second,
		UserAgent: "Pheme/1.0 (news digest)",
	}
}

// Factory selects fetcher implementations by source kind. The kind set
// is closed, so this is a fixed lookup rather than an open registry.
type Factory struct {
	fetchers map[core.SourceKind]Fetcher
}

// NewFactory builds the factory with one fetcher per supported kind.
func NewFactory(opts Options) *Factory {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultOptions().Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultOptions().UserAgent
	}
	client := &http.Client{Timeout: opts.Timeout}
	return &Factory{
		fetchers: map[core.SourceKind]Fetcher{
			core.KindFeed:  &feedFetcher{client: client, userAgent: opts.UserAgent},
			core.KindBoard: &boardFetcher{client: client, userAgent: opts.UserAgent},
			core.KindWeb:   &webFetcher{client: client, userAgent: opts.UserAgent},
		},
	}
}

// ForKind returns the fetcher for a source kind.
func (f *Factory) ForKind(kind core.SourceKind) (Fetcher, error) {
	fetcher, ok := f.fetchers[kind]
	if !ok {
		return nil, fmt.Errorf("no fetcher for source kind %q", kind)
	}
	return fetcher, nil
}

// item is one raw article emitted by a fetcher's list phase, before
// normalization into a core.Candidate.
type item struct {
	title     string
	link      string
	preview   string
	published time.Time
}

// phases parameterizes the shared fetch skeleton. connect retrieves the
// raw source payload; list turns it into raw items; the item cap is
// applied during normalization.
type phases struct {
	connect func(ctx context.Context, source core.Source) (string, error)
	list    func(raw string, source core.Source) ([]item, error)
	cap     int
}

// run executes connect -> list -> normalize for one source.
func run(ctx context.Context, source core.Source, p phases) ([]core.Candidate, error) {
	raw, err := p.connect(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", source.Name, err)
	}

	items, err := p.list(raw, source)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", source.Name, err)
	}

	if p.cap > 0 && len(items) > p.cap {
		items = items[:p.cap]
	}

	candidates := make([]core.Candidate, 0, len(items))
	for _, it := range items {
		if it.title == "" || it.link == "" {
			continue
		}
		published := it.published
		if !published.IsZero() {
			published = published.UTC()
		}
		candidates = append(candidates, core.Candidate{
			SourceID:   source.ID,
			SourceName: source.Name,
			Category:   source.Category,
			Title:      strings.TrimSpace(it.title),
			Link:       it.link,
			Published:  published,
			Preview:    truncate(strings.TrimSpace(it.preview), previewLimit),
		})
	}
	return candidates, nil
}

// previewLimit caps the short-form text carried on every candidate.
const previewLimit = 500

// httpGet performs a GET with the shared client and user agent,
// returning the response body as a string.
func httpGet(ctx context.Context, client *http.Client, url, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(body), nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
