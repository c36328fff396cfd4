package fetch

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"pheme/internal/core"

	"github.com/mmcdole/gofeed"
)

// feedFetcher handles RSS and Atom feeds via gofeed.
type feedFetcher struct {
	client    *http.Client
	userAgent string
}

const defaultFeedItems = 15

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

func (f *feedFetcher) Fetch(ctx context.Context, source core.Source) ([]core.Candidate, error) {
	return run(ctx, source, phases{
		cap: source.ConfigInt("max_items", defaultFeedItems),
		connect: func(ctx context.Context, source core.Source) (string, error) {
			return httpGet(ctx, f.client, source.URL, f.userAgent)
		},
		list: f.list,
	})
}

func (f *feedFetcher) list(raw string, source core.Source) ([]item, error) {
	parsed, err := gofeed.NewParser().ParseString(raw)
	if err != nil {
		return nil, err
	}

	items := make([]item, 0, len(parsed.Items))
	for _, entry := range parsed.Items {
		link := entry.Link
		if link == "" && strings.HasPrefix(entry.GUID, "http") {
			link = entry.GUID
		}
		items = append(items, item{
			title:     entry.Title,
			link:      link,
			preview:   feedPreview(entry),
			published: feedPublished(entry),
		})
	}
	return items, nil
}

// feedPreview picks the entry's short-form text, preferring the summary
// over full content, with markup stripped.
func feedPreview(entry *gofeed.Item) string {
	text := entry.Description
	if text == "" {
		text = entry.Content
	}
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(text, " "))
}

// feedPublished prefers the published timestamp, falling back to the
// updated one for feeds that only carry the latter.
func feedPublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return *entry.PublishedParsed
	}
	if entry.UpdatedParsed != nil {
		return *entry.UpdatedParsed
	}
	return time.Time{}
}
