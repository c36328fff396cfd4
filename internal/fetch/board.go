package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pheme/internal/core"
)

// boardFetcher handles forum-style sources exposing a reddit-compatible
// JSON listing. The source URL is the board identifier ("r/golang" or
// just "golang"); sort order and item limit come from the kind config.
type boardFetcher struct {
	client    *http.Client
	userAgent string
	baseURL   string // overridable in tests; empty means the public API
}

const (
	defaultBoardBase  = "https://www.reddit.com"
	defaultBoardSort  = "hot"
	defaultBoardLimit = 10
)

// boardListing mirrors the subset of the listing JSON the fetcher reads.
type boardListing struct {
	Data struct {
		Children []struct {
			Data boardPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type boardPost struct {
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Permalink  string  `json:"permalink"`
	SelfText   string  `json:"selftext"`
	IsSelf     bool    `json:"is_self"`
	Stickied   bool    `json:"stickied"`
	CreatedUTC float64 `json:"created_utc"`
}

func (f *boardFetcher) Fetch(ctx context.Context, source core.Source) ([]core.Candidate, error) {
	return run(ctx, source, phases{
		cap: source.ConfigInt("limit", defaultBoardLimit),
		connect: func(ctx context.Context, source core.Source) (string, error) {
			base := f.baseURL
			if base == "" {
				base = defaultBoardBase
			}
			board := strings.TrimPrefix(strings.Trim(source.URL, "/"), "r/")
			sort := source.ConfigString("sort", defaultBoardSort)
			limit := source.ConfigInt("limit", defaultBoardLimit)
			url := fmt.Sprintf("%s/r/%s/%s.json?limit=%d&raw_json=1", base, board, sort, limit)
			return httpGet(ctx, f.client, url, f.userAgent)
		},
		list: f.list,
	})
}

func (f *boardFetcher) list(raw string, source core.Source) ([]item, error) {
	var listing boardListing
	if err := json.Unmarshal([]byte(raw), &listing); err != nil {
		return nil, fmt.Errorf("failed to decode board listing: %w", err)
	}

	base := f.baseURL
	if base == "" {
		base = defaultBoardBase
	}

	items := make([]item, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		post := child.Data
		if post.Stickied {
			continue
		}

		// Link posts point at the external article; self posts point
		// back at the board thread and carry their own text.
		link := post.URL
		preview := ""
		if post.IsSelf {
			link = base + post.Permalink
			preview = post.SelfText
		}

		items = append(items, item{
			title:     post.Title,
			link:      link,
			preview:   preview,
			published: time.Unix(int64(post.CreatedUTC), 0).UTC(),
		})
	}
	return items, nil
}
