package fetch

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"pheme/internal/core"

	"github.com/PuerkitoBio/goquery"
)

// webFetcher scrapes headline links from a generic web page using a
// configurable CSS selector.
type webFetcher struct {
	client    *http.Client
	userAgent string
}

const (
	defaultWebSelector = "article h2 a, h2 a, h3 a"
	defaultWebItems    = 15
)

func (f *webFetcher) Fetch(ctx context.Context, source core.Source) ([]core.Candidate, error) {
	return run(ctx, source, phases{
		cap: source.ConfigInt("max_items", defaultWebItems),
		connect: func(ctx context.Context, source core.Source) (string, error) {
			return httpGet(ctx, f.client, source.URL, f.userAgent)
		},
		list: f.list,
	})
}

func (f *webFetcher) list(raw string, source core.Source) ([]item, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, err
	}

	base, err := url.Parse(source.URL)
	if err != nil {
		return nil, err
	}

	// The page's meta description is the only short-form text a bare
	// listing page offers; every scraped item shares it.
	metaDesc, _ := doc.Find(`meta[name="description"]`).Attr("content")

	selector := source.ConfigString("selector", defaultWebSelector)

	var items []item
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		link := findLink(sel)
		if link == nil {
			return
		}
		title := strings.TrimSpace(link.Text())
		href, _ := link.Attr("href")
		if title == "" || href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		items = append(items, item{
			title:   title,
			link:    resolved.String(),
			preview: strings.TrimSpace(metaDesc),
		})
	})
	return items, nil
}

// findLink locates the anchor for a matched element: the element
// itself, a descendant, or an enclosing anchor.
func findLink(sel *goquery.Selection) *goquery.Selection {
	if goquery.NodeName(sel) == "a" {
		return sel
	}
	if child := sel.Find("a").First(); child.Length() > 0 {
		return child
	}
	if parent := sel.Closest("a"); parent.Length() > 0 {
		return parent
	}
	return nil
}
