package fetch

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Extractor retrieves an article page and pulls out its readable body
// text. Extraction never fails the run: any error yields empty text and
// the candidate keeps scoring and summarizing from its preview.
type Extractor struct {
	client    *http.Client
	userAgent string
}

// NewExtractor builds an extractor with a per-candidate timeout.
func NewExtractor(timeout time.Duration, userAgent string) *Extractor {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if userAgent == "" {
		userAgent = DefaultOptions().UserAgent
	}
	return &Extractor{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// minBodyWords is the point below which heuristic output is considered
// near-empty and the generic structural parse takes over.
const minBodyWords = 20

var (
	contentClassRe  = regexp.MustCompile(`(?i)article|post|entry|content|body|text|story|main`)
	negativeClassRe = regexp.MustCompile(`(?i)comment|sidebar|footer|header|nav|menu|widget|ad|social|share|related|promo`)
)

// blockSelector lists the block-level elements whose text forms the body.
const blockSelector = "p, h1, h2, h3, h4, h5, h6, li, blockquote, pre"

// Extract fetches the candidate's link and returns the readable body
// text, or empty on any failure.
func (e *Extractor) Extract(ctx context.Context, link string) string {
	html, err := httpGet(ctx, e.client, link, e.userAgent)
	if err != nil {
		return ""
	}
	return ExtractBody(html)
}

// ExtractBody pulls readable article text from raw HTML. The primary
// path scores container elements for content likelihood and extracts
// block text from the winner; when that yields near-empty output it
// falls back to a generic whole-body parse.
func ExtractBody(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside, form, iframe, noscript").Remove()

	best := bestContainer(doc)
	if best != nil {
		text := blockText(best)
		if wordCount(text) >= minBodyWords {
			return text
		}
	}

	// Generic structural parse of the whole body.
	body := doc.Find("body")
	if body.Length() == 0 {
		return ""
	}
	text := blockText(body)
	if text == "" {
		text = cleanText(body.Text())
	}
	return text
}

// bestContainer scores candidate containers and returns the most
// article-like one, or nil when the page has none.
func bestContainer(doc *goquery.Document) *goquery.Selection {
	var best *goquery.Selection
	bestScore := 0.0

	doc.Find("article, main, section, div").Each(func(_ int, sel *goquery.Selection) {
		score := scoreContainer(sel)
		if best == nil || score > bestScore {
			best = sel
			bestScore = score
		}
	})
	return best
}

func scoreContainer(sel *goquery.Selection) float64 {
	score := 0.0

	switch goquery.NodeName(sel) {
	case "article", "main", "section":
		score += 30
	}

	class, _ := sel.Attr("class")
	id, _ := sel.Attr("id")
	combined := class + " " + id
	if contentClassRe.MatchString(combined) {
		score += 25
	}
	if negativeClassRe.MatchString(combined) {
		score -= 25
	}

	// Reward containers with substantial paragraph text.
	textLen := 0
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		textLen += len(strings.TrimSpace(p.Text()))
	})
	bonus := float64(textLen) / 50
	if bonus > 50 {
		bonus = 50
	}
	return score + bonus
}

// blockText joins the trimmed text of block-level elements inside sel.
func blockText(sel *goquery.Selection) string {
	var parts []string
	sel.Find(blockSelector).Each(func(_ int, block *goquery.Selection) {
		if t := strings.TrimSpace(block.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n")
}

var blankRe = regexp.MustCompile(`\s+`)

func cleanText(s string) string {
	return strings.TrimSpace(blankRe.ReplaceAllString(s, " "))
}

func wordCount(s string) int {
	return len(strings.Fields(s))
}
