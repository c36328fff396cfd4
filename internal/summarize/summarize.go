// Package summarize produces a short natural-language summary for each
// assigned candidate by calling the inference service, falling back
// deterministically to truncated source text when the call fails.
package summarize

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"pheme/internal/core"
	"pheme/internal/llm"
	"pheme/internal/logger"
)

// Options configures the summarization stage.
type Options struct {
	Workers        int // Concurrent inference calls
	MaxInputChars  int // Body truncation before prompting, keeps the opening
	FallbackChars  int // Character budget for the deterministic fallback
	MaxOutputWords int // Requested summary length hint
}

// DefaultOptions returns the summarizer defaults.
func DefaultOptions() Options {
	return Options{
		Workers:        2,
		MaxInputChars:  6000,
		FallbackChars:  400,
		MaxOutputWords: 120,
	}
}

// Summarizer drives inference calls for a set of candidates.
type Summarizer struct {
	client llm.Client
	opts   Options
}

// New builds a summarizer over the given inference client.
func New(client llm.Client, opts Options) *Summarizer {
	def := DefaultOptions()
	if opts.Workers <= 0 {
		opts.Workers = def.Workers
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = def.MaxInputChars
	}
	if opts.FallbackChars <= 0 {
		opts.FallbackChars = def.FallbackChars
	}
	if opts.MaxOutputWords <= 0 {
		opts.MaxOutputWords = def.MaxOutputWords
	}
	return &Summarizer{client: client, opts: opts}
}

const promptTemplate = `Summarize the following article in 2-4 short sentences (at most %d words total). Be neutral and factual. Write only the summary, no preamble.

Title: %s
Source: %s

%s`

// BuildPrompt renders the fixed prompt for one candidate. The input
// text is the body when present, else the preview, truncated to the
// input budget preserving the opening portion.
func (s *Summarizer) BuildPrompt(c *core.Candidate) string {
	text := truncateRunes(c.BestText(), s.opts.MaxInputChars)
	if text == "" {
		text = "(no content available; summarize from the title)"
	}
	return fmt.Sprintf(promptTemplate, s.opts.MaxOutputWords, c.Title, c.SourceName, text)
}

// Run summarizes every candidate in place under a bounded worker pool
// and returns the number of real (non-fallback) summaries. It never
// returns an error: a failed inference call degrades that candidate to
// its fallback text. Output order is the input order regardless of
// completion order; each worker writes only its own candidate slot.
func (s *Summarizer) Run(ctx context.Context, candidates []*core.Candidate) int {
	if len(candidates) == 0 {
		return 0
	}

	jobs := make(chan int)
	var wg sync.WaitGroup

	workers := s.opts.Workers
	if workers > len(candidates) {
		workers = len(candidates)
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				s.summarizeOne(ctx, candidates[i])
			}
		}()
	}

	for i := range candidates {
		select {
		case jobs <- i:
		case <-ctx.Done():
			// Stop dispatching; undispatched candidates get fallback
			// text so the invariant of a non-empty summary holds even
			// on a cancelled run (the orchestrator discards it anyway).
			for j := i; j < len(candidates); j++ {
				if candidates[j].Summary == "" {
					s.applyFallback(candidates[j])
				}
			}
			close(jobs)
			wg.Wait()
			return s.countReal(candidates)
		}
	}
	close(jobs)
	wg.Wait()
	return s.countReal(candidates)
}

func (s *Summarizer) summarizeOne(ctx context.Context, c *core.Candidate) {
	text, err := s.client.Complete(ctx, s.BuildPrompt(c))
	if err != nil {
		logger.Debug("summarization failed, using fallback",
			"link", c.Link, "provider", s.client.Name(), "error", err.Error())
		s.applyFallback(c)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		s.applyFallback(c)
		return
	}
	c.Summary = text
	c.SummaryFallback = false
}

func (s *Summarizer) applyFallback(c *core.Candidate) {
	c.Summary = s.Fallback(c)
	c.SummaryFallback = true
}

// Fallback returns the deterministic replacement summary: the best
// available text cut to the character budget at a word boundary. A
// candidate with no text at all falls back to its title, so the final
// digest never carries an empty summary.
func (s *Summarizer) Fallback(c *core.Candidate) string {
	text := strings.TrimSpace(c.BestText())
	if text == "" {
		return c.Title
	}
	return truncateWords(text, s.opts.FallbackChars)
}

func (s *Summarizer) countReal(candidates []*core.Candidate) int {
	n := 0
	for _, c := range candidates {
		if !c.SummaryFallback && c.Summary != "" {
			n++
		}
	}
	return n
}

// truncateRunes cuts s to at most n runes, keeping the opening.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// truncateWords cuts s to at most n runes, backing up to the last word
// boundary so no word is split. Text that fits is returned unchanged.
func truncateWords(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := string(runes[:n])
	if idx := strings.LastIndexAny(cut, " \t\n"); idx > 0 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut)
}
