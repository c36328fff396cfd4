// Package match scores candidates against topics and assigns each
// candidate to at most one topic. Scoring and assignment are separate
// steps: the deduplicator needs the full score table to award every
// candidate to its best topic.
package match

import (
	"regexp"
	"strings"

	"pheme/internal/core"
	"pheme/internal/logger"
)

// Table holds the score of every (candidate, topic) pair with a score
// above zero. Candidates and topics are referenced by index so the
// caller's ordering stays authoritative.
type Table struct {
	Candidates []core.Candidate
	Topics     []core.Topic
	Scores     [][]float64 // Scores[candidate][topic]
}

// Score computes the full score table. A pair's score is the number of
// distinct keyword hits plus the number of distinct pattern hits,
// case-insensitive over title, preview, and body; repeats of the same
// keyword or pattern count once, and keywords and patterns weigh the
// same.
func Score(candidates []core.Candidate, topics []core.Topic) *Table {
	compiled := compilePatterns(topics)

	scores := make([][]float64, len(candidates))
	for i := range candidates {
		text := searchableText(&candidates[i])
		scores[i] = make([]float64, len(topics))
		for j := range topics {
			scores[i][j] = scoreOne(text, &topics[j], compiled[j])
		}
	}
	return &Table{Candidates: candidates, Topics: topics, Scores: scores}
}

// Matched returns how many candidates score above zero against at
// least one topic.
func (t *Table) Matched() int {
	n := 0
	for i := range t.Candidates {
		for j := range t.Topics {
			if t.Scores[i][j] > 0 {
				n++
				break
			}
		}
	}
	return n
}

func searchableText(c *core.Candidate) string {
	parts := []string{c.Title, c.Preview}
	if c.Body != "" {
		parts = append(parts, c.Body)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func scoreOne(text string, topic *core.Topic, patterns []*regexp.Regexp) float64 {
	score := 0.0
	for _, kw := range topic.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			score++
		}
	}
	for _, re := range patterns {
		if re != nil && re.MatchString(text) {
			score++
		}
	}
	return score
}

// compilePatterns compiles each topic's regex patterns once per run.
// Invalid patterns are logged and skipped rather than failing the run.
func compilePatterns(topics []core.Topic) [][]*regexp.Regexp {
	compiled := make([][]*regexp.Regexp, len(topics))
	for j, topic := range topics {
		compiled[j] = make([]*regexp.Regexp, len(topic.Patterns))
		for k, pattern := range topic.Patterns {
			re, err := regexp.Compile("(?i)" + pattern)
			if err != nil {
				logger.Warn("skipping invalid topic pattern", "topic", topic.Name, "pattern", pattern)
				continue
			}
			compiled[j][k] = re
		}
	}
	return compiled
}
