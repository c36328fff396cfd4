package match

import (
	"sort"

	"pheme/internal/core"
)

// Assign awards each candidate in the score table to exactly one topic,
// or drops it. Per candidate: consider only topics with score > 0 and
// take the highest score; ties go to the higher-priority topic, then to
// the topic configured earlier. Per topic: candidates are ordered by
// score descending, then recency descending, then link ascending, and
// truncated to the topic's cap. Overflow candidates are dropped, not
// reassigned.
//
// The returned sections follow topic configuration order and include
// every topic, empty or not; callers decide how to render empty ones.
func Assign(table *Table) []Section {
	sections := make([]Section, len(table.Topics))
	for j, topic := range table.Topics {
		sections[j] = Section{Topic: topic}
	}

	for i := range table.Candidates {
		best := -1
		bestScore := 0.0
		for j := range table.Topics {
			score := table.Scores[i][j]
			if score <= 0 {
				continue
			}
			if best == -1 || score > bestScore || (score == bestScore && wins(&table.Topics[j], &table.Topics[best])) {
				best = j
				bestScore = score
			}
		}
		if best == -1 {
			continue // matches no topic: dropped from the digest
		}
		c := table.Candidates[i]
		c.TopicID = table.Topics[best].ID
		c.Score = bestScore
		sections[best].Candidates = append(sections[best].Candidates, c)
	}

	for j := range sections {
		rank(&sections[j])
	}
	return sections
}

// Section is one topic's assigned candidates after dedup, ranked and
// capped.
type Section struct {
	Topic      core.Topic
	Candidates []core.Candidate
}

// Assigned returns the total candidate count across sections (after
// capping).
func Assigned(sections []Section) int {
	n := 0
	for _, s := range sections {
		n += len(s.Candidates)
	}
	return n
}

// wins reports whether topic a beats topic b on a score tie: higher
// priority first, then earlier configuration order. Because Assign
// scans topics in configuration order and only replaces on a strict
// win, the earlier topic is kept when priorities are equal.
func wins(a, b *core.Topic) bool {
	return a.Priority > b.Priority
}

func rank(section *Section) {
	sort.SliceStable(section.Candidates, func(i, j int) bool {
		a, b := section.Candidates[i], section.Candidates[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if !a.Published.Equal(b.Published) {
			return a.Published.After(b.Published)
		}
		return a.Link < b.Link
	})
	if max := section.Topic.MaxArticles; max > 0 && len(section.Candidates) > max {
		section.Candidates = section.Candidates[:max]
	}
}
