package match

import (
	"testing"
	"time"

	"pheme/internal/core"
)

func candidate(title, link, preview, body string) core.Candidate {
	return core.Candidate{Title: title, Link: link, Preview: preview, Body: body}
}

func TestScoreCountsDistinctKeywordsOnce(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"ai", "golang"}},
	}
	candidates := []core.Candidate{
		candidate("AI and more AI", "https://example.com/1", "ai ai ai everywhere", "still about ai"),
	}

	table := Score(candidates, topics)
	if got := table.Scores[0][0]; got != 1 {
		t.Errorf("Expected score 1 for repeated keyword, got %v", got)
	}
}

func TestScoreSumsKeywordsAndPatternsEqually(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Releases", Keywords: []string{"release"}, Patterns: []string{`v\d+\.\d+`}},
	}
	candidates := []core.Candidate{
		candidate("Go release v1.23 announced", "https://example.com/1", "", ""),
		candidate("Go v1.23 announced", "https://example.com/2", "", ""),
		candidate("A release announcement", "https://example.com/3", "", ""),
		candidate("Nothing relevant", "https://example.com/4", "", ""),
	}

	table := Score(candidates, topics)
	expected := []float64{2, 1, 1, 0}
	for i, want := range expected {
		if got := table.Scores[i][0]; got != want {
			t.Errorf("Candidate %d: expected score %v, got %v", i, want, got)
		}
	}
}

func TestScoreIsCaseInsensitive(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"GoLang"}},
	}
	candidates := []core.Candidate{
		candidate("GOLANG news", "https://example.com/1", "", ""),
	}

	table := Score(candidates, topics)
	if got := table.Scores[0][0]; got != 1 {
		t.Errorf("Expected case-insensitive match, got score %v", got)
	}
}

func TestScoreSkipsInvalidPatterns(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Broken", Keywords: []string{"news"}, Patterns: []string{`[invalid`}},
	}
	candidates := []core.Candidate{
		candidate("news of the day", "https://example.com/1", "", ""),
	}

	table := Score(candidates, topics)
	if got := table.Scores[0][0]; got != 1 {
		t.Errorf("Expected invalid pattern to be skipped, got score %v", got)
	}
}

func TestScoreUsesBodyText(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"quantum"}},
	}
	candidates := []core.Candidate{
		candidate("Title only", "https://example.com/1", "preview only", "deep dive into quantum computing"),
	}

	table := Score(candidates, topics)
	if got := table.Scores[0][0]; got != 1 {
		t.Errorf("Expected body text to be searched, got score %v", got)
	}
}

func TestAssignHighestScoreWins(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"ai"}, MaxArticles: 5},
		{ID: 2, Name: "Science", Keywords: []string{"ai", "research"}, MaxArticles: 5},
	}
	candidates := []core.Candidate{
		candidate("AI research roundup", "https://example.com/1", "", ""),
	}

	sections := Assign(Score(candidates, topics))
	if len(sections[0].Candidates) != 0 {
		t.Errorf("Expected Tech to lose with score 1, got %d candidates", len(sections[0].Candidates))
	}
	if len(sections[1].Candidates) != 1 {
		t.Fatalf("Expected Science to win with score 2, got %d candidates", len(sections[1].Candidates))
	}
	if sections[1].Candidates[0].TopicID != 2 {
		t.Errorf("Expected assigned topic ID 2, got %d", sections[1].Candidates[0].TopicID)
	}
}

func TestAssignTieBreakPriorityThenOrder(t *testing.T) {
	// Both topics score 1; Tech has higher priority and wins.
	topics := []core.Topic{
		{ID: 1, Name: "World", Keywords: []string{"economy"}, Priority: 10, MaxArticles: 1},
		{ID: 2, Name: "Tech", Keywords: []string{"ai"}, Priority: 50, MaxArticles: 1},
	}
	candidates := []core.Candidate{
		candidate("ai shakes the economy", "https://example.com/1", "", ""),
	}

	sections := Assign(Score(candidates, topics))
	if len(sections[1].Candidates) != 1 {
		t.Fatalf("Expected higher-priority Tech to win the tie")
	}
	if len(sections[0].Candidates) != 0 {
		t.Errorf("Candidate must not appear under World as well")
	}

	// Equal priorities: the earlier-configured topic wins.
	topics = []core.Topic{
		{ID: 1, Name: "First", Keywords: []string{"ai"}, Priority: 10, MaxArticles: 1},
		{ID: 2, Name: "Second", Keywords: []string{"economy"}, Priority: 10, MaxArticles: 1},
	}
	sections = Assign(Score(candidates, topics))
	if len(sections[0].Candidates) != 1 {
		t.Fatalf("Expected earlier-configured topic to win on equal priority")
	}
	if len(sections[1].Candidates) != 0 {
		t.Errorf("Candidate must not appear under the later topic")
	}
}

func TestAssignDropsUnmatched(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"ai"}, MaxArticles: 5},
	}
	candidates := []core.Candidate{
		candidate("gardening tips", "https://example.com/1", "", ""),
	}

	sections := Assign(Score(candidates, topics))
	if got := Assigned(sections); got != 0 {
		t.Errorf("Expected unmatched candidate to be dropped, got %d assigned", got)
	}
}

func TestAssignAtMostOneTopic(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "A", Keywords: []string{"shared"}, MaxArticles: 10},
		{ID: 2, Name: "B", Keywords: []string{"shared"}, MaxArticles: 10},
		{ID: 3, Name: "C", Keywords: []string{"shared"}, MaxArticles: 10},
	}
	var candidates []core.Candidate
	links := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	for _, link := range links {
		candidates = append(candidates, candidate("shared story", link, "", ""))
	}

	sections := Assign(Score(candidates, topics))
	seen := map[string]int{}
	for _, section := range sections {
		for _, c := range section.Candidates {
			seen[c.Link]++
		}
	}
	for link, n := range seen {
		if n != 1 {
			t.Errorf("Candidate %s assigned to %d topics, want exactly 1", link, n)
		}
	}
	if len(seen) != len(links) {
		t.Errorf("Expected all %d candidates assigned, got %d", len(links), len(seen))
	}
}

func TestAssignCapAndRanking(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"ai", "ml", "gpu"}, MaxArticles: 2},
	}
	older := candidate("ai story", "https://example.com/a", "", "")
	older.Published = now.Add(-2 * time.Hour)
	newer := candidate("ai story again", "https://example.com/b", "", "")
	newer.Published = now.Add(-1 * time.Hour)
	strong := candidate("ai ml gpu roundup", "https://example.com/c", "", "")
	strong.Published = now.Add(-6 * time.Hour)

	sections := Assign(Score([]core.Candidate{older, newer, strong}, topics))
	got := sections[0].Candidates
	if len(got) != 2 {
		t.Fatalf("Expected cap of 2, got %d", len(got))
	}
	// Highest score first, then recency breaks the 1-1 tie.
	if got[0].Link != "https://example.com/c" {
		t.Errorf("Expected highest-scoring candidate first, got %s", got[0].Link)
	}
	if got[1].Link != "https://example.com/b" {
		t.Errorf("Expected more recent candidate to win the score tie, got %s", got[1].Link)
	}
}

func TestAssignDeterministic(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "A", Keywords: []string{"x"}, Priority: 5, MaxArticles: 3},
		{ID: 2, Name: "B", Keywords: []string{"x", "y"}, Priority: 5, MaxArticles: 3},
	}
	var candidates []core.Candidate
	for _, link := range []string{"https://e.com/1", "https://e.com/2", "https://e.com/3"} {
		candidates = append(candidates, candidate("x y story", link, "", ""))
	}

	first := Assign(Score(candidates, topics))
	for i := 0; i < 10; i++ {
		again := Assign(Score(candidates, topics))
		for j := range first {
			if len(first[j].Candidates) != len(again[j].Candidates) {
				t.Fatalf("Assignment not deterministic on run %d", i)
			}
			for k := range first[j].Candidates {
				if first[j].Candidates[k].Link != again[j].Candidates[k].Link {
					t.Fatalf("Ordering not deterministic on run %d", i)
				}
			}
		}
	}
}

func TestTableMatched(t *testing.T) {
	topics := []core.Topic{
		{ID: 1, Name: "Tech", Keywords: []string{"ai"}},
	}
	candidates := []core.Candidate{
		candidate("ai news", "https://example.com/1", "", ""),
		candidate("cooking", "https://example.com/2", "", ""),
	}

	table := Score(candidates, topics)
	if got := table.Matched(); got != 1 {
		t.Errorf("Expected 1 matched candidate, got %d", got)
	}
}
