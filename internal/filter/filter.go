// Package filter removes candidates matching the global keyword
// blocklist before any topic work happens, so blocked content never
// contributes to topic scoring or occupies a capped slot.
package filter

import (
	"strings"

	"pheme/internal/core"
)

// Apply returns the candidates that survive the blocklist. Matching is
// a case-insensitive substring test against every entry; a single hit
// removes the candidate. The result is independent of blocklist order
// and preserves candidate order.
func Apply(candidates []core.Candidate, blocklist []string, scope core.BlockScope) []core.Candidate {
	if len(blocklist) == 0 {
		return candidates
	}

	lowered := make([]string, 0, len(blocklist))
	for _, entry := range blocklist {
		entry = strings.ToLower(strings.TrimSpace(entry))
		if entry != "" {
			lowered = append(lowered, entry)
		}
	}

	survivors := make([]core.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !Blocked(&c, lowered, scope) {
			survivors = append(survivors, c)
		}
	}
	return survivors
}

// Blocked reports whether a candidate matches any blocklist entry.
// Entries must already be lowercased.
func Blocked(c *core.Candidate, lowered []string, scope core.BlockScope) bool {
	text := searchText(c, scope)
	for _, entry := range lowered {
		if strings.Contains(text, entry) {
			return true
		}
	}
	return false
}

func searchText(c *core.Candidate, scope core.BlockScope) string {
	parts := []string{c.Title, c.Preview}
	if scope == core.ScopeFull {
		parts = append(parts, c.Body)
	}
	return strings.ToLower(strings.Join(parts, " "))
}
