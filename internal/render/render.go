// Package render turns a composed digest into Markdown and plain text
// for the CLI and the plain-text email body.
package render

import (
	"fmt"
	"strings"
	"time"

	"pheme/internal/core"
)

// Markdown renders the digest as a Markdown document: date header,
// per-topic sections, one entry per article, and a stats footer.
func Markdown(result *core.DigestResult) string {
	var sb strings.Builder

	dateStr := result.GeneratedAt.UTC().Format("2006-01-02")
	sb.WriteString(fmt.Sprintf("# Daily Digest - %s\n\n", dateStr))

	if result.Empty() {
		sb.WriteString("No articles matched any topic today.\n\n")
	}

	for _, section := range result.Sections {
		if len(section.Entries) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("## %s\n\n", section.TopicName))
		for _, entry := range section.Entries {
			sb.WriteString(fmt.Sprintf("### [%s](%s)\n\n", entry.Title, entry.Link))
			sb.WriteString(entry.Summary + "\n\n")
			meta := entry.SourceName
			if !entry.Published.IsZero() {
				meta += " · " + entry.Published.UTC().Format("Jan 2, 2006 15:04 MST")
			}
			sb.WriteString(fmt.Sprintf("*%s*\n\n", meta))
		}
	}

	sb.WriteString("---\n\n")
	sb.WriteString(statsLine(&result.Stats))
	sb.WriteString("\n")
	return sb.String()
}

// Plain renders the digest as plain text for email fallback bodies.
func Plain(result *core.DigestResult) string {
	var sb strings.Builder

	dateStr := result.GeneratedAt.UTC().Format("Monday, January 2, 2006")
	sb.WriteString(fmt.Sprintf("Pheme Daily Digest - %s\n", dateStr))
	sb.WriteString(strings.Repeat("=", 50) + "\n")

	if result.Empty() {
		sb.WriteString("\nNo articles matched any topic today.\n")
	}

	for _, section := range result.Sections {
		if len(section.Entries) == 0 {
			continue
		}
		sb.WriteString(fmt.Sprintf("\n%s\n%s\n", section.TopicName, strings.Repeat("-", len(section.TopicName))))
		for _, entry := range section.Entries {
			sb.WriteString(fmt.Sprintf("\n* %s\n", entry.Title))
			sb.WriteString(fmt.Sprintf("  %s\n", entry.Summary))
			sb.WriteString(fmt.Sprintf("  %s\n", entry.Link))
		}
	}

	sb.WriteString("\n" + statsLine(&result.Stats))
	sb.WriteString("\n")
	return sb.String()
}

func statsLine(stats *core.RunStats) string {
	return fmt.Sprintf("%d fetched, %d filtered, %d matched, %d in digest (run %s, %s)",
		stats.Fetched, stats.Filtered, stats.Matched, stats.Deduped,
		stats.RunID, stats.Duration.Round(time.Millisecond))
}
