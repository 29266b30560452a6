package models

import (
	"strings"
	"unicode"
)

// WorkItem is one atomic unit of requested work, parsed from a ticket,
// checklist, or free-text requirement list. Immutable once parsed.
type WorkItem struct {
	// Text is the requirement as written in the source input.
	Text string `json:"text" yaml:"text"`
	// SourceIndex is the item's position in the original input, used for
	// stable tiebreaks and traceability.
	SourceIndex int `json:"source_index" yaml:"source_index"`
}

// ParseWorkItems splits raw input into work items, one per non-blank line.
// List markers ("- ", "* ", "3. ", "[ ]") and surrounding whitespace are
// stripped; blank lines and markdown headings are skipped. SourceIndex
// follows the order items appear in the input.
func ParseWorkItems(input string) []WorkItem {
	var items []WorkItem
	for _, line := range strings.Split(input, "\n") {
		text := stripListMarker(strings.TrimSpace(line))
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		items = append(items, WorkItem{Text: text, SourceIndex: len(items)})
	}
	return items
}

func stripListMarker(s string) string {
	s = strings.TrimPrefix(s, "- ")
	s = strings.TrimPrefix(s, "* ")
	s = strings.TrimPrefix(s, "+ ")

	// Ordinal prefixes like "12." or "3)"
	i := 0
	for i < len(s) && unicode.IsDigit(rune(s[i])) {
		i++
	}
	if i > 0 && i < len(s) && (s[i] == '.' || s[i] == ')') {
		s = s[i+1:]
	}
	s = strings.TrimSpace(s)

	// Unticked checkbox remnants from checklist-style input.
	s = strings.TrimPrefix(s, "[ ] ")
	s = strings.TrimPrefix(s, "[x] ")
	s = strings.TrimPrefix(s, "[X] ")
	return strings.TrimSpace(s)
}

// Slugify converts free text into a lowercase, hyphen-separated identifier
// safe for branch names and filesystem paths. Runs of non-alphanumeric
// characters collapse into single hyphens.
func Slugify(s string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
