// Package filter implements the item matching engine.
package filter

import (
	"strings"

	"tweetbridge/internal/model"
)

// Matches checks whether an item's text passes the given keyword terms.
// An empty term list passes everything; otherwise at least one term must
// occur in the text, case-insensitively.
func Matches(it model.Item, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	text := strings.ToLower(it.Text)
	for _, term := range terms {
		if term == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// Deliverable decides whether an item may be forwarded at all. Items without
// media are never delivered, regardless of filters: this bridge forwards
// media posts only.
func Deliverable(it model.Item, terms []string) bool {
	if len(it.Media) == 0 {
		return false
	}
	return Matches(it, terms)
}
