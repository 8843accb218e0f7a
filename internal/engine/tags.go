package engine

import (
	"sort"
	"strings"
)

// ParseTags splits raw comma-separated input into normalized tag names:
// trimmed, lowercased, empties dropped, duplicates removed with first
// occurrence order preserved.
func ParseTags(raw string) []string {
	var tags []string
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		tags = append(tags, name)
	}
	return tags
}

// ReconcileTags diffs a brief's current tag names against the desired set and
// returns the additions and removals needed, both sorted. Comparison is over
// normalized names, so input casing never causes a spurious change.
func ReconcileTags(current, desired []string) (toAdd, toRemove []string) {
	currentSet := make(map[string]bool, len(current))
	for _, name := range current {
		currentSet[strings.ToLower(strings.TrimSpace(name))] = true
	}
	desiredSet := make(map[string]bool, len(desired))
	for _, name := range desired {
		desiredSet[strings.ToLower(strings.TrimSpace(name))] = true
	}

	for name := range desiredSet {
		if !currentSet[name] {
			toAdd = append(toAdd, name)
		}
	}
	for name := range currentSet {
		if !desiredSet[name] {
			toRemove = append(toRemove, name)
		}
	}
	sort.Strings(toAdd)
	sort.Strings(toRemove)
	return toAdd, toRemove
}
