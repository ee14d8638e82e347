package gemini

import "ai-market-dashboard/internal/types"

// maxSources caps the citation list attached to any single feature result.
const maxSources = 3

// DedupSources filters out citations missing a URI or title, deduplicates by
// URI keeping the first occurrence, and truncates to the first three entries.
// Pure function; input order is preserved.
func DedupSources(raw []types.Source) []types.Source {
	seen := make(map[string]bool, len(raw))
	out := make([]types.Source, 0, maxSources)

	for _, s := range raw {
		if s.URI == "" || s.Title == "" {
			continue
		}
		if seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		out = append(out, s)
		if len(out) == maxSources {
			break
		}
	}

	return out
}
