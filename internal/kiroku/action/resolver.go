package action

import "strings"

// ResolveWindow bounds how many recent entries the resolver considers.  The
// catalog can grow without bound; matching against the most recent window
// keeps resolution cost flat while covering everything a user plausibly
// refers to by title.
const ResolveWindow = 500

// Resolve fuzzy-matches a free-text title against a recency-ordered catalog
// snapshot (newest first) and returns the best candidate, or nil when nothing
// qualifies.
//
// The policy is deliberately cheap rather than scored: after normalisation
// (lower-case, trimmed) an entry qualifies when the titles are equal or one
// is a substring of the other.  The first qualifying entry in recency order
// wins.  A wrong suggestion is always reviewable on the confirmation surface
// before anything executes, so the policy favours "is there plausibly a
// match" over exact rank correctness.
//
// Resolve is a pure function of its arguments; the snapshot is never read
// from ambient state.
func Resolve(title string, entries []MatchedEntry) *MatchedEntry {
	want := normalizeTitle(title)
	if want == "" {
		return nil
	}

	limit := len(entries)
	if limit > ResolveWindow {
		limit = ResolveWindow
	}

	for i := 0; i < limit; i++ {
		have := normalizeTitle(entries[i].Title)
		if have == "" {
			continue
		}
		if have == want || strings.Contains(have, want) || strings.Contains(want, have) {
			e := entries[i]
			return &e
		}
	}
	return nil
}

// normalizeTitle lower-cases and trims a title for comparison.
func normalizeTitle(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
