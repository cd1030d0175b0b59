package action

import (
	"fmt"
	"slices"
)

// Validation messages.  These are user-facing strings rendered verbatim on
// the confirmation surface, so their wording is part of the contract.
const (
	MsgMissingTitle = "Missing title"
	MsgNoMatch      = "No matching diary entry found"
)

// Validate checks one candidate action against the domain rules and the given
// catalog snapshot (newest first) and returns the action paired with its
// verdict and resolved target.
//
// All rules run unconditionally so the user sees every problem at once;
// nothing short-circuits.  In order:
//
//  1. A non-empty title is required.
//  2. update/delete must resolve to an existing entry (hard error on a miss);
//     create that resolves to an existing entry gets a similar-title warning.
//     A caller-supplied TargetID naming a snapshot entry pins the resolution
//     to that entry; title matching is only the fallback, so an explicit id
//     can never be rerouted to a similarly titled row.
//  3. my_rating, when present, must lie within [0, 10].
//  4. status, when present, is checked against KnownStatuses; unknown values
//     are advisory warnings only.
//
// On a successful resolution the returned action carries the matched entry's
// ID in TargetID.  Validate is deterministic and idempotent for a fixed
// (action, snapshot) pair, and reads the snapshot only through its argument.
func Validate(a Action, entries []MatchedEntry) ValidatedAction {
	out := ValidatedAction{Action: a.Clone()}
	verdict := Verdict{}

	// Rule 1: title.
	title := a.Title()
	if title == "" {
		verdict.Errors = append(verdict.Errors, MsgMissingTitle)
	}

	// Rule 2: entity resolution.
	match := Resolve(title, entries)
	switch a.Kind {
	case KindUpdate, KindDelete:
		if pinned := findByID(a.TargetID, entries); pinned != nil {
			match = pinned
		}
		if match == nil {
			verdict.Errors = append(verdict.Errors, MsgNoMatch)
		} else {
			out.Matched = match
			out.Action.TargetID = match.ID
		}
	case KindCreate:
		if match != nil {
			out.Matched = match
			verdict.Warnings = append(verdict.Warnings,
				fmt.Sprintf("Similar title already exists: %s", match.Title))
		}
	default:
		verdict.Errors = append(verdict.Errors, fmt.Sprintf("Unknown action kind %q", a.Kind))
	}

	// Rule 3: rating range.
	if rating, ok := a.Rating(); ok {
		if rating < RatingMin || rating > RatingMax {
			verdict.Errors = append(verdict.Errors,
				fmt.Sprintf("Rating must be between %d and %d", RatingMin, RatingMax))
		}
	}

	// Rule 4: status vocabulary (advisory).
	if status, ok := a.Status(); ok && status != "" {
		if !slices.Contains(KnownStatuses, status) {
			verdict.Warnings = append(verdict.Warnings,
				fmt.Sprintf("Unrecognized status %q", status))
		}
	}

	verdict.IsValid = len(verdict.Errors) == 0
	out.Verdict = verdict
	return out
}

// findByID returns the snapshot entry with the given id, or nil. A stale id
// that no longer names a live entry yields nil so title resolution takes
// over.
func findByID(id string, entries []MatchedEntry) *MatchedEntry {
	if id == "" {
		return nil
	}
	for i := range entries {
		if entries[i].ID == id {
			e := entries[i]
			return &e
		}
	}
	return nil
}

// ValidateAll validates every candidate in order against the same snapshot.
// The result slice is index-aligned with the input.
func ValidateAll(actions []Action, entries []MatchedEntry) []ValidatedAction {
	out := make([]ValidatedAction, len(actions))
	for i, a := range actions {
		out[i] = Validate(a, entries)
	}
	return out
}
