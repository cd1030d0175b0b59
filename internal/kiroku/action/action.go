// Package action defines the candidate-mutation schema for the Kiroku
// assistant and the validation layer that decides which candidates are safe
// to offer for execution.
//
// An Action is one proposed create/update/delete of a diary entry, produced
// by the LLM generation layer from free text.  Actions are never applied
// directly: every one flows through Validate (structural + domain rules and
// fuzzy entity resolution) and then through the confirmation layer before the
// batch executor touches the database.
package action

import (
	"encoding/json"
	"fmt"
)

// Workspace identifies which diary an action targets.  Each workspace has its
// own column vocabulary but shares the same entries table.
type Workspace string

const (
	// WorkspaceMedia is the media-consumption diary (films, series, books...).
	WorkspaceMedia Workspace = "media"
	// WorkspaceFood is the dining diary (restaurant visits).
	WorkspaceFood Workspace = "food"
)

// Valid reports whether w is a known workspace.
func (w Workspace) Valid() bool {
	return w == WorkspaceMedia || w == WorkspaceFood
}

// Kind is the mutation type of a candidate action.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Valid reports whether k is one of the three supported mutation kinds.
func (k Kind) Valid() bool {
	return k == KindCreate || k == KindUpdate || k == KindDelete
}

// Payload is the sparse field map of a candidate action.  Keys are column
// names of the entries table (title, medium, type, status, genre, platform,
// my_rating, start_date, finish_date, episodes_watched, total_episodes,
// price, language, poster, external_id); values are whatever the JSON decoder
// produced (string, float64, []any).  Unknown keys are tolerated here and
// ignored by the store's column whitelist at execution time.
type Payload map[string]any

// Action is one candidate mutation of the diary.
//
// Lifecycle: built from raw LLM output by the nlp layer; enriched with
// TargetID by the resolver (update/delete only); optionally patched by the
// user during the confirmation edit step; consumed exactly once by the batch
// executor and then discarded.  Only its effect is persisted.
type Action struct {
	// Kind is create, update, or delete.
	Kind Kind `json:"kind"`

	// Workspace is the diary this action targets.  Set from the originating
	// request; the LLM never chooses it.
	Workspace Workspace `json:"workspace,omitempty"`

	// TargetID is the entry ID this action applies to.  Empty until the
	// resolver finds a match; only meaningful for update/delete.
	TargetID string `json:"targetId,omitempty"`

	// Payload holds the sparse field values for the mutation.
	Payload Payload `json:"payload,omitempty"`
}

// Title returns the payload title, or "" when absent or not a string.
func (a *Action) Title() string {
	s, _ := a.Payload["title"].(string)
	return s
}

// Rating returns the payload my_rating value and whether one is present.
// JSON numbers decode as float64; integer values are accepted too.
func (a *Action) Rating() (float64, bool) {
	switch v := a.Payload["my_rating"].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// Status returns the payload status value and whether one is present.
func (a *Action) Status() (string, bool) {
	s, ok := a.Payload["status"].(string)
	return s, ok
}

// Clone returns a deep-enough copy of the action: the payload map is copied
// so that edits on the clone never leak into the original.  Nested slices are
// shared; callers treat payload values as immutable.
func (a *Action) Clone() Action {
	cp := *a
	if a.Payload != nil {
		cp.Payload = make(Payload, len(a.Payload))
		for k, v := range a.Payload {
			cp.Payload[k] = v
		}
	}
	return cp
}

// String renders a short human-readable summary used in logs and audit rows.
func (a *Action) String() string {
	if a.TargetID != "" {
		return fmt.Sprintf("%s %q (%s)", a.Kind, a.Title(), a.TargetID)
	}
	return fmt.Sprintf("%s %q", a.Kind, a.Title())
}

// MatchedEntry is the lightweight projection of a diary row used for entity
// resolution and for display on the confirmation surface.  It is read-only;
// nothing in this package mutates catalog rows.
type MatchedEntry struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"`
}

// KnownStatuses is the advisory status vocabulary.  Values outside this set
// produce a warning, never an error: the diary historically tolerates
// free-text statuses and blocking on them would strand imported data.
var KnownStatuses = []string{
	"Watching",
	"Finished",
	"On Hold",
	"Dropped",
	"Plan to Watch",
	"Planned",
}

// Rating bounds enforced by the validator.
const (
	RatingMin = 0
	RatingMax = 10
)

// Verdict is the validation outcome attached 1:1 to an Action.
//
// IsValid is false exactly when Errors is non-empty.  Errors block execution;
// Warnings are surfaced to the user but never block.  The order of both
// slices follows rule-evaluation order and is a stable contract the
// confirmation surface depends on.
type Verdict struct {
	IsValid  bool     `json:"isValid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// ValidatedAction is the unit that flows through the confirmation surface:
// the action, its resolved target (nil for create or on a resolution miss),
// and its verdict.  Selection state is tracked against ordered slices of
// these, never against raw Actions, so validity and selection stay aligned
// after an edit re-validates a single item.
type ValidatedAction struct {
	Action  Action        `json:"action"`
	Matched *MatchedEntry `json:"matchedEntry,omitempty"`
	Verdict Verdict       `json:"validation"`
}
