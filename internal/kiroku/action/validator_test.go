package action_test

import (
	"reflect"
	"strings"
	"testing"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// create/update/delete helpers for readable test bodies.

func createAction(payload action.Payload) action.Action {
	return action.Action{Kind: action.KindCreate, Workspace: action.WorkspaceMedia, Payload: payload}
}

func updateAction(payload action.Payload) action.Action {
	return action.Action{Kind: action.KindUpdate, Workspace: action.WorkspaceMedia, Payload: payload}
}

func deleteAction(payload action.Payload) action.Action {
	return action.Action{Kind: action.KindDelete, Workspace: action.WorkspaceMedia, Payload: payload}
}

// TestValidate_MissingTitle verifies rule 1: any action without a non-empty
// title is invalid with the missing-title message.
func TestValidate_MissingTitle(t *testing.T) {
	for _, a := range []action.Action{
		createAction(action.Payload{}),
		createAction(action.Payload{"title": ""}),
		updateAction(nil),
		deleteAction(action.Payload{"status": "Finished"}),
	} {
		got := action.Validate(a, nil)
		if got.Verdict.IsValid {
			t.Errorf("%s action without title: IsValid = true, want false", a.Kind)
		}
		if len(got.Verdict.Errors) == 0 || got.Verdict.Errors[0] != action.MsgMissingTitle {
			t.Errorf("%s action without title: errors = %v, want first error %q",
				a.Kind, got.Verdict.Errors, action.MsgMissingTitle)
		}
	}
}

// TestValidate_UpdateNeedsMatch verifies rule 2 for update/delete: a
// resolution miss is a hard error, a hit populates Matched and TargetID.
func TestValidate_UpdateNeedsMatch(t *testing.T) {
	entries := snapshot("Inception", "Dune")

	miss := action.Validate(updateAction(action.Payload{"title": "The Room"}), entries)
	if miss.Verdict.IsValid {
		t.Error("update with no match: IsValid = true, want false")
	}
	if len(miss.Verdict.Errors) == 0 || miss.Verdict.Errors[0] != action.MsgNoMatch {
		t.Errorf("update with no match: errors = %v, want %q", miss.Verdict.Errors, action.MsgNoMatch)
	}
	if miss.Matched != nil {
		t.Errorf("update with no match: Matched = %+v, want nil", miss.Matched)
	}

	hit := action.Validate(deleteAction(action.Payload{"title": "inception"}), entries)
	if !hit.Verdict.IsValid {
		t.Errorf("delete with match: IsValid = false, errors = %v", hit.Verdict.Errors)
	}
	if hit.Matched == nil || hit.Matched.Title != "Inception" {
		t.Fatalf("delete with match: Matched = %+v, want the Inception entry", hit.Matched)
	}
	if hit.Action.TargetID != hit.Matched.ID {
		t.Errorf("delete with match: TargetID = %q, want %q", hit.Action.TargetID, hit.Matched.ID)
	}
}

// TestValidate_ExplicitTargetIDPinsResolution verifies rule 2 honors a
// caller-supplied TargetID over title matching, and falls back to the title
// when the id is stale.
func TestValidate_ExplicitTargetIDPinsResolution(t *testing.T) {
	// "Dune" substring-matches id-0 first in recency order; the explicit id
	// must still win.
	entries := snapshot("Dune: Part Two", "Dune")

	pinned := updateAction(action.Payload{"title": "Dune"})
	pinned.TargetID = "id-1"
	got := action.Validate(pinned, entries)
	if !got.Verdict.IsValid {
		t.Fatalf("pinned update invalid: %v", got.Verdict.Errors)
	}
	if got.Matched == nil || got.Matched.ID != "id-1" || got.Action.TargetID != "id-1" {
		t.Errorf("Matched = %+v, TargetID = %q; want the id-1 entry", got.Matched, got.Action.TargetID)
	}

	stale := deleteAction(action.Payload{"title": "Dune"})
	stale.TargetID = "id-gone"
	got = action.Validate(stale, entries)
	if got.Matched == nil || got.Matched.ID != "id-0" {
		t.Errorf("stale id: Matched = %+v, want title fallback to id-0", got.Matched)
	}
}

// TestValidate_CreateDuplicateIsWarning verifies rule 2 for create: a
// similar existing title warns but does not invalidate.
func TestValidate_CreateDuplicateIsWarning(t *testing.T) {
	entries := snapshot("Inception")

	got := action.Validate(createAction(action.Payload{"title": "Inception"}), entries)
	if !got.Verdict.IsValid {
		t.Errorf("create with duplicate title: IsValid = false, errors = %v", got.Verdict.Errors)
	}
	if len(got.Verdict.Warnings) != 1 || !strings.Contains(got.Verdict.Warnings[0], "Similar title already exists") {
		t.Errorf("create with duplicate title: warnings = %v, want a similar-title warning", got.Verdict.Warnings)
	}
	if got.Matched == nil {
		t.Error("create with duplicate title: Matched = nil, want the existing entry")
	}
}

// TestValidate_RatingRange verifies rule 3: my_rating outside [0, 10] is a
// hard error, boundary values are accepted.
func TestValidate_RatingRange(t *testing.T) {
	cases := []struct {
		rating float64
		valid  bool
	}{
		{-1, false},
		{0, true},
		{9, true},
		{10, true},
		{10.5, false},
		{11, false},
	}
	for _, tc := range cases {
		a := createAction(action.Payload{"title": "Dune Part 3", "my_rating": tc.rating})
		got := action.Validate(a, nil)
		if got.Verdict.IsValid != tc.valid {
			t.Errorf("rating %v: IsValid = %v, want %v (errors %v)",
				tc.rating, got.Verdict.IsValid, tc.valid, got.Verdict.Errors)
		}
	}
}

// TestValidate_StatusIsAdvisory verifies rule 4: an unknown status warns but
// never blocks, and every canonical status passes silently.
func TestValidate_StatusIsAdvisory(t *testing.T) {
	for _, status := range action.KnownStatuses {
		got := action.Validate(createAction(action.Payload{"title": "x", "status": status}), nil)
		if len(got.Verdict.Warnings) != 0 {
			t.Errorf("status %q: warnings = %v, want none", status, got.Verdict.Warnings)
		}
	}

	got := action.Validate(createAction(action.Payload{"title": "x", "status": "Binged"}), nil)
	if !got.Verdict.IsValid {
		t.Errorf("unknown status: IsValid = false, errors = %v", got.Verdict.Errors)
	}
	if len(got.Verdict.Warnings) != 1 || !strings.Contains(got.Verdict.Warnings[0], "Binged") {
		t.Errorf("unknown status: warnings = %v, want one naming the value", got.Verdict.Warnings)
	}
}

// TestValidate_AllRulesRun verifies errors accumulate in rule order rather
// than short-circuiting on the first failure.
func TestValidate_AllRulesRun(t *testing.T) {
	a := updateAction(action.Payload{"my_rating": float64(42)})
	got := action.Validate(a, nil)

	want := []string{
		action.MsgMissingTitle,
		action.MsgNoMatch,
		"Rating must be between 0 and 10",
	}
	if !reflect.DeepEqual(got.Verdict.Errors, want) {
		t.Errorf("errors = %v, want %v in rule order", got.Verdict.Errors, want)
	}
}

// TestValidate_Idempotent verifies running Validate twice on the same
// (action, snapshot) pair yields identical verdicts.
func TestValidate_Idempotent(t *testing.T) {
	entries := snapshot("Inception")
	a := updateAction(action.Payload{"title": "Inception", "my_rating": float64(9), "status": "finished"})

	first := action.Validate(a, entries)
	second := action.Validate(a, entries)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Validate is not idempotent:\nfirst  = %+v\nsecond = %+v", first, second)
	}
}

// TestValidate_DoesNotMutateInput verifies the input action's payload is left
// untouched even though the returned action carries the resolved TargetID.
func TestValidate_DoesNotMutateInput(t *testing.T) {
	entries := snapshot("Inception")
	a := updateAction(action.Payload{"title": "Inception"})

	got := action.Validate(a, entries)
	if a.TargetID != "" {
		t.Errorf("input action mutated: TargetID = %q, want empty", a.TargetID)
	}
	if got.Action.TargetID == "" {
		t.Error("returned action missing TargetID after successful resolution")
	}
}

// TestValidateAll_IndexAligned verifies the result slice is index-aligned
// with the input.
func TestValidateAll_IndexAligned(t *testing.T) {
	entries := snapshot("Inception")
	actions := []action.Action{
		createAction(action.Payload{"title": "Dune Part 3", "status": "Planned"}),
		updateAction(action.Payload{"title": "nothing like this"}),
		deleteAction(action.Payload{"title": "Inception"}),
	}

	got := action.ValidateAll(actions, entries)
	if len(got) != len(actions) {
		t.Fatalf("ValidateAll returned %d results, want %d", len(got), len(actions))
	}
	if !got[0].Verdict.IsValid || got[1].Verdict.IsValid || !got[2].Verdict.IsValid {
		t.Errorf("validity = [%v %v %v], want [true false true]",
			got[0].Verdict.IsValid, got[1].Verdict.IsValid, got[2].Verdict.IsValid)
	}
}
