package nlp_test

import (
	"errors"
	"testing"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
	"github.com/kiroku-app/kiroku/internal/kiroku/nlp"
)

// TestDecodeActions_Valid verifies a well-formed oracle document maps onto
// typed actions bound to the caller's workspace.
func TestDecodeActions_Valid(t *testing.T) {
	raw := `{
		"intent": "add two planned films",
		"actions": [
			{"kind": "create", "payload": {"title": "Dune Part 3", "status": "Planned"}},
			{"kind": "create", "payload": {"title": "The Batman 2", "status": "Planned", "my_rating": 7}}
		]
	}`

	got, err := nlp.DecodeActions(action.WorkspaceMedia, []byte(raw))
	if err != nil {
		t.Fatalf("DecodeActions: %v", err)
	}
	if got.Intent != "add two planned films" {
		t.Errorf("Intent = %q", got.Intent)
	}
	if len(got.Actions) != 2 {
		t.Fatalf("decoded %d actions, want 2", len(got.Actions))
	}
	for i, a := range got.Actions {
		if a.Kind != action.KindCreate {
			t.Errorf("action %d kind = %q, want create", i, a.Kind)
		}
		if a.Workspace != action.WorkspaceMedia {
			t.Errorf("action %d workspace = %q, want media", i, a.Workspace)
		}
	}
	if got.Actions[1].Payload["my_rating"] != float64(7) {
		t.Errorf("my_rating = %v, want 7", got.Actions[1].Payload["my_rating"])
	}
}

// TestDecodeActions_EmptyBatch verifies an empty actions array is valid
// output, not an error.
func TestDecodeActions_EmptyBatch(t *testing.T) {
	got, err := nlp.DecodeActions(action.WorkspaceFood, []byte(`{"intent": "nothing to do", "actions": []}`))
	if err != nil {
		t.Fatalf("DecodeActions: %v", err)
	}
	if len(got.Actions) != 0 {
		t.Errorf("decoded %d actions, want 0", len(got.Actions))
	}
}

// TestDecodeActions_Malformed verifies every malformed shape is rejected
// with ErrMalformedOutput.
func TestDecodeActions_Malformed(t *testing.T) {
	cases := map[string]string{
		"not json":          `planned: Dune Part 3`,
		"missing actions":   `{"intent": "x"}`,
		"phantom kind":      `{"actions": [{"kind": "upsert", "payload": {"title": "x"}}]}`,
		"payload not object": `{"actions": [{"kind": "create", "payload": "title=x"}]}`,
		"actions not array": `{"actions": {"kind": "create"}}`,
	}
	for name, raw := range cases {
		_, err := nlp.DecodeActions(action.WorkspaceMedia, []byte(raw))
		if !errors.Is(err, nlp.ErrMalformedOutput) {
			t.Errorf("%s: err = %v, want ErrMalformedOutput", name, err)
		}
	}
}
