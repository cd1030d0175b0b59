package nlp

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

//go:embed action_schema.json
var actionSchemaJSON string

// actionSchema is compiled once at startup; a broken embedded schema is a
// programming error, so MustCompileString is appropriate here.
var actionSchema = jsonschema.MustCompileString("action_schema.json", actionSchemaJSON)

// DecodeActions parses and schema-checks the raw JSON content returned by
// the text-to-actions oracle, then maps it onto typed Actions bound to the
// given workspace.
//
// The JSON Schema check runs before any typed decoding so that a model
// hallucinating a new kind, a non-object payload, or a structurally wrong
// document is rejected as one ErrMalformedOutput instead of surfacing as a
// half-decoded batch. The oracle chooses kinds and payloads; it never
// chooses the workspace.
func DecodeActions(ws action.Workspace, raw []byte) (*ActionResult, error) {
	var loose any
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if err := actionSchema.Validate(loose); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	// Wire shape mirrors the schema; decoding after validation cannot fail
	// structurally, but keep the error path anyway.
	var wire struct {
		Intent  string `json:"intent"`
		Actions []struct {
			Kind    string         `json:"kind"`
			Payload map[string]any `json:"payload"`
		} `json:"actions"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}

	result := &ActionResult{Intent: wire.Intent, Actions: make([]action.Action, 0, len(wire.Actions))}
	for _, a := range wire.Actions {
		result.Actions = append(result.Actions, action.Action{
			Kind:      action.Kind(a.Kind),
			Workspace: ws,
			Payload:   action.Payload(a.Payload),
		})
	}
	return result, nil
}
