package server

import (
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
	"github.com/kiroku-app/kiroku/internal/kiroku/batch"
	"github.com/kiroku-app/kiroku/internal/kiroku/query"
)

// AssistantRequest is the body of POST /api/assistant.
type AssistantRequest struct {
	// Text is the raw natural-language request.
	Text string `json:"text"`
	// Workspace selects the diary ("media" or "food").
	Workspace string `json:"workspace"`
}

// AssistantResponse is the answer to an assistant request. Exactly one of
// Query and Proposal is set, matching Mode.
type AssistantResponse struct {
	Mode     string        `json:"mode"`
	Query    *query.Result `json:"query,omitempty"`
	Proposal *ProposalView `json:"proposal,omitempty"`
}

// ProposalItem is one candidate action as shown on the confirmation surface.
type ProposalItem struct {
	Index      int                  `json:"index"`
	Action     action.Action        `json:"action"`
	Matched    *action.MatchedEntry `json:"matchedEntry,omitempty"`
	Validation action.Verdict       `json:"validation"`
	Selected   bool                 `json:"selected"`
}

// ProposalView is the client-facing snapshot of a pending proposal. It is
// re-sent after every selection or edit operation so the client never has to
// mirror session state.
type ProposalView struct {
	ID        string           `json:"id"`
	Workspace action.Workspace `json:"workspace"`
	Intent    string           `json:"intent,omitempty"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Items     []ProposalItem   `json:"items"`
}

// ToggleRequest is the body of POST /api/proposals/{id}/toggle.
type ToggleRequest struct {
	Index int `json:"index"`
}

// EditRequest is the body of POST /api/proposals/{id}/edit.
type EditRequest struct {
	Index int            `json:"index"`
	Patch action.Payload `json:"patch"`
}

// ExecuteRequest is the body of POST /api/actions/execute, the direct path
// that bypasses a stored proposal. Actions are re-validated server-side;
// an action that fails validation comes back as a failed result and is
// never applied.
type ExecuteRequest struct {
	Workspace string          `json:"workspace"`
	Actions   []action.Action `json:"actions"`
}

// ExecuteResponse reports a finished batch run. Success means every action
// succeeded; clients must still present partial outcomes from Summary as
// separate succeeded/failed notifications, never as one pass/fail signal.
type ExecuteResponse struct {
	Success bool           `json:"success"`
	Summary batch.Summary  `json:"summary"`
	Results []batch.Result `json:"results"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	Status    string    `json:"status"`
	Version   string    `json:"version"`
	Entries   int       `json:"entries"`
	StartedAt time.Time `json:"startedAt"`
	Uptime    float64   `json:"uptimeSeconds"`
}
