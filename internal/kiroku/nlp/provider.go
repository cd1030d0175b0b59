// Package nlp provides the natural-language layer of the Kiroku assistant.
//
// The layer sits between raw user text and the structured pipeline. Its sole
// responsibility is translation: free text becomes either a read-only SQL
// query proposal or a batch of candidate catalog actions.
//
// Security invariants (unchanged by this layer):
//   - The LLM only proposes; it never executes. Generated SQL runs only
//     after the query allow-list guard, generated actions only after
//     validation and explicit user confirmation.
//   - The LLM is shown the column vocabulary and recent titles only; it
//     never sees credentials or internal state.
//   - Rate limiting bounds runaway token spend per client.
package nlp

import (
	"context"
	"errors"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// ErrRateLimit is returned by a Provider when the upstream LLM API reports a
// rate-limiting condition (e.g. HTTP 429). Callers surface a user-visible
// message; the request is never retried automatically.
var ErrRateLimit = errors.New("nlp: upstream rate limit exceeded")

// ErrMalformedOutput is returned by a Provider when the LLM returns a
// structurally valid HTTP response whose body cannot be interpreted as the
// expected JSON shape (parse failure or schema violation). Nothing
// downstream of a malformed generation runs.
var ErrMalformedOutput = errors.New("nlp: malformed response from LLM")

// GenerateRequest is the input to a single generation call.
//
// The caller populates the context fields on each request; they are cheap
// slices and intentionally not cached inside the provider so stale catalog
// state is never replayed to the model.
type GenerateRequest struct {
	// Text is the raw request typed by the user.
	Text string

	// Workspace is the diary the request targets.
	Workspace action.Workspace

	// RecentTitles is a recency-ordered sample of existing entry titles,
	// shown to the model so update/delete requests reference real entries.
	RecentTitles []string
}

// ActionResult is the structured output of the text-to-actions oracle.
type ActionResult struct {
	// Intent is the model's one-line label for the request (informational).
	Intent string `json:"intent"`

	// Actions is the ordered list of candidate mutations. May be empty when
	// the model found nothing actionable.
	Actions []action.Action `json:"actions"`
}

// QueryResult is the structured output of the text-to-SQL oracle. The SQL
// has not been executed or guarded yet when this is returned.
type QueryResult struct {
	// SQL is the proposed SELECT statement.
	SQL string `json:"sql"`

	// Explanation is a one-sentence description of what the query computes.
	Explanation string `json:"explanation"`
}

// RateLimitMessage is shown to a client that exceeded the local per-window
// call limit.
const RateLimitMessage = "I'm processing too many requests right now. Please try again in a moment."

// APIRateLimitMessage is shown when the upstream LLM provider is throttled.
const APIRateLimitMessage = "The assistant is temporarily rate-limited by the upstream provider. Please try again shortly."

// MalformedOutputMessage is shown when the LLM returns output that cannot be
// parsed into the expected shape.
const MalformedOutputMessage = "I didn't quite understand that. Try rephrasing your request."

// Provider turns free-form user text into structured assistant output.
//
// Implementations must be safe for concurrent use. When the oracle is
// unreachable they return a descriptive error; the pipeline surfaces it and
// performs no further steps.
type Provider interface {
	// GenerateActions asks the oracle for candidate catalog mutations.
	GenerateActions(ctx context.Context, req GenerateRequest) (*ActionResult, error)

	// GenerateQuery asks the oracle for a read-only SQL proposal.
	GenerateQuery(ctx context.Context, req GenerateRequest) (*QueryResult, error)
}
