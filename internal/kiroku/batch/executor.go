// Package batch executes confirmed actions sequentially with per-item
// failure isolation: one failing action never blocks or rolls back its
// neighbours, and the caller gets a full per-item report either way.
package batch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// Store is the mutation surface the executor needs from the catalog.
type Store interface {
	CreateFromPayload(ctx context.Context, ws action.Workspace, payload action.Payload) (string, error)
	PatchFromPayload(ctx context.Context, id string, payload action.Payload) error
	DeleteEntry(ctx context.Context, id string) error
}

// Result reports the outcome of one action in a batch.
type Result struct {
	Action  action.Action `json:"action"`
	Success bool          `json:"success"`
	Error   string        `json:"error,omitempty"`
	NewID   string        `json:"newId,omitempty"`
}

// Summary aggregates a batch run.
type Summary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Executor applies confirmed actions to the catalog.
type Executor struct {
	store  Store
	logger *slog.Logger
}

// New creates an Executor over the given store. A nil logger falls back to
// slog.Default.
func New(store Store, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{store: store, logger: logger}
}

// Run executes actions in order, one at a time. Every action is attempted
// regardless of earlier failures; results are index-aligned with the input.
// Run itself only fails when the context is cancelled mid-batch, in which
// case the results so far are still returned.
func (e *Executor) Run(ctx context.Context, actions []action.Action) (Summary, []Result, error) {
	summary := Summary{Total: len(actions)}
	results := make([]Result, 0, len(actions))

	for i, act := range actions {
		if err := ctx.Err(); err != nil {
			return summary, results, fmt.Errorf("batch: cancelled after %d of %d actions: %w", i, len(actions), err)
		}

		res := Result{Action: act}
		newID, err := e.execute(ctx, act)
		if err != nil {
			res.Error = err.Error()
			summary.Failed++
			e.logger.Warn("action failed",
				"kind", act.Kind,
				"workspace", act.Workspace,
				"title", act.Title(),
				"error", err)
		} else {
			res.Success = true
			res.NewID = newID
			summary.Succeeded++
			e.logger.Info("action executed",
				"kind", act.Kind,
				"workspace", act.Workspace,
				"title", act.Title(),
				"id", firstNonEmpty(newID, act.TargetID))
		}
		results = append(results, res)
	}
	return summary, results, nil
}

// execute applies one action. The returned id is only set for creates.
func (e *Executor) execute(ctx context.Context, act action.Action) (string, error) {
	switch act.Kind {
	case action.KindCreate:
		return e.store.CreateFromPayload(ctx, act.Workspace, act.Payload)
	case action.KindUpdate:
		if act.TargetID == "" {
			return "", fmt.Errorf("batch: update without target id")
		}
		return "", e.store.PatchFromPayload(ctx, act.TargetID, act.Payload)
	case action.KindDelete:
		if act.TargetID == "" {
			return "", fmt.Errorf("batch: delete without target id")
		}
		return "", e.store.DeleteEntry(ctx, act.TargetID)
	default:
		return "", fmt.Errorf("batch: unknown action kind %q", act.Kind)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
