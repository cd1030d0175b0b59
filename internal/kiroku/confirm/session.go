// Package confirm implements the review step between action generation and
// execution: a pure state machine over an ordered list of validated
// candidates, with selection, per-item edits, and a confirm operation that
// releases only the selected valid subset.
//
// Nothing in this package touches the database. A Session holds the
// point-in-time catalog snapshot its candidates were validated against and
// is discarded after confirm or cancel; closing the surface without
// confirming needs no cleanup because nothing was mutated yet.
package confirm

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
)

// ErrNothingSelected is returned by Confirm when no valid action is
// selected. This is a user-input problem, not a system failure; callers
// report it inline and keep the session alive.
var ErrNothingSelected = errors.New("confirm: select at least one valid action")

// ErrNotEditable is returned by Edit for update/delete candidates: they
// target an existing record and are not field-editable before execution.
var ErrNotEditable = errors.New("confirm: only create actions can be edited")

// Session tracks selection and edit state for one generated batch.
//
// Selection is a set of indices into the ordered ValidatedAction list, never
// into raw actions, so validity and selection stay aligned when an edit
// re-validates a single item. The invariant maintained by every operation:
// an index whose verdict is invalid is never in the selected set.
//
// A Session is safe for concurrent use. The HTTP surface serves selection
// and edit requests for the same proposal on concurrent handlers, so all
// state lives behind the session's own mutex.
type Session struct {
	mu       sync.Mutex
	items    []action.ValidatedAction
	selected map[int]bool
	snapshot []action.MatchedEntry
}

// NewSession creates a Session over validated candidates and the catalog
// snapshot they were validated against. All valid indices start selected
// (opt-out, for friction reduction); invalid ones are never auto-selected.
func NewSession(items []action.ValidatedAction, snapshot []action.MatchedEntry) *Session {
	s := &Session{
		items:    make([]action.ValidatedAction, len(items)),
		selected: make(map[int]bool),
		snapshot: snapshot,
	}
	copy(s.items, items)
	for i, item := range s.items {
		if item.Verdict.IsValid {
			s.selected[i] = true
		}
	}
	return s
}

// Items returns the candidates in order. The slice is a copy; mutating it
// does not affect the session.
func (s *Session) Items() []action.ValidatedAction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]action.ValidatedAction, len(s.items))
	copy(out, s.items)
	return out
}

// IsSelected reports whether the candidate at index is currently selected.
func (s *Session) IsSelected(index int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected[index]
}

// SelectedIndices returns the selected indices in ascending order.
func (s *Session) SelectedIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.selected))
	for i := range s.selected {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Toggle flips the selection of the candidate at index. Toggling an invalid
// candidate is a silent no-op even though the UI also disables it — the
// invariant holds regardless of what the caller sends.
func (s *Session) Toggle(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return err
	}
	if !s.items[index].Verdict.IsValid {
		return nil
	}
	if s.selected[index] {
		delete(s.selected, index)
	} else {
		s.selected[index] = true
	}
	return nil
}

// SelectAll selects every currently-valid candidate.
func (s *Session) SelectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.items {
		if item.Verdict.IsValid {
			s.selected[i] = true
		}
	}
}

// DeselectAll clears the selection.
func (s *Session) DeselectAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
}

// Edit merges patch into the payload of the create candidate at index and
// re-validates it against the session's catalog snapshot.
//
// Re-validation can flip validity in either direction. A candidate that
// became invalid is deselected immediately; one that became valid stays
// deselected until the user selects it, so an edit never silently arms an
// action the user did not choose.
func (s *Session) Edit(index int, patch action.Payload) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkIndex(index); err != nil {
		return err
	}
	item := s.items[index]
	if item.Action.Kind != action.KindCreate {
		return ErrNotEditable
	}

	edited := item.Action.Clone()
	if edited.Payload == nil {
		edited.Payload = make(action.Payload, len(patch))
	}
	for k, v := range patch {
		edited.Payload[k] = v
	}

	revalidated := action.Validate(edited, s.snapshot)
	s.items[index] = revalidated
	if !revalidated.Verdict.IsValid {
		delete(s.selected, index)
	}
	return nil
}

// Confirm returns the actions at all selected (and, by invariant, valid)
// indices in original order. Returns ErrNothingSelected when the resulting
// list would be empty; the session is left untouched in that case so the
// user can adjust and retry.
func (s *Session) Confirm() ([]action.Action, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var confirmed []action.Action
	for i, item := range s.items {
		if s.selected[i] && item.Verdict.IsValid {
			confirmed = append(confirmed, item.Action)
		}
	}
	if len(confirmed) == 0 {
		return nil, ErrNothingSelected
	}
	return confirmed, nil
}

func (s *Session) checkIndex(index int) error {
	if index < 0 || index >= len(s.items) {
		return fmt.Errorf("confirm: index %d out of range [0, %d)", index, len(s.items))
	}
	return nil
}
