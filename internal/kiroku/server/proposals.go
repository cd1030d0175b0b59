package server

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/kiroku-app/kiroku/internal/kiroku/action"
	"github.com/kiroku-app/kiroku/internal/kiroku/confirm"
)

// defaultProposalTTL is how long an unconfirmed proposal stays addressable.
// Proposals are cheap in-memory state; letting them lapse is the cancel path
// for a user who just closes the surface.
const defaultProposalTTL = 5 * time.Minute

// proposal is one pending confirmation session plus its addressing metadata.
type proposal struct {
	id        string
	workspace action.Workspace
	intent    string
	session   *confirm.Session
	expiresAt time.Time
}

// proposalStore holds pending proposals keyed by opaque ID. Expired entries
// are swept on every create and filtered on every get, so no janitor
// goroutine is needed for a single-user service.
type proposalStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]*proposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	if ttl <= 0 {
		ttl = defaultProposalTTL
	}
	return &proposalStore{ttl: ttl, m: make(map[string]*proposal)}
}

// create registers a new proposal and returns it with a fresh ID.
func (ps *proposalStore) create(ws action.Workspace, intent string, session *confirm.Session) *proposal {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	for id, p := range ps.m {
		if now.After(p.expiresAt) {
			delete(ps.m, id)
		}
	}

	p := &proposal{
		id:        generateProposalID(),
		workspace: ws,
		intent:    intent,
		session:   session,
		expiresAt: now.Add(ps.ttl),
	}
	ps.m[p.id] = p
	return p
}

// get returns the proposal for id, or false when it does not exist or has
// expired. Expired entries are removed on sight.
func (ps *proposalStore) get(id string) (*proposal, bool) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	p, ok := ps.m[id]
	if !ok {
		return nil, false
	}
	if time.Now().After(p.expiresAt) {
		delete(ps.m, id)
		return nil, false
	}
	return p, true
}

// remove deletes a proposal, reporting whether it existed.
func (ps *proposalStore) remove(id string) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	_, ok := ps.m[id]
	delete(ps.m, id)
	return ok
}

// generateProposalID returns an opaque random identifier.
func generateProposalID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return "p_" + hex.EncodeToString([]byte(time.Now().Format("150405.000000")))
	}
	return "p_" + hex.EncodeToString(bytes)
}
