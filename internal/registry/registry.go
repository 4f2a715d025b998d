// Package registry implements the Match Registry (MR): a process-local
// index of all live matches by id, an invite-code table, and a
// process-wide emergency flag. Grounded on GameManager's
// games/playerToGame maps (internal/game/manager.go) but narrowed to hold
// only registry bookkeeping — per-match state/serialization lives in
// internal/orchestrator, not here (spec.md §4.2/§4.3 split the concerns
// the teacher keeps fused in one GameManager).
package registry

import (
	"sync"
	"time"

	"github.com/dorkfun/match-core/internal/orchestrator"
)

type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Match is the in-memory aggregate described by spec.md §3.4. Orchestrator
// is nil until the match becomes ACTIVE; after completion it stays set,
// closed.
type Match struct {
	MatchID        string
	GameID         string
	Players        []string
	Status         Status
	Winner         *string
	Reason         string
	CreatedAt      time.Time
	CompletedAt    time.Time
	LastActivityAt time.Time
	StakeWei       string
	InviteCode     string
	Orchestrator   *orchestrator.Orchestrator

	mu sync.Mutex
}

// Touch bumps lastActivityAt; spec.md §3.4 requires it monotonically
// non-decreasing within ACTIVE.
func (m *Match) Touch(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if now.After(m.LastActivityAt) {
		m.LastActivityAt = now
	}
}

// Registry is the process-wide match index (spec.md §4.3).
type Registry struct {
	mu            sync.RWMutex
	matches       map[string]*Match
	inviteCodes   map[string]string // inviteCode -> matchId
	emergencyMode bool
}

func New() *Registry {
	return &Registry{
		matches:     make(map[string]*Match),
		inviteCodes: make(map[string]string),
	}
}

func (r *Registry) Insert(m *Match) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[m.MatchID] = m
	if m.InviteCode != "" {
		r.inviteCodes[m.InviteCode] = m.MatchID
	}
}

func (r *Registry) Get(matchID string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.matches[matchID]
	return m, ok
}

func (r *Registry) GetByInviteCode(inviteCode string) (*Match, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	matchID, ok := r.inviteCodes[inviteCode]
	if !ok {
		return nil, false
	}
	m, ok := r.matches[matchID]
	return m, ok
}

func (r *Registry) ListActive() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []*Match{}
	for _, m := range r.matches {
		if m.Status == StatusWaiting || m.Status == StatusActive {
			out = append(out, m)
		}
	}
	return out
}

func (r *Registry) ListAll() []*Match {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Match, 0, len(r.matches))
	for _, m := range r.matches {
		out = append(out, m)
	}
	return out
}

// EvictCompleted removes match records whose CompletedAt is older than
// cutoff, matching cleanupCompletedMatches (spec.md §4.6).
func (r *Registry) EvictCompleted(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	evicted := 0
	for id, m := range r.matches {
		if m.Status == StatusCompleted && m.CompletedAt.Before(cutoff) {
			delete(r.matches, id)
			if m.InviteCode != "" {
				delete(r.inviteCodes, m.InviteCode)
			}
			evicted++
		}
	}
	return evicted
}

func (r *Registry) SetEmergencyMode(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emergencyMode = on
}

func (r *Registry) EmergencyMode() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.emergencyMode
}

// Clear empties the registry; used at the end of emergencyDrawAll
// (spec.md §4.3).
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches = make(map[string]*Match)
	r.inviteCodes = make(map[string]string)
}

func (r *Registry) Remove(matchID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.matches[matchID]; ok {
		if m.InviteCode != "" {
			delete(r.inviteCodes, m.InviteCode)
		}
		delete(r.matches, matchID)
	}
}
