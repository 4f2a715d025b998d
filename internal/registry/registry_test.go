package registry

import (
	"testing"
	"time"
)

func newWaitingMatch(id, invite string) *Match {
	return &Match{
		MatchID:        id,
		GameID:         "tictactoe",
		Players:        []string{"0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"},
		Status:         StatusWaiting,
		CreatedAt:      time.Now(),
		LastActivityAt: time.Now(),
		StakeWei:       "0",
		InviteCode:     invite,
	}
}

func TestInsertAndGet(t *testing.T) {
	r := New()
	m := newWaitingMatch("match-1", "ABC123")
	r.Insert(m)

	got, ok := r.Get("match-1")
	if !ok || got.MatchID != "match-1" {
		t.Fatalf("expected to find match-1")
	}
	byInvite, ok := r.GetByInviteCode("ABC123")
	if !ok || byInvite.MatchID != "match-1" {
		t.Fatalf("expected to find match-1 by invite code")
	}
}

func TestListActiveExcludesCompleted(t *testing.T) {
	r := New()
	waiting := newWaitingMatch("match-1", "")
	active := newWaitingMatch("match-2", "")
	active.Status = StatusActive
	completed := newWaitingMatch("match-3", "")
	completed.Status = StatusCompleted
	completed.CompletedAt = time.Now()

	r.Insert(waiting)
	r.Insert(active)
	r.Insert(completed)

	listed := r.ListActive()
	if len(listed) != 2 {
		t.Fatalf("expected 2 active/waiting matches, got %d", len(listed))
	}
	if len(r.ListAll()) != 3 {
		t.Fatalf("expected 3 total matches")
	}
}

func TestEvictCompletedRemovesOldOnly(t *testing.T) {
	r := New()
	old := newWaitingMatch("match-old", "")
	old.Status = StatusCompleted
	old.CompletedAt = time.Now().Add(-2 * time.Hour)
	recent := newWaitingMatch("match-recent", "")
	recent.Status = StatusCompleted
	recent.CompletedAt = time.Now()

	r.Insert(old)
	r.Insert(recent)

	evicted := r.EvictCompleted(time.Now().Add(-1 * time.Hour))
	if evicted != 1 {
		t.Fatalf("expected 1 eviction, got %d", evicted)
	}
	if _, ok := r.Get("match-old"); ok {
		t.Fatalf("expected old match to be evicted")
	}
	if _, ok := r.Get("match-recent"); !ok {
		t.Fatalf("expected recent match to remain")
	}
}

func TestEmergencyModeFlag(t *testing.T) {
	r := New()
	if r.EmergencyMode() {
		t.Fatalf("expected emergency mode off by default")
	}
	r.SetEmergencyMode(true)
	if !r.EmergencyMode() {
		t.Fatalf("expected emergency mode on after SetEmergencyMode(true)")
	}
}

func TestClearEmptiesRegistryAndInviteCodes(t *testing.T) {
	r := New()
	r.Insert(newWaitingMatch("match-1", "ABC123"))
	r.Clear()
	if len(r.ListAll()) != 0 {
		t.Fatalf("expected registry empty after Clear")
	}
	if _, ok := r.GetByInviteCode("ABC123"); ok {
		t.Fatalf("expected invite code table cleared")
	}
}

func TestTouchIsMonotonicNonDecreasing(t *testing.T) {
	m := newWaitingMatch("match-1", "")
	base := time.Now()
	m.LastActivityAt = base
	m.Touch(base.Add(-time.Minute))
	if !m.LastActivityAt.Equal(base) {
		t.Fatalf("expected Touch with an earlier time to be a no-op")
	}
	later := base.Add(time.Minute)
	m.Touch(later)
	if !m.LastActivityAt.Equal(later) {
		t.Fatalf("expected Touch with a later time to advance lastActivityAt")
	}
}
