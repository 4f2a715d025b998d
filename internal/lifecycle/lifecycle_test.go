package lifecycle

import (
	"context"
	"testing"

	"github.com/dorkfun/match-core/internal/apperr"
	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/orchestrator"
	"github.com/dorkfun/match-core/internal/registry"
	"github.com/dorkfun/match-core/internal/store"
)

func TestSeedFromMatchIDIsDeterministic(t *testing.T) {
	a := seedFromMatchID("11111111-1111-1111-1111-111111111111")
	b := seedFromMatchID("11111111-1111-1111-1111-111111111111")
	if a != b {
		t.Fatalf("expected stable seed for the same matchId, got %d and %d", a, b)
	}
	c := seedFromMatchID("22222222-2222-2222-2222-222222222222")
	if a == c {
		t.Fatalf("expected different matchIds to produce different seeds")
	}
}

func TestGenerateInviteCodeIsShortAndUnique(t *testing.T) {
	a := generateInviteCode()
	b := generateInviteCode()
	if len(a) != 8 || len(b) != 8 {
		t.Fatalf("expected 8-char invite codes, got %q and %q", a, b)
	}
	if a == b {
		t.Fatalf("expected distinct invite codes")
	}
}

func TestCreditEarningsAddsStakeToLifetimeEarnings(t *testing.T) {
	p := &store.PlayerRecord{LifetimeEarningsWei: "500"}
	creditEarnings(p, "300")
	if p.LifetimeEarningsWei != "800" {
		t.Fatalf("expected 800, got %s", p.LifetimeEarningsWei)
	}
}

func TestCreditEarningsNoOpForFreeMatch(t *testing.T) {
	p := &store.PlayerRecord{LifetimeEarningsWei: "500"}
	creditEarnings(p, "0")
	if p.LifetimeEarningsWei != "500" {
		t.Fatalf("expected unchanged 500, got %s", p.LifetimeEarningsWei)
	}
}

func TestMapOrchestratorErrKinds(t *testing.T) {
	if apperr.KindOf(mapOrchestratorErr(orchestrator.ErrNotYourTurn)) != apperr.KindNotYourTurn {
		t.Fatalf("expected NotYourTurn kind")
	}
	if apperr.KindOf(mapOrchestratorErr(orchestrator.ErrMatchTerminal)) != apperr.KindMatchTerminal {
		t.Fatalf("expected MatchTerminal kind")
	}
	if apperr.KindOf(mapOrchestratorErr(orchestrator.ErrInvalidAction)) != apperr.KindInvalidAction {
		t.Fatalf("expected InvalidAction kind")
	}
}

// CreateMatch's emergency-mode and unknown-game checks are the first two
// things it does, so they can be exercised with every collaborator left
// nil — a real Service needs them for everything past that point.
func TestCreateMatchRejectsEmergencyMode(t *testing.T) {
	reg := registry.New()
	reg.SetEmergencyMode(true)
	s := New(nil, reg, nil, nil, nil, nil, gmc.NewRegistry())

	_, err := s.CreateMatch(context.Background(), "tictactoe", []string{"a", "b"}, nil, "0")
	if apperr.KindOf(err) != apperr.KindEmergencyMode {
		t.Fatalf("expected EmergencyMode error, got %v", err)
	}
}

func TestCreateMatchRejectsUnknownGame(t *testing.T) {
	s := New(nil, registry.New(), nil, nil, nil, nil, gmc.NewRegistry())

	_, err := s.CreateMatch(context.Background(), "nonexistent", []string{"a", "b"}, nil, "0")
	if apperr.KindOf(err) != apperr.KindUnknownGame {
		t.Fatalf("expected UnknownGame error, got %v", err)
	}
}

func TestSubmitMoveRejectsUnknownMatch(t *testing.T) {
	s := New(nil, registry.New(), nil, nil, nil, nil, gmc.NewRegistry())
	res := s.SubmitMove(context.Background(), "missing", "alice", gmc.Action{Type: "noop"})
	if apperr.KindOf(res.Error) != apperr.KindMatchNotFound {
		t.Fatalf("expected MatchNotFound, got %v", res.Error)
	}
}

func TestForfeitMatchIsNoOpWhenNotActive(t *testing.T) {
	reg := registry.New()
	reg.Insert(&registry.Match{MatchID: "m1", Status: registry.StatusWaiting, Players: []string{"a", "b"}})
	s := New(nil, reg, nil, nil, nil, nil, gmc.NewRegistry())

	if err := s.ForfeitMatch(context.Background(), "m1", "a"); err != nil {
		t.Fatalf("expected no-op (nil error) for a non-active match, got %v", err)
	}
	m, _ := reg.Get("m1")
	if m.Status != registry.StatusWaiting {
		t.Fatalf("expected status to remain WAITING, got %s", m.Status)
	}
}

func TestEmergencyDrawAllClearsRegistry(t *testing.T) {
	reg := registry.New()
	s := New(nil, reg, nil, nil, nil, nil, gmc.NewRegistry())

	if err := s.EmergencyDrawAll(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !reg.EmergencyMode() {
		t.Fatalf("expected emergency mode to be set")
	}
	if len(reg.ListActive()) != 0 {
		t.Fatalf("expected MR to be empty after emergencyDrawAll")
	}
}

func TestActivateStakedMatchIsFalseWhenNotWaiting(t *testing.T) {
	reg := registry.New()
	reg.Insert(&registry.Match{MatchID: "m1", Status: registry.StatusActive, Players: []string{"a", "b"}})
	s := New(nil, reg, nil, nil, nil, nil, gmc.NewRegistry())

	ok, err := s.ActivateStakedMatch(context.Background(), "m1")
	if err != nil || ok {
		t.Fatalf("expected (false, nil) for an already-active match, got (%v, %v)", ok, err)
	}
}
