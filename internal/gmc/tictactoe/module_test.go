package tictactoe

import (
	"encoding/json"
	"testing"

	"github.com/dorkfun/match-core/internal/gmc"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func place(pos int) gmc.Action {
	data, _ := json.Marshal(placeAction{Pos: pos})
	return gmc.Action{Type: "place", Data: data}
}

func TestHappyPathColumnWin(t *testing.T) {
	m := New()
	state, err := m.Init([]string{alice, bob}, 1, nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	// Spec.md S1: Alice {4}, Bob {0}, Alice {1}, Bob {3}, Alice {7} -> Alice
	// wins column 1,4,7.
	moves := []struct {
		player string
		pos    int
	}{
		{alice, 4}, {bob, 0}, {alice, 1}, {bob, 3}, {alice, 7},
	}

	for i, mv := range moves {
		if state.CurrentPlayer != mv.player {
			t.Fatalf("move %d: expected current player %s, got %s", i, mv.player, state.CurrentPlayer)
		}
		if !m.ValidateAction(state, mv.player, place(mv.pos)) {
			t.Fatalf("move %d: expected legal action", i)
		}
		next, err := m.ApplyAction(state, mv.player, place(mv.pos))
		if err != nil {
			t.Fatalf("move %d: apply: %v", i, err)
		}
		state = next
	}

	if !m.IsTerminal(state) {
		t.Fatalf("expected terminal state")
	}
	outcome := m.GetOutcome(state)
	if outcome.Winner == nil || *outcome.Winner != alice {
		t.Fatalf("expected alice to win, got %+v", outcome)
	}
	if outcome.Draw {
		t.Fatalf("expected non-draw outcome")
	}
}

func TestNotYourTurnRejected(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	if m.ValidateAction(state, bob, place(0)) {
		t.Fatalf("expected bob's action to be rejected on alice's turn")
	}
}

func TestOccupiedCellRejected(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	state, _ = m.ApplyAction(state, alice, place(0))
	if m.ValidateAction(state, bob, place(0)) {
		t.Fatalf("expected occupied cell to be rejected")
	}
}

func TestDrawWhenBoardFullNoLine(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	// X O X
	// X O O
	// O X X
	seq := []struct {
		player string
		pos    int
	}{
		{alice, 0}, {bob, 1}, {alice, 2},
		{bob, 4}, {alice, 3}, {bob, 5},
		{alice, 7}, {bob, 6}, {alice, 8},
	}
	for _, mv := range seq {
		var err error
		state, err = m.ApplyAction(state, mv.player, place(mv.pos))
		if err != nil {
			t.Fatalf("apply %d for %s: %v", mv.pos, mv.player, err)
		}
	}
	if !m.IsTerminal(state) {
		t.Fatalf("expected terminal board")
	}
	outcome := m.GetOutcome(state)
	if !outcome.Draw || outcome.Winner != nil {
		t.Fatalf("expected draw outcome, got %+v", outcome)
	}
}

func TestApplyActionDeterministic(t *testing.T) {
	m := New()
	s1, _ := m.Init([]string{alice, bob}, 1, nil)
	s2, _ := m.Init([]string{alice, bob}, 1, nil)
	r1, _ := m.ApplyAction(s1, alice, place(4))
	r2, _ := m.ApplyAction(s2, alice, place(4))
	b1, _ := json.Marshal(r1)
	b2, _ := json.Marshal(r2)
	if string(b1) != string(b2) {
		t.Fatalf("expected byte-identical states for identical inputs")
	}
}

func TestLegalActionsEmptyWhenNotYourTurn(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	if len(m.GetLegalActions(state, bob)) != 0 {
		t.Fatalf("expected no legal actions for bob on alice's turn")
	}
	if len(m.GetLegalActions(state, alice)) != 9 {
		t.Fatalf("expected 9 legal actions on empty board")
	}
}
