package connectfour

import (
	"encoding/json"
	"testing"

	"github.com/dorkfun/match-core/internal/gmc"
)

const (
	alice = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob   = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

func drop(col int) gmc.Action {
	data, _ := json.Marshal(dropAction{Column: col})
	return gmc.Action{Type: "drop", Data: data}
}

func TestVerticalWin(t *testing.T) {
	m := New()
	state, err := m.Init([]string{alice, bob}, 1, nil)
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	// Alice stacks column 0 four times, Bob drops elsewhere each turn.
	seq := []struct {
		player string
		col    int
	}{
		{alice, 0}, {bob, 1},
		{alice, 0}, {bob, 1},
		{alice, 0}, {bob, 1},
		{alice, 0},
	}
	for i, mv := range seq {
		if !m.ValidateAction(state, mv.player, drop(mv.col)) {
			t.Fatalf("move %d: expected legal action for %s col %d", i, mv.player, mv.col)
		}
		next, err := m.ApplyAction(state, mv.player, drop(mv.col))
		if err != nil {
			t.Fatalf("move %d: apply: %v", i, err)
		}
		state = next
	}
	if !m.IsTerminal(state) {
		t.Fatalf("expected terminal state after vertical four")
	}
	outcome := m.GetOutcome(state)
	if outcome.Winner == nil || *outcome.Winner != alice {
		t.Fatalf("expected alice to win, got %+v", outcome)
	}
}

func TestColumnFullRejected(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	seq := []struct {
		player string
		col    int
	}{
		{alice, 0}, {bob, 0}, {alice, 0}, {bob, 0}, {alice, 0}, {bob, 0},
	}
	for _, mv := range seq {
		var err error
		state, err = m.ApplyAction(state, mv.player, drop(mv.col))
		if err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	// column 0 now has 6 discs, full; next player (alice) cannot drop there.
	if m.ValidateAction(state, alice, drop(0)) {
		t.Fatalf("expected full column to reject further drops")
	}
}

func TestNotYourTurnRejected(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	if m.ValidateAction(state, bob, drop(0)) {
		t.Fatalf("expected bob's action rejected on alice's turn")
	}
}

func TestDiagonalWin(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	// Build a rising diagonal for alice at (row,col) = (5,0),(4,1),(3,2),(2,3)
	// using bob filler drops underneath each later target cell: column 1
	// needs 1 filler, column 2 needs 2, column 3 needs 3, played through
	// column 4 as neutral filler to keep turns alternating correctly.
	seq := []struct {
		player string
		col    int
	}{
		{alice, 0}, // (5,0)=alice  [target]
		{bob, 1},   // (5,1)=bob    filler col1
		{alice, 1}, // (4,1)=alice  [target]
		{bob, 2},   // (5,2)=bob    filler1 col2
		{alice, 4}, // (5,4)=alice  neutral filler
		{bob, 2},   // (4,2)=bob    filler2 col2
		{alice, 2}, // (3,2)=alice  [target]
		{bob, 3},   // (5,3)=bob    filler1 col3
		{alice, 4}, // (4,4)=alice  neutral filler
		{bob, 3},   // (4,3)=bob    filler2 col3
		{alice, 4}, // (3,4)=alice  neutral filler
		{bob, 3},   // (3,3)=bob    filler3 col3
		{alice, 3}, // (2,3)=alice  [target] -> completes diagonal
	}
	for i, mv := range seq {
		var err error
		state, err = m.ApplyAction(state, mv.player, drop(mv.col))
		if err != nil {
			t.Fatalf("move %d (%s col %d) apply: %v", i, mv.player, mv.col, err)
		}
	}
	if !m.IsTerminal(state) {
		t.Fatalf("expected terminal diagonal win")
	}
	outcome := m.GetOutcome(state)
	if outcome.Winner == nil || *outcome.Winner != alice {
		t.Fatalf("expected alice to win diagonally, got %+v", outcome)
	}
}

func TestApplyActionDeterministic(t *testing.T) {
	m := New()
	s1, _ := m.Init([]string{alice, bob}, 1, nil)
	s2, _ := m.Init([]string{alice, bob}, 1, nil)
	r1, _ := m.ApplyAction(s1, alice, drop(3))
	r2, _ := m.ApplyAction(s2, alice, drop(3))
	b1, _ := json.Marshal(r1)
	b2, _ := json.Marshal(r2)
	if string(b1) != string(b2) {
		t.Fatalf("expected byte-identical states for identical inputs")
	}
}

func TestLegalActionsExcludeFullColumns(t *testing.T) {
	m := New()
	state, _ := m.Init([]string{alice, bob}, 1, nil)
	if len(m.GetLegalActions(state, alice)) != cols {
		t.Fatalf("expected %d legal actions on empty board", cols)
	}
	if len(m.GetLegalActions(state, bob)) != 0 {
		t.Fatalf("expected no legal actions for bob on alice's turn")
	}

	// Fill column 0 with alternating discs (no four in a row); it is then
	// alice's turn again and column 0 must no longer be offered.
	players := []string{alice, bob}
	for i := 0; i < rows; i++ {
		var err error
		state, err = m.ApplyAction(state, players[i%2], drop(0))
		if err != nil {
			t.Fatalf("fill move %d: %v", i, err)
		}
	}
	legal := m.GetLegalActions(state, alice)
	if len(legal) != cols-1 {
		t.Fatalf("expected %d legal actions with column 0 full, got %d", cols-1, len(legal))
	}
	for _, a := range legal {
		var d dropAction
		if err := json.Unmarshal(a.Data, &d); err != nil || d.Column == 0 {
			t.Fatalf("expected full column 0 to be excluded, got %s", a.Data)
		}
	}
}
