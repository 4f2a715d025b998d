package transcript

import (
	"encoding/json"
	"testing"

	"github.com/dorkfun/match-core/internal/gmc"
)

const (
	alice   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob     = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	matchID = "11111111-1111-1111-1111-111111111111"
)

func stateAt(turn int, data string) *gmc.State {
	return &gmc.State{
		GameID:        "tictactoe",
		Players:       []string{alice, bob},
		CurrentPlayer: alice,
		TurnNumber:    turn,
		Data:          json.RawMessage(data),
	}
}

func TestAppendChainsPrevHash(t *testing.T) {
	tr := New(matchID)

	e0, err := tr.Append(alice, gmc.Action{Type: "place", Data: json.RawMessage(`{"pos":4}`)}, stateAt(1, `{"board":["","","","","a","","","",""]}`))
	if err != nil {
		t.Fatalf("append 0: %v", err)
	}
	if e0.PrevHash != "" {
		t.Fatalf("expected empty prevHash at sequence 0, got %q", e0.PrevHash)
	}

	e1, err := tr.Append(bob, gmc.Action{Type: "place", Data: json.RawMessage(`{"pos":0}`)}, stateAt(2, `{"board":["b","","","","a","","","",""]}`))
	if err != nil {
		t.Fatalf("append 1: %v", err)
	}
	if e1.PrevHash != e0.StateHash {
		t.Fatalf("expected entry 1 prevHash %q to equal entry 0 stateHash %q", e1.PrevHash, e0.StateHash)
	}
	if e1.Sequence != 1 {
		t.Fatalf("expected sequence 1, got %d", e1.Sequence)
	}

	if err := Verify(tr.Entries()); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestStateHashDeterministic(t *testing.T) {
	s := stateAt(1, `{"board":["","","","","a","","","",""]}`)
	h1, err := hashState(s, matchID)
	if err != nil {
		t.Fatalf("hash 1: %v", err)
	}
	h2, err := hashState(s, matchID)
	if err != nil {
		t.Fatalf("hash 2: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected deterministic state hash, got %q != %q", h1, h2)
	}

	other := New("22222222-2222-2222-2222-222222222222")
	e, err := other.Append(alice, gmc.Action{Type: "place"}, s)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if e.StateHash == h1 {
		t.Fatalf("expected different matchId to change the state hash")
	}
}

func TestVerifyRejectsBrokenChain(t *testing.T) {
	entries := []Entry{
		{Sequence: 0, PlayerAddress: alice, StateHash: "h0", PrevHash: ""},
		{Sequence: 1, PlayerAddress: bob, StateHash: "h1", PrevHash: "WRONG"},
	}
	if err := Verify(entries); err == nil {
		t.Fatalf("expected verify to reject mismatched prevHash")
	}
}

func TestTranscriptHashStableAcrossRebuild(t *testing.T) {
	tr := New(matchID)
	tr.Append(alice, gmc.Action{Type: "place", Data: json.RawMessage(`{"pos":4}`)}, stateAt(1, `{"board":["","","","","a","","","",""]}`))
	tr.Append(bob, gmc.Action{Type: "place", Data: json.RawMessage(`{"pos":0}`)}, stateAt(2, `{"board":["b","","","","a","","","",""]}`))

	h1, err := tr.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	rebuilt := FromEntries(matchID, tr.Entries())
	h2, err := rebuilt.Hash()
	if err != nil {
		t.Fatalf("rebuilt hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected rebuilt transcript to produce the same hash: %q != %q", h1, h2)
	}
}
