package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/gmc/tictactoe"
)

const (
	alice   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob     = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	matchID = "11111111-1111-1111-1111-111111111111"
)

func place(pos int) gmc.Action {
	data, _ := json.Marshal(struct {
		Pos int `json:"pos"`
	}{Pos: pos})
	return gmc.Action{Type: "place", Data: data}
}

func TestSubmitActionHappyPathAndTerminal(t *testing.T) {
	o, err := New(matchID, tictactoe.New(), []string{alice, bob}, 1, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	moves := []struct {
		player string
		pos    int
	}{
		{alice, 4}, {bob, 0}, {alice, 1}, {bob, 3}, {alice, 7},
	}
	var terminal bool
	var outcome gmc.Outcome
	for i, mv := range moves {
		_, term, oc, err := o.SubmitAction(ctx, mv.player, place(mv.pos))
		if err != nil {
			t.Fatalf("move %d: %v", i, err)
		}
		terminal, outcome = term, oc
	}
	if !terminal {
		t.Fatalf("expected terminal match after winning sequence")
	}
	if outcome.Winner == nil || *outcome.Winner != alice {
		t.Fatalf("expected alice to win, got %+v", outcome)
	}

	entries, err := o.GetTranscript(ctx)
	if err != nil {
		t.Fatalf("get transcript: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("expected transcript length 5, got %d", len(entries))
	}
}

func TestSubmitActionRejectsWrongTurn(t *testing.T) {
	o, _ := New(matchID, tictactoe.New(), []string{alice, bob}, 1, nil)
	ctx := context.Background()
	_, _, _, err := o.SubmitAction(ctx, bob, place(0))
	if !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn, got %v", err)
	}
}

func TestSubmitActionRejectsAfterTerminal(t *testing.T) {
	o, _ := New(matchID, tictactoe.New(), []string{alice, bob}, 1, nil)
	ctx := context.Background()
	seq := []struct {
		player string
		pos    int
	}{
		{alice, 4}, {bob, 0}, {alice, 1}, {bob, 3}, {alice, 7},
	}
	for _, mv := range seq {
		if _, _, _, err := o.SubmitAction(ctx, mv.player, place(mv.pos)); err != nil {
			t.Fatalf("setup move failed: %v", err)
		}
	}
	if _, _, _, err := o.SubmitAction(ctx, bob, place(2)); !errors.Is(err, ErrMatchTerminal) {
		t.Fatalf("expected ErrMatchTerminal, got %v", err)
	}
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	o, _ := New(matchID, tictactoe.New(), []string{alice, bob}, 1, nil)
	ctx := context.Background()

	// Two concurrent submits from the same player (alice, the current
	// player) racing for the same turn: whichever the mailbox goroutine
	// services first advances the turn to bob, so the other must then
	// observe a stale turn and fail with ErrNotYourTurn — regardless of
	// which goroutine the Go scheduler happened to run first.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	wg.Add(2)
	for _, pos := range []int{4, 0} {
		pos := pos
		go func() {
			defer wg.Done()
			_, _, _, err := o.SubmitAction(ctx, alice, place(pos))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successCount := 0
	for err := range results {
		if err == nil {
			successCount++
			continue
		}
		if !errors.Is(err, ErrNotYourTurn) {
			t.Fatalf("expected the losing submit to fail with ErrNotYourTurn, got %v", err)
		}
	}
	if successCount != 1 {
		t.Fatalf("expected exactly one submit to succeed under race, got %d", successCount)
	}
}

func TestFromReplayRebuildsIdenticalState(t *testing.T) {
	live, _ := New(matchID, tictactoe.New(), []string{alice, bob}, 1, nil)
	ctx := context.Background()
	seq := []struct {
		player string
		pos    int
	}{
		{alice, 4}, {bob, 0}, {alice, 1},
	}
	for _, mv := range seq {
		if _, _, _, err := live.SubmitAction(ctx, mv.player, place(mv.pos)); err != nil {
			t.Fatalf("setup: %v", err)
		}
	}
	entries, err := live.GetTranscript(ctx)
	if err != nil {
		t.Fatalf("transcript: %v", err)
	}

	moves := make([]PersistedMove, len(entries))
	for i, e := range entries {
		moves[i] = PersistedMove{PlayerAddress: e.PlayerAddress, Action: e.Action, ExpectedStateHash: e.StateHash}
	}

	replayed, err := FromReplay(matchID, tictactoe.New(), []string{alice, bob}, 1, nil, moves)
	if err != nil {
		t.Fatalf("from replay: %v", err)
	}

	liveHash, _ := live.GetTranscriptHash(ctx)
	replayedHash, _ := replayed.GetTranscriptHash(ctx)
	if liveHash != replayedHash {
		t.Fatalf("expected replayed transcript hash to match live: %q != %q", replayedHash, liveHash)
	}
}

func TestFromReplayDetectsMismatch(t *testing.T) {
	moves := []PersistedMove{
		{PlayerAddress: alice, Action: place(4), ExpectedStateHash: "not-the-real-hash"},
	}
	_, err := FromReplay(matchID, tictactoe.New(), []string{alice, bob}, 1, nil, moves)
	if !errors.Is(err, ErrReplayMismatch) {
		t.Fatalf("expected ErrReplayMismatch, got %v", err)
	}
}

func TestCloseRejectsFurtherWork(t *testing.T) {
	o, _ := New(matchID, tictactoe.New(), []string{alice, bob}, 1, nil)
	o.Close()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, _, err := o.SubmitAction(ctx, alice, place(4)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
