package mock

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/dorkfun/match-core/internal/transcript"
)

const (
	alice   = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	bob     = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	matchID = "11111111-1111-1111-1111-111111111111"
)

func newTestAdapter() *Adapter {
	return New(map[string]string{"tictactoe": "0x01"}, big.NewInt(1000))
}

func TestDepositFundsMatchOnceAllPlayersPay(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	if _, err := a.CreateMatch(ctx, matchID, "0x01", []string{alice, bob}, "500"); err != nil {
		t.Fatalf("create match: %v", err)
	}
	funded, err := a.IsFullyFunded(ctx, matchID)
	if err != nil {
		t.Fatalf("is funded: %v", err)
	}
	if funded {
		t.Fatalf("expected unfunded before deposits")
	}

	if err := a.Deposit(matchID, alice); err != nil {
		t.Fatalf("deposit alice: %v", err)
	}
	funded, _ = a.IsFullyFunded(ctx, matchID)
	if funded {
		t.Fatalf("expected unfunded after only one deposit")
	}

	if err := a.Deposit(matchID, bob); err != nil {
		t.Fatalf("deposit bob: %v", err)
	}
	funded, _ = a.IsFullyFunded(ctx, matchID)
	if !funded {
		t.Fatalf("expected fully funded after both deposits")
	}
}

func TestProposeSettlementPaysWinnerTheFullPot(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	a.CreateMatch(ctx, matchID, "0x01", []string{alice, bob}, "500")
	a.Deposit(matchID, alice)
	a.Deposit(matchID, bob)

	winner := alice
	txHash, err := a.ProposeSettlement(ctx, matchID, &winner, []transcript.Entry{})
	if err != nil {
		t.Fatalf("propose: %v", err)
	}
	if txHash == "" {
		t.Fatalf("expected non-empty tx hash")
	}

	if got := a.ledger.get(winningsAccount(alice)); got.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("expected alice to receive the full pot (1000), got %s", got)
	}
	if got := a.ledger.get(escrowAccount(matchID)); got.Sign() != 0 {
		t.Fatalf("expected escrow drained to zero, got %s", got)
	}
}

func TestProposeSettlementDrawRefundsBothPlayers(t *testing.T) {
	a := newTestAdapter()
	ctx := context.Background()
	a.CreateMatch(ctx, matchID, "0x01", []string{alice, bob}, "500")
	a.Deposit(matchID, alice)
	a.Deposit(matchID, bob)

	if _, err := a.ProposeSettlement(ctx, matchID, nil, []transcript.Entry{}); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if got := a.ledger.get(winningsAccount(alice)); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected alice refunded her stake, got %s", got)
	}
	if got := a.ledger.get(winningsAccount(bob)); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("expected bob refunded his stake, got %s", got)
	}
}

func TestGetGameIDBytes32UnknownGameIsAbsent(t *testing.T) {
	a := newTestAdapter()
	if _, ok := a.GetGameIDBytes32("nonexistent"); ok {
		t.Fatalf("expected unknown gameId to be absent from the table")
	}
	if v, ok := a.GetGameIDBytes32("tictactoe"); !ok || v != "0x01" {
		t.Fatalf("expected tictactoe to resolve to 0x01, got %q ok=%v", v, ok)
	}
}

func TestScheduleFinalizationInvokesCallback(t *testing.T) {
	a := newTestAdapter()
	done := make(chan struct{})
	a.ScheduleFinalization(matchID, 1, func() { close(done) })
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected finalization callback to fire")
	}
}
