package chain

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dorkfun/match-core/internal/settlement"
)

const matchID = "11111111-2222-3333-4444-555555555555"

type fakeSubmitter struct {
	funded bool
}

func (f *fakeSubmitter) SendTransaction(ctx context.Context, to common.Address, data []byte) (common.Hash, error) {
	return common.Hash{}, nil
}

func (f *fakeSubmitter) IsFullyFunded(ctx context.Context, escrowAddress common.Address, matchIDBytes32 [32]byte) (bool, error) {
	return f.funded, nil
}

func TestIsFullyFundedDelegatesToSubmitter(t *testing.T) {
	sub := &fakeSubmitter{funded: true}
	a := New(sub, common.HexToAddress("0x1111111111111111111111111111111111111111"), map[string]string{"tictactoe": "0x01"}, big.NewInt(1))

	funded, err := a.IsFullyFunded(context.Background(), matchID)
	if err != nil {
		t.Fatalf("is funded: %v", err)
	}
	if !funded {
		t.Fatalf("expected funded=true from submitter")
	}
}

func TestMatchIDBytes32RoundTrips(t *testing.T) {
	id, err := matchIDBytes32(matchID)
	if err != nil {
		t.Fatalf("matchIDBytes32: %v", err)
	}
	if len(id) != 32 {
		t.Fatalf("expected a 32-byte array")
	}
	want, err := settlement.MatchIDToBytes32(matchID)
	if err != nil {
		t.Fatalf("MatchIDToBytes32: %v", err)
	}
	if got := "0x" + common.Bytes2Hex(id[:]); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestGameIDBytes32LookupMissesUnknownGame(t *testing.T) {
	a := New(&fakeSubmitter{}, common.Address{}, map[string]string{"tictactoe": "0x01"}, big.NewInt(1))
	if _, ok := a.GetGameIDBytes32("chess"); ok {
		t.Fatalf("expected chess to be absent from the table")
	}
}
