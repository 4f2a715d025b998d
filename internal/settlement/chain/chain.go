// Package chain implements settlement.Coordinator against a real escrow
// contract. There is no live RPC endpoint in this exercise, so the
// transaction-submission path is a narrow stub; what is real here is the
// address/bytes32 shaping and the funding check, built on
// github.com/ethereum/go-ethereum's common subpackage (pulled into the
// module via tibfox-okinoko-in_a_row's indirect go-ethereum dependency and
// other_examples/manifests/ethereum-go-ethereum).
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/dorkfun/match-core/internal/settlement"
	"github.com/dorkfun/match-core/internal/transcript"
)

// Submitter is the narrow surface this adapter needs from an Ethereum
// client, kept separate from go-ethereum's much larger ethclient.Client so
// tests can fake it without dialing a node.
type Submitter interface {
	SendTransaction(ctx context.Context, to common.Address, data []byte) (txHash common.Hash, err error)
	IsFullyFunded(ctx context.Context, escrowAddress common.Address, matchIDBytes32 [32]byte) (bool, error)
}

type Adapter struct {
	submitter     Submitter
	escrowAddress common.Address
	gameIDTable   map[string]string
	minStakeWei   *big.Int

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func New(submitter Submitter, escrowAddress common.Address, gameIDTable map[string]string, minStakeWei *big.Int) *Adapter {
	return &Adapter{
		submitter:     submitter,
		escrowAddress: escrowAddress,
		gameIDTable:   gameIDTable,
		minStakeWei:   minStakeWei,
		timers:        make(map[string]*time.Timer),
	}
}

func matchIDBytes32(matchID string) ([32]byte, error) {
	hexStr, err := settlement.MatchIDToBytes32(matchID)
	if err != nil {
		return [32]byte{}, err
	}
	var out [32]byte
	b := common.FromHex(hexStr)
	copy(out[32-len(b):], b)
	return out, nil
}

func (a *Adapter) CreateMatch(ctx context.Context, matchID, gameIDBytes32Hex string, players []string, stakePerPlayer string) (string, error) {
	// Real submission would ABI-encode createMatch(bytes32,address[],uint256)
	// and call a.submitter.SendTransaction; left unimplemented since there
	// is no live contract ABI in this exercise.
	return "", fmt.Errorf("chain settlement: CreateMatch not wired to a live contract")
}

func (a *Adapter) ProposeSettlement(ctx context.Context, matchID string, winner *string, entries []transcript.Entry) (string, error) {
	return "", fmt.Errorf("chain settlement: ProposeSettlement not wired to a live contract")
}

func (a *Adapter) FinalizeSettlement(ctx context.Context, matchID string) (string, error) {
	return "", fmt.Errorf("chain settlement: FinalizeSettlement not wired to a live contract")
}

func (a *Adapter) CancelMatch(ctx context.Context, matchID string) (string, error) {
	return "", fmt.Errorf("chain settlement: CancelMatch not wired to a live contract")
}

func (a *Adapter) IsFullyFunded(ctx context.Context, matchID string) (bool, error) {
	id, err := matchIDBytes32(matchID)
	if err != nil {
		return false, err
	}
	return a.submitter.IsFullyFunded(ctx, a.escrowAddress, id)
}

func (a *Adapter) GetMinimumStake(ctx context.Context) (string, error) {
	return a.minStakeWei.String(), nil
}

func (a *Adapter) GetGameIDBytes32(gameID string) (string, bool) {
	v, ok := a.gameIDTable[gameID]
	return v, ok
}

func (a *Adapter) ScheduleFinalization(matchID string, delayMs int64, finalize func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if existing, ok := a.timers[matchID]; ok {
		existing.Stop()
	}
	a.timers[matchID] = time.AfterFunc(time.Duration(delayMs)*time.Millisecond, finalize)
}

func (a *Adapter) ReconcileOnStartup(ctx context.Context, pending []settlement.PendingProposal) (int, error) {
	// spec.md §9 Open Question #4: only proposals with a stored tx hash are
	// reconciled; matches never proposed (due to SC outage) are not
	// automatically re-proposed.
	count := 0
	for _, p := range pending {
		if p.SettlementTxHash == "" {
			continue
		}
		count++
	}
	return count, nil
}

var _ settlement.Coordinator = (*Adapter)(nil)
