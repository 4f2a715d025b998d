// Package settlement defines the Settlement Coordinator (SC) contract
// (spec.md §4.9): the narrow interface the core drives against an external
// on-chain collaborator, plus two adapters. The core never implements
// on-chain logic itself — it only calls this interface and treats failures
// as non-fatal.
package settlement

import (
	"context"

	"github.com/dorkfun/match-core/internal/transcript"
)

// Coordinator is the contract every on-chain adapter implements. Every
// call returns a transaction hash (empty string) or an error; the core
// logs failures and proceeds, per spec.md §4.9 ("the core must treat
// failures as non-fatal and log").
type Coordinator interface {
	CreateMatch(ctx context.Context, matchID, gameIDBytes32 string, players []string, stakePerPlayer string) (txHash string, err error)
	ProposeSettlement(ctx context.Context, matchID string, winner *string, entries []transcript.Entry) (txHash string, err error)
	FinalizeSettlement(ctx context.Context, matchID string) (txHash string, err error)
	CancelMatch(ctx context.Context, matchID string) (txHash string, err error)
	IsFullyFunded(ctx context.Context, matchID string) (bool, error)
	GetMinimumStake(ctx context.Context) (stakeWei string, err error)
	GetGameIDBytes32(gameID string) (bytes32 string, ok bool)
	ScheduleFinalization(matchID string, delay int64 /* ms */, finalize func())
	ReconcileOnStartup(ctx context.Context, pending []PendingProposal) (count int, err error)
}

// PendingProposal is one previously-recorded settlement proposal awaiting
// reconciliation on boot (spec.md §9 Open Question #4: only proposals with
// a stored tx hash are considered).
type PendingProposal struct {
	MatchID         string
	SettlementTxHash string
}
