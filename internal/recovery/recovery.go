// Package recovery implements the Recovery Driver (RD, spec.md §4.6/§9):
// the boot-time sequence that runs once before the process accepts new
// connections, rehydrating whatever state the previous process left
// behind in the database.
//
// Grounded on GameManager.InitializeManager/RehydrateQueueFromDB's
// boot-time goroutine-launch sequence (query DB, check before re-pushing
// to avoid duplicates, log and continue on per-row failure rather than
// aborting startup), generalized here from queue rehydration to match
// rehydration plus replay and settlement reconciliation.
package recovery

import (
	"context"
	"fmt"
	"log"

	"github.com/dorkfun/match-core/internal/lifecycle"
	"github.com/dorkfun/match-core/internal/settlement"
	"github.com/dorkfun/match-core/internal/store"
)

// Driver runs the startup recovery sequence exactly once, before the
// server begins accepting matchmaking or session traffic.
type Driver struct {
	lifecycle  *lifecycle.Service
	store      *store.Store
	settlement settlement.Coordinator
}

func New(lc *lifecycle.Service, st *store.Store, sc settlement.Coordinator) *Driver {
	return &Driver{lifecycle: lc, store: st, settlement: sc}
}

// Run restores every WAITING/ACTIVE match from the database (replaying
// ACTIVE matches through fromReplay and re-registering them with MR), then
// reconciles any settlement proposal that was submitted but never
// confirmed finalized before the previous process exited. A settlement
// reconciliation failure is logged, not fatal: the matches themselves are
// already safely restored, and a stuck settlement can still be retried
// later via ScheduleFinalization.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.lifecycle.RestoreActiveMatches(ctx); err != nil {
		return fmt.Errorf("recovery: restore active matches: %w", err)
	}

	count, err := d.reconcileSettlement(ctx)
	if err != nil {
		log.Printf("[RECOVERY] settlement reconciliation failed: %v", err)
	} else if count > 0 {
		log.Printf("[RECOVERY] reconciled %d pending settlement(s)", count)
	}

	return nil
}

func (d *Driver) reconcileSettlement(ctx context.Context) (int, error) {
	records, err := d.store.ListPendingSettlement(ctx)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return d.settlement.ReconcileOnStartup(ctx, pendingProposals(records))
}

// pendingProposals keeps only the records that carry a settlement tx hash.
func pendingProposals(records []store.MatchRecord) []settlement.PendingProposal {
	pending := make([]settlement.PendingProposal, 0, len(records))
	for _, rec := range records {
		txHash := ""
		if rec.SettlementTxHash.Valid {
			txHash = rec.SettlementTxHash.String
		}
		if txHash == "" {
			continue
		}
		pending = append(pending, settlement.PendingProposal{
			MatchID:          rec.MatchID,
			SettlementTxHash: txHash,
		})
	}
	return pending
}
