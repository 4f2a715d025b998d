package recovery

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dorkfun/match-core/internal/settlement"
	"github.com/dorkfun/match-core/internal/store"
)

type stubSettlement struct {
	settlement.Coordinator
	received []settlement.PendingProposal
}

func (s *stubSettlement) ReconcileOnStartup(ctx context.Context, pending []settlement.PendingProposal) (int, error) {
	s.received = pending
	return len(pending), nil
}

func TestReconcileSettlementSkipsRecordsWithoutTxHash(t *testing.T) {
	d := &Driver{settlement: &stubSettlement{}}
	records := []store.MatchRecord{
		{MatchID: "m1", SettlementTxHash: sql.NullString{}},
		{MatchID: "m2", SettlementTxHash: sql.NullString{String: "0xabc", Valid: true}},
	}
	stub := d.settlement.(*stubSettlement)

	pending := pendingProposals(records)
	count, err := d.settlement.ReconcileOnStartup(context.Background(), pending)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 reconciled proposal, got %d", count)
	}
	if len(stub.received) != 1 || stub.received[0].MatchID != "m2" {
		t.Fatalf("expected only m2 to be reconciled, got %+v", stub.received)
	}
}
