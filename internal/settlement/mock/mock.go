// Package mock implements settlement.Coordinator as an in-memory
// double-entry ledger: escrow deposits, winner payouts and refunds.
// Grounded on internal/accounts/accounts.go's
// account-type-constants + locked Transfer idiom, translated from
// Postgres row locks to a single in-process mutex (there is no real chain
// here to settle against, so a single lock is sufficient — a real chain
// adapter would not need one at all since it defers locking to the
// contract).
package mock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"sync"
	"time"

	"github.com/dorkfun/match-core/internal/settlement"
	"github.com/dorkfun/match-core/internal/transcript"
)

const (
	AccountEscrow    = "escrow"
	AccountPlatform  = "platform"
	AccountWinnings  = "player_winnings"
)

var ErrInsufficientFunds = errors.New("mock settlement: insufficient funds")

type ledger struct {
	mu       sync.Mutex
	balances map[string]*big.Int // accountKey -> balance in wei
}

func newLedger() *ledger {
	return &ledger{balances: make(map[string]*big.Int)}
}

func (l *ledger) get(key string) *big.Int {
	if b, ok := l.balances[key]; ok {
		return b
	}
	return big.NewInt(0)
}

// transfer moves amount from debit to credit, mirroring accounts.go's
// Transfer: lock (here, the single ledger mutex), balance-check, update
// both sides, log.
func (l *ledger) transfer(debit, credit string, amount *big.Int, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	debitBal := l.get(debit)
	if debitBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s has %s, needs %s", ErrInsufficientFunds, debit, debitBal, amount)
	}
	l.balances[debit] = new(big.Int).Sub(debitBal, amount)
	l.balances[credit] = new(big.Int).Add(l.get(credit), amount)
	log.Printf("[SETTLEMENT-MOCK] transfer debit=%s credit=%s amount=%s reason=%s", debit, credit, amount, reason)
	return nil
}

func (l *ledger) credit(account string, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] = new(big.Int).Add(l.get(account), amount)
}

func escrowAccount(matchID string) string { return "escrow:" + matchID }
func winningsAccount(player string) string { return AccountWinnings + ":" + player }

type matchRecord struct {
	gameIDBytes32  string
	players        []string
	stakePerPlayer *big.Int
	funded         bool
	pendingTxHash  string
}

// Adapter is the mock settlement.Coordinator. Deposits are simulated via
// Deposit (test/harness hook — there is no real chain to observe), and
// funding state flips IsFullyFunded once every player has deposited.
type Adapter struct {
	mu           sync.Mutex
	matches      map[string]*matchRecord
	ledger       *ledger
	gameIDTable  map[string]string
	minStakeWei  *big.Int
	disputeTimers map[string]*time.Timer
}

func New(gameIDTable map[string]string, minStakeWei *big.Int) *Adapter {
	return &Adapter{
		matches:       make(map[string]*matchRecord),
		ledger:        newLedger(),
		gameIDTable:   gameIDTable,
		minStakeWei:   minStakeWei,
		disputeTimers: make(map[string]*time.Timer),
	}
}

func randomTxHash() string {
	b := make([]byte, 32)
	rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}

func (a *Adapter) CreateMatch(ctx context.Context, matchID, gameIDBytes32 string, players []string, stakePerPlayer string) (string, error) {
	stake, ok := new(big.Int).SetString(stakePerPlayer, 10)
	if !ok {
		return "", fmt.Errorf("mock settlement: invalid stake %q", stakePerPlayer)
	}
	a.mu.Lock()
	a.matches[matchID] = &matchRecord{
		gameIDBytes32:  gameIDBytes32,
		players:        append([]string(nil), players...),
		stakePerPlayer: stake,
	}
	a.mu.Unlock()
	return randomTxHash(), nil
}

// Deposit simulates an on-chain deposit confirmation for playerID into
// matchId's escrow. Once every player has deposited, IsFullyFunded
// reports true.
func (a *Adapter) Deposit(matchID, playerID string) error {
	a.mu.Lock()
	rec, ok := a.matches[matchID]
	a.mu.Unlock()
	if !ok {
		return fmt.Errorf("mock settlement: unknown match %s", matchID)
	}
	a.ledger.credit(escrowAccount(matchID), rec.stakePerPlayer)

	a.mu.Lock()
	defer a.mu.Unlock()
	escrowed := a.ledger.get(escrowAccount(matchID))
	total := new(big.Int).Mul(rec.stakePerPlayer, big.NewInt(int64(len(rec.players))))
	if escrowed.Cmp(total) >= 0 {
		rec.funded = true
	}
	return nil
}

func (a *Adapter) IsFullyFunded(ctx context.Context, matchID string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.matches[matchID]
	if !ok {
		return false, fmt.Errorf("mock settlement: unknown match %s", matchID)
	}
	return rec.funded, nil
}

func (a *Adapter) ProposeSettlement(ctx context.Context, matchID string, winner *string, entries []transcript.Entry) (string, error) {
	a.mu.Lock()
	rec, ok := a.matches[matchID]
	a.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("mock settlement: unknown match %s", matchID)
	}

	total := new(big.Int).Mul(rec.stakePerPlayer, big.NewInt(int64(len(rec.players))))
	if winner == nil {
		// Draw / emergency: refund each player their stake.
		for _, p := range rec.players {
			if err := a.ledger.transfer(escrowAccount(matchID), winningsAccount(p), rec.stakePerPlayer, "refund"); err != nil {
				return "", err
			}
		}
	} else {
		if err := a.ledger.transfer(escrowAccount(matchID), winningsAccount(*winner), total, "payout"); err != nil {
			return "", err
		}
	}

	txHash := randomTxHash()
	a.mu.Lock()
	rec.pendingTxHash = txHash
	a.mu.Unlock()
	return txHash, nil
}

func (a *Adapter) FinalizeSettlement(ctx context.Context, matchID string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.matches[matchID]
	if !ok {
		return "", fmt.Errorf("mock settlement: unknown match %s", matchID)
	}
	return rec.pendingTxHash, nil
}

func (a *Adapter) CancelMatch(ctx context.Context, matchID string) (string, error) {
	a.mu.Lock()
	rec, ok := a.matches[matchID]
	a.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("mock settlement: unknown match %s", matchID)
	}
	for _, p := range rec.players {
		escrowed := a.ledger.get(escrowAccount(matchID))
		if escrowed.Sign() <= 0 {
			continue
		}
		refund := rec.stakePerPlayer
		if escrowed.Cmp(refund) < 0 {
			refund = escrowed
		}
		if err := a.ledger.transfer(escrowAccount(matchID), winningsAccount(p), refund, "cancel_refund"); err != nil {
			return "", err
		}
	}
	return randomTxHash(), nil
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
	if existing, ok := a.disputeTimers[matchID]; ok {
		existing.Stop()
	}
	a.disputeTimers[matchID] = time.AfterFunc(time.Duration(delayMs)*time.Millisecond, finalize)
}

func (a *Adapter) ReconcileOnStartup(ctx context.Context, pending []settlement.PendingProposal) (int, error) {
	count := 0
	for _, p := range pending {
		a.mu.Lock()
		rec, ok := a.matches[p.MatchID]
		a.mu.Unlock()
		if !ok {
			continue
		}
		rec.pendingTxHash = p.SettlementTxHash
		count++
	}
	return count, nil
}

var _ settlement.Coordinator = (*Adapter)(nil)
