// Package orchestrator implements the Match Orchestrator (MO): one
// instance per active match, owning a single gmc.Module state and
// producing a transcript as actions are applied.
//
// Every match's MO runs its own mailbox goroutine so that operations
// against different matches never contend a shared lock — a deliberate
// departure from the teacher's GameManager, which serializes all games
// behind one sync.RWMutex (internal/game/manager.go's gm.mu). spec.md §5
// requires per-match serialization without cross-match blocking; a single
// global lock cannot provide that under concurrent load, so each
// Orchestrator owns its own request channel and runs its own goroutine,
// narrowing the teacher's single-writer discipline to match scope (see
// DESIGN.md Open Question #2).
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/transcript"
)

var (
	ErrNotYourTurn    = errors.New("orchestrator: not your turn")
	ErrInvalidAction  = errors.New("orchestrator: invalid action")
	ErrMatchTerminal  = errors.New("orchestrator: match is terminal")
	ErrReplayMismatch = errors.New("orchestrator: replay hash mismatch")
	ErrClosed         = errors.New("orchestrator: orchestrator closed")
)

// PersistedMove is one previously-applied move, as read back from storage,
// used by fromReplay to rehydrate an Orchestrator after a crash.
type PersistedMove struct {
	PlayerAddress     string
	Action            gmc.Action
	ExpectedStateHash string
}

type request struct {
	fn   func()
	done chan struct{}
}

// Orchestrator wraps one gmc.Module instance behind a single-goroutine
// mailbox. All public methods enqueue work onto that goroutine and block
// for the reply, guaranteeing total ordering of moves within one match
// without requiring callers to hold any lock themselves.
type Orchestrator struct {
	matchID    string
	module     gmc.Module
	state      *gmc.State
	transcript *transcript.Transcript
	mailbox    chan request
	closed     chan struct{}
}

// New constructs a fresh Orchestrator for a newly-activated match.
func New(matchID string, module gmc.Module, players []string, seed int64, config []byte) (*Orchestrator, error) {
	state, err := module.Init(players, seed, config)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: init: %w", err)
	}
	o := &Orchestrator{
		matchID:    matchID,
		module:     module,
		state:      state,
		transcript: transcript.New(matchID),
		mailbox:    make(chan request),
		closed:     make(chan struct{}),
	}
	go o.run()
	return o, nil
}

// FromReplay rebuilds an Orchestrator by re-executing ApplyAction over a
// persisted move log, verifying each step's stateHash against what was
// stored (spec.md §4.2's fromReplay invariant). On mismatch it returns
// ErrReplayMismatch and the caller must refuse reactivation.
func FromReplay(matchID string, module gmc.Module, players []string, seed int64, config []byte, moves []PersistedMove) (*Orchestrator, error) {
	state, err := module.Init(players, seed, config)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: replay init: %w", err)
	}
	tr := transcript.New(matchID)
	for i, mv := range moves {
		next, err := module.ApplyAction(state, mv.PlayerAddress, mv.Action)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: replay move %d: %w", i, err)
		}
		entry, err := tr.Append(mv.PlayerAddress, mv.Action, next)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: replay hash move %d: %w", i, err)
		}
		if entry.StateHash != mv.ExpectedStateHash {
			return nil, fmt.Errorf("%w: move %d expected %s got %s", ErrReplayMismatch, i, mv.ExpectedStateHash, entry.StateHash)
		}
		state = next
	}
	o := &Orchestrator{
		matchID:    matchID,
		module:     module,
		state:      state,
		transcript: tr,
		mailbox:    make(chan request),
		closed:     make(chan struct{}),
	}
	go o.run()
	return o, nil
}

func (o *Orchestrator) run() {
	for {
		select {
		case req := <-o.mailbox:
			req.fn()
			close(req.done)
		case <-o.closed:
			return
		}
	}
}

// exec runs fn on the mailbox goroutine and waits for it to finish. It
// returns ErrClosed if the orchestrator has already been closed, and
// honors ctx cancellation while waiting to be scheduled.
func (o *Orchestrator) exec(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case <-o.closed:
		return ErrClosed
	default:
	}
	select {
	case o.mailbox <- request{fn: fn, done: done}:
	case <-o.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitAction validates and applies action for playerID, appending a
// transcript entry on success. Spec invariant 3 (turn exclusivity): this
// only succeeds if playerID is the current player at the time it runs on
// the mailbox goroutine, not at call time — the mailbox serialization is
// what makes that check race-free.
func (o *Orchestrator) SubmitAction(ctx context.Context, playerID string, action gmc.Action) (next *gmc.State, terminal bool, outcome gmc.Outcome, err error) {
	execErr := o.exec(ctx, func() {
		if o.module.IsTerminal(o.state) {
			err = ErrMatchTerminal
			return
		}
		if o.state.CurrentPlayer != playerID {
			err = ErrNotYourTurn
			return
		}
		if !o.module.ValidateAction(o.state, playerID, action) {
			err = ErrInvalidAction
			return
		}
		newState, applyErr := o.module.ApplyAction(o.state, playerID, action)
		if applyErr != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidAction, applyErr)
			return
		}
		if _, hashErr := o.transcript.Append(playerID, action, newState); hashErr != nil {
			err = hashErr
			return
		}
		o.state = newState
		next = newState
		terminal = o.module.IsTerminal(newState)
		if terminal {
			outcome = o.module.GetOutcome(newState)
		}
	})
	if execErr != nil {
		return nil, false, gmc.Outcome{}, execErr
	}
	return next, terminal, outcome, err
}

func (o *Orchestrator) GetObservation(ctx context.Context, playerID string) (gmc.Observation, error) {
	var obs gmc.Observation
	err := o.exec(ctx, func() {
		obs = o.module.GetObservation(o.state, playerID)
	})
	return obs, err
}

func (o *Orchestrator) GetLegalActions(ctx context.Context, playerID string) ([]gmc.Action, error) {
	var actions []gmc.Action
	err := o.exec(ctx, func() {
		actions = o.module.GetLegalActions(o.state, playerID)
	})
	return actions, err
}

func (o *Orchestrator) GetCurrentPlayer(ctx context.Context) (string, error) {
	var player string
	err := o.exec(ctx, func() {
		player = o.state.CurrentPlayer
	})
	return player, err
}

func (o *Orchestrator) IsTerminal(ctx context.Context) (bool, error) {
	var terminal bool
	err := o.exec(ctx, func() {
		terminal = o.module.IsTerminal(o.state)
	})
	return terminal, err
}

func (o *Orchestrator) GetOutcome(ctx context.Context) (gmc.Outcome, error) {
	var outcome gmc.Outcome
	err := o.exec(ctx, func() {
		outcome = o.module.GetOutcome(o.state)
	})
	return outcome, err
}

func (o *Orchestrator) GetTranscript(ctx context.Context) ([]transcript.Entry, error) {
	var entries []transcript.Entry
	err := o.exec(ctx, func() {
		entries = o.transcript.Entries()
	})
	return entries, err
}

func (o *Orchestrator) GetTranscriptHash(ctx context.Context) (string, error) {
	var hash string
	var hashErr error
	err := o.exec(ctx, func() {
		hash, hashErr = o.transcript.Hash()
	})
	if err != nil {
		return "", err
	}
	return hash, hashErr
}

// Close stops accepting work; callers must not call any other method
// after Close returns (or concurrently with it).
func (o *Orchestrator) Close() {
	select {
	case <-o.closed:
		return
	default:
		close(o.closed)
	}
}
