// Package gmc defines the Game Module Contract: the abstract capability set
// every game implements (spec.md §4.1). Every operation is a pure function
// over an explicit state value — no hidden globals, no mutation of inputs —
// so that transcript replay (internal/orchestrator) and on-chain dispute
// proofs can depend on byte-identical re-execution.
package gmc

import "encoding/json"

// Action is a tagged client-submitted value: a short type identifier plus an
// opaque payload the game module knows how to interpret.
type Action struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// State is the opaque, versioned, game-specific value produced by Init and
// replaced (never mutated) by every ApplyAction. Data is a canonical-form
// byte blob the module serializes/deserializes on demand (spec.md §9,
// "Dynamic data: record of unknown game payloads").
type State struct {
	GameID        string          `json:"gameId"`
	Players       []string        `json:"players"`
	CurrentPlayer string          `json:"currentPlayer"`
	TurnNumber    int             `json:"turnNumber"`
	Data          json.RawMessage `json:"data"`
}

// Outcome is returned by GetOutcome once a state is terminal.
type Outcome struct {
	Winner *string            `json:"winner"`
	Draw   bool               `json:"draw"`
	Scores map[string]float64 `json:"scores"`
	Reason string             `json:"reason"`
}

// Observation is a per-player projection of a State; it may redact
// opponent-private data.
type Observation struct {
	PlayerID string          `json:"playerId"`
	Data     json.RawMessage `json:"data"`
}

// Metadata describes a registered game: identity, player-count bounds, and
// an optional per-move timeout override.
type Metadata struct {
	GameID             string
	Name               string
	MinPlayers         int
	MaxPlayers         int
	MoveTimeoutOverride *int64 // nil => server default
}

// Module is the seven-function contract every game implements (spec.md
// §4.1). Implementations are linked at build time (spec.md §1 Non-goals —
// no runtime plugin SDK) by registering with a Registry at init time.
type Module interface {
	Metadata() Metadata

	// Init deterministically constructs the initial state for the given
	// players and seed. It must assert player-count bounds and set
	// CurrentPlayer to the first mover.
	Init(players []string, seed int64, config json.RawMessage) (*State, error)

	// ValidateAction reports whether action is legal for playerId to submit
	// against state: false unless playerId is the current player, state is
	// non-terminal, and action is in the legal set.
	ValidateAction(state *State, playerID string, action Action) bool

	// ApplyAction must not mutate state; it returns the next state. For
	// identical inputs it must produce identical outputs under the
	// canonical serializer.
	ApplyAction(state *State, playerID string, action Action) (*State, error)

	IsTerminal(state *State) bool

	// GetOutcome is only called once IsTerminal(state) is true.
	GetOutcome(state *State) Outcome

	GetObservation(state *State, playerID string) Observation

	// GetLegalActions returns an empty slice when it is not playerId's turn
	// or the match is terminal.
	GetLegalActions(state *State, playerID string) []Action
}

// Registry is a build-time-linked set of Module implementations keyed by
// gameId, mirroring how the teacher wires a single fixed game type at
// compile time rather than via reflection or a plugin loader.
type Registry struct {
	modules map[string]Module
}

func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

func (r *Registry) Register(m Module) {
	r.modules[m.Metadata().GameID] = m
}

func (r *Registry) Get(gameID string) (Module, bool) {
	m, ok := r.modules[gameID]
	return m, ok
}

func (r *Registry) List() []Metadata {
	out := make([]Metadata, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m.Metadata())
	}
	return out
}
