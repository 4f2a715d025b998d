package numberguess

import (
	"encoding/json"
	"fmt"

	"github.com/dorkfun/match-core/internal/gmc"
)

type Module struct{}

func New() gmc.Module { return Module{} }

func (Module) Metadata() gmc.Metadata {
	return gmc.Metadata{
		GameID:     GameID,
		Name:       "Number Guess",
		MinPlayers: 1,
		MaxPlayers: 1,
	}
}

func (Module) Init(players []string, seed int64, _ json.RawMessage) (*gmc.State, error) {
	if len(players) != 1 {
		return nil, fmt.Errorf("numberguess: requires exactly 1 player, got %d", len(players))
	}
	b := boardData{Secret: seedToSecret(seed), Attempts: []int{}}
	return &gmc.State{
		GameID:        GameID,
		Players:       append([]string(nil), players...),
		CurrentPlayer: players[0],
		TurnNumber:    0,
		Data:          encode(b),
	}, nil
}

func (m Module) ValidateAction(state *gmc.State, playerID string, action gmc.Action) bool {
	if state.CurrentPlayer != playerID || m.IsTerminal(state) {
		return false
	}
	if action.Type != "guess" {
		return false
	}
	var a guessAction
	if err := json.Unmarshal(action.Data, &a); err != nil {
		return false
	}
	return a.Value >= lower && a.Value <= upper
}

func (m Module) ApplyAction(state *gmc.State, playerID string, action gmc.Action) (*gmc.State, error) {
	if !m.ValidateAction(state, playerID, action) {
		return nil, fmt.Errorf("numberguess: illegal action by %s", playerID)
	}
	var a guessAction
	if err := json.Unmarshal(action.Data, &a); err != nil {
		return nil, err
	}
	b, err := decode(state.Data)
	if err != nil {
		return nil, err
	}
	b.Attempts = append(append([]int(nil), b.Attempts...), a.Value)
	if a.Value == b.Secret {
		b.Won = true
	}

	return &gmc.State{
		GameID:        state.GameID,
		Players:       state.Players,
		CurrentPlayer: playerID,
		TurnNumber:    state.TurnNumber + 1,
		Data:          encode(b),
	}, nil
}

func (Module) IsTerminal(state *gmc.State) bool {
	b, err := decode(state.Data)
	if err != nil {
		return false
	}
	return b.Won || len(b.Attempts) >= maxAttempts
}

func (Module) GetOutcome(state *gmc.State) gmc.Outcome {
	b, _ := decode(state.Data)
	player := state.Players[0]
	if b.Won {
		return gmc.Outcome{
			Winner: &player,
			Draw:   false,
			Scores: map[string]float64{player: 1},
			Reason: "guessed",
		}
	}
	return gmc.Outcome{
		Winner: nil,
		Draw:   false,
		Scores: map[string]float64{player: 0},
		Reason: "attempts_exhausted",
	}
}

func (Module) GetObservation(state *gmc.State, playerID string) gmc.Observation {
	b, err := decode(state.Data)
	if err != nil {
		return gmc.Observation{PlayerID: playerID, Data: state.Data}
	}
	// Secret is only disclosed once the match is terminal; mid-game
	// observations redact it to attempt history only.
	view := struct {
		Attempts     []int `json:"attempts"`
		AttemptsLeft int   `json:"attemptsLeft"`
		Secret       *int  `json:"secret,omitempty"`
	}{
		Attempts:     b.Attempts,
		AttemptsLeft: maxAttempts - len(b.Attempts),
	}
	if b.Won || len(b.Attempts) >= maxAttempts {
		s := b.Secret
		view.Secret = &s
	}
	data, _ := json.Marshal(view)
	return gmc.Observation{PlayerID: playerID, Data: data}
}

func (m Module) GetLegalActions(state *gmc.State, playerID string) []gmc.Action {
	if state.CurrentPlayer != playerID || m.IsTerminal(state) {
		return []gmc.Action{}
	}
	// The legal range is wide (1..100); returning every value would bloat
	// the protocol for no client benefit, so legal actions describe the
	// bounds via a single sentinel action rather than enumerating them.
	data, _ := json.Marshal(guessAction{Value: lower})
	return []gmc.Action{{Type: "guess", Data: data}}
}
