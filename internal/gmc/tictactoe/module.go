package tictactoe

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
		Name:       "Tic-Tac-Toe",
		MinPlayers: 2,
		MaxPlayers: 2,
	}
}

func (Module) Init(players []string, seed int64, _ json.RawMessage) (*gmc.State, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("tictactoe: requires exactly 2 players, got %d", len(players))
	}
	data := boardData{}
	return &gmc.State{
		GameID:        GameID,
		Players:       append([]string(nil), players...),
		CurrentPlayer: players[0],
		TurnNumber:    0,
		Data:          encodeBoard(data),
	}, nil
}

func (m Module) ValidateAction(state *gmc.State, playerID string, action gmc.Action) bool {
	if state.CurrentPlayer != playerID || m.IsTerminal(state) {
		return false
	}
	if action.Type != "place" {
		return false
	}
	var a placeAction
	if err := json.Unmarshal(action.Data, &a); err != nil {
		return false
	}
	if a.Pos < 0 || a.Pos >= boardSize {
		return false
	}
	b, err := decodeBoard(state.Data)
	if err != nil {
		return false
	}
	return b.Board[a.Pos] == ""
}

func (m Module) ApplyAction(state *gmc.State, playerID string, action gmc.Action) (*gmc.State, error) {
	if !m.ValidateAction(state, playerID, action) {
		return nil, fmt.Errorf("tictactoe: illegal action %s by %s", action.Type, playerID)
	}
	var a placeAction
	if err := json.Unmarshal(action.Data, &a); err != nil {
		return nil, err
	}
	b, err := decodeBoard(state.Data)
	if err != nil {
		return nil, err
	}
	b.Board[a.Pos] = playerID

	return &gmc.State{
		GameID:        state.GameID,
		Players:       state.Players,
		CurrentPlayer: next(state.Players, playerID),
		TurnNumber:    state.TurnNumber + 1,
		Data:          encodeBoard(b),
	}, nil
}

func (Module) IsTerminal(state *gmc.State) bool {
	b, err := decodeBoard(state.Data)
	if err != nil {
		return false
	}
	return winner(b) != "" || isFull(b)
}

func (m Module) GetOutcome(state *gmc.State) gmc.Outcome {
	b, _ := decodeBoard(state.Data)
	w := winner(b)
	scores := map[string]float64{}
	for _, p := range state.Players {
		scores[p] = 0
	}
	if w != "" {
		ptr := w
		scores[w] = 1
		for _, p := range state.Players {
			if p != w {
				scores[p] = 0
			}
		}
		return gmc.Outcome{Winner: &ptr, Draw: false, Scores: scores, Reason: "line"}
	}
	for _, p := range state.Players {
		scores[p] = 0.5
	}
	return gmc.Outcome{Winner: nil, Draw: true, Scores: scores, Reason: "board_full"}
}

func (Module) GetObservation(state *gmc.State, playerID string) gmc.Observation {
	return gmc.Observation{PlayerID: playerID, Data: state.Data}
}

func (m Module) GetLegalActions(state *gmc.State, playerID string) []gmc.Action {
	if state.CurrentPlayer != playerID || m.IsTerminal(state) {
		return []gmc.Action{}
	}
	b, err := decodeBoard(state.Data)
	if err != nil {
		return []gmc.Action{}
	}
	out := []gmc.Action{}
	for _, pos := range legalPositions(b) {
		data, _ := json.Marshal(placeAction{Pos: pos})
		out = append(out, gmc.Action{Type: "place", Data: data})
	}
	return out
}
