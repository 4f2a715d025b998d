// Package connectfour implements a second, independent Game Module Contract
// game (7 columns x 6 rows, four-in-a-row) to exercise GMC generality beyond
// tic-tac-toe. The drop-to-floor column mechanic and four-directional win
// scan from a single placed disc are grounded on the
// tibfox-okinoko-in_a_row contract's grid/pattern-check idiom.
package connectfour

import (
	"encoding/json"
	"fmt"

	"github.com/dorkfun/match-core/internal/gmc"
)

const GameID = "connectfour"

const (
	rows   = 6
	cols   = 7
	toWin  = 4
)

type boardData struct {
	// Grid is row-major, row 0 is the top; "" is empty.
	Grid [rows][cols]string `json:"grid"`
}

type dropAction struct {
	Column int `json:"column"`
}

func decode(raw json.RawMessage) (boardData, error) {
	var b boardData
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("connectfour: decode: %w", err)
	}
	return b, nil
}

func encode(b boardData) json.RawMessage {
	out, _ := json.Marshal(b)
	return out
}

// dropRow returns the row a disc dropped into column settles at, or -1 if
// the column is full.
func dropRow(b boardData, column int) int {
	for r := rows - 1; r >= 0; r-- {
		if b.Grid[r][column] == "" {
			return r
		}
	}
	return -1
}

var directions = [4][2]int{{0, 1}, {1, 0}, {1, 1}, {1, -1}}

func winsFrom(b boardData, row, col int) bool {
	mark := b.Grid[row][col]
	if mark == "" {
		return false
	}
	for _, d := range directions {
		count := 1
		fr, fc := row+d[0], col+d[1]
		for fr >= 0 && fr < rows && fc >= 0 && fc < cols && b.Grid[fr][fc] == mark {
			count++
			fr += d[0]
			fc += d[1]
		}
		br, bc := row-d[0], col-d[1]
		for br >= 0 && br < rows && bc >= 0 && bc < cols && b.Grid[br][bc] == mark {
			count++
			br -= d[0]
			bc -= d[1]
		}
		if count >= toWin {
			return true
		}
	}
	return false
}

func boardFull(b boardData) bool {
	for c := 0; c < cols; c++ {
		if b.Grid[0][c] == "" {
			return false
		}
	}
	return true
}

func next(players []string, current string) string {
	for i, p := range players {
		if p == current {
			return players[(i+1)%len(players)]
		}
	}
	return players[0]
}

type Module struct{}

func New() gmc.Module { return Module{} }

func (Module) Metadata() gmc.Metadata {
	return gmc.Metadata{GameID: GameID, Name: "Connect Four", MinPlayers: 2, MaxPlayers: 2}
}

func (Module) Init(players []string, seed int64, _ json.RawMessage) (*gmc.State, error) {
	if len(players) != 2 {
		return nil, fmt.Errorf("connectfour: requires exactly 2 players, got %d", len(players))
	}
	return &gmc.State{
		GameID:        GameID,
		Players:       append([]string(nil), players...),
		CurrentPlayer: players[0],
		TurnNumber:    0,
		Data:          encode(boardData{}),
	}, nil
}

func (m Module) winningState(b boardData) (bool, string) {
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if b.Grid[r][c] != "" && winsFrom(b, r, c) {
				return true, b.Grid[r][c]
			}
		}
	}
	return false, ""
}

func (m Module) ValidateAction(state *gmc.State, playerID string, action gmc.Action) bool {
	if state.CurrentPlayer != playerID || m.IsTerminal(state) {
		return false
	}
	if action.Type != "drop" {
		return false
	}
	var a dropAction
	if err := json.Unmarshal(action.Data, &a); err != nil {
		return false
	}
	if a.Column < 0 || a.Column >= cols {
		return false
	}
	b, err := decode(state.Data)
	if err != nil {
		return false
	}
	return dropRow(b, a.Column) >= 0
}

func (m Module) ApplyAction(state *gmc.State, playerID string, action gmc.Action) (*gmc.State, error) {
	if !m.ValidateAction(state, playerID, action) {
		return nil, fmt.Errorf("connectfour: illegal action by %s", playerID)
	}
	var a dropAction
	if err := json.Unmarshal(action.Data, &a); err != nil {
		return nil, err
	}
	b, err := decode(state.Data)
	if err != nil {
		return nil, err
	}
	row := dropRow(b, a.Column)
	b.Grid[row][a.Column] = playerID

	return &gmc.State{
		GameID:        state.GameID,
		Players:       state.Players,
		CurrentPlayer: next(state.Players, playerID),
		TurnNumber:    state.TurnNumber + 1,
		Data:          encode(b),
	}, nil
}

func (m Module) IsTerminal(state *gmc.State) bool {
	b, err := decode(state.Data)
	if err != nil {
		return false
	}
	if won, _ := m.winningState(b); won {
		return true
	}
	return boardFull(b)
}

func (m Module) GetOutcome(state *gmc.State) gmc.Outcome {
	b, _ := decode(state.Data)
	scores := map[string]float64{}
	if won, who := m.winningState(b); won {
		for _, p := range state.Players {
			if p == who {
				scores[p] = 1
			} else {
				scores[p] = 0
			}
		}
		ptr := who
		return gmc.Outcome{Winner: &ptr, Draw: false, Scores: scores, Reason: "four_in_a_row"}
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
	b, err := decode(state.Data)
	if err != nil {
		return []gmc.Action{}
	}
	out := []gmc.Action{}
	for c := 0; c < cols; c++ {
		if dropRow(b, c) >= 0 {
			data, _ := json.Marshal(dropAction{Column: c})
			out = append(out, gmc.Action{Type: "drop", Data: data})
		}
	}
	return out
}
