// Package tictactoe implements the Game Module Contract for standard 3x3
// tic-tac-toe. It grounds spec.md's scenarios S1 ("tic-tac-toe happy path"),
// S2 (reconnection) and S3 (move timeout).
package tictactoe

import (
	"encoding/json"
	"errors"
	"fmt"
)

const GameID = "tictactoe"

const boardSize = 9

var winLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // columns
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

type boardData struct {
	Board [boardSize]string `json:"board"`
}

type placeAction struct {
	Pos int `json:"pos"`
}

func decodeBoard(raw json.RawMessage) (boardData, error) {
	var b boardData
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("tictactoe: decode board: %w", err)
	}
	return b, nil
}

func encodeBoard(b boardData) json.RawMessage {
	out, _ := json.Marshal(b)
	return out
}

func winner(b boardData) string {
	for _, line := range winLines {
		a, c, d := b.Board[line[0]], b.Board[line[1]], b.Board[line[2]]
		if a != "" && a == c && c == d {
			return a
		}
	}
	return ""
}

func isFull(b boardData) bool {
	for _, cell := range b.Board {
		if cell == "" {
			return false
		}
	}
	return true
}

func legalPositions(b boardData) []int {
	out := []int{}
	for i, cell := range b.Board {
		if cell == "" {
			out = append(out, i)
		}
	}
	return out
}

func next(players []string, current string) string {
	for i, p := range players {
		if p == current {
			return players[(i+1)%len(players)]
		}
	}
	return players[0]
}

var ErrNotFound = errors.New("tictactoe: not found")
