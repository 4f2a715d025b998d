// Package numberguess implements a single-player Game Module Contract game:
// guess a secret number, deterministically derived from the match seed, in
// a bounded number of attempts. It exercises the minPlayers=1 path of
// spec.md §4.5 (queue bypass straight into an active match) which the
// teacher has no equivalent of — built directly from the contract shape in
// internal/gmc rather than any single teacher file.
package numberguess

import (
	"encoding/json"
	"fmt"
)

const GameID = "numberguess"

const (
	lower       = 1
	upper       = 100
	maxAttempts = 7
)

type boardData struct {
	Secret   int   `json:"secret"`
	Attempts []int `json:"attempts"`
	Won      bool  `json:"won"`
}

type guessAction struct {
	Value int `json:"value"`
}

func decode(raw json.RawMessage) (boardData, error) {
	var b boardData
	if len(raw) == 0 {
		return b, nil
	}
	if err := json.Unmarshal(raw, &b); err != nil {
		return b, fmt.Errorf("numberguess: decode: %w", err)
	}
	return b, nil
}

func encode(b boardData) json.RawMessage {
	out, _ := json.Marshal(b)
	return out
}

// seedToSecret maps a match seed into the playable range. It is
// intentionally simple (not cryptographically mixed) since the secret is
// never disclosed to the client until the match terminates, and the seed
// itself is server-chosen.
func seedToSecret(seed int64) int {
	span := int64(upper - lower + 1)
	offset := seed % span
	if offset < 0 {
		offset += span
	}
	return lower + int(offset)
}
