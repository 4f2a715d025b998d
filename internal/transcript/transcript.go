// Package transcript implements the Transcript Hasher (TH): a deterministic
// hash chain over a match's ordered action log. Each entry's stateHash binds
// the resulting game state to the match it belongs to, and each entry's
// prevHash binds it to the entry before it, so a dispute can be settled by
// replaying the chain and comparing hashes rather than trusting storage.
//
// There is no canonical-encoding library in the example corpus narrow
// enough for this (a match's GameState is an arbitrary small JSON blob);
// encoding/json's map-key-sorted object encoding plus crypto/sha256 is used
// directly rather than pulling in a general-purpose CBOR/protobuf encoder
// for one hashing call (documented standard-library choice, see DESIGN.md).
package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/dorkfun/match-core/internal/gmc"
)

// Entry is one appended transcript record (spec.md §3.6).
type Entry struct {
	Sequence      int             `json:"sequence"`
	PlayerAddress string          `json:"playerAddress"`
	Action        gmc.Action      `json:"action"`
	StateHash     string          `json:"stateHash"`
	PrevHash      string          `json:"prevHash"`
}

// Transcript is the ordered, append-only entry log for one match.
type Transcript struct {
	MatchID string
	entries []Entry
}

func New(matchID string) *Transcript {
	return &Transcript{MatchID: matchID, entries: []Entry{}}
}

// hashState computes H(state, matchId): sha256 over the canonical JSON
// encoding of the state concatenated with the match id.
func hashState(state *gmc.State, matchID string) (string, error) {
	body, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("transcript: marshal state: %w", err)
	}
	sum := sha256.Sum256(append(body, []byte(matchID)...))
	return hex.EncodeToString(sum[:]), nil
}

// Append records the transition into newState caused by playerAddress's
// action, computing stateHash/prevHash per spec.md §4.2's append logic.
func (t *Transcript) Append(playerAddress string, action gmc.Action, newState *gmc.State) (Entry, error) {
	stateHash, err := hashState(newState, t.MatchID)
	if err != nil {
		return Entry{}, err
	}
	prevHash := ""
	if n := len(t.entries); n > 0 {
		prevHash = t.entries[n-1].StateHash
	}
	entry := Entry{
		Sequence:      len(t.entries),
		PlayerAddress: playerAddress,
		Action:        action,
		StateHash:     stateHash,
		PrevHash:      prevHash,
	}
	t.entries = append(t.entries, entry)
	return entry, nil
}

// Entries returns the recorded entries in order. The returned slice is a
// copy; callers must not rely on it reflecting subsequent appends.
func (t *Transcript) Entries() []Entry {
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len reports the number of recorded entries.
func (t *Transcript) Len() int { return len(t.entries) }

// Verify checks the hash-chain invariant: for every i>0,
// entries[i].prevHash == entries[i-1].stateHash, and entries[0].prevHash ==
// "". It does not re-derive stateHash from game state; full replay
// verification against a fresh gmc.Module is orchestrator.FromReplay.
func Verify(entries []Entry) error {
	for i, e := range entries {
		if e.Sequence != i {
			return fmt.Errorf("transcript: entry %d has sequence %d", i, e.Sequence)
		}
		if i == 0 {
			if e.PrevHash != "" {
				return fmt.Errorf("transcript: entry 0 has non-empty prevHash %q", e.PrevHash)
			}
			continue
		}
		if e.PrevHash != entries[i-1].StateHash {
			return fmt.Errorf("transcript: entry %d prevHash %q != entry %d stateHash %q",
				i, e.PrevHash, i-1, entries[i-1].StateHash)
		}
	}
	return nil
}

// TranscriptHash computes H({entries, matchId}), the single hash
// representing the whole chain (spec.md §3.6), used for on-chain
// settlement proposals and S1/S5's replay-equality assertions.
func TranscriptHash(matchID string, entries []Entry) (string, error) {
	body, err := json.Marshal(struct {
		Entries []Entry `json:"entries"`
		MatchID string  `json:"matchId"`
	}{Entries: entries, MatchID: matchID})
	if err != nil {
		return "", fmt.Errorf("transcript: marshal chain: %w", err)
	}
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:]), nil
}

// Hash returns the current chain hash for this transcript.
func (t *Transcript) Hash() (string, error) {
	return TranscriptHash(t.MatchID, t.entries)
}

// FromEntries rebuilds a Transcript wrapper around already-persisted
// entries without recomputing hashes.
func FromEntries(matchID string, entries []Entry) *Transcript {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return &Transcript{MatchID: matchID, entries: out}
}
