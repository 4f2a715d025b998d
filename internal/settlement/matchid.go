package settlement

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// MatchIDToBytes32 implements spec.md §6.3's on-chain matchId
// representation: strip dashes from the UUID, left-pad the hex to 32
// bytes, prefix "0x".
func MatchIDToBytes32(matchID string) (string, error) {
	stripped := strings.ReplaceAll(matchID, "-", "")
	raw, err := hex.DecodeString(stripped)
	if err != nil {
		return "", fmt.Errorf("settlement: matchId %q is not valid hex: %w", matchID, err)
	}
	if len(raw) > 32 {
		return "", fmt.Errorf("settlement: matchId %q exceeds 32 bytes", matchID)
	}
	padded := make([]byte, 32)
	copy(padded[32-len(raw):], raw)
	return "0x" + hex.EncodeToString(padded), nil
}
