// Package auth verifies the caller-signature scheme spec.md §6.1/§4.7 use
// everywhere a playerId needs to prove ownership of its address: the REST
// shell's authenticated endpoints and the session state machine's
// signature reconnection path both sign
// "dork.fun authentication for <playerId> at <timestamp>" and recover the
// signer the same way, so the check lives in one place. Grounded on
// github.com/ethereum/go-ethereum/crypto's ecrecover wrapper, the same
// subpackage internal/settlement/chain already pulls in for address/hash
// shaping.
package auth

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dorkfun/match-core/internal/apperr"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// MaxSkew is the maximum allowed distance between now and the claimed
// timestamp, per spec.md §6.1/§4.7.
const MaxSkew = 5 * time.Minute

// ValidAddress reports whether playerID matches the 0x[hex]{40} pattern
// spec.md §4.7 requires.
func ValidAddress(playerID string) bool {
	return addressPattern.MatchString(playerID)
}

func message(playerID string, timestamp int64) string {
	return fmt.Sprintf("dork.fun authentication for %s at %d", playerID, timestamp)
}

// Verify checks that signature is a valid personal-sign signature over the
// standard authentication message for (playerID, timestamp), recovered at
// now. It rejects stale/future timestamps and malformed addresses before
// ever touching the signature.
func Verify(playerID, signature string, timestamp int64, now time.Time) error {
	if !ValidAddress(playerID) {
		return apperr.New(apperr.KindInvalidAddress, "playerId must match 0x[hex]{40}")
	}
	skew := now.Sub(time.Unix(timestamp, 0))
	if skew < 0 {
		skew = -skew
	}
	if skew > MaxSkew {
		return apperr.New(apperr.KindInvalidSignature, "timestamp outside the allowed window")
	}

	sig := common.FromHex(signature)
	if len(sig) != 65 {
		return apperr.New(apperr.KindInvalidSignature, "signature must be 65 bytes")
	}
	// crypto.Ecrecover expects a v of 0/1; personal_sign wallets emit 27/28.
	if sig[64] >= 27 {
		sig = append([]byte(nil), sig...)
		sig[64] -= 27
	}

	hash := signHash(message(playerID, timestamp))
	pubKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidSignature, err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey)
	if !strings.EqualFold(recovered.Hex(), playerID) {
		return apperr.New(apperr.KindInvalidSignature, "signature does not match playerId")
	}
	return nil
}

// signHash reproduces the "\x19Ethereum Signed Message:\n" personal-sign
// digest every standard wallet (and the settlement contract's ecrecover
// check) uses.
func signHash(data string) []byte {
	msg := fmt.Sprintf("\x19Ethereum Signed Message:\n%d%s", len(data), data)
	return crypto.Keccak256([]byte(msg))
}
