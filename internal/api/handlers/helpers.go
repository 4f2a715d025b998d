// Package handlers implements the REST shell of spec.md §6.1/§6.6: thin
// gin handlers that validate the request, call into lifecycle.Service (or
// its collaborators), and shape the response. Grounded on
// internal/api/handlers/*.go's closures-over-(db, rdb, cfg) style and its
// gin.H{"error": ...} error-response convention.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dorkfun/match-core/internal/apperr"
	"github.com/dorkfun/match-core/internal/auth"
	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/settlement"
)

// authFields is the {playerId, signature, timestamp} triple every
// authenticated endpoint in spec.md §6.1 requires in its body.
type authFields struct {
	PlayerID  string `json:"playerId"`
	Signature string `json:"signature"`
	Timestamp int64  `json:"timestamp"`
}

// requireAuth verifies the wallet signature and returns the caller's
// playerId, or writes an error response and returns ok=false.
func requireAuth(c *gin.Context, f authFields) (playerID string, ok bool) {
	if err := auth.Verify(f.PlayerID, f.Signature, f.Timestamp, time.Now()); err != nil {
		respondError(c, err)
		return "", false
	}
	return f.PlayerID, true
}

// respondError maps the apperr taxonomy to HTTP statuses: 400 invalid
// address, unknown game, low stake, bad request or rejected move; 401
// signature invalid/expired or token consumed; 404 unknown match/invite;
// 409 emergency mode or already in a game; 503 cache/database
// unavailable; 500 otherwise.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindInvalidAddress, apperr.KindUnknownGame, apperr.KindStakeTooLow, apperr.KindInvalidRequest,
		apperr.KindNotYourTurn, apperr.KindInvalidAction, apperr.KindMatchTerminal:
		status = http.StatusBadRequest
	case apperr.KindInvalidSignature, apperr.KindTokenConsumed:
		status = http.StatusUnauthorized
	case apperr.KindMatchNotFound:
		status = http.StatusNotFound
	case apperr.KindEmergencyMode, apperr.KindAlreadyInGame:
		status = http.StatusConflict
	case apperr.KindCacheUnavailable, apperr.KindDatabaseUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// escrowInfo builds the §6.2 DEPOSIT_REQUIRED-shaped escrow hint the REST
// surface attaches to a freshly matched staked game (nil for free matches
// or a matchId that can't be represented on-chain).
func escrowInfo(cfg *config.Config, stakeWei, matchID string) gin.H {
	if stakeWei == "" || stakeWei == "0" {
		return nil
	}
	bytes32, err := settlement.MatchIDToBytes32(matchID)
	if err != nil {
		return nil
	}
	return gin.H{"stakeWei": stakeWei, "matchIdBytes32": bytes32, "escrowAddress": cfg.EscrowAddress}
}
