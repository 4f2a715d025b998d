package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dorkfun/match-core/internal/cache"
	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/lifecycle"
)

type createPrivateRequest struct {
	authFields
	GameID   string          `json:"gameId"`
	Settings json.RawMessage `json:"settings"`
	StakeWei string          `json:"stakeWei"`
}

// CreatePrivateMatch implements POST /api/matches/private.
func CreatePrivateMatch(lc *lifecycle.Service, ca *cache.Cache, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createPrivateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		playerID, ok := requireAuth(c, req.authFields)
		if !ok {
			return
		}

		m, inviteCode, err := lc.CreatePrivateMatch(c.Request.Context(), req.GameID, playerID, req.Settings, req.StakeWei)
		if err != nil {
			respondError(c, err)
			return
		}
		token, err := ca.IssueWSToken(c.Request.Context(), m.MatchID, playerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
			return
		}

		resp := gin.H{"matchId": m.MatchID, "inviteCode": inviteCode, "wsToken": token}
		if escrow := escrowInfo(cfg, m.StakeWei, m.MatchID); escrow != nil {
			resp["escrow"] = escrow
		}
		c.JSON(http.StatusOK, resp)
	}
}

type acceptPrivateRequest struct {
	authFields
	InviteCode string `json:"inviteCode"`
}

// AcceptPrivateMatch implements POST /api/matches/accept.
func AcceptPrivateMatch(lc *lifecycle.Service, ca *cache.Cache, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req acceptPrivateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		playerID, ok := requireAuth(c, req.authFields)
		if !ok {
			return
		}

		m, err := lc.AcceptPrivateMatch(c.Request.Context(), req.InviteCode, playerID)
		if err != nil {
			respondError(c, err)
			return
		}
		token, err := ca.IssueWSToken(c.Request.Context(), m.MatchID, playerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
			return
		}

		resp := gin.H{"matchId": m.MatchID, "wsToken": token}
		if escrow := escrowInfo(cfg, m.StakeWei, m.MatchID); escrow != nil {
			resp["escrow"] = escrow
		}
		c.JSON(http.StatusOK, resp)
	}
}

// ActiveMatch implements POST /api/matches/active: does the caller have a
// live match pointer (spec.md §4.7 S2 reconnection scenario)?
func ActiveMatch(ca *cache.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req authFields
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		playerID, ok := requireAuth(c, req)
		if !ok {
			return
		}

		am, err := ca.GetActiveMatch(c.Request.Context(), playerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read active match"})
			return
		}
		if am == nil {
			c.JSON(http.StatusOK, gin.H{"hasActiveMatch": false})
			return
		}

		token, err := ca.IssueWSToken(c.Request.Context(), am.MatchID, playerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue session token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"hasActiveMatch": true,
			"matchId":        am.MatchID,
			"gameId":         am.GameID,
			"wsToken":        token,
		})
	}
}
