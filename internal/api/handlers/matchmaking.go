package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/lifecycle"
	"github.com/dorkfun/match-core/internal/matchqueue"
	"github.com/dorkfun/match-core/internal/registry"
)

type joinRequest struct {
	authFields
	GameID   string          `json:"gameId"`
	Settings json.RawMessage `json:"settings"`
	StakeWei string          `json:"stakeWei"`
	Ticket   string          `json:"ticket"`
}

// JoinMatchmaking implements POST /api/matchmaking/join.
func JoinMatchmaking(lc *lifecycle.Service, reg *registry.Registry, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req joinRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		playerID, ok := requireAuth(c, req.authFields)
		if !ok {
			return
		}

		result, err := lc.JoinQueue(c.Request.Context(), playerID, req.GameID, req.Ticket, req.Settings, req.StakeWei)
		if err != nil {
			respondError(c, err)
			return
		}

		if !result.Matched {
			c.JSON(http.StatusOK, gin.H{"status": "queued", "ticket": result.Ticket})
			return
		}

		resp := gin.H{"status": "matched", "matchId": result.MatchID, "wsToken": result.WSToken}
		if result.Opponent != "" {
			resp["opponent"] = result.Opponent
		}
		if m, ok := reg.Get(result.MatchID); ok {
			if escrow := escrowInfo(cfg, m.StakeWei, m.MatchID); escrow != nil {
				resp["escrow"] = escrow
			}
		}
		c.JSON(http.StatusOK, resp)
	}
}

type leaveRequest struct {
	GameID      string `json:"gameId"`
	StakeBucket string `json:"stakeBucket"`
	Ticket      string `json:"ticket"`
}

// LeaveMatchmaking implements POST /api/matchmaking/leave. Unauthenticated
// per spec.md §6.1 — possession of the ticket is the only proof required.
func LeaveMatchmaking(q *matchqueue.Queue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req leaveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		stakeBucket := req.StakeBucket
		if stakeBucket == "" {
			stakeBucket = "0"
		}
		if err := q.Leave(c.Request.Context(), req.Ticket, req.GameID, stakeBucket); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to leave queue"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
