// Admin handlers: supplement the distilled spec (§6.6 [NEW]) so the
// emergency-mode semantics §4.3 defines have an HTTP entry point, grounded
// on internal/api/handlers/admin.go's phone+token login shape, swapped from
// OTP-over-SMS to a direct bcrypt-hashed operator secret (no SMS provider
// survives the distillation, see DESIGN.md's dropped-modules section).
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/lifecycle"
	"github.com/dorkfun/match-core/internal/middleware"
	"github.com/dorkfun/match-core/internal/registry"
	"github.com/dorkfun/match-core/internal/store"
)

type adminLoginRequest struct {
	Phone string `json:"phone"`
	Token string `json:"token"`
}

// AdminLogin validates phone+token against the bcrypt-hashed
// admin_accounts row and issues an operator JWT.
func AdminLogin(st *store.Store, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req adminLoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "phone and token required"})
			return
		}

		acc, err := st.GetAdminAccount(c.Request.Context(), req.Phone)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(acc.TokenHash), []byte(req.Token)) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			return
		}

		signed, err := middleware.IssueAdminJWT(cfg, acc.Phone, time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": signed})
	}
}

// SetEmergencyMode implements POST /api/admin/emergency: enters emergency
// mode and draws every live match (spec.md §4.3/§4.6 emergencyDrawAll).
func SetEmergencyMode(lc *lifecycle.Service, reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg.SetEmergencyMode(true)
		if err := lc.EmergencyDrawAll(c.Request.Context()); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"emergencyMode": true})
	}
}

// ClearEmergencyMode implements DELETE /api/admin/emergency.
func ClearEmergencyMode(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		reg.SetEmergencyMode(false)
		c.JSON(http.StatusOK, gin.H{"emergencyMode": false})
	}
}

// adminMatchView is a flattened projection of registry.Match: the raw type
// embeds the *orchestrator.Orchestrator handle, which carries no exported
// state worth serializing and would otherwise round-trip as "{}".
type adminMatchView struct {
	MatchID        string  `json:"matchId"`
	GameID         string  `json:"gameId"`
	Players        []string `json:"players"`
	Status         string  `json:"status"`
	Winner         *string `json:"winner,omitempty"`
	Reason         string  `json:"reason,omitempty"`
	StakeWei       string  `json:"stakeWei"`
	CreatedAt      string  `json:"createdAt"`
	LastActivityAt string  `json:"lastActivityAt"`
}

// ListMatches implements GET /api/admin/matches: all live matches in MR.
func ListMatches(reg *registry.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		matches := reg.ListAll()
		views := make([]adminMatchView, 0, len(matches))
		for _, m := range matches {
			views = append(views, adminMatchView{
				MatchID:        m.MatchID,
				GameID:         m.GameID,
				Players:        m.Players,
				Status:         string(m.Status),
				Winner:         m.Winner,
				Reason:         m.Reason,
				StakeWei:       m.StakeWei,
				CreatedAt:      m.CreatedAt.Format(time.RFC3339),
				LastActivityAt: m.LastActivityAt.Format(time.RFC3339),
			})
		}
		c.JSON(http.StatusOK, gin.H{"matches": views})
	}
}
