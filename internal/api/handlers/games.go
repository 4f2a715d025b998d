package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dorkfun/match-core/internal/gmc"
)

// ListGames implements GET /api/games: registered game metadata.
func ListGames(games *gmc.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"games": games.List()})
	}
}
