// Package api wires the REST shell and the duplex session WebSocket route
// onto a gin.Engine. Grounded on internal/api/routes.go's route-grouping
// shape (health check first, versioned API group, WS route alongside REST).
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/dorkfun/match-core/internal/api/handlers"
	"github.com/dorkfun/match-core/internal/cache"
	"github.com/dorkfun/match-core/internal/config"
	"github.com/dorkfun/match-core/internal/gmc"
	"github.com/dorkfun/match-core/internal/lifecycle"
	"github.com/dorkfun/match-core/internal/matchqueue"
	"github.com/dorkfun/match-core/internal/middleware"
	"github.com/dorkfun/match-core/internal/registry"
	"github.com/dorkfun/match-core/internal/session"
	"github.com/dorkfun/match-core/internal/store"
)

// SetupRoutes configures every REST endpoint plus the /session/game/:matchId
// WebSocket upgrade route.
func SetupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	lc *lifecycle.Service,
	ca *cache.Cache,
	reg *registry.Registry,
	games *gmc.Registry,
	st *store.Store,
	q *matchqueue.Queue,
	sess *session.Service,
) {
	router.Use(middleware.CORS(cfg))

	router.GET("/health", handlers.HealthCheck)

	v1 := router.Group("/api")
	{
		v1.GET("/games", handlers.ListGames(games))

		v1.POST("/matchmaking/join", handlers.JoinMatchmaking(lc, reg, cfg))
		v1.POST("/matchmaking/leave", handlers.LeaveMatchmaking(q))

		v1.POST("/matches/private", handlers.CreatePrivateMatch(lc, ca, cfg))
		v1.POST("/matches/accept", handlers.AcceptPrivateMatch(lc, ca, cfg))
		v1.POST("/matches/active", handlers.ActiveMatch(ca))

		v1.POST("/admin/login", handlers.AdminLogin(st, cfg))

		admin := v1.Group("/admin")
		admin.Use(middleware.AdminAuth(cfg))
		{
			admin.POST("/emergency", handlers.SetEmergencyMode(lc, reg))
			admin.DELETE("/emergency", handlers.ClearEmergencyMode(reg))
			admin.GET("/matches", handlers.ListMatches(reg))
		}
	}

	router.GET("/session/game/:matchId", func(c *gin.Context) {
		sess.HandleConnection(c.Writer, c.Request, c.Param("matchId"))
	})
}
