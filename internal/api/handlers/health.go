package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthCheck mirrors the teacher's liveness probe.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
