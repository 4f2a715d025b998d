// Package middleware holds gin middleware shared by the REST shell:
// CORS and admin-JWT gating. Grounded on internal/middleware/cors.go (CORS
// config shape) and internal/api/handlers/auth.go's AuthMiddleware (JWT
// bearer parsing), adapted to the operator-only "admin" role claim §6.6
// introduces since this server has no end-user JWT auth (players
// authenticate by wallet signature, not bearer token).
package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/dorkfun/match-core/internal/config"
)

// CORS returns a CORS middleware configured for the environment, same
// dev-vs-production split as the teacher's CORSMiddleware.
func CORS(cfg *config.Config) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Length", "Content-Type", "Authorization", "Accept",
		},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}

	if cfg.Environment == "development" {
		c.AllowOrigins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
		c.AllowCredentials = true
	} else {
		origins := []string{}
		if cfg.FrontendURL != "" {
			origins = append(origins, cfg.FrontendURL)
		}
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}

	return cors.New(c)
}

// adminClaims is the payload of an operator JWT issued by the admin login
// handler; the "admin" role claim is required on every admin-surface route.
type adminClaims struct {
	Phone string `json:"phone"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// AdminAuth validates a bearer JWT with role=="admin" and sets "admin_phone"
// in the gin context for audit logging.
func AdminAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &adminClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(cfg.JWTSecret), nil
		})
		if err != nil || !token.Valid || claims.Role != "admin" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set("admin_phone", claims.Phone)
		c.Next()
	}
}

// IssueAdminJWT signs a short-lived operator token carrying the admin role
// claim, consumed by AdminAuth above.
func IssueAdminJWT(cfg *config.Config, phone string, ttl time.Duration) (string, error) {
	claims := adminClaims{
		Phone: phone,
		Role:  "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTSecret))
}
