package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"fwk-assistant/internal/pkg/jwtutil"
	"fwk-assistant/internal/transport/http/response"
)

const (
	ContextClientIDKey = "client_id"
	ContextNameKey     = "name"
)

func AuthJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, msg := parseBearer(c, secret)
		if claims == nil {
			response.Error(c, 401, response.CodeUnauthorized, msg)
			c.Abort()
			return
		}

		c.Set(ContextClientIDKey, claims.ClientID)
		c.Set(ContextNameKey, claims.Name)
		c.Next()
	}
}

// OptionalJWT sets the client on the context when a valid token is present
// and otherwise lets the request through anonymously.
func OptionalJWT(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, _ := parseBearer(c, secret); claims != nil {
			c.Set(ContextClientIDKey, claims.ClientID)
			c.Set(ContextNameKey, claims.Name)
		}
		c.Next()
	}
}

func ClientID(c *gin.Context) string {
	return c.GetString(ContextClientIDKey)
}

func parseBearer(c *gin.Context, secret string) (*jwtutil.Claims, string) {
	authHeader := strings.TrimSpace(c.GetHeader("Authorization"))
	if authHeader == "" {
		return nil, "missing authorization header"
	}

	const prefix = "Bearer "
	if !strings.HasPrefix(authHeader, prefix) {
		return nil, "invalid authorization scheme"
	}

	token := strings.TrimSpace(strings.TrimPrefix(authHeader, prefix))
	claims, err := jwtutil.ParseToken(secret, token)
	if err != nil {
		return nil, "invalid or expired token"
	}
	return claims, ""
}
