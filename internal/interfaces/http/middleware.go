package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/andescap/factoring-console/internal/auth"
)

// authMiddleware requires a bearer token and a gateway-asserted identity,
// resolves the actor's role and stashes both on the request context so
// orchestrator calls forward the caller's own session token.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing bearer token",
			})
			return
		}

		email := c.GetHeader("X-User-Email")
		if email == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing user identity",
			})
			return
		}

		actor := auth.Actor{
			Name:  c.GetHeader("X-User-Name"),
			Email: email,
			Role:  s.resolver.Resolve(email),
		}

		ctx := auth.WithToken(c.Request.Context(), token)
		ctx = auth.WithActor(ctx, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// requireVerify rejects actors without verification rights.
func requireVerify() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := auth.ActorFrom(c.Request.Context())
		if !actor.CanVerify() {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "verification rights required",
			})
			return
		}
		c.Next()
	}
}

// requireAssign rejects actors without assignment rights.
func requireAssign() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, _ := auth.ActorFrom(c.Request.Context())
		if !actor.CanAssign() {
			c.AbortWithStatusJSON(http.StatusForbidden, Response{
				Success: false,
				Error:   "assignment rights required",
			})
			return
		}
		c.Next()
	}
}
