package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"copilot-salud-backend/internal/model"
	"copilot-salud-backend/internal/roles"
)

// Context keys set by the middleware.
const (
	ContextUser = "auth_user"
	ContextRole = "auth_role"
)

// Middleware validates the Bearer token and stores the session
// identity on the gin context.
func Middleware(issuer *TokenIssuer) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		header := ctx.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, model.NewResponse("Missing bearer token", nil))
			return
		}
		claims, err := issuer.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			log.Warn().Err(err).Str("ip", ctx.ClientIP()).Msg("Rejected invalid token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, model.NewResponse("Invalid or expired token", nil))
			return
		}
		ctx.Set(ContextUser, claims.Username)
		ctx.Set(ContextRole, claims.Role)
		ctx.Next()
	}
}

// RequireCapability rejects sessions whose role lacks the capability.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		role := roles.GetOrGuest(ctx.GetString(ContextRole))
		if !role.Has(capability) {
			log.Warn().Str("user", ctx.GetString(ContextUser)).
				Str("role", role.Key).Str("capability", capability).
				Msg("Capability denied")
			ctx.AbortWithStatusJSON(http.StatusForbidden, model.NewResponse("Insufficient permissions", nil))
			return
		}
		ctx.Next()
	}
}
