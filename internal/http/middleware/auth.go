package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/stackmemory-backend/internal/http/response"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/ctxutil"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

const (
	SessionCookie = "stackmemory-token"

	HeaderOpenClawKey = "x-openclaw-key"
	HeaderUserID      = "x-stackmemory-user-id"
)

type AuthMiddleware struct {
	log         *logger.Logger
	authService services.AuthService
}

func NewAuthMiddleware(log *logger.Logger, authService services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{log: log.With("middleware", "AuthMiddleware"), authService: authService}
}

// RequireAuth accepts a session token from the Authorization header or the
// session cookie.
func (am *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), extractToken(c))
		if err != nil {
			response.Fail(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireOpenClaw prefers the API key pair when a key is configured and the
// caller presents one; otherwise it falls back to the session. Either way the
// auth method is echoed on the response.
func (am *AuthMiddleware) RequireOpenClaw() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderOpenClawKey))
		if am.authService.APIKeyEnabled() && key != "" {
			c.Set(response.AuthViaKey, ctxutil.AuthViaAPIKey)
			ctx, err := am.authService.SetContextFromAPIKey(c.Request.Context(), key, c.GetHeader(HeaderUserID))
			if err != nil {
				am.log.Warn("openclaw api key rejected", "code", apierr.CodeOf(err), "client_ip", c.ClientIP())
				response.Fail(c, err)
				return
			}
			c.Request = c.Request.WithContext(ctx)
			c.Next()
			return
		}

		c.Set(response.AuthViaKey, ctxutil.AuthViaSession)
		ctx, err := am.authService.SetContextFromToken(c.Request.Context(), extractToken(c))
		if err != nil {
			response.Fail(c, err)
			return
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	if cookie, err := c.Cookie(SessionCookie); err == nil {
		return cookie
	}
	return ""
}
