package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/stackmemory-backend/internal/http/middleware"
	"github.com/yungbote/stackmemory-backend/internal/http/response"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

type AuthHandler struct {
	authService  services.AuthService
	secureCookie bool
}

func NewAuthHandler(authService services.AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

func (ah *AuthHandler) setSession(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, token, int(ah.authService.AccessTTL().Seconds()), "/", "", ah.secureCookie, true)
}

// POST /auth/local/register
func (ah *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	res, err := ah.authService.Register(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	ah.setSession(c, res.Token)
	response.Created(c, res, gin.H{"expires_in": int(ah.authService.AccessTTL().Seconds())})
}

// POST /auth/local/login
func (ah *AuthHandler) Login(c *gin.Context) {
	var req services.LoginInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid_request", err)
		return
	}
	res, err := ah.authService.Login(c.Request.Context(), req)
	if err != nil {
		response.Fail(c, err)
		return
	}
	ah.setSession(c, res.Token)
	response.OK(c, res, gin.H{"expires_in": int(ah.authService.AccessTTL().Seconds())})
}

// POST /auth/logout
func (ah *AuthHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", ah.secureCookie, true)
	response.OK(c, gin.H{"ok": true})
}
