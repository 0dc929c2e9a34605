package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// AuthViaKey is the gin context key under which the auth middleware records
// how the caller authenticated. When set, it is echoed as "auth_via".
const AuthViaKey = "auth_via"

func OK(c *gin.Context, data any, extra ...gin.H) {
	respond(c, http.StatusOK, gin.H{"success": true, "data": data}, extra)
}

func Created(c *gin.Context, data any, extra ...gin.H) {
	respond(c, http.StatusCreated, gin.H{"success": true, "data": data}, extra)
}

func respond(c *gin.Context, status int, body gin.H, extra []gin.H) {
	for _, e := range extra {
		for k, v := range e {
			body[k] = v
		}
	}
	if via, ok := c.Get(AuthViaKey); ok {
		body[AuthViaKey] = via
	}
	c.JSON(status, body)
}
