package response

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
)

const internalMessage = "internal server error"

// Fail maps err onto a status code and writes the error envelope. The cause
// is attached to the gin context so the request logger can record it.
func Fail(c *gin.Context, err error) {
	kind := apierr.KindOf(err)
	msg := internalMessage
	if kind != apierr.Internal && err != nil {
		msg = err.Error()
	}
	if err != nil {
		_ = c.Error(err)
	}
	respond(c, apierr.HTTPStatus(kind), gin.H{
		"success": false,
		"error":   msg,
		"code":    apierr.CodeOf(err),
	}, nil)
	c.Abort()
}

// BadRequest reports a malformed request body or parameter.
func BadRequest(c *gin.Context, code string, err error) {
	Fail(c, apierr.Wrap(apierr.Validation, code, err))
}
