package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/ctxutil"
)

// currentUserID returns the principal attached by the auth middleware.
func currentUserID(c *gin.Context) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorizedf("unauthenticated", "please sign in first")
	}
	return rd.UserID, nil
}

func parseUUID(raw, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apierr.Validationf("invalid_"+name, "%s must be a valid UUID", name)
	}
	return id, nil
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, error) {
	return parseUUID(c.Param(name), name)
}

// queryInt reads an integer query parameter, returning def when it is absent.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apierr.Validationf("invalid_"+name, "%s must be an integer", name)
	}
	return n, nil
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return v
}
