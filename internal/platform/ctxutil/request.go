package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

const (
	AuthViaSession = "session"
	AuthViaAPIKey  = "api_key"
)

// RequestData is the authenticated principal attached by the auth middleware.
type RequestData struct {
	UserID      uuid.UUID
	AuthVia     string
	TokenString string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	if rd, ok := ctx.Value(requestDataKey{}).(*RequestData); ok {
		return rd
	}
	return nil
}

// Default returns context.Background() when ctx is nil.
func Default(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
