package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/testutil"
	"github.com/yungbote/stackmemory-backend/internal/data/repos/users"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/ctxutil"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T, apiKey string) AuthService {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)
	return NewAuthService(log, users.NewUserRepo(db, log), testSecret, time.Hour, apiKey)
}

func TestAuthRegisterAndLogin(t *testing.T) {
	as := newAuthService(t, "")
	ctx := context.Background()

	res, err := as.Register(ctx, RegisterInput{Email: " Ada@Example.com ", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", res.User.Email)
	assert.Equal(t, "ada", res.User.Name)
	assert.NotEmpty(t, res.Token)

	_, err = as.Register(ctx, RegisterInput{Email: "ada@example.com", Password: "secret2"})
	assert.Equal(t, apierr.Conflict, apierr.KindOf(err))

	_, err = as.Register(ctx, RegisterInput{Email: "bob@example.com", Password: "12345"})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))
	_, err = as.Register(ctx, RegisterInput{Email: "not-an-email", Password: "123456"})
	assert.Equal(t, apierr.Validation, apierr.KindOf(err))

	login, err := as.Login(ctx, LoginInput{Email: "ADA@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, res.User.ID, login.User.ID)

	_, err = as.Login(ctx, LoginInput{Email: "ada@example.com", Password: "wrong!"})
	assert.Equal(t, apierr.Unauthorized, apierr.KindOf(err))
	_, err = as.Login(ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.Equal(t, apierr.Unauthorized, apierr.KindOf(err))

	authed, err := as.SetContextFromToken(ctx, login.Token)
	require.NoError(t, err)
	rd := ctxutil.GetRequestData(authed)
	require.NotNil(t, rd)
	assert.Equal(t, res.User.ID, rd.UserID)
	assert.Equal(t, ctxutil.AuthViaSession, rd.AuthVia)
}

func TestAuthRejectsBadTokens(t *testing.T) {
	as := newAuthService(t, "")
	ctx := context.Background()

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}})
	signed, err := expired.SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = as.SetContextFromToken(ctx, signed)
	assert.Equal(t, "token_expired", apierr.CodeOf(err))

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: uuid.NewString(),
	}}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = as.SetContextFromToken(ctx, forged)
	assert.Equal(t, apierr.Unauthorized, apierr.KindOf(err))

	_, err = as.SetContextFromToken(ctx, "")
	assert.Equal(t, apierr.Unauthorized, apierr.KindOf(err))
}

func TestAuthAPIKey(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	disabled := newAuthService(t, "")
	assert.False(t, disabled.APIKeyEnabled())
	_, err := disabled.SetContextFromAPIKey(ctx, "k", userID.String())
	assert.Equal(t, apierr.Unauthorized, apierr.KindOf(err))

	as := newAuthService(t, " claw-key ")
	assert.True(t, as.APIKeyEnabled())

	authed, err := as.SetContextFromAPIKey(ctx, "claw-key", userID.String())
	require.NoError(t, err)
	rd := ctxutil.GetRequestData(authed)
	require.NotNil(t, rd)
	assert.Equal(t, userID, rd.UserID)
	assert.Equal(t, ctxutil.AuthViaAPIKey, rd.AuthVia)

	_, err = as.SetContextFromAPIKey(ctx, "wrong", userID.String())
	assert.Equal(t, "invalid_api_key", apierr.CodeOf(err))
	_, err = as.SetContextFromAPIKey(ctx, "claw-key", "not-a-uuid")
	assert.Equal(t, "invalid_user_id", apierr.CodeOf(err))
}
