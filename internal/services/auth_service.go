package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/users"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/ctxutil"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const DefaultAccessTokenTTL = 7 * 24 * time.Hour

type JWTClaims struct {
	jwt.RegisteredClaims
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"min=6"`
	Name     string `json:"name"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"notblank"`
	Password string `json:"password" validate:"notblank"`
}

type AuthResult struct {
	Token string      `json:"token"`
	User  *types.User `json:"user"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*AuthResult, error)
	Login(ctx context.Context, in LoginInput) (*AuthResult, error)
	// SetContextFromToken verifies a session token and attaches the principal.
	SetContextFromToken(ctx context.Context, token string) (context.Context, error)
	// SetContextFromAPIKey authenticates an external agent acting for userID.
	SetContextFromAPIKey(ctx context.Context, key, userID string) (context.Context, error)
	APIKeyEnabled() bool
	AccessTTL() time.Duration
}

type authService struct {
	log          *logger.Logger
	userRepo     users.UserRepo
	jwtSecretKey string
	accessTTL    time.Duration
	apiKey       string
}

func NewAuthService(baseLog *logger.Logger, userRepo users.UserRepo, jwtSecretKey string, accessTTL time.Duration, apiKey string) AuthService {
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	return &authService{
		log:          baseLog.With("service", "AuthService"),
		userRepo:     userRepo,
		jwtSecretKey: jwtSecretKey,
		accessTTL:    accessTTL,
		apiKey:       strings.TrimSpace(apiKey),
	}
}

func (as *authService) AccessTTL() time.Duration { return as.accessTTL }

func (as *authService) APIKeyEnabled() bool { return as.apiKey != "" }

func (as *authService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	if err := validateInput("invalid_registration", in); err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	exists, err := as.userRepo.EmailExists(dbc, in.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, apierr.Conflictf("email_taken", "email is already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	name := in.Name
	if name == "" {
		name = strings.SplitN(in.Email, "@", 2)[0]
	}
	user, err := as.userRepo.Create(dbc, &types.User{Email: in.Email, Name: name, PasswordHash: string(hash)})
	if err != nil {
		return nil, err
	}
	token, err := as.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	as.log.Info("user registered", "user_id", user.ID)
	return &AuthResult{Token: token, User: user}, nil
}

func (as *authService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	if err := validateInput("invalid_login", in); err != nil {
		return nil, err
	}
	user, err := as.userRepo.GetByEmail(dbctx.Context{Ctx: ctx}, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apierr.Unauthorizedf("invalid_credentials", "invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(in.Password)); err != nil {
		return nil, apierr.Unauthorizedf("invalid_credentials", "invalid email or password")
	}
	token, err := as.generateAccessToken(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return ctx, apierr.Unauthorizedf("unauthenticated", "please sign in first")
	}
	claims := &JWTClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ctx, apierr.Unauthorizedf("token_expired", "session expired")
		}
		return ctx, apierr.Unauthorizedf("invalid_token", "invalid session token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorizedf("invalid_token", "invalid session token")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{
		UserID:      userID,
		AuthVia:     ctxutil.AuthViaSession,
		TokenString: tokenString,
	}), nil
}

func (as *authService) SetContextFromAPIKey(ctx context.Context, key, userID string) (context.Context, error) {
	if !as.APIKeyEnabled() {
		return ctx, apierr.Unauthorizedf("api_key_disabled", "API key access is not configured")
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(key)), []byte(as.apiKey)) != 1 {
		return ctx, apierr.Unauthorizedf("invalid_api_key", "invalid OpenClaw API key")
	}
	id, err := uuid.Parse(strings.TrimSpace(userID))
	if err != nil || id == uuid.Nil {
		return ctx, apierr.Unauthorizedf("invalid_user_id", "x-stackmemory-user-id must be a valid UUID")
	}
	return ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: id, AuthVia: ctxutil.AuthViaAPIKey}), nil
}
