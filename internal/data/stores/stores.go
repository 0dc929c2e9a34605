// Package stores exposes the card and route persistence used by the HTTP
// surface behind one interface pair, backed either by the gorm repositories
// (local Postgres) or by a pgx pool against a hosted Postgres.
package stores

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/cards"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	ProviderLocalPG = "local_pg"
	ProviderHosted  = "hosted"
)

// ErrNotFound is returned when a row is missing or not owned by the caller.
var ErrNotFound = errors.New("not found")

// CardDraft is a flashcard before it is persisted.
type CardDraft struct {
	Question    string
	Answer      string
	CodeSnippet *string
	SourceURL   *string
	SourceTitle *string
	Difficulty  *string
	RouteID     *uuid.UUID
}

type CardStore interface {
	GetCards(ctx context.Context, userID uuid.UUID, f cards.CardFilter) ([]*types.Flashcard, int64, error)
	GetCardByID(ctx context.Context, userID, cardID uuid.UUID) (*types.Flashcard, error)
	// SaveCards inserts drafts and links every one of them to tagIDs in one transaction.
	SaveCards(ctx context.Context, userID uuid.UUID, drafts []CardDraft, tagIDs []uuid.UUID) ([]*types.Flashcard, error)
	DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error
	GetTags(ctx context.Context, userID uuid.UUID) ([]*types.Tag, error)
	GetOrCreateTags(ctx context.Context, userID uuid.UUID, names []string) ([]uuid.UUID, error)
}

type RouteStore interface {
	ListRoutes(ctx context.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) ([]*types.Route, int64, error)
	GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)
	GetCurrentRoute(ctx context.Context, userID uuid.UUID) (*types.Route, error)

	// CreateRoute inserts row and its mirror tasks. The user's first route
	// becomes current; later ones are created non-current.
	CreateRoute(ctx context.Context, row *types.Route, tasks []*types.RouteTask) (*types.Route, error)
	// SwitchRoute demotes every route of the user and promotes routeID.
	SwitchRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)
	// DeleteRoute removes the route and its mirror rows, detaches flashcards,
	// and returns the route that is current afterwards (nil when none is left).
	DeleteRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)

	ListRouteTasks(ctx context.Context, userID, routeID uuid.UUID) ([]*types.RouteTask, error)
	ListCurrentRouteTasks(ctx context.Context, userID uuid.UUID) ([]*types.RouteTask, error)
}

// Backends carries the handles a provider may need.
type Backends struct {
	DB   *gorm.DB
	Pool *pgxpool.Pool
}

// New picks the implementation for provider.
func New(provider string, b Backends, log *logger.Logger) (CardStore, RouteStore, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderLocalPG:
		if b.DB == nil {
			return nil, nil, errors.New("local_pg provider requires a gorm handle")
		}
		return NewLocalCardStore(b.DB, log), NewLocalRouteStore(b.DB, log), nil
	case ProviderHosted:
		if b.Pool == nil {
			return nil, nil, errors.New("hosted provider requires a pgx pool")
		}
		return NewHostedCardStore(b.Pool, log), NewHostedRouteStore(b.Pool, log), nil
	default:
		return nil, nil, fmt.Errorf("unknown data provider %q", provider)
	}
}

func draftToRow(userID uuid.UUID, d CardDraft) *types.Flashcard {
	return &types.Flashcard{
		ID:          uuid.New(),
		UserID:      userID,
		RouteID:     d.RouteID,
		Question:    d.Question,
		Answer:      d.Answer,
		CodeSnippet: d.CodeSnippet,
		SourceURL:   d.SourceURL,
		SourceTitle: d.SourceTitle,
		Difficulty:  d.Difficulty,
	}
}
