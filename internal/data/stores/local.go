package stores

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/cards"
	"github.com/yungbote/stackmemory-backend/internal/data/repos/routes"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

type localCardStore struct {
	db    *gorm.DB
	log   *logger.Logger
	cards cards.CardRepo
	tags  cards.TagRepo
}

func NewLocalCardStore(db *gorm.DB, baseLog *logger.Logger) CardStore {
	return &localCardStore{
		db:    db,
		log:   baseLog.With("store", "LocalCardStore"),
		cards: cards.NewCardRepo(db, baseLog),
		tags:  cards.NewTagRepo(db, baseLog),
	}
}

func (s *localCardStore) GetCards(ctx context.Context, userID uuid.UUID, f cards.CardFilter) ([]*types.Flashcard, int64, error) {
	return s.cards.ListByUser(dbctx.Context{Ctx: ctx}, userID, f)
}

func (s *localCardStore) GetCardByID(ctx context.Context, userID, cardID uuid.UUID) (*types.Flashcard, error) {
	row, err := s.cards.GetByIDAndUser(dbctx.Context{Ctx: ctx}, cardID, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return row, nil
}

func (s *localCardStore) SaveCards(ctx context.Context, userID uuid.UUID, drafts []CardDraft, tagIDs []uuid.UUID) ([]*types.Flashcard, error) {
	rows := make([]*types.Flashcard, 0, len(drafts))
	for _, d := range drafts {
		rows = append(rows, draftToRow(userID, d))
	}
	if len(rows) == 0 {
		return rows, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := s.cards.Create(dbc, rows); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.ID)
		}
		return s.cards.AttachTags(dbc, ids, tagIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("save cards: %w", err)
	}
	return rows, nil
}

func (s *localCardStore) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.cards.Delete(dbctx.Context{Ctx: ctx, Tx: tx}, cardID, userID)
		deleted = ok
		return err
	})
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	return nil
}

func (s *localCardStore) GetTags(ctx context.Context, userID uuid.UUID) ([]*types.Tag, error) {
	return s.tags.ListVisible(dbctx.Context{Ctx: ctx}, userID)
}

func (s *localCardStore) GetOrCreateTags(ctx context.Context, userID uuid.UUID, names []string) ([]uuid.UUID, error) {
	return s.tags.GetOrCreate(dbctx.Context{Ctx: ctx}, userID, names)
}

type localRouteStore struct {
	db     *gorm.DB
	log    *logger.Logger
	routes routes.RouteRepo
	tasks  routes.RouteTaskRepo
	cards  cards.CardRepo
}

func NewLocalRouteStore(db *gorm.DB, baseLog *logger.Logger) RouteStore {
	return &localRouteStore{
		db:     db,
		log:    baseLog.With("store", "LocalRouteStore"),
		routes: routes.NewRouteRepo(db, baseLog),
		tasks:  routes.NewRouteTaskRepo(db, baseLog),
		cards:  cards.NewCardRepo(db, baseLog),
	}
}

func (s *localRouteStore) ListRoutes(ctx context.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) ([]*types.Route, int64, error) {
	dbc := dbctx.Context{Ctx: ctx}
	total, err := s.routes.CountByUser(dbc, userID)
	if err != nil {
		return nil, 0, err
	}
	rows, err := s.routes.ListByUser(dbc, userID, limit, offset, includeRoadmap)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *localRouteStore) GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	row, err := s.routes.GetByIDAndUser(dbctx.Context{Ctx: ctx}, routeID, userID)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrNotFound
	}
	return row, nil
}

func (s *localRouteStore) GetCurrentRoute(ctx context.Context, userID uuid.UUID) (*types.Route, error) {
	return s.routes.GetCurrent(dbctx.Context{Ctx: ctx}, userID)
}

func (s *localRouteStore) CreateRoute(ctx context.Context, row *types.Route, tasks []*types.RouteTask) (*types.Route, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		n, err := s.routes.CountByUser(dbc, row.UserID)
		if err != nil {
			return err
		}
		row.IsCurrent = n == 0
		if _, err := s.routes.Create(dbc, row); err != nil {
			return err
		}
		if len(tasks) == 0 {
			return nil
		}
		return s.tasks.Reconcile(dbc, row.ID, row.UserID, tasks)
	})
	if err != nil {
		return nil, fmt.Errorf("create route: %w", err)
	}
	return row, nil
}

func (s *localRouteStore) SwitchRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	var out *types.Route
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.routes.LockByIDAndUser(dbc, routeID, userID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if err := s.routes.DemoteAll(dbc, userID); err != nil {
			return err
		}
		if err := s.routes.Promote(dbc, routeID); err != nil {
			return err
		}
		out, err = s.routes.GetByIDAndUser(dbc, routeID, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *localRouteStore) DeleteRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	var next *types.Route
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.routes.LockByIDAndUser(dbc, routeID, userID)
		if err != nil {
			return err
		}
		if row == nil {
			return ErrNotFound
		}
		if err := s.tasks.DeleteByRoute(dbc, routeID); err != nil {
			return err
		}
		if err := s.cards.DetachRoute(dbc, routeID); err != nil {
			return err
		}
		if _, err := s.routes.Delete(dbc, routeID, userID); err != nil {
			return err
		}
		if !row.IsCurrent {
			next, err = s.routes.GetCurrent(dbc, userID)
			return err
		}
		next, err = s.routes.GetMostRecent(dbc, userID)
		if err != nil || next == nil {
			return err
		}
		if err := s.routes.Promote(dbc, next.ID); err != nil {
			return err
		}
		next.IsCurrent = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

func (s *localRouteStore) ListRouteTasks(ctx context.Context, userID, routeID uuid.UUID) ([]*types.RouteTask, error) {
	return s.tasks.ListByRoute(dbctx.Context{Ctx: ctx}, routeID, userID)
}

func (s *localRouteStore) ListCurrentRouteTasks(ctx context.Context, userID uuid.UUID) ([]*types.RouteTask, error) {
	return s.tasks.ListCurrentByUser(dbctx.Context{Ctx: ctx}, userID)
}
