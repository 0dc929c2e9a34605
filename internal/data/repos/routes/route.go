package routes

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

type RouteRepo interface {
	Create(dbc dbctx.Context, row *types.Route) (*types.Route, error)

	GetByIDAndUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Route, error)
	// LockByIDAndUser takes a FOR UPDATE lock on the row; dbc.Tx is required.
	LockByIDAndUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Route, error)
	GetCurrent(dbc dbctx.Context, userID uuid.UUID) (*types.Route, error)
	GetMostRecent(dbc dbctx.Context, userID uuid.UUID) (*types.Route, error)

	ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) ([]*types.Route, error)
	CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error
	DemoteAll(dbc dbctx.Context, userID uuid.UUID) error
	Promote(dbc dbctx.Context, id uuid.UUID) error

	Delete(dbc dbctx.Context, id, userID uuid.UUID) (bool, error)
}

type routeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRouteRepo(db *gorm.DB, baseLog *logger.Logger) RouteRepo {
	return &routeRepo{db: db, log: baseLog.With("repo", "RouteRepo")}
}

func (r *routeRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *routeRepo) Create(dbc dbctx.Context, row *types.Route) (*types.Route, error) {
	if row == nil {
		return nil, errors.New("route row is nil")
	}
	if row.ID == uuid.Nil {
		row.ID = uuid.New()
	}
	if err := r.tx(dbc).Create(row).Error; err != nil {
		return nil, fmt.Errorf("create route: %w", err)
	}
	return row, nil
}

func (r *routeRepo) GetByIDAndUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Route, error) {
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var out types.Route
	err := r.tx(dbc).Where("id = ? AND user_id = ?", id, userID).Take(&out).Error
	return takeResult(&out, err)
}

func (r *routeRepo) LockByIDAndUser(dbc dbctx.Context, id, userID uuid.UUID) (*types.Route, error) {
	if dbc.Tx == nil {
		return nil, errors.New("LockByIDAndUser requires a transaction")
	}
	if id == uuid.Nil || userID == uuid.Nil {
		return nil, nil
	}
	var out types.Route
	err := dbc.Tx.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&out).Error
	return takeResult(&out, err)
}

func (r *routeRepo) GetCurrent(dbc dbctx.Context, userID uuid.UUID) (*types.Route, error) {
	var out types.Route
	err := r.tx(dbc).
		Where("user_id = ? AND is_current = ?", userID, true).
		Order("updated_at DESC").
		Take(&out).Error
	return takeResult(&out, err)
}

func (r *routeRepo) GetMostRecent(dbc dbctx.Context, userID uuid.UUID) (*types.Route, error) {
	var out types.Route
	err := r.tx(dbc).
		Where("user_id = ?", userID).
		Order("updated_at DESC, created_at DESC").
		Take(&out).Error
	return takeResult(&out, err)
}

func (r *routeRepo) ListByUser(dbc dbctx.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) ([]*types.Route, error) {
	var out []*types.Route
	q := r.tx(dbc).Where("user_id = ?", userID).Order("updated_at DESC")
	if !includeRoadmap {
		q = q.Omit("roadmap_data")
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return out, nil
}

func (r *routeRepo) CountByUser(dbc dbctx.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.tx(dbc).Model(&types.Route{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count routes: %w", err)
	}
	return n, nil
}

func (r *routeRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	if id == uuid.Nil {
		return nil
	}
	if updates == nil {
		updates = map[string]interface{}{}
	}
	if _, ok := updates["updated_at"]; !ok {
		updates["updated_at"] = time.Now().UTC()
	}
	return r.tx(dbc).Model(&types.Route{}).Where("id = ?", id).Updates(updates).Error
}

func (r *routeRepo) DemoteAll(dbc dbctx.Context, userID uuid.UUID) error {
	return r.tx(dbc).Model(&types.Route{}).
		Where("user_id = ? AND is_current = ?", userID, true).
		Update("is_current", false).Error
}

func (r *routeRepo) Promote(dbc dbctx.Context, id uuid.UUID) error {
	return r.tx(dbc).Model(&types.Route{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"is_current": true, "updated_at": time.Now().UTC()}).Error
}

func (r *routeRepo) Delete(dbc dbctx.Context, id, userID uuid.UUID) (bool, error) {
	res := r.tx(dbc).Where("id = ? AND user_id = ?", id, userID).Delete(&types.Route{})
	if res.Error != nil {
		return false, fmt.Errorf("delete route: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func takeResult[T any](out *T, err error) (*T, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
