package routes

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

type RouteTaskRepo interface {
	ListByRoute(dbc dbctx.Context, routeID, userID uuid.UUID) ([]*types.RouteTask, error)
	ListCurrentByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.RouteTask, error)
	TaskIDs(dbc dbctx.Context, routeID uuid.UUID) ([]string, error)

	// Reconcile makes the route's mirror rows exactly match rows: missing
	// task ids are deleted, the rest are upserted on (route_id, task_id).
	Reconcile(dbc dbctx.Context, routeID, userID uuid.UUID, rows []*types.RouteTask) error
	DeleteByRoute(dbc dbctx.Context, routeID uuid.UUID) error
}

type routeTaskRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRouteTaskRepo(db *gorm.DB, baseLog *logger.Logger) RouteTaskRepo {
	return &routeTaskRepo{db: db, log: baseLog.With("repo", "RouteTaskRepo")}
}

func (r *routeTaskRepo) tx(dbc dbctx.Context) *gorm.DB {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	return t.WithContext(dbc.Ctx)
}

func (r *routeTaskRepo) ListByRoute(dbc dbctx.Context, routeID, userID uuid.UUID) ([]*types.RouteTask, error) {
	var out []*types.RouteTask
	if err := r.tx(dbc).
		Where("route_id = ? AND user_id = ?", routeID, userID).
		Order("week ASC").
		Order("day ASC").
		Order("created_at ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list route tasks: %w", err)
	}
	return out, nil
}

func (r *routeTaskRepo) ListCurrentByUser(dbc dbctx.Context, userID uuid.UUID) ([]*types.RouteTask, error) {
	var out []*types.RouteTask
	if err := r.tx(dbc).
		Joins("JOIN routes ON routes.id = route_tasks.route_id").
		Where("route_tasks.user_id = ? AND routes.is_current = ?", userID, true).
		Order("route_tasks.week ASC").
		Order("route_tasks.day ASC").
		Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list current route tasks: %w", err)
	}
	return out, nil
}

func (r *routeTaskRepo) TaskIDs(dbc dbctx.Context, routeID uuid.UUID) ([]string, error) {
	var ids []string
	if err := r.tx(dbc).Model(&types.RouteTask{}).
		Where("route_id = ?", routeID).
		Order("task_id ASC").
		Pluck("task_id", &ids).Error; err != nil {
		return nil, fmt.Errorf("route task ids: %w", err)
	}
	return ids, nil
}

func (r *routeTaskRepo) Reconcile(dbc dbctx.Context, routeID, userID uuid.UUID, rows []*types.RouteTask) error {
	t := r.tx(dbc)

	keep := make([]string, 0, len(rows))
	for _, row := range rows {
		keep = append(keep, row.TaskID)
	}
	del := t.Where("route_id = ? AND user_id = ?", routeID, userID)
	if len(keep) > 0 {
		del = del.Where("task_id NOT IN ?", keep)
	}
	if err := del.Delete(&types.RouteTask{}).Error; err != nil {
		return fmt.Errorf("prune route tasks: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	now := time.Now().UTC()
	for _, row := range rows {
		if row.ID == uuid.Nil {
			row.ID = uuid.New()
		}
		row.RouteID = routeID
		row.UserID = userID
		row.CreatedAt = now
		row.UpdatedAt = now
	}
	err := t.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "route_id"}, {Name: "task_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "task_type", "status", "week", "day", "completed_at", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("upsert route tasks: %w", err)
	}
	return nil
}

func (r *routeTaskRepo) DeleteByRoute(dbc dbctx.Context, routeID uuid.UUID) error {
	return r.tx(dbc).Where("route_id = ?", routeID).Delete(&types.RouteTask{}).Error
}
