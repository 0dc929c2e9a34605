package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/routes"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/observability"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/dbctx"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	DefaultCurrentTasksAutofillLimit = 5
	maxTopicRunes                    = 500
)

// TaskInput is the payload for adding a task to a route.
type TaskInput struct {
	ID                    string                   `json:"id"`
	Title                 string                   `json:"title" validate:"notblank"`
	Week                  int                      `json:"week" validate:"min=1,max=52"`
	Day                   *int                     `json:"day" validate:"omitempty,min=1,max=7"`
	Type                  roadmap.TaskType         `json:"type" validate:"omitempty,oneof=学习 实操 复盘"`
	Status                roadmap.TaskStatus       `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Difficulty            roadmap.Difficulty       `json:"difficulty" validate:"omitempty,oneof=简单 中等 进阶"`
	Estimate              string                   `json:"estimate"`
	Objective             string                   `json:"objective"`
	DoneCriteria          string                   `json:"doneCriteria"`
	Materials             []roadmap.Material       `json:"materials"`
	KnowledgePoints       []roadmap.KnowledgePoint `json:"knowledgePoints"`
	PhaseID               string                   `json:"phaseId"`
	IncludeInCurrentTasks bool                     `json:"includeInCurrentTasks"`
}

func (in TaskInput) task() roadmap.Task {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = "task-" + uuid.NewString()
	}
	t := roadmap.Task{
		ID:              id,
		Title:           strings.TrimSpace(in.Title),
		Week:            in.Week,
		Type:            in.Type,
		Status:          in.Status,
		Difficulty:      in.Difficulty,
		Estimate:        strings.TrimSpace(in.Estimate),
		Objective:       strings.TrimSpace(in.Objective),
		DoneCriteria:    strings.TrimSpace(in.DoneCriteria),
		Materials:       roadmap.SanitizeMaterials(in.Materials),
		KnowledgePoints: roadmap.SanitizeKnowledgePoints(in.KnowledgePoints),
	}
	if in.Day != nil {
		d := *in.Day
		t.Day = &d
	}
	if t.Type == "" {
		t.Type = roadmap.TaskTypeStudy
	}
	if t.Status == "" {
		t.Status = roadmap.StatusPending
	}
	return t
}

// TaskPatch carries the fields to merge over an existing task. Nil means unchanged.
type TaskPatch struct {
	Title        *string             `json:"title" validate:"omitempty,notblank"`
	Week         *int                `json:"week" validate:"omitempty,min=1,max=52"`
	Day          *int                `json:"day" validate:"omitempty,min=1,max=7"`
	Type         *roadmap.TaskType   `json:"type" validate:"omitempty,oneof=学习 实操 复盘"`
	Status       *roadmap.TaskStatus `json:"status" validate:"omitempty,oneof=pending in_progress completed"`
	Difficulty   *roadmap.Difficulty `json:"difficulty" validate:"omitempty,oneof=简单 中等 进阶"`
	Estimate     *string             `json:"estimate"`
	Objective    *string             `json:"objective"`
	DoneCriteria *string             `json:"doneCriteria"`
	PhaseID      *string             `json:"phaseId"`
}

func (p TaskPatch) apply(t *roadmap.Task) {
	if p.Title != nil {
		t.Title = strings.TrimSpace(*p.Title)
	}
	if p.Week != nil {
		t.Week = *p.Week
	}
	if p.Day != nil {
		d := *p.Day
		t.Day = &d
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Difficulty != nil {
		t.Difficulty = *p.Difficulty
	}
	if p.Estimate != nil {
		t.Estimate = strings.TrimSpace(*p.Estimate)
	}
	if p.Objective != nil {
		t.Objective = strings.TrimSpace(*p.Objective)
	}
	if p.DoneCriteria != nil {
		t.DoneCriteria = strings.TrimSpace(*p.DoneCriteria)
	}
}

func (p TaskPatch) movesTask() bool {
	return p.Week != nil || (p.PhaseID != nil && strings.TrimSpace(*p.PhaseID) != "")
}

// MaterialInput is a material to attach to a task or one of its knowledge points.
type MaterialInput struct {
	Title            string               `json:"title"`
	URL              string               `json:"url"`
	Type             roadmap.MaterialType `json:"type"`
	IsGenerated      bool                 `json:"isGenerated"`
	Content          string               `json:"content"`
	KnowledgePointID string               `json:"knowledgePointId"`
}

// RoutePatch updates route metadata. RoadmapData replaces the whole document.
type RoutePatch struct {
	Topic       *string         `json:"topic"`
	Background  *string         `json:"background"`
	Goals       *string         `json:"goals"`
	Weeks       *int            `json:"weeks" validate:"omitempty,min=1,max=52"`
	IsCurrent   *bool           `json:"is_current"`
	RoadmapData json.RawMessage `json:"roadmap_data"`
	Overview    map[string]any  `json:"overview"`
}

type RouteEditor interface {
	GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)
	PatchRoute(ctx context.Context, userID, routeID uuid.UUID, patch RoutePatch) (*types.Route, error)

	AddTask(ctx context.Context, userID, routeID uuid.UUID, in TaskInput) (*types.Route, error)
	PatchTask(ctx context.Context, userID, routeID uuid.UUID, taskID string, patch TaskPatch) (*types.Route, error)
	DeleteTask(ctx context.Context, userID, routeID uuid.UUID, taskID string) (*types.Route, error)

	AddMaterial(ctx context.Context, userID, routeID uuid.UUID, taskID string, in MaterialInput) (*types.Route, error)
	RemoveMaterial(ctx context.Context, userID, routeID uuid.UUID, taskID string, sel roadmap.MaterialSelector) (*types.Route, error)
}

type routeEditor struct {
	db            *gorm.DB
	log           *logger.Logger
	routeRepo     routes.RouteRepo
	routeTaskRepo routes.RouteTaskRepo
	autofillLimit int
}

func NewRouteEditor(
	db *gorm.DB,
	baseLog *logger.Logger,
	routeRepo routes.RouteRepo,
	routeTaskRepo routes.RouteTaskRepo,
	autofillLimit int,
) RouteEditor {
	if autofillLimit <= 0 {
		autofillLimit = DefaultCurrentTasksAutofillLimit
	}
	return &routeEditor{
		db:            db,
		log:           baseLog.With("service", "RouteEditor"),
		routeRepo:     routeRepo,
		routeTaskRepo: routeTaskRepo,
		autofillLimit: autofillLimit,
	}
}

func errRouteNotFound() error {
	return apierr.NotFoundf("route_not_found", "route not found")
}

func errTaskNotFound(taskID string) error {
	return apierr.NotFoundf("task_not_found", "task not found: %s", taskID)
}

// mirrorRows flattens the phase tree into route_tasks rows.
func mirrorRows(rm roadmap.Roadmap, now time.Time) []*types.RouteTask {
	tasks := rm.Tasks()
	out := make([]*types.RouteTask, 0, len(tasks))
	for _, t := range tasks {
		row := &types.RouteTask{
			TaskID:   t.ID,
			Title:    t.Title,
			TaskType: string(t.Type),
			Status:   string(t.Status),
			Week:     t.Week,
		}
		if t.Day != nil {
			d := *t.Day
			row.Day = &d
		}
		if t.Status == roadmap.StatusCompleted {
			at := now
			row.CompletedAt = &at
		}
		out = append(out, row)
	}
	return out
}

func mutationOutcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch k := apierr.KindOf(err); k {
	case apierr.Internal:
		return "error"
	default:
		return k.String()
	}
}

type mutateFunc func(dbc dbctx.Context, route *types.Route, rm *roadmap.Roadmap, updates map[string]interface{}) error

// mutate locks the route row, hands fn the normalized document, then
// reconciles route_tasks and writes the document back, all in one transaction.
func (e *routeEditor) mutate(ctx context.Context, op string, userID, routeID uuid.UUID, fn mutateFunc) (out *types.Route, err error) {
	ctx, span := observability.Tracer().Start(ctx, "routeeditor."+op, trace.WithAttributes(
		attribute.String("route_id", routeID.String()),
	))
	defer func() {
		observability.RecordRouteMutation(op, mutationOutcome(err))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		route, err := e.routeRepo.LockByIDAndUser(dbc, routeID, userID)
		if err != nil {
			return err
		}
		if route == nil {
			return errRouteNotFound()
		}

		rm := roadmap.Parse(route.RoadmapData)
		updates := map[string]interface{}{}
		if err := fn(dbc, route, &rm, updates); err != nil {
			return err
		}

		now := time.Now().UTC()
		if err := e.routeTaskRepo.Reconcile(dbc, route.ID, userID, mirrorRows(rm, now)); err != nil {
			return err
		}
		data, err := rm.Marshal()
		if err != nil {
			return err
		}
		updates["roadmap_data"] = datatypes.JSON(data)
		updates["updated_at"] = now
		if err := e.routeRepo.UpdateFields(dbc, route.ID, updates); err != nil {
			return err
		}
		out, err = e.routeRepo.GetByIDAndUser(dbc, route.ID, userID)
		return err
	})
	if err != nil {
		if apierr.KindOf(err) == apierr.Internal {
			e.log.Error("route mutation failed", "op", op, "route_id", routeID, "error", err)
		}
		return nil, err
	}
	e.log.Debug("route mutated", "op", op, "route_id", routeID)
	return out, nil
}

func (e *routeEditor) GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	route, err := e.routeRepo.GetByIDAndUser(dbctx.Context{Ctx: ctx}, routeID, userID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, errRouteNotFound()
	}
	return route, nil
}

func (e *routeEditor) PatchRoute(ctx context.Context, userID, routeID uuid.UUID, patch RoutePatch) (*types.Route, error) {
	if err := validateInput("invalid_route_patch", patch); err != nil {
		return nil, err
	}
	if patch.Topic != nil {
		topic := strings.TrimSpace(*patch.Topic)
		if topic == "" || utf8.RuneCountInString(topic) > maxTopicRunes {
			return nil, apierr.Validationf("invalid_topic", "topic must be 1-%d characters", maxTopicRunes)
		}
	}
	if patch.IsCurrent != nil && !*patch.IsCurrent {
		return nil, apierr.Validationf("invalid_is_current", "is_current can only be set to true; switch to another route instead")
	}
	replace := len(bytes.TrimSpace(patch.RoadmapData)) > 0 && !bytes.Equal(bytes.TrimSpace(patch.RoadmapData), []byte("null"))

	return e.mutate(ctx, "patch_route", userID, routeID, func(dbc dbctx.Context, route *types.Route, rm *roadmap.Roadmap, updates map[string]interface{}) error {
		if replace {
			*rm = roadmap.Parse(patch.RoadmapData)
		}
		if len(patch.Overview) > 0 {
			merged := make(map[string]any, len(rm.Overview)+len(patch.Overview))
			for k, v := range rm.Overview {
				merged[k] = v
			}
			for k, v := range patch.Overview {
				merged[k] = v
			}
			rm.Overview = merged
		}
		if patch.Topic != nil {
			updates["topic"] = strings.TrimSpace(*patch.Topic)
		}
		if patch.Background != nil {
			updates["background"] = trimmedOrNil(*patch.Background)
		}
		if patch.Goals != nil {
			updates["goals"] = trimmedOrNil(*patch.Goals)
		}
		if patch.Weeks != nil {
			updates["weeks"] = *patch.Weeks
		}
		if patch.IsCurrent != nil && !route.IsCurrent {
			if err := e.routeRepo.DemoteAll(dbc, route.UserID); err != nil {
				return err
			}
			updates["is_current"] = true
		}
		return nil
	})
}

func trimmedOrNil(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (e *routeEditor) AddTask(ctx context.Context, userID, routeID uuid.UUID, in TaskInput) (*types.Route, error) {
	if err := validateInput("invalid_task", in); err != nil {
		return nil, err
	}
	task := in.task()

	return e.mutate(ctx, "add_task", userID, routeID, func(_ dbctx.Context, _ *types.Route, rm *roadmap.Roadmap, _ map[string]interface{}) error {
		if rm.HasTaskID(task.ID) {
			return apierr.Conflictf("task_exists", "task id already exists: %s", task.ID)
		}
		if task.Day == nil {
			d := rm.NextDayInWeek(task.Week)
			task.Day = &d
		}
		pi := rm.PhaseIndexFor(task.Week, in.PhaseID)
		rm.AppendTask(pi, task)
		if in.IncludeInCurrentTasks || len(rm.CurrentTasks) < e.autofillLimit {
			rm.UpsertCurrentTask(task, true)
		}
		return nil
	})
}

func (e *routeEditor) PatchTask(ctx context.Context, userID, routeID uuid.UUID, taskID string, patch TaskPatch) (*types.Route, error) {
	if err := validateInput("invalid_task_patch", patch); err != nil {
		return nil, err
	}

	return e.mutate(ctx, "patch_task", userID, routeID, func(_ dbctx.Context, _ *types.Route, rm *roadmap.Roadmap, _ map[string]interface{}) error {
		loc, ok := rm.FindTask(taskID)
		if !ok {
			return errTaskNotFound(taskID)
		}
		merged := rm.TaskAt(loc).Clone()
		patch.apply(&merged)

		if patch.movesTask() {
			phaseID := ""
			if patch.PhaseID != nil {
				phaseID = *patch.PhaseID
			}
			if target := rm.PhaseIndexFor(merged.Week, phaseID); target != loc.Phase {
				rm.RemoveTask(loc)
				rm.AppendTask(target, merged)
			} else {
				*rm.TaskAt(loc) = merged
			}
		} else {
			*rm.TaskAt(loc) = merged
		}
		rm.UpsertCurrentTask(merged, false)
		return nil
	})
}

func (e *routeEditor) DeleteTask(ctx context.Context, userID, routeID uuid.UUID, taskID string) (*types.Route, error) {
	return e.mutate(ctx, "delete_task", userID, routeID, func(_ dbctx.Context, _ *types.Route, rm *roadmap.Roadmap, _ map[string]interface{}) error {
		loc, ok := rm.FindTask(taskID)
		if !ok {
			return errTaskNotFound(taskID)
		}
		rm.RemoveTask(loc)
		rm.RemoveCurrentTask(taskID)
		return nil
	})
}

func (e *routeEditor) AddMaterial(ctx context.Context, userID, routeID uuid.UUID, taskID string, in MaterialInput) (*types.Route, error) {
	m, err := roadmap.SanitizeMaterial(roadmap.Material{
		Title:       in.Title,
		URL:         in.URL,
		Type:        in.Type,
		IsGenerated: in.IsGenerated,
		Content:     in.Content,
	})
	if err != nil {
		return nil, apierr.Wrap(apierr.Validation, "invalid_material", err)
	}
	kpID := strings.TrimSpace(in.KnowledgePointID)

	return e.mutate(ctx, "add_material", userID, routeID, func(_ dbctx.Context, _ *types.Route, rm *roadmap.Roadmap, _ map[string]interface{}) error {
		loc, ok := rm.FindTask(taskID)
		if !ok {
			return errTaskNotFound(taskID)
		}
		if err := addMaterial(rm.TaskAt(loc), m, kpID); err != nil {
			return err
		}
		if i := rm.CurrentTaskIndex(taskID); i >= 0 {
			return addMaterial(&rm.CurrentTasks[i], m, kpID)
		}
		return nil
	})
}

func addMaterial(t *roadmap.Task, m roadmap.Material, kpID string) error {
	if err := t.AddMaterial(m, kpID); err != nil {
		if errors.Is(err, roadmap.ErrKnowledgePointNotFound) {
			return apierr.NotFoundf("knowledge_point_not_found", "knowledge point not found: %s", kpID)
		}
		return err
	}
	return nil
}

func (e *routeEditor) RemoveMaterial(ctx context.Context, userID, routeID uuid.UUID, taskID string, sel roadmap.MaterialSelector) (*types.Route, error) {
	if err := sel.Validate(); err != nil {
		return nil, apierr.Wrap(apierr.Validation, "invalid_material_selector", err)
	}

	return e.mutate(ctx, "remove_material", userID, routeID, func(_ dbctx.Context, _ *types.Route, rm *roadmap.Roadmap, _ map[string]interface{}) error {
		loc, ok := rm.FindTask(taskID)
		if !ok {
			return errTaskNotFound(taskID)
		}
		removed, err := removeMaterial(rm.TaskAt(loc), sel)
		if err != nil {
			return err
		}
		if i := rm.CurrentTaskIndex(taskID); i >= 0 {
			fromCurrent, err := removeMaterial(&rm.CurrentTasks[i], sel)
			if err != nil {
				return err
			}
			removed = removed || fromCurrent
		}
		if !removed {
			return apierr.NotFoundf("material_not_found", "material not found")
		}
		return nil
	})
}

// removeMaterial treats a missing knowledge point as "nothing removed".
func removeMaterial(t *roadmap.Task, sel roadmap.MaterialSelector) (bool, error) {
	removed, err := t.RemoveMaterial(sel)
	if errors.Is(err, roadmap.ErrKnowledgePointNotFound) {
		return false, nil
	}
	return removed, err
}
