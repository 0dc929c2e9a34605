package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

// DatedTask is a mirror row with its calendar date.
type DatedTask struct {
	*types.RouteTask
	Date string `json:"date"`
}

type DailyTasks struct {
	RouteID        *uuid.UUID  `json:"route_id"`
	Date           string      `json:"date"`
	FallbackReason *string     `json:"fallback_reason"`
	CanPrev        bool        `json:"can_prev"`
	CanNext        bool        `json:"can_next"`
	Tasks          []DatedTask `json:"tasks"`
}

type TimelineEntry struct {
	PhaseID    string             `json:"phase_id"`
	PhaseTitle string             `json:"phase_title"`
	TaskID     string             `json:"task_id"`
	Title      string             `json:"title"`
	Type       roadmap.TaskType   `json:"type"`
	Status     roadmap.TaskStatus `json:"status"`
	Week       int                `json:"week"`
	Day        *int               `json:"day"`
	Date       string             `json:"date"`
}

type Timeline struct {
	RouteID   uuid.UUID       `json:"route_id"`
	CreatedAt time.Time       `json:"created_at"`
	Entries   []TimelineEntry `json:"entries"`
}

type RouteTaskService interface {
	ListRouteTasks(ctx context.Context, userID, routeID uuid.UUID) ([]*types.RouteTask, error)
	// CurrentTasksForDate lists the current route's tasks scheduled on rawDate (YYYY-MM-DD).
	CurrentTasksForDate(ctx context.Context, userID uuid.UUID, rawDate string, now time.Time) (*DailyTasks, error)
	Timeline(ctx context.Context, userID, routeID uuid.UUID) (*Timeline, error)
	UpdateTaskStatus(ctx context.Context, userID, routeID uuid.UUID, taskID string, status roadmap.TaskStatus) (*types.Route, error)
}

type routeTaskService struct {
	log    *logger.Logger
	store  stores.RouteStore
	editor RouteEditor
}

func NewRouteTaskService(baseLog *logger.Logger, store stores.RouteStore, editor RouteEditor) RouteTaskService {
	return &routeTaskService{log: baseLog.With("service", "RouteTaskService"), store: store, editor: editor}
}

func (s *routeTaskService) ListRouteTasks(ctx context.Context, userID, routeID uuid.UUID) ([]*types.RouteTask, error) {
	if _, err := s.store.GetRoute(ctx, userID, routeID); err != nil {
		return nil, storeErr(err, "route_not_found", "route not found")
	}
	rows, err := s.store.ListRouteTasks(ctx, userID, routeID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.RouteTask{}
	}
	return rows, nil
}

func (s *routeTaskService) CurrentTasksForDate(ctx context.Context, userID uuid.UUID, rawDate string, now time.Time) (*DailyTasks, error) {
	today := roadmap.NormalizeDate(now.UTC())
	date, reason := roadmap.ResolveTaskQueryDate(rawDate, today, roadmap.TaskDateRangeDays)
	out := &DailyTasks{
		Date:    roadmap.FormatDateKey(date),
		CanPrev: roadmap.CanShiftTaskDate(date, -1, today, roadmap.TaskDateRangeDays),
		CanNext: roadmap.CanShiftTaskDate(date, 1, today, roadmap.TaskDateRangeDays),
		Tasks:   []DatedTask{},
	}
	if reason != roadmap.FallbackNone {
		r := string(reason)
		out.FallbackReason = &r
	}

	route, err := s.store.GetCurrentRoute(ctx, userID)
	if err != nil {
		return nil, err
	}
	if route == nil {
		return out, nil
	}
	id := route.ID
	out.RouteID = &id

	rows, err := s.store.ListRouteTasks(ctx, userID, route.ID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		key := roadmap.ToRouteTaskDateKey(row.Week, row.SlotDay(), route.CreatedAt)
		if key == out.Date {
			out.Tasks = append(out.Tasks, DatedTask{RouteTask: row, Date: key})
		}
	}
	return out, nil
}

func (s *routeTaskService) Timeline(ctx context.Context, userID, routeID uuid.UUID) (*Timeline, error) {
	route, err := s.store.GetRoute(ctx, userID, routeID)
	if err != nil {
		return nil, storeErr(err, "route_not_found", "route not found")
	}
	rm := roadmap.Parse(route.RoadmapData)
	out := &Timeline{RouteID: route.ID, CreatedAt: route.CreatedAt, Entries: []TimelineEntry{}}
	for _, p := range rm.Phases {
		for _, t := range p.Tasks {
			out.Entries = append(out.Entries, TimelineEntry{
				PhaseID:    p.ID,
				PhaseTitle: p.Title,
				TaskID:     t.ID,
				Title:      t.Title,
				Type:       t.Type,
				Status:     t.Status,
				Week:       t.Week,
				Day:        t.Day,
				Date:       roadmap.FormatDateKey(t.Date(route.CreatedAt)),
			})
		}
	}
	return out, nil
}

func (s *routeTaskService) UpdateTaskStatus(ctx context.Context, userID, routeID uuid.UUID, taskID string, status roadmap.TaskStatus) (*types.Route, error) {
	if !status.Valid() {
		return nil, apierr.Validationf("invalid_status", "status must be one of pending, in_progress, completed")
	}
	return s.editor.PatchTask(ctx, userID, routeID, taskID, TaskPatch{Status: &status})
}
