package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	DefaultRouteListLimit = 20
	MaxRouteListLimit     = 100
	DefaultRouteWeeks     = 4
)

type RouteList struct {
	Routes []*types.Route `json:"routes"`
	Total  int64          `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

type CreateRouteInput struct {
	Topic       string          `json:"topic" validate:"notblank"`
	Background  *string         `json:"background"`
	Goals       *string         `json:"goals"`
	Weeks       *int            `json:"weeks" validate:"omitempty,min=1,max=52"`
	RoadmapData json.RawMessage `json:"roadmap_data"`
}

type RouteService interface {
	ListRoutes(ctx context.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) (*RouteList, error)
	GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)
	GetCurrentRoute(ctx context.Context, userID uuid.UUID) (*types.Route, error)
	CreateRoute(ctx context.Context, userID uuid.UUID, in CreateRouteInput) (*types.Route, error)
	SwitchRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)
	// DeleteRoute returns the route that is current afterwards, if any.
	DeleteRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error)
}

type routeService struct {
	log   *logger.Logger
	store stores.RouteStore
}

func NewRouteService(baseLog *logger.Logger, store stores.RouteStore) RouteService {
	return &routeService{log: baseLog.With("service", "RouteService"), store: store}
}

// storeErr maps store sentinels onto API error kinds.
func storeErr(err error, code, msg string) error {
	if errors.Is(err, stores.ErrNotFound) {
		return apierr.NotFoundf(code, "%s", msg)
	}
	return err
}

func (s *routeService) ListRoutes(ctx context.Context, userID uuid.UUID, limit, offset int, includeRoadmap bool) (*RouteList, error) {
	if limit < 1 || limit > MaxRouteListLimit || offset < 0 {
		return nil, apierr.Validationf("invalid_pagination", "limit must be 1-%d and offset must be >= 0", MaxRouteListLimit)
	}
	rows, total, err := s.store.ListRoutes(ctx, userID, limit, offset, includeRoadmap)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []*types.Route{}
	}
	return &RouteList{Routes: rows, Total: total, Limit: limit, Offset: offset}, nil
}

func (s *routeService) GetRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	row, err := s.store.GetRoute(ctx, userID, routeID)
	if err != nil {
		return nil, storeErr(err, "route_not_found", "route not found")
	}
	return row, nil
}

func (s *routeService) GetCurrentRoute(ctx context.Context, userID uuid.UUID) (*types.Route, error) {
	return s.store.GetCurrentRoute(ctx, userID)
}

func (s *routeService) CreateRoute(ctx context.Context, userID uuid.UUID, in CreateRouteInput) (*types.Route, error) {
	if err := validateInput("invalid_route", in); err != nil {
		return nil, err
	}
	topic := strings.TrimSpace(in.Topic)
	if utf8.RuneCountInString(topic) > maxTopicRunes {
		return nil, apierr.Validationf("invalid_topic", "topic must be at most %d characters", maxTopicRunes)
	}
	now := time.Now().UTC()
	row := &types.Route{
		UserID:    userID,
		Topic:     topic,
		Weeks:     DefaultRouteWeeks,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Background != nil {
		row.Background = trimmedOrNil(*in.Background)
	}
	if in.Goals != nil {
		row.Goals = trimmedOrNil(*in.Goals)
	}
	if in.Weeks != nil {
		row.Weeks = *in.Weeks
	}

	var tasks []*types.RouteTask
	if raw := strings.TrimSpace(string(in.RoadmapData)); raw != "" && raw != "null" {
		rm := roadmap.Parse(in.RoadmapData)
		scheduleDays(&rm)
		data, err := rm.Marshal()
		if err != nil {
			return nil, err
		}
		row.RoadmapData = datatypes.JSON(data)
		tasks = mirrorRows(rm, now)
	}

	out, err := s.store.CreateRoute(ctx, row, tasks)
	if err != nil {
		s.log.Error("CreateRoute failed", "error", err, "user_id", userID)
		return nil, err
	}
	return out, nil
}

// scheduleDays renumbers days within each week of the phase tree and copies
// the result onto currentTasks. Weeks with more than seven tasks stack the
// overflow on day 7.
func scheduleDays(rm *roadmap.Roadmap) {
	var slots []*roadmap.Task
	for pi := range rm.Phases {
		for ti := range rm.Phases[pi].Tasks {
			slots = append(slots, &rm.Phases[pi].Tasks[ti])
		}
	}
	roadmap.NormalizeTaskDaysByWeek(slots)
	for _, t := range slots {
		if t.DayOrZero() > 7 {
			t.SetSlotDay(7)
		}
	}
	for i := range rm.CurrentTasks {
		if loc, ok := rm.FindTask(rm.CurrentTasks[i].ID); ok {
			rm.CurrentTasks[i].SetSlotDay(rm.TaskAt(loc).DayOrZero())
		}
	}
}

func (s *routeService) SwitchRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	out, err := s.store.SwitchRoute(ctx, userID, routeID)
	if err != nil {
		return nil, storeErr(err, "route_not_found", "route not found")
	}
	return out, nil
}

func (s *routeService) DeleteRoute(ctx context.Context, userID, routeID uuid.UUID) (*types.Route, error) {
	next, err := s.store.DeleteRoute(ctx, userID, routeID)
	if err != nil {
		return nil, storeErr(err, "route_not_found", "route not found")
	}
	s.log.Info("route deleted", "route_id", routeID, "user_id", userID)
	return next, nil
}
