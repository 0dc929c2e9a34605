package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	types "github.com/yungbote/stackmemory-backend/internal/domain"
	"github.com/yungbote/stackmemory-backend/internal/modules/qualitygate"
	"github.com/yungbote/stackmemory-backend/internal/modules/roadmap"
	"github.com/yungbote/stackmemory-backend/internal/platform/apierr"
	"github.com/yungbote/stackmemory-backend/internal/platform/llm"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const (
	DefaultGeneratedWeeks = 12
	DefaultGateTimeout    = 60 * time.Second
)

type GenerateRoadmapInput struct {
	Topic       string  `json:"topic" validate:"notblank"`
	Background  *string `json:"background"`
	Goals       *string `json:"goals"`
	TimeBudget  *string `json:"time_budget"`
	Weeks       *int    `json:"weeks" validate:"omitempty,min=1,max=52"`
	Constraints *string `json:"constraints"`
}

type RoadmapResult struct {
	Route       *types.Route            `json:"route"`
	Data        roadmap.Roadmap         `json:"data"`
	QualityGate qualitygate.BatchResult `json:"qualityGate"`
}

// MaterialGate scores the materials of a task list.
type MaterialGate interface {
	ValidateAll(ctx context.Context, tasks []roadmap.Task) qualitygate.BatchResult
}

type RoadmapGenerationService interface {
	Generate(ctx context.Context, userID uuid.UUID, in GenerateRoadmapInput) (*RoadmapResult, error)
	// GetRoadmap loads routeID, or the current route when routeID is nil.
	// It returns nil when the user has no route at all.
	GetRoadmap(ctx context.Context, userID, routeID uuid.UUID) (*RoadmapResult, error)
	RouteQualityGate(ctx context.Context, userID, routeID uuid.UUID) (qualitygate.BatchResult, error)
}

type roadmapGenerationService struct {
	log         *logger.Logger
	llm         llm.Client
	routes      RouteService
	store       stores.RouteStore
	gate        MaterialGate
	gateTimeout time.Duration
}

func NewRoadmapGenerationService(
	baseLog *logger.Logger,
	llmClient llm.Client,
	routes RouteService,
	store stores.RouteStore,
	gate MaterialGate,
	gateTimeout time.Duration,
) RoadmapGenerationService {
	if gateTimeout <= 0 {
		gateTimeout = DefaultGateTimeout
	}
	return &roadmapGenerationService{
		log:         baseLog.With("service", "RoadmapGenerationService"),
		llm:         llmClient,
		routes:      routes,
		store:       store,
		gate:        gate,
		gateTimeout: gateTimeout,
	}
}

func upstreamErr(err error) error {
	if errors.Is(err, llm.ErrNotConfigured) {
		return apierr.New(apierr.Upstream, "llm_not_configured", "AI provider is not configured")
	}
	return apierr.Wrap(apierr.Upstream, "llm_failed", err)
}

func (s *roadmapGenerationService) Generate(ctx context.Context, userID uuid.UUID, in GenerateRoadmapInput) (*RoadmapResult, error) {
	if err := validateInput("invalid_roadmap_request", in); err != nil {
		return nil, err
	}
	weeks := DefaultGeneratedWeeks
	if in.Weeks != nil {
		weeks = *in.Weeks
	}

	content, err := s.llm.Chat(ctx, "roadmap", llm.ChatRequest{
		System:      roadmapSystemPrompt,
		User:        roadmapUserPrompt(in, weeks),
		Temperature: 0.7,
		MaxTokens:   8000,
	})
	if err != nil {
		return nil, upstreamErr(err)
	}
	raw, err := llm.ExtractJSONObject(content)
	if err != nil {
		return nil, apierr.Wrap(apierr.Upstream, "llm_invalid_json", err)
	}

	route, err := s.routes.CreateRoute(ctx, userID, CreateRouteInput{
		Topic:       in.Topic,
		Background:  in.Background,
		Goals:       in.Goals,
		Weeks:       &weeks,
		RoadmapData: raw,
	})
	if err != nil {
		return nil, err
	}
	rm := roadmap.Parse(route.RoadmapData)
	s.log.Info("roadmap generated", "route_id", route.ID, "user_id", userID, "phases", len(rm.Phases))

	return &RoadmapResult{Route: route, Data: rm, QualityGate: s.runGate(ctx, rm.CurrentTasks)}, nil
}

func (s *roadmapGenerationService) GetRoadmap(ctx context.Context, userID, routeID uuid.UUID) (*RoadmapResult, error) {
	var (
		route *types.Route
		err   error
	)
	if routeID == uuid.Nil {
		route, err = s.routes.GetCurrentRoute(ctx, userID)
	} else {
		route, err = s.routes.GetRoute(ctx, userID, routeID)
	}
	if err != nil {
		return nil, err
	}
	if route == nil {
		return nil, nil
	}
	rm := roadmap.Parse(route.RoadmapData)
	return &RoadmapResult{Route: route, Data: rm, QualityGate: s.runGate(ctx, rm.CurrentTasks)}, nil
}

func (s *roadmapGenerationService) RouteQualityGate(ctx context.Context, userID, routeID uuid.UUID) (qualitygate.BatchResult, error) {
	route, err := s.store.GetRoute(ctx, userID, routeID)
	if err != nil {
		return qualitygate.EmptyBatch(), storeErr(err, "route_not_found", "route not found")
	}
	rm := roadmap.Parse(route.RoadmapData)
	return s.runGate(ctx, rm.CurrentTasks), nil
}

// runGate never fails the caller; a gate that cannot run reports an empty batch.
func (s *roadmapGenerationService) runGate(ctx context.Context, tasks []roadmap.Task) (out qualitygate.BatchResult) {
	out = qualitygate.EmptyBatch()
	if s.gate == nil || len(tasks) == 0 {
		return out
	}
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("quality gate panicked", "panic", r)
			out = qualitygate.EmptyBatch()
		}
	}()
	gctx, cancel := context.WithTimeout(ctx, s.gateTimeout)
	defer cancel()
	return s.gate.ValidateAll(gctx, tasks)
}
