package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/stackmemory-backend/internal/http/handlers"
	httpMW "github.com/yungbote/stackmemory-backend/internal/http/middleware"
	"github.com/yungbote/stackmemory-backend/internal/observability"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

const serviceName = "stackmemory-backend"

type RouterConfig struct {
	Log            *logger.Logger
	CORSOrigins    []string
	AuthMiddleware *httpMW.AuthMiddleware

	HealthHandler   *httpH.HealthHandler
	AuthHandler     *httpH.AuthHandler
	RouteHandler    *httpH.RouteHandler
	RoadmapHandler  *httpH.RoadmapHandler
	CardHandler     *httpH.CardHandler
	OpenClawHandler *httpH.OpenClawHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(serviceName))
	r.Use(httpMW.AttachTraceContext())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics())
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
		r.GET("/readyz", cfg.HealthHandler.Ready)
	}
	r.GET("/metrics", gin.WrapH(observability.Handler()))

	api := r.Group("/api")
	{
		// Auth (public)
		if cfg.AuthHandler != nil {
			api.POST("/auth/local/register", cfg.AuthHandler.Register)
			api.POST("/auth/local/login", cfg.AuthHandler.Login)
			api.POST("/auth/logout", cfg.AuthHandler.Logout)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Routes
		if cfg.RouteHandler != nil {
			protected.GET("/routes", cfg.RouteHandler.ListRoutes)
			protected.POST("/routes", cfg.RouteHandler.CreateRoute)
			protected.DELETE("/routes", cfg.RouteHandler.DeleteRoute)
			protected.PUT("/routes/switch", cfg.RouteHandler.SwitchRoute)
			protected.GET("/routes/current", cfg.RouteHandler.GetCurrentRoute)
			protected.GET("/routes/current/tasks", cfg.RouteHandler.CurrentTasks)
			protected.GET("/routes/:routeId", cfg.RouteHandler.GetRoute)
			protected.GET("/routes/:routeId/tasks", cfg.RouteHandler.ListRouteTasks)
			protected.GET("/routes/:routeId/timeline", cfg.RouteHandler.Timeline)
			protected.PUT("/routes/:routeId/tasks/:taskId/status", cfg.RouteHandler.UpdateTaskStatus)
		}

		// Roadmap generation
		if cfg.RoadmapHandler != nil {
			protected.POST("/learning-roadmap", cfg.RoadmapHandler.Generate)
			protected.GET("/learning-roadmap", cfg.RoadmapHandler.Get)
			protected.POST("/routes/:routeId/quality-gate", cfg.RoadmapHandler.QualityGate)
		}

		// Flashcards
		if cfg.CardHandler != nil {
			protected.GET("/cards", cfg.CardHandler.ListCards)
			protected.POST("/cards", cfg.CardHandler.SaveCards)
			protected.POST("/cards/parse", cfg.CardHandler.ParseContent)
			protected.GET("/cards/:id", cfg.CardHandler.GetCard)
			protected.DELETE("/cards/:id", cfg.CardHandler.DeleteCard)
			protected.GET("/tags", cfg.CardHandler.ListTags)
		}
	}

	openclaw := api.Group("/openclaw")
	{
		if cfg.AuthMiddleware != nil {
			openclaw.Use(cfg.AuthMiddleware.RequireOpenClaw())
		}
		if cfg.OpenClawHandler != nil {
			openclaw.GET("/routes", cfg.OpenClawHandler.ListRoutes)
			openclaw.GET("/routes/:routeId", cfg.OpenClawHandler.GetRoute)
			openclaw.PATCH("/routes/:routeId", cfg.OpenClawHandler.PatchRoute)
			openclaw.POST("/routes/:routeId/tasks", cfg.OpenClawHandler.AddTask)
			openclaw.PATCH("/routes/:routeId/tasks/:taskId", cfg.OpenClawHandler.PatchTask)
			openclaw.DELETE("/routes/:routeId/tasks/:taskId", cfg.OpenClawHandler.DeleteTask)
			openclaw.POST("/routes/:routeId/tasks/:taskId/materials", cfg.OpenClawHandler.AddMaterial)
			openclaw.DELETE("/routes/:routeId/tasks/:taskId/materials", cfg.OpenClawHandler.RemoveMaterial)
		}
	}

	return r
}
