package app

import (
	"context"

	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/http"
	httpH "github.com/yungbote/stackmemory-backend/internal/http/handlers"
	httpMW "github.com/yungbote/stackmemory-backend/internal/http/middleware"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	Route    *httpH.RouteHandler
	Roadmap  *httpH.RoadmapHandler
	Card     *httpH.CardHandler
	OpenClaw *httpH.OpenClawHandler
}

func wireHandlers(log *logger.Logger, cfg Config, db *gorm.DB, services Services, clients Clients) Handlers {
	log.Info("Wiring handlers...")
	checks := map[string]httpH.Pinger{
		"postgres": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if clients.Pool != nil {
		checks["hosted"] = clients.Pool.Ping
	}
	if clients.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return clients.Redis.Ping(ctx).Err() }
	}
	return Handlers{
		Health:   httpH.NewHealthHandler(checks),
		Auth:     httpH.NewAuthHandler(services.Auth, cfg.SecureCookie),
		Route:    httpH.NewRouteHandler(services.Routes, services.RouteTasks),
		Roadmap:  httpH.NewRoadmapHandler(services.Roadmaps),
		Card:     httpH.NewCardHandler(services.Cards, services.ContentParse),
		OpenClaw: httpH.NewOpenClawHandler(services.Routes, services.Editor),
	}
}

func wireMiddleware(log *logger.Logger, services Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, services.Auth),
	}
}

func wireServer(log *logger.Logger, cfg Config, handlers Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log:             log,
		CORSOrigins:     cfg.CORSOrigins,
		AuthMiddleware:  middleware.Auth,
		HealthHandler:   handlers.Health,
		AuthHandler:     handlers.Auth,
		RouteHandler:    handlers.Route,
		RoadmapHandler:  handlers.Roadmap,
		CardHandler:     handlers.Card,
		OpenClawHandler: handlers.OpenClaw,
	})
}
