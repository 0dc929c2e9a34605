package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/repos/routes"
	"github.com/yungbote/stackmemory-backend/internal/data/repos/users"
	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	"github.com/yungbote/stackmemory-backend/internal/modules/qualitygate"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
	"github.com/yungbote/stackmemory-backend/internal/services"
)

type Stores struct {
	Cards  stores.CardStore
	Routes stores.RouteStore
}

func wireStores(db *gorm.DB, clients Clients, cfg Config, log *logger.Logger) (Stores, error) {
	log.Info("Wiring stores...", "provider", cfg.DataProvider)
	cardStore, routeStore, err := stores.New(cfg.DataProvider, stores.Backends{DB: db, Pool: clients.Pool}, log)
	if err != nil {
		return Stores{}, err
	}
	return Stores{Cards: cardStore, Routes: routeStore}, nil
}

type Services struct {
	Auth         services.AuthService
	Routes       services.RouteService
	RouteTasks   services.RouteTaskService
	Editor       services.RouteEditor
	Roadmaps     services.RoadmapGenerationService
	Cards        services.CardService
	ContentParse services.ContentParseService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, st Stores, clients Clients) Services {
	log.Info("Wiring services...")

	// The editor needs the row lock, so it always runs on the gorm handle.
	editor := services.NewRouteEditor(
		db,
		log,
		routes.NewRouteRepo(db, log),
		routes.NewRouteTaskRepo(db, log),
		cfg.CurrentTasksAutofill,
	)
	routeService := services.NewRouteService(log, st.Routes)
	gate := qualitygate.New(clients.Prober, log)

	return Services{
		Auth:         services.NewAuthService(log, users.NewUserRepo(db, log), cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.OpenClawAPIKey),
		Routes:       routeService,
		RouteTasks:   services.NewRouteTaskService(log, st.Routes, editor),
		Editor:       editor,
		Roadmaps:     services.NewRoadmapGenerationService(log, clients.LLM, routeService, st.Routes, gate, services.DefaultGateTimeout),
		Cards:        services.NewCardService(log, st.Cards, st.Routes),
		ContentParse: services.NewContentParseService(log, clients.LLM, clients.Scraper),
	}
}
