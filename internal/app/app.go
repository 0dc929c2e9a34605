package app

import (
	"context"
	"fmt"
	"net"

	"gorm.io/gorm"

	"github.com/yungbote/stackmemory-backend/internal/data/db"
	"github.com/yungbote/stackmemory-backend/internal/data/stores"
	"github.com/yungbote/stackmemory-backend/internal/http"
	"github.com/yungbote/stackmemory-backend/internal/observability"
	"github.com/yungbote/stackmemory-backend/internal/platform/logger"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Server   *http.Server
	Cfg      Config
	Clients  Clients
	Services Services

	pg           *db.PostgresService
	otelShutdown func(context.Context) error
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log, err := logger.NewWithOptions(logger.Options{Mode: cfg.LogMode, File: cfg.LogFile})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel)

	// The editor's gorm handle follows the store provider so both see one database.
	pgCfg := cfg.Postgres
	if cfg.DataProvider == stores.ProviderHosted {
		pgCfg.DSN = cfg.HostedDatabaseURL
	}
	pg, err := db.NewPostgresService(log, pgCfg)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, fmt.Errorf("postgres automigrate: %w", err)
	}
	theDB := pg.DB()

	clients, err := wireClients(ctx, log, cfg)
	if err != nil {
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	storeset, err := wireStores(theDB, clients, cfg, log)
	if err != nil {
		clients.Close()
		_ = pg.Close()
		log.Sync()
		return nil, err
	}

	serviceset := wireServices(theDB, log, cfg, storeset, clients)
	handlerset := wireHandlers(log, cfg, theDB, serviceset, clients)
	middleware := wireMiddleware(log, serviceset)

	return &App{
		Log:          log,
		DB:           theDB,
		Server:       wireServer(log, cfg, handlerset, middleware),
		Cfg:          cfg,
		Clients:      clients,
		Services:     serviceset,
		pg:           pg,
		otelShutdown: otelShutdown,
	}, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	addr := net.JoinHostPort("", a.Cfg.Port)
	a.Log.Info("Listening", "addr", addr, "provider", a.Cfg.DataProvider, "openclaw_enabled", a.Cfg.OpenClawAPIKey != "")
	return a.Server.Run(ctx, addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	a.Clients.Close()
	if a.pg != nil {
		_ = a.pg.Close()
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
