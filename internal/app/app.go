package app

import (
	"context"
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	libdb "voltgrid/libs/db"
	libredis "voltgrid/libs/redis"

	"voltgrid/internal/cache"
	"voltgrid/internal/config"
	httpserver "voltgrid/internal/http"
	httphandlers "voltgrid/internal/http/handlers"
	"voltgrid/internal/http/middleware"
	"voltgrid/internal/ocpp"
	ocpphandlers "voltgrid/internal/ocpp/handlers"
	"voltgrid/internal/password"
	"voltgrid/internal/repository"
	"voltgrid/internal/service"
	"voltgrid/internal/ws"
)

// App wires all dependencies for the device registry.
type App struct {
	server    *httpserver.Server
	db        *sql.DB
	manager   *ws.Manager
	linkQueue *service.LinkQueue
	logger    *zap.Logger
}

// New builds the application graph and runs migrations.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := libdb.NewPostgresDB(cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(ctx, sqlDB, repository.DialectPostgres); err != nil {
		sqlDB.Close()
		return nil, err
	}

	deviceRepo := repository.NewDeviceModelRepository(sqlDB, logger)
	stationRepo := repository.NewStationRepository(sqlDB)
	hasher := password.NewBcryptHasher(cfg.Auth.BcryptCost)

	linkQueue := service.NewLinkQueue(deviceRepo, cfg.Links.BufferSize, logger)
	deviceRepo.SetLinkWriter(linkQueue)

	var availabilityCache *cache.AvailabilityCache
	if cfg.Redis.Addr != "" {
		redisClient, err := libredis.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			sqlDB.Close()
			return nil, err
		}
		availabilityCache = cache.NewAvailabilityCache(redisClient, cfg.RedisTTL())
	}

	reportSvc := service.NewReportService(deviceRepo, logger)
	stationSvc := service.NewStationService(stationRepo, deviceRepo, hasher, logger)
	availabilitySvc := newAvailabilityService(deviceRepo, availabilityCache, logger)

	router := ocpp.NewRouter()
	processor := ocpp.NewProcessor(ocpp.NewParser(), router, logger)
	router.Register("BootNotification", ocpphandlers.NewBootNotificationHandler(stationRepo, reportSvc, cfg.BootInterval(), logger))
	router.Register("Heartbeat", ocpphandlers.NewHeartbeatHandler(stationRepo, logger))
	router.Register("NotifyReport", ocpphandlers.NewNotifyReportHandler(reportSvc, logger))
	router.Register("StatusNotification", ocpphandlers.NewStatusNotificationHandler(availabilitySvc, logger))

	manager := ws.NewManager(cfg.PingInterval())
	wsServer := ws.NewServer(manager, processor, stationSvc, cfg.ReadTimeout(), cfg.WriteTimeout(), logger)

	apiRouter := httpserver.NewRouter(httpserver.RouterDeps{
		DeviceModel:   httphandlers.NewDeviceModelHandler(reportSvc, logger),
		Availability:  httphandlers.NewAvailabilityHandler(availabilitySvc, stationSvc, logger),
		StationAdmin:  httphandlers.NewStationAdminHandler(stationSvc, logger),
		HealthHandler: httphandlers.NewHealthHandler(),
	}, middleware.AuthMiddleware(cfg.Auth.JWTSecret))

	mux := http.NewServeMux()
	mux.Handle("/ocpp/", http.HandlerFunc(wsServer.HandleWS))
	mux.Handle("/", apiRouter)

	return &App{
		server:    httpserver.NewServer(cfg.HTTPAddress(), mux, logger),
		db:        sqlDB,
		manager:   manager,
		linkQueue: linkQueue,
		logger:    logger,
	}, nil
}

func newAvailabilityService(repo *repository.DeviceModelRepository, availabilityCache *cache.AvailabilityCache, logger *zap.Logger) *service.AvailabilityService {
	if availabilityCache == nil {
		return service.NewAvailabilityService(repo, nil, logger)
	}
	return service.NewAvailabilityService(repo, availabilityCache, logger)
}

// Run starts background workers and the HTTP server, blocking until ctx is
// canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	go a.linkQueue.Start(ctx)
	go a.manager.Start(ctx)
	return a.server.Run(ctx)
}

// Close releases resources.
func (a *App) Close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
