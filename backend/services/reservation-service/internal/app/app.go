package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"evslot/backend/libs/cache"
	libredis "evslot/backend/libs/redis"
	"evslot/backend/services/reservation-service/internal/broker"
	"evslot/backend/services/reservation-service/internal/config"
	"evslot/backend/services/reservation-service/internal/db"
	"evslot/backend/services/reservation-service/internal/gateway/ws"
	httpserver "evslot/backend/services/reservation-service/internal/http"
	"evslot/backend/services/reservation-service/internal/http/handlers"
	"evslot/backend/services/reservation-service/internal/http/middleware"
	"evslot/backend/services/reservation-service/internal/repository"
	"evslot/backend/services/reservation-service/internal/service"
)

// App wires reservation-service dependencies.
type App struct {
	cfg         *config.Config
	server      *httpserver.Server
	hub         *ws.Hub
	sweeper     *service.ExpirySweeper
	cron        *cron.Cron
	broker      *broker.Publisher
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	// cancels the websocket connections started by the gateway server
	stopClients context.CancelFunc
}

// New constructs the application graph.
func New(cfg *config.Config, logger *zap.Logger) (*App, error) {
	sqlDB, err := db.NewPostgres(cfg.Database)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Migrate {
		if err := db.Migrate(context.Background(), sqlDB); err != nil {
			sqlDB.Close()
			return nil, err
		}
		logger.Info("database schema applied")
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Warn("redis address not configured, running without cache")
	}

	store := cache.New(redisClient, cache.Options{
		Namespace: cfg.Cache.Namespace,
		OpTimeout: cfg.Cache.OpTimeout,
	}, logger.Named("cache"))

	reservationRepo := repository.NewReservationRepository(sqlDB)
	chargerRepo := repository.NewChargerRepository(sqlDB)
	stationRepo := repository.NewStationRepository(sqlDB)

	hub := ws.NewHub(cfg.WS.PingInterval, logger.Named("ws"))

	var sink service.EventSink
	var amqpPublisher *broker.Publisher
	if cfg.Broker.URL != "" {
		amqpPublisher = broker.NewPublisher(cfg.Broker.URL, broker.Options{
			Exchange:    cfg.Broker.Exchange,
			Buffer:      cfg.Broker.Buffer,
			DialTimeout: cfg.Broker.DialTimeout,
		}, logger.Named("broker"))
		sink = amqpPublisher
	}

	publisher := service.NewPublisher(store, hub, sink, cfg.Cache.OpTimeout, logger.Named("publisher"))
	ledger := service.NewLedger(reservationRepo, chargerRepo, stationRepo, store, publisher, service.LedgerOptions{
		SlotsTTL: cfg.Cache.SlotsTTL,
	}, logger.Named("ledger"))
	projector := service.NewProjector(stationRepo, store, service.ProjectorOptions{
		AvailabilityTTL: cfg.Cache.AvailabilityTTL,
		SearchTTL:       cfg.Cache.SearchTTL,
	}, logger.Named("projector"))
	statusService := service.NewChargerStatusService(chargerRepo, projector, publisher, logger.Named("charger-status"))

	var sweeper *service.ExpirySweeper
	if cfg.Expiry.Enabled {
		sweeper = service.NewExpirySweeper(reservationRepo, publisher, cfg.Expiry.Batch, logger.Named("expiry"))
	}

	auth := middleware.NewAuthenticator(cfg.Auth.JWTSecret)
	clientsCtx, stopClients := context.WithCancel(context.Background())
	wsServer := ws.NewServer(clientsCtx, hub, auth.VerifyUser, ws.ClientOptions{
		SendBuffer:   cfg.WS.SendBuffer,
		WriteTimeout: cfg.WS.WriteTimeout,
		PongWait:     2 * cfg.WS.PingInterval,
	}, logger.Named("ws"))

	checks := map[string]handlers.Check{
		"database": sqlDB.PingContext,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	router := httpserver.NewRouter(httpserver.RouterDeps{
		Reservations:   handlers.NewReservationHandlers(ledger, logger),
		Stations:       handlers.NewStationsHandlers(projector, logger),
		Internal:       handlers.NewInternalHandlers(statusService, publisher, logger),
		HealthHandler:  handlers.NewHealthHandler(checks),
		WSHandler:      wsServer.HandleWS,
		Auth:           auth,
		InternalKey:    cfg.Auth.InternalKey,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Logger:         logger.Named("http"),
	})
	server := httpserver.NewServer(cfg.HTTPAddress(), router, cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, logger)

	return &App{
		cfg:         cfg,
		server:      server,
		hub:         hub,
		sweeper:     sweeper,
		cron:        cron.New(),
		broker:      amqpPublisher,
		db:          sqlDB,
		redisClient: redisClient,
		logger:      logger,
		stopClients: stopClients,
	}, nil
}

// Run starts the gateway ping loop, the expiry schedule and the HTTP server.
func (a *App) Run(ctx context.Context) error {
	go a.hub.Start(ctx)

	if a.sweeper != nil {
		if _, err := a.sweeper.Schedule(ctx, a.cron, a.cfg.Expiry.Schedule); err != nil {
			return err
		}
		a.cron.Start()
		a.logger.Info("expiry sweeper scheduled", zap.String("schedule", a.cfg.Expiry.Schedule))
	}

	err := a.server.Run(ctx)
	a.stopClients()
	return err
}

// Close releases resources.
func (a *App) Close() {
	<-a.cron.Stop().Done()
	a.stopClients()
	a.hub.Close()

	if a.broker != nil {
		if err := a.broker.Close(); err != nil {
			a.logger.Warn("failed to close broker", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
