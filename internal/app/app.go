package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/riskibarqy/duelhub/internal/config"
	"github.com/riskibarqy/duelhub/internal/domain/match"
	"github.com/riskibarqy/duelhub/internal/domain/player"
	"github.com/riskibarqy/duelhub/internal/domain/queue"
	"github.com/riskibarqy/duelhub/internal/infrastructure/push"
	"github.com/riskibarqy/duelhub/internal/infrastructure/relay"
	"github.com/riskibarqy/duelhub/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/duelhub/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/duelhub/internal/interfaces/httpapi"
	"github.com/riskibarqy/duelhub/internal/platform/cache"
	idgen "github.com/riskibarqy/duelhub/internal/platform/id"
	"github.com/riskibarqy/duelhub/internal/platform/logging"
	"github.com/riskibarqy/duelhub/internal/platform/resilience"
	"github.com/riskibarqy/duelhub/internal/usecase"
)

// App bundles the HTTP server with the background loops that drive
// matchmaking: the queue consumer and the accept-deadline sweeper.
type App struct {
	Server          *http.Server
	Consumer        *usecase.Consumer
	Sweeper         *usecase.Sweeper
	Hub             *push.Hub
	ConsumerEnabled bool

	db *sqlx.DB
}

func New(cfg config.Config, logger *slog.Logger, serviceLogger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if serviceLogger == nil {
		serviceLogger = logging.Default()
	}

	var (
		db         *sqlx.DB
		playerRepo player.Repository
		queueRepo  queue.Repository
		matchRepo  match.Repository
	)
	if cfg.DBURL == "" {
		playerRepo = memory.NewPlayerRepository(memory.SeedPlayers())
		queueRepo = memory.NewQueueRepository()
		matchRepo = memory.NewMatchRepository()
		logger.Info("using in-memory stores")
	} else {
		conn, err := sqlx.Connect("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary))
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		db = conn
		playerRepo = postgres.NewPlayerRepository(conn)
		queueRepo = postgres.NewQueueRepository(conn)
		matchRepo = postgres.NewMatchRepository(conn)
		logger.Info("using postgres stores", "db", dbNameFromURL(cfg.DBURL))
	}

	var statusCache *cache.Store
	if cfg.CacheEnabled {
		statusCache = cache.NewStore(cfg.CacheTTL)
	}

	hub := push.NewHub(cfg.PushSendTimeout, serviceLogger)
	notifiers := []usecase.Notifier{hub}
	if cfg.RelayEnabled {
		notifiers = append(notifiers, relay.NewPublisher(relay.PublisherConfig{
			Endpoint: cfg.RelayEndpoint,
			Token:    cfg.RelayToken,
			Timeout:  cfg.RelayTimeout,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.RelayCircuitEnabled,
				FailureThreshold: cfg.RelayCircuitFailureCount,
				OpenTimeout:      cfg.RelayCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.RelayCircuitHalfOpenMaxReq,
			},
		}, logger))
	}

	matchSvc := usecase.NewMatchService(
		matchRepo,
		idgen.NewRandomGenerator(),
		usecase.MultiNotifier(notifiers),
		usecase.MatchServiceConfig{AcceptWindow: cfg.AcceptWindow},
		serviceLogger,
	)
	queueSvc := usecase.NewQueueService(queueRepo, matchRepo, playerRepo, statusCache, serviceLogger)

	matcher := usecase.NewMatcher(usecase.MatcherConfig{
		BaseDelta:  cfg.MatcherBaseDelta,
		MaxDelta:   cfg.MatcherMaxDelta,
		WidenAfter: cfg.MatcherWidenAfter,
		WidenEvery: cfg.MatcherWidenEvery,
		WidenStep:  cfg.MatcherWidenStep,
	})
	consumerBreaker := resilience.NewCircuitBreaker(5, cfg.ConsumerErrorBackoff, 2)
	consumer := usecase.NewConsumer(queueRepo, matchSvc, matcher, consumerBreaker, usecase.ConsumerConfig{
		PollInterval: cfg.ConsumerPollInterval,
		ErrorBackoff: cfg.ConsumerErrorBackoff,
		BatchSize:    cfg.ConsumerBatchSize,
		Workers:      cfg.ConsumerWorkers,
	}, serviceLogger)

	sweeper := usecase.NewSweeper(matchSvc, usecase.SweeperConfig{
		Interval: cfg.SweepInterval,
		Batch:    cfg.SweepBatch,
	}, serviceLogger)

	handler := httpapi.NewHandler(queueSvc, matchSvc, hub, logger)
	router := httpapi.NewRouter(handler, logger, cfg.CORSAllowedOrigins)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if server.Addr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return &App{
		Server:          server,
		Consumer:        consumer,
		Sweeper:         sweeper,
		Hub:             hub,
		ConsumerEnabled: cfg.ConsumerEnabled,
		db:              db,
	}, nil
}

// Close releases resources that outlive the HTTP server.
func (a *App) Close() error {
	a.Hub.Shutdown()
	if a.db != nil {
		return a.db.Close()
	}

	return nil
}
