package main

import (
	"context"
	"fmt"
	"log"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/fastygo/taskboard/api/handler"
	"github.com/fastygo/taskboard/api/live"
	"github.com/fastygo/taskboard/internal/config"
	"github.com/fastygo/taskboard/internal/infrastructure/boltdb"
	"github.com/fastygo/taskboard/internal/infrastructure/genai"
	"github.com/fastygo/taskboard/internal/infrastructure/monitor"
	pgInfra "github.com/fastygo/taskboard/internal/infrastructure/postgres"
	redisInfra "github.com/fastygo/taskboard/internal/infrastructure/redis"
	"github.com/fastygo/taskboard/internal/middleware"
	"github.com/fastygo/taskboard/internal/router"
	"github.com/fastygo/taskboard/internal/services/lifecycle"
	"github.com/fastygo/taskboard/pkg/httpcontext"
	"github.com/fastygo/taskboard/pkg/logger"
	"github.com/fastygo/taskboard/repository"
	boltRepo "github.com/fastygo/taskboard/repository/bolt"
	"github.com/fastygo/taskboard/repository/memory"
	"github.com/fastygo/taskboard/repository/postgres"
	redisRepo "github.com/fastygo/taskboard/repository/redis"
	authUC "github.com/fastygo/taskboard/usecase/auth"
	profileUC "github.com/fastygo/taskboard/usecase/profile"
	"github.com/fastygo/taskboard/usecase/suggest"
	taskUC "github.com/fastygo/taskboard/usecase/task"
)

// stores is the persistence selected by STORE_DRIVER.
type stores struct {
	users    repository.UserRepository
	tasks    repository.TaskRepository
	sessions repository.SessionRepository
	feed     repository.ChangeFeed
	checks   map[string]monitor.Check
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
		AppName:  cfg.AppName,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	manager.Listen(cancel)

	st, err := openStores(appCtx, cfg, manager, zapLogger)
	if err != nil {
		zapLogger.Fatal("store initialization failed", zap.String("driver", cfg.Store.Driver), zap.Error(err))
	}

	var flow suggest.Flow
	if cfg.GenAI.URL != "" {
		var opts []genai.Option
		if cfg.GenAI.Timeout > 0 {
			opts = append(opts, genai.WithHTTPClient(&fasthttp.Client{
				Name:         "taskboard-genai",
				ReadTimeout:  cfg.GenAI.Timeout,
				WriteTimeout: cfg.GenAI.Timeout,
			}))
		}
		client := genai.New(cfg.GenAI.URL, cfg.GenAI.APIKey, opts...)
		flow = client
		st.checks["genai"] = client.Ping
	} else {
		zapLogger.Info("title suggestions disabled", zap.String("reason", "GENAI_FLOW_URL not set"))
	}

	mon := monitor.New(st.checks, 0, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	tokens := authUC.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTTL)
	authUseCase := authUC.New(st.users, st.sessions, tokens, authUC.NewPasswordHasher(cfg.Auth.BcryptCost), cfg.Auth.SessionTTL, zapLogger)
	profileUseCase := profileUC.New(st.users, st.tasks, zapLogger)
	taskUseCase := taskUC.New(st.tasks, st.feed, zapLogger)
	bridge := suggest.NewBridge(flow, zapLogger)

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)
	liveHandler := live.NewHandler(taskUseCase, authUseCase, bridge, ctxAdapter, live.Settings{
		PingInterval: cfg.Live.PingInterval,
		WriteTimeout: cfg.Live.WriteTimeout,
		ReadLimit:    cfg.Live.ReadLimit,
	}, zapLogger)

	handlers := router.Handlers{
		Auth:    apiHandler.NewAuthHandler(authUseCase, ctxAdapter, zapLogger),
		Profile: apiHandler.NewProfileHandler(profileUseCase, ctxAdapter, zapLogger),
		Task:    apiHandler.NewTaskHandler(taskUseCase, bridge, ctxAdapter, zapLogger),
		Health:  apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		Live:    liveHandler.Serve,
	}

	authMiddleware := middleware.JWTAuth(authUseCase, cfg.Context.RequestTimeout, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:            r.Handler,
		ReadTimeout:        cfg.HTTP.ReadTimeout,
		WriteTimeout:       cfg.HTTP.WriteTimeout,
		IdleTimeout:        cfg.HTTP.IdleTimeout,
		Concurrency:        cfg.HTTP.MaxConn,
		Name:               cfg.AppName,
		Logger:             zap.NewStdLog(zapLogger),
		MaxRequestBodySize: 1 << 20,
	}

	manager.Go("http_server", func() error {
		zapLogger.Info("server started", zap.String("address", cfg.Address()), zap.String("store", cfg.Store.Driver))
		return server.ListenAndServe(cfg.Address())
	})
	manager.Register("http_server", func(ctx context.Context) error {
		return server.ShutdownWithContext(ctx)
	})

	select {
	case <-appCtx.Done():
	case <-manager.Failed():
	}

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
	if err := manager.Wait(); err != nil {
		zapLogger.Error("server stopped with error", zap.Error(err))
	}
}

func openStores(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*stores, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		return openPostgres(ctx, cfg, manager, zapLogger)
	case config.DriverBolt:
		return openBolt(cfg, manager)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// openPostgres keeps tasks and accounts in PostgreSQL, with sessions and the
// change feed in Redis.
func openPostgres(ctx context.Context, cfg *config.Config, manager *lifecycle.Manager, zapLogger *zap.Logger) (*stores, error) {
	if err := pgInfra.RunMigrations(cfg, zapLogger); err != nil {
		return nil, fmt.Errorf("migrations: %w", err)
	}

	pool, err := pgInfra.NewPool(ctx, cfg.Database, zapLogger)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	manager.Register("postgres", func(ctx context.Context) error {
		pgInfra.Close(pool, zapLogger)
		return nil
	})

	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	manager.Register("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	return &stores{
		users:    postgres.NewUserRepository(pool),
		tasks:    postgres.NewTaskRepository(pool),
		sessions: redisRepo.NewSessionRepository(redisClient, cfg.Auth.SessionTTL),
		feed:     redisRepo.NewChangeFeed(redisClient),
		checks: map[string]monitor.Check{
			"postgresql": func(ctx context.Context) error { return pool.Ping(ctx) },
			"redis":      func(ctx context.Context) error { return redisInfra.Ping(ctx, redisClient) },
		},
	}, nil
}

// openBolt keeps everything in one embedded file with an in-process change feed.
func openBolt(cfg *config.Config, manager *lifecycle.Manager) (*stores, error) {
	db, err := boltdb.Open(cfg.Bolt.Path)
	if err != nil {
		return nil, fmt.Errorf("bolt: %w", err)
	}
	manager.Register("boltdb", func(ctx context.Context) error {
		return db.Close()
	})

	return &stores{
		users:    boltRepo.NewUserRepository(db, nil),
		tasks:    boltRepo.NewTaskRepository(db, nil),
		sessions: boltRepo.NewSessionRepository(db, cfg.Auth.SessionTTL, nil),
		feed:     memory.NewChangeFeed(),
		checks: map[string]monitor.Check{
			"boltdb": func(context.Context) error { return boltdb.Ping(db) },
		},
	}, nil
}
