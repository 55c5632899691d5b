package main

import (
	"context"
	"flag"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"montage/internal/assets"
	"montage/internal/capability"
	"montage/internal/config"
	"montage/internal/events"
	"montage/internal/httpapi"
	"montage/internal/httpapi/handlers"
	"montage/internal/jobs"
	"montage/internal/pkg/logger"
	"montage/internal/pkg/shutdown"
	"montage/internal/repositories"
	"montage/internal/storage"
	"montage/internal/worker"
	"montage/internal/worker/processor"
	"montage/internal/worker/renderer"
	"montage/internal/workspace"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults to $MONTAGE_CONFIG)")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	bootLog := logger.NewDefault()
	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLog.LogFatal("invalid configuration", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		AddSource:   cfg.Logging.AddSource,
		ServiceName: "montage-api",
	})
	log.Info("starting montage API", "port", cfg.Server.Port)

	ctx := context.Background()
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Jobs root
	ws, err := workspace.Open(cfg.Render.JobsRoot)
	if err != nil {
		log.LogFatal("failed to open jobs root", err, "root", cfg.Render.JobsRoot)
	}
	shutdownMgr.Register("workspace", func(ctx context.Context) error {
		return ws.Close()
	})
	log.Info("jobs root locked", "root", ws.Root())

	// Engine
	caps := capability.Detect(ctx, cfg.Render.FFmpegBinary, capability.Mode(cfg.Render.HWAccel), log)
	log.Info("render engine ready",
		"binary", caps.Binary,
		"hardware_encode", caps.HardwareEncode,
		"mode", string(caps.Mode),
	)

	// PostgreSQL (optional, templates only)
	var (
		pool      *pgxpool.Pool
		templates handlers.TemplateStore
	)
	if cfg.Database.URL != "" {
		log.Info("connecting to PostgreSQL")
		pool, err = pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.LogFatal("failed to connect to PostgreSQL", err)
		}
		shutdownMgr.Register("postgres", func(ctx context.Context) error {
			pool.Close()
			return nil
		})
		if err := pool.Ping(ctx); err != nil {
			log.LogFatal("failed to ping PostgreSQL", err)
		}

		repo := repositories.NewTemplateRepository(pool)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.LogFatal("failed to prepare templates schema", err)
		}
		templates = repo
		log.Info("PostgreSQL connected")
	} else {
		log.Info("DATABASE_URL not set, templates disabled")
	}

	// Redis (optional, lifecycle events only)
	var (
		rdb       *redis.Client
		publisher events.Publisher = events.Noop{}
	)
	if cfg.Redis.Addr != "" {
		log.Info("connecting to Redis")
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		shutdownMgr.Register("redis", func(ctx context.Context) error {
			return rdb.Close()
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.LogFatal("failed to ping Redis", err)
		}
		publisher = events.NewRedisPublisher(rdb, cfg.Redis.EventsChannel)
		log.Info("Redis connected", "channel", cfg.Redis.EventsChannel)
	}

	// Storage (optional)
	sp, err := storage.NewProvider(ctx, cfg.Storage)
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	if sp != nil {
		log.Info("storage provider initialized", "provider", sp.Provider())
	}

	// Render pipeline
	store := jobs.NewStore()
	proc := processor.New(processor.Deps{
		Store: store,
		Resolver: assets.NewResolver(
			assets.WithStorage(sp),
			assets.WithTimeout(cfg.DownloadTimeout()),
		),
		Runner: renderer.NewFFmpeg(
			renderer.WithBinary(caps.Binary),
			renderer.WithLogger(log),
		),
		Caps:          caps,
		Publisher:     publisher,
		SP:            sp,
		CleanupInputs: cfg.Render.CleanupInputs,
		Log:           log,
	})
	exec := worker.New(worker.Deps{
		Store:     store,
		Processor: proc,
		Dirs:      ws,
		Log:       log,
	})
	shutdownMgr.Register("workers", func(ctx context.Context) error {
		log.Info("waiting for running jobs", "in_flight", exec.InFlight())
		return exec.Wait(ctx)
	})

	router := httpapi.NewRouter(httpapi.Deps{
		Handlers: handlers.Deps{
			Jobs:      store,
			Exec:      exec,
			Templates: templates,
			SP:        sp,
			Pool:      pool,
			RDB:       rdb,
			Caps:      caps,
			BaseURL:   cfg.Server.PublicBaseURL,
		},
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Log:            log,
	})

	server := &http.Server{
		Addr:        cfg.Addr(),
		Handler:     router,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	shutdownMgr.Wait()
}
