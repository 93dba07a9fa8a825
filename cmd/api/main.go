package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"github.com/yourusername/cat-engine/internal/config"
	"github.com/yourusername/cat-engine/internal/domain/repository"
	"github.com/yourusername/cat-engine/internal/events"
	"github.com/yourusername/cat-engine/internal/handler"
	"github.com/yourusername/cat-engine/internal/middleware"
	"github.com/yourusername/cat-engine/internal/pkg/logger"
	pgRepo "github.com/yourusername/cat-engine/internal/repository/postgres"
	redisRepo "github.com/yourusername/cat-engine/internal/repository/redis"
	"github.com/yourusername/cat-engine/internal/service"
	ws "github.com/yourusername/cat-engine/internal/websocket"
	"github.com/yourusername/cat-engine/pkg/database"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Mode, cfg.Log.FilePath)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := service.CATEngineDeps{Logger: log}

	// PostgreSQL: calibrations and the result archive
	var db *gorm.DB
	var resultRepo *pgRepo.SessionResultRepo
	if cfg.Database.Enabled {
		db, err = database.NewPostgresDB(cfg.Database.PostgresConnectionString())
		if err != nil {
			log.Fatal("Failed to connect to database", "error", err)
		}
		if err := database.MigrateDB(db, database.DefaultMigrationsPath, log); err != nil {
			log.Fatal("Failed to migrate database", "error", err)
		}
		resultRepo = pgRepo.NewSessionResultRepo(db)
		deps.ItemParamRepo = pgRepo.NewItemParameterRepo(db)
		log.Info("Connected to PostgreSQL", "host", cfg.Database.Host, "db", cfg.Database.DBName)
	} else {
		log.Warn("Database disabled, calibrations and results are kept in memory only")
	}

	// Redis: shared exposure counters and rate limit windows
	var redisClient redis.UniversalClient
	var cacheRepo *redisRepo.CacheRepo
	var windowCounter middleware.WindowCounter = middleware.NewMemoryWindowCounter()
	if cfg.Redis.Enabled {
		redisClient, err = database.NewUniversalRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer redisClient.Close()
		cacheRepo, err = redisRepo.NewCacheRepo(redisClient)
		if err != nil {
			log.Fatal("Failed to initialize cache repository", "error", err)
		}
		deps.ExposureRepo = redisRepo.NewExposureRepo(cacheRepo)
		windowCounter = middleware.NewRedisWindowCounter(redisClient, log)
		log.Info("Connected to Redis", "mode", cfg.Redis.Mode)
	} else {
		log.Warn("Redis disabled, exposure counters are process-local")
	}

	// Archived results, read through Redis when both stores are on
	if resultRepo != nil {
		var archive repository.SessionResultRepository = resultRepo
		if cacheRepo != nil {
			archive = redisRepo.NewResultCache(resultRepo, cacheRepo, redisRepo.DefaultResultTTL, log)
		}
		deps.ResultRepo = archive
	}

	// Event bus with the WebSocket stream and the optional NATS forwarder
	bus := events.NewBus(events.BusConfig{QueueSize: cfg.Events.QueueSize, Topic: cfg.Events.Topic}, log)
	deps.Publisher = bus

	hub := ws.NewHub(log)
	hubMessages, err := bus.Subscribe(ctx)
	if err != nil {
		log.Fatal("Failed to subscribe hub to the event bus", "error", err)
	}
	go hub.Run(ctx)
	go hub.Consume(ctx, hubMessages)

	if cfg.Events.NATSURL != "" {
		forwarder, err := events.NewNATSForwarder(cfg.Events.NATSURL, log)
		if err != nil {
			log.Error("NATS forwarding disabled", "error", err)
		} else {
			defer forwarder.Close()
			natsMessages, err := bus.Subscribe(ctx)
			if err != nil {
				log.Fatal("Failed to subscribe NATS forwarder", "error", err)
			}
			go forwarder.Run(ctx, natsMessages)
		}
	}
	bus.Start()

	engine, err := service.NewCATEngine(cfg.CAT, deps)
	if err != nil {
		log.Fatal("Failed to create CAT engine", "error", err)
	}
	go engine.RunSessionJanitor(ctx, cfg.Sessions.Retention, cfg.Sessions.PurgeInterval)

	catHandler := handler.NewCATHandler(engine, deps.ResultRepo, log)
	wsHandler := handler.NewWSHandler(hub, cfg.Server.AllowOrigins, log)

	router := gin.New()
	router.Use(gin.Recovery())
	if gin.Mode() == gin.ReleaseMode {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Warn("Failed to set trusted proxies", "error", err)
		}
	} else {
		router.Use(gin.Logger())
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Warn("Failed to set trusted proxies", "error", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-RateLimit-Remaining"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	api := router.Group("/api/cat")
	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(windowCounter, log)
		api.Use(limiter.LimitByIP(middleware.RateLimitConfig{
			MaxRequests: cfg.RateLimit.MaxRequests,
			Window:      time.Duration(cfg.RateLimit.WindowSec) * time.Second,
			KeyPrefix:   "rl:cat",
		}))
	}
	catHandler.RegisterRoutes(api)

	router.GET("/ws", wsHandler.HandleConnection)
	router.GET("/health", func(c *gin.Context) {
		status := http.StatusOK
		checks := gin.H{}
		pingCtx, pingCancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer pingCancel()
		if db != nil {
			checks["database"] = "ok"
			if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(pingCtx) != nil {
				checks["database"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		if redisClient != nil {
			checks["redis"] = "ok"
			if err := redisClient.Ping(pingCtx).Err(); err != nil {
				checks["redis"] = "unavailable"
				status = http.StatusServiceUnavailable
			}
		}
		c.JSON(status, gin.H{
			"status":    http.StatusText(status),
			"checks":    checks,
			"sessions":  len(engine.ListSessions()),
			"websocket": hub.Metrics(),
		})
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("Starting server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("Server failed", "error", err)
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
	}

	// flush queued events before the consumers stop
	if err := bus.Close(); err != nil {
		log.Warn("Failed to close event bus", "error", err)
	}
	cancel()

	log.Info("Server exited properly")
}
