package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quest-progression-system/config"
	"quest-progression-system/handlers"
	"quest-progression-system/logger"
	"quest-progression-system/middleware"
	"quest-progression-system/models"
	"quest-progression-system/notifications"
	"quest-progression-system/repository"
	"quest-progression-system/services"
	"quest-progression-system/utils"
	"quest-progression-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	gormLogger "gorm.io/gorm/logger"
)

func main() {
	cfg, dotenv, cfgErr := config.Load()

	mode := "dev"
	if cfg != nil {
		mode = cfg.LogMode
	}
	log, err := logger.New(mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if !dotenv {
		log.Info("no .env file found, reading environment variables directly")
	}
	if cfgErr != nil {
		log.Fatal("invalid configuration", "error", cfgErr)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Store ---
	var store services.Store
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn("using in-memory store, state is lost on restart")
		store = repository.NewMemoryStore()
	default:
		db, err := repository.Open(cfg.DatabaseURL, gormLogger.Warn)
		if err != nil {
			log.Fatal("failed to connect to database", "error", err)
		}
		if err := repository.AutoMigrate(db); err != nil {
			log.Fatal("failed to migrate database", "error", err)
		}
		store = repository.NewGormStore(db)
	}

	// --- Events: local SSE hub, optionally bridged across instances by redis ---
	hub := notifications.NewHub(32, log)
	var notifier services.Notifier = hub
	if cfg.RedisAddr != "" {
		pub, err := notifications.NewRedisPublisher(cfg.RedisAddr, cfg.RedisChannel, log)
		if err != nil {
			log.Fatal("failed to connect to redis", "error", err)
		}
		defer pub.Close()
		onEvents := func(userID string, events []models.Event) {
			_ = hub.Notify(ctx, userID, events)
		}
		if err := pub.StartForwarder(ctx, onEvents); err != nil {
			log.Fatal("failed to start redis forwarder", "error", err)
		}
		notifier = pub
	}

	rules := services.DefaultRules
	rules.ActiveQuestCap = cfg.ActiveQuestCap

	progressionService := services.NewProgressionService(store, rules, log,
		services.WithNotifier(notifier),
		services.WithMaintenanceWorkers(cfg.MaintenanceWorkers),
	)

	// --- History archive (optional) ---
	var archive services.Archiver
	if cfg.R2.Enabled() {
		a, err := utils.NewR2ArchiveStore(ctx, cfg.R2)
		if err != nil {
			log.Fatal("failed to initialize R2 client", "error", err)
		}
		archive = a
	} else {
		log.Info("R2 credentials not set, weekly history archive disabled")
	}

	scheduler, err := services.NewMaintenanceScheduler(progressionService, archive, log)
	if err != nil {
		log.Fatal("failed to create scheduler", "error", err)
	}
	if err := scheduler.Start(ctx); err != nil {
		log.Fatal("failed to start scheduler", "error", err)
	}

	if cfg.SyncServiceURL != "" {
		syncWorker := workers.NewProfileSyncWorker(progressionService, log,
			cfg.SyncServiceURL, cfg.SyncProfilePath, cfg.ServiceToken, cfg.SyncInterval)
		syncWorker.Start(ctx)
	} else {
		log.Info("SYNC_SERVICE_URL not set, profile sync disabled")
	}

	// --- HTTP ---
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})

	// Only gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.ServiceToken, log))

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, Cache-Control, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupEventStreamRoute(app, hub, log)
	handlers.SetupProgressionRoutes(app, progressionService, log)

	go func() {
		if err := app.Listen(":" + cfg.Port); err != nil {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	log.Info("server running",
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"redis", cfg.RedisAddr != "",
		"origins", cfg.AllowedOrigins,
	)

	<-ctx.Done()
	log.Info("shutting down server")

	if err := scheduler.Stop(); err != nil {
		log.Warn("scheduler shutdown", "error", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("server shutdown", "error", err)
	}
}
