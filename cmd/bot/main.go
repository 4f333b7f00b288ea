package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	maxbot "github.com/max-messenger/max-bot-api-client-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dLukachev/maxbot/internal/config"
	goalHttp "github.com/dLukachev/maxbot/internal/modules/goal/adapter/http"
	goalDomain "github.com/dLukachev/maxbot/internal/modules/goal/domain"
	goalRepo "github.com/dLukachev/maxbot/internal/modules/goal/repository"
	goalUseCase "github.com/dLukachev/maxbot/internal/modules/goal/usecase"
	"github.com/dLukachev/maxbot/internal/modules/notify"
	pointsHttp "github.com/dLukachev/maxbot/internal/modules/points/adapter/http"
	pointsUseCase "github.com/dLukachev/maxbot/internal/modules/points/usecase"
	reconcileHttp "github.com/dLukachev/maxbot/internal/modules/reconcile/adapter/http"
	reconcileUseCase "github.com/dLukachev/maxbot/internal/modules/reconcile/usecase"
	trackerHttp "github.com/dLukachev/maxbot/internal/modules/tracker/adapter/http"
	trackerDomain "github.com/dLukachev/maxbot/internal/modules/tracker/domain"
	trackerRepo "github.com/dLukachev/maxbot/internal/modules/tracker/repository"
	trackerUseCase "github.com/dLukachev/maxbot/internal/modules/tracker/usecase"
	userHttp "github.com/dLukachev/maxbot/internal/modules/user/adapter/http"
	userDomain "github.com/dLukachev/maxbot/internal/modules/user/domain"
	userRepo "github.com/dLukachev/maxbot/internal/modules/user/repository"
	userUseCase "github.com/dLukachev/maxbot/internal/modules/user/usecase"
	"github.com/dLukachev/maxbot/pkg/logger"
)

func main() {
	background := flag.Bool("d", false, "Run in background mode (disable console logging)")
	flag.Parse()

	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()

	logger.InitWithFile(cfg.Server.LogFile, cfg.Server.LogLevel, cfg.Server.LogFormat, !*background)
	defer logger.Flush()

	logger.InfoGlobal().Msg("🚀 Starting productivity bot...")

	// 1. Database
	db := openDatabase(cfg.Database)
	sqlDB, err := db.DB()
	if err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to get database instance")
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetConnMaxLifetime(time.Hour)
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to ping database")
	}
	if err := db.AutoMigrate(&userDomain.User{}, &goalDomain.Goal{}, &trackerDomain.Session{}); err != nil {
		logger.FatalGlobal().Err(err).Msg("Failed to migrate database")
	}
	logger.InfoGlobal().Str("driver", cfg.Database.Driver).Msg("✅ Database connected")

	// 2. Redis (optional)
	var rdb redis.UniversalClient
	if cfg.Redis.Host != "" {
		client := redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%s", cfg.Redis.Host, cfg.Redis.Port),
		})
		defer client.Close()
		rdb = client
		logger.InfoGlobal().Msg("✅ Redis connected")
	} else {
		logger.InfoGlobal().Msg("Redis disabled, using in-process caches")
	}

	// 3. Notifier (optional messenger delivery)
	var notifier notify.Notifier = notify.NewLogNotifier()
	if cfg.Bot.Token != "" {
		api, err := maxbot.New(cfg.Bot.Token)
		if err != nil {
			logger.FatalGlobal().Err(err).Msg("Failed to create messenger client")
		}
		notifier = notify.NewMaxNotifier(api)
		logger.InfoGlobal().Msg("✅ Messenger client initialized")
	} else {
		logger.InfoGlobal().Msg("BOT_TOKEN empty, notifications are log-only")
	}

	// 4. Modules
	userRepository := userRepo.NewUserRepository(db)
	goalRepository := goalRepo.NewGoalRepository(db)
	sessionRepository := trackerRepo.NewSessionRepository(db)

	ledgerUC := userUseCase.NewLedgerUseCase(userRepository)
	userUC := userUseCase.NewUserUseCase(userRepository, cfg.Points, goalRepository, sessionRepository)

	guard := pointsUseCase.NewGoalGuard(goalRepository, rdb)
	goalUC := goalUseCase.NewGoalUseCase(goalRepository, guard, userUC)

	trackerUC := trackerUseCase.NewTrackerUseCase(sessionRepository, ledgerUC, userUC, notifier)
	pointsUC := pointsUseCase.NewPointsUseCase(goalRepository, trackerUC, userRepository, cfg.Points)
	reconcileUC := reconcileUseCase.NewReconcileUseCase(userRepository, trackerUC, pointsUC, notifier, cfg.Reconcile)
	logger.InfoGlobal().Msg("✅ Modules initialized")

	// 5. Reconcile scheduler
	scheduler := reconcileUseCase.NewScheduler(reconcileUC, cfg.Reconcile.Hour)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		scheduler.Start(context.Background())
	}()

	// 6. HTTP server
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinMiddleware())

	api := router.Group("/api")
	{
		users := api.Group("/users")
		userHttp.NewHandler(userUC, ledgerUC).RegisterRoutes(users)
		goalHttp.NewHandler(goalUC).RegisterRoutes(users.Group("/:tid/goals"))
		trackerHttp.NewHandler(trackerUC, guard).RegisterRoutes(users.Group("/:tid/sessions"))
		pointsHttp.NewHandler(pointsUC).RegisterRoutes(users.Group("/:tid/points"))
		reconcileHttp.NewHandler(reconcileUC).RegisterRoutes(api.Group("/reconcile"))
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	logger.InfoGlobal().Str("port", cfg.Server.Port).Msg("🚀 Productivity bot running")

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.FatalGlobal().Err(err).Msg("HTTP server failed")
		}
	}()

	// 7. Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.InfoGlobal().Msg("🛑 Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.ErrorGlobal().Err(err).Msg("HTTP server forced to shutdown")
	}

	scheduler.Stop()
	wg.Wait()

	logger.InfoGlobal().Msg("👋 Server exited properly")
}

func openDatabase(cfg config.DatabaseConfig) *gorm.DB {
	gormCfg := &gorm.Config{Logger: logger.NewGormLogger()}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	default:
		db, err = gorm.Open(sqlite.Open(cfg.Path), gormCfg)
	}
	if err != nil {
		logger.FatalGlobal().Err(err).Str("driver", cfg.Driver).Msg("Failed to connect to database")
	}
	return db
}
