package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"live-class-backend/internal/config"
	"live-class-backend/internal/database"
	"live-class-backend/internal/handlers"
	"live-class-backend/internal/logger"
	"live-class-backend/internal/pubsub"
	"live-class-backend/internal/services"
	"live-class-backend/internal/store"
	"live-class-backend/internal/ws"

	_ "live-class-backend/docs"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// @title           Live Class API
// @version         1.0
// @description     Live classroom sessions: join codes, questions, answers and real-time answer boards
// @host            localhost:8080
// @BasePath        /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Enter "Bearer {token}"

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	broker := pubsub.NewBroker(cfg.SubscriberBuffer)

	var (
		base store.Store
		db   *gorm.DB
	)
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		base = store.NewMemoryStore()
	default:
		var err error
		db, err = database.Connect(cfg)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		if err := database.AutoMigrate(db); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		base = store.NewGormStore(db)
	}

	var publisher pubsub.Publisher = broker
	if cfg.PubSubMode == config.PubSubPostgres {
		if db == nil {
			slog.Error("PUBSUB_MODE=postgres requires STORE_DRIVER=postgres")
			os.Exit(1)
		}
		publisher = pubsub.NewPGNotifier(db, cfg.NotifyChannel)
		relay := pubsub.NewPGRelay(cfg.DSN(), cfg.NotifyChannel, broker)
		go func() {
			if err := relay.Run(ctx); err != nil {
				slog.Error("pubsub relay stopped", "error", err)
				stop()
			}
		}()
	}
	st := store.WithChanges(base, publisher)

	hub := ws.NewHub(broker)

	authService := services.NewAuthService(st, cfg.JWTSecret)
	sessionRegistry := services.NewSessionRegistry(st, cfg.CodeAttempts)
	questionChannel := services.NewQuestionChannel(st)
	submissionStore := services.NewSubmissionStore(st)
	liveFeed := services.NewLiveFeed(sessionRegistry, questionChannel, submissionStore, broker)

	router := &handlers.Router{
		Auth:     authService,
		Login:    handlers.NewAuthHandler(authService),
		Sessions: handlers.NewClassSessionHandler(sessionRegistry),
		Question: handlers.NewQuestionHandler(questionChannel, submissionStore),
		Board:    handlers.NewBoardHandler(sessionRegistry, questionChannel, submissionStore, liveFeed, hub),
	}

	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.Register(r)

	srv := &http.Server{Addr: ":" + cfg.ServerPort, Handler: r}
	go func() {
		slog.Info("server starting", "port", cfg.ServerPort, "store", cfg.StoreDriver, "pubsub", cfg.PubSubMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown", "error", err)
	}
}
