package main // Entry point package

import (
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/shutterdesk/studio-api/internal/auth"
	"github.com/shutterdesk/studio-api/internal/config"
	"github.com/shutterdesk/studio-api/internal/database"
	"github.com/shutterdesk/studio-api/internal/handler"
	"github.com/shutterdesk/studio-api/internal/middleware"
	"github.com/shutterdesk/studio-api/internal/queue"
	"github.com/shutterdesk/studio-api/internal/repository"
	"github.com/shutterdesk/studio-api/internal/router"
	"github.com/shutterdesk/studio-api/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real deployments set the environment directly
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	users := repository.NewUserRepo(db)
	hasher := auth.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	issuer := auth.NewIssuer(cfg.AccessSecret, cfg.RefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	svc := service.NewAuthService(users, hasher, issuer, queue.NewPublisher(), logger)

	// Welcome consumer runs for the lifetime of the process and handles
	// broker reconnects itself.
	go func() {
		if err := queue.StartWelcomeConsumer(); err != nil {
			log.Printf("welcome consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, handler.NewAuthHandler(svc, cfg.RefreshTTL), cfg.AccessSecret)

	// The public studio page is cached in Redis when a client is available;
	// with no Redis the cache middleware degrades to a no-op.
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), config.NewRedisClient())
	router.RegisterProfile(e, handler.NewProfileHandler(svc), cfg.AccessSecret, cacheMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)

	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
