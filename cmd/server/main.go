package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/marketplace-ranking/internal/config"
	"github.com/iliyamo/marketplace-ranking/internal/database"
	"github.com/iliyamo/marketplace-ranking/internal/handler"
	"github.com/iliyamo/marketplace-ranking/internal/ledger"
	"github.com/iliyamo/marketplace-ranking/internal/logger"
	"github.com/iliyamo/marketplace-ranking/internal/middleware"
	"github.com/iliyamo/marketplace-ranking/internal/queue"
	"github.com/iliyamo/marketplace-ranking/internal/referral"
	"github.com/iliyamo/marketplace-ranking/internal/repository"
	"github.com/iliyamo/marketplace-ranking/internal/router"
	"github.com/iliyamo/marketplace-ranking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load() // Load environment config
	zl, err := logger.New(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	weights, err := config.LoadRankingWeights(cfg.RankingCfg)
	if err != nil {
		zl.Fatalw("ranking weights", "err", err)
	}
	ledgerCfg := config.LoadLedgerConfig()
	rlCfg := config.LoadRateLimitConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		zl.Fatalw("database", "err", err)
	}
	defer db.Close()
	if os.Getenv("DB_MIGRATE") == "true" {
		if err := database.EnsureSchema(context.Background(), db); err != nil {
			zl.Fatalw("schema", "err", err)
		}
	}
	rdb := config.NewRedisClient(zl)

	// Repositories
	creditRepo := repository.NewCreditRepo(db)
	listingRepo := repository.NewListingRepo(db)
	reviewRepo := repository.NewReviewRepo(db)
	referralRepo := repository.NewReferralRepo(db)
	locationRepo := repository.NewLocationRepo(db)
	profileRepo := repository.NewProfileRepo(db)

	// Domain
	publisher := service.NewPublisher(cfg.AMQPURL, zl)
	credits := ledger.New(creditRepo, zl,
		ledger.WithMaxGrantSeconds(ledgerCfg.MaxGrantSeconds),
		ledger.WithNotifier(publisher),
	)
	listings := service.NewListingService(listingRepo, reviewRepo, credits, weights, repository.MaxListingsPerLocation, zl)
	rewarder := referral.NewRewarder(credits, ledgerCfg.ReferralRewardSeconds, ledgerCfg.ReferralCityScoped, zl)
	referrals := referral.NewService(referralRepo, profileRepo, credits, publisher, rewarder, cfg.SiteURL, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	consumer := queue.NewConsumer(cfg.AMQPURL, rewarder, zl)
	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zl.Errorw("referral consumer stopped", "err", err)
		}
	}()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewRequestValidator()
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(zl))

	limit := func(route string) echo.MiddlewareFunc {
		return middleware.NewTokenBucket(rlCfg.For(route), rdb, zl)
	}
	router.RegisterRoutes(e, handler.NewHealthHandler(db))
	router.RegisterListings(e, handler.NewListingHandler(listings), limit)
	router.RegisterAdmin(e, handler.NewCreditAdminHandler(credits, referralRepo, locationRepo, ledgerCfg.AdminListLimit, ledgerCfg.RequestTimeout, zl), cfg.JWTSecret, limit)
	router.RegisterReferrals(e, handler.NewReferralHandler(referrals, zl), cfg.JWTSecret, limit)

	addr := ":" + cfg.Port
	go func() {
		zl.Infow("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatalw("server", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		zl.Errorw("shutdown", "err", err)
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	zl.Infow("server stopped")
}
