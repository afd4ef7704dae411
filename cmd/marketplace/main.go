package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/calendar"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/catalog"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/config"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/db"
	marketHttp "github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/handler/http"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/notify"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/order"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/reminder"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/scheduler"
	"github.com/vasiliy-maslov/ecommerce-microservices/marketplace-service/internal/streak"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	log.Logger = log.With().Str("service", "marketplace-service").Logger()

	log.Info().Msg("Marketplace service starting...")

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("Unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	tiers, err := streak.ParsePolicy(cfg.Streak.Policy)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse streak policy")
	}
	defaultDiscount, err := decimal.NewFromString(cfg.Streak.DefaultDiscount)
	if err != nil {
		log.Fatal().Err(err).Str("value", cfg.Streak.DefaultDiscount).Msg("Invalid DEFAULT_DISCOUNT")
	}

	startCtx, startCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startCancel()

	pg, err := db.New(startCtx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer pg.Close()

	mongoClient, err := mongo.Connect(startCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to MongoDB")
	}
	if err := mongoClient.Ping(startCtx, nil); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping MongoDB")
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("Failed to disconnect MongoDB")
		}
	}()
	log.Info().Str("db", cfg.Mongo.Database).Str("prefix", cfg.Mongo.CollectionPrefix).Msg("Connected to MongoDB")

	clock := calendar.SystemClock{}
	loc := cfg.Location()

	lookup := catalog.NewMongoLookup(mongoClient.Database(cfg.Mongo.Database), cfg.Mongo.CollectionPrefix)

	pushStore := notify.NewPushStore(pg.Pool)
	var dispatcher notify.Dispatcher = notify.LogDispatcher{}
	var validator notify.TokenValidator
	if cfg.Push.FCMKey != "" {
		fcm := notify.NewFCMClient(cfg.Push.FCMURL, cfg.Push.FCMKey, cfg.Push.Timeout, pushStore)
		dispatcher, validator = fcm, fcm
	} else {
		log.Warn().Msg("FCM_KEY not set, push alerts are only logged")
	}
	subscriptions := notify.NewSubscriptions(pushStore, validator)

	streakEngine := streak.NewEngine(streak.NewRepository(pg.Pool), tiers, defaultDiscount, clock, loc)

	orderRepo := order.NewRepository(pg.Pool)
	orderSvc := order.NewService(orderRepo, lookup, streakEngine, dispatcher, clock, order.Options{
		NotifyDelay:     cfg.Orders.NotifyDelay,
		DefaultPageSize: cfg.Orders.DefaultPageSize,
		MaxPageSize:     cfg.Orders.MaxPageSize,
		Location:        loc,
	})

	sweeper := reminder.NewSweeper(orderRepo, dispatcher, clock)

	sched, err := scheduler.New(loc,
		scheduler.Job{
			Name:  "streak-recompute",
			Every: cfg.Streak.Interval,
			Run: func(ctx context.Context) error {
				return streakEngine.Recompute(ctx, "")
			},
		},
		scheduler.Job{
			Name:  "rank-reminders",
			Every: cfg.Orders.ReminderEvery,
			Run: func(ctx context.Context) error {
				_, err := sweeper.RunSweep(ctx)
				return err
			},
		},
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure scheduler")
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	marketHttp.NewHandler(orderSvc, streakEngine, subscriptions).RegisterRoutes(router)

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	sched.Start()

	go func() {
		log.Info().Str("port", cfg.App.Port).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := sched.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Scheduler shutdown failed")
	}

	log.Info().Msg("Marketplace service stopped")
}
