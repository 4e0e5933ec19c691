package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"appointment-scheduler/internal/common/logging"
	"appointment-scheduler/internal/config"
	"appointment-scheduler/internal/handlers"
	"appointment-scheduler/internal/locks"
	"appointment-scheduler/internal/middleware"
	"appointment-scheduler/internal/provider"
	"appointment-scheduler/internal/provider/google"
	"appointment-scheduler/internal/provider/ics"
	"appointment-scheduler/internal/redis"
	"appointment-scheduler/internal/scheduling"
	"appointment-scheduler/internal/server"
	"appointment-scheduler/internal/slots"
	"appointment-scheduler/internal/storage"
	syncpkg "appointment-scheduler/internal/sync"
	"appointment-scheduler/internal/timeparse"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	cfg := config.Load()
	logging.InitGlobalLogger()
	defer logging.MustSync()
	logger := logging.GetGlobalLogger()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", err)
		os.Exit(1)
	}

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logger.Error("Failed to initialize storage", err)
		os.Exit(1)
	}
	defer store.Close()

	// redis is optional: without it, sync passes serialize per instance only
	var locker locks.KeyedLocker
	if cfg.RedisAddress != "" {
		redisClient, err := redis.NewClient(&redis.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			logger.Error("Failed to connect to redis", err)
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = locks.NewRedisLocker(redisClient)
		logger.Info("Using redis-backed sync locks", logging.Field{Key: "address", Value: cfg.RedisAddress})
	} else {
		locker = locks.NewLocalLocker()
		logger.Info("Using in-process sync locks")
	}

	ctx := context.Background()
	feed, err := google.NewDefaultFeed(ctx)
	if err != nil {
		logger.Error("Failed to initialize calendar feed", err)
		os.Exit(1)
	}

	var extraBusy provider.BusySource
	if cfg.ICSFeedURL != "" {
		extraBusy = ics.NewSource(cfg.ICSFeedURL, &http.Client{Timeout: 15 * time.Second}, logger)
		logger.Info("Merging ICS busy feed", logging.Field{Key: "url", Value: cfg.ICSFeedURL})
	}

	parser := timeparse.New(timeparse.Config{
		BusinessStartHour: cfg.BusinessStartHour,
		BusinessEndHour:   cfg.BusinessEndHour,
		DayEndHour:        cfg.DayEndHour,
	})
	engine := slots.New(cfg.SlotIncrement, cfg.SearchHorizon)

	scheduler := scheduling.NewService(scheduling.Options{
		Parser:          parser,
		Engine:          engine,
		Store:           store,
		Feed:            feed,
		ExtraBusy:       extraBusy,
		Logger:          logger,
		Horizon:         cfg.SearchHorizon,
		MaxAlternatives: cfg.MaxAlternatives,
	})

	syncMgr := syncpkg.NewManager(feed, store, locker, cfg.SyncCallbackURL, logger)

	var renewals interface{ Stop() context.Context }
	if cfg.SyncCallbackURL != "" {
		c, err := syncMgr.StartRenewalSchedule(cfg.RenewalSpec, cfg.RenewalLead)
		if err != nil {
			logger.Error("Failed to start renewal schedule", err)
			os.Exit(1)
		}
		renewals = c
	} else {
		logger.Warn("SYNC_CALLBACK_URL not set, calendar push sync is disabled")
	}

	router := mux.NewRouter()
	router.Use(middleware.LoggingMiddleware)
	handlers.New(store, scheduler, syncMgr, logger).RegisterRoutes(router)

	srv := server.New(router, cfg.Port)
	srv.Start(func(err error) {
		logger.Error("Server failed", err)
		os.Exit(1)
	})
	logger.Info("Scheduling engine started", logging.Field{Key: "port", Value: cfg.Port})

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("Shutting down")
	if renewals != nil {
		<-renewals.Stop().Done()
	}
	locker.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", err)
	}
}
