package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Abraj743/opd-token-allocation-sub000/config"
	"github.com/Abraj743/opd-token-allocation-sub000/cron"
	"github.com/Abraj743/opd-token-allocation-sub000/database"
	configRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/configrepo"
	doctorRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/doctor"
	patientRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/patient"
	scheduleRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/schedule"
	slotRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/slot"
	tokenRepo "github.com/Abraj743/opd-token-allocation-sub000/database/repository/token"
	"github.com/Abraj743/opd-token-allocation-sub000/handlers"
	"github.com/Abraj743/opd-token-allocation-sub000/middleware"
	"github.com/Abraj743/opd-token-allocation-sub000/routes"
	"github.com/Abraj743/opd-token-allocation-sub000/services/allocation"
	"github.com/Abraj743/opd-token-allocation-sub000/services/capacity"
	"github.com/Abraj743/opd-token-allocation-sub000/services/events"
	"github.com/Abraj743/opd-token-allocation-sub000/services/priority"
	"github.com/Abraj743/opd-token-allocation-sub000/services/slotlifecycle"
	"github.com/Abraj743/opd-token-allocation-sub000/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

func main() {
	config.LoadConfig()
	logger := utils.GetLogger()

	database.InitDB()
	utils.InitCache()

	// Index bootstrap.
	idxCtx, idxCancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := slotRepo.EnsureSlotIndexes(idxCtx, database.DB().Collection("slots")); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure slot indexes: %v", err)
	}
	if err := tokenRepo.EnsureTokenIndexes(idxCtx, database.DB().Collection("tokens")); err != nil {
		logger.Sugar().Fatalf("main: failed to ensure token indexes: %v", err)
	}
	idxCancel()

	// Create the Gin router.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(utils.ErrorHandler())
	router.Use(gin.Logger())
	router.Use(middleware.RateLimitMiddleware())

	// repositories.
	slots := slotRepo.NewMongoSlotRepo()
	tokens := tokenRepo.NewMongoTokenRepo()
	schedules := scheduleRepo.NewMongoScheduleRepo()
	doctors := doctorRepo.NewMongoDoctorRepo()
	patients := patientRepo.NewMongoPatientRepo()
	configs := configRepo.NewMongoConfigRepo()

	// services.
	priorityEngine := priority.NewEngine(configs, logger)
	guard := capacity.NewGuard(slots, tokens, config.AppConfig.DisplacementMargin, logger)
	lifecycle := slotlifecycle.NewEngine(slots, tokens, schedules, slotlifecycle.Config{
		DefaultCapacity: config.AppConfig.DefaultSlotCapacity,
		ConsultMinutes:  config.AppConfig.ConsultationDuration,
		BufferMinutes:   config.AppConfig.BufferTime,
	}, logger)
	finder := allocation.NewAlternativeFinder(slots, tokens, logger)

	queueClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisQueueDB,
	})
	sink := events.MultiSink{
		&events.ZapSink{Logger: logger},
		&events.AsynqSink{Client: queueClient, Logger: logger},
	}

	allocEngine := allocation.NewEngine(
		priorityEngine, guard, lifecycle, finder,
		slots, tokens, doctors, patients,
		sink,
		allocation.Config{
			MaxForwardDays:            config.AppConfig.MaxForwardDays,
			ReallocationWindowMinutes: config.AppConfig.ReallocationWindowMinutes,
			ReserveMaxAttempts:        config.AppConfig.ReserveMaxAttempts,
			ReserveBackoffBase:        time.Duration(config.AppConfig.ReserveBackoffBaseMs) * time.Millisecond,
			ReserveBackoffCap:         time.Duration(config.AppConfig.ReserveBackoffCapMs) * time.Millisecond,
		},
		logger,
	)

	// Background worker: async queue consumer plus scheduled jobs.
	cron.InitWorker(allocEngine, lifecycle)

	tokenHandler := handlers.NewTokenHandler(allocEngine, tokens, logger)
	slotHandler := handlers.NewSlotHandler(lifecycle, logger)

	routes.RegisterRoutes(router, tokenHandler, slotHandler)

	// Start the HTTP server.
	port := config.AppConfig.AppPort
	if port == "" {
		port = "8080"
	}
	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	logger.Sugar().Infof("Starting server on %s...", srv.Addr)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Sugar().Fatalf("main: server failed to start: %v", err)
		}
	}()

	// Wait for an OS signal to gracefully shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Sugar().Info("main: server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Sugar().Fatalf("main: server forced to shutdown: %v", err)
	}

	logger.Sugar().Info("main: server stopped gracefully")
}
