package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embed the zone database so IANA user timezones resolve on minimal images.
	_ "time/tzdata"

	"planner-reminders/internal/clock"
	"planner-reminders/internal/config"
	"planner-reminders/internal/logging"
	"planner-reminders/internal/notify"
	"planner-reminders/internal/repository"
	"planner-reminders/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}

	db, err := repository.NewDB(cfg.Database.Path)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	reminderRepo := repository.NewReminderRepository(db)

	notifier, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.SendTimeout, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("telegram")
	}

	clk := clock.System()
	ledger := service.NewLedgerService(reminderRepo, logger)
	dispatcher := service.NewDispatcher(ledger, notifier, clk, service.DispatchConfig{
		BatchLimit:  cfg.Dispatch.BatchLimit,
		SendTimeout: cfg.Telegram.SendTimeout,
		MaxAttempts: cfg.Dispatch.MaxAttempts,
	}, logger)
	digest := service.NewDigestService(taskRepo, userRepo, notifier, clk, cfg.Dispatch.HorizonDays, logger)

	scheduler := service.NewSchedulerService(time.Local, logger)
	if _, err := scheduler.ScheduleInterval(cfg.Dispatch.Interval, func() {
		tickCtx, cancel := context.WithTimeout(ctx, cfg.Dispatch.Interval)
		defer cancel()
		dispatcher.RunTick(tickCtx)
	}); err != nil {
		logger.Fatal().Err(err).Msg("schedule dispatch")
	}

	if cfg.Digest.Time != "" {
		if _, err := scheduler.ScheduleDaily(cfg.Digest.Time, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			if err := digest.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("daily digest")
			}
		}); err != nil {
			logger.Fatal().Err(err).Msg("schedule digest")
		}
	}

	scheduler.Start()
	logger.Info().
		Dur("interval", cfg.Dispatch.Interval).
		Int("batch_limit", cfg.Dispatch.BatchLimit).
		Msg("reminder dispatcher started")

	<-ctx.Done()
	scheduler.Stop()
	logger.Info().Msg("shutdown complete")
}
