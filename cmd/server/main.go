package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"github.com/coinrush-app/coinrush-backend/internal/bot"
	"github.com/coinrush-app/coinrush-backend/internal/database"
	apperrors "github.com/coinrush-app/coinrush-backend/internal/errors"
	"github.com/coinrush-app/coinrush-backend/internal/handler"
	"github.com/coinrush-app/coinrush-backend/internal/health"
	"github.com/coinrush-app/coinrush-backend/internal/i18n"
	"github.com/coinrush-app/coinrush-backend/internal/jobs"
	jobhandlers "github.com/coinrush-app/coinrush-backend/internal/jobs/handlers"
	"github.com/coinrush-app/coinrush-backend/internal/lifecycle"
	"github.com/coinrush-app/coinrush-backend/internal/notification"
	"github.com/coinrush-app/coinrush-backend/internal/ratelimit"
	"github.com/coinrush-app/coinrush-backend/internal/repository"
	"github.com/coinrush-app/coinrush-backend/internal/server"
	"github.com/coinrush-app/coinrush-backend/internal/upload"
	"github.com/coinrush-app/coinrush-backend/internal/user"
	"github.com/coinrush-app/coinrush-backend/internal/usercache"
	"github.com/coinrush-app/coinrush-backend/internal/ws"
	"github.com/coinrush-app/coinrush-backend/pkg/config"
	"github.com/coinrush-app/coinrush-backend/pkg/graceful"
	"github.com/coinrush-app/coinrush-backend/pkg/logger"
	redisclient "github.com/coinrush-app/coinrush-backend/pkg/redis"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	config.Watch(v, func(updated *config.Config) {
		logger.SetLevel(updated.Logger.Level)
		log.Info("configuration reloaded", slog.String("log_level", updated.Logger.Level))
	})

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return err
		}
		defer sentry.Flush(2 * time.Second)
	}

	log.Info("starting coinrush backend",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.String("bot_mode", cfg.Bot.Mode),
	)

	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	if err := database.NewMigrator(db, log).ApplyDir(ctx, "migrations"); err != nil {
		return err
	}

	rdb, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	errHandler := apperrors.NewHandler(log, cfg.Sentry.Enabled)

	translator, err := i18n.Load("ru")
	if err != nil {
		return err
	}

	uploads, err := upload.NewStorage(cfg.Uploads, log)
	if err != nil {
		return err
	}

	users := repository.NewUserRepository(db, log)
	notifications := repository.NewNotificationRepository(db, log)
	referrals := repository.NewReferralRepository(db, log)
	products := repository.NewProductRepository(db, log)
	tasks := repository.NewTaskRepository(db, log)

	cache := usercache.NewCache(rdb.Client)
	userService := user.NewService(users, referrals, cache, log)

	limiter := ratelimit.NewRedisLimiter(rdb.Client, log)

	tgBot, err := bot.New(cfg.Bot, log, userService, translator, errHandler, limiter)
	if err != nil {
		return err
	}

	hub := ws.NewHub(log)
	dispatcher := notification.NewDispatcher(bot.NewMessenger(tgBot), hub, cfg.Notify.SendDelay, log)
	notificationService := notification.NewService(
		notification.NewSelector(users),
		notifications,
		dispatcher,
		log,
	)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	queue := jobs.NewManager(redisOpt, log)
	worker := jobs.NewWorker(redisOpt, jobs.DefaultQueues, log)
	worker.RegisterHandler(jobs.TaskTypeDispatch, jobhandlers.NewDispatchHandler(notificationService, log))
	worker.RegisterHandler(jobs.TaskTypeSweepStale, jobhandlers.NewSweepHandler(notificationService, cfg.Notify.StaleAfter, log))

	scheduler := jobs.NewScheduler(redisOpt, log)
	if err := scheduler.RegisterTasks(cfg.Notify.SweepCron); err != nil {
		return err
	}

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(rdb.Client))
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))

	router := server.NewRouter(cfg, log, limiter, server.Handlers{
		Notifications: handler.NewNotificationHandler(notificationService, queue, log),
		Users:         handler.NewUserHandler(userService),
		Products:      handler.NewProductHandler(products, uploads),
		Tasks:         handler.NewTaskHandler(tasks, uploads),
		Referrals:     handler.NewReferralHandler(referrals),
		Health:        handler.NewHealthHandler(checker),
		WS:            ws.NewHandler(hub, log),
	})

	httpServer := graceful.NewServer(log, &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}, cfg.Server.ShutdownTimeout)

	go tgBot.Start()
	scheduler.Run()

	workerErr := make(chan error, 1)
	go func() {
		workerErr <- worker.Run()
	}()

	shutdown := lifecycle.NewShutdown(log)
	shutdown.Register("telegram-bot", func(context.Context) error {
		tgBot.Stop()
		return nil
	})
	shutdown.Register("jobs-worker", func(context.Context) error {
		worker.Shutdown()
		return nil
	})
	shutdown.Register("jobs-scheduler", func(context.Context) error {
		scheduler.Shutdown()
		return nil
	})
	shutdown.Register("jobs-queue", func(context.Context) error {
		return queue.Close()
	})

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.ListenAndServe(ctx)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			log.Error("http server failed", slog.String("error", err.Error()))
		}
	case err := <-workerErr:
		if err != nil {
			log.Error("jobs worker failed", slog.String("error", err.Error()))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		log.Error("shutdown finished with errors", slog.String("error", err.Error()))
	}

	log.Info("coinrush backend stopped")
	return nil
}
