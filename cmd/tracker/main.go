package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/multierr"

	"github.com/central-university-dev/go-listing-tracker/internal/common/metrics"
	"github.com/central-university-dev/go-listing-tracker/internal/common/middleware"
	"github.com/central-university-dev/go-listing-tracker/internal/config"
	"github.com/central-university-dev/go-listing-tracker/internal/database"
	"github.com/central-university-dev/go-listing-tracker/internal/queue"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/bot"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/handler"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/notify"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/repository"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/scraper"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/service"
	"github.com/central-university-dev/go-listing-tracker/internal/tracker/tasks"
	"github.com/central-university-dev/go-listing-tracker/pkg"
)

const serviceName = "tracker"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка запуска сервиса: %v\n", err)
		os.Exit(1)
	}
}

//nolint:funlen // Длина функции обусловлена необходимостью последовательной инициализации всех компонентов.
func run() error {
	cfg := config.LoadConfig()
	appLogger := pkg.NewLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDatabase(ctx, cfg, appLogger)
	if err != nil {
		return err
	}

	if db != nil {
		defer db.Close()
	}

	repos, err := repository.New(cfg, db, appLogger)
	if err != nil {
		appLogger.Error("Ошибка при создании репозиториев", "error", err)
		return err
	}

	store, err := queue.NewStore(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Ошибка при создании хранилища очереди", "error", err)
		return err
	}

	jobQueue := queue.New(store, appLogger, queue.OptionsFromConfig(cfg)...)

	sender, err := notify.NewChatSender(cfg, appLogger)
	if err != nil {
		appLogger.Error("Ошибка при создании отправителя сообщений", "error", err)
		return multierr.Append(err, closeStore(store))
	}

	marketplace := scraper.New(cfg, appLogger)

	pipeline := tasks.NewPipeline(tasks.Dependencies{
		Queue:         jobQueue,
		Repositories:  repos,
		Scraper:       marketplace,
		Images:        marketplace,
		StatusChecker: marketplace,
		Sender:        sender,
	}, tasks.SettingsFromConfig(cfg), appLogger)
	pipeline.Register(jobQueue)

	subscriptions := service.NewSubscriptionService(repos, pipeline, appLogger)
	supervisor := service.NewSupervisor(subscriptions, cfg.SupervisorInterval, appLogger)

	trackerHandler := handler.NewTrackerHandler(subscriptions, jobQueue, appLogger)
	rateLimiter := middleware.NewRateLimiterMiddleware(ctx, middleware.RateLimitConfig{
		Requests:  cfg.RateLimitRequests,
		Window:    cfg.RateLimitWindow,
		ClientTTL: cfg.RateLimitClientTTL,
	}, appLogger)
	metricsMiddleware := middleware.NewMetricsMiddleware(serviceName)

	gin.SetMode(gin.ReleaseMode)

	router := handler.NewRouter(trackerHandler, metricsMiddleware.Handler(), rateLimiter.Handler())

	httpServer := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.TrackerServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsServer := metrics.NewMetricsServer(cfg.MetricsPort, appLogger, func(ctx context.Context) error {
		_, err := jobQueue.Stats(ctx)
		return err
	})

	jobQueue.Start(ctx)

	if err := supervisor.Start(ctx); err != nil {
		appLogger.Error("Ошибка при запуске супервизора", "error", err)
		stop()
	}

	startCommandPoller(ctx, cfg, subscriptions, appLogger)

	go func() {
		if err := metricsServer.Start(ctx); err != nil {
			appLogger.Error("Ошибка сервера метрик", "error", err)
		}
	}()

	go func() {
		appLogger.Info("Запуск HTTP сервера трекера", "port", cfg.TrackerServerPort)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error("Ошибка при запуске HTTP сервера", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Получен сигнал завершения")

	return shutdown(httpServer, supervisor, jobQueue, sender, store, appLogger)
}

func openDatabase(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (*database.PostgresDB, error) {
	if cfg.DatabaseAccessType == config.MemoryAccess {
		appLogger.Warn("Используется хранилище в памяти, данные не переживут перезапуск")
		return nil, nil
	}

	if err := database.Migrate(cfg.DatabaseURL, cfg.MigrationsPath, appLogger); err != nil {
		appLogger.Error("Ошибка при применении миграций", "error", err)
		return nil, fmt.Errorf("ошибка применения миграций: %w", err)
	}

	db, err := database.NewPostgresDB(ctx, cfg, appLogger)
	if err != nil {
		appLogger.Error("Ошибка при подключении к базе данных", "error", err)
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	return db, nil
}

func startCommandPoller(ctx context.Context, cfg *config.Config, subscriptions bot.Subscriptions, appLogger *slog.Logger) {
	if cfg.TelegramBotToken == "" || !cfg.BotCommandsEnabled {
		appLogger.Info("Команды бота отключены")
		return
	}

	botAPI, err := notify.NewTelegramBot(cfg.TelegramBotToken, tgbotapi.APIEndpoint, bot.UpdatesClientTimeout)
	if err != nil {
		appLogger.Error("Ошибка при подключении к Telegram, команды бота недоступны", "error", err)
		return
	}

	poller := bot.NewPoller(botAPI, bot.NewCommandService(subscriptions), appLogger)

	go poller.Run(ctx)
}

func shutdown(
	httpServer *http.Server,
	supervisor *service.Supervisor,
	jobQueue *queue.Queue,
	sender notify.ChatSender,
	store queue.Store,
	appLogger *slog.Logger,
) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs error

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("остановка HTTP сервера: %w", err))
	}

	supervisor.Stop()
	jobQueue.Stop()

	errs = multierr.Append(errs, notify.Close(sender))
	errs = multierr.Append(errs, closeStore(store))

	if errs != nil {
		appLogger.Error("Ошибки при остановке сервиса", "error", errs)
		return errs
	}

	appLogger.Info("Сервис успешно остановлен")

	return nil
}

func closeStore(store queue.Store) error {
	if closer, ok := store.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}
