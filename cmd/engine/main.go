package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/finotif/finotif/configs"
	"github.com/finotif/finotif/internal/engine"
	"github.com/finotif/finotif/internal/feed"
	"github.com/finotif/finotif/internal/notify"
	"github.com/finotif/finotif/internal/provider"
	"github.com/finotif/finotif/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	appConfig := configs.AppLoad()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, appConfig.DBDSN, logger)
	if err != nil {
		logger.Error("Failed to connect to DB", "error", err)
		os.Exit(1)
	}

	ticks := storage.NewGormTickStore(db)
	subs := storage.NewGormSubscriptionStore(db)
	users := storage.NewGormUserStore(db)

	quotes := provider.NewYahoo(
		appConfig.Provider.BaseURL,
		appConfig.Provider.RequestTimeout,
		float64(appConfig.Provider.RequestsPerSecond),
		logger,
	)

	email := notify.NewSMTPTransport(
		appConfig.SMTP.Addr,
		appConfig.SMTP.From,
		appConfig.SMTP.Username,
		appConfig.SMTP.Password,
	)
	var push notify.Transport
	if appConfig.TelegramToken != "" {
		telegram, err := notify.NewTelegramTransport(appConfig.TelegramToken)
		if err != nil {
			logger.Error("Failed to initialize telegram transport", "error", err)
			os.Exit(1)
		}
		push = telegram
	} else {
		logger.Warn("TELEGRAM_BOT_TOKEN not set, push notifications go to the log")
		push = notify.NewLogTransport(logger)
	}
	dispatcher := notify.NewDispatcher(users, notify.NewRoutedTransport(email, push), logger)

	var tickFeed engine.TickPublisher
	if appConfig.Feed.Broker != "" {
		publisher := feed.NewPublisher(appConfig.Feed.Broker, appConfig.Feed.Topic, logger)
		defer publisher.Close()
		tickFeed = publisher
	}

	evaluator := engine.NewEvaluator(subs, dispatcher, logger)
	scheduler := engine.NewScheduler(
		quotes,
		ticks,
		subs,
		evaluator,
		dispatcher,
		tickFeed,
		logger,
		engine.SchedulerConfig{
			PollEvery:           appConfig.Engine.PollEvery,
			CheckIntervalsEvery: appConfig.Engine.CheckIntervalsEvery,
			FetchTimeout:        appConfig.Engine.FetchTimeout,
			Workers:             appConfig.Engine.Workers,
		},
	)

	logger.Info("Engine started successfully")
	scheduler.Run(ctx)
	logger.Info("Engine shutdown complete")
}

// openDB connects to Postgres, retrying while the database comes up.
func openDB(ctx context.Context, dsn string, logger *slog.Logger) (*gorm.DB, error) {
	var db *gorm.DB
	backoff := retry.WithMaxRetries(5, retry.NewExponential(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
		if err != nil {
			logger.Warn("DB not ready, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	return db, err
}
