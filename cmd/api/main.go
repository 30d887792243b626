package main

import (
	"fmt"
	"log/slog"
	"os"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/finotif/finotif/configs"
	"github.com/finotif/finotif/internal/api"
	"github.com/finotif/finotif/internal/provider"
	"github.com/finotif/finotif/internal/service"
	"github.com/finotif/finotif/internal/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	appConfig := configs.AppLoad()

	db, err := gorm.Open(postgres.Open(appConfig.DBDSN), &gorm.Config{})
	if err != nil {
		logger.Error("Failed to connect to DB", "error", err)
		os.Exit(1)
	}

	instruments := storage.NewGormInstrumentStore(db)
	quotes := provider.NewYahoo(
		appConfig.Provider.BaseURL,
		appConfig.Provider.RequestTimeout,
		float64(appConfig.Provider.RequestsPerSecond),
		logger,
	)
	subscriptions := service.NewSubscriptions(
		storage.NewGormSubscriptionStore(db),
		instruments,
		storage.NewGormExchangeStore(db),
		quotes,
		logger,
	)

	handler := api.NewHandler(
		subscriptions,
		instruments,
		storage.NewGormTickStore(db),
		storage.NewGormNoteStore(db),
	)
	router := api.NewRouter(&api.Config{Handler: handler})

	addr := fmt.Sprintf(":%s", appConfig.ServerPort)
	logger.Info("API started", "addr", addr)
	if err := router.Run(addr); err != nil {
		logger.Error("API stopped with error", "error", err)
		os.Exit(1)
	}
}
