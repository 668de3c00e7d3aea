package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/broker"
	"reboundtrader/src/config"
	"reboundtrader/src/database"
	"reboundtrader/src/live"
	"reboundtrader/src/repository"
	"reboundtrader/src/server"
)

var (
	PORT     = os.Getenv("SERVER_PORT")
	APP_NAME = os.Getenv("APP_NAME")
)

func SetupLogger() {
	levelStr := strings.ToLower(os.Getenv("LOG_LEVEL"))

	level, err := logger.ParseLevel(levelStr)
	if err != nil {
		level = logger.DebugLevel
	}

	logger.SetLevel(level)
	logger.SetFormatter(&logger.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	SetupLogger()
	defer handlePanic()

	liveCfg := live.GetConfig()

	strat, err := config.Load(liveCfg.StrategyConfig)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load strategy config")
	}

	var repo *repository.TradeRepository
	if database.GetConfig().EnableDB {
		if err := database.InitMainDB(); err != nil {
			logger.WithError(err).Fatal("Failed to connect to database")
		}
		repo = repository.NewTradeRepository()
	}

	brokerClient := broker.NewClient(broker.GetConfig())

	trader, err := live.NewTrader(strat, liveCfg, brokerClient, repo)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build trader")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := trader.Run(ctx); err != nil && err != context.Canceled {
			logger.WithError(err).Fatal("Trader stopped")
		}
	}()

	port := PORT
	if port == "" {
		port = server.GetConfig().Port
	}
	server.StartServer(port, trader.Status)
}

func handlePanic() {
	if r := recover(); r != nil {
		logger.WithError(fmt.Errorf("%+v", r)).Error(fmt.Sprintf("Application %s panic", APP_NAME))
	}
	//nolint
	time.Sleep(time.Second * 5)
}
