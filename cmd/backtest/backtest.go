package backtest

import (
	"context"
	"path/filepath"
	"time"

	logger "github.com/sirupsen/logrus"

	"reboundtrader/src/config"
	"reboundtrader/src/data"
	"reboundtrader/src/database"
	"reboundtrader/src/engine"
	"reboundtrader/src/reports"
	"reboundtrader/src/repository"
)

// Backtest replays a candle CSV through the strategy and writes the trade
// ledger and equity curve next to it.
type Backtest struct {
	Config *Config
}

func (b *Backtest) Start() error {
	b.Config = GetConfig()

	strat, err := config.Load(b.Config.StrategyConfig)
	if err != nil {
		return err
	}

	loc, err := time.LoadLocation(strat.TZ)
	if err != nil {
		return err
	}

	bars, err := data.LoadBars(b.Config.BarsCSV, loc)
	if err != nil {
		return err
	}

	eng, err := engine.NewBarEngine(strat)
	if err != nil {
		return err
	}

	result, err := eng.Run(bars)
	if err != nil {
		return err
	}

	summary := reports.Summarize(result, strat.StartingCapital)
	summary.Log()

	tradesPath := filepath.Join(b.Config.OutDir, "trades_"+result.RunID+".csv")
	if err := reports.WriteTradesCSV(tradesPath, result.Trades); err != nil {
		return err
	}
	equityPath := filepath.Join(b.Config.OutDir, "equity_"+result.RunID+".csv")
	if err := reports.WriteEquityCSV(equityPath, result.Trades, strat.StartingCapital); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"trades": tradesPath,
		"equity": equityPath,
	}).Info("backtest reports written")

	if b.Config.PersistTrades {
		if err := database.InitMainDB(); err != nil {
			return err
		}
		repo := repository.NewTradeRepository()
		if err := repo.SaveRun(context.Background(), result.Trades); err != nil {
			return err
		}
	}

	return nil
}
