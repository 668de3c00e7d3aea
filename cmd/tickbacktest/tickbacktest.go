package tickbacktest

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

// TickBacktest replays a tick CSV against its candle series: signals come
// from the candles, fills and exits from the ticks.
type TickBacktest struct {
	Config *Config
}

func (b *TickBacktest) Start() error {
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

	ticks, err := data.LoadTicks(b.Config.TicksCSV, loc)
	if err != nil {
		return err
	}

	eng, err := engine.NewTickEngine(strat)
	if err != nil {
		return err
	}

	result, err := eng.Run(bars, ticks)
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
	}).Info("tick backtest reports written")

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
