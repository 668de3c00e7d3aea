package main

import (
	"fmt"
	"os"

	"reboundtrader/cmd/backtest"
	"reboundtrader/cmd/fetchcandles"
	"reboundtrader/cmd/tickbacktest"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Reboundtrader CMD"
	app.Usage = "The reboundtrader command line interface"

	app.Commands = []cli.Command{
		backtestCMD,
		tickBacktestCMD,
		fetchCandlesCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	backtestCMD = cli.Command{
		Name:        "backtest",
		Usage:       "run bar backtest",
		Action:      backtestAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Replay a candle CSV through the strategy`,
	}
	tickBacktestCMD = cli.Command{
		Name:        "tickbacktest",
		Usage:       "run tick backtest",
		Action:      tickBacktestAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Replay a tick CSV against its candle series`,
	}
	fetchCandlesCMD = cli.Command{
		Name:        "fetchcandles",
		Usage:       "fetch OHLCV candles",
		Action:      fetchCandlesAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Download candles and write them as a backtest CSV`,
	}
)

func backtestAction(_ *cli.Context) error {

	logrus.Info("Starting backtest CMD")
	logrus.WithField("cmd", "backtest")

	bt := &backtest.Backtest{}
	err := bt.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func tickBacktestAction(_ *cli.Context) error {

	logrus.Info("Starting tick backtest CMD")
	logrus.WithField("cmd", "tickbacktest")

	bt := &tickbacktest.TickBacktest{}
	err := bt.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

// fetchCandlesAction downloads candles for the configured symbol and writes
// them as a CSV that the backtest commands can replay.
func fetchCandlesAction(_ *cli.Context) error {

	logrus.Info("Starting fetchcandles CMD")

	fc := &fetchcandles.FetchCandles{
		Log: logrus.WithField("cmd", "fetchcandles"),
	}

	err := fc.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting fetchcandles cmd")
		return err
	}

	return nil
}
