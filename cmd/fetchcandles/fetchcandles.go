package fetchcandles

import (
	"encoding/csv"
	"net/http"
	"os"
	"strconv"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/nntaoli-project/goex"
	"github.com/nntaoli-project/goex/binance"
)

const (
	Duration1m  = "1m"
	Duration5m  = "5m"
	Duration15m = "15m"
	Duration30m = "30m"
	Duration1h  = "1h"
)

// FetchCandles downloads klines and writes them as a CSV the backtest
// commands can replay directly.
type FetchCandles struct {
	Log      *logger.Entry
	Config   *Config
	exchange goex.API
}

func (f *FetchCandles) Start() error {
	f.Config = GetConfig()

	f.exchange = f.newBinanceInstance()

	klines, err := f.fetchOHLCVSeries()
	if err != nil {
		return err
	}

	if err := f.writeCSV(klines); err != nil {
		return err
	}

	f.Log.WithFields(logger.Fields{
		"Symbol": f.Config.Symbol,
		"bars":   len(klines),
		"out":    f.Config.OutCSV,
	}).Info("candle CSV written")

	return nil
}

func (*FetchCandles) newBinanceInstance() *binance.Binance {
	apiConfig := &goex.APIConfig{
		HttpClient: http.DefaultClient,
		Endpoint:   binance.GLOBAL_API_BASE_URL,
	}
	return binance.NewWithConfig(apiConfig)
}

func (f *FetchCandles) fetchOHLCVSeries() ([]goex.Kline, error) {
	targetSymbol := goex.NewCurrencyPair(goex.Currency{Symbol: f.Config.Symbol}, goex.Currency{Symbol: f.Config.Quote})

	const millis = 1000
	klines, err := f.exchange.GetKlineRecords(
		targetSymbol,
		f.parseDurationToGoex(),
		f.Config.Limit,
		goex.OptionalParameter{}.
			Optional("startTime", f.Config.StartDt.Unix()*millis).
			Optional("endTime", f.Config.EndDt.Unix()*millis),
	)
	if err != nil {
		return nil, err
	}

	return klines, nil
}

func (f *FetchCandles) writeCSV(klines []goex.Kline) error {
	out, err := os.Create(f.Config.OutCSV)
	if err != nil {
		return err
	}
	defer out.Close()

	w := csv.NewWriter(out)
	defer w.Flush()

	if err := w.Write([]string{"timestamp", "open", "high", "low", "close", "volume"}); err != nil {
		return err
	}
	for i := range klines {
		k := klines[i]
		if err := w.Write([]string{
			time.Unix(k.Timestamp, 0).UTC().Format(time.RFC3339),
			formatF(k.Open),
			formatF(k.High),
			formatF(k.Low),
			formatF(k.Close),
			formatF(k.Vol),
		}); err != nil {
			return err
		}
	}
	return w.Error()
}

func (f *FetchCandles) parseDurationToGoex() goex.KlinePeriod {
	var duration goex.KlinePeriod
	switch f.Config.DurationStr {
	case Duration1m:
		duration = goex.KLINE_PERIOD_1MIN
	case Duration5m:
		duration = goex.KLINE_PERIOD_5MIN
	case Duration15m:
		duration = goex.KLINE_PERIOD_15MIN
	case Duration30m:
		duration = goex.KLINE_PERIOD_30MIN
	case Duration1h:
		duration = goex.KLINE_PERIOD_1H
	default:
		panic("invalid DURATION env var")
	}
	return duration
}

func formatF(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
