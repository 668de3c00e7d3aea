package backtest

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	StrategyConfig string `envconfig:"STRATEGY_CONFIG" default:"strategy.yaml"`
	BarsCSV        string `envconfig:"BARS_CSV" default:"bars.csv"`
	OutDir         string `envconfig:"OUT_DIR" default:"."`
	PersistTrades  bool   `envconfig:"PERSIST_TRADES" default:"false"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
