package fetchcandles

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	StartDt     time.Time `envconfig:"START_DATE" default:"2025-01-01T00:00:00Z"`
	EndDt       time.Time `envconfig:"END_DATE" default:"2026-01-01T00:00:00Z"`
	DurationStr string    `envconfig:"DURATION" default:"30m"`
	Symbol      string    `envconfig:"SYMBOL" default:"BTC"`
	Quote       string    `envconfig:"QUOTE" default:"USDT"`
	Limit       int       `envconfig:"LIMIT" default:"1000"`
	OutCSV      string    `envconfig:"OUT_CSV" default:"bars.csv"`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
