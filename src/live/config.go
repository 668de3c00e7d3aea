package live

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	StrategyConfig  string        `envconfig:"STRATEGY_CONFIG" default:"strategy.yaml"`
	StreamURL       string        `envconfig:"STREAM_URL" default:"wss://localhost:9443/quotes"`
	SnapshotPath    string        `envconfig:"SNAPSHOT_PATH" default:"trader_state.json"`
	SnapshotMaxAge  time.Duration `envconfig:"SNAPSHOT_MAX_AGE" default:"72h"`
	MaxSpreadPts    float64       `envconfig:"MAX_SPREAD_PTS" default:"0"`
	ReconcilePeriod time.Duration `envconfig:"RECONCILE_PERIOD" default:"1m"`
	HeartbeatPeriod time.Duration `envconfig:"HEARTBEAT_PERIOD" default:"5m"`
	PersistTrades   bool          `envconfig:"PERSIST_TRADES" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
