package broker

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	BaseURL   string `envconfig:"BROKER_BASE_URL" default:"https://demo-api.ig.com/gateway/deal"`
	APIKey    string `envconfig:"BROKER_API_KEY" default:""`
	Username  string `envconfig:"BROKER_USERNAME" default:""`
	Password  string `envconfig:"BROKER_PASSWORD" default:""`
	AccountID string `envconfig:"BROKER_ACCOUNT_ID" default:""`
	DryRun    bool   `envconfig:"BROKER_DRY_RUN" default:"true"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
