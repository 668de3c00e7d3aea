package server

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"9898"`

	// Basic auth for /status. The hash is a bcrypt digest; an empty value
	// leaves the endpoint open, which is only sensible for local runs.
	StatusUser         string `envconfig:"STATUS_USER" default:"admin"`
	StatusPasswordHash string `envconfig:"STATUS_PASSWORD_HASH" default:""`
}

func GetConfig() *Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return &config
}
