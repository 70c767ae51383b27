// Package config loads server settings from the environment, with an
// optional .env file for local development.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr      string `env:"ADDR" envDefault:":8080"`
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	GracePeriod       time.Duration `env:"GRACE_PERIOD" envDefault:"5m"`
	RoundLength       time.Duration `env:"ROUND_LENGTH" envDefault:"60s"`
	MaxRounds         int           `env:"MAX_ROUNDS" envDefault:"5"`
	MaxPlayersPerRoom int           `env:"MAX_PLAYERS_PER_ROOM" envDefault:"4"`
}

func Load() (Config, error) {
	// Missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
