// Package config reads process configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
	"github.com/timmypass17/wordjamboree/internal/game"
)

type Redis struct {
	Addr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	DB   int    `envconfig:"REDIS_DB" default:"0"`
}

type Dictionary struct {
	Path       string `envconfig:"DICTIONARY_PATH" default:"dictionary.db"`
	ImportFile string `envconfig:"DICTIONARY_IMPORT_FILE"`
	CacheSize  int    `envconfig:"DICTIONARY_CACHE_SIZE" default:"4096"`
}

type Historian struct {
	Queue      string        `envconfig:"HISTORIAN_QUEUE_NAME" default:"wordjamboree_actions"`
	BatchSize  int           `envconfig:"HISTORIAN_BATCH_SIZE" default:"20"`
	FlushDelay time.Duration `envconfig:"HISTORIAN_FLUSH_DELAY" default:"500ms"`
	Inactivity time.Duration `envconfig:"GAME_INACTIVITY_TIMEOUT" default:"10m"`
	// ActionLog turns on publishing of committed actions from the server.
	ActionLog bool `envconfig:"HISTORIAN_ACTION_LOG" default:"false"`
}

type Rules struct {
	MaxPlayers     int           `envconfig:"GAME_MAX_PLAYERS" default:"5"`
	MaxHearts      int           `envconfig:"GAME_MAX_HEARTS" default:"3"`
	MinimumTime    int           `envconfig:"GAME_MINIMUM_TIME" default:"5"`
	TurnTimeMin    int           `envconfig:"GAME_TURN_TIME_MIN" default:"8"`
	TurnTimeMax    int           `envconfig:"GAME_TURN_TIME_MAX" default:"12"`
	AFKGrace       time.Duration `envconfig:"GAME_AFK_GRACE" default:"5s"`
	LobbyCountdown time.Duration `envconfig:"GAME_LOBBY_COUNTDOWN" default:"10s"`
	CountdownTick  time.Duration `envconfig:"GAME_COUNTDOWN_TICK" default:"1s"`
	MaxRetries     int           `envconfig:"GAME_TRANSACTION_RETRIES" default:"25"`
}

// Game converts the configured rules.
func (r Rules) Game() game.Rules {
	return game.Rules{
		MaxPlayers:     r.MaxPlayers,
		MaxHearts:      r.MaxHearts,
		MinimumTime:    r.MinimumTime,
		TurnTimeMin:    r.TurnTimeMin,
		TurnTimeMax:    r.TurnTimeMax,
		AFKGrace:       r.AFKGrace,
		LobbyCountdown: r.LobbyCountdown,
		CountdownTick:  r.CountdownTick,
	}
}

type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	// Store selects the shared state backend: "memory" or "redis".
	Store       string `envconfig:"STORE_BACKEND" default:"memory"`
	DatabaseURL string `envconfig:"DATABASE_URL"`
	// TokenExpire of 0 issues guest tokens without expiry.
	TokenExpire time.Duration `envconfig:"TOKEN_EXPIRE_TIME" default:"72h"`

	Redis      Redis
	Dictionary Dictionary
	Historian  Historian
	Rules      Rules
}

// Load reads the environment into a Config and validates it.
func Load() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("processing the config: %w", err)
	}
	switch c.Store {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", c.Store)
	}
	if err := c.Rules.Game().Validate(); err != nil {
		return nil, fmt.Errorf("game rules: %w", err)
	}
	return &c, nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}
