package main

import (
	"encoding/json"
	"errors"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dmkv/sweepduel/internal/duel"
)

type Duration struct{ time.Duration }

// [Duration] implements [json.Marshaler]
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return errors.New("invalid duration")
	}
}

type LogConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

type DuelConfig struct {
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	MineCount int      `json:"mine_count"`
	Duration  Duration `json:"duration"`
}

func (d DuelConfig) Params() duel.Params {
	return duel.Params{
		Width:     d.Width,
		Height:    d.Height,
		MineCount: d.MineCount,
		Duration:  d.Duration.Duration,
	}
}

type BotConfig struct {
	Accuracy float64  `json:"accuracy"`
	MinDelay Duration `json:"min_delay"`
	MaxDelay Duration `json:"max_delay"`
}

type PostgresConfig struct {
	Url string `json:"url"`
}

type RedisConfig struct {
	Url string `json:"url"`
}

type Config struct {
	Mode     string          `json:"mode"`
	Addr     string          `json:"addr"`
	Log      LogConfig       `json:"log"`
	Duel     DuelConfig      `json:"duel"`
	Bot      BotConfig       `json:"bot"`
	Postgres *PostgresConfig `json:"postgres,omitempty"`
	Redis    *RedisConfig    `json:"redis,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Mode: "development",
		Addr: ":8080",
		Duel: DuelConfig{
			Width:     16,
			Height:    16,
			MineCount: 40,
			Duration:  Duration{3 * time.Minute},
		},
		Bot: BotConfig{
			Accuracy: 0.9,
			MinDelay: Duration{300 * time.Millisecond},
			MaxDelay: Duration{1200 * time.Millisecond},
		},
	}
}

func (c Config) Development() bool {
	return c.Mode != "production"
}

func (c Config) Fields() logrus.Fields {
	return logrus.Fields{
		"mode":     c.Mode,
		"addr":     c.Addr,
		"board":    c.Duel,
		"bot":      c.Bot,
		"log_file": c.Log.File,
		"postgres": c.Postgres != nil,
		"redis":    c.Redis != nil,
	}
}

func ReadConfig(path string, config *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, config)
}
