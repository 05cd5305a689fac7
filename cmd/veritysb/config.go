// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/siderolabs/go-dmverity/verity"
)

const (
	configName = "veritysb"
	envPrefix  = "VERITYSB"
)

// Config is the veritysb configuration.
//
// Sources in order of precedence: flags, VERITYSB_* environment, veritysb.yaml, defaults.
type Config struct {
	Format            string `mapstructure:"format"`
	LogLevel          string `mapstructure:"log_level"`
	DmsetupBinary     string `mapstructure:"dmsetup"`
	VeritysetupBinary string `mapstructure:"veritysetup"`
	DirectIO          bool   `mapstructure:"direct_io"`
	Development       bool   `mapstructure:"development"`
}

func loadConfig(v *viper.Viper, configFile string) (*Config, error) {
	v.SetDefault("format", verity.FormatCurrent.String())
	v.SetDefault("log_level", "info")
	v.SetDefault("dmsetup", "dmsetup")
	v.SetDefault("veritysetup", "veritysetup")
	v.SetDefault("direct_io", true)
	v.SetDefault("development", false)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/veritysb")
		v.AddConfigPath("/etc/veritysb")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError

		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}

	if _, err := verity.ParseFormat(cfg.Format); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func newLogger(cfg *Config) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zapConfig := zap.NewProductionConfig()
	if cfg.Development {
		zapConfig = zap.NewDevelopmentConfig()
	}

	zapConfig.Level = level

	return zapConfig.Build()
}
