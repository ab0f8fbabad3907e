package config

import (
	"strings"

	"github.com/spf13/viper"
)

type SMTP struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	From     string `mapstructure:"from" yaml:"from"`
	SSL      bool   `mapstructure:"ssl" yaml:"ssl"`
}

type Config struct {
	HTTPAddr          string `mapstructure:"http_addr" yaml:"http_addr"`
	DBPath            string `mapstructure:"db_path" yaml:"db_path"`
	CycleSchedule     string `mapstructure:"cycle_schedule" yaml:"cycle_schedule"`
	BatchSize         int    `mapstructure:"batch_size" yaml:"batch_size"`
	AllowedCORSOrigin string `mapstructure:"allowed_cors_origin" yaml:"allowed_cors_origin"`
	SMTP              SMTP   `mapstructure:"smtp" yaml:"smtp"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetEnvPrefix("UPTIME_SENTRY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("http_addr", ":8080")
	v.SetDefault("db_path", "data/sentry.db")
	v.SetDefault("cycle_schedule", "@every 1m")
	v.SetDefault("batch_size", 10)
	v.SetDefault("smtp.port", 587)

	if err := v.ReadInConfig(); err != nil {
		// It's okay if config file doesn't exist, unless explicitly specified
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}

	return &cfg, nil
}
