package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level"`

	// ICEServers is the STUN/TURN list handed to pion. Empty means
	// host-only connectivity, which is the default for on-site deployments.
	ICEServers []string `mapstructure:"ice_servers"`

	// GatherTimeout bounds the wait for ICE candidate gathering before the
	// offer is sent anyway.
	GatherTimeout time.Duration `mapstructure:"gather_timeout"`

	// SignalTimeout limits the offer/answer HTTP exchange. Zero disables
	// the client-side timeout; failure is then detected via terminal
	// connection states.
	SignalTimeout time.Duration `mapstructure:"signal_timeout"`

	// ControlLabel is the agreed name of the toggle data channel.
	ControlLabel string `mapstructure:"control_label"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("log_level", "info")
	v.SetDefault("ice_servers", []string{})
	v.SetDefault("gather_timeout", "2s")
	v.SetDefault("signal_timeout", "0s")
	v.SetDefault("control_label", "control")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
