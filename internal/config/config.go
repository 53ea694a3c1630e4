package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode" validate:"oneof=debug release test"`
	Port       int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	StaticPath string `mapstructure:"static_path"`
	Secret     string `mapstructure:"secret"`
	LogLevel   string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	ReadLimit  int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingPeriod time.Duration `mapstructure:"ping_period" validate:"gt=0"`
	WriteWait  time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer int           `mapstructure:"send_buffer" validate:"gt=0"`

	ICEServers []string `mapstructure:"ice_servers"`
	UDPPortMin uint16   `mapstructure:"udp_port_min"`
	UDPPortMax uint16   `mapstructure:"udp_port_max" validate:"omitempty,gtefield=UDPPortMin"`

	ChatLimit    int           `mapstructure:"chat_limit" validate:"gt=0"`
	ChatInterval time.Duration `mapstructure:"chat_interval" validate:"gt=0"`
}

// Load reads config/config.<CONFIG_ENV>.yaml (or --config), then
// GROUPCALL_* environment variables, then command-line flags.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("groupcall", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a yaml config file")
	fs.String("mode", "release", "gin mode: debug, release or test")
	fs.Int("port", 8080, "HTTP listen port")
	fs.String("static_path", "./web", "static UI directory")
	fs.String("log_level", "info", "log level")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("secret", "")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})
	v.SetDefault("udp_port_min", 0)
	v.SetDefault("udp_port_max", 0)
	v.SetDefault("chat_limit", 10)
	v.SetDefault("chat_interval", "5s")

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}
	v.SetEnvPrefix("GROUPCALL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		if *configFile != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("static", cfg.StaticPath).
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Addr() string { return fmt.Sprintf(":%d", c.Port) }
