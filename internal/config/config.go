package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	gperrors "github.com/jrsteele09/go-gate-pass/internal/errors"
)

// EnvPrefix is prepended to every environment variable read by the service, e.g. GATEPASS_PORT.
const EnvPrefix = "GATEPASS"

type Config interface {
	EnvConfig
	ProtocolConfig
	StoreConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

// Settings is the flat, validated view of every configuration key.
type Settings struct {
	Port     string `mapstructure:"port" validate:"required"`
	AppName  string `mapstructure:"app_name" validate:"required"`
	Env      string `mapstructure:"env" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	WindowSeconds  int64         `mapstructure:"window_seconds" validate:"gte=1"`
	ToleranceSteps int64         `mapstructure:"tolerance_steps" validate:"gte=1,lte=10"`
	LookupTimeout  time.Duration `mapstructure:"lookup_timeout" validate:"gt=0"`
	RotationGrace  time.Duration `mapstructure:"rotation_grace" validate:"gte=0"`
	EvictInterval  time.Duration `mapstructure:"evict_interval" validate:"gt=0"`

	RedisURL    string `mapstructure:"redis_url" validate:"omitempty,url"`
	DatabaseURL string `mapstructure:"database_url"`

	SealingKey        string `mapstructure:"sealing_key" validate:"omitempty,min=32"`
	DeviceTokenSecret string `mapstructure:"device_token_secret" validate:"required,min=32"`
	DeviceTokenIssuer string `mapstructure:"device_token_issuer" validate:"required"`
}

type mainConfig struct {
	EnvVars
	Protocol
	Stores
	Security
}

var defaults = map[string]any{
	"port":                "8080",
	"app_name":            "Gate Pass",
	"env":                 "DEV",
	"log_level":           "info",
	"window_seconds":      30,
	"tolerance_steps":     1,
	"lookup_timeout":      2 * time.Second,
	"rotation_grace":      60 * time.Second,
	"evict_interval":      30 * time.Second,
	"redis_url":           "",
	"database_url":        "",
	"sealing_key":         "",
	"device_token_secret": "",
	"device_token_issuer": "gate-pass",
}

// New reads GATEPASS_* environment variables over the defaults and validates the result.
func New() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds a Config from an existing viper instance; keys without a value fall back to
// the defaults.
func FromViper(v *viper.Viper) (Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.Wrap(err, "config unmarshal")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return mainConfig{
		EnvVars:  EnvVars{settings: s},
		Protocol: Protocol{settings: s},
		Stores:   Stores{settings: s},
		Security: Security{settings: s},
	}, nil
}

// Validate checks field constraints and the cross-field rules the struct tags cannot express.
func (s Settings) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(s); err != nil {
		return gperrors.Wrapf(gperrors.ErrInvalidConfig, "%s", err.Error())
	}
	if s.DatabaseURL != "" && s.SealingKey == "" {
		return gperrors.Wrapf(gperrors.ErrInvalidConfig, "sealing_key is required when database_url is set")
	}
	return nil
}
