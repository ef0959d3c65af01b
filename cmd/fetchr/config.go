package main

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/adamwoolhether/fetchr/backend/httpbase"
)

// envPrefix namespaces the environment overrides, e.g. FETCHR_LOG_LEVEL.
const envPrefix = "FETCHR"

// Config is the merged result of defaults, the config file, the
// environment and command-line flags, in increasing precedence.
type Config struct {
	Backend  string         `mapstructure:"backend" validate:"omitempty,oneof=native stdtls utls"`
	Jobs     int            `mapstructure:"jobs" validate:"min=1,max=64"`
	Progress bool           `mapstructure:"progress"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Limits   LimitsConfig   `mapstructure:"limits"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type ThrottleConfig struct {
	RPS   int `mapstructure:"rps" validate:"required_with=Burst,min=0"`
	Burst int `mapstructure:"burst" validate:"required_with=RPS,min=0"`
}

// LimitsConfig zero values take the library defaults. A negative
// low_speed_time disables stall detection.
type LimitsConfig struct {
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" validate:"min=0"`
	LowSpeedLimit  int64         `mapstructure:"low_speed_limit" validate:"min=0"`
	LowSpeedTime   time.Duration `mapstructure:"low_speed_time"`
}

type LogConfig struct {
	Level      string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"oneof=text json"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"min=1"`
	MaxBackups int    `mapstructure:"max_backups" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"min=0"`
}

type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend", "")
	v.SetDefault("jobs", 4)
	v.SetDefault("progress", false)
	v.SetDefault("throttle.rps", 0)
	v.SetDefault("throttle.burst", 0)
	v.SetDefault("limits.connect_timeout", httpbase.DefaultLimits.ConnectTimeout)
	v.SetDefault("limits.low_speed_limit", httpbase.DefaultLimits.LowSpeedLimit)
	v.SetDefault("limits.low_speed_time", httpbase.DefaultLimits.LowSpeedTime)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
	v.SetDefault("metrics.textfile", "")
}

// flagKeys maps command-line flags onto config keys.
var flagKeys = map[string]string{
	"backend":   "backend",
	"jobs":      "jobs",
	"progress":  "progress",
	"log-level": "log.level",
	"log-file":  "log.file",
	"metrics":   "metrics.textfile",
}

// loadConfig reads path (if set) as YAML, applies FETCHR_* environment
// variables and the flags in fs that were set.
func loadConfig(path string, fs *pflag.FlagSet) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// /////////////////////////////////////////////////////////////////

var validate *validator.Validate
var translator ut.Translator

func init() {
	validate = validator.New()
	var ok bool
	translator, ok = ut.New(en.New(), en.New()).GetTranslator("en")
	if !ok {
		panic("fetchr: failed to get 'en' translator")
	}

	if err := en_translations.RegisterDefaultTranslations(validate, translator); err != nil {
		panic(err)
	}

	// Report fields by their config key.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// FieldError represents a single validation error for a config key.
type FieldError struct {
	Field string
	Err   string
}

// FieldErrors represents a collection of field errors.
type FieldErrors []FieldError

func (fe FieldErrors) Error() string {
	parts := make([]string, len(fe))
	for i, f := range fe {
		parts[i] = f.Field + ": " + f.Err
	}
	return strings.Join(parts, "; ")
}

func validateConfig(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var verrors validator.ValidationErrors
	if !errors.As(err, &verrors) {
		return err
	}

	fields := make(FieldErrors, 0, len(verrors))
	for _, verror := range verrors {
		fields = append(fields, FieldError{
			Field: strings.TrimPrefix(verror.Namespace(), "Config."),
			Err:   verror.Translate(translator),
		})
	}
	return fields
}
