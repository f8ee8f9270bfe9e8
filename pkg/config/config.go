// Package config loads run settings from a YAML file, a .env file and
// TWICSYNC_ environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/japaniel/twicsync/pkg/fetch"
	"github.com/japaniel/twicsync/pkg/twic"
)

const envPrefix = "TWICSYNC"

// Config holds every setting of a run.
type Config struct {
	BaseURL             string          `mapstructure:"base_url" validate:"required,url"`
	UserAgent           string          `mapstructure:"user_agent" validate:"required"`
	DBPath              string          `mapstructure:"db_path" validate:"required"`
	TimeControls        string          `mapstructure:"time_controls" validate:"required"`
	Workers             int             `mapstructure:"workers" validate:"min=1,max=64"`
	BatchSize           int             `mapstructure:"batch_size" validate:"min=1"`
	HTTPTimeout         time.Duration   `mapstructure:"http_timeout" validate:"min=0"`
	Retries             int             `mapstructure:"retries" validate:"min=0,max=10"`
	MaxArchiveBytes     int64           `mapstructure:"max_archive_bytes" validate:"min=1"`
	EmptyEventThreshold int             `mapstructure:"empty_event_threshold" validate:"min=1"`
	SalvagePartial      bool            `mapstructure:"salvage_partial"`
	CountOverrides      []CountOverride `mapstructure:"count_overrides" validate:"dive"`
}

// CountOverride corrects the published game count of one event. It is a
// list entry rather than a map because event names are case sensitive.
type CountOverride struct {
	Archive int    `mapstructure:"archive" validate:"min=1"`
	Event   string `mapstructure:"event" validate:"required"`
	Count   int    `mapstructure:"count" validate:"min=0"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("base_url", fetch.DefaultBaseURL)
	v.SetDefault("user_agent", fetch.DefaultUserAgent)
	v.SetDefault("db_path", "twicsync.db")
	v.SetDefault("time_controls", "time_controls.csv")
	v.SetDefault("workers", 4)
	v.SetDefault("batch_size", 100)
	v.SetDefault("http_timeout", 60*time.Second)
	v.SetDefault("retries", 2)
	v.SetDefault("max_archive_bytes", fetch.DefaultMaxBytes)
	v.SetDefault("empty_event_threshold", twic.DefaultEmptyEventThreshold)
	v.SetDefault("salvage_partial", false)
}

// Load reads path (optional; "" means defaults and environment only).
func Load(path string) (*Config, error) {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("invalid config: %w", err)
		}
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
	}
	return nil
}

// Overrides returns the built-in count corrections extended by the
// configured ones.
func (c *Config) Overrides() twic.OverrideTable {
	t := twic.DefaultOverrides()
	for _, o := range c.CountOverrides {
		t.Set(o.Archive, o.Event, o.Count)
	}
	return t
}
