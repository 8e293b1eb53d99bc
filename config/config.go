// Package config loads storefn runtime configuration from an optional YAML
// file, an optional .env file and STOREFN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// STOREFN_SHEETS_URL for sheets.url.
const EnvPrefix = "STOREFN"

// Ranker providers.
const (
	ProviderNone      = "none"
	ProviderKeyword   = "keyword"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Sheets   SheetsConfig   `mapstructure:"sheets"`
	Ranker   RankerConfig   `mapstructure:"ranker"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
	// RateLimit is the sustained requests per second allowed per store.
	// Zero disables rate limiting.
	RateLimit   float64  `mapstructure:"rate_limit" validate:"gte=0"`
	RateBurst   int      `mapstructure:"rate_burst" validate:"gte=0"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type SheetsConfig struct {
	URL     string        `mapstructure:"url" validate:"omitempty,url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type RankerConfig struct {
	Provider      string        `mapstructure:"provider" validate:"oneof=none keyword anthropic openai"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	Timeout       time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxCandidates int           `mapstructure:"max_candidates" validate:"gte=1,lte=500"`
}

type ExecutorConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("sheets.url", "")
	v.SetDefault("sheets.api_key", "")
	v.SetDefault("sheets.timeout", 10*time.Second)
	v.SetDefault("ranker.provider", ProviderKeyword)
	v.SetDefault("ranker.api_key", "")
	v.SetDefault("ranker.model", "")
	v.SetDefault("ranker.timeout", 15*time.Second)
	v.SetDefault("ranker.max_candidates", 50)
	v.SetDefault("executor.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration. path may be empty, in which case only defaults,
// .env and the environment apply. A .env file in the working directory is
// loaded when present; existing environment variables win over it.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.Server.CORSOrigins = splitList(cfg.Server.CORSOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) {
			problems := make([]string, 0, len(ve))
			for _, fe := range ve {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config: invalid: %s", strings.Join(problems, "; "))
		}
		return fmt.Errorf("config: invalid: %w", err)
	}
	switch c.Ranker.Provider {
	case ProviderAnthropic, ProviderOpenAI:
		if c.Ranker.APIKey == "" {
			return fmt.Errorf("config: ranker.api_key is required for provider %q", c.Ranker.Provider)
		}
	}
	return nil
}

// RequireSheets reports whether the spreadsheet service is configured.
func (c *Config) RequireSheets() error {
	if c.Sheets.URL == "" || c.Sheets.APIKey == "" {
		return fmt.Errorf("config: sheets.url and sheets.api_key are required (set %s_SHEETS_URL and %s_SHEETS_API_KEY)", EnvPrefix, EnvPrefix)
	}
	return nil
}

// splitList expands a single comma separated entry, as it arrives from an
// environment variable, into its parts.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
