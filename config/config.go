// Package config loads the service configuration from YAML, environment
// variables and defaults.
package config

import (
	"time"

	"github.com/spf13/viper"

	"github.com/connectify-ai/connectify/embedding"
	cerrors "github.com/connectify-ai/connectify/errors"
	"github.com/connectify-ai/connectify/llm"
)

const app = "connectify"

// Config is the full service configuration.
type Config struct {
	Listen    string        `mapstructure:"listen"`
	StorePath string        `mapstructure:"store-path"`
	SeedFile  string        `mapstructure:"seed-file"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Debug     bool          `mapstructure:"debug"`
	JSON      bool          `mapstructure:"json"`

	Embedding embedding.ProviderConfig `mapstructure:"embedding"`
	LLM       llm.ProviderConfig       `mapstructure:"llm"`
}

// Load reads the configuration. path selects an explicit file; when empty,
// connectify.yaml in the current directory is used if present, otherwise
// defaults and environment variables apply.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("listen", ":8001")
	v.SetDefault("store-path", "data")
	v.SetDefault("seed-file", "data/job_data.json")
	v.SetDefault("timeout", 120*time.Second)

	// API keys can come from the environment instead of the file; the
	// provider-specific keys mirror what the hosted SDKs expect.
	v.BindEnv("embedding.api-key", "CONNECTIFY_EMBEDDING_API_KEY", "OPENAI_API_KEY")
	v.BindEnv("llm.api-key", "CONNECTIFY_LLM_API_KEY", "OPENAI_API_KEY")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, cerrors.WrapWithCode(err, cerrors.CodeInvalidInput, "reading config file")
		}
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(app + ".yaml")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, cerrors.WrapWithCode(err, cerrors.CodeInvalidInput, "reading config file")
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, cerrors.WrapWithCode(err, cerrors.CodeInvalidInput, "parsing config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that required credentials are present for the selected
// providers. Local and mock backends need none.
func (c *Config) Validate() error {
	switch c.Embedding.Provider {
	case "ollama", "mock":
	default:
		if c.Embedding.APIKey == "" {
			return cerrors.New(cerrors.CodeInvalidInput,
				"embedding api key is required; set embedding.api-key or CONNECTIFY_EMBEDDING_API_KEY")
		}
	}

	switch c.LLM.Provider {
	case "mock":
	default:
		if c.LLM.APIKey == "" {
			return cerrors.New(cerrors.CodeInvalidInput,
				"llm api key is required; set llm.api-key or CONNECTIFY_LLM_API_KEY")
		}
	}

	if c.Timeout <= 0 {
		c.Timeout = 120 * time.Second
	}
	return nil
}
