// Package config handles configuration loading for sitewright. It
// supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/sitewright/sitewright/internal/embedding"
	"github.com/sitewright/sitewright/internal/memory"
	"github.com/sitewright/sitewright/pkg/models"
)

// Config holds all configuration for sitewright.
type Config struct {
	Anthropic   AnthropicConfig  `mapstructure:"anthropic"`
	Budget      BudgetConfig     `mapstructure:"budget"`
	Embedding   embedding.Config `mapstructure:"embedding"`
	Memory      MemoryConfig     `mapstructure:"memory"`
	Reactions   ReactionsConfig  `mapstructure:"reactions"`
	Coordinator CoordConfig      `mapstructure:"coordinator"`
}

// AnthropicConfig holds model provider settings.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
	MaxTokens  int64  `mapstructure:"max_tokens"`
}

// BudgetConfig holds context budgeting settings.
type BudgetConfig struct {
	// TokenCeiling bounds the file context per model call.
	TokenCeiling int `mapstructure:"token_ceiling"`
	// PriorityFiles are file IDs budgeted before all others.
	PriorityFiles []string `mapstructure:"priority_files"`
}

// MemoryConfig holds outcome memory settings.
type MemoryConfig struct {
	// DBPath overrides the default outcome database location.
	DBPath string `mapstructure:"db_path"`
	// MaxResults caps retrieved outcomes per task.
	MaxResults int `mapstructure:"max_results"`
	// SimilarityThreshold is the minimum similarity for retrieval.
	SimilarityThreshold float64 `mapstructure:"similarity_threshold"`
	// DecayRate is the per-week relevance decay.
	DecayRate float64 `mapstructure:"decay_rate"`
	// MaxAgeDays drops outcomes older than this from prompts.
	MaxAgeDays int `mapstructure:"max_age_days"`
}

// RetrieveOptions converts the memory section to retrieval options.
func (m MemoryConfig) RetrieveOptions() memory.RetrieveOptions {
	return memory.RetrieveOptions{
		Limit:      m.MaxResults,
		Threshold:  m.SimilarityThreshold,
		DecayRate:  m.DecayRate,
		MaxAgeDays: m.MaxAgeDays,
	}
}

// ReactionsConfig holds the reaction rule set and precedence policy.
type ReactionsConfig struct {
	// Precedence is "all" or "first".
	Precedence string `mapstructure:"precedence"`
	// Rules replaces the default rule set when non-empty.
	Rules []models.ReactionRule `mapstructure:"rules"`
}

// CoordConfig holds coordinator tuning.
type CoordConfig struct {
	// MaxRounds bounds delegation rounds per task.
	MaxRounds int `mapstructure:"max_rounds"`
	// ProjectID scopes memory operations; defaults to the project
	// directory name.
	ProjectID string `mapstructure:"project_id"`
}

// Load loads configuration with the following precedence, highest first:
// environment variables, project config (.sitewright.yaml upward from the
// working directory), user config (XDG config dir), built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SITEWRIGHT")
	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("anthropic.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.max_tokens", 8192)
	v.SetDefault("budget.token_ceiling", 4000)
	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.endpoint", "http://localhost:11434")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("memory.max_results", 5)
	v.SetDefault("memory.similarity_threshold", 0.3)
	v.SetDefault("memory.decay_rate", 0.05)
	v.SetDefault("memory.max_age_days", 180)
	v.SetDefault("reactions.precedence", "all")
	v.SetDefault("coordinator.max_rounds", 3)
}

// userConfigDir returns the XDG config directory for sitewright.
func userConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sitewright")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "sitewright")
}

// findProjectConfig walks from the working directory upward looking for a
// .sitewright.yaml file.
func findProjectConfig() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".sitewright.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
