// Package config assembles pipeline configuration from defaults, an
// optional config file, environment variables, and CLI flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Configuration errors. Both abort the run before any work starts.
var (
	ErrMissingAPIKey = errors.New("no API key configured (set REPSUM_API_KEY or GITHUB_TOKEN)")
	ErrMissingPrompt = errors.New("prompt preamble file is missing")
)

// ServiceConfig holds the external summarization service settings. The
// sampling configuration is fixed at maximum temperature and nucleus 1.0 by
// design; summaries are not meant to be reproducible.
type ServiceConfig struct {
	BaseURL         string  `mapstructure:"base_url"`
	Model           string  `mapstructure:"model"`
	APIKey          string  `mapstructure:"api_key"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	Temperature     float32 `mapstructure:"temperature"`
	TopP            float32 `mapstructure:"top_p"`
	CooldownSeconds int     `mapstructure:"cooldown_seconds"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
}

// Config is the root configuration.
type Config struct {
	SourceDir     string        `mapstructure:"source_dir"`
	OutputDir     string        `mapstructure:"output_dir"`
	PromptFile    string        `mapstructure:"prompt_file"`
	LedgerFile    string        `mapstructure:"ledger_file"`
	BatchSize     int           `mapstructure:"batch_size"`
	ContextTokens int           `mapstructure:"context_tokens"`
	Service       ServiceConfig `mapstructure:"service"`
}

// DefaultConfig values
var DefaultConfig = Config{
	SourceDir:     "src",
	OutputDir:     "dest",
	PromptFile:    "prompt.txt",
	LedgerFile:    "repsum-ledger.json",
	BatchSize:     15,
	ContextTokens: 4096,
	Service: ServiceConfig{
		BaseURL:         "https://models.inference.ai.azure.com",
		Model:           "gpt-4o",
		MaxOutputTokens: 4096,
		Temperature:     1.0,
		TopP:            1.0,
		CooldownSeconds: 2,
		MaxAttempts:     5,
	},
}

// cfgFile holds the path to the configuration file (set via CLI)
var cfgFile string

// Load builds the final configuration from file, flags, and environment
// variables.
func Load(rootCmd *cobra.Command, cwd string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	bindEnv()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	} else {
		viper.SetConfigName("repsum-config")
		viper.AddConfigPath(cwd)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			// No config file is fine; defaults plus env plus flags
			// are a complete configuration.
			viper.SetConfigType("json")
			_ = viper.ReadInConfig()
		}
	}

	bindFlags(rootCmd)

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode configuration: %w", err)
	}

	return &config, nil
}

// Validate enforces startup requirements and clamps service limits.
func (c *Config) Validate() error {
	if c.Service.APIKey == "" {
		return ErrMissingAPIKey
	}
	if _, err := os.Stat(c.PromptFile); err != nil {
		return fmt.Errorf("%w: %s", ErrMissingPrompt, c.PromptFile)
	}
	if c.ContextTokens <= 0 {
		return fmt.Errorf("context_tokens must be positive, got %d", c.ContextTokens)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be positive, got %d", c.BatchSize)
	}

	// The service caps completions between 2048 and 4096 output tokens.
	if c.Service.MaxOutputTokens < 2048 {
		c.Service.MaxOutputTokens = 2048
	}
	if c.Service.MaxOutputTokens > 4096 {
		c.Service.MaxOutputTokens = 4096
	}

	return nil
}

// LoadPreamble reads the fixed instruction preamble.
func (c *Config) LoadPreamble() (string, error) {
	data, err := os.ReadFile(c.PromptFile)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrMissingPrompt, c.PromptFile)
	}
	return string(data), nil
}

// FinalSummaryPath is where the end-of-run rollup document lands: a sibling
// of the output root.
func (c *Config) FinalSummaryPath() string {
	return filepath.Join(filepath.Dir(c.OutputDir), "final_summary.txt")
}

func setDefaults() {
	viper.SetDefault("source_dir", DefaultConfig.SourceDir)
	viper.SetDefault("output_dir", DefaultConfig.OutputDir)
	viper.SetDefault("prompt_file", DefaultConfig.PromptFile)
	viper.SetDefault("ledger_file", DefaultConfig.LedgerFile)
	viper.SetDefault("batch_size", DefaultConfig.BatchSize)
	viper.SetDefault("context_tokens", DefaultConfig.ContextTokens)
	viper.SetDefault("service.base_url", DefaultConfig.Service.BaseURL)
	viper.SetDefault("service.model", DefaultConfig.Service.Model)
	viper.SetDefault("service.api_key", DefaultConfig.Service.APIKey)
	viper.SetDefault("service.max_output_tokens", DefaultConfig.Service.MaxOutputTokens)
	viper.SetDefault("service.temperature", DefaultConfig.Service.Temperature)
	viper.SetDefault("service.top_p", DefaultConfig.Service.TopP)
	viper.SetDefault("service.cooldown_seconds", DefaultConfig.Service.CooldownSeconds)
	viper.SetDefault("service.max_attempts", DefaultConfig.Service.MaxAttempts)
}

// bindEnv explicitly binds environment variables to configuration keys.
// GITHUB_TOKEN is kept as a fallback credential name for compatibility with
// existing deployments.
func bindEnv() {
	_ = viper.BindEnv("source_dir", "REPSUM_SOURCE_DIR")
	_ = viper.BindEnv("output_dir", "REPSUM_OUTPUT_DIR")
	_ = viper.BindEnv("prompt_file", "REPSUM_PROMPT_FILE")
	_ = viper.BindEnv("ledger_file", "REPSUM_LEDGER_FILE")
	_ = viper.BindEnv("service.base_url", "REPSUM_BASE_URL")
	_ = viper.BindEnv("service.model", "REPSUM_MODEL")
	_ = viper.BindEnv("service.api_key", "REPSUM_API_KEY", "GITHUB_TOKEN")
}

// bindFlags binds the CLI flags to configuration values.
func bindFlags(rootCmd *cobra.Command) {
	_ = viper.BindPFlag("source_dir", rootCmd.PersistentFlags().Lookup("source_dir"))
	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output_dir"))
	_ = viper.BindPFlag("prompt_file", rootCmd.PersistentFlags().Lookup("prompt_file"))
	_ = viper.BindPFlag("ledger_file", rootCmd.PersistentFlags().Lookup("ledger_file"))
	_ = viper.BindPFlag("batch_size", rootCmd.PersistentFlags().Lookup("batch_size"))
	_ = viper.BindPFlag("context_tokens", rootCmd.PersistentFlags().Lookup("context_tokens"))
	_ = viper.BindPFlag("service.base_url", rootCmd.PersistentFlags().Lookup("base_url"))
	_ = viper.BindPFlag("service.model", rootCmd.PersistentFlags().Lookup("model"))
	_ = viper.BindPFlag("service.api_key", rootCmd.PersistentFlags().Lookup("api_key"))
	_ = viper.BindPFlag("service.max_output_tokens", rootCmd.PersistentFlags().Lookup("max_output_tokens"))
}

// InitFlags initializes the flags for the root command.
func InitFlags(rootCmd *cobra.Command) {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to a configuration file (JSON or YAML).")

	rootCmd.PersistentFlags().String("source_dir", DefaultConfig.SourceDir, "Directory containing the input zip archives.")
	rootCmd.PersistentFlags().String("output_dir", DefaultConfig.OutputDir, "Directory receiving chunks, summaries, and batch documents.")
	rootCmd.PersistentFlags().String("prompt_file", DefaultConfig.PromptFile, "File holding the fixed summarization instruction preamble.")
	rootCmd.PersistentFlags().String("ledger_file", DefaultConfig.LedgerFile, "JSON file recording already-summarized artifacts for resume.")
	rootCmd.PersistentFlags().Int("batch_size", DefaultConfig.BatchSize, "Maximum number of summaries combined into one rollup batch.")
	rootCmd.PersistentFlags().Int("context_tokens", DefaultConfig.ContextTokens, "Model context budget; the per-chunk budget is this minus the preamble size.")
	rootCmd.PersistentFlags().String("base_url", DefaultConfig.Service.BaseURL, "Base URL of the summarization service.")
	rootCmd.PersistentFlags().String("model", DefaultConfig.Service.Model, "Model used for summarization.")
	rootCmd.PersistentFlags().String("api_key", "", "Credential for the summarization service.")
	rootCmd.PersistentFlags().Int("max_output_tokens", DefaultConfig.Service.MaxOutputTokens, "Upper bound on summary length in tokens (2048-4096).")
}
