// Package config loads application configuration from file and environment.
// All empirically chosen model constants live here so they can be tuned via
// backtesting without touching the estimation code.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config is the complete application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Data    DataConfig    `mapstructure:"data"`
	Model   ModelConfig   `mapstructure:"model"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig holds the MCP HTTP server settings.
type ServerConfig struct {
	Addr        string `mapstructure:"addr"`
	MCPPath     string `mapstructure:"mcp_path"`
	RequireAuth bool   `mapstructure:"require_auth"`
	AuthHeader  string `mapstructure:"auth_header"`
}

// DataConfig holds the upstream provider and cache settings.
type DataConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	RawRoot   string `mapstructure:"raw_root"`
	UserAgent string `mapstructure:"user_agent"`
	SleepMS   int    `mapstructure:"sleep_ms"`
	UseCache  bool   `mapstructure:"use_cache"`
}

// ModelConfig holds every tunable constant of the prediction core. The
// multiplicative boost values are heuristics carried over from backtesting;
// they are configuration, not derived quantities.
type ModelConfig struct {
	LeagueAvgGoals     float64 `mapstructure:"league_avg_goals"`
	LeagueAvgXG        float64 `mapstructure:"league_avg_xg"`
	TimeDecay          float64 `mapstructure:"time_decay"`
	FormDecay          float64 `mapstructure:"form_decay"`
	RegressionFraction float64 `mapstructure:"regression_fraction"`
	ICTBonusThreshold  float64 `mapstructure:"ict_bonus_threshold"`
	HomeStrengthBoost  float64 `mapstructure:"home_strength_boost"`
	AwayStrengthFade   float64 `mapstructure:"away_strength_fade"`
	GoalGridSize       int     `mapstructure:"goal_grid_size"`
	DGWBenchBoost      float64 `mapstructure:"dgw_bench_boost"`
	DGWTripleCaptain   float64 `mapstructure:"dgw_triple_captain"`
	DGWCaptainBoost    float64 `mapstructure:"dgw_captain_boost"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from path, with FPL_ORACLE_* environment
// variables taking precedence. A missing file is not an error; defaults
// apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FPL_ORACLE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the built-in configuration without touching the
// filesystem or environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mcp_path", "/mcp")
	v.SetDefault("server.require_auth", true)
	v.SetDefault("server.auth_header", "X-API-Key")

	v.SetDefault("data.base_url", "https://fantasy.premierleague.com/api")
	v.SetDefault("data.raw_root", "data/raw")
	v.SetDefault("data.user_agent", "fpl-points-mcp/1.0")
	v.SetDefault("data.sleep_ms", 250)
	v.SetDefault("data.use_cache", true)

	// PL averages ~2.7-2.8 goals per game, ~1.35 xG per side.
	v.SetDefault("model.league_avg_goals", 2.75)
	v.SetDefault("model.league_avg_xg", 1.35)
	v.SetDefault("model.time_decay", 0.0025)
	v.SetDefault("model.form_decay", 0.15)
	v.SetDefault("model.regression_fraction", 0.5)
	v.SetDefault("model.ict_bonus_threshold", 100)
	v.SetDefault("model.home_strength_boost", 1.1)
	v.SetDefault("model.away_strength_fade", 0.9)
	v.SetDefault("model.goal_grid_size", 8)
	v.SetDefault("model.dgw_bench_boost", 1.8)
	v.SetDefault("model.dgw_triple_captain", 1.85)
	v.SetDefault("model.dgw_captain_boost", 1.9)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// Validate checks that all configuration values are usable.
func (c *Config) Validate() error {
	if c.Data.BaseURL == "" {
		return fmt.Errorf("data.base_url is required")
	}
	if c.Data.RawRoot == "" {
		return fmt.Errorf("data.raw_root is required")
	}
	if c.Model.LeagueAvgGoals <= 0 {
		return fmt.Errorf("model.league_avg_goals must be positive")
	}
	if c.Model.LeagueAvgXG <= 0 {
		return fmt.Errorf("model.league_avg_xg must be positive")
	}
	if c.Model.TimeDecay < 0 {
		return fmt.Errorf("model.time_decay must not be negative")
	}
	if c.Model.FormDecay <= 0 {
		return fmt.Errorf("model.form_decay must be positive")
	}
	if c.Model.RegressionFraction < 0 || c.Model.RegressionFraction > 1 {
		return fmt.Errorf("model.regression_fraction must be between 0 and 1")
	}
	if c.Model.GoalGridSize < 2 {
		return fmt.Errorf("model.goal_grid_size must be at least 2")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	return nil
}
