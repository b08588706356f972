package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault_CarriesModelConstants(t *testing.T) {
	cfg := Default()

	if cfg.Model.LeagueAvgGoals != 2.75 {
		t.Errorf("LeagueAvgGoals = %v, want 2.75", cfg.Model.LeagueAvgGoals)
	}
	if cfg.Model.LeagueAvgXG != 1.35 {
		t.Errorf("LeagueAvgXG = %v, want 1.35", cfg.Model.LeagueAvgXG)
	}
	if cfg.Model.TimeDecay != 0.0025 {
		t.Errorf("TimeDecay = %v, want 0.0025", cfg.Model.TimeDecay)
	}
	if cfg.Model.FormDecay != 0.15 {
		t.Errorf("FormDecay = %v, want 0.15", cfg.Model.FormDecay)
	}
	if cfg.Model.GoalGridSize != 8 {
		t.Errorf("GoalGridSize = %d, want 8", cfg.Model.GoalGridSize)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("Server.Addr = %q, want %q", cfg.Server.Addr, ":8080")
	}
	if cfg.Data.BaseURL == "" {
		t.Error("Data.BaseURL is empty")
	}
}

func TestDefault_Validates(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil for defaults", err)
	}
}

func TestValidate_RejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty base url", func(c *Config) { c.Data.BaseURL = "" }},
		{"empty raw root", func(c *Config) { c.Data.RawRoot = "" }},
		{"zero league avg goals", func(c *Config) { c.Model.LeagueAvgGoals = 0 }},
		{"negative time decay", func(c *Config) { c.Model.TimeDecay = -0.1 }},
		{"zero form decay", func(c *Config) { c.Model.FormDecay = 0 }},
		{"regression fraction above 1", func(c *Config) { c.Model.RegressionFraction = 1.5 }},
		{"grid too small", func(c *Config) { c.Model.GoalGridSize = 1 }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}

func TestLoad_MissingPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\") error = %v", err)
	}
	if cfg.Model.LeagueAvgGoals != 2.75 {
		t.Errorf("LeagueAvgGoals = %v, want default 2.75", cfg.Model.LeagueAvgGoals)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := []byte("model:\n  league_avg_goals: 2.5\nserver:\n  addr: \":9090\"\n")
	if err := os.WriteFile(path, body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%q) error = %v", path, err)
	}
	if cfg.Model.LeagueAvgGoals != 2.5 {
		t.Errorf("LeagueAvgGoals = %v, want 2.5 from file", cfg.Model.LeagueAvgGoals)
	}
	if cfg.Server.Addr != ":9090" {
		t.Errorf("Server.Addr = %q, want %q from file", cfg.Server.Addr, ":9090")
	}
	// Untouched keys keep their defaults.
	if cfg.Model.LeagueAvgXG != 1.35 {
		t.Errorf("LeagueAvgXG = %v, want default 1.35", cfg.Model.LeagueAvgXG)
	}
}

func TestLoad_UnreadableFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() = nil error for a missing explicit path, want error")
	}
}
