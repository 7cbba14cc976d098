// Package config handles YAML configuration parsing and the environment
// overlay. All ambient settings are resolved here once; nothing reads the
// environment mid-flow.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"stampede/internal/collector"
)

// Config is the root configuration structure.
type Config struct {
	Target      TargetConfig          `yaml:"target"`
	Pools       PoolsConfig           `yaml:"pools"`
	Journeys    map[string]int        `yaml:"journeys,omitempty"` // weight overrides by name
	LoadProfile *LoadProfile          `yaml:"loadProfile,omitempty"`
	Thresholds  *collector.Thresholds `yaml:"thresholds,omitempty"`
	Execution   ExecutionConfig       `yaml:"execution,omitempty"`
}

// TargetConfig identifies the identity provider under test.
type TargetConfig struct {
	// Host is the base URL, e.g. https://idp.staging.example.com.
	Host string `yaml:"host"`
	// BasicAuthUser/Pass protect signup endpoints on some deployments.
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`
	// SPEntryURL is the relying party's entry point; enables the sp_*
	// journey variants.
	SPEntryURL string `yaml:"sp_entry_url"`
	// SkipLogout suppresses the trailing logout flow of each journey.
	SkipLogout bool `yaml:"skip_logout"`
	// Timeout is the per-request transport deadline.
	Timeout time.Duration `yaml:"timeout"`
}

// PoolsConfig sizes the synthetic data pools.
type PoolsConfig struct {
	// Users is the size of the provisioned account range
	// (testuser1..testuser{users-1}). Must match the provisioning task.
	Users int `yaml:"users"`
	// CredentialsFile optionally replaces the standard pool with a CSV of
	// email,password rows.
	CredentialsFile string `yaml:"credentials_file"`
}

// ExecutionConfig controls iteration-level execution behavior.
type ExecutionConfig struct {
	MaxIterations    int `yaml:"max_iterations"`
	WarmupIterations int `yaml:"warmup_iterations"`
}

// LoadProfile defines the load pattern for a test.
type LoadProfile struct {
	Phases []Phase `yaml:"phases"`
}

// TotalDuration returns the sum of all phase durations.
func (lp *LoadProfile) TotalDuration() time.Duration {
	var total time.Duration
	for _, p := range lp.Phases {
		total += p.Duration
	}
	return total
}

// Phase represents a single phase in the load profile.
type Phase struct {
	Name        string        `yaml:"name"`
	Duration    time.Duration `yaml:"duration"`
	Actors      int           `yaml:"actors"`
	StartActors int           `yaml:"startActors"`
	EndActors   int           `yaml:"endActors"`
	RPS         int           `yaml:"rps"`
}

// DefaultUsers matches the provisioning task's default pool size.
const DefaultUsers = 100

// Default returns a Config with defaults applied.
func Default() *Config {
	return &Config{
		Target: TargetConfig{
			Host:    "http://localhost:3000",
			Timeout: 30 * time.Second,
		},
		Pools: PoolsConfig{Users: DefaultUsers},
	}
}

// LoadConfig reads and parses a YAML configuration file, then overlays the
// environment. An empty path yields the environment over defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Pools.Users < 2 {
		cfg.Pools.Users = DefaultUsers
	}
	if cfg.Target.Timeout <= 0 {
		cfg.Target.Timeout = 30 * time.Second
	}
	return cfg, nil
}

// applyEnv overlays the environment variables the original tooling
// consumed. Environment wins over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("TARGET_HOST"); v != "" {
		c.Target.Host = v
	}
	if v := os.Getenv("AUTH_USER"); v != "" {
		c.Target.BasicAuthUser = v
	}
	if v := os.Getenv("AUTH_PASS"); v != "" {
		c.Target.BasicAuthPass = v
	}
	if v := os.Getenv("SP_ENTRY_URL"); v != "" {
		c.Target.SPEntryURL = v
	}
	if v := os.Getenv("SKIP_LOGOUT"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Target.SkipLogout = b
		}
	}
	if v := os.Getenv("NUM_USERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			c.Pools.Users = n
		}
	}
}
