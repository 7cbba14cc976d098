package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target.Host != "http://localhost:3000" {
		t.Errorf("unexpected default host %q", cfg.Target.Host)
	}
	if cfg.Pools.Users != DefaultUsers {
		t.Errorf("unexpected default pool size %d", cfg.Pools.Users)
	}
	if cfg.Target.Timeout != 30*time.Second {
		t.Errorf("unexpected default timeout %v", cfg.Target.Timeout)
	}
}

func TestLoadConfig_FullFile(t *testing.T) {
	path := writeConfig(t, `
target:
  host: https://idp.staging.example.com
  basic_auth_user: loadtest
  basic_auth_pass: sekrit
  sp_entry_url: https://sp.example.com/auth
  skip_logout: true
  timeout: 10s
pools:
  users: 500
journeys:
  idp_change_pass: 3
  sp_create_account: 0
loadProfile:
  phases:
    - name: ramp
      duration: 30s
      startActors: 1
      endActors: 20
    - name: steady
      duration: 2m
      actors: 20
      rps: 50
thresholds:
  flow_duration:
    p95: 800ms
  journey_failed:
    rate: 1%
execution:
  max_iterations: 10
  warmup_iterations: 2
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Target.Host != "https://idp.staging.example.com" {
		t.Errorf("unexpected host %q", cfg.Target.Host)
	}
	if !cfg.Target.SkipLogout {
		t.Error("expected skip_logout true")
	}
	if cfg.Target.Timeout != 10*time.Second {
		t.Errorf("unexpected timeout %v", cfg.Target.Timeout)
	}
	if cfg.Pools.Users != 500 {
		t.Errorf("unexpected pool size %d", cfg.Pools.Users)
	}
	if cfg.Journeys["idp_change_pass"] != 3 {
		t.Errorf("unexpected journey weight %d", cfg.Journeys["idp_change_pass"])
	}
	if w, ok := cfg.Journeys["sp_create_account"]; !ok || w != 0 {
		t.Error("expected explicit zero weight to survive")
	}
	if cfg.LoadProfile == nil || len(cfg.LoadProfile.Phases) != 2 {
		t.Fatalf("unexpected load profile %+v", cfg.LoadProfile)
	}
	if cfg.LoadProfile.TotalDuration() != 30*time.Second+2*time.Minute {
		t.Errorf("unexpected total duration %v", cfg.LoadProfile.TotalDuration())
	}
	if cfg.Thresholds == nil || cfg.Thresholds.FlowDuration == nil {
		t.Fatal("expected thresholds to parse")
	}
	if cfg.Thresholds.FlowDuration.P95 != 800*time.Millisecond {
		t.Errorf("unexpected p95 threshold %v", cfg.Thresholds.FlowDuration.P95)
	}
	if cfg.Execution.MaxIterations != 10 || cfg.Execution.WarmupIterations != 2 {
		t.Errorf("unexpected execution config %+v", cfg.Execution)
	}
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	path := writeConfig(t, `
target:
  host: https://from-file.example.com
  basic_auth_user: fileuser
`)

	t.Setenv("TARGET_HOST", "https://from-env.example.com")
	t.Setenv("AUTH_USER", "envuser")
	t.Setenv("AUTH_PASS", "envpass")
	t.Setenv("SKIP_LOGOUT", "true")
	t.Setenv("NUM_USERS", "250")
	t.Setenv("SP_ENTRY_URL", "https://sp.example.com/auth")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Target.Host != "https://from-env.example.com" {
		t.Errorf("environment must win over file, got %q", cfg.Target.Host)
	}
	if cfg.Target.BasicAuthUser != "envuser" || cfg.Target.BasicAuthPass != "envpass" {
		t.Errorf("unexpected auth %q/%q", cfg.Target.BasicAuthUser, cfg.Target.BasicAuthPass)
	}
	if !cfg.Target.SkipLogout {
		t.Error("expected SKIP_LOGOUT to apply")
	}
	if cfg.Pools.Users != 250 {
		t.Errorf("expected NUM_USERS to apply, got %d", cfg.Pools.Users)
	}
	if cfg.Target.SPEntryURL != "https://sp.example.com/auth" {
		t.Errorf("expected SP_ENTRY_URL to apply, got %q", cfg.Target.SPEntryURL)
	}
}

func TestLoadConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SKIP_LOGOUT", "banana")
	t.Setenv("NUM_USERS", "1")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Target.SkipLogout {
		t.Error("unparseable SKIP_LOGOUT must be ignored")
	}
	if cfg.Pools.Users != DefaultUsers {
		t.Errorf("pool size below 2 must fall back to default, got %d", cfg.Pools.Users)
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	path := writeConfig(t, "target: [not a mapping")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}
