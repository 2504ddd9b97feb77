package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crew.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8090" || cfg.PollIntervalMs != 2000 {
		t.Fatalf("defaults: %+v", cfg)
	}
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
listen_addr: ":9999"
world_data_dir: testdata/world
poll_interval_ms: 500
workers:
  - {name: alice, role: gatherer}
  - {name: bob, role: crafter}
  - {name: carol, role: fighter}
goals:
  - {item: wooden_staff, quantity: 5}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":9999" || len(cfg.Workers) != 3 || len(cfg.Goals) != 1 {
		t.Fatalf("config: %+v", cfg)
	}
	if cfg.PollInterval().Milliseconds() != 500 {
		t.Fatalf("poll interval: %v", cfg.PollInterval())
	}
	// Unset fields keep their defaults.
	if cfg.MaxRetries != 5 {
		t.Fatalf("max_retries default lost: %d", cfg.MaxRetries)
	}
}

func TestLoad_RejectsBadConfigs(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"no workers", "poll_interval_ms: 100\n", "workers"},
		{"bad role", "workers:\n  - {name: a, role: wizard}\n", "role"},
		{"duplicate name", "workers:\n  - {name: a, role: gatherer}\n  - {name: a, role: crafter}\n", "duplicate"},
		{"bad goal", "workers:\n  - {name: a, role: gatherer}\ngoals:\n  - {item: x, quantity: 0}\n", "quantity"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
