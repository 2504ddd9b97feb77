// Package config loads the crew configuration from YAML.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"botcrew.ai/internal/game"
)

type Config struct {
	// ListenAddr serves the dashboard websocket.
	ListenAddr string `yaml:"listen_addr"`
	// WorldDataDir holds items.json, resources.json, monsters.json and
	// maps.json.
	WorldDataDir string `yaml:"world_data_dir"`
	// DataDir receives the activity log and the history index.
	DataDir string `yaml:"data_dir"`

	PollIntervalMs int `yaml:"poll_interval_ms"`
	MaxRetries     int `yaml:"max_retries"`

	Workers []WorkerSpec `yaml:"workers"`
	Goals   []GoalSpec   `yaml:"goals"`
}

type WorkerSpec struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// GoalSpec is a plan created at startup.
type GoalSpec struct {
	Item     string `yaml:"item"`
	Quantity int    `yaml:"quantity"`
}

func defaults() Config {
	return Config{
		ListenAddr:     ":8090",
		WorldDataDir:   "data/world",
		DataDir:        "data",
		PollIntervalMs: 2000,
		MaxRetries:     5,
	}
}

func Load(path string) (Config, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("crew.yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("crew.yaml: %w", err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.PollIntervalMs <= 0 {
		return fmt.Errorf("poll_interval_ms must be > 0")
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max_retries must be > 0")
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("workers must not be empty")
	}
	seen := map[string]bool{}
	for i, w := range c.Workers {
		if strings.TrimSpace(w.Name) == "" {
			return fmt.Errorf("workers[%d] name must not be empty", i)
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate worker name: %s", w.Name)
		}
		seen[w.Name] = true
		switch game.Role(w.Role) {
		case game.RoleGatherer, game.RoleCrafter, game.RoleFighter:
		default:
			return fmt.Errorf("worker %s: unknown role %q", w.Name, w.Role)
		}
	}
	for i, g := range c.Goals {
		if strings.TrimSpace(g.Item) == "" {
			return fmt.Errorf("goals[%d] item must not be empty", i)
		}
		if g.Quantity <= 0 {
			return fmt.Errorf("goal %s: quantity must be > 0", g.Item)
		}
	}
	return nil
}

func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}
