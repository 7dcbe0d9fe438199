// Package config loads and validates the engine's YAML configuration:
// agent descriptors, domain policies, and the ambient infrastructure
// (logging, checkpointing, approval, telemetry, metrics).
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/agentorch/agent"
	"github.com/BaSui01/agentorch/checkpoint"
	"github.com/BaSui01/agentorch/internal/telemetry"
)

// Defaults applied to domains that leave the fields unset.
const (
	DefaultMaxIterations = 20
	DefaultStepTimeout   = 60 * time.Second
)

// Config is the full engine configuration.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Telemetry  telemetry.Config `yaml:"telemetry"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Approval   ApprovalConfig   `yaml:"approval"`

	Agents  []agent.Agent  `yaml:"agents"`
	Domains []agent.Domain `yaml:"domains"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or console
}

// MetricsConfig controls Prometheus metric registration.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// CheckpointConfig selects the result store backend.
type CheckpointConfig struct {
	Backend string                 `yaml:"backend"` // memory or redis
	Redis   checkpoint.RedisConfig `yaml:"redis"`
}

// ApprovalConfig controls the human-in-the-loop gate.
type ApprovalConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// Load reads, parses, defaults, and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "agentorch"
	}
	if c.Checkpoint.Backend == "" {
		c.Checkpoint.Backend = "memory"
	}

	for i := range c.Domains {
		d := &c.Domains[i]
		if d.MaxIterations == 0 {
			d.MaxIterations = DefaultMaxIterations
		}
		if d.StepTimeout == 0 {
			d.StepTimeout = DefaultStepTimeout
		}
		if d.Quorum == 0 {
			d.Quorum = 1
		}
	}
}

// Validate checks structural and referential integrity. The orchestrator
// re-validates strategy-specific sizing at construction; config validation
// catches what can be decided from the file alone.
func (c *Config) Validate() error {
	switch c.Checkpoint.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown checkpoint backend %q", agent.ErrInvalidDomain, c.Checkpoint.Backend)
	}
	if c.Checkpoint.Backend == "redis" && c.Checkpoint.Redis.Addr == "" {
		return fmt.Errorf("%w: redis checkpoint backend requires addr", agent.ErrInvalidDomain)
	}

	ids := make(map[string]struct{}, len(c.Agents))
	for _, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("%w: agent with empty id", agent.ErrInvalidDomain)
		}
		if _, dup := ids[a.ID]; dup {
			return fmt.Errorf("%w: duplicate agent id %q", agent.ErrInvalidDomain, a.ID)
		}
		ids[a.ID] = struct{}{}
	}

	domainIDs := make(map[string]struct{}, len(c.Domains))
	for i := range c.Domains {
		d := &c.Domains[i]
		if d.ID == "" {
			return fmt.Errorf("%w: domain with empty id", agent.ErrInvalidDomain)
		}
		if _, dup := domainIDs[d.ID]; dup {
			return fmt.Errorf("%w: duplicate domain id %q", agent.ErrInvalidDomain, d.ID)
		}
		domainIDs[d.ID] = struct{}{}

		if len(d.AgentIDs) == 0 {
			return fmt.Errorf("%w: domain %q lists no agents", agent.ErrInvalidDomain, d.ID)
		}
		for _, id := range d.AgentIDs {
			if _, ok := ids[id]; !ok {
				return fmt.Errorf("%w: domain %q references agent %q", agent.ErrUnknownAgent, d.ID, id)
			}
		}
		for _, ref := range []string{d.FallbackAgentID, d.TieBreakerAgentID, d.SummarizerAgentID, d.DefaultAgentID, d.Validation.ValidatorAgentID} {
			if ref == "" {
				continue
			}
			if _, ok := ids[ref]; !ok {
				return fmt.Errorf("%w: domain %q references agent %q", agent.ErrUnknownAgent, d.ID, ref)
			}
		}
	}
	return nil
}
