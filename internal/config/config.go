// Package config provides YAML-based configuration loading for DealScout.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/zulandar/dealscout/internal/negotiation"
	"gopkg.in/yaml.v3"
)

// Config is the top-level DealScout configuration, loaded from dealscout.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Negotiation NegotiationConfig `yaml:"negotiation"`
	Provider    ProviderConfig    `yaml:"provider"`
	Server      ServerConfig      `yaml:"server"`
	Notify      NotifyConfig      `yaml:"notify"`
	Watches     []WatchConfig     `yaml:"watches"`
}

// DatabaseConfig selects the storage driver. For mysql the DSN may be left
// empty and built from the host fields instead.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	PasswordEnv string `yaml:"password_env"`
	Name        string `yaml:"name"`
	Debug       bool   `yaml:"debug"`
}

// Password returns the database password from the environment.
func (d DatabaseConfig) Password() string {
	if d.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(d.PasswordEnv)
}

// NegotiationConfig tunes the negotiation loop and hunt fan-out.
type NegotiationConfig struct {
	MaxTurns int `yaml:"max_turns"`
	// ConvergenceThreshold of 0 takes the default of 20; use a tiny positive
	// value such as 0.01 for exact matching. Negative disables notices.
	ConvergenceThreshold    float64 `yaml:"convergence_threshold"`
	BuyerBudgetMultiplier   float64 `yaml:"buyer_budget_multiplier"`
	SellerMinimumMultiplier float64 `yaml:"seller_minimum_multiplier"`
	DecisionTimeoutSec      int     `yaml:"decision_timeout_sec"`
	Parallelism             int     `yaml:"parallelism"`
}

// Options converts the section into loop options.
func (n NegotiationConfig) Options() negotiation.Options {
	return negotiation.Options{
		MaxTurns:                n.MaxTurns,
		ConvergenceThreshold:    n.ConvergenceThreshold,
		BuyerBudgetMultiplier:   n.BuyerBudgetMultiplier,
		SellerMinimumMultiplier: n.SellerMinimumMultiplier,
		DecisionTimeout:         time.Duration(n.DecisionTimeoutSec) * time.Second,
	}
}

// Provider kinds.
const (
	ProviderOpenRouter = "openrouter"
	ProviderClaude     = "claude"
	ProviderRules      = "rules"
)

// ProviderConfig selects where buyer and seller decisions come from.
type ProviderConfig struct {
	Kind         string  `yaml:"kind"`
	Model        string  `yaml:"model"`
	Endpoint     string  `yaml:"endpoint"`
	APIKeyEnv    string  `yaml:"api_key_env"`
	Temperature  float64 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	ClaudeBinary string  `yaml:"claude_binary"`
}

// APIKey returns the provider key from the environment.
func (p ProviderConfig) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// NotifyConfig holds optional chat notification targets.
type NotifyConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a bot token reference plus a destination channel. A
// channel with no ChannelID is disabled.
type ChannelConfig struct {
	BotTokenEnv string `yaml:"bot_token_env"`
	ChannelID   string `yaml:"channel_id"`
}

// Enabled reports whether the channel is configured.
func (c ChannelConfig) Enabled() bool {
	return c.ChannelID != ""
}

// Token returns the bot token from the environment.
func (c ChannelConfig) Token() string {
	return os.Getenv(c.BotTokenEnv)
}

// WatchConfig is a saved hunt run on a cron schedule.
type WatchConfig struct {
	Name      string   `yaml:"name"`
	Query     string   `yaml:"query"`
	MaxBudget *float64 `yaml:"max_budget"`
	TopN      int      `yaml:"top_n"`
	Schedule  string   `yaml:"schedule"`
}

// ScheduleParser parses the five-field cron schedules used by watches.
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
// A .env file in the working directory, if present, is loaded into the
// environment first so *_env references resolve.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg, err := Parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.DSN == "" {
		c.Database.DSN = "dealscout.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
		if c.Database.Name == "" {
			c.Database.Name = "dealscout"
		}
	}

	n := &c.Negotiation
	if n.MaxTurns == 0 {
		n.MaxTurns = negotiation.DefaultMaxTurns
	}
	if n.ConvergenceThreshold == 0 {
		n.ConvergenceThreshold = negotiation.DefaultConvergenceThreshold
	}
	if n.BuyerBudgetMultiplier == 0 {
		n.BuyerBudgetMultiplier = negotiation.DefaultBuyerBudgetMultiplier
	}
	if n.SellerMinimumMultiplier == 0 {
		n.SellerMinimumMultiplier = negotiation.DefaultSellerMinimumMultiplier
	}
	if n.DecisionTimeoutSec == 0 {
		n.DecisionTimeoutSec = int(negotiation.DefaultDecisionTimeout / time.Second)
	}
	if n.Parallelism == 0 {
		n.Parallelism = 4
	}

	p := &c.Provider
	if p.Kind == "" {
		p.Kind = ProviderRules
	}
	if p.Model == "" {
		p.Model = "anthropic/claude-3.5-sonnet"
	}
	if p.Endpoint == "" {
		p.Endpoint = "https://openrouter.ai/api/v1/chat/completions"
	}
	if p.APIKeyEnv == "" {
		p.APIKeyEnv = "OPENROUTER_API_KEY"
	}
	if p.Temperature == 0 {
		p.Temperature = 0.7
	}
	if p.MaxTokens == 0 {
		p.MaxTokens = 1024
	}
	if p.ClaudeBinary == "" {
		p.ClaudeBinary = "claude"
	}

	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"http://localhost:3000"}
	}

	if c.Notify.Slack.BotTokenEnv == "" {
		c.Notify.Slack.BotTokenEnv = "SLACK_BOT_TOKEN"
	}
	if c.Notify.Discord.BotTokenEnv == "" {
		c.Notify.Discord.BotTokenEnv = "DISCORD_BOT_TOKEN"
	}

	for i := range c.Watches {
		if c.Watches[i].TopN == 0 {
			c.Watches[i].TopN = 5
		}
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}

	n := c.Negotiation
	if n.MaxTurns < 2 || n.MaxTurns%2 != 0 {
		errs = append(errs, fmt.Sprintf("negotiation.max_turns must be even and >= 2, got %d", n.MaxTurns))
	}
	if n.BuyerBudgetMultiplier <= 0 {
		errs = append(errs, "negotiation.buyer_budget_multiplier must be > 0")
	}
	if n.SellerMinimumMultiplier <= 0 || n.SellerMinimumMultiplier > 1 {
		errs = append(errs, "negotiation.seller_minimum_multiplier must be in (0, 1]")
	}
	if n.DecisionTimeoutSec < 0 {
		errs = append(errs, "negotiation.decision_timeout_sec must be > 0")
	}
	if n.Parallelism < 1 {
		errs = append(errs, "negotiation.parallelism must be >= 1")
	}

	switch c.Provider.Kind {
	case ProviderOpenRouter, ProviderClaude, ProviderRules:
	default:
		errs = append(errs, fmt.Sprintf("provider.kind %q is not one of openrouter, claude, rules", c.Provider.Kind))
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		errs = append(errs, "provider.temperature must be in [0, 2]")
	}
	if c.Provider.MaxTokens < 0 {
		errs = append(errs, "provider.max_tokens must be > 0")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	seen := make(map[string]bool)
	for i, w := range c.Watches {
		if w.Name == "" {
			errs = append(errs, fmt.Sprintf("watches[%d].name is required", i))
		} else if seen[w.Name] {
			errs = append(errs, fmt.Sprintf("watches[%d].name %q is duplicated", i, w.Name))
		}
		seen[w.Name] = true
		if strings.TrimSpace(w.Query) == "" {
			errs = append(errs, fmt.Sprintf("watches[%d].query is required", i))
		}
		if w.MaxBudget != nil && *w.MaxBudget <= 0 {
			errs = append(errs, fmt.Sprintf("watches[%d].max_budget must be > 0", i))
		}
		if w.TopN < 1 {
			errs = append(errs, fmt.Sprintf("watches[%d].top_n must be >= 1", i))
		}
		if w.Schedule == "" {
			errs = append(errs, fmt.Sprintf("watches[%d].schedule is required", i))
		} else if _, err := ScheduleParser.Parse(w.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("watches[%d].schedule %q: %v", i, w.Schedule, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
