package server

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/blackjack/internal/game"
	"github.com/lox/blackjack/internal/store"
	"github.com/lox/blackjack/internal/table"
)

// Config represents the complete server configuration
type Config struct {
	Server    ServerSettings
	Auth      AuthSettings
	Store     StoreSettings
	Table     TableSettings
	Broadcast BroadcastSettings
}

// configFile is the HCL layout. Every block is optional.
type configFile struct {
	Server    *ServerSettings    `hcl:"server,block"`
	Auth      *AuthSettings      `hcl:"auth,block"`
	Store     *StoreSettings     `hcl:"store,block"`
	Table     *TableSettings     `hcl:"table,block"`
	Broadcast *BroadcastSettings `hcl:"broadcast,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// AuthSettings configures token signing
type AuthSettings struct {
	Secret   string `hcl:"secret,optional"`
	TokenTTL string `hcl:"token_ttl,optional"`
}

// StoreSettings selects the persistence backend
type StoreSettings struct {
	Backend     string `hcl:"backend,optional"`
	Prefix      string `hcl:"prefix,optional"`
	RedisAddr   string `hcl:"redis_addr,optional"`
	RedisDB     int    `hcl:"redis_db,optional"`
	PostgresDSN string `hcl:"postgres_dsn,optional"`
}

// TableSettings holds the house rules
type TableSettings struct {
	Decks           int    `hcl:"decks,optional"`
	MaxDecks        int    `hcl:"max_decks,optional"`
	MaxSeats        int    `hcl:"max_seats,optional"`
	DealerStandsAt  int    `hcl:"dealer_stands_at,optional"`
	DealerBustLoses bool   `hcl:"dealer_bust_loses,optional"`
	IdleTimeout     string `hcl:"idle_timeout,optional"`
	Seed            *int64 `hcl:"seed,optional"`
}

// BroadcastSettings controls cross-instance fan-out of game updates
type BroadcastSettings struct {
	// Redis relays updates through Redis pub/sub on the store's Redis
	// address so every instance can reach its own subscribers.
	Redis bool `hcl:"redis,optional"`
}

const (
	defaultAddress     = "localhost"
	defaultPort        = 4442
	defaultLogLevel    = "info"
	defaultSecret      = "abrakedabra"
	defaultTokenTTL    = "168h"
	defaultBackend     = "memory"
	defaultPrefix      = "blackjack"
	defaultRedisAddr   = "localhost:6379"
	defaultIdleTimeout = "0s"

	// maxDecksLimit bounds max_decks so a deal stays a modest allocation.
	maxDecksLimit = 1000
)

// DefaultConfig returns default server configuration
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig loads configuration from an HCL file. A missing file yields the
// defaults.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var raw configFile
	diags = gohcl.DecodeBody(file.Body, nil, &raw)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := &Config{}
	if raw.Server != nil {
		cfg.Server = *raw.Server
	}
	if raw.Auth != nil {
		cfg.Auth = *raw.Auth
	}
	if raw.Store != nil {
		cfg.Store = *raw.Store
	}
	if raw.Table != nil {
		cfg.Table = *raw.Table
	}
	if raw.Broadcast != nil {
		cfg.Broadcast = *raw.Broadcast
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = defaultAddress
	}
	if c.Server.Port == 0 {
		c.Server.Port = defaultPort
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = defaultLogLevel
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = defaultSecret
	}
	if c.Auth.TokenTTL == "" {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.Store.Backend == "" {
		c.Store.Backend = defaultBackend
	}
	if c.Store.Prefix == "" {
		c.Store.Prefix = defaultPrefix
	}
	if c.Store.RedisAddr == "" {
		c.Store.RedisAddr = defaultRedisAddr
	}
	if c.Table.Decks == 0 {
		c.Table.Decks = table.DefaultDecksAmount
	}
	if c.Table.MaxDecks == 0 {
		c.Table.MaxDecks = max(table.DefaultMaxDecks, c.Table.Decks)
	}
	if c.Table.MaxSeats == 0 {
		c.Table.MaxSeats = table.DefaultMaxSeats
	}
	if c.Table.DealerStandsAt == 0 {
		c.Table.DealerStandsAt = game.DefaultDealerStandsAt
	}
	if c.Table.IdleTimeout == "" {
		c.Table.IdleTimeout = defaultIdleTimeout
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if _, err := log.ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Server.LogLevel, err)
	}

	if ttl, err := time.ParseDuration(c.Auth.TokenTTL); err != nil || ttl <= 0 {
		return fmt.Errorf("invalid token_ttl %q", c.Auth.TokenTTL)
	}

	switch c.Store.Backend {
	case "memory", "redis":
	case "postgres":
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("store backend postgres requires postgres_dsn")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Store.RedisDB < 0 {
		return fmt.Errorf("invalid redis_db: %d", c.Store.RedisDB)
	}

	if c.Table.Decks < 1 {
		return fmt.Errorf("table: decks must be positive")
	}
	if c.Table.MaxDecks < c.Table.Decks || c.Table.MaxDecks > maxDecksLimit {
		return fmt.Errorf("table: max_decks must be between decks (%d) and %d", c.Table.Decks, maxDecksLimit)
	}
	if c.Table.MaxSeats < 1 || c.Table.MaxSeats > 25 {
		return fmt.Errorf("table: max_seats must be between 1 and 25")
	}
	if 2*(c.Table.MaxSeats+1) > 52*c.Table.Decks {
		return fmt.Errorf("table: %d decks cannot deal %d seats", c.Table.Decks, c.Table.MaxSeats)
	}
	if c.Table.DealerStandsAt < 2 || c.Table.DealerStandsAt > game.Blackjack {
		return fmt.Errorf("table: dealer_stands_at must be between 2 and %d", game.Blackjack)
	}
	if d, err := time.ParseDuration(c.Table.IdleTimeout); err != nil || d < 0 {
		return fmt.Errorf("table: invalid idle_timeout %q", c.Table.IdleTimeout)
	}

	return nil
}

// ListenAddress returns the full server address
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// TokenTTL returns the parsed token lifetime. Call Validate first.
func (c *Config) TokenTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.TokenTTL)
	return d
}

// IdleTimeout returns the parsed idle timeout; zero disables eviction.
func (c *Config) IdleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Table.IdleTimeout)
	return d
}

// TableConfig converts the table block for the orchestrator.
func (c *Config) TableConfig() table.Config {
	return table.Config{
		Rules: game.Rules{
			DealerStandsAt:  c.Table.DealerStandsAt,
			DealerBustLoses: c.Table.DealerBustLoses,
		},
		MaxSeats:    c.Table.MaxSeats,
		DecksAmount: c.Table.Decks,
		MaxDecks:    c.Table.MaxDecks,
	}
}

// StoreOptions converts the store block for store.Open.
func (c *Config) StoreOptions() store.Options {
	return store.Options{
		Backend:     c.Store.Backend,
		Prefix:      c.Store.Prefix,
		RedisAddr:   c.Store.RedisAddr,
		RedisDB:     c.Store.RedisDB,
		PostgresDSN: c.Store.PostgresDSN,
	}
}
