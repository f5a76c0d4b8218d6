package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/joacominatel/sqlgate/internal/admission"
)

// Config represents the application configuration.
type Config struct {
	Database Database `mapstructure:"database" yaml:"database"`
	Server   Server   `mapstructure:"server" yaml:"server"`
	Query    Query    `mapstructure:"query" yaml:"query"`
	Metadata Metadata `mapstructure:"metadata" yaml:"metadata"`
	Log      Log      `mapstructure:"log" yaml:"log"`
	Console  Console  `mapstructure:"console" yaml:"console"`
}

// Connection describes how to reach a PostgreSQL server.
type Connection struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`
	SSLMode  string `mapstructure:"sslmode" yaml:"sslmode"`
}

// Database holds the gateway's database settings.
type Database struct {
	Connection `mapstructure:",squash" yaml:",inline"`

	// DSN, when set, replaces the discrete fields. Password still applies
	// when the DSN has none.
	DSN        string `mapstructure:"dsn" yaml:"dsn,omitempty"`
	MaxConns   int32  `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns   int32  `mapstructure:"min_conns" yaml:"min_conns"`
	UseKeyring bool   `mapstructure:"use_keyring" yaml:"use_keyring"`
}

// Server holds HTTP listener settings.
type Server struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	MaxBodyBytes      int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// Query holds query execution settings.
type Query struct {
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	ReadOnly  bool          `mapstructure:"read_only" yaml:"read_only"`
	MaxRows   int64         `mapstructure:"max_rows" yaml:"max_rows"`
	Admission string        `mapstructure:"admission" yaml:"admission"`
}

// Metadata holds catalog introspection settings.
type Metadata struct {
	Schema      string `mapstructure:"schema" yaml:"schema"`
	Strategy    string `mapstructure:"strategy" yaml:"strategy"`
	Concurrency int    `mapstructure:"concurrency" yaml:"concurrency"`
}

// Log holds logger settings.
type Log struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Console holds settings for the terminal console.
type Console struct {
	URL         string      `mapstructure:"url" yaml:"url"`
	Gateways    []Gateway   `mapstructure:"gateways" yaml:"gateways"`
	Preferences Preferences `mapstructure:"preferences" yaml:"preferences"`
}

// Gateway is a saved gateway endpoint.
type Gateway struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url" yaml:"url"`
}

// Preferences holds user preferences.
type Preferences struct {
	Theme          string `mapstructure:"theme" yaml:"theme"`
	DefaultGateway string `mapstructure:"default_gateway" yaml:"default_gateway"`
}

// Metadata strategies.
const (
	StrategyPerTable = "per_table"
	StrategyBatched  = "batched"
)

// Defaults shared by the loader and callers that build settings by hand.
const (
	DefaultAddr              = ":3000"
	DefaultMaxBodyBytes      = 100 << 10
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultQueryTimeout      = 10 * time.Second
	DefaultConsoleURL        = "http://localhost:3000"
)

// DSN builds a PostgreSQL connection string from the connection profile.
func (c Connection) DSN() string {
	u := url.URL{
		Scheme: "postgresql",
		Host:   c.Host,
		Path:   "/" + c.Database,
	}
	if c.Port > 0 {
		u.Host = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	}
	if c.Username != "" {
		if c.Password != "" {
			u.User = url.UserPassword(c.Username, c.Password)
		} else {
			u.User = url.User(c.Username)
		}
	}
	if c.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(c.SSLMode)
	}
	return u.String()
}

// DisplayString returns a human-readable summary of the connection.
func (c Connection) DisplayString() string {
	s := c.Host
	if c.Port > 0 {
		s += ":" + strconv.Itoa(c.Port)
	}
	s += "/" + c.Database
	if c.Username != "" {
		s = c.Username + "@" + s
	}
	return s
}

// ParseDSN parses a PostgreSQL connection string into a Connection.
func ParseDSN(dsn string) (Connection, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return Connection{}, fmt.Errorf("invalid DSN: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return Connection{}, fmt.Errorf("invalid DSN: unsupported scheme %q", u.Scheme)
	}

	conn := Connection{
		Host:     u.Hostname(),
		Database: strings.TrimPrefix(u.Path, "/"),
		SSLMode:  u.Query().Get("sslmode"),
	}

	if u.User != nil {
		conn.Username = u.User.Username()
		if p, ok := u.User.Password(); ok {
			conn.Password = p
		}
	}

	if portStr := u.Port(); portStr != "" {
		conn.Port, _ = strconv.Atoi(portStr)
	}
	if conn.Port == 0 {
		conn.Port = 5432
	}

	return conn, nil
}

// ConnString returns the DSN the gateway connects with. A configured or
// keyring password is added to a DSN that carries none.
func (d Database) ConnString() string {
	if d.DSN == "" {
		return d.Connection.DSN()
	}
	if d.Password == "" {
		return d.DSN
	}

	u, err := url.Parse(d.DSN)
	if err != nil {
		return d.DSN
	}
	username := d.Username
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			return d.DSN
		}
		if name := u.User.Username(); name != "" {
			username = name
		}
	}
	u.User = url.UserPassword(username, d.Password)
	return u.String()
}

// Target returns the connection the gateway points at, parsed from DSN when
// one is configured.
func (d Database) Target() Connection {
	if d.DSN != "" {
		if c, err := ParseDSN(d.DSN); err == nil {
			return c
		}
	}
	return d.Connection
}

// HasGateway checks if a gateway with the given name already exists.
func (c *Console) HasGateway(name string) bool {
	for _, g := range c.Gateways {
		if g.Name == name {
			return true
		}
	}
	return false
}

// AddGateway appends a gateway if it doesn't already exist.
func (c *Console) AddGateway(g Gateway) {
	if !c.HasGateway(g.Name) {
		c.Gateways = append(c.Gateways, g)
	}
}

// DefaultGateway returns the preferred gateway, or the first one.
func (c *Console) DefaultGateway() *Gateway {
	if len(c.Gateways) == 0 {
		return nil
	}

	if c.Preferences.DefaultGateway != "" {
		for i := range c.Gateways {
			if c.Gateways[i].Name == c.Preferences.DefaultGateway {
				return &c.Gateways[i]
			}
		}
	}

	return &c.Gateways[0]
}

// GatewayFromURL derives a saved gateway entry from a base URL.
func GatewayFromURL(raw string) (Gateway, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Gateway{}, fmt.Errorf("invalid gateway URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Gateway{}, fmt.Errorf("invalid gateway URL: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Gateway{}, fmt.Errorf("invalid gateway URL: missing host")
	}

	u.Path = strings.TrimRight(u.Path, "/")
	return Gateway{
		Name: u.Host,
		URL:  u.String(),
	}, nil
}

// Validate checks values that have a closed set of options.
func (cfg *Config) Validate() error {
	if cfg.Query.Timeout <= 0 {
		return fmt.Errorf("query.timeout must be positive")
	}
	if _, err := admission.ParseMode(cfg.Query.Admission); err != nil {
		return fmt.Errorf("query.admission: %w", err)
	}
	if cfg.Query.MaxRows < 0 {
		return fmt.Errorf("query.max_rows must not be negative")
	}
	switch cfg.Metadata.Strategy {
	case StrategyPerTable, StrategyBatched:
	default:
		return fmt.Errorf("metadata.strategy must be %q or %q, got %q",
			StrategyPerTable, StrategyBatched, cfg.Metadata.Strategy)
	}
	if cfg.Metadata.Schema == "" {
		return fmt.Errorf("metadata.schema is required")
	}
	if cfg.Metadata.Concurrency < 1 {
		return fmt.Errorf("metadata.concurrency must be at least 1")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive")
	}
	return nil
}
