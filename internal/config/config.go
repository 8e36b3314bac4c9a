// Package config loads ddrgraph settings from a TOML file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the TOML file, environment
// variables, command-line flags (applied by the caller).
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/systemshift/ddrgraph/internal/ingest"
	"github.com/systemshift/ddrgraph/internal/server/graph"
	"github.com/systemshift/ddrgraph/internal/server/subscriptions"
)

// DefaultPath is read when no config file is named. A missing file at this
// path is not an error.
const DefaultPath = "ddrgraph.toml"

// Store backends
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config is the whole configuration file.
type Config struct {
	Store         StoreConfig                  `toml:"store"`
	Ingest        IngestConfig                 `toml:"ingest"`
	Server        ServerConfig                 `toml:"server"`
	Subscriptions []subscriptions.Subscription `toml:"subscriptions"`
}

// StoreConfig selects and locates the graph store.
type StoreConfig struct {
	Backend string      `toml:"backend"`
	Path    string      `toml:"path"`
	Neo4j   Neo4jConfig `toml:"neo4j"`
}

// Neo4jConfig holds Neo4j connection settings.
type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// IngestConfig holds the default ingest options.
type IngestConfig struct {
	Reset           bool     `toml:"reset"`
	UnknownSections string   `toml:"unknown_sections"`
	Skip            []string `toml:"skip"`
}

// ServerConfig holds the viewer's HTTP settings.
type ServerConfig struct {
	Addr         string        `toml:"addr"`
	ReadTimeout  time.Duration `toml:"read_timeout"`
	WriteTimeout time.Duration `toml:"write_timeout"`
	IdleTimeout  time.Duration `toml:"idle_timeout"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Store: StoreConfig{
			Backend: BackendSQLite,
			Path:    "ddrgraph.db",
			Neo4j: Neo4jConfig{
				URI:      "bolt://localhost:7687",
				User:     "neo4j",
				Password: "password",
				Database: "neo4j",
			},
		},
		Ingest: IngestConfig{
			Reset:           true,
			UnknownSections: "abort",
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Load reads path on top of the defaults and applies environment
// overrides. An empty path means DefaultPath, which may be absent.
func Load(path string) (*Config, error) {
	cfg := Default()

	optional := path == ""
	if optional {
		path = DefaultPath
	}

	_, err := toml.DecodeFile(path, cfg)
	switch {
	case err == nil:
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	cfg.applyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// applyEnv overrides settings from the environment. lookup is os.Getenv
// outside tests.
func (c *Config) applyEnv(lookup func(string) string) {
	getEnv := func(key, defaultValue string) string {
		if value := lookup(key); value != "" {
			return value
		}
		return defaultValue
	}

	c.Store.Backend = getEnv("DDRGRAPH_BACKEND", c.Store.Backend)
	c.Store.Path = getEnv("DDRGRAPH_DB", c.Store.Path)
	c.Store.Neo4j.URI = getEnv("NEO4J_URI", c.Store.Neo4j.URI)
	c.Store.Neo4j.User = getEnv("NEO4J_USER", c.Store.Neo4j.User)
	c.Store.Neo4j.Password = getEnv("NEO4J_PASSWORD", c.Store.Neo4j.Password)
	c.Store.Neo4j.Database = getEnv("NEO4J_DATABASE", c.Store.Neo4j.Database)
	if port := lookup("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
}

// Validate checks the values that would otherwise fail late.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendSQLite, BackendNeo4j:
	default:
		return fmt.Errorf("unknown store backend %q (want %s or %s)", c.Store.Backend, BackendSQLite, BackendNeo4j)
	}
	if _, err := c.Ingest.Options(); err != nil {
		return err
	}
	for _, s := range c.Subscriptions {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Options converts the ingest settings to pipeline options.
func (c IngestConfig) Options() (ingest.Options, error) {
	policy, err := ingest.ParseUnknownPolicy(c.UnknownSections)
	if err != nil {
		return ingest.Options{}, err
	}
	return ingest.Options{
		Reset:   c.Reset,
		Skip:    c.Skip,
		Unknown: policy,
	}, nil
}

// OpenStore connects to the configured backend.
func OpenStore(ctx context.Context, c StoreConfig) (graph.Store, error) {
	switch c.Backend {
	case BackendSQLite, "":
		return graph.NewSQLite(ctx, c.Path)
	case BackendNeo4j:
		return graph.NewNeo4j(ctx, graph.Neo4jConfig{
			URI:      c.Neo4j.URI,
			Username: c.Neo4j.User,
			Password: c.Neo4j.Password,
			Database: c.Neo4j.Database,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", c.Backend)
	}
}

// Describe names the store location for log output.
func (c StoreConfig) Describe() string {
	if c.Backend == BackendNeo4j {
		return c.Neo4j.URI
	}
	return c.Path
}
