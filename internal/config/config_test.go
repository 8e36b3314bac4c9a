package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/ddrgraph/internal/ingest"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ddrgraph.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{"DDRGRAPH_BACKEND", "DDRGRAPH_DB", "NEO4J_URI", "NEO4J_USER", "NEO4J_PASSWORD", "NEO4J_DATABASE", "PORT"} {
		t.Setenv(key, "")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, `
[store]
path = "/var/lib/ddrgraph/graph.db"

[ingest]
reset = false
unknown_sections = "skip"
skip = ["LayoutCatalog"]

[server]
addr = "127.0.0.1:9000"
read_timeout = "30s"

[[subscriptions]]
name = "new fields"
webhook = "http://localhost:9999/hook"

[subscriptions.pattern]
event_types = ["node.created"]
node_types = ["Field"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend, "default kept")
	assert.Equal(t, "/var/lib/ddrgraph/graph.db", cfg.Store.Path)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout, "default kept")

	opts, err := cfg.Ingest.Options()
	require.NoError(t, err)
	assert.Equal(t, ingest.Options{Skip: []string{"LayoutCatalog"}, Unknown: ingest.UnknownSkip}, opts)

	require.Len(t, cfg.Subscriptions, 1)
	sub := cfg.Subscriptions[0]
	assert.Equal(t, "new fields", sub.Name)
	assert.Equal(t, []graph.NodeType{graph.NodeField}, sub.Pattern.NodeTypes)
	assert.Equal(t, []string{graph.EventNodeCreated}, sub.Pattern.EventTypes)
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)

	opts, err := cfg.Ingest.Options()
	require.NoError(t, err)
	assert.Equal(t, ingest.DefaultOptions().Reset, opts.Reset)
	assert.Equal(t, ingest.UnknownAbort, opts.Unknown)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadRejects(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", `[store`, "loading config"},
		{"backend", "[store]\nbackend = \"postgres\"", "postgres"},
		{"policy", "[ingest]\nunknown_sections = \"ignore\"", "ignore"},
		{"subscription", "[[subscriptions]]\nname = \"x\"", "webhook"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	env := map[string]string{
		"DDRGRAPH_DB":    "/tmp/env.db",
		"NEO4J_URI":      "bolt://db:7687",
		"NEO4J_PASSWORD": "secret",
		"PORT":           "9090",
	}
	cfg := Default()
	cfg.applyEnv(func(k string) string { return env[k] })

	assert.Equal(t, "/tmp/env.db", cfg.Store.Path)
	assert.Equal(t, "bolt://db:7687", cfg.Store.Neo4j.URI)
	assert.Equal(t, "secret", cfg.Store.Neo4j.Password)
	assert.Equal(t, "neo4j", cfg.Store.Neo4j.User, "unset keeps the previous value")
	assert.Equal(t, ":9090", cfg.Server.Addr)
}

func TestEnvBeatsFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DDRGRAPH_DB", "/from/env.db")

	cfg, err := Load(writeFile(t, "[store]\npath = \"/from/file.db\""))
	require.NoError(t, err)
	assert.Equal(t, "/from/env.db", cfg.Store.Path)
}

func TestOpenStoreSQLite(t *testing.T) {
	ctx := context.Background()
	s, err := OpenStore(ctx, StoreConfig{Backend: BackendSQLite, Path: filepath.Join(t.TempDir(), "g.db")})
	require.NoError(t, err)
	defer s.Close()

	id, err := s.InsertNode(ctx, graph.Node{Name: "Customers", Type: graph.NodeBaseTable})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}

func TestOpenStoreUnknownBackend(t *testing.T) {
	_, err := OpenStore(context.Background(), StoreConfig{Backend: "bolt"})
	assert.Error(t, err)
}

func TestDescribe(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "ddrgraph.db", cfg.Store.Describe())
	cfg.Store.Backend = BackendNeo4j
	assert.Equal(t, "bolt://localhost:7687", cfg.Store.Describe())
}
