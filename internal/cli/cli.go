// Package cli implements the ddrgraph command-line interface.
//
// Commands:
//   - ingest: load a FileMaker design report into the graph store
//   - serve: run the read-only viewer and JSON API
//   - stats: print node counts per type and the edge count
//   - export: write the graph or a node neighborhood as JSON, YAML, DOT or SVG
//   - node: print one node with its parents and children
//
// Every command reads ddrgraph.toml (or --config), then the environment,
// then its own flags. --verbose switches logging to debug level.
package cli

import (
	"context"
	"fmt"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/systemshift/ddrgraph/internal/config"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersion sets the version information displayed by --version. main
// calls it with values injected via ldflags.
func SetVersion(v, c, d string) {
	version = v
	commit = c
	date = d
}

// rootOptions is shared by every subcommand.
type rootOptions struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg *config.Config
}

// openStore opens the configured store, honoring --db.
func (o *rootOptions) openStore(ctx context.Context) (graph.Store, error) {
	sc := o.cfg.Store
	if o.dbPath != "" {
		sc.Backend = config.BackendSQLite
		sc.Path = o.dbPath
	}
	store, err := config.OpenStore(ctx, sc)
	if err != nil {
		return nil, fmt.Errorf("opening %s store %s: %w", sc.Backend, sc.Describe(), err)
	}
	loggerFromContext(ctx).Debug("Opened store", "backend", sc.Backend, "at", sc.Describe())
	return store, nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}

	root := &cobra.Command{
		Use:          "ddrgraph",
		Short:        "ddrgraph turns FileMaker design reports into a browsable graph",
		Long:         `ddrgraph ingests a FileMaker Database Design Report (XML) into a graph of tables, fields, relationships and layouts, and serves a read-only browser over it.`,
		Version:      version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := charmlog.InfoLevel
			if o.verbose {
				level = charmlog.DebugLevel
			}
			cmd.SetContext(withLogger(cmd.Context(), newLogger(cmd.ErrOrStderr(), level)))

			cfg, err := config.Load(o.configPath)
			if err != nil {
				return err
			}
			o.cfg = cfg
			return nil
		},
	}

	root.SetVersionTemplate(fmt.Sprintf("ddrgraph %s\ncommit: %s\nbuilt: %s\n", version, commit, date))
	root.PersistentFlags().StringVar(&o.configPath, "config", "", "config file (default "+config.DefaultPath+" if present)")
	root.PersistentFlags().StringVar(&o.dbPath, "db", "", "SQLite database path (overrides the configured store)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "enable verbose logging")

	root.AddCommand(newIngestCmd(o))
	root.AddCommand(newServeCmd(o))
	root.AddCommand(newStatsCmd(o))
	root.AddCommand(newExportCmd(o))
	root.AddCommand(newNodeCmd(o))

	return root
}

// Execute runs the CLI with ctx, which main cancels on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}
