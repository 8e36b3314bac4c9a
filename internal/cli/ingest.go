package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"path/filepath"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/ingest"
	"github.com/systemshift/ddrgraph/internal/server/subscriptions"
)

type ingestFlags struct {
	noReset bool
	skip    []string
	unknown string
}

func newIngestCmd(o *rootOptions) *cobra.Command {
	var f ingestFlags

	cmd := &cobra.Command{
		Use:   "ingest <report.xml>",
		Short: "Load a design report into the graph store",
		Long: `Decode a FileMaker design report and rebuild the graph from it.

The store is emptied first unless --no-reset is given. --skip leaves the named
sections out; together with --no-reset this re-runs only the remaining
sections on top of an earlier ingest, which assumes the skipped sections are
already in the store.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := o.cfg.Ingest.Options()
			if err != nil {
				return err
			}
			if f.noReset {
				opts.Reset = false
			}
			if cmd.Flags().Changed("skip") {
				opts.Skip = f.skip
			}
			if f.unknown != "" {
				if opts.Unknown, err = ingest.ParseUnknownPolicy(f.unknown); err != nil {
					return err
				}
			}
			return runIngest(cmd.Context(), o, args[0], opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&f.noReset, "no-reset", false, "keep the existing graph instead of starting empty")
	cmd.Flags().StringSliceVar(&f.skip, "skip", nil, "section kinds to skip (repeatable)")
	cmd.Flags().StringVar(&f.unknown, "unknown", "", "what to do with unrecognized sections: abort or skip")

	return cmd
}

func runIngest(ctx context.Context, o *rootOptions, path string, opts ingest.Options, out io.Writer) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

	doc, err := document.DecodeXMLFile(path)
	if err != nil {
		return err
	}
	logger.Debug("Decoded document", "root", doc.Root, "sections", len(doc.Sections))

	store, err := o.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	p := ingest.NewPipeline(store, nil, logger)

	var subs *subscriptions.Manager
	if len(o.cfg.Subscriptions) > 0 {
		subs, err = subscriptions.NewManager(o.cfg.Subscriptions, nil, logger)
		if err != nil {
			return err
		}
		p.OnEvent = subs.Observe
	}

	res, runErr := p.Run(ctx, doc, opts)
	if res != nil {
		printIngestResult(out, res)
	}
	if runErr != nil {
		return fmt.Errorf("ingesting %s: %w", path, runErr)
	}
	prog.done("Ingested " + filepath.Base(path))

	if subs != nil {
		if err := subs.Flush(ctx, path); err != nil {
			logger.Warn("Some notifications were not delivered", "err", err)
		}
	}
	return nil
}

func printIngestResult(w io.Writer, res *ingest.Result) {
	for _, s := range res.Sections {
		if s.Skipped {
			printInfo(w, "%s skipped", s.Kind)
			continue
		}
		printSuccess(w, "%s", s.Kind)
		printDetail(w, "%d nodes · %d edges · %s", s.NodesCreated, s.EdgesCreated, s.Duration.Round(time.Millisecond))
	}

	printCount(w, "Nodes", res.Nodes)
	printCount(w, "Edges", res.Edges)

	if res.Diagnostics == nil || res.Diagnostics.Len() == 0 {
		return
	}
	counts := res.Diagnostics.Counts()
	for _, kind := range slices.Sorted(maps.Keys(counts)) {
		if kind == ingest.KindEmpty || kind == ingest.KindSkipped {
			continue
		}
		printWarning(w, "%d %s", counts[kind], kind)
	}
}
