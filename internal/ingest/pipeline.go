package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// ErrUnknownSection is returned when a section has no transformer and the
// run is set to abort on unknown sections.
var ErrUnknownSection = errors.New("no transformer for section")

// UnknownPolicy decides what happens to a section kind without a
// transformer.
type UnknownPolicy int

const (
	// UnknownAbort stops the run: the document does not look like what
	// the registry expects.
	UnknownAbort UnknownPolicy = iota
	// UnknownSkip records the section as skipped and carries on.
	UnknownSkip
)

// ParseUnknownPolicy reads "abort" or "skip". The empty string is abort.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch s {
	case "", "abort":
		return UnknownAbort, nil
	case "skip":
		return UnknownSkip, nil
	default:
		return UnknownAbort, fmt.Errorf("unknown section policy %q (want abort or skip)", s)
	}
}

func (p UnknownPolicy) String() string {
	if p == UnknownSkip {
		return "skip"
	}
	return "abort"
}

// Options controls one run.
type Options struct {
	// Reset empties the store before the first section.
	Reset bool
	// Skip lists section kinds to leave alone. Without Reset this re-runs
	// the remaining sections on top of a store that already holds the
	// skipped ones; nothing checks that it really does.
	Skip []string
	// Unknown is applied to sections without a transformer.
	Unknown UnknownPolicy
}

// DefaultOptions is a full rebuild that aborts on unknown sections.
func DefaultOptions() Options {
	return Options{Reset: true}
}

// SectionResult describes what one section contributed.
type SectionResult struct {
	Kind         string        `json:"kind" yaml:"kind"`
	NodesCreated int           `json:"nodes_created" yaml:"nodes_created"`
	EdgesCreated int           `json:"edges_created" yaml:"edges_created"`
	Duration     time.Duration `json:"duration" yaml:"duration"`
	Skipped      bool          `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Result summarizes a run.
type Result struct {
	Sections    []SectionResult `json:"sections" yaml:"sections"`
	Nodes       int             `json:"nodes" yaml:"nodes"`
	Edges       int             `json:"edges" yaml:"edges"`
	Duration    time.Duration   `json:"duration" yaml:"duration"`
	Diagnostics *Diagnostics    `json:"-" yaml:"-"`
}

// Pipeline runs a document through the registered transformers.
//
// Run installs its own event emitter on Store for the duration of the run
// to count what each section created. Events are forwarded to the emitter
// the store had before the run and to OnEvent, and the previous emitter
// is put back when Run returns.
type Pipeline struct {
	Store    graph.Store
	Registry *Registry
	Logger   *log.Logger
	OnEvent  func(graph.Event)
}

// NewPipeline returns a pipeline over store. A nil registry means
// DefaultRegistry and a nil logger discards output.
func NewPipeline(store graph.Store, registry *Registry, logger *log.Logger) *Pipeline {
	if registry == nil {
		registry = DefaultRegistry()
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Pipeline{Store: store, Registry: registry, Logger: logger}
}

// counter tallies store events for the section being processed.
type counter struct {
	nodes, edges int
	forward      []func(graph.Event)
}

func (c *counter) observe(e graph.Event) {
	switch e.Type {
	case graph.EventNodeCreated:
		c.nodes++
	case graph.EventEdgeCreated:
		c.edges++
	}
	for _, fn := range c.forward {
		fn(e)
	}
}

// Run ingests doc. Sections run one at a time in document order so each
// sees everything committed before it. The returned Result is filled in
// up to the point of failure even when err is non-nil.
func (p *Pipeline) Run(ctx context.Context, doc *document.Document, opts Options) (*Result, error) {
	start := time.Now()
	diag := NewDiagnostics(p.Logger)
	res := &Result{Diagnostics: diag}
	defer func() { res.Duration = time.Since(start) }()

	if opts.Reset {
		if err := p.Store.Reset(ctx); err != nil {
			return res, fmt.Errorf("resetting store: %w", err)
		}
		p.Logger.Debug("store reset")
	}

	prev := p.Store.EventEmitter()
	c := &counter{}
	for _, fn := range []func(graph.Event){prev, p.OnEvent} {
		if fn != nil {
			c.forward = append(c.forward, fn)
		}
	}
	p.Store.SetEventEmitter(c.observe)
	defer p.Store.SetEventEmitter(prev)

	resolver := graph.NewResolver(p.Store)

	for _, section := range doc.Sections {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		diag.enter(section.Kind)

		if slices.Contains(opts.Skip, section.Kind) {
			diag.Add(KindSkipped, "skipped on request")
			res.Sections = append(res.Sections, SectionResult{Kind: section.Kind, Skipped: true})
			continue
		}

		t, ok := p.Registry.Lookup(section.Kind)
		if !ok {
			if opts.Unknown == UnknownAbort {
				p.Logger.Error("unknown section, aborting", "section", section.Kind)
				return res, fmt.Errorf("%w: %s", ErrUnknownSection, section.Kind)
			}
			diag.Add(KindSkipped, "no transformer for this section kind")
			res.Sections = append(res.Sections, SectionResult{Kind: section.Kind, Skipped: true})
			continue
		}

		p.Logger.Info("processing section", "section", section.Kind)
		c.nodes, c.edges = 0, 0
		sectionStart := time.Now()

		err := t.Transform(ctx, section.Tree, p.Store, resolver, diag)
		sr := SectionResult{
			Kind:         section.Kind,
			NodesCreated: c.nodes,
			EdgesCreated: c.edges,
			Duration:     time.Since(sectionStart),
		}
		res.Sections = append(res.Sections, sr)
		res.Nodes += sr.NodesCreated
		res.Edges += sr.EdgesCreated
		if err != nil {
			return res, fmt.Errorf("section %s: %w", section.Kind, err)
		}

		p.Logger.Debug("section done",
			"section", section.Kind,
			"nodes", sr.NodesCreated,
			"edges", sr.EdgesCreated,
			"duration", sr.Duration)
	}

	p.Logger.Info("ingest complete",
		"nodes", res.Nodes,
		"edges", res.Edges,
		"diagnostics", diag.Len())
	return res, nil
}
