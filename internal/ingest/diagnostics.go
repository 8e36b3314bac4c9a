package ingest

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"
)

// Kind classifies a non-fatal problem found while transforming a section.
type Kind string

// Diagnostic kinds
const (
	// KindUnresolved: a reference to a node that does not exist.
	KindUnresolved Kind = "unresolved"
	// KindMalformed: an element missing keys it needs.
	KindMalformed Kind = "malformed"
	// KindAmbiguous: a reference matched more than one node.
	KindAmbiguous Kind = "ambiguous"
	// KindEmpty: an element with nothing to attach, such as a table
	// without fields.
	KindEmpty Kind = "empty"
	// KindSkipped: a section that was not transformed.
	KindSkipped Kind = "skipped"
)

// Diagnostic is one recorded problem.
type Diagnostic struct {
	Section string `json:"section" yaml:"section"`
	Kind    Kind   `json:"kind" yaml:"kind"`
	Message string `json:"message" yaml:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("[%s] %s: %s", d.Kind, d.Section, d.Message)
}

// Diagnostics collects the problems of one ingest run and logs each as it
// is recorded. The zero value discards log output.
type Diagnostics struct {
	logger  *log.Logger
	section string
	items   []Diagnostic
}

// NewDiagnostics returns a collector logging to logger.
func NewDiagnostics(logger *log.Logger) *Diagnostics {
	return &Diagnostics{logger: logger}
}

func (d *Diagnostics) log() *log.Logger {
	if d.logger == nil {
		d.logger = log.New(io.Discard)
	}
	return d.logger
}

// enter sets the section attributed to later records.
func (d *Diagnostics) enter(section string) {
	d.section = section
}

// Add records a diagnostic for the current section.
func (d *Diagnostics) Add(kind Kind, format string, args ...any) {
	item := Diagnostic{Section: d.section, Kind: kind, Message: fmt.Sprintf(format, args...)}
	d.items = append(d.items, item)

	if kind == KindEmpty {
		d.log().Info(item.Message, "section", item.Section, "kind", item.Kind)
		return
	}
	d.log().Warn(item.Message, "section", item.Section, "kind", item.Kind)
}

// Items returns every recorded diagnostic in order.
func (d *Diagnostics) Items() []Diagnostic {
	return d.items
}

// Count returns how many diagnostics of kind were recorded.
func (d *Diagnostics) Count(kind Kind) int {
	n := 0
	for _, item := range d.items {
		if item.Kind == kind {
			n++
		}
	}
	return n
}

// Counts returns the number of diagnostics per kind.
func (d *Diagnostics) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, item := range d.items {
		counts[item.Kind]++
	}
	return counts
}

// Len returns the number of recorded diagnostics.
func (d *Diagnostics) Len() int { return len(d.items) }
