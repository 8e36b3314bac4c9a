package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/systemshift/ddrgraph/internal/document"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

func newStore(t *testing.T) *graph.SQLiteStore {
	t.Helper()
	s, err := graph.NewSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func loadReport(t *testing.T) *document.Document {
	t.Helper()
	doc, err := document.DecodeXMLFile("testdata/report.xml")
	require.NoError(t, err)
	return doc
}

// section decodes a single section element.
func section(t *testing.T, xml string) document.Tree {
	t.Helper()
	doc, err := document.DecodeXML(strings.NewReader("<Report><Structure>" + xml + "</Structure></Report>"))
	require.NoError(t, err)
	require.Len(t, doc.Sections, 1)
	return doc.Sections[0].Tree
}

// transform runs tr over the section in xml against s.
func transform(t *testing.T, s graph.Store, tr Transformer, xml string) *Diagnostics {
	t.Helper()
	diag := NewDiagnostics(nil)
	diag.enter(tr.Kind())
	err := tr.Transform(context.Background(), section(t, xml), s, graph.NewResolver(s), diag)
	require.NoError(t, err)
	return diag
}

func nodesOfType(t *testing.T, s graph.Store, nt graph.NodeType) []*graph.Node {
	t.Helper()
	nodes, err := s.FindNodes(context.Background(), graph.NodeFilter{Types: []graph.NodeType{nt}})
	require.NoError(t, err)
	return nodes
}

func nodeNamed(t *testing.T, s graph.Store, nt graph.NodeType, name string) *graph.Node {
	t.Helper()
	nodes, err := s.FindNodes(context.Background(), graph.NodeFilter{Types: []graph.NodeType{nt}, Name: name})
	require.NoError(t, err)
	require.Len(t, nodes, 1, "%s %q", nt, name)
	return nodes[0]
}

func edgesOfType(t *testing.T, s graph.Store, et graph.EdgeType) []*graph.Edge {
	t.Helper()
	all, err := s.Edges(context.Background())
	require.NoError(t, err)
	var out []*graph.Edge
	for _, e := range all {
		if e.Type == et {
			out = append(out, e)
		}
	}
	return out
}

// childNames returns "EdgeType:name" for each child of id.
func childNames(t *testing.T, s graph.Store, id int64) []string {
	t.Helper()
	children, err := s.Children(context.Background(), id)
	require.NoError(t, err)
	var out []string
	for _, c := range children {
		out = append(out, string(c.EdgeType)+":"+c.Node.Name)
	}
	return out
}

const customersCatalog = `
<BaseTableCatalog>
  <BaseTable id="7" name="Customers">
    <FieldCatalog>
      <Field id="10" name="Name"/>
      <Field id="11" name="Email"/>
    </FieldCatalog>
  </BaseTable>
</BaseTableCatalog>`
