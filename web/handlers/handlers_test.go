package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

func setup(t *testing.T) http.Handler {
	t.Helper()
	ctx := context.Background()

	store, err := graph.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	orders := graph.NewNode("Orders", graph.NodeBaseTable, graph.Details{"@id": "8", "@records": "12"}, "8")
	total := graph.NewNode("Total", graph.NodeField, nil, "22")
	layout := graph.NewNode("Order Entry", graph.NodeLayout, nil, "3")
	_, err = graph.Link(ctx, store, orders, total, graph.EdgeContains)
	require.NoError(t, err)
	_, err = graph.Link(ctx, store, orders, layout, graph.EdgeUsedBy)
	require.NoError(t, err)

	h, err := New(store)
	require.NoError(t, err)
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func get(h http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
	return w
}

func TestIndexGroupsByType(t *testing.T) {
	w := get(setup(t), "/")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	body := w.Body.String()
	assert.Contains(t, body, "3 nodes")
	base := strings.Index(body, "<h2>BaseTable")
	field := strings.Index(body, "<h2>Field")
	layout := strings.Index(body, "<h2>Layout")
	require.True(t, base >= 0 && field >= 0 && layout >= 0, body)
	assert.Less(t, base, field)
	assert.Less(t, field, layout)
	assert.Contains(t, body, `<a href="/node/1">Orders</a>`)
	assert.NotContains(t, body, "<h2>Relationship")
}

func TestIndexSearch(t *testing.T) {
	w := get(setup(t), "/?q=tot")
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `1 nodes matching "tot"`)
	assert.Contains(t, body, ">Total</a>")
	assert.NotContains(t, body, ">Orders</a>")
}

func TestShowNode(t *testing.T) {
	h := setup(t)

	w := get(h, "/node/1")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Orders")
	assert.Contains(t, body, "&#34;@records&#34;: &#34;12&#34;")
	assert.Contains(t, body, `Contains <span class="type">edge 1</span> to <a href="/node/2">Total</a>`)
	assert.Contains(t, body, `UsedBy <span class="type">edge 2</span> to <a href="/node/3">Order Entry</a>`)

	w = get(h, "/node/2")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `Contains <span class="type">edge 1</span> from <a href="/node/1">Orders</a>`)
}

func TestShowNodeErrors(t *testing.T) {
	h := setup(t)
	assert.Equal(t, http.StatusNotFound, get(h, "/node/42").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/node/orders").Code)
}

func TestGroupByType(t *testing.T) {
	groups := groupByType([]*graph.Node{
		{ID: 1, Name: "l", Type: graph.NodeLayout},
		{ID: 2, Name: "b", Type: graph.NodeBaseTable},
		{ID: 3, Name: "u", Type: graph.NodeUnknown},
		{ID: 4, Name: "b2", Type: graph.NodeBaseTable},
	})

	require.Len(t, groups, 3)
	assert.Equal(t, graph.NodeBaseTable, groups[0].Type)
	assert.Len(t, groups[0].Nodes, 2)
	assert.Equal(t, graph.NodeLayout, groups[1].Type)
	assert.Equal(t, graph.NodeUnknown, groups[2].Type)
}
