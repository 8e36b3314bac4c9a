package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

type fixture struct {
	router    http.Handler
	customers *graph.Node
	name      *graph.Node
	email     *graph.Node
}

// Helper to create a test server over a small graph
func setupTestServer(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()

	store, err := graph.NewSQLite(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	f := fixture{
		customers: graph.NewNode("Customers", graph.NodeBaseTable, graph.Details{"@id": "7"}, "7"),
		name:      graph.NewNode("Name", graph.NodeField, nil, "10"),
		email:     graph.NewNode("Email", graph.NodeField, nil, "11"),
	}
	_, err = graph.Link(ctx, store, f.customers, f.name, graph.EdgeContains)
	require.NoError(t, err)
	_, err = graph.Link(ctx, store, f.customers, f.email, graph.EdgeContains)
	require.NoError(t, err)

	r := chi.NewRouter()
	New(store).Routes(r)
	f.router = r
	return f
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealthCheck(t *testing.T) {
	f := setupTestServer(t)
	w := get(t, f.router, "/health")

	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	decode(t, w, &resp)
	assert.Equal(t, "ok", resp["status"])
}

func TestListNodes(t *testing.T) {
	f := setupTestServer(t)

	type listResponse struct {
		Nodes []graph.Node `json:"nodes"`
		Count int          `json:"count"`
		Total int          `json:"total"`
	}

	tests := []struct {
		name       string
		path       string
		wantStatus int
		wantNames  []string
	}{
		{"all", "/api/nodes", http.StatusOK, []string{"Customers", "Name", "Email"}},
		{"substring", "/api/nodes?q=mai", http.StatusOK, []string{"Email"}},
		{"by type", "/api/nodes?type=Field", http.StatusOK, []string{"Name", "Email"}},
		{"two types", "/api/nodes?type=Field&type=BaseTable", http.StatusOK, []string{"Customers", "Name", "Email"}},
		{"paged", "/api/nodes?limit=1&offset=1", http.StatusOK, []string{"Name"}},
		{"past the end", "/api/nodes?offset=10", http.StatusOK, nil},
		{"huge limit", "/api/nodes?offset=1&limit=9223372036854775807", http.StatusOK, []string{"Name", "Email"}},
		{"huge offset", "/api/nodes?offset=9223372036854775807&limit=5", http.StatusOK, nil},
		{"bad limit", "/api/nodes?limit=ten", http.StatusBadRequest, nil},
		{"bad offset", "/api/nodes?offset=1.5", http.StatusBadRequest, nil},
		{"bad type", "/api/nodes?type=Widget", http.StatusBadRequest, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := get(t, f.router, tt.path)
			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantStatus != http.StatusOK {
				return
			}

			var resp listResponse
			decode(t, w, &resp)
			var names []string
			for _, n := range resp.Nodes {
				names = append(names, n.Name)
			}
			assert.Equal(t, tt.wantNames, names)
			assert.Equal(t, len(tt.wantNames), resp.Count)
		})
	}
}

func TestGetNode(t *testing.T) {
	f := setupTestServer(t)

	w := get(t, f.router, "/api/nodes/1")
	require.Equal(t, http.StatusOK, w.Code)
	var node graph.Node
	decode(t, w, &node)
	assert.Equal(t, "Customers", node.Name)
	assert.Equal(t, graph.NodeBaseTable, node.Type)
	assert.Equal(t, "7", node.ExternalID)
	assert.Equal(t, "7", node.Details["@id"])

	assert.Equal(t, http.StatusNotFound, get(t, f.router, "/api/nodes/999").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, f.router, "/api/nodes/abc").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, f.router, "/api/nodes/0").Code)
}

func TestChildrenAndParents(t *testing.T) {
	f := setupTestServer(t)

	var children struct {
		NodeID   int64            `json:"node_id"`
		Children []graph.Neighbor `json:"children"`
		Count    int              `json:"count"`
	}
	w := get(t, f.router, "/api/nodes/1/children")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &children)
	require.Equal(t, 2, children.Count)
	assert.Equal(t, "Name", children.Children[0].Node.Name)
	assert.Equal(t, graph.EdgeContains, children.Children[0].EdgeType)
	assert.NotZero(t, children.Children[0].EdgeID)

	var parents struct {
		Parents []graph.Neighbor `json:"parents"`
	}
	w = get(t, f.router, "/api/nodes/3/parents")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &parents)
	require.Len(t, parents.Parents, 1)
	assert.Equal(t, f.customers.ID, parents.Parents[0].Node.ID)

	// A leaf has an empty list, not null.
	w = get(t, f.router, "/api/nodes/3/children")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"children":[]`)

	assert.Equal(t, http.StatusNotFound, get(t, f.router, "/api/nodes/999/children").Code)
	assert.Equal(t, http.StatusBadRequest, get(t, f.router, "/api/nodes/x/parents").Code)
}

func TestGraphDOT(t *testing.T) {
	f := setupTestServer(t)

	w := get(t, f.router, "/api/nodes/1/graph.dot")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/vnd.graphviz"))
	body := w.Body.String()
	assert.Contains(t, body, "n1 -> n2")
	assert.Contains(t, body, "n1 -> n3")
	assert.Contains(t, body, "penwidth=3")

	assert.Equal(t, http.StatusNotFound, get(t, f.router, "/api/nodes/999/graph.dot").Code)
}

func TestStats(t *testing.T) {
	f := setupTestServer(t)

	w := get(t, f.router, "/api/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	decode(t, w, &resp)
	assert.Equal(t, map[graph.NodeType]int{graph.NodeBaseTable: 1, graph.NodeField: 2}, resp.Nodes)
	assert.Equal(t, 3, resp.TotalNodes)
	assert.Equal(t, 2, resp.Edges)
}

func TestStoreFailureIs500(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	mock.ExpectQuery("SELECT id, name, type, details, external_id FROM nodes").
		WillReturnError(errors.New("database is locked"))

	r := chi.NewRouter()
	New(graph.NewSQLiteFromDB(db)).Routes(r)

	w := get(t, r, "/api/nodes/5")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "database is locked")
}
