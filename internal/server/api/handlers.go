package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/systemshift/ddrgraph/internal/render"
	"github.com/systemshift/ddrgraph/internal/server/graph"
)

// Server serves the read-only JSON API over a graph store.
type Server struct {
	store graph.Store
}

// New creates a new API server
func New(store graph.Store) *Server {
	return &Server{store: store}
}

// Routes registers the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", s.Stats)
		r.Get("/nodes", s.ListNodes)
		r.Get("/nodes/{id}", s.GetNode)
		r.Get("/nodes/{id}/children", s.GetChildren)
		r.Get("/nodes/{id}/parents", s.GetParents)
		r.Get("/nodes/{id}/graph.dot", s.GraphDOT)
		r.Get("/nodes/{id}/graph.svg", s.GraphSVG)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// writeError maps store errors onto status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, graph.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, graph.ErrInvalidType):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// nodeID parses the {id} URL parameter.
func nodeID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid node id %q", raw)
	}
	return id, nil
}

// Pagination bounds
const (
	defaultLimit = 100
	maxLimit     = 1000
)

// parsePagination extracts limit and offset from query parameters.
// A limit above maxLimit is clamped; values that are not integers are
// rejected.
func parsePagination(r *http.Request) (limit int, offset int, err error) {
	limit = defaultLimit
	offset = 0

	query := r.URL.Query()
	if l := query.Get("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil {
			return 0, 0, fmt.Errorf("invalid limit %q", l)
		}
	}
	if o := query.Get("offset"); o != "" {
		if offset, err = strconv.Atoi(o); err != nil {
			return 0, 0, fmt.Errorf("invalid offset %q", o)
		}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	limit = min(limit, maxLimit)
	if offset < 0 {
		offset = 0
	}

	return limit, offset, nil
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
	})
}

// ListNodes handles GET /api/nodes
// Supports ?q= for a name substring and ?type= (repeatable) to restrict types.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := graph.NodeFilter{NameContains: query.Get("q")}
	for _, raw := range query["type"] {
		t, err := graph.ParseNodeType(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		filter.Types = append(filter.Types, t)
	}
	limit, offset, err := parsePagination(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	nodes, err := s.store.FindNodes(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	total := len(nodes)
	page := []*graph.Node{}
	if offset < total {
		page = nodes[offset : offset+min(limit, total-offset)]
	}

	writeJSON(w, map[string]any{
		"nodes": page,
		"count": len(page),
		"total": total,
		"query": filter.NameContains,
	})
}

// GetNode handles GET /api/nodes/{id}
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	id, err := nodeID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	node, err := s.store.GetNode(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, node)
}

// GetChildren handles GET /api/nodes/{id}/children
func (s *Server) GetChildren(w http.ResponseWriter, r *http.Request) {
	s.neighbors(w, r, "children", s.store.Children)
}

// GetParents handles GET /api/nodes/{id}/parents
func (s *Server) GetParents(w http.ResponseWriter, r *http.Request) {
	s.neighbors(w, r, "parents", s.store.Parents)
}

type neighborFunc func(ctx context.Context, id int64) ([]graph.Neighbor, error)

func (s *Server) neighbors(w http.ResponseWriter, r *http.Request, key string, fetch neighborFunc) {
	id, err := nodeID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// An empty list is only meaningful for a node that exists.
	if _, err := s.store.GetNode(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	list, err := fetch(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []graph.Neighbor{}
	}

	writeJSON(w, map[string]any{
		"node_id": id,
		key:       list,
		"count":   len(list),
	})
}

func (s *Server) neighborhoodDOT(r *http.Request) (string, int, error) {
	id, err := nodeID(r)
	if err != nil {
		return "", http.StatusBadRequest, err
	}
	sg, err := render.Neighborhood(r.Context(), s.store, id)
	if errors.Is(err, graph.ErrNotFound) {
		return "", http.StatusNotFound, err
	}
	if err != nil {
		return "", http.StatusInternalServerError, err
	}
	return render.ToDOT(sg, render.Options{Highlight: id}), http.StatusOK, nil
}

// GraphDOT handles GET /api/nodes/{id}/graph.dot
func (s *Server) GraphDOT(w http.ResponseWriter, r *http.Request) {
	dot, status, err := s.neighborhoodDOT(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	w.Write([]byte(dot))
}

// GraphSVG handles GET /api/nodes/{id}/graph.svg
func (s *Server) GraphSVG(w http.ResponseWriter, r *http.Request) {
	dot, status, err := s.neighborhoodDOT(r)
	if err != nil {
		http.Error(w, err.Error(), status)
		return
	}
	svg, err := render.RenderSVG(r.Context(), dot)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Write(svg)
}

// StatsResponse reports node counts per type and the edge count.
type StatsResponse struct {
	Nodes      map[graph.NodeType]int `json:"nodes"`
	TotalNodes int                    `json:"total_nodes"`
	Edges      int                    `json:"edges"`
}

// Stats handles GET /api/stats
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.CountNodesByType(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	edges, err := s.store.CountEdges(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := StatsResponse{Nodes: counts, Edges: edges}
	for _, c := range counts {
		resp.TotalNodes += c
	}
	writeJSON(w, resp)
}
