package handlers

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/systemshift/ddrgraph/internal/server/graph"
)

//go:embed templates/*.html
var templateFS embed.FS

// Handler serves the HTML browser over a graph store.
type Handler struct {
	store     graph.Store
	templates *template.Template
}

// New creates a new Handler instance
func New(store graph.Store) (*Handler, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	return &Handler{
		store:     store,
		templates: tmpl,
	}, nil
}

// Routes registers the HTML pages on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.HandleIndex)
	r.Get("/node/{id}", h.HandleShow)
}

// Group is one node type and its nodes on the index page.
type Group struct {
	Type  graph.NodeType
	Nodes []*graph.Node
}

// groupByType buckets nodes in NodeTypes order, dropping empty groups.
func groupByType(nodes []*graph.Node) []Group {
	byType := make(map[graph.NodeType][]*graph.Node)
	for _, n := range nodes {
		byType[n.Type] = append(byType[n.Type], n)
	}

	var groups []Group
	for _, t := range graph.NodeTypes {
		if len(byType[t]) > 0 {
			groups = append(groups, Group{Type: t, Nodes: byType[t]})
		}
	}
	return groups
}

func (h *Handler) render(w http.ResponseWriter, name string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.templates.ExecuteTemplate(w, name, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// HandleIndex handles the home page. ?q= narrows it to names containing q.
func (h *Handler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")

	nodes, err := h.store.FindNodes(r.Context(), graph.NodeFilter{NameContains: query})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.render(w, "index.html", map[string]any{
		"Title":  "Nodes",
		"Query":  query,
		"Count":  len(nodes),
		"Groups": groupByType(nodes),
	})
}

// HandleShow displays a node with its details and neighbors
func (h *Handler) HandleShow(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "invalid node id", http.StatusBadRequest)
		return
	}

	node, err := h.store.GetNode(r.Context(), id)
	if errors.Is(err, graph.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	parents, err := h.store.Parents(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	children, err := h.store.Children(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	details, err := json.MarshalIndent(node.Details, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.render(w, "node.html", map[string]any{
		"Title":    node.Name,
		"Query":    "",
		"Node":     node,
		"Details":  string(details),
		"Parents":  parents,
		"Children": children,
	})
}
