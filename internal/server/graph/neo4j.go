package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Neo4jStore implements Store on top of Neo4j. Nodes are stored as
// :GraphNode and edges as :EDGE relationships; integer ids come from
// :IDSequence counter nodes so both backends hand out the same kind of id.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	emitter
}

var _ Store = (*Neo4jStore)(nil)

// Neo4jConfig holds Neo4j connection configuration
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
}

const (
	seqNodes = "nodes"
	seqEdges = "edges"
)

// NewNeo4j connects to Neo4j and ensures the indexes exist.
func NewNeo4j(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver: %w", err)
	}

	// Verify connectivity
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j: %w", err)
	}

	db := cfg.Database
	if db == "" {
		db = "neo4j"
	}
	s := &Neo4jStore{driver: driver, database: db}
	if err := s.ensureIndexes(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

func (s *Neo4jStore) ensureIndexes(ctx context.Context) error {
	stmts := []string{
		`CREATE INDEX graph_node_id IF NOT EXISTS FOR (n:GraphNode) ON (n.id)`,
		`CREATE INDEX graph_node_type IF NOT EXISTS FOR (n:GraphNode) ON (n.type)`,
		`CREATE INDEX graph_node_external_id IF NOT EXISTS FOR (n:GraphNode) ON (n.external_id)`,
	}
	session := s.session(ctx)
	defer session.Close(ctx)

	for _, stmt := range stmts {
		res, err := session.Run(ctx, stmt, nil)
		if err == nil {
			_, err = res.Consume(ctx)
		}
		if err != nil {
			return fmt.Errorf("creating index: %w", err)
		}
	}
	return nil
}

// Close closes the Neo4j connection
func (s *Neo4jStore) Close() error {
	return s.driver.Close(context.Background())
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Neo4jStore) write(ctx context.Context, fn neo4j.ManagedTransactionWork) (any, error) {
	session := s.session(ctx)
	defer session.Close(ctx)
	return session.ExecuteWrite(ctx, fn)
}

func (s *Neo4jStore) read(ctx context.Context, fn neo4j.ManagedTransactionWork) (any, error) {
	session := s.session(ctx)
	defer session.Close(ctx)
	return session.ExecuteRead(ctx, fn)
}

// Reset removes every node, edge and id sequence.
func (s *Neo4jStore) Reset(ctx context.Context) error {
	_, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (n:GraphNode) DETACH DELETE n`, nil); err != nil {
			return nil, err
		}
		_, err := tx.Run(ctx, `MATCH (s:IDSequence) DELETE s`, nil)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("resetting neo4j: %w", err)
	}
	return nil
}

func nextID(ctx context.Context, tx neo4j.ManagedTransaction, seq string) (int64, error) {
	query := `
		MERGE (s:IDSequence {name: $name})
		ON CREATE SET s.value = 0
		SET s.value = s.value + 1
		RETURN s.value AS id
	`
	result, err := tx.Run(ctx, query, map[string]any{"name": seq})
	if err != nil {
		return 0, err
	}
	record, err := result.Single(ctx)
	if err != nil {
		return 0, err
	}
	id, _ := record.Get("id")
	return id.(int64), nil
}

// InsertNode stores a new node and returns its id.
func (s *Neo4jStore) InsertNode(ctx context.Context, node Node) (int64, error) {
	details, err := node.Details.encode()
	if err != nil {
		return 0, err
	}

	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		id, err := nextID(ctx, tx, seqNodes)
		if err != nil {
			return nil, err
		}
		query := `
			CREATE (n:GraphNode {
				id: $id,
				name: $name,
				type: $type,
				details: $details,
				external_id: $external_id
			})
		`
		params := map[string]any{
			"id":          id,
			"name":        node.Name,
			"type":        string(node.Type),
			"details":     details,
			"external_id": nullable(node.ExternalID),
		}
		_, err = tx.Run(ctx, query, params)
		return id, err
	})
	if err != nil {
		return 0, fmt.Errorf("inserting node: %w", err)
	}

	id := result.(int64)
	s.emit(nodeEvent(EventNodeCreated, id, node.Type))
	return id, nil
}

// UpdateNode overwrites every property of an existing node.
func (s *Neo4jStore) UpdateNode(ctx context.Context, node Node) (bool, error) {
	details, err := node.Details.encode()
	if err != nil {
		return false, err
	}

	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n:GraphNode {id: $id})
			SET n.name = $name, n.type = $type, n.details = $details, n.external_id = $external_id
			RETURN count(n) AS c
		`
		params := map[string]any{
			"id":          node.ID,
			"name":        node.Name,
			"type":        string(node.Type),
			"details":     details,
			"external_id": nullable(node.ExternalID),
		}
		return singleCount(ctx, tx, query, params)
	})
	if err != nil {
		return false, fmt.Errorf("updating node: %w", err)
	}
	if result.(int64) == 0 {
		return false, nil
	}

	s.emit(nodeEvent(EventNodeUpdated, node.ID, node.Type))
	return true, nil
}

// GetNode retrieves a node by id
func (s *Neo4jStore) GetNode(ctx context.Context, id int64) (*Node, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:GraphNode {id: $id}) RETURN n`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		return recordNode(res.Record(), "n")
	})
	if err != nil {
		return nil, fmt.Errorf("getting node: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	return result.(*Node), nil
}

// FindNodes returns every node matching filter in id order.
func (s *Neo4jStore) FindNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	var where []string
	params := map[string]any{}

	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		where = append(where, "n.type IN $types")
		params["types"] = types
	}
	if filter.Name != "" {
		where = append(where, "n.name = $name")
		params["name"] = filter.Name
	}
	if filter.NameContains != "" {
		// Case-insensitive to match SQLite LIKE.
		where = append(where, "toLower(n.name) CONTAINS toLower($contains)")
		params["contains"] = filter.NameContains
	}
	if filter.ExternalID != "" {
		where = append(where, "n.external_id = $external_id")
		params["external_id"] = filter.ExternalID
	}

	query := `MATCH (n:GraphNode)`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " RETURN n ORDER BY n.id"

	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		var nodes []*Node
		for res.Next(ctx) {
			n, err := recordNode(res.Record(), "n")
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, n)
		}
		return nodes, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("finding nodes: %w", err)
	}
	return result.([]*Node), nil
}

// DeleteNode removes a node together with every edge that touches it.
func (s *Neo4jStore) DeleteNode(ctx context.Context, id int64) (bool, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:GraphNode {id: $id}) RETURN n.type AS type`, map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		t, _ := res.Record().Get("type")
		if _, err := tx.Run(ctx, `MATCH (n:GraphNode {id: $id}) DETACH DELETE n`, map[string]any{"id": id}); err != nil {
			return nil, err
		}
		return NodeType(t.(string)), nil
	})
	if err != nil {
		return false, fmt.Errorf("deleting node: %w", err)
	}
	if result == nil {
		return false, nil
	}

	s.emit(nodeEvent(EventNodeDeleted, id, result.(NodeType)))
	return true, nil
}

func checkEndpointsNeo4j(ctx context.Context, tx neo4j.ManagedTransaction, edge Edge) error {
	for _, id := range []int64{edge.FromID, edge.ToID} {
		n, err := singleCount(ctx, tx, `MATCH (n:GraphNode {id: $id}) RETURN count(n) AS c`, map[string]any{"id": id})
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%w: node %d", ErrDanglingEdge, id)
		}
	}
	return nil
}

const createEdgeQuery = `
	MATCH (a:GraphNode {id: $from})
	MATCH (b:GraphNode {id: $to})
	CREATE (a)-[:EDGE {id: $id, type: $type}]->(b)
`

// InsertEdge stores a new edge. Both endpoints must already exist.
func (s *Neo4jStore) InsertEdge(ctx context.Context, edge Edge) (int64, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := checkEndpointsNeo4j(ctx, tx, edge); err != nil {
			return nil, err
		}
		id, err := nextID(ctx, tx, seqEdges)
		if err != nil {
			return nil, err
		}
		params := map[string]any{
			"id":   id,
			"type": string(edge.Type),
			"from": edge.FromID,
			"to":   edge.ToID,
		}
		_, err = tx.Run(ctx, createEdgeQuery, params)
		return id, err
	})
	if err != nil {
		return 0, fmt.Errorf("inserting edge: %w", err)
	}

	edge.ID = result.(int64)
	s.emit(edgeEvent(EventEdgeCreated, edge))
	return edge.ID, nil
}

// UpdateEdge rewrites an existing edge. Relationships cannot change their
// endpoints in Neo4j, so the edge is recreated under the same id.
func (s *Neo4jStore) UpdateEdge(ctx context.Context, edge Edge) (bool, error) {
	result, err := s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if err := checkEndpointsNeo4j(ctx, tx, edge); err != nil {
			return nil, err
		}
		n, err := singleCount(ctx, tx,
			`MATCH ()-[r:EDGE {id: $id}]->() DELETE r RETURN count(r) AS c`,
			map[string]any{"id": edge.ID})
		if err != nil || n == 0 {
			return false, err
		}
		params := map[string]any{
			"id":   edge.ID,
			"type": string(edge.Type),
			"from": edge.FromID,
			"to":   edge.ToID,
		}
		_, err = tx.Run(ctx, createEdgeQuery, params)
		return true, err
	})
	if err != nil {
		return false, fmt.Errorf("updating edge: %w", err)
	}
	if !result.(bool) {
		return false, nil
	}

	s.emit(edgeEvent(EventEdgeUpdated, edge))
	return true, nil
}

const edgeReturn = `RETURN r.id AS id, r.type AS type, a.id AS from_id, b.id AS to_id`

// GetEdge retrieves an edge by id
func (s *Neo4jStore) GetEdge(ctx context.Context, id int64) (*Edge, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:GraphNode)-[r:EDGE {id: $id}]->(b:GraphNode) `+edgeReturn,
			map[string]any{"id": id})
		if err != nil {
			return nil, err
		}
		if !res.Next(ctx) {
			return nil, res.Err()
		}
		return recordEdge(res.Record())
	})
	if err != nil {
		return nil, fmt.Errorf("getting edge: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	return result.(*Edge), nil
}

// DeleteEdge removes an edge by id
func (s *Neo4jStore) DeleteEdge(ctx context.Context, id int64) (bool, error) {
	e, err := s.GetEdge(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	_, err = s.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `MATCH ()-[r:EDGE {id: $id}]->() DELETE r`, map[string]any{"id": id})
		return nil, err
	})
	if err != nil {
		return false, fmt.Errorf("deleting edge: %w", err)
	}

	s.emit(edgeEvent(EventEdgeDeleted, *e))
	return true, nil
}

// Edges returns every edge in id order.
func (s *Neo4jStore) Edges(ctx context.Context) ([]*Edge, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (a:GraphNode)-[r:EDGE]->(b:GraphNode) `+edgeReturn+` ORDER BY r.id`, nil)
		if err != nil {
			return nil, err
		}
		var edges []*Edge
		for res.Next(ctx) {
			e, err := recordEdge(res.Record())
			if err != nil {
				return nil, err
			}
			edges = append(edges, e)
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	return result.([]*Edge), nil
}

// Children returns the targets of every edge leaving nodeID.
func (s *Neo4jStore) Children(ctx context.Context, nodeID int64) ([]Neighbor, error) {
	return s.neighbors(ctx, `
		MATCH (:GraphNode {id: $id})-[r:EDGE]->(n:GraphNode)
		RETURN n, r.type AS edge_type, r.id AS edge_id
		ORDER BY n.id, r.id
	`, nodeID)
}

// Parents returns the sources of every edge entering nodeID.
func (s *Neo4jStore) Parents(ctx context.Context, nodeID int64) ([]Neighbor, error) {
	return s.neighbors(ctx, `
		MATCH (n:GraphNode)-[r:EDGE]->(:GraphNode {id: $id})
		RETURN n, r.type AS edge_type, r.id AS edge_id
		ORDER BY n.id, r.id
	`, nodeID)
}

func (s *Neo4jStore) neighbors(ctx context.Context, query string, nodeID int64) ([]Neighbor, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, map[string]any{"id": nodeID})
		if err != nil {
			return nil, err
		}
		var out []Neighbor
		for res.Next(ctx) {
			record := res.Record()
			n, err := recordNode(record, "n")
			if err != nil {
				return nil, err
			}
			edgeType, _ := record.Get("edge_type")
			edgeID, _ := record.Get("edge_id")
			et, err := ParseEdgeType(edgeType.(string))
			if err != nil {
				return nil, err
			}
			out = append(out, Neighbor{Node: n, EdgeType: et, EdgeID: edgeID.(int64)})
		}
		return out, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	return result.([]Neighbor), nil
}

// CountNodesByType returns the number of nodes per type.
func (s *Neo4jStore) CountNodesByType(ctx context.Context) (map[NodeType]int, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `MATCH (n:GraphNode) RETURN n.type AS type, count(n) AS c`, nil)
		if err != nil {
			return nil, err
		}
		counts := make(map[NodeType]int)
		for res.Next(ctx) {
			t, _ := res.Record().Get("type")
			c, _ := res.Record().Get("c")
			counts[NodeType(t.(string))] = int(c.(int64))
		}
		return counts, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}
	return result.(map[NodeType]int), nil
}

// CountEdges returns the total number of edges.
func (s *Neo4jStore) CountEdges(ctx context.Context) (int, error) {
	result, err := s.read(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return singleCount(ctx, tx, `MATCH ()-[r:EDGE]->() RETURN count(r) AS c`, nil)
	})
	if err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return int(result.(int64)), nil
}

// Helper functions

func singleCount(ctx context.Context, tx neo4j.ManagedTransaction, query string, params map[string]any) (int64, error) {
	res, err := tx.Run(ctx, query, params)
	if err != nil {
		return 0, err
	}
	record, err := res.Single(ctx)
	if err != nil {
		return 0, err
	}
	c, _ := record.Get("c")
	return c.(int64), nil
}

func recordNode(record *neo4j.Record, key string) (*Node, error) {
	value, ok := record.Get(key)
	if !ok {
		return nil, fmt.Errorf("record has no %q", key)
	}
	data := value.(neo4j.Node)

	n := &Node{
		ID:   data.Props["id"].(int64),
		Name: data.Props["name"].(string),
	}
	t, err := ParseNodeType(data.Props["type"].(string))
	if err != nil {
		return nil, err
	}
	n.Type = t

	details, _ := data.Props["details"].(string)
	if n.Details, err = decodeDetails(details); err != nil {
		return nil, err
	}
	if ext, ok := data.Props["external_id"].(string); ok {
		n.ExternalID = ext
	}
	return n, nil
}

func recordEdge(record *neo4j.Record) (*Edge, error) {
	id, _ := record.Get("id")
	typ, _ := record.Get("type")
	from, _ := record.Get("from_id")
	to, _ := record.Get("to_id")

	t, err := ParseEdgeType(typ.(string))
	if err != nil {
		return nil, err
	}
	return &Edge{ID: id.(int64), Type: t, FromID: from.(int64), ToID: to.(int64)}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
