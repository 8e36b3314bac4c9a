package graph

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db *sql.DB
	emitter
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (or creates) the database at dbPath and ensures the
// schema exists. Use ":memory:" for a throwaway store.
func NewSQLite(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One writer, and an in-memory database only exists on its own connection.
	db.SetMaxOpenConns(1)

	// Verify connectivity
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to sqlite: %w", err)
	}

	for _, pragma := range allPragmas() {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	s := NewSQLiteFromDB(db)
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteFromDB wraps an open database whose schema is already in place.
func NewSQLiteFromDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) createSchema(ctx context.Context) error {
	for _, stmt := range allSchemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// Close closes the SQLite connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Reset drops every node and edge and recreates empty tables.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	for _, stmt := range dropStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("dropping schema: %w", err)
		}
	}
	return s.createSchema(ctx)
}

// InsertNode stores a new node and returns its id. node.ID is ignored.
func (s *SQLiteStore) InsertNode(ctx context.Context, node Node) (int64, error) {
	details, err := node.Details.encode()
	if err != nil {
		return 0, err
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO nodes (name, type, details, external_id) VALUES (?, ?, ?, ?)`,
		node.Name, string(node.Type), details, nullString(node.ExternalID),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting node: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading node id: %w", err)
	}

	s.emit(nodeEvent(EventNodeCreated, id, node.Type))
	return id, nil
}

// UpdateNode overwrites every column of an existing node.
func (s *SQLiteStore) UpdateNode(ctx context.Context, node Node) (bool, error) {
	details, err := node.Details.encode()
	if err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE nodes SET name = ?, type = ?, details = ?, external_id = ? WHERE id = ?`,
		node.Name, string(node.Type), details, nullString(node.ExternalID), node.ID,
	)
	if err != nil {
		return false, fmt.Errorf("updating node: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating node: %w", err)
	}
	if n == 0 {
		return false, nil
	}

	s.emit(nodeEvent(EventNodeUpdated, node.ID, node.Type))
	return true, nil
}

// GetNode retrieves a node by id
func (s *SQLiteStore) GetNode(ctx context.Context, id int64) (*Node, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, type, details, external_id FROM nodes WHERE id = ?`, id)

	n, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("node %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return n, nil
}

// FindNodes returns every node matching filter in id order.
func (s *SQLiteStore) FindNodes(ctx context.Context, filter NodeFilter) ([]*Node, error) {
	var (
		where []string
		args  []any
	)

	if len(filter.Types) > 0 {
		placeholders := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			placeholders[i] = "?"
			args = append(args, string(t))
		}
		where = append(where, "type IN ("+strings.Join(placeholders, ", ")+")")
	}
	if filter.Name != "" {
		where = append(where, "name = ?")
		args = append(args, filter.Name)
	}
	if filter.NameContains != "" {
		where = append(where, `name LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(filter.NameContains)+"%")
	}
	if filter.ExternalID != "" {
		where = append(where, "external_id = ?")
		args = append(args, filter.ExternalID)
	}

	query := `SELECT id, name, type, details, external_id FROM nodes`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("finding nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*Node
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// DeleteNode removes a node together with every edge that touches it.
func (s *SQLiteStore) DeleteNode(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning delete: %w", err)
	}
	defer tx.Rollback()

	var nt string
	err = tx.QueryRowContext(ctx, `SELECT type FROM nodes WHERE id = ?`, id).Scan(&nt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("deleting node: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM edges WHERE from_id = ? OR to_id = ?`, id, id); err != nil {
		return false, fmt.Errorf("deleting incident edges: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting node: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}

	s.emit(nodeEvent(EventNodeDeleted, id, NodeType(nt)))
	return true, nil
}

// InsertEdge stores a new edge. Both endpoints must already exist.
func (s *SQLiteStore) InsertEdge(ctx context.Context, edge Edge) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning edge insert: %w", err)
	}
	defer tx.Rollback()

	if err := checkEndpoints(ctx, tx, edge); err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO edges (type, from_id, to_id) VALUES (?, ?, ?)`,
		string(edge.Type), edge.FromID, edge.ToID,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting edge: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading edge id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing edge insert: %w", err)
	}

	edge.ID = id
	s.emit(edgeEvent(EventEdgeCreated, edge))
	return id, nil
}

// UpdateEdge overwrites an existing edge.
func (s *SQLiteStore) UpdateEdge(ctx context.Context, edge Edge) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning edge update: %w", err)
	}
	defer tx.Rollback()

	if err := checkEndpoints(ctx, tx, edge); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE edges SET type = ?, from_id = ?, to_id = ? WHERE id = ?`,
		string(edge.Type), edge.FromID, edge.ToID, edge.ID,
	)
	if err != nil {
		return false, fmt.Errorf("updating edge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("updating edge: %w", err)
	}
	if n == 0 {
		return false, nil
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing edge update: %w", err)
	}

	s.emit(edgeEvent(EventEdgeUpdated, edge))
	return true, nil
}

// GetEdge retrieves an edge by id
func (s *SQLiteStore) GetEdge(ctx context.Context, id int64) (*Edge, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, type, from_id, to_id FROM edges WHERE id = ?`, id)
	e, err := scanEdge(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("edge %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// DeleteEdge removes an edge by id
func (s *SQLiteStore) DeleteEdge(ctx context.Context, id int64) (bool, error) {
	e, err := s.GetEdge(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM edges WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("deleting edge: %w", err)
	}

	s.emit(edgeEvent(EventEdgeDeleted, *e))
	return true, nil
}

// Edges returns every edge in id order.
func (s *SQLiteStore) Edges(ctx context.Context) ([]*Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, type, from_id, to_id FROM edges ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing edges: %w", err)
	}
	defer rows.Close()

	var edges []*Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Children returns the targets of every edge leaving nodeID.
func (s *SQLiteStore) Children(ctx context.Context, nodeID int64) ([]Neighbor, error) {
	query := `
		SELECT n.id, n.name, n.type, n.details, n.external_id, e.type, e.id
		FROM edges e
		JOIN nodes n ON n.id = e.to_id
		WHERE e.from_id = ?
		ORDER BY n.id, e.id
	`
	return s.neighbors(ctx, query, nodeID)
}

// Parents returns the sources of every edge entering nodeID.
func (s *SQLiteStore) Parents(ctx context.Context, nodeID int64) ([]Neighbor, error) {
	query := `
		SELECT n.id, n.name, n.type, n.details, n.external_id, e.type, e.id
		FROM edges e
		JOIN nodes n ON n.id = e.from_id
		WHERE e.to_id = ?
		ORDER BY n.id, e.id
	`
	return s.neighbors(ctx, query, nodeID)
}

func (s *SQLiteStore) neighbors(ctx context.Context, query string, nodeID int64) ([]Neighbor, error) {
	rows, err := s.db.QueryContext(ctx, query, nodeID)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors: %w", err)
	}
	defer rows.Close()

	var out []Neighbor
	for rows.Next() {
		var (
			n                  Node
			nodeType, edgeType string
			details            string
			externalID         sql.NullString
			edgeID             int64
		)
		if err := rows.Scan(&n.ID, &n.Name, &nodeType, &details, &externalID, &edgeType, &edgeID); err != nil {
			return nil, fmt.Errorf("scanning neighbor: %w", err)
		}
		if err := fillNode(&n, nodeType, details, externalID); err != nil {
			return nil, err
		}
		et, err := ParseEdgeType(edgeType)
		if err != nil {
			return nil, err
		}
		out = append(out, Neighbor{Node: &n, EdgeType: et, EdgeID: edgeID})
	}
	return out, rows.Err()
}

// CountNodesByType returns the number of nodes per type.
func (s *SQLiteStore) CountNodesByType(ctx context.Context) (map[NodeType]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT type, COUNT(*) FROM nodes GROUP BY type`)
	if err != nil {
		return nil, fmt.Errorf("counting nodes: %w", err)
	}
	defer rows.Close()

	counts := make(map[NodeType]int)
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return nil, fmt.Errorf("counting nodes: %w", err)
		}
		counts[NodeType(t)] = c
	}
	return counts, rows.Err()
}

// CountEdges returns the total number of edges.
func (s *SQLiteStore) CountEdges(ctx context.Context) (int, error) {
	var c int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&c); err != nil {
		return 0, fmt.Errorf("counting edges: %w", err)
	}
	return c, nil
}

// Helper functions

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(row scanner) (*Node, error) {
	var (
		n          Node
		nodeType   string
		details    string
		externalID sql.NullString
	)
	if err := row.Scan(&n.ID, &n.Name, &nodeType, &details, &externalID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning node: %w", err)
	}
	if err := fillNode(&n, nodeType, details, externalID); err != nil {
		return nil, err
	}
	return &n, nil
}

func fillNode(n *Node, nodeType, details string, externalID sql.NullString) error {
	t, err := ParseNodeType(nodeType)
	if err != nil {
		return err
	}
	d, err := decodeDetails(details)
	if err != nil {
		return fmt.Errorf("node %d: %w", n.ID, err)
	}
	n.Type = t
	n.Details = d
	if externalID.Valid {
		n.ExternalID = externalID.String
	}
	return nil
}

func scanEdge(row scanner) (*Edge, error) {
	var (
		e        Edge
		edgeType string
	)
	if err := row.Scan(&e.ID, &edgeType, &e.FromID, &e.ToID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning edge: %w", err)
	}
	t, err := ParseEdgeType(edgeType)
	if err != nil {
		return nil, err
	}
	e.Type = t
	return &e, nil
}

func checkEndpoints(ctx context.Context, tx *sql.Tx, edge Edge) error {
	for _, id := range []int64{edge.FromID, edge.ToID} {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE id = ?`, id).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: node %d", ErrDanglingEdge, id)
		}
		if err != nil {
			return fmt.Errorf("checking edge endpoint: %w", err)
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
