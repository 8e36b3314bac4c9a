package graph

// SQLite schema DDL constants

const schemaNodes = `
CREATE TABLE IF NOT EXISTS nodes (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '{}',
    external_id TEXT
)`

// No UNIQUE(from_id, to_id): parallel edges of the same type are allowed.
const schemaEdges = `
CREATE TABLE IF NOT EXISTS edges (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    type TEXT NOT NULL,
    from_id INTEGER NOT NULL REFERENCES nodes(id),
    to_id INTEGER NOT NULL REFERENCES nodes(id)
)`

// Index definitions
const indexNodesType = `CREATE INDEX IF NOT EXISTS idx_nodes_type ON nodes(type)`
const indexNodesExternalID = `CREATE INDEX IF NOT EXISTS idx_nodes_external_id ON nodes(external_id)`
const indexNodesName = `CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(type, name)`
const indexEdgesFrom = `CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_id)`
const indexEdgesTo = `CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_id)`

const dropEdges = `DROP TABLE IF EXISTS edges`
const dropNodes = `DROP TABLE IF EXISTS nodes`

// SQLite pragmas
const pragmaWAL = `PRAGMA journal_mode=WAL`
const pragmaFK = `PRAGMA foreign_keys=ON`
const pragmaBusyTimeout = `PRAGMA busy_timeout=5000`
// FULL syncs the WAL on every commit, so a write is on disk when it returns.
const pragmaSynchronous = `PRAGMA synchronous=FULL`

// allSchemaStatements returns all schema DDL in order
func allSchemaStatements() []string {
	return []string{
		schemaNodes,
		schemaEdges,
		indexNodesType,
		indexNodesExternalID,
		indexNodesName,
		indexEdgesFrom,
		indexEdgesTo,
	}
}

// dropStatements returns the DDL that removes every table, edges first so
// the foreign keys never point at a missing table.
func dropStatements() []string {
	return []string{dropEdges, dropNodes}
}

// allPragmas returns all pragma statements
func allPragmas() []string {
	return []string{
		pragmaWAL,
		pragmaFK,
		pragmaBusyTimeout,
		pragmaSynchronous,
	}
}
