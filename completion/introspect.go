package completion

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/cesardraw2/zeppelin/db"
)

// Querier is the part of *sql.Conn needed for metadata introspection.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// metadataQueries lists the catalog queries of one dialect. Empty entries
// are skipped. columns returns (table, column) pairs; the rest one name.
type metadataQueries struct {
	catalogs string
	schemas  string
	tables   string
	columns  string
}

var informationSchemaQueries = metadataQueries{
	schemas: "SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA",
	tables:  "SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES",
	columns: "SELECT TABLE_NAME, COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS",
}

var dialectQueries = map[db.Family]metadataQueries{
	db.FamilySQLite: {
		catalogs: "SELECT name FROM pragma_database_list",
		tables:   "SELECT name FROM sqlite_master WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'",
		columns: `SELECT m.name, p.name FROM sqlite_master AS m, pragma_table_info(m.name) AS p
			WHERE m.type IN ('table', 'view') AND m.name NOT LIKE 'sqlite_%'`,
	},
	db.FamilyMySQL: {
		schemas: "SELECT SCHEMA_NAME FROM information_schema.SCHEMATA",
		tables:  "SELECT TABLE_NAME FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE()",
		columns: "SELECT TABLE_NAME, COLUMN_NAME FROM information_schema.COLUMNS WHERE TABLE_SCHEMA = DATABASE()",
	},
	db.FamilyPostgres: {
		catalogs: "SELECT datname FROM pg_database WHERE NOT datistemplate",
		schemas:  "SELECT schema_name FROM information_schema.schemata WHERE schema_name NOT LIKE 'pg\\_%' AND schema_name <> 'information_schema'",
		tables:   "SELECT table_name FROM information_schema.tables WHERE table_schema NOT IN ('pg_catalog', 'information_schema')",
		columns:  "SELECT table_name, column_name FROM information_schema.columns WHERE table_schema NOT IN ('pg_catalog', 'information_schema')",
	},
	db.FamilySQLServer: {
		catalogs: "SELECT name FROM sys.databases",
		schemas:  informationSchemaQueries.schemas,
		tables:   informationSchemaQueries.tables,
		columns:  informationSchemaQueries.columns,
	},
}

func queriesFor(family db.Family) metadataQueries {
	if q, ok := dialectQueries[family]; ok {
		return q
	}
	return informationSchemaQueries
}

// snapshot is one load of schema object names.
type snapshot struct {
	names   map[string]struct{}
	tables  map[string]struct{}
	columns map[string][]string // lower(table) -> columns
}

func newSnapshot() *snapshot {
	return &snapshot{
		names:   make(map[string]struct{}),
		tables:  make(map[string]struct{}),
		columns: make(map[string][]string),
	}
}

func (s *snapshot) addName(name string) {
	if name != "" {
		s.names[name] = struct{}{}
	}
}

func (s *snapshot) addTable(name string) {
	if name != "" {
		s.names[name] = struct{}{}
		s.tables[name] = struct{}{}
	}
}

func (s *snapshot) addColumn(table, column string) {
	if table == "" || column == "" {
		return
	}
	s.addTable(table)
	s.addName(column)
	key := strings.ToLower(table)
	s.columns[key] = append(s.columns[key], column)
}

// loadSchema reads catalogs, schemas, tables and columns through metadata
// queries; user SQL is never involved.
func loadSchema(ctx context.Context, q Querier, family db.Family) (*snapshot, error) {
	queries := queriesFor(family)
	snap := newSnapshot()

	for _, step := range []struct {
		stage string
		sql   string
		add   func(string)
	}{
		{"catalogs", queries.catalogs, snap.addName},
		{"schemas", queries.schemas, snap.addName},
		{"tables", queries.tables, snap.addTable},
	} {
		if step.sql == "" {
			continue
		}
		if err := scanNames(ctx, q, step.sql, step.add); err != nil {
			return nil, &BuildError{Stage: step.stage, Err: err}
		}
	}

	if queries.columns != "" {
		if err := scanColumns(ctx, q, queries.columns, snap.addColumn); err != nil {
			return nil, &BuildError{Stage: "columns", Err: err}
		}
	}
	return snap, nil
}

// loadKeywordCatalog returns the driver's own keyword list, or nil when the
// dialect has none.
func loadKeywordCatalog(ctx context.Context, q Querier, family db.Family) ([]string, error) {
	sqlText, ok := keywordCatalogQueries[family]
	if !ok {
		return nil, nil
	}

	var words []string
	err := scanNames(ctx, q, sqlText, func(w string) {
		if w != "" {
			words = append(words, strings.ToUpper(w))
		}
	})
	if err != nil {
		return nil, &BuildError{Stage: "keywords", Err: err}
	}
	return words, nil
}

func scanNames(ctx context.Context, q Querier, sqlText string, add func(string)) error {
	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var name sql.NullString
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan name: %w", err)
		}
		add(name.String)
	}
	return rows.Err()
}

func scanColumns(ctx context.Context, q Querier, sqlText string, add func(table, column string)) error {
	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var table, column sql.NullString
		if err := rows.Scan(&table, &column); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		add(table.String, column.String)
	}
	return rows.Err()
}
