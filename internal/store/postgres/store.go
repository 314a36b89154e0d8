package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sqlscout/sqlscout/internal/store"
)

// Config controls which schemas are visible to the agent and where the
// optional data dictionary lives. The first schema is the primary data schema;
// the dictionary tables are expected in MetadataSchema when DictionaryEnabled.
type Config struct {
	Schemas               []string
	MetadataSchema        string
	DictionaryEnabled     bool
	DictionaryTablesName  string
	DictionaryColumnsName string
}

type Store struct {
	db  *sql.DB
	cfg Config
}

func NewStore(db *sql.DB, cfg Config) *Store {
	if len(cfg.Schemas) == 0 {
		cfg.Schemas = []string{"public"}
	}
	return &Store{db: db, cfg: cfg}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	return nil
}

func (s *Store) Execute(ctx context.Context, sqlText string) ([]store.Row, error) {
	rows, err := s.db.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read result columns: %w", err)
	}

	result := make([]store.Row, 0)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan result row: %w", err)
		}
		row := make(store.Row, len(columns))
		for i, name := range columns {
			row[name] = normalizeValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate result rows: %w", err)
	}
	return result, nil
}

func (s *Store) Explain(ctx context.Context, sqlText string) ([]string, error) {
	trimmed := strings.TrimSpace(sqlText)
	if !strings.HasPrefix(strings.ToLower(trimmed), "explain") {
		trimmed = "EXPLAIN " + trimmed
	}

	rows, err := s.Execute(ctx, trimmed)
	if err != nil {
		return nil, err
	}
	plan := make([]string, 0, len(rows))
	for _, row := range rows {
		for _, value := range row {
			plan = append(plan, fmt.Sprintf("%v", value))
		}
	}
	return plan, nil
}

func (s *Store) ListObjects(ctx context.Context) (store.Objects, error) {
	schemaList := quotedList(s.cfg.Schemas)
	query := fmt.Sprintf(`
SELECT table_schema, table_name, 'table' AS object_type
FROM information_schema.tables
WHERE table_schema IN (%[1]s) AND table_type = 'BASE TABLE'
UNION ALL
SELECT table_schema, table_name, 'view' AS object_type
FROM information_schema.views
WHERE table_schema IN (%[1]s)
UNION ALL
SELECT schemaname AS table_schema, matviewname AS table_name, 'materialized_view' AS object_type
FROM pg_matviews
WHERE schemaname IN (%[1]s)
ORDER BY table_schema, table_name`, schemaList)

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return store.Objects{}, fmt.Errorf("list database objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	objects := store.Objects{
		Tables:            make([]store.ObjectInfo, 0),
		Views:             make([]store.ObjectInfo, 0),
		MaterializedViews: make([]store.ObjectInfo, 0),
	}
	for rows.Next() {
		var schema, name, objectType string
		if err := rows.Scan(&schema, &name, &objectType); err != nil {
			return store.Objects{}, fmt.Errorf("scan object row: %w", err)
		}
		info := store.ObjectInfo{Schema: schema, Name: name, FullName: schema + "." + name}
		switch objectType {
		case "table":
			objects.Tables = append(objects.Tables, info)
		case "view":
			objects.Views = append(objects.Views, info)
		case "materialized_view":
			objects.MaterializedViews = append(objects.MaterializedViews, info)
		}
	}
	if err := rows.Err(); err != nil {
		return store.Objects{}, fmt.Errorf("iterate object rows: %w", err)
	}
	return objects, nil
}

func (s *Store) DescribeSchema(ctx context.Context) (map[string][]store.Column, error) {
	schema := make(map[string][]store.Column)

	if err := s.loadColumns(ctx, schema); err != nil {
		return nil, err
	}
	if err := s.loadPrimaryKeys(ctx, schema); err != nil {
		return nil, err
	}
	if err := s.loadForeignKeys(ctx, schema); err != nil {
		return nil, err
	}
	return schema, nil
}

func (s *Store) loadColumns(ctx context.Context, schema map[string][]store.Column) error {
	query := fmt.Sprintf(`
SELECT table_schema, table_name, column_name, data_type, is_nullable, column_default, character_maximum_length
FROM information_schema.columns
WHERE table_schema IN (%s)
ORDER BY table_schema, table_name, ordinal_position`, quotedList(s.cfg.Schemas))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("describe columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableSchema, tableName, columnName, dataType, isNullable string
		var columnDefault sql.NullString
		var maxLength sql.NullInt64
		if err := rows.Scan(&tableSchema, &tableName, &columnName, &dataType, &isNullable, &columnDefault, &maxLength); err != nil {
			return fmt.Errorf("scan column row: %w", err)
		}

		column := store.Column{
			Name:     columnName,
			Type:     dataType,
			Nullable: isNullable == "YES",
		}
		if columnDefault.Valid {
			value := columnDefault.String
			column.Default = &value
		}
		if maxLength.Valid {
			length := int(maxLength.Int64)
			column.MaxLength = &length
		}

		qualified := tableSchema + "." + tableName
		schema[qualified] = append(schema[qualified], column)
	}
	return rows.Err()
}

func (s *Store) loadPrimaryKeys(ctx context.Context, schema map[string][]store.Column) error {
	query := fmt.Sprintf(`
SELECT tc.table_schema, tc.table_name, kcu.column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON tc.constraint_name = kcu.constraint_name
  AND tc.table_schema = kcu.table_schema
WHERE tc.constraint_type = 'PRIMARY KEY' AND tc.table_schema IN (%s)`, quotedList(s.cfg.Schemas))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("describe primary keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableSchema, tableName, columnName string
		if err := rows.Scan(&tableSchema, &tableName, &columnName); err != nil {
			return fmt.Errorf("scan primary key row: %w", err)
		}
		markColumn(schema, tableSchema+"."+tableName, columnName, func(c *store.Column) {
			c.PrimaryKey = true
		})
	}
	return rows.Err()
}

func (s *Store) loadForeignKeys(ctx context.Context, schema map[string][]store.Column) error {
	query := fmt.Sprintf(`
SELECT tc.table_schema, tc.table_name, kcu.column_name,
       ccu.table_schema AS foreign_table_schema, ccu.table_name AS foreign_table_name, ccu.column_name AS foreign_column_name
FROM information_schema.table_constraints AS tc
JOIN information_schema.key_column_usage AS kcu
  ON tc.constraint_name = kcu.constraint_name
  AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage AS ccu
  ON ccu.constraint_name = tc.constraint_name
  AND ccu.table_schema = tc.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema IN (%s)`, quotedList(s.cfg.Schemas))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("describe foreign keys: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var tableSchema, tableName, columnName string
		var foreignSchema, foreignTable, foreignColumn string
		if err := rows.Scan(&tableSchema, &tableName, &columnName, &foreignSchema, &foreignTable, &foreignColumn); err != nil {
			return fmt.Errorf("scan foreign key row: %w", err)
		}
		markColumn(schema, tableSchema+"."+tableName, columnName, func(c *store.Column) {
			c.ForeignKey = &store.ForeignKey{
				Table:  foreignSchema + "." + foreignTable,
				Column: foreignColumn,
			}
		})
	}
	return rows.Err()
}

func (s *Store) DescribeTableDictionary(ctx context.Context) ([]store.TableDescription, error) {
	if !s.dictionaryConfigured() || s.cfg.DictionaryTablesName == "" {
		return nil, store.ErrDictionaryUnavailable
	}

	query := fmt.Sprintf(`SELECT table_name, priority, description FROM %s.%s ORDER BY priority DESC, table_name`,
		quoteIdent(s.metadataSchema()), quoteIdent(s.cfg.DictionaryTablesName))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read table dictionary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	descriptions := make([]store.TableDescription, 0)
	for rows.Next() {
		var entry store.TableDescription
		if err := rows.Scan(&entry.Table, &entry.Priority, &entry.Description); err != nil {
			return nil, fmt.Errorf("scan table dictionary row: %w", err)
		}
		descriptions = append(descriptions, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate table dictionary rows: %w", err)
	}
	return descriptions, nil
}

func (s *Store) DescribeColumnDictionary(ctx context.Context, tableNames []string) (map[string][]store.ColumnDescription, error) {
	if !s.dictionaryConfigured() || s.cfg.DictionaryColumnsName == "" {
		return nil, store.ErrDictionaryUnavailable
	}
	if len(tableNames) == 0 {
		return map[string][]store.ColumnDescription{}, nil
	}

	query := fmt.Sprintf(`
SELECT table_name, column_name, description, priority
FROM %s.%s
WHERE table_name IN (%s)
ORDER BY table_name, priority DESC, column_name`,
		quoteIdent(s.metadataSchema()), quoteIdent(s.cfg.DictionaryColumnsName), quotedList(tableNames))

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read column dictionary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string][]store.ColumnDescription, len(tableNames))
	for rows.Next() {
		var tableName string
		var entry store.ColumnDescription
		if err := rows.Scan(&tableName, &entry.Column, &entry.Description, &entry.Priority); err != nil {
			return nil, fmt.Errorf("scan column dictionary row: %w", err)
		}
		result[tableName] = append(result[tableName], entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate column dictionary rows: %w", err)
	}
	return result, nil
}

func (s *Store) dictionaryConfigured() bool {
	return s.cfg.DictionaryEnabled && s.metadataSchema() != ""
}

func (s *Store) metadataSchema() string {
	if s.cfg.MetadataSchema != "" {
		return s.cfg.MetadataSchema
	}
	if len(s.cfg.Schemas) > 1 {
		return s.cfg.Schemas[1]
	}
	return ""
}

func markColumn(schema map[string][]store.Column, table, column string, apply func(*store.Column)) {
	columns, ok := schema[table]
	if !ok {
		return
	}
	for i := range columns {
		if columns[i].Name == column {
			apply(&columns[i])
			return
		}
	}
}

func normalizeValue(value any) any {
	switch v := value.(type) {
	case []byte:
		return string(v)
	case time.Time:
		return v
	default:
		return value
	}
}

func quotedList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, value := range values {
		quoted = append(quoted, "'"+strings.ReplaceAll(value, "'", "''")+"'")
	}
	return strings.Join(quoted, ",")
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
