package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sqlscout/sqlscout/internal/store"
)

// buildSchemaContext assembles the compact textual schema representation the
// generator consumes: one block per selected table with only the selected
// columns, each enriched with adaptively sampled values, followed by the
// foreign key relationships. It never fails; on a total failure it returns a
// commented error string so downstream stages can still run and surface the
// problem in the final answer.
func (o *Orchestrator) buildSchemaContext(ctx context.Context, tables, columns []string) string {
	o.logger.Info("building schema context", slog.Any("tables", tables), slog.Any("columns", columns))
	if len(tables) == 0 || len(columns) == 0 {
		return "/* Schema context error: no tables or columns were provided to the builder. */"
	}

	defaultSchema := o.dataSchema
	normalizedColumns := normalizeNames(o.logger, columns, defaultSchema, 3)
	normalizedTables := normalizeNames(o.logger, tables, defaultSchema, 2)

	physicalSchema, err := o.store.DescribeSchema(ctx)
	if err != nil {
		return fmt.Sprintf("/* Schema context error: %v */", err)
	}

	bareNames := make([]string, 0, len(normalizedTables))
	for _, table := range normalizedTables {
		bareNames = append(bareNames, bareName(table))
	}
	descriptions, err := o.store.DescribeColumnDictionary(ctx, bareNames)
	if err != nil {
		// The dictionary is optional; its absence only loses descriptions.
		descriptions = map[string][]store.ColumnDescription{}
	}

	var parts []string
	parts = append(parts, fmt.Sprintf("【DB_ID】 %s\n【Schema】", defaultSchema))

	for _, table := range normalizedTables {
		physicalColumns, ok := physicalSchema[table]
		if !ok {
			o.logger.Warn("table not found in physical schema, skipping", slog.String("table", table))
			continue
		}

		parts = append(parts, fmt.Sprintf("# Table: %s\n[", table))

		selected := make(map[string]bool)
		for _, column := range normalizedColumns {
			if strings.HasPrefix(column, table+".") {
				selected[bareName(column)] = true
			}
		}

		for _, column := range physicalColumns {
			if !selected[column.Name] {
				continue
			}

			description := columnDescription(descriptions[bareName(table)], column.Name)
			samples, label := o.sampleColumn(ctx, table, column.Name)

			pkInfo := ""
			if column.PrimaryKey {
				pkInfo = "Primary Key, "
			}
			parts = append(parts, fmt.Sprintf("  (%s:%s, %s%s, %s: [%s])",
				column.Name, column.Type, pkInfo, description, label, strings.Join(samples, ", ")))
		}

		parts = append(parts, "]\n")
	}

	parts = append(parts, "【Foreign keys】")
	for _, table := range normalizedTables {
		for _, column := range physicalSchema[table] {
			if column.ForeignKey != nil {
				parts = append(parts, fmt.Sprintf("%s.%s = %s.%s",
					table, column.Name, column.ForeignKey.Table, column.ForeignKey.Column))
			}
		}
	}

	return strings.Join(parts, "\n")
}

// sampleColumn applies the smart sampling policy: fetch every distinct value
// for low-cardinality columns (they ground the generator's literal guesses),
// a small sample otherwise. Any failure degrades to an empty sample list for
// this column only.
func (o *Orchestrator) sampleColumn(ctx context.Context, table, column string) ([]string, string) {
	label := "Sample Values"

	schemaName, tableName, ok := strings.Cut(table, ".")
	if !ok {
		return nil, label
	}
	qualified := fmt.Sprintf("%s.%s", quoteIdent(schemaName), quoteIdent(tableName))
	quotedColumn := quoteIdent(column)

	countRows, err := o.store.Execute(ctx,
		fmt.Sprintf(`SELECT COUNT(DISTINCT %s) AS unique_count FROM %s`, quotedColumn, qualified))
	if err != nil || len(countRows) == 0 {
		o.logger.Warn("distinct count failed", slog.String("table", table), slog.String("column", column), slog.Any("error", err))
		return nil, label
	}
	uniqueCount := asInt(countRows[0]["unique_count"])

	var sampleQuery string
	if uniqueCount > 0 && uniqueCount <= o.cardinalityThreshold {
		label = "All Unique Values"
		sampleQuery = fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s`,
			quotedColumn, qualified, quotedColumn, quotedColumn)
	} else {
		sampleQuery = fmt.Sprintf(`SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL LIMIT %d`,
			quotedColumn, qualified, quotedColumn, o.sampleLimit)
	}

	sampleRows, err := o.store.Execute(ctx, sampleQuery)
	if err != nil {
		o.logger.Warn("value sampling failed", slog.String("table", table), slog.String("column", column), slog.Any("error", err))
		return nil, label
	}

	samples := make([]string, 0, len(sampleRows))
	for _, row := range sampleRows {
		samples = append(samples, renderValue(row[column]))
	}
	return samples, label
}

// normalizeNames qualifies every name with the default schema so all names
// carry fullParts dot-separated parts; malformed names are skipped.
func normalizeNames(logger *slog.Logger, names []string, defaultSchema string, fullParts int) []string {
	normalized := make([]string, 0, len(names))
	seen := make(map[string]bool)
	for _, name := range names {
		parts := strings.Count(name, ".") + 1
		switch {
		case parts == fullParts-1:
			name = defaultSchema + "." + name
		case parts == fullParts:
			// Already fully qualified.
		default:
			logger.Warn("skipping malformed name during normalization", slog.String("name", name))
			continue
		}
		if !seen[name] {
			seen[name] = true
			normalized = append(normalized, name)
		}
	}
	sort.Strings(normalized)
	return normalized
}

func columnDescription(entries []store.ColumnDescription, column string) string {
	for _, entry := range entries {
		if entry.Column == column {
			return entry.Description
		}
	}
	return "No description available."
}

func bareName(qualified string) string {
	parts := strings.Split(qualified, ".")
	return parts[len(parts)-1]
}

func renderValue(value any) string {
	switch v := value.(type) {
	case time.Time:
		if v.Hour() == 0 && v.Minute() == 0 && v.Second() == 0 {
			return v.Format("2006-01-02")
		}
		return v.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asInt(value any) int {
	switch v := value.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func quoteIdent(value string) string {
	return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
}
