// Package store defines the relational data store surface the agent pipeline
// depends on: ad hoc query execution, catalog listing, physical schema
// introspection, and the optional semantic data dictionary.
package store

import (
	"context"
	"errors"
)

// ErrDictionaryUnavailable marks the absence of the optional data dictionary.
// Callers degrade gracefully; it never blocks the pipeline.
var ErrDictionaryUnavailable = errors.New("data dictionary is not available")

// Row is one result row keyed by column name.
type Row map[string]any

type ObjectInfo struct {
	Schema   string `json:"schema"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// Objects lists the queryable relations across the configured schemas.
type Objects struct {
	Tables            []ObjectInfo `json:"tables"`
	Views             []ObjectInfo `json:"views"`
	MaterializedViews []ObjectInfo `json:"materialized_views"`
}

type ForeignKey struct {
	Table  string `json:"table"`
	Column string `json:"column"`
}

type Column struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Nullable   bool        `json:"nullable"`
	Default    *string     `json:"default,omitempty"`
	MaxLength  *int        `json:"max_length,omitempty"`
	PrimaryKey bool        `json:"primary_key,omitempty"`
	ForeignKey *ForeignKey `json:"foreign_key,omitempty"`
}

type TableDescription struct {
	Table       string `json:"table_name"`
	Priority    int    `json:"priority"`
	Description string `json:"table_description"`
}

type ColumnDescription struct {
	Column      string `json:"column_name"`
	Description string `json:"column_description"`
	Priority    int    `json:"priority"`
}

type Store interface {
	// Execute runs an arbitrary SQL statement and returns the result rows.
	Execute(ctx context.Context, sql string) ([]Row, error)

	// Explain returns the execution plan for a statement without running it.
	Explain(ctx context.Context, sql string) ([]string, error)

	// ListObjects returns all tables, views, and materialized views in the
	// configured schemas.
	ListObjects(ctx context.Context) (Objects, error)

	// DescribeSchema returns column metadata, keyed by fully qualified table
	// name, for every table in the configured schemas.
	DescribeSchema(ctx context.Context) (map[string][]Column, error)

	// DescribeTableDictionary returns semantic table descriptions, or
	// ErrDictionaryUnavailable when no dictionary is configured.
	DescribeTableDictionary(ctx context.Context) ([]TableDescription, error)

	// DescribeColumnDictionary returns semantic column descriptions for the
	// given bare table names, or ErrDictionaryUnavailable.
	DescribeColumnDictionary(ctx context.Context, tableNames []string) (map[string][]ColumnDescription, error)
}
