package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/sqlscout/sqlscout/internal/jsonx"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
)

// resolveTables asks the reasoning capability which tables the question
// needs. A missing or empty "tables" field triggers the catalog fallback:
// every table the store knows about is selected instead. This path is
// degraded but always available.
func (o *Orchestrator) resolveTables(ctx context.Context, query string, opts llm.Options) ([]string, []Turn, error) {
	prompt := fmt.Sprintf("User Question: '%s'", query)
	if hints := o.tableDictionaryHints(ctx); hints != "" {
		prompt = hints + "\n\n" + prompt
	}

	turns := []Turn{{Role: llm.RoleUser, Content: prompt}}

	response, err := o.llm.Generate(ctx, tableSelectorPrompt, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts)
	if err == nil {
		turns = append(turns, Turn{Role: llm.RoleAssistant, Content: response, Name: agentTableSelector})
	}

	var tables []string
	if err == nil {
		tables, err = parseStringList(o.logger, response, "tables")
	}
	if err != nil {
		o.logger.Warn("table selection failed, falling back to full catalog", slog.Any("error", err))
		observability.IncrementTableFallback()

		objects, listErr := o.store.ListObjects(ctx)
		if listErr != nil {
			return nil, turns, fmt.Errorf("catalog fallback: %w", listErr)
		}
		tables = make([]string, 0, len(objects.Tables))
		for _, table := range objects.Tables {
			tables = append(tables, table.FullName)
		}
		if len(tables) == 0 {
			return nil, turns, fmt.Errorf("catalog fallback returned no tables")
		}
	}

	o.logger.Info("resolved tables", slog.Any("tables", tables))
	return tables, turns, nil
}

// resolveColumns asks for the columns needed given the resolved tables.
// There is no fallback here: columns cannot be safely guessed, so a
// malformed response fails the stage.
func (o *Orchestrator) resolveColumns(ctx context.Context, query string, tables []string, opts llm.Options) ([]string, []Turn, error) {
	prompt := fmt.Sprintf("Relevant Tables: %v\nUser Question: '%s'", tables, query)
	turns := []Turn{{Role: llm.RoleUser, Content: prompt}}

	response, err := o.llm.Generate(ctx, columnSelectorPrompt, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts)
	if err != nil {
		return nil, turns, fmt.Errorf("column selection: %w", err)
	}
	turns = append(turns, Turn{Role: llm.RoleAssistant, Content: response, Name: agentColumnSelector})

	columns, err := parseStringList(o.logger, response, "columns")
	if err != nil {
		return nil, turns, fmt.Errorf("column selection: %w", err)
	}

	o.logger.Info("resolved columns", slog.Any("columns", columns))
	return columns, turns, nil
}

// tableDictionaryHints renders semantic table descriptions for the table
// selector, when the data dictionary is available.
func (o *Orchestrator) tableDictionaryHints(ctx context.Context) string {
	descriptions, err := o.store.DescribeTableDictionary(ctx)
	if err != nil || len(descriptions) == 0 {
		return ""
	}
	hints := "Available tables:"
	for _, entry := range descriptions {
		hints += fmt.Sprintf("\n- %s: %s", entry.Table, entry.Description)
	}
	return hints
}

// parseStringList extracts a non-empty list of strings under key from the
// first JSON object embedded in text. Wraps ErrParse on any failure.
func parseStringList(logger *slog.Logger, text, key string) ([]string, error) {
	extracted := jsonx.ExtractObject(logger, text)

	var payload map[string]any
	if err := json.Unmarshal([]byte(extracted), &payload); err != nil {
		return nil, fmt.Errorf("%w: key %q", ErrParse, key)
	}

	rawList, ok := payload[key].([]any)
	if !ok || len(rawList) == 0 {
		return nil, fmt.Errorf("%w: key %q", ErrParse, key)
	}

	values := make([]string, 0, len(rawList))
	for _, item := range rawList {
		value, ok := item.(string)
		if !ok || value == "" {
			return nil, fmt.Errorf("%w: key %q", ErrParse, key)
		}
		values = append(values, value)
	}
	return values, nil
}
