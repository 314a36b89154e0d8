package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/sqlscout/sqlscout/internal/jsonx"
	"github.com/sqlscout/sqlscout/internal/llm"
)

// validateCandidates runs each candidate through a syntax review pass and
// then executes the reviewed query against the store. Execution errors are
// captured in the record, never propagated: a candidate that fails at the
// database is still evidence for the final selector.
func (o *Orchestrator) validateCandidates(ctx context.Context, candidates []Candidate, opts llm.Options) ([]ValidationRecord, []Turn, error) {
	records := make([]ValidationRecord, len(candidates))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(o.validateConcurrency)
	for i, candidate := range candidates {
		group.Go(func() error {
			records[i] = o.validateOne(groupCtx, candidate, opts)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	turns := make([]Turn, 0, 2*len(records))
	for i, record := range records {
		turns = append(turns,
			Turn{Role: llm.RoleSystem, Content: fmt.Sprintf("Validating candidate %d", i+1), Name: agentOrchestrator},
			Turn{Role: llm.RoleAssistant, Content: record.summary(), Name: agentValidator},
		)
	}
	return records, turns, nil
}

func (o *Orchestrator) validateOne(ctx context.Context, candidate Candidate, opts llm.Options) ValidationRecord {
	prompt := fmt.Sprintf("Please validate and execute the following SQL query:\n```sql\n%s\n```", candidate.SQL)

	response, err := o.llm.Generate(ctx, validatorPrompt, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts)
	if err != nil {
		message := fmt.Sprintf("validator call failed: %v", err)
		return ValidationRecord{FinalQuery: candidate.SQL, Error: &message}
	}

	finalQuery, err := parseFinalQuery(o.logger, response)
	if err != nil {
		// Without a parseable reviewed query there is nothing safe to run.
		o.logger.Warn("validator response unparseable", slog.Any("error", err))
		message := "failed to parse validator response"
		return ValidationRecord{FinalQuery: candidate.SQL, Error: &message}
	}

	rows, err := o.store.Execute(ctx, finalQuery)
	if err != nil {
		message := err.Error()
		return ValidationRecord{FinalQuery: finalQuery, Error: &message}
	}
	return ValidationRecord{FinalQuery: finalQuery, Result: rows}
}

// parseFinalQuery extracts the reviewed query from the validator's JSON
// response. Wraps ErrParse on any failure.
func parseFinalQuery(logger *slog.Logger, text string) (string, error) {
	extracted := jsonx.ExtractObject(logger, text)

	var payload struct {
		FinalQuery string `json:"final_query"`
	}
	if err := json.Unmarshal([]byte(extracted), &payload); err != nil || payload.FinalQuery == "" {
		return "", fmt.Errorf("%w: key %q", ErrParse, "final_query")
	}
	return payload.FinalQuery, nil
}

// summary renders a record for the conversation trace.
func (r ValidationRecord) summary() string {
	if r.Error != nil {
		return fmt.Sprintf("Query:\n%s\nError: %s", r.FinalQuery, *r.Error)
	}
	return fmt.Sprintf("Query:\n%s\nResult: %s", r.FinalQuery, renderRows(r.Result))
}
