package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
)

// generateCandidates fans out one generation call per configured temperature
// and collects every non-empty response. Individual call failures only log;
// the stage fails only when every temperature comes back unusable, since a
// pipeline without candidates has nothing left to do.
func (o *Orchestrator) generateCandidates(ctx context.Context, query, schemaContext string, opts llm.Options) ([]Candidate, []Turn, error) {
	prompt := fmt.Sprintf("Schema Context:\n%s\n\nUser Question: '%s'", schemaContext, query)

	var (
		mu         sync.Mutex
		candidates []Candidate
	)

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(len(o.temperatures))
	for _, temperature := range o.temperatures {
		group.Go(func() error {
			callOpts := opts
			callOpts.Temperature = temperature

			response, err := o.llm.Generate(groupCtx, generatorPrompt, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, callOpts)
			if err != nil {
				o.logger.Warn("candidate generation failed", slog.Float64("temperature", temperature), slog.Any("error", err))
				return nil
			}

			sql := stripSQLFences(response)
			if sql == "" {
				o.logger.Warn("candidate generation returned empty query", slog.Float64("temperature", temperature))
				return nil
			}

			mu.Lock()
			candidates = append(candidates, Candidate{SQL: sql, Temperature: temperature})
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, nil, err
	}

	if len(candidates) == 0 {
		return nil, nil, ErrNoCandidates
	}
	// Collection order depends on goroutine scheduling; sort so downstream
	// stages see a stable ordering.
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Temperature < candidates[j].Temperature })
	observability.AddCandidatesGenerated(len(candidates))
	o.logger.Info("generated candidates", slog.Int("count", len(candidates)))

	turns := make([]Turn, 0, 2*len(candidates)+1)
	turns = append(turns, Turn{Role: llm.RoleUser, Content: prompt})
	for _, candidate := range candidates {
		turns = append(turns,
			Turn{Role: llm.RoleSystem, Content: fmt.Sprintf("Generated candidate with temperature %.1f", candidate.Temperature), Name: agentOrchestrator},
			Turn{Role: llm.RoleAssistant, Content: candidate.SQL, Name: agentGenerator},
		)
	}
	return candidates, turns, nil
}

// stripSQLFences removes a surrounding markdown code fence, if present.
func stripSQLFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```sql")
		trimmed = strings.TrimPrefix(trimmed, "```")
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	}
	return strings.TrimSpace(trimmed)
}
