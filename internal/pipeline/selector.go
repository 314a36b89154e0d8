package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
)

// selectBest presents the deduplicated candidates as a lettered list and asks
// for a single-letter verdict. A single survivor skips the call entirely.
// Any unusable response falls back to the first candidate rather than failing
// the pipeline at its last step.
func (o *Orchestrator) selectBest(ctx context.Context, query string, records []ValidationRecord, opts llm.Options) (ValidationRecord, []Turn) {
	if len(records) == 1 {
		return records[0], nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "User Question: '%s'\n\nCandidates:\n", query)
	for i, record := range records {
		fmt.Fprintf(&b, "\n%c. Query:\n%s\n%s\n", 'A'+i, record.FinalQuery, previewOutcome(record))
	}
	prompt := b.String()

	turns := []Turn{{Role: llm.RoleUser, Content: prompt}}

	index := 0
	response, err := o.llm.Generate(ctx, selectorPrompt, []llm.Message{{Role: llm.RoleUser, Content: prompt}}, opts)
	if err != nil {
		o.logger.Warn("final selection failed, defaulting to first candidate", slog.Any("error", err))
		observability.IncrementSelectorFallback()
	} else {
		turns = append(turns, Turn{Role: llm.RoleAssistant, Content: response, Name: agentSelector})
		index = parseChoice(o.logger, response, len(records))
	}

	o.logger.Info("selected candidate", slog.Int("index", index))
	return records[index], turns
}

// parseChoice maps a selector response to a candidate index: the first
// capital letter found wins, anything else means the first candidate.
func parseChoice(logger *slog.Logger, response string, count int) int {
	choice := 'A'
	for _, r := range strings.ToUpper(strings.TrimSpace(response)) {
		if r >= 'A' && r <= 'Z' {
			choice = r
			break
		}
	}

	index := int(choice - 'A')
	if index >= count {
		logger.Warn("selector chose out-of-range candidate, defaulting to first",
			slog.String("choice", string(choice)), slog.Int("count", count))
		observability.IncrementSelectorFallback()
		return 0
	}
	return index
}

// previewOutcome truncates long results so the selector prompt stays small.
func previewOutcome(record ValidationRecord) string {
	if record.Error != nil {
		return "Error: " + *record.Error
	}
	rendered := renderRows(record.Result)
	if len(rendered) > resultPreviewLength {
		rendered = rendered[:resultPreviewLength] + "..."
	}
	return "Result: " + rendered
}
