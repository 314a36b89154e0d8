package pipeline

import (
	"fmt"
	"log/slog"

	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/store"
)

// dedupeRecords collapses records with identical query text and identical
// outcome, preserving first-occurrence order. Different temperatures often
// converge on the same query; presenting it to the selector once keeps the
// choice unbiased.
func (o *Orchestrator) dedupeRecords(records []ValidationRecord) []ValidationRecord {
	seen := make(map[string]bool, len(records))
	unique := make([]ValidationRecord, 0, len(records))
	for _, record := range records {
		signature := record.FinalQuery + "\x00" + record.outcome()
		if seen[signature] {
			continue
		}
		seen[signature] = true
		unique = append(unique, record)
	}

	if dropped := len(records) - len(unique); dropped > 0 {
		observability.AddDuplicateCandidates(dropped)
		o.logger.Info("dropped duplicate candidates", slog.Int("dropped", dropped), slog.Int("remaining", len(unique)))
	}
	return unique
}

// outcome is the comparable rendering of a record's result or error.
func (r ValidationRecord) outcome() string {
	if r.Error != nil {
		return "error: " + *r.Error
	}
	return renderRows(r.Result)
}

func renderRows(rows []store.Row) string {
	return fmt.Sprintf("%v", rows)
}
