package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sqlscout/sqlscout/internal/config"
	"github.com/sqlscout/sqlscout/internal/llm"
	"github.com/sqlscout/sqlscout/internal/observability"
	"github.com/sqlscout/sqlscout/internal/store"
)

// Orchestrator drives one question through every pipeline stage. A mutex
// serializes queries so the store and the model provider see at most one
// pipeline in flight per instance.
type Orchestrator struct {
	llm    llm.Client
	store  store.Store
	logger *slog.Logger

	dataSchema           string
	temperatures         []float64
	cardinalityThreshold int
	sampleLimit          int
	validateConcurrency  int
	defaults             llm.Options

	mu sync.Mutex
}

// New wires an orchestrator from its collaborators and pipeline settings.
func New(client llm.Client, st store.Store, logger *slog.Logger, cfg config.PipelineConfig, defaults llm.Options, dataSchema string) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		llm:                  client,
		store:                st,
		logger:               logger.With(slog.String("component", "pipeline")),
		dataSchema:           dataSchema,
		temperatures:         cfg.CandidateTemperatures,
		cardinalityThreshold: cfg.CardinalityThreshold,
		sampleLimit:          cfg.SampleLimit,
		validateConcurrency:  cfg.ValidateConcurrency,
		defaults:             defaults,
	}
}

// ProcessQuery runs the full pipeline for one question. It never returns an
// error: every failure is folded into the response's final answer so callers
// always get a well-formed result.
func (o *Orchestrator) ProcessQuery(ctx context.Context, query Query) Response {
	o.mu.Lock()
	defer o.mu.Unlock()

	started := time.Now()
	o.logger.Info("processing query", slog.String("query", query.Text))

	opts := o.defaults
	if query.Model != "" {
		opts.Model = query.Model
	}
	if query.Temperature != nil {
		opts.Temperature = *query.Temperature
	}

	response, err := o.run(ctx, query.Text, opts)
	if err != nil {
		o.logger.Error("pipeline failed", slog.Any("error", err), slog.Duration("elapsed", time.Since(started)))
		observability.ObserveAgentQuery("error")
		return Response{
			Conversation: []Turn{},
			FinalAnswer:  "An error occurred: " + err.Error(),
		}
	}

	o.logger.Info("query processed", slog.Duration("elapsed", time.Since(started)))
	observability.ObserveAgentQuery("ok")
	return response
}

func (o *Orchestrator) run(ctx context.Context, query string, opts llm.Options) (Response, error) {
	var conversation []Turn

	tables, turns, err := o.timedTables(ctx, query, opts)
	conversation = append(conversation, turns...)
	if err != nil {
		return Response{}, err
	}

	columns, turns, err := o.timedColumns(ctx, query, tables, opts)
	conversation = append(conversation, turns...)
	if err != nil {
		return Response{}, err
	}

	schemaContext := o.timedSchemaContext(ctx, tables, columns)
	conversation = append(conversation, Turn{
		Role:    llm.RoleSystem,
		Content: "Schema context constructed:\n" + schemaContext,
		Name:    agentOrchestrator,
	})

	candidates, turns, err := o.timedGenerate(ctx, query, schemaContext, opts)
	conversation = append(conversation, turns...)
	if err != nil {
		return Response{}, err
	}

	records, turns, err := o.timedValidate(ctx, candidates, opts)
	conversation = append(conversation, turns...)
	if err != nil {
		return Response{}, err
	}

	records = o.dedupeRecords(records)

	chosen, turns := o.timedSelect(ctx, query, records, opts)
	conversation = append(conversation, turns...)

	answer, err := json.MarshalIndent(chosen, "", "  ")
	if err != nil {
		return Response{}, fmt.Errorf("encoding final answer: %w", err)
	}

	return Response{Conversation: conversation, FinalAnswer: string(answer)}, nil
}

func (o *Orchestrator) timedTables(ctx context.Context, query string, opts llm.Options) ([]string, []Turn, error) {
	defer stageTimer("resolve_tables")()
	return o.resolveTables(ctx, query, opts)
}

func (o *Orchestrator) timedColumns(ctx context.Context, query string, tables []string, opts llm.Options) ([]string, []Turn, error) {
	defer stageTimer("resolve_columns")()
	return o.resolveColumns(ctx, query, tables, opts)
}

func (o *Orchestrator) timedSchemaContext(ctx context.Context, tables, columns []string) string {
	defer stageTimer("schema_context")()
	return o.buildSchemaContext(ctx, tables, columns)
}

func (o *Orchestrator) timedGenerate(ctx context.Context, query, schemaContext string, opts llm.Options) ([]Candidate, []Turn, error) {
	defer stageTimer("generate")()
	return o.generateCandidates(ctx, query, schemaContext, opts)
}

func (o *Orchestrator) timedValidate(ctx context.Context, candidates []Candidate, opts llm.Options) ([]ValidationRecord, []Turn, error) {
	defer stageTimer("validate")()
	return o.validateCandidates(ctx, candidates, opts)
}

func (o *Orchestrator) timedSelect(ctx context.Context, query string, records []ValidationRecord, opts llm.Options) (ValidationRecord, []Turn) {
	defer stageTimer("select")()
	return o.selectBest(ctx, query, records, opts)
}

func stageTimer(stage string) func() {
	started := time.Now()
	return func() {
		observability.ObserveStageDuration(stage, time.Since(started))
	}
}
