// Package pipeline orchestrates the multi-stage natural-language-to-SQL
// workflow: scope resolution, schema context construction, parallel candidate
// generation, validation against the live store, deduplication, and final
// selection.
package pipeline

import (
	"errors"

	"github.com/sqlscout/sqlscout/internal/store"
)

// Query is one natural-language question, with optional per-request overrides
// of the generation defaults.
type Query struct {
	Text        string
	Model       string
	Temperature *float64
}

// Turn is one message in the aggregated conversation trace.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// Candidate is one generated SQL query attempt and the randomness setting
// that produced it.
type Candidate struct {
	SQL         string
	Temperature float64
}

// ValidationRecord is the outcome of running one candidate. Exactly one of
// Result and Error is set, except when the validator response could not be
// parsed, in which case Error carries a synthesized message.
type ValidationRecord struct {
	FinalQuery string      `json:"final_query"`
	Result     []store.Row `json:"result"`
	Error      *string     `json:"error"`
}

// Response is the terminal output for one query. It is always produced; any
// pipeline failure is reported through FinalAnswer, never as an error.
type Response struct {
	Conversation []Turn `json:"conversation"`
	FinalAnswer  string `json:"final_answer"`
}

var (
	// ErrParse marks a required structured field missing or malformed in
	// model output.
	ErrParse = errors.New("required field missing or malformed in model response")

	// ErrNoCandidates marks a generation stage that produced zero usable
	// SQL candidates.
	ErrNoCandidates = errors.New("no usable SQL candidates were generated")
)

const (
	agentTableSelector  = "SchemaAnalyst"
	agentColumnSelector = "ColumnSelector"
	agentGenerator      = "SQLGenerator"
	agentValidator      = "SQLValidator"
	agentSelector       = "FinalSelector"
	agentOrchestrator   = "Orchestrator"
)

const resultPreviewLength = 200
