package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlscout/sqlscout/internal/auth"
	"github.com/sqlscout/sqlscout/internal/pipeline"
)

type agentQueryRequest struct {
	Question    string   `json:"question"`
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
}

func handleAgentQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	if deps.Agent == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "AGENT_NOT_CONFIGURED", "agent dependencies are not configured", false, nil)
		return
	}
	if err := requireRole(r, auth.RoleAgentCaller); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return
	}

	var request agentQueryRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid agent query request body", false, map[string]any{"details": err.Error()})
		return
	}
	if strings.TrimSpace(request.Question) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "QUESTION_REQUIRED", "question is required", false, nil)
		return
	}
	if request.Temperature != nil && (*request.Temperature < 0 || *request.Temperature > 2) {
		writeError(r.Context(), w, http.StatusBadRequest, "TEMPERATURE_OUT_OF_RANGE", "temperature must be between 0 and 2", false, nil)
		return
	}

	response := deps.Agent.ProcessQuery(r.Context(), pipeline.Query{
		Text:        request.Question,
		Model:       strings.TrimSpace(request.Model),
		Temperature: request.Temperature,
	})
	writeJSON(w, http.StatusOK, response)
}
