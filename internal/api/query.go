package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/sqlscout/sqlscout/internal/auth"
	"github.com/sqlscout/sqlscout/internal/store"
)

type queryRequest struct {
	SQL string `json:"sql"`
}

type queryResponse struct {
	Rows     []store.Row `json:"rows"`
	RowCount int         `json:"row_count"`
}

type explainResponse struct {
	Plan []string `json:"plan"`
}

func handleQuery(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeQueryRequest(deps, w, r)
	if !ok {
		return
	}
	if !isAllowedSQL(request.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, nil)
		return
	}

	rows, err := deps.Store.Execute(r.Context(), request.SQL)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "QUERY_EXECUTION_FAILED", "query execution failed", false, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, queryResponse{Rows: rows, RowCount: len(rows)})
}

func handleExplain(deps Dependencies, w http.ResponseWriter, r *http.Request) {
	request, ok := decodeQueryRequest(deps, w, r)
	if !ok {
		return
	}
	if !isAllowedExplainSQL(request.SQL) {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_NOT_ALLOWED", "only read-only SELECT/WITH queries are allowed", false, nil)
		return
	}

	plan, err := deps.Store.Explain(r.Context(), request.SQL)
	if err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "EXPLAIN_FAILED", "explain failed", false, map[string]any{"details": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, explainResponse{Plan: plan})
}

func decodeQueryRequest(deps Dependencies, w http.ResponseWriter, r *http.Request) (queryRequest, bool) {
	var request queryRequest
	if deps.Store == nil {
		writeError(r.Context(), w, http.StatusNotImplemented, "QUERY_NOT_CONFIGURED", "query dependencies are not configured", false, nil)
		return request, false
	}
	if err := requireRole(r, auth.RoleQueryReader); err != nil {
		writeError(r.Context(), w, http.StatusForbidden, "FORBIDDEN", err.Error(), false, nil)
		return request, false
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&request); err != nil {
		writeError(r.Context(), w, http.StatusBadRequest, "INVALID_JSON", "invalid query request body", false, map[string]any{"details": err.Error()})
		return request, false
	}
	if strings.TrimSpace(request.SQL) == "" {
		writeError(r.Context(), w, http.StatusBadRequest, "SQL_REQUIRED", "sql is required", false, nil)
		return request, false
	}
	return request, true
}

func isAllowedSQL(sqlText string) bool {
	normalized := strings.ToLower(strings.TrimSpace(sqlText))
	if normalized == "" {
		return false
	}
	return strings.HasPrefix(normalized, "select") || strings.HasPrefix(normalized, "with")
}

// isAllowedExplainSQL additionally tolerates a leading EXPLAIN, which the
// store accepts without double-prefixing.
func isAllowedExplainSQL(sqlText string) bool {
	normalized := strings.TrimSpace(sqlText)
	if strings.HasPrefix(strings.ToLower(normalized), "explain") {
		normalized = strings.TrimSpace(normalized[len("explain"):])
	}
	return isAllowedSQL(normalized)
}
