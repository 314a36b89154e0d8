package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sqlscout/sqlscout/internal/auth"
	"github.com/sqlscout/sqlscout/internal/config"
	"github.com/sqlscout/sqlscout/internal/pipeline"
	"github.com/sqlscout/sqlscout/internal/store"
)

type fakeAgent struct {
	lastQuery pipeline.Query
	response  pipeline.Response
}

func (f *fakeAgent) ProcessQuery(_ context.Context, query pipeline.Query) pipeline.Response {
	f.lastQuery = query
	return f.response
}

type fakeStore struct {
	executeSQL  string
	executeRows []store.Row
	executeErr  error
	explainPlan []string
	objects     store.Objects
	schema      map[string][]store.Column
	dictionary  []store.TableDescription
	dictErr     error
}

func (f *fakeStore) Execute(_ context.Context, sql string) ([]store.Row, error) {
	f.executeSQL = sql
	return f.executeRows, f.executeErr
}

func (f *fakeStore) Explain(_ context.Context, _ string) ([]string, error) {
	return f.explainPlan, nil
}

func (f *fakeStore) ListObjects(_ context.Context) (store.Objects, error) {
	return f.objects, nil
}

func (f *fakeStore) DescribeSchema(_ context.Context) (map[string][]store.Column, error) {
	return f.schema, nil
}

func (f *fakeStore) DescribeTableDictionary(_ context.Context) ([]store.TableDescription, error) {
	return f.dictionary, f.dictErr
}

func (f *fakeStore) DescribeColumnDictionary(_ context.Context, _ []string) (map[string][]store.ColumnDescription, error) {
	return nil, store.ErrDictionaryUnavailable
}

func testHandler(t *testing.T, agent *fakeAgent, st store.Store) http.Handler {
	t.Helper()
	cfg, err := config.Load("sqlscout-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	return NewHandler(cfg, Dependencies{Agent: agent, Store: st})
}

func TestHealthEndpoint(t *testing.T) {
	h := testHandler(t, &fakeAgent{}, &fakeStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "sqlscout-api") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestReadyEndpointReportsFailure(t *testing.T) {
	cfg, err := config.Load("sqlscout-api", func(string) (string, bool) { return "", false })
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		Readiness: func(context.Context) error { return fmt.Errorf("database unreachable") },
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/ready", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "NOT_READY") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestAgentQueryEndpoint(t *testing.T) {
	temp := 0.7
	agent := &fakeAgent{response: pipeline.Response{
		Conversation: []pipeline.Turn{{Role: "user", Content: "hi"}},
		FinalAnswer:  `{"final_query": "SELECT 1"}`,
	}}
	h := testHandler(t, agent, &fakeStore{})

	body := `{"question": "how many orders?", "model": "other", "temperature": 0.7}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/query", strings.NewReader(body)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
	if agent.lastQuery.Text != "how many orders?" || agent.lastQuery.Model != "other" {
		t.Fatalf("lastQuery = %+v", agent.lastQuery)
	}
	if agent.lastQuery.Temperature == nil || *agent.lastQuery.Temperature != temp {
		t.Fatalf("temperature = %v", agent.lastQuery.Temperature)
	}

	var decoded pipeline.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.FinalAnswer == "" || len(decoded.Conversation) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestAgentQueryRejectsMissingQuestion(t *testing.T) {
	h := testHandler(t, &fakeAgent{}, &fakeStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/query", strings.NewReader(`{"question": "  "}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "QUESTION_REQUIRED") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestAgentQueryRejectsOutOfRangeTemperature(t *testing.T) {
	h := testHandler(t, &fakeAgent{}, &fakeStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/query", strings.NewReader(`{"question": "q", "temperature": 3.5}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
}

func TestQueryEndpointBlocksWrites(t *testing.T) {
	st := &fakeStore{}
	h := testHandler(t, &fakeAgent{}, st)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql": "DELETE FROM orders"}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SQL_NOT_ALLOWED") {
		t.Fatalf("body = %q", rr.Body.String())
	}
	if st.executeSQL != "" {
		t.Fatalf("blocked query was executed: %q", st.executeSQL)
	}
}

func TestQueryEndpointExecutesSelect(t *testing.T) {
	st := &fakeStore{executeRows: []store.Row{{"total": float64(3)}}}
	h := testHandler(t, &fakeAgent{}, st)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query", strings.NewReader(`{"sql": "SELECT count(*) AS total FROM orders"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}

	var decoded queryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.RowCount != 1 || len(decoded.Rows) != 1 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

func TestExplainEndpoint(t *testing.T) {
	st := &fakeStore{explainPlan: []string{"Seq Scan on orders"}}
	h := testHandler(t, &fakeAgent{}, st)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query/explain", strings.NewReader(`{"sql": "SELECT 1"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Seq Scan on orders") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestExplainEndpointAcceptsExplainPrefix(t *testing.T) {
	st := &fakeStore{explainPlan: []string{"Result"}}
	h := testHandler(t, &fakeAgent{}, st)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query/explain", strings.NewReader(`{"sql": "EXPLAIN SELECT 1"}`)))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
}

func TestExplainEndpointBlocksWrites(t *testing.T) {
	h := testHandler(t, &fakeAgent{}, &fakeStore{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/query/explain", strings.NewReader(`{"sql": "EXPLAIN DELETE FROM orders"}`)))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "SQL_NOT_ALLOWED") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestDictionaryEndpointReportsUnavailable(t *testing.T) {
	st := &fakeStore{dictErr: store.ErrDictionaryUnavailable}
	h := testHandler(t, &fakeAgent{}, st)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/catalog/dictionary", nil))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "DICTIONARY_UNAVAILABLE") {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestProtectedEndpointsRequireAuthWhenEnabled(t *testing.T) {
	cfg, err := config.Load("sqlscout-api", func(key string) (string, bool) {
		if key == "SQLSCOUT_AUTH_REQUIRED" {
			return "true", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	validator, err := auth.NewStaticAPIKeyValidator("k1:analyst:agent_caller|query_reader")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		Agent:          &fakeAgent{},
		Store:          &fakeStore{},
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/agent/query", strings.NewReader(`{"question": "q"}`)))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d", rr.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/agent/query", strings.NewReader(`{"question": "q"}`))
	req.Header.Set("X-API-Key", "k1")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("authenticated status = %d, body = %q", rr.Code, rr.Body.String())
	}

	// Health stays public.
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("health status = %d", rr.Code)
	}
}

func TestAgentQueryEnforcesRole(t *testing.T) {
	cfg, err := config.Load("sqlscout-api", func(key string) (string, bool) {
		if key == "SQLSCOUT_AUTH_REQUIRED" {
			return "true", true
		}
		return "", false
	})
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}

	validator, err := auth.NewStaticAPIKeyValidator("k1:reader:query_reader")
	if err != nil {
		t.Fatalf("NewStaticAPIKeyValidator() error = %v", err)
	}
	h := NewHandler(cfg, Dependencies{
		Agent:          &fakeAgent{},
		Store:          &fakeStore{},
		AuthMiddleware: auth.Middleware(nil, validator),
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/agent/query", strings.NewReader(`{"question": "q"}`))
	req.Header.Set("X-API-Key", "k1")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
}
