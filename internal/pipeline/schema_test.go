package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/sqlscout/sqlscout/internal/store"
)

func schemaStore(uniqueCount int64) *fakeStore {
	fk := &store.ForeignKey{Table: "public.customers", Column: "id"}
	return &fakeStore{
		schema: map[string][]store.Column{
			"public.orders": {
				{Name: "id", Type: "bigint", PrimaryKey: true},
				{Name: "status", Type: "text"},
				{Name: "customer_id", Type: "bigint", ForeignKey: fk},
			},
		},
		execute: func(sql string) ([]store.Row, error) {
			if strings.Contains(sql, "COUNT(DISTINCT") {
				return []store.Row{{"unique_count": uniqueCount}}, nil
			}
			return []store.Row{{"status": "open"}, {"status": "shipped"}}, nil
		},
	}
}

func TestBuildSchemaContextLowCardinalityListsAllValues(t *testing.T) {
	var sampleQuery string
	st := schemaStore(3)
	base := st.execute
	st.execute = func(sql string) ([]store.Row, error) {
		if !strings.Contains(sql, "COUNT(DISTINCT") && strings.Contains(sql, `"status"`) {
			sampleQuery = sql
		}
		return base(sql)
	}

	o := newTestOrchestrator(happyLLM(), st)
	got := o.buildSchemaContext(context.Background(), []string{"orders"}, []string{"public.orders.status"})

	if !strings.Contains(got, "All Unique Values: [open, shipped]") {
		t.Fatalf("context = %q", got)
	}
	if strings.Contains(sampleQuery, "LIMIT") {
		t.Fatalf("low-cardinality sampling must not limit: %q", sampleQuery)
	}
	if !strings.Contains(sampleQuery, "ORDER BY") {
		t.Fatalf("low-cardinality sampling must be ordered: %q", sampleQuery)
	}
}

func TestBuildSchemaContextHighCardinalitySamples(t *testing.T) {
	var sampleQuery string
	st := schemaStore(1000)
	base := st.execute
	st.execute = func(sql string) ([]store.Row, error) {
		if !strings.Contains(sql, "COUNT(DISTINCT") && strings.Contains(sql, `"status"`) {
			sampleQuery = sql
		}
		return base(sql)
	}

	o := newTestOrchestrator(happyLLM(), st)
	got := o.buildSchemaContext(context.Background(), []string{"orders"}, []string{"public.orders.status"})

	if !strings.Contains(got, "Sample Values: [open, shipped]") {
		t.Fatalf("context = %q", got)
	}
	if !strings.Contains(sampleQuery, "LIMIT 5") {
		t.Fatalf("high-cardinality sampling must limit: %q", sampleQuery)
	}
}

func TestBuildSchemaContextStructure(t *testing.T) {
	o := newTestOrchestrator(happyLLM(), schemaStore(3))
	got := o.buildSchemaContext(context.Background(),
		[]string{"orders"},
		[]string{"public.orders.status", "public.orders.customer_id"})

	for _, marker := range []string{
		"【DB_ID】 public",
		"【Schema】",
		"# Table: public.orders",
		"【Foreign keys】",
		"public.orders.customer_id = public.customers.id",
	} {
		if !strings.Contains(got, marker) {
			t.Fatalf("context missing %q:\n%s", marker, got)
		}
	}
	if strings.Contains(got, "(id:bigint") {
		t.Fatalf("unselected column leaked into context:\n%s", got)
	}
}

func TestBuildSchemaContextSkipsUnknownTable(t *testing.T) {
	o := newTestOrchestrator(happyLLM(), schemaStore(3))
	got := o.buildSchemaContext(context.Background(),
		[]string{"orders", "ghosts"},
		[]string{"public.orders.status", "public.ghosts.name"})

	if strings.Contains(got, "ghosts") && strings.Contains(got, "# Table: public.ghosts") {
		t.Fatalf("unknown table rendered:\n%s", got)
	}
	if !strings.Contains(got, "# Table: public.orders") {
		t.Fatalf("known table missing:\n%s", got)
	}
}

func TestBuildSchemaContextSamplingFailureDegrades(t *testing.T) {
	st := schemaStore(3)
	st.execute = func(string) ([]store.Row, error) {
		return nil, context.DeadlineExceeded
	}

	o := newTestOrchestrator(happyLLM(), st)
	got := o.buildSchemaContext(context.Background(), []string{"orders"}, []string{"public.orders.status"})

	if !strings.Contains(got, "Sample Values: []") {
		t.Fatalf("expected empty sample list, got:\n%s", got)
	}
}

func TestNormalizeNamesQualifiesAndDeduplicates(t *testing.T) {
	got := normalizeNames(testLogger(), []string{"orders", "public.orders", "sales.items"}, "public", 2)

	want := []string{"public.orders", "sales.items"}
	if len(got) != len(want) {
		t.Fatalf("normalizeNames() = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("normalizeNames() = %v, want %v", got, want)
		}
	}
}

func TestRenderValueFormatsDates(t *testing.T) {
	midnight := mustTime(t, "2024-03-01T00:00:00Z")
	if got := renderValue(midnight); got != "2024-03-01" {
		t.Fatalf("renderValue(midnight) = %q", got)
	}
	afternoon := mustTime(t, "2024-03-01T14:30:05Z")
	if got := renderValue(afternoon); got != "2024-03-01 14:30:05" {
		t.Fatalf("renderValue(afternoon) = %q", got)
	}
}
