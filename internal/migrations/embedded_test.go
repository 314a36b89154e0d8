package migrations

import (
	"strings"
	"testing"
)

func TestEmbeddedMigrationsLoad(t *testing.T) {
	items, err := loadMigrations(embeddedFS)
	if err != nil {
		t.Fatalf("loadMigrations() error = %v", err)
	}
	if len(items) < 2 {
		t.Fatalf("len(items) = %d", len(items))
	}
	if !strings.Contains(items[0].UpSQL, "sqlscout_meta") {
		t.Fatalf("first migration must create the metadata schema:\n%s", items[0].UpSQL)
	}
	if !strings.Contains(items[1].UpSQL, "table_dictionary") || !strings.Contains(items[1].UpSQL, "column_dictionary") {
		t.Fatalf("second migration must create the dictionary tables:\n%s", items[1].UpSQL)
	}
}
