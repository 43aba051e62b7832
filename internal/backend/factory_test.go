package backend

import (
	"context"
	"path/filepath"
	"testing"

	"dompet/internal/config"
	"dompet/internal/tables"
	"dompet/internal/tables/memory"
)

func TestTypeIsValid(t *testing.T) {
	for _, typ := range Types() {
		if !typ.IsValid() {
			t.Errorf("%s should be valid", typ)
		}
	}
	if Type("mongo").IsValid() {
		t.Error("mongo should not be valid")
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://localhost/dompet"})
	if err != nil {
		t.Fatalf("FromAppConfig() error = %v", err)
	}
	if cfg.Type != PostgresBackend || cfg.DatabaseURL != "postgres://localhost/dompet" {
		t.Errorf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(&config.Config{DataBackend: "csv"}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x"}, true},
		{"sheets complete", Config{Type: SheetsBackend, GoogleSpreadsheetID: "x", GoogleServiceAccountJSON: "{}"}, false},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestOpenMemory(t *testing.T) {
	res, err := NewFactory(nil).Open(context.Background(), Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if _, ok := res.Store.(*memory.Store); !ok {
		t.Errorf("Store = %T, want *memory.Store", res.Store)
	}
	if err := res.Check(context.Background()); err != nil {
		t.Errorf("Check() error = %v", err)
	}
	if err := res.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestOpenSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dompet.db")
	res, err := NewFactory(nil).Open(ctx, Config{Type: SQLiteBackend, SQLiteDBPath: path})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer res.Close()

	if res.Type != SQLiteBackend {
		t.Errorf("Type = %s, want sqlite", res.Type)
	}
	rows, err := res.Store.Select(ctx, tables.Categories, tables.Query{UserID: "u1"})
	if err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("fresh database returned %d rows", len(rows))
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	if _, err := NewFactory(nil).Open(context.Background(), Config{Type: PostgresBackend}); err == nil {
		t.Error("expected error for postgres without url")
	}
}
