package backend

import (
	"context"
	"fmt"
	"log/slog"

	dlog "dompet/internal/log"
	"dompet/internal/tables/google"
	"dompet/internal/tables/memory"
	"dompet/internal/tables/postgres"
	"dompet/internal/tables/sqlite"
)

type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{logger: logger.With(dlog.FieldComponent, dlog.ComponentBackend)}
}

func (f *DefaultFactory) Open(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *Result
		err error
	)
	switch config.Type {
	case MemoryBackend:
		res = &Result{Store: memory.New()}
	case SQLiteBackend:
		res, err = f.openSQLite(config)
	case PostgresBackend:
		res, err = f.openPostgres(ctx, config)
	case SheetsBackend:
		res, err = f.openSheets(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}
	res.Type = config.Type
	f.logger.InfoContext(ctx, "Initialized backend", dlog.FieldBackend, config.Type)
	return res, nil
}

func (f *DefaultFactory) openSQLite(config Config) (*Result, error) {
	store, err := sqlite.New(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite store: %w", err)
	}
	f.logger.Info("Opened SQLite database", "db_path", config.SQLiteDBPath)
	return &Result{Store: store, Cleanup: store.Close}, nil
}

func (f *DefaultFactory) openPostgres(ctx context.Context, config Config) (*Result, error) {
	store, err := postgres.Connect(ctx, config.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Postgres store: %w", err)
	}
	return &Result{Store: store, Cleanup: store.Close, Ping: store.Ping}, nil
}

func (f *DefaultFactory) openSheets(ctx context.Context, config Config) (*Result, error) {
	cli, err := google.New(ctx, google.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	return &Result{Store: cli}, nil
}
