package storage

import (
	"context"
	"errors"
	"testing"

	"trm-report/internal/config"
)

func TestNilStoreNotConfigured(t *testing.T) {
	var store *Store
	ctx := context.Background()

	if err := store.InsertReportRun(ctx, ReportRun{}); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("insert: expected ErrNotConfigured, got %v", err)
	}
	if _, err := store.ListRecentRuns(ctx, 5); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("list: expected ErrNotConfigured, got %v", err)
	}
	if _, err := store.CountRuns(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("count: expected ErrNotConfigured, got %v", err)
	}
	if err := store.EnsureSchema(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("schema: expected ErrNotConfigured, got %v", err)
	}
	store.Close()
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), config.DatabaseConfig{}); err == nil {
		t.Fatal("empty dsn should fail")
	}
	if _, err := Open(context.Background(), config.DatabaseConfig{DSN: "::not a dsn::"}); err == nil {
		t.Fatal("malformed dsn should fail")
	}
}
