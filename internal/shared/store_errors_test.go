package shared

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/lib/pq"
	"modernc.org/sqlite"
)

func TestIsSQLiteConflictError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"busy", errors.New("exec: SQLITE_BUSY (5)"), true},
		{"locked", errors.New("database is locked"), true},
		{"other", errors.New("no such table: sessions"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSQLiteConflictError(tt.err); got != tt.want {
				t.Errorf("IsSQLiteConflictError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsPostgresConflictError(t *testing.T) {
	serialization := fmt.Errorf("append chat turn: %w", &pq.Error{Code: "40001"})
	if !IsPostgresConflictError(serialization) {
		t.Error("expected wrapped serialization failure to be retryable")
	}
	if IsPostgresConflictError(&pq.Error{Code: "23505"}) {
		t.Error("unique violation must not be retryable")
	}
	if !IsRetryableStoreError(errors.New("database is locked")) {
		t.Error("expected sqlite lock to be retryable")
	}
}

func TestIsSQLiteBusyErrorFromDriver(t *testing.T) {
	dsn := "file:" + filepath.Join(t.TempDir(), "busy.db") + "?_pragma=busy_timeout(0)"
	open := func() *sql.DB {
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		db.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = db.Close() })
		return db
	}
	holder, contender := open(), open()
	ctx := context.Background()

	if _, err := holder.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		t.Fatalf("begin holder: %v", err)
	}
	t.Cleanup(func() { _, _ = holder.ExecContext(ctx, "ROLLBACK") })

	_, err := contender.ExecContext(ctx, "BEGIN IMMEDIATE")
	var se *sqlite.Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *sqlite.Error, got %v", err)
	}
	if !IsSQLiteBusyError(err) || !IsRetryableStoreError(fmt.Errorf("append chat turn: %w", err)) {
		t.Errorf("expected %v to be classified as busy", err)
	}
}
