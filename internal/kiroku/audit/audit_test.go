package audit_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kiroku-app/kiroku/internal/kiroku/audit"
	"github.com/kiroku-app/kiroku/internal/kiroku/catalog"
)

func newLog(t *testing.T) *audit.Log {
	t.Helper()
	db, err := catalog.New(filepath.Join(t.TempDir(), "kiroku.db"))
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return audit.New(db)
}

// TestRecordAndRecent verifies rows round-trip newest first.
func TestRecordAndRecent(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()

	if err := l.Record(ctx, "t_1", "create", "Dune Part 3", audit.ResultOK,
		map[string]any{"status": "Planned"}, ""); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := l.Record(ctx, "t_1", "delete", "The Room", audit.ResultFailed,
		nil, "entry vanished"); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := l.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d rows, want 2", len(entries))
	}
	if entries[0].Action != "delete" || entries[0].Result != audit.ResultFailed {
		t.Errorf("newest row = %+v, want the failed delete", entries[0])
	}
	if entries[0].ErrorMessage != "entry vanished" {
		t.Errorf("ErrorMessage = %q, want %q", entries[0].ErrorMessage, "entry vanished")
	}
	if !strings.Contains(entries[1].PayloadJSON, "Planned") {
		t.Errorf("PayloadJSON = %q, want the create payload", entries[1].PayloadJSON)
	}
}

// TestRecord_RedactsSecretKeys verifies secret-looking payload keys are
// masked before they reach the database.
func TestRecord_RedactsSecretKeys(t *testing.T) {
	l := newLog(t)
	ctx := context.Background()

	err := l.Record(ctx, "t_2", "create", "x", audit.ResultOK,
		map[string]any{"title": "x", "api_key": "sk-very-secret-value"}, "")
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := l.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if strings.Contains(entries[0].PayloadJSON, "sk-very-secret-value") {
		t.Errorf("audit payload leaked a secret: %s", entries[0].PayloadJSON)
	}
	if !strings.Contains(entries[0].PayloadJSON, "[REDACTED]") {
		t.Errorf("audit payload not redacted: %s", entries[0].PayloadJSON)
	}
}
