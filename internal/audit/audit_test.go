package audit

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestLogEventWritesRow(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	logger := NewLogger(dbPath)

	err := logger.LogEvent("player", EventRunStarted, map[string]any{"script": "smoke"})
	if err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var actor, eventType, payload string
	row := db.QueryRow("SELECT actor, type, payload_json FROM events")
	if err := row.Scan(&actor, &eventType, &payload); err != nil {
		t.Fatalf("scan event: %v", err)
	}
	if actor != "player" || eventType != EventRunStarted {
		t.Errorf("event = %s/%s, want player/%s", actor, eventType, EventRunStarted)
	}
	if !strings.Contains(payload, `"script":"smoke"`) {
		t.Errorf("payload = %s, want script name inside", payload)
	}
}

func TestLogEventAppends(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "audit.db")
	logger := NewLogger(dbPath)

	for _, eventType := range []string{EventRunStarted, EventActionExecuted, EventRunFinished} {
		if err := logger.LogEvent("player", eventType, nil); err != nil {
			t.Fatalf("LogEvent %s: %v", eventType, err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM events").Scan(&count); err != nil {
		t.Fatalf("count events: %v", err)
	}
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
}
