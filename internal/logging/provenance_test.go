package logging

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// #region helpers
func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE provenance_log (
		session_id   TEXT NOT NULL,
		version_id   TEXT NOT NULL,
		context_hash TEXT,
		trigger_type TEXT NOT NULL,
		detail_json  TEXT,
		decision     TEXT NOT NULL,
		reason       TEXT,
		created_at   TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}
	return db
}

// #endregion helpers

// #region log-decision-tests

func TestLogDecision_Success(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	detail, err := Detail(SwapRecord{Seq: 1, From: "E", To: "T", Key: "ABC", Text: "THE"})
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	entry := ProvenanceEntry{
		SessionID:   "s1",
		VersionID:   "v1",
		ContextHash: "abc123",
		TriggerType: TriggerRefine,
		DetailJSON:  detail,
		Decision:    "commit",
		Reason:      "operator swap E=T",
		CreatedAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM provenance_log").Scan(&count)
	if count != 1 {
		t.Errorf("expected 1 row, got %d", count)
	}

	var sessionID, trigger, detailJSON string
	db.QueryRow("SELECT session_id, trigger_type, detail_json FROM provenance_log").Scan(&sessionID, &trigger, &detailJSON)
	if sessionID != "s1" {
		t.Errorf("expected session_id 's1', got %q", sessionID)
	}
	if trigger != TriggerRefine {
		t.Errorf("expected trigger %q, got %q", TriggerRefine, trigger)
	}
	var rec SwapRecord
	if err := json.Unmarshal([]byte(detailJSON), &rec); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if rec.From != "E" || rec.To != "T" || rec.Seq != 1 {
		t.Errorf("unexpected detail %+v", rec)
	}
}

func TestLogDecision_AutoCreatedAt(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		SessionID:   "s2",
		VersionID:   "v2",
		TriggerType: TriggerDecodeRun,
		Decision:    "commit",
	}

	before := time.Now().UTC()
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var createdAtStr string
	db.QueryRow("SELECT created_at FROM provenance_log").Scan(&createdAtStr)
	createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		t.Fatalf("parse created_at: %v", err)
	}
	if createdAt.Before(before) {
		t.Error("expected auto-filled created_at to be >= test start time")
	}
}

func TestLogDecision_EmptyOptionalFields(t *testing.T) {
	db := setupDB(t)
	defer db.Close()

	entry := ProvenanceEntry{
		SessionID:   "s3",
		VersionID:   "v3",
		TriggerType: TriggerRollback,
		Decision:    "rollback",
		CreatedAt:   time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := LogDecision(db, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var contextHash, detailJSON, reason sql.NullString
	db.QueryRow("SELECT context_hash, detail_json, reason FROM provenance_log").Scan(
		&contextHash, &detailJSON, &reason,
	)
	if contextHash.Valid {
		t.Error("expected NULL context_hash for empty string")
	}
	if detailJSON.Valid {
		t.Error("expected NULL detail_json for empty string")
	}
	if reason.Valid {
		t.Error("expected NULL reason for empty string")
	}
}

func TestLogDecision_Error(t *testing.T) {
	db := setupDB(t)
	db.Close() // close to force error

	entry := ProvenanceEntry{
		SessionID:   "s4",
		VersionID:   "v4",
		TriggerType: TriggerDecodeRun,
		Decision:    "commit",
	}
	if err := LogDecision(db, entry); err == nil {
		t.Fatal("expected error on closed db")
	}
}

func TestDetail_RunRecord(t *testing.T) {
	s, err := Detail(RunRecord{Language: "english", Seed: 7, Schedule: RunSchedule{Mode: "fixed", Iterations: 10}})
	if err != nil {
		t.Fatalf("Detail: %v", err)
	}
	if strings.Contains(s, "best_key") {
		t.Errorf("expected omitted best_key, got %s", s)
	}
	if !strings.Contains(s, `"seed":7`) {
		t.Errorf("expected seed in %s", s)
	}
}

// #endregion log-decision-tests

// #region null-if-empty-tests
func TestNullIfEmpty_Empty(t *testing.T) {
	result := nullIfEmpty("")
	if result != nil {
		t.Errorf("expected nil for empty string, got %v", result)
	}
}

func TestNullIfEmpty_NonEmpty(t *testing.T) {
	result := nullIfEmpty("hello")
	if result != "hello" {
		t.Errorf("expected 'hello', got %v", result)
	}
}

// #endregion null-if-empty-tests

// #region logger-tests
func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"":      slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): expected %v, got %v (%v)", in, want, got, err)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestNew_JSONRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", JSON: true, Writer: &buf})
	log.Info("hidden")
	log.Warn("shown", "session", "s1")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info record leaked at warn level: %s", out)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &rec); err != nil {
		t.Fatalf("expected one JSON record, got %q: %v", out, err)
	}
	if rec["msg"] != "shown" || rec["session"] != "s1" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	New(Config{Level: "debug", Writer: &buf}).Debug("step", "n", 3)
	if !strings.Contains(buf.String(), "msg=step") || !strings.Contains(buf.String(), "n=3") {
		t.Errorf("unexpected text output %q", buf.String())
	}
}

// #endregion logger-tests
