package logging

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// #region log-decision
// Execer is satisfied by *sql.DB, *sql.Tx and state.Tx.
type Execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogDecision writes a provenance entry to the provenance_log table.
func LogDecision(db Execer, entry ProvenanceEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := db.Exec(
		`INSERT INTO provenance_log (session_id, version_id, context_hash, trigger_type, detail_json, decision, reason, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.SessionID,
		entry.VersionID,
		nullIfEmpty(entry.ContextHash),
		entry.TriggerType,
		nullIfEmpty(entry.DetailJSON),
		entry.Decision,
		nullIfEmpty(entry.Reason),
		entry.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}
// #endregion log-decision

// #region detail
// Detail marshals a record for ProvenanceEntry.DetailJSON.
func Detail(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(b), nil
}
// #endregion detail

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
