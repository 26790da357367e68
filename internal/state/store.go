package state

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/subcrack/internal/cipher"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id      TEXT PRIMARY KEY,
	language        TEXT NOT NULL,
	ciphertext      TEXT NOT NULL,
	ciphertext_hash TEXT NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS mapping_versions (
	version_id    TEXT PRIMARY KEY,
	session_id    TEXT NOT NULL,
	parent_id     TEXT,
	mapping       TEXT NOT NULL,
	plaintext     TEXT NOT NULL,
	score         REAL NOT NULL,
	source        TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	FOREIGN KEY (parent_id) REFERENCES mapping_versions(version_id)
);

CREATE INDEX IF NOT EXISTS idx_mapping_versions_session
	ON mapping_versions(session_id, created_at);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	version_id    TEXT NOT NULL,
	context_hash  TEXT,
	trigger_type  TEXT NOT NULL,
	detail_json   TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	FOREIGN KEY (version_id) REFERENCES mapping_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_mapping (
	session_id    TEXT PRIMARY KEY,
	version_id    TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id),
	FOREIGN KEY (version_id) REFERENCES mapping_versions(version_id)
);
`
// #endregion schema

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// #region store-struct
// Store persists decryption sessions and their mapping history in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// Pragmas are per connection; one connection also serializes writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// HashText returns the hex SHA-256 of text, used to key sessions and
// provenance rows by ciphertext.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// #region tx
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// Tx is a write transaction opened by Update. Its Exec lets other packages
// (provenance logging) write in the same transaction.
type Tx struct {
	tx *sql.Tx
}

func (t *Tx) Exec(query string, args ...any) (sql.Result, error) {
	return t.tx.Exec(query, args...)
}

// CreateSession records a new ciphertext inside the transaction.
func (t *Tx) CreateSession(language, ciphertext string) (Session, error) {
	return createSession(t.tx, language, ciphertext)
}

// CommitVersion inserts v and moves the active pointer inside the
// transaction.
func (t *Tx) CommitVersion(v MappingVersion) (MappingVersion, error) {
	return commitVersion(t.tx, v)
}

// Update runs fn in one transaction, committed only if fn returns nil. fn
// must not use the Store directly: the store holds a single connection.
func (s *Store) Update(fn func(tx *Tx) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()
	if err := fn(&Tx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
// #endregion tx

// #region sessions
// CreateSession records a new ciphertext and returns its session.
func (s *Store) CreateSession(language, ciphertext string) (Session, error) {
	return createSession(s.db, language, ciphertext)
}

func createSession(db execer, language, ciphertext string) (Session, error) {
	sess := Session{
		SessionID:      uuid.New().String(),
		Language:       language,
		Ciphertext:     ciphertext,
		CiphertextHash: HashText(ciphertext),
		CreatedAt:      time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, language, ciphertext, ciphertext_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sess.SessionID, sess.Language, sess.Ciphertext, sess.CiphertextHash,
		sess.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return Session{}, fmt.Errorf("insert session: %w", err)
	}
	return sess, nil
}

// GetSession retrieves a session by ID.
func (s *Store) GetSession(id string) (Session, error) {
	var sess Session
	var createdStr string
	err := s.db.QueryRow(
		`SELECT session_id, language, ciphertext, ciphertext_hash, created_at
		 FROM sessions WHERE session_id = ?`, id,
	).Scan(&sess.SessionID, &sess.Language, &sess.Ciphertext, &sess.CiphertextHash, &createdStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session %s: %w", id, err)
	}
	sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return sess, nil
}

// ListSessions returns the most recent sessions.
func (s *Store) ListSessions(limit int) ([]Session, error) {
	rows, err := s.db.Query(
		`SELECT session_id, language, ciphertext, ciphertext_hash, created_at
		 FROM sessions ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		var createdStr string
		if err := rows.Scan(&sess.SessionID, &sess.Language, &sess.Ciphertext, &sess.CiphertextHash, &createdStr); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		sess.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, sess)
	}
	return out, rows.Err()
}
// #endregion sessions

// #region commit-version
// CommitVersion inserts a new version and moves the session's active
// pointer to it atomically. Empty VersionID and zero CreatedAt are filled
// in; the stored record is returned.
func (s *Store) CommitVersion(v MappingVersion) (MappingVersion, error) {
	var out MappingVersion
	err := s.Update(func(tx *Tx) error {
		var err error
		out, err = tx.CommitVersion(v)
		return err
	})
	return out, err
}

func commitVersion(db execer, v MappingVersion) (MappingVersion, error) {
	if err := v.Mapping.Validate(); err != nil {
		return MappingVersion{}, fmt.Errorf("commit version: %w", err)
	}
	if v.VersionID == "" {
		v.VersionID = uuid.New().String()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	var parentPtr interface{}
	if v.ParentID != "" {
		parentPtr = v.ParentID
	}

	_, err := db.Exec(
		`INSERT INTO mapping_versions (version_id, session_id, parent_id, mapping, plaintext, score, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		v.VersionID, v.SessionID, parentPtr, v.Mapping.Key(), v.Plaintext, v.Score,
		string(v.Source), v.CreatedAt.Format(timeLayout),
	)
	if err != nil {
		return MappingVersion{}, fmt.Errorf("insert version: %w", err)
	}

	_, err = db.Exec(
		`INSERT INTO active_mapping (session_id, version_id) VALUES (?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET version_id = excluded.version_id`,
		v.SessionID, v.VersionID,
	)
	if err != nil {
		return MappingVersion{}, fmt.Errorf("set active: %w", err)
	}
	return v, nil
}
// #endregion commit-version

// #region get-current
// GetCurrent reads the session's active mapping version.
func (s *Store) GetCurrent(sessionID string) (MappingVersion, error) {
	var versionID string
	err := s.db.QueryRow(
		`SELECT version_id FROM active_mapping WHERE session_id = ?`, sessionID,
	).Scan(&versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return MappingVersion{}, fmt.Errorf("active version for %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return MappingVersion{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}
// #endregion get-current

// #region get-version
const versionColumns = `version_id, session_id, parent_id, mapping, plaintext, score, source, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (MappingVersion, error) {
	var v MappingVersion
	var parentID sql.NullString
	var key, source, createdStr string
	if err := row.Scan(&v.VersionID, &v.SessionID, &parentID, &key, &v.Plaintext, &v.Score, &source, &createdStr); err != nil {
		return MappingVersion{}, err
	}
	if parentID.Valid {
		v.ParentID = parentID.String
	}
	m, err := cipher.ParseKey(key)
	if err != nil {
		return MappingVersion{}, fmt.Errorf("decode mapping of %s: %w", v.VersionID, err)
	}
	v.Mapping = m
	v.Source = Source(source)
	v.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	return v, nil
}

// GetVersion retrieves a specific mapping version by ID.
func (s *Store) GetVersion(id string) (MappingVersion, error) {
	v, err := scanVersion(s.db.QueryRow(
		`SELECT `+versionColumns+` FROM mapping_versions WHERE version_id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return MappingVersion{}, fmt.Errorf("version %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return MappingVersion{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return v, nil
}
// #endregion get-version

// #region rollback
// Rollback points the session's active mapping at an earlier version of
// the same session. History is kept; later versions remain readable.
func (s *Store) Rollback(sessionID, targetVersionID string) error {
	return s.Update(func(tx *Tx) error {
		return tx.Activate(sessionID, targetVersionID)
	})
}

// Activate points the session at one of its own existing versions.
func (t *Tx) Activate(sessionID, versionID string) error {
	var owner string
	err := t.tx.QueryRow(
		`SELECT session_id FROM mapping_versions WHERE version_id = ?`, versionID,
	).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if owner != sessionID {
		return fmt.Errorf("version %s belongs to session %s, not %s", versionID, owner, sessionID)
	}

	_, err = t.tx.Exec(
		`UPDATE active_mapping SET version_id = ? WHERE session_id = ?`, versionID, sessionID,
	)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}
// #endregion rollback

// #region list-versions
// ListVersions returns a session's versions in commit order, oldest
// first. limit <= 0 returns all of them.
func (s *Store) ListVersions(sessionID string, limit int) ([]MappingVersion, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(
		`SELECT `+versionColumns+` FROM mapping_versions
		 WHERE session_id = ? ORDER BY created_at ASC, rowid ASC LIMIT ?`, sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []MappingVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListWithProvenance returns the session's provenance trail in write
// order, each entry joined with the version it references. A version
// reached again by rollback appears once more.
func (s *Store) ListWithProvenance(sessionID string) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(
		`SELECT v.version_id, v.session_id, v.parent_id, v.mapping, v.plaintext, v.score, v.source, v.created_at,
		        p.trigger_type, p.decision, COALESCE(p.reason, ''), COALESCE(p.detail_json, '')
		 FROM mapping_versions v
		 JOIN provenance_log p ON p.version_id = v.version_id
		 WHERE v.session_id = ?
		 ORDER BY p.id ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list with provenance: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var vp VersionWithProvenance
		var parentID sql.NullString
		var key, source, createdStr string
		if err := rows.Scan(
			&vp.VersionID, &vp.SessionID, &parentID, &key, &vp.Plaintext, &vp.Score, &source, &createdStr,
			&vp.TriggerType, &vp.Decision, &vp.Reason, &vp.DetailJSON,
		); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if parentID.Valid {
			vp.ParentID = parentID.String
		}
		m, err := cipher.ParseKey(key)
		if err != nil {
			return nil, fmt.Errorf("decode mapping of %s: %w", vp.VersionID, err)
		}
		vp.Mapping = m
		vp.Source = Source(source)
		vp.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, vp)
	}
	return out, rows.Err()
}
// #endregion list-versions
