package state

import (
	"errors"
	"time"

	"github.com/danielpatrickdp/subcrack/internal/cipher"
)

// ErrNotFound is returned when a session or version does not exist.
var ErrNotFound = errors.New("not found")

// #region source
// Source records which step produced a mapping version.
type Source string

const (
	SourceInitial   Source = "initial"   // frequency-rank guess
	SourceOptimizer Source = "optimizer" // end state of a search run
	SourceRefine    Source = "refine"    // operator swap
)
// #endregion source

// #region session
// Session is one ciphertext under decryption.
type Session struct {
	SessionID      string
	Language       string
	Ciphertext     string
	CiphertextHash string
	CreatedAt      time.Time
}
// #endregion session

// #region mapping-version
// MappingVersion is an immutable snapshot of a session's mapping. Versions
// form a chain through ParentID.
type MappingVersion struct {
	VersionID string
	SessionID string
	ParentID  string
	Mapping   cipher.Mapping
	Plaintext string
	Score     float64
	Source    Source
	CreatedAt time.Time
}
// #endregion mapping-version

// #region version-with-provenance
// VersionWithProvenance pairs a version with the provenance row written
// when it was committed.
type VersionWithProvenance struct {
	MappingVersion
	TriggerType string
	Decision    string
	Reason      string
	DetailJSON  string
}
// #endregion version-with-provenance
