package logging

import "time"

// Provenance trigger types.
const (
	TriggerDecodeRun = "decode_run"
	TriggerRefine    = "refine_swap"
	TriggerRollback  = "rollback"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	SessionID   string
	VersionID   string
	ContextHash string // hash of the session ciphertext
	TriggerType string
	DetailJSON  string // RunRecord | SwapRecord | RollbackRecord
	Decision    string // "commit" | "rollback"
	Reason      string
	CreatedAt   time.Time
}
// #endregion provenance-entry

// #region run-record
// RunRecord captures one optimizer run. Serialized as JSON into
// provenance_log.detail_json so the run can be replayed with the same seed.
type RunRecord struct {
	Language   string `json:"language"`
	Ciphertext string `json:"ciphertext"`
	Seed       uint64 `json:"seed"`

	// Schedule active for the run
	Schedule RunSchedule `json:"schedule"`

	InitialKey   string  `json:"initial_key"`
	InitialScore float64 `json:"initial_score"`

	// End state
	Key        string  `json:"key"`
	Plaintext  string  `json:"plaintext"`
	Score      float64 `json:"score"`
	Iterations int     `json:"iterations"`
	Accepted   int     `json:"accepted"`
	Rejected   int     `json:"rejected"`
	Cancelled  bool    `json:"cancelled"`

	BestScore float64 `json:"best_score,omitempty"`
	BestKey   string  `json:"best_key,omitempty"`
}

// RunSchedule mirrors the optimizer configuration.
type RunSchedule struct {
	Mode               string  `json:"mode"`
	Iterations         int     `json:"iterations"`
	InitialTemperature float64 `json:"initial_temperature"`
	FloorTemperature   float64 `json:"floor_temperature,omitempty"`
	CoolingInterval    int     `json:"cooling_interval,omitempty"`
	Start              string  `json:"start"`
	TrackBest          bool    `json:"track_best,omitempty"`
}
// #endregion run-record

// #region swap-record
// SwapRecord captures one operator swap during refinement.
type SwapRecord struct {
	Seq  int    `json:"seq"`
	From string `json:"from"`
	To   string `json:"to"`
	Key  string `json:"key"`
	Text string `json:"text"`
}

// RollbackRecord captures a move of the active pointer.
type RollbackRecord struct {
	FromVersion string `json:"from_version"`
	ToVersion   string `json:"to_version"`
}
// #endregion swap-record
