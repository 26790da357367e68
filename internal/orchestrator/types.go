package orchestrator

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
)

// #endregion

// #region length-class
// LengthClass buckets ciphertexts by how much bigram evidence they carry.
type LengthClass string

const (
	LengthShort    LengthClass = "short"    // fewer than 100 symbols
	LengthModerate LengthClass = "moderate" // fewer than 1000 symbols
	LengthLong     LengthClass = "long"
)
// #endregion

// #region coverage
// Coverage indicates how many distinct alphabet symbols the ciphertext
// uses. Sparse texts leave many ranks of the initial guess arbitrary.
type Coverage string

const (
	CoverageSparse Coverage = "sparse" // fewer than 20 distinct symbols
	CoverageFull   Coverage = "full"
)
// #endregion

// #region strategy-id
// StrategyID identifies a search strategy.
type StrategyID string

const (
	StrategyDefault  StrategyID = "default"  // configured schedule
	StrategyIdentity StrategyID = "identity" // configured schedule, identity start
	StrategyHot      StrategyID = "hot"      // triple starting temperature
	StrategyCold     StrategyID = "cold"     // one third of the starting temperature
	StrategyLong     StrategyID = "long"     // four times the iterations
)
// #endregion

// #region failure-type
// FailureType categorizes why a run failed evaluation.
type FailureType string

const (
	FailureNone          FailureType = "none"
	FailureNoImprovement FailureType = "no_improvement" // ended no better than the raw ciphertext
	FailureStalled       FailureType = "stalled"        // almost every proposal rejected
	FailureChurning      FailureType = "churning"       // almost every proposal accepted
	FailureCancelled     FailureType = "cancelled"
)
// #endregion

// #region classification
// Classification is the full classification of a ciphertext.
type Classification struct {
	Language string
	Length   LengthClass
	Coverage Coverage
}
// #endregion

// #region strategy-config
// StrategyConfig defines how a strategy modifies the base schedule.
type StrategyConfig struct {
	ID               StrategyID
	Start            anneal.Start
	IterationScale   float64
	TemperatureScale float64
}
// #endregion

// #region run-evaluation
// RunEvaluation is the output of evaluating a finished run.
type RunEvaluation struct {
	Quality        float64 // score gain over the ciphertext per bigram
	AcceptanceRate float64
	FailureType    FailureType
	ShouldRetry    bool
}
// #endregion

// #region attempt
// Attempt records one optimizer run for a ciphertext.
type Attempt struct {
	Strategy   StrategyID
	Seed       uint64
	Result     anneal.Result
	Evaluation RunEvaluation
}
// #endregion

// #region outcome-record
// OutcomeRecord is a single row for strategy_outcomes.
type OutcomeRecord struct {
	SessionID   string
	Language    string
	Length      LengthClass
	Coverage    Coverage
	StrategyID  StrategyID
	AttemptNum  int
	Quality     float64
	FailureType FailureType
	Score       float64
	Accepted    bool
	CreatedAt   time.Time
}
// #endregion

// #region pre-run-result
// PreRunResult bundles classification and strategy for the first attempt.
type PreRunResult struct {
	Classification Classification
	Strategy       StrategyConfig
}

// PostRunResult is the verdict on the latest attempt.
type PostRunResult struct {
	Evaluation   RunEvaluation
	Accept       bool
	NextStrategy *StrategyConfig // nil when Accept
}
// #endregion
