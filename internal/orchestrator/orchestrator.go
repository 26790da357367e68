package orchestrator

// #region imports
import (
	"database/sql"
	"log/slog"
	"os"
	"time"
)

// #endregion

// EnvRestarts disables restarts when set to "false".
const EnvRestarts = "SUBCRACK_RESTARTS"

// #region orchestrator-struct

// Orchestrator coordinates ciphertext classification, strategy selection,
// run evaluation, and restart decisions.
type Orchestrator struct {
	selector *StrategySelector
	retry    *RetryEngine
	memory   *StrategyMemory // nil = outcomes are not persisted
	enabled  bool
	logger   *slog.Logger
}

// #endregion

// #region constructor

// NewOrchestrator creates a fully wired orchestrator allowing up to
// maxRetries restarts per ciphertext. db may be nil, in which case no
// outcomes are learned.
func NewOrchestrator(db *sql.DB, maxRetries int, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	enabled := maxRetries > 0
	if v := os.Getenv(EnvRestarts); v == "false" {
		enabled = false
	}

	var mem *StrategyMemory
	if db != nil {
		m, err := NewStrategyMemory(db)
		if err != nil {
			return nil, err
		}
		mem = m
	}

	selector := NewStrategySelector(mem)
	return &Orchestrator{
		selector: selector,
		retry:    NewRetryEngine(selector, maxRetries),
		memory:   mem,
		enabled:  enabled,
		logger:   logger,
	}, nil
}

// #endregion

// Enabled returns whether restarts are active.
func (o *Orchestrator) Enabled() bool {
	return o.enabled
}

// #region pre-run

// PreRun classifies the ciphertext and selects the initial strategy.
// When disabled the default strategy is always used.
func (o *Orchestrator) PreRun(language, ciphertext string) PreRunResult {
	class := ClassifyCiphertext(language, ciphertext)

	strategy := Strategies[StrategyDefault]
	if o.enabled {
		strategy = o.selector.SelectInitial(class)
	}

	o.logger.Debug("orchestrator classify",
		"language", class.Language,
		"length", class.Length,
		"coverage", class.Coverage,
		"strategy", strategy.ID,
	)

	return PreRunResult{
		Classification: class,
		Strategy:       strategy,
	}
}

// #endregion

// #region post-run

// PostRun evaluates the latest attempt, whose Evaluation is filled in
// place, and decides whether to restart.
func (o *Orchestrator) PostRun(length int, attempts []Attempt) PostRunResult {
	latest := &attempts[len(attempts)-1]
	latest.Evaluation = EvaluateRun(latest.Result, length)
	ev := latest.Evaluation

	o.logger.Debug("orchestrator evaluate",
		"strategy", latest.Strategy,
		"quality", ev.Quality,
		"acceptance", ev.AcceptanceRate,
		"failure", ev.FailureType,
	)

	if !o.enabled || !ev.ShouldRetry {
		return PostRunResult{Evaluation: ev, Accept: true}
	}

	shouldRetry, next := o.retry.ShouldRetry(attempts)
	if !shouldRetry || next == nil {
		o.logger.Debug("orchestrator no restart available")
		return PostRunResult{Evaluation: ev, Accept: true}
	}

	o.logger.Debug("orchestrator restart", "strategy", next.ID)
	return PostRunResult{Evaluation: ev, NextStrategy: next}
}

// #endregion

// #region best

// Best returns the index of the attempt with the highest final score,
// preferring the earliest on ties. Cancelled attempts lose to finished ones.
func Best(attempts []Attempt) int {
	best := -1
	for i, a := range attempts {
		if best < 0 {
			best = i
			continue
		}
		b := attempts[best]
		if b.Result.Cancelled && !a.Result.Cancelled {
			best = i
			continue
		}
		if a.Result.Cancelled && !b.Result.Cancelled {
			continue
		}
		if a.Result.Score > b.Result.Score {
			best = i
		}
	}
	return best
}

// #endregion

// #region record-final-outcome

// RecordFinalOutcome persists all attempts for a decoded ciphertext.
// Errors are logged, not returned.
func (o *Orchestrator) RecordFinalOutcome(sessionID string, class Classification, attempts []Attempt, acceptedIdx int) {
	if o.memory == nil {
		return
	}
	now := time.Now()
	recs := make([]OutcomeRecord, len(attempts))
	for i, a := range attempts {
		recs[i] = OutcomeRecord{
			SessionID:   sessionID,
			Language:    class.Language,
			Length:      class.Length,
			Coverage:    class.Coverage,
			StrategyID:  a.Strategy,
			AttemptNum:  i,
			Quality:     a.Evaluation.Quality,
			FailureType: a.Evaluation.FailureType,
			Score:       a.Result.Score,
			Accepted:    i == acceptedIdx,
			CreatedAt:   now,
		}
	}
	if err := o.memory.RecordOutcomes(recs); err != nil {
		o.logger.Warn("orchestrator record outcomes failed", "error", err)
		return
	}

	o.logger.Debug("orchestrator recorded attempts",
		"session", sessionID,
		"attempts", len(attempts),
		"accepted_idx", acceptedIdx,
	)
}

// #endregion
