package orchestrator

import (
	"math"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
)

// #region strategy-definitions

// Strategies returns the full set of built-in strategy configs.
var Strategies = map[StrategyID]StrategyConfig{
	StrategyDefault: {
		ID:               StrategyDefault,
		IterationScale:   1,
		TemperatureScale: 1,
	},
	StrategyIdentity: {
		ID:               StrategyIdentity,
		Start:            anneal.StartIdentity,
		IterationScale:   1,
		TemperatureScale: 1,
	},
	StrategyHot: {
		ID:               StrategyHot,
		IterationScale:   1,
		TemperatureScale: 3,
	},
	StrategyCold: {
		ID:               StrategyCold,
		IterationScale:   1,
		TemperatureScale: 1.0 / 3,
	},
	StrategyLong: {
		ID:               StrategyLong,
		IterationScale:   4,
		TemperatureScale: 1,
	},
}

// allStrategies fixes the fallback order.
var allStrategies = []StrategyID{
	StrategyDefault, StrategyLong, StrategyHot, StrategyIdentity, StrategyCold,
}

// Apply scales base by the strategy. An empty Start keeps the base start.
// The initial temperature is clamped to the floor in annealing mode.
func (s StrategyConfig) Apply(base anneal.Config) anneal.Config {
	cfg := base
	if s.Start != "" {
		cfg.Start = s.Start
	}
	if s.IterationScale > 0 {
		cfg.Iterations = int(math.Round(float64(base.Iterations) * s.IterationScale))
	}
	if s.TemperatureScale > 0 {
		cfg.InitialTemperature = base.InitialTemperature * s.TemperatureScale
	}
	if cfg.Mode == anneal.ModeAnnealing && cfg.InitialTemperature < cfg.FloorTemperature {
		cfg.InitialTemperature = cfg.FloorTemperature
	}
	return cfg
}

// #endregion

// #region default-mapping

// defaultMapping maps (LengthClass, Coverage) → default StrategyID.
var defaultMapping = map[LengthClass]map[Coverage]StrategyID{
	LengthShort: {
		CoverageSparse: StrategyLong,
		CoverageFull:   StrategyLong,
	},
	LengthModerate: {
		CoverageSparse: StrategyLong,
		CoverageFull:   StrategyDefault,
	},
	LengthLong: {
		CoverageSparse: StrategyDefault,
		CoverageFull:   StrategyDefault,
	},
}

// #endregion

// #region retry-escalation

// retryEscalation maps failure type → ordered strategy fallback chain.
var retryEscalation = map[FailureType][]StrategyID{
	FailureNoImprovement: {StrategyIdentity, StrategyHot},
	FailureStalled:       {StrategyHot, StrategyLong},
	FailureChurning:      {StrategyCold, StrategyLong},
}

// #endregion

// #region selector

// StrategySelector picks strategies based on classification, memory, and failure.
type StrategySelector struct {
	memory *StrategyMemory // nil = no learning
}

// NewStrategySelector creates a selector with optional memory backing.
func NewStrategySelector(memory *StrategyMemory) *StrategySelector {
	return &StrategySelector{memory: memory}
}

// #endregion

// #region select-initial

// SelectInitial picks the first strategy for a ciphertext.
func (s *StrategySelector) SelectInitial(class Classification) StrategyConfig {
	// Check learned data first (3+ samples required)
	if s.memory != nil {
		learned, _, err := s.memory.BestStrategy(class.Language, string(class.Length))
		if err == nil && learned != "" {
			if cfg, ok := Strategies[learned]; ok {
				return cfg
			}
		}
	}

	sid := StrategyDefault
	if byCoverage, ok := defaultMapping[class.Length]; ok {
		if mapped, ok := byCoverage[class.Coverage]; ok {
			sid = mapped
		}
	}
	return Strategies[sid]
}

// #endregion

// #region select-retry

// SelectRetry picks the next strategy after a failure, avoiding already-tried strategies.
func (s *StrategySelector) SelectRetry(failure FailureType, tried []StrategyID) *StrategyConfig {
	triedSet := make(map[StrategyID]bool)
	for _, t := range tried {
		triedSet[t] = true
	}

	for _, sid := range retryEscalation[failure] {
		if !triedSet[sid] {
			cfg := Strategies[sid]
			return &cfg
		}
	}

	// Escalation chain exhausted: pick any untried strategy
	for _, sid := range allStrategies {
		if !triedSet[sid] {
			cfg := Strategies[sid]
			return &cfg
		}
	}

	return nil // all strategies exhausted
}

// #endregion
