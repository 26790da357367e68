package eval

import (
	"fmt"
	"math"

	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/score"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region eval-harness
// EvalHarness checks the invariants of a candidate decryption.
type EvalHarness struct {
	config EvalConfig
	model  *corpus.Model
}

// NewEvalHarness creates an eval harness. A nil model skips the
// score_consistent check.
func NewEvalHarness(config EvalConfig, model *corpus.Model) *EvalHarness {
	return &EvalHarness{config: config, model: model}
}

// Run validates v as a decryption of ciphertext. baseline is the score of
// the untouched ciphertext; the improvement metric never blocks.
func (h *EvalHarness) Run(ciphertext string, v state.MappingVersion, baseline float64) EvalResult {
	var metrics []EvalMetric
	var failReasons []string

	check := func(name string, value float64, pass bool, why string) {
		metrics = append(metrics, EvalMetric{Name: name, Value: value, Pass: pass, Blocking: true})
		if !pass {
			failReasons = append(failReasons, why)
		}
	}

	// 1. Mapping is a bijection
	bijErr := v.Mapping.Validate()
	check("bijection", boolValue(bijErr == nil), bijErr == nil, fmt.Sprintf("mapping: %v", bijErr))

	// 2. One output symbol per input symbol
	lenPass := len(v.Plaintext) == len(ciphertext)
	check("length_preserved", float64(len(v.Plaintext)-len(ciphertext)), lenPass,
		fmt.Sprintf("plaintext length %d != ciphertext length %d", len(v.Plaintext), len(ciphertext)))

	// 3. Score is a real number
	finite := !math.IsNaN(v.Score) && !math.IsInf(v.Score, 0)
	check("score_finite", v.Score, finite, fmt.Sprintf("score %v is not finite", v.Score))

	// 4. Mapping reproduces the plaintext
	applied, applyErr := v.Mapping.Apply(ciphertext)
	consistent := applyErr == nil && applied == v.Plaintext
	check("apply_consistent", boolValue(consistent), consistent, "mapping does not reproduce plaintext")

	// 5. Stored score matches a fresh scoring pass
	if h.model != nil {
		fresh, err := score.Score(v.Plaintext, h.model)
		drift := math.Abs(fresh - v.Score)
		pass := err == nil && drift <= h.config.ScoreTolerance
		check("score_consistent", drift, pass, fmt.Sprintf("score drift %.6g exceeds %.6g", drift, h.config.ScoreTolerance))
	}

	// 6. Improvement over the raw ciphertext: informational only
	gain := v.Score - baseline
	metrics = append(metrics, EvalMetric{
		Name:  "improvement",
		Value: gain,
		Pass:  gain >= h.config.MinImprovement,
	})

	passed := len(failReasons) == 0
	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

// #endregion eval-harness

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
