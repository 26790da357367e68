package eval

// #region eval-config
// EvalConfig holds thresholds for validating a decryption before it is
// committed.
type EvalConfig struct {
	ScoreTolerance float64 // max drift between stored and recomputed score
	MinImprovement float64 // informational: expected gain over the raw ciphertext
}

// DefaultEvalConfig returns the default thresholds.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		ScoreTolerance: 1e-6,
		MinImprovement: 0,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name     string
	Value    float64
	Pass     bool
	Blocking bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Metric returns the named metric.
func (r EvalResult) Metric(name string) (EvalMetric, bool) {
	for _, m := range r.Metrics {
		if m.Name == name {
			return m, true
		}
	}
	return EvalMetric{}, false
}

// #endregion eval-result
