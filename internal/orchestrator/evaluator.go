package orchestrator

import "github.com/danielpatrickdp/subcrack/internal/anneal"

// #region thresholds

const (
	minAcceptanceRate = 0.002
	maxAcceptanceRate = 0.9
)

// #endregion

// #region evaluate

// EvaluateRun judges a finished run on a ciphertext of length symbols.
// Quality is the score gain over the untouched ciphertext per bigram, so
// runs on texts of different lengths compare.
func EvaluateRun(res anneal.Result, length int) RunEvaluation {
	bigrams := length - 1
	if bigrams < 1 {
		bigrams = 1
	}
	ev := RunEvaluation{
		Quality:     (res.Score - res.CiphertextScore) / float64(bigrams),
		FailureType: FailureNone,
	}
	if res.Iterations > 0 {
		ev.AcceptanceRate = float64(res.Accepted) / float64(res.Iterations)
	}

	switch {
	case res.Cancelled:
		ev.FailureType = FailureCancelled
	case length < 2:
		// nothing to score
	case res.Score <= res.CiphertextScore:
		ev.FailureType = FailureNoImprovement
		ev.ShouldRetry = true
	case ev.AcceptanceRate < minAcceptanceRate:
		ev.FailureType = FailureStalled
		ev.ShouldRetry = true
	case ev.AcceptanceRate > maxAcceptanceRate:
		ev.FailureType = FailureChurning
		ev.ShouldRetry = true
	}
	return ev
}

// #endregion
