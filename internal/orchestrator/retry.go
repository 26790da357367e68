package orchestrator

// RetryEngine decides whether a failed attempt earns a restart. At most
// maxRetries restarts follow the first attempt; maxRetries <= 0 disables
// them.
type RetryEngine struct {
	selector   *StrategySelector
	maxRetries int
}

func NewRetryEngine(selector *StrategySelector, maxRetries int) *RetryEngine {
	return &RetryEngine{selector: selector, maxRetries: maxRetries}
}

// ShouldRetry inspects the last of attempts and returns the strategy for
// the next one, or false when the budget is spent, the attempt is
// acceptable, or every strategy has been tried.
func (r *RetryEngine) ShouldRetry(attempts []Attempt) (bool, *StrategyConfig) {
	n := len(attempts)
	if n == 0 || n > r.maxRetries || !attempts[n-1].Evaluation.ShouldRetry {
		return false, nil
	}

	tried := make([]StrategyID, n)
	for i, a := range attempts {
		tried[i] = a.Strategy
	}
	next := r.selector.SelectRetry(attempts[n-1].Evaluation.FailureType, tried)
	return next != nil, next
}
