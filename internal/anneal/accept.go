package anneal

import "math"

// #region decision

// Decision is the Metropolis verdict on a single proposal.
type Decision struct {
	Accepted    bool
	Delta       float64 // candidate - current
	Probability float64 // acceptance probability used
}

// Action returns "accept" or "reject".
func (d Decision) Action() string {
	if d.Accepted {
		return "accept"
	}
	return "reject"
}

// #endregion decision

// #region metropolis

// AcceptProbability is the Metropolis criterion: 1 for an improving move,
// exp(delta/T) otherwise. At T <= 0 only improving moves are accepted.
func AcceptProbability(delta, temperature float64) float64 {
	if delta > 0 {
		return 1
	}
	if temperature <= 0 {
		return 0
	}
	return math.Exp(delta / temperature)
}

// Uniform draws from [0, 1).
type Uniform interface {
	Float64() float64
}

// Decide applies the Metropolis criterion. A uniform value is drawn only
// for non-improving moves; the move is accepted iff the draw is <= the
// acceptance probability.
func Decide(current, candidate, temperature float64, u Uniform) Decision {
	delta := candidate - current
	if candidate > current {
		return Decision{Accepted: true, Delta: delta, Probability: 1}
	}
	p := AcceptProbability(delta, temperature)
	d := Decision{Delta: delta, Probability: p}
	if p > 0 && u.Float64() <= p {
		d.Accepted = true
	}
	return d
}

// #endregion metropolis
