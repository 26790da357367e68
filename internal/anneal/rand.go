package anneal

import "math/rand/v2"

// Rand is the randomness a run consumes: symbol draws and acceptance draws.
// *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
	Float64() float64
}

// NewRand returns a deterministic generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}
