// Package neighbor proposes the single move type of the search: exchanging
// the plaintext images of two distinct symbols.
package neighbor

import (
	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/cipher"
)

// Source is the randomness the generator needs. *math/rand/v2.Rand
// satisfies it.
type Source interface {
	IntN(n int) int
}

// Move names the two ciphertext symbols whose images are exchanged.
type Move struct {
	A, B uint8
}

// String renders the move as "A<->B".
func (mv Move) String() string {
	return string([]byte{alphabet.Symbol(mv.A), '<', '-', '>', alphabet.Symbol(mv.B)})
}

// Draw picks two distinct symbols uniformly, resampling the second draw
// until it differs from the first.
func Draw(rng Source) Move {
	a := uint8(rng.IntN(alphabet.Size))
	for {
		b := uint8(rng.IntN(alphabet.Size))
		if b != a {
			return Move{A: a, B: b}
		}
	}
}

// Propose returns the neighbor of m reached by a random move.
func Propose(m cipher.Mapping, rng Source) (cipher.Mapping, Move) {
	mv := Draw(rng)
	return m.Swap(mv.A, mv.B), mv
}
