// Package cipher represents a candidate monoalphabetic substitution as a
// bijection over the alphabet and provides the swap primitives used by the
// search and by interactive refinement.
package cipher

import (
	"fmt"
	"strings"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
)

// #region errors

// IncompleteAlphabetError reports a mapping that is not a bijection.
type IncompleteAlphabetError struct {
	Missing    []byte // plaintext symbols no ciphertext symbol maps to
	Duplicates []byte // plaintext symbols hit more than once
}

func (e *IncompleteAlphabetError) Error() string {
	return fmt.Sprintf("mapping is not a bijection: missing %q, duplicated %q",
		string(e.Missing), string(e.Duplicates))
}

// #endregion errors

// #region mapping

// Mapping sends ciphertext symbol index i to plaintext symbol index m[i].
type Mapping [alphabet.Size]uint8

// Identity returns the mapping that leaves every symbol unchanged.
func Identity() Mapping {
	var m Mapping
	for i := range m {
		m[i] = uint8(i)
	}
	return m
}

// Validate checks that m is a total bijection over the alphabet.
func (m Mapping) Validate() error {
	var hits [alphabet.Size]int
	for _, v := range m {
		if int(v) >= alphabet.Size {
			return fmt.Errorf("mapping image %d out of range", v)
		}
		hits[v]++
	}
	var missing, dups []byte
	for s, n := range hits {
		switch {
		case n == 0:
			missing = append(missing, alphabet.Symbol(uint8(s)))
		case n > 1:
			dups = append(dups, alphabet.Symbol(uint8(s)))
		}
	}
	if len(missing) > 0 || len(dups) > 0 {
		return &IncompleteAlphabetError{Missing: missing, Duplicates: dups}
	}
	return nil
}

// Swap returns a copy of m with the images of ciphertext symbols a and b
// exchanged. Swapping a symbol with itself is a no-op.
func (m Mapping) Swap(a, b uint8) Mapping {
	m[a], m[b] = m[b], m[a]
	return m
}

// SwapImages returns a copy of m in which the ciphertext symbols currently
// decoding to plaintext x and y trade places. On the decoded text this
// exchanges every x with y.
func (m Mapping) SwapImages(x, y uint8) Mapping {
	inv := m.Inverse()
	return m.Swap(inv[x], inv[y])
}

// Inverse returns the plaintext -> ciphertext mapping, i.e. the
// encryption key. m must be a bijection.
func (m Mapping) Inverse() Mapping {
	var inv Mapping
	for c, p := range m {
		inv[p] = uint8(c)
	}
	return inv
}

// Apply substitutes every symbol of text through m.
func (m Mapping) Apply(text string) (string, error) {
	idx, err := alphabet.Encode(text)
	if err != nil {
		return "", err
	}
	m.ApplyIndices(idx, idx)
	return alphabet.Decode(idx), nil
}

// ApplyIndices writes m applied to src into dst. dst and src may alias;
// dst must be at least as long as src.
func (m Mapping) ApplyIndices(dst, src []uint8) {
	for i, s := range src {
		dst[i] = m[s]
	}
}

// Key returns the 27 plaintext images in ciphertext alphabet order.
func (m Mapping) Key() string {
	buf := make([]byte, alphabet.Size)
	for i, v := range m {
		buf[i] = alphabet.Symbol(v)
	}
	return string(buf)
}

func (m Mapping) String() string {
	pairs := make([]string, 0, alphabet.Size)
	for i, v := range m {
		pairs = append(pairs, fmt.Sprintf("%c=%c", alphabet.Symbol(uint8(i)), alphabet.Symbol(v)))
	}
	return strings.Join(pairs, " ")
}

// ParseKey reads a key produced by Mapping.Key.
func ParseKey(key string) (Mapping, error) {
	var m Mapping
	if len(key) != alphabet.Size {
		return m, fmt.Errorf("key must have %d symbols, got %d", alphabet.Size, len(key))
	}
	idx, err := alphabet.Encode(key)
	if err != nil {
		return m, fmt.Errorf("parse key: %w", err)
	}
	copy(m[:], idx)
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// #endregion mapping

// #region initial-guess

// InitialGuess matches symbols by frequency rank: the k-th least frequent
// ciphertext symbol maps to the k-th least frequent corpus symbol.
func InitialGuess(ciphertext string, model *corpus.Model) (Mapping, error) {
	idx, err := alphabet.Encode(ciphertext)
	if err != nil {
		return Mapping{}, err
	}
	cipherRank := corpus.RankSymbols(idx)
	corpusRank := model.Rank()

	var m Mapping
	for k := range cipherRank {
		m[cipherRank[k]] = corpusRank[k]
	}
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// #endregion initial-guess

// #region text-swap

// SwapText exchanges every a with b (and b with a) directly in text.
func SwapText(text string, a, b byte) string {
	if a == b {
		return text
	}
	buf := []byte(text)
	for i, c := range buf {
		switch c {
		case a:
			buf[i] = b
		case b:
			buf[i] = a
		}
	}
	return string(buf)
}

// #endregion text-swap
