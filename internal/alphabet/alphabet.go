// Package alphabet defines the fixed 27-symbol alphabet shared by every
// other package: the letters A-Z followed by a space used as word
// separator.
package alphabet

import "fmt"

// #region symbols
const (
	// Size is the number of symbols in the alphabet.
	Size = 27

	// Symbols lists the alphabet in index order.
	Symbols = "ABCDEFGHIJKLMNOPQRSTUVWXYZ "

	// Separator is the word separator, index 26.
	Separator byte = ' '

	// Pairs is the number of ordered symbol pairs (bigrams).
	Pairs = Size * Size
)

var index [256]int8

func init() {
	for i := range index {
		index[i] = -1
	}
	for i := 0; i < Size; i++ {
		index[Symbols[i]] = int8(i)
	}
}

// #endregion symbols

// #region errors

// UnknownSymbolError reports a byte outside the alphabet.
type UnknownSymbolError struct {
	Symbol   byte
	Position int
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q at position %d", e.Symbol, e.Position)
}

// #endregion errors

// #region lookup

// Index returns the alphabet index of c.
func Index(c byte) (uint8, bool) {
	i := index[c]
	if i < 0 {
		return 0, false
	}
	return uint8(i), true
}

// Symbol returns the byte for index i. It panics if i >= Size.
func Symbol(i uint8) byte {
	return Symbols[i]
}

// Valid reports whether c belongs to the alphabet.
func Valid(c byte) bool {
	return index[c] >= 0
}

// Validate returns an *UnknownSymbolError for the first byte of text
// outside the alphabet.
func Validate(text string) error {
	for i := 0; i < len(text); i++ {
		if index[text[i]] < 0 {
			return &UnknownSymbolError{Symbol: text[i], Position: i}
		}
	}
	return nil
}

// Encode converts text to symbol indices.
func Encode(text string) ([]uint8, error) {
	out := make([]uint8, len(text))
	for i := 0; i < len(text); i++ {
		n := index[text[i]]
		if n < 0 {
			return nil, &UnknownSymbolError{Symbol: text[i], Position: i}
		}
		out[i] = uint8(n)
	}
	return out, nil
}

// Decode converts symbol indices back to text.
func Decode(idx []uint8) string {
	buf := make([]byte, len(idx))
	for i, n := range idx {
		buf[i] = Symbols[n]
	}
	return string(buf)
}

// #endregion lookup
