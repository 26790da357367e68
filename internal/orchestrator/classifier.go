package orchestrator

import "github.com/danielpatrickdp/subcrack/internal/alphabet"

// #region classify

// ClassifyCiphertext buckets a ciphertext by length and symbol coverage.
// Symbols outside the alphabet are ignored.
func ClassifyCiphertext(language, ciphertext string) Classification {
	var seen [alphabet.Size]bool
	distinct, n := 0, 0
	for i := 0; i < len(ciphertext); i++ {
		idx, ok := alphabet.Index(ciphertext[i])
		if !ok {
			continue
		}
		n++
		if !seen[idx] {
			seen[idx] = true
			distinct++
		}
	}

	class := Classification{Language: language, Length: LengthLong, Coverage: CoverageFull}
	switch {
	case n < 100:
		class.Length = LengthShort
	case n < 1000:
		class.Length = LengthModerate
	}
	if distinct < 20 {
		class.Coverage = CoverageSparse
	}
	return class
}

// #endregion
