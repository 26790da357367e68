// Package corpus builds the bigram language model used to score candidate
// decryptions. A Model is immutable once built and may be shared by any
// number of concurrent readers.
package corpus

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
)

// #region errors

// InvalidCorpusError reports a corpus that cannot seed a model.
type InvalidCorpusError struct {
	Reason  string
	Missing []byte // symbols with zero occurrences, if any
}

func (e *InvalidCorpusError) Error() string {
	if len(e.Missing) == 0 {
		return "invalid corpus: " + e.Reason
	}
	return fmt.Sprintf("invalid corpus: %s (missing %q)", e.Reason, string(e.Missing))
}

// #endregion errors

// #region model

// Model holds unigram and bigram counts of a reference text together with
// the derived log-likelihood table log p(second | first).
type Model struct {
	length  int
	unigram [alphabet.Size]int
	bigram  [alphabet.Size][alphabet.Size]int
	logLik  [alphabet.Size][alphabet.Size]float64
	rank    [alphabet.Size]uint8
}

// Build counts every symbol and adjacent pair of text and derives
// p(j|i) = (count(i,j)+1) / count(i) for all 729 pairs. Text must be
// non-empty and contain every alphabet symbol at least once.
func Build(text string) (*Model, error) {
	if len(text) == 0 {
		return nil, &InvalidCorpusError{Reason: "empty corpus"}
	}
	idx, err := alphabet.Encode(text)
	if err != nil {
		return nil, fmt.Errorf("encode corpus: %w", err)
	}

	m := &Model{length: len(idx)}
	for _, s := range idx {
		m.unigram[s]++
	}
	for i := 0; i+1 < len(idx); i++ {
		m.bigram[idx[i]][idx[i+1]]++
	}

	var missing []byte
	for s, n := range m.unigram {
		if n == 0 {
			missing = append(missing, alphabet.Symbol(uint8(s)))
		}
	}
	if len(missing) > 0 {
		return nil, &InvalidCorpusError{
			Reason:  fmt.Sprintf("corpus covers %d of %d symbols", alphabet.Size-len(missing), alphabet.Size),
			Missing: missing,
		}
	}

	// Unseen pairs get 1/count(i), which is the same formula with a zero
	// bigram count.
	for i := 0; i < alphabet.Size; i++ {
		denom := float64(m.unigram[i])
		for j := 0; j < alphabet.Size; j++ {
			m.logLik[i][j] = math.Log(float64(m.bigram[i][j]+1) / denom)
		}
	}

	copy(m.rank[:], RankSymbols(idx))
	return m, nil
}

// Len returns the number of symbols in the reference text.
func (m *Model) Len() int { return m.length }

// Unigram returns the occurrence count of symbol index s.
func (m *Model) Unigram(s uint8) int { return m.unigram[s] }

// Bigram returns the occurrence count of the pair (a, b).
func (m *Model) Bigram(a, b uint8) int { return m.bigram[a][b] }

// LogLikelihood returns log p(b | a).
func (m *Model) LogLikelihood(a, b uint8) float64 { return m.logLik[a][b] }

// Table returns a copy of the full log-likelihood table.
func (m *Model) Table() [alphabet.Size][alphabet.Size]float64 { return m.logLik }

// Rank returns the corpus symbols in ascending order of frequency.
func (m *Model) Rank() []uint8 {
	out := make([]uint8, alphabet.Size)
	copy(out, m.rank[:])
	return out
}

// #endregion model

// #region ranking

// RankSymbols orders all 27 symbol indices by ascending count in idx.
// Ties keep the order of first observation; symbols that never occur are
// appended in alphabet order with count zero before sorting.
func RankSymbols(idx []uint8) []uint8 {
	var counts [alphabet.Size]int
	var seen [alphabet.Size]bool
	order := make([]uint8, 0, alphabet.Size)

	for _, s := range idx {
		counts[s]++
		if !seen[s] {
			seen[s] = true
			order = append(order, s)
		}
	}
	for s := uint8(0); s < alphabet.Size; s++ {
		if !seen[s] {
			order = append(order, s)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] < counts[order[j]]
	})
	return order
}

// #endregion ranking

// #region stats

// BigramStat is a single row of TopBigrams.
type BigramStat struct {
	Pair          string
	Count         int
	LogLikelihood float64
}

// TopBigrams returns the n most frequent pairs, most frequent first.
func (m *Model) TopBigrams(n int) []BigramStat {
	stats := make([]BigramStat, 0, alphabet.Pairs)
	for i := uint8(0); i < alphabet.Size; i++ {
		for j := uint8(0); j < alphabet.Size; j++ {
			stats = append(stats, BigramStat{
				Pair:          string([]byte{alphabet.Symbol(i), alphabet.Symbol(j)}),
				Count:         m.bigram[i][j],
				LogLikelihood: m.logLik[i][j],
			})
		}
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Count > stats[j].Count })
	if n > 0 && n < len(stats) {
		stats = stats[:n]
	}
	return stats
}

// FrequencyString renders the unigram percentages in descending order.
func (m *Model) FrequencyString() string {
	order := m.Rank()
	var b strings.Builder
	for i := len(order) - 1; i >= 0; i-- {
		s := order[i]
		pct := 100 * float64(m.unigram[s]) / float64(m.length)
		fmt.Fprintf(&b, "%c %4.2f  ", alphabet.Symbol(s), pct)
	}
	return strings.TrimRight(b.String(), " ")
}

// #endregion stats
