// Package score computes the plausibility of a candidate decryption: the
// sum of bigram log-likelihoods under a reference-language model.
package score

import (
	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
)

// Score returns the plausibility of text under m. Texts shorter than two
// symbols score 0.
func Score(text string, m *corpus.Model) (float64, error) {
	idx, err := alphabet.Encode(text)
	if err != nil {
		return 0, err
	}
	return ScoreIndices(idx, m), nil
}

// ScoreIndices is Score over pre-encoded symbol indices.
func ScoreIndices(idx []uint8, m *corpus.Model) float64 {
	var total float64
	for i := 0; i+1 < len(idx); i++ {
		total += m.LogLikelihood(idx[i], idx[i+1])
	}
	return total
}

// Engine binds a model so callers can pass a scorer around.
type Engine struct {
	model *corpus.Model
}

// NewEngine returns an Engine scoring against m.
func NewEngine(m *corpus.Model) *Engine {
	return &Engine{model: m}
}

// Score scores text against the bound model.
func (e *Engine) Score(text string) (float64, error) {
	return Score(text, e.model)
}

// Model returns the bound model.
func (e *Engine) Model() *corpus.Model {
	return e.model
}
