package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/refine"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture: a seeded
// optimizer run followed by scripted swaps, with the outcome it produced.
type Fixture struct {
	Description string          `json:"description"`
	Language    string          `json:"language"`
	Corpus      string          `json:"corpus,omitempty"`      // raw reference text
	CorpusPath  string          `json:"corpus_path,omitempty"` // used when Corpus is empty
	Ciphertext  string          `json:"ciphertext"`
	Seed        uint64          `json:"seed"`
	Config      anneal.Config   `json:"config"`
	Swaps       []FixtureSwap   `json:"swaps"`
	Expected    FixtureExpected `json:"expected"`
}

// FixtureSwap is one scripted refinement step.
type FixtureSwap struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// FixtureExpected holds the recorded outcome. Empty fields are not
// compared.
type FixtureExpected struct {
	Key         string   `json:"key,omitempty"`
	Plaintext   string   `json:"plaintext,omitempty"`
	Score       *float64 `json:"score,omitempty"`
	RefinedKey  string   `json:"refined_key,omitempty"`
	RefinedText string   `json:"refined_text,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes f as indented JSON.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// Model builds the fixture's reference model from Corpus or CorpusPath.
func (f *Fixture) Model() (*corpus.Model, error) {
	if f.Corpus != "" {
		return corpus.Build(corpus.Clean(f.Corpus))
	}
	if f.CorpusPath != "" {
		return corpus.LoadFile(f.CorpusPath)
	}
	return nil, fmt.Errorf("fixture %q has no corpus", f.Description)
}

// Pairs converts the scripted swaps to refine pairs.
func (f *Fixture) Pairs() ([]refine.Pair, error) {
	pairs := make([]refine.Pair, 0, len(f.Swaps))
	for i, s := range f.Swaps {
		from, err := refine.ParseSymbol(s.From)
		if err != nil {
			return nil, fmt.Errorf("swap %d: %w", i, err)
		}
		to, err := refine.ParseSymbol(s.To)
		if err != nil {
			return nil, fmt.Errorf("swap %d: %w", i, err)
		}
		pairs = append(pairs, refine.Pair{From: from, To: to})
	}
	return pairs, nil
}

// #endregion fixture-loader
