package replay

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/cipher"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/eval"
	"github.com/danielpatrickdp/subcrack/internal/refine"
	"github.com/danielpatrickdp/subcrack/internal/score"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region types

// Check compares one recorded value with its replayed counterpart.
type Check struct {
	Name     string
	Expected string
	Replayed string
	Match    bool
}

// ReplayResult captures the outcome of replaying a fixture.
type ReplayResult struct {
	Run     anneal.Result
	Refined refine.Result
	Eval    eval.EvalResult
	Checks  []Check
}

// ReplaySummary provides aggregate stats over checks.
type ReplaySummary struct {
	Total   int
	Matches int
	Diverge int
}

// #endregion types

// #region replay

// Replay re-runs the fixture's seeded optimizer and scripted swaps against
// model and compares every recorded value. The final state is also run
// through the eval harness.
func Replay(ctx context.Context, model *corpus.Model, f *Fixture) (ReplayResult, error) {
	opt, err := anneal.New(model, f.Config, anneal.NewRand(f.Seed))
	if err != nil {
		return ReplayResult{}, fmt.Errorf("optimizer: %w", err)
	}
	run, err := opt.Run(ctx, f.Ciphertext)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("run: %w", err)
	}

	pairs, err := f.Pairs()
	if err != nil {
		return ReplayResult{}, err
	}
	refined, err := refine.New(nil).Apply(ctx, run.Plaintext, run.Mapping, pairs)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("refine: %w", err)
	}

	finalScore, err := score.Score(refined.Text, model)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("score refined: %w", err)
	}
	h := eval.NewEvalHarness(eval.DefaultEvalConfig(), model)
	ev := h.Run(f.Ciphertext, state.MappingVersion{
		Mapping:   refined.Mapping,
		Plaintext: refined.Text,
		Score:     finalScore,
	}, run.CiphertextScore)

	res := ReplayResult{Run: run, Refined: refined, Eval: ev}
	exp := f.Expected
	res.compare("key", exp.Key, run.Mapping.Key())
	res.compare("plaintext", exp.Plaintext, run.Plaintext)
	if exp.Score != nil {
		res.compare("score", formatScore(*exp.Score), formatScore(run.Score))
	}
	res.compare("refined_key", exp.RefinedKey, refined.Mapping.Key())
	res.compare("refined_text", exp.RefinedText, refined.Text)
	res.Checks = append(res.Checks, Check{
		Name:     "eval",
		Expected: "pass",
		Replayed: passFail(ev.Passed),
		Match:    ev.Passed,
	})
	return res, nil
}

func (r *ReplayResult) compare(name, expected, replayed string) {
	if expected == "" {
		return
	}
	r.Checks = append(r.Checks, Check{
		Name:     name,
		Expected: expected,
		Replayed: replayed,
		Match:    expected == replayed,
	})
}

// Record fills f.Expected from a replay result, turning a fresh run into
// a regression fixture.
func Record(f *Fixture, r ReplayResult) {
	s := r.Run.Score
	f.Expected = FixtureExpected{
		Key:       r.Run.Mapping.Key(),
		Plaintext: r.Run.Plaintext,
		Score:     &s,
	}
	if len(f.Swaps) > 0 {
		f.Expected.RefinedKey = r.Refined.Mapping.Key()
		f.Expected.RefinedText = r.Refined.Text
	}
}

// Summarize computes aggregate stats from checks.
func Summarize(checks []Check) ReplaySummary {
	s := ReplaySummary{Total: len(checks)}
	for _, c := range checks {
		if c.Match {
			s.Matches++
		}
	}
	s.Diverge = s.Total - s.Matches
	return s
}

// #endregion replay

// #region chain

// ChainCheck is the verdict on one stored mapping version.
type ChainCheck struct {
	VersionID string
	Source    state.Source
	Checks    []Check
}

// OK reports whether every check on the version matched.
func (c ChainCheck) OK() bool {
	for _, ch := range c.Checks {
		if !ch.Match {
			return false
		}
	}
	return true
}

// VerifyChain re-derives every stored version of a session: the mapping
// must reproduce the stored plaintext and score, and a refine version must
// differ from its parent by exactly one exchange of plaintext images.
func VerifyChain(store *state.Store, model *corpus.Model, sessionID string) ([]ChainCheck, error) {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	versions, err := store.ListVersions(sessionID, 0)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]state.MappingVersion, len(versions))
	for _, v := range versions {
		byID[v.VersionID] = v
	}

	out := make([]ChainCheck, 0, len(versions))
	for _, v := range versions {
		cc := ChainCheck{VersionID: v.VersionID, Source: v.Source}

		applied, err := v.Mapping.Apply(sess.Ciphertext)
		if err != nil {
			return nil, fmt.Errorf("apply %s: %w", v.VersionID, err)
		}
		cc.Checks = append(cc.Checks, Check{
			Name: "plaintext", Expected: v.Plaintext, Replayed: applied, Match: applied == v.Plaintext,
		})

		if model != nil {
			s, err := score.Score(applied, model)
			if err != nil {
				return nil, fmt.Errorf("score %s: %w", v.VersionID, err)
			}
			cc.Checks = append(cc.Checks, Check{
				Name:     "score",
				Expected: formatScore(v.Score),
				Replayed: formatScore(s),
				Match:    formatScore(s) == formatScore(v.Score),
			})
		}

		if v.Source == state.SourceRefine {
			parent, ok := byID[v.ParentID]
			match := ok && oneExchange(parent.Mapping, v.Mapping)
			cc.Checks = append(cc.Checks, Check{
				Name: "parent_link", Expected: "one swap", Replayed: describeLink(ok, parent.Mapping, v.Mapping), Match: match,
			})
		}
		out = append(out, cc)
	}
	return out, nil
}

// oneExchange reports whether b equals a with the images of exactly two
// ciphertext symbols exchanged, or equals a (a self-swap).
func oneExchange(a, b cipher.Mapping) bool {
	var diff []int
	for i := range a {
		if a[i] != b[i] {
			diff = append(diff, i)
		}
	}
	switch len(diff) {
	case 0:
		return true
	case 2:
		return a[diff[0]] == b[diff[1]] && a[diff[1]] == b[diff[0]]
	}
	return false
}

func describeLink(parentFound bool, a, b cipher.Mapping) string {
	if !parentFound {
		return "missing parent"
	}
	if oneExchange(a, b) {
		return "one swap"
	}
	n := 0
	for i := range a {
		if a[i] != b[i] {
			n++
		}
	}
	return fmt.Sprintf("%d symbols changed", n)
}

// #endregion chain

func formatScore(s float64) string { return fmt.Sprintf("%.6f", s) }

func passFail(ok bool) string {
	if ok {
		return "pass"
	}
	return "fail"
}
