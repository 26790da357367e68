// Package anneal runs the Metropolis search over substitution mappings,
// either at a fixed temperature or with a geometric annealing schedule.
package anneal

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/cipher"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/neighbor"
	"github.com/danielpatrickdp/subcrack/internal/score"
)

// #region optimizer

// Optimizer searches for the mapping that maximizes plausibility under a
// model. An Optimizer is not safe for concurrent use because it owns its
// random source; concurrent runs need one Optimizer each and may share the
// model.
type Optimizer struct {
	model     *corpus.Model
	config    Config
	rng       Rand
	observers []Observer
	logger    *slog.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithObserver registers obs for step and finish events.
func WithObserver(obs Observer) Option {
	return func(o *Optimizer) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger sets the logger used for run start/finish records.
func WithLogger(l *slog.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.logger = l
		}
	}
}

// New validates config and returns an Optimizer.
func New(model *corpus.Model, config Config, rng Rand, opts ...Option) (*Optimizer, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: nil model", ErrInvalidConfig)
	}
	if rng == nil {
		return nil, fmt.Errorf("%w: nil random source", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Start == "" {
		config.Start = StartFrequency
	}
	o := &Optimizer{model: model, config: config, rng: rng, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the validated schedule.
func (o *Optimizer) Config() Config { return o.config }

// #endregion optimizer

// #region run

// Run decodes ciphertext starting from the configured initial mapping.
func (o *Optimizer) Run(ctx context.Context, ciphertext string) (Result, error) {
	var start cipher.Mapping
	switch o.config.Start {
	case StartIdentity:
		start = cipher.Identity()
	default:
		m, err := cipher.InitialGuess(ciphertext, o.model)
		if err != nil {
			return Result{}, fmt.Errorf("initial guess: %w", err)
		}
		start = m
	}
	return o.RunFrom(ctx, ciphertext, start)
}

// RunFrom decodes ciphertext starting from start. The context is checked
// at the top of every iteration; a cancelled run returns the state reached
// so far with Cancelled set.
func (o *Optimizer) RunFrom(ctx context.Context, ciphertext string, start cipher.Mapping) (Result, error) {
	idx, err := alphabet.Encode(ciphertext)
	if err != nil {
		return Result{}, err
	}
	if err := start.Validate(); err != nil {
		return Result{}, err
	}

	// Init
	buf := make([]uint8, len(idx))
	st := SearchState{
		Mapping:     start,
		Temperature: o.config.InitialTemperature,
		Phase:       PhaseInit,
	}
	st.Mapping.ApplyIndices(buf, idx)
	st.Score = score.ScoreIndices(buf, o.model)

	res := Result{
		InitialMapping:  start,
		InitialScore:    st.Score,
		CiphertextScore: score.ScoreIndices(idx, o.model),
	}
	var best Snapshot
	if o.config.TrackBest {
		best = Snapshot{Mapping: st.Mapping, Score: st.Score}
	}

	annealing := o.config.Mode == ModeAnnealing
	ratio := CoolingRatio(o.config)

	o.logger.Debug("anneal run start",
		"mode", o.config.Mode,
		"iterations", o.config.Iterations,
		"temperature", st.Temperature,
		"initial_score", st.Score,
		"length", len(idx),
	)

	for n := 0; n < o.config.Iterations; n++ {
		if ctx.Err() != nil {
			res.Cancelled = true
			break
		}

		st.Phase = PhaseIterate
		if annealing && n%o.config.CoolingInterval == 0 {
			st.Phase = PhaseCool
			st.Temperature *= ratio
		}

		cand, mv := neighbor.Propose(st.Mapping, o.rng)
		cand.ApplyIndices(buf, idx)
		candScore := score.ScoreIndices(buf, o.model)

		prev := st.Score
		d := Decide(prev, candScore, st.Temperature, o.rng)
		if d.Accepted {
			st.Mapping = cand
			st.Score = candScore
			res.Accepted++
			if o.config.TrackBest && candScore > best.Score {
				best = Snapshot{Mapping: cand, Score: candScore, Iteration: n + 1}
			}
		} else {
			res.Rejected++
		}
		st.Iteration = n + 1

		for _, obs := range o.observers {
			obs.OnStep(Step{
				Iteration:   st.Iteration,
				Phase:       st.Phase,
				Temperature: st.Temperature,
				Move:        mv,
				Current:     prev,
				Candidate:   candScore,
				Decision:    d,
			})
		}
	}

	// Terminate
	st.Phase = PhaseTerminate
	st.Mapping.ApplyIndices(buf, idx)
	res.Mapping = st.Mapping
	res.Plaintext = alphabet.Decode(buf)
	res.Score = st.Score
	res.Iterations = st.Iteration
	res.FinalTemperature = st.Temperature
	if o.config.TrackBest {
		best.Mapping.ApplyIndices(buf, idx)
		best.Plaintext = alphabet.Decode(buf)
		res.Best = &best
	}

	o.logger.Debug("anneal run finish",
		"iterations", res.Iterations,
		"accepted", res.Accepted,
		"rejected", res.Rejected,
		"score", res.Score,
		"temperature", res.FinalTemperature,
		"cancelled", res.Cancelled,
	)
	for _, obs := range o.observers {
		obs.OnFinish(res)
	}
	return res, nil
}

// #endregion run
