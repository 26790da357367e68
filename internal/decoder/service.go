// Package decoder ties the optimizer, refiner and session store into the
// operations the command line and gRPC server expose.
package decoder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/subcrack/internal/alphabet"
	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/cipher"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/eval"
	"github.com/danielpatrickdp/subcrack/internal/logging"
	"github.com/danielpatrickdp/subcrack/internal/metrics"
	"github.com/danielpatrickdp/subcrack/internal/orchestrator"
	"github.com/danielpatrickdp/subcrack/internal/score"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region errors

var (
	// ErrNoStore is returned by operations that need persistence when the
	// service was built without a store.
	ErrNoStore = errors.New("decoder: no session store configured")

	// ErrEvalFailed is returned when a decryption fails a blocking check.
	ErrEvalFailed = errors.New("decoder: validation failed")
)

// #endregion errors

// #region service

// Service decodes ciphertexts against the registered language models.
// It is safe for concurrent use; each run owns its optimizer and random
// source while sharing the read-only models.
type Service struct {
	registry     *corpus.Registry
	config       anneal.Config
	evalConfig   eval.EvalConfig
	store        *state.Store
	metrics      *metrics.Metrics
	orchestrator *orchestrator.Orchestrator
	logger       *slog.Logger
	tracer       trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the schedule used when a request carries none.
func WithConfig(cfg anneal.Config) Option { return func(s *Service) { s.config = cfg } }

// WithEvalConfig sets the validation thresholds.
func WithEvalConfig(cfg eval.EvalConfig) Option { return func(s *Service) { s.evalConfig = cfg } }

// WithStore enables persistence of sessions and versions.
func WithStore(st *state.Store) Option { return func(s *Service) { s.store = st } }

// WithMetrics records run and refinement metrics.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// WithOrchestrator enables restarts with alternative strategies.
func WithOrchestrator(o *orchestrator.Orchestrator) Option {
	return func(s *Service) { s.orchestrator = o }
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracer sets the tracer. The global provider is used otherwise.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// New builds a Service over registry.
func New(registry *corpus.Registry, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, errors.New("decoder: nil registry")
	}
	s := &Service{
		registry:   registry,
		config:     anneal.DefaultConfig(),
		evalConfig: eval.DefaultEvalConfig(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("subcrack.decoder"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.config.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Languages lists the registered languages.
func (s *Service) Languages() []string { return s.registry.Languages() }

// Config returns the schedule used when a request carries none.
func (s *Service) Config() anneal.Config { return s.config }

// Store returns the session store, or nil.
func (s *Service) Store() *state.Store { return s.store }

// #endregion service

// #region types

// Request is one ciphertext to decode.
type Request struct {
	Ciphertext string
	Language   string
	Seed       uint64         // 0 draws a fresh seed
	Config     *anneal.Config // nil uses the service schedule
	Persist    bool
}

// Response is the accepted decryption of a Request.
type Response struct {
	SessionID       string
	VersionID       string
	Language        string
	Seed            uint64
	Plaintext       string
	Mapping         cipher.Mapping
	Score           float64
	CiphertextScore float64
	Eval            eval.EvalResult
	Result          anneal.Result
	Attempts        []orchestrator.Attempt
}

// Key returns the decryption key of the accepted mapping.
func (r Response) Key() string { return r.Mapping.Key() }

// #endregion types

// #region decode

// Decode runs the optimizer on req. With an orchestrator attached a failed
// run is restarted under another strategy and the best attempt wins. A
// cancelled context ends the current attempt early and its state is
// returned without error.
func (s *Service) Decode(ctx context.Context, req Request) (Response, error) {
	return s.traced(ctx, req, req.Persist)
}

// traced decodes req under a span. persist false leaves storage to the
// caller even when req.Persist is set.
func (s *Service) traced(ctx context.Context, req Request, persist bool) (Response, error) {
	ctx, span := s.tracer.Start(ctx, "decoder.Decode",
		trace.WithAttributes(
			attribute.String("decoder.language", req.Language),
			attribute.Int("decoder.ciphertext_len", len(req.Ciphertext)),
		),
	)
	defer span.End()

	resp, err := s.decode(ctx, req)
	if err == nil && persist {
		err = s.commit(&resp, req)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return resp, err
	}
	span.SetAttributes(
		attribute.Int64("decoder.seed", int64(resp.Seed)),
		attribute.Float64("decoder.score", resp.Score),
		attribute.Int("decoder.attempts", len(resp.Attempts)),
		attribute.Bool("decoder.cancelled", resp.Result.Cancelled),
	)
	return resp, nil
}

func (s *Service) decode(ctx context.Context, req Request) (Response, error) {
	if req.Persist && s.store == nil {
		return Response{}, ErrNoStore
	}
	model, err := s.registry.Get(req.Language)
	if err != nil {
		return Response{}, err
	}
	if err := alphabet.Validate(req.Ciphertext); err != nil {
		return Response{}, err
	}

	base := s.config
	if req.Config != nil {
		base = *req.Config
	}
	seed := req.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	orch := s.orchestrator
	strategy := orchestrator.Strategies[orchestrator.StrategyDefault]
	if orch != nil {
		strategy = orch.PreRun(req.Language, req.Ciphertext).Strategy
	}

	var attempts []orchestrator.Attempt
	for {
		attemptSeed := seed + uint64(len(attempts))
		res, err := s.runAttempt(ctx, model, req, strategy.Apply(base), attemptSeed)
		if err != nil {
			return Response{}, err
		}
		attempts = append(attempts, orchestrator.Attempt{Strategy: strategy.ID, Seed: attemptSeed, Result: res})
		if res.Cancelled || orch == nil {
			attempts[len(attempts)-1].Evaluation = orchestrator.EvaluateRun(res, len(req.Ciphertext))
			break
		}
		post := orch.PostRun(len(req.Ciphertext), attempts)
		if post.Accept {
			break
		}
		strategy = *post.NextStrategy
	}

	bestIdx := orchestrator.Best(attempts)
	best := attempts[bestIdx]
	resp := Response{
		Language:        req.Language,
		Seed:            best.Seed,
		Plaintext:       best.Result.Plaintext,
		Mapping:         best.Result.Mapping,
		Score:           best.Result.Score,
		CiphertextScore: best.Result.CiphertextScore,
		Result:          best.Result,
		Attempts:        attempts,
	}

	candidate := state.MappingVersion{
		Mapping:   resp.Mapping,
		Plaintext: resp.Plaintext,
		Score:     resp.Score,
		Source:    state.SourceOptimizer,
	}
	resp.Eval = eval.NewEvalHarness(s.evalConfig, model).Run(req.Ciphertext, candidate, resp.CiphertextScore)
	if !resp.Eval.Passed {
		for _, m := range resp.Eval.Metrics {
			if m.Blocking && !m.Pass && s.metrics != nil {
				s.metrics.EvalFailure(m.Name)
			}
		}
		s.logger.Warn("decode rejected", "language", req.Language, "reason", resp.Eval.Reason)
		return resp, fmt.Errorf("%w: %s", ErrEvalFailed, resp.Eval.Reason)
	}

	s.logger.Info("decode complete",
		"language", req.Language,
		"score", resp.Score,
		"ciphertext_score", resp.CiphertextScore,
		"attempts", len(attempts),
		"cancelled", resp.Result.Cancelled,
	)
	return resp, nil
}

func (s *Service) runAttempt(ctx context.Context, model *corpus.Model, req Request, cfg anneal.Config, seed uint64) (anneal.Result, error) {
	ctx, span := s.tracer.Start(ctx, "decoder.attempt",
		trace.WithAttributes(
			attribute.Int64("anneal.seed", int64(seed)),
			attribute.String("anneal.mode", string(cfg.Mode)),
			attribute.Int("anneal.iterations", cfg.Iterations),
		),
	)
	defer span.End()

	opts := []anneal.Option{anneal.WithLogger(s.logger)}
	if s.metrics != nil {
		opts = append(opts, anneal.WithObserver(s.metrics.Observer(req.Language)))
	}
	opt, err := anneal.New(model, cfg, anneal.NewRand(seed), opts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return anneal.Result{}, err
	}

	start := time.Now()
	res, err := opt.Run(ctx, req.Ciphertext)
	if s.metrics != nil {
		s.metrics.ObserveDuration(req.Language, time.Since(start))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return anneal.Result{}, err
	}
	span.SetAttributes(
		attribute.Float64("anneal.score", res.Score),
		attribute.Int("anneal.accepted", res.Accepted),
	)
	return res, nil
}

// #endregion decode

// #region persist

// commit stores the session, the initial guess and the accepted end state
// of a decoded response in one transaction, then records the attempt
// outcomes for strategy learning.
func (s *Service) commit(resp *Response, req Request) error {
	bestIdx := orchestrator.Best(resp.Attempts)
	best := resp.Attempts[bestIdx]
	base := s.config
	if req.Config != nil {
		base = *req.Config
	}
	res := best.Result

	initialText, err := res.InitialMapping.Apply(req.Ciphertext)
	if err != nil {
		return err
	}
	detail, err := logging.Detail(runRecord(req, best, base))
	if err != nil {
		return err
	}
	reason := "accepted"
	if res.Cancelled {
		reason = "cancelled"
	}

	var sess state.Session
	var final state.MappingVersion
	err = s.store.Update(func(tx *state.Tx) error {
		var err error
		if sess, err = tx.CreateSession(req.Language, req.Ciphertext); err != nil {
			return err
		}
		initial, err := tx.CommitVersion(state.MappingVersion{
			SessionID: sess.SessionID,
			Mapping:   res.InitialMapping,
			Plaintext: initialText,
			Score:     res.InitialScore,
			Source:    state.SourceInitial,
		})
		if err != nil {
			return err
		}
		final, err = tx.CommitVersion(state.MappingVersion{
			SessionID: sess.SessionID,
			ParentID:  initial.VersionID,
			Mapping:   res.Mapping,
			Plaintext: res.Plaintext,
			Score:     res.Score,
			Source:    state.SourceOptimizer,
		})
		if err != nil {
			return err
		}
		return logging.LogDecision(tx, logging.ProvenanceEntry{
			SessionID:   sess.SessionID,
			VersionID:   final.VersionID,
			ContextHash: sess.CiphertextHash,
			TriggerType: logging.TriggerDecodeRun,
			DetailJSON:  detail,
			Decision:    "commit",
			Reason:      reason,
		})
	})
	if err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	resp.SessionID = sess.SessionID
	resp.VersionID = final.VersionID
	if s.orchestrator != nil {
		class := orchestrator.ClassifyCiphertext(req.Language, req.Ciphertext)
		s.orchestrator.RecordFinalOutcome(resp.SessionID, class, resp.Attempts, bestIdx)
	}
	s.logger.Info("session stored", "session_id", resp.SessionID, "version_id", resp.VersionID, "reason", reason)
	return nil
}

func runRecord(req Request, best orchestrator.Attempt, base anneal.Config) logging.RunRecord {
	cfg := orchestrator.Strategies[best.Strategy].Apply(base)
	if cfg.Start == "" {
		cfg.Start = anneal.StartFrequency
	}
	res := best.Result
	rec := logging.RunRecord{
		Language:   req.Language,
		Ciphertext: req.Ciphertext,
		Seed:       best.Seed,
		Schedule: logging.RunSchedule{
			Mode:               string(cfg.Mode),
			Iterations:         cfg.Iterations,
			InitialTemperature: cfg.InitialTemperature,
			FloorTemperature:   cfg.FloorTemperature,
			CoolingInterval:    cfg.CoolingInterval,
			Start:              string(cfg.Start),
			TrackBest:          cfg.TrackBest,
		},
		InitialKey:   res.InitialMapping.Key(),
		InitialScore: res.InitialScore,
		Key:          res.Mapping.Key(),
		Plaintext:    res.Plaintext,
		Score:        res.Score,
		Iterations:   res.Iterations,
		Accepted:     res.Accepted,
		Rejected:     res.Rejected,
		Cancelled:    res.Cancelled,
	}
	if res.Best != nil {
		rec.BestScore = res.Best.Score
		rec.BestKey = res.Best.Mapping.Key()
	}
	return rec
}

// #endregion persist

// #region decode-all

// DecodeAll decodes reqs concurrently with at most limit runs in flight.
// Responses are returned in request order. The first error cancels the
// remaining runs, and nothing is stored unless every request succeeded.
func (s *Service) DecodeAll(ctx context.Context, reqs []Request, limit int) ([]Response, error) {
	ctx, span := s.tracer.Start(ctx, "decoder.DecodeAll",
		trace.WithAttributes(
			attribute.Int("decoder.requests", len(reqs)),
			attribute.Int("decoder.limit", limit),
		),
	)
	defer span.End()

	fail := func(err error) ([]Response, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out := make([]Response, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			resp, err := s.traced(gctx, req, false)
			if err != nil {
				return fmt.Errorf("request %d: %w", i, err)
			}
			out[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	for i, req := range reqs {
		if !req.Persist {
			continue
		}
		if err := s.commit(&out[i], req); err != nil {
			return fail(fmt.Errorf("request %d: %w", i, err))
		}
	}
	return out, nil
}

// #endregion decode-all

// #region score

// Score scores text under language.
func (s *Service) Score(language, text string) (float64, error) {
	model, err := s.registry.Get(language)
	if err != nil {
		return 0, err
	}
	return score.Score(text, model)
}

// #endregion score
