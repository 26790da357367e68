package decoder

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/danielpatrickdp/subcrack/internal/cipher"
	"github.com/danielpatrickdp/subcrack/internal/logging"
	"github.com/danielpatrickdp/subcrack/internal/refine"
	"github.com/danielpatrickdp/subcrack/internal/score"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// #region refine

// Refine runs an interactive refinement on the session's active version.
// Every applied swap is committed as a new version before the next prompt.
func (s *Service) Refine(ctx context.Context, sessionID string, p refine.Prompter, opts ...refine.Option) (refine.Result, error) {
	if p == nil {
		return refine.Result{}, fmt.Errorf("decoder: nil prompter")
	}
	return s.refine(ctx, sessionID, p, func(ctx context.Context, r *refine.Refiner, text string, m cipher.Mapping) (refine.Result, error) {
		return r.Run(ctx, text, m)
	}, append(opts, refine.WithLogger(s.logger))...)
}

// ApplySwaps commits pairs to the session without prompting.
func (s *Service) ApplySwaps(ctx context.Context, sessionID string, pairs []refine.Pair) (refine.Result, error) {
	return s.refine(ctx, sessionID, nil, func(ctx context.Context, r *refine.Refiner, text string, m cipher.Mapping) (refine.Result, error) {
		return r.Apply(ctx, text, m, pairs)
	}, refine.WithLogger(s.logger))
}

type refineFunc func(ctx context.Context, r *refine.Refiner, text string, m cipher.Mapping) (refine.Result, error)

func (s *Service) refine(ctx context.Context, sessionID string, p refine.Prompter, run refineFunc, opts ...refine.Option) (refine.Result, error) {
	if s.store == nil {
		return refine.Result{}, ErrNoStore
	}
	ctx, span := s.tracer.Start(ctx, "decoder.Refine",
		trace.WithAttributes(attribute.String("decoder.session_id", sessionID)),
	)
	defer span.End()

	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return refine.Result{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	model, err := s.registry.Get(sess.Language)
	if err != nil {
		return refine.Result{}, err
	}
	current, err := s.store.GetCurrent(sessionID)
	if err != nil {
		return refine.Result{}, fmt.Errorf("load active version: %w", err)
	}

	rec := &sessionRecorder{svc: s, session: sess, scorer: score.NewEngine(model), parentID: current.VersionID}
	r := refine.New(p, append(opts, refine.WithRecorder(rec))...)

	res, err := run(ctx, r, current.Plaintext, current.Mapping)
	span.SetAttributes(attribute.Int("decoder.swaps", len(res.Swaps)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, err
	}
	s.logger.Info("refine complete", "session_id", sessionID, "swaps", len(res.Swaps))
	return res, nil
}

// sessionRecorder commits each swap as a child of the previous version.
type sessionRecorder struct {
	svc      *Service
	session  state.Session
	scorer   *score.Engine
	parentID string
}

func (r *sessionRecorder) RecordSwap(ctx context.Context, sw refine.Swap, m cipher.Mapping) error {
	sc, err := r.scorer.Score(sw.Text)
	if err != nil {
		return err
	}
	detail, err := logging.Detail(logging.SwapRecord{
		Seq:  sw.Seq,
		From: string(sw.From),
		To:   string(sw.To),
		Key:  m.Key(),
		Text: sw.Text,
	})
	if err != nil {
		return err
	}
	var v state.MappingVersion
	err = r.svc.store.Update(func(tx *state.Tx) error {
		var err error
		v, err = tx.CommitVersion(state.MappingVersion{
			SessionID: r.session.SessionID,
			ParentID:  r.parentID,
			Mapping:   m,
			Plaintext: sw.Text,
			Score:     sc,
			Source:    state.SourceRefine,
		})
		if err != nil {
			return err
		}
		return logging.LogDecision(tx, logging.ProvenanceEntry{
			SessionID:   r.session.SessionID,
			VersionID:   v.VersionID,
			ContextHash: r.session.CiphertextHash,
			TriggerType: logging.TriggerRefine,
			DetailJSON:  detail,
			Decision:    "commit",
			Reason:      sw.String(),
		})
	})
	if err != nil {
		return err
	}
	if r.svc.metrics != nil {
		r.svc.metrics.Swap(r.session.Language)
	}
	r.parentID = v.VersionID
	return nil
}

// #endregion refine

// #region rollback

// Rollback makes versionID the session's active version.
func (s *Service) Rollback(ctx context.Context, sessionID, versionID string) (state.MappingVersion, error) {
	if s.store == nil {
		return state.MappingVersion{}, ErrNoStore
	}
	_, span := s.tracer.Start(ctx, "decoder.Rollback",
		trace.WithAttributes(
			attribute.String("decoder.session_id", sessionID),
			attribute.String("decoder.version_id", versionID),
		),
	)
	defer span.End()

	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return state.MappingVersion{}, fmt.Errorf("load session %s: %w", sessionID, err)
	}
	from, err := s.store.GetCurrent(sessionID)
	if err != nil {
		return state.MappingVersion{}, err
	}
	detail, err := logging.Detail(logging.RollbackRecord{FromVersion: from.VersionID, ToVersion: versionID})
	if err != nil {
		return state.MappingVersion{}, err
	}
	err = s.store.Update(func(tx *state.Tx) error {
		if err := tx.Activate(sessionID, versionID); err != nil {
			return err
		}
		return logging.LogDecision(tx, logging.ProvenanceEntry{
			SessionID:   sessionID,
			VersionID:   versionID,
			ContextHash: sess.CiphertextHash,
			TriggerType: logging.TriggerRollback,
			DetailJSON:  detail,
			Decision:    "rollback",
			Reason:      "operator rollback",
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return state.MappingVersion{}, err
	}
	to, err := s.store.GetVersion(versionID)
	if err != nil {
		return state.MappingVersion{}, err
	}
	s.logger.Info("rollback", "session_id", sessionID, "from", from.VersionID, "to", to.VersionID)
	return to, nil
}

// #endregion rollback

// Current returns the session and its active version.
func (s *Service) Current(sessionID string) (state.Session, state.MappingVersion, error) {
	if s.store == nil {
		return state.Session{}, state.MappingVersion{}, ErrNoStore
	}
	sess, err := s.store.GetSession(sessionID)
	if err != nil {
		return state.Session{}, state.MappingVersion{}, err
	}
	v, err := s.store.GetCurrent(sessionID)
	return sess, v, err
}
