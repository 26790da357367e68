package replay

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/logging"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

// ErrNotReplayable is returned for sessions whose optimizer run cannot be
// reproduced from its record.
var ErrNotReplayable = errors.New("session is not replayable")

// #region export

// FromSession builds a fixture from a stored session: the recorded
// optimizer run plus the swaps on the path from that run to the active
// version. Swaps undone by a rollback are not included.
func FromSession(store *state.Store, sessionID string) (*Fixture, error) {
	sess, err := store.GetSession(sessionID)
	if err != nil {
		return nil, err
	}
	trail, err := store.ListWithProvenance(sessionID)
	if err != nil {
		return nil, err
	}

	var run *logging.RunRecord
	runVersion := ""
	swaps := make(map[string]logging.SwapRecord)
	for _, vp := range trail {
		switch vp.TriggerType {
		case logging.TriggerDecodeRun:
			var rec logging.RunRecord
			if err := json.Unmarshal([]byte(vp.DetailJSON), &rec); err != nil {
				return nil, fmt.Errorf("parse run record: %w", err)
			}
			run, runVersion = &rec, vp.VersionID
		case logging.TriggerRefine:
			var rec logging.SwapRecord
			if err := json.Unmarshal([]byte(vp.DetailJSON), &rec); err != nil {
				return nil, fmt.Errorf("parse swap record: %w", err)
			}
			swaps[vp.VersionID] = rec
		}
	}
	if run == nil {
		return nil, fmt.Errorf("%w: no optimizer run recorded", ErrNotReplayable)
	}
	if run.Cancelled {
		// The cooling ratio depends on the planned iteration count.
		return nil, fmt.Errorf("%w: run was cancelled after %d iterations", ErrNotReplayable, run.Iterations)
	}

	current, err := store.GetCurrent(sessionID)
	if err != nil {
		return nil, err
	}
	chain, err := pathFrom(store, current, runVersion)
	if err != nil {
		return nil, err
	}

	f := &Fixture{
		Description: fmt.Sprintf("session %s", sessionID),
		Language:    sess.Language,
		Ciphertext:  sess.Ciphertext,
		Seed:        run.Seed,
		Config: anneal.Config{
			Mode:               anneal.Mode(run.Schedule.Mode),
			Iterations:         run.Schedule.Iterations,
			InitialTemperature: run.Schedule.InitialTemperature,
			FloorTemperature:   run.Schedule.FloorTemperature,
			CoolingInterval:    run.Schedule.CoolingInterval,
			TrackBest:          run.Schedule.TrackBest,
			Start:              anneal.Start(run.Schedule.Start),
		},
	}
	score := run.Score
	f.Expected = FixtureExpected{Key: run.Key, Plaintext: run.Plaintext, Score: &score}

	for _, v := range chain {
		rec, ok := swaps[v.VersionID]
		if !ok {
			return nil, fmt.Errorf("%w: version %s has no swap record", ErrNotReplayable, v.VersionID)
		}
		f.Swaps = append(f.Swaps, FixtureSwap{From: rec.From, To: rec.To})
	}
	if len(chain) > 0 {
		f.Expected.RefinedKey = current.Mapping.Key()
		f.Expected.RefinedText = current.Plaintext
	}
	return f, nil
}

// pathFrom walks parent links from v back to the version rootID and
// returns the versions after rootID in commit order.
func pathFrom(store *state.Store, v state.MappingVersion, rootID string) ([]state.MappingVersion, error) {
	var rev []state.MappingVersion
	for v.VersionID != rootID {
		if v.Source != state.SourceRefine || v.ParentID == "" {
			return nil, fmt.Errorf("%w: active version %s does not descend from the optimizer run", ErrNotReplayable, v.VersionID)
		}
		rev = append(rev, v)
		parent, err := store.GetVersion(v.ParentID)
		if err != nil {
			return nil, err
		}
		v = parent
	}
	out := make([]state.MappingVersion, len(rev))
	for i, x := range rev {
		out[len(rev)-1-i] = x
	}
	return out, nil
}

// #endregion export
