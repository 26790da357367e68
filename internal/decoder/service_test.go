package decoder

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
	"github.com/danielpatrickdp/subcrack/internal/cipher"
	"github.com/danielpatrickdp/subcrack/internal/corpus"
	"github.com/danielpatrickdp/subcrack/internal/logging"
	"github.com/danielpatrickdp/subcrack/internal/metrics"
	"github.com/danielpatrickdp/subcrack/internal/orchestrator"
	"github.com/danielpatrickdp/subcrack/internal/refine"
	"github.com/danielpatrickdp/subcrack/internal/score"
	"github.com/danielpatrickdp/subcrack/internal/state"
)

const pangram = "THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG "

func testRegistry(t *testing.T) *corpus.Registry {
	t.Helper()
	m, err := corpus.Build(strings.Repeat(pangram, 40))
	require.NoError(t, err)
	reg := corpus.NewRegistry()
	reg.Register("english", m)
	return reg
}

func testStore(t *testing.T) *state.Store {
	t.Helper()
	st, err := state.NewStore(filepath.Join(t.TempDir(), "decoder.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func ciphertext(t *testing.T) string {
	t.Helper()
	key, err := cipher.ParseKey("QWERTYUIOPASDFGHJKL ZXCVBNM")
	require.NoError(t, err)
	enc, err := key.Inverse().Apply(strings.Repeat(pangram, 2))
	require.NoError(t, err)
	return enc
}

func provenance(t *testing.T, st *state.Store, sessionID, trigger string) []state.VersionWithProvenance {
	t.Helper()
	rows, err := st.ListWithProvenance(sessionID)
	require.NoError(t, err)
	var out []state.VersionWithProvenance
	for _, r := range rows {
		if r.TriggerType == trigger {
			out = append(out, r)
		}
	}
	return out
}

// #region decode-tests

func TestDecode_PersistsSessionChain(t *testing.T) {
	st := testStore(t)
	reg := prometheus.NewRegistry()
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	defer tp.Shutdown(context.Background())

	svc, err := New(testRegistry(t),
		WithStore(st),
		WithMetrics(metrics.New(reg)),
		WithTracer(tp.Tracer("test")),
	)
	require.NoError(t, err)

	ct := ciphertext(t)
	resp, err := svc.Decode(context.Background(), Request{Ciphertext: ct, Language: "english", Seed: 11, Persist: true})
	require.NoError(t, err)

	assert.Greater(t, resp.Score, resp.CiphertextScore)
	assert.True(t, resp.Eval.Passed, resp.Eval.Reason)
	assert.Equal(t, uint64(11), resp.Seed)
	require.NotEmpty(t, resp.SessionID)

	versions, err := st.ListVersions(resp.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, state.SourceInitial, versions[0].Source)
	assert.Equal(t, state.SourceOptimizer, versions[1].Source)
	assert.Equal(t, versions[0].VersionID, versions[1].ParentID)
	assert.Equal(t, resp.VersionID, versions[1].VersionID)

	current, err := st.GetCurrent(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.VersionID, current.VersionID)
	assert.Equal(t, resp.Plaintext, current.Plaintext)

	runs := provenance(t, st, resp.SessionID, logging.TriggerDecodeRun)
	require.Len(t, runs, 1)
	var rec logging.RunRecord
	require.NoError(t, json.Unmarshal([]byte(runs[0].DetailJSON), &rec))
	assert.Equal(t, uint64(11), rec.Seed)
	assert.Equal(t, resp.Key(), rec.Key)
	assert.Equal(t, string(anneal.StartFrequency), rec.Schedule.Start)
	assert.Equal(t, 10000, rec.Iterations)

	n, err := testutil.GatherAndCount(reg, "subcrack_optimizer_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var names []string
	for _, s := range spans.Ended() {
		names = append(names, s.Name())
	}
	assert.Contains(t, names, "decoder.Decode")
	assert.Contains(t, names, "decoder.attempt")
}

func TestDecode_SameSeedIsReproducible(t *testing.T) {
	svc, err := New(testRegistry(t))
	require.NoError(t, err)

	req := Request{Ciphertext: ciphertext(t), Language: "english", Seed: 5}
	a, err := svc.Decode(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Decode(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, a.Key(), b.Key())
	assert.Equal(t, a.Score, b.Score)
	assert.Empty(t, a.SessionID)
}

func TestDecode_RequestConfigOverridesService(t *testing.T) {
	svc, err := New(testRegistry(t))
	require.NoError(t, err)

	cfg := anneal.DefaultFixedConfig()
	cfg.Iterations = 250
	resp, err := svc.Decode(context.Background(), Request{Ciphertext: ciphertext(t), Language: "english", Seed: 3, Config: &cfg})
	require.NoError(t, err)
	assert.Equal(t, 250, resp.Result.Iterations)
}

func TestDecode_Errors(t *testing.T) {
	svc, err := New(testRegistry(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Decode(ctx, Request{Ciphertext: "ABC", Language: "english", Persist: true})
	assert.ErrorIs(t, err, ErrNoStore)

	_, err = svc.Decode(ctx, Request{Ciphertext: "ABC", Language: "klingon"})
	assert.ErrorIs(t, err, corpus.ErrUnknownLanguage)

	_, err = svc.Decode(ctx, Request{Ciphertext: "hello", Language: "english"})
	assert.Error(t, err)

	_, err = New(nil)
	assert.Error(t, err)

	bad := anneal.DefaultConfig()
	bad.Iterations = 0
	_, err = New(testRegistry(t), WithConfig(bad))
	assert.ErrorIs(t, err, anneal.ErrInvalidConfig)
}

func TestDecode_CancelledReturnsInitialState(t *testing.T) {
	o, err := orchestrator.NewOrchestrator(nil, 3, nil)
	require.NoError(t, err)
	svc, err := New(testRegistry(t), WithOrchestrator(o))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := svc.Decode(ctx, Request{Ciphertext: ciphertext(t), Language: "english", Seed: 1})
	require.NoError(t, err)

	assert.True(t, resp.Result.Cancelled)
	assert.Equal(t, 0, resp.Result.Iterations)
	assert.Equal(t, resp.Result.InitialMapping, resp.Mapping)
	assert.Len(t, resp.Attempts, 1)
}

func TestDecode_RestartsUntilRetriesExhausted(t *testing.T) {
	st := testStore(t)
	o, err := orchestrator.NewOrchestrator(st.DB(), 2, nil)
	require.NoError(t, err)

	// A near-infinite temperature accepts almost every proposal.
	cfg := anneal.DefaultFixedConfig()
	cfg.InitialTemperature = 1e9
	cfg.Iterations = 500
	svc, err := New(testRegistry(t), WithStore(st), WithOrchestrator(o), WithConfig(cfg))
	require.NoError(t, err)

	resp, err := svc.Decode(context.Background(), Request{Ciphertext: ciphertext(t), Language: "english", Seed: 9, Persist: true})
	require.NoError(t, err)
	require.Len(t, resp.Attempts, 3)

	seen := map[orchestrator.StrategyID]bool{}
	for i, a := range resp.Attempts {
		assert.Equal(t, uint64(9+i), a.Seed)
		assert.NotEqual(t, orchestrator.FailureNone, a.Evaluation.FailureType)
		assert.False(t, seen[a.Strategy], "strategy %s tried twice", a.Strategy)
		seen[a.Strategy] = true
	}
	// Short ciphertexts start on the long schedule.
	assert.Equal(t, orchestrator.StrategyLong, resp.Attempts[0].Strategy)

	best := resp.Attempts[orchestrator.Best(resp.Attempts)]
	assert.Equal(t, best.Result.Score, resp.Score)
	assert.Equal(t, best.Seed, resp.Seed)

	var outcomes int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM strategy_outcomes`).Scan(&outcomes))
	assert.Equal(t, 3, outcomes)
}

func TestDecodeAll_KeepsRequestOrder(t *testing.T) {
	svc, err := New(testRegistry(t))
	require.NoError(t, err)

	cfg := anneal.DefaultConfig()
	cfg.Iterations = 500
	ct := ciphertext(t)
	reqs := []Request{
		{Ciphertext: ct, Language: "english", Seed: 1, Config: &cfg},
		{Ciphertext: ct[:20], Language: "english", Seed: 2, Config: &cfg},
		{Ciphertext: ct[:10], Language: "english", Seed: 3, Config: &cfg},
	}
	out, err := svc.DecodeAll(context.Background(), reqs, 2)
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, r := range out {
		assert.Len(t, r.Plaintext, len(reqs[i].Ciphertext))
		assert.Equal(t, reqs[i].Seed, r.Seed)
	}

	reqs[1].Language = "klingon"
	_, err = svc.DecodeAll(context.Background(), reqs, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request 1")
	assert.ErrorIs(t, err, corpus.ErrUnknownLanguage)
}

func TestDecodeAll_PersistsEveryRequest(t *testing.T) {
	st := testStore(t)
	svc, err := New(testRegistry(t), WithStore(st))
	require.NoError(t, err)

	cfg := anneal.DefaultConfig()
	cfg.Iterations = 500
	ct := ciphertext(t)
	reqs := []Request{
		{Ciphertext: ct, Language: "english", Seed: 1, Config: &cfg, Persist: true},
		{Ciphertext: ct, Language: "english", Seed: 2, Config: &cfg},
		{Ciphertext: ct, Language: "english", Seed: 3, Config: &cfg, Persist: true},
	}
	out, err := svc.DecodeAll(context.Background(), reqs, 2)
	require.NoError(t, err)
	assert.NotEmpty(t, out[0].SessionID)
	assert.Empty(t, out[1].SessionID)
	assert.NotEmpty(t, out[2].SessionID)

	sessions, err := st.ListSessions(10)
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
	assert.Len(t, provenance(t, st, out[2].SessionID, logging.TriggerDecodeRun), 1)
}

func TestDecodeAll_FailedRequestStoresNothing(t *testing.T) {
	st := testStore(t)
	svc, err := New(testRegistry(t), WithStore(st))
	require.NoError(t, err)

	cfg := anneal.DefaultConfig()
	cfg.Iterations = 20000
	ct := ciphertext(t)
	reqs := []Request{
		{Ciphertext: ct, Language: "english", Seed: 1, Config: &cfg, Persist: true},
		{Ciphertext: ct, Language: "english", Seed: 2, Config: &cfg, Persist: true},
		{Ciphertext: ct, Language: "klingon", Seed: 3, Config: &cfg, Persist: true},
	}
	_, err = svc.DecodeAll(context.Background(), reqs, 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrUnknownLanguage)

	sessions, err := st.ListSessions(10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	var logged int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM provenance_log`).Scan(&logged))
	assert.Zero(t, logged)
}

func TestDecode_StoreFailureLeavesNoSession(t *testing.T) {
	st := testStore(t)
	_, err := st.DB().Exec(`CREATE TRIGGER fail_log BEFORE INSERT ON provenance_log
		BEGIN SELECT RAISE(ABORT, 'provenance disabled'); END`)
	require.NoError(t, err)
	svc, err := New(testRegistry(t), WithStore(st))
	require.NoError(t, err)

	cfg := anneal.DefaultConfig()
	cfg.Iterations = 500
	resp, err := svc.Decode(context.Background(), Request{
		Ciphertext: ciphertext(t), Language: "english", Seed: 4, Config: &cfg, Persist: true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provenance disabled")
	assert.Empty(t, resp.SessionID)

	sessions, err := st.ListSessions(10)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	var versions int
	require.NoError(t, st.DB().QueryRow(`SELECT COUNT(*) FROM mapping_versions`).Scan(&versions))
	assert.Zero(t, versions)
}

func TestScore(t *testing.T) {
	reg := testRegistry(t)
	svc, err := New(reg)
	require.NoError(t, err)

	m, err := reg.Get("english")
	require.NoError(t, err)
	want, err := score.Score("THE LAZY DOG", m)
	require.NoError(t, err)

	got, err := svc.Score("english", "THE LAZY DOG")
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"english"}, svc.Languages())
}

// #endregion decode-tests

// #region session-tests

func decodeSession(t *testing.T, svc *Service) Response {
	t.Helper()
	cfg := anneal.DefaultConfig()
	cfg.Iterations = 500
	resp, err := svc.Decode(context.Background(), Request{
		Ciphertext: ciphertext(t), Language: "english", Seed: 4, Config: &cfg, Persist: true,
	})
	require.NoError(t, err)
	return resp
}

func TestRefine_CommitsEachSwap(t *testing.T) {
	st := testStore(t)
	reg := prometheus.NewRegistry()
	svc, err := New(testRegistry(t), WithStore(st), WithMetrics(metrics.New(reg)))
	require.NoError(t, err)
	resp := decodeSession(t, svc)

	pairs := []refine.Pair{{From: 'A', To: 'B'}, {From: 'C', To: ' '}}
	res, err := svc.Refine(context.Background(), resp.SessionID, refine.NewScriptPrompter(refine.Answers(pairs)...))
	require.NoError(t, err)
	require.Len(t, res.Swaps, 2)

	want := cipher.SwapText(cipher.SwapText(resp.Plaintext, 'A', 'B'), 'C', ' ')
	assert.Equal(t, want, res.Text)

	versions, err := st.ListVersions(resp.SessionID, 0)
	require.NoError(t, err)
	require.Len(t, versions, 4)
	assert.Equal(t, resp.VersionID, versions[2].ParentID)
	assert.Equal(t, versions[2].VersionID, versions[3].ParentID)
	assert.Equal(t, state.SourceRefine, versions[3].Source)

	_, current, err := svc.Current(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, want, current.Plaintext)
	applied, err := current.Mapping.Apply(ciphertext(t))
	require.NoError(t, err)
	assert.Equal(t, want, applied)

	swaps := provenance(t, st, resp.SessionID, logging.TriggerRefine)
	require.Len(t, swaps, 2)
	assert.Equal(t, "A=B", swaps[0].Reason)

	n, err := testutil.GatherAndCount(reg, "subcrack_refine_swaps_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestApplySwapsAndRollback(t *testing.T) {
	st := testStore(t)
	svc, err := New(testRegistry(t), WithStore(st))
	require.NoError(t, err)
	resp := decodeSession(t, svc)

	_, err = svc.ApplySwaps(context.Background(), resp.SessionID, []refine.Pair{{From: 'E', To: 'T'}})
	require.NoError(t, err)

	v, err := svc.Rollback(context.Background(), resp.SessionID, resp.VersionID)
	require.NoError(t, err)
	assert.Equal(t, resp.VersionID, v.VersionID)

	_, current, err := svc.Current(resp.SessionID)
	require.NoError(t, err)
	assert.Equal(t, resp.Plaintext, current.Plaintext)

	rb := provenance(t, st, resp.SessionID, logging.TriggerRollback)
	require.Len(t, rb, 1)
	var rec logging.RollbackRecord
	require.NoError(t, json.Unmarshal([]byte(rb[0].DetailJSON), &rec))
	assert.Equal(t, resp.VersionID, rec.ToVersion)
	assert.NotEqual(t, rec.FromVersion, rec.ToVersion)

	_, err = svc.Rollback(context.Background(), resp.SessionID, "missing")
	assert.ErrorIs(t, err, state.ErrNotFound)
}

func TestSessionOperationsNeedStore(t *testing.T) {
	svc, err := New(testRegistry(t))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Refine(ctx, "s", refine.NewScriptPrompter())
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.ApplySwaps(ctx, "s", nil)
	assert.ErrorIs(t, err, ErrNoStore)
	_, err = svc.Rollback(ctx, "s", "v")
	assert.ErrorIs(t, err, ErrNoStore)
}

// #endregion session-tests
