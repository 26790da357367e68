package orchestrator

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danielpatrickdp/subcrack/internal/anneal"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

// #region classifier-tests

func TestClassifyCiphertext(t *testing.T) {
	c := ClassifyCiphertext("english", "ABC ABC")
	if c.Length != LengthShort || c.Coverage != CoverageSparse {
		t.Fatalf("expected short/sparse, got %+v", c)
	}

	long := strings.Repeat("THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG ", 30)
	c = ClassifyCiphertext("english", long)
	if c.Length != LengthLong || c.Coverage != CoverageFull {
		t.Fatalf("expected long/full, got %+v", c)
	}

	mid := strings.Repeat("THE QUICK BROWN FOX JUMPS OVER THE LAZY DOG ", 3)
	if got := ClassifyCiphertext("french", mid); got.Length != LengthModerate || got.Language != "french" {
		t.Fatalf("expected moderate french, got %+v", got)
	}
}

// #endregion

// #region evaluator-tests

func TestEvaluateRun(t *testing.T) {
	cases := []struct {
		name    string
		res     anneal.Result
		failure FailureType
		retry   bool
	}{
		{"good", anneal.Result{Score: -50, CiphertextScore: -90, Iterations: 1000, Accepted: 200}, FailureNone, false},
		{"no improvement", anneal.Result{Score: -90, CiphertextScore: -90, Iterations: 1000, Accepted: 200}, FailureNoImprovement, true},
		{"stalled", anneal.Result{Score: -80, CiphertextScore: -90, Iterations: 1000, Accepted: 1}, FailureStalled, true},
		{"churning", anneal.Result{Score: -80, CiphertextScore: -90, Iterations: 1000, Accepted: 950}, FailureChurning, true},
		{"cancelled", anneal.Result{Score: -95, CiphertextScore: -90, Iterations: 10, Cancelled: true}, FailureCancelled, false},
	}
	for _, c := range cases {
		ev := EvaluateRun(c.res, 41)
		if ev.FailureType != c.failure || ev.ShouldRetry != c.retry {
			t.Errorf("%s: expected %s/%v, got %s/%v", c.name, c.failure, c.retry, ev.FailureType, ev.ShouldRetry)
		}
	}

	ev := EvaluateRun(cases[0].res, 41)
	if ev.Quality != 1 {
		t.Fatalf("expected quality 40/40 = 1, got %v", ev.Quality)
	}
	if ev.AcceptanceRate != 0.2 {
		t.Fatalf("expected acceptance 0.2, got %v", ev.AcceptanceRate)
	}
}

func TestEvaluateRun_TooShortToScore(t *testing.T) {
	ev := EvaluateRun(anneal.Result{Iterations: 10}, 1)
	if ev.ShouldRetry {
		t.Fatal("single symbol texts must not restart")
	}
}

// #endregion

// #region strategy-tests

func TestStrategyApply(t *testing.T) {
	base := anneal.DefaultConfig()

	long := Strategies[StrategyLong].Apply(base)
	if long.Iterations != 40000 || long.InitialTemperature != base.InitialTemperature {
		t.Fatalf("unexpected long schedule %+v", long)
	}
	if err := long.Validate(); err != nil {
		t.Fatalf("long schedule invalid: %v", err)
	}

	hot := Strategies[StrategyHot].Apply(base)
	if hot.InitialTemperature != 30 {
		t.Fatalf("expected T0=30, got %v", hot.InitialTemperature)
	}

	id := Strategies[StrategyIdentity].Apply(base)
	if id.Start != anneal.StartIdentity {
		t.Fatalf("expected identity start, got %s", id.Start)
	}

	tiny := base
	tiny.InitialTemperature = 0.2
	cold := Strategies[StrategyCold].Apply(tiny)
	if cold.InitialTemperature != tiny.FloorTemperature {
		t.Fatalf("expected clamp to floor, got %v", cold.InitialTemperature)
	}
	if err := cold.Validate(); err != nil {
		t.Fatalf("clamped schedule invalid: %v", err)
	}
}

func TestSelectInitial_DefaultMapping(t *testing.T) {
	s := NewStrategySelector(nil)
	if got := s.SelectInitial(Classification{Length: LengthShort, Coverage: CoverageFull}); got.ID != StrategyLong {
		t.Fatalf("expected long for short text, got %s", got.ID)
	}
	if got := s.SelectInitial(Classification{Length: LengthLong, Coverage: CoverageFull}); got.ID != StrategyDefault {
		t.Fatalf("expected default for long text, got %s", got.ID)
	}
}

func TestSelectRetry_FollowsEscalationThenFallback(t *testing.T) {
	s := NewStrategySelector(nil)

	next := s.SelectRetry(FailureStalled, []StrategyID{StrategyDefault})
	if next == nil || next.ID != StrategyHot {
		t.Fatalf("expected hot, got %+v", next)
	}
	next = s.SelectRetry(FailureStalled, []StrategyID{StrategyDefault, StrategyHot, StrategyLong})
	if next == nil || next.ID != StrategyIdentity {
		t.Fatalf("expected fallback to identity, got %+v", next)
	}
	if s.SelectRetry(FailureStalled, allStrategies) != nil {
		t.Fatal("expected nil once all strategies are tried")
	}
}

// #endregion

// #region retry-tests

func TestRetryEngine_MaxRetries(t *testing.T) {
	engine := NewRetryEngine(NewStrategySelector(nil), 2)
	bad := RunEvaluation{FailureType: FailureStalled, ShouldRetry: true}
	attempts := []Attempt{
		{Strategy: StrategyDefault, Evaluation: bad},
		{Strategy: StrategyHot, Evaluation: bad},
		{Strategy: StrategyLong, Evaluation: bad},
	}
	if retry, _ := engine.ShouldRetry(attempts); retry {
		t.Error("should not retry after 3 attempts")
	}
}

func TestRetryEngine_GoodRunNoRetry(t *testing.T) {
	engine := NewRetryEngine(NewStrategySelector(nil), 2)
	attempts := []Attempt{{Strategy: StrategyDefault, Evaluation: RunEvaluation{FailureType: FailureNone}}}
	if retry, _ := engine.ShouldRetry(attempts); retry {
		t.Error("should not retry good run")
	}
}

func TestRetryEngine_BadRunRetries(t *testing.T) {
	engine := NewRetryEngine(NewStrategySelector(nil), 2)
	attempts := []Attempt{{Strategy: StrategyDefault, Evaluation: RunEvaluation{FailureType: FailureNoImprovement, ShouldRetry: true}}}
	retry, next := engine.ShouldRetry(attempts)
	if !retry || next == nil {
		t.Fatal("expected restart after no improvement")
	}
	if next.ID != StrategyIdentity {
		t.Errorf("expected identity, got %s", next.ID)
	}
}

// #endregion

// #region memory-tests

func TestStrategyMemory_RecordAndQuery(t *testing.T) {
	mem, err := NewStrategyMemory(newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}

	sid, _, err := mem.BestStrategy("english", "short")
	if err != nil {
		t.Fatal(err)
	}
	if sid != "" {
		t.Errorf("expected empty strategy, got %q", sid)
	}

	record := func(strategy StrategyID, quality float64, accepted bool) {
		t.Helper()
		err := mem.RecordOutcomes([]OutcomeRecord{{
			SessionID: "s1", Language: "english", Length: LengthShort, Coverage: CoverageFull,
			StrategyID: strategy, Quality: quality, FailureType: FailureNone,
			Accepted: accepted, CreatedAt: time.Now(),
		}})
		if err != nil {
			t.Fatal(err)
		}
	}

	// 2 samples: below threshold
	record(StrategyHot, 0.8, true)
	record(StrategyHot, 0.8, true)
	if sid, _, _ = mem.BestStrategy("english", "short"); sid != "" {
		t.Errorf("expected empty (below threshold), got %q", sid)
	}

	// Rejected attempts do not count
	record(StrategyHot, 0.9, false)
	if sid, _, _ = mem.BestStrategy("english", "short"); sid != "" {
		t.Errorf("expected rejected sample ignored, got %q", sid)
	}

	record(StrategyHot, 0.9, true)
	for i := 0; i < 3; i++ {
		record(StrategyLong, 0.4, true)
	}

	sid, q, err := mem.BestStrategy("english", "short")
	if err != nil {
		t.Fatal(err)
	}
	if sid != StrategyHot {
		t.Errorf("expected %q, got %q", StrategyHot, sid)
	}
	if q < 0.8 {
		t.Errorf("expected quality > 0.8, got %.2f", q)
	}

	if sid, _, _ = mem.BestStrategy("french", "short"); sid != "" {
		t.Errorf("expected no data for french, got %q", sid)
	}
}

func TestStrategyMemory_OldOutcomesDecay(t *testing.T) {
	mem, err := NewStrategyMemory(newTestDB(t))
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return now }

	var recs []OutcomeRecord
	for i := 0; i < 3; i++ {
		// A month-old strong run and a fresh weak run per strategy sample.
		recs = append(recs,
			OutcomeRecord{SessionID: "old", Language: "english", Length: LengthLong, Coverage: CoverageFull,
				StrategyID: StrategyCold, Quality: 1.0, Accepted: true, CreatedAt: now.Add(-28 * 24 * time.Hour)},
			OutcomeRecord{SessionID: "new", Language: "english", Length: LengthLong, Coverage: CoverageFull,
				StrategyID: StrategyCold, Quality: 0.2, Accepted: true, CreatedAt: now},
		)
	}
	if err := mem.RecordOutcomes(recs); err != nil {
		t.Fatal(err)
	}

	stats, err := mem.Stats("english", "long")
	if err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 || stats[0].Samples != 6 {
		t.Fatalf("expected one strategy with 6 samples, got %+v", stats)
	}
	// Weights 1/16 and 1: (1/16 + 0.2) / (17/16) ~= 0.247
	if q := stats[0].Quality; q < 0.24 || q > 0.25 {
		t.Errorf("expected decayed quality near 0.247, got %.4f", q)
	}
}

// #endregion

// #region orchestrator-tests

func TestOrchestrator_LearnedStrategyWins(t *testing.T) {
	db := newTestDB(t)
	o, err := NewOrchestrator(db, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	class := Classification{Language: "english", Length: LengthShort, Coverage: CoverageSparse}
	for i := 0; i < 3; i++ {
		o.RecordFinalOutcome("s", class, []Attempt{{Strategy: StrategyCold, Evaluation: RunEvaluation{Quality: 1}}}, 0)
	}

	pre := o.PreRun("english", "ABC")
	if pre.Strategy.ID != StrategyCold {
		t.Fatalf("expected learned cold strategy, got %s", pre.Strategy.ID)
	}
}

func TestOrchestrator_PostRunRestartsThenAccepts(t *testing.T) {
	o, err := NewOrchestrator(nil, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	attempts := []Attempt{{
		Strategy: StrategyDefault,
		Result:   anneal.Result{Score: -90, CiphertextScore: -90, Iterations: 100, Accepted: 10},
	}}
	post := o.PostRun(20, attempts)
	if post.Accept || post.NextStrategy == nil {
		t.Fatalf("expected restart, got %+v", post)
	}
	if attempts[0].Evaluation.FailureType != FailureNoImprovement {
		t.Fatal("expected evaluation stored on attempt")
	}

	attempts = append(attempts, Attempt{
		Strategy: post.NextStrategy.ID,
		Result:   anneal.Result{Score: -91, CiphertextScore: -90, Iterations: 100, Accepted: 10},
	})
	post = o.PostRun(20, attempts)
	if !post.Accept {
		t.Fatal("expected accept once retries are exhausted")
	}
	if Best(attempts) != 0 {
		t.Fatalf("expected first attempt best, got %d", Best(attempts))
	}
}

func TestOrchestrator_Disabled(t *testing.T) {
	t.Setenv(EnvRestarts, "false")
	o, err := NewOrchestrator(nil, 3, nil)
	if err != nil {
		t.Fatal(err)
	}
	if o.Enabled() {
		t.Fatal("expected disabled orchestrator")
	}
	if o.PreRun("english", "ABC").Strategy.ID != StrategyDefault {
		t.Fatal("expected default strategy when disabled")
	}
	post := o.PostRun(3, []Attempt{{Result: anneal.Result{Score: -5, CiphertextScore: -1, Iterations: 5}}})
	if !post.Accept {
		t.Fatal("expected accept when disabled")
	}
}

func TestBest_PrefersFinishedRuns(t *testing.T) {
	attempts := []Attempt{
		{Result: anneal.Result{Score: -10, Cancelled: true}},
		{Result: anneal.Result{Score: -40}},
		{Result: anneal.Result{Score: -30}},
	}
	if got := Best(attempts); got != 2 {
		t.Fatalf("expected 2, got %d", got)
	}
	if Best(nil) != -1 {
		t.Fatal("expected -1 for no attempts")
	}
}

// #endregion
