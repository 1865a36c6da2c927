package nacm

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturingRecorder struct {
	mu      sync.Mutex
	records []*DecisionRecord
}

func (r *capturingRecorder) RecordDecision(_ context.Context, record *DecisionRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, record)
}

func (r *capturingRecorder) all() []*DecisionRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*DecisionRecord(nil), r.records...)
}

func newTestEngine(t *testing.T, cfg *EngineConfig) *Engine {
	t.Helper()
	if cfg == nil {
		cfg = &EngineConfig{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetricsWithRegisterer("nacm_test", prometheus.NewRegistry())
	}
	return NewEngine(cfg)
}

// ============================================================================
// Engine Tests
// ============================================================================

func TestNewEngine_NilConfigStartsFailSafe(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, nil)
	require.NotNil(t, e.Policy())
	assert.False(t, e.Policy().EnableNACM)

	result := e.Authorize(context.Background(), &AccessRequest{User: "anyone", Operation: OperationDelete})
	assert.Equal(t, EffectPermit, result.Effect)
	assert.False(t, result.ShouldLog)
}

func TestEngine_AuthorizeUsesConfiguredPolicy(t *testing.T) {
	t.Parallel()

	p := testPolicy(&RuleList{
		Name:   "acl",
		Groups: []string{"admin"},
		Rules:  []*Rule{permitRule("allow-admin", 0)},
	})
	e := newTestEngine(t, &EngineConfig{Policy: p})

	permitted := e.Authorize(context.Background(), &AccessRequest{User: "alice", Operation: OperationRead})
	assert.Equal(t, EffectPermit, permitted.Effect)

	denied := e.Authorize(context.Background(), &AccessRequest{User: "mallory", Operation: OperationRead})
	assert.Equal(t, EffectDeny, denied.Effect)
}

func TestEngine_SetPolicySwapsSnapshot(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &EngineConfig{Policy: testPolicy()})

	req := &AccessRequest{User: "alice", Operation: OperationRead}
	assert.Equal(t, EffectDeny, e.Authorize(context.Background(), req).Effect)

	next := testPolicy()
	next.ReadDefault = EffectPermit
	e.SetPolicy(next)

	assert.Equal(t, EffectPermit, e.Authorize(context.Background(), req).Effect)
	assert.Same(t, next, e.Policy())
}

func TestEngine_SetPolicyNilFallsBackToBaseline(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &EngineConfig{Policy: testPolicy()})
	e.SetPolicy(nil)

	require.NotNil(t, e.Policy())
	assert.False(t, e.Policy().EnableNACM)
}

func TestEngine_RecorderReceivesObligedDecisionsOnly(t *testing.T) {
	t.Parallel()

	logged := permitRule("logged-permit", 0)
	logged.Path = Literal("/system")
	logged.LogIfPermit = true
	silent := permitRule("silent-permit", 1)

	recorder := &capturingRecorder{}
	e := newTestEngine(t, &EngineConfig{
		Policy: testPolicy(&RuleList{
			Name:   "acl",
			Groups: []string{"*"},
			Rules:  []*Rule{logged, silent},
		}),
		Recorder: recorder,
	})

	e.Authorize(context.Background(), &AccessRequest{User: "alice", Operation: OperationRead, Path: "/system"})
	e.Authorize(context.Background(), &AccessRequest{User: "alice", Operation: OperationRead, Path: "/interfaces"})

	records := recorder.all()
	require.Len(t, records, 1)
	assert.Equal(t, "logged-permit", records[0].MatchedRule)
	assert.Equal(t, EffectPermit, records[0].Result.Effect)
	assert.False(t, records[0].DefaultApplied)
}

func TestEngine_ConcurrentAuthorizeAndSwap(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t, &EngineConfig{Policy: testPolicy()})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := &AccessRequest{User: "alice", Operation: OperationRead}
			for j := 0; j < 200; j++ {
				result := e.Authorize(context.Background(), req)
				// Every snapshot in play decides read as deny or permit,
				// never anything else.
				assert.Contains(t, []Effect{EffectPermit, EffectDeny}, result.Effect)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				next := testPolicy()
				if j%2 == 0 {
					next.ReadDefault = EffectPermit
				}
				e.SetPolicy(next)
			}
		}()
	}
	wg.Wait()
}

// ============================================================================
// Metrics Tests
// ============================================================================

func TestNewMetricsWithRegisterer(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegisterer("nacm", reg)
	require.NotNil(t, m)

	m.RecordEvaluation("data", EffectPermit, 0)
	m.RecordDefaultFallback("command")
	m.RecordLoggedDecision()
	m.RecordPolicySwap(testPolicy())

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestNewMetricsWithRegisterer_DuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	first := NewMetricsWithRegisterer("nacm", reg)
	require.NotNil(t, first)

	// Registering the same collectors twice must not panic.
	assert.NotPanics(t, func() {
		NewMetricsWithRegisterer("nacm", reg)
	})
}

func TestNewMetrics_DefaultNamespace(t *testing.T) {
	t.Parallel()

	m := NewMetricsWithRegisterer("", prometheus.NewRegistry())
	require.NotNil(t, m)
}
