package nacm

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/nacmval/internal/observability"
)

// DecisionRecord is the detail handed to a DecisionRecorder for decisions
// whose ShouldLog obligation is set.
type DecisionRecord struct {
	// Request is the evaluated access request.
	Request *AccessRequest

	// Result is the decision outcome.
	Result ValidationResult

	// MatchedRule is the deciding rule name, empty for default decisions.
	MatchedRule string

	// DefaultApplied reports that a default policy decided the request.
	DefaultApplied bool
}

// DecisionRecorder receives decisions the policy obliges the host to log.
// The engine only decides whether a decision should be logged; the recorder
// decides how.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, record *DecisionRecord)
}

// Engine evaluates access requests against an atomically swappable policy
// snapshot. Evaluation only reads the snapshot, so arbitrarily many
// concurrent Authorize calls need no locking; SetPolicy replaces the
// snapshot wholesale, and evaluations in flight keep the snapshot they
// started with.
type Engine struct {
	current  atomic.Pointer[Policy]
	logger   observability.Logger
	metrics  *Metrics
	recorder DecisionRecorder
}

// EngineConfig holds configuration for the engine.
type EngineConfig struct {
	// Policy is the initial policy snapshot. When nil the engine starts
	// with the fail-safe baseline (enforcement off).
	Policy *Policy

	// Logger is the logger for decision debug logging.
	Logger observability.Logger

	// Metrics receives evaluation metrics. When nil, metrics are created
	// on the default prometheus registerer.
	Metrics *Metrics

	// Recorder receives decisions with a logging obligation. Optional.
	Recorder DecisionRecorder
}

// NewEngine creates an engine from the given configuration.
func NewEngine(cfg *EngineConfig) *Engine {
	if cfg == nil {
		cfg = &EngineConfig{}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = NewMetrics("nacm")
	}

	e := &Engine{
		logger:   logger,
		metrics:  metrics,
		recorder: cfg.Recorder,
	}

	policy := cfg.Policy
	if policy == nil {
		policy = baselinePolicy()
	}
	e.current.Store(policy)
	metrics.RecordPolicySwap(policy)

	return e
}

// Policy returns the current policy snapshot.
func (e *Engine) Policy() *Policy {
	return e.current.Load()
}

// SetPolicy atomically swaps in a new policy snapshot. The previous
// snapshot stays valid for evaluations already in flight.
func (e *Engine) SetPolicy(policy *Policy) {
	if policy == nil {
		policy = baselinePolicy()
	}
	e.current.Store(policy)
	e.metrics.RecordPolicySwap(policy)

	e.logger.Info("policy snapshot swapped",
		observability.Bool("nacm_enabled", policy.EnableNACM),
		observability.Int("groups", len(policy.Groups)),
		observability.Int("rule_lists", len(policy.RuleLists)),
		observability.Int("rules", policy.RuleCount()),
		observability.Int("command_rules", policy.CommandRuleCount()),
	)
}

// Authorize evaluates one access request against the current snapshot.
func (e *Engine) Authorize(ctx context.Context, req *AccessRequest) ValidationResult {
	policy := e.current.Load()

	start := time.Now()
	result, trace := EvaluateTrace(policy, req)
	elapsed := time.Since(start)

	kind := "data"
	if trace.CommandRequest {
		kind = "command"
	}
	e.metrics.RecordEvaluation(kind, result.Effect, elapsed)
	if trace.DefaultApplied {
		e.metrics.RecordDefaultFallback(kind)
	}

	e.logger.Debug("access decision",
		observability.String("user", req.User),
		observability.String("operation", string(req.Operation)),
		observability.String("kind", kind),
		observability.String("effect", string(result.Effect)),
		observability.String("rule", trace.MatchedRule),
		observability.Bool("default", trace.DefaultApplied),
		observability.Bool("should_log", result.ShouldLog),
	)

	if result.ShouldLog {
		e.metrics.RecordLoggedDecision()
		if e.recorder != nil {
			e.recorder.RecordDecision(ctx, &DecisionRecord{
				Request:        req,
				Result:         result,
				MatchedRule:    trace.MatchedRule,
				DefaultApplied: trace.DefaultApplied,
			})
		}
	}

	return result
}
