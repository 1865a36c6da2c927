// Package nacm implements the NACM (RFC 8341 style) access-control core:
// the policy model, the multi-source merge engine, and the decision engine,
// including the Tail-f ACM extensions (command rules, request contexts,
// logging obligations, and group IDs).
//
// The package is split into three layers:
//   - the policy model: Policy, Group, RuleList, Rule, CommandRule and the
//     Matcher / OperationSet value types. Pure data, immutable once built.
//   - Merge: combines independently parsed policy sources into one Policy
//     with a globally consistent rule order. Total over valid input.
//   - Evaluate: resolves one AccessRequest against a merged Policy into a
//     permit/deny decision plus a logging obligation. Total, no error path.
//
// Engine wraps a Policy snapshot behind an atomic pointer so that arbitrarily
// many concurrent Authorize calls can run against a consistent snapshot while
// a reload swaps in a freshly merged Policy:
//
//	engine := nacm.NewEngine(&nacm.EngineConfig{Logger: logger})
//	engine.SetPolicy(merged)
//
//	result := engine.Authorize(ctx, &nacm.AccessRequest{
//	    User:      "alice",
//	    Operation: nacm.OperationRead,
//	    Path:      "/interfaces",
//	})
//	if result.Effect == nacm.EffectPermit {
//	    // ...
//	}
//
// Evaluation never mutates the Policy, so a single snapshot needs no locking.
package nacm
