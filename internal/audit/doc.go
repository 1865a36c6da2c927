// Package audit emits decision audit records.
//
// The decision engine only determines whether a decision carries a logging
// obligation; this package is the host-process side that turns obliged
// decisions into uuid-stamped, timestamped records on stdout, stderr or a
// file. The Logger satisfies the engine's DecisionRecorder interface, so
// wiring is a single field:
//
//	recorder, _ := audit.NewLogger(&audit.Config{Enabled: true, Output: "stderr"})
//	engine := nacm.NewEngine(&nacm.EngineConfig{Recorder: recorder})
package audit
