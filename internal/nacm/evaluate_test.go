package nacm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// testPolicy builds an enabled policy with one admin group and the given
// rule lists, data defaults deny and command defaults permit.
func testPolicy(lists ...*RuleList) *Policy {
	return &Policy{
		EnableNACM:     true,
		ReadDefault:    EffectDeny,
		WriteDefault:   EffectDeny,
		ExecDefault:    EffectDeny,
		CmdReadDefault: EffectPermit,
		CmdExecDefault: EffectPermit,
		Groups: map[string]*Group{
			"admin": {Name: "admin", Users: []string{"alice"}},
			"oper":  {Name: "oper", Users: []string{"bob"}},
		},
		RuleLists: lists,
	}
}

func permitRule(name string, order int) *Rule {
	return &Rule{
		Name:             name,
		ModuleName:       Wildcard(),
		RPCName:          Wildcard(),
		Path:             Wildcard(),
		Context:          Wildcard(),
		AccessOperations: AllOperations(),
		Effect:           EffectPermit,
		Order:            order,
	}
}

// ============================================================================
// Evaluate Tests
// ============================================================================

func TestEvaluate_DisabledBypassesEverything(t *testing.T) {
	t.Parallel()

	p := testPolicy(&RuleList{
		Name:   "deny-all",
		Groups: []string{"*"},
		Rules: []*Rule{{
			Name:             "deny",
			ModuleName:       Wildcard(),
			RPCName:          Wildcard(),
			Path:             Wildcard(),
			Context:          Wildcard(),
			AccessOperations: AllOperations(),
			Effect:           EffectDeny,
			LogIfDeny:        true,
		}},
	})
	p.EnableNACM = false
	p.LogDefaultDeny = true

	result, trace := EvaluateTrace(p, &AccessRequest{User: "nobody", Operation: OperationDelete})
	assert.Equal(t, EffectPermit, result.Effect)
	assert.False(t, result.ShouldLog)
	assert.Empty(t, trace.MatchedRule)
	assert.False(t, trace.DefaultApplied)
}

func TestEvaluate_FirstMatchWinsByOrder(t *testing.T) {
	t.Parallel()

	deny := permitRule("deny-first", 0)
	deny.Effect = EffectDeny
	permit := permitRule("permit-later", 1)

	// The permitting rule sits first in the slice but has the higher
	// order, so the denying rule decides.
	p := testPolicy(&RuleList{
		Name:   "acl",
		Groups: []string{"*"},
		Rules:  []*Rule{permit, deny},
	})

	result, trace := EvaluateTrace(p, &AccessRequest{User: "alice", Operation: OperationRead})
	assert.Equal(t, EffectDeny, result.Effect)
	assert.Equal(t, "deny-first", trace.MatchedRule)
}

func TestEvaluate_RuleListGroupScoping(t *testing.T) {
	t.Parallel()

	p := testPolicy(&RuleList{
		Name:   "admin-only",
		Groups: []string{"admin"},
		Rules:  []*Rule{permitRule("allow-admin", 0)},
	})

	tests := []struct {
		name string
		user string
		want Effect
	}{
		{name: "member of listed group is permitted", user: "alice", want: EffectPermit},
		{name: "member of other group falls to default", user: "bob", want: EffectDeny},
		{name: "unknown user falls to default", user: "mallory", want: EffectDeny},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := Evaluate(p, &AccessRequest{User: tt.user, Operation: OperationRead})
			assert.Equal(t, tt.want, result.Effect)
		})
	}
}

func TestEvaluate_StarGroupReachesEveryUser(t *testing.T) {
	t.Parallel()

	p := testPolicy(&RuleList{
		Name:   "everyone",
		Groups: []string{"*"},
		Rules:  []*Rule{permitRule("allow-everyone", 0)},
	})

	result := Evaluate(p, &AccessRequest{User: "mallory", Operation: OperationUpdate})
	assert.Equal(t, EffectPermit, result.Effect)
}

func TestEvaluate_DefaultFallbackPerCategory(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.ReadDefault = EffectPermit
	p.WriteDefault = EffectDeny
	p.ExecDefault = EffectPermit

	tests := []struct {
		name string
		op   Operation
		want Effect
	}{
		{name: "read uses read default", op: OperationRead, want: EffectPermit},
		{name: "create uses write default", op: OperationCreate, want: EffectDeny},
		{name: "update uses write default", op: OperationUpdate, want: EffectDeny},
		{name: "delete uses write default", op: OperationDelete, want: EffectDeny},
		{name: "exec uses exec default", op: OperationExec, want: EffectPermit},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result, trace := EvaluateTrace(p, &AccessRequest{User: "alice", Operation: tt.op})
			assert.Equal(t, tt.want, result.Effect)
			assert.True(t, trace.DefaultApplied)
		})
	}
}

func TestEvaluate_MatcherConditionsAreConjunctive(t *testing.T) {
	t.Parallel()

	rule := &Rule{
		Name:             "narrow",
		ModuleName:       Literal("ietf-interfaces"),
		RPCName:          Wildcard(),
		Path:             Literal("/interfaces"),
		Context:          Literal("netconf"),
		AccessOperations: Operations(OperationRead),
		Effect:           EffectPermit,
	}
	p := testPolicy(&RuleList{Name: "acl", Groups: []string{"*"}, Rules: []*Rule{rule}})

	tests := []struct {
		name string
		req  AccessRequest
		want Effect
	}{
		{
			name: "all conditions satisfied",
			req: AccessRequest{
				User: "alice", Operation: OperationRead,
				ModuleName: "ietf-interfaces", Path: "/interfaces/interface", Context: "netconf",
			},
			want: EffectPermit,
		},
		{
			name: "wrong module",
			req: AccessRequest{
				User: "alice", Operation: OperationRead,
				ModuleName: "ietf-system", Path: "/interfaces", Context: "netconf",
			},
			want: EffectDeny,
		},
		{
			name: "empty module does not satisfy literal matcher",
			req: AccessRequest{
				User: "alice", Operation: OperationRead,
				Path: "/interfaces", Context: "netconf",
			},
			want: EffectDeny,
		},
		{
			name: "operation outside the set",
			req: AccessRequest{
				User: "alice", Operation: OperationDelete,
				ModuleName: "ietf-interfaces", Path: "/interfaces", Context: "netconf",
			},
			want: EffectDeny,
		},
		{
			name: "wrong context",
			req: AccessRequest{
				User: "alice", Operation: OperationRead,
				ModuleName: "ietf-interfaces", Path: "/interfaces", Context: "cli",
			},
			want: EffectDeny,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := tt.req
			result := Evaluate(p, &req)
			assert.Equal(t, tt.want, result.Effect)
		})
	}
}

func TestEvaluate_ShouldLogFollowsRuleFlags(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		effect      Effect
		logIfPermit bool
		logIfDeny   bool
		wantLog     bool
	}{
		{name: "permit with log-if-permit", effect: EffectPermit, logIfPermit: true, wantLog: true},
		{name: "permit with log-if-deny only", effect: EffectPermit, logIfDeny: true, wantLog: false},
		{name: "deny with log-if-deny", effect: EffectDeny, logIfDeny: true, wantLog: true},
		{name: "deny with log-if-permit only", effect: EffectDeny, logIfPermit: true, wantLog: false},
		{name: "no flags", effect: EffectDeny, wantLog: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rule := permitRule("r", 0)
			rule.Effect = tt.effect
			rule.LogIfPermit = tt.logIfPermit
			rule.LogIfDeny = tt.logIfDeny
			p := testPolicy(&RuleList{Name: "acl", Groups: []string{"*"}, Rules: []*Rule{rule}})

			result := Evaluate(p, &AccessRequest{User: "alice", Operation: OperationRead})
			assert.Equal(t, tt.wantLog, result.ShouldLog)
		})
	}
}

func TestEvaluate_DefaultLoggingFlags(t *testing.T) {
	t.Parallel()

	t.Run("denied default with log-default-deny", func(t *testing.T) {
		t.Parallel()
		p := testPolicy()
		p.LogDefaultDeny = true
		result := Evaluate(p, &AccessRequest{User: "alice", Operation: OperationRead})
		assert.Equal(t, EffectDeny, result.Effect)
		assert.True(t, result.ShouldLog)
	})

	t.Run("permitted default with log-default-permit", func(t *testing.T) {
		t.Parallel()
		p := testPolicy()
		p.ReadDefault = EffectPermit
		p.LogDefaultPermit = true
		result := Evaluate(p, &AccessRequest{User: "alice", Operation: OperationRead})
		assert.Equal(t, EffectPermit, result.Effect)
		assert.True(t, result.ShouldLog)
	})

	t.Run("denied default without flags is silent", func(t *testing.T) {
		t.Parallel()
		p := testPolicy()
		result := Evaluate(p, &AccessRequest{User: "alice", Operation: OperationRead})
		assert.Equal(t, EffectDeny, result.Effect)
		assert.False(t, result.ShouldLog)
	})
}

// ============================================================================
// Command Evaluation Tests
// ============================================================================

func TestEvaluate_CommandRequestUsesCommandRules(t *testing.T) {
	t.Parallel()

	p := testPolicy(&RuleList{
		Name:   "cli-acl",
		Groups: []string{"*"},
		Rules: []*Rule{{
			Name:             "deny-all-data",
			ModuleName:       Wildcard(),
			RPCName:          Wildcard(),
			Path:             Wildcard(),
			Context:          Wildcard(),
			AccessOperations: AllOperations(),
			Effect:           EffectDeny,
		}},
		CommandRules: []*CommandRule{{
			Name:             "allow-show",
			Context:          Wildcard(),
			Command:          Literal("show"),
			AccessOperations: Operations(OperationRead, OperationExec),
			Effect:           EffectPermit,
		}},
	})

	// A request carrying a command is evaluated against command rules
	// even when data fields are also present.
	req := &AccessRequest{
		User:      "alice",
		Operation: OperationExec,
		Path:      "/interfaces",
		Command:   "show interfaces",
		Context:   "cli",
	}
	result, trace := EvaluateTrace(p, req)
	assert.Equal(t, EffectPermit, result.Effect)
	assert.True(t, trace.CommandRequest)
	assert.Equal(t, "allow-show", trace.MatchedRule)
}

func TestEvaluate_CommandRuleIgnoresWriteOperations(t *testing.T) {
	t.Parallel()

	p := testPolicy(&RuleList{
		Name:   "cli-acl",
		Groups: []string{"*"},
		CommandRules: []*CommandRule{{
			Name:             "allow-any-command",
			Context:          Wildcard(),
			Command:          Wildcard(),
			AccessOperations: AllOperations(),
			Effect:           EffectDeny,
		}},
	})
	p.CmdExecDefault = EffectPermit

	// A write operation can never match a command rule, so the command
	// default decides.
	result, trace := EvaluateTrace(p, &AccessRequest{
		User:      "alice",
		Operation: OperationCreate,
		Command:   "configure terminal",
	})
	assert.Equal(t, EffectPermit, result.Effect)
	assert.True(t, trace.DefaultApplied)
}

func TestEvaluate_CommandDefaultPerOperation(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	p.CmdReadDefault = EffectDeny
	p.CmdExecDefault = EffectPermit

	readResult := Evaluate(p, &AccessRequest{User: "alice", Operation: OperationRead, Command: "show version"})
	assert.Equal(t, EffectDeny, readResult.Effect)

	execResult := Evaluate(p, &AccessRequest{User: "alice", Operation: OperationExec, Command: "reboot"})
	assert.Equal(t, EffectPermit, execResult.Effect)
}

func TestEvaluate_CommandOrderingAcrossLists(t *testing.T) {
	t.Parallel()

	p := testPolicy(
		&RuleList{
			Name:   "second",
			Groups: []string{"*"},
			CommandRules: []*CommandRule{{
				Name:             "permit-later",
				Context:          Wildcard(),
				Command:          Wildcard(),
				AccessOperations: Operations(OperationRead, OperationExec),
				Effect:           EffectPermit,
				Order:            5,
			}},
		},
		&RuleList{
			Name:   "first",
			Groups: []string{"*"},
			CommandRules: []*CommandRule{{
				Name:             "deny-reboot",
				Context:          Wildcard(),
				Command:          Literal("reboot"),
				AccessOperations: Operations(OperationExec),
				Effect:           EffectDeny,
				Order:            1,
			}},
		},
	)

	result, trace := EvaluateTrace(p, &AccessRequest{User: "bob", Operation: OperationExec, Command: "reboot"})
	assert.Equal(t, EffectDeny, result.Effect)
	assert.Equal(t, "deny-reboot", trace.MatchedRule)
}

// ============================================================================
// Policy Helper Tests
// ============================================================================

func TestPolicy_UserGroups(t *testing.T) {
	t.Parallel()

	p := testPolicy()
	assert.ElementsMatch(t, []string{"admin"}, p.UserGroups("alice"))
	assert.Empty(t, p.UserGroups("mallory"))
}

func TestAccessRequest_IsCommand(t *testing.T) {
	t.Parallel()

	assert.True(t, (&AccessRequest{Command: "show"}).IsCommand())
	assert.False(t, (&AccessRequest{Path: "/interfaces"}).IsCommand())
}
