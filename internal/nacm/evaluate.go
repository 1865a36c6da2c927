package nacm

import "sort"

// Trace carries diagnostic detail about how a decision was reached. It is
// consumed by decision logging and never affects the decision itself.
type Trace struct {
	// MatchedRule is the name of the rule that decided the request, or
	// empty when a default policy decided it.
	MatchedRule string

	// DefaultApplied reports that no candidate rule matched and the
	// per-category default policy was used.
	DefaultApplied bool

	// CommandRequest reports that the request was classified as a
	// command request and evaluated against command rules.
	CommandRequest bool
}

// Evaluate resolves one access request against a merged policy. It is a
// total function: every syntactically valid request produces exactly one
// result and there is no error outcome. Unknown users, unrecognized
// contexts and unmatched commands simply fall through to the configured
// default, which is the fail-safe design intent.
func Evaluate(p *Policy, req *AccessRequest) ValidationResult {
	result, _ := EvaluateTrace(p, req)
	return result
}

// EvaluateTrace is Evaluate with an additional diagnostic trace of the
// matched rule, for decision logging.
func EvaluateTrace(p *Policy, req *AccessRequest) (ValidationResult, Trace) {
	// Disabled enforcement is a full bypass, not a rule outcome, and is
	// never logged as a decision.
	if !p.EnableNACM {
		return ValidationResult{Effect: EffectPermit}, Trace{}
	}

	userGroups := p.UserGroups(req.User)

	if req.IsCommand() {
		return evaluateCommand(p, req, userGroups)
	}
	return evaluateData(p, req, userGroups)
}

// evaluateData walks the data-rule candidate set in ascending order and
// stops at the first match.
func evaluateData(p *Policy, req *AccessRequest, userGroups []string) (ValidationResult, Trace) {
	var candidates []*Rule
	for _, list := range p.RuleLists {
		if !listApplies(list, userGroups) {
			continue
		}
		candidates = append(candidates, list.Rules...)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Order < candidates[j].Order
	})

	for _, rule := range candidates {
		if !dataRuleMatches(rule, req) {
			continue
		}
		return decide(rule.Effect, rule.LogIfPermit, rule.LogIfDeny), Trace{MatchedRule: rule.Name}
	}

	var effect Effect
	switch {
	case req.Operation == OperationRead:
		effect = p.ReadDefault
	case req.Operation.IsWrite():
		effect = p.WriteDefault
	default:
		effect = p.ExecDefault
	}
	return decide(effect, p.LogDefaultPermit, p.LogDefaultDeny), Trace{DefaultApplied: true}
}

// evaluateCommand walks the command-rule candidate set in ascending order
// and stops at the first match. Command evaluation takes precedence over
// data evaluation whenever the request carries a command, even when module
// or path fields are also present.
func evaluateCommand(p *Policy, req *AccessRequest, userGroups []string) (ValidationResult, Trace) {
	var candidates []*CommandRule
	for _, list := range p.RuleLists {
		if !listApplies(list, userGroups) {
			continue
		}
		candidates = append(candidates, list.CommandRules...)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Order < candidates[j].Order
	})

	for _, rule := range candidates {
		if !commandRuleMatches(rule, req) {
			continue
		}
		return decide(rule.Effect, rule.LogIfPermit, rule.LogIfDeny),
			Trace{MatchedRule: rule.Name, CommandRequest: true}
	}

	effect := p.CmdExecDefault
	if req.Operation == OperationRead {
		effect = p.CmdReadDefault
	}
	return decide(effect, p.LogDefaultPermit, p.LogDefaultDeny),
		Trace{DefaultApplied: true, CommandRequest: true}
}

// listApplies reports whether a rule list is applicable to a user with the
// given group memberships. The "*" group entry reaches every user,
// including users in no declared group.
func listApplies(list *RuleList, userGroups []string) bool {
	for _, g := range list.Groups {
		if g == "*" {
			return true
		}
		for _, ug := range userGroups {
			if g == ug {
				return true
			}
		}
	}
	return false
}

// dataRuleMatches reports whether every condition of a data rule accepts
// the request.
func dataRuleMatches(rule *Rule, req *AccessRequest) bool {
	return rule.ModuleName.MatchesExact(req.ModuleName) &&
		rule.RPCName.MatchesExact(req.RPCName) &&
		rule.Path.MatchesPathPrefix(req.Path) &&
		rule.AccessOperations.Contains(req.Operation) &&
		rule.Context.MatchesExact(req.Context)
}

// commandRuleMatches reports whether every condition of a command rule
// accepts the request. Command rules only cover read and exec.
func commandRuleMatches(rule *CommandRule, req *AccessRequest) bool {
	if req.Operation != OperationRead && req.Operation != OperationExec {
		return false
	}
	return rule.Context.MatchesExact(req.Context) &&
		rule.Command.MatchesCommand(req.Command) &&
		rule.AccessOperations.Contains(req.Operation)
}

// decide pairs an effect with its logging obligation.
func decide(effect Effect, logPermit, logDeny bool) ValidationResult {
	return ValidationResult{
		Effect:    effect,
		ShouldLog: (effect == EffectPermit && logPermit) || (effect == EffectDeny && logDeny),
	}
}
