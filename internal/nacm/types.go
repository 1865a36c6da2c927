package nacm

import (
	"fmt"
	"strings"
)

// Effect is the outcome a rule or default policy assigns to a request.
type Effect string

// Rule effects.
const (
	EffectPermit Effect = "permit"
	EffectDeny   Effect = "deny"
)

// ParseEffect parses an effect from its textual form. Parsing is
// case-insensitive to match the configuration-file grammar.
func ParseEffect(s string) (Effect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "permit":
		return EffectPermit, nil
	case "deny":
		return EffectDeny, nil
	default:
		return "", fmt.Errorf("unknown rule effect %q", s)
	}
}

// Operation is the kind of access being requested.
type Operation string

// Access operations.
const (
	OperationRead   Operation = "read"
	OperationCreate Operation = "create"
	OperationUpdate Operation = "update"
	OperationDelete Operation = "delete"
	OperationExec   Operation = "exec"
)

// ParseOperation parses an operation from its textual form.
func ParseOperation(s string) (Operation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read":
		return OperationRead, nil
	case "create":
		return OperationCreate, nil
	case "update":
		return OperationUpdate, nil
	case "delete":
		return OperationDelete, nil
	case "exec":
		return OperationExec, nil
	default:
		return "", fmt.Errorf("unknown operation %q", s)
	}
}

// IsWrite reports whether the operation falls into the write default
// category (create, update, delete).
func (o Operation) IsWrite() bool {
	return o == OperationCreate || o == OperationUpdate || o == OperationDelete
}

// Group is a named set of users a rule list can be scoped to.
type Group struct {
	// Name is the group name, unique within a Policy.
	Name string

	// Users is the list of member usernames. Duplicates are removed when
	// sources are merged; order of first appearance is preserved.
	Users []string

	// GID is an optional operating-system group ID associated with the
	// group for external privilege mapping. Nil when not configured.
	GID *int
}

// HasUser reports whether the given user is a member of the group.
func (g *Group) HasUser(user string) bool {
	for _, u := range g.Users {
		if u == user {
			return true
		}
	}
	return false
}

// clone returns a deep copy of the group.
func (g *Group) clone() *Group {
	c := &Group{
		Name:  g.Name,
		Users: append([]string(nil), g.Users...),
	}
	if g.GID != nil {
		gid := *g.GID
		c.GID = &gid
	}
	return c
}

// Rule is a data-access rule: an ordered, conditionally matching permit or
// deny directive over modules, RPCs and data paths.
type Rule struct {
	// Name identifies the rule for diagnostics and decision logging.
	Name string

	// ModuleName matches the request's module name. Wildcard matches any
	// module, including requests that carry none.
	ModuleName Matcher

	// RPCName matches the request's RPC name.
	RPCName Matcher

	// Path matches the request's data path with prefix semantics: a
	// literal path matcher accepts any request path it is a prefix of.
	Path Matcher

	// AccessOperations is the set of operations the rule covers.
	AccessOperations OperationSet

	// Context matches the management-interface context the request
	// originates from (netconf, cli, webui, ...). Wildcard when the
	// source did not constrain it.
	Context Matcher

	// Effect is the decision returned when the rule matches.
	Effect Effect

	// Order is the global precedence assigned at merge time. Lower values
	// are evaluated first.
	Order int

	// LogIfPermit requests decision logging when the rule permits.
	LogIfPermit bool

	// LogIfDeny requests decision logging when the rule denies.
	LogIfDeny bool
}

// clone returns a copy of the rule.
func (r *Rule) clone() *Rule {
	c := *r
	c.AccessOperations = r.AccessOperations.clone()
	return &c
}

// CommandRule is a command-access rule over CLI/WebUI command lines,
// matched by token-wise prefix patterns.
type CommandRule struct {
	// Name identifies the rule for diagnostics and decision logging.
	Name string

	// Context matches the management-interface context. Defaults to
	// wildcard when the source did not constrain it.
	Context Matcher

	// Command is the token pattern matched against the request command.
	// A literal pattern is split on whitespace; each pattern token must
	// equal the command token at the same position or be "*", and a
	// shorter pattern matches any longer command it prefixes.
	Command Matcher

	// AccessOperations is restricted to read and exec for command rules.
	AccessOperations OperationSet

	// Effect is the decision returned when the rule matches.
	Effect Effect

	// Order is the global precedence assigned at merge time.
	Order int

	// LogIfPermit requests decision logging when the rule permits.
	LogIfPermit bool

	// LogIfDeny requests decision logging when the rule denies.
	LogIfDeny bool

	// Comment is source-file documentation with no semantic effect.
	Comment string
}

// clone returns a copy of the command rule.
func (r *CommandRule) clone() *CommandRule {
	c := *r
	c.AccessOperations = r.AccessOperations.clone()
	return &c
}

// RuleList is a named bundle of rules and command rules scoped to a set of
// groups. "*" in Groups makes the list apply to every user, including users
// that belong to no declared group.
type RuleList struct {
	// Name identifies the rule list. Names are unique after merging.
	Name string

	// Groups is the set of group names (or "*") the list applies to.
	Groups []string

	// Rules is the ordered list of data-access rules.
	Rules []*Rule

	// CommandRules is the ordered list of command-access rules.
	CommandRules []*CommandRule
}

// clone returns a deep copy of the rule list.
func (l *RuleList) clone() *RuleList {
	c := &RuleList{
		Name:   l.Name,
		Groups: append([]string(nil), l.Groups...),
	}
	for _, r := range l.Rules {
		c.Rules = append(c.Rules, r.clone())
	}
	for _, r := range l.CommandRules {
		c.CommandRules = append(c.CommandRules, r.clone())
	}
	return c
}

// Policy is the full merged access-control configuration: global enable
// flag, default policies, groups and rule lists. A Policy is built once by
// parsing and merging, is immutable afterwards, and is replaced wholesale
// on reload.
type Policy struct {
	// EnableNACM is the global enforcement flag. When false every request
	// is permitted without logging.
	EnableNACM bool

	// ReadDefault applies to read requests that no rule matched.
	ReadDefault Effect

	// WriteDefault applies to create/update/delete requests that no rule matched.
	WriteDefault Effect

	// ExecDefault applies to exec requests that no rule matched.
	ExecDefault Effect

	// CmdReadDefault applies to command read requests that no rule matched.
	CmdReadDefault Effect

	// CmdExecDefault applies to command exec requests that no rule matched.
	CmdExecDefault Effect

	// LogDefaultPermit requests logging of default decisions that permit.
	LogDefaultPermit bool

	// LogDefaultDeny requests logging of default decisions that deny.
	LogDefaultDeny bool

	// Groups maps group name to group definition.
	Groups map[string]*Group

	// RuleLists is the ordered list of rule lists.
	RuleLists []*RuleList
}

// UserGroups returns the names of all groups the user is a member of.
func (p *Policy) UserGroups(user string) []string {
	var names []string
	for name, group := range p.Groups {
		if group.HasUser(user) {
			names = append(names, name)
		}
	}
	return names
}

// RuleCount returns the total number of data rules across all rule lists.
func (p *Policy) RuleCount() int {
	n := 0
	for _, l := range p.RuleLists {
		n += len(l.Rules)
	}
	return n
}

// CommandRuleCount returns the total number of command rules across all
// rule lists.
func (p *Policy) CommandRuleCount() int {
	n := 0
	for _, l := range p.RuleLists {
		n += len(l.CommandRules)
	}
	return n
}

// AccessRequest is one access decision input. Optional fields use the empty
// string for "not specified"; an unspecified field is only satisfied by a
// wildcard matcher.
type AccessRequest struct {
	// User is the username making the request.
	User string `json:"user"`

	// Operation is the requested access operation.
	Operation Operation `json:"operation"`

	// ModuleName is the module being accessed, if any.
	ModuleName string `json:"module,omitempty"`

	// RPCName is the RPC being invoked, if any.
	RPCName string `json:"rpc,omitempty"`

	// Path is the data path being accessed, if any.
	Path string `json:"path,omitempty"`

	// Context is the management interface the request originates from
	// (netconf, cli, webui, ...), if known.
	Context string `json:"context,omitempty"`

	// Command is the command line being executed. A non-empty command
	// makes this a command request, evaluated against command rules even
	// when module or path are also present.
	Command string `json:"command,omitempty"`
}

// IsCommand reports whether the request is evaluated against command rules.
func (r *AccessRequest) IsCommand() bool {
	return r.Command != ""
}

// ValidationResult is the outcome of evaluating one AccessRequest.
type ValidationResult struct {
	// Effect is the access decision.
	Effect Effect `json:"effect"`

	// ShouldLog reports whether the host process should log this decision.
	ShouldLog bool `json:"shouldLog"`
}
