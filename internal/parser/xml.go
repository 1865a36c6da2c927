package parser

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/nacmval/internal/nacm"
)

// xmlConfig is the root <config> element of a configuration source.
type xmlConfig struct {
	XMLName xml.Name `xml:"config"`
	NACM    xmlNACM  `xml:"nacm"`
}

// xmlNACM is the <nacm> block: global leaves, groups and rule lists.
type xmlNACM struct {
	EnableNACM   *bool  `xml:"enable-nacm"`
	ReadDefault  string `xml:"read-default"`
	WriteDefault string `xml:"write-default"`
	ExecDefault  string `xml:"exec-default"`

	// Tail-f ACM command defaults and default-decision logging flags.
	CmdReadDefault     string  `xml:"cmd-read-default"`
	CmdExecDefault     string  `xml:"cmd-exec-default"`
	LogIfDefaultPermit *string `xml:"log-if-default-permit"`
	LogIfDefaultDeny   *string `xml:"log-if-default-deny"`

	Groups    xmlGroups     `xml:"groups"`
	RuleLists []xmlRuleList `xml:"rule-list"`
}

type xmlGroups struct {
	Groups []xmlGroup `xml:"group"`
}

type xmlGroup struct {
	Name      string   `xml:"name"`
	GID       *int     `xml:"gid"`
	UserNames []string `xml:"user-name"`
}

type xmlRuleList struct {
	Name     string       `xml:"name"`
	Groups   []string     `xml:"group"`
	Rules    []xmlRule    `xml:"rule"`
	CmdRules []xmlCmdRule `xml:"cmdrule"`
}

type xmlRule struct {
	Name             string  `xml:"name"`
	ModuleName       *string `xml:"module-name"`
	RPCName          *string `xml:"rpc-name"`
	Path             *string `xml:"path"`
	AccessOperations *string `xml:"access-operations"`
	Action           string  `xml:"action"`
	Context          *string `xml:"context"`
	LogIfPermit      *string `xml:"log-if-permit"`
	LogIfDeny        *string `xml:"log-if-deny"`
}

type xmlCmdRule struct {
	Name             string  `xml:"name"`
	Context          *string `xml:"context"`
	Command          *string `xml:"command"`
	AccessOperations *string `xml:"access-operations"`
	Action           string  `xml:"action"`
	LogIfPermit      *string `xml:"log-if-permit"`
	LogIfDeny        *string `xml:"log-if-deny"`
	Comment          string  `xml:"comment"`
}

// Parse decodes one configuration source document into a policy model
// instance. Optional elements follow the YANG defaults: enforcement on,
// read/exec permitted, writes denied, commands permitted. Absent matcher
// elements normalize to wildcard at construction time, so the decision
// engine never has to special-case missing fields.
func Parse(data []byte) (*nacm.Policy, error) {
	return ParseReader(bytes.NewReader(data))
}

// ParseReader decodes a configuration source from an io.Reader.
func ParseReader(r io.Reader) (*nacm.Policy, error) {
	var doc xmlConfig
	decoder := xml.NewDecoder(r)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode configuration document: %w", err)
	}
	return convert(&doc.NACM)
}

// convert maps the decoded document onto the policy model.
func convert(doc *xmlNACM) (*nacm.Policy, error) {
	policy := &nacm.Policy{
		EnableNACM:     true,
		ReadDefault:    nacm.EffectPermit,
		WriteDefault:   nacm.EffectDeny,
		ExecDefault:    nacm.EffectPermit,
		CmdReadDefault: nacm.EffectPermit,
		CmdExecDefault: nacm.EffectPermit,
		Groups:         make(map[string]*nacm.Group),
	}

	if doc.EnableNACM != nil {
		policy.EnableNACM = *doc.EnableNACM
	}

	var err error
	if policy.ReadDefault, err = effectOrDefault(doc.ReadDefault, policy.ReadDefault); err != nil {
		return nil, fmt.Errorf("read-default: %w", err)
	}
	if policy.WriteDefault, err = effectOrDefault(doc.WriteDefault, policy.WriteDefault); err != nil {
		return nil, fmt.Errorf("write-default: %w", err)
	}
	if policy.ExecDefault, err = effectOrDefault(doc.ExecDefault, policy.ExecDefault); err != nil {
		return nil, fmt.Errorf("exec-default: %w", err)
	}
	if policy.CmdReadDefault, err = effectOrDefault(doc.CmdReadDefault, policy.CmdReadDefault); err != nil {
		return nil, fmt.Errorf("cmd-read-default: %w", err)
	}
	if policy.CmdExecDefault, err = effectOrDefault(doc.CmdExecDefault, policy.CmdExecDefault); err != nil {
		return nil, fmt.Errorf("cmd-exec-default: %w", err)
	}

	if policy.LogDefaultPermit, err = flag(doc.LogIfDefaultPermit); err != nil {
		return nil, fmt.Errorf("log-if-default-permit: %w", err)
	}
	if policy.LogDefaultDeny, err = flag(doc.LogIfDefaultDeny); err != nil {
		return nil, fmt.Errorf("log-if-default-deny: %w", err)
	}

	for _, g := range doc.Groups.Groups {
		if g.Name == "" {
			return nil, fmt.Errorf("group without a name")
		}
		if _, exists := policy.Groups[g.Name]; exists {
			return nil, fmt.Errorf("duplicate group %q", g.Name)
		}
		group := &nacm.Group{Name: g.Name, Users: g.UserNames}
		if g.GID != nil {
			if *g.GID < 0 {
				return nil, fmt.Errorf("group %q: negative gid %d", g.Name, *g.GID)
			}
			gid := *g.GID
			group.GID = &gid
		}
		policy.Groups[g.Name] = group
	}

	for _, l := range doc.RuleLists {
		list, err := convertRuleList(&l)
		if err != nil {
			return nil, err
		}
		policy.RuleLists = append(policy.RuleLists, list)
	}

	return policy, nil
}

func convertRuleList(l *xmlRuleList) (*nacm.RuleList, error) {
	if l.Name == "" {
		return nil, fmt.Errorf("rule list without a name")
	}
	list := &nacm.RuleList{
		Name:   l.Name,
		Groups: l.Groups,
	}

	for _, r := range l.Rules {
		rule, err := convertRule(&r)
		if err != nil {
			return nil, fmt.Errorf("rule list %q: %w", l.Name, err)
		}
		list.Rules = append(list.Rules, rule)
	}
	for _, r := range l.CmdRules {
		rule, err := convertCmdRule(&r)
		if err != nil {
			return nil, fmt.Errorf("rule list %q: %w", l.Name, err)
		}
		list.CommandRules = append(list.CommandRules, rule)
	}
	return list, nil
}

func convertRule(r *xmlRule) (*nacm.Rule, error) {
	effect, err := nacm.ParseEffect(r.Action)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}

	ops, err := operationSet(r.AccessOperations)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %w", r.Name, err)
	}

	logPermit, err := flag(r.LogIfPermit)
	if err != nil {
		return nil, fmt.Errorf("rule %q: log-if-permit: %w", r.Name, err)
	}
	logDeny, err := flag(r.LogIfDeny)
	if err != nil {
		return nil, fmt.Errorf("rule %q: log-if-deny: %w", r.Name, err)
	}

	return &nacm.Rule{
		Name:             r.Name,
		ModuleName:       matcher(r.ModuleName),
		RPCName:          matcher(r.RPCName),
		Path:             matcher(r.Path),
		AccessOperations: ops,
		Context:          matcher(r.Context),
		Effect:           effect,
		LogIfPermit:      logPermit,
		LogIfDeny:        logDeny,
	}, nil
}

func convertCmdRule(r *xmlCmdRule) (*nacm.CommandRule, error) {
	effect, err := nacm.ParseEffect(r.Action)
	if err != nil {
		return nil, fmt.Errorf("cmdrule %q: %w", r.Name, err)
	}

	ops, err := operationSet(r.AccessOperations)
	if err != nil {
		return nil, fmt.Errorf("cmdrule %q: %w", r.Name, err)
	}
	for _, op := range ops.List() {
		if op != nacm.OperationRead && op != nacm.OperationExec {
			return nil, fmt.Errorf("cmdrule %q: operation %q not allowed on command rules", r.Name, op)
		}
	}

	logPermit, err := flag(r.LogIfPermit)
	if err != nil {
		return nil, fmt.Errorf("cmdrule %q: log-if-permit: %w", r.Name, err)
	}
	logDeny, err := flag(r.LogIfDeny)
	if err != nil {
		return nil, fmt.Errorf("cmdrule %q: log-if-deny: %w", r.Name, err)
	}

	return &nacm.CommandRule{
		Name:             r.Name,
		Context:          matcher(r.Context),
		Command:          matcher(r.Command),
		AccessOperations: ops,
		Effect:           effect,
		LogIfPermit:      logPermit,
		LogIfDeny:        logDeny,
		Comment:          r.Comment,
	}, nil
}

// matcher normalizes an optional source element into a Matcher: absent
// means wildcard, and Literal handles the "*" token itself.
func matcher(s *string) nacm.Matcher {
	if s == nil {
		return nacm.Wildcard()
	}
	return nacm.Literal(*s)
}

// operationSet normalizes an optional access-operations element: absent
// means every operation.
func operationSet(s *string) (nacm.OperationSet, error) {
	if s == nil {
		return nacm.AllOperations(), nil
	}
	return nacm.ParseOperationSet(*s)
}

// effectOrDefault parses an effect leaf, keeping the default when the
// element was absent.
func effectOrDefault(s string, def nacm.Effect) (nacm.Effect, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	return nacm.ParseEffect(s)
}

// flag interprets an optional boolean element. Absent means false, a bare
// presence element means true, and explicit true/false text is honored.
func flag(s *string) (bool, error) {
	if s == nil {
		return false, nil
	}
	text := strings.TrimSpace(*s)
	if text == "" {
		return true, nil
	}
	return strconv.ParseBool(text)
}
