package nacm

import "strings"

// Matcher is a tagged wildcard-or-literal value used for the optional rule
// fields (module, RPC, path, context, command). A wildcard matcher matches
// anything, including requests that left the field unspecified; a literal
// matcher only matches a specified value, with per-field comparison
// semantics applied by the decision engine.
//
// The zero value is a literal empty string, which matches nothing; rule
// construction normalizes absent source fields to Wildcard() so that the
// "absent means match everything" rule lives in exactly one place.
type Matcher struct {
	value    string
	wildcard bool
}

// Wildcard returns a matcher that matches any value.
func Wildcard() Matcher {
	return Matcher{wildcard: true}
}

// Literal returns a matcher for the exact value. The conventional "*"
// wildcard token is normalized to Wildcard.
func Literal(value string) Matcher {
	if strings.TrimSpace(value) == "*" {
		return Wildcard()
	}
	return Matcher{value: value}
}

// IsWildcard reports whether the matcher matches anything.
func (m Matcher) IsWildcard() bool {
	return m.wildcard
}

// Value returns the literal value. Empty for wildcard matchers.
func (m Matcher) Value() string {
	if m.wildcard {
		return ""
	}
	return m.value
}

// MatchesExact reports whether the matcher accepts the given request value
// under exact-comparison semantics. The empty string denotes an unspecified
// request field, which only a wildcard accepts.
func (m Matcher) MatchesExact(value string) bool {
	if m.wildcard {
		return true
	}
	return value != "" && m.value == value
}

// MatchesPathPrefix reports whether the matcher accepts the given request
// path under prefix semantics: a literal path matcher is a prefix of every
// acceptable target path.
func (m Matcher) MatchesPathPrefix(path string) bool {
	if m.wildcard {
		return true
	}
	return path != "" && strings.HasPrefix(path, m.value)
}

// MatchesCommand reports whether the matcher accepts the given command line
// under token-wise prefix semantics. Both the pattern and the command are
// split on whitespace; each pattern token must equal the command token at
// the same position or be "*", and the command must carry at least as many
// tokens as the pattern. A shorter pattern therefore matches any longer
// command it prefixes, and a pattern with more tokens than the command
// never matches.
func (m Matcher) MatchesCommand(command string) bool {
	cmdTokens := strings.Fields(command)
	if m.wildcard {
		return len(cmdTokens) > 0
	}

	patTokens := strings.Fields(m.value)
	if len(cmdTokens) < len(patTokens) {
		return false
	}
	for i, pat := range patTokens {
		if pat != "*" && pat != cmdTokens[i] {
			return false
		}
	}
	return true
}

// OperationSet is a set-or-wildcard over access operations. The wildcard
// set contains every operation.
type OperationSet struct {
	ops      map[Operation]bool
	wildcard bool
}

// AllOperations returns the wildcard operation set.
func AllOperations() OperationSet {
	return OperationSet{wildcard: true}
}

// Operations returns a set containing exactly the given operations.
func Operations(ops ...Operation) OperationSet {
	s := OperationSet{ops: make(map[Operation]bool, len(ops))}
	for _, op := range ops {
		s.ops[op] = true
	}
	return s
}

// ParseOperationSet parses the space-separated access-operations source
// form. "*" yields the wildcard set; unknown operation names are rejected.
func ParseOperationSet(s string) (OperationSet, error) {
	if strings.TrimSpace(s) == "*" {
		return AllOperations(), nil
	}
	set := OperationSet{ops: make(map[Operation]bool)}
	for _, field := range strings.Fields(s) {
		op, err := ParseOperation(field)
		if err != nil {
			return OperationSet{}, err
		}
		set.ops[op] = true
	}
	return set, nil
}

// IsWildcard reports whether the set contains every operation.
func (s OperationSet) IsWildcard() bool {
	return s.wildcard
}

// Contains reports whether the set covers the given operation.
func (s OperationSet) Contains(op Operation) bool {
	if s.wildcard {
		return true
	}
	return s.ops[op]
}

// List returns the contained operations in their canonical order, or nil
// for the wildcard set.
func (s OperationSet) List() []Operation {
	if s.wildcard {
		return nil
	}
	all := []Operation{OperationRead, OperationCreate, OperationUpdate, OperationDelete, OperationExec}
	var out []Operation
	for _, op := range all {
		if s.ops[op] {
			out = append(out, op)
		}
	}
	return out
}

// clone returns a copy of the set.
func (s OperationSet) clone() OperationSet {
	if s.wildcard {
		return s
	}
	c := OperationSet{ops: make(map[Operation]bool, len(s.ops))}
	for op := range s.ops {
		c.ops[op] = true
	}
	return c
}
