package nacm

import "fmt"

// defaultOrderStride is the spacing between the order ranges of consecutive
// sources. It is sized well above any expected per-source rule count and is
// grown automatically when a source exceeds it, so an oversized source can
// never overlap the order range of the source after it.
const defaultOrderStride = 10000

// ConflictKind classifies an advisory merge conflict.
type ConflictKind string

// Merge conflict kinds.
const (
	// ConflictGroupGID reports that two sources assigned different GIDs
	// to the same group; the later source won.
	ConflictGroupGID ConflictKind = "group-gid"

	// ConflictRuleListMerged reports that two sources declared a rule
	// list with the same name; their contents were combined.
	ConflictRuleListMerged ConflictKind = "rule-list-merged"
)

// Conflict is an advisory signal surfaced by Merge for diagnostics. A
// conflict is never a failure: the merge resolves it deterministically and
// reports what it did so the caller can warn.
type Conflict struct {
	// Kind classifies the conflict.
	Kind ConflictKind

	// Name is the group or rule-list name the conflict occurred on.
	Name string

	// Detail describes the resolution in human-readable form.
	Detail string
}

// String returns the conflict in human-readable form.
func (c Conflict) String() string {
	return fmt.Sprintf("%s %q: %s", c.Kind, c.Name, c.Detail)
}

// Merge combines independently parsed policy sources, in source-processing
// order, into a single Policy. It is total for any sequence of structurally
// valid sources: the empty sequence yields the fail-safe baseline (NACM
// disabled, data defaults deny, command defaults permit) and a single
// source merges to itself.
//
// Scalar leaves are overwritten by each source in turn, so the last source
// wins. Groups of the same name union their user sets, with the incoming
// GID replacing an existing different one (reported as a conflict). Rule
// lists of the same name union their group sets and append their rules.
// Every rule and command rule is assigned a global order of
// sourceIndex*stride + position, which keeps rules from an earlier source
// strictly before rules from any later source while preserving the
// relative order within each source.
//
// The input policies are never mutated; the result shares no structure
// with them.
func Merge(sources []*Policy) (*Policy, []Conflict) {
	merged := baselinePolicy()
	var conflicts []Conflict

	stride := orderStride(sources)
	listIndex := make(map[string]*RuleList)

	for i, src := range sources {
		merged.EnableNACM = src.EnableNACM
		merged.ReadDefault = src.ReadDefault
		merged.WriteDefault = src.WriteDefault
		merged.ExecDefault = src.ExecDefault
		merged.CmdReadDefault = src.CmdReadDefault
		merged.CmdExecDefault = src.CmdExecDefault
		merged.LogDefaultPermit = src.LogDefaultPermit
		merged.LogDefaultDeny = src.LogDefaultDeny

		for _, group := range src.Groups {
			conflicts = append(conflicts, mergeGroup(merged, group)...)
		}

		// Rules and command rules are numbered independently, with one
		// running position per source so relative order is preserved
		// across rule-list boundaries within the source.
		dataPos, cmdPos := 0, 0
		for _, list := range src.RuleLists {
			incoming := list.clone()
			for _, rule := range incoming.Rules {
				rule.Order = i*stride + dataPos
				dataPos++
			}
			for _, rule := range incoming.CommandRules {
				rule.Order = i*stride + cmdPos
				cmdPos++
			}

			existing, ok := listIndex[incoming.Name]
			if !ok {
				listIndex[incoming.Name] = incoming
				merged.RuleLists = append(merged.RuleLists, incoming)
				continue
			}

			existing.Groups = unionStrings(existing.Groups, incoming.Groups)
			existing.Rules = append(existing.Rules, incoming.Rules...)
			existing.CommandRules = append(existing.CommandRules, incoming.CommandRules...)
			conflicts = append(conflicts, Conflict{
				Kind:   ConflictRuleListMerged,
				Name:   incoming.Name,
				Detail: fmt.Sprintf("source %d re-declares rule list; groups unioned, rules appended", i),
			})
		}
	}

	return merged, conflicts
}

// mergeGroup folds one source group into the accumulator, reporting a
// conflict when the incoming GID replaces a different existing one.
func mergeGroup(merged *Policy, group *Group) []Conflict {
	existing, ok := merged.Groups[group.Name]
	if !ok {
		merged.Groups[group.Name] = group.clone()
		return nil
	}

	existing.Users = unionStrings(existing.Users, group.Users)

	if group.GID == nil {
		return nil
	}
	var conflicts []Conflict
	if existing.GID != nil && *existing.GID != *group.GID {
		conflicts = append(conflicts, Conflict{
			Kind:   ConflictGroupGID,
			Name:   group.Name,
			Detail: fmt.Sprintf("gid %d replaced by %d", *existing.GID, *group.GID),
		})
	}
	gid := *group.GID
	existing.GID = &gid
	return conflicts
}

// baselinePolicy is the fail-safe result of merging nothing: enforcement
// off, data access denied by default, command access permitted by default
// (command defaults are permissive in Tail-f ACM), nothing configured.
func baselinePolicy() *Policy {
	return &Policy{
		EnableNACM:     false,
		ReadDefault:    EffectDeny,
		WriteDefault:   EffectDeny,
		ExecDefault:    EffectDeny,
		CmdReadDefault: EffectPermit,
		CmdExecDefault: EffectPermit,
		Groups:         make(map[string]*Group),
	}
}

// orderStride returns the per-source order spacing, grown beyond the
// default whenever a single source carries that many rules. Sorting by the
// composite key (source index, position) directly would avoid the encoding
// entirely; growing the stride keeps the single-integer order field while
// making range overlap impossible.
func orderStride(sources []*Policy) int {
	stride := defaultOrderStride
	for _, src := range sources {
		for stride <= src.RuleCount() || stride <= src.CommandRuleCount() {
			stride *= 10
		}
	}
	return stride
}

// unionStrings appends the elements of add that are not already present,
// preserving first-appearance order.
func unionStrings(base, add []string) []string {
	seen := make(map[string]bool, len(base))
	for _, s := range base {
		seen[s] = true
	}
	for _, s := range add {
		if !seen[s] {
			seen[s] = true
			base = append(base, s)
		}
	}
	return base
}
