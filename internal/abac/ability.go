package abac

import "reflect"

// Ability is the compiled, user-scoped rule set. It is scoped to exactly
// one user and one request lifetime, immutable after construction, and
// all of its operations are pure functions of the compiled rules.
type Ability struct {
	rules []CompiledRule
}

// NewAbility constructs an Ability from compiled rules. Used by the
// compiler and by tests that stub compilation.
func NewAbility(rules ...CompiledRule) *Ability {
	return &Ability{rules: rules}
}

// Can reports whether any compiled rule grants action on subject. When an
// instance is supplied, a conditional rule additionally requires every
// resolved condition to equal the corresponding instance attribute. A rule
// without conditions matches regardless of the instance; a nil instance
// means the check is about the action/subject grant itself.
func (a *Ability) Can(action Action, subject Subject, instance map[string]any) bool {
	for _, rule := range a.rules {
		if !rule.matches(action, subject) {
			continue
		}
		if len(rule.Conditions) == 0 {
			return true
		}
		if instance == nil {
			return true
		}
		if conditionsMatch(rule.Conditions, instance) {
			return true
		}
	}
	return false
}

// AccessibleBy returns the bulk-query predicate for (action, subject):
// the OR of each matching rule's AND-of-equality conditions. Any matching
// unconditional rule collapses the predicate to Always; no matching rule
// yields Never.
func (a *Ability) AccessibleBy(action Action, subject Subject) Predicate {
	var arms []map[string]any
	for _, rule := range a.rules {
		if !rule.matches(action, subject) {
			continue
		}
		if len(rule.Conditions) == 0 {
			return Always()
		}
		arms = append(arms, rule.Conditions)
	}
	if len(arms) == 0 {
		return Never()
	}
	return anyOf(arms)
}

// AllowedFields returns the union of field whitelists across rules
// matching (action, subject). A matching rule without a whitelist makes
// the result unrestricted. No matching rule yields an empty set.
func (a *Ability) AllowedFields(action Action, subject Subject) FieldSet {
	var names []string
	seen := make(map[string]struct{})
	matched := false
	for _, rule := range a.rules {
		if !rule.matches(action, subject) {
			continue
		}
		matched = true
		if rule.Fields == nil {
			return FieldSet{All: true}
		}
		for _, field := range rule.Fields {
			if _, ok := seen[field]; ok {
				continue
			}
			seen[field] = struct{}{}
			names = append(names, field)
		}
	}
	if !matched {
		return FieldSet{}
	}
	return FieldSet{Names: names}
}

// FieldSet is the attribute whitelist for an (action, subject) pair.
type FieldSet struct {
	// All marks the set unrestricted.
	All   bool
	Names []string
}

// Contains reports whether the field is readable/writable under the set.
func (f FieldSet) Contains(name string) bool {
	if f.All {
		return true
	}
	for _, n := range f.Names {
		if n == name {
			return true
		}
	}
	return false
}

// Project returns record restricted to the whitelisted attributes.
func (f FieldSet) Project(record map[string]any) map[string]any {
	if f.All {
		return record
	}
	projected := make(map[string]any, len(f.Names))
	for _, name := range f.Names {
		if value, ok := record[name]; ok {
			projected[name] = value
		}
	}
	return projected
}

func conditionsMatch(conds map[string]any, instance map[string]any) bool {
	for key, want := range conds {
		// A nil condition value never equals anything, mirroring SQL
		// NULL comparison semantics.
		if want == nil {
			return false
		}
		got, ok := instance[key]
		if !ok || !equalValue(want, got) {
			return false
		}
	}
	return true
}

// equalValue compares a resolved condition value with an instance
// attribute. Stored literals arrive as JSON numbers (float64) while
// instance attributes carry typed Go integers, so numerics are normalized
// before comparison.
func equalValue(want, got any) bool {
	if wf, ok := toFloat(want); ok {
		gf, ok := toFloat(got)
		return ok && wf == gf
	}
	return reflect.DeepEqual(want, got)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
