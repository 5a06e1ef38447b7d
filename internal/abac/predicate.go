package abac

import (
	"fmt"
	"sort"
	"strings"
)

// Predicate is a query-layer filter fragment derived from an Ability: a
// disjunction of equality conjunctions over instance attributes. It is
// handed to the persistence layer for row-level scoping and combined
// (via AND) with caller-supplied filters; rows the user cannot see are
// never loaded. The zero value denies everything.
type Predicate struct {
	always bool
	never  bool
	anyOf  []map[string]any
}

// Always is the predicate matching every row.
func Always() Predicate { return Predicate{always: true} }

// Never is the predicate matching no rows.
func Never() Predicate { return Predicate{never: true} }

func anyOf(arms []map[string]any) Predicate {
	return Predicate{anyOf: arms}
}

// IsAlways reports whether the predicate matches unconditionally.
func (p Predicate) IsAlways() bool { return p.always }

// IsNever reports whether the predicate can never match.
func (p Predicate) IsNever() bool { return p.never || (!p.always && len(p.anyOf) == 0) }

// ColumnMap translates an instance attribute name into a SQL column
// reference. Returning false marks the attribute inexpressible in the
// query layer; the arm containing it is rendered FALSE so an
// untranslatable condition can never widen access.
type ColumnMap func(attr string) (string, bool)

// SQL renders the predicate as a WHERE fragment with pgx-style $n
// placeholders. argOffset is the number of arguments the caller has
// already bound; placeholders continue from $argOffset+1. The fragment is
// always parenthesized or atomic, safe to AND with other clauses.
func (p Predicate) SQL(cols ColumnMap, argOffset int) (string, []any) {
	if p.always {
		return "TRUE", nil
	}
	if p.IsNever() {
		return "FALSE", nil
	}
	var (
		groups []string
		args   []any
	)
	for _, arm := range p.anyOf {
		clause, armArgs, ok := renderArm(arm, cols, argOffset+len(args))
		if !ok {
			groups = append(groups, "FALSE")
			continue
		}
		groups = append(groups, clause)
		args = append(args, armArgs...)
	}
	if len(groups) == 1 {
		return groups[0], args
	}
	return "(" + strings.Join(groups, " OR ") + ")", args
}

// Matches evaluates the predicate in-process against an instance
// attribute map. It mirrors the SQL rendering exactly, so the bulk
// predicate and the point check agree on every instance; used by tests
// and by callers that already hold a loaded row.
func (p Predicate) Matches(instance map[string]any) bool {
	if p.always {
		return true
	}
	if p.IsNever() {
		return false
	}
	for _, arm := range p.anyOf {
		if conditionsMatch(arm, instance) {
			return true
		}
	}
	return false
}

func renderArm(arm map[string]any, cols ColumnMap, argOffset int) (string, []any, bool) {
	keys := make([]string, 0, len(arm))
	for key := range arm {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for _, key := range keys {
		column, ok := cols(key)
		if !ok {
			return "", nil, false
		}
		args = append(args, arm[key])
		parts = append(parts, fmt.Sprintf("%s = $%d", column, argOffset+len(args)))
	}
	if len(parts) == 1 {
		return parts[0], args, true
	}
	return "(" + strings.Join(parts, " AND ") + ")", args, true
}
