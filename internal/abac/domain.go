// Package abac implements the attribute-based access-control engine:
// role-derived permission rules are compiled per request into an Ability
// that answers point checks, produces query-layer predicates for bulk
// reads, and exposes field whitelists for response projection.
package abac

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action enumerates the verbs a rule can grant. ActionManage is a
// wildcard matching every concrete action.
type Action string

const (
	ActionCreate Action = "create"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
	ActionManage Action = "manage"
)

// Subject names a protected entity type. SubjectAll is a wildcard
// matching every subject.
type Subject string

const (
	SubjectUser Subject = "User"
	SubjectPost Subject = "Post"
	SubjectAll  Subject = "all"
)

// Role names form a closed enumeration unique within the system.
const (
	RoleAdmin = "ADMIN"
	RoleUser  = "USER"
	RoleGuest = "GUEST"
)

// Role is a high-level grouping of permission rules.
type Role struct {
	ID   int64
	Name string
}

// Permission is a stored rule row: action + subject + optional field
// whitelist + optional condition template. Fields and Conditions carry
// the serialized JSON exactly as persisted by the admin flows; they are
// parsed once during compilation, never on the check path.
type Permission struct {
	ID         int64
	Action     Action
	Subject    Subject
	Fields     *string
	Conditions *string
}

// RoleGrant pairs a role with its associated permission rules as loaded
// by the rule store.
type RoleGrant struct {
	Role        Role
	Permissions []Permission
}

// UserContext is the read-only projection of the acting user that the
// compiler binds condition templates against: identity plus the profile
// attributes a template may reference.
type UserContext struct {
	ID    int64
	Attrs map[string]any
}

// Attr looks up a user attribute by name. The id attribute is always
// resolvable from the identity itself.
func (u UserContext) Attr(name string) (any, bool) {
	if name == "id" {
		return u.ID, true
	}
	v, ok := u.Attrs[name]
	return v, ok
}

// ConditionValue is one parsed condition entry: either a literal value or
// a reference to an attribute of the acting user (`user.<attr>`).
type ConditionValue struct {
	Literal any
	Attr    string
}

// IsRef reports whether the value is an attribute reference.
func (v ConditionValue) IsRef() bool { return v.Attr != "" }

const refPrefix = "user."

// ParseConditions decodes a stored conditions payload into the closed
// condition structure. String values of the exact form `user.<attr>`
// (single segment) become attribute references; everything else stays a
// literal.
func ParseConditions(raw string) (map[string]ConditionValue, error) {
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil, fmt.Errorf("abac: parse conditions: %w", err)
	}
	conds := make(map[string]ConditionValue, len(decoded))
	for key, value := range decoded {
		if s, ok := value.(string); ok && strings.HasPrefix(s, refPrefix) {
			attr := strings.TrimPrefix(s, refPrefix)
			if attr != "" && !strings.Contains(attr, ".") {
				conds[key] = ConditionValue{Attr: attr}
				continue
			}
		}
		conds[key] = ConditionValue{Literal: value}
	}
	return conds, nil
}

// ParseFields decodes a stored field whitelist payload.
func ParseFields(raw string) ([]string, error) {
	var fields []string
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return nil, fmt.Errorf("abac: parse fields: %w", err)
	}
	return fields, nil
}

// CompiledRule is one rule of an Ability after template resolution.
// Immutable once compiled.
type CompiledRule struct {
	Action  Action
	Subject Subject
	// Conditions holds the resolved equality conditions; nil means the
	// rule is unconditional for its action/subject pair.
	Conditions map[string]any
	// Fields holds the attribute whitelist; nil means unrestricted.
	Fields []string

	// unresolved marks a rule whose condition template referenced an
	// absent user attribute. Such a rule never matches anything.
	unresolved bool
}

func (r CompiledRule) matches(action Action, subject Subject) bool {
	if r.unresolved {
		return false
	}
	if r.Action != ActionManage && r.Action != action {
		return false
	}
	if r.Subject != SubjectAll && r.Subject != subject {
		return false
	}
	return true
}
