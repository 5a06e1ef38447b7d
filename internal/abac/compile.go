package abac

import (
	"context"
	"errors"
	"log/slog"
)

var (
	// ErrNoPermissions indicates the user resolved to zero compiled rules.
	// Surfaces to callers as an access-denied outcome.
	ErrNoPermissions = errors.New("abac: no permissions")
	// ErrUserNotFound indicates the rule store has no such user.
	ErrUserNotFound = errors.New("abac: user not found")
	// ErrUnauthenticated indicates no authenticated identity is attached
	// to the request.
	ErrUnauthenticated = errors.New("abac: unauthenticated")
)

// RuleStore loads a user's roles and their associated permission rules.
// Implementations must be safe for concurrent reads and honor the
// caller's context; this is the sole suspension point of a compilation.
type RuleStore interface {
	RolesWithPermissions(ctx context.Context, userID int64) ([]RoleGrant, error)
}

// Compiler builds a request-scoped Ability for a user. Compilation runs
// for every protected request and is never memoized: condition templates
// bind against the acting user's current attributes, which can change
// between requests.
type Compiler struct {
	store  RuleStore
	logger *slog.Logger
}

// NewCompiler constructs a Compiler.
func NewCompiler(store RuleStore, logger *slog.Logger) *Compiler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Compiler{store: store, logger: logger}
}

// CompileForUser loads the user's effective rules, resolves each rule's
// condition template against the user's own attributes, and assembles the
// Ability. Duplicate rules across roles are preserved (harmless under OR
// semantics). An empty compiled rule set fails with ErrNoPermissions.
func (c *Compiler) CompileForUser(ctx context.Context, user UserContext) (*Ability, error) {
	grants, err := c.store.RolesWithPermissions(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	var rules []CompiledRule
	for _, grant := range grants {
		for _, perm := range grant.Permissions {
			rule, ok := c.compileRule(perm, user)
			if !ok {
				continue
			}
			rules = append(rules, rule)
		}
	}
	if len(rules) == 0 {
		return nil, ErrNoPermissions
	}
	return NewAbility(rules...), nil
}

// compileRule parses one stored rule and resolves its conditions. A rule
// with an unparseable conditions payload is dropped (deny-safe); a rule
// with an unparseable field whitelist keeps its grant but loses the
// whitelist, which only affects response projection. Either way one bad
// row never aborts the whole compilation.
func (c *Compiler) compileRule(perm Permission, user UserContext) (CompiledRule, bool) {
	rule := CompiledRule{Action: perm.Action, Subject: perm.Subject}

	if perm.Conditions != nil && *perm.Conditions != "" {
		conds, err := ParseConditions(*perm.Conditions)
		if err != nil {
			c.logger.Warn("dropping rule with malformed conditions",
				slog.Int64("permission_id", perm.ID),
				slog.Any("error", err))
			return CompiledRule{}, false
		}
		resolved, complete := ResolveConditions(conds, user)
		if !complete {
			c.logger.Warn("rule condition references absent user attribute",
				slog.Int64("permission_id", perm.ID),
				slog.Int64("user_id", user.ID))
			rule.unresolved = true
		}
		rule.Conditions = resolved
	}

	if perm.Fields != nil && *perm.Fields != "" {
		fields, err := ParseFields(*perm.Fields)
		if err != nil {
			c.logger.Warn("ignoring malformed field whitelist",
				slog.Int64("permission_id", perm.ID),
				slog.Any("error", err))
		} else {
			rule.Fields = fields
		}
	}

	return rule, true
}
