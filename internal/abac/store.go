package abac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRuleStore is the PostgreSQL rule store accessor: pure data access over
// the role/permission tables, no policy logic. Safe for concurrent reads;
// every query runs on the shared pool and honors the caller's context.
type PGRuleStore struct {
	pool *pgxpool.Pool
}

// NewPGRuleStore constructs a rule store backed by the provided pool.
func NewPGRuleStore(pool *pgxpool.Pool) *PGRuleStore {
	return &PGRuleStore{pool: pool}
}

// RolesWithPermissions returns the user's roles with their permission
// rules. Unknown user ids fail with ErrUserNotFound rather than an empty
// grant list, so a stale identity is distinguishable from a user who
// simply has no rules.
func (s *PGRuleStore) RolesWithPermissions(ctx context.Context, userID int64) ([]RoleGrant, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("abac: check user: %w", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.id, r.name, p.id, p.action, p.subject, p.fields, p.conditions
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		JOIN role_permissions rp ON rp.role_id = r.id
		JOIN permissions p ON p.id = rp.permission_id
		WHERE ur.user_id = $1
		ORDER BY r.id, p.id`, userID)
	if err != nil {
		return nil, fmt.Errorf("abac: load permissions: %w", err)
	}
	defer rows.Close()

	var grants []RoleGrant
	index := make(map[int64]int)
	for rows.Next() {
		var (
			role Role
			perm Permission
		)
		if err := rows.Scan(&role.ID, &role.Name, &perm.ID, &perm.Action, &perm.Subject, &perm.Fields, &perm.Conditions); err != nil {
			return nil, fmt.Errorf("abac: scan permission: %w", err)
		}
		i, ok := index[role.ID]
		if !ok {
			i = len(grants)
			index[role.ID] = i
			grants = append(grants, RoleGrant{Role: role})
		}
		grants[i].Permissions = append(grants[i].Permissions, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("abac: load permissions: %w", err)
	}
	return grants, nil
}

var _ RuleStore = (*PGRuleStore)(nil)
